package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster publishes events on per-company Redis pub/sub channels.
// Tenant isolation is structural: the channel name embeds the company id.
type RedisBroadcaster struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisBroadcaster wraps a connected client.
func NewRedisBroadcaster(client *redis.Client, logger *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, logger: logger}
}

// ChannelName returns the pub/sub channel for a company.
func ChannelName(companyID int64) string {
	return fmt.Sprintf("company:%d:events", companyID)
}

// Publish marshals the envelope and publishes it to the company channel.
func (b *RedisBroadcaster) Publish(ctx context.Context, companyID int64, topic Topic, payload any) error {
	envelope := Envelope{
		ID:        uuid.NewString(),
		CompanyID: companyID,
		Topic:     topic,
		Timestamp: time.Now(),
		Payload:   payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelName(companyID), data).Err(); err != nil {
		b.logger.Error("publish event",
			zap.Int64("company_id", companyID),
			zap.String("topic", string(topic)),
			zap.Error(err))
		return err
	}
	return nil
}
