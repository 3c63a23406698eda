package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// WhatsappResponse is the wire form of a channel connection.
type WhatsappResponse struct {
	ID        int64                   `json:"id"`
	Name      string                  `json:"name"`
	Status    domain.ConnectionStatus `json:"status"`
	IsDefault bool                    `json:"isDefault"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// FromWhatsapp converts a domain connection.
func FromWhatsapp(conn *domain.Whatsapp) WhatsappResponse {
	return WhatsappResponse{
		ID:        conn.ID,
		Name:      conn.Name,
		Status:    conn.Status,
		IsDefault: conn.IsDefault,
		UpdatedAt: conn.UpdatedAt,
	}
}
