package channel

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// InboundMessage is a raw message event from the vendor client, before
// contact resolution and ticket routing.
type InboundMessage struct {
	WhatsappID int64
	CompanyID  int64
	From       string
	SenderName string
	Body       string
	IsGroup    bool
}

// Client is the opaque vendor session boundary. The real protocol client
// lives outside this repo; everything behind this interface is vendor
// territory and its state strings are an open enumeration.
type Client interface {
	// Send delivers a message and returns the vendor message handle.
	Send(ctx context.Context, to, body string) (string, error)
	// OnMessage registers the inbound message handler.
	OnMessage(handler func(InboundMessage))
	// OnConnectionState registers the raw state handler.
	OnConnectionState(handler func(state string))
	Close() error
}

// ClientFactory builds a vendor session for a connection record.
type ClientFactory func(whatsappID, companyID int64) (Client, error)

// LoopbackClient is an in-process Client used by tests and the loopback
// driver. Inbound traffic and state changes are injected programmatically.
type LoopbackClient struct {
	mu            sync.Mutex
	msgHandlers   []func(InboundMessage)
	stateHandlers []func(string)
	sent          []LoopbackSend
	sendErr       error
	closed        bool
	nextID        int
}

// LoopbackSend records one outbound send for inspection.
type LoopbackSend struct {
	To   string
	Body string
}

// NewLoopbackClient creates an idle loopback session.
func NewLoopbackClient() *LoopbackClient {
	return &LoopbackClient{}
}

// NewLoopbackFactory returns a factory producing independent loopback clients.
func NewLoopbackFactory() ClientFactory {
	return func(whatsappID, companyID int64) (Client, error) {
		return NewLoopbackClient(), nil
	}
}

func (c *LoopbackClient) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", errors.New("client closed")
	}
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, LoopbackSend{To: to, Body: body})
	c.nextID++
	return "loopback-" + strconv.Itoa(c.nextID), nil
}

func (c *LoopbackClient) OnMessage(handler func(InboundMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgHandlers = append(c.msgHandlers, handler)
}

func (c *LoopbackClient) OnConnectionState(handler func(state string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateHandlers = append(c.stateHandlers, handler)
}

func (c *LoopbackClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// InjectMessage feeds an inbound message to registered handlers.
func (c *LoopbackClient) InjectMessage(msg InboundMessage) {
	c.mu.Lock()
	handlers := append([]func(InboundMessage){}, c.msgHandlers...)
	c.mu.Unlock()
	for _, handler := range handlers {
		handler(msg)
	}
}

// InjectState feeds a raw vendor state to registered handlers.
func (c *LoopbackClient) InjectState(state string) {
	c.mu.Lock()
	handlers := append([]func(string){}, c.stateHandlers...)
	c.mu.Unlock()
	for _, handler := range handlers {
		handler(state)
	}
}

// FailSends makes subsequent sends return err.
func (c *LoopbackClient) FailSends(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Sent returns a copy of recorded sends.
func (c *LoopbackClient) Sent() []LoopbackSend {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LoopbackSend, len(c.sent))
	copy(out, c.sent)
	return out
}
