package domain

import "time"

// ConnectionStatus enumerates platform-level channel connection states.
// Vendor vocabulary is mapped onto this closed enum in one place
// (internal/channel); the rest of the system never sees vendor strings.
type ConnectionStatus string

const (
	ConnectionOpening      ConnectionStatus = "OPENING"
	ConnectionQrcode       ConnectionStatus = "qrcode"
	ConnectionConnected    ConnectionStatus = "CONNECTED"
	ConnectionDisconnected ConnectionStatus = "DISCONNECTED"
	ConnectionTimeout      ConnectionStatus = "TIMEOUT"
	ConnectionPairing      ConnectionStatus = "PAIRING"
)

// Whatsapp is a company's configured channel connection. One per company per
// channel instance; owns exactly one underlying session object at runtime.
type Whatsapp struct {
	ID        int64
	CompanyID int64
	Name      string
	Status    ConnectionStatus
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
