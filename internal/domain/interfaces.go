package domain

import (
	"context"
)

// ExchangeWorker defines the interface for exchange WebSocket connectors
type ExchangeWorker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}

// PriceLimitSource fetches the current price limit of an instrument.
type PriceLimitSource interface {
	GetPriceLimit(ctx context.Context, instrumentID string) (PriceLimit, error)
}

// ResyncJournal records resynchronizations for post-mortem analysis.
type ResyncJournal interface {
	RecordResync(rec ResyncRecord) error
}
