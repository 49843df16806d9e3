package event

import (
	"depth_go/internal/domain"
)

// Type identifies the concrete event carried on an instrument inbox.
type Type int

const (
	TypeBookUpdate Type = iota + 1
	TypeConnection
	TypePriceLimit
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case TypeBookUpdate:
		return "BOOK_UPDATE"
	case TypeConnection:
		return "CONNECTION"
	case TypePriceLimit:
		return "PRICE_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// Event is anything the transport hands to the engine for one instrument.
type Event interface {
	GetType() Type
	GetInstrumentID() string
}

// BookUpdateEvent carries one order-book message.
type BookUpdateEvent struct {
	Update *domain.BookUpdate
}

func (e *BookUpdateEvent) GetType() Type { return TypeBookUpdate }

func (e *BookUpdateEvent) GetInstrumentID() string {
	if e.Update == nil {
		return ""
	}
	return e.Update.InstrumentID
}

// ConnectionStatus is the state change reported by the transport.
type ConnectionStatus int

const (
	ConnectionLost ConnectionStatus = iota + 1
	ConnectionResumed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case ConnectionLost:
		return "connection_lost"
	case ConnectionResumed:
		return "connection_resumed"
	default:
		return "unknown"
	}
}

// ConnectionEvent reports that the stream feeding an instrument broke or
// came back. Either way the local book can no longer be trusted.
type ConnectionEvent struct {
	InstrumentID string
	Status       ConnectionStatus
}

func (e *ConnectionEvent) GetType() Type           { return TypeConnection }
func (e *ConnectionEvent) GetInstrumentID() string { return e.InstrumentID }

// PriceLimitEvent carries a refreshed price limit.
type PriceLimitEvent struct {
	Limit domain.PriceLimit
}

func (e *PriceLimitEvent) GetType() Type           { return TypePriceLimit }
func (e *PriceLimitEvent) GetInstrumentID() string { return e.Limit.InstrumentID }
