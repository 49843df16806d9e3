package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SyncState is the synchronization state of a local book mirror.
type SyncState int

const (
	SyncUninitialized SyncState = iota
	SyncResyncing
	SyncSynced
)

// String returns the string representation of SyncState
func (s SyncState) String() string {
	switch s {
	case SyncUninitialized:
		return "UNINITIALIZED"
	case SyncResyncing:
		return "RESYNCING"
	case SyncSynced:
		return "SYNCED"
	default:
		return "UNKNOWN"
	}
}

// UpdateKind distinguishes full snapshots from incremental deltas.
type UpdateKind int

const (
	KindSnapshot UpdateKind = iota + 1
	KindIncremental
)

// String returns the string representation of UpdateKind
func (k UpdateKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindIncremental:
		return "incremental"
	default:
		return "unknown"
	}
}

// Side of the book.
type Side int

const (
	SideBuy Side = iota + 1
	SideSell
)

// String returns the string representation of Side
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// PriceLevel is one price/quantity row of a book side.
// RawPrice and RawQuantity keep the exchange's wire text untouched so the
// book checksum can be reproduced byte for byte.
type PriceLevel struct {
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	RawPrice    string          `json:"raw_price"`
	RawQuantity string          `json:"raw_quantity"`
}

// ParsePriceLevel builds a PriceLevel from the wire strings.
func ParsePriceLevel(rawPrice, rawQuantity string) (PriceLevel, error) {
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("%w: price %q", ErrMalformedLevel, rawPrice)
	}
	qty, err := decimal.NewFromString(rawQuantity)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("%w: quantity %q", ErrMalformedLevel, rawQuantity)
	}
	if price.IsNegative() || qty.IsNegative() {
		return PriceLevel{}, fmt.Errorf("%w: negative value %q:%q", ErrMalformedLevel, rawPrice, rawQuantity)
	}
	return PriceLevel{Price: price, Quantity: qty, RawPrice: rawPrice, RawQuantity: rawQuantity}, nil
}

// MustLevel is ParsePriceLevel for literals. It panics on malformed input.
func MustLevel(rawPrice, rawQuantity string) PriceLevel {
	l, err := ParsePriceLevel(rawPrice, rawQuantity)
	if err != nil {
		panic(err)
	}
	return l
}

// IsRemoval reports whether the level is the zero-quantity delete sentinel.
func (l PriceLevel) IsRemoval() bool {
	return l.Quantity.IsZero()
}

// BookUpdate is one inbound order-book message for a single instrument.
type BookUpdate struct {
	InstrumentID string
	Kind         UpdateKind
	SequenceID   int64
	// PrevSequenceID links an incremental to its predecessor when the
	// exchange provides it. nil means contiguous ids (seq == last+1).
	PrevSequenceID *int64
	Checksum       *int64
	Bids           []PriceLevel
	Asks           []PriceLevel
	// ReceivedUnixM is the local receive time in unix microseconds.
	ReceivedUnixM int64
}

// IsSnapshot reports whether the update replaces the whole book.
func (u *BookUpdate) IsSnapshot() bool {
	return u.Kind == KindSnapshot
}
