package domain

import (
	"time"
)

// ResyncRecord is one journaled resynchronization of an instrument's book.
type ResyncRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	InstrumentID string    `json:"inst_id" gorm:"index"`
	Reason       string    `json:"reason" gorm:"index"` // gap, checksum, connection_lost, buffer_overflow, replay_failed
	SequenceID   int64     `json:"seq_id"`              // last accepted sequence id when the resync started
	Detail       string    `json:"detail"`
	CreatedAt    time.Time `json:"created_at"`
}

// PriceLimitRecord is the last known price limit of an instrument.
// Decimals are stored as wire strings to avoid float rounding in SQLite.
type PriceLimitRecord struct {
	InstrumentID string    `gorm:"primaryKey" json:"inst_id"`
	BuyLimit     string    `json:"buy_limit"`
	SellLimit    string    `json:"sell_limit"`
	Enabled      bool      `json:"enabled"`
	AsOf         time.Time `json:"as_of"`
	UpdatedAt    time.Time `json:"updated_at"`
}
