package engine

import (
	"depth_go/internal/domain"
)

// Decision is the validator's verdict on one update.
type Decision int

const (
	// Accept means the update may be applied to the ladder.
	Accept Decision = iota + 1
	// Drop means the update is stale and must be ignored.
	Drop
	// Gap means at least one update was missed; the book must be resynced.
	Gap
)

// String returns the string representation of Decision
func (d Decision) String() string {
	switch d {
	case Accept:
		return "ACCEPT"
	case Drop:
		return "DROP"
	case Gap:
		return "GAP"
	default:
		return "UNKNOWN"
	}
}

// Validate classifies u against the last applied sequence id.
//
// Snapshots are always accepted. When the exchange links messages through
// PrevSequenceID, a message linked to last is accepted unless its own id went
// backwards: that is a sequence reset and only a fresh snapshot can follow it.
// Otherwise an incremental with seq <= last is stale, and anything that does
// not directly follow last is a gap.
func Validate(last int64, u *domain.BookUpdate) Decision {
	if u.IsSnapshot() {
		return Accept
	}
	if u.PrevSequenceID != nil && *u.PrevSequenceID == last {
		if u.SequenceID < last {
			return Gap
		}
		return Accept
	}
	if u.SequenceID <= last {
		return Drop
	}
	if u.PrevSequenceID != nil {
		return Gap
	}
	if u.SequenceID == last+1 {
		return Accept
	}
	return Gap
}
