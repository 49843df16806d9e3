package book

import (
	"sort"

	"depth_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Ladder is the writer-side, mutable mirror of one instrument's book.
// It is owned by a single goroutine; readers only ever see a View.
type Ladder struct {
	instrumentID string
	bids         []domain.PriceLevel // price descending
	asks         []domain.PriceLevel // price ascending
	lastSeq      int64
	state        domain.SyncState
}

// NewLadder creates an empty, uninitialized ladder.
func NewLadder(instrumentID string) *Ladder {
	return &Ladder{
		instrumentID: instrumentID,
		state:        domain.SyncUninitialized,
	}
}

// InstrumentID returns the instrument the ladder mirrors.
func (l *Ladder) InstrumentID() string { return l.instrumentID }

// LastSequenceID returns the sequence id of the last applied update.
func (l *Ladder) LastSequenceID() int64 { return l.lastSeq }

// State returns the synchronization state.
func (l *Ladder) State() domain.SyncState { return l.state }

// Depth returns the number of levels per side.
func (l *Ladder) Depth() (bids, asks int) { return len(l.bids), len(l.asks) }

// ApplySnapshot replaces both sides wholesale. Zero-quantity levels are
// skipped, never inserted. A snapshot is authoritative: it is accepted
// regardless of the previous sequence id and leaves the ladder Synced.
func (l *Ladder) ApplySnapshot(u *domain.BookUpdate) {
	l.bids = buildSide(u.Bids, true)
	l.asks = buildSide(u.Asks, false)
	l.lastSeq = u.SequenceID
	l.state = domain.SyncSynced
}

// ApplyIncremental applies deltas: quantity 0 removes the price (no-op when
// absent), anything else inserts or overwrites it. The caller must have
// accepted the message through the sequence validator first.
func (l *Ladder) ApplyIncremental(u *domain.BookUpdate) {
	for _, lvl := range u.Bids {
		l.bids = upsert(l.bids, lvl, true)
	}
	for _, lvl := range u.Asks {
		l.asks = upsert(l.asks, lvl, false)
	}
	l.lastSeq = u.SequenceID
}

// MarkResyncing flags the ladder as unusable for pricing until the next snapshot.
// Levels are kept so a post-mortem dump still shows the diverged book.
func (l *Ladder) MarkResyncing() {
	l.state = domain.SyncResyncing
}

// Reset drops all levels and returns the ladder to Uninitialized.
func (l *Ladder) Reset() {
	l.bids = nil
	l.asks = nil
	l.lastSeq = 0
	l.state = domain.SyncUninitialized
}

// Levels returns copies of both sides regardless of state, for state dumps.
func (l *Ladder) Levels() (bids, asks []domain.PriceLevel) {
	return append([]domain.PriceLevel(nil), l.bids...), append([]domain.PriceLevel(nil), l.asks...)
}

// Checksum computes the book checksum over the top depth levels.
func (l *Ladder) Checksum(depth int) int32 {
	return Checksum(l.bids, l.asks, depth)
}

// View builds an immutable copy for publication. The copy is what makes
// readers wait-free: the writer keeps mutating its own slices afterwards.
func (l *Ladder) View(updatedUnixM int64) *View {
	v := &View{
		instrumentID: l.instrumentID,
		sequenceID:   l.lastSeq,
		state:        l.state,
		updatedUnixM: updatedUnixM,
	}
	if l.state == domain.SyncSynced {
		v.bids = append([]domain.PriceLevel(nil), l.bids...)
		v.asks = append([]domain.PriceLevel(nil), l.asks...)
	}
	return v
}

// buildSide filters removals, sorts, and keeps the last occurrence of a
// duplicated price.
func buildSide(levels []domain.PriceLevel, desc bool) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if lvl.IsRemoval() {
			continue
		}
		out = append(out, lvl)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})

	// dedupe in place, last write wins (stable sort preserves arrival order)
	n := 0
	for i := range out {
		if n > 0 && out[n-1].Price.Equal(out[i].Price) {
			out[n-1] = out[i]
			continue
		}
		out[n] = out[i]
		n++
	}
	return out[:n]
}

func upsert(side []domain.PriceLevel, lvl domain.PriceLevel, desc bool) []domain.PriceLevel {
	i := search(side, lvl.Price, desc)
	found := i < len(side) && side[i].Price.Equal(lvl.Price)

	if lvl.IsRemoval() {
		if !found {
			return side
		}
		return append(side[:i], side[i+1:]...)
	}

	if found {
		side[i] = lvl
		return side
	}

	side = append(side, domain.PriceLevel{})
	copy(side[i+1:], side[i:])
	side[i] = lvl
	return side
}

// search returns the index of price, or where it would be inserted.
func search(side []domain.PriceLevel, price decimal.Decimal, desc bool) int {
	if desc {
		return sort.Search(len(side), func(i int) bool {
			return side[i].Price.LessThanOrEqual(price)
		})
	}
	return sort.Search(len(side), func(i int) bool {
		return side[i].Price.GreaterThanOrEqual(price)
	})
}
