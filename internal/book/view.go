package book

import (
	"depth_go/internal/domain"
)

// View is an immutable, fully applied picture of a ladder.
// Slices returned by its accessors are shared and must not be modified.
type View struct {
	instrumentID string
	sequenceID   int64
	state        domain.SyncState
	bids         []domain.PriceLevel
	asks         []domain.PriceLevel
	updatedUnixM int64
}

// NewView builds a view directly from levels. Levels must already be
// ordered (bids descending, asks ascending) and unique per price.
// Used by tests and by callers replaying recorded books.
func NewView(instrumentID string, seq int64, state domain.SyncState, bids, asks []domain.PriceLevel) *View {
	return &View{
		instrumentID: instrumentID,
		sequenceID:   seq,
		state:        state,
		bids:         bids,
		asks:         asks,
	}
}

func (v *View) InstrumentID() string        { return v.instrumentID }
func (v *View) SequenceID() int64           { return v.sequenceID }
func (v *View) State() domain.SyncState     { return v.state }
func (v *View) UpdatedUnixM() int64         { return v.updatedUnixM }
func (v *View) Asks() []domain.PriceLevel   { return v.asks }
func (v *View) Bids() []domain.PriceLevel   { return v.bids }
func (v *View) IsSynced() bool              { return v != nil && v.state == domain.SyncSynced }

// BestBid returns the highest bid.
func (v *View) BestBid() (domain.PriceLevel, bool) {
	if len(v.bids) == 0 {
		return domain.PriceLevel{}, false
	}
	return v.bids[0], true
}

// BestAsk returns the lowest ask.
func (v *View) BestAsk() (domain.PriceLevel, bool) {
	if len(v.asks) == 0 {
		return domain.PriceLevel{}, false
	}
	return v.asks[0], true
}

// Quote returns the best bid/ask pair for quote publication.
func (v *View) Quote() domain.Quote {
	q := domain.Quote{
		InstrumentID: v.instrumentID,
		SequenceID:   v.sequenceID,
		State:        v.state,
	}
	if bid, ok := v.BestBid(); ok {
		q.BestBid, q.BestBidQty, q.HasBid = bid.Price, bid.Quantity, true
	}
	if ask, ok := v.BestAsk(); ok {
		q.BestAsk, q.BestAskQty, q.HasAsk = ask.Price, ask.Quantity, true
	}
	return q
}
