package domain

import "github.com/shopspring/decimal"

// Quote is the top of book for one instrument, as published to readers.
type Quote struct {
	InstrumentID string          `json:"inst_id"`
	BestBid      decimal.Decimal `json:"best_bid"`
	BestBidQty   decimal.Decimal `json:"best_bid_qty"`
	BestAsk      decimal.Decimal `json:"best_ask"`
	BestAskQty   decimal.Decimal `json:"best_ask_qty"`
	SequenceID   int64           `json:"seq_id"`
	State        SyncState       `json:"state"`
	HasBid       bool            `json:"has_bid"`
	HasAsk       bool            `json:"has_ask"`
}

// Mid returns (bid+ask)/2, or nil when either side is missing.
func (q *Quote) Mid() *decimal.Decimal {
	if !q.HasBid || !q.HasAsk {
		return nil
	}
	mid := q.BestBid.Add(q.BestAsk).Div(decimal.NewFromInt(2))
	return &mid
}

// Spread returns ask-bid, or nil when either side is missing.
func (q *Quote) Spread() *decimal.Decimal {
	if !q.HasBid || !q.HasAsk {
		return nil
	}
	spread := q.BestAsk.Sub(q.BestBid)
	return &spread
}

// SpreadBps returns the spread in basis points of mid.
func (q *Quote) SpreadBps() *decimal.Decimal {
	mid := q.Mid()
	if mid == nil || mid.IsZero() {
		return nil
	}
	bps := q.Spread().Div(*mid).Mul(decimal.NewFromInt(10000))
	return &bps
}

// IsCrossed reports a bid at or above the ask, which a synced book never shows.
func (q *Quote) IsCrossed() bool {
	return q.HasBid && q.HasAsk && q.BestBid.GreaterThanOrEqual(q.BestAsk)
}
