// Package pricing computes fill-or-kill limit prices from a published book view.
//
// Everything here is pure: no I/O, no mutation, same inputs give the same
// price. The book view and the price limit are read-only snapshots supplied
// by the caller.
package pricing

import (
	"depth_go/internal/book"
	"depth_go/internal/domain"

	"github.com/shopspring/decimal"
)

// CalculateFokLimitPrice returns the limit price for a fill-or-kill buy of
// quantity: the price of the deepest ask level that must be consumed,
// capped at the buy limit when the limit is enabled.
//
// If visible depth is insufficient the deepest ask price is returned as a
// best effort; callers must not request more than is reasonably fillable.
func CalculateFokLimitPrice(view *book.View, quantity decimal.Decimal, limit *domain.PriceLimit) (decimal.Decimal, error) {
	return CalculateFokLimitPriceSide(view, domain.SideBuy, quantity, limit)
}

// CalculateFokLimitPriceSide is CalculateFokLimitPrice for either side.
// Sells walk bids from the highest price down and are raised to the sell
// limit when the walked price falls below it.
func CalculateFokLimitPriceSide(view *book.View, side domain.Side, quantity decimal.Decimal, limit *domain.PriceLimit) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, domain.ErrInvalidQuantity
	}
	if view == nil || !view.IsSynced() {
		return decimal.Zero, domain.ErrNoOrderBook
	}

	var levels []domain.PriceLevel
	switch side {
	case domain.SideBuy:
		levels = view.Asks()
	case domain.SideSell:
		levels = view.Bids()
	default:
		return decimal.Zero, domain.ErrInvalidSide
	}
	if len(levels) == 0 {
		return decimal.Zero, domain.ErrNoLiquidity
	}

	worst := WalkDepth(levels, quantity).WorstPrice

	if side == domain.SideBuy {
		return limit.ClampBuy(worst), nil
	}
	return limit.ClampSell(worst), nil
}

// Walk is the outcome of consuming levels until a quantity is covered.
type Walk struct {
	WorstPrice  decimal.Decimal
	Accumulated decimal.Decimal
	Levels      int  // levels consumed, including the last partial one
	Filled      bool // false when visible depth ran out first
}

// WalkDepth consumes levels in order until the accumulated quantity
// reaches quantity. An exact match stops on that level.
func WalkDepth(levels []domain.PriceLevel, quantity decimal.Decimal) Walk {
	w := Walk{Accumulated: decimal.Zero}
	if len(levels) == 0 {
		return w
	}
	w.WorstPrice = levels[0].Price
	for _, lvl := range levels {
		w.WorstPrice = lvl.Price
		w.Accumulated = w.Accumulated.Add(lvl.Quantity)
		w.Levels++
		if w.Accumulated.GreaterThanOrEqual(quantity) {
			w.Filled = true
			break
		}
	}
	return w
}
