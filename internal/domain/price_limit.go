package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceLimit is the exchange-imposed band for orders on one instrument.
// It is owned by the price-limit synchronizer; the pricing path only reads it.
type PriceLimit struct {
	InstrumentID string          `json:"inst_id"`
	BuyLimit     decimal.Decimal `json:"buy_limit"`  // highest allowed buy price
	SellLimit    decimal.Decimal `json:"sell_limit"` // lowest allowed sell price
	Enabled      bool            `json:"enabled"`
	AsOf         time.Time       `json:"as_of"`
}

// ClampBuy caps a buy price at BuyLimit when the limit is enabled.
func (p *PriceLimit) ClampBuy(price decimal.Decimal) decimal.Decimal {
	if p == nil || !p.Enabled {
		return price
	}
	if price.GreaterThan(p.BuyLimit) {
		return p.BuyLimit
	}
	return price
}

// ClampSell raises a sell price to SellLimit when the limit is enabled.
func (p *PriceLimit) ClampSell(price decimal.Decimal) decimal.Decimal {
	if p == nil || !p.Enabled {
		return price
	}
	if price.LessThan(p.SellLimit) {
		return p.SellLimit
	}
	return price
}
