package types

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MaxTickAge is the staleness bound for an accepted price tick (§4.6/§8).
const MaxTickAge = 10 * time.Second

// PriceData is a single tick from an exchange for a symbol.
type PriceData struct {
	Exchange  string
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	Last      decimal.Decimal
	Volume24h decimal.Decimal
	Timestamp time.Time
	Sequence  uint64
}

// Age returns how long ago the tick was produced, relative to now.
func (p *PriceData) Age(now time.Time) time.Duration {
	return now.Sub(p.Timestamp)
}

// Validate enforces the invariants of §3/§8 invariant 1: 0 < bid <=
// last <= ask, and the tick is not older than MaxTickAge.
func (p *PriceData) Validate(now time.Time) error {
	if p.Bid.IsZero() || p.Bid.IsNegative() {
		return errors.New("pricefeed: bid must be positive")
	}
	if p.Ask.IsZero() || p.Ask.IsNegative() {
		return errors.New("pricefeed: ask must be positive")
	}
	if p.Bid.GreaterThan(p.Ask) {
		return errors.New("pricefeed: bid exceeds ask")
	}
	if p.Last.LessThan(p.Bid) || p.Last.GreaterThan(p.Ask) {
		return errors.New("pricefeed: last outside bid/ask range")
	}
	if p.Age(now) > MaxTickAge {
		return errors.New("pricefeed: tick is stale")
	}
	return nil
}

// OrderBookLevel is a single (price, quantity) rung of a book.
type OrderBookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBookSnapshot is a point-in-time view of an order book.
type OrderBookSnapshot struct {
	Exchange  string
	Symbol    string
	Bids      []OrderBookLevel
	Asks      []OrderBookLevel
	Timestamp time.Time
	Sequence  uint64
}

// Validate enforces §3/§8 invariant 2: bids strictly descending,
// asks strictly ascending, positive quantities throughout.
func (o *OrderBookSnapshot) Validate() error {
	for i, lvl := range o.Bids {
		if lvl.Quantity.IsZero() || lvl.Quantity.IsNegative() {
			return errors.New("orderbook: bid quantity must be positive")
		}
		if i > 0 && !o.Bids[i-1].Price.GreaterThan(lvl.Price) {
			return errors.New("orderbook: bids not strictly descending")
		}
	}
	for i, lvl := range o.Asks {
		if lvl.Quantity.IsZero() || lvl.Quantity.IsNegative() {
			return errors.New("orderbook: ask quantity must be positive")
		}
		if i > 0 && !o.Asks[i-1].Price.LessThan(lvl.Price) {
			return errors.New("orderbook: asks not strictly ascending")
		}
	}
	return nil
}

// BestBid returns the top bid level, or false if the book is empty.
func (o *OrderBookSnapshot) BestBid() (OrderBookLevel, bool) {
	if len(o.Bids) == 0 {
		return OrderBookLevel{}, false
	}
	return o.Bids[0], true
}

// BestAsk returns the top ask level, or false if the book is empty.
func (o *OrderBookSnapshot) BestAsk() (OrderBookLevel, bool) {
	if len(o.Asks) == 0 {
		return OrderBookLevel{}, false
	}
	return o.Asks[0], true
}
