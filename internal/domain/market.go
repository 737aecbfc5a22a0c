package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies one leg of a binary outcome market.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

// Opposite returns the other leg of the market.
func (s Side) Opposite() Side {
	if s == SideUp {
		return SideDown
	}
	return SideUp
}

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideUp || s == SideDown
}

// PriceLevel is a single price+size entry in an orderbook ladder.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is one token's ladder, best price first.
type OrderBook struct {
	AssetID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// BestAsk returns the lowest ask level; ok is false when the side is empty.
func (b OrderBook) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// BestBid returns the highest bid level; ok is false when the side is empty.
func (b OrderBook) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// MarketSnapshot is a two-sided view of a binary market at one instant: mid
// prices plus the bid/ask ladders for both outcome tokens.
type MarketSnapshot struct {
	MarketID  string
	PriceUp   decimal.Decimal
	PriceDown decimal.Decimal
	BidsUp    []PriceLevel
	AsksUp    []PriceLevel
	BidsDown  []PriceLevel
	AsksDown  []PriceLevel
	Timestamp time.Time
}

// PriceFor returns the mid price of the given side.
func (m MarketSnapshot) PriceFor(side Side) decimal.Decimal {
	if side == SideUp {
		return m.PriceUp
	}
	return m.PriceDown
}

// AsksFor returns the ask ladder of the given side.
func (m MarketSnapshot) AsksFor(side Side) []PriceLevel {
	if side == SideUp {
		return m.AsksUp
	}
	return m.AsksDown
}

// Validate checks that the snapshot carries enough data to trade on. A failed
// validation means the tick must be skipped, never that anything is fatal.
func (m MarketSnapshot) Validate() error {
	if m.MarketID == "" {
		return fmt.Errorf("snapshot: missing market id: %w", ErrInvalidSnapshot)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("snapshot %s: missing timestamp: %w", m.MarketID, ErrInvalidSnapshot)
	}
	one := decimal.New(1, 0)
	if m.PriceUp.LessThanOrEqual(decimal.Zero) || m.PriceUp.GreaterThanOrEqual(one) {
		return fmt.Errorf("snapshot %s: UP price %s outside (0,1): %w",
			m.MarketID, m.PriceUp.String(), ErrInvalidSnapshot)
	}
	if m.PriceDown.LessThanOrEqual(decimal.Zero) || m.PriceDown.GreaterThanOrEqual(one) {
		return fmt.Errorf("snapshot %s: DOWN price %s outside (0,1): %w",
			m.MarketID, m.PriceDown.String(), ErrInvalidSnapshot)
	}
	return nil
}
