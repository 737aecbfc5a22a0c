// Package ledger holds the authoritative record of holdings and realized cost
// for one market. RecordFill is the only mutation path; everything else is a
// pure read over the current position.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Ledger tracks one market's position, fee total, and append-only trade log.
// It is safe for concurrent use, though ticks for a market are expected to be
// serialized by the orchestrator anyway.
type Ledger struct {
	mu       sync.Mutex
	marketID string
	pos      domain.Position
	fees     decimal.Decimal
	trades   []domain.Trade
}

// New creates an empty ledger for the given market.
func New(marketID string) *Ledger {
	return &Ledger{marketID: marketID}
}

// RecordFill applies a BUY fill to the position and appends the trade to the
// log. It rejects malformed input (qty <= 0, price outside (0,1], negative
// fee) with ErrInvalidFill and mutates nothing in that case.
func (l *Ledger) RecordFill(side domain.Side, qty, price, fee decimal.Decimal, ts time.Time) (domain.Trade, error) {
	if !side.Valid() {
		return domain.Trade{}, fmt.Errorf("ledger %s: side %q: %w", l.marketID, side, domain.ErrInvalidFill)
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return domain.Trade{}, fmt.Errorf("ledger %s: qty %s must be positive: %w", l.marketID, qty.String(), domain.ErrInvalidFill)
	}
	one := decimal.New(1, 0)
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThan(one) {
		return domain.Trade{}, fmt.Errorf("ledger %s: price %s outside (0,1]: %w", l.marketID, price.String(), domain.ErrInvalidFill)
	}
	if fee.IsNegative() {
		return domain.Trade{}, fmt.Errorf("ledger %s: negative fee %s: %w", l.marketID, fee.String(), domain.ErrInvalidFill)
	}

	trade := domain.Trade{
		ID:        uuid.New().String(),
		MarketID:  l.marketID,
		Side:      side,
		Qty:       qty,
		Price:     price,
		Fee:       fee,
		Timestamp: ts,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	cost := qty.Mul(price)
	if side == domain.SideUp {
		l.pos.QtyUp = l.pos.QtyUp.Add(qty)
		l.pos.CostUp = l.pos.CostUp.Add(cost)
	} else {
		l.pos.QtyDown = l.pos.QtyDown.Add(qty)
		l.pos.CostDown = l.pos.CostDown.Add(cost)
	}
	l.fees = l.fees.Add(fee)
	l.trades = append(l.trades, trade)
	return trade, nil
}

// MarketID returns the market this ledger belongs to.
func (l *Ledger) MarketID() string { return l.marketID }

// Position returns a copy of the current holdings.
func (l *Ledger) Position() domain.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pos
}

// Delta returns the normalized holdings imbalance in percent, 0..100.
func (l *Ledger) Delta() decimal.Decimal {
	return l.Position().Delta()
}

// PairCost returns avg_up + avg_down; ok is false until both sides hold.
func (l *Ledger) PairCost() (decimal.Decimal, bool) {
	return l.Position().PairCost()
}

// FeesPaid returns the cumulative fees recorded so far.
func (l *Ledger) FeesPaid() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fees
}

// ScenarioPnL computes the payout scenarios for the given fees-to-date.
func (l *Ledger) ScenarioPnL(feesToDate decimal.Decimal) domain.ScenarioPnL {
	return l.Position().ScenarioPnL(feesToDate)
}

// LockedProfit is the guaranteed PnL regardless of outcome, using the fees
// recorded in the ledger.
func (l *Ledger) LockedProfit() decimal.Decimal {
	l.mu.Lock()
	pos, fees := l.pos, l.fees
	l.mu.Unlock()
	return pos.ScenarioPnL(fees).Locked
}

// Trades returns a copy of the trade log in record order.
func (l *Ledger) Trades() []domain.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// TradeCount returns the number of recorded fills.
func (l *Ledger) TradeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.trades)
}
