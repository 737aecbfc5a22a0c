package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the holdings snapshot for one market. Quantities and costs only
// grow through recorded BUY fills; the strategy never sells before resolution.
type Position struct {
	QtyUp    decimal.Decimal
	QtyDown  decimal.Decimal
	CostUp   decimal.Decimal
	CostDown decimal.Decimal
}

// QtyFor returns the held quantity on the given side.
func (p Position) QtyFor(side Side) decimal.Decimal {
	if side == SideUp {
		return p.QtyUp
	}
	return p.QtyDown
}

// CostFor returns the cumulative spend on the given side.
func (p Position) CostFor(side Side) decimal.Decimal {
	if side == SideUp {
		return p.CostUp
	}
	return p.CostDown
}

// AvgFor returns the running average entry price for a side, or zero when
// nothing is held on that side.
func (p Position) AvgFor(side Side) decimal.Decimal {
	qty := p.QtyFor(side)
	if qty.IsZero() {
		return decimal.Zero
	}
	return p.CostFor(side).Div(qty)
}

// TotalCost is the cumulative spend across both sides, excluding fees.
func (p Position) TotalCost() decimal.Decimal {
	return p.CostUp.Add(p.CostDown)
}

// Flat reports whether nothing is held on either side.
func (p Position) Flat() bool {
	return p.QtyUp.IsZero() && p.QtyDown.IsZero()
}

// Delta is the normalized imbalance between the two sides in percent, in
// [0,100]. A flat position has delta 0.
func (p Position) Delta() decimal.Decimal {
	total := p.QtyUp.Add(p.QtyDown)
	if total.IsZero() {
		return decimal.Zero
	}
	return p.QtyUp.Sub(p.QtyDown).Abs().Div(total).Mul(decimal.New(100, 0))
}

// PairCost is the sum of the average entry prices on both sides. It is only
// defined once both sides hold at least one share; ok is false otherwise.
func (p Position) PairCost() (pair decimal.Decimal, ok bool) {
	if p.QtyUp.IsZero() || p.QtyDown.IsZero() {
		return decimal.Zero, false
	}
	return p.AvgFor(SideUp).Add(p.AvgFor(SideDown)), true
}

// ScenarioPnL computes the payout scenarios for the position given the fees
// paid to date. It is recomputed on demand and never cached.
func (p Position) ScenarioPnL(feesToDate decimal.Decimal) ScenarioPnL {
	spent := p.TotalCost().Add(feesToDate)
	ifUp := p.QtyUp.Sub(spent)
	ifDown := p.QtyDown.Sub(spent)
	locked := ifUp
	if ifDown.LessThan(locked) {
		locked = ifDown
	}
	return ScenarioPnL{IfUp: ifUp, IfDown: ifDown, Locked: locked}
}

// ScenarioPnL holds the profit outcome for each possible resolution. Locked
// is the worse of the two, i.e. the PnL guaranteed regardless of outcome.
type ScenarioPnL struct {
	IfUp   decimal.Decimal
	IfDown decimal.Decimal
	Locked decimal.Decimal
}

// Trade is one simulated fill, immutable once recorded by the ledger.
type Trade struct {
	ID        string
	MarketID  string
	Side      Side
	Qty       decimal.Decimal
	Price     decimal.Decimal
	Fee       decimal.Decimal
	Timestamp time.Time
}

// Notional returns the dollar value of the fill excluding the fee.
func (t Trade) Notional() decimal.Decimal {
	return t.Qty.Mul(t.Price)
}
