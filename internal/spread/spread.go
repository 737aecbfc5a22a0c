// Package spread turns a market snapshot into a deviation classification and
// a cheaper-side signal. Analysis is a pure function of the snapshot.
package spread

import (
	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Thresholds configures the deviation tiers. A deviation at or above a
// threshold counts as that tier.
type Thresholds struct {
	Normal  decimal.Decimal
	High    decimal.Decimal
	Extreme decimal.Decimal
}

// DefaultThresholds returns the standard 0.05 / 0.15 / 0.25 tiers.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Normal:  decimal.NewFromFloat(0.05),
		High:    decimal.NewFromFloat(0.15),
		Extreme: decimal.NewFromFloat(0.25),
	}
}

// Analyzer classifies price-sum deviation for snapshots.
type Analyzer struct {
	thresholds Thresholds
}

// NewAnalyzer creates an Analyzer with the given tier thresholds.
func NewAnalyzer(t Thresholds) *Analyzer {
	return &Analyzer{thresholds: t}
}

// Analyze computes |1.00 - (price_up + price_down)|, its category, and which
// side is cheaper. Ties on price break toward UP so the signal stays
// deterministic.
func (a *Analyzer) Analyze(snap domain.MarketSnapshot) domain.SpreadSignal {
	one := decimal.New(1, 0)
	deviation := one.Sub(snap.PriceUp.Add(snap.PriceDown)).Abs()

	category := domain.SpreadNormal
	switch {
	case deviation.GreaterThanOrEqual(a.thresholds.Extreme):
		category = domain.SpreadExtreme
	case deviation.GreaterThanOrEqual(a.thresholds.High):
		category = domain.SpreadHigh
	}

	cheaper := domain.SideUp
	if snap.PriceDown.LessThan(snap.PriceUp) {
		cheaper = domain.SideDown
	}

	return domain.SpreadSignal{
		Deviation:   deviation,
		Category:    category,
		CheaperSide: cheaper,
		Elevated:    deviation.GreaterThanOrEqual(a.thresholds.Normal),
	}
}
