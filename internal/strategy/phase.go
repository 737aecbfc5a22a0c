// Package strategy implements the phased trading decision engine. The phase
// is re-derived from the current position, delta, and spread on every tick;
// nothing here enforces risk limits, which keeps the phase logic and the
// governor independently testable.
package strategy

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Tier maps a maximum entry price to the notional to commit at that price.
type Tier struct {
	MaxPrice decimal.Decimal
	Notional decimal.Decimal
}

// Config holds the phase-selection parameters.
type Config struct {
	StopLossLimit         decimal.Decimal // negative
	DeltaRebalance        decimal.Decimal // percent; above this, rebalance
	DeltaCritical         decimal.Decimal // percent; display urgency only
	DeltaEmergency        decimal.Decimal // percent; larger side suspended
	EmergencyPriceCeiling decimal.Decimal // allowed price when forcing rebalance
	ArbNotionalHigh       decimal.Decimal
	ArbNotionalExtreme    decimal.Decimal
	ImprovementDiscount   decimal.Decimal // e.g. 0.95: buy at <= 95% of avg
	EntryTiers            []Tier          // ordered by ascending MaxPrice
}

// DefaultEntryTiers returns the standard price-to-notional table.
func DefaultEntryTiers() []Tier {
	return []Tier{
		{MaxPrice: decimal.NewFromFloat(0.40), Notional: decimal.New(20, 0)},
		{MaxPrice: decimal.NewFromFloat(0.50), Notional: decimal.New(15, 0)},
		{MaxPrice: decimal.NewFromFloat(0.60), Notional: decimal.New(10, 0)},
	}
}

// Decision is the outcome of one phase evaluation.
type Decision struct {
	Phase  domain.Phase
	Intent *domain.TradeIntent
	// Improvement is the projected avg-cost reduction for IMPROVEMENT ticks.
	// Reported as a side datum, never used for control flow.
	Improvement decimal.Decimal
	Reason      string
}

// Engine selects the phase and trade intent for each tick.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// NewEngine creates a phase engine with the given parameters.
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "phase_engine")),
	}
}

// Evaluate picks the phase for the current tick, top to bottom, first match
// wins: HALTED, REBALANCING (emergency, then normal), ARBITRAGE, IMPROVEMENT,
// ENTRY. The returned intent, if any, must still pass the risk governor.
func (e *Engine) Evaluate(pos domain.Position, feesPaid decimal.Decimal, sig domain.SpreadSignal, snap domain.MarketSnapshot) Decision {
	locked := pos.ScenarioPnL(feesPaid).Locked
	if locked.LessThan(e.cfg.StopLossLimit) {
		return Decision{
			Phase:  domain.PhaseHalted,
			Reason: fmt.Sprintf("locked profit %s below stop loss %s", locked.StringFixed(2), e.cfg.StopLossLimit.StringFixed(2)),
		}
	}

	delta := pos.Delta()
	if delta.GreaterThan(e.cfg.DeltaEmergency) {
		return e.rebalance(pos, snap, true)
	}
	if delta.GreaterThan(e.cfg.DeltaRebalance) {
		return e.rebalance(pos, snap, false)
	}

	if sig.Category == domain.SpreadHigh || sig.Category == domain.SpreadExtreme {
		return e.arbitrage(sig, snap)
	}

	if d, ok := e.improvement(pos, snap); ok {
		return d
	}

	return e.entry(sig, snap)
}

// rebalance buys the smaller side. In an emergency the allowed price is
// raised to the configured ceiling so the rebalance can be forced through.
func (e *Engine) rebalance(pos domain.Position, snap domain.MarketSnapshot, emergency bool) Decision {
	side := domain.SideUp
	if pos.QtyDown.LessThan(pos.QtyUp) {
		side = domain.SideDown
	}
	price := snap.PriceFor(side)

	reason := "rebalance"
	if emergency {
		reason = "rebalance_emergency"
	}

	ceiling := e.maxEntryPrice()
	notional := e.tierNotional(price)
	if emergency {
		if e.cfg.EmergencyPriceCeiling.GreaterThan(ceiling) {
			ceiling = e.cfg.EmergencyPriceCeiling
		}
		if notional.IsZero() && price.LessThanOrEqual(ceiling) {
			// Above the tier table but inside the emergency ceiling: commit
			// the smallest tier so the imbalance still gets worked down.
			notional = e.smallestTierNotional()
		}
	}
	if price.GreaterThan(ceiling) || notional.IsZero() {
		return Decision{Phase: domain.PhaseRebalancing, Reason: reason + " (price outside limits)"}
	}

	return Decision{
		Phase:  domain.PhaseRebalancing,
		Reason: reason,
		Intent: &domain.TradeIntent{Side: side, Notional: notional, Price: price, Reason: reason},
	}
}

// arbitrage buys the cheaper side on a wide spread, sized by category.
func (e *Engine) arbitrage(sig domain.SpreadSignal, snap domain.MarketSnapshot) Decision {
	notional := e.cfg.ArbNotionalHigh
	if sig.Category == domain.SpreadExtreme {
		notional = e.cfg.ArbNotionalExtreme
	}
	price := snap.PriceFor(sig.CheaperSide)
	reason := fmt.Sprintf("arbitrage %s spread %s", sig.Category, sig.Deviation.StringFixed(3))
	return Decision{
		Phase:  domain.PhaseArbitrage,
		Reason: reason,
		Intent: &domain.TradeIntent{Side: sig.CheaperSide, Notional: notional, Price: price, Reason: reason},
	}
}

// improvement buys a held side whose current price sits at or below the
// configured fraction of its running average, lowering the average. When both
// sides qualify the deeper discount wins; ties break toward UP.
func (e *Engine) improvement(pos domain.Position, snap domain.MarketSnapshot) (Decision, bool) {
	var best domain.Side
	var bestDiscount decimal.Decimal
	found := false
	for _, side := range []domain.Side{domain.SideUp, domain.SideDown} {
		if pos.QtyFor(side).IsZero() {
			continue
		}
		avg := pos.AvgFor(side)
		price := snap.PriceFor(side)
		if price.GreaterThan(avg.Mul(e.cfg.ImprovementDiscount)) {
			continue
		}
		discount := avg.Sub(price)
		if !found || discount.GreaterThan(bestDiscount) {
			best, bestDiscount, found = side, discount, true
		}
	}
	if !found {
		return Decision{}, false
	}

	price := snap.PriceFor(best)
	notional := e.tierNotional(price)
	if notional.IsZero() {
		return Decision{}, false
	}

	improvement := e.projectedImprovement(pos, best, notional, price)
	reason := fmt.Sprintf("improve %s avg by %s", best, improvement.StringFixed(4))
	return Decision{
		Phase:       domain.PhaseImprovement,
		Reason:      reason,
		Improvement: improvement,
		Intent:      &domain.TradeIntent{Side: best, Notional: notional, Price: price, Reason: reason},
	}, true
}

// entry buys the cheaper side when its price clears the tier table.
func (e *Engine) entry(sig domain.SpreadSignal, snap domain.MarketSnapshot) Decision {
	price := snap.PriceFor(sig.CheaperSide)
	notional := e.tierNotional(price)
	if notional.IsZero() {
		return Decision{Phase: domain.PhaseEntry, Reason: "entry (price above tiers)"}
	}
	reason := fmt.Sprintf("entry %s at %s", sig.CheaperSide, price.StringFixed(3))
	return Decision{
		Phase:  domain.PhaseEntry,
		Reason: reason,
		Intent: &domain.TradeIntent{Side: sig.CheaperSide, Notional: notional, Price: price, Reason: reason},
	}
}

// tierNotional returns the notional for the first tier whose MaxPrice admits
// the given price, or zero when the price is above every tier.
func (e *Engine) tierNotional(price decimal.Decimal) decimal.Decimal {
	for _, t := range e.cfg.EntryTiers {
		if price.LessThanOrEqual(t.MaxPrice) {
			return t.Notional
		}
	}
	return decimal.Zero
}

func (e *Engine) maxEntryPrice() decimal.Decimal {
	if len(e.cfg.EntryTiers) == 0 {
		return decimal.Zero
	}
	return e.cfg.EntryTiers[len(e.cfg.EntryTiers)-1].MaxPrice
}

func (e *Engine) smallestTierNotional() decimal.Decimal {
	if len(e.cfg.EntryTiers) == 0 {
		return decimal.Zero
	}
	return e.cfg.EntryTiers[len(e.cfg.EntryTiers)-1].Notional
}

// projectedImprovement estimates old_avg - new_avg assuming a full fill of
// notional at price.
func (e *Engine) projectedImprovement(pos domain.Position, side domain.Side, notional, price decimal.Decimal) decimal.Decimal {
	oldAvg := pos.AvgFor(side)
	qtyAdd := notional.Div(price)
	newAvg := pos.CostFor(side).Add(notional).Div(pos.QtyFor(side).Add(qtyAdd))
	return oldAvg.Sub(newAvg)
}
