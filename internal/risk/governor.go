// Package risk validates candidate trades against hard limits. The governor
// only accepts, clips, or vetoes; it never mutates position state and never
// increases a requested notional.
package risk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Config holds the tunable risk limits for one market.
type Config struct {
	PerMarketBudget     decimal.Decimal
	PositionCapFraction decimal.Decimal // fraction of budget the position may consume
	ReserveCash         decimal.Decimal // budget that must stay untouched
	StopLossLimit       decimal.Decimal // negative; veto below this locked profit
	PairCostLimit       decimal.Decimal // projected avg_up+avg_down must stay below
	MinTrade            decimal.Decimal // notional dollars
	MaxTrade            decimal.Decimal
	Cooldown            time.Duration
}

// Governor applies the configured limits to candidate trades.
type Governor struct {
	cfg    Config
	logger *slog.Logger
}

// NewGovernor creates a Governor with the given limits.
func NewGovernor(cfg Config, logger *slog.Logger) *Governor {
	return &Governor{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk_governor")),
	}
}

// Approve validates the intent against the current position, in order:
// stop-loss, position cap, reserve cash, pair-cost projection, trade-size
// bounds, cooldown. It returns the (possibly clipped) intent, or an error
// wrapping ErrRiskVeto / ErrStopLoss when the trade must not happen.
func (g *Governor) Approve(
	intent domain.TradeIntent,
	pos domain.Position,
	feesPaid decimal.Decimal,
	lastTradeAt time.Time,
	now time.Time,
) (domain.TradeIntent, error) {
	notional := intent.Notional

	// 1. Stop-loss. Moot when the ledger is still flat.
	if !pos.Flat() {
		locked := pos.ScenarioPnL(feesPaid).Locked
		if locked.LessThan(g.cfg.StopLossLimit) {
			return intent, fmt.Errorf("risk: locked profit %s below stop loss %s: %w",
				locked.StringFixed(2), g.cfg.StopLossLimit.StringFixed(2), domain.ErrStopLoss)
		}
	}

	// 2. Position cap: total cost after the trade stays within the budget fraction.
	spent := pos.TotalCost().Add(feesPaid)
	cap := g.cfg.PositionCapFraction.Mul(g.cfg.PerMarketBudget)
	if spent.Add(notional).GreaterThan(cap) {
		clipped := cap.Sub(spent)
		if clipped.LessThan(g.cfg.MinTrade) {
			return intent, fmt.Errorf("risk: position cap %s reached (spent %s): %w",
				cap.StringFixed(2), spent.StringFixed(2), domain.ErrRiskVeto)
		}
		g.logger.Debug("position cap clipped trade",
			slog.String("requested", notional.StringFixed(2)),
			slog.String("clipped", clipped.StringFixed(2)),
		)
		notional = clipped
	}

	// 3. Reserve cash must remain after the trade.
	available := g.cfg.PerMarketBudget.Sub(spent).Sub(g.cfg.ReserveCash)
	if notional.GreaterThan(available) {
		if available.LessThan(g.cfg.MinTrade) {
			return intent, fmt.Errorf("risk: reserve cash %s would be breached: %w",
				g.cfg.ReserveCash.StringFixed(2), domain.ErrRiskVeto)
		}
		g.logger.Debug("reserve cash clipped trade",
			slog.String("requested", notional.StringFixed(2)),
			slog.String("clipped", available.StringFixed(2)),
		)
		notional = available
	}

	// 4. Pair-cost projection, only once both sides hold.
	if !pos.QtyUp.IsZero() && !pos.QtyDown.IsZero() {
		projected := projectedPairCost(pos, intent.Side, notional, intent.Price)
		if projected.GreaterThanOrEqual(g.cfg.PairCostLimit) {
			return intent, fmt.Errorf("risk: projected pair cost %s at or above limit %s: %w",
				projected.StringFixed(4), g.cfg.PairCostLimit.StringFixed(4), domain.ErrRiskVeto)
		}
	}

	// 5. Trade-size bounds.
	if notional.GreaterThan(g.cfg.MaxTrade) {
		notional = g.cfg.MaxTrade
	}
	if notional.LessThan(g.cfg.MinTrade) {
		return intent, fmt.Errorf("risk: notional %s below min trade %s: %w",
			notional.StringFixed(2), g.cfg.MinTrade.StringFixed(2), domain.ErrRiskVeto)
	}

	// 6. Cooldown between trades.
	if !lastTradeAt.IsZero() && now.Sub(lastTradeAt) < g.cfg.Cooldown {
		return intent, fmt.Errorf("risk: cooldown %s not elapsed since %s: %w",
			g.cfg.Cooldown, lastTradeAt.Format(time.RFC3339), domain.ErrRiskVeto)
	}

	intent.Notional = notional
	return intent, nil
}

// projectedPairCost computes avg_up+avg_down as it would look after buying
// notional dollars on side at the given price.
func projectedPairCost(pos domain.Position, side domain.Side, notional, price decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) {
		// Malformed intent; the ledger would reject the fill anyway.
		return decimal.New(1, 0)
	}
	qtyAdd := notional.Div(price)
	projQty := pos.QtyFor(side).Add(qtyAdd)
	projCost := pos.CostFor(side).Add(notional)
	projAvg := projCost.Div(projQty)
	return projAvg.Add(pos.AvgFor(side.Opposite()))
}
