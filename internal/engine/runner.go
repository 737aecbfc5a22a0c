// Package engine coordinates the per-market tick pipeline: snapshot → spread
// analysis → phase decision → risk governor → execution simulator → ledger.
// Each market owns its state and is evaluated strictly sequentially; markets
// run in parallel with nothing shared between them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/ledger"
	"github.com/updownlabs/pairbot/internal/metrics"
	"github.com/updownlabs/pairbot/internal/risk"
	"github.com/updownlabs/pairbot/internal/sim"
	"github.com/updownlabs/pairbot/internal/spread"
	"github.com/updownlabs/pairbot/internal/strategy"
)

// Runner evaluates ticks for a single market. All mutation happens under one
// lock so a runner can be torn down at any tick boundary without corrupting
// ledger state.
type Runner struct {
	marketID string
	led      *ledger.Ledger
	analyzer *spread.Analyzer
	phases   *strategy.Engine
	governor *risk.Governor
	sim      *sim.Simulator
	logger   *slog.Logger

	mu          sync.Mutex
	state       domain.StrategyState
	lastTradeAt time.Time
	resolved    bool

	// nowFn is the tick-arrival clock; overridable in tests for determinism.
	nowFn func() time.Time
}

// RunnerDeps bundles the stateless components shared by all runners.
type RunnerDeps struct {
	Analyzer *spread.Analyzer
	Phases   *strategy.Engine
	Governor *risk.Governor
	Sim      *sim.Simulator
}

// NewRunner creates a Runner with an empty ledger for the given market.
func NewRunner(marketID string, deps RunnerDeps, logger *slog.Logger) *Runner {
	return &Runner{
		marketID: marketID,
		led:      ledger.New(marketID),
		analyzer: deps.Analyzer,
		phases:   deps.Phases,
		governor: deps.Governor,
		sim:      deps.Sim,
		logger:   logger.With(slog.String("component", "market_runner"), slog.String("market", marketID)),
		state:    domain.StrategyState{MarketID: marketID, Phase: domain.PhaseEntry},
		nowFn:    time.Now,
	}
}

// OnTick evaluates one snapshot. Risk vetoes and unfillable intents are
// expected market conditions: they are logged, counted, and the tick result
// carries no trade. Only contract violations surface as errors.
func (r *Runner) OnTick(ctx context.Context, snap domain.MarketSnapshot) (domain.TickResult, error) {
	now := r.nowFn()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolved {
		return r.resultLocked(), fmt.Errorf("runner %s: %w", r.marketID, domain.ErrMarketResolved)
	}

	if err := snap.Validate(); err != nil {
		metrics.Ticks.WithLabelValues(r.marketID, "skipped").Inc()
		return r.resultLocked(), err
	}

	sig := r.analyzer.Analyze(snap)
	metrics.SpreadDeviation.WithLabelValues(r.marketID).Set(sig.Deviation.InexactFloat64())

	pos := r.led.Position()
	fees := r.led.FeesPaid()
	dec := r.phases.Evaluate(pos, fees, sig, snap)

	r.state.Phase = dec.Phase
	r.state.UpdatedAt = now
	metrics.SetPhase(r.marketID, string(dec.Phase))
	metrics.LockedProfit.WithLabelValues(r.marketID).Set(pos.ScenarioPnL(fees).Locked.InexactFloat64())

	result := r.resultLocked()
	result.Spread = sig
	result.Improvement = dec.Improvement

	if dec.Intent == nil {
		metrics.Ticks.WithLabelValues(r.marketID, "idle").Inc()
		return result, nil
	}

	approved, err := r.governor.Approve(*dec.Intent, pos, fees, r.lastTradeAt, now)
	if err != nil {
		metrics.Vetoes.WithLabelValues(r.marketID).Inc()
		metrics.Ticks.WithLabelValues(r.marketID, "idle").Inc()
		r.logger.Debug("intent vetoed",
			slog.String("side", string(dec.Intent.Side)),
			slog.String("notional", dec.Intent.Notional.StringFixed(2)),
			slog.String("reason", err.Error()),
		)
		return result, nil
	}

	fill, trade, err := r.sim.Execute(r.led, approved, snap.AsksFor(approved.Side), now)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientLiquidity) {
			metrics.UnfilledIntents.WithLabelValues(r.marketID).Inc()
			metrics.Ticks.WithLabelValues(r.marketID, "idle").Inc()
			r.logger.Debug("no liquidity at limit",
				slog.String("side", string(approved.Side)),
				slog.String("limit", approved.Price.StringFixed(4)),
			)
			return result, nil
		}
		return result, err
	}

	r.lastTradeAt = now
	r.state.LastTradeAt = now
	metrics.Trades.WithLabelValues(r.marketID, string(trade.Side)).Inc()
	metrics.Ticks.WithLabelValues(r.marketID, "traded").Inc()

	r.logger.Info("trade executed",
		slog.String("phase", string(dec.Phase)),
		slog.String("side", string(trade.Side)),
		slog.String("qty", trade.Qty.StringFixed(4)),
		slog.String("price", trade.Price.StringFixed(4)),
		slog.Bool("partial", fill.Partial),
		slog.String("reason", approved.Reason),
	)

	result = r.resultLocked()
	result.Spread = sig
	result.Improvement = dec.Improvement
	result.Trade = &trade
	return result, nil
}

// State returns the current position, scenario, and phase without evaluating
// anything. Polled by the rendering layer at display cadence.
func (r *Runner) State() domain.TickResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resultLocked()
}

// Trades returns a copy of the market's trade log.
func (r *Runner) Trades() []domain.Trade {
	return r.led.Trades()
}

// Resolve finalizes the market with the winning side. Further ticks are
// rejected; the returned Resolution carries the final PnL.
func (r *Runner) Resolve(winner domain.Side) (domain.Resolution, error) {
	if !winner.Valid() {
		return domain.Resolution{}, fmt.Errorf("runner %s: winner %q: %w", r.marketID, winner, domain.ErrInvalidFill)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.resolved {
		return domain.Resolution{}, fmt.Errorf("runner %s: %w", r.marketID, domain.ErrMarketResolved)
	}
	r.resolved = true

	pos := r.led.Position()
	fees := r.led.FeesPaid()
	payout := pos.QtyFor(winner)
	final := payout.Sub(pos.TotalCost()).Sub(fees)

	res := domain.Resolution{
		MarketID:   r.marketID,
		Winner:     winner,
		FinalPnL:   final,
		Payout:     payout,
		TradeCount: r.led.TradeCount(),
		ResolvedAt: r.nowFn(),
	}
	r.logger.Info("market resolved",
		slog.String("winner", string(winner)),
		slog.String("final_pnl", final.StringFixed(2)),
		slog.Int("trades", res.TradeCount),
	)
	return res, nil
}

func (r *Runner) resultLocked() domain.TickResult {
	pos := r.led.Position()
	fees := r.led.FeesPaid()
	return domain.TickResult{
		MarketID: r.marketID,
		State:    r.state,
		Position: pos,
		Scenario: pos.ScenarioPnL(fees),
	}
}
