// Package sim simulates trade execution against an order-book snapshot. The
// engine never performs real order placement; every fill comes from walking
// the supplied ask ladder.
package sim

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/ledger"
)

// FeeMode selects how execution fees are computed.
type FeeMode string

const (
	FeeModeFlat         FeeMode = "flat"
	FeeModeProportional FeeMode = "proportional"
)

// Config holds the fee model for simulated fills.
type Config struct {
	FeeMode FeeMode
	FlatFee decimal.Decimal // charged per fill in flat mode
	FeeRate decimal.Decimal // fraction of fill cost in proportional mode
}

// Simulator fills approved trade intents against ask ladders.
type Simulator struct {
	cfg    Config
	logger *slog.Logger
}

// NewSimulator creates a Simulator with the given fee model.
func NewSimulator(cfg Config, logger *slog.Logger) *Simulator {
	return &Simulator{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "exec_sim")),
	}
}

// Fill walks the ask ladder consuming levels at or below the limit price
// until the notional is spent or the ladder runs out. A nonzero partial fill
// succeeds; ErrInsufficientLiquidity is returned only when nothing could be
// filled at or below the limit.
func (s *Simulator) Fill(side domain.Side, notional, limit decimal.Decimal, asks []domain.PriceLevel) (domain.FillResult, error) {
	if notional.LessThanOrEqual(decimal.Zero) {
		return domain.FillResult{}, fmt.Errorf("sim: notional %s must be positive: %w",
			notional.String(), domain.ErrInvalidFill)
	}

	// Ladders arrive best-first but feed data is not trusted to be sorted.
	sorted := make([]domain.PriceLevel, len(asks))
	copy(sorted, asks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Price.LessThan(sorted[j].Price) })

	remaining := notional
	var qty, cost decimal.Decimal
	levels := 0
	for _, lvl := range sorted {
		if lvl.Price.GreaterThan(limit) {
			break
		}
		if lvl.Price.LessThanOrEqual(decimal.Zero) || lvl.Size.LessThanOrEqual(decimal.Zero) {
			continue
		}
		levelCost := lvl.Price.Mul(lvl.Size)
		take := levelCost
		if take.GreaterThan(remaining) {
			take = remaining
		}
		qty = qty.Add(take.Div(lvl.Price))
		cost = cost.Add(take)
		remaining = remaining.Sub(take)
		levels++
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
	}

	if qty.IsZero() {
		return domain.FillResult{}, fmt.Errorf("sim: no %s asks at or below %s: %w",
			side, limit.StringFixed(4), domain.ErrInsufficientLiquidity)
	}

	avg := cost.Div(qty)
	return domain.FillResult{
		Side:      side,
		FilledQty: qty,
		AvgPrice:  avg,
		Cost:      cost,
		Fee:       s.fee(cost),
		Levels:    levels,
		Partial:   remaining.GreaterThan(decimal.Zero),
	}, nil
}

// Execute fills the approved intent and records the result into the ledger,
// returning both the fill and the appended trade.
func (s *Simulator) Execute(led *ledger.Ledger, intent domain.TradeIntent, asks []domain.PriceLevel, now time.Time) (domain.FillResult, domain.Trade, error) {
	fill, err := s.Fill(intent.Side, intent.Notional, intent.Price, asks)
	if err != nil {
		return domain.FillResult{}, domain.Trade{}, err
	}

	trade, err := led.RecordFill(fill.Side, fill.FilledQty, fill.AvgPrice, fill.Fee, now)
	if err != nil {
		return domain.FillResult{}, domain.Trade{}, fmt.Errorf("sim: record fill: %w", err)
	}

	s.logger.Debug("fill executed",
		slog.String("market", led.MarketID()),
		slog.String("side", string(fill.Side)),
		slog.String("qty", fill.FilledQty.StringFixed(4)),
		slog.String("avg_price", fill.AvgPrice.StringFixed(4)),
		slog.Bool("partial", fill.Partial),
	)
	return fill, trade, nil
}

func (s *Simulator) fee(cost decimal.Decimal) decimal.Decimal {
	if s.cfg.FeeMode == FeeModeProportional {
		return cost.Mul(s.cfg.FeeRate)
	}
	return s.cfg.FlatFee
}
