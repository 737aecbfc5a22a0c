package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Phase is the strategic mode a market is currently in. It is re-derived from
// the position and spread on every tick; the stored value is a display label.
type Phase string

const (
	PhaseEntry       Phase = "ENTRY"
	PhaseRebalancing Phase = "REBALANCING"
	PhaseArbitrage   Phase = "ARBITRAGE"
	PhaseImprovement Phase = "IMPROVEMENT"
	PhaseHalted      Phase = "HALTED"
)

// SpreadCategory classifies how far the two mid prices deviate from summing
// to $1.00.
type SpreadCategory string

const (
	SpreadNormal  SpreadCategory = "normal"
	SpreadHigh    SpreadCategory = "high"
	SpreadExtreme SpreadCategory = "extreme"
)

// SpreadSignal is the output of spread analysis for one snapshot.
type SpreadSignal struct {
	Deviation   decimal.Decimal
	Category    SpreadCategory
	CheaperSide Side
	// Elevated marks deviations at or above the configured normal threshold,
	// for display purposes only.
	Elevated bool
}

// TradeIntent is a proposed trade emitted by the phase engine. It always
// passes through the risk governor before execution.
type TradeIntent struct {
	Side     Side
	Notional decimal.Decimal // dollars, prior to conversion into shares
	Price    decimal.Decimal // limit price for the simulated fill
	Reason   string
}

// FillResult describes a simulated execution against the order book.
type FillResult struct {
	Side      Side
	FilledQty decimal.Decimal
	AvgPrice  decimal.Decimal
	Cost      decimal.Decimal
	Fee       decimal.Decimal
	Levels    int
	Partial   bool
}

// StrategyState is the per-market strategy status exposed to callers.
type StrategyState struct {
	MarketID    string
	Phase       Phase
	LastTradeAt time.Time
	UpdatedAt   time.Time
}

// TickResult is the outcome of evaluating one snapshot: the trade (if any),
// the refreshed strategy state, and the current position view.
type TickResult struct {
	MarketID string
	Trade    *Trade
	State    StrategyState
	Position Position
	Scenario ScenarioPnL
	Spread   SpreadSignal
	// Improvement is the projected average-cost reduction when the tick
	// selected the IMPROVEMENT phase; zero otherwise. Side datum only.
	Improvement decimal.Decimal
}

// Resolution summarizes a market after external resolution.
type Resolution struct {
	MarketID   string
	Winner     Side
	FinalPnL   decimal.Decimal
	Payout     decimal.Decimal
	TradeCount int
	ResolvedAt time.Time
}
