// Package metrics exposes Prometheus instrumentation for the decision engine.
// All collectors are registered on the default registry in init and served by
// the HTTP API at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Ticks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairbot_ticks_total",
		Help: "Snapshots evaluated, by market and outcome (traded|idle|skipped)",
	}, []string{"market", "outcome"})

	Phases = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pairbot_phase",
		Help: "Current phase per market; labeled series flips between 0/1",
	}, []string{"market", "phase"})

	Trades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairbot_trades_total",
		Help: "Simulated fills recorded, by market and side",
	}, []string{"market", "side"})

	Vetoes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairbot_risk_vetoes_total",
		Help: "Trade intents vetoed by the risk governor",
	}, []string{"market"})

	LockedProfit = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pairbot_locked_profit_usd",
		Help: "Guaranteed PnL regardless of outcome, per market",
	}, []string{"market"})

	SpreadDeviation = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pairbot_spread_deviation",
		Help: "Absolute distance of price_up+price_down from 1.00",
	}, []string{"market"})

	UnfilledIntents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pairbot_unfilled_intents_total",
		Help: "Approved intents that found no liquidity at the limit price",
	}, []string{"market"})
)

var phaseLabels = []string{"ENTRY", "REBALANCING", "ARBITRAGE", "IMPROVEMENT", "HALTED"}

// SetPhase flips the per-phase gauge series so dashboards can show the active
// phase without string-valued metrics.
func SetPhase(market, phase string) {
	for _, p := range phaseLabels {
		v := 0.0
		if p == phase {
			v = 1.0
		}
		Phases.WithLabelValues(market, p).Set(v)
	}
}

func init() {
	prometheus.MustRegister(
		Ticks,
		Phases,
		Trades,
		Vetoes,
		LockedProfit,
		SpreadDeviation,
		UnfilledIntents,
	)
}
