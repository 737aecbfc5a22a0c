package strategy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/spread"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testConfig() Config {
	return Config{
		StopLossLimit:         d("-50"),
		DeltaRebalance:        d("5"),
		DeltaCritical:         d("10"),
		DeltaEmergency:        d("20"),
		EmergencyPriceCeiling: d("0.60"),
		ArbNotionalHigh:       d("15"),
		ArbNotionalExtreme:    d("25"),
		ImprovementDiscount:   d("0.95"),
		EntryTiers:            DefaultEntryTiers(),
	}
}

func newTestEngine(cfg Config) *Engine {
	return NewEngine(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func snap(up, down string) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  "m",
		PriceUp:   d(up),
		PriceDown: d(down),
		Timestamp: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func analyze(s domain.MarketSnapshot) domain.SpreadSignal {
	return spread.NewAnalyzer(spread.DefaultThresholds()).Analyze(s)
}

func evaluate(e *Engine, pos domain.Position, fees string, s domain.MarketSnapshot) Decision {
	return e.Evaluate(pos, d(fees), analyze(s), s)
}

func TestEntryTierSelection(t *testing.T) {
	e := newTestEngine(testConfig())

	tests := []struct {
		name     string
		up, down string
		side     domain.Side
		notional string
	}{
		{"cheap up", "0.35", "0.70", domain.SideUp, "20"},
		{"mid tier", "0.45", "0.58", domain.SideUp, "15"},
		{"top tier", "0.55", "0.50", domain.SideDown, "15"},
		{"last tier", "0.55", "0.52", domain.SideDown, "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := evaluate(e, domain.Position{}, "0", snap(tt.up, tt.down))
			assert.Equal(t, domain.PhaseEntry, dec.Phase)
			require.NotNil(t, dec.Intent)
			assert.Equal(t, tt.side, dec.Intent.Side)
			assert.True(t, dec.Intent.Notional.Equal(d(tt.notional)),
				"notional %s want %s", dec.Intent.Notional, tt.notional)
			assert.True(t, dec.Intent.Price.Equal(snap(tt.up, tt.down).PriceFor(tt.side)))
		})
	}
}

func TestEntryAboveAllTiersYieldsNoIntent(t *testing.T) {
	cfg := testConfig()
	cfg.EntryTiers = []Tier{{MaxPrice: d("0.40"), Notional: d("20")}}
	e := newTestEngine(cfg)

	dec := evaluate(e, domain.Position{}, "0", snap("0.45", "0.52"))
	assert.Equal(t, domain.PhaseEntry, dec.Phase)
	assert.Nil(t, dec.Intent)
}

func TestStopLossHalts(t *testing.T) {
	e := newTestEngine(testConfig())
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("80"),
		QtyDown: d("100"), CostDown: d("80"),
	}
	// locked = 100 - 160 = -60, below -50
	dec := evaluate(e, pos, "0", snap("0.50", "0.50"))
	assert.Equal(t, domain.PhaseHalted, dec.Phase)
	assert.Nil(t, dec.Intent)

	// At exactly -50 the strategy keeps running.
	pos.CostUp = d("75")
	pos.CostDown = d("75")
	dec = evaluate(e, pos, "0", snap("0.50", "0.50"))
	assert.NotEqual(t, domain.PhaseHalted, dec.Phase)
}

func TestRebalanceBuysSmallerSide(t *testing.T) {
	e := newTestEngine(testConfig())
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("45"),
		QtyDown: d("40"), CostDown: d("20"),
	}
	// delta = 60/140 = 42.9% > 20% emergency
	dec := evaluate(e, pos, "0", snap("0.50", "0.55"))
	assert.Equal(t, domain.PhaseRebalancing, dec.Phase)
	require.NotNil(t, dec.Intent)
	assert.Equal(t, domain.SideDown, dec.Intent.Side)
	assert.True(t, dec.Intent.Notional.Equal(d("10")), "tier for 0.55 is $10")
	assert.Contains(t, dec.Reason, "emergency")
}

func TestRebalanceRespectsPriceCeiling(t *testing.T) {
	e := newTestEngine(testConfig())
	pos := domain.Position{
		QtyUp: d("55"), CostUp: d("27"),
		QtyDown: d("45"), CostDown: d("22"),
	}
	// delta = 10/100 = 10%: normal rebalance, DOWN side, but priced out.
	dec := evaluate(e, pos, "0", snap("0.30", "0.65"))
	assert.Equal(t, domain.PhaseRebalancing, dec.Phase)
	assert.Nil(t, dec.Intent)
}

func TestEmergencyRebalanceRaisesCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.EmergencyPriceCeiling = d("0.70")
	e := newTestEngine(cfg)

	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("45"),
		QtyDown: d("40"), CostDown: d("20"),
	}
	// DOWN trades at 0.65: above the tier table but inside the raised ceiling.
	dec := evaluate(e, pos, "0", snap("0.30", "0.65"))
	assert.Equal(t, domain.PhaseRebalancing, dec.Phase)
	require.NotNil(t, dec.Intent)
	assert.Equal(t, domain.SideDown, dec.Intent.Side)
	assert.True(t, dec.Intent.Notional.Equal(d("10")), "falls back to the smallest tier")
}

func TestArbitrageSizing(t *testing.T) {
	e := newTestEngine(testConfig())

	// deviation 0.20: high
	dec := evaluate(e, domain.Position{}, "0", snap("0.40", "0.40"))
	assert.Equal(t, domain.PhaseArbitrage, dec.Phase)
	require.NotNil(t, dec.Intent)
	assert.Equal(t, domain.SideUp, dec.Intent.Side)
	assert.True(t, dec.Intent.Notional.Equal(d("15")))

	// deviation 0.30: extreme
	dec = evaluate(e, domain.Position{}, "0", snap("0.35", "0.35"))
	assert.Equal(t, domain.PhaseArbitrage, dec.Phase)
	require.NotNil(t, dec.Intent)
	assert.True(t, dec.Intent.Notional.Equal(d("25")))
}

func TestImprovementBuysDiscountedHolding(t *testing.T) {
	e := newTestEngine(testConfig())
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("50"), // avg 0.50
		QtyDown: d("100"), CostDown: d("50"),
	}
	// UP at 0.45 <= 0.95 * 0.50; DOWN at 0.50 does not qualify.
	dec := evaluate(e, pos, "0", snap("0.45", "0.50"))
	assert.Equal(t, domain.PhaseImprovement, dec.Phase)
	require.NotNil(t, dec.Intent)
	assert.Equal(t, domain.SideUp, dec.Intent.Side)
	assert.True(t, dec.Intent.Notional.Equal(d("15")), "tier for 0.45")
	assert.True(t, dec.Improvement.IsPositive(), "projected improvement must be positive")
}

func TestImprovementPrefersDeeperDiscount(t *testing.T) {
	e := newTestEngine(testConfig())
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("50"), // avg 0.50, discount 0.05
		QtyDown: d("100"), CostDown: d("55"), // avg 0.55, discount 0.10
	}
	dec := evaluate(e, pos, "0", snap("0.45", "0.45"))
	assert.Equal(t, domain.PhaseImprovement, dec.Phase)
	require.NotNil(t, dec.Intent)
	assert.Equal(t, domain.SideDown, dec.Intent.Side)
}

func TestImprovementRequiresHolding(t *testing.T) {
	e := newTestEngine(testConfig())
	// Nothing held: a discounted price is just an entry.
	dec := evaluate(e, domain.Position{}, "0", snap("0.45", "0.52"))
	assert.Equal(t, domain.PhaseEntry, dec.Phase)
}

func TestPhasePrecedence(t *testing.T) {
	e := newTestEngine(testConfig())

	// Emergency delta and an extreme spread at once: rebalance wins.
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("35"),
		QtyDown: d("40"), CostDown: d("14"),
	}
	dec := evaluate(e, pos, "0", snap("0.35", "0.35"))
	assert.Equal(t, domain.PhaseRebalancing, dec.Phase)
}
