package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/pairbot/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var now = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func testConfig() Config {
	return Config{
		PerMarketBudget:     d("250"),
		PositionCapFraction: d("0.70"),
		ReserveCash:         d("50"),
		StopLossLimit:       d("-50"),
		PairCostLimit:       d("0.95"),
		MinTrade:            d("2"),
		MaxTrade:            d("30"),
		Cooldown:            5 * time.Second,
	}
}

func newGovernor(cfg Config) *Governor {
	return NewGovernor(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func intent(notional string) domain.TradeIntent {
	return domain.TradeIntent{
		Side:     domain.SideUp,
		Notional: d(notional),
		Price:    d("0.40"),
	}
}

func TestApprovePassthrough(t *testing.T) {
	g := newGovernor(testConfig())

	approved, err := g.Approve(intent("20"), domain.Position{}, decimal.Zero, time.Time{}, now)
	require.NoError(t, err)
	assert.True(t, approved.Notional.Equal(d("20")))
}

func TestStopLossVeto(t *testing.T) {
	g := newGovernor(testConfig())
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("80"),
		QtyDown: d("100"), CostDown: d("75"),
	}
	// locked = 100 - 155 = -55, below the -50 limit
	_, err := g.Approve(intent("20"), pos, decimal.Zero, time.Time{}, now)
	assert.ErrorIs(t, err, domain.ErrStopLoss)
}

func TestStopLossSkippedWhenFlat(t *testing.T) {
	cfg := testConfig()
	cfg.StopLossLimit = d("-0.01")
	g := newGovernor(cfg)

	_, err := g.Approve(intent("20"), domain.Position{}, decimal.Zero, time.Time{}, now)
	assert.NoError(t, err, "a flat book cannot be stopped out")
}

func TestPositionCapClipsAndVetoes(t *testing.T) {
	g := newGovernor(testConfig())

	// cap = 175; spent 160 leaves 15 of headroom
	pos := domain.Position{QtyUp: d("400"), CostUp: d("160")}
	approved, err := g.Approve(intent("20"), pos, decimal.Zero, time.Time{}, now)
	require.NoError(t, err)
	assert.True(t, approved.Notional.Equal(d("15")), "notional %s", approved.Notional)

	// spent 174 leaves headroom below min trade
	pos = domain.Position{QtyUp: d("400"), CostUp: d("174")}
	_, err = g.Approve(intent("20"), pos, decimal.Zero, time.Time{}, now)
	assert.ErrorIs(t, err, domain.ErrRiskVeto)
}

func TestReserveCashClips(t *testing.T) {
	cfg := testConfig()
	cfg.PositionCapFraction = d("1") // isolate the reserve check
	g := newGovernor(cfg)

	// available = 250 - 190 - 50 = 10
	pos := domain.Position{QtyUp: d("400"), CostUp: d("190")}
	approved, err := g.Approve(intent("20"), pos, decimal.Zero, time.Time{}, now)
	require.NoError(t, err)
	assert.True(t, approved.Notional.Equal(d("10")), "notional %s", approved.Notional)
}

func TestPairCostProjectionVeto(t *testing.T) {
	g := newGovernor(testConfig())
	pos := domain.Position{
		QtyUp: d("100"), CostUp: d("48"),
		QtyDown: d("100"), CostDown: d("46"),
	}

	// Buying more UP at 0.60 drags avg_up to ~0.51; pair ~0.97 >= 0.95.
	in := domain.TradeIntent{Side: domain.SideUp, Notional: d("20"), Price: d("0.60")}
	_, err := g.Approve(in, pos, decimal.Zero, time.Time{}, now)
	assert.ErrorIs(t, err, domain.ErrRiskVeto)

	// Buying cheap improves the pair instead.
	in.Price = d("0.40")
	_, err = g.Approve(in, pos, decimal.Zero, time.Time{}, now)
	assert.NoError(t, err)
}

func TestTradeSizeBounds(t *testing.T) {
	g := newGovernor(testConfig())

	approved, err := g.Approve(intent("100"), domain.Position{}, decimal.Zero, time.Time{}, now)
	require.NoError(t, err)
	assert.True(t, approved.Notional.Equal(d("30")), "clipped to max trade")

	_, err = g.Approve(intent("1"), domain.Position{}, decimal.Zero, time.Time{}, now)
	assert.ErrorIs(t, err, domain.ErrRiskVeto)
}

func TestCooldown(t *testing.T) {
	g := newGovernor(testConfig())

	lastTrade := now.Add(-2 * time.Second)
	_, err := g.Approve(intent("20"), domain.Position{}, decimal.Zero, lastTrade, now)
	assert.ErrorIs(t, err, domain.ErrRiskVeto)

	lastTrade = now.Add(-6 * time.Second)
	_, err = g.Approve(intent("20"), domain.Position{}, decimal.Zero, lastTrade, now)
	assert.NoError(t, err)
}

func TestApprovedNotionalNeverExceedsRequested(t *testing.T) {
	g := newGovernor(testConfig())
	positions := []domain.Position{
		{},
		{QtyUp: d("100"), CostUp: d("40")},
		{QtyUp: d("400"), CostUp: d("160")},
		{QtyUp: d("100"), CostUp: d("40"), QtyDown: d("100"), CostDown: d("41")},
	}
	for _, req := range []string{"2", "10", "20", "30", "100"} {
		for _, pos := range positions {
			approved, err := g.Approve(intent(req), pos, decimal.Zero, time.Time{}, now)
			if err != nil {
				continue
			}
			assert.True(t, approved.Notional.LessThanOrEqual(d(req)),
				"approved %s exceeds requested %s", approved.Notional, req)
		}
	}
}
