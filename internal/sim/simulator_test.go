package sim

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/ledger"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var now = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func newSim(cfg Config) *Simulator {
	return NewSimulator(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func lvl(price, size string) domain.PriceLevel {
	return domain.PriceLevel{Price: d(price), Size: d(size)}
}

func TestFillSingleLevel(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat, FlatFee: d("0.10")})

	fill, err := s.Fill(domain.SideUp, d("20"), d("0.40"), []domain.PriceLevel{lvl("0.40", "200")})
	require.NoError(t, err)
	assert.True(t, fill.FilledQty.Equal(d("50")), "qty %s", fill.FilledQty)
	assert.True(t, fill.AvgPrice.Equal(d("0.40")))
	assert.True(t, fill.Cost.Equal(d("20")))
	assert.True(t, fill.Fee.Equal(d("0.10")))
	assert.False(t, fill.Partial)
	assert.Equal(t, 1, fill.Levels)
}

func TestFillWalksLevels(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat})

	asks := []domain.PriceLevel{
		lvl("0.40", "25"), // $10 of depth
		lvl("0.50", "16"), // $8 of depth
		lvl("0.60", "100"),
	}
	// Limit 0.50 admits the first two levels only: $18 of $20 filled.
	fill, err := s.Fill(domain.SideUp, d("20"), d("0.50"), asks)
	require.NoError(t, err)
	assert.True(t, fill.FilledQty.Equal(d("41")), "qty %s", fill.FilledQty) // 25 + 16
	assert.True(t, fill.Cost.Equal(d("18")))
	assert.True(t, fill.Partial)
	assert.Equal(t, 2, fill.Levels)

	want := d("18").Div(d("41"))
	assert.True(t, fill.AvgPrice.Equal(want), "avg %s want %s", fill.AvgPrice, want)
}

func TestFillUnsortedLadder(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat})

	asks := []domain.PriceLevel{
		lvl("0.50", "100"),
		lvl("0.40", "25"),
	}
	fill, err := s.Fill(domain.SideUp, d("10"), d("0.60"), asks)
	require.NoError(t, err)
	// The cheaper level absorbs the whole notional.
	assert.True(t, fill.AvgPrice.Equal(d("0.40")), "avg %s", fill.AvgPrice)
	assert.Equal(t, 1, fill.Levels)
}

func TestFillNoLiquidityAtLimit(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat})

	_, err := s.Fill(domain.SideUp, d("20"), d("0.40"), []domain.PriceLevel{lvl("0.55", "100")})
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)

	_, err = s.Fill(domain.SideUp, d("20"), d("0.40"), nil)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
}

func TestFillRejectsNonPositiveNotional(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat})
	_, err := s.Fill(domain.SideUp, d("0"), d("0.40"), []domain.PriceLevel{lvl("0.40", "100")})
	assert.ErrorIs(t, err, domain.ErrInvalidFill)
}

func TestProportionalFee(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeProportional, FeeRate: d("0.015")})

	fill, err := s.Fill(domain.SideDown, d("20"), d("0.40"), []domain.PriceLevel{lvl("0.40", "200")})
	require.NoError(t, err)
	assert.True(t, fill.Fee.Equal(d("0.30")), "fee %s", fill.Fee)
}

func TestExecuteRecordsIntoLedger(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat, FlatFee: d("0.10")})
	led := ledger.New("m")

	in := domain.TradeIntent{Side: domain.SideUp, Notional: d("20"), Price: d("0.40")}
	fill, trade, err := s.Execute(led, in, []domain.PriceLevel{lvl("0.40", "200")}, now)
	require.NoError(t, err)

	assert.True(t, trade.Qty.Equal(fill.FilledQty))
	assert.True(t, trade.Price.Equal(fill.AvgPrice))
	assert.True(t, trade.Fee.Equal(fill.Fee))

	// The ledger's average equals the fill's average after a single fill.
	pos := led.Position()
	assert.True(t, pos.AvgFor(domain.SideUp).Equal(fill.AvgPrice))
	assert.True(t, pos.CostUp.Equal(fill.Cost))
	assert.True(t, led.FeesPaid().Equal(fill.Fee))
	assert.Equal(t, 1, led.TradeCount())
}

func TestExecuteLeavesLedgerUntouchedOnNoFill(t *testing.T) {
	s := newSim(Config{FeeMode: FeeModeFlat})
	led := ledger.New("m")

	in := domain.TradeIntent{Side: domain.SideUp, Notional: d("20"), Price: d("0.40")}
	_, _, err := s.Execute(led, in, []domain.PriceLevel{lvl("0.55", "100")}, now)
	assert.ErrorIs(t, err, domain.ErrInsufficientLiquidity)
	assert.True(t, led.Position().Flat())
}
