package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func someTime() time.Time {
	return time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
}

func TestPositionDelta(t *testing.T) {
	tests := []struct {
		name    string
		qtyUp   string
		qtyDown string
		want    string
	}{
		{"flat", "0", "0", "0"},
		{"balanced", "50", "50", "0"},
		{"one sided", "50", "0", "100"},
		{"imbalanced", "100", "40", "42.8571428571428571"},
		{"symmetric", "40", "100", "42.8571428571428571"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := Position{QtyUp: d(tt.qtyUp), QtyDown: d(tt.qtyDown)}
			got := pos.Delta()
			assert.True(t, got.Equal(d(tt.want)), "got %s want %s", got, tt.want)
			assert.False(t, got.IsNegative())
			assert.True(t, got.LessThanOrEqual(d("100")))
		})
	}
}

func TestPositionPairCostDefinedOnlyWithBothSides(t *testing.T) {
	pos := Position{QtyUp: d("100"), CostUp: d("45")}
	_, ok := pos.PairCost()
	assert.False(t, ok, "pair cost must be undefined with one side flat")

	pos.QtyDown = d("50")
	pos.CostDown = d("24")
	pair, ok := pos.PairCost()
	require.True(t, ok)
	assert.True(t, pair.Equal(d("0.93")), "got %s", pair) // 0.45 + 0.48
}

func TestScenarioPnL(t *testing.T) {
	pos := Position{
		QtyUp: d("100"), CostUp: d("45"),
		QtyDown: d("90"), CostDown: d("40"),
	}
	fees := d("5")

	s := pos.ScenarioPnL(fees)
	assert.True(t, s.IfUp.Equal(d("10")), "ifUp %s", s.IfUp)      // 100 - 90
	assert.True(t, s.IfDown.Equal(d("0")), "ifDown %s", s.IfDown) // 90 - 90
	assert.True(t, s.Locked.Equal(s.IfDown), "locked is the worse outcome")

	// Recomputing from the same inputs yields the same result.
	again := pos.ScenarioPnL(fees)
	assert.Equal(t, s, again)
}

func TestScenarioPnLFlat(t *testing.T) {
	s := Position{}.ScenarioPnL(decimal.Zero)
	assert.True(t, s.IfUp.IsZero())
	assert.True(t, s.IfDown.IsZero())
	assert.True(t, s.Locked.IsZero())
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideDown, SideUp.Opposite())
	assert.Equal(t, SideUp, SideDown.Opposite())
	assert.True(t, SideUp.Valid())
	assert.False(t, Side("SIDEWAYS").Valid())
}

func TestTradeNotional(t *testing.T) {
	tr := Trade{Qty: d("50"), Price: d("0.40")}
	assert.True(t, tr.Notional().Equal(d("20")))
}

func TestOrderBookBestLevels(t *testing.T) {
	book := OrderBook{
		Bids: []PriceLevel{{Price: d("0.39"), Size: d("120")}},
		Asks: []PriceLevel{{Price: d("0.40"), Size: d("200")}},
	}

	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(d("0.40")))
	assert.True(t, ask.Size.Equal(d("200")))

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.True(t, bid.Price.Equal(d("0.39")))

	empty := OrderBook{}
	_, ok = empty.BestAsk()
	assert.False(t, ok, "empty ask side must not report a level")
	_, ok = empty.BestBid()
	assert.False(t, ok)
}

func TestSnapshotValidate(t *testing.T) {
	base := MarketSnapshot{
		MarketID:  "btc-updown",
		PriceUp:   d("0.48"),
		PriceDown: d("0.53"),
		Timestamp: someTime(),
	}
	require.NoError(t, base.Validate())

	bad := base
	bad.MarketID = ""
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSnapshot)

	bad = base
	bad.PriceUp = d("0")
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSnapshot)

	bad = base
	bad.PriceDown = d("1")
	assert.ErrorIs(t, bad.Validate(), ErrInvalidSnapshot)
}
