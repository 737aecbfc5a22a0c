package ledger

import (
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

var ts = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func TestRecordFillAccumulates(t *testing.T) {
	led := New("btc-updown")

	tr, err := led.RecordFill(domain.SideUp, d("50"), d("0.40"), d("0.30"), ts)
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "btc-updown", tr.MarketID)
	assert.True(t, tr.Notional().Equal(d("20")))

	_, err = led.RecordFill(domain.SideUp, d("25"), d("0.48"), d("0.18"), ts.Add(time.Second))
	require.NoError(t, err)
	_, err = led.RecordFill(domain.SideDown, d("40"), d("0.50"), d("0.30"), ts.Add(2*time.Second))
	require.NoError(t, err)

	pos := led.Position()
	assert.True(t, pos.QtyUp.Equal(d("75")))
	assert.True(t, pos.CostUp.Equal(d("32")), "cost up %s", pos.CostUp) // 20 + 12
	assert.True(t, pos.QtyDown.Equal(d("40")))
	assert.True(t, pos.CostDown.Equal(d("20")))
	assert.True(t, led.FeesPaid().Equal(d("0.78")))
	assert.Equal(t, 3, led.TradeCount())

	// avg_up = 32/75, avg_down = 0.50
	pair, ok := led.PairCost()
	require.True(t, ok)
	want := d("32").Div(d("75")).Add(d("0.5"))
	assert.True(t, pair.Equal(want), "pair %s want %s", pair, want)
}

func TestRecordFillRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		side  domain.Side
		qty   string
		price string
		fee   string
	}{
		{"invalid side", domain.Side("FLAT"), "10", "0.5", "0"},
		{"zero qty", domain.SideUp, "0", "0.5", "0"},
		{"negative qty", domain.SideUp, "-5", "0.5", "0"},
		{"zero price", domain.SideUp, "10", "0", "0"},
		{"price above one", domain.SideUp, "10", "1.01", "0"},
		{"negative fee", domain.SideUp, "10", "0.5", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			led := New("m")
			_, err := led.RecordFill(tt.side, d(tt.qty), d(tt.price), d(tt.fee), ts)
			require.ErrorIs(t, err, domain.ErrInvalidFill)
			assert.True(t, led.Position().Flat(), "failed fill must not mutate the position")
			assert.Equal(t, 0, led.TradeCount())
		})
	}
}

func TestPriceOfExactlyOneIsAccepted(t *testing.T) {
	led := New("m")
	_, err := led.RecordFill(domain.SideDown, d("10"), d("1"), d("0"), ts)
	assert.NoError(t, err)
}

func TestLockedProfit(t *testing.T) {
	led := New("m")
	_, err := led.RecordFill(domain.SideUp, d("100"), d("0.45"), d("1"), ts)
	require.NoError(t, err)
	_, err = led.RecordFill(domain.SideDown, d("90"), d("0.50"), d("1"), ts)
	require.NoError(t, err)

	// spent = 45 + 45 + 2 fees = 92; ifUp = 8, ifDown = -2
	assert.True(t, led.LockedProfit().Equal(d("-2")), "locked %s", led.LockedProfit())

	s := led.ScenarioPnL(led.FeesPaid())
	assert.True(t, s.IfUp.Equal(d("8")))
	assert.True(t, s.IfDown.Equal(d("-2")))
}

func TestTradesReturnsCopy(t *testing.T) {
	led := New("m")
	_, err := led.RecordFill(domain.SideUp, d("10"), d("0.5"), d("0"), ts)
	require.NoError(t, err)

	trades := led.Trades()
	require.Len(t, trades, 1)
	trades[0].MarketID = "tampered"
	assert.Equal(t, "m", led.Trades()[0].MarketID)
}

func TestDelta(t *testing.T) {
	led := New("m")
	assert.True(t, led.Delta().IsZero())

	_, err := led.RecordFill(domain.SideUp, d("100"), d("0.5"), d("0"), ts)
	require.NoError(t, err)
	_, err = led.RecordFill(domain.SideDown, d("40"), d("0.5"), d("0"), ts)
	require.NoError(t, err)

	assert.True(t, led.Delta().Equal(d("42.8571428571428571")), "delta %s", led.Delta())
}
