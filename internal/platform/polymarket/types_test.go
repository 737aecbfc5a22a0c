package polymarket

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var arrival = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func TestBookToDomain(t *testing.T) {
	msg := &BookMessage{
		AssetID:   "token-1",
		Timestamp: "1767366245123", // ms epoch
		Bids: []WSPriceLevel{
			{Price: "0.39", Size: "120"},
			{Price: "0.38", Size: "50"},
		},
		Asks: []WSPriceLevel{
			{Price: "0.40", Size: "200"},
		},
	}

	book := BookToDomain(msg, arrival)
	assert.Equal(t, "token-1", book.AssetID)
	assert.Equal(t, time.UnixMilli(1767366245123), book.Timestamp)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 1)
	assert.True(t, book.Asks[0].Price.Equal(decimal.RequireFromString("0.40")))
	assert.True(t, book.Asks[0].Size.Equal(decimal.RequireFromString("200")))
}

func TestBookToDomainDropsBadLevels(t *testing.T) {
	msg := &BookMessage{
		AssetID:   "token-1",
		Timestamp: "1767366245123",
		Asks: []WSPriceLevel{
			{Price: "not-a-number", Size: "10"},
			{Price: "0", Size: "10"},
			{Price: "0.40", Size: "-5"},
			{Price: "0.40", Size: "200"},
		},
	}

	book := BookToDomain(msg, arrival)
	require.Len(t, book.Asks, 1)
	assert.Equal(t, "0.4", book.Asks[0].Price.String())
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"ms epoch", "1767366245123", time.UnixMilli(1767366245123)},
		{"s epoch", "1767366245", time.Unix(1767366245, 0)},
		{"rfc3339", "2026-01-02T15:04:05Z", time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)},
		{"garbage", "soon", arrival},
		{"empty", "", arrival},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTimestamp(tt.in, arrival)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}
