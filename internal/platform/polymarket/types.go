package polymarket

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
)

// WSCommand is the JSON payload sent to the WebSocket to subscribe/unsubscribe.
type WSCommand struct {
	Type    string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
	Markets []string `json:"markets,omitempty"`
}

// BookMessage is a full orderbook snapshot delivered over WebSocket.
type BookMessage struct {
	AssetID   string         `json:"asset_id"`
	Market    string         `json:"market"`
	Bids      []WSPriceLevel `json:"bids"`
	Asks      []WSPriceLevel `json:"asks"`
	Timestamp string         `json:"timestamp"`
	Hash      string         `json:"hash"`
}

// WSPriceLevel is a single bid/ask level in the WebSocket orderbook data.
// Prices and sizes arrive as decimal strings and stay exact.
type WSPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookToDomain converts a BookMessage to a domain.OrderBook. Levels with
// unparseable or non-positive price or size are dropped rather than failing
// the whole book.
func BookToDomain(b *BookMessage, now time.Time) domain.OrderBook {
	book := domain.OrderBook{
		AssetID:   b.AssetID,
		Timestamp: parseTimestamp(b.Timestamp, now),
	}
	book.Bids = parseLevels(b.Bids)
	book.Asks = parseLevels(b.Asks)
	return book
}

func parseLevels(raw []WSPriceLevel) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		price, err := decimal.NewFromString(lvl.Price)
		if err != nil || !price.IsPositive() {
			continue
		}
		size, err := decimal.NewFromString(lvl.Size)
		if err != nil || !size.IsPositive() {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels
}

// parseTimestamp accepts the millisecond epoch strings the CLOB feed sends,
// plus RFC3339 as seen on older messages. Falls back to the arrival time.
func parseTimestamp(s string, now time.Time) time.Time {
	if d, err := decimal.NewFromString(s); err == nil {
		ms := d.IntPart()
		if ms > 1e12 {
			return time.UnixMilli(ms)
		}
		if ms > 0 {
			return time.Unix(ms, 0)
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return now
}
