// Package feed assembles raw per-asset order books into per-market snapshots
// for the engine, and provides an offline replay source for backtesting.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/platform/polymarket"
)

// Market binds one market ID to its UP and DOWN outcome token IDs.
type Market struct {
	ID        string
	UpAsset   string
	DownAsset string
}

// PolymarketFeed subscribes to the CLOB book channel for both outcome tokens
// of each configured market and emits a MarketSnapshot whenever either side
// updates while the other side is still fresh. A market with one side missing
// or stale emits nothing, so the engine never sees a half-assembled pair.
type PolymarketFeed struct {
	client  *polymarket.WSClient
	handler domain.SnapshotHandler
	maxAge  time.Duration
	logger  *slog.Logger

	markets []Market
	byAsset map[string]assetRole

	mu    sync.Mutex
	books map[string]domain.OrderBook
}

type assetRole struct {
	marketID string
	side     domain.Side
}

// NewPolymarketFeed wires a WS client to the snapshot handler. maxAge bounds
// how old the opposite side's book may be for a pair to still count as live.
func NewPolymarketFeed(client *polymarket.WSClient, markets []Market, maxAge time.Duration, handler domain.SnapshotHandler, logger *slog.Logger) (*PolymarketFeed, error) {
	byAsset := make(map[string]assetRole, len(markets)*2)
	for _, m := range markets {
		if m.UpAsset == "" || m.DownAsset == "" {
			return nil, fmt.Errorf("feed: market %q: both outcome assets are required", m.ID)
		}
		byAsset[m.UpAsset] = assetRole{marketID: m.ID, side: domain.SideUp}
		byAsset[m.DownAsset] = assetRole{marketID: m.ID, side: domain.SideDown}
	}

	f := &PolymarketFeed{
		client:  client,
		handler: handler,
		maxAge:  maxAge,
		logger:  logger.With(slog.String("component", "polymarket_feed")),
		markets: markets,
		byAsset: byAsset,
		books:   make(map[string]domain.OrderBook, len(byAsset)),
	}
	client.OnBook(f.onBook)
	return f, nil
}

// Run connects, subscribes both tokens of every market, and blocks until the
// context is cancelled. Reconnection is handled inside the WS client.
func (f *PolymarketFeed) Run(ctx context.Context) error {
	if err := f.client.Connect(ctx); err != nil {
		return err
	}
	defer f.client.Close()

	assets := make([]string, 0, len(f.byAsset))
	for id := range f.byAsset {
		assets = append(assets, id)
	}
	if err := f.client.SubscribeBooks(ctx, assets); err != nil {
		return err
	}
	f.logger.Info("feed running",
		slog.Int("markets", len(f.markets)),
		slog.Int("assets", len(assets)),
	)

	<-ctx.Done()
	return ctx.Err()
}

// onBook stores the latest book for the asset and emits a snapshot when the
// opposite side is present and fresh.
func (f *PolymarketFeed) onBook(book domain.OrderBook) {
	role, ok := f.byAsset[book.AssetID]
	if !ok {
		return
	}

	f.mu.Lock()
	f.books[book.AssetID] = book
	snap, ready := f.assembleLocked(role.marketID)
	f.mu.Unlock()

	if !ready {
		return
	}
	f.handler(context.Background(), snap)
}

// assembleLocked builds the snapshot for a market from the cached books.
// Caller must hold f.mu.
func (f *PolymarketFeed) assembleLocked(marketID string) (domain.MarketSnapshot, bool) {
	var mkt Market
	found := false
	for _, m := range f.markets {
		if m.ID == marketID {
			mkt, found = m, true
			break
		}
	}
	if !found {
		return domain.MarketSnapshot{}, false
	}

	up, okUp := f.books[mkt.UpAsset]
	down, okDown := f.books[mkt.DownAsset]
	if !okUp || !okDown {
		return domain.MarketSnapshot{}, false
	}

	now := time.Now()
	if f.maxAge > 0 {
		if now.Sub(up.Timestamp) > f.maxAge || now.Sub(down.Timestamp) > f.maxAge {
			f.logger.Debug("stale side, snapshot withheld", slog.String("market", marketID))
			return domain.MarketSnapshot{}, false
		}
	}

	askUp, okUp := up.BestAsk()
	askDown, okDown := down.BestAsk()
	if !okUp || !okDown {
		return domain.MarketSnapshot{}, false
	}

	ts := up.Timestamp
	if down.Timestamp.After(ts) {
		ts = down.Timestamp
	}

	return domain.MarketSnapshot{
		MarketID:  marketID,
		PriceUp:   askUp.Price,
		PriceDown: askDown.Price,
		BidsUp:    up.Bids,
		AsksUp:    up.Asks,
		BidsDown:  down.Bids,
		AsksDown:  down.Asks,
		Timestamp: ts,
	}, true
}
