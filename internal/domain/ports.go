package domain

import (
	"context"
	"time"
)

// SnapshotHandler receives assembled market snapshots from a feed.
type SnapshotHandler func(ctx context.Context, snap MarketSnapshot)

// MarketDataFeed delivers market snapshots to the engine. Implementations
// must represent missing or stale data by withholding delivery so the engine
// skips the tick instead of trading on bad data.
type MarketDataFeed interface {
	Run(ctx context.Context) error
}

// TickCache stores the latest tick result per market for display-cadence
// polling by the rendering layer.
type TickCache interface {
	SetTick(ctx context.Context, result TickResult) error
	GetTick(ctx context.Context, marketID string) (TickResult, error)
}

// TradeStore persists the trade journal. Durability is a caller concern; the
// engine never reads the journal back. DeleteByMarket prunes a resolved
// market's rows once its trade log has been archived.
type TradeStore interface {
	InsertBatch(ctx context.Context, trades []Trade) error
	ListByMarket(ctx context.Context, marketID string, limit int) ([]Trade, error)
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
	DeleteByMarket(ctx context.Context, marketID string) (int64, error)
}

// BlobWriter uploads a blob under the given key.
type BlobWriter interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// Archiver persists the full trade log of a resolved market.
type Archiver interface {
	ArchiveMarket(ctx context.Context, res Resolution, trades []Trade) (string, error)
}
