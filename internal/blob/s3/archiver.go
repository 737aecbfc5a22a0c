package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Archiver implements domain.Archiver. When a market resolves, the resolution
// record and the full trade log are serialized to JSONL and uploaded under a
// per-market key. Removal of the market's rows from the journal is a separate
// explicit step, run only after the archive is verified.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver that uploads through the given writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveMarket uploads the resolution and trade log for a resolved market
// and returns the object key.
func (a *Archiver) ArchiveMarket(ctx context.Context, res domain.Resolution, trades []domain.Trade) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(res); err != nil {
		return "", fmt.Errorf("s3blob: encode resolution %s: %w", res.MarketID, err)
	}
	for i, t := range trades {
		if err := enc.Encode(t); err != nil {
			return "", fmt.Errorf("s3blob: encode trade %d for %s: %w", i, res.MarketID, err)
		}
	}

	key := archiveKey(res)
	if err := a.writer.Put(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return "", err
	}
	return key, nil
}

// archiveKey partitions archives by resolution month, then market:
//
//	archive/resolutions/2026-08/btc-updown-15m-1130.jsonl
func archiveKey(res domain.Resolution) string {
	return fmt.Sprintf("archive/resolutions/%s/%s.jsonl",
		res.ResolvedAt.Format("2006-01"), res.MarketID)
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
