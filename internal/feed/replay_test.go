package feed

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/pairbot/internal/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTape(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tape.jsonl")
	body := ""
	for _, l := range lines {
		body += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const goodLine = `{"market_id":"m","price_up":"0.40","price_down":"0.55",` +
	`"asks_up":[{"price":"0.40","size":"200"}],"asks_down":[{"price":"0.55","size":"200"}],` +
	`"timestamp":"2026-01-02T15:04:05Z"}`

func TestReplayDeliversSnapshots(t *testing.T) {
	path := writeTape(t, goodLine, goodLine)

	var got []domain.MarketSnapshot
	handler := func(ctx context.Context, snap domain.MarketSnapshot) {
		got = append(got, snap)
	}

	f := NewReplayFeed(path, 0, 0, handler, discard())
	require.NoError(t, f.Run(context.Background()))
	require.Len(t, got, 2)

	snap := got[0]
	assert.Equal(t, "m", snap.MarketID)
	assert.Equal(t, "0.4", snap.PriceUp.String())
	assert.Equal(t, "0.55", snap.PriceDown.String())
	require.Len(t, snap.AsksUp, 1)
	assert.Equal(t, "0.4", snap.AsksUp[0].Price.String())
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), snap.Timestamp.UTC())
}

func TestReplaySkipsMalformedLines(t *testing.T) {
	path := writeTape(t,
		`not json at all`,
		`{"market_id":"m","price_up":"banana","price_down":"0.55"}`,
		goodLine,
		``,
	)

	var delivered int
	f := NewReplayFeed(path, 0, 0, func(ctx context.Context, _ domain.MarketSnapshot) {
		delivered++
	}, discard())
	require.NoError(t, f.Run(context.Background()))
	assert.Equal(t, 1, delivered)
}

func TestReplayEmptyTapeIsAnError(t *testing.T) {
	path := writeTape(t, `garbage`)

	f := NewReplayFeed(path, 0, 0, func(ctx context.Context, _ domain.MarketSnapshot) {}, discard())
	err := f.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshots")
}

func TestReplayMissingFile(t *testing.T) {
	f := NewReplayFeed(filepath.Join(t.TempDir(), "nope.jsonl"), 0, 0,
		func(ctx context.Context, _ domain.MarketSnapshot) {}, discard())
	assert.Error(t, f.Run(context.Background()))
}

func TestReplayHonorsCancellation(t *testing.T) {
	path := writeTape(t, goodLine, goodLine)

	ctx, cancel := context.WithCancel(context.Background())
	f := NewReplayFeed(path, 0, 0, func(ctx context.Context, _ domain.MarketSnapshot) {
		cancel()
	}, discard())
	err := f.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplayLoopsTapeUntilCancelled(t *testing.T) {
	path := writeTape(t, goodLine, goodLine)

	ctx, cancel := context.WithCancel(context.Background())
	var delivered int
	f := NewReplayFeed(path, 0, time.Millisecond, func(ctx context.Context, _ domain.MarketSnapshot) {
		delivered++
		if delivered == 4 {
			cancel()
		}
	}, discard())

	err := f.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, delivered, 4, "the tape must have restarted at least once")
}
