package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/updownlabs/pairbot/internal/domain"
)

// snapshotRecord is one JSONL line of a recorded session. Prices and sizes
// are decimal strings so the replay reproduces the exact tape.
type snapshotRecord struct {
	MarketID  string        `json:"market_id"`
	PriceUp   string        `json:"price_up"`
	PriceDown string        `json:"price_down"`
	AsksUp    []levelRecord `json:"asks_up"`
	AsksDown  []levelRecord `json:"asks_down"`
	BidsUp    []levelRecord `json:"bids_up"`
	BidsDown  []levelRecord `json:"bids_down"`
	Timestamp time.Time     `json:"timestamp"`
}

type levelRecord struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// ReplayFeed replays a recorded JSONL snapshot tape through the engine.
// speedUp > 0 paces delivery by the recorded inter-snapshot gaps divided by
// the factor; zero delivers as fast as the engine drains. loopDelay > 0
// restarts the tape after that pause until the context is cancelled.
type ReplayFeed struct {
	path      string
	speedUp   int
	loopDelay time.Duration
	handler   domain.SnapshotHandler
	logger    *slog.Logger
}

// NewReplayFeed creates a replay source for the tape at path.
func NewReplayFeed(path string, speedUp int, loopDelay time.Duration, handler domain.SnapshotHandler, logger *slog.Logger) *ReplayFeed {
	return &ReplayFeed{
		path:      path,
		speedUp:   speedUp,
		loopDelay: loopDelay,
		handler:   handler,
		logger:    logger.With(slog.String("component", "replay_feed")),
	}
}

// Run streams the tape, once with loopDelay zero or repeatedly otherwise.
func (f *ReplayFeed) Run(ctx context.Context) error {
	for {
		if err := f.streamOnce(ctx); err != nil {
			return err
		}
		if f.loopDelay <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.loopDelay):
		}
	}
}

// streamOnce delivers one full pass of the tape. Malformed lines are counted
// and skipped; a tape that yields nothing is an error.
func (f *ReplayFeed) streamOnce(ctx context.Context) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("feed: open replay tape: %w", err)
	}
	defer file.Close()

	f.logger.Info("replay started", slog.String("path", f.path), slog.Int("speed_up", f.speedUp))

	var (
		delivered int
		malformed int
		prevTS    time.Time
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec snapshotRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			malformed++
			continue
		}
		snap, err := rec.toDomain()
		if err != nil {
			malformed++
			continue
		}

		if f.speedUp > 0 && !prevTS.IsZero() && snap.Timestamp.After(prevTS) {
			gap := snap.Timestamp.Sub(prevTS) / time.Duration(f.speedUp)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gap):
			}
		}
		prevTS = snap.Timestamp

		f.handler(ctx, snap)
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("feed: read replay tape: %w", err)
	}
	if delivered == 0 {
		return fmt.Errorf("feed: replay tape %s produced no snapshots", f.path)
	}

	f.logger.Info("replay finished",
		slog.Int("delivered", delivered),
		slog.Int("malformed", malformed),
	)
	return nil
}

func (r *snapshotRecord) toDomain() (domain.MarketSnapshot, error) {
	priceUp, err := decimal.NewFromString(r.PriceUp)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("price_up: %w", err)
	}
	priceDown, err := decimal.NewFromString(r.PriceDown)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("price_down: %w", err)
	}

	snap := domain.MarketSnapshot{
		MarketID:  r.MarketID,
		PriceUp:   priceUp,
		PriceDown: priceDown,
		Timestamp: r.Timestamp,
	}
	if snap.AsksUp, err = toLevels(r.AsksUp); err != nil {
		return domain.MarketSnapshot{}, err
	}
	if snap.AsksDown, err = toLevels(r.AsksDown); err != nil {
		return domain.MarketSnapshot{}, err
	}
	if snap.BidsUp, err = toLevels(r.BidsUp); err != nil {
		return domain.MarketSnapshot{}, err
	}
	if snap.BidsDown, err = toLevels(r.BidsDown); err != nil {
		return domain.MarketSnapshot{}, err
	}
	return snap, nil
}

func toLevels(recs []levelRecord) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(recs))
	for _, rec := range recs {
		price, err := decimal.NewFromString(rec.Price)
		if err != nil {
			return nil, fmt.Errorf("level price: %w", err)
		}
		size, err := decimal.NewFromString(rec.Size)
		if err != nil {
			return nil, fmt.Errorf("level size: %w", err)
		}
		levels = append(levels, domain.PriceLevel{Price: price, Size: size})
	}
	return levels, nil
}
