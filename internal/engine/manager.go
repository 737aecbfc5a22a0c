package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/updownlabs/pairbot/internal/domain"
)

const defaultTickBuffer = 32

// ResultHandler is invoked after every evaluated tick, outside the runner
// lock. Used by the app layer to publish state, journal trades, and notify.
type ResultHandler func(ctx context.Context, result domain.TickResult)

// Manager owns one Runner per active market and a worker goroutine per
// runner, so ticks for a market are serialized while markets proceed in
// parallel.
type Manager struct {
	deps   RunnerDeps
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	onResult ResultHandler
}

type entry struct {
	runner *Runner
	ticks  chan domain.MarketSnapshot
}

// NewManager creates a Manager with a runner for each of the given markets.
func NewManager(markets []string, deps RunnerDeps, logger *slog.Logger) *Manager {
	m := &Manager{
		deps:    deps,
		logger:  logger.With(slog.String("component", "market_manager")),
		entries: make(map[string]*entry, len(markets)),
	}
	for _, id := range markets {
		m.entries[id] = &entry{
			runner: NewRunner(id, deps, logger),
			ticks:  make(chan domain.MarketSnapshot, defaultTickBuffer),
		}
	}
	return m
}

// SetOnResult registers the tick-result callback. Must be called before Run.
func (m *Manager) SetOnResult(fn ResultHandler) {
	m.onResult = fn
}

// Submit routes a snapshot to its market's worker. When the worker's buffer
// is full the snapshot is dropped: a newer one is already on the way and
// trading on stale data is worse than skipping.
func (m *Manager) Submit(ctx context.Context, snap domain.MarketSnapshot) error {
	m.mu.RLock()
	e, ok := m.entries[snap.MarketID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("manager: market %q: %w", snap.MarketID, domain.ErrMarketUnknown)
	}

	select {
	case e.ticks <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		m.logger.Debug("tick dropped, worker busy", slog.String("market", snap.MarketID))
		return nil
	}
}

// Run starts one worker per market and blocks until the context is
// cancelled. Workers drain their channel sequentially, which is what keeps
// per-market evaluation strictly ordered.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	m.logger.Info("market manager started", slog.Int("markets", len(entries)))
	defer m.logger.Info("market manager stopped")

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			return m.runWorker(gctx, e)
		})
	}
	return g.Wait()
}

func (m *Manager) runWorker(ctx context.Context, e *entry) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-e.ticks:
			result, err := e.runner.OnTick(ctx, snap)
			if err != nil {
				m.logger.Warn("tick skipped",
					slog.String("market", snap.MarketID),
					slog.String("error", err.Error()),
				)
				continue
			}
			if m.onResult != nil {
				m.onResult(ctx, result)
			}
		}
	}
}

// State returns the current tick result view for one market.
func (m *Manager) State(marketID string) (domain.TickResult, error) {
	m.mu.RLock()
	e, ok := m.entries[marketID]
	m.mu.RUnlock()
	if !ok {
		return domain.TickResult{}, fmt.Errorf("manager: market %q: %w", marketID, domain.ErrMarketUnknown)
	}
	return e.runner.State(), nil
}

// Trades returns the trade log for one market.
func (m *Manager) Trades(marketID string) ([]domain.Trade, error) {
	m.mu.RLock()
	e, ok := m.entries[marketID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("manager: market %q: %w", marketID, domain.ErrMarketUnknown)
	}
	return e.runner.Trades(), nil
}

// Markets lists the managed market IDs, sorted.
func (m *Manager) Markets() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve finalizes a market with the winning side and removes its runner.
// The trade log is returned alongside the resolution so the caller can
// archive it; all in-memory state for the market is discarded afterward.
func (m *Manager) Resolve(marketID string, winner domain.Side) (domain.Resolution, []domain.Trade, error) {
	m.mu.RLock()
	e, ok := m.entries[marketID]
	m.mu.RUnlock()
	if !ok {
		return domain.Resolution{}, nil, fmt.Errorf("manager: market %q: %w", marketID, domain.ErrMarketUnknown)
	}

	// The runner rejects invalid winners and double resolution; the entry is
	// removed only once the resolution actually happened, so a failed attempt
	// leaves the market trading.
	res, err := e.runner.Resolve(winner)
	if err != nil {
		return domain.Resolution{}, nil, err
	}

	m.mu.Lock()
	delete(m.entries, marketID)
	m.mu.Unlock()
	return res, e.runner.Trades(), nil
}
