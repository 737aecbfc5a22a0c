package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/engine"
	"github.com/updownlabs/pairbot/internal/feed"
	"github.com/updownlabs/pairbot/internal/notify"
	"github.com/updownlabs/pairbot/internal/platform/polymarket"
	"github.com/updownlabs/pairbot/internal/server"
	"github.com/updownlabs/pairbot/internal/server/handler"
)

// shutdownGrace bounds how long the HTTP server waits for in-flight requests.
const shutdownGrace = 10 * time.Second

// TradeMode runs the live pipeline: WebSocket feed, one runner per market,
// the status API, and the result sink that publishes ticks and journals
// trades.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	mgr := engine.NewManager(a.marketIDs(), deps.Runner, a.logger)

	sink := newResultSink(deps, a.logger)
	mgr.SetOnResult(sink.onTick)

	wsClient := polymarket.NewWSClient(a.cfg.Polymarket.WsHost, a.logger)

	feedMarkets := make([]feed.Market, 0, len(a.cfg.Markets))
	for _, m := range a.cfg.Markets {
		feedMarkets = append(feedMarkets, feed.Market{
			ID:        m.ID,
			UpAsset:   m.UpAsset,
			DownAsset: m.DownAsset,
		})
	}
	maxAge := time.Duration(a.cfg.Polymarket.SnapshotMaxAgeS) * time.Second
	mdFeed, err := feed.NewPolymarketFeed(wsClient, feedMarkets, maxAge, a.submitTo(mgr), a.logger)
	if err != nil {
		return fmt.Errorf("app: feed: %w", err)
	}

	srv := a.buildServer(mgr, a.resolveHook(deps))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(mgr.Run(gctx)) })
	g.Go(func() error { return ignoreCancel(mdFeed.Run(gctx)) })
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// ReplayMode streams a recorded tape through the same pipeline and logs a
// per-market summary when the tape ends. The sink still publishes to any
// enabled backends so replays can be inspected with the same tooling.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	mgr := engine.NewManager(a.marketIDs(), deps.Runner, a.logger)

	sink := newResultSink(deps, a.logger)
	mgr.SetOnResult(sink.onTick)

	loopDelay := time.Duration(a.cfg.Replay.LoopDelay) * time.Second
	rfeed := feed.NewReplayFeed(a.cfg.Replay.Path, a.cfg.Replay.SpeedUp, loopDelay, a.submitTo(mgr), a.logger)

	runCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(mgr.Run(runCtx)) })
	g.Go(func() error {
		defer stopWorkers()
		// A looping replay only stops via cancellation; that still gets a
		// summary, same as a tape that finished its single pass.
		if err := ignoreCancel(rfeed.Run(gctx)); err != nil {
			return err
		}
		// Let the workers drain their buffered ticks before teardown.
		time.Sleep(time.Second)
		a.logSummary(mgr)
		return nil
	})
	return g.Wait()
}

// ServerMode serves the status API without running the engine, reading state
// written by a trade-mode process from the tick cache and trade journal.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	if deps.TickCache == nil {
		return fmt.Errorf("app: server mode requires redis to be enabled")
	}

	view := &cacheView{
		markets: a.marketIDs(),
		cache:   deps.TickCache,
		store:   deps.TradeStore,
	}
	srv := a.buildServerWithView(view, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (a *App) marketIDs() []string {
	ids := make([]string, 0, len(a.cfg.Markets))
	for _, m := range a.cfg.Markets {
		ids = append(ids, m.ID)
	}
	return ids
}

// submitTo adapts the manager to the feed's snapshot handler. Submit errors
// mean an unknown or torn-down market; those snapshots are dropped.
func (a *App) submitTo(mgr *engine.Manager) domain.SnapshotHandler {
	return func(ctx context.Context, snap domain.MarketSnapshot) {
		if err := mgr.Submit(ctx, snap); err != nil {
			a.logger.Debug("snapshot dropped",
				slog.String("market", snap.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (a *App) buildServer(mgr *engine.Manager, onResolved handler.ResolvedCallback) *server.Server {
	return a.buildServerWithView(mgr, handler.NewResolveHandler(mgr, onResolved, a.logger))
}

func (a *App) buildServerWithView(view handler.EngineView, resolve *handler.ResolveHandler) *server.Server {
	return server.NewServer(
		server.Config{Port: a.cfg.Server.Port},
		server.Handlers{
			Health:  handler.NewHealthHandler(a.logger),
			State:   handler.NewStateHandler(view, a.logger),
			Resolve: resolve,
		},
		a.logger,
	)
}

// resolveHook archives the trade log and notifies when a market settles.
func (a *App) resolveHook(deps *Dependencies) handler.ResolvedCallback {
	return func(r *http.Request, res domain.Resolution, trades []domain.Trade) {
		ctx := r.Context()

		if deps.Archiver != nil {
			key, err := deps.Archiver.ArchiveMarket(ctx, res, trades)
			if err != nil {
				a.logger.Error("archive failed",
					slog.String("market", res.MarketID),
					slog.String("error", err.Error()),
				)
			} else {
				a.logger.Info("market archived",
					slog.String("market", res.MarketID),
					slog.String("key", key),
				)
				a.pruneJournal(ctx, deps, res.MarketID)
			}
		}

		_ = deps.Notifier.Notify(ctx, notify.EventResolution,
			"Market resolved",
			fmt.Sprintf("%s won %s, final PnL %s over %d trades",
				res.MarketID, res.Winner, res.FinalPnL.StringFixed(2), res.TradeCount),
		)
	}
}

// pruneJournal drops an archived market's rows from the journal. Runs only
// after the archive upload succeeded; the rows stay put on any earlier
// failure so nothing is lost.
func (a *App) pruneJournal(ctx context.Context, deps *Dependencies, marketID string) {
	if deps.TradeStore == nil {
		return
	}
	n, err := deps.TradeStore.DeleteByMarket(ctx, marketID)
	if err != nil {
		a.logger.Warn("journal prune failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.Info("journal pruned",
		slog.String("market", marketID),
		slog.Int64("trades", n),
	)
}

func (a *App) logSummary(mgr *engine.Manager) {
	for _, id := range mgr.Markets() {
		state, err := mgr.State(id)
		if err != nil {
			continue
		}
		a.logger.Info("replay summary",
			slog.String("market", id),
			slog.String("phase", string(state.State.Phase)),
			slog.String("cost_up", state.Position.CostUp.StringFixed(2)),
			slog.String("cost_down", state.Position.CostDown.StringFixed(2)),
			slog.String("delta_pct", state.Position.Delta().StringFixed(1)),
			slog.String("locked", state.Scenario.Locked.StringFixed(2)),
		)
	}
}

// ignoreCancel maps context cancellation to a clean exit so an orderly
// shutdown does not surface as a failure.
func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// resultSink fans each tick result out to the optional backends: latest-tick
// cache, trade journal, and notifications. Backend failures are logged and
// never fed back into the engine.
type resultSink struct {
	cache    domain.TickCache
	store    domain.TradeStore
	notifier *notify.Notifier
	logger   *slog.Logger

	mu        sync.Mutex
	lastPhase map[string]domain.Phase
}

func newResultSink(deps *Dependencies, logger *slog.Logger) *resultSink {
	return &resultSink{
		cache:     deps.TickCache,
		store:     deps.TradeStore,
		notifier:  deps.Notifier,
		logger:    logger.With(slog.String("component", "result_sink")),
		lastPhase: make(map[string]domain.Phase),
	}
}

func (s *resultSink) onTick(ctx context.Context, res domain.TickResult) {
	if s.cache != nil {
		if err := s.cache.SetTick(ctx, res); err != nil {
			s.logger.Warn("tick cache write failed",
				slog.String("market", res.MarketID),
				slog.String("error", err.Error()),
			)
		}
	}

	if res.Trade != nil {
		if s.store != nil {
			if err := s.store.InsertBatch(ctx, []domain.Trade{*res.Trade}); err != nil {
				s.logger.Warn("trade journal write failed",
					slog.String("market", res.MarketID),
					slog.String("error", err.Error()),
				)
			}
		}
		_ = s.notifier.Notify(ctx, notify.EventTrade,
			"Trade executed",
			fmt.Sprintf("%s %s qty %s at %s",
				res.MarketID, res.Trade.Side,
				res.Trade.Qty.StringFixed(4), res.Trade.Price.StringFixed(4)),
		)
	}

	// Alert once per transition into HALTED, not on every halted tick.
	s.mu.Lock()
	prev := s.lastPhase[res.MarketID]
	s.lastPhase[res.MarketID] = res.State.Phase
	s.mu.Unlock()
	if res.State.Phase == domain.PhaseHalted && prev != domain.PhaseHalted {
		_ = s.notifier.Notify(ctx, notify.EventStopLoss,
			"Stop loss triggered",
			fmt.Sprintf("%s halted with locked PnL %s",
				res.MarketID, res.Scenario.Locked.StringFixed(2)),
		)
	}
}
