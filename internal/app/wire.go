package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	s3blob "github.com/updownlabs/pairbot/internal/blob/s3"
	"github.com/updownlabs/pairbot/internal/cache/redis"
	"github.com/updownlabs/pairbot/internal/config"
	"github.com/updownlabs/pairbot/internal/domain"
	"github.com/updownlabs/pairbot/internal/engine"
	"github.com/updownlabs/pairbot/internal/notify"
	"github.com/updownlabs/pairbot/internal/risk"
	"github.com/updownlabs/pairbot/internal/sim"
	"github.com/updownlabs/pairbot/internal/spread"
	"github.com/updownlabs/pairbot/internal/store/postgres"
	"github.com/updownlabs/pairbot/internal/strategy"
)

// Dependencies bundles everything the application modes need. Optional
// backends (Redis, Postgres, S3) stay nil when disabled; the result sink
// degrades gracefully around them.
type Dependencies struct {
	Runner engine.RunnerDeps

	TickCache  domain.TickCache
	TradeStore domain.TradeStore
	Archiver   domain.Archiver
	Notifier   *notify.Notifier
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Runner: buildEngineDeps(cfg.Engine, logger),
	}

	if cfg.Redis.Enabled {
		rdb, err := redis.Dial(ctx, redis.Options{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLS:        cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		deps.TickCache = redis.NewTickCache(rdb)
	}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.TradeStore = postgres.NewTradeStore(pgClient.Pool())
	}

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// buildEngineDeps translates the float-valued configuration into the decimal
// components shared by all market runners.
func buildEngineDeps(ec config.EngineConfig, logger *slog.Logger) engine.RunnerDeps {
	tiers := make([]strategy.Tier, 0, len(ec.EntryTiers))
	for _, t := range ec.EntryTiers {
		tiers = append(tiers, strategy.Tier{
			MaxPrice: decimal.NewFromFloat(t.MaxPrice),
			Notional: decimal.NewFromFloat(t.Notional),
		})
	}

	analyzer := spread.NewAnalyzer(spread.Thresholds{
		Normal:  decimal.NewFromFloat(ec.Spread.Normal),
		High:    decimal.NewFromFloat(ec.Spread.High),
		Extreme: decimal.NewFromFloat(ec.Spread.Extreme),
	})

	phases := strategy.NewEngine(strategy.Config{
		StopLossLimit:         decimal.NewFromFloat(ec.StopLossLimit),
		DeltaRebalance:        decimal.NewFromFloat(ec.Delta.Rebalance),
		DeltaCritical:         decimal.NewFromFloat(ec.Delta.Critical),
		DeltaEmergency:        decimal.NewFromFloat(ec.Delta.Emergency),
		EmergencyPriceCeiling: decimal.NewFromFloat(ec.EmergencyPriceCeiling),
		ArbNotionalHigh:       decimal.NewFromFloat(ec.ArbNotionalHigh),
		ArbNotionalExtreme:    decimal.NewFromFloat(ec.ArbNotionalExtreme),
		ImprovementDiscount:   decimal.NewFromFloat(ec.ImprovementDiscount),
		EntryTiers:            tiers,
	}, logger)

	governor := risk.NewGovernor(risk.Config{
		PerMarketBudget:     decimal.NewFromFloat(ec.PerMarketBudget),
		PositionCapFraction: decimal.NewFromFloat(ec.PositionCapFraction),
		ReserveCash:         decimal.NewFromFloat(ec.ReserveCash),
		StopLossLimit:       decimal.NewFromFloat(ec.StopLossLimit),
		PairCostLimit:       decimal.NewFromFloat(ec.PairCostLimit),
		MinTrade:            decimal.NewFromFloat(ec.MinTrade),
		MaxTrade:            decimal.NewFromFloat(ec.MaxTrade),
		Cooldown:            time.Duration(ec.CooldownSeconds) * time.Second,
	}, logger)

	simulator := sim.NewSimulator(sim.Config{
		FeeMode: sim.FeeMode(ec.FeeMode),
		FlatFee: decimal.NewFromFloat(ec.FlatFee),
		FeeRate: decimal.NewFromFloat(ec.FeeRate),
	}, logger)

	return engine.RunnerDeps{
		Analyzer: analyzer,
		Phases:   phases,
		Governor: governor,
		Sim:      simulator,
	}
}
