// Package config defines the top-level configuration for the pairbot engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PAIRBOT_* environment
// variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Markets    []MarketConfig   `toml:"markets"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Replay     ReplayConfig     `toml:"replay"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds every tunable of the decision engine. Nothing in the
// engine is hardcoded; all values here have working defaults.
type EngineConfig struct {
	StartingBalance     float64 `toml:"starting_balance"`
	PerMarketBudget     float64 `toml:"per_market_budget"`
	PositionCapFraction float64 `toml:"position_cap_fraction"`
	ReserveCash         float64 `toml:"reserve_cash"`
	StopLossLimit       float64 `toml:"stop_loss_limit"`
	MinTrade            float64 `toml:"min_trade"`
	MaxTrade            float64 `toml:"max_trade"`
	CooldownSeconds     int     `toml:"cooldown_seconds"`
	PairCostLimit       float64 `toml:"pair_cost_limit"`

	Delta  DeltaThresholds  `toml:"delta_thresholds"`
	Spread SpreadThresholds `toml:"spread_thresholds"`

	EntryTiers            []EntryTier `toml:"entry_tiers"`
	EmergencyPriceCeiling float64     `toml:"emergency_price_ceiling"`
	ArbNotionalHigh       float64     `toml:"arb_notional_high"`
	ArbNotionalExtreme    float64     `toml:"arb_notional_extreme"`
	ImprovementDiscount   float64     `toml:"improvement_discount"`

	FeeMode string  `toml:"fee_mode"` // "flat" or "proportional"
	FlatFee float64 `toml:"flat_fee"`
	FeeRate float64 `toml:"fee_rate"`
}

// DeltaThresholds are holdings-imbalance triggers in percent.
type DeltaThresholds struct {
	Rebalance float64 `toml:"rebalance"`
	Critical  float64 `toml:"critical"`
	Emergency float64 `toml:"emergency"`
}

// SpreadThresholds are price-sum deviation tiers in dollars.
type SpreadThresholds struct {
	Normal  float64 `toml:"normal"`
	High    float64 `toml:"high"`
	Extreme float64 `toml:"extreme"`
}

// EntryTier maps a maximum entry price to a notional trade size.
type EntryTier struct {
	MaxPrice float64 `toml:"max_price"`
	Notional float64 `toml:"notional"`
}

// MarketConfig identifies one binary market and its two outcome tokens.
type MarketConfig struct {
	ID        string `toml:"id"`
	UpAsset   string `toml:"up_asset"`
	DownAsset string `toml:"down_asset"`
}

// PolymarketConfig holds the market-data endpoint parameters.
type PolymarketConfig struct {
	WsHost          string `toml:"ws_host"`
	SnapshotMaxAgeS int    `toml:"snapshot_max_age_seconds"`
}

// ReplayConfig holds the offline snapshot replay parameters.
type ReplayConfig struct {
	Path      string `toml:"path"`
	SpeedUp   int    `toml:"speed_up"`   // 0 means replay without delay
	LoopDelay int    `toml:"loop_delay"` // seconds between replays, 0 = single pass
}

// RedisConfig holds Redis connection parameters for the tick cache.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds connection parameters for the trade journal.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP status API parameters.
type ServerConfig struct {
	Port int `toml:"port"`
}

// NotifyConfig holds notification channel credentials and the event filter.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// Defaults returns the built-in configuration. Engine values follow the
// standard strategy parameters.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			StartingBalance:     1000,
			PerMarketBudget:     250,
			PositionCapFraction: 0.70,
			ReserveCash:         50,
			StopLossLimit:       -50,
			MinTrade:            2,
			MaxTrade:            30,
			CooldownSeconds:     5,
			PairCostLimit:       0.95,
			Delta: DeltaThresholds{
				Rebalance: 5,
				Critical:  10,
				Emergency: 20,
			},
			Spread: SpreadThresholds{
				Normal:  0.05,
				High:    0.15,
				Extreme: 0.25,
			},
			EntryTiers: []EntryTier{
				{MaxPrice: 0.40, Notional: 20},
				{MaxPrice: 0.50, Notional: 15},
				{MaxPrice: 0.60, Notional: 10},
			},
			EmergencyPriceCeiling: 0.60,
			ArbNotionalHigh:       15,
			ArbNotionalExtreme:    25,
			ImprovementDiscount:   0.95,
			FeeMode:               "proportional",
			FeeRate:               0.015,
		},
		Polymarket: PolymarketConfig{
			WsHost:          "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			SnapshotMaxAgeS: 5,
		},
		Replay: ReplayConfig{
			SpeedUp: 0,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pairbot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pairbot-archive",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "trade",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"trade":  true,
	"replay": true,
	"server": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency and returns a
// single error listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, replay, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	e := c.Engine
	if e.PerMarketBudget <= 0 {
		errs = append(errs, "engine: per_market_budget must be positive")
	}
	if e.PositionCapFraction <= 0 || e.PositionCapFraction > 1 {
		errs = append(errs, "engine: position_cap_fraction must be in (0,1]")
	}
	if e.ReserveCash < 0 {
		errs = append(errs, "engine: reserve_cash must not be negative")
	}
	if e.StopLossLimit >= 0 {
		errs = append(errs, "engine: stop_loss_limit must be negative")
	}
	if e.MinTrade <= 0 || e.MaxTrade < e.MinTrade {
		errs = append(errs, "engine: trade bounds require 0 < min_trade <= max_trade")
	}
	if e.CooldownSeconds < 0 {
		errs = append(errs, "engine: cooldown_seconds must not be negative")
	}
	if e.PairCostLimit <= 0 || e.PairCostLimit > 1 {
		errs = append(errs, "engine: pair_cost_limit must be in (0,1]")
	}
	if !(e.Delta.Rebalance < e.Delta.Critical && e.Delta.Critical < e.Delta.Emergency) {
		errs = append(errs, "engine: delta_thresholds must satisfy rebalance < critical < emergency")
	}
	if !(e.Spread.Normal < e.Spread.High && e.Spread.High < e.Spread.Extreme) {
		errs = append(errs, "engine: spread_thresholds must satisfy normal < high < extreme")
	}
	if len(e.EntryTiers) == 0 {
		errs = append(errs, "engine: entry_tiers must not be empty")
	}
	for i := 1; i < len(e.EntryTiers); i++ {
		if e.EntryTiers[i].MaxPrice <= e.EntryTiers[i-1].MaxPrice {
			errs = append(errs, "engine: entry_tiers must be ordered by ascending max_price")
			break
		}
	}
	if e.ImprovementDiscount <= 0 || e.ImprovementDiscount >= 1 {
		errs = append(errs, "engine: improvement_discount must be in (0,1)")
	}
	if e.FeeMode != "flat" && e.FeeMode != "proportional" {
		errs = append(errs, fmt.Sprintf("engine: unknown fee_mode %q (valid: flat, proportional)", e.FeeMode))
	}

	mode := strings.ToLower(c.Mode)
	if mode == "trade" {
		if c.Polymarket.WsHost == "" {
			errs = append(errs, "polymarket: ws_host must not be empty in trade mode")
		}
		if len(c.Markets) == 0 {
			errs = append(errs, "markets: at least one market is required in trade mode")
		}
	}
	for i, mkt := range c.Markets {
		if mkt.ID == "" {
			errs = append(errs, fmt.Sprintf("markets[%d]: id must not be empty", i))
		}
		if mode == "trade" && (mkt.UpAsset == "" || mkt.DownAsset == "") {
			errs = append(errs, fmt.Sprintf("markets[%d]: up_asset and down_asset are required in trade mode", i))
		}
	}
	if mode == "replay" && c.Replay.Path == "" {
		errs = append(errs, "replay: path must not be empty in replay mode")
	}

	if c.Postgres.Enabled && c.Postgres.DSN == "" && c.Postgres.Database == "" {
		errs = append(errs, "postgres: dsn or database must be set when enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must be set when enabled")
	}
	tgToken := c.Notify.TelegramToken != ""
	tgChat := c.Notify.TelegramChatID != ""
	if tgToken != tgChat {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
