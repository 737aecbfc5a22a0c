package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration in layers: built-in defaults, then the TOML file
// at path (skipped when path is empty or missing), then PAIRBOT_* environment
// variables. A .env file in the working directory is loaded first so local
// development can keep credentials out of the TOML.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides selected fields from the environment. Only operational
// knobs and credentials are exposed this way; strategy parameters stay in the
// TOML file.
func applyEnv(cfg *Config) {
	setStr("PAIRBOT_MODE", &cfg.Mode)
	setStr("PAIRBOT_LOG_LEVEL", &cfg.LogLevel)

	setStr("PAIRBOT_WS_HOST", &cfg.Polymarket.WsHost)
	setStr("PAIRBOT_REPLAY_PATH", &cfg.Replay.Path)

	setBool("PAIRBOT_REDIS_ENABLED", &cfg.Redis.Enabled)
	setStr("PAIRBOT_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("PAIRBOT_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("PAIRBOT_REDIS_DB", &cfg.Redis.DB)

	setBool("PAIRBOT_POSTGRES_ENABLED", &cfg.Postgres.Enabled)
	setStr("PAIRBOT_POSTGRES_DSN", &cfg.Postgres.DSN)
	setStr("PAIRBOT_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("PAIRBOT_POSTGRES_PORT", &cfg.Postgres.Port)
	setStr("PAIRBOT_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setStr("PAIRBOT_POSTGRES_USER", &cfg.Postgres.User)
	setStr("PAIRBOT_POSTGRES_PASSWORD", &cfg.Postgres.Password)

	setBool("PAIRBOT_S3_ENABLED", &cfg.S3.Enabled)
	setStr("PAIRBOT_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("PAIRBOT_S3_REGION", &cfg.S3.Region)
	setStr("PAIRBOT_S3_BUCKET", &cfg.S3.Bucket)
	setStr("PAIRBOT_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("PAIRBOT_S3_SECRET_KEY", &cfg.S3.SecretKey)

	setInt("PAIRBOT_SERVER_PORT", &cfg.Server.Port)

	setStr("PAIRBOT_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("PAIRBOT_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
}

// ConnString builds a connection string from the discrete fields when an
// explicit dsn is not configured.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

func setStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}
