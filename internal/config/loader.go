package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies KALSHIBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present, silently ignore if missing.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KALSHIBOT_* environment variables and
// overwrites the corresponding Config fields when set, so operators can
// inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// Kalshi
	setStr(&cfg.Kalshi.ApiKeyID, "KALSHIBOT_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.PrivateKeyPEM, "KALSHIBOT_KALSHI_PRIVATE_KEY_PEM")
	setStr(&cfg.Kalshi.PrivateKeyPath, "KALSHIBOT_KALSHI_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "KALSHIBOT_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "KALSHIBOT_KALSHI_KEY_PASSWORD")
	setStr(&cfg.Kalshi.BaseURL, "KALSHIBOT_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.WsURL, "KALSHIBOT_KALSHI_WS_URL")
	setInt(&cfg.Kalshi.RequestsPerSecond, "KALSHIBOT_KALSHI_REQUESTS_PER_SECOND")

	// Postgres
	setStr(&cfg.Postgres.DSN, "KALSHIBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "KALSHIBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KALSHIBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KALSHIBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KALSHIBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KALSHIBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KALSHIBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KALSHIBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KALSHIBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KALSHIBOT_POSTGRES_RUN_MIGRATIONS")

	// Redis
	setStr(&cfg.Redis.Addr, "KALSHIBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KALSHIBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KALSHIBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KALSHIBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KALSHIBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KALSHIBOT_REDIS_TLS_ENABLED")

	// S3
	setBool(&cfg.S3.Enabled, "KALSHIBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KALSHIBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KALSHIBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "KALSHIBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KALSHIBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KALSHIBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KALSHIBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KALSHIBOT_S3_FORCE_PATH_STYLE")

	// Engine
	setFloat64(&cfg.Engine.WideSpreadPct, "KALSHIBOT_ENGINE_WIDE_SPREAD_PCT")
	setInt(&cfg.Engine.MinLiquidity, "KALSHIBOT_ENGINE_MIN_LIQUIDITY")
	setFloat64(&cfg.Engine.MaxMarketImpact, "KALSHIBOT_ENGINE_MAX_MARKET_IMPACT_PCT")
	setFloat64(&cfg.Engine.MaxInventoryPct, "KALSHIBOT_ENGINE_MAX_INVENTORY_PCT")
	setFloat64(&cfg.Engine.MinDecisionSafety, "KALSHIBOT_ENGINE_MIN_DECISION_SAFETY")
	setFloat64(&cfg.Engine.ToxicFlowLimit, "KALSHIBOT_ENGINE_TOXIC_FLOW_THRESHOLD")

	// Strategy
	setStringSlice(&cfg.Strategy.Tickers, "KALSHIBOT_STRATEGY_TICKERS")
	setInt(&cfg.Strategy.QuoteSize, "KALSHIBOT_STRATEGY_QUOTE_SIZE")
	setFloat64(&cfg.Strategy.BaseSpread, "KALSHIBOT_STRATEGY_BASE_SPREAD")
	setFloat64(&cfg.Strategy.MinEdge, "KALSHIBOT_STRATEGY_MIN_EDGE")
	setFloat64(&cfg.Strategy.FillRate, "KALSHIBOT_STRATEGY_FILL_RATE")
	setFloat64(&cfg.Strategy.RebatePerLot, "KALSHIBOT_STRATEGY_REBATE_PER_LOT")
	setDuration(&cfg.Strategy.EvalInterval, "KALSHIBOT_STRATEGY_EVAL_INTERVAL")

	// Executor
	setDuration(&cfg.Executor.DedupTTL, "KALSHIBOT_EXECUTOR_DEDUP_TTL")
	setDuration(&cfg.Executor.BalanceTTL, "KALSHIBOT_EXECUTOR_BALANCE_TTL")

	// Server
	setBool(&cfg.Server.Enabled, "KALSHIBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "KALSHIBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "KALSHIBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "KALSHIBOT_SERVER_API_KEY")

	// Notify
	setStr(&cfg.Notify.TelegramToken, "KALSHIBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KALSHIBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KALSHIBOT_NOTIFY_DISCORD_WEBHOOK_URL")

	// Top-level
	setStr(&cfg.Mode, "KALSHIBOT_MODE")
	setStr(&cfg.LogLevel, "KALSHIBOT_LOG_LEVEL")
	setBool(&cfg.SafeMode, "KALSHIBOT_SAFE_MODE")
}

// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
