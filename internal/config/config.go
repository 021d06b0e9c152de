// Package config defines the top-level configuration for the Kalshi trading
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by KALSHIBOT_* environment
// variables.
type Config struct {
	Kalshi   KalshiConfig   `toml:"kalshi"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Engine   EngineConfig   `toml:"engine"`
	Strategy StrategyConfig `toml:"strategy"`
	Executor ExecutorConfig `toml:"executor"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`

	// Mode selects what the process runs: trade, monitor, server, or full.
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	// SafeMode keeps the full pipeline running but suppresses order
	// placement.
	SafeMode bool `toml:"safe_mode"`
}

// KalshiConfig holds exchange API credentials and endpoints.
type KalshiConfig struct {
	ApiKeyID         string `toml:"api_key_id"`
	PrivateKeyPEM    string `toml:"private_key_pem"`
	PrivateKeyPath   string `toml:"private_key_path"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	BaseURL          string `toml:"base_url"`
	WsURL            string `toml:"ws_url"`

	// RequestsPerSecond bounds outbound REST calls when Redis is available.
	RequestsPerSecond int `toml:"requests_per_second"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the audit archive.
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

// EngineConfig overrides the risk model's most commonly tuned parameters.
// Zero values fall back to the built-in defaults.
type EngineConfig struct {
	WideSpreadPct     float64 `toml:"wide_spread_pct"`
	MinLiquidity      int     `toml:"min_liquidity"`
	MaxMarketImpact   float64 `toml:"max_market_impact_pct"`
	MaxInventoryPct   float64 `toml:"max_inventory_pct"`
	MinDecisionSafety float64 `toml:"min_decision_safety"`
	ToxicFlowLimit    float64 `toml:"toxic_flow_threshold"`
}

// StrategyConfig holds market-making parameters.
type StrategyConfig struct {
	Tickers      []string `toml:"tickers"`
	QuoteSize    int      `toml:"quote_size"`
	BaseSpread   float64  `toml:"base_spread"`
	MinEdge      float64  `toml:"min_edge"`
	FillRate     float64  `toml:"fill_rate"`
	RebatePerLot float64  `toml:"rebate_per_lot"`
	EvalInterval duration `toml:"eval_interval"`
}

// ExecutorConfig holds trading-loop parameters.
type ExecutorConfig struct {
	DedupTTL   duration `toml:"dedup_ttl"`
	BalanceTTL duration `toml:"balance_ttl"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKey protects the REST API when non-empty.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// duration wraps time.Duration so TOML values can be written as "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Kalshi: KalshiConfig{
			BaseURL:           "https://api.elections.kalshi.com/trade-api/v2",
			WsURL:             "wss://api.elections.kalshi.com/trade-api/ws/v2",
			RequestsPerSecond: 10,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "kalshibot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "kalshibot-archive",
			ForcePathStyle: true,
		},
		Strategy: StrategyConfig{
			QuoteSize:    10,
			BaseSpread:   0.02,
			MinEdge:      0.002,
			FillRate:     0.5,
			EvalInterval: duration{5 * time.Second},
		},
		Executor: ExecutorConfig{
			DedupTTL:   duration{2 * time.Minute},
			BalanceTTL: duration{30 * time.Second},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "monitor",
		LogLevel: "info",
		SafeMode: false,
	}
}

var validModes = map[string]bool{
	"trade":   true,
	"monitor": true,
	"server":  true,
	"full":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, monitor, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Kalshi credentials are mandatory for anything that talks to the API.
	needsAPI := c.Mode == "trade" || c.Mode == "monitor" || c.Mode == "full"
	if needsAPI {
		if c.Kalshi.ApiKeyID == "" {
			errs = append(errs, "kalshi: api_key_id is required for mode "+c.Mode)
		}
		if c.Kalshi.PrivateKeyPEM == "" && c.Kalshi.PrivateKeyPath == "" && c.Kalshi.EncryptedKeyPath == "" {
			errs = append(errs, "kalshi: one of private_key_pem, private_key_path, or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Kalshi.EncryptedKeyPath != "" && c.Kalshi.KeyPassword == "" {
			errs = append(errs, "kalshi: key_password is required when encrypted_key_path is set")
		}
		if c.Kalshi.BaseURL == "" {
			errs = append(errs, "kalshi: base_url must not be empty")
		}
	}

	needsTickers := c.Mode == "trade" || c.Mode == "full"
	if needsTickers && len(c.Strategy.Tickers) == 0 {
		errs = append(errs, "strategy: tickers must not be empty for mode "+c.Mode)
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	if c.Strategy.QuoteSize < 1 {
		errs = append(errs, "strategy: quote_size must be >= 1")
	}
	if c.Strategy.BaseSpread <= 0 || c.Strategy.BaseSpread >= 1 {
		errs = append(errs, "strategy: base_spread must be in (0, 1)")
	}
	if c.Strategy.FillRate < 0 || c.Strategy.FillRate > 1 {
		errs = append(errs, "strategy: fill_rate must be in [0, 1]")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
