package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/blob/s3"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/cache/redis"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/config"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/crypto"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/notify"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/platform/kalshi"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency that the application
// modes need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores. Trades is the concrete Postgres store because the archiver
	// reads the full history through it, beyond the domain interface.
	Positions domain.PositionStore
	Trades    *postgres.TradeStore
	Decisions domain.DecisionStore

	// Caches and coordination.
	PriceCache  domain.PriceCache
	BookCache   domain.OrderbookCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage, nil unless S3 is enabled.
	BlobWriter domain.BlobWriter
	Archiver   *s3blob.Archiver

	// Exchange client, nil in server mode.
	Kalshi *kalshi.Client

	Notifier *notify.Notifier
}

// needsExchange returns true for modes that talk to the Kalshi API.
func needsExchange(mode string) bool {
	switch mode {
	case "trade", "monitor", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// releases resources in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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

	pool := pgClient.Pool()
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Trades = postgres.NewTradeStore(pool)
	deps.Decisions = postgres.NewDecisionStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	limiter := redis.NewRateLimiter(redisClient)
	if cfg.Kalshi.RequestsPerSecond > 0 {
		limiter.SetDefaultRate(cfg.Kalshi.RequestsPerSecond, time.Second)
	}

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.BookCache = redis.NewOrderbookCache(redisClient)
	deps.RateLimiter = limiter
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Kalshi exchange client ---
	if needsExchange(cfg.Mode) {
		pem, err := crypto.LoadKey(crypto.KeyConfig{
			PrivateKeyPEM:    cfg.Kalshi.PrivateKeyPEM,
			PrivateKeyPath:   cfg.Kalshi.PrivateKeyPath,
			EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
			KeyPassword:      cfg.Kalshi.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}

		kc := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKeyID)
		if err := kc.SetRSAPrivateKey([]byte(pem)); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kalshi key: %w", err)
		}
		kc.SetRateLimiter(limiter)
		deps.Kalshi = kc
	}

	// --- S3 blob storage ---
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Trades, deps.Decisions)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, logger)

	return deps, cleanup, nil
}
