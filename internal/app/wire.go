package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/owenbrady/predictduel/internal/blob/s3"
	"github.com/owenbrady/predictduel/internal/cache/redis"
	"github.com/owenbrady/predictduel/internal/config"
	"github.com/owenbrady/predictduel/internal/crypto"
	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/engine"
	"github.com/owenbrady/predictduel/internal/executor"
	"github.com/owenbrady/predictduel/internal/ledger"
	"github.com/owenbrady/predictduel/internal/notify"
	"github.com/owenbrady/predictduel/internal/server/handler"
	"github.com/owenbrady/predictduel/internal/server/ws"
	"github.com/owenbrady/predictduel/internal/service"
	"github.com/owenbrady/predictduel/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Source  executor.Acquirer
	Engine  *engine.Engine
	Service *service.MarketService
	Hub     *ws.Hub

	MarketStore      domain.MarketStore
	ParticipantStore domain.ParticipantStore
	Cache            domain.MarketCache
	Archiver         *s3blob.Archiver
	Notifier         *notify.Notifier

	// HealthChecks feeds the /api/health endpoint, keyed by dependency name.
	HealthChecks map[string]handler.Pinger
}

// localMode reports whether the configuration runs against the in-process
// ledger with no external infrastructure.
func localMode(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Mode, "local")
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		HealthChecks: make(map[string]handler.Pinger),
	}

	// --- Signer ---
	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: load key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: signer: %w", err)
	}

	// --- Ledger connections ---
	if localMode(cfg) {
		mem := ledger.NewMemoryLedger()
		deps.Source = staticSource{mem}
		deps.HealthChecks["ledger"] = mem.Health
	} else {
		clients := make([]ledger.Client, 0, len(cfg.Ledger.Endpoints))
		for _, ep := range cfg.Ledger.Endpoints {
			clients = append(clients, ledger.NewRPCClient(ep, cfg.Ledger.RPCTimeout.Duration))
		}
		selector := ledger.NewSelector(clients,
			cfg.Ledger.ProbeTimeout.Duration,
			cfg.Ledger.SelectorTTL.Duration,
			logger,
		)
		deps.Source = selector
		deps.HealthChecks["ledger"] = func(ctx context.Context) error {
			return selector.Acquire(ctx).Health(ctx)
		}
	}

	// --- Executor and engine ---
	dedup := executor.NewDedup(cfg.Executor.DedupCapacity, cfg.Executor.DedupTTL.Duration)
	exec := executor.New(deps.Source, dedup, executor.RetryPolicy{
		MaxAttempts: cfg.Executor.MaxAttempts,
		BaseDelay:   cfg.Executor.BaseDelay.Duration,
		MaxDelay:    cfg.Executor.MaxDelay.Duration,
	}, cfg.Executor.AttemptTimeout.Duration, logger)
	deps.Engine = engine.New(signer, exec, deps.Source, logger)

	// --- PostgreSQL read model (skipped in local mode) ---
	if !localMode(cfg) {
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
		deps.MarketStore = postgres.NewMarketStore(pool)
		deps.ParticipantStore = postgres.NewParticipantStore(pool)
		deps.HealthChecks["postgres"] = pool.Ping
	}

	// --- Redis snapshot cache (skipped in local mode) ---
	if !localMode(cfg) {
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

		deps.Cache = redis.NewMarketCache(redisClient, cfg.Redis.TTL.Duration)
		deps.HealthChecks["redis"] = redisClient.Ping
	}

	// --- S3 archive (only when enabled) ---
	if cfg.Archive.Enabled && !localMode(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.MarketStore,
			deps.ParticipantStore,
			logger,
		)
		deps.HealthChecks["s3"] = s3Client.Health
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- WebSocket hub and service ---
	deps.Hub = ws.NewHub(logger)
	deps.Service = service.NewMarketService(deps.Engine, service.Deps{
		Markets:      deps.MarketStore,
		Participants: deps.ParticipantStore,
		Cache:        deps.Cache,
		Hub:          deps.Hub,
		Notifier:     deps.Notifier,
	}, logger)

	return deps, cleanup, nil
}

// staticSource satisfies executor.Acquirer for the single in-process ledger.
type staticSource struct {
	client ledger.Client
}

func (s staticSource) Acquire(context.Context) ledger.Client { return s.client }
