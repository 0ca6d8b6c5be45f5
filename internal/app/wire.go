package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/dockside/internal/blob/s3"
	cachemem "github.com/alanyoungcy/dockside/internal/cache/memory"
	"github.com/alanyoungcy/dockside/internal/cache/redis"
	"github.com/alanyoungcy/dockside/internal/config"
	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/movement"
	"github.com/alanyoungcy/dockside/internal/notify"
	"github.com/alanyoungcy/dockside/internal/server/handler"
	"github.com/alanyoungcy/dockside/internal/service"
	"github.com/alanyoungcy/dockside/internal/session"
	storemem "github.com/alanyoungcy/dockside/internal/store/memory"
	"github.com/alanyoungcy/dockside/internal/store/postgres"
	"github.com/alanyoungcy/dockside/internal/store/sqlite"
	"github.com/alanyoungcy/dockside/internal/trading"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	SessionStore domain.SessionStore
	DockStore    domain.DockStore
	TradeStore   domain.TradeStore
	AuditStore   domain.AuditStore

	// Caches
	PriceCache  domain.PriceCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage and the archiver are nil unless archiving is enabled or
	// the mode is archive.
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter
	Archiver    domain.Archiver

	// Notifier is nil when no channel is configured.
	Notifier *notify.Notifier

	// HealthChecks probes every external backend by name.
	HealthChecks map[string]handler.HealthCheck
}

// needsS3 reports whether object storage must be wired.
func needsS3(cfg *config.Config) bool {
	return cfg.Archive.Enabled || strings.EqualFold(cfg.Mode, "archive")
}

// Wire constructs the concrete backends selected by cfg and returns them
// together with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{HealthChecks: make(map[string]handler.HealthCheck)}

	// ---- Stores ----
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory", "":
		deps.SessionStore = storemem.NewSessionStore()
		deps.DockStore = storemem.NewDockStore()
		deps.TradeStore = storemem.NewTradeStore()
		deps.AuditStore = storemem.NewAuditStore()
		logger.InfoContext(ctx, "wire: in-memory stores ready")

	case "postgres":
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
			applied, err := pgClient.RunMigrations(ctx)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
			logger.InfoContext(ctx, "wire: postgres migrations applied", slog.Int("count", applied))
		}

		pool := pgClient.Pool()
		deps.SessionStore = postgres.NewSessionStore(pool)
		deps.DockStore = postgres.NewDockStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
		logger.InfoContext(ctx, "wire: postgres stores ready")

	case "sqlite":
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: sqlite: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })

		deps.SessionStore = sqlite.NewSessionStore(db)
		deps.DockStore = sqlite.NewDockStore(db)
		deps.TradeStore = sqlite.NewTradeStore(db)
		deps.AuditStore = sqlite.NewAuditStore(db)
		deps.HealthChecks["sqlite"] = db.Ping
		logger.InfoContext(ctx, "wire: sqlite stores ready", slog.String("path", cfg.SQLite.Path))

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown storage driver %q", cfg.Storage.Driver)
	}

	// ---- Caches ----
	switch strings.ToLower(cfg.Storage.Cache) {
	case "memory", "":
		deps.PriceCache = cachemem.NewPriceCache()
		deps.RateLimiter = cachemem.NewRateLimiter()
		deps.LockManager = cachemem.NewLockManager()
		deps.SignalBus = cachemem.NewBus()

	case "redis":
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

		deps.PriceCache = redis.NewPriceCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
		logger.InfoContext(ctx, "wire: redis caches ready", slog.String("addr", cfg.Redis.Addr))

	default:
		cleanup()
		return nil, nil, fmt.Errorf("wire: unknown cache %q", cfg.Storage.Cache)
	}

	// ---- Blob storage ----
	if needsS3(cfg) {
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
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.BlobDeleter = reader
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), reader, deps.TradeStore, deps.AuditStore, cfg.Archive.Prefix)
		deps.HealthChecks["s3"] = s3Client.Health
		logger.InfoContext(ctx, "wire: s3 archiver ready", slog.String("bucket", cfg.S3.Bucket))
	}

	// ---- Notifications ----
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
		logger.InfoContext(ctx, "wire: notifier ready", slog.Int("senders", len(senders)))
	}

	return deps, cleanup, nil
}

// gameConfig translates the file configuration into the service's.
func gameConfig(cfg *config.Config) (service.Config, error) {
	catalog := trading.DefaultCatalog()
	if cfg.Dock.CatalogPath != "" {
		c, err := trading.LoadCatalog(cfg.Dock.CatalogPath)
		if err != nil {
			return service.Config{}, err
		}
		catalog = c
	}

	return service.Config{
		Session: session.Config{
			MaxIDLength: cfg.Session.MaxIDLength,
			Movement: movement.Config{
				MinPosition:   cfg.World.MinPosition,
				MaxPosition:   cfg.World.MaxPosition,
				MinTimeToMove: cfg.World.MinTimeToMove.Duration,
			},
			DockID:     cfg.Dock.ID,
			SharedDock: cfg.Dock.Shared,
		},
		Catalog:   catalog,
		PriceStep: cfg.Dock.PriceStep,
		LockTTL:   cfg.Dock.LockTTL.Duration,
		LockWait:  cfg.Dock.LockWait.Duration,
		DedupTTL:  cfg.Session.DedupTTL.Duration,
	}, nil
}

// newGameService builds the game service on top of deps.
func newGameService(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*service.GameService, error) {
	gcfg, err := gameConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	sdeps := service.Deps{
		Sessions: deps.SessionStore,
		Docks:    deps.DockStore,
		Trades:   deps.TradeStore,
		Audit:    deps.AuditStore,
		Bus:      deps.SignalBus,
		Prices:   deps.PriceCache,
		Locks:    deps.LockManager,
		Logger:   logger,
	}
	// A nil *notify.Notifier must not become a non-nil interface.
	if deps.Notifier != nil {
		sdeps.Notifier = deps.Notifier
	}

	game, err := service.NewGameService(ctx, gcfg, sdeps)
	if err != nil {
		return nil, fmt.Errorf("app: game service: %w", err)
	}
	return game, nil
}
