package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/dockside/internal/domain"
	"github.com/alanyoungcy/dockside/internal/server"
	"github.com/alanyoungcy/dockside/internal/server/handler"
	"github.com/alanyoungcy/dockside/internal/server/ws"
	"github.com/alanyoungcy/dockside/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	// dedupSweepInterval is how often expired command results are dropped.
	dedupSweepInterval = time.Minute
)

// ServerMode serves the game over HTTP and websockets until ctx is cancelled.
// Alongside the server it sweeps the command-replay cache and, when enabled,
// archives old ledger rows on an interval.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	game, err := newGameService(ctx, a.cfg, deps, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, game.Close)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return game.Dedup().Run(ctx, dedupSweepInterval)
	})

	if deps.Archiver != nil && a.cfg.Archive.Enabled {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps, a.cfg.Archive.Interval.Duration)
		})
	}

	a.startHTTPServer(ctx, g, deps, game)

	return g.Wait()
}

// ArchiveMode archives ledger rows older than the retention window once,
// expires old archive objects when configured, and returns.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3")
	}
	return a.archiveOnce(ctx, deps)
}

func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.archiveOnce(ctx, deps); err != nil {
				// Rows stay in place on failure; the next tick retries them.
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *App) archiveOnce(ctx context.Context, deps *Dependencies) error {
	cutoff := a.cfg.ArchiveCutoff(time.Now().UTC())

	trades, err := deps.Archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive trades: %w", err)
	}
	audit, err := deps.Archiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive audit: %w", err)
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Time("before", cutoff),
		slog.Int64("trades", trades),
		slog.Int64("audit", audit),
	)

	if deps.BlobReader != nil && deps.BlobDeleter != nil {
		if err := a.pruneArchive(ctx, deps.BlobReader, deps.BlobDeleter); err != nil {
			return err
		}
	}
	return nil
}

// pruneArchive removes archive objects older than archive.expire_days.
func (a *App) pruneArchive(ctx context.Context, reader domain.BlobReader, deleter domain.BlobDeleter) error {
	expiry, ok := a.cfg.ArchiveExpiry(time.Now().UTC())
	if !ok {
		return nil
	}

	prefix := a.cfg.Archive.Prefix
	if prefix == "" {
		prefix = "archive"
	}
	objects, err := reader.List(ctx, prefix+"/")
	if err != nil {
		return fmt.Errorf("app: list archive: %w", err)
	}

	var expired []string
	var kept int64
	for _, obj := range objects {
		if !obj.LastModified.Before(expiry) {
			kept += obj.Size
			continue
		}
		expired = append(expired, obj.Path)
	}
	if len(expired) > 0 {
		if err := deleter.Delete(ctx, expired...); err != nil {
			return fmt.Errorf("app: expire archive: %w", err)
		}
	}

	a.logger.InfoContext(ctx, "archive pruned",
		slog.Time("expired_before", expiry),
		slog.Int("removed", len(expired)),
		slog.Int("remaining", len(objects)-len(expired)),
		slog.Int64("remaining_bytes", kept),
	)
	return nil
}

// startHTTPServer adds the websocket hub and the HTTP server to g. The server
// is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, game *service.GameService) {
	hub := ws.NewHub(deps.SignalBus, game, a.logger, ws.Config{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:   handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:   handler.NewStatusHandler(a.cfg.Mode, time.Now().UTC(), game),
		Sessions: handler.NewSessionHandler(game, a.logger),
		Movement: handler.NewMovementHandler(game, a.logger),
		Dock:     handler.NewDockHandler(game, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		RateLimit:    a.cfg.Server.RateLimit,
		RateWindow:   a.cfg.Server.RateWindow.Duration,
		ReadTimeout:  a.cfg.Server.ReadTimeout.Duration,
		WriteTimeout: a.cfg.Server.WriteTimeout.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)),
		)
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
