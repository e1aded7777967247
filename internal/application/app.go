// Package application wires configuration, storage, the planner, the core
// service and the HTTP server into a runnable process.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/tablefix/internal/config"
	"github.com/JonMunkholm/tablefix/internal/core"
	"github.com/JonMunkholm/tablefix/internal/planner"
	"github.com/JonMunkholm/tablefix/internal/session"
	"github.com/JonMunkholm/tablefix/internal/store"
	"github.com/JonMunkholm/tablefix/internal/web"
)

// App owns every long-lived resource of a running server.
type App struct {
	Config  *config.Config
	Service *core.Service
	Server  *web.Server

	memory *session.MemoryStore
	pool   *pgxpool.Pool
	redis  *redis.Client
}

// NewPlanner returns the planner selected by cfg.Provider.
func NewPlanner(cfg config.PlannerConfig) planner.Planner {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return planner.NewOpenAI(cfg)
	default:
		return planner.NewHeuristic()
	}
}

// New connects the optional audit database and Redis session store, then
// builds the service and server. Resources opened before a failure are
// released.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{Config: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var recorder store.Recorder = store.NopRecorder{}
	if cfg.Database.URL != "" {
		app.pool, err = store.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err = store.Migrate(ctx, app.pool); err != nil {
				return nil, err
			}
		}
		recorder = store.NewPostgres(app.pool)
		slog.Info("audit trail enabled")
	} else {
		slog.Info("audit trail disabled, no DATABASE_URL")
	}

	var sessions session.Store
	if cfg.Session.RedisURL != "" {
		app.redis, err = session.ConnectRedis(cfg.Session.RedisURL)
		if err != nil {
			return nil, err
		}
		rs := session.NewRedisStore(app.redis, cfg.Session.TTL)
		if err = rs.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		sessions = rs
		slog.Info("session store", "backend", "redis", "ttl", cfg.Session.TTL)
	} else {
		app.memory = session.NewMemoryStore(cfg.Session.TTL)
		sessions = app.memory
		slog.Info("session store", "backend", "memory", "ttl", cfg.Session.TTL)
	}

	p := NewPlanner(cfg.Planner)
	slog.Info("planner configured", "provider", cfg.Planner.Provider, "model", cfg.Planner.Model)

	app.Service = core.NewService(sessions, recorder, p, cfg)
	app.Server = web.NewServer(app.Service, cfg)
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight transforms
// and shuts the server down within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	if a.memory != nil {
		go a.memory.StartSweeper(jobCtx, a.Config.Session.SweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Server.Start(a.Config.Server.Addr())
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	cancelJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if status := a.Service.Limiter().Status(); status.Active > 0 {
		slog.Info("waiting for transforms to complete", "active", status.Active)
		if err := a.Service.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("transforms did not complete in time", "error", err)
		} else {
			slog.Info("all transforms completed")
		}
	}

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the database pool and Redis client.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			slog.Warn("close redis", "error", err)
		}
		a.redis = nil
	}
}
