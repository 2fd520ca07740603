// Package app assembles the service from configuration. Both the server and
// the operator CLI build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/veltrix/internal/api"
	"github.com/ashureev/veltrix/internal/assistant"
	"github.com/ashureev/veltrix/internal/config"
	"github.com/ashureev/veltrix/internal/fallback"
	"github.com/ashureev/veltrix/internal/identity"
	"github.com/ashureev/veltrix/internal/metrics"
	"github.com/ashureev/veltrix/internal/middleware"
	"github.com/ashureev/veltrix/internal/session"
	"github.com/ashureev/veltrix/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// App holds the wired collaborators of one service instance.
type App struct {
	Config   *config.Config
	Repo     store.Repository
	Sessions session.Store
	Engine   *assistant.Engine
	Metrics  *metrics.Metrics
	Health   *api.HealthHandler

	db *store.SQLiteStore
}

// New opens storage and the session backend and builds the chat engine.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}

	a := &App{
		Config:  cfg,
		Metrics: metrics.New(),
		db:      db,
		Repo: store.NewRetrying(db, store.RetryPolicy{
			MaxTries:        cfg.Retry.MaxTries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
		}),
	}

	checks := map[string]api.Pinger{"database": db}
	switch cfg.Session.Backend {
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rs := session.NewRedisStore(client, cfg.Redis.Prefix, cfg.Session.IdleTTL)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			_ = db.Close()
			return nil, fmt.Errorf("redis session store: %w", err)
		}
		a.Sessions = rs
		checks["sessions"] = rs
	default:
		a.Sessions = session.NewMemoryStore()
	}
	a.Health = api.NewHealthHandler(5*time.Second, checks)

	if cfg.SeedDemoData {
		if err := store.SeedDemoData(ctx, db); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		slog.Info("Demo data seeded", "customer_id", store.DemoCustomerID, "vendor_id", store.DemoVendorID)
	}

	gen := fallback.New(fallback.Config{
		BaseURL:   cfg.Generator.BaseURL,
		APIKey:    cfg.Generator.APIKey,
		Model:     cfg.Generator.Model,
		MaxTokens: cfg.Generator.MaxTokens,
		Timeout:   cfg.Generator.Timeout,
	})
	if _, ok := gen.(fallback.Unavailable); ok {
		slog.Warn("Fallback generator disabled, open questions will fail", "reason", "no API key")
	}

	a.Engine = assistant.NewEngine(assistant.Deps{
		Sessions:  a.Sessions,
		Repo:      a.Repo,
		Generator: gen,
		Metrics:   a.Metrics,
	})
	return a, nil
}

// Sweeper returns the idle-session sweeper, or nil when the session backend
// expires entries on its own.
func (a *App) Sweeper(onExpire session.ExpireCallback) *session.Sweeper {
	expirer, ok := a.Sessions.(session.Expirer)
	if !ok {
		return nil
	}
	return &session.Sweeper{
		Store:    expirer,
		TTL:      a.Config.Session.IdleTTL,
		Interval: a.Config.Session.SweepInterval,
		OnExpire: func(userID string) {
			a.Metrics.SessionsExpired(1)
			if onExpire != nil {
				onExpire(userID)
			}
		},
	}
}

// Router builds the HTTP routes around chat. spa, when non-nil, serves every
// unmatched path.
func (a *App) Router(chat *assistant.Handler, spa http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics(a.Metrics))
	r.Use(middleware.CORS(a.Config.AllowedOrigins))

	// Public routes.
	a.Health.RegisterHealth(r)
	r.Handle("/metrics", a.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(a.Config.IsDevelopment()))
		chat.RegisterRoutes(r)
	})

	if spa != nil {
		r.Handle("/*", spa)
	}
	return r
}

// Close releases the session backend and the database.
func (a *App) Close() error {
	var errs []error
	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
