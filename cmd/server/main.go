// Veltrix - conversational shopping assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/veltrix/internal/app"
	"github.com/ashureev/veltrix/internal/assistant"
	"github.com/ashureev/veltrix/internal/config"
	"github.com/ashureev/veltrix/internal/probe"
	"github.com/ashureev/veltrix/web"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("VELTRIX_CONFIG"))
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting server",
		"port", cfg.Port,
		"grpc_port", cfg.GRPCPort,
		"session_backend", cfg.Session.Backend,
		"dev", cfg.IsDevelopment(),
	)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("Failed to close resources", "error", closeErr)
		}
	}()
	slog.Info("Database connected", "path", cfg.DBPath)

	limiter := assistant.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer limiter.Close()

	conns := assistant.NewConnRegistry()
	chat := assistant.NewHandler(a.Engine, assistant.HandlerOptions{
		Limiter:        limiter,
		Conns:          conns,
		Metrics:        a.Metrics,
		OriginPatterns: originPatterns(cfg),
	})

	// WebSocket chats hold connections open, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router(chat, web.SPAHandler()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	var grpcLis net.Listener
	if cfg.GRPCPort != "" {
		if grpcLis, err = net.Listen("tcp", ":"+cfg.GRPCPort); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if grpcLis != nil {
		health := probe.NewServer(a.Health, 10*time.Second)
		g.Go(func() error {
			return health.Serve(gctx, grpcLis)
		})
	}

	if sweeper := a.Sweeper(conns.CloseUser); sweeper != nil {
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		conns.CloseAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func originPatterns(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return cfg.AllowedOrigins
}
