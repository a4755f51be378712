package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuneJin9655/ai-chat/db"
	"github.com/JuneJin9655/ai-chat/internal/api"
	"github.com/JuneJin9655/ai-chat/internal/cache"
	"github.com/JuneJin9655/ai-chat/internal/chat"
	"github.com/JuneJin9655/ai-chat/internal/config"
	"github.com/JuneJin9655/ai-chat/internal/provider"
	"github.com/JuneJin9655/ai-chat/internal/session"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // SSE streaming needs longer timeout
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting ai-chat server", "version", AppVersion, "model", cfg.ModelName)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("creating connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}

	backend, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			logger.Warn("closing redis connection", "error", closeErr)
		}
	}()

	llm, err := provider.New(provider.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   cfg.ModelName,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating model provider: %w", err)
	}

	service, err := chat.New(chat.Config{
		Store:       session.New(pool, logger),
		Cache:       cache.New(backend, logger),
		Provider:    llm,
		Logger:      logger,
		TokenBudget: cfg.TokenBudget,
	})
	if err != nil {
		return fmt.Errorf("creating chat service: %w", err)
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Chat:        service,
		Pool:        pool,
		Logger:      logger,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/chat/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
