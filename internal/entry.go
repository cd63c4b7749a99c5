// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/modelstore/internal/api"
	"github.com/starford/modelstore/internal/mcpserver"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/sse"
	"github.com/starford/modelstore/internal/store"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = newLogger(os.Stdout, cfg.App.LogLevel)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("schema_path", cfg.Schema.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("pluggable_schema", cfg.Schema.Pluggable),
		slog.Bool("strict_lifecycle", cfg.Store.StrictLifecycle),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2*time.Second, sse.WithNormalizer(normalizeModelName))
	defer broker.Close()

	rt, err := newRuntime(cfg, logger, func(kind string, id models.Identifier, keys []string) {
		broker.PublishRecordEvent(kind, id, keys)
	})
	if err != nil {
		return err
	}

	h := api.NewHandler(rt.store, rt.records, rt.registry, rt.loader)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if rt.store.State() != store.StateActive {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"` + rt.store.State().String() + `"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start schema watcher with SSE callback.
	if cfg.Schema.Watch {
		g.Go(func() error {
			return rt.loader.Watch(gCtx, rt.src.Root(), func(kind, path string) {
				broker.PublishSchemaEvent(kind, path)
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	waitErr := g.Wait()
	if errors.Is(waitErr, errShutdown) {
		waitErr = nil
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
	defer cancel()
	if err := rt.close(closeCtx); err != nil {
		logger.Error("Store shutdown error", slog.String("error", err.Error()))
		waitErr = errors.Join(waitErr, err)
	}

	if waitErr != nil {
		logger.Error("Application error", slog.String("error", waitErr.Error()))
		return waitErr
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group once a shutdown was requested so the watcher
// stops with the HTTP server.
var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr since
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app := newApplication(opts)
	if app.config == nil {
		return fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = newLogger(os.Stderr, cfg.App.LogLevel)
	}
	slog.SetDefault(logger)

	rt, err := newRuntime(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.close(ctx); err != nil {
			logger.Error("Store shutdown error", slog.String("error", err.Error()))
		}
	}()

	logger.Info("MCP server starting on stdio", slog.Int("models", len(rt.registry.Names())))
	return mcpserver.New(rt.store, rt.records, rt.registry).ServeStdio()
}
