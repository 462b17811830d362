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

	"github.com/starford/moodlog/internal/api"
	"github.com/starford/moodlog/internal/events"
	"github.com/starford/moodlog/internal/mcpserver"
	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/observability"
	"github.com/starford/moodlog/internal/recordservice"
	"github.com/starford/moodlog/internal/recordstore"
	"github.com/starford/moodlog/internal/recordstore/postgres"
	"github.com/starford/moodlog/internal/sse"
	"github.com/starford/moodlog/internal/stats"
	"github.com/starford/moodlog/internal/storage"
)

const readinessTimeout = 2 * time.Second

// components are the services shared by the HTTP and MCP entry points.
type components struct {
	store   recordstore.Store
	blobs   *storage.FS
	records *recordservice.Service
	stats   *stats.Service
	close   func()
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openStore returns the configured record store and a function releasing it.
func (a *application) openStore(ctx context.Context) (recordstore.Store, func(), error) {
	if a.store != nil {
		return a.store, func() {}, nil
	}
	cfg := a.config
	switch cfg.Store.Driver {
	case DriverPostgres:
		repo, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return repo, func() { _ = repo.Close() }, nil
	default:
		db, err := recordstore.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init record store: %w", err)
		}
		return db, func() { _ = db.Close() }, nil
	}
}

func (a *application) build(ctx context.Context, logger *slog.Logger, recordOpts ...recordservice.Option) (*components, error) {
	cfg := a.config

	if err := os.MkdirAll(cfg.Attachments.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create attachments dir: %w", err)
	}
	blobs, err := storage.NewFS(cfg.Attachments.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if removed, err := recordstore.SyncFiles(ctx, store, blobs, logger); err != nil {
		logger.Warn("initial file sync failed", slog.String("error", err.Error()))
	} else if len(removed) > 0 {
		logger.Info("initial file sync removed stale rows", slog.Int("keys", len(removed)))
	}

	return &components{
		store:   store,
		blobs:   blobs,
		records: recordservice.NewService(store, blobs, recordOpts...),
		stats: stats.NewService(store,
			stats.WithCatalog(store),
			stats.WithQueryTimeout(cfg.Stats.QueryTimeout),
		),
		close: closeStore,
	}, nil
}

func newPublisher(cfg *Config, logger *slog.Logger) *events.Publisher {
	if !cfg.Kafka.Enabled() {
		return nil
	}
	logger.Info("change events enabled",
		slog.Any("brokers", cfg.Kafka.Brokers),
		slog.String("topic", cfg.Kafka.Topic))
	return events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("attachments_path", cfg.Attachments.Path),
		slog.Duration("stats_query_timeout", cfg.Stats.QueryTimeout),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	recordOpts := []recordservice.Option{recordservice.WithNotifier(broker.PublishRecordEvent)}
	publisher := newPublisher(cfg, logger)
	if publisher != nil {
		recordOpts = append(recordOpts, recordservice.WithNotifier(publisher.Notify))
	}

	c, err := app.build(ctx, logger, recordOpts...)
	if err != nil {
		return err
	}
	defer c.close()

	apiRouter := api.NewRouter(c.records, c.stats, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		pingCtx, cancel := context.WithTimeout(req.Context(), readinessTimeout)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")
		if err := c.store.Ping(pingCtx); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", observability.Handler())

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Attachment watcher; removed blobs are announced over SSE.
	g.Go(func() error {
		err := recordstore.Watch(gCtx, c.store, c.blobs, c.blobs.Root(), logger, func(kind, key string) {
			if kind == models.EventFileDeleted {
				broker.PublishFileDeleted(key)
			}
		})
		if err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(gCtx)
		})
	}

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

		// SSE streams only end when the broker closes, so close it before
		// waiting for connections to drain.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the run group once the server has been asked to stop,
// so the watcher and event publisher exit too.
var errShutdown = errors.New("shutdown requested")

// RunMCP serves the MCP tools over stdio. Logs go to stderr because stdout
// carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(os.Stderr, cfg.App.LogLevel)

	var recordOpts []recordservice.Option
	publisher := newPublisher(cfg, logger)
	if publisher != nil {
		recordOpts = append(recordOpts, recordservice.WithNotifier(publisher.Notify))
	}

	c, err := app.build(ctx, logger, recordOpts...)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcpserver.New(c.records, c.stats)
	logger.Info("MCP server starting on stdio")

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(runCtx)
		})
	}
	g.Go(func() error {
		defer stop()
		return srv.ServeStdio()
	})
	return g.Wait()
}
