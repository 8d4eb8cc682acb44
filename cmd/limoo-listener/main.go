// Command limoo-listener connects to the Limoo event stream and dispatches
// server-pushed events to registered listeners.
package main

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
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/limoo-im/limoo-go-driver/internal/api"
	"github.com/limoo-im/limoo-go-driver/internal/auth"
	"github.com/limoo-im/limoo-go-driver/internal/config"
	"github.com/limoo-im/limoo-go-driver/internal/connection"
	"github.com/limoo-im/limoo-go-driver/internal/database"
	"github.com/limoo-im/limoo-go-driver/internal/journal"
	"github.com/limoo-im/limoo-go-driver/internal/listener"
	"github.com/limoo-im/limoo-go-driver/internal/poller"
	"github.com/limoo-im/limoo-go-driver/internal/router"
	"github.com/limoo-im/limoo-go-driver/internal/version"
	"github.com/limoo-im/limoo-go-driver/internal/workspace"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "configs/listener.yaml", "path to config file")
	logLevel := pflag.String("log-level", "info", "log level (debug, info, warn, error)")
	printEvents := pflag.Bool("print", false, "log every received event")
	showVersion := pflag.Bool("version", false, "print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting limoo listener",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = logger.With("instance_id", cfg.Instance.ID)

	if err := run(cfg, *printEvents, logger); err != nil {
		logger.Error("listener failed", "error", err)
		os.Exit(1)
	}
	logger.Info("limoo listener stopped")
}

// run wires the components and blocks until a signal or a fatal
// connection error.
func run(cfg *config.DriverConfig, printEvents bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := tokenSource(cfg.API)

	apiClient := api.NewClient(
		cfg.API.RestURL,
		tokens,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst),
	)

	resolver := workspace.NewResolver(apiClient, workspace.Config{
		TTL:         cfg.Workspace.CacheTTL,
		NegativeTTL: cfg.Workspace.NegativeTTL,
	}, logger)

	var workspacePoller *poller.Poller
	if cfg.Workspace.Prime || cfg.Workspace.RefreshInterval > 0 {
		workspacePoller = poller.New(poller.Config{
			Interval: cfg.Workspace.RefreshInterval,
			Timeout:  cfg.API.Timeout,
		}, apiClient, resolver, logger)
		if err := workspacePoller.Start(ctx); err != nil {
			return fmt.Errorf("start workspace poller: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			workspacePoller.Stop(stopCtx)
		}()
	}

	registry := listener.NewRegistry(listener.Config{BufferSize: cfg.Listener.BufferSize}, logger)
	if printEvents {
		registry.OnAny(printHandler(logger))
	}

	var (
		pool *pgxpool.Pool
		jrnl *journal.Journal
	)
	if cfg.Journal.Enabled {
		var err error
		pool, err = database.Connect(ctx, cfg.Journal.Database, cfg.Instance.ID)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		jrnl = journal.New(journal.Config{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, pool, logger)
		if err := jrnl.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		registry.OnAny(jrnl)
		logger.Info("event journal enabled", "host", cfg.Journal.Database.Host, "database", cfg.Journal.Database.Name)
	}

	// Handlers keep a live context while the registry drains on shutdown;
	// Stop cancels it if the drain times out.
	if err := registry.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start listener registry: %w", err)
	}

	fatal := make(chan error, 1)
	manager := connection.NewManager(connection.ManagerConfig{
		URL: cfg.API.WSURL,
		Policy: connection.Policy{
			InitialCeiling: cfg.Connection.InitialMaxAttempts,
			SteadyCeiling:  cfg.Connection.MaxAttempts,
			Increment:      cfg.Connection.RetryIncrement,
		},
		HandshakeTimeout:  cfg.Connection.HandshakeTimeout,
		PingInterval:      cfg.Connection.PingInterval,
		PingTimeout:       cfg.Connection.PingTimeout,
		WriteTimeout:      cfg.Connection.WriteTimeout,
		ClientBufferSize:  connection.DefaultClientConfig().BufferSize,
		MessageBufferSize: cfg.Connection.BufferSize,
		OnFatal: func(err error) {
			select {
			case fatal <- err:
			default:
			}
		},
	}, tokens, logger)

	msgRouter := router.NewRouter(router.DefaultRouterConfig(), manager.Messages(), resolver, registry, manager, logger)
	if err := msgRouter.Start(ctx); err != nil {
		return fmt.Errorf("start router: %w", err)
	}

	sources := healthSources{
		manager:  manager,
		router:   msgRouter,
		registry: registry,
		resolver: resolver,
		journal:  jrnl,
	}
	if pool != nil {
		sources.db = pool
	}
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           newHTTPHandler(cfg.Metrics.Path, sources),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Initial connection: at most InitialMaxAttempts, errors are fatal.
	if err := manager.Start(ctx); err != nil {
		shutdown(manager, msgRouter, registry, jrnl, logger)
		return fmt.Errorf("initial connection: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Metrics.Port, "metrics_path", cfg.Metrics.Path)
		if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case err := <-fatal:
			return fmt.Errorf("connection lost: %w", err)
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	logger.Info("limoo listener running",
		"ws_url", cfg.API.WSURL,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	err := g.Wait()
	shutdown(manager, msgRouter, registry, jrnl, logger)
	return err
}

// shutdown stops components upstream first so queued events still reach
// listeners and the journal.
func shutdown(manager connection.Manager, r router.Router, registry *listener.Registry, jrnl *journal.Journal, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := manager.Close(); err != nil {
		logger.Warn("close connection manager", "error", err)
	}
	if err := r.Stop(ctx); err != nil {
		logger.Warn("stop router", "error", err)
	}
	if err := registry.Stop(ctx); err != nil {
		logger.Warn("stop listener registry", "error", err)
	}
	if jrnl != nil {
		if err := jrnl.Stop(ctx); err != nil {
			logger.Warn("stop journal", "error", err)
		}
	}
}

func tokenSource(cfg config.APIConfig) auth.TokenSource {
	if cfg.AccessTokenFile != "" {
		return auth.FileToken{Path: cfg.AccessTokenFile}
	}
	return auth.StaticToken(cfg.AccessToken)
}
