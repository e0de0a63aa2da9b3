package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/terra-clan/dungeon-engine/internal/api"
	"github.com/terra-clan/dungeon-engine/internal/catalog"
	"github.com/terra-clan/dungeon-engine/internal/config"
	"github.com/terra-clan/dungeon-engine/internal/dungeon"
	"github.com/terra-clan/dungeon-engine/internal/events"
	"github.com/terra-clan/dungeon-engine/internal/gameloop"
	"github.com/terra-clan/dungeon-engine/internal/instance"
	"github.com/terra-clan/dungeon-engine/internal/reward"
	"github.com/terra-clan/dungeon-engine/internal/roster"
	"github.com/terra-clan/dungeon-engine/internal/storage"
)

// recorderBuffer bounds finished runs waiting to be persisted
const recorderBuffer = 1024

// ServeCommand creates the serve command
func ServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dungeon engine HTTP server",
		Long: `Run the dungeon engine with its HTTP API.

Configuration is read from the environment (SERVER_PORT, DATABASE_DRIVER,
DATABASE_DSN, CATALOG_DIR, TICK_INTERVAL, WAVE_DELAY, API_KEYS, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			level, _ := cfg.SlogLevel()
			setupLogger(level)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	slog.Info("starting dungeon-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"database", cfg.Database.Driver,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(ctx, 30*time.Second)
	defer initCancel()

	repo, err := openRepository(initCtx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			slog.Error("repository close error", "error", err)
		}
	}()

	cleared, err := repo.ListFirstClears(initCtx)
	if err != nil {
		return fmt.Errorf("failed to load first clears: %w", err)
	}

	// Load templates
	templateLoader := catalog.NewLoader()
	if err := templateLoader.LoadFromDir(cfg.Catalog.Dir); err != nil {
		slog.Warn("failed to load templates from dir", "dir", cfg.Catalog.Dir, "error", err)
	}

	bus := events.NewBus()
	defer bus.Close()

	opts := []dungeon.Option{
		dungeon.WithHooks(events.Hooks(bus)),
		dungeon.WithClearedKeys(cleared...),
		dungeon.WithSessionOptions(instance.WithWaveDelay(cfg.Loop.WaveDelay)),
	}
	if cfg.Loop.RewardSeed != 0 {
		opts = append(opts, dungeon.WithResolver(reward.NewSeededResolver(cfg.Loop.RewardSeed)))
	}
	engine := dungeon.New(templateLoader, opts...)
	characters := roster.New()

	loop := gameloop.New(engine, cfg.Loop.TickInterval)
	loop.Every(cfg.Loop.DailyResetInterval, "daily_reset", func(ctx context.Context) error {
		characters.ResetDailyCounts()
		return nil
	})

	clients, err := cfg.AuthClients()
	if err != nil {
		return err
	}
	if cfg.Auth.Disabled {
		slog.Warn("authentication disabled by AUTH_DISABLED")
	}

	var publisher *events.RedisPublisher
	if cfg.Redis.Enabled {
		publisher, err = events.NewRedisPublisher(initCtx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Event workers stop when the bus closes, after the loop has published its last event
	workerCtx := context.WithoutCancel(ctx)
	var workers sync.WaitGroup

	recorderSub := bus.Subscribe(recorderBuffer, events.TerminalOnly)
	workers.Add(1)
	go func() {
		defer workers.Done()
		events.NewRecorder(repo).Run(workerCtx, recorderSub)
	}()

	if publisher != nil {
		publisherSub := bus.Subscribe(events.DefaultBuffer, nil)
		workers.Add(1)
		go func() {
			defer workers.Done()
			publisher.Run(workerCtx, publisherSub)
		}()
	}

	loop.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, engine, characters, loop, repo, bus, clients)
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.Router(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("HTTP server error: %w", err)
		}
	}

	slog.Info("shutting down gracefully...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Stop the loop, then let the workers persist what is still buffered
	cancel()
	<-loop.Done()
	bus.Close()
	workers.Wait()

	slog.Info("dungeon-engine stopped")
	return runErr
}

// openRepository connects the configured run history backend. Postgres migrations run first.
func openRepository(ctx context.Context, cfg config.DatabaseConfig) (storage.Repository, error) {
	switch cfg.Driver {
	case "memory":
		slog.Warn("using in-memory run history, records are lost on restart")
		return storage.NewMemoryRepository(), nil
	case storage.DriverPostgres:
		slog.Info("running database migrations", "dir", cfg.MigrationsDir)
		if _, err := storage.MigrateFromDSN(ctx, cfg.DSN, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	repo, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create database repository: %w", err)
	}
	slog.Info("database connected successfully", "driver", cfg.Driver)
	return repo, nil
}
