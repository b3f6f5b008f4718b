package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"techcart/internal/audit"
	"techcart/internal/database"
	"techcart/internal/metrics"
	"techcart/internal/notify"
	"techcart/internal/repository"
	"techcart/internal/server"
	"techcart/internal/storage"
	"techcart/internal/telemetry"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. Pending migrations are applied first unless
--skip-migrations is given. SIGINT or SIGTERM shut the server down gracefully.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on startup")
	rootCmd.AddCommand(serveCmd)
}

func gracefulShutdown(apiServer *server.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	logger.Info("Shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 30 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close server resources
	if err := apiServer.Close(); err != nil {
		logger.Error("Error closing server resources", zap.Error(err))
	}

	logger.Info("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx := cmd.Context()

	log.Info("Starting TechCart API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	shutdownTracer, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	dbService, err := database.New(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	log.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	if !skipMigrations {
		if err := database.RunMigrations(dbService.DB(), log); err != nil {
			dbService.Close()
			return err
		}
	}

	images, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		dbService.Close()
		return err
	}

	recorder := audit.Recorder(audit.NewLogRecorder(log))
	if cfg.NATS.URL != "" {
		nc, err := audit.Connect(cfg.NATS.URL, log)
		if err != nil {
			dbService.Close()
			return err
		}
		defer nc.Drain()
		recorder = audit.Multi(recorder, audit.NewNATSRecorder(nc, log))
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			// the limiter fails open, so a missing redis only loses rate limiting
			log.Warn("Redis unreachable, rate limiting degraded", zap.Error(err))
		} else {
			log.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr()))
		}
	}

	srv := server.NewServer(cfg, log, server.Dependencies{
		DB:       dbService,
		Store:    repository.NewStore(dbService.DB()),
		Images:   images,
		Metrics:  metrics.NewManager(),
		Audit:    recorder,
		Notifier: notify.New(cfg.SMTP, log),
		Redis:    rdb,
	})

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(srv, log, done)

	log.Info("Server listening", zap.String("addr", srv.Addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info("Graceful shutdown complete")
	return nil
}
