// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikahq/mika-go/internal/application/container"
	"github.com/mikahq/mika-go/internal/infrastructure/caching/cleanup"
	schema "github.com/mikahq/mika-go/internal/infrastructure/database"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/persistence/database"
	"github.com/mikahq/mika-go/internal/presentation/http/server"
	"github.com/mikahq/mika-go/pkg/config"
)

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal has been handled.
func Initialize() error {
	setupGinMode()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	// Step 1: Channeled logging
	logger, err := logging.NewChanneledLogger(loggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Starting mika-go", "driver", config.DatabaseDriver, "port", config.Port)

	// Step 2: Database connection
	startDBTime := time.Now()
	db, err := database.NewConnectionWithLogger(ctx, config.DatabaseDriver, dataSourceName(), database.PoolConfig{
		MaxOpenConns:    config.DBMaxOpenConns,
		MaxIdleConns:    config.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(config.DBConnMaxLifetimeMinutes) * time.Minute,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Startup().Info("Database connected", "duration", time.Since(startDBTime))

	// Step 3: Schema and default workspace
	creator := schema.NewTableCreator()
	if err := creator.CreateSchema(ctx, db.DB); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := creator.SeedDefaultWorkspace(ctx, db.DB); err != nil {
		return fmt.Errorf("failed to seed default workspace: %w", err)
	}
	logger.Startup().Info("Schema ready")

	// Step 4: Dependency injection container
	appContainer := container.NewContainer(db, logger)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 5: Background workers
	go appContainer.LiveHub.Run(ctx)

	cleanupWorker := cleanup.NewWorker(map[string]cleanup.Sweeper{
		"landing_pages": appContainer.LandingPages,
		"rate_limiter":  appContainer.RateLimiter,
	}, cleanup.NewConfig(), logger)
	go cleanupWorker.Start(ctx)
	logger.Startup().Info("Background workers started")

	// Step 6: HTTP server
	httpServer := server.New(config.Port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	logger.Startup().Info("Application startup complete", "totalDuration", time.Since(start), "port", config.Port)

	// Wait for shutdown signal or a listener failure
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		if err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			return err
		}
	}

	shutdownStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	// Stop the hub and cleanup worker, then let queued notifications drain
	cancelBackgroundTasks()
	appContainer.LeadService.WaitNotifications()

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

func loggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	cfg.JSONFormat = config.LogJSON
	cfg.MaxSizeMB = config.LogMaxSizeMB
	cfg.MaxBackups = config.LogMaxBackups
	cfg.MaxAgeDays = config.LogMaxAgeDays
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	return cfg
}

// dataSourceName appends the Turso auth token for remote libsql databases.
func dataSourceName() string {
	dsn := config.DatabaseURL
	if config.DatabaseDriver != "libsql" || config.TursoAuthToken == "" {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		log.Printf("DATABASE_URL is not a valid URL, using it unchanged: %v", err)
		return dsn
	}
	q := u.Query()
	q.Set("authToken", config.TursoAuthToken)
	u.RawQuery = q.Encode()
	return u.String()
}

func setupGinMode() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
