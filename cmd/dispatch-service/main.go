package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spoolr-in/spoolr/internal/config"
	"github.com/spoolr-in/spoolr/internal/dispatch"
	"github.com/spoolr-in/spoolr/internal/dispatch/channel"
	"github.com/spoolr-in/spoolr/internal/dispatch/coordinator"
	dispatchstorage "github.com/spoolr-in/spoolr/internal/dispatch/storage"
	"github.com/spoolr-in/spoolr/shared/logger"
	"github.com/spoolr-in/spoolr/shared/postgresql"
	"github.com/spoolr-in/spoolr/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("DISPATCH_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/dispatch-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateDispatchConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting dispatch service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	store := dispatchstorage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	router := channel.NewRouter(channel.Config{
		WriteTimeout:   cfg.Channel.WriteTimeout,
		PongTimeout:    cfg.Channel.PongTimeout,
		PingInterval:   cfg.Channel.PingInterval,
		MaxMessageSize: cfg.Channel.MaxMessageSize,
		SendBuffer:     cfg.Channel.SendBuffer,
	}, nil, appLogger.Logger)

	coord := coordinator.New(coordinator.Config{
		OfferWindow:     cfg.Dispatch.OfferWindow,
		ServiceRadiusKm: cfg.Dispatch.ServiceRadiusKm,
		MaxAttempts:     cfg.Dispatch.MaxAttempts,
		PersistAttempts: cfg.Dispatch.PersistAttempts,
		PersistBackoff:  cfg.Dispatch.PersistBackoff,
	}, store, router, appLogger.Logger)

	// The router delivers inbound vendor frames to the coordinator and the
	// coordinator pushes offers through the router, so the sink is bound
	// after both sides exist.
	router.SetSink(coord)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Jobs whose matching was interrupted by the previous shutdown were
	// already acknowledged on the intake queue; resume them before consuming
	// new ones.
	if err := coord.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover interrupted jobs: %w", err)
	}

	worker := dispatch.NewWorker(&dispatch.Config{
		Logger:        appLogger.Logger,
		RabbitClient:  rabbitClient,
		Coordinator:   coord,
		Concurrency:   cfg.Dispatch.Concurrency,
		PrefetchCount: cfg.RabbitMQ.Consumer.PrefetchCount,
		QueueName:     cfg.RabbitMQ.Queue.Name,
	})

	workerDone := make(chan error, 1)
	go func() {
		workerDone <- worker.Start(ctx)
	}()

	go runStaleVendorSweeper(ctx, store, &cfg.Dispatch, appLogger.Logger)

	srv := startHTTPServer(cfg, router, coord, dbClient, appLogger.Logger)

	appLogger.Info("Dispatch service is running",
		slog.String("address", srv.Addr),
		slog.Duration("offer_window", cfg.Dispatch.OfferWindow),
		slog.Float64("service_radius_km", cfg.Dispatch.ServiceRadiusKm),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-workerDone:
		if err != nil {
			appLogger.Error("Intake worker exited",
				slog.Any("error", err),
			)
		}
	}

	appLogger.Info("Shutting down dispatch service...")

	shutdownTimeout := cfg.Dispatch.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server forced to shutdown",
			slog.Any("error", err),
		)
	}

	cancel()
	worker.Stop()
	coord.Close()
	router.Close()

	if rabbitClient != nil {
		rabbitClient.Close()
	}
	if dbClient != nil {
		dbClient.Close()
	}

	appLogger.Info("Dispatch service shutdown complete")
	return nil
}

// startHTTPServer serves the vendor websocket endpoint and a health probe
func startHTTPServer(cfg *config.Config, router *channel.Router, coord *coordinator.Coordinator, dbClient *postgresql.Client, logger *slog.Logger) *http.Server {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		if err := dbClient.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unreachable"
		}
		c.JSON(status, gin.H{
			"status":        "ok",
			"service":       "spoolr-dispatch",
			"database":      dbStatus,
			"active_offers": coord.ActiveOffers(),
			"vendors":       router.ConnectedCount(),
		})
	})

	engine.GET("/ws", func(c *gin.Context) {
		router.HandleUpgrade(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	return srv
}

// runStaleVendorSweeper periodically marks vendors whose channel has been
// silent past the cutoff as disconnected so the ranker stops offering to them
func runStaleVendorSweeper(ctx context.Context, store *dispatchstorage.Storage, cfg *config.DispatchConfig, logger *slog.Logger) {
	interval := cfg.StaleVendorInterval
	if interval <= 0 {
		interval = time.Minute
	}
	cutoff := cfg.StaleVendorCutoff
	if cutoff <= 0 {
		cutoff = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			marked, err := store.MarkVendorsStale(ctx, cutoff)
			if err != nil {
				logger.Error("Stale vendor sweep failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if marked > 0 {
				logger.Info("Marked stale vendors disconnected",
					slog.Int64("count", marked),
				)
			}
		}
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
