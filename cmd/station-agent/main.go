package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spoolr-in/spoolr/internal/config"
	"github.com/spoolr-in/spoolr/internal/station"
	"github.com/spoolr-in/spoolr/shared/logger"
)

const heartbeatInterval = 30 * time.Second

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

	defaultConfigPath := os.Getenv("STATION_AGENT_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/station-agent/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateStationConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting station agent",
		slog.String("vendor_id", cfg.Station.VendorID),
		slog.String("server_url", cfg.Station.ServerURL),
	)

	client := station.NewClient(station.Config{
		ServerURL:        cfg.Station.ServerURL,
		APIBaseURL:       cfg.Station.APIBaseURL,
		VendorID:         cfg.Station.VendorID,
		Token:            cfg.Station.Token,
		DialTimeout:      cfg.Station.DialTimeout,
		MessageTimeout:   cfg.Station.MessageTimeout,
		ReconnectInitial: cfg.Station.ReconnectInitial,
		ReconnectMax:     cfg.Station.ReconnectMax,
		BreakerThreshold: cfg.Station.BreakerThreshold,
		BreakerCooldown:  cfg.Station.BreakerCooldown,
		StableWindow:     cfg.Station.StableWindow,
		MaxOfferPrice:    cfg.Station.MaxOfferPrice,
	}, appLogger.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go consumeEvents(ctx, client, &cfg.Station, appLogger.Logger)

	if err := client.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("station client stopped: %w", err)
	}

	appLogger.Info("Station agent shutdown complete")
	return nil
}

// consumeEvents logs the client's event stream and keeps the availability
// heartbeat going while the channel is up. A real station front-end would
// consume the same stream.
func consumeEvents(ctx context.Context, client *station.Client, cfg *config.StationConfig, logger *slog.Logger) {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	connected := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-heartbeat.C:
			if !connected {
				continue
			}
			if err := client.ReportAvailability(true, cfg.BusinessName); err != nil {
				logger.Warn("Failed to send availability heartbeat",
					slog.String("error", err.Error()),
				)
			}

		case ev := <-client.Events():
			switch e := ev.(type) {
			case station.ConnectionChanged:
				connected = e.Connected
				logger.Info("Connection state changed",
					slog.Bool("connected", e.Connected),
				)
				if e.Connected {
					if err := client.ReportAvailability(true, cfg.BusinessName); err != nil {
						logger.Warn("Failed to send availability heartbeat",
							slog.String("error", err.Error()),
						)
					}
				}

			case station.OfferReceived:
				logger.Info("New job offer",
					slog.String("job_id", e.JobID),
					slog.String("tracking_code", e.TrackingCode),
					slog.String("file_name", e.FileName),
					slog.Float64("earnings", e.Earnings),
					slog.Time("expires_at", e.ExpiresAt),
				)

			case station.OfferWithdrawn:
				logger.Info("Offer withdrawn",
					slog.String("job_id", e.JobID),
					slog.String("reason", e.Reason),
				)

			case station.OfferExpired:
				logger.Info("Offer expired locally, auto-declined",
					slog.String("job_id", e.JobID),
				)

			case station.JobAssigned:
				logger.Info("Job assigned to this station",
					slog.String("job_id", e.JobID),
				)

			case station.ResponseRejected:
				logger.Warn("Backend rejected job response as stale",
					slog.String("job_id", e.JobID),
					slog.String("error", e.Error),
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
