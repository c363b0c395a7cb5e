// Electric Monitor - Household Energy Pulse Monitor
//
// This is the main entry point for the Electric Monitor service. It ingests
// meter pulses over MQTT into an append-only SQLite event store, maintains
// idempotent hourly aggregates on a schedule, and serves time-windowed
// consumption and cost views over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/geoawd/electricmonitor/migrations"

	"github.com/geoawd/electricmonitor/internal/aggregate"
	"github.com/geoawd/electricmonitor/internal/api"
	"github.com/geoawd/electricmonitor/internal/energy"
	"github.com/geoawd/electricmonitor/internal/infrastructure/config"
	"github.com/geoawd/electricmonitor/internal/infrastructure/database"
	"github.com/geoawd/electricmonitor/internal/infrastructure/influxdb"
	"github.com/geoawd/electricmonitor/internal/infrastructure/logging"
	"github.com/geoawd/electricmonitor/internal/infrastructure/mqtt"
	"github.com/geoawd/electricmonitor/internal/pulse"
	"github.com/geoawd/electricmonitor/internal/query"
	"github.com/geoawd/electricmonitor/internal/sensor"
	"github.com/geoawd/electricmonitor/internal/tariff"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Electric Monitor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("resolving site timezone: %w", err)
	}

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Load the tariff table. A broken table is fatal at startup, never
	// discovered at pricing time.
	tariffs, err := tariff.Load(cfg.Tariffs.Path)
	if err != nil {
		return fmt.Errorf("loading tariffs: %w", err)
	}
	log.Info("tariff table loaded",
		"path", cfg.Tariffs.Path,
		"versions", len(tariffs.Versions()),
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.Sensor)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Sensor.Broker.Host, cfg.Sensor.Broker.Port),
		"client_id", cfg.Sensor.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Shared plumbing
	retry := database.NewRetryPolicy(cfg.Database.Retry.MaxAttempts, cfg.Database.Retry.Delay())
	calc := energy.NewCalculator(cfg.Meter.PulsesPerKWh)
	store := pulse.NewStore(db, retry)
	agg := aggregate.NewAggregator(db, retry)

	// Connect to InfluxDB (optional hourly mirror)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		// Mirror each recomputed bucket. Points are timestamped at the hour
		// start, so recomputes overwrite rather than duplicate.
		agg.SetMirror(func(b aggregate.Bucket) {
			influxClient.WriteHourlyConsumption(b.HourStart, b.PulseCount, calc.PulsesToKWh(b.PulseCount))
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Query service and API server
	querySvc := query.NewService(store, agg, tariffs, calc, loc, query.Config{
		HourlyLookbackDays: cfg.Query.HourlyLookbackDays,
		CostLookbackDays:   cfg.Query.CostLookbackDays,
	})

	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Query:   querySvc,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Long-running loops: aggregation schedule and pulse ingestion
	scheduler := aggregate.NewScheduler(agg, cfg.ScheduleMinutes(), log)
	ingestor := sensor.NewIngestor(sensor.NewMQTTSource(mqttClient, cfg.Sensor), store, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- scheduler.Run(runCtx) }()
	go func() { errCh <- ingestor.Run(runCtx) }()

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown or a fatal loop error. Both loops treat
	// cancellation as a clean stop.
	var fatal error
	for i := 0; i < 2; i++ {
		loopErr := <-errCh
		if loopErr != nil && !errors.Is(loopErr, context.Canceled) && fatal == nil {
			fatal = loopErr
			log.Error("stopping after fatal error", "error", fatal)
		}
		cancel()
	}

	log.Info("Electric Monitor stopped")
	return fatal
}

// getConfigPath returns the configuration file path.
// Uses ELECTRICMONITOR_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ELECTRICMONITOR_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
