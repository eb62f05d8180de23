// Voice Assistant Manager
//
// This is the main entry point for the voice assistant manager. It keeps
// a single source of truth for which smart-home entities each voice
// assistant (Google Assistant, Alexa, HomeKit) may see, and compiles that
// state into the per-assistant configuration the automation platform
// consumes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattiagosetto9/ha-voice-manager/migrations"

	"github.com/mattiagosetto9/ha-voice-manager/internal/api"
	"github.com/mattiagosetto9/ha-voice-manager/internal/apply"
	"github.com/mattiagosetto9/ha-voice-manager/internal/audit"
	"github.com/mattiagosetto9/ha-voice-manager/internal/bridge"
	"github.com/mattiagosetto9/ha-voice-manager/internal/catalog"
	"github.com/mattiagosetto9/ha-voice-manager/internal/compile"
	"github.com/mattiagosetto9/ha-voice-manager/internal/draft"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/config"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/database"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/influxdb"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/logging"
	"github.com/mattiagosetto9/ha-voice-manager/internal/infrastructure/mqtt"
	"github.com/mattiagosetto9/ha-voice-manager/internal/rules"
	"github.com/mattiagosetto9/ha-voice-manager/internal/system"
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
	log.Info("starting voice assistant manager",
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

	// Rule store, audit trail, and draft workspace
	store := rules.NewSQLiteStore(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	drafts := draft.NewManager(store)

	// Entity catalog from the automation platform's REST API
	platformTimeout := time.Duration(cfg.Platform.Timeout) * time.Second
	provider := catalog.NewHTTPProvider(cfg.Platform.BaseURL, cfg.Platform.Token, platformTimeout)
	systemClient := system.NewClient(cfg.Platform.BaseURL, cfg.Platform.Token, platformTimeout)

	// Connect to the MQTT broker for HomeKit live sync (optional)
	var mqttClient *mqtt.Client
	var homekitPublisher *bridge.HomeKitPublisher
	if cfg.Bridge.Enabled {
		mqttClient, err = mqtt.Connect(cfg.Bridge)
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
			"broker", fmt.Sprintf("%s:%d", cfg.Bridge.Broker.Host, cfg.Bridge.Broker.Port),
			"client_id", cfg.Bridge.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		homekitPublisher, err = bridge.NewHomeKitPublisher(mqttClient, log)
		if err != nil {
			return fmt.Errorf("creating HomeKit publisher: %w", err)
		}
	} else {
		log.Info("HomeKit bridge disabled, commits will not live-sync")
	}

	// Connect to InfluxDB for commit telemetry (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
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
	} else {
		log.Info("InfluxDB disabled")
	}

	// Commit pipeline
	opts := []apply.Option{
		apply.WithAudit(auditRepo),
		apply.WithLogger(log),
	}
	if homekitPublisher != nil {
		opts = append(opts, apply.WithPublisher(homekitPublisher))
	}
	if influxClient != nil {
		opts = append(opts, apply.WithTelemetry(influxClient))
	}
	orchestrator := apply.NewOrchestrator(
		drafts,
		store,
		provider,
		compile.Compilers(cfg.Assistants.GoogleOutput, cfg.Assistants.AlexaOutput),
		cfg.Platform.ConfigRoot,
		opts...,
	)

	// HTTP API and management panel
	server, err := api.New(api.Deps{
		Config:       cfg.API,
		Logger:       log,
		Drafts:       drafts,
		Orchestrator: orchestrator,
		Store:        store,
		Catalog:      provider,
		Audit:        auditRepo,
		System:       systemClient,
		Bridge:       homekitPublisher,
		Version:      version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("voice assistant manager stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VOICEMAN_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VOICEMAN_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The MQTT and InfluxDB clients may be nil when their features are disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
