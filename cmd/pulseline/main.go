// Pulseline - per-line GPIO pulse generator
//
// This is the main entry point for the Pulseline daemon. It drives
// named GPIO output lines with configurable duty cycles and exposes
// them over MQTT and HTTP:
//   - Static line bindings from YAML configuration
//   - Runtime bind/unbind and attribute writes over MQTT
//   - REST API with a WebSocket state stream
//   - Settings persisted in SQLite and restored across restarts
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vcstech/pulseline-core/internal/api"
	"github.com/vcstech/pulseline-core/internal/control"
	"github.com/vcstech/pulseline-core/internal/gpio"
	"github.com/vcstech/pulseline-core/internal/infrastructure/config"
	"github.com/vcstech/pulseline-core/internal/infrastructure/database"
	"github.com/vcstech/pulseline-core/internal/infrastructure/logging"
	"github.com/vcstech/pulseline-core/internal/infrastructure/mqtt"
	"github.com/vcstech/pulseline-core/internal/pulse"
	"github.com/vcstech/pulseline-core/migrations"
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
	log.Info("starting Pulseline",
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
	if migrateErr := db.Migrate(ctx, migrations.Files); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise line registry
	repo := pulse.NewSQLiteRepository(db.DB)
	registry := pulse.NewRegistry(pulse.RegistryConfig{
		TicksPerSecond: cfg.GPIO.TicksPerSecond,
		Repository:     repo,
		Logger:         log,
	})
	defer func() {
		log.Info("releasing lines")
		registry.Close()
	}()
	log.Info("line registry initialised", "ticks_per_second", registry.TicksPerSecond())

	openOutput := outputOpener(cfg.GPIO.Backend)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Start the MQTT control surface before any line registers so
	// state and degraded publications are wired from the first bind.
	var controller *control.Controller
	if mqttClient != nil {
		controller, err = control.NewController(control.Options{
			Broker:     mqttClient,
			Registry:   registry,
			Repository: repo,
			Open:       openOutput,
			Consumer:   cfg.GPIO.Consumer,
			QoS:        byte(cfg.MQTT.QoS),
			Logger:     log,
		})
		if err != nil {
			return fmt.Errorf("creating controller: %w", err)
		}
		if startErr := controller.Start(ctx); startErr != nil {
			return fmt.Errorf("starting controller: %w", startErr)
		}
		defer func() {
			log.Info("stopping control surface")
			controller.Stop()
		}()
	}

	// Bind statically configured lines. A config line that cannot be
	// opened is a deployment error, not a runtime condition.
	for _, line := range cfg.Lines {
		if bindErr := bindConfigLine(ctx, registry, openOutput, cfg.GPIO.Consumer, line); bindErr != nil {
			return fmt.Errorf("binding line %q: %w", line.Name, bindErr)
		}
		log.Info("line bound from config", "name", line.Name)
	}

	// Restore lines previously bound at runtime. Hardware may have
	// moved since; failures degrade to a warning.
	if restoreErr := restoreRuntimeLines(ctx, registry, repo, openOutput, cfg.GPIO.Consumer, log); restoreErr != nil {
		return fmt.Errorf("restoring persisted lines: %w", restoreErr)
	}

	// Start HTTP API server
	var states api.StateSource
	if mqttClient != nil {
		states = mqttClient
	}
	apiServer, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		States:   states,
		Version:  version,
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

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"lines", registry.Count(),
	)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Controller
	// 3. MQTT (if enabled)
	// 4. Registry (lines forced low and released)
	// 5. Database

	log.Info("Pulseline stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PULSELINE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PULSELINE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// outputOpener selects the output backend. The simulated backend keeps
// the full control surface usable on machines without GPIO hardware.
func outputOpener(backend string) control.OpenFunc {
	if backend == "sim" {
		return func(gpio.Request) (gpio.Output, error) {
			return gpio.NewSim(), nil
		}
	}
	return gpio.Open
}

// bindConfigLine opens the physical output for one configured line and
// registers it.
func bindConfigLine(ctx context.Context, registry *pulse.Registry, open control.OpenFunc, consumer string, line config.LineConfig) error {
	output, err := open(gpio.Request{
		Chip:      line.Chip,
		Line:      line.Line,
		Offset:    line.Offset,
		ActiveLow: line.ActiveLow,
		Consumer:  consumer,
	})
	if err != nil {
		return fmt.Errorf("opening output: %w", err)
	}

	// Register owns the output from here on and closes it on failure.
	_, err = registry.Register(ctx, line.Name, output, pulse.Binding{
		Chip:      line.Chip,
		LineName:  line.Line,
		Offset:    line.Offset,
		ActiveLow: line.ActiveLow,
		Source:    pulse.SourceConfig,
	})
	return err
}

// restoreRuntimeLines re-binds lines that were bound over MQTT in a
// previous run. A line whose hardware is gone logs a warning and keeps
// its record for the next attempt.
func restoreRuntimeLines(ctx context.Context, registry *pulse.Registry, repo pulse.Repository, open control.OpenFunc, consumer string, log *logging.Logger) error {
	records, err := repo.List(ctx)
	if err != nil {
		return fmt.Errorf("listing records: %w", err)
	}

	for _, rec := range records {
		if rec.Binding.Source != pulse.SourceMQTT {
			continue
		}

		output, openErr := open(gpio.Request{
			Chip:      rec.Binding.Chip,
			Line:      rec.Binding.LineName,
			Offset:    rec.Binding.Offset,
			ActiveLow: rec.Binding.ActiveLow,
			Consumer:  consumer,
		})
		if openErr != nil {
			log.Warn("persisted line could not be reopened", "name", rec.Name, "error", openErr)
			continue
		}

		// Register closes the output on failure.
		if _, regErr := registry.Register(ctx, rec.Name, output, rec.Binding); regErr != nil {
			log.Warn("persisted line could not be restored", "name", rec.Name, "error", regErr)
			continue
		}
		log.Info("line restored from previous run", "name", rec.Name)
	}
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}
