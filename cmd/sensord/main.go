// Gray Logic Sensor - simulated telemetry device
//
// sensord runs one simulated sensor and exposes it over JSON-RPC 2.0 at
// POST /rpc, guarded by a static pin. Events are optionally fanned out to
// MQTT, InfluxDB and WebSocket subscribers, and state-changing calls can be
// recorded to a SQLite audit trail.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-sensor/internal/api"
	"github.com/nerrad567/gray-logic-sensor/internal/audit"
	"github.com/nerrad567/gray-logic-sensor/internal/auth"
	"github.com/nerrad567/gray-logic-sensor/internal/device"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-sensor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-sensor/internal/rpc"
	"github.com/nerrad567/gray-logic-sensor/internal/telemetry"
	"github.com/nerrad567/gray-logic-sensor/migrations"
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
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Sensor",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	defer log.Close() //nolint:errcheck // nothing left to log to
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Device
	opts, err := deviceOptions(cfg.Device)
	if err != nil {
		return err
	}
	opts.Logger = log
	dev, err := device.New(opts)
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}
	defer dev.Close()
	log.Info("device ready",
		"hid", dev.HID(),
		"model", opts.Model,
		"firmware_version", opts.FirmwareVersion,
	)

	verifier, err := auth.NewVerifier(cfg.Security.Pin, cfg.Security.PinHash)
	if err != nil {
		return fmt.Errorf("configuring pin: %w", err)
	}

	// Audit trail (optional)
	var (
		db        *database.DB
		auditRepo audit.Repository
		recorder  *audit.Recorder
	)
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
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

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		auditRepo = audit.NewSQLiteRepository(db.DB)
		recorder = audit.NewRecorder(auditRepo, audit.DefaultBufferSize)
		recorder.SetLogger(log)

		auditCtx, auditCancel := context.WithCancel(bgCtx)
		recorder.Start(auditCtx)
		defer func() {
			auditCancel()
			recorder.Wait()
		}()
	} else {
		log.Info("audit trail disabled")
	}

	// MQTT (optional)
	var mqttClient *mqtt.Client
	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, dev.HID())
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, topics)
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
			log.Info("MQTT session established", "sessions", mqttClient.Connects())
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

	// InfluxDB (optional)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Event fan-out
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(bgCtx)

	sinks := []telemetry.Sink{telemetry.NewHubSink(hub)}
	if mqttClient != nil {
		sinks = append(sinks, telemetry.NewMQTTSink(mqttClient, topics))
	}
	if influxClient != nil {
		sinks = append(sinks, telemetry.NewInfluxSink(influxClient))
	}
	publisher := telemetry.NewPublisher(telemetry.DefaultQueueSize, sinks...)
	publisher.SetLogger(log)
	pubCtx, pubCancel := context.WithCancel(bgCtx)
	publisher.Start(pubCtx)
	defer func() {
		pubCancel()
		publisher.Wait()
		delivered, dropped := publisher.Stats()
		log.Info("telemetry publisher stopped", "delivered", delivered, "dropped", dropped)
	}()
	dev.AddListener(publisher.Listener())

	if info, infoErr := dev.Info(); infoErr == nil {
		publisher.Enqueue(device.Event{Type: device.EventOnline, Time: time.Now(), Info: info})
	}

	sampler := telemetry.NewSampler(dev, telemetry.DefaultSamplePeriod)
	sampler.SetLogger(log)
	go sampler.Run(ctx)

	// RPC + HTTP
	rpcServer := rpc.NewServer()
	rpcServer.SetLogger(log)
	if regErr := api.RegisterMethods(rpcServer, dev, recorder); regErr != nil {
		return fmt.Errorf("registering methods: %w", regErr)
	}

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Logger:    log,
		Device:    dev,
		RPC:       rpcServer,
		Verifier:  verifier,
		Hub:       hub,
		MQTT:      mqttClient,
		MQTTRPC:   mqttClient != nil && cfg.MQTT.RPC,
		InfluxDB:  influxClient,
		DB:        db,
		AuditRepo: auditRepo,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server listening", "address", server.Addr())

	log.Info("Gray Logic Sensor started successfully")

	<-ctx.Done()
	log.Info("shutdown signal received, stopping services")

	return nil
}

// getConfigPath returns the configuration file path.
// Uses SENSORD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SENSORD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadConfig reads the file at path. A missing file falls back to the
// built-in defaults plus environment overrides, which still have to pass
// validation (the pin, at least, must come from somewhere).
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg = config.Default()
	if validateErr := cfg.Validate(); validateErr != nil {
		return nil, fmt.Errorf("no config file at %s and defaults are incomplete: %w", path, validateErr)
	}
	return cfg, nil
}

// deviceOptions maps the device section of the config onto device.Options.
func deviceOptions(cfg config.DeviceConfig) (device.Options, error) {
	policy, err := device.ParseFactoryResetPolicy(cfg.FactoryResetFirmware)
	if err != nil {
		return device.Options{}, fmt.Errorf("device.factory_reset_firmware: %w", err)
	}

	opts := device.DefaultOptions()
	opts.HID = cfg.HID
	opts.Model = cfg.Model
	opts.Name = cfg.Name
	opts.ReadingInterval = cfg.ReadingInterval
	opts.FirmwareVersion = cfg.FirmwareVersion
	opts.MaxFirmwareVersion = cfg.MaxFirmwareVersion
	opts.UpdateDuration = cfg.UpdateDuration
	opts.RebootDuration = cfg.RebootDuration
	opts.FactoryReset = policy
	return opts, nil
}
