// NEA Smart Core - cloud session for REHAU NEA Smart 2 heating systems.
//
// This is the main entry point. It logs in to the vendor cloud, keeps the
// MQTT session to the broker alive, mirrors every installation in memory
// and exposes them through a local HTTP API, Prometheus metrics and an
// optional InfluxDB export.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/neasmart-core/internal/api"
	"github.com/nerrad567/neasmart-core/internal/controller"
	"github.com/nerrad567/neasmart-core/internal/directory"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/config"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/logging"
	"github.com/nerrad567/neasmart-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/neasmart-core/internal/installation"
	"github.com/nerrad567/neasmart-core/internal/metrics"
	"github.com/nerrad567/neasmart-core/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting NEA Smart Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Credentials usually live in a .env file next to the binary.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"email", cfg.Account.Email,
		"level", cfg.Logging.Level,
	)

	store := installation.NewStore()
	store.SetLogger(log.Component("installation"))

	reg := prometheus.NewRegistry()
	var sessionMetrics session.Metrics
	if cfg.Metrics.Enabled {
		m := metrics.NewSession(reg, cfg.Metrics.Namespace)
		stopObserving := m.ObserveStore(store)
		defer stopObserving()
		sessionMetrics = m
	}

	transport := mqtt.New(cfg.Broker)
	transport.SetLogger(log.Component("mqtt"))

	sess, err := session.New(session.Options{
		Config:    cfg,
		Directory: directory.NewHTTPClient(cfg.Directory),
		Transport: transport,
		Store:     store,
		Logger:    log.Component("session"),
		Metrics:   sessionMetrics,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer func() {
		log.Info("closing session")
		sess.Close()
	}()

	ctrl := controller.New(sess, store)
	ctrl.SetLogger(log.Component("controller"))

	if cfg.InfluxDB.Enabled {
		stop, err := startInfluxExport(cfg.InfluxDB, store, log)
		if err != nil {
			return err
		}
		defer stop()
	} else {
		log.Info("InfluxDB export disabled")
	}

	if err := sess.Authenticate(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	log.Info("session started", "client_id", sess.ClientID())

	if cfg.API.Enabled {
		var gatherer prometheus.Gatherer
		if cfg.Metrics.Enabled {
			gatherer = reg
		}
		srv, err := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Logger:     log.Component("api"),
			Session:    sess,
			Controller: ctrl,
			Store:      store,
			Gatherer:   gatherer,
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, session, InfluxDB, metrics.
	return nil
}

// getConfigPath returns NEASMART_CONFIG if set, otherwise the default path.
func getConfigPath() string {
	if path := os.Getenv("NEASMART_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// startInfluxExport connects to InfluxDB and exports every store change.
// The returned function stops the export and closes the client.
func startInfluxExport(cfg config.InfluxDBConfig, store *installation.Store, log *logging.Logger) (func(), error) {
	client, err := influxdb.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)

	exporter := influxdb.NewExporter(client, store)
	exporter.SetLogger(log.Component("influxdb"))
	stopExport := exporter.Start()

	return func() {
		stopExport()
		log.Info("closing InfluxDB connection")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}, nil
}
