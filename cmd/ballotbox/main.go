package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/vocdoni/zk-ballotbox/db"
	"github.com/vocdoni/zk-ballotbox/db/metadb"
	"github.com/vocdoni/zk-ballotbox/election"
	"github.com/vocdoni/zk-ballotbox/log"
	"github.com/vocdoni/zk-ballotbox/service"
	"github.com/vocdoni/zk-ballotbox/storage"
	"github.com/vocdoni/zk-ballotbox/verifier"
)

// Services holds all the running services
type Services struct {
	Manager *election.Manager
	API     *service.APIService
	Stats   *service.StatsService
}

func main() {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	log.Init(cfg.Log.Level, cfg.Log.Output, nil)
	log.Infow("starting ballotbox", "version", Version)

	// Validate configuration
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup services
	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}
	defer shutdownServices(services)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("received signal, shutting down", "signal", sig.String())
}

// setupServices initializes and starts all required services
func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	services := &Services{}

	// Initialize storage database. Mongo takes the datadir as database name.
	dbPath := filepath.Join(cfg.Datadir, "db")
	if cfg.DB.Type == db.TypeMongo {
		dbPath = filepath.Base(cfg.Datadir)
	}
	log.Infow("initializing storage", "path", dbPath, "type", cfg.DB.Type)
	storagedb, err := metadb.New(cfg.DB.Type, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Infow("verifying keys directory", "dir", cfg.Verifiers.Dir)
	resolver := verifier.NewResolver(cfg.Verifiers.Dir)
	services.Manager = election.NewManager(storage.New(storagedb), resolver)

	elections, err := services.Manager.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list elections: %w", err)
	}
	log.Infow("elections loaded", "count", len(elections))

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API = service.NewAPI(services.Manager, cfg.API.Host, cfg.API.Port,
		cfg.Elections.StrictPaths, cfg.Log.DisableAPI)
	if err := services.API.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	// Start stats monitor
	if cfg.Stats.Interval > 0 {
		services.Stats = service.NewStats(services.Manager)
		if err := services.Stats.Start(ctx, cfg.Stats.Interval); err != nil {
			return nil, fmt.Errorf("failed to start stats service: %w", err)
		}
	}

	log.Infow("ballotbox is running, ready to accept registrations and votes", "addr", services.API.Addr())
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.Stats != nil {
		services.Stats.Stop()
	}
	if services.API != nil {
		services.API.Stop()
	}
	if services.Manager != nil {
		services.Manager.Close()
	}
}
