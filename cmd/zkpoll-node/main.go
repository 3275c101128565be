package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/vocdoni/zkpoll/api"
	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/pebbledb"
	"github.com/vocdoni/zkpoll/log"
	"github.com/vocdoni/zkpoll/poll"
	"github.com/vocdoni/zkpoll/storage"
	"github.com/vocdoni/zkpoll/voteverifier"
	"github.com/vocdoni/zkpoll/web3"
)

// Services holds all the running services
type Services struct {
	Storage *storage.Storage
	Heights *web3.Client
	Manager *poll.Manager
	API     *api.API
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
	log.Infow("starting zkpoll-node", "version", Version)

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

	// Initialize storage database
	log.Infow("initializing storage", "datadir", cfg.Datadir)
	storagedb, err := pebbledb.New(db.Options{Path: cfg.Datadir})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	services.Storage = storage.New(storagedb)

	// Pick the block height source
	var heights poll.HeightSource
	if cfg.Web3.Rpc != "" {
		log.Infow("using web3 block heights", "rpc", cfg.Web3.Rpc)
		client, err := web3.Dial(ctx, cfg.Web3.Rpc)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to web3 endpoint: %w", err)
		}
		services.Heights = client
		heights = client
	} else {
		log.Infow("using simulated block heights", "blockPeriod", cfg.Web3.BlockPeriod.String())
		heights = web3.NewSimulatedHeight(cfg.Web3.BlockPeriod)
	}

	// Create the poll manager with the Groth16 proof backend
	verifier := voteverifier.New(voteverifier.NewGroth16Checker(ecc.BN254))
	services.Manager = poll.New(services.Storage, verifier, heights)

	// Load the verification key file if provided
	if cfg.VerificationKey != "" {
		key, err := os.ReadFile(cfg.VerificationKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read verification key file: %w", err)
		}
		if err := services.Storage.SetVerificationKey(key); err != nil {
			return nil, fmt.Errorf("failed to store verification key: %w", err)
		}
		log.Infow("verification key loaded", "file", cfg.VerificationKey, "bytes", len(key))
	} else if !services.Storage.HasVerificationKey() {
		log.Warn("no verification key configured, all votes will be rejected until one is set")
	}

	// Start API service
	log.Infow("starting API service", "host", cfg.API.Host, "port", cfg.API.Port)
	services.API, err = api.New(&api.APIConfig{
		Host:    cfg.API.Host,
		Port:    cfg.API.Port,
		Manager: services.Manager,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start API service: %w", err)
	}

	log.Info("zkpoll-node is running, ready to accept votes!")
	return services, nil
}

// shutdownServices gracefully shuts down all services
func shutdownServices(services *Services) {
	if services == nil {
		return
	}

	// Stop services in reverse order of startup
	if services.Heights != nil {
		services.Heights.Close()
	}
	if services.Storage != nil {
		services.Storage.Close()
	}
}
