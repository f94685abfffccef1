// Package main provides the API server entry point for the game sync
// engine.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/game-sync-engine/internal/api"
	"github.com/game-sync-engine/internal/chainreader"
	"github.com/game-sync-engine/internal/circuitbreaker"
	"github.com/game-sync-engine/internal/config"
	"github.com/game-sync-engine/internal/indexer"
	"github.com/game-sync-engine/internal/logging"
	"github.com/game-sync-engine/internal/storage"
	syncsvc "github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
	"github.com/game-sync-engine/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Database connections
	logger.Info("Connecting to databases...")
	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()
	logger.Info("Database connections established")

	// Chain infrastructure: one shared breaker and reader across all
	// chain workers.
	endpoints := make(map[types.ChainID][]string)
	indexers := make(map[types.ChainID]string)
	registries := make(map[types.ChainID]string)
	for chainID, chainCfg := range cfg.Chains.Chains {
		if len(chainCfg.RPCEndpoints) == 0 {
			logger.WithField("chainId", chainID).Warn("Skipping chain: no RPC endpoints configured")
			continue
		}
		endpoints[chainID] = chainCfg.RPCEndpoints
		indexers[chainID] = chainCfg.IndexerEndpoint
		registries[chainID] = chainCfg.RegistryAddress
	}

	breaker := circuitbreaker.NewEndpointBreaker(cfg.Sync.RPCCooldown)
	reader, err := chainreader.NewReader(&chainreader.Config{
		Endpoints:      endpoints,
		Breaker:        breaker,
		MinCallSpacing: cfg.Sync.RPCMinCallSpacing,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create chain reader")
	}
	defer reader.Close()

	fetcher := indexer.NewClient(indexers, cfg.Sync.IndexerTimeout)

	// Reconciliation pipeline
	stores := syncsvc.Stores{
		Games:        storage.NewGameRepository(postgres),
		Accounts:     storage.NewUserAccountRepository(postgres),
		Participants: storage.NewParticipantRepository(postgres),
		CoinFeeds:    storage.NewCoinFeedRepository(postgres),
		Tokens:       storage.NewTokenRepository(postgres),
		Results:      storage.NewResultRepository(postgres),
	}
	syncService := syncsvc.NewService(fetcher, reader, stores, redis, syncsvc.ServiceConfig{
		Registries:      registries,
		DefaultPageSize: cfg.Sync.PageSize,
		DetailCallDelay: cfg.Sync.DetailCallDelay,
	})

	// Per-chain polling workers, started for every enabled chain.
	workers := worker.NewManager(syncService, syncsvc.Options{SyncAll: true})
	for _, chainID := range cfg.Chains.Enabled {
		chainCfg := cfg.Chains.Chains[chainID]
		if len(chainCfg.RPCEndpoints) == 0 {
			continue
		}
		workers.StartWorker(chainID, chainCfg.PollInterval)
	}
	defer workers.StopAll()

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: 20,
	}
	server := api.NewServer(serverConfig, syncService, workers, cfg.Chains)

	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()
	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	workers.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
