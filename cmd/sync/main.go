// Package main provides a CLI tool for running a one-shot sync pass
// against one chain, outside the polling workers.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/game-sync-engine/internal/chainreader"
	"github.com/game-sync-engine/internal/circuitbreaker"
	"github.com/game-sync-engine/internal/config"
	"github.com/game-sync-engine/internal/indexer"
	"github.com/game-sync-engine/internal/logging"
	"github.com/game-sync-engine/internal/storage"
	syncsvc "github.com/game-sync-engine/internal/sync"
	"github.com/game-sync-engine/internal/types"
)

func main() {
	var (
		chainID        = flag.Int64("chain", 0, "Chain id to sync (required)")
		limit          = flag.Int("limit", 0, "Page size (default: configured page size)")
		skip           = flag.Int("skip", 0, "Page offset to start from")
		status         = flag.String("status", "", "Filter by game status (Waiting, Started, Ended)")
		syncAll        = flag.Bool("all", false, "Keep paging until the indexer is exhausted")
		updateExisting = flag.Bool("update", false, "Re-sync games already on file")
	)
	flag.Parse()

	if *chainID <= 0 {
		log.Fatal("a positive -chain id is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	// Redis is optional here; a one-shot run works without the cache.
	var cache syncsvc.AddressCache
	if redis, err := storage.NewRedisCache(&cfg.Database.Redis); err != nil {
		log.Printf("Redis unavailable, continuing without address cache: %v", err)
	} else {
		cache = redis
		defer redis.Close()
	}

	endpoints := make(map[types.ChainID][]string)
	indexers := make(map[types.ChainID]string)
	registries := make(map[types.ChainID]string)
	for id, chainCfg := range cfg.Chains.Chains {
		endpoints[id] = chainCfg.RPCEndpoints
		indexers[id] = chainCfg.IndexerEndpoint
		registries[id] = chainCfg.RegistryAddress
	}

	reader, err := chainreader.NewReader(&chainreader.Config{
		Endpoints:      endpoints,
		Breaker:        circuitbreaker.NewEndpointBreaker(cfg.Sync.RPCCooldown),
		MinCallSpacing: cfg.Sync.RPCMinCallSpacing,
	})
	if err != nil {
		log.Fatalf("Failed to create chain reader: %v", err)
	}
	defer reader.Close()

	stores := syncsvc.Stores{
		Games:        storage.NewGameRepository(postgres),
		Accounts:     storage.NewUserAccountRepository(postgres),
		Participants: storage.NewParticipantRepository(postgres),
		CoinFeeds:    storage.NewCoinFeedRepository(postgres),
		Tokens:       storage.NewTokenRepository(postgres),
		Results:      storage.NewResultRepository(postgres),
	}
	service := syncsvc.NewService(
		indexer.NewClient(indexers, cfg.Sync.IndexerTimeout),
		reader,
		stores,
		cache,
		syncsvc.ServiceConfig{
			Registries:      registries,
			DefaultPageSize: cfg.Sync.PageSize,
			DetailCallDelay: cfg.Sync.DetailCallDelay,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := syncsvc.Options{
		Limit:          *limit,
		Skip:           *skip,
		SyncAll:        *syncAll,
		UpdateExisting: *updateExisting,
	}
	if *status != "" {
		opts.Status = status
	}

	result, err := service.Sync(ctx, types.ChainID(*chainID), opts)
	if result != nil {
		log.Printf("synced=%d updated=%d skipped=%d errors=%d", result.Synced, result.Updated, result.Skipped, result.Errors)
		for _, detail := range result.ErrorDetails {
			log.Printf("  error: %s", detail)
		}
	}
	if err != nil {
		log.Printf("sync failed: %v", err)
		os.Exit(1)
	}
}
