// Package config provides configuration management for the game sync
// engine. It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/game-sync-engine/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Chains   ChainsConfig
	Sync     SyncConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// ChainsConfig holds per-chain configuration
type ChainsConfig struct {
	Enabled []types.ChainID
	Chains  map[types.ChainID]ChainConfig
}

// ChainConfig holds configuration for one chain
type ChainConfig struct {
	// RPCEndpoints is the ordered candidate list for the chain reader,
	// comma separated in the environment.
	RPCEndpoints []string
	// IndexerEndpoint is the GraphQL indexing endpoint for the chain.
	IndexerEndpoint string
	// RegistryAddress is the game registry contract address.
	RegistryAddress string
	// PollInterval is the worker polling interval.
	PollInterval time.Duration
}

// SyncConfig holds reconciliation pipeline tuning
type SyncConfig struct {
	// PageSize is the default indexer page size per sync pass.
	PageSize int
	// DetailCallDelay is the fixed delay between sequential per-player
	// contract reads during enrichment.
	DetailCallDelay time.Duration
	// RPCMinCallSpacing is the fixed minimum spacing between calls to
	// one RPC endpoint.
	RPCMinCallSpacing time.Duration
	// RPCCooldown is how long a rate-limited endpoint stays disabled.
	RPCCooldown time.Duration
	// IndexerTimeout bounds each indexer query.
	IndexerTimeout time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// chainNames maps the names accepted in ENABLED_CHAINS to chain ids.
var chainNames = map[string]types.ChainID{
	"ethereum": types.ChainEthereum,
	"bnb":      types.ChainBNB,
	"polygon":  types.ChainPolygon,
	"base":     types.ChainBase,
	"arbitrum": types.ChainArbitrum,
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional; environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "game_sync"),
				User:           getEnv("POSTGRES_USER", "game_sync"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			Redis: RedisConfig{
				Host:     getEnv("REDIS_HOST", "localhost"),
				Port:     getEnv("REDIS_PORT", "6379"),
				Password: getEnv("REDIS_PASSWORD", ""),
				DB:       getEnvAsInt("REDIS_DB", 0),
			},
		},
		Sync: SyncConfig{
			PageSize:          getEnvAsInt("SYNC_PAGE_SIZE", 100),
			DetailCallDelay:   getEnvAsDuration("SYNC_DETAIL_CALL_DELAY", 250*time.Millisecond),
			RPCMinCallSpacing: getEnvAsDuration("RPC_MIN_CALL_SPACING", 200*time.Millisecond),
			RPCCooldown:       getEnvAsDuration("RPC_COOLDOWN", 60*time.Second),
			IndexerTimeout:    getEnvAsDuration("INDEXER_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	chains, err := loadChainConfigs()
	if err != nil {
		return nil, err
	}
	config.Chains = chains

	return config, nil
}

// loadChainConfigs loads chain-specific configurations keyed by env
// prefix, e.g. POLYGON_RPC_ENDPOINTS, POLYGON_INDEXER_ENDPOINT.
func loadChainConfigs() (ChainsConfig, error) {
	names := strings.Split(getEnv("ENABLED_CHAINS", "polygon,base"), ",")

	enabled := make([]types.ChainID, 0, len(names))
	chains := make(map[types.ChainID]ChainConfig)
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		chainID, ok := chainNames[name]
		if !ok {
			return ChainsConfig{}, fmt.Errorf("unknown chain %q in ENABLED_CHAINS", name)
		}

		prefix := strings.ToUpper(name)
		chains[chainID] = ChainConfig{
			RPCEndpoints:    splitList(getEnv(prefix+"_RPC_ENDPOINTS", "")),
			IndexerEndpoint: getEnv(prefix+"_INDEXER_ENDPOINT", ""),
			RegistryAddress: getEnv(prefix+"_REGISTRY_ADDRESS", ""),
			PollInterval:    getEnvAsDuration(prefix+"_POLL_INTERVAL", 60*time.Second),
		}
		enabled = append(enabled, chainID)
	}

	return ChainsConfig{Enabled: enabled, Chains: chains}, nil
}

// splitList splits a comma-separated list, trimming whitespace and
// dropping empty entries.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
