package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/username/mapsync/pkg/core"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the mapsync worker
type Config struct {
	RPCURL          string        `yaml:"rpc_url"`
	DBDriver        string        `yaml:"db_driver"` // badger, sqlite, postgres, redis or memory
	DBPath          string        `yaml:"db_path"`   // Path for badger/sqlite, DSN for postgres, addr for redis
	SyncFrom        uint64        `yaml:"sync_from"`
	Strategy        string        `yaml:"strategy"` // standalone or parachain
	BatchLimit      int           `yaml:"batch_limit"`
	PollingInterval time.Duration `yaml:"polling_interval"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	LeafWindowSize  int           `yaml:"leaf_window_size"`
	LogLevel        string        `yaml:"log_level"`
	LogFile         string        `yaml:"log_file"`
	MetricsAddr     string        `yaml:"metrics_addr"`
}

// Load loads configuration from environment variables or a config file
func Load() (*Config, error) {
	// 1. Check if config file is specified
	if configPath := os.Getenv("MAPSYNC_CONFIG_PATH"); configPath != "" {
		return LoadFromFile(configPath)
	}

	// 2. Fallback to env vars
	cfg := &Config{
		RPCURL:          getEnv("MAPSYNC_RPC_URL", "http://localhost:8545"),
		DBDriver:        getEnv("MAPSYNC_DB_DRIVER", "badger"),
		DBPath:          getEnv("MAPSYNC_DB_PATH", "mapsync.db"),
		SyncFrom:        getEnvUint64("MAPSYNC_SYNC_FROM", 0),
		Strategy:        getEnv("MAPSYNC_STRATEGY", "standalone"),
		BatchLimit:      getEnvInt("MAPSYNC_BATCH_LIMIT", 3),
		PollingInterval: getEnvDuration("MAPSYNC_POLLING_INTERVAL", 6*time.Second),
		MaxRetries:      getEnvInt("MAPSYNC_MAX_RETRIES", 5),
		RetryDelay:      getEnvDuration("MAPSYNC_RETRY_DELAY", 1*time.Second),
		LeafWindowSize:  getEnvInt("MAPSYNC_LEAF_WINDOW_SIZE", 128),
		LogLevel:        getEnv("MAPSYNC_LOG_LEVEL", "info"),
		LogFile:         getEnv("MAPSYNC_LOG_FILE", ""),
		MetricsAddr:     getEnv("MAPSYNC_METRICS_ADDR", ""),
	}
	return cfg, cfg.Validate()
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.setDefaults()
	return &cfg, cfg.Validate()
}

func (c *Config) setDefaults() {
	if c.RPCURL == "" {
		c.RPCURL = "http://localhost:8545"
	}
	if c.DBDriver == "" {
		c.DBDriver = "badger"
	}
	if c.DBPath == "" {
		c.DBPath = "mapsync.db"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.BatchLimit == 0 {
		c.BatchLimit = 3
	}
	if c.PollingInterval == 0 {
		c.PollingInterval = 6 * time.Second
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1 * time.Second
	}
	if c.LeafWindowSize == 0 {
		c.LeafWindowSize = 128
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects values the worker cannot run with
func (c *Config) Validate() error {
	if _, err := c.SyncStrategy(); err != nil {
		return err
	}
	switch c.DBDriver {
	case "badger", "sqlite", "postgres", "redis", "memory":
	default:
		return fmt.Errorf("unknown DB driver: %s. Supported: badger, sqlite, postgres, redis, memory", c.DBDriver)
	}
	if c.BatchLimit <= 0 {
		return fmt.Errorf("batch_limit must be positive, got %d", c.BatchLimit)
	}
	return nil
}

// SyncStrategy parses the configured strategy
func (c *Config) SyncStrategy() (core.SyncStrategy, error) {
	return core.ParseSyncStrategy(c.Strategy)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvUint64(key string, fallback uint64) uint64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseUint(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
