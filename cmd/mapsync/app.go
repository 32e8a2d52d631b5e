package main

import (
	"fmt"
	"strings"

	goredis "github.com/go-redis/redis/v8"
	"github.com/username/mapsync/pkg/config"
	"github.com/username/mapsync/pkg/digest"
	"github.com/username/mapsync/pkg/logging"
	"github.com/username/mapsync/pkg/monitor"
	"github.com/username/mapsync/pkg/spi"
	"github.com/username/mapsync/pkg/spi/eth"
	"github.com/username/mapsync/pkg/spi/store/badger"
	"github.com/username/mapsync/pkg/spi/store/memory"
	"github.com/username/mapsync/pkg/spi/store/pg"
	"github.com/username/mapsync/pkg/spi/store/redis"
	"github.com/username/mapsync/pkg/spi/store/sqlite"
	"github.com/username/mapsync/pkg/syncer"
	"github.com/username/mapsync/pkg/util"
	"go.uber.org/zap"
)

// app bundles the components a command needs
type app struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	store  spi.Backend
	client *eth.Client
	syncer *syncer.Syncer
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warnw("failed to close store", "err", err)
		}
	}
	_ = a.logger.Sync()
}

// newApp loads config and opens the store. withChain also connects to the node
// and builds the sync engine.
func newApp(withChain bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}
	a.store, err = openStore(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("failed to initialize store (%s): %w", cfg.DBDriver, err)
	}
	if !withChain {
		return a, nil
	}

	a.client, err = eth.NewClient(cfg.RPCURL, monitor.NewLeafTracker(cfg.LeafWindowSize))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to RPC at %s: %w", cfg.RPCURL, err)
	}

	strategy, err := cfg.SyncStrategy()
	if err != nil {
		a.Close()
		return nil, err
	}
	backoff := util.NewBackoff(cfg.MaxRetries, cfg.RetryDelay).WithLogger(logger.Named("rpc"))
	a.syncer = syncer.New(
		syncer.Config{SyncFrom: cfg.SyncFrom, Strategy: strategy},
		spi.NewRetryingChainBackend(a.client, backoff),
		a.client,
		a.store,
		a.store,
		digest.Decoder{},
		logger,
	)
	return a, nil
}

func openStore(cfg *config.Config, logger *zap.SugaredLogger) (spi.Backend, error) {
	switch cfg.DBDriver {
	case "badger":
		logger.Infow("using badger store", "path", cfg.DBPath)
		return badger.NewStore(cfg.DBPath, logger)
	case "sqlite":
		logger.Infow("using sqlite store", "path", cfg.DBPath)
		return sqlite.NewStore(cfg.DBPath)
	case "postgres":
		logger.Info("using postgres store with DSN provided in config")
		return pg.NewStore(cfg.DBPath)
	case "redis":
		logger.Infow("using redis store", "addr", cfg.DBPath)
		if strings.HasPrefix(cfg.DBPath, "redis://") {
			opts, err := goredis.ParseURL(cfg.DBPath)
			if err != nil {
				return nil, err
			}
			return redis.NewStoreWithClient(goredis.NewClient(opts), "mapsync:"), nil
		}
		return redis.NewStore(cfg.DBPath, "", 0)
	case "memory":
		logger.Warn("using in-memory store, progress is lost on exit")
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown DB driver: %s", cfg.DBDriver)
	}
}
