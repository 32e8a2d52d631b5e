// Package syncer walks primary chain tips backward and indexes the mapping
// commitment embedded in every header.
//
// The Syncer holds no state of its own: the tip set lives in the MetaStore and
// written mappings in the MappingStore, so every call can be interrupted
// between invocations and resumed by a fresh process. Calls must be serialized
// by the caller; the tip set read-modify-write is not atomic.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/metrics"
	"github.com/username/mapsync/pkg/spi"
	"go.uber.org/zap"
)

var (
	// ErrHeaderNotFound means a tip in the tip set does not resolve to a header
	ErrHeaderNotFound = errors.New("header not found")

	// ErrGenesisBlockNotFound means runtime state at genesis holds no secondary block
	ErrGenesisBlockNotFound = errors.New("ethereum genesis block not found")
)

// Config fixes the sync floor and pacing strategy for a session
type Config struct {
	SyncFrom core.Number
	Strategy core.SyncStrategy
}

// Syncer is the mapping sync engine
type Syncer struct {
	cfg     Config
	chain   spi.ChainBackend
	runtime spi.RuntimeAPI
	mapping spi.MappingStore
	meta    spi.MetaStore
	decoder core.LogDecoder
	logger  *zap.SugaredLogger
}

// New creates a Syncer. mapping and meta may be the same spi.Backend.
func New(cfg Config, chain spi.ChainBackend, runtime spi.RuntimeAPI, mapping spi.MappingStore,
	meta spi.MetaStore, decoder core.LogDecoder, logger *zap.SugaredLogger) *Syncer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Syncer{
		cfg:     cfg,
		chain:   chain,
		runtime: runtime,
		mapping: mapping,
		meta:    meta,
		decoder: decoder,
		logger:  logger.Named("mapping-sync"),
	}
}

// SyncBlock decodes the header's commitment log and writes it, or writes a
// no-commitment marker when the header carries none.
func (s *Syncer) SyncBlock(ctx context.Context, header *core.Header) error {
	hashes, err := s.decoder.FindLog(header)
	switch {
	case err == nil:
		commitment := &core.MappingCommitment{
			BlockHash:                 header.Hash,
			EthereumBlockHash:         hashes.BlockHash,
			EthereumTransactionHashes: hashes.TransactionHashes,
		}
		if err := s.mapping.WriteHashes(ctx, commitment); err != nil {
			return fmt.Errorf("failed to write mapping for %s: %w", header.Hash, err)
		}
		metrics.BlocksSynced.WithLabelValues("commitment").Inc()
	case errors.Is(err, core.ErrLogNotFound):
		if err := s.mapping.WriteNone(ctx, header.Hash); err != nil {
			return fmt.Errorf("failed to write empty mapping for %s: %w", header.Hash, err)
		}
		metrics.BlocksSynced.WithLabelValues("none").Inc()
	default:
		return fmt.Errorf("block %d (%s): %w", header.Number, header.Hash, err)
	}
	metrics.LastSyncedNumber.Set(float64(header.Number))
	return nil
}

// SyncGenesisBlock derives the genesis mapping from runtime state, since the
// genesis header carries no commitment log.
func (s *Syncer) SyncGenesisBlock(ctx context.Context, header *core.Header) error {
	log := s.logger.With("hash", header.Hash)
	log.Debug("sync genesis started")

	version, ok, err := s.runtime.APIVersion(ctx, header.Hash)
	if err != nil {
		return fmt.Errorf("failed to query runtime api version at genesis: %w", err)
	}
	if !ok {
		log.Debug("runtime api absent at genesis, writing empty mapping")
		if err := s.mapping.WriteNone(ctx, header.Hash); err != nil {
			return fmt.Errorf("failed to write empty genesis mapping: %w", err)
		}
		metrics.BlocksSynced.WithLabelValues("genesis").Inc()
		return nil
	}

	block, err := s.runtime.CurrentBlock(ctx, header.Hash)
	if err != nil {
		return fmt.Errorf("failed to query current block at genesis: %w", err)
	}
	if block == nil {
		return ErrGenesisBlockNotFound
	}
	log.Debugw("genesis block found", "api_version", version, "ethereum_hash", block.Hash)

	commitment := &core.MappingCommitment{
		BlockHash:                 header.Hash,
		EthereumBlockHash:         block.Hash,
		EthereumTransactionHashes: []core.Hash{},
	}
	if err := s.mapping.WriteHashes(ctx, commitment); err != nil {
		return fmt.Errorf("failed to write genesis mapping: %w", err)
	}
	metrics.BlocksSynced.WithLabelValues("genesis").Inc()
	return nil
}

// FetchHeader resolves a tip to a header that still needs indexing.
// It returns nil, nil when the tip is already synced or below syncFrom.
func (s *Syncer) FetchHeader(ctx context.Context, tip core.Hash, syncFrom core.Number) (*core.Header, error) {
	synced, err := s.mapping.IsSynced(ctx, tip)
	if err != nil {
		return nil, fmt.Errorf("failed to check sync state of %s: %w", tip, err)
	}
	if synced {
		s.logger.Debugw("tip already synced", "tip", tip)
		return nil, nil
	}

	header, err := s.chain.Header(ctx, tip)
	if err != nil || header == nil {
		if err != nil {
			s.logger.Debugw("header lookup failed", "tip", tip, "err", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrHeaderNotFound, tip)
	}
	if header.Number < syncFrom {
		s.logger.Debugw("tip below sync floor", "tip", tip, "number", header.Number, "sync_from", syncFrom)
		return nil, nil
	}
	return header, nil
}

// SyncOneBlock performs at most one unit of indexing work and reports whether
// any was done.
func (s *Syncer) SyncOneBlock(ctx context.Context) (bool, error) {
	tips, err := s.meta.CurrentSyncingTips(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read syncing tips: %w", err)
	}

	if len(tips) == 0 {
		leaves, err := s.chain.Leaves(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to read leaves: %w", err)
		}
		if len(leaves) == 0 {
			return false, nil
		}
		tips = append(tips, leaves...)
	}

	var header *core.Header
	for len(tips) > 0 {
		tip := tips[len(tips)-1]
		tips = tips[:len(tips)-1]

		header, err = s.FetchHeader(ctx, tip, s.cfg.SyncFrom)
		if err != nil {
			return false, err
		}
		if header != nil {
			break
		}
	}
	if header == nil {
		return false, s.writeTips(ctx, tips)
	}

	s.logger.Debugw("operating header", "number", header.Number, "hash", header.Hash)

	if header.Number == 0 {
		if err := s.SyncGenesisBlock(ctx, header); err != nil {
			return false, err
		}
		return true, s.writeTips(ctx, tips)
	}

	if s.cfg.Strategy == core.Parachain {
		best, err := s.chain.BestNumber(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to read best number: %w", err)
		}
		metrics.ChainBestNumber.Set(float64(best))
		if header.Number > best {
			s.logger.Debugw("header ahead of best block, deferring", "number", header.Number, "best", best)
			metrics.Deferred.Inc()
			return false, nil
		}
	}

	if err := s.SyncBlock(ctx, header); err != nil {
		return false, err
	}

	tips = append(tips, header.ParentHash)
	return true, s.writeTips(ctx, tips)
}

// SyncBlocks calls SyncOneBlock limit times and reports whether any call did
// work. It stops early only on error.
func (s *Syncer) SyncBlocks(ctx context.Context, limit int) (bool, error) {
	syncedAny := false
	for i := 0; i < limit; i++ {
		synced, err := s.SyncOneBlock(ctx)
		if err != nil {
			return syncedAny, err
		}
		syncedAny = syncedAny || synced
	}
	return syncedAny, nil
}

func (s *Syncer) writeTips(ctx context.Context, tips []core.Hash) error {
	if err := s.meta.WriteCurrentSyncingTips(ctx, tips); err != nil {
		return fmt.Errorf("failed to write syncing tips: %w", err)
	}
	metrics.SyncingTips.Set(float64(len(tips)))
	return nil
}
