// Package badger implements spi.Backend on an embedded BadgerDB.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/spi"
	"go.uber.org/zap"
)

var (
	prefixSynced = []byte("mapping:synced:")
	prefixBlock  = []byte("mapping:block:")
	prefixTx     = []byte("mapping:tx:")
	keyTips      = []byte("meta:tips")
)

type Store struct {
	db     *badgerdb.DB
	logger *zap.SugaredLogger
}

var _ spi.Backend = (*Store)(nil)

// NewStore opens a BadgerDB at path. An empty path opens an in-memory database.
func NewStore(path string, logger *zap.SugaredLogger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.Named("badger")

	opts := badgerdb.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.SyncWrites = true
	opts.Logger = badgerLogger{logger}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %q: %w", path, err)
	}
	logger.Infow("badger store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func key(prefix []byte, hash core.Hash) []byte {
	k := make([]byte, 0, len(prefix)+len(hash))
	k = append(k, prefix...)
	return append(k, hash...)
}

// getJSON decodes the value at key into v. Reports false when the key is absent.
func getJSON(txn *badgerdb.Txn, k []byte, v interface{}) (bool, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badgerdb.Txn, k []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, data)
}

func (s *Store) IsSynced(ctx context.Context, hash core.Hash) (bool, error) {
	var exists bool
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(key(prefixSynced, hash))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("badger: failed to check synced %s: %w", hash, err)
	}
	return exists, nil
}

func (s *Store) WriteHashes(ctx context.Context, c *core.MappingCommitment) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		blockKey := key(prefixBlock, c.EthereumBlockHash)
		var blocks []core.Hash
		if _, err := getJSON(txn, blockKey, &blocks); err != nil {
			return err
		}
		if !containsHash(blocks, c.BlockHash) {
			blocks = append(blocks, c.BlockHash)
			if err := setJSON(txn, blockKey, blocks); err != nil {
				return err
			}
		}

		for i, tx := range c.EthereumTransactionHashes {
			txKey := key(prefixTx, tx)
			var metas []core.TransactionMetadata
			if _, err := getJSON(txn, txKey, &metas); err != nil {
				return err
			}
			if containsMeta(metas, c.BlockHash) {
				continue
			}
			metas = append(metas, core.TransactionMetadata{
				BlockHash:         c.BlockHash,
				EthereumBlockHash: c.EthereumBlockHash,
				EthereumIndex:     uint32(i),
			})
			if err := setJSON(txn, txKey, metas); err != nil {
				return err
			}
		}

		return txn.Set(key(prefixSynced, c.BlockHash), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("badger: failed to write hashes for %s: %w", c.BlockHash, err)
	}
	return nil
}

func (s *Store) WriteNone(ctx context.Context, hash core.Hash) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(prefixSynced, hash), []byte{0})
	})
	if err != nil {
		return fmt.Errorf("badger: failed to write none for %s: %w", hash, err)
	}
	return nil
}

func (s *Store) BlockHashes(ctx context.Context, ethereumBlockHash core.Hash) ([]core.Hash, error) {
	var blocks []core.Hash
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := getJSON(txn, key(prefixBlock, ethereumBlockHash), &blocks)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger: failed to read block hashes: %w", err)
	}
	return blocks, nil
}

func (s *Store) TransactionMetadata(ctx context.Context, txHash core.Hash) ([]core.TransactionMetadata, error) {
	var metas []core.TransactionMetadata
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := getJSON(txn, key(prefixTx, txHash), &metas)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger: failed to read transaction metadata: %w", err)
	}
	return metas, nil
}

func (s *Store) CurrentSyncingTips(ctx context.Context) ([]core.Hash, error) {
	var tips []core.Hash
	err := s.db.View(func(txn *badgerdb.Txn) error {
		_, err := getJSON(txn, keyTips, &tips)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("badger: failed to read syncing tips: %w", err)
	}
	return tips, nil
}

func (s *Store) WriteCurrentSyncingTips(ctx context.Context, tips []core.Hash) error {
	if tips == nil {
		tips = []core.Hash{}
	}
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return setJSON(txn, keyTips, tips)
	})
	if err != nil {
		return fmt.Errorf("badger: failed to write syncing tips: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func containsMeta(metas []core.TransactionMetadata, blockHash core.Hash) bool {
	for _, m := range metas {
		if m.BlockHash == blockHash {
			return true
		}
	}
	return false
}

func containsHash(hashes []core.Hash, h core.Hash) bool {
	for _, x := range hashes {
		if x == h {
			return true
		}
	}
	return false
}

// badgerLogger routes badger's internal logging into zap
type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(format string, args ...interface{})   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...interface{}) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...interface{})    { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...interface{})   { b.l.Debugf(format, args...) }
