// Package memory is a process-local spi.Backend used by tests and demos.
package memory

import (
	"context"
	"sync"

	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/spi"
)

// Store keeps mapping and progress data in maps
type Store struct {
	mu sync.RWMutex

	synced       map[core.Hash]bool
	commitments  map[core.Hash]*core.MappingCommitment
	blockHashes  map[core.Hash][]core.Hash
	transactions map[core.Hash][]core.TransactionMetadata
	tips         []core.Hash

	writes map[core.Hash]int
}

var _ spi.Backend = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		synced:       make(map[core.Hash]bool),
		commitments:  make(map[core.Hash]*core.MappingCommitment),
		blockHashes:  make(map[core.Hash][]core.Hash),
		transactions: make(map[core.Hash][]core.TransactionMetadata),
		writes:       make(map[core.Hash]int),
	}
}

func (s *Store) IsSynced(ctx context.Context, hash core.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced[hash], nil
}

func (s *Store) WriteHashes(ctx context.Context, c *core.MappingCommitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !containsHash(s.blockHashes[c.EthereumBlockHash], c.BlockHash) {
		s.blockHashes[c.EthereumBlockHash] = append(s.blockHashes[c.EthereumBlockHash], c.BlockHash)
	}
	for i, tx := range c.EthereumTransactionHashes {
		if containsMeta(s.transactions[tx], c.BlockHash) {
			continue
		}
		s.transactions[tx] = append(s.transactions[tx], core.TransactionMetadata{
			BlockHash:         c.BlockHash,
			EthereumBlockHash: c.EthereumBlockHash,
			EthereumIndex:     uint32(i),
		})
	}
	cp := *c
	cp.EthereumTransactionHashes = append([]core.Hash(nil), c.EthereumTransactionHashes...)
	s.commitments[c.BlockHash] = &cp
	s.synced[c.BlockHash] = true
	s.writes[c.BlockHash]++
	return nil
}

func (s *Store) WriteNone(ctx context.Context, hash core.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[hash] = true
	s.writes[hash]++
	return nil
}

func (s *Store) BlockHashes(ctx context.Context, ethereumBlockHash core.Hash) ([]core.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Hash(nil), s.blockHashes[ethereumBlockHash]...), nil
}

func (s *Store) TransactionMetadata(ctx context.Context, txHash core.Hash) ([]core.TransactionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.TransactionMetadata(nil), s.transactions[txHash]...), nil
}

func (s *Store) CurrentSyncingTips(ctx context.Context) ([]core.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Hash(nil), s.tips...), nil
}

func (s *Store) WriteCurrentSyncingTips(ctx context.Context, tips []core.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tips = append([]core.Hash(nil), tips...)
	return nil
}

func (s *Store) Close() error { return nil }

// Commitment returns the commitment written for a primary block, if any
func (s *Store) Commitment(hash core.Hash) (*core.MappingCommitment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commitments[hash]
	return c, ok
}

// WriteCount returns how many mapping writes hit the primary hash
func (s *Store) WriteCount(hash core.Hash) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[hash]
}

// SyncedCount returns how many primary blocks are marked synced
func (s *Store) SyncedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.synced)
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
