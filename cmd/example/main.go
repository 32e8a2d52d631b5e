package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/username/mapsync"
	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/digest"
	"github.com/username/mapsync/pkg/logging"
	"github.com/username/mapsync/pkg/spi/store/memory"
	"github.com/username/mapsync/pkg/syncer"
)

// MockChain implements spi.ChainBackend for demonstration
type MockChain struct {
	headers map[core.Hash]*core.Header
	leaves  []core.Hash
}

func (m *MockChain) Leaves(ctx context.Context) ([]core.Hash, error) {
	return m.leaves, nil
}

func (m *MockChain) Header(ctx context.Context, hash core.Hash) (*core.Header, error) {
	return m.headers[hash], nil
}

func (m *MockChain) BestNumber(ctx context.Context) (core.Number, error) {
	var best core.Number
	for _, h := range m.headers {
		if h.Number > best {
			best = h.Number
		}
	}
	return best, nil
}

// MockRuntime implements spi.RuntimeAPI
type MockRuntime struct {
	genesis common.Hash
}

func (m *MockRuntime) APIVersion(ctx context.Context, at core.Hash) (uint32, bool, error) {
	return 1, true, nil
}

func (m *MockRuntime) CurrentBlock(ctx context.Context, at core.Hash) (*core.RuntimeBlock, error) {
	return &core.RuntimeBlock{Hash: core.Hash(m.genesis.Hex())}, nil
}

func main() {
	// 1. Build H0 <- H1 <- ... <- H5, with H3 carrying a commitment
	chain := &MockChain{headers: make(map[core.Hash]*core.Header)}
	for i := 0; i <= 5; i++ {
		h := &core.Header{Hash: core.Hash(fmt.Sprintf("H%d", i)), Number: core.Number(i)}
		if i > 0 {
			h.ParentHash = core.Hash(fmt.Sprintf("H%d", i-1))
		}
		if i == 3 {
			item, err := digest.NewPostHashes(
				common.HexToHash("0xe3"),
				[]common.Hash{common.HexToHash("0x7a"), common.HexToHash("0x7b")},
			).ConsensusItem()
			if err != nil {
				log.Fatal(err)
			}
			h.Digest = append(h.Digest, item)
		}
		chain.headers[h.Hash] = h
	}
	chain.leaves = []core.Hash{"H5"}

	logger, err := logging.New("debug", "")
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	store := memory.NewStore()
	s := syncer.New(
		syncer.Config{SyncFrom: 0, Strategy: core.Standalone},
		chain,
		&MockRuntime{genesis: common.HexToHash("0xe0")},
		store,
		store,
		digest.Decoder{},
		logger,
	)

	// 2. Run the worker briefly
	worker := mapsync.NewWorker(s, nil, 10, 500*time.Millisecond, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := worker.Run(ctx); err != nil {
		log.Fatal(err)
	}

	// 3. Query the results
	for i := 0; i <= 5; i++ {
		hash := core.Hash(fmt.Sprintf("H%d", i))
		synced, _ := store.IsSynced(context.Background(), hash)
		c, ok := store.Commitment(hash)
		if ok {
			fmt.Printf("[Store] %s synced=%t -> %s (%d txs)\n", hash, synced, c.EthereumBlockHash, len(c.EthereumTransactionHashes))
		} else {
			fmt.Printf("[Store] %s synced=%t (no commitment)\n", hash, synced)
		}
	}
	tips, _ := store.CurrentSyncingTips(context.Background())
	fmt.Printf("[Store] syncing tips: %v\n", tips)

	txs, _ := store.TransactionMetadata(context.Background(), core.Hash(common.HexToHash("0x7b").Hex()))
	for _, tx := range txs {
		fmt.Printf("[Lookup] tx 0x7b included in %s at index %d\n", tx.EthereumBlockHash, tx.EthereumIndex)
	}
}
