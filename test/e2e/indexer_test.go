package e2e

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/mapsync"
	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/digest"
	"github.com/username/mapsync/pkg/spi"
	"github.com/username/mapsync/pkg/spi/store/badger"
	"github.com/username/mapsync/pkg/spi/store/memory"
	"github.com/username/mapsync/pkg/spi/store/sqlite"
	"github.com/username/mapsync/pkg/syncer"
)

// E2EChain implements a controllable primary chain
type E2EChain struct {
	headers map[core.Hash]*core.Header
	leaves  []core.Hash
}

func NewE2EChain() *E2EChain {
	return &E2EChain{headers: make(map[core.Hash]*core.Header)}
}

func (c *E2EChain) Leaves(ctx context.Context) ([]core.Hash, error) {
	return append([]core.Hash(nil), c.leaves...), nil
}

func (c *E2EChain) Header(ctx context.Context, hash core.Hash) (*core.Header, error) {
	return c.headers[hash], nil
}

func (c *E2EChain) BestNumber(ctx context.Context) (core.Number, error) {
	var best core.Number
	for _, h := range c.headers {
		if h.Number > best {
			best = h.Number
		}
	}
	return best, nil
}

// Add appends a header. Every block with an odd number carries a commitment.
func (c *E2EChain) Add(t *testing.T, name string, number core.Number, parent string) {
	t.Helper()
	h := &core.Header{Hash: core.Hash(name), Number: number, ParentHash: core.Hash(parent)}
	if number%2 == 1 {
		item, err := digest.NewPostHashes(ethBlock(name), []common.Hash{ethTx(name)}).ConsensusItem()
		require.NoError(t, err)
		h.Digest = []core.DigestItem{item}
	}
	c.headers[h.Hash] = h
}

func ethBlock(name string) common.Hash { return common.BytesToHash([]byte("block-" + name)) }
func ethTx(name string) common.Hash    { return common.BytesToHash([]byte("tx-" + name)) }

type E2ERuntime struct{}

func (E2ERuntime) APIVersion(ctx context.Context, at core.Hash) (uint32, bool, error) {
	return 2, true, nil
}

func (E2ERuntime) CurrentBlock(ctx context.Context, at core.Hash) (*core.RuntimeBlock, error) {
	return &core.RuntimeBlock{Hash: core.Hash(ethBlock("genesis").Hex()), Number: 0}, nil
}

// runForkScenario syncs a forked chain through the worker and checks the store
// reached the same state any backend should.
func runForkScenario(t *testing.T, store spi.Backend) {
	ctx := context.Background()

	// A0 <- A1 <- ... <- A6, with B3 <- B4 forking off A2
	chain := NewE2EChain()
	for i := 0; i <= 6; i++ {
		parent := ""
		if i > 0 {
			parent = fmt.Sprintf("A%d", i-1)
		}
		chain.Add(t, fmt.Sprintf("A%d", i), core.Number(i), parent)
	}
	chain.Add(t, "B3", 3, "A2")
	chain.Add(t, "B4", 4, "B3")
	chain.leaves = []core.Hash{"A6", "B4"}

	s := syncer.New(syncer.Config{Strategy: core.Standalone}, chain, E2ERuntime{}, store, store, digest.Decoder{}, nil)
	worker := mapsync.NewWorker(s, nil, 4, 0, nil)

	for round := 0; round < 10; round++ {
		synced, err := worker.SyncOnce(ctx)
		require.NoError(t, err)
		if !synced {
			break
		}
	}

	for name := range chain.headers {
		ok, err := store.IsSynced(ctx, name)
		require.NoError(t, err)
		assert.True(t, ok, "block %s should be synced", name)
	}

	blocks, err := store.BlockHashes(ctx, core.Hash(ethBlock("B3").Hex()))
	require.NoError(t, err)
	assert.Equal(t, []core.Hash{"B3"}, blocks)

	metas, err := store.TransactionMetadata(ctx, core.Hash(ethTx("A5").Hex()))
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, core.Hash("A5"), metas[0].BlockHash)
	assert.Equal(t, uint32(0), metas[0].EthereumIndex)

	genesis, err := store.BlockHashes(ctx, core.Hash(ethBlock("genesis").Hex()))
	require.NoError(t, err)
	assert.Equal(t, []core.Hash{"A0"}, genesis)

	// Even blocks carry no commitment
	blocks, err = store.BlockHashes(ctx, core.Hash(ethBlock("A4").Hex()))
	require.NoError(t, err)
	assert.Empty(t, blocks)

	tips, err := store.CurrentSyncingTips(ctx)
	require.NoError(t, err)
	assert.Empty(t, tips)
}

func TestForkScenario_Memory(t *testing.T) {
	runForkScenario(t, memory.NewStore())
}

func TestForkScenario_Badger(t *testing.T) {
	store, err := badger.NewStore(filepath.Join(t.TempDir(), "badger"), nil)
	require.NoError(t, err)
	defer store.Close()
	runForkScenario(t, store)
}

func TestForkScenario_SQLite(t *testing.T) {
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "mapsync.db"))
	require.NoError(t, err)
	defer store.Close()
	runForkScenario(t, store)
}
