package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/mapsync/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_Mapping(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ok, err := s.IsSynced(ctx, "0xa1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.WriteNone(ctx, "0xa0"))
	require.NoError(t, s.WriteHashes(ctx, &core.MappingCommitment{
		BlockHash:                 "0xa1",
		EthereumBlockHash:         "0xe1",
		EthereumTransactionHashes: []core.Hash{"0xt0", "0xt1"},
	}))
	// the same secondary block committed by a competing fork
	require.NoError(t, s.WriteHashes(ctx, &core.MappingCommitment{
		BlockHash:                 "0xb1",
		EthereumBlockHash:         "0xe1",
		EthereumTransactionHashes: []core.Hash{"0xt1"},
	}))

	for _, h := range []core.Hash{"0xa0", "0xa1", "0xb1"} {
		ok, err := s.IsSynced(ctx, h)
		require.NoError(t, err)
		assert.True(t, ok, h)
	}

	blocks, err := s.BlockHashes(ctx, "0xe1")
	require.NoError(t, err)
	assert.Equal(t, []core.Hash{"0xa1", "0xb1"}, blocks)

	metas, err := s.TransactionMetadata(ctx, "0xt1")
	require.NoError(t, err)
	assert.Equal(t, []core.TransactionMetadata{
		{BlockHash: "0xa1", EthereumBlockHash: "0xe1", EthereumIndex: 1},
		{BlockHash: "0xb1", EthereumBlockHash: "0xe1", EthereumIndex: 0},
	}, metas)

	blocks, err = s.BlockHashes(ctx, "0xunknown")
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestStore_Tips(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tips, err := s.CurrentSyncingTips(ctx)
	require.NoError(t, err)
	assert.Empty(t, tips)

	require.NoError(t, s.WriteCurrentSyncingTips(ctx, []core.Hash{"0x1", "0x2"}))
	tips, err = s.CurrentSyncingTips(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Hash{"0x1", "0x2"}, tips)

	require.NoError(t, s.WriteCurrentSyncingTips(ctx, nil))
	tips, err = s.CurrentSyncingTips(ctx)
	require.NoError(t, err)
	assert.Empty(t, tips)
}

func TestStore_RewriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	c := &core.MappingCommitment{
		BlockHash:                 "0xa1",
		EthereumBlockHash:         "0xe1",
		EthereumTransactionHashes: []core.Hash{"0xt0", "0xt1"},
	}
	require.NoError(t, s.WriteHashes(ctx, c))
	require.NoError(t, s.WriteHashes(ctx, c))

	metas, err := s.TransactionMetadata(ctx, "0xt1")
	require.NoError(t, err)
	assert.Equal(t, []core.TransactionMetadata{
		{BlockHash: "0xa1", EthereumBlockHash: "0xe1", EthereumIndex: 1},
	}, metas)

	blocks, err := s.BlockHashes(ctx, "0xe1")
	require.NoError(t, err)
	assert.Equal(t, []core.Hash{"0xa1"}, blocks)
}
