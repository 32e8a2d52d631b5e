package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/spi"
)

type Store struct {
	client *redis.Client
	prefix string
}

// Ensure Store implements spi.Backend
var _ spi.Backend = (*Store)(nil)

func NewStore(addr string, password string, db int) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStoreWithClient(rdb, "mapsync:"), nil
}

// NewStoreWithClient wraps an existing client. All keys are namespaced by prefix.
func NewStoreWithClient(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

// key: mapsync:synced:<hash>
func (s *Store) syncedKey(hash core.Hash) string { return s.prefix + "synced:" + string(hash) }

// key: mapsync:block:<ethereum block hash> (set of primary hashes)
func (s *Store) blockKey(hash core.Hash) string { return s.prefix + "block:" + string(hash) }

// key: mapsync:tx:<ethereum tx hash> (set of metadata json)
func (s *Store) txKey(hash core.Hash) string { return s.prefix + "tx:" + string(hash) }

func (s *Store) IsSynced(ctx context.Context, hash core.Hash) (bool, error) {
	n, err := s.client.Exists(ctx, s.syncedKey(hash)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) WriteHashes(ctx context.Context, c *core.MappingCommitment) error {
	pipe := s.client.TxPipeline()

	pipe.SAdd(ctx, s.blockKey(c.EthereumBlockHash), string(c.BlockHash))
	for i, tx := range c.EthereumTransactionHashes {
		data, err := json.Marshal(core.TransactionMetadata{
			BlockHash:         c.BlockHash,
			EthereumBlockHash: c.EthereumBlockHash,
			EthereumIndex:     uint32(i),
		})
		if err != nil {
			return fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
		pipe.SAdd(ctx, s.txKey(tx), data)
	}
	pipe.Set(ctx, s.syncedKey(c.BlockHash), string(c.EthereumBlockHash), 0)

	_, err := pipe.Exec(ctx)
	return err
}

func (s *Store) WriteNone(ctx context.Context, hash core.Hash) error {
	return s.client.Set(ctx, s.syncedKey(hash), "", 0).Err()
}

func (s *Store) BlockHashes(ctx context.Context, ethereumBlockHash core.Hash) ([]core.Hash, error) {
	members, err := s.client.SMembers(ctx, s.blockKey(ethereumBlockHash)).Result()
	if err != nil {
		return nil, err
	}
	hashes := make([]core.Hash, len(members))
	for i, m := range members {
		hashes[i] = core.Hash(m)
	}
	return hashes, nil
}

func (s *Store) TransactionMetadata(ctx context.Context, txHash core.Hash) ([]core.TransactionMetadata, error) {
	vals, err := s.client.SMembers(ctx, s.txKey(txHash)).Result()
	if err != nil {
		return nil, err
	}
	metas := make([]core.TransactionMetadata, len(vals))
	for i, v := range vals {
		if err := json.Unmarshal([]byte(v), &metas[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
		}
	}
	return metas, nil
}

func (s *Store) CurrentSyncingTips(ctx context.Context) ([]core.Hash, error) {
	// key: mapsync:meta:tips
	val, err := s.client.Get(ctx, s.prefix+"meta:tips").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var tips []core.Hash
	if err := json.Unmarshal([]byte(val), &tips); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tips: %w", err)
	}
	return tips, nil
}

func (s *Store) WriteCurrentSyncingTips(ctx context.Context, tips []core.Hash) error {
	if tips == nil {
		tips = []core.Hash{}
	}
	data, err := json.Marshal(tips)
	if err != nil {
		return fmt.Errorf("failed to marshal tips: %w", err)
	}
	return s.client.Set(ctx, s.prefix+"meta:tips", data, 0).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
