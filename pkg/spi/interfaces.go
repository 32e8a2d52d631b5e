package spi

import (
	"context"

	"github.com/username/mapsync/pkg/core"
)

// ChainBackend gives read-only access to the primary chain
type ChainBackend interface {
	// Leaves returns the current chain tips
	Leaves(ctx context.Context) ([]core.Hash, error)

	// Header fetches a header by hash. Returns nil, nil when the hash is unknown.
	Header(ctx context.Context, hash core.Hash) (*core.Header, error)

	// BestNumber returns the locally known best block number
	BestNumber(ctx context.Context) (core.Number, error)
}

// RuntimeAPI queries secondary chain state at a given primary block
type RuntimeAPI interface {
	// APIVersion reports whether the secondary chain runtime API exists at the block
	APIVersion(ctx context.Context, at core.Hash) (version uint32, ok bool, err error)

	// CurrentBlock returns the secondary block stored at the given primary block, or nil
	CurrentBlock(ctx context.Context, at core.Hash) (*core.RuntimeBlock, error)
}

// MappingStore persists primary block -> secondary block mappings
type MappingStore interface {
	// IsSynced reports whether a commitment or a no-commitment marker exists for the hash
	IsSynced(ctx context.Context, hash core.Hash) (bool, error)

	// WriteHashes records a commitment and marks its block synced
	WriteHashes(ctx context.Context, commitment *core.MappingCommitment) error

	// WriteNone marks the block synced without a commitment
	WriteNone(ctx context.Context, hash core.Hash) error

	// BlockHashes returns every primary block committed to the secondary block
	BlockHashes(ctx context.Context, ethereumBlockHash core.Hash) ([]core.Hash, error)

	// TransactionMetadata returns where the secondary transaction was included
	TransactionMetadata(ctx context.Context, ethereumTransactionHash core.Hash) ([]core.TransactionMetadata, error)
}

// MetaStore persists sync progress
type MetaStore interface {
	CurrentSyncingTips(ctx context.Context) ([]core.Hash, error)
	WriteCurrentSyncingTips(ctx context.Context, tips []core.Hash) error
}

// Backend is a single physical store serving both mapping and progress data
type Backend interface {
	MappingStore
	MetaStore
	Close() error
}

// HeadSource reports the latest primary chain head
type HeadSource interface {
	LatestHead(ctx context.Context) (*core.Head, error)
}

// Subscription mirrors go-ethereum's subscription handle
type Subscription interface {
	Unsubscribe()
	Err() <-chan error
}

// SubscriptionSource can push new heads instead of being polled
type SubscriptionSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *core.Head) (Subscription, error)
}
