package spi

import (
	"context"

	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/util"
)

// RetryingChainBackend wraps a ChainBackend with retry logic
type RetryingChainBackend struct {
	inner   ChainBackend
	backoff *util.Backoff
}

var _ ChainBackend = (*RetryingChainBackend)(nil)

// NewRetryingChainBackend creates a new RetryingChainBackend
func NewRetryingChainBackend(inner ChainBackend, backoff *util.Backoff) *RetryingChainBackend {
	return &RetryingChainBackend{
		inner:   inner,
		backoff: backoff,
	}
}

// Inner returns the underlying ChainBackend
func (b *RetryingChainBackend) Inner() ChainBackend {
	return b.inner
}

// Leaves returns the current chain tips with retry
func (b *RetryingChainBackend) Leaves(ctx context.Context) ([]core.Hash, error) {
	var leaves []core.Hash

	err := b.backoff.Retry(ctx, func() error {
		var err error
		leaves, err = b.inner.Leaves(ctx)
		return err
	})

	return leaves, err
}

// Header fetches a header with retry. An unknown hash is an answer, not a failure,
// so a nil header is returned without retrying.
func (b *RetryingChainBackend) Header(ctx context.Context, hash core.Hash) (*core.Header, error) {
	var header *core.Header

	err := b.backoff.Retry(ctx, func() error {
		var err error
		header, err = b.inner.Header(ctx, hash)
		return err
	})

	return header, err
}

// BestNumber returns the best known number with retry
func (b *RetryingChainBackend) BestNumber(ctx context.Context) (core.Number, error) {
	var number core.Number

	err := b.backoff.Retry(ctx, func() error {
		var err error
		number, err = b.inner.BestNumber(ctx)
		return err
	})

	return number, err
}
