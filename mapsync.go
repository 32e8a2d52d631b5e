// Package mapsync drives the mapping sync engine as a long-running worker.
package mapsync

import (
	"context"
	"time"

	"github.com/username/mapsync/pkg/core"
	"github.com/username/mapsync/pkg/metrics"
	"go.uber.org/zap"
)

// BlockSyncer performs a bounded round of indexing work
type BlockSyncer interface {
	SyncBlocks(ctx context.Context, limit int) (bool, error)
}

// Worker is the main entry point for continuous syncing
type Worker struct {
	syncer BlockSyncer
	heads  <-chan *core.Head

	batchLimit      int
	pollingInterval time.Duration
	logger          *zap.SugaredLogger
}

// NewWorker creates a Worker. heads may be nil, in which case only the
// polling interval triggers rounds.
func NewWorker(syncer BlockSyncer, heads <-chan *core.Head, batchLimit int, pollingInterval time.Duration, logger *zap.SugaredLogger) *Worker {
	if batchLimit <= 0 {
		batchLimit = 1
	}
	if pollingInterval <= 0 {
		pollingInterval = 6 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Worker{
		syncer:          syncer,
		heads:           heads,
		batchLimit:      batchLimit,
		pollingInterval: pollingInterval,
		logger:          logger.Named("mapping-sync-worker"),
	}
}

// SyncOnce runs a single round of at most batchLimit blocks
func (w *Worker) SyncOnce(ctx context.Context) (bool, error) {
	return w.syncer.SyncBlocks(ctx, w.batchLimit)
}

// Run syncs until ctx is cancelled. A round that did work is followed
// immediately by another; otherwise the worker waits for a new head or the
// polling interval. Errors are logged and the worker waits for the next trigger.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infow("starting mapping sync worker", "batch_limit", w.batchLimit, "polling_interval", w.pollingInterval)

	timer := time.NewTimer(w.pollingInterval)
	defer timer.Stop()

	haveNext := true
	for {
		if !haveNext {
			select {
			case <-ctx.Done():
				w.logger.Info("mapping sync worker stopped")
				return nil
			case head, ok := <-w.heads:
				if !ok {
					w.heads = nil
					continue
				}
				w.logger.Debugw("new head", "number", head.Number, "hash", head.Hash)
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			w.logger.Info("mapping sync worker stopped")
			return nil
		}

		synced, err := w.SyncOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("mapping sync worker stopped")
				return nil
			}
			w.logger.Errorw("mapping sync failed, retrying", "err", err)
			metrics.SyncErrors.Inc()
			haveNext = false
		} else {
			haveNext = synced
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.pollingInterval)
	}
}
