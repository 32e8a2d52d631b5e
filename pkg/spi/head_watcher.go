package spi

import (
	"context"
	"sync"
	"time"

	"github.com/username/mapsync/pkg/core"
	"go.uber.org/zap"
)

// HeadWatcher turns new primary chain heads into wakeups for the sync worker.
// Delivery coalesces: when the consumer is busy only the latest head is kept.
type HeadWatcher struct {
	source HeadSource
	heads  chan *core.Head

	pollInterval time.Duration
	logger       *zap.SugaredLogger

	// control channels
	stopCh chan struct{}

	// state
	last   core.Hash
	active bool
	mu     sync.Mutex
	wg     sync.WaitGroup
}

// NewHeadWatcher creates a new HeadWatcher
func NewHeadWatcher(source HeadSource, pollInterval time.Duration, logger *zap.SugaredLogger) *HeadWatcher {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &HeadWatcher{
		source:       source,
		heads:        make(chan *core.Head, 1),
		pollInterval: pollInterval,
		logger:       logger.Named("head-watcher"),
		stopCh:       make(chan struct{}),
	}
}

// Heads returns the notification channel
func (w *HeadWatcher) Heads() <-chan *core.Head {
	return w.heads
}

// Start begins watching
func (w *HeadWatcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return
	}
	w.active = true

	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *HeadWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	if subSource, ok := w.source.(SubscriptionSource); ok {
		if w.subscribe(ctx, subSource) {
			return
		}
	}
	w.poll(ctx)
}

// subscribe forwards pushed heads. It reports true when the watcher should
// exit and false when the subscription died and polling should take over.
func (w *HeadWatcher) subscribe(ctx context.Context, source SubscriptionSource) bool {
	headCh := make(chan *core.Head, 1)
	sub, err := source.SubscribeNewHead(ctx, headCh)
	if err != nil {
		w.logger.Infow("subscription unavailable, polling", "err", err)
		return false
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return true
		case <-w.stopCh:
			return true
		case head, ok := <-headCh:
			if !ok {
				w.logger.Warn("head subscription closed, falling back to polling")
				return false
			}
			w.emit(head)
		case err := <-sub.Err():
			w.logger.Warnw("head subscription failed, falling back to polling", "err", err)
			return false
		}
	}
}

func (w *HeadWatcher) poll(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		head, err := w.source.LatestHead(ctx)
		if err != nil {
			w.logger.Debugw("failed to poll latest head", "err", err)
		} else if head.Hash != w.last {
			w.last = head.Hash
			w.emit(head)
		}

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
		}
	}
}

func (w *HeadWatcher) emit(head *core.Head) {
	for {
		select {
		case w.heads <- head:
			return
		default:
		}
		// drop the stale pending head so the newest one wins
		select {
		case <-w.heads:
		default:
		}
	}
}

// Stop stops the watcher
func (w *HeadWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.active {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.active = false
}
