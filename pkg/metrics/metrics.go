package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BlocksSynced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapsync_blocks_synced_total",
		Help: "Primary blocks written to the mapping store, by kind (commitment, none, genesis)",
	}, []string{"kind"})

	SyncingTips = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mapsync_syncing_tips",
		Help: "Number of tips pending in the persisted tip set",
	})

	LastSyncedNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mapsync_last_synced_number",
		Help: "Number of the most recently indexed primary block",
	})

	ChainBestNumber = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mapsync_chain_best_number",
		Help: "The best block number reported by the chain backend",
	})

	Deferred = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapsync_deferred_total",
		Help: "Headers deferred because they are ahead of the best known block (parachain strategy)",
	})

	SyncErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mapsync_sync_errors_total",
		Help: "Sync rounds that ended with an error",
	})
)
