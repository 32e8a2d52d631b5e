package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/username/mapsync/pkg/core"
)

func TestLeafTracker_LinearChain(t *testing.T) {
	mon := NewLeafTracker(10)

	assert.True(t, mon.AddHead(&core.Head{Number: 1, Hash: "hash1", ParentHash: "hash0"}))
	assert.True(t, mon.AddHead(&core.Head{Number: 2, Hash: "hash2", ParentHash: "hash1"}))
	assert.False(t, mon.AddHead(&core.Head{Number: 2, Hash: "hash2", ParentHash: "hash1"}))

	assert.Equal(t, []core.Hash{"hash2"}, mon.Leaves())
	assert.Equal(t, 2, mon.Len())
}

func TestLeafTracker_Reorg(t *testing.T) {
	mon := NewLeafTracker(10)

	// Chain A: 1 -> 2a -> 3a
	// Chain B: 1 -> 2b
	mon.AddHead(&core.Head{Number: 1, Hash: "hash1", ParentHash: "hash0"})
	mon.AddHead(&core.Head{Number: 2, Hash: "hash2a", ParentHash: "hash1"})
	mon.AddHead(&core.Head{Number: 3, Hash: "hash3a", ParentHash: "hash2a"})
	mon.AddHead(&core.Head{Number: 2, Hash: "hash2b", ParentHash: "hash1"})

	assert.Equal(t, []core.Hash{"hash2b", "hash3a"}, mon.Leaves())

	// Chain B overtakes
	mon.AddHead(&core.Head{Number: 3, Hash: "hash3b", ParentHash: "hash2b"})
	mon.AddHead(&core.Head{Number: 4, Hash: "hash4b", ParentHash: "hash3b"})

	assert.Equal(t, []core.Hash{"hash3a", "hash4b"}, mon.Leaves())
}

func TestLeafTracker_WindowPrunesStaleForks(t *testing.T) {
	mon := NewLeafTracker(3)

	mon.AddHead(&core.Head{Number: 2, Hash: "hash2a", ParentHash: "hash1"})
	mon.AddHead(&core.Head{Number: 2, Hash: "hash2b", ParentHash: "hash1"})
	mon.AddHead(&core.Head{Number: 3, Hash: "hash3b", ParentHash: "hash2b"})
	assert.Equal(t, []core.Hash{"hash2a", "hash3b"}, mon.Leaves())

	// hash2a ages out of the window
	mon.AddHead(&core.Head{Number: 4, Hash: "hash4b", ParentHash: "hash3b"})
	assert.Equal(t, 3, mon.Len())
	assert.Equal(t, []core.Hash{"hash4b"}, mon.Leaves())

	// evicting hash2b must not turn its parent into a leaf, the parent was never observed
	mon.AddHead(&core.Head{Number: 5, Hash: "hash5b", ParentHash: "hash4b"})
	assert.Equal(t, []core.Hash{"hash5b"}, mon.Leaves())
}
