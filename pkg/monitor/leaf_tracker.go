package monitor

import (
	"sort"
	"sync"

	"github.com/username/mapsync/pkg/core"
)

// DefaultLeafWindowSize defines how many heads we keep in memory to derive leaves
const DefaultLeafWindowSize = 128

// InMemoryLeafTracker implements core.LeafTracker.
// A head is a leaf while no other observed head names it as parent, so a reorg
// leaves both the old and the new tip in the leaf set until the old one ages out.
type InMemoryLeafTracker struct {
	heads    map[core.Hash]*core.Head
	children map[core.Hash]int
	// order holds hashes oldest first, used for pruning
	order []core.Hash
	mu    sync.RWMutex

	windowSize int
}

var _ core.LeafTracker = (*InMemoryLeafTracker)(nil)

func NewLeafTracker(windowSize int) *InMemoryLeafTracker {
	if windowSize <= 0 {
		windowSize = DefaultLeafWindowSize
	}
	return &InMemoryLeafTracker{
		heads:      make(map[core.Hash]*core.Head, windowSize),
		children:   make(map[core.Hash]int, windowSize),
		order:      make([]core.Hash, 0, windowSize),
		windowSize: windowSize,
	}
}

func (m *InMemoryLeafTracker) AddHead(head *core.Head) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.heads[head.Hash]; ok {
		return false
	}
	h := *head
	m.heads[h.Hash] = &h
	m.children[h.ParentHash]++
	m.order = append(m.order, h.Hash)

	for len(m.order) > m.windowSize {
		m.evict(m.order[0])
		m.order = m.order[1:]
	}
	return true
}

func (m *InMemoryLeafTracker) evict(hash core.Hash) {
	old, ok := m.heads[hash]
	if !ok {
		return
	}
	delete(m.heads, hash)
	if m.children[old.ParentHash] <= 1 {
		delete(m.children, old.ParentHash)
	} else {
		m.children[old.ParentHash]--
	}
}

// Leaves returns leaves ordered by ascending number, so the highest tip is last
func (m *InMemoryLeafTracker) Leaves() []core.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()

	leaves := make([]*core.Head, 0)
	for hash, head := range m.heads {
		if m.children[hash] == 0 {
			leaves = append(leaves, head)
		}
	}
	sort.Slice(leaves, func(i, j int) bool {
		if leaves[i].Number != leaves[j].Number {
			return leaves[i].Number < leaves[j].Number
		}
		return leaves[i].Hash < leaves[j].Hash
	})

	hashes := make([]core.Hash, len(leaves))
	for i, l := range leaves {
		hashes[i] = l.Hash
	}
	return hashes
}

func (m *InMemoryLeafTracker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.heads)
}
