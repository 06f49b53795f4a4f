package eco

import (
	"slices"
	"sync"
)

// lockTable holds one mutex per grid cell. A cell update locks the cell and
// its orthogonal neighbors (the plus footprint) in ascending index order, so
// two workers with overlapping footprints can never wait on each other in a
// cycle.
type lockTable struct {
	size int
	mu   []sync.Mutex
}

func newLockTable(size int) *lockTable {
	return &lockTable{size: size, mu: make([]sync.Mutex, size*size)}
}

// footprint returns the sorted linear indices of pos and its in-bounds
// orthogonal neighbors.
func (lt *lockTable) footprint(pos Position) []int {
	idx := make([]int, 0, 5)
	idx = append(idx, pos.Row*lt.size+pos.Col)
	for _, d := range directions {
		n := pos.add(d)
		if n.Row < 0 || n.Row >= lt.size || n.Col < 0 || n.Col >= lt.size {
			continue
		}
		idx = append(idx, n.Row*lt.size+n.Col)
	}
	slices.Sort(idx)
	return idx
}

// lock acquires the footprint of pos and returns the matching release.
func (lt *lockTable) lock(pos Position) (unlock func()) {
	idx := lt.footprint(pos)
	for _, i := range idx {
		lt.mu[i].Lock()
	}
	return func() {
		for i := len(idx) - 1; i >= 0; i-- {
			lt.mu[idx[i]].Unlock()
		}
	}
}
