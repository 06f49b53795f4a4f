package eco

// Grid stores a square grid of cells in row-major order. Next to every cell
// it records the tick in which an action last wrote an organism there, so a
// sweep can tell organisms that were alive at the start of the tick from
// ones that arrived during it.
//
// Grid is not safe for concurrent use on its own; the Environment serializes
// access or hands out neighborhood locks.
type Grid struct {
	size   int
	cells  []Cell
	stamps []int64
}

// NewGrid allocates an all-empty grid. A non-positive size selects GridSize.
func NewGrid(size int) *Grid {
	if size <= 0 {
		size = GridSize
	}
	return &Grid{
		size:   size,
		cells:  make([]Cell, size*size),
		stamps: make([]int64, size*size),
	}
}

// Size returns the side length of the grid.
func (g *Grid) Size() int { return g.size }

// Capacity returns the number of cells.
func (g *Grid) Capacity() int { return g.size * g.size }

// InBounds reports whether p addresses a cell of the grid.
func (g *Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.size && p.Col >= 0 && p.Col < g.size
}

func (g *Grid) index(p Position) int {
	if !g.InBounds(p) {
		panic(&OutOfBoundsError{Pos: p, Size: g.size})
	}
	return p.Row*g.size + p.Col
}

// Get returns the cell at p.
func (g *Grid) Get(p Position) Cell {
	return g.cells[g.index(p)]
}

// Set writes c at p. Empty cells are always stored with zero age and energy.
func (g *Grid) Set(p Position, c Cell) {
	if c.Kind == Empty {
		c = Cell{}
	}
	g.cells[g.index(p)] = c
}

// Clear empties every cell.
func (g *Grid) Clear() {
	clear(g.cells)
	clear(g.stamps)
}

// place writes c onto p if p is still empty and marks it as written in tick.
func (g *Grid) place(p Position, c Cell, tick int64) bool {
	i := g.index(p)
	if g.cells[i].Kind != Empty {
		return false
	}
	g.cells[i] = c
	g.stamps[i] = tick
	return true
}

// relocate moves c from src to dst when dst still satisfies want, clearing
// src and marking dst as written in tick.
func (g *Grid) relocate(src, dst Position, c Cell, want Predicate, tick int64) bool {
	d := g.index(dst)
	if !want(g.cells[d]) {
		return false
	}
	g.cells[g.index(src)] = Cell{}
	g.cells[d] = c
	g.stamps[d] = tick
	return true
}

// liveAtStart reports whether p holds an organism that has been there since
// before tick began.
func (g *Grid) liveAtStart(p Position, tick int64) bool {
	i := g.index(p)
	return g.cells[i].Kind != Empty && g.stamps[i] != tick
}

// Count returns the number of cells holding kind.
func (g *Grid) Count(kind Kind) int {
	n := 0
	for _, c := range g.cells {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Snapshot returns a deep copy of the grid, row 0 first.
func (g *Grid) Snapshot() Snapshot {
	snap := make(Snapshot, g.size)
	for row := range snap {
		snap[row] = make([]Cell, g.size)
		copy(snap[row], g.cells[row*g.size:(row+1)*g.size])
	}
	return snap
}
