package eco

// Predicate selects the neighbor cells an action may target.
type Predicate func(Cell) bool

func IsEmpty(c Cell) bool     { return c.Kind == Empty }
func IsPlant(c Cell) bool     { return c.Kind == Plant }
func IsHerbivore(c Cell) bool { return c.Kind == Herbivore }

// up, down, left, right
var directions = [4]Position{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Neighbors returns the in-bounds orthogonal neighbors of pos.
func Neighbors(g *Grid, pos Position) []Position {
	out := make([]Position, 0, len(directions))
	for _, d := range directions {
		if n := pos.add(d); g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Candidates returns the orthogonal neighbors of pos whose cell satisfies pred.
func Candidates(g *Grid, pos Position, pred Predicate) []Position {
	out := make([]Position, 0, len(directions))
	for _, n := range Neighbors(g, pos) {
		if pred(g.Get(n)) {
			out = append(out, n)
		}
	}
	return out
}

// ChooseRandom picks one candidate uniformly at random. With no candidates
// it returns origin, which callers treat as "no valid target".
func ChooseRandom(rng RNG, origin Position, candidates []Position) Position {
	if len(candidates) == 0 {
		return origin
	}
	return candidates[rng.IntN(len(candidates))]
}

// pickNeighbor combines Candidates and ChooseRandom and reports whether a
// target was found.
func pickNeighbor(g *Grid, rng RNG, pos Position, pred Predicate) (Position, bool) {
	dst := ChooseRandom(rng, pos, Candidates(g, pos, pred))
	return dst, dst != pos
}
