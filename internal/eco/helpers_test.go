package eco

import "testing"

// scriptedRNG replays fixed values so rule tests can force every roll.
type scriptedRNG struct {
	t      *testing.T
	floats []float64
	ints   []int
}

func newScriptedRNG(t *testing.T, floats []float64, ints []int) *scriptedRNG {
	return &scriptedRNG{t: t, floats: floats, ints: ints}
}

func (s *scriptedRNG) Float64() float64 {
	s.t.Helper()
	if len(s.floats) == 0 {
		s.t.Fatal("scripted RNG ran out of floats")
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *scriptedRNG) IntN(n int) int {
	s.t.Helper()
	if len(s.ints) == 0 {
		s.t.Fatal("scripted RNG ran out of ints")
	}
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v < 0 || v >= n {
		s.t.Fatalf("scripted int %d out of range [0, %d)", v, n)
	}
	return v
}

func pos(row, col int) Position {
	return Position{Row: row, Col: col}
}

// assertInvariants checks the per-cell invariants and the capacity bound.
func assertInvariants(t *testing.T, snap Snapshot, size int) {
	t.Helper()
	if err := ValidateSnapshot(snap, size); err != nil {
		t.Fatalf("Snapshot invariant violated: %v", err)
	}
	if total := snap.Census().Total(); total > size*size {
		t.Fatalf("Expected at most %d organisms, got %d", size*size, total)
	}
}
