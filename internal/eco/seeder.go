package eco

import "fmt"

// Population is the number of organisms of each species to place at start.
type Population struct {
	Plants     int `json:"plants"`
	Herbivores int `json:"herbivores"`
	Carnivores int `json:"carnivores"`
}

// Total returns the number of organisms requested. Only meaningful for a
// population that passed Validate; larger counts can overflow.
func (p Population) Total() int {
	return p.Plants + p.Herbivores + p.Carnivores
}

// Validate checks that every count is non-negative and that the whole
// population fits in capacity cells. A count above capacity is rejected on
// its own, so the total is only summed once no addend can overflow.
func (p Population) Validate(capacity int) error {
	err := &ValidationError{}

	counts := []struct {
		name  string
		count int
	}{
		{"plants", p.Plants},
		{"herbivores", p.Herbivores},
		{"carnivores", p.Carnivores},
	}
	oversized := false
	for _, c := range counts {
		switch {
		case c.count < 0:
			err.Add(fmt.Sprintf("%s must not be negative, got %d", c.name, c.count))
		case c.count > capacity:
			oversized = true
			err.Add(fmt.Sprintf("too many entities: %d %s requested, grid holds %d", c.count, c.name, capacity))
		}
	}

	if oversized {
		err.Err = ErrTooManyEntities
	} else if total := p.Total(); total > capacity {
		err.Err = ErrTooManyEntities
		err.Add(fmt.Sprintf("too many entities: %d requested, grid holds %d", total, capacity))
	}

	if err.HasIssues() {
		return err
	}
	return nil
}

// Seed places count newborn organisms of kind on random empty cells. It
// samples uniformly random positions and retries on occupied ones.
func Seed(g *Grid, rng RNG, kind Kind, count int) error {
	if kind == Empty {
		return fmt.Errorf("cannot seed empty cells")
	}
	if free := g.Count(Empty); count > free {
		return &ValidationError{
			Issues: []string{fmt.Sprintf("cannot place %d %s: only %d empty cells", count, kind.Name(), free)},
			Err:    ErrTooManyEntities,
		}
	}

	n := g.Size()
	for placed := 0; placed < count; {
		pos := Position{Row: rng.IntN(n), Col: rng.IntN(n)}
		if !g.Get(pos).IsEmpty() {
			continue
		}
		g.Set(pos, Newborn(kind))
		placed++
	}
	return nil
}

// Populate clears g and seeds plants, herbivores and carnivores, in that
// order. The population is validated before the grid is touched.
func Populate(g *Grid, rng RNG, pop Population) error {
	if err := pop.Validate(g.Capacity()); err != nil {
		return err
	}
	g.Clear()
	for _, s := range []struct {
		kind  Kind
		count int
	}{
		{Plant, pop.Plants},
		{Herbivore, pop.Herbivores},
		{Carnivore, pop.Carnivores},
	} {
		if err := Seed(g, rng, s.kind, s.count); err != nil {
			return fmt.Errorf("seeding %s: %w", s.kind.Name(), err)
		}
	}
	return nil
}
