package eco

// Outcome is the action a cell took during its turn.
type Outcome uint8

const (
	OutcomeNone Outcome = iota
	OutcomeDied
	OutcomeReproduced
	OutcomeMoved
	OutcomeAte
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDied:
		return "died"
	case OutcomeReproduced:
		return "reproduced"
	case OutcomeMoved:
		return "moved"
	case OutcomeAte:
		return "ate"
	default:
		return "none"
	}
}

// dies reports whether c reaches the end of its life at the start of a turn.
func dies(c Cell) bool {
	if c.Age >= RulesFor(c.Kind).MaxAge {
		return true
	}
	return c.Kind.IsAnimal() && c.Energy <= 0
}

// applyRules runs one turn for the organism at pos: the aging/death check
// first, then at most one species action. Every cell it writes an organism
// to is stamped with tick. The caller must own pos and its neighbors.
func applyRules(g *Grid, rng RNG, pos Position, tick int64) Outcome {
	c := g.Get(pos)
	if c.Kind == Empty {
		return OutcomeNone
	}
	if dies(c) {
		g.Set(pos, Cell{})
		return OutcomeDied
	}
	c.Age++
	g.Set(pos, c)

	switch c.Kind {
	case Plant:
		return plantTurn(g, rng, pos, tick)
	case Herbivore:
		return herbivoreTurn(g, rng, pos, c, tick)
	case Carnivore:
		return carnivoreTurn(g, rng, pos, c, tick)
	}
	return OutcomeNone
}

func plantTurn(g *Grid, rng RNG, pos Position, tick int64) Outcome {
	if !Roll(rng, RulesFor(Plant).ReproduceProbability) {
		return OutcomeNone
	}
	dst, ok := pickNeighbor(g, rng, pos, IsEmpty)
	if !ok || !g.place(dst, Newborn(Plant), tick) {
		return OutcomeNone
	}
	return OutcomeReproduced
}

// herbivoreTurn tries eating, then moving, then reproducing; the first one
// that succeeds ends the turn.
func herbivoreTurn(g *Grid, rng RNG, pos Position, c Cell, tick int64) Outcome {
	rules := RulesFor(Herbivore)

	if plants := Candidates(g, pos, IsPlant); len(plants) > 0 && Roll(rng, rules.EatProbability) {
		dst := ChooseRandom(rng, pos, plants)
		if g.relocate(pos, dst, feed(c, rules.MealEnergy), IsPlant, tick) {
			return OutcomeAte
		}
	}

	if Roll(rng, rules.MoveProbability) {
		if dst, ok := pickNeighbor(g, rng, pos, IsEmpty); ok && g.relocate(pos, dst, spend(c, rules.MoveCost), IsEmpty, tick) {
			return OutcomeMoved
		}
	}

	if c.Energy > ReproductionThreshold && Roll(rng, rules.ReproduceProbability) {
		if reproduce(g, rng, pos, c, rules, tick) {
			return OutcomeReproduced
		}
	}
	return OutcomeNone
}

// carnivoreTurn tries reproducing, then moving, then hunting. A carnivore
// that reproduced or moved does not hunt in the same tick.
func carnivoreTurn(g *Grid, rng RNG, pos Position, c Cell, tick int64) Outcome {
	rules := RulesFor(Carnivore)

	if c.Energy > ReproductionThreshold && Roll(rng, rules.ReproduceProbability) {
		if reproduce(g, rng, pos, c, rules, tick) {
			return OutcomeReproduced
		}
	}

	if Roll(rng, rules.MoveProbability) {
		if dst, ok := pickNeighbor(g, rng, pos, IsEmpty); ok && g.relocate(pos, dst, spend(c, rules.MoveCost), IsEmpty, tick) {
			return OutcomeMoved
		}
	}

	if prey := Candidates(g, pos, IsHerbivore); len(prey) > 0 && Roll(rng, rules.EatProbability) {
		dst := ChooseRandom(rng, pos, prey)
		if g.relocate(pos, dst, feed(c, rules.MealEnergy), IsHerbivore, tick) {
			return OutcomeAte
		}
	}
	return OutcomeNone
}

// reproduce places an offspring of parent on a random empty neighbor and
// charges the parent the reproduction cost. Nothing changes when no
// neighbor is free.
func reproduce(g *Grid, rng RNG, pos Position, parent Cell, rules SpeciesRules, tick int64) bool {
	dst, ok := pickNeighbor(g, rng, pos, IsEmpty)
	if !ok || !g.place(dst, Newborn(parent.Kind), tick) {
		return false
	}
	g.Set(pos, spend(parent, rules.ReproductionCost))
	return true
}
