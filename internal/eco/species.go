package eco

const (
	// GridSize is the side length of the simulation grid.
	GridSize = 15

	// MaxEnergy caps the energy of herbivores and carnivores.
	MaxEnergy = 200

	// ReproductionThreshold is the energy an animal must exceed to reproduce.
	ReproductionThreshold = 20
)

// SpeciesRules is one row of the species constant table.
type SpeciesRules struct {
	MaxAge               int
	ReproduceProbability float64
	MoveProbability      float64
	EatProbability       float64
	MealEnergy           int
	MoveCost             int
	ReproductionCost     int
	InitialEnergy        int
}

var speciesTable = [...]SpeciesRules{
	Plant: {
		MaxAge:               10,
		ReproduceProbability: 0.2,
	},
	Herbivore: {
		MaxAge:               50,
		ReproduceProbability: 0.075,
		MoveProbability:      0.7,
		EatProbability:       0.9,
		MealEnergy:           30,
		MoveCost:             5,
		ReproductionCost:     10,
		InitialEnergy:        50,
	},
	Carnivore: {
		MaxAge:               80,
		ReproduceProbability: 0.025,
		MoveProbability:      0.5,
		EatProbability:       1.0,
		MealEnergy:           20,
		MoveCost:             5,
		ReproductionCost:     10,
		InitialEnergy:        100,
	},
}

// RulesFor returns the constant rules of a species. Empty has the zero row.
func RulesFor(kind Kind) SpeciesRules {
	if int(kind) >= len(speciesTable) {
		return SpeciesRules{}
	}
	return speciesTable[kind]
}
