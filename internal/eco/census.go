package eco

// Census is a head count of the grid by occupant kind.
type Census struct {
	Empty      int `json:"empty"`
	Plants     int `json:"plants"`
	Herbivores int `json:"herbivores"`
	Carnivores int `json:"carnivores"`
}

func (c *Census) add(kind Kind) {
	switch kind {
	case Plant:
		c.Plants++
	case Herbivore:
		c.Herbivores++
	case Carnivore:
		c.Carnivores++
	default:
		c.Empty++
	}
}

// Total returns the number of living organisms.
func (c Census) Total() int {
	return c.Plants + c.Herbivores + c.Carnivores
}

// Activity counts what happened during one tick.
type Activity struct {
	Births int `json:"births"`
	Deaths int `json:"deaths"`
	Moves  int `json:"moves"`
	Meals  int `json:"meals"`
}

func (a *Activity) record(o Outcome) {
	switch o {
	case OutcomeReproduced:
		a.Births++
	case OutcomeDied:
		a.Deaths++
	case OutcomeMoved:
		a.Moves++
	case OutcomeAte:
		a.Meals++
	}
}

func (a *Activity) merge(b Activity) {
	a.Births += b.Births
	a.Deaths += b.Deaths
	a.Moves += b.Moves
	a.Meals += b.Meals
}
