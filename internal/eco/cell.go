package eco

import (
	"encoding/json"
	"fmt"
)

// Kind identifies what occupies a grid cell.
type Kind uint8

const (
	Empty Kind = iota
	Plant
	Herbivore
	Carnivore
)

// String returns the single-character code used in the grid export.
func (k Kind) String() string {
	switch k {
	case Plant:
		return "P"
	case Herbivore:
		return "H"
	case Carnivore:
		return "C"
	default:
		return " "
	}
}

// Name returns the lowercase species name used in logs and counters.
func (k Kind) Name() string {
	switch k {
	case Plant:
		return "plant"
	case Herbivore:
		return "herbivore"
	case Carnivore:
		return "carnivore"
	default:
		return "empty"
	}
}

// IsAnimal reports whether the kind carries energy.
func (k Kind) IsAnimal() bool {
	return k == Herbivore || k == Carnivore
}

// ParseKind parses the single-character export code of a kind.
func ParseKind(code string) (Kind, error) {
	switch code {
	case " ", "":
		return Empty, nil
	case "P":
		return Plant, nil
	case "H":
		return Herbivore, nil
	case "C":
		return Carnivore, nil
	default:
		return Empty, fmt.Errorf("unknown cell type %q", code)
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("cell type must be a string: %w", err)
	}
	parsed, err := ParseKind(code)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Cell is the state of one grid position. Energy is only meaningful for
// herbivores and carnivores.
type Cell struct {
	Kind   Kind `json:"type"`
	Energy int  `json:"energy"`
	Age    int  `json:"age"`
}

// IsEmpty reports whether nothing lives in the cell.
func (c Cell) IsEmpty() bool {
	return c.Kind == Empty
}

// Newborn returns a freshly created organism of the given kind: age 0 and
// the species' starting energy.
func Newborn(kind Kind) Cell {
	if kind == Empty {
		return Cell{}
	}
	return Cell{Kind: kind, Energy: RulesFor(kind).InitialEnergy}
}

// feed returns c after a meal worth gain energy, capped at MaxEnergy.
func feed(c Cell, gain int) Cell {
	c.Energy = min(c.Energy+gain, MaxEnergy)
	return c
}

// spend returns c after paying cost energy, floored at zero.
func spend(c Cell, cost int) Cell {
	c.Energy = max(c.Energy-cost, 0)
	return c
}

// Position addresses a cell by 0-based row and column.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
}

func (p Position) add(d Position) Position {
	return Position{Row: p.Row + d.Row, Col: p.Col + d.Col}
}
