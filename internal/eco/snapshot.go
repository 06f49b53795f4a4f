package eco

import (
	"encoding/json"
	"fmt"
)

// Snapshot is an immutable copy of the grid: Snapshot[row][col].
// It encodes to the N-row by N-column JSON layout served to clients.
type Snapshot [][]Cell

// Census counts the occupants of the snapshot.
func (s Snapshot) Census() Census {
	var c Census
	for _, row := range s {
		for _, cell := range row {
			c.add(cell.Kind)
		}
	}
	return c
}

// ValidateSnapshot checks the shape of a snapshot and the cell invariants:
//   - the snapshot is size x size
//   - empty cells carry no age or energy
//   - ages are never negative
//   - animal energy stays within [0, MaxEnergy]
func ValidateSnapshot(s Snapshot, size int) error {
	if len(s) != size {
		return fmt.Errorf("snapshot has %d rows, want %d", len(s), size)
	}
	for row, cells := range s {
		if len(cells) != size {
			return fmt.Errorf("snapshot row %d has %d cells, want %d", row, len(cells), size)
		}
		for col, c := range cells {
			pos := Position{Row: row, Col: col}
			switch {
			case c.Kind == Empty && (c.Age != 0 || c.Energy != 0):
				return fmt.Errorf("empty cell %s has age=%d energy=%d", pos, c.Age, c.Energy)
			case c.Age < 0:
				return fmt.Errorf("cell %s has negative age %d", pos, c.Age)
			case c.Kind.IsAnimal() && (c.Energy < 0 || c.Energy > MaxEnergy):
				return fmt.Errorf("%s at %s has energy %d outside [0, %d]", c.Kind.Name(), pos, c.Energy, MaxEnergy)
			}
		}
	}
	return nil
}

// EncodeSnapshotJSON encodes a snapshot to its JSON export form.
func EncodeSnapshotJSON(s Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshotJSON decodes a snapshot from its JSON export form.
func DecodeSnapshotJSON(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return s, nil
}
