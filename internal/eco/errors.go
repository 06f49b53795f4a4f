package eco

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotInitialized is returned when a tick or snapshot is requested
	// before the simulation was started.
	ErrNotInitialized = errors.New("simulation not initialized")

	// ErrTooManyEntities is wrapped by the ValidationError returned when the
	// requested population does not fit the grid.
	ErrTooManyEntities = errors.New("too many entities")
)

// ValidationError collects every issue found in a population request.
type ValidationError struct {
	Issues []string
	// Err is the sentinel describing the failure class, if any.
	Err error
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid population: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "population validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

// OutOfBoundsError is the panic value for a position outside the grid.
// Only malformed position arithmetic produces it.
type OutOfBoundsError struct {
	Pos  Position
	Size int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("position %s out of bounds for %dx%d grid", e.Pos, e.Size, e.Size)
}
