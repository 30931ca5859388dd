package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors shared by the engine packages.
var (
	// ErrValidation indicates malformed or out-of-range parameters.
	ErrValidation = errors.New("dynamo: invalid parameters")

	// ErrConflict indicates an operation not allowed in the current run state.
	ErrConflict = errors.New("dynamo: conflicting simulation state")

	// ErrDivergence indicates the integration produced non-physical values.
	ErrDivergence = errors.New("dynamo: simulation diverged")

	// ErrConstraint indicates a physical constraint the train cannot meet.
	ErrConstraint = errors.New("dynamo: physical constraint violated")

	// ErrNotAvailable indicates no run has produced results yet.
	ErrNotAvailable = errors.New("dynamo: results not available")

	// ErrNotConfigured indicates a parameter group was never set.
	ErrNotConfigured = errors.New("dynamo: parameters not configured")

	// ErrNoResults indicates there is nothing to export.
	ErrNoResults = errors.New("dynamo: no results to export")
)

// DivergenceError carries the step context at which integration blew up.
type DivergenceError struct {
	Step   int
	Time   float64
	State  State
	Reason string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %s", e.Step, e.Time, e.Reason)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDivergence
}

// ConstraintError reports a braking or traction demand the train cannot meet.
type ConstraintError struct {
	Time     float64
	Position float64
	Reason   string
	Required float64
	Limit    float64
}

func (e *ConstraintError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("t=%.2fs at %.2fm: %s (required %.3f m/s², limit %.3f m/s²)",
			e.Time, e.Position, e.Reason, e.Required, e.Limit)
	}
	return fmt.Sprintf("t=%.2fs at %.2fm: %s", e.Time, e.Position, e.Reason)
}

func (e *ConstraintError) Unwrap() error {
	return ErrConstraint
}
