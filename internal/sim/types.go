package sim

import (
	"fmt"
	"time"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/store"
)

// Run is one simulation of a parameter snapshot.
type Run struct {
	ID         string
	State      dynamo.RunState
	Params     params.Snapshot
	Integrator string
	Dt         float64
	StartedAt  time.Time
	EndedAt    time.Time
	Err        error
}

// Status is a point-in-time view of the simulator.
type Status struct {
	RunID      string          `json:"run_id,omitempty"`
	State      dynamo.RunState `json:"state"`
	Progress   float64         `json:"progress"`
	Diagnostic string          `json:"diagnostic,omitempty"`
	TimeS      float64         `json:"time_s"`
	PositionM  float64         `json:"position_m"`
	SpeedMps   float64         `json:"speed_mps"`
	Samples    int             `json:"samples"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	EndedAt    *time.Time      `json:"ended_at,omitempty"`
}

// ConflictError rejects an operation the current run state does not allow.
type ConflictError struct {
	Op    string
	State dynamo.RunState
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.State)
}

func (e *ConflictError) Unwrap() error {
	return dynamo.ErrConflict
}

// Archive persists finished runs.
type Archive interface {
	Save(run Run, result store.Result) error
}
