package dynamo

import (
	"fmt"
	"math"
)

// State is the kinematic state of the train at one instant.
type State struct {
	Time        float64
	Position    float64
	Speed       float64
	Energy      float64
	RegenEnergy float64
}

func (s State) IsValid() bool {
	for _, v := range [...]float64{s.Time, s.Position, s.Speed, s.Energy, s.RegenEnergy} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Mode is what the driver asks the train to do over one step.
type Mode int

const (
	ModeTraction Mode = iota
	ModeCoast
	ModeBrake
	ModeDwell
)

func (m Mode) String() string {
	switch m {
	case ModeTraction:
		return "traction"
	case ModeCoast:
		return "coast"
	case ModeBrake:
		return "brake"
	case ModeDwell:
		return "dwell"
	default:
		return "unknown"
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	for _, c := range [...]Mode{ModeTraction, ModeCoast, ModeBrake, ModeDwell} {
		if c.String() == string(text) {
			*m = c
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", text)
}

// RunState is the lifecycle state of a simulation run.
type RunState int

const (
	Idle RunState = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s RunState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RunState) UnmarshalText(text []byte) error {
	for _, c := range [...]RunState{Idle, Running, Completed, Failed, Cancelled} {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", text)
}

// Terminal reports whether no further samples will be produced.
func (s RunState) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Command is the control input for a single integration step.
//
// Throttle is the fraction of available tractive effort in [0, 1].
// BrakeDecel is the requested net deceleration in m/s² (positive).
// SpeedCap bounds the speed at the end of the step.
type Command struct {
	Mode       Mode
	Throttle   float64
	BrakeDecel float64
	SpeedCap   float64
}

// Forces is the breakdown produced by the dynamics model for one state.
type Forces struct {
	Tractive   float64
	Available  float64
	Brake      float64
	Rolling    float64
	Grade      float64
	Curve      float64
	Resistance float64
	Accel      float64
	Power      float64
	Current    float64
}

// Sample is one row of a simulation result.
type Sample struct {
	TimeS          float64 `json:"time_s"`
	PositionM      float64 `json:"position_m"`
	SpeedMps       float64 `json:"speed_mps"`
	AccelMps2      float64 `json:"accel_mps2"`
	TractiveForceN float64 `json:"tractive_force_n"`
	PowerW         float64 `json:"power_w"`
	EnergyJ        float64 `json:"energy_j"`
	RegenEnergyJ   float64 `json:"regen_energy_j"`
	CurrentA       float64 `json:"current_a"`
	Mode           Mode    `json:"mode"`
	Segment        int     `json:"segment"`
}

// NewSample combines the post-step state with the forces that produced it.
func NewSample(x State, f Forces, mode Mode, segment int) Sample {
	return Sample{
		TimeS:          x.Time,
		PositionM:      x.Position,
		SpeedMps:       x.Speed,
		AccelMps2:      f.Accel,
		TractiveForceN: f.Tractive,
		PowerW:         f.Power,
		EnergyJ:        x.Energy,
		RegenEnergyJ:   x.RegenEnergy,
		CurrentA:       f.Current,
		Mode:           mode,
		Segment:        segment,
	}
}

// Metric accumulates a scalar summary over the samples of a run.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}
