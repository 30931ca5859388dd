package dynamo

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"zero", State{}, true},
		{"moving", State{Time: 1, Position: 10, Speed: 5, Energy: 100}, true},
		{"NaN speed", State{Speed: math.NaN()}, false},
		{"+Inf position", State{Position: math.Inf(1)}, false},
		{"-Inf energy", State{Energy: math.Inf(-1)}, false},
		{"NaN regen", State{RegenEnergy: math.NaN()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestMode_String(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeTraction, "traction"},
		{ModeCoast, "coast"},
		{ModeBrake, "brake"},
		{ModeDwell, "dwell"},
		{Mode(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestNewSample(t *testing.T) {
	x := State{Time: 2, Position: 15, Speed: 7, Energy: 900, RegenEnergy: 3}
	f := Forces{Tractive: 5000, Accel: 0.5, Power: 40000, Current: 53.3}

	s := NewSample(x, f, ModeTraction, 1)
	if s.TimeS != 2 || s.PositionM != 15 || s.SpeedMps != 7 {
		t.Errorf("kinematics not copied: %+v", s)
	}
	if s.AccelMps2 != 0.5 || s.TractiveForceN != 5000 || s.PowerW != 40000 {
		t.Errorf("forces not copied: %+v", s)
	}
	if s.EnergyJ != 900 || s.RegenEnergyJ != 3 || s.Segment != 1 {
		t.Errorf("energy/segment not copied: %+v", s)
	}
}

func TestDivergenceError(t *testing.T) {
	err := &DivergenceError{Step: 150, Time: 1.5, Reason: "speed is NaN"}
	want := "step 150 (t=1.5000): speed is NaN"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	wrapped := fmt.Errorf("run abc: %w", err)
	if !errors.Is(wrapped, ErrDivergence) {
		t.Error("expected wrapped error to match ErrDivergence")
	}
	var de *DivergenceError
	if !errors.As(wrapped, &de) || de.Step != 150 {
		t.Error("expected errors.As to recover DivergenceError")
	}
}

func TestConstraintError(t *testing.T) {
	err := &ConstraintError{Time: 3, Position: 12.5, Reason: "cannot stop at 20.00m", Required: 2.5, Limit: 1.2}
	if !errors.Is(err, ErrConstraint) {
		t.Error("expected ErrConstraint")
	}
	want := "t=3.00s at 12.50m: cannot stop at 20.00m (required 2.500 m/s², limit 1.200 m/s²)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	stall := &ConstraintError{Time: 1, Position: 0, Reason: "stalled"}
	if stall.Error() != "t=1.00s at 0.00m: stalled" {
		t.Errorf("unexpected message %q", stall.Error())
	}
}

func TestMode_TextRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeTraction, ModeCoast, ModeBrake, ModeDwell} {
		text, _ := m.MarshalText()
		var got Mode
		if err := got.UnmarshalText(text); err != nil || got != m {
			t.Errorf("round trip of %v gave %v (%v)", m, got, err)
		}
	}
	var m Mode
	if err := m.UnmarshalText([]byte("reverse")); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestRunState(t *testing.T) {
	tests := []struct {
		state    RunState
		name     string
		terminal bool
	}{
		{Idle, "idle", false},
		{Running, "running", false},
		{Completed, "completed", true},
		{Failed, "failed", true},
		{Cancelled, "cancelled", true},
	}
	for _, tt := range tests {
		if tt.state.String() != tt.name {
			t.Errorf("%d.String() = %q, want %q", tt.state, tt.state.String(), tt.name)
		}
		if tt.state.Terminal() != tt.terminal {
			t.Errorf("%s.Terminal() = %v", tt.name, tt.state.Terminal())
		}
		var back RunState
		if err := back.UnmarshalText([]byte(tt.name)); err != nil || back != tt.state {
			t.Errorf("UnmarshalText(%q) = %v, %v", tt.name, back, err)
		}
	}
}
