package params

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/trainsim/internal/dynamo"
)

// FieldError names a single rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (f FieldError) String() string {
	return f.Field + ": " + f.Message
}

// ValidationError lists every violated field of a parameter group.
type ValidationError struct {
	Group  string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("invalid %s parameters: %s", e.Group, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return dynamo.ErrValidation
}

type checker struct {
	group  string
	fields []FieldError
}

func (c *checker) fail(field, format string, args ...any) {
	c.fields = append(c.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (c *checker) positive(field string, v float64) {
	if !finite(v) || v <= 0 {
		c.fail(field, "must be > 0, got %g", v)
	}
}

func (c *checker) nonNegative(field string, v float64) {
	if !finite(v) || v < 0 {
		c.fail(field, "must be >= 0, got %g", v)
	}
}

func (c *checker) merge(other error) {
	if ve, ok := other.(*ValidationError); ok {
		c.fields = append(c.fields, ve.Fields...)
	}
}

func (c *checker) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Group: c.group, Fields: c.fields}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (p TrainParameters) Validate() error {
	c := &checker{group: "train"}
	c.positive("mass_kg", p.MassKg)
	c.positive("length_m", p.LengthM)
	c.positive("max_speed_mps", p.MaxSpeedMps)
	c.positive("braking_decel_mps2", p.BrakingDecelMps2)

	if len(p.TractionCurve) == 0 {
		c.fail("traction_curve", "must contain at least one point")
	}
	for i, pt := range p.TractionCurve {
		field := fmt.Sprintf("traction_curve[%d]", i)
		c.nonNegative(field+".speed_mps", pt.SpeedMps)
		c.nonNegative(field+".force_n", pt.ForceN)
		if i > 0 && pt.SpeedMps <= p.TractionCurve[i-1].SpeedMps {
			c.fail(field+".speed_mps", "must be strictly greater than previous point (%g)", p.TractionCurve[i-1].SpeedMps)
		}
	}
	return c.err()
}

func (p ElectricalParameters) Validate() error {
	c := &checker{group: "electrical"}
	c.positive("supply_voltage_v", p.SupplyVoltageV)
	c.positive("rated_power_w", p.RatedPowerW)
	if !finite(p.TractionEfficiency) || p.TractionEfficiency <= 0 || p.TractionEfficiency > 1 {
		c.fail("traction_efficiency", "must be in (0, 1], got %g", p.TractionEfficiency)
	}
	if !finite(p.RegenEfficiency) || p.RegenEfficiency < 0 || p.RegenEfficiency > 1 {
		c.fail("regen_efficiency", "must be in [0, 1], got %g", p.RegenEfficiency)
	}
	return c.err()
}

func (p RunningParameters) Validate() error {
	c := &checker{group: "running"}
	c.nonNegative("initial_speed_mps", p.InitialSpeedMps)
	c.nonNegative("dwell_time_s", p.DwellTimeS)
	for i, s := range p.StopPositionsM {
		field := fmt.Sprintf("stop_positions_m[%d]", i)
		if !finite(s) || s <= 0 {
			c.fail(field, "must be > 0, got %g", s)
		}
		if i > 0 && s <= p.StopPositionsM[i-1] {
			c.fail(field, "must be strictly greater than previous stop (%g)", p.StopPositionsM[i-1])
		}
	}
	return c.err()
}

func (p TrackParameters) Validate() error {
	c := &checker{group: "track"}
	if len(p.Segments) == 0 {
		c.fail("segments", "must contain at least one segment")
	}
	for i, s := range p.Segments {
		field := fmt.Sprintf("segments[%d]", i)
		c.positive(field+".length_m", s.LengthM)
		c.positive(field+".speed_limit_mps", s.SpeedLimitMps)
		if !finite(s.Grade) {
			c.fail(field+".grade", "must be finite")
		}
		if !finite(s.CurveRadiusM) || s.CurveRadiusM < 0 {
			c.fail(field+".curve_radius_m", "must be > 0, or 0 for straight track, got %g", s.CurveRadiusM)
		}
	}
	return c.err()
}

// crossCheck validates relations between groups. Any of the pointers may
// be nil when that group is not configured yet.
func crossCheck(group string, train *TrainParameters, running *RunningParameters, track *TrackParameters) error {
	c := &checker{group: group}
	if train != nil && running != nil && running.InitialSpeedMps > train.MaxSpeedMps {
		c.fail("initial_speed_mps", "must not exceed train max speed %g, got %g", train.MaxSpeedMps, running.InitialSpeedMps)
	}
	if running != nil && track != nil {
		length := track.Length()
		for i, s := range running.StopPositionsM {
			if s > length {
				c.fail(fmt.Sprintf("stop_positions_m[%d]", i), "must be within track length %g, got %g", length, s)
			}
		}
	}
	return c.err()
}

// Validate checks every group and every cross-group relation, reporting
// all violations together.
func (s Snapshot) Validate() error {
	c := &checker{group: "simulation"}
	c.merge(s.Train.Validate())
	c.merge(s.Electrical.Validate())
	c.merge(s.Running.Validate())
	c.merge(s.Track.Validate())
	c.merge(crossCheck("simulation", &s.Train, &s.Running, &s.Track))
	if len(s.Track.Segments) > 0 {
		if first := s.Track.Segments[0].SpeedLimitMps; s.Running.InitialSpeedMps > first {
			c.fail("initial_speed_mps", "must not exceed first segment speed limit %g, got %g", first, s.Running.InitialSpeedMps)
		}
	}
	return c.err()
}
