package control

import (
	"fmt"
	"math"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/physics"
)

const (
	// DefaultBrakeMargin is the fraction of the braking limit the driver
	// plans with; the rest absorbs discretization error.
	DefaultBrakeMargin = 0.9

	// brakeTolerance is the relative slack before a braking demand counts
	// as exceeding the limit.
	brakeTolerance = 1e-9

	// arrivalTolerance is the distance within which a train counts as
	// standing on the stop.
	arrivalTolerance = 1e-6

	// arrivalSlack widens the one-step arrival window so a braking
	// approach whose remaining distance converges on v*dt still arrives.
	arrivalSlack = 1e-6
)

type constraintKind int

const (
	kindStop constraintKind = iota
	kindLimit
	kindEnd
)

type constraint struct {
	kind     constraintKind
	position float64
	target   float64
}

func (c constraint) describe() string {
	switch c.kind {
	case kindStop:
		return fmt.Sprintf("cannot stop at %.2fm", c.position)
	case kindEnd:
		return fmt.Sprintf("cannot stop at end of track %.2fm", c.position)
	default:
		return fmt.Sprintf("cannot slow to %.2f m/s by speed limit at %.2fm", c.target, c.position)
	}
}

// Decision is the driver's output for one step.
type Decision struct {
	Command dynamo.Command
	Segment int

	// Arrive is set when the train reaches the next stop from here. Tau
	// is the time until it does at a constant deceleration, at most 2*dt.
	Arrive bool
	Tau    float64
	Stop   float64
	Final  bool
}

// Driver decides traction, coasting and braking for a single train along a
// fixed list of stops. The last stop is always the end of the track.
type Driver struct {
	p      params.Snapshot
	stops  []float64
	next   int
	margin float64
}

func NewDriver(p params.Snapshot) *Driver {
	length := p.Track.Length()
	stops := make([]float64, 0, len(p.Running.StopPositionsM)+1)
	for _, s := range p.Running.StopPositionsM {
		if s < length {
			stops = append(stops, s)
		}
	}
	stops = append(stops, length)
	return &Driver{p: p, stops: stops, margin: DefaultBrakeMargin}
}

// NextStop returns the position of the next stop and whether it is the end
// of the track.
func (d *Driver) NextStop() (float64, bool) {
	return d.stops[d.next], d.next == len(d.stops)-1
}

// Depart moves on to the following stop after a dwell.
func (d *Driver) Depart() {
	if d.next < len(d.stops)-1 {
		d.next++
	}
}

// Decide returns the command for the step starting at x. It fails with a
// ConstraintError when no command can honour the next stop or a speed
// limit within the braking limit, or when the train cannot start moving.
func (d *Driver) Decide(x dynamo.State, dt float64) (Decision, error) {
	train := d.p.Train
	bMax := train.BrakingDecelMps2
	stop, final := d.NextStop()
	seg := d.p.Track.SegmentAt(x.Position)

	dec := Decision{Segment: seg, Stop: stop, Final: final}
	v := x.Speed
	dist := stop - x.Position

	// Braking at v²/2d each step drives the remaining distance towards
	// v*dt, never below it, so that is the arrival window.
	switch {
	case v == 0 && dist <= arrivalTolerance:
		dec.Arrive = true
		dec.Command = dynamo.Command{Mode: dynamo.ModeBrake}
		return dec, nil
	case v > 0 && dist <= v*dt*(1+arrivalSlack):
		decel := physics.RequiredDecel(v, 0, dist)
		if decel > bMax*(1+brakeTolerance) {
			return dec, d.violation(x, constraint{kind: d.stopKind(), position: stop}, decel)
		}
		dec.Arrive = true
		dec.Tau = 2 * dist / v
		dec.Command = dynamo.Command{Mode: dynamo.ModeBrake, BrakeDecel: decel}
		return dec, nil
	case v > 0 && dist <= arrivalTolerance:
		// creeping onto the stop slower than the step can resolve
		dec.Arrive = true
		dec.Tau = dt
		dec.Command = dynamo.Command{Mode: dynamo.ModeBrake, BrakeDecel: v / dt}
		return dec, nil
	}

	cs := d.constraints(x.Position)
	need, worst := d.demand(cs, x.Position, v)
	if need > bMax*(1+brakeTolerance) {
		return dec, d.violation(x, worst, need)
	}

	body := d.bodyLimit(x.Position)
	if need >= bMax*d.margin || v > body {
		u, err := d.brake(x, need, body, dt)
		dec.Command = u
		return dec, err
	}

	segment := d.p.Track.Segments[seg]
	traction := d.traction(x, segment, body, dt)
	if v == 0 && traction.Throttle > 0 {
		f := physics.ComputeForces(x, traction, segment, train, d.p.Electrical)
		if f.Accel <= 0 {
			return dec, &dynamo.ConstraintError{
				Time:     x.Time,
				Position: x.Position,
				Reason:   "stalled: tractive effort cannot overcome resistance",
			}
		}
	}

	coast := dynamo.Command{Mode: dynamo.ModeCoast}
	coast.SpeedCap = d.capAt(x, coast, segment, body, dt)
	for _, u := range []dynamo.Command{traction, coast} {
		if v > u.SpeedCap {
			continue
		}
		v1, s1 := d.predict(x, u, segment, dt)
		if s1 >= stop && v1 > 0 {
			if v == 0 && u.Mode == dynamo.ModeTraction {
				// creeping up to a stop less than a step away
				dec.Arrive = true
				dec.Tau = math.Sqrt(2 * dist * dt / v1)
				dec.Command = u
				return dec, nil
			}
			continue
		}
		if next, _ := d.demand(cs, s1, v1); next < bMax*d.margin {
			dec.Command = u
			return dec, nil
		}
	}

	u, err := d.brake(x, need, body, dt)
	dec.Command = u
	return dec, err
}

// brake returns a braking command of at least decel that also keeps the
// train within every limit it will be under at the end of the step.
func (d *Driver) brake(x dynamo.State, decel, body, dt float64) (dynamo.Command, error) {
	u := dynamo.Command{Mode: dynamo.ModeBrake, BrakeDecel: decel}
	v1 := math.Max(0, x.Speed-decel*dt)
	limit := math.Min(body, d.p.Track.MinLimit(x.Position-d.p.Train.LengthM, x.Position+v1*dt))
	if v1 > limit {
		u.BrakeDecel = (x.Speed - limit) / dt
		if u.BrakeDecel > d.p.Train.BrakingDecelMps2*(1+brakeTolerance) {
			return u, d.violation(x, constraint{kind: kindLimit, position: x.Position, target: limit}, u.BrakeDecel)
		}
	}
	u.SpeedCap = limit
	return u, nil
}

func (d *Driver) stopKind() constraintKind {
	if _, final := d.NextStop(); final {
		return kindEnd
	}
	return kindStop
}

// constraints lists the next stop and the speed limit at every segment
// boundary between the train and that stop.
func (d *Driver) constraints(pos float64) []constraint {
	stop, _ := d.NextStop()
	cs := []constraint{{kind: d.stopKind(), position: stop}}

	track := d.p.Track
	start := 0.0
	for _, s := range track.Segments {
		end := start + s.LengthM
		if start > pos && start < stop {
			cs = append(cs, constraint{kind: kindLimit, position: start, target: s.SpeedLimitMps})
		}
		start = end
		if start >= stop {
			break
		}
	}
	return cs
}

// demand returns the highest deceleration any constraint needs from a
// train at pos moving at v.
func (d *Driver) demand(cs []constraint, pos, v float64) (float64, constraint) {
	var worst constraint
	need := 0.0
	for _, c := range cs {
		if a := physics.RequiredDecel(v, c.target, c.position-pos); a > need {
			need = a
			worst = c
		}
	}
	return need, worst
}

// bodyLimit is the lowest of the train max speed and the limit of every
// segment currently under the train, rear to front.
func (d *Driver) bodyLimit(pos float64) float64 {
	return math.Min(d.p.Train.MaxSpeedMps, d.p.Track.MinLimit(pos-d.p.Train.LengthM, pos))
}

// capAt extends body to the segments the front reaches by the end of the
// step under command u.
func (d *Driver) capAt(x dynamo.State, u dynamo.Command, seg params.Segment, body, dt float64) float64 {
	u.SpeedCap = body
	_, s1 := d.predict(x, u, seg, dt)
	return math.Min(body, d.p.Track.MinLimit(x.Position-d.p.Train.LengthM, s1))
}

// traction returns the throttle that accelerates towards the step's speed
// cap without overshooting it within dt.
func (d *Driver) traction(x dynamo.State, seg params.Segment, body, dt float64) dynamo.Command {
	full := dynamo.Command{Mode: dynamo.ModeTraction, Throttle: 1}
	limit := d.capAt(x, full, seg, body, dt)
	full.SpeedCap = limit
	f := physics.ComputeForces(x, full, seg, d.p.Train, d.p.Electrical)
	if x.Speed+f.Accel*dt <= limit || f.Available <= 0 {
		return full
	}

	want := (limit - x.Speed) / dt
	force := d.p.Train.MassKg*want + f.Resistance
	if force <= 0 {
		return dynamo.Command{Mode: dynamo.ModeCoast, SpeedCap: limit}
	}
	full.Throttle = math.Min(1, force/f.Available)
	return full
}

func (d *Driver) predict(x dynamo.State, u dynamo.Command, seg params.Segment, dt float64) (float64, float64) {
	f := physics.ComputeForces(x, u, seg, d.p.Train, d.p.Electrical)
	v := math.Max(0, x.Speed+f.Accel*dt)
	if u.SpeedCap > 0 {
		v = math.Min(v, u.SpeedCap)
	}
	return v, x.Position + v*dt
}

func (d *Driver) violation(x dynamo.State, c constraint, required float64) error {
	return &dynamo.ConstraintError{
		Time:     x.Time,
		Position: x.Position,
		Reason:   c.describe(),
		Required: required,
		Limit:    d.p.Train.BrakingDecelMps2,
	}
}
