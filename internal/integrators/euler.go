package integrators

import (
	"fmt"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/physics"
)

// DefaultRunawayFactor bounds speed at this multiple of the train's max
// speed before a step is treated as diverged.
const DefaultRunawayFactor = 2.0

// holdTolerance is the relative slack before holding a speed cap counts
// as exceeding the braking limit.
const holdTolerance = 1e-9

type Integrator interface {
	Name() string
	Step(x dynamo.State, u dynamo.Command, seg params.Segment, p params.Snapshot, dt float64) (dynamo.State, dynamo.Forces, error)
}

// SemiImplicitEuler updates speed from acceleration first, then position
// from the updated speed.
type SemiImplicitEuler struct {
	RunawayFactor float64
}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{RunawayFactor: DefaultRunawayFactor}
}

func (e *SemiImplicitEuler) Name() string { return "semi-implicit" }

func (e *SemiImplicitEuler) Step(x dynamo.State, u dynamo.Command, seg params.Segment, p params.Snapshot, dt float64) (dynamo.State, dynamo.Forces, error) {
	v, f, err := speedStep(x, u, seg, p, dt)
	if err != nil {
		return x, f, err
	}
	next := advance(x, f, v, v*dt, p.Electrical, dt)
	return next, f, checkDivergence(next, p.Train.MaxSpeedMps*e.RunawayFactor)
}

// Euler is the explicit variant: position advances with the speed at the
// start of the step.
type Euler struct {
	RunawayFactor float64
}

func NewEuler() *Euler {
	return &Euler{RunawayFactor: DefaultRunawayFactor}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(x dynamo.State, u dynamo.Command, seg params.Segment, p params.Snapshot, dt float64) (dynamo.State, dynamo.Forces, error) {
	v, f, err := speedStep(x, u, seg, p, dt)
	if err != nil {
		return x, f, err
	}
	next := advance(x, f, v, x.Speed*dt, p.Electrical, dt)
	return next, f, checkDivergence(next, p.Train.MaxSpeedMps*e.RunawayFactor)
}

// speedStep returns the speed at the end of the step and the forces that
// produce it. Speed stays at or below the command's speed cap: any surplus
// comes off the tractive force first and is then held on the brakes, which
// fails with a ConstraintError beyond the braking limit.
func speedStep(x dynamo.State, u dynamo.Command, seg params.Segment, p params.Snapshot, dt float64) (float64, dynamo.Forces, error) {
	f := physics.ComputeForces(x, u, seg, p.Train, p.Electrical)
	v := x.Speed + f.Accel*dt

	if u.SpeedCap > 0 && v > u.SpeedCap {
		m := p.Train.MassKg
		surplus := m * (v - u.SpeedCap) / dt
		cut := min(surplus, f.Tractive)
		f.Tractive -= cut
		surplus -= cut

		if surplus > 0 {
			hold := surplus / m
			if limit := p.Train.BrakingDecelMps2; hold > limit*(1+holdTolerance) {
				return 0, f, &dynamo.ConstraintError{
					Time:     x.Time,
					Position: x.Position,
					Reason:   fmt.Sprintf("cannot hold %.2f m/s on grade %g", u.SpeedCap, seg.Grade),
					Required: hold,
					Limit:    limit,
				}
			}
			f.Brake += surplus
		}
		v = u.SpeedCap
		physics.SetPower(&f, x.Speed, p.Electrical)
	}
	if v < 0 {
		v = 0
	}
	f.Accel = (v - x.Speed) / dt
	return v, f, nil
}

func advance(x dynamo.State, f dynamo.Forces, v, ds float64, elec params.ElectricalParameters, dt float64) dynamo.State {
	next := dynamo.State{
		Time:        x.Time + dt,
		Position:    x.Position + ds,
		Speed:       v,
		Energy:      x.Energy,
		RegenEnergy: x.RegenEnergy,
	}
	if f.Tractive > 0 {
		next.Energy += f.Tractive * ds / elec.TractionEfficiency
	}
	if f.Brake > 0 && elec.RegenEnabled() {
		next.RegenEnergy += f.Brake * ds * elec.RegenEfficiency
	}
	return next
}

func checkDivergence(x dynamo.State, runaway float64) error {
	if !x.IsValid() {
		return &dynamo.DivergenceError{Time: x.Time, State: x, Reason: "non-finite state"}
	}
	if runaway > 0 && x.Speed > runaway {
		return &dynamo.DivergenceError{
			Time:   x.Time,
			State:  x,
			Reason: fmt.Sprintf("runaway speed %.2f m/s exceeds %.2f m/s", x.Speed, runaway),
		}
	}
	return nil
}

var registry = map[string]func() Integrator{
	"semi-implicit": func() Integrator { return NewSemiImplicitEuler() },
	"euler":         func() Integrator { return NewEuler() },
}

const Default = "semi-implicit"

func New(name string) (Integrator, error) {
	if name == "" {
		name = Default
	}
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	return []string{"euler", "semi-implicit"}
}
