package physics

import (
	"math"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
)

const (
	Gravity = 9.81

	// RollingCoefficient is the rolling resistance per unit weight.
	RollingCoefficient = 0.002

	// CurveCoefficient gives curve resistance per unit weight as
	// CurveCoefficient / radius (Röckl-style, metres).
	CurveCoefficient = 0.6
)

// TractiveEffort returns the maximum tractive force the train can exert at
// speed v. The curve is interpolated linearly; below the first point the
// first force is held (starting force), above the last point the last
// force is held. For v > 0 the result is capped at ratedPower / v.
func TractiveEffort(curve []params.TractionPoint, ratedPower, v float64) float64 {
	if len(curve) == 0 {
		return 0
	}
	f := interpolate(curve, v)
	if v > 0 {
		f = math.Min(f, ratedPower/v)
	}
	return f
}

func interpolate(curve []params.TractionPoint, v float64) float64 {
	if v <= curve[0].SpeedMps {
		return curve[0].ForceN
	}
	last := curve[len(curve)-1]
	if v >= last.SpeedMps {
		return last.ForceN
	}
	for i := 1; i < len(curve); i++ {
		hi := curve[i]
		if v <= hi.SpeedMps {
			lo := curve[i-1]
			frac := (v - lo.SpeedMps) / (hi.SpeedMps - lo.SpeedMps)
			return lo.ForceN + frac*(hi.ForceN-lo.ForceN)
		}
	}
	return last.ForceN
}

// Resistance is the breakdown of forces opposing motion.
type Resistance struct {
	Rolling float64
	Grade   float64
	Curve   float64
}

func (r Resistance) Total() float64 {
	return r.Rolling + r.Grade + r.Curve
}

// ComputeResistance returns the resistive forces on a train of the given
// mass on seg. Rolling and curve resistance only act when the train is
// moving or about to move; grade acts always and is negative downhill.
func ComputeResistance(mass float64, seg params.Segment, moving bool) Resistance {
	weight := mass * Gravity
	r := Resistance{Grade: weight * seg.Grade}
	if moving {
		r.Rolling = weight * RollingCoefficient
		if !seg.IsStraight() {
			r.Curve = weight * CurveCoefficient / seg.CurveRadiusM
		}
	}
	return r
}

// ComputeForces evaluates the dynamics model for state x under command u.
// It is a pure function of its inputs.
func ComputeForces(x dynamo.State, u dynamo.Command, seg params.Segment, train params.TrainParameters, elec params.ElectricalParameters) dynamo.Forces {
	v := x.Speed
	m := train.MassKg

	var f dynamo.Forces
	f.Available = TractiveEffort(train.TractionCurve, elec.RatedPowerW, v)

	throttle := 0.0
	if u.Mode == dynamo.ModeTraction {
		throttle = clamp(u.Throttle, 0, 1)
	}
	f.Tractive = throttle * f.Available

	moving := v > 0 || f.Tractive > 0
	res := ComputeResistance(m, seg, moving)
	f.Rolling = res.Rolling
	f.Grade = res.Grade
	f.Curve = res.Curve
	f.Resistance = res.Total()

	if u.Mode == dynamo.ModeBrake && v > 0 {
		decel := math.Min(u.BrakeDecel, train.BrakingDecelMps2)
		f.Brake = math.Max(0, m*decel-f.Resistance)
	}

	net := f.Tractive - f.Brake - f.Resistance
	if u.Mode == dynamo.ModeDwell || (v == 0 && net < 0) {
		// Held on the brakes: a stationary train does not roll back.
		net = 0
	}
	f.Accel = net / m
	SetPower(&f, v, elec)
	return f
}

// SetPower fills in electrical power and line current from the tractive
// and brake forces of f at speed v.
func SetPower(f *dynamo.Forces, v float64, elec params.ElectricalParameters) {
	f.Power = 0
	switch {
	case f.Tractive > 0:
		f.Power = f.Tractive * v / elec.TractionEfficiency
	case f.Brake > 0 && elec.RegenEnabled():
		f.Power = -f.Brake * v * elec.RegenEfficiency
	}
	f.Current = f.Power / elec.SupplyVoltageV
}

// BrakingDistance is the distance needed to go from v to target at a
// constant deceleration.
func BrakingDistance(v, target, decel float64) float64 {
	if v <= target || decel <= 0 {
		return 0
	}
	return (v*v - target*target) / (2 * decel)
}

// RequiredDecel is the constant deceleration that brings the train from v
// to target within dist.
func RequiredDecel(v, target, dist float64) float64 {
	if v <= target {
		return 0
	}
	if dist <= 0 {
		return math.Inf(1)
	}
	return (v*v - target*target) / (2 * dist)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
