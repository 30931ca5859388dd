// Package control is the driving policy for a single train.
//
// A [Driver] is created from a parameter snapshot and asked, once per
// step, what to do next:
//
//	d := control.NewDriver(snap)
//	dec, err := d.Decide(x, dt)
//	// dec.Command goes to the integrator
//	// dec.Arrive means the next stop is reached within the step
//
// The policy accelerates at full throttle up to the speed cap, holds the
// cap, and brakes along a constant-deceleration curve for the next stop
// and for every lower speed limit before it. Braking is planned at
// [DefaultBrakeMargin] of the train's braking limit. When even the full
// limit is not enough, Decide returns a [dynamo.ConstraintError].
//
// The speed cap of a step covers every segment under the train body,
// rear to front, so a train leaves a slow segment only once its rear has
// cleared it.
package control
