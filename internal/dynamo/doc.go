// Package dynamo provides the core primitives shared by the train
// simulation engine.
//
//   - [State]: kinematic state (time, position, speed, energy)
//   - [Command]: driver input for one step (traction, coast, brake, dwell)
//   - [Forces]: force and power breakdown from the dynamics model
//   - [Sample]: one row of a result series
//
// # Errors
//
// Every failure the engine can report wraps one of the sentinels in this
// package, so callers classify errors with [errors.Is]:
//
//	if errors.Is(err, dynamo.ErrConflict) {
//	    // another run is active, retry later
//	}
//
// [DivergenceError] and [ConstraintError] are never returned from a call;
// they end a run and are recorded as its terminal diagnostic.
package dynamo
