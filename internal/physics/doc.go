// Package physics is the train dynamics model.
//
// [ComputeForces] is a pure function of the kinematic state, the driver
// command, the active track segment and the train and electrical
// parameters. It returns a [dynamo.Forces] breakdown:
//
//   - tractive effort from the speed/force curve, capped by rated power
//   - rolling, grade and curve resistance
//   - brake force needed for the commanded deceleration
//   - net acceleration, electrical power and line current
//
// # Starting force
//
// The force of the lowest-speed curve point is held down to zero speed,
// so a curve always defines a starting force. The power cap
// RatedPowerW / v applies at every speed above zero.
//
// # Energy
//
// Power is positive while drawing traction energy and negative while
// regenerating. Energy is integrated by the integrator, not here.
package physics
