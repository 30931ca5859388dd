// Package metrics summarizes a run's samples into named scalars.
package metrics

import "github.com/san-kum/trainsim/internal/dynamo"

// Standard returns a fresh set of the metrics reported for every run.
func Standard() []dynamo.Metric {
	return []dynamo.Metric{
		NewTripTime(),
		NewMaxSpeed(),
		NewMeanSpeed(),
		NewEnergy(),
		NewRegenEnergy(),
		NewPeakPower(),
		NewControlEffort(),
		NewComfort(DefaultComfortAccel),
	}
}

// Values collects the current value of each metric by name.
func Values(ms []dynamo.Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

// Compute runs the standard metrics over samples.
func Compute(samples []dynamo.Sample) map[string]float64 {
	ms := Standard()
	for _, s := range samples {
		for _, m := range ms {
			m.Observe(s)
		}
	}
	return Values(ms)
}
