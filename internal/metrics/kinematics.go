package metrics

import (
	"math"

	"github.com/san-kum/trainsim/internal/dynamo"
)

type MaxSpeed struct {
	name string
	max  float64
}

func NewMaxSpeed() *MaxSpeed {
	return &MaxSpeed{name: "max_speed_mps"}
}

func (m *MaxSpeed) Name() string { return m.name }

func (m *MaxSpeed) Observe(s dynamo.Sample) {
	m.max = math.Max(m.max, s.SpeedMps)
}

func (m *MaxSpeed) Value() float64 { return m.max }

func (m *MaxSpeed) Reset() { m.max = 0 }

// TripTime is the simulated time of the last sample, dwell included.
type TripTime struct {
	name string
	last float64
}

func NewTripTime() *TripTime {
	return &TripTime{name: "trip_time_s"}
}

func (t *TripTime) Name() string { return t.name }

func (t *TripTime) Observe(s dynamo.Sample) {
	t.last = s.TimeS
}

func (t *TripTime) Value() float64 { return t.last }

func (t *TripTime) Reset() { t.last = 0 }

// MeanSpeed is the distance covered over the simulated time, dwell
// included. Runs start at t=0 and s=0.
type MeanSpeed struct {
	name string
	last dynamo.Sample
}

func NewMeanSpeed() *MeanSpeed {
	return &MeanSpeed{name: "mean_speed_mps"}
}

func (m *MeanSpeed) Name() string { return m.name }

func (m *MeanSpeed) Observe(s dynamo.Sample) {
	m.last = s
}

func (m *MeanSpeed) Value() float64 {
	if m.last.TimeS <= 0 {
		return 0
	}
	return m.last.PositionM / m.last.TimeS
}

func (m *MeanSpeed) Reset() { m.last = dynamo.Sample{} }
