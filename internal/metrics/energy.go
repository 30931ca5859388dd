package metrics

import (
	"math"

	"github.com/san-kum/trainsim/internal/dynamo"
)

const joulesPerKWh = 3.6e6

// Energy reports the cumulative traction energy drawn, in kWh.
type Energy struct {
	name string
	last float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy_kwh"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s dynamo.Sample) {
	e.last = s.EnergyJ
}

func (e *Energy) Value() float64 {
	return e.last / joulesPerKWh
}

func (e *Energy) Reset() {
	e.last = 0
}

// RegenEnergy reports the cumulative energy recovered by regenerative
// braking, in kWh.
type RegenEnergy struct {
	name string
	last float64
}

func NewRegenEnergy() *RegenEnergy {
	return &RegenEnergy{name: "regen_energy_kwh"}
}

func (r *RegenEnergy) Name() string { return r.name }

func (r *RegenEnergy) Observe(s dynamo.Sample) {
	r.last = s.RegenEnergyJ
}

func (r *RegenEnergy) Value() float64 {
	return r.last / joulesPerKWh
}

func (r *RegenEnergy) Reset() {
	r.last = 0
}

// PeakPower is the highest electrical power drawn from the supply, in W.
type PeakPower struct {
	name string
	peak float64
}

func NewPeakPower() *PeakPower {
	return &PeakPower{name: "peak_power_w"}
}

func (p *PeakPower) Name() string { return p.name }

func (p *PeakPower) Observe(s dynamo.Sample) {
	p.peak = math.Max(p.peak, s.PowerW)
}

func (p *PeakPower) Value() float64 {
	return p.peak
}

func (p *PeakPower) Reset() {
	p.peak = 0
}
