package params

import "slices"

// Straight is the curve radius sentinel for track without curvature.
const Straight = 0.0

type TractionPoint struct {
	SpeedMps float64 `json:"speed_mps" yaml:"speed_mps"`
	ForceN   float64 `json:"force_n" yaml:"force_n"`
}

type TrainParameters struct {
	MassKg           float64         `json:"mass_kg" yaml:"mass_kg"`
	LengthM          float64         `json:"length_m" yaml:"length_m"`
	MaxSpeedMps      float64         `json:"max_speed_mps" yaml:"max_speed_mps"`
	TractionCurve    []TractionPoint `json:"traction_curve" yaml:"traction_curve"`
	BrakingDecelMps2 float64         `json:"braking_decel_mps2" yaml:"braking_decel_mps2"`
}

func (p TrainParameters) Clone() TrainParameters {
	p.TractionCurve = slices.Clone(p.TractionCurve)
	return p
}

type ElectricalParameters struct {
	SupplyVoltageV     float64 `json:"supply_voltage_v" yaml:"supply_voltage_v"`
	RatedPowerW        float64 `json:"rated_power_w" yaml:"rated_power_w"`
	TractionEfficiency float64 `json:"traction_efficiency" yaml:"traction_efficiency"`
	RegenEfficiency    float64 `json:"regen_efficiency" yaml:"regen_efficiency"`
}

// RegenEnabled reports whether braking energy is recovered.
func (p ElectricalParameters) RegenEnabled() bool {
	return p.RegenEfficiency > 0
}

type RunningParameters struct {
	InitialSpeedMps float64   `json:"initial_speed_mps" yaml:"initial_speed_mps"`
	DwellTimeS      float64   `json:"dwell_time_s" yaml:"dwell_time_s"`
	StopPositionsM  []float64 `json:"stop_positions_m" yaml:"stop_positions_m"`
}

func (p RunningParameters) Clone() RunningParameters {
	p.StopPositionsM = slices.Clone(p.StopPositionsM)
	return p
}

// Segment is a stretch of track with uniform grade, curvature and limit.
// Grade is rise over run: positive is uphill in the direction of travel.
type Segment struct {
	LengthM       float64 `json:"length_m" yaml:"length_m"`
	Grade         float64 `json:"grade" yaml:"grade"`
	CurveRadiusM  float64 `json:"curve_radius_m" yaml:"curve_radius_m"`
	SpeedLimitMps float64 `json:"speed_limit_mps" yaml:"speed_limit_mps"`
}

func (s Segment) IsStraight() bool {
	return s.CurveRadiusM == Straight
}

type TrackParameters struct {
	Segments []Segment `json:"segments" yaml:"segments"`
}

func (p TrackParameters) Clone() TrackParameters {
	p.Segments = slices.Clone(p.Segments)
	return p
}

// Length is the cumulative length of all segments.
func (p TrackParameters) Length() float64 {
	total := 0.0
	for _, s := range p.Segments {
		total += s.LengthM
	}
	return total
}

// SegmentAt returns the index of the segment containing pos. Positions on
// a boundary belong to the segment that starts there; positions at or past
// the end belong to the last segment.
func (p TrackParameters) SegmentAt(pos float64) int {
	start := 0.0
	for i, s := range p.Segments {
		end := start + s.LengthM
		if pos < end {
			return i
		}
		start = end
	}
	return len(p.Segments) - 1
}

// Bounds returns the start and end position of segment i.
func (p TrackParameters) Bounds(i int) (float64, float64) {
	start := 0.0
	for j := 0; j < i; j++ {
		start += p.Segments[j].LengthM
	}
	return start, start + p.Segments[i].LengthM
}

// MinLimit returns the lowest speed limit of any segment overlapping the
// closed interval [from, to].
func (p TrackParameters) MinLimit(from, to float64) float64 {
	first := p.SegmentAt(from)
	last := p.SegmentAt(to)
	limit := p.Segments[first].SpeedLimitMps
	for i := first + 1; i <= last; i++ {
		if l := p.Segments[i].SpeedLimitMps; l < limit {
			limit = l
		}
	}
	return limit
}

// Snapshot is the immutable parameter set a run is started with.
type Snapshot struct {
	Train      TrainParameters      `json:"train" yaml:"train"`
	Electrical ElectricalParameters `json:"electrical" yaml:"electrical"`
	Running    RunningParameters    `json:"running" yaml:"running"`
	Track      TrackParameters      `json:"track" yaml:"track"`
}

// Clone deep-copies every slice so the copy shares nothing with s.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Train:      s.Train.Clone(),
		Electrical: s.Electrical,
		Running:    s.Running.Clone(),
		Track:      s.Track.Clone(),
	}
}
