package config

import (
	"slices"

	"github.com/san-kum/trainsim/internal/params"
)

var Presets = map[string]params.Snapshot{
	// flat straight 1000 m with constant 50 kN up to 20 m/s
	"scenario-a": {
		Train: params.TrainParameters{
			MassKg: 100000, LengthM: 100, MaxSpeedMps: 20, BrakingDecelMps2: 1.0,
			TractionCurve: []params.TractionPoint{{SpeedMps: 0, ForceN: 50000}, {SpeedMps: 20, ForceN: 50000}},
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 750, RatedPowerW: 2e6, TractionEfficiency: 0.9, RegenEfficiency: 0.5},
		Track:      params.TrackParameters{Segments: []params.Segment{{LengthM: 1000, SpeedLimitMps: 20}}},
	},
	"metro": {
		Train: params.TrainParameters{
			MassKg: 200000, LengthM: 120, MaxSpeedMps: 22.2, BrakingDecelMps2: 1.0,
			TractionCurve: []params.TractionPoint{
				{SpeedMps: 0, ForceN: 300000},
				{SpeedMps: 8, ForceN: 300000},
				{SpeedMps: 22.2, ForceN: 110000},
			},
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 750, RatedPowerW: 3.2e6, TractionEfficiency: 0.88, RegenEfficiency: 0.6},
		Running:    params.RunningParameters{DwellTimeS: 30, StopPositionsM: []float64{1200, 2600}},
		Track: params.TrackParameters{Segments: []params.Segment{
			{LengthM: 800, SpeedLimitMps: 22.2},
			{LengthM: 600, Grade: 0.015, CurveRadiusM: 400, SpeedLimitMps: 16.7},
			{LengthM: 1200, Grade: -0.01, SpeedLimitMps: 22.2},
			{LengthM: 800, CurveRadiusM: 1000, SpeedLimitMps: 19.4},
		}},
	},
	"commuter": {
		Train: params.TrainParameters{
			MassKg: 400000, LengthM: 200, MaxSpeedMps: 33.3, BrakingDecelMps2: 0.9,
			TractionCurve: []params.TractionPoint{
				{SpeedMps: 0, ForceN: 360000},
				{SpeedMps: 10, ForceN: 300000},
				{SpeedMps: 33.3, ForceN: 150000},
			},
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 25000, RatedPowerW: 5e6, TractionEfficiency: 0.9, RegenEfficiency: 0.5},
		Running:    params.RunningParameters{DwellTimeS: 45, StopPositionsM: []float64{4000}},
		Track: params.TrackParameters{Segments: []params.Segment{
			{LengthM: 3000, SpeedLimitMps: 33.3},
			{LengthM: 2000, Grade: 0.008, SpeedLimitMps: 27.8},
			{LengthM: 3000, CurveRadiusM: 1500, SpeedLimitMps: 33.3},
		}},
	},
	"freight": {
		Train: params.TrainParameters{
			MassKg: 2000000, LengthM: 600, MaxSpeedMps: 22.2, BrakingDecelMps2: 0.5,
			TractionCurve: []params.TractionPoint{
				{SpeedMps: 0, ForceN: 400000},
				{SpeedMps: 10, ForceN: 300000},
				{SpeedMps: 22.2, ForceN: 200000},
			},
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 25000, RatedPowerW: 4.4e6, TractionEfficiency: 0.85},
		Track: params.TrackParameters{Segments: []params.Segment{
			{LengthM: 5000, SpeedLimitMps: 22.2},
			{LengthM: 3000, Grade: 0.005, SpeedLimitMps: 16.7},
			{LengthM: 4000, CurveRadiusM: 2000, SpeedLimitMps: 22.2},
		}},
	},
	"tram": {
		Train: params.TrainParameters{
			MassKg: 40000, LengthM: 30, MaxSpeedMps: 19.4, BrakingDecelMps2: 1.2,
			TractionCurve: []params.TractionPoint{
				{SpeedMps: 0, ForceN: 80000},
				{SpeedMps: 6, ForceN: 80000},
				{SpeedMps: 19.4, ForceN: 30000},
			},
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 750, RatedPowerW: 7.2e5, TractionEfficiency: 0.9, RegenEfficiency: 0.7},
		Running:    params.RunningParameters{DwellTimeS: 20, StopPositionsM: []float64{400, 900}},
		Track: params.TrackParameters{Segments: []params.Segment{
			{LengthM: 500, CurveRadiusM: 100, SpeedLimitMps: 13.9},
			{LengthM: 600, Grade: 0.03, SpeedLimitMps: 19.4},
			{LengthM: 300, Grade: -0.02, SpeedLimitMps: 11.1},
		}},
	},
}

// GetPreset returns a copy of the named parameter set, or nil.
func GetPreset(name string) *params.Snapshot {
	snap, ok := Presets[name]
	if !ok {
		return nil
	}
	c := snap.Clone()
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
