package optim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/trainsim/internal/automation"
	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
)

func TestParseAxis(t *testing.T) {
	name, values, err := ParseAxis("mass_kg=100000:200000:3")
	require.NoError(t, err)
	assert.Equal(t, "mass_kg", name)
	assert.Equal(t, []float64{100000, 150000, 200000}, values)

	_, values, err = ParseAxis("dwell_time_s=5:50:1")
	require.NoError(t, err)
	assert.Equal(t, []float64{5}, values)

	for _, bad := range []string{"mass_kg", "=1:2:3", "mass_kg=1:2", "mass_kg=a:2:3", "mass_kg=1:2:0"} {
		_, _, err := ParseAxis(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewGridSearch_Invalid(t *testing.T) {
	_, err := NewGridSearch(nil, nil)
	assert.Error(t, err)
	_, err = NewGridSearch([]string{"mass_kg"}, [][]float64{{}})
	assert.Error(t, err)
}

func TestSearch_LighterTrainUsesLessEnergy(t *testing.T) {
	g, err := NewGridSearch([]string{"mass_kg", "dwell_time_s"}, [][]float64{{150000, 100000, 50000}, {0, 10}})
	require.NoError(t, err)
	assert.Equal(t, 6, g.Size())

	best, all, err := g.Search(context.Background(), *config.GetPreset("scenario-a"), "energy_kwh")
	require.NoError(t, err)
	require.Len(t, all, 6)
	for _, c := range all {
		assert.Equal(t, dynamo.Completed, c.State)
	}
	assert.Equal(t, 50000.0, best.Values["mass_kg"])
	assert.Equal(t, map[string]float64{"mass_kg": 150000, "dwell_time_s": 0}, all[0].Values)
}

func TestSearch_Errors(t *testing.T) {
	base := *config.GetPreset("scenario-a")

	g, _ := NewGridSearch([]string{"wheel_count"}, [][]float64{{1}})
	_, _, err := g.Search(context.Background(), base, "energy_kwh")
	assert.ErrorIs(t, err, automation.ErrUnknownParam)

	g, _ = NewGridSearch([]string{"mass_kg"}, [][]float64{{-1}})
	_, all, err := g.Search(context.Background(), base, "energy_kwh")
	assert.ErrorIs(t, err, ErrNoFeasible)
	assert.Len(t, all, 1)

	g, _ = NewGridSearch([]string{"mass_kg"}, [][]float64{{100000}})
	_, _, err = g.Search(context.Background(), base, "no_such_metric")
	assert.Error(t, err)
}
