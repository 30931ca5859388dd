package viz

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
)

const (
	DefaultWidth  = 80
	DefaultHeight = 12
)

// ByPosition resamples speed onto n evenly spaced track positions from 0
// to length, together with the speed limit at each position. Samples must
// be in time order; where the train dwells the last speed wins.
func ByPosition(samples []dynamo.Sample, track params.TrackParameters, n int) (speed, limit []float64) {
	if len(samples) == 0 || n < 2 {
		return nil, nil
	}
	length := track.Length()
	speed = make([]float64, n)
	limit = make([]float64, n)

	j := 0
	prev := dynamo.Sample{SpeedMps: samples[0].SpeedMps}
	for i := range n {
		pos := length * float64(i) / float64(n-1)
		for j < len(samples) && samples[j].PositionM <= pos {
			prev = samples[j]
			j++
		}
		v := prev.SpeedMps
		if j < len(samples) {
			next := samples[j]
			if span := next.PositionM - prev.PositionM; span > 0 {
				v += (next.SpeedMps - prev.SpeedMps) * (pos - prev.PositionM) / span
			}
		}
		speed[i] = v
		limit[i] = track.Segments[track.SegmentAt(pos)].SpeedLimitMps
	}
	return speed, limit
}

// SpeedProfile plots speed and speed limit against position.
func SpeedProfile(samples []dynamo.Sample, track params.TrackParameters, width, height int) string {
	speed, limit := ByPosition(samples, track, width)
	if speed == nil {
		return "no data to plot"
	}
	return asciigraph.PlotMany([][]float64{limit, speed},
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.LowerBound(0),
		asciigraph.SeriesColors(asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("speed (m/s) over %.0f m, limit in red", track.Length())),
	)
}

// TimeProfile plots one sample quantity against time.
func TimeProfile(samples []dynamo.Sample, caption string, value func(dynamo.Sample) float64, width, height int) string {
	if len(samples) == 0 {
		return "no data to plot"
	}
	data := make([]float64, len(samples))
	for i, s := range samples {
		data[i] = value(s)
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("%s over %.0f s", caption, samples[len(samples)-1].TimeS)),
	)
}

// Metrics renders metric values as an aligned two-column block, sorted
// by name.
func Metrics(values map[string]float64) string {
	var b strings.Builder
	for _, name := range slices.Sorted(maps.Keys(values)) {
		b.WriteString(MetricLabel.Render(name))
		b.WriteString(MetricValue.Render(fmt.Sprintf("%.3f", values[name])))
		b.WriteString("\n")
	}
	return b.String()
}
