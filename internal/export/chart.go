// Package export renders run results as static and interactive charts.
package export

import (
	"fmt"
	"io"
	"slices"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
)

// Formats lists the image formats WriteChart accepts.
var Formats = []string{"png", "svg", "pdf"}

const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 6 * vg.Inch
)

// Series picks one quantity from a sample.
type Series struct {
	Name  string
	Label string
	Value func(dynamo.Sample) float64
}

var (
	Speed  = Series{"speed", "speed (m/s)", func(s dynamo.Sample) float64 { return s.SpeedMps }}
	Power  = Series{"power", "power (kW)", func(s dynamo.Sample) float64 { return s.PowerW / 1000 }}
	Force  = Series{"force", "tractive force (kN)", func(s dynamo.Sample) float64 { return s.TractiveForceN / 1000 }}
	Accel  = Series{"accel", "acceleration (m/s²)", func(s dynamo.Sample) float64 { return s.AccelMps2 }}
	Energy = Series{"energy", "energy (kWh)", func(s dynamo.Sample) float64 { return s.EnergyJ / 3.6e6 }}
)

func points(samples []dynamo.Sample, x, y func(dynamo.Sample) float64) plotter.XYs {
	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = x(s)
		pts[i].Y = y(s)
	}
	return pts
}

func position(s dynamo.Sample) float64 { return s.PositionM }
func elapsed(s dynamo.Sample) float64 { return s.TimeS }

// Limits returns the speed limit of track as step points, one per segment
// start plus the end of the track.
func Limits(track params.TrackParameters) plotter.XYs {
	if len(track.Segments) == 0 {
		return nil
	}
	pts := make(plotter.XYs, 0, len(track.Segments)+1)
	pos := 0.0
	for _, seg := range track.Segments {
		pts = append(pts, plotter.XY{X: pos, Y: seg.SpeedLimitMps})
		pos += seg.LengthM
	}
	last := track.Segments[len(track.Segments)-1]
	return append(pts, plotter.XY{X: pos, Y: last.SpeedLimitMps})
}

// SpeedProfile plots speed against position, with the speed limit of
// every segment drawn as a step line when limits is not empty.
func SpeedProfile(title string, samples []dynamo.Sample, limits plotter.XYs) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, dynamo.ErrNoResults
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "position (m)"
	p.Y.Label.Text = Speed.Label
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(points(samples, position, Speed.Value))
	if err != nil {
		return nil, err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = plotutil.Color(0)
	p.Add(line)
	p.Legend.Add("speed", line)

	if len(limits) > 0 {
		l, err := plotter.NewLine(limits)
		if err != nil {
			return nil, err
		}
		l.StepStyle = plotter.PostStep
		l.LineStyle.Color = plotutil.Color(1)
		l.LineStyle.Dashes = plotutil.Dashes(1)
		p.Add(l)
		p.Legend.Add("limit", l)
	}
	p.Legend.Top = true
	return p, nil
}

// TimeSeries plots every series against simulated time.
func TimeSeries(title string, samples []dynamo.Sample, series ...Series) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, dynamo.ErrNoResults
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	if len(series) == 1 {
		p.Y.Label.Text = series[0].Label
	}
	p.Add(plotter.NewGrid())

	for i, s := range series {
		line, err := plotter.NewLine(points(samples, elapsed, s.Value))
		if err != nil {
			return nil, err
		}
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(s.Label, line)
	}
	return p, nil
}

// WriteChart renders p to w in the given format.
func WriteChart(w io.Writer, p *plot.Plot, format string) error {
	if !slices.Contains(Formats, format) {
		return fmt.Errorf("unsupported chart format %q (want one of %v)", format, Formats)
	}
	wt, err := p.WriterTo(DefaultWidth, DefaultHeight, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
