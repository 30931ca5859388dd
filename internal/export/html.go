package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/san-kum/trainsim/internal/dynamo"
)

// MaxChartPoints bounds the number of points per interactive series.
const MaxChartPoints = 2000

func stride(n int) int {
	if n <= MaxChartPoints {
		return 1
	}
	return (n + MaxChartPoints - 1) / MaxChartPoints
}

func timeLine(title, subtitle string, samples []dynamo.Sample, series ...Series) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme: types.ThemeWesteros,
			Width: "1100px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: subtitle,
		}),
		charts.WithLegendOpts(opts.Legend{
			Type:  "scroll",
			Right: "10",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Name:        "time (s)",
			SplitNumber: 20,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale: opts.Bool(true),
		}),
		charts.WithDataZoomOpts(opts.DataZoom{
			Type:       "inside",
			Start:      0,
			End:        100,
			XAxisIndex: []int{0},
		}),
	)

	step := stride(len(samples))
	xs := make([]string, 0, len(samples)/step+1)
	for i := 0; i < len(samples); i += step {
		xs = append(xs, fmt.Sprintf("%.1f", samples[i].TimeS))
	}
	line.SetXAxis(xs)

	for _, s := range series {
		data := make([]opts.LineData, 0, len(xs))
		for i := 0; i < len(samples); i += step {
			data = append(data, opts.LineData{Value: s.Value(samples[i])})
		}
		line.AddSeries(s.Label, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	}
	return line
}

// WriteHTML renders an interactive page with the speed, traction and
// energy profiles of a run.
func WriteHTML(w io.Writer, runID string, samples []dynamo.Sample) error {
	if len(samples) == 0 {
		return dynamo.ErrNoResults
	}
	page := components.NewPage()
	page.PageTitle = "trainsim " + runID
	page.AddCharts(
		timeLine("Speed", runID, samples, Speed),
		timeLine("Traction", "tractive force and electrical power", samples, Force, Power),
		timeLine("Energy", "cumulative consumption", samples, Energy),
	)
	return page.Render(w)
}
