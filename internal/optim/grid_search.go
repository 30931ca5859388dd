// Package optim searches parameter grids for the run that minimises a
// metric.
package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/trainsim/internal/automation"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
)

var ErrNoFeasible = errors.New("optim: no run completed")

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	Workers    int
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d parameters for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Candidate is one grid point and how its run ended.
type Candidate struct {
	Values  map[string]float64
	State   dynamo.RunState
	Metrics map[string]float64
	Err     error
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search runs every grid point applied to base and returns the completed
// candidate with the lowest metric, along with all candidates in grid
// order. Runs that do not complete never win.
func (g *GridSearch) Search(ctx context.Context, base params.Snapshot, metricName string, opts ...sim.Option) (Candidate, []Candidate, error) {
	var points []map[string]float64
	g.searchRecursive(0, map[string]float64{}, &points)

	snaps := make([]params.Snapshot, len(points))
	for i, point := range points {
		snaps[i] = base.Clone()
		for name, v := range point {
			if err := automation.Apply(&snaps[i], name, v); err != nil {
				return Candidate{}, nil, err
			}
		}
	}

	outcomes := sim.NewBatch(g.Workers, opts...).Run(ctx, snaps)
	all := make([]Candidate, len(outcomes))
	best, bestVal := -1, math.Inf(1)
	for i, out := range outcomes {
		all[i] = Candidate{Values: points[i], State: out.Run.State, Metrics: out.Result.Metrics, Err: out.Err}
		if out.Run.ID == "" {
			all[i].State = dynamo.Failed
		}
		if all[i].State != dynamo.Completed {
			continue
		}
		val, ok := out.Result.Metrics[metricName]
		if !ok {
			return Candidate{}, all, fmt.Errorf("optim: unknown metric %s", metricName)
		}
		if val < bestVal {
			best, bestVal = i, val
		}
	}
	if err := ctx.Err(); err != nil {
		return Candidate{}, all, err
	}
	if best < 0 {
		return Candidate{}, all, ErrNoFeasible
	}
	return all[best], all, nil
}

func (g *GridSearch) searchRecursive(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}
	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := maps.Clone(current)
		next[name] = val
		g.searchRecursive(depth+1, next, out)
	}
}

// ParseAxis reads "name=min:max:steps" into a parameter name and its
// evenly spaced values.
func ParseAxis(s string) (string, []float64, error) {
	name, bounds, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("optim: axis %q: want name=min:max:steps", s)
	}
	parts := strings.Split(bounds, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("optim: axis %q: want name=min:max:steps", s)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("optim: axis %q: %w", s, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("optim: axis %q: %w", s, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("optim: axis %q: steps must be a positive integer", s)
	}

	values := make([]float64, n)
	for i := range values {
		if n == 1 {
			values[i] = lo
			continue
		}
		values[i] = lo + float64(i)*(hi-lo)/float64(n-1)
	}
	return name, values, nil
}
