// Package automation runs scripted batches of simulations: YAML
// scenarios, single-parameter sweeps and Monte Carlo perturbations.
package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"math/rand"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/integrators"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
)

// Scenario is a named list of runs executed as one batch.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Integrator  string         `yaml:"integrator"`
	Dt          float64        `yaml:"dt"`
	Workers     int            `yaml:"workers"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset or a parameter file and applies
// overrides by field name.
type ScenarioStep struct {
	Name       string             `yaml:"name"`
	Preset     string             `yaml:"preset"`
	ParamsFile string             `yaml:"params_file"`
	Overrides  map[string]float64 `yaml:"overrides"`
}

type StepResult struct {
	Name    string
	RunID   string
	State   dynamo.RunState
	Samples int
	Metrics map[string]float64
	Err     error
}

// fields are the parameters a step, sweep or trial may override.
var fields = map[string]func(*params.Snapshot) *float64{
	"mass_kg":             func(s *params.Snapshot) *float64 { return &s.Train.MassKg },
	"length_m":            func(s *params.Snapshot) *float64 { return &s.Train.LengthM },
	"max_speed_mps":       func(s *params.Snapshot) *float64 { return &s.Train.MaxSpeedMps },
	"braking_decel_mps2":  func(s *params.Snapshot) *float64 { return &s.Train.BrakingDecelMps2 },
	"rated_power_w":       func(s *params.Snapshot) *float64 { return &s.Electrical.RatedPowerW },
	"traction_efficiency": func(s *params.Snapshot) *float64 { return &s.Electrical.TractionEfficiency },
	"regen_efficiency":    func(s *params.Snapshot) *float64 { return &s.Electrical.RegenEfficiency },
	"supply_voltage_v":    func(s *params.Snapshot) *float64 { return &s.Electrical.SupplyVoltageV },
	"initial_speed_mps":   func(s *params.Snapshot) *float64 { return &s.Running.InitialSpeedMps },
	"dwell_time_s":        func(s *params.Snapshot) *float64 { return &s.Running.DwellTimeS },
}

var ErrUnknownParam = errors.New("automation: unknown parameter")

// Params lists the names accepted in overrides and sweeps.
func Params() []string {
	return slices.Sorted(maps.Keys(fields))
}

func field(snap *params.Snapshot, name string) (*float64, error) {
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return f(snap), nil
}

// Apply sets the named parameter of snap.
func Apply(snap *params.Snapshot, name string, v float64) error {
	p, err := field(snap, name)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

func (st ScenarioStep) snapshot() (params.Snapshot, error) {
	var snap params.Snapshot
	switch {
	case st.Preset != "" && st.ParamsFile != "":
		return snap, fmt.Errorf("set either preset or params_file, not both")
	case st.Preset != "":
		p := config.GetPreset(st.Preset)
		if p == nil {
			return snap, fmt.Errorf("unknown preset %q", st.Preset)
		}
		snap = *p
	case st.ParamsFile != "":
		var err error
		if snap, err = config.LoadParams(st.ParamsFile); err != nil {
			return snap, err
		}
	default:
		return snap, fmt.Errorf("no preset or params_file")
	}

	for _, name := range slices.Sorted(maps.Keys(st.Overrides)) {
		if err := Apply(&snap, name, st.Overrides[name]); err != nil {
			return snap, err
		}
	}
	return snap, nil
}

func (sc *Scenario) options(logger *log.Logger) ([]sim.Option, error) {
	opts := []sim.Option{sim.WithLogger(logger)}
	if sc.Integrator != "" {
		integ, err := integrators.New(sc.Integrator)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sim.WithIntegrator(integ))
	}
	if sc.Dt != 0 {
		opts = append(opts, sim.WithDt(sc.Dt))
	}
	return opts, nil
}

func quiet(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard)
	}
	return logger
}

// RunScenario executes every step concurrently. A step that cannot be
// built or fails to run is reported in its StepResult; the returned
// error is reserved for a scenario that cannot run at all.
func RunScenario(ctx context.Context, sc *Scenario, logger *log.Logger) ([]StepResult, error) {
	logger = quiet(logger)
	opts, err := sc.options(logger)
	if err != nil {
		return nil, err
	}

	results := make([]StepResult, len(sc.Steps))
	var snaps []params.Snapshot
	var idx []int
	for i, st := range sc.Steps {
		results[i].Name = st.Name
		if results[i].Name == "" {
			results[i].Name = fmt.Sprintf("step-%d", i+1)
		}
		snap, err := st.snapshot()
		if err != nil {
			results[i].Err = fmt.Errorf("step %d: %w", i+1, err)
			results[i].State = dynamo.Failed
			continue
		}
		snaps = append(snaps, snap)
		idx = append(idx, i)
	}

	logger.Info("running scenario", "name", sc.Name, "steps", len(sc.Steps))
	outcomes := sim.NewBatch(sc.Workers, opts...).Run(ctx, snaps)
	for k, out := range outcomes {
		r := &results[idx[k]]
		r.RunID = out.Run.ID
		r.State = out.Run.State
		r.Samples = out.Result.Len()
		r.Metrics = out.Result.Metrics
		r.Err = out.Err
		if out.Err != nil && out.Run.ID == "" {
			r.State = dynamo.Failed
		}
	}
	return results, nil
}

// ParameterSweep varies one parameter of a base snapshot over a range.
type ParameterSweep struct {
	Base      params.Snapshot
	ParamName string
	Min       float64
	Max       float64
	NumSteps  int
	Workers   int
}

type SweepResult struct {
	ParamValue float64
	State      dynamo.RunState
	Metrics    map[string]float64
	Err        error
}

func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *log.Logger, opts ...sim.Option) ([]SweepResult, error) {
	if sweep.NumSteps < 1 {
		return nil, fmt.Errorf("sweep needs at least one step, got %d", sweep.NumSteps)
	}
	if _, ok := fields[sweep.ParamName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParam, sweep.ParamName)
	}
	logger = quiet(logger)

	step := 0.0
	if sweep.NumSteps > 1 {
		step = (sweep.Max - sweep.Min) / float64(sweep.NumSteps-1)
	}
	values := make([]float64, sweep.NumSteps)
	snaps := make([]params.Snapshot, sweep.NumSteps)
	for i := range snaps {
		values[i] = sweep.Min + float64(i)*step
		snaps[i] = sweep.Base.Clone()
		_ = Apply(&snaps[i], sweep.ParamName, values[i])
	}

	logger.Info("running sweep", "param", sweep.ParamName, "min", sweep.Min, "max", sweep.Max, "steps", sweep.NumSteps)
	outcomes := sim.NewBatch(sweep.Workers, append([]sim.Option{sim.WithLogger(logger)}, opts...)...).Run(ctx, snaps)

	results := make([]SweepResult, len(outcomes))
	for i, out := range outcomes {
		results[i] = SweepResult{
			ParamValue: values[i],
			State:      out.Run.State,
			Metrics:    out.Result.Metrics,
			Err:        out.Err,
		}
		if out.Run.ID == "" {
			results[i].State = dynamo.Failed
		}
	}
	return results, nil
}

// MonteCarloConfig perturbs the named parameters of a base snapshot by a
// uniform relative amount.
type MonteCarloConfig struct {
	Base         params.Snapshot
	Params       []string
	Perturbation float64
	NumTrials    int
	Workers      int
	Seed         int64
}

type MonteCarloResult struct {
	TrialID int
	Values  map[string]float64
	State   dynamo.RunState
	Metrics map[string]float64
	Err     error
}

func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, logger *log.Logger, opts ...sim.Option) ([]MonteCarloResult, error) {
	base := make(map[string]float64, len(cfg.Params))
	probe := cfg.Base.Clone()
	for _, name := range cfg.Params {
		p, err := field(&probe, name)
		if err != nil {
			return nil, err
		}
		base[name] = *p
	}
	logger = quiet(logger)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	results := make([]MonteCarloResult, cfg.NumTrials)
	snaps := make([]params.Snapshot, cfg.NumTrials)
	for trial := range snaps {
		snaps[trial] = cfg.Base.Clone()
		values := make(map[string]float64, len(cfg.Params))
		for _, name := range cfg.Params {
			v := base[name] * (1 + (rng.Float64()-0.5)*2*cfg.Perturbation)
			values[name] = v
			_ = Apply(&snaps[trial], name, v)
		}
		results[trial] = MonteCarloResult{TrialID: trial, Values: values}
	}

	logger.Info("running monte carlo", "trials", cfg.NumTrials, "seed", seed)
	outcomes := sim.NewBatch(cfg.Workers, append([]sim.Option{sim.WithLogger(logger)}, opts...)...).Run(ctx, snaps)
	for i, out := range outcomes {
		results[i].State = out.Run.State
		results[i].Metrics = out.Result.Metrics
		results[i].Err = out.Err
		if out.Run.ID == "" {
			results[i].State = dynamo.Failed
		}
	}
	return results, nil
}

// MonteCarloStats counts completed and unsuccessful trials.
func MonteCarloStats(results []MonteCarloResult) (completed, failed int) {
	for _, r := range results {
		if r.State == dynamo.Completed {
			completed++
		} else {
			failed++
		}
	}
	return
}
