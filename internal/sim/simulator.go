package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/san-kum/trainsim/internal/control"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/integrators"
	"github.com/san-kum/trainsim/internal/metrics"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/physics"
	"github.com/san-kum/trainsim/internal/store"
)

const (
	DefaultDt         = 0.1
	DefaultMaxSimTime = 24 * 3600.0
)

type Option func(*Simulator)

func WithLogger(l *log.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithIntegrator(integ integrators.Integrator) Option {
	return func(s *Simulator) { s.integrator = integ }
}

// WithDt sets the fixed integration step in seconds.
func WithDt(dt float64) Option {
	return func(s *Simulator) { s.dt = dt }
}

// WithMaxSimTime bounds the simulated duration of a run. A run that has
// not finished by then fails.
func WithMaxSimTime(seconds float64) Option {
	return func(s *Simulator) { s.maxSimTime = seconds }
}

// WithArchive saves every completed run.
func WithArchive(a Archive) Option {
	return func(s *Simulator) { s.archive = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// Simulator owns a single run slot. Start hands the run to a background
// worker and returns at once; all other methods only read a copy of the
// state and never wait for the worker.
type Simulator struct {
	integrator integrators.Integrator
	dt         float64
	maxSimTime float64
	logger     *log.Logger
	archive    Archive
	now        func() time.Time
	results    *store.Store

	mu     sync.Mutex
	run    *Run
	cancel context.CancelFunc
	done   chan struct{}
}

func New(opts ...Option) (*Simulator, error) {
	s := &Simulator{
		integrator: integrators.NewSemiImplicitEuler(),
		dt:         DefaultDt,
		maxSimTime: DefaultMaxSimTime,
		logger:     log.New(io.Discard),
		now:        time.Now,
		results:    store.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !(s.dt > 0) || math.IsInf(s.dt, 0) {
		return nil, fmt.Errorf("dt must be positive, got %f", s.dt)
	}
	if !(s.maxSimTime > 0) {
		return nil, fmt.Errorf("max simulated time must be positive, got %f", s.maxSimTime)
	}
	if s.integrator == nil {
		return nil, errors.New("integrator is required")
	}
	return s, nil
}

// Start validates snap and begins a new run on a background worker. It
// fails with a ConflictError while another run is in progress.
func (s *Simulator) Start(snap params.Snapshot) (string, error) {
	if err := snap.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run != nil && s.run.State == dynamo.Running {
		return "", &ConflictError{Op: "start", State: dynamo.Running}
	}

	run := &Run{
		ID:         uuid.NewString(),
		State:      dynamo.Running,
		Params:     snap.Clone(),
		Integrator: s.integrator.Name(),
		Dt:         s.dt,
		StartedAt:  s.now(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.run, s.cancel, s.done = run, cancel, make(chan struct{})
	s.results.Begin(run.ID)

	s.logger.Info("run started",
		"run", run.ID,
		"integrator", run.Integrator,
		"dt", run.Dt,
		"track_m", run.Params.Track.Length())

	go s.work(ctx, run, s.done)
	return run.ID, nil
}

// Cancel asks the running worker to stop before its next step.
func (s *Simulator) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil || s.run.State != dynamo.Running {
		return &ConflictError{Op: "cancel", State: s.stateLocked()}
	}
	s.cancel()
	return nil
}

// Reset returns a finished simulator to Idle. The last completed result
// stays available.
func (s *Simulator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil || !s.run.State.Terminal() {
		return &ConflictError{Op: "reset", State: s.stateLocked()}
	}
	s.run, s.cancel, s.done = nil, nil, nil
	s.results.Release()
	return nil
}

func (s *Simulator) stateLocked() dynamo.RunState {
	if s.run == nil {
		return dynamo.Idle
	}
	return s.run.State
}

// Status reports the current run. The run and its latest sample are read
// together, so a concurrent Reset and Start never mix two runs.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	var run Run
	if s.run != nil {
		run = *s.run
	}
	last, n, ok := s.results.Latest()
	s.mu.Unlock()

	st := Status{State: dynamo.Idle}
	if run.ID == "" {
		return st
	}
	st.RunID = run.ID
	st.State = run.State
	st.StartedAt = &run.StartedAt
	if !run.EndedAt.IsZero() {
		st.EndedAt = &run.EndedAt
	}
	if run.Err != nil {
		st.Diagnostic = run.Err.Error()
	}

	if ok {
		st.TimeS = last.TimeS
		st.PositionM = last.PositionM
		st.SpeedMps = last.SpeedMps
		st.Samples = n
		st.Progress = last.PositionM / run.Params.Track.Length()
	}
	if run.State == dynamo.Completed {
		st.Progress = 1
	}
	return st
}

// Run returns a copy of the current run, if any.
func (s *Simulator) Run() (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return Run{}, false
	}
	return *s.run, true
}

// Results returns the samples of the current run, or the last completed
// result when the current run has none yet. In that case the result's
// RunID is the earlier run's, not Status().RunID, so callers that care
// which run they got compare the two.
func (s *Simulator) Results() (store.Result, error) {
	return s.results.Snapshot()
}

func (s *Simulator) ExportCSV() ([]byte, error) {
	res, err := s.Results()
	if errors.Is(err, dynamo.ErrNotAvailable) {
		return nil, dynamo.ErrNoResults
	}
	if err != nil {
		return nil, err
	}
	return store.ExportCSV(res.Samples)
}

// Wait blocks until the current worker has exited or ctx is done.
func (s *Simulator) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Simulator) work(ctx context.Context, run *Run, done chan struct{}) {
	defer close(done)

	w := &worker{
		ctx:     ctx,
		p:       run.Params,
		integ:   s.integrator,
		dt:      s.dt,
		budget:  s.maxSimTime,
		driver:  control.NewDriver(run.Params),
		metrics: metrics.Standard(),
		out:     s.results,
	}
	state, err := w.loop()
	values := metrics.Values(w.metrics)

	s.mu.Lock()
	if sealErr := s.results.Seal(state, values); sealErr != nil {
		s.logger.Error("seal results", "run", run.ID, "err", sealErr)
	}
	run.State = state
	run.Err = err
	run.EndedAt = s.now()
	final := *run
	s.mu.Unlock()

	logger := s.logger.With("run", run.ID, "state", state, "steps", w.steps, "sim_time_s", w.x.Time)
	switch state {
	case dynamo.Failed:
		logger.Warn("run failed", "err", err)
	case dynamo.Cancelled:
		logger.Info("run cancelled")
	default:
		logger.Info("run completed", "energy_kwh", values["energy_kwh"])
	}

	if s.archive != nil && state == dynamo.Completed {
		res, _ := s.results.Snapshot()
		if err := s.archive.Save(final, res); err != nil {
			s.logger.Error("archive run", "run", run.ID, "err", err)
		}
	}
}

type worker struct {
	ctx     context.Context
	p       params.Snapshot
	integ   integrators.Integrator
	dt      float64
	budget  float64
	driver  *control.Driver
	metrics []dynamo.Metric
	out     *store.Store

	x     dynamo.State
	steps int
}

func (w *worker) emit(s dynamo.Sample) {
	for _, m := range w.metrics {
		m.Observe(s)
	}
	w.out.Append(s)
}

func (w *worker) cancelled() bool {
	select {
	case <-w.ctx.Done():
		return true
	default:
		return false
	}
}

func (w *worker) loop() (dynamo.RunState, error) {
	w.x = dynamo.State{Speed: w.p.Running.InitialSpeedMps}

	for ; ; w.steps++ {
		if w.cancelled() {
			return dynamo.Cancelled, nil
		}
		if w.x.Time >= w.budget {
			return dynamo.Failed, &dynamo.DivergenceError{
				Step:   w.steps,
				Time:   w.x.Time,
				State:  w.x,
				Reason: fmt.Sprintf("end of track not reached within %.0fs of simulated time", w.budget),
			}
		}

		dec, err := w.driver.Decide(w.x, w.dt)
		if err != nil {
			return dynamo.Failed, err
		}

		if !dec.Arrive {
			seg := w.p.Track.Segments[dec.Segment]
			next, f, err := w.integ.Step(w.x, dec.Command, seg, w.p, w.dt)
			if err != nil {
				var de *dynamo.DivergenceError
				if errors.As(err, &de) {
					de.Step = w.steps
				}
				return dynamo.Failed, err
			}
			if next.Position < dec.Stop {
				w.x = next
				w.emit(dynamo.NewSample(next, f, dec.Command.Mode, dec.Segment))
				continue
			}
			// the step would overrun the stop: end it there instead
			frac := (dec.Stop - w.x.Position) / (next.Position - w.x.Position)
			dec.Tau = frac * w.dt
			dec.Command = dynamo.Command{Mode: dynamo.ModeBrake, BrakeDecel: physics.RequiredDecel(w.x.Speed, 0, dec.Stop-w.x.Position)}
		}

		w.arrive(dec)
		if dec.Final {
			return dynamo.Completed, nil
		}
		if !w.dwell() {
			return dynamo.Cancelled, nil
		}
		w.driver.Depart()
	}
}

// arrive brings the train to rest exactly on the stop, dec.Tau after the
// current state.
func (w *worker) arrive(dec control.Decision) {
	if dec.Tau <= 0 {
		w.x.Speed = 0
		return
	}

	seg := w.p.Track.Segments[dec.Segment]
	f := physics.ComputeForces(w.x, dec.Command, seg, w.p.Train, w.p.Electrical)
	dist := dec.Stop - w.x.Position

	next := w.x
	next.Time += dec.Tau
	next.Position = dec.Stop
	next.Speed = 0
	if f.Tractive > 0 {
		next.Energy += f.Tractive * dist / w.p.Electrical.TractionEfficiency
	}
	if f.Brake > 0 && w.p.Electrical.RegenEnabled() {
		next.RegenEnergy += f.Brake * dist * w.p.Electrical.RegenEfficiency
	}
	f.Accel = -w.x.Speed / dec.Tau

	w.x = next
	w.emit(dynamo.NewSample(next, f, dec.Command.Mode, w.p.Track.SegmentAt(next.Position)))
}

// dwell holds the train at rest for the dwell time, one sample per step.
// It reports false when cancelled.
func (w *worker) dwell() bool {
	dwell := w.p.Running.DwellTimeS
	if dwell <= 0 {
		return true
	}
	start := w.x.Time
	n := int(math.Ceil(dwell/w.dt - 1e-9))
	seg := w.p.Track.SegmentAt(w.x.Position)
	for i := 1; i <= n; i++ {
		if w.cancelled() {
			return false
		}
		w.x.Time = math.Min(start+float64(i)*w.dt, start+dwell)
		w.emit(dynamo.NewSample(w.x, dynamo.Forces{}, dynamo.ModeDwell, seg))
		w.steps++
	}
	return true
}
