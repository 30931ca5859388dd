package sim_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/integrators"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
	"github.com/san-kum/trainsim/internal/store"
)

// flat straight 1000 m, constant 50 kN up to 20 m/s
func scenarioA() params.Snapshot {
	return params.Snapshot{
		Train: params.TrainParameters{
			MassKg:           100000,
			LengthM:          100,
			MaxSpeedMps:      20,
			TractionCurve:    []params.TractionPoint{{SpeedMps: 0, ForceN: 50000}, {SpeedMps: 20, ForceN: 50000}},
			BrakingDecelMps2: 1.0,
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 750, RatedPowerW: 2e6, TractionEfficiency: 0.9, RegenEfficiency: 0.5},
		Track:      params.TrackParameters{Segments: []params.Segment{{LengthM: 1000, SpeedLimitMps: 20}}},
	}
}

func route() params.Snapshot {
	return params.Snapshot{
		Train: params.TrainParameters{
			MassKg:      100000,
			LengthM:     50,
			MaxSpeedMps: 25,
			TractionCurve: []params.TractionPoint{
				{SpeedMps: 0, ForceN: 120000},
				{SpeedMps: 10, ForceN: 100000},
				{SpeedMps: 25, ForceN: 50000},
			},
			BrakingDecelMps2: 1.0,
		},
		Electrical: params.ElectricalParameters{SupplyVoltageV: 750, RatedPowerW: 3e6, TractionEfficiency: 0.9, RegenEfficiency: 0.6},
		Running:    params.RunningParameters{DwellTimeS: 5, StopPositionsM: []float64{1500}},
		Track: params.TrackParameters{Segments: []params.Segment{
			{LengthM: 1000, SpeedLimitMps: 20},
			{LengthM: 1000, SpeedLimitMps: 12},
			{LengthM: 500, Grade: 0.005, CurveRadiusM: 800, SpeedLimitMps: 20},
		}},
	}
}

// graded returns route with every segment on the given grade.
func graded(grade float64) params.Snapshot {
	snap := route()
	for i := range snap.Track.Segments {
		snap.Track.Segments[i].Grade = grade
	}
	return snap
}

func expectBounded(snap params.Snapshot, res store.Result) {
	GinkgoHelper()
	length := snap.Track.Length()
	prev := dynamo.Sample{TimeS: -1}
	for i, smp := range res.Samples {
		limit := math.Min(snap.Train.MaxSpeedMps, snap.Track.MinLimit(smp.PositionM-snap.Train.LengthM, smp.PositionM))
		Expect(smp.SpeedMps).To(BeNumerically("<=", limit+1e-9), "sample %d at %.2fm", i, smp.PositionM)
		Expect(smp.TimeS).To(BeNumerically(">", prev.TimeS), "sample %d", i)
		Expect(smp.PositionM).To(BeNumerically(">=", prev.PositionM), "sample %d", i)
		Expect(smp.PositionM).To(BeNumerically("<=", length))
		Expect(smp.EnergyJ).To(BeNumerically(">=", prev.EnergyJ))
		Expect(smp.RegenEnergyJ).To(BeNumerically(">=", prev.RegenEnergyJ))
		prev = smp
	}
	last := res.Samples[len(res.Samples)-1]
	Expect(last.PositionM).To(Equal(length))
	Expect(last.SpeedMps).To(Equal(0.0))
}

// gatedIntegrator takes one step per value received on gate.
type gatedIntegrator struct {
	integrators.Integrator
	gate chan struct{}
	once sync.Once
}

func newGated() *gatedIntegrator {
	return &gatedIntegrator{Integrator: integrators.NewSemiImplicitEuler(), gate: make(chan struct{})}
}

func (g *gatedIntegrator) Step(x dynamo.State, u dynamo.Command, seg params.Segment, p params.Snapshot, dt float64) (dynamo.State, dynamo.Forces, error) {
	<-g.gate
	return g.Integrator.Step(x, u, seg, p, dt)
}

func (g *gatedIntegrator) open() {
	g.once.Do(func() { close(g.gate) })
}

type memArchive struct {
	mu   sync.Mutex
	runs []sim.Run
}

func (a *memArchive) Save(run sim.Run, _ store.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs = append(a.runs, run)
	return nil
}

func (a *memArchive) saved() []sim.Run {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]sim.Run(nil), a.runs...)
}

func runToEnd(s *sim.Simulator, snap params.Snapshot) store.Result {
	GinkgoHelper()
	_, err := s.Start(snap)
	Expect(err).NotTo(HaveOccurred())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	Expect(s.Wait(ctx)).To(Succeed())

	res, err := s.Results()
	Expect(err).NotTo(HaveOccurred())
	return res
}

func newSim(opts ...sim.Option) *sim.Simulator {
	GinkgoHelper()
	s, err := sim.New(opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Simulator", func() {
	Describe("New", func() {
		It("rejects a non-positive step", func() {
			_, err := sim.New(sim.WithDt(0))
			Expect(err).To(HaveOccurred())
			_, err = sim.New(sim.WithMaxSimTime(-1))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("a fresh simulator", func() {
		var s *sim.Simulator

		BeforeEach(func() {
			s = newSim()
		})

		It("is idle", func() {
			st := s.Status()
			Expect(st.State).To(Equal(dynamo.Idle))
			Expect(st.RunID).To(BeEmpty())
		})

		It("has no results to export", func() {
			_, err := s.ExportCSV()
			Expect(err).To(MatchError(dynamo.ErrNoResults))

			_, err = s.Results()
			Expect(err).To(MatchError(dynamo.ErrNotAvailable))
		})

		It("refuses cancel and reset", func() {
			Expect(s.Cancel()).To(MatchError(dynamo.ErrConflict))
			Expect(s.Reset()).To(MatchError(dynamo.ErrConflict))
		})

		It("rejects a stop beyond the end of the track", func() {
			snap := scenarioA()
			snap.Running.StopPositionsM = []float64{1500}

			_, err := s.Start(snap)
			Expect(err).To(MatchError(dynamo.ErrValidation))
			var ve *params.ValidationError
			Expect(errors.As(err, &ve)).To(BeTrue())
			Expect(s.Status().State).To(Equal(dynamo.Idle))
		})
	})

	Describe("running to completion", func() {
		It("reaches the end of a flat track", func() {
			s := newSim()
			res := runToEnd(s, scenarioA())

			Expect(s.Status().State).To(Equal(dynamo.Completed))
			Expect(s.Status().Progress).To(Equal(1.0))
			Expect(res.Final).To(BeTrue())

			last := res.Samples[len(res.Samples)-1]
			Expect(last.PositionM).To(Equal(1000.0))
			Expect(last.SpeedMps).To(Equal(0.0))
			Expect(res.Metrics).To(HaveKeyWithValue("trip_time_s", last.TimeS))
		})

		It("is deterministic", func() {
			a := runToEnd(newSim(), scenarioA())
			b := runToEnd(newSim(), scenarioA())
			Expect(a.Samples).To(Equal(b.Samples))
		})

		It("keeps time, position, speed and energy in bounds", func() {
			snap := route()
			res := runToEnd(newSim(), snap)
			Expect(res.State).To(Equal(dynamo.Completed))

			expectBounded(snap, res)
		})

		DescribeTable("completes every preset",
			func(name string) {
				snap := config.GetPreset(name)
				Expect(snap).NotTo(BeNil())

				s := newSim()
				res := runToEnd(s, *snap)
				Expect(s.Status().State).To(Equal(dynamo.Completed), s.Status().Diagnostic)
				Expect(res.Final).To(BeTrue())
				expectBounded(*snap, res)
			},
			Entry("scenario-a", "scenario-a"),
			Entry("metro", "metro"),
			Entry("commuter", "commuter"),
			Entry("freight", "freight"),
			Entry("tram", "tram"),
		)

		It("has a table entry for every preset", func() {
			Expect(config.ListPresets()).To(ConsistOf("scenario-a", "metro", "commuter", "freight", "tram"))
		})

		DescribeTable("completes a graded route within bounds",
			func(grade float64) {
				snap := graded(grade)
				res := runToEnd(newSim(), snap)
				Expect(res.State).To(Equal(dynamo.Completed))
				expectBounded(snap, res)

				var stopped bool
				for _, smp := range res.Samples {
					if smp.Mode == dynamo.ModeDwell {
						stopped = true
						Expect(smp.PositionM).To(Equal(1500.0))
					}
				}
				Expect(stopped).To(BeTrue())
			},
			Entry("steep descent", -0.03),
			Entry("descent", -0.01),
			Entry("climb", 0.01),
			Entry("steep climb", 0.02),
		)

		It("holds the limit on a descent with the brakes and recovers energy", func() {
			snap := graded(-0.03)
			res := runToEnd(newSim(), snap)
			Expect(res.State).To(Equal(dynamo.Completed))

			var held int
			for _, smp := range res.Samples {
				if smp.Mode != dynamo.ModeBrake && smp.SpeedMps > 0 && smp.PowerW < 0 {
					held++
				}
			}
			Expect(held).To(BeNumerically(">", 0))
			Expect(res.Samples[len(res.Samples)-1].RegenEnergyJ).To(BeNumerically(">", 0))
		})

		It("fails when a descent is too steep for the brakes to hold", func() {
			snap := graded(-0.2)
			s := newSim()
			_, err := s.Start(snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Wait(context.Background())).To(Succeed())

			run, _ := s.Run()
			Expect(run.State).To(Equal(dynamo.Failed))
			Expect(run.Err).To(MatchError(dynamo.ErrConstraint))
		})

		It("dwells at an intermediate stop", func() {
			res := runToEnd(newSim(), route())

			var dwell []dynamo.Sample
			for _, smp := range res.Samples {
				if smp.Mode == dynamo.ModeDwell {
					dwell = append(dwell, smp)
				}
			}
			Expect(dwell).To(HaveLen(50))
			for _, smp := range dwell {
				Expect(smp.PositionM).To(Equal(1500.0))
				Expect(smp.SpeedMps).To(Equal(0.0))
			}
			Expect(dwell[len(dwell)-1].TimeS - dwell[0].TimeS).To(BeNumerically("~", 4.9, 1e-9))
		})

		It("recovers energy only with regeneration enabled", func() {
			with := runToEnd(newSim(), route())
			Expect(with.Samples[len(with.Samples)-1].RegenEnergyJ).To(BeNumerically(">", 0))

			snap := route()
			snap.Electrical.RegenEfficiency = 0
			without := runToEnd(newSim(), snap)
			Expect(without.Samples[len(without.Samples)-1].RegenEnergyJ).To(BeZero())
			for _, smp := range without.Samples {
				Expect(smp.PowerW).To(BeNumerically(">=", 0))
			}
		})

		It("archives completed runs", func() {
			archive := &memArchive{}
			start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
			s := newSim(sim.WithArchive(archive), sim.WithClock(func() time.Time { return start }))

			runToEnd(s, scenarioA())
			saved := archive.saved()
			Expect(saved).To(HaveLen(1))
			Expect(saved[0].ID).To(Equal(s.Status().RunID))
			Expect(saved[0].Integrator).To(Equal("semi-implicit"))
			Expect(*s.Status().StartedAt).To(Equal(start))
		})
	})

	Describe("failures", func() {
		It("fails when the braking limit cannot make a stop", func() {
			snap := scenarioA()
			snap.Running.InitialSpeedMps = 20
			snap.Running.StopPositionsM = []float64{10}

			s := newSim()
			_, err := s.Start(snap)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Wait(context.Background())).To(Succeed())

			st := s.Status()
			Expect(st.State).To(Equal(dynamo.Failed))
			Expect(st.Diagnostic).To(ContainSubstring("cannot stop"))
			run, ok := s.Run()
			Expect(ok).To(BeTrue())
			Expect(run.Err).To(MatchError(dynamo.ErrConstraint))
		})

		It("fails when the simulated time budget runs out", func() {
			s := newSim(sim.WithMaxSimTime(10))
			_, err := s.Start(scenarioA())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Wait(context.Background())).To(Succeed())

			run, _ := s.Run()
			Expect(run.State).To(Equal(dynamo.Failed))
			Expect(run.Err).To(MatchError(dynamo.ErrDivergence))

			res, err := s.Results()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Final).To(BeFalse())
		})

		It("can start again after a failed run", func() {
			s := newSim(sim.WithMaxSimTime(10))
			runToEnd(s, scenarioA())
			Expect(s.Reset()).To(Succeed())
			Expect(s.Status().State).To(Equal(dynamo.Idle))

			_, err := s.Start(scenarioA())
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("while a run is in progress", func() {
		var (
			s     *sim.Simulator
			gated *gatedIntegrator
			runID string
		)

		BeforeEach(func() {
			gated = newGated()
			s = newSim(sim.WithIntegrator(gated))

			var err error
			runID, err = s.Start(scenarioA())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			gated.open()
			Expect(s.Wait(context.Background())).To(Succeed())
		})

		It("rejects a second start", func() {
			_, err := s.Start(scenarioA())
			Expect(err).To(MatchError(dynamo.ErrConflict))
			var ce *sim.ConflictError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.State).To(Equal(dynamo.Running))

			Expect(s.Status().RunID).To(Equal(runID))
			Expect(s.Status().State).To(Equal(dynamo.Running))
		})

		It("rejects reset", func() {
			Expect(s.Reset()).To(MatchError(dynamo.ErrConflict))
		})

		It("reports progress without waiting for the worker", func() {
			for i := 0; i < 3; i++ {
				gated.gate <- struct{}{}
			}
			Eventually(func() int { return s.Status().Samples }).Should(Equal(3))

			st := s.Status()
			Expect(st.Progress).To(BeNumerically(">", 0))
			Expect(st.Progress).To(BeNumerically("<", 1))

			res, err := s.Results()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Final).To(BeFalse())
			Expect(res.Samples).To(HaveLen(3))
		})

		It("stops within one step of cancel", func() {
			for i := 0; i < 5; i++ {
				gated.gate <- struct{}{}
			}
			Eventually(func() int { return s.Status().Samples }).Should(Equal(5))

			Expect(s.Cancel()).To(Succeed())
			// the step already waiting on the gate may still finish
			gated.gate <- struct{}{}

			Eventually(func() dynamo.RunState { return s.Status().State }).
				WithTimeout(2 * time.Second).
				Should(Equal(dynamo.Cancelled))

			res, err := s.Results()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Final).To(BeFalse())
			Expect(res.State).To(Equal(dynamo.Cancelled))
			Expect(len(res.Samples)).To(BeNumerically("<=", 6))

			Expect(s.Cancel()).To(MatchError(dynamo.ErrConflict))
		})

		It("completes once released and can be reset and restarted", func() {
			gated.open()
			Expect(s.Wait(context.Background())).To(Succeed())
			Expect(s.Status().State).To(Equal(dynamo.Completed))

			Expect(s.Reset()).To(Succeed())
			Expect(s.Status().State).To(Equal(dynamo.Idle))

			res, err := s.Results()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RunID).To(Equal(runID))

			next, err := s.Start(scenarioA())
			Expect(err).NotTo(HaveOccurred())
			Expect(next).NotTo(Equal(runID))
		})
	})

	Describe("after a restart", func() {
		var (
			s      *sim.Simulator
			gated  *gatedIntegrator
			first  string
			second string
		)

		BeforeEach(func() {
			gated = newGated()
			s = newSim(sim.WithIntegrator(gated))

			done, exited := make(chan struct{}), make(chan struct{})
			go func() {
				defer close(exited)
				for {
					select {
					case gated.gate <- struct{}{}:
					case <-done:
						return
					}
				}
			}()
			first = runToEnd(s, scenarioA()).RunID
			close(done)
			<-exited

			Expect(s.Reset()).To(Succeed())
			var err error
			second, err = s.Start(scenarioA())
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			gated.open()
			Expect(s.Wait(context.Background())).To(Succeed())
		})

		It("reports the new run with no samples", func() {
			st := s.Status()
			Expect(st.RunID).To(Equal(second))
			Expect(st.State).To(Equal(dynamo.Running))
			Expect(st.Samples).To(BeZero())
			Expect(st.TimeS).To(BeZero())
		})

		It("returns the earlier run's results until the new run has samples", func() {
			res, err := s.Results()
			Expect(err).NotTo(HaveOccurred())
			Expect(res.RunID).To(Equal(first))
			Expect(res.RunID).NotTo(Equal(s.Status().RunID))
			Expect(res.Final).To(BeTrue())

			gated.gate <- struct{}{}
			Eventually(func() string {
				res, _ := s.Results()
				return res.RunID
			}).Should(Equal(second))
		})

		It("keeps status consistent with concurrent readers", func() {
			var wg sync.WaitGroup
			stop := make(chan struct{})
			for i := 0; i < 4; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					seen := 0
					for {
						select {
						case <-stop:
							return
						default:
						}
						st := s.Status()
						Expect(st.RunID).To(Equal(second))
						Expect(st.Samples).To(BeNumerically(">=", seen))
						if st.Samples == 0 {
							Expect(st.TimeS).To(BeZero())
						} else {
							Expect(st.TimeS).To(BeNumerically(">", 0))
						}
						seen = st.Samples
					}
				}()
			}

			for i := 0; i < 20; i++ {
				gated.gate <- struct{}{}
			}
			Eventually(func() int { return s.Status().Samples }).Should(Equal(20))
			close(stop)
			wg.Wait()
		})
	})

	Describe("Batch", func() {
		It("runs snapshots concurrently and keeps their order", func() {
			failing := scenarioA()
			failing.Running.InitialSpeedMps = 20
			failing.Running.StopPositionsM = []float64{10}

			out := sim.NewBatch(2).Run(context.Background(), []params.Snapshot{scenarioA(), failing, route()})
			Expect(out).To(HaveLen(3))
			Expect(out[0].Run.State).To(Equal(dynamo.Completed))
			Expect(out[1].Run.State).To(Equal(dynamo.Failed))
			Expect(out[1].Err).To(MatchError(dynamo.ErrConstraint))
			Expect(out[2].Run.State).To(Equal(dynamo.Completed))
			Expect(out[2].Result.Final).To(BeTrue())
		})

		It("reports invalid snapshots without running them", func() {
			bad := scenarioA()
			bad.Train.MassKg = 0
			out := sim.NewBatch(1).Run(context.Background(), []params.Snapshot{bad})
			Expect(out[0].Err).To(MatchError(dynamo.ErrValidation))
		})
	})
})
