package store

import (
	"fmt"
	"slices"
	"sync"

	"github.com/san-kum/trainsim/internal/dynamo"
)

// Result is a view of the samples a run has produced so far.
type Result struct {
	RunID   string             `json:"run_id"`
	State   dynamo.RunState    `json:"state"`
	Final   bool               `json:"final"`
	Samples []dynamo.Sample    `json:"samples"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

func (r Result) Len() int {
	return len(r.Samples)
}

type buffer struct {
	runID   string
	state   dynamo.RunState
	samples []dynamo.Sample
	metrics map[string]float64
}

// Store holds the live buffer of the current run and the last completed
// result. Append is only called by the run's worker; readers get copies.
type Store struct {
	mu        sync.RWMutex
	live      *buffer
	completed *Result
}

func New() *Store {
	return &Store{}
}

// Begin replaces the live buffer with an empty one for runID.
func (s *Store) Begin(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = &buffer{runID: runID, state: dynamo.Running}
}

func (s *Store) Append(sample dynamo.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return
	}
	s.live.samples = append(s.live.samples, sample)
}

// Seal records the terminal state of the live run. A completed run
// becomes the retained result, replacing the previous one.
func (s *Store) Seal(state dynamo.RunState, metrics map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.live == nil {
		return fmt.Errorf("seal: %w", dynamo.ErrNotAvailable)
	}
	s.live.state = state
	s.live.metrics = metrics
	if state == dynamo.Completed {
		r := s.live.result()
		s.completed = &r
	}
	return nil
}

// Release drops the live buffer. The retained completed result stays.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live = nil
}

// Snapshot returns the live run's samples when it has any, otherwise the
// retained completed result, whose RunID may differ from the live run's.
func (s *Store) Snapshot() (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live != nil && len(s.live.samples) > 0 {
		return s.live.result(), nil
	}
	if s.completed != nil {
		r := *s.completed
		r.Samples = slices.Clip(r.Samples)
		return r, nil
	}
	return Result{}, dynamo.ErrNotAvailable
}

// Latest returns the last sample of the live run.
func (s *Store) Latest() (dynamo.Sample, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.live == nil || len(s.live.samples) == 0 {
		return dynamo.Sample{}, 0, false
	}
	n := len(s.live.samples)
	return s.live.samples[n-1], n, true
}

// result copies the slice header only: samples are never modified after
// they are appended, and the clip stops a reader's append from reaching
// the worker's spare capacity.
func (b *buffer) result() Result {
	return Result{
		RunID:   b.runID,
		State:   b.state,
		Final:   b.state == dynamo.Completed,
		Samples: slices.Clip(b.samples),
		Metrics: b.metrics,
	}
}
