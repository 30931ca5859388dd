package params

import (
	"fmt"
	"sync"

	"github.com/san-kum/trainsim/internal/dynamo"
)

// Store holds the four validated parameter groups. Values are copied in
// and out, so readers never share slices with the store.
type Store struct {
	mu         sync.RWMutex
	train      *TrainParameters
	electrical *ElectricalParameters
	running    *RunningParameters
	track      *TrackParameters
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) SetTrain(p TrainParameters) error {
	p = p.Clone()
	c := &checker{group: "train"}
	c.merge(p.Validate())

	s.mu.Lock()
	defer s.mu.Unlock()
	c.merge(crossCheck("train", &p, s.running, nil))
	if err := c.err(); err != nil {
		return err
	}
	s.train = &p
	return nil
}

func (s *Store) SetElectrical(p ElectricalParameters) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.electrical = &p
	return nil
}

func (s *Store) SetRunning(p RunningParameters) error {
	p = p.Clone()
	c := &checker{group: "running"}
	c.merge(p.Validate())

	s.mu.Lock()
	defer s.mu.Unlock()
	c.merge(crossCheck("running", s.train, &p, s.track))
	if err := c.err(); err != nil {
		return err
	}
	s.running = &p
	return nil
}

func (s *Store) SetTrack(p TrackParameters) error {
	p = p.Clone()
	c := &checker{group: "track"}
	c.merge(p.Validate())

	s.mu.Lock()
	defer s.mu.Unlock()
	c.merge(crossCheck("track", nil, s.running, &p))
	if err := c.err(); err != nil {
		return err
	}
	s.track = &p
	return nil
}

func notConfigured(group string) error {
	return fmt.Errorf("%s: %w", group, dynamo.ErrNotConfigured)
}

func (s *Store) Train() (TrainParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.train == nil {
		return TrainParameters{}, notConfigured("train")
	}
	return s.train.Clone(), nil
}

func (s *Store) Electrical() (ElectricalParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.electrical == nil {
		return ElectricalParameters{}, notConfigured("electrical")
	}
	return *s.electrical, nil
}

func (s *Store) Running() (RunningParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running == nil {
		return RunningParameters{}, notConfigured("running")
	}
	return s.running.Clone(), nil
}

func (s *Store) Track() (TrackParameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.track == nil {
		return TrackParameters{}, notConfigured("track")
	}
	return s.track.Clone(), nil
}

// Snapshot copies all four groups for a new run. Missing groups and failed
// cross-checks are reported together as a ValidationError.
func (s *Store) Snapshot() (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := &checker{group: "simulation"}
	for _, g := range []struct {
		name string
		set  bool
	}{
		{"train", s.train != nil},
		{"electrical", s.electrical != nil},
		{"running", s.running != nil},
		{"track", s.track != nil},
	} {
		if !g.set {
			c.fail(g.name, "not configured")
		}
	}
	if err := c.err(); err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Train:      *s.train,
		Electrical: *s.electrical,
		Running:    *s.running,
		Track:      *s.track,
	}.Clone()
	if err := snap.Validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Load replaces all four groups at once, or none of them.
func (s *Store) Load(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap = snap.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.train = &snap.Train
	s.electrical = &snap.Electrical
	s.running = &snap.Running
	s.track = &snap.Track
	return nil
}
