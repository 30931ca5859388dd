package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
	"github.com/san-kum/trainsim/internal/store"
)

const (
	metadataFile = "metadata.json"
	samplesFile  = "samples.csv"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("storage: run not found")

var _ sim.Archive = (*Store)(nil)

// Store is an on-disk archive with one directory per run.
type Store struct {
	baseDir string
	mu      sync.Mutex
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string             `json:"id"`
	State        dynamo.RunState    `json:"state"`
	Timestamp    time.Time          `json:"timestamp"`
	EndedAt      time.Time          `json:"ended_at"`
	Integrator   string             `json:"integrator"`
	Dt           float64            `json:"dt"`
	TrackLengthM float64            `json:"track_length_m"`
	Samples      int                `json:"samples"`
	Diagnostic   string             `json:"diagnostic,omitempty"`
	Metrics      map[string]float64 `json:"metrics"`
	Params       params.Snapshot    `json:"params"`
}

// Save writes the run's metadata and samples. It satisfies sim.Archive.
func (s *Store) Save(run sim.Run, result store.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runDir := filepath.Join(s.baseDir, run.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}

	meta := RunMetadata{
		ID:           run.ID,
		State:        run.State,
		Timestamp:    run.StartedAt,
		EndedAt:      run.EndedAt,
		Integrator:   run.Integrator,
		Dt:           run.Dt,
		TrackLengthM: run.Params.Track.Length(),
		Samples:      len(result.Samples),
		Metrics:      result.Metrics,
		Params:       run.Params,
	}
	if run.Err != nil {
		meta.Diagnostic = run.Err.Error()
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	csvFile, err := os.Create(filepath.Join(runDir, samplesFile))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	if err := store.WriteCSV(csvFile, result.Samples); err != nil {
		return fmt.Errorf("write samples: %w", err)
	}
	return nil
}

// List returns the metadata of every archived run, oldest first.
// Directories without readable metadata are skipped.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	slices.SortFunc(runs, func(a, b RunMetadata) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, filepath.Base(runID), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]dynamo.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, filepath.Base(runID), samplesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}
	defer file.Close()

	return store.ParseCSV(file)
}

// Latest returns the most recently started archived run.
func (s *Store) Latest() (*RunMetadata, error) {
	runs, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[len(runs)-1], nil
}
