package sim

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/store"
)

// Outcome is the terminal view of one run in a batch.
type Outcome struct {
	Run    Run
	Result store.Result
	Err    error
}

// Batch runs independent snapshots concurrently, each on its own
// Simulator, at most Workers at a time.
type Batch struct {
	Workers int
	opts    []Option
}

func NewBatch(workers int, opts ...Option) *Batch {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Batch{Workers: workers, opts: opts}
}

// Run blocks until every snapshot has finished. Cancelling ctx cancels
// the runs still in progress. Outcomes are in the order of snaps.
func (b *Batch) Run(ctx context.Context, snaps []params.Snapshot) []Outcome {
	out := make([]Outcome, len(snaps))
	sem := make(chan struct{}, b.Workers)

	var wg sync.WaitGroup
	for i := range snaps {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			out[idx] = b.runOne(ctx, snaps[idx])
		}(i)
	}
	wg.Wait()
	return out
}

func (b *Batch) runOne(ctx context.Context, snap params.Snapshot) Outcome {
	s, err := New(b.opts...)
	if err != nil {
		return Outcome{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{Err: err}
	}
	if _, err := s.Start(snap); err != nil {
		return Outcome{Err: err}
	}

	stop := context.AfterFunc(ctx, func() { _ = s.Cancel() })
	defer stop()
	_ = s.Wait(context.Background())

	run, _ := s.Run()
	res, _ := s.Results()
	return Outcome{Run: run, Result: res, Err: run.Err}
}
