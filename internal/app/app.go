// Package app assembles the engine for the command-line and HTTP front
// ends: one parameter store, one simulator and the on-disk run archive.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/san-kum/trainsim/internal/config"
	"github.com/san-kum/trainsim/internal/dynamo"
	"github.com/san-kum/trainsim/internal/params"
	"github.com/san-kum/trainsim/internal/sim"
	"github.com/san-kum/trainsim/internal/storage"
)

type Context struct {
	Config  *config.Config
	Params  *params.Store
	Sim     *sim.Simulator
	Archive *storage.Store
	Logger  *log.Logger
}

// New builds a Context from cfg. A nil logger discards output. When
// cfg.ParamsFile is set, its parameter set is loaded into the store.
func New(cfg *config.Config, logger *log.Logger) (*Context, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	archive := storage.New(cfg.DataDir)
	if err := archive.Init(); err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}

	opts, err := cfg.SimOptions()
	if err != nil {
		return nil, err
	}
	opts = append(opts, sim.WithLogger(logger.WithPrefix("sim")), sim.WithArchive(archive))
	s, err := sim.New(opts...)
	if err != nil {
		return nil, err
	}

	c := &Context{
		Config:  cfg,
		Params:  params.NewStore(),
		Sim:     s,
		Archive: archive,
		Logger:  logger,
	}
	if cfg.ParamsFile != "" {
		snap, err := config.LoadParams(cfg.ParamsFile)
		if err != nil {
			return nil, err
		}
		if err := c.Params.Load(snap); err != nil {
			return nil, err
		}
		logger.Info("parameters loaded", "file", cfg.ParamsFile)
	}
	return c, nil
}

// LoadPreset replaces every parameter group with the named preset.
func (c *Context) LoadPreset(name string) error {
	snap := config.GetPreset(name)
	if snap == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	if err := c.Params.Load(*snap); err != nil {
		return err
	}
	c.Logger.Info("preset loaded", "preset", name)
	return nil
}

var ErrUnknownPreset = errors.New("app: unknown preset")

// Start snapshots the parameter store and starts a run with it.
func (c *Context) Start() (string, error) {
	snap, err := c.Params.Snapshot()
	if err != nil {
		return "", err
	}
	return c.Sim.Start(snap)
}

// RunToEnd starts a run and blocks until it finishes. Cancelling ctx
// cancels the run. The returned error is the run's own failure, if any.
func (c *Context) RunToEnd(ctx context.Context) (sim.Run, error) {
	if _, err := c.Start(); err != nil {
		return sim.Run{}, err
	}

	stop := context.AfterFunc(ctx, func() { _ = c.Sim.Cancel() })
	defer stop()
	if err := c.Sim.Wait(context.Background()); err != nil {
		return sim.Run{}, err
	}

	run, _ := c.Sim.Run()
	if run.State == dynamo.Cancelled && ctx.Err() != nil {
		return run, ctx.Err()
	}
	return run, run.Err
}
