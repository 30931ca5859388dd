package config

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/trainsim/internal/integrators"
	"github.com/san-kum/trainsim/internal/sim"
)

const (
	DefaultAddr         = ":8080"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultDataDir      = "runs"
	DefaultLogLevel     = "info"
)

type Config struct {
	Server     ServerConfig `yaml:"server"`
	Sim        SimConfig    `yaml:"sim"`
	DataDir    string       `yaml:"data_dir"`
	LogLevel   string       `yaml:"log_level"`
	ParamsFile string       `yaml:"params_file,omitempty"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type SimConfig struct {
	Dt          float64 `yaml:"dt"`
	Integrator  string  `yaml:"integrator"`
	MaxSimTimeS float64 `yaml:"max_sim_time_s"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
		},
		Sim: SimConfig{
			Dt:          sim.DefaultDt,
			Integrator:  integrators.Default,
			MaxSimTimeS: sim.DefaultMaxSimTime,
		},
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads a YAML config file. Fields it leaves out keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if !(c.Sim.Dt > 0) {
		return fmt.Errorf("sim.dt must be positive, got %f", c.Sim.Dt)
	}
	if !(c.Sim.MaxSimTimeS > 0) {
		return fmt.Errorf("sim.max_sim_time_s must be positive, got %f", c.Sim.MaxSimTimeS)
	}
	if _, err := integrators.New(c.Sim.Integrator); err != nil {
		return fmt.Errorf("sim.integrator: %w", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// SimOptions turns the sim section into simulator options.
func (c *Config) SimOptions() ([]sim.Option, error) {
	integ, err := integrators.New(c.Sim.Integrator)
	if err != nil {
		return nil, err
	}
	return []sim.Option{
		sim.WithIntegrator(integ),
		sim.WithDt(c.Sim.Dt),
		sim.WithMaxSimTime(c.Sim.MaxSimTimeS),
	}, nil
}
