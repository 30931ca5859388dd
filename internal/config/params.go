package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/trainsim/internal/params"
)

// LoadParams reads a full parameter set from a YAML file and validates it.
func LoadParams(path string) (params.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return params.Snapshot{}, err
	}
	var snap params.Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return params.Snapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := snap.Validate(); err != nil {
		return params.Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snap, nil
}

func SaveParams(path string, snap params.Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
