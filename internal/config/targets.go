package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Target is one file to poll
type Target struct {
	Name      string        `yaml:"name"`
	Path      string        `yaml:"path"`
	Patterns  []string      `yaml:"patterns"`
	TimeLimit time.Duration `yaml:"time_limit"`
	Disabled  bool          `yaml:"disabled"`
}

// targetsFile is the layout of TARGETS_FILE
type targetsFile struct {
	Targets []Target `yaml:"targets"`
}

// LoadTargets loads the enabled targets from a YAML file
func LoadTargets(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	var tf targetsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}

	targets := make([]Target, 0, len(tf.Targets))
	for _, t := range tf.Targets {
		if t.Disabled {
			continue
		}
		if t.Name == "" {
			t.Name = filepath.Base(t.Path)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// Validate checks a single target
func (t Target) Validate() error {
	if t.Path == "" {
		return fmt.Errorf("target %q: path is required", t.Name)
	}
	if t.TimeLimit < 0 {
		return fmt.Errorf("target %q: time_limit must not be negative", t.Name)
	}
	return nil
}

// targetsFromEnv builds targets for TAIL_PATHS, all sharing TAIL_PATTERNS
func targetsFromEnv(paths, patterns []string) []Target {
	targets := make([]Target, 0, len(paths))
	for _, p := range paths {
		targets = append(targets, Target{
			Name:     filepath.Base(p),
			Path:     p,
			Patterns: patterns,
		})
	}
	return targets
}
