// Package config loads runtime configuration from a CUE file. CUE keeps
// the config declarative and lets constraints live next to the values, so
// a bad file fails at load time instead of mid-batch.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Config is the engine's runtime configuration.
type Config struct {
	// RuleSource is the path to the rule table CSV.
	RuleSource string `json:"rule_source"`
	// Database is the path to the SQLite record store.
	Database string `json:"database"`
	// Workers bounds the parallel match phase; 0 lets the engine decide.
	Workers int `json:"workers"`
	// Parallel enables the worker pool for batches.
	Parallel bool `json:"parallel"`
	// ReloadRules re-checks the rule source at every batch boundary.
	ReloadRules bool `json:"reload_rules"`
	// MetricsAddr, when set, serves prometheus metrics at this address.
	MetricsAddr string `json:"metrics_addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		RuleSource:  "triggers.csv",
		Database:    "data/portatrack.db",
		Parallel:    true,
		ReloadRules: true,
	}
}

// Load reads and validates a CUE config file. Missing fields fall back to
// Default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse compiles CUE source into a Config.
func Parse(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return Config{}, fmt.Errorf("config: compile %s: %w", filename, err)
	}
	if err := value.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate %s: %w", filename, err)
	}

	cfg := Default()
	if err := value.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", filename, err)
	}
	if err := cfg.check(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", filename, err)
	}
	return cfg, nil
}

func (c Config) check() error {
	if c.RuleSource == "" {
		return fmt.Errorf("rule_source must not be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("database must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}
