// Package config loads engine configuration from three layers merged in
// precedence order: built-in defaults, an optional TOML file, and
// CARVE_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full engine configuration.
type Config struct {
	Logging LoggingConfig `toml:"logging"`
	Gesture GestureConfig `toml:"gesture"`
	Engine  EngineConfig  `toml:"engine"`
	History HistoryConfig `toml:"history"`
	Project ProjectConfig `toml:"project"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level"`
}

// GestureConfig tunes drag interpretation.
type GestureConfig struct {
	// Sensitivity scales drag displacement into the edit parameter.
	Sensitivity float64 `toml:"sensitivity"`
	// DeadZonePx is the pixel distance a pointer must travel from its
	// anchor before a drag arms.
	DeadZonePx float64 `toml:"dead_zone_px"`
	// PreviewDelta is the minimum parameter change before a new
	// provisional descriptor is emitted for preview.
	PreviewDelta float64 `toml:"preview_delta"`
}

// EngineConfig tunes edit execution.
type EngineConfig struct {
	// MinMagnitude is the epsilon below which an edit parameter counts
	// as a trivial (rejected) edit.
	MinMagnitude float64 `toml:"min_magnitude"`
	// KernelTimeout bounds a single kernel invocation.
	KernelTimeout time.Duration `toml:"kernel_timeout"`
}

// HistoryConfig tunes the undo stack.
type HistoryConfig struct {
	// MaxEntries caps the number of retained snapshots.
	MaxEntries int `toml:"max_entries"`
}

// ProjectConfig controls file handling.
type ProjectConfig struct {
	// WatchImports enables watching imported STEP files for external
	// modification.
	WatchImports bool `toml:"watch_imports"`
	// DefaultBoxSize is the edge length of the seed box for a new
	// document.
	DefaultBoxSize float64 `toml:"default_box_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Gesture: GestureConfig{
			Sensitivity:  1.0,
			DeadZonePx:   3,
			PreviewDelta: 0.01,
		},
		Engine: EngineConfig{
			MinMagnitude:  1e-6,
			KernelTimeout: 5 * time.Second,
		},
		History: HistoryConfig{MaxEntries: 64},
		Project: ProjectConfig{
			WatchImports:   true,
			DefaultBoxSize: 1.0,
		},
	}
}

// Load builds a configuration from defaults, then the TOML file at path
// (skipped silently when path is empty or the file does not exist), then
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is not an error; defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot operate with.
func (c Config) Validate() error {
	if c.Gesture.Sensitivity <= 0 {
		return fmt.Errorf("gesture.sensitivity must be positive, got %g", c.Gesture.Sensitivity)
	}
	if c.Gesture.DeadZonePx < 0 {
		return fmt.Errorf("gesture.dead_zone_px must not be negative, got %g", c.Gesture.DeadZonePx)
	}
	if c.Engine.MinMagnitude <= 0 {
		return fmt.Errorf("engine.min_magnitude must be positive, got %g", c.Engine.MinMagnitude)
	}
	if c.Engine.KernelTimeout <= 0 {
		return fmt.Errorf("engine.kernel_timeout must be positive, got %s", c.Engine.KernelTimeout)
	}
	if c.History.MaxEntries < 2 {
		return fmt.Errorf("history.max_entries must be at least 2, got %d", c.History.MaxEntries)
	}
	if c.Project.DefaultBoxSize <= 0 {
		return fmt.Errorf("project.default_box_size must be positive, got %g", c.Project.DefaultBoxSize)
	}
	return nil
}
