package config

import (
	"strconv"
	"time"
)

// envMapping pairs each supported environment variable with the setter
// that applies it. Unparseable values are ignored in favor of the layer
// below, matching file-layer semantics.
var envMapping = map[string]func(*Config, string){
	"CARVE_LOG_LEVEL": func(c *Config, v string) {
		c.Logging.Level = v
	},
	"CARVE_GESTURE_SENSITIVITY": func(c *Config, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Gesture.Sensitivity = f
		}
	},
	"CARVE_GESTURE_DEAD_ZONE_PX": func(c *Config, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Gesture.DeadZonePx = f
		}
	},
	"CARVE_MIN_MAGNITUDE": func(c *Config, v string) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Engine.MinMagnitude = f
		}
	},
	"CARVE_KERNEL_TIMEOUT": func(c *Config, v string) {
		if d, err := time.ParseDuration(v); err == nil {
			c.Engine.KernelTimeout = d
		}
	},
	"CARVE_HISTORY_MAX": func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.History.MaxEntries = n
		}
	},
	"CARVE_WATCH_IMPORTS": func(c *Config, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Project.WatchImports = b
		}
	},
}

// applyEnv overlays environment variables onto cfg. The lookup function
// is injected so tests do not mutate the process environment.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	for name, apply := range envMapping {
		if v, ok := lookup(name); ok && v != "" {
			apply(cfg, v)
		}
	}
}
