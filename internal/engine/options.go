package engine

import (
	"time"

	"github.com/carvecad/carve/internal/event"
	"github.com/carvecad/carve/internal/logging"
	"github.com/carvecad/carve/internal/refs"
)

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(log *logging.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log.WithComponent("engine")
		}
	}
}

// WithBus sets the event bus shared with the selection tracker and the
// front end. Defaults to a private bus.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) {
		if bus != nil {
			e.bus = bus
		}
	}
}

// WithRegistry sets the reference registry. Defaults to a fresh registry
// over the engine's kernel.
func WithRegistry(reg *refs.Registry) Option {
	return func(e *Engine) {
		if reg != nil {
			e.reg = reg
		}
	}
}

// WithMinMagnitude sets the threshold below which an edit parameter is
// treated as zero and rejected up front.
func WithMinMagnitude(m float64) Option {
	return func(e *Engine) {
		if m > 0 {
			e.minMagnitude = m
		}
	}
}

// WithKernelTimeout bounds how long one kernel invocation may run.
func WithKernelTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.kernelTimeout = d
		}
	}
}

// WithHistoryLimit caps the undo depth.
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		if n > 1 {
			e.historyLimit = n
		}
	}
}
