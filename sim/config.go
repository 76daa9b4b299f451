package sim

import (
	"fmt"
	"time"
)

// Default process-wide parameters.
const (
	DefaultTickMs        = 1
	DefaultTickInterval  = time.Millisecond
	DefaultRRQuantumMs   = 10
	DefaultMaxClients    = 128
	DefaultStatusEveryMs = 1000
	NumMLFQLevels        = 3
)

// DefaultMLFQQuantaMs returns the per-level MLFQ quanta: short at the top,
// effectively unbounded at the bottom.
func DefaultMLFQQuantaMs() []uint32 {
	return []uint32{8, 16, 1000000}
}

// Config groups the scheduler parameters fixed at start time.
type Config struct {
	TickMs        uint32        // simulated milliseconds per tick (must be > 0)
	TickInterval  time.Duration // wall-clock pause between ticks (0 = run flat out)
	RRQuantumMs   uint32        // round-robin quantum (must be > 0)
	MLFQQuantaMs  []uint32      // one quantum per MLFQ level, highest priority first
	MaxClients    int           // live connections admitted at once (must be > 0)
	StatusEveryMs uint32        // simulated ms between clock log lines (0 = never)
}

// DefaultConfig returns the parameters used by the reference deployment.
func DefaultConfig() Config {
	return Config{
		TickMs:        DefaultTickMs,
		TickInterval:  DefaultTickInterval,
		RRQuantumMs:   DefaultRRQuantumMs,
		MLFQQuantaMs:  DefaultMLFQQuantaMs(),
		MaxClients:    DefaultMaxClients,
		StatusEveryMs: DefaultStatusEveryMs,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.TickMs == 0 {
		return fmt.Errorf("tick must be positive")
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick interval must be non-negative, got %v", c.TickInterval)
	}
	if c.RRQuantumMs == 0 {
		return fmt.Errorf("round-robin quantum must be positive")
	}
	if len(c.MLFQQuantaMs) == 0 {
		return fmt.Errorf("MLFQ needs at least one level")
	}
	for i, q := range c.MLFQQuantaMs {
		if q == 0 {
			return fmt.Errorf("MLFQ quantum for level %d must be positive", i)
		}
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("max clients must be positive, got %d", c.MaxClients)
	}
	return nil
}
