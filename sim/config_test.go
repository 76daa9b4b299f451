package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_MatchesReferenceDeployment(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, uint32(1), cfg.TickMs)
	assert.Equal(t, uint32(10), cfg.RRQuantumMs)
	assert.Equal(t, []uint32{8, 16, 1000000}, cfg.MLFQQuantaMs)
	assert.Len(t, cfg.MLFQQuantaMs, NumMLFQLevels)
	assert.Equal(t, 128, cfg.MaxClients)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultMLFQQuantaMs_ReturnsFreshSlice(t *testing.T) {
	a := DefaultMLFQQuantaMs()
	a[0] = 99
	assert.Equal(t, uint32(8), DefaultMLFQQuantaMs()[0])
}

func TestConfig_Validate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick", func(c *Config) { c.TickMs = 0 }},
		{"negative interval", func(c *Config) { c.TickInterval = -1 }},
		{"zero rr quantum", func(c *Config) { c.RRQuantumMs = 0 }},
		{"no mlfq levels", func(c *Config) { c.MLFQQuantaMs = nil }},
		{"zero mlfq quantum", func(c *Config) { c.MLFQQuantaMs = []uint32{8, 0} }},
		{"zero clients", func(c *Config) { c.MaxClients = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate_ZeroIntervalAllowed(t *testing.T) {
	// A zero pause runs ticks back to back; simulated time is unaffected.
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	assert.NoError(t, cfg.Validate())
}
