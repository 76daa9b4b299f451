package sim

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ossim/ossim/sim/trace"
)

// ConfigBundle holds scheduler configuration loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and do not override Config.
// String fields use empty string for "not set".
type ConfigBundle struct {
	Policy string       `yaml:"policy"`
	Log    string       `yaml:"log"`
	Trace  string       `yaml:"trace"`
	Clock  ClockConfig  `yaml:"clock"`
	RR     RRConfig     `yaml:"rr"`
	MLFQ   MLFQConfig   `yaml:"mlfq"`
	Server ServerConfig `yaml:"server"`
	Output OutputConfig `yaml:"output"`
}

// ClockConfig holds tick sizing and pacing.
type ClockConfig struct {
	TickMs        *uint32        `yaml:"tick_ms"`
	TickInterval  *time.Duration `yaml:"tick_interval"`
	StatusEveryMs *uint32        `yaml:"status_every_ms"`
}

// RRConfig holds round-robin parameters.
type RRConfig struct {
	QuantumMs *uint32 `yaml:"quantum_ms"`
}

// MLFQConfig holds multi-level feedback queue parameters.
type MLFQConfig struct {
	QuantaMs []uint32 `yaml:"quanta_ms"`
}

// ServerConfig holds the client-facing and status endpoints.
type ServerConfig struct {
	Socket       string         `yaml:"socket"`
	MaxClients   *int           `yaml:"max_clients"`
	WriteTimeout *time.Duration `yaml:"write_timeout"`
	HTTP         string         `yaml:"http"`
}

// OutputConfig holds end-of-run output settings.
type OutputConfig struct {
	Results string `yaml:"results"`
}

// LoadConfigBundle reads and parses a YAML configuration file.
// Unknown keys are rejected so that typos surface as errors.
func LoadConfigBundle(path string) (*ConfigBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var bundle ConfigBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &bundle, nil
}

// Validate checks names and parameter ranges set in the bundle.
func (b *ConfigBundle) Validate() error {
	if b.Policy != "" && !IsValidPolicy(b.Policy) {
		return fmt.Errorf("unknown policy %q; valid policies: %v", b.Policy, policyNames)
	}
	if !trace.IsValidTraceLevel(b.Trace) {
		return fmt.Errorf("unknown trace level %q", b.Trace)
	}
	if b.Clock.TickMs != nil && *b.Clock.TickMs == 0 {
		return fmt.Errorf("clock.tick_ms must be > 0")
	}
	if b.Clock.TickInterval != nil && *b.Clock.TickInterval < 0 {
		return fmt.Errorf("clock.tick_interval must be non-negative, got %v", *b.Clock.TickInterval)
	}
	if b.RR.QuantumMs != nil && *b.RR.QuantumMs == 0 {
		return fmt.Errorf("rr.quantum_ms must be > 0")
	}
	for i, q := range b.MLFQ.QuantaMs {
		if q == 0 {
			return fmt.Errorf("mlfq.quanta_ms[%d] must be > 0", i)
		}
	}
	if b.Server.MaxClients != nil && *b.Server.MaxClients <= 0 {
		return fmt.Errorf("server.max_clients must be > 0, got %d", *b.Server.MaxClients)
	}
	if b.Server.WriteTimeout != nil && *b.Server.WriteTimeout < 0 {
		return fmt.Errorf("server.write_timeout must be non-negative, got %v", *b.Server.WriteTimeout)
	}
	return nil
}

// Apply overwrites the fields of cfg that the bundle sets.
func (b *ConfigBundle) Apply(cfg *Config) {
	if b.Clock.TickMs != nil {
		cfg.TickMs = *b.Clock.TickMs
	}
	if b.Clock.TickInterval != nil {
		cfg.TickInterval = *b.Clock.TickInterval
	}
	if b.Clock.StatusEveryMs != nil {
		cfg.StatusEveryMs = *b.Clock.StatusEveryMs
	}
	if b.RR.QuantumMs != nil {
		cfg.RRQuantumMs = *b.RR.QuantumMs
	}
	if len(b.MLFQ.QuantaMs) > 0 {
		cfg.MLFQQuantaMs = append([]uint32(nil), b.MLFQ.QuantaMs...)
	}
	if b.Server.MaxClients != nil {
		cfg.MaxClients = *b.Server.MaxClients
	}
}
