package trace

// TraceLevel controls the verbosity of decision tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelDecisions captures every dispatch, preemption, demotion and completion.
	TraceLevelDecisions TraceLevel = "decisions"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:      true,
	TraceLevelDecisions: true,
	"":                  true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// Enabled reports whether the config asks for any records.
func (c TraceConfig) Enabled() bool {
	return c.Level == TraceLevelDecisions
}

// SchedulerTrace collects decision records during a scheduler run, in tick order.
type SchedulerTrace struct {
	Config    TraceConfig
	Decisions []DecisionRecord
}

// NewSchedulerTrace creates a SchedulerTrace ready for recording.
func NewSchedulerTrace(config TraceConfig) *SchedulerTrace {
	return &SchedulerTrace{
		Config:    config,
		Decisions: make([]DecisionRecord, 0),
	}
}

// Record appends a decision record. Safe on a nil trace.
func (st *SchedulerTrace) Record(record DecisionRecord) {
	if st == nil {
		return
	}
	st.Decisions = append(st.Decisions, record)
}

// ForPID returns the records for one client pid, in order.
func (st *SchedulerTrace) ForPID(pid int32) []DecisionRecord {
	if st == nil {
		return nil
	}
	var out []DecisionRecord
	for _, d := range st.Decisions {
		if d.PID == pid {
			out = append(out, d)
		}
	}
	return out
}
