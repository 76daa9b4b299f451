package trace

// TraceSummary aggregates statistics from a SchedulerTrace.
type TraceSummary struct {
	TotalDecisions   int
	ByKind           map[DecisionKind]int
	DispatchesPerPID map[int32]int // client pid → number of CPU slices
	UniquePIDs       int
	MaxDispatches    int // most slices any single pid received
}

// Summarize computes aggregate statistics from a SchedulerTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SchedulerTrace) *TraceSummary {
	summary := &TraceSummary{
		ByKind:           make(map[DecisionKind]int),
		DispatchesPerPID: make(map[int32]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Decisions)
	pids := make(map[int32]bool)
	for _, d := range st.Decisions {
		summary.ByKind[d.Kind]++
		pids[d.PID] = true
		if d.Kind == KindDispatch {
			summary.DispatchesPerPID[d.PID]++
			if n := summary.DispatchesPerPID[d.PID]; n > summary.MaxDispatches {
				summary.MaxDispatches = n
			}
		}
	}
	summary.UniquePIDs = len(pids)

	return summary
}
