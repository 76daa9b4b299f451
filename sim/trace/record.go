// Package trace provides decision-trace recording for scheduler policy analysis.
// It has no dependencies on sim/ and stores pure data types.
package trace

// DecisionKind classifies a scheduling decision.
type DecisionKind string

const (
	KindDispatch DecisionKind = "dispatch" // ready -> CPU
	KindPreempt  DecisionKind = "preempt"  // CPU -> same ready level (quantum expired)
	KindDemote   DecisionKind = "demote"   // CPU -> lower ready level
	KindComplete DecisionKind = "complete" // RUN satisfied, DONE sent
	KindUnblock  DecisionKind = "unblock"  // BLOCK elapsed, DONE sent
)

// DecisionRecord captures a single scheduling decision.
type DecisionRecord struct {
	Clock     uint32
	Kind      DecisionKind
	ProcessID int   // coordinator-assigned id
	PID       int32 // client pid
	Level     int   // ready level after the decision (0 for single-queue policies)
	ElapsedMs uint32
}
