// Defines the PCB (process control block) that models one admitted client process.
// Tracks the run/block request, CPU progress, MLFQ level, and which container owns it.

package sim

import (
	"fmt"
)

// ProcessStatus represents the lifecycle state of a PCB.
// It is informational: scheduling decisions are driven by container membership.
type ProcessStatus int

const (
	StatusAwaitingCommand ProcessStatus = iota // connected, waiting for RUN/BLOCK
	StatusBlocked                              // simulating an I/O or sleep wait
	StatusRunning                              // in a ready structure or on the CPU
	StatusStopped                              // finished a request, waiting for more messages
	StatusTerminated                           // destroyed
)

var statusNames = map[ProcessStatus]string{
	StatusAwaitingCommand: "awaiting-command",
	StatusBlocked:         "blocked",
	StatusRunning:         "running",
	StatusStopped:         "stopped",
	StatusTerminated:      "terminated",
}

func (s ProcessStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ProcessStatus(%d)", int(s))
}

// owner is implemented by the containers a PCB can live in (Queue and CPU).
type owner interface {
	ownerName() string
}

// PCB models a single simulated process.
type PCB struct {
	ID      int     // assigned by the coordinator at admission, unique while the server runs
	PID     int32   // client-supplied on RUN/BLOCK, echoed in ACK/DONE
	Channel Channel // connection used to notify this client

	Status       ProcessStatus
	RequestedMs  uint32 // CPU time for RUN, remaining wait for BLOCK
	ElapsedMs    uint32 // CPU time consumed by the current RUN
	SliceStartMs uint32 // clock at the start of the current MLFQ slice
	QuantumMs    uint32 // CPU time consumed since the last RR dispatch
	Level        int    // MLFQ tier, 0 = highest priority

	owner owner // container currently holding this PCB, nil when detached

	readyAt    uint32 // clock when the current RUN entered the ready structure
	blockedAt  uint32 // clock when the current BLOCK was admitted
	dispatched bool   // current RUN has occupied the CPU at least once
}

// NewPCB creates a PCB in the AwaitingCommand state with empty run parameters.
func NewPCB(id int, ch Channel) *PCB {
	return &PCB{
		ID:      id,
		PID:     int32(id),
		Channel: ch,
		Status:  StatusAwaitingCommand,
	}
}

// Location names the container holding the PCB ("detached" if none).
func (p *PCB) Location() string {
	if p.owner == nil {
		return "detached"
	}
	return p.owner.ownerName()
}

// prepareRun resets the per-request fields for a RUN admitted at clock now.
// New runs always (re-)enter at level 0.
func (p *PCB) prepareRun(pid int32, timeMs, now uint32) {
	p.PID = pid
	p.RequestedMs = timeMs
	p.ElapsedMs = 0
	p.QuantumMs = 0
	p.Level = 0
	p.Status = StatusRunning
	p.readyAt = now
	p.dispatched = false
}

// prepareBlock resets the per-request fields for a BLOCK admitted at clock now.
func (p *PCB) prepareBlock(pid int32, timeMs, now uint32) {
	p.PID = pid
	p.RequestedMs = timeMs
	p.Status = StatusBlocked
	p.blockedAt = now
}

func (p *PCB) String() string {
	return fmt.Sprintf("PCB: (ID: %d, PID: %d, Status: %s, Requested: %dms, Elapsed: %dms, Level: %d, In: %s)",
		p.ID, p.PID, p.Status, p.RequestedMs, p.ElapsedMs, p.Level, p.Location())
}
