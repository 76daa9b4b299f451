package sim

import (
	"fmt"

	"github.com/ossim/ossim/sim/wire"
)

// Outcome describes what a policy did with the process that occupied the CPU
// when the tick started.
type Outcome int

const (
	// OutcomeNone: the occupant (if any) is still on the CPU.
	OutcomeNone Outcome = iota
	// OutcomeFinished: the occupant's RUN is satisfied and the policy is done
	// with it. The coordinator destroys the PCB.
	OutcomeFinished
	// OutcomeRequeued: the occupant was preempted back into the ready structure.
	OutcomeRequeued
	// OutcomeVacated: the occupant left the CPU without being destroyed or
	// requeued. The coordinator recycles it through the command queue.
	OutcomeVacated
)

var outcomeNames = map[Outcome]string{
	OutcomeNone:     "none",
	OutcomeFinished: "finished",
	OutcomeRequeued: "requeued",
	OutcomeVacated:  "vacated",
}

func (o Outcome) String() string { return outcomeNames[o] }

// Notification is a message the coordinator must deliver to Target's client.
type Notification struct {
	Target  *PCB
	Message wire.Message
}

// StepResult is what a policy reports after one tick.
type StepResult struct {
	Previous      *PCB // CPU occupant when the tick started (nil if idle)
	Outcome       Outcome
	Completed     bool // Previous consumed all of its requested CPU time this tick
	Dispatched    *PCB // PCB moved onto the CPU this tick (nil if none)
	Notifications []Notification
}

// Policy is one scheduling algorithm. The coordinator holds exactly one Policy,
// chosen at startup, and never branches on which one it is.
type Policy interface {
	Name() string
	// Admit places a process that just issued RUN at the policy's entry point.
	Admit(p *PCB)
	// Tick charges one tick to the CPU occupant, applies completion and
	// preemption rules, and dispatches from the ready structure if the CPU is idle.
	Tick(now uint32, cpu *CPU) StepResult
	// Ready returns the ready queues, highest priority first.
	Ready() []*Queue
}

// Policy names accepted on the command line.
const (
	PolicyFIFO = "FIFO"
	PolicySJF  = "SJF"
	PolicyRR   = "RR"
	PolicyMLFQ = "MLFQ"
)

// policyNames lists valid names in the order printed by usage messages.
var policyNames = []string{PolicyFIFO, PolicySJF, PolicyRR, PolicyMLFQ}

// PolicyNames returns the valid policy names.
func PolicyNames() []string {
	return append([]string(nil), policyNames...)
}

// IsValidPolicy returns true if name selects a known policy (case-sensitive).
func IsValidPolicy(name string) bool {
	for _, n := range policyNames {
		if n == name {
			return true
		}
	}
	return false
}

// NewPolicy creates a Policy by name.
// This is the only place that switches on the policy kind.
func NewPolicy(name string, cfg Config) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch name {
	case PolicyFIFO:
		return NewFIFOPolicy(cfg.TickMs), nil
	case PolicySJF:
		return NewSJFPolicy(cfg.TickMs), nil
	case PolicyRR:
		return NewRRPolicy(cfg.TickMs, cfg.RRQuantumMs), nil
	case PolicyMLFQ:
		return NewMLFQPolicy(cfg.TickMs, cfg.MLFQQuantaMs), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", name)
	}
}

// doneFor builds the completion notification for p.
func doneFor(p *PCB, now uint32) Notification {
	return Notification{
		Target:  p,
		Message: wire.Message{PID: p.PID, Request: wire.RequestDone, TimeMs: now},
	}
}

// runToCompletion charges one tick to a non-preemptive occupant. When its RUN is
// satisfied the CPU is cleared and the result marks it finished.
func runToCompletion(now, tickMs uint32, cpu *CPU, res *StepResult) {
	p := cpu.Occupant()
	if p == nil {
		return
	}
	p.ElapsedMs += tickMs
	if p.ElapsedMs < p.RequestedMs {
		return
	}
	cpu.Vacate()
	res.Outcome = OutcomeFinished
	res.Completed = true
	res.Notifications = append(res.Notifications, doneFor(p, now))
}

// FIFOPolicy runs ready processes in arrival order, each to completion.
// A long job delays every job queued behind it.
type FIFOPolicy struct {
	tickMs uint32
	ready  *Queue
}

func NewFIFOPolicy(tickMs uint32) *FIFOPolicy {
	return &FIFOPolicy{tickMs: tickMs, ready: NewQueue("ready")}
}

func (f *FIFOPolicy) Name() string    { return PolicyFIFO }
func (f *FIFOPolicy) Admit(p *PCB)    { f.ready.Enqueue(p) }
func (f *FIFOPolicy) Ready() []*Queue { return []*Queue{f.ready} }

func (f *FIFOPolicy) Tick(now uint32, cpu *CPU) StepResult {
	res := StepResult{Previous: cpu.Occupant()}
	runToCompletion(now, f.tickMs, cpu, &res)
	if cpu.Idle() {
		if next := f.ready.Dequeue(); next != nil {
			cpu.Dispatch(next)
			res.Dispatched = next
		}
	}
	return res
}

// SJFPolicy dispatches the ready process with the smallest requested time,
// then runs it to completion (non-preemptive).
// Warning: SJF can starve long jobs under a steady stream of short ones.
type SJFPolicy struct {
	tickMs uint32
	ready  *Queue
}

func NewSJFPolicy(tickMs uint32) *SJFPolicy {
	return &SJFPolicy{tickMs: tickMs, ready: NewQueue("ready")}
}

func (s *SJFPolicy) Name() string    { return PolicySJF }
func (s *SJFPolicy) Admit(p *PCB)    { s.ready.Enqueue(p) }
func (s *SJFPolicy) Ready() []*Queue { return []*Queue{s.ready} }

func (s *SJFPolicy) Tick(now uint32, cpu *CPU) StepResult {
	res := StepResult{Previous: cpu.Occupant()}
	runToCompletion(now, s.tickMs, cpu, &res)
	if cpu.Idle() {
		if next := shortestJob(s.ready); next != nil {
			cpu.Dispatch(next)
			res.Dispatched = next
		}
	}
	return res
}

// shortestJob removes and returns the PCB with the minimum RequestedMs.
// Ties go to the earliest queued. Returns nil on an empty queue.
func shortestJob(q *Queue) *PCB {
	var shortest *PCB
	for _, p := range q.Items() {
		if shortest == nil || p.RequestedMs < shortest.RequestedMs {
			shortest = p
		}
	}
	if shortest != nil {
		q.Remove(shortest)
	}
	return shortest
}
