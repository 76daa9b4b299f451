package sim

// RRPolicy gives each ready process at most one quantum of CPU before sending
// it to the back of the ready queue. With N ready processes, none waits longer
// than (N-1) quanta for its next slice.
//
// Quantum progress lives on the occupant's PCB (QuantumMs), reset on every
// dispatch, so independent RRPolicy instances never share state.
type RRPolicy struct {
	tickMs    uint32
	quantumMs uint32
	ready     *Queue
}

func NewRRPolicy(tickMs, quantumMs uint32) *RRPolicy {
	return &RRPolicy{tickMs: tickMs, quantumMs: quantumMs, ready: NewQueue("ready")}
}

func (r *RRPolicy) Name() string    { return PolicyRR }
func (r *RRPolicy) Admit(p *PCB)    { r.ready.Enqueue(p) }
func (r *RRPolicy) Ready() []*Queue { return []*Queue{r.ready} }

// Quantum returns the configured quantum in simulated ms.
func (r *RRPolicy) Quantum() uint32 { return r.quantumMs }

func (r *RRPolicy) Tick(now uint32, cpu *CPU) StepResult {
	res := StepResult{Previous: cpu.Occupant()}

	if p := cpu.Occupant(); p != nil {
		p.ElapsedMs += r.tickMs
		p.QuantumMs += r.tickMs

		// completion wins over quantum expiry
		if p.ElapsedMs >= p.RequestedMs {
			cpu.Vacate()
			p.QuantumMs = 0
			res.Outcome = OutcomeFinished
			res.Completed = true
			res.Notifications = append(res.Notifications, doneFor(p, now))
		} else if p.QuantumMs >= r.quantumMs {
			cpu.Vacate()
			p.QuantumMs = 0
			r.ready.Enqueue(p)
			res.Outcome = OutcomeRequeued
		}
	}

	if cpu.Idle() {
		if next := r.ready.Dequeue(); next != nil {
			next.QuantumMs = 0
			cpu.Dispatch(next)
			res.Dispatched = next
		}
	}
	return res
}
