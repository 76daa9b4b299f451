package sim

import "fmt"

// MLFQPolicy is a multi-level feedback queue with one FIFO queue and one
// quantum per level. Level 0 has the highest priority.
//
//   - Runs enter at level 0; the coordinator resets Level before Admit.
//   - A process that uses up its level's quantum without finishing is demoted
//     one level (clamped at the lowest) and requeued.
//   - The idle CPU takes the head of the highest non-empty level.
//
// Low levels can starve; there is no priority boost.
//
// Unlike the other policies, a completed process is not finished here: the
// CPU is vacated and the coordinator recycles the PCB to the command queue.
type MLFQPolicy struct {
	tickMs uint32
	levels []*Queue
	quanta []uint32
}

// NewMLFQPolicy creates one level per entry in quantaMs.
func NewMLFQPolicy(tickMs uint32, quantaMs []uint32) *MLFQPolicy {
	m := &MLFQPolicy{
		tickMs: tickMs,
		levels: make([]*Queue, len(quantaMs)),
		quanta: append([]uint32(nil), quantaMs...),
	}
	for i := range m.levels {
		m.levels[i] = NewQueue(fmt.Sprintf("ready-%d", i))
	}
	return m
}

func (m *MLFQPolicy) Name() string    { return PolicyMLFQ }
func (m *MLFQPolicy) Admit(p *PCB)    { m.levels[0].Enqueue(p) }
func (m *MLFQPolicy) Ready() []*Queue { return m.levels }

// Quantum returns the quantum of the given level.
func (m *MLFQPolicy) Quantum(level int) uint32 { return m.quanta[level] }

func (m *MLFQPolicy) Tick(now uint32, cpu *CPU) StepResult {
	res := StepResult{Previous: cpu.Occupant()}

	if p := cpu.Occupant(); p != nil {
		p.ElapsedMs += m.tickMs

		if p.ElapsedMs >= p.RequestedMs {
			cpu.Vacate()
			res.Outcome = OutcomeVacated
			res.Completed = true
			res.Notifications = append(res.Notifications, doneFor(p, now))
			return res
		}

		// slice time includes the tick being charged now
		slice := now - p.SliceStartMs + m.tickMs
		if slice >= m.quanta[p.Level] {
			cpu.Vacate()
			p.SliceStartMs = now
			if p.Level < len(m.levels)-1 {
				p.Level++
			}
			m.levels[p.Level].Enqueue(p)
			res.Outcome = OutcomeRequeued
			return res
		}
		return res
	}

	for _, q := range m.levels {
		if next := q.Dequeue(); next != nil {
			next.SliceStartMs = now
			cpu.Dispatch(next)
			res.Dispatched = next
			break
		}
	}
	return res
}
