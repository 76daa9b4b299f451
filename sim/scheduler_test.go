package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossim/ossim/sim/wire"
)

// tickRange runs p.Tick for every ms in [from, to] and returns the results.
func tickRange(p Policy, cpu *CPU, from, to uint32) []StepResult {
	var out []StepResult
	for now := from; now <= to; now++ {
		out = append(out, p.Tick(now, cpu))
	}
	return out
}

func TestNewPolicy_AllNames(t *testing.T) {
	for _, name := range PolicyNames() {
		t.Run(name, func(t *testing.T) {
			p, err := NewPolicy(name, DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, name, p.Name())
			assert.True(t, IsValidPolicy(name))
		})
	}
}

func TestNewPolicy_UnknownName_Errors(t *testing.T) {
	for _, name := range []string{"", "fifo", "LOTTERY"} {
		_, err := NewPolicy(name, DefaultConfig())
		assert.Error(t, err, "name %q", name)
		assert.False(t, IsValidPolicy(name))
	}
}

func TestNewPolicy_InvalidConfig_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RRQuantumMs = 0
	_, err := NewPolicy(PolicyRR, cfg)
	assert.Error(t, err)
}

func TestNewPolicy_MLFQLevelsFollowConfig(t *testing.T) {
	cfg := DefaultConfig()
	p, err := NewPolicy(PolicyMLFQ, cfg)
	require.NoError(t, err)
	assert.Len(t, p.Ready(), NumMLFQLevels)
	assert.Equal(t, "ready-0", p.Ready()[0].Name())
}

func TestFIFOPolicy_RunsToCompletionInArrivalOrder(t *testing.T) {
	// GIVEN FIFO with a long job queued ahead of a short one
	f := NewFIFOPolicy(1)
	cpu := &CPU{}
	long, short := newRunPCB(1, 30), newRunPCB(2, 10)
	f.Admit(long)
	f.Admit(short)

	// WHEN ticking from 0
	first := f.Tick(0, cpu)

	// THEN the first arrival is dispatched and never preempted before it finishes
	assert.Same(t, long, first.Dispatched)
	for _, res := range tickRange(f, cpu, 1, 29) {
		assert.Equal(t, OutcomeNone, res.Outcome)
		assert.Nil(t, res.Dispatched)
		assert.Same(t, long, cpu.Occupant())
	}

	done := f.Tick(30, cpu)
	assert.Equal(t, OutcomeFinished, done.Outcome)
	assert.True(t, done.Completed)
	assert.Same(t, long, done.Previous)
	require.Len(t, done.Notifications, 1)
	assert.Equal(t, wire.Message{PID: 1, Request: wire.RequestDone, TimeMs: 30}, done.Notifications[0].Message)
	// the short job takes the CPU in the same tick
	assert.Same(t, short, done.Dispatched)
	assert.Equal(t, "detached", long.Location())
}

func TestFIFOPolicy_IdleWithEmptyQueue(t *testing.T) {
	f := NewFIFOPolicy(1)
	cpu := &CPU{}
	res := f.Tick(0, cpu)
	assert.Nil(t, res.Previous)
	assert.Nil(t, res.Dispatched)
	assert.True(t, cpu.Idle())
}

func TestSJFPolicy_DispatchesShortestFirst(t *testing.T) {
	// GIVEN ready jobs requesting [30, 10, 20]
	s := NewSJFPolicy(1)
	cpu := &CPU{}
	a, b, c := newRunPCB(1, 30), newRunPCB(2, 10), newRunPCB(3, 20)
	s.Admit(a)
	s.Admit(b)
	s.Admit(c)

	// WHEN the CPU is idle
	res := s.Tick(0, cpu)

	// THEN the 10 ms job runs and the others stay queued in order
	assert.Same(t, b, res.Dispatched)
	assert.Equal(t, []int32{1, 3}, pids(s.Ready()[0]))

	// AND after it completes the 20 ms job follows
	res = tickRange(s, cpu, 1, 10)[9]
	assert.Equal(t, OutcomeFinished, res.Outcome)
	assert.Same(t, c, res.Dispatched)
}

func TestSJFPolicy_NoPreemptionByShorterArrival(t *testing.T) {
	s := NewSJFPolicy(1)
	cpu := &CPU{}
	long := newRunPCB(1, 50)
	s.Admit(long)
	s.Tick(0, cpu)

	s.Admit(newRunPCB(2, 1))
	for _, res := range tickRange(s, cpu, 1, 49) {
		assert.Nil(t, res.Dispatched)
	}
	assert.Same(t, long, cpu.Occupant())
}

func TestShortestJob(t *testing.T) {
	t.Run("tie goes to earliest queued", func(t *testing.T) {
		q := NewQueue("ready")
		first, second := newRunPCB(1, 10), newRunPCB(2, 10)
		q.Enqueue(first)
		q.Enqueue(second)
		assert.Same(t, first, shortestJob(q))
		assert.Equal(t, 1, q.Len())
	})
	t.Run("single element", func(t *testing.T) {
		q := NewQueue("ready")
		only := newRunPCB(1, 99)
		q.Enqueue(only)
		assert.Same(t, only, shortestJob(q))
		assert.Zero(t, q.Len())
	})
	t.Run("empty queue", func(t *testing.T) {
		assert.Nil(t, shortestJob(NewQueue("ready")))
	})
}

func TestRRPolicy_PreemptsAtQuantum(t *testing.T) {
	// GIVEN RR with a 10 ms quantum and two 25 ms jobs
	r := NewRRPolicy(1, 10)
	cpu := &CPU{}
	a, b := newRunPCB(1, 25), newRunPCB(2, 25)
	r.Admit(a)
	r.Admit(b)
	r.Tick(0, cpu)

	// WHEN the first job has consumed a full quantum
	for _, res := range tickRange(r, cpu, 1, 9) {
		assert.Equal(t, OutcomeNone, res.Outcome)
	}
	res := r.Tick(10, cpu)

	// THEN it goes to the back of the ready queue with its progress intact
	assert.Equal(t, OutcomeRequeued, res.Outcome)
	assert.False(t, res.Completed)
	assert.Same(t, a, res.Previous)
	assert.Same(t, b, res.Dispatched)
	assert.Equal(t, uint32(10), a.ElapsedMs)
	assert.Zero(t, a.QuantumMs)
	assert.Equal(t, StatusRunning, a.Status)
	assert.Equal(t, []int32{1}, pids(r.Ready()[0]))
	assert.Empty(t, res.Notifications)
}

func TestRRPolicy_CompletionWinsOverQuantumExpiry(t *testing.T) {
	r := NewRRPolicy(1, 10)
	cpu := &CPU{}
	p := newRunPCB(1, 10)
	r.Admit(p)
	r.Tick(0, cpu)

	res := tickRange(r, cpu, 1, 10)[9]

	assert.Equal(t, OutcomeFinished, res.Outcome)
	assert.True(t, res.Completed)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, wire.RequestDone, res.Notifications[0].Message.Request)
	assert.Zero(t, r.Ready()[0].Len())
	assert.True(t, cpu.Idle())
}

func TestRRPolicy_SoleProcessRedispatched(t *testing.T) {
	r := NewRRPolicy(1, 10)
	cpu := &CPU{}
	p := newRunPCB(1, 25)
	r.Admit(p)
	r.Tick(0, cpu)

	res := tickRange(r, cpu, 1, 10)[9]

	assert.Equal(t, OutcomeRequeued, res.Outcome)
	assert.Same(t, p, res.Dispatched)
	assert.Same(t, p, cpu.Occupant())
}

func TestRRPolicy_BoundedWait(t *testing.T) {
	// GIVEN three long jobs under a 10 ms quantum
	r := NewRRPolicy(1, 10)
	cpu := &CPU{}
	for id := 1; id <= 3; id++ {
		r.Admit(newRunPCB(id, 1000))
	}

	// WHEN running for a while
	lastDispatch := map[int32]uint32{}
	maxGap := uint32(0)
	for now := uint32(0); now < 300; now++ {
		res := r.Tick(now, cpu)
		if d := res.Dispatched; d != nil {
			if prev, ok := lastDispatch[d.PID]; ok && now-prev > maxGap {
				maxGap = now - prev
			}
			lastDispatch[d.PID] = now
		}
	}

	// THEN no job waits longer than (N-1) quanta between its slices
	assert.LessOrEqual(t, maxGap, uint32(3*10))
	assert.Len(t, lastDispatch, 3)
}

func TestMLFQPolicy_NewRunsEnterTopLevel(t *testing.T) {
	m := NewMLFQPolicy(1, DefaultMLFQQuantaMs())
	p := newRunPCB(1, 100)
	m.Admit(p)
	assert.Equal(t, "ready-0", p.Location())
	assert.Zero(t, p.Level)
}

func TestMLFQPolicy_DemotesAfterQuantum(t *testing.T) {
	// GIVEN MLFQ with quanta [8, 16, 1000000] and one long job
	m := NewMLFQPolicy(1, []uint32{8, 16, 1000000})
	cpu := &CPU{}
	p := newRunPCB(1, 100)
	m.Admit(p)
	m.Tick(0, cpu)
	assert.Equal(t, uint32(0), p.SliceStartMs)

	// WHEN the level-0 slice runs out (counting the tick being charged)
	for _, res := range tickRange(m, cpu, 1, 6) {
		assert.Equal(t, OutcomeNone, res.Outcome)
	}
	res := m.Tick(7, cpu)

	// THEN it moves one level down with its slice restarted at the demotion tick
	assert.Equal(t, OutcomeRequeued, res.Outcome)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, uint32(7), p.SliceStartMs)
	assert.Equal(t, "ready-1", p.Location())
	assert.Equal(t, uint32(7), p.ElapsedMs)
	// the CPU stays idle for the rest of the tick
	assert.Nil(t, res.Dispatched)
	assert.True(t, cpu.Idle())

	// AND the next tick dispatches it again from level 1
	res = m.Tick(8, cpu)
	assert.Same(t, p, res.Dispatched)
	assert.Equal(t, uint32(8), p.SliceStartMs)
}

func TestMLFQPolicy_LowestLevelClamped(t *testing.T) {
	m := NewMLFQPolicy(1, []uint32{1, 1})
	cpu := &CPU{}
	p := newRunPCB(1, 100)
	m.Admit(p)

	for now := uint32(0); now < 20; now++ {
		m.Tick(now, cpu)
	}
	assert.Equal(t, 1, p.Level)
}

func TestMLFQPolicy_HigherLevelFirst(t *testing.T) {
	// GIVEN a demoted job at level 1 and a fresh job at level 0
	m := NewMLFQPolicy(1, []uint32{8, 16, 1000000})
	cpu := &CPU{}
	old := newRunPCB(1, 100)
	m.Admit(old)
	for now := uint32(0); now <= 7; now++ {
		m.Tick(now, cpu)
	}
	require.Equal(t, 1, old.Level)
	fresh := newRunPCB(2, 100)
	m.Admit(fresh)

	// WHEN the CPU is idle
	res := m.Tick(8, cpu)

	// THEN level 0 wins
	assert.Same(t, fresh, res.Dispatched)
}

func TestMLFQPolicy_CompletionVacates(t *testing.T) {
	// GIVEN a short job and a second ready job
	m := NewMLFQPolicy(1, DefaultMLFQQuantaMs())
	cpu := &CPU{}
	p, next := newRunPCB(1, 5), newRunPCB(2, 5)
	m.Admit(p)
	m.Admit(next)
	m.Tick(0, cpu)

	// WHEN the first job finishes
	res := tickRange(m, cpu, 1, 5)[4]

	// THEN the CPU is vacated for the coordinator to recycle, and no one
	// else is dispatched until the next tick
	assert.Equal(t, OutcomeVacated, res.Outcome)
	assert.True(t, res.Completed)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, wire.Message{PID: 1, Request: wire.RequestDone, TimeMs: 5}, res.Notifications[0].Message)
	assert.Nil(t, res.Dispatched)
	assert.Equal(t, "detached", p.Location())

	assert.Same(t, next, m.Tick(6, cpu).Dispatched)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "requeued", OutcomeRequeued.String())
	assert.Equal(t, "vacated", OutcomeVacated.String())
}
