// sim/coordinator.go
package sim

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/ossim/ossim/sim/trace"
	"github.com/ossim/ossim/sim/wire"
)

// Coordinator owns every PCB, queue and the CPU slot, and advances them one
// tick at a time. All state is touched only from the goroutine that calls Tick
// (directly or through Run); other goroutines observe it through Inspect.
type Coordinator struct {
	cfg      Config
	policy   Policy
	listener Listener

	// Clock is the simulated time in ms at the start of the next tick.
	Clock uint32
	// command holds processes waiting for their next RUN/BLOCK request
	command *Queue
	// blocked holds processes simulating a wait, aged every tick
	blocked *Queue
	cpu     *CPU
	// live indexes every PCB that has not been destroyed
	live   map[int]*PCB
	nextID int

	Metrics *Metrics
	// Trace is nil when decision tracing is disabled.
	Trace *trace.SchedulerTrace

	atCapacity bool
	queries    chan chan *Snapshot
}

// NewCoordinator wires a policy and a listener into an empty scheduler.
// cfg must already be validated.
func NewCoordinator(cfg Config, policy Policy, listener Listener, traceConfig trace.TraceConfig) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		policy:   policy,
		listener: listener,
		command:  NewQueue("command"),
		blocked:  NewQueue("blocked"),
		cpu:      &CPU{},
		live:     make(map[int]*PCB),
		Metrics:  NewMetrics(),
		queries:  make(chan chan *Snapshot),
	}
	if traceConfig.Enabled() {
		c.Trace = trace.NewSchedulerTrace(traceConfig)
	}
	return c
}

// Policy returns the active scheduling policy.
func (c *Coordinator) Policy() Policy { return c.policy }

// Command returns the admission/command queue.
func (c *Coordinator) Command() *Queue { return c.command }

// Blocked returns the blocked queue.
func (c *Coordinator) Blocked() *Queue { return c.blocked }

// CPU returns the CPU slot.
func (c *Coordinator) CPU() *CPU { return c.cpu }

// Live returns the number of PCBs that have not been destroyed.
func (c *Coordinator) Live() int { return len(c.live) }

// Run ticks until ctx is cancelled, pausing cfg.TickInterval between ticks.
// It answers Inspect calls between ticks and closes every client channel on exit.
func (c *Coordinator) Run(ctx context.Context) error {
	logrus.Infof("Scheduler started: policy=%s, tick=%dms, interval=%v", c.policy.Name(), c.cfg.TickMs, c.cfg.TickInterval)
	defer c.shutdown()

	if c.cfg.TickInterval == 0 {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case reply := <-c.queries:
				reply <- c.snapshot()
			default:
				c.Tick()
			}
		}
	}

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reply := <-c.queries:
			reply <- c.snapshot()
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Inspect asks the running loop for a snapshot taken between two ticks.
func (c *Coordinator) Inspect(ctx context.Context) (*Snapshot, error) {
	reply := make(chan *Snapshot, 1)
	select {
	case c.queries <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tick runs one discrete time step. Phases run strictly in order, so a request
// admitted in this tick is eligible for dispatch by this tick's policy step.
func (c *Coordinator) Tick() {
	now := c.Clock

	// Phase 1: drop processes whose connection went away, accept new clients,
	// read one request from each process awaiting a command.
	c.reapClosed()
	c.acceptClients()
	c.readCommands(now)

	if c.cfg.StatusEveryMs > 0 && now%c.cfg.StatusEveryMs == 0 {
		logrus.Infof("Current time: %s s", humanize.Comma(int64(now/1000)))
	}

	// Phase 2: age blocked processes.
	c.ageBlocked(now)

	// Phase 3 and 4: run the policy, then reconcile the CPU hand-off.
	c.schedule(now)

	c.Clock += c.cfg.TickMs
}

func fields(p *PCB) logrus.Fields {
	f := logrus.Fields{"id": p.ID, "pid": p.PID}
	if p.Channel != nil {
		f["conn"] = p.Channel.ID()
	}
	return f
}

// admit creates a PCB for ch in the command queue.
func (c *Coordinator) admit(ch Channel) *PCB {
	c.nextID++
	p := NewPCB(c.nextID, ch)
	c.live[p.ID] = p
	c.command.Enqueue(p)
	return p
}

// detach removes p from whichever container holds it.
func (c *Coordinator) detach(p *PCB) {
	switch o := p.owner.(type) {
	case *Queue:
		o.Remove(p)
	case *CPU:
		o.Vacate()
	}
}

// destroy retires p. When readmit is set and the connection is still open, the
// client is admitted again with a fresh PCB so it can issue its next request.
func (c *Coordinator) destroy(p *PCB, readmit bool) {
	c.detach(p)
	p.Status = StatusTerminated
	delete(c.live, p.ID)

	if readmit && !p.Channel.Closed() {
		next := c.admit(p.Channel)
		next.PID = p.PID
		return
	}
	c.Metrics.Disconnects++
	if err := p.Channel.Close(); err != nil {
		logrus.WithFields(fields(p)).Debugf("close: %v", err)
	}
}

// send delivers msg to p's client. A failed write closes the channel; the
// process is removed at the start of a later tick.
func (c *Coordinator) send(p *PCB, msg wire.Message) {
	if err := p.Channel.Send(msg); err != nil {
		c.Metrics.SendErrors++
		logrus.WithFields(fields(p)).Warnf("write %s: %v", msg, err)
		_ = p.Channel.Close()
		return
	}
	logrus.WithFields(fields(p)).Debugf("Sent %s", msg)
}

// reapClosed destroys processes outside the command queue whose connection is
// gone. Processes awaiting a command are handled by readCommands, which first
// drains anything they sent before closing.
func (c *Coordinator) reapClosed() {
	var closed []*PCB
	for _, p := range c.live {
		if p.owner != c.command && p.Channel.Closed() {
			closed = append(closed, p)
		}
	}
	sort.Slice(closed, func(i, j int) bool { return closed[i].ID < closed[j].ID })
	for _, p := range closed {
		logrus.WithFields(fields(p)).Infof("Connection lost while %s, removing process", p.Location())
		c.destroy(p, false)
	}
}

func (c *Coordinator) acceptClients() {
	free := c.cfg.MaxClients - len(c.live)
	if free <= 0 {
		if n := c.listener.Pending(); n > 0 && !c.atCapacity {
			logrus.Warnf("At capacity (%d clients): %d connection(s) waiting for a free slot", c.cfg.MaxClients, n)
			c.atCapacity = true
		}
		return
	}
	c.atCapacity = false
	for _, ch := range c.listener.Accept(free) {
		p := c.admit(ch)
		c.Metrics.Admissions++
		logrus.WithFields(fields(p)).Info("New client connected")
	}
}

func (c *Coordinator) readCommands(now uint32) {
	pending := append([]*PCB(nil), c.command.Items()...)
	for _, p := range pending {
		msg, err := p.Channel.Recv()
		if errors.Is(err, ErrWouldBlock) {
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				logrus.WithFields(fields(p)).Info("Connection closed by remote host")
			} else {
				logrus.WithFields(fields(p)).Warnf("read: %v", err)
			}
			c.destroy(p, false)
			continue
		}

		switch msg.Request {
		case wire.RequestRun:
			c.command.Remove(p)
			p.prepareRun(msg.PID, msg.TimeMs, now)
			c.policy.Admit(p)
			logrus.WithFields(fields(p)).Debugf("Process requested RUN for %d ms", msg.TimeMs)
		case wire.RequestBlock:
			c.command.Remove(p)
			p.prepareBlock(msg.PID, msg.TimeMs, now)
			c.blocked.Enqueue(p)
			logrus.WithFields(fields(p)).Debugf("Process requested BLOCK for %d ms", msg.TimeMs)
		default:
			c.Metrics.ProtocolErrors++
			logrus.WithFields(fields(p)).Warnf("Unexpected message %s from client, discarded", msg)
			continue
		}
		c.send(p, wire.Message{PID: p.PID, Request: wire.RequestAck, TimeMs: now})
	}
}

// ageBlocked counts every blocked process down by one tick. A BLOCK admitted
// in this tick is first aged in the next one, so a BLOCK of d ms admitted at
// t gets its DONE at t+d.
func (c *Coordinator) ageBlocked(now uint32) {
	blocked := append([]*PCB(nil), c.blocked.Items()...)
	for _, p := range blocked {
		if p.blockedAt == now {
			continue
		}
		if p.RequestedMs > c.cfg.TickMs {
			p.RequestedMs -= c.cfg.TickMs
		} else {
			p.RequestedMs = 0
		}
		if p.RequestedMs > 0 {
			continue
		}
		c.blocked.Remove(p)
		p.Status = StatusAwaitingCommand
		c.command.Enqueue(p)
		c.Metrics.CompletedBlocks++
		c.record(trace.KindUnblock, p, now)
		logrus.WithFields(fields(p)).Debug("Process finished BLOCK, sending DONE")
		c.send(p, wire.Message{PID: p.PID, Request: wire.RequestDone, TimeMs: now})
	}
}

func (c *Coordinator) schedule(now uint32) {
	prevLevel := 0
	if p := c.cpu.Occupant(); p != nil {
		prevLevel = p.Level
	}

	res := c.policy.Tick(now, c.cpu)
	for _, n := range res.Notifications {
		c.send(n.Target, n.Message)
	}

	if p := res.Previous; p != nil {
		if res.Completed {
			c.Metrics.CompletedRuns++
			c.Metrics.Turnarounds = append(c.Metrics.Turnarounds, float64(now-p.readyAt))
			c.record(trace.KindComplete, p, now)
			logrus.WithFields(fields(p)).Debugf("Process finished at %d ms", now)
		}
		switch res.Outcome {
		case OutcomeFinished:
			c.destroy(p, true)
		case OutcomeVacated:
			p.Status = StatusAwaitingCommand
			p.ElapsedMs = 0
			c.command.Enqueue(p)
		case OutcomeRequeued:
			if p.Level != prevLevel {
				c.Metrics.Demotions++
				c.record(trace.KindDemote, p, now)
				logrus.WithFields(fields(p)).Debugf("Process demoted to level %d", p.Level)
			} else {
				c.Metrics.Preemptions++
				c.record(trace.KindPreempt, p, now)
				logrus.WithFields(fields(p)).Debug("Process preempted, quantum expired")
			}
		}
	}

	if d := res.Dispatched; d != nil {
		c.Metrics.Dispatches++
		if !d.dispatched {
			d.dispatched = true
			c.Metrics.Responses = append(c.Metrics.Responses, float64(now-d.readyAt))
		}
		c.record(trace.KindDispatch, d, now)
		logrus.WithFields(fields(d)).Debugf("Process scheduled on CPU at %d ms", now)
	}

	if c.cpu.Idle() {
		c.Metrics.IdleTicks++
	} else {
		c.Metrics.BusyTicks++
	}
}

func (c *Coordinator) record(kind trace.DecisionKind, p *PCB, now uint32) {
	if c.Trace == nil {
		return
	}
	c.Trace.Record(trace.DecisionRecord{
		Clock:     now,
		Kind:      kind,
		ProcessID: p.ID,
		PID:       p.PID,
		Level:     p.Level,
		ElapsedMs: p.ElapsedMs,
	})
}

func (c *Coordinator) snapshot() *Snapshot {
	s := &Snapshot{
		ClockMs: c.Clock,
		Policy:  c.policy.Name(),
		Live:    len(c.live),
		Command: viewsOf(c.command),
		Blocked: viewsOf(c.blocked),
		Metrics: c.Metrics.Report(),
	}
	if p := c.cpu.Occupant(); p != nil {
		v := viewOf(p)
		s.CPU = &v
	}
	for _, q := range c.policy.Ready() {
		s.Ready = append(s.Ready, viewsOf(q))
	}
	return s
}

// shutdown closes every client connection.
func (c *Coordinator) shutdown() {
	ids := make([]int, 0, len(c.live))
	for id := range c.live {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		_ = c.live[id].Channel.Close()
	}
	logrus.Infof("Scheduler stopped at %s ms with %d live process(es)", humanize.Comma(int64(c.Clock)), len(ids))
}
