package sim

import (
	"errors"
	"fmt"
	"io"

	"github.com/ossim/ossim/sim/trace"
	"github.com/ossim/ossim/sim/wire"
)

var traceDecisions = trace.TraceConfig{Level: trace.TraceLevelDecisions}

// fakeChannel is an in-memory Channel. Messages in inbox are returned one per
// Recv and every successful Send is recorded in sent.
type fakeChannel struct {
	id       string
	inbox    []wire.Message
	sent     []wire.Message
	closed   bool
	failSend bool
}

func newFakeChannel(id string, msgs ...wire.Message) *fakeChannel {
	return &fakeChannel{id: id, inbox: msgs}
}

func (f *fakeChannel) ID() string { return f.id }

func (f *fakeChannel) Recv() (wire.Message, error) {
	if len(f.inbox) > 0 {
		m := f.inbox[0]
		f.inbox = f.inbox[1:]
		return m, nil
	}
	if f.closed {
		return wire.Message{}, io.EOF
	}
	return wire.Message{}, ErrWouldBlock
}

func (f *fakeChannel) Send(m wire.Message) error {
	if f.closed {
		return errors.New("send on closed channel")
	}
	if f.failSend {
		return errors.New("broken pipe")
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeChannel) Closed() bool { return f.closed }

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

// push queues a message as if the client had just written it.
func (f *fakeChannel) push(m wire.Message) { f.inbox = append(f.inbox, m) }

// sentOf returns the recorded messages with the given request tag.
func (f *fakeChannel) sentOf(r wire.Request) []wire.Message {
	var out []wire.Message
	for _, m := range f.sent {
		if m.Request == r {
			out = append(out, m)
		}
	}
	return out
}

// fakeListener hands out pre-registered channels.
type fakeListener struct {
	pending []Channel
	closed  bool
}

func (l *fakeListener) connect(chs ...*fakeChannel) {
	for _, ch := range chs {
		l.pending = append(l.pending, ch)
	}
}

func (l *fakeListener) Accept(max int) []Channel {
	if max > len(l.pending) {
		max = len(l.pending)
	}
	out := l.pending[:max:max]
	l.pending = l.pending[max:]
	return out
}

func (l *fakeListener) Pending() int { return len(l.pending) }

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}

func run(pid int32, ms uint32) wire.Message {
	return wire.Message{PID: pid, Request: wire.RequestRun, TimeMs: ms}
}

func block(pid int32, ms uint32) wire.Message {
	return wire.Message{PID: pid, Request: wire.RequestBlock, TimeMs: ms}
}

// newRunPCB builds a detached PCB that has been admitted for a RUN of ms.
func newRunPCB(id int, ms uint32) *PCB {
	p := NewPCB(id, newFakeChannel(fmt.Sprintf("conn-%d", id)))
	p.prepareRun(int32(id), ms, 0)
	return p
}

// newTestCoordinator builds a coordinator over a fake listener with the
// default config and no tick pacing.
func newTestCoordinator(policy string, mutate func(*Config)) (*Coordinator, *fakeListener) {
	cfg := DefaultConfig()
	cfg.TickInterval = 0
	cfg.StatusEveryMs = 0
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := NewPolicy(policy, cfg)
	if err != nil {
		panic(err)
	}
	l := &fakeListener{}
	return NewCoordinator(cfg, p, l, traceDecisions), l
}

// tickUntil ticks until the clock reaches ms.
func tickUntil(c *Coordinator, ms uint32) {
	for c.Clock <= ms {
		c.Tick()
	}
}
