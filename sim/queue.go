// Implements the Queue that holds PCBs in the command, blocked and ready structures.

package sim

import (
	"fmt"
	"strings"
)

// Queue is a FIFO sequence of PCBs with removal of arbitrary elements.
// A PCB can be held by at most one Queue (or the CPU) at a time; Enqueue panics
// on a PCB that is still owned elsewhere.
type Queue struct {
	name  string
	queue []*PCB
}

// NewQueue creates an empty queue. The name shows up in logs and snapshots.
func NewQueue(name string) *Queue {
	return &Queue{name: name}
}

func (q *Queue) ownerName() string { return q.name }

// Name returns the queue's name.
func (q *Queue) Name() string { return q.name }

// Enqueue adds a PCB to the back of the queue.
func (q *Queue) Enqueue(p *PCB) {
	if p == nil {
		panic("Enqueue: pcb must not be nil")
	}
	if p.owner != nil {
		panic(fmt.Sprintf("Enqueue: pcb %d already in %s, cannot add to %s", p.ID, p.owner.ownerName(), q.name))
	}
	p.owner = q
	q.queue = append(q.queue, p)
}

// Dequeue removes and returns the PCB at the front of the queue.
// Returns nil if the queue is empty.
func (q *Queue) Dequeue() *PCB {
	if len(q.queue) == 0 {
		return nil
	}
	p := q.queue[0]
	q.queue[0] = nil
	q.queue = q.queue[1:]
	p.owner = nil
	return p
}

// Remove detaches p from anywhere in the queue, preserving the order of the rest.
// Returns false if p is not in this queue.
func (q *Queue) Remove(p *PCB) bool {
	if p == nil || p.owner != q {
		return false
	}
	for i, cur := range q.queue {
		if cur != p {
			continue
		}
		copy(q.queue[i:], q.queue[i+1:])
		q.queue[len(q.queue)-1] = nil
		q.queue = q.queue[:len(q.queue)-1]
		p.owner = nil
		return true
	}
	return false
}

// Peek returns the PCB at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (q *Queue) Peek() *PCB {
	if len(q.queue) == 0 {
		return nil
	}
	return q.queue[0]
}

// Len returns the number of PCBs in the queue.
func (q *Queue) Len() int {
	return len(q.queue)
}

// Items returns the queue contents for iteration.
// The returned slice is the queue's internal storage: callers MUST NOT modify it,
// and must copy it first if they remove elements while iterating.
func (q *Queue) Items() []*PCB {
	return q.queue
}

func (q *Queue) String() string {
	var sb strings.Builder
	sb.WriteString(q.name)
	sb.WriteString("[")
	for i, p := range q.queue {
		fmt.Fprintf(&sb, "%d", p.PID)
		if i < len(q.queue)-1 {
			sb.WriteString(" ")
		}
	}
	sb.WriteString("]")
	return sb.String()
}
