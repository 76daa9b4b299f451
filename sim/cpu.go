package sim

import "fmt"

// CPU is the single execution slot. It holds at most one PCB, which is never
// held by any queue at the same time.
type CPU struct {
	current *PCB
}

func (c *CPU) ownerName() string { return "cpu" }

// Occupant returns the PCB on the CPU, or nil when idle.
func (c *CPU) Occupant() *PCB {
	return c.current
}

// Idle reports whether the slot is empty.
func (c *CPU) Idle() bool {
	return c.current == nil
}

// Dispatch moves a detached PCB onto an idle CPU.
func (c *CPU) Dispatch(p *PCB) {
	if p == nil {
		panic("Dispatch: pcb must not be nil")
	}
	if c.current != nil {
		panic(fmt.Sprintf("Dispatch: cpu busy with pcb %d, cannot take pcb %d", c.current.ID, p.ID))
	}
	if p.owner != nil {
		panic(fmt.Sprintf("Dispatch: pcb %d still in %s", p.ID, p.owner.ownerName()))
	}
	p.owner = c
	c.current = p
}

// Vacate removes and returns the occupant. Returns nil if the CPU was idle.
func (c *CPU) Vacate() *PCB {
	p := c.current
	if p == nil {
		return nil
	}
	c.current = nil
	p.owner = nil
	return p
}
