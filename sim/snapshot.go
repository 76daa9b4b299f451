package sim

// ProcessView is a read-only copy of a PCB's externally interesting fields.
type ProcessView struct {
	ID          int    `json:"id"`
	Conn        string `json:"conn"`
	PID         int32  `json:"pid"`
	Status      string `json:"status"`
	RequestedMs uint32 `json:"requested_ms"`
	ElapsedMs   uint32 `json:"elapsed_ms"`
	Level       int    `json:"level"`
}

// Snapshot is an immutable copy of the coordinator state at a tick boundary.
// It shares no memory with the scheduler.
type Snapshot struct {
	ClockMs uint32          `json:"clock_ms"`
	Policy  string          `json:"policy"`
	Live    int             `json:"live"`
	CPU     *ProcessView    `json:"cpu"`
	Command []ProcessView   `json:"command"`
	Blocked []ProcessView   `json:"blocked"`
	Ready   [][]ProcessView `json:"ready"` // one slice per ready level, highest priority first
	Metrics MetricsReport   `json:"metrics"`
}

func viewOf(p *PCB) ProcessView {
	v := ProcessView{
		ID:          p.ID,
		PID:         p.PID,
		Status:      p.Status.String(),
		RequestedMs: p.RequestedMs,
		ElapsedMs:   p.ElapsedMs,
		Level:       p.Level,
	}
	if p.Channel != nil {
		v.Conn = p.Channel.ID()
	}
	return v
}

func viewsOf(q *Queue) []ProcessView {
	views := make([]ProcessView, 0, q.Len())
	for _, p := range q.Items() {
		views = append(views, viewOf(p))
	}
	return views
}
