// Tracks scheduler-wide and per-request statistics such as:
// completed runs and blocks, preemptions, CPU utilization, and turnaround/response times.

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/montanaflynn/stats"
)

// Metrics aggregates statistics about the scheduler run for final reporting.
// Owned by the coordinator goroutine; read it only after Run returns or
// through a Snapshot.
type Metrics struct {
	Admissions      int // connections admitted
	Disconnects     int // connections lost or closed
	CompletedRuns   int // RUN requests answered with DONE
	CompletedBlocks int // BLOCK requests answered with DONE
	Dispatches      int // ready -> CPU transitions
	Preemptions     int // quantum expiries requeued at the same level
	Demotions       int // MLFQ quantum expiries moved to a lower level
	ProtocolErrors  int // unexpected or malformed client messages
	SendErrors      int // failed ACK/DONE deliveries

	BusyTicks int64 // ticks that ended with a process on the CPU
	IdleTicks int64 // ticks that ended with the CPU empty

	Turnarounds []float64 // per completed RUN: completion - ready (ms)
	Responses   []float64 // per RUN: first dispatch - ready (ms)
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		Turnarounds: make([]float64, 0),
		Responses:   make([]float64, 0),
	}
}

// Distribution summarizes a latency sample in simulated ms.
type Distribution struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P90   float64 `json:"p90_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// NewDistribution computes mean and percentiles; an empty sample yields zeros.
func NewDistribution(data []float64) Distribution {
	d := Distribution{Count: len(data)}
	if len(data) == 0 {
		return d
	}
	d.Mean, _ = stats.Mean(data)
	d.P50, _ = stats.Percentile(data, 50)
	d.P90, _ = stats.Percentile(data, 90)
	d.P99, _ = stats.Percentile(data, 99)
	d.Max, _ = stats.Max(data)
	return d
}

// MetricsReport is the serializable summary of a Metrics.
type MetricsReport struct {
	Admissions      int          `json:"admissions"`
	Disconnects     int          `json:"disconnects"`
	CompletedRuns   int          `json:"completed_runs"`
	CompletedBlocks int          `json:"completed_blocks"`
	Dispatches      int          `json:"dispatches"`
	Preemptions     int          `json:"preemptions"`
	Demotions       int          `json:"demotions"`
	ProtocolErrors  int          `json:"protocol_errors"`
	SendErrors      int          `json:"send_errors"`
	BusyTicks       int64        `json:"busy_ticks"`
	IdleTicks       int64        `json:"idle_ticks"`
	Utilization     float64      `json:"cpu_utilization"`
	Turnaround      Distribution `json:"turnaround"`
	Response        Distribution `json:"response"`
}

// Report computes the summary.
func (m *Metrics) Report() MetricsReport {
	r := MetricsReport{
		Admissions:      m.Admissions,
		Disconnects:     m.Disconnects,
		CompletedRuns:   m.CompletedRuns,
		CompletedBlocks: m.CompletedBlocks,
		Dispatches:      m.Dispatches,
		Preemptions:     m.Preemptions,
		Demotions:       m.Demotions,
		ProtocolErrors:  m.ProtocolErrors,
		SendErrors:      m.SendErrors,
		BusyTicks:       m.BusyTicks,
		IdleTicks:       m.IdleTicks,
		Turnaround:      NewDistribution(m.Turnarounds),
		Response:        NewDistribution(m.Responses),
	}
	if total := m.BusyTicks + m.IdleTicks; total > 0 {
		r.Utilization = float64(m.BusyTicks) / float64(total)
	}
	return r
}

// Print displays aggregated metrics at the end of the run.
func (m *Metrics) Print(w io.Writer, clockMs uint32) {
	r := m.Report()
	fmt.Fprintln(w, "=== Scheduler Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %s ms\n", humanize.Comma(int64(clockMs)))
	fmt.Fprintf(w, "Connections          : %s admitted, %s closed\n", humanize.Comma(int64(r.Admissions)), humanize.Comma(int64(r.Disconnects)))
	fmt.Fprintf(w, "Completed RUN        : %s\n", humanize.Comma(int64(r.CompletedRuns)))
	fmt.Fprintf(w, "Completed BLOCK      : %s\n", humanize.Comma(int64(r.CompletedBlocks)))
	fmt.Fprintf(w, "Dispatches           : %s\n", humanize.Comma(int64(r.Dispatches)))
	fmt.Fprintf(w, "Preemptions          : %s\n", humanize.Comma(int64(r.Preemptions)))
	fmt.Fprintf(w, "Demotions            : %s\n", humanize.Comma(int64(r.Demotions)))
	fmt.Fprintf(w, "CPU Utilization      : %.2f%%\n", r.Utilization*100)
	if r.ProtocolErrors > 0 || r.SendErrors > 0 {
		fmt.Fprintf(w, "Errors               : %d protocol, %d send\n", r.ProtocolErrors, r.SendErrors)
	}
	if r.Turnaround.Count > 0 {
		fmt.Fprintf(w, "Turnaround (ms)      : mean %.2f, p50 %.2f, p90 %.2f, p99 %.2f\n",
			r.Turnaround.Mean, r.Turnaround.P50, r.Turnaround.P90, r.Turnaround.P99)
	}
	if r.Response.Count > 0 {
		fmt.Fprintf(w, "Response (ms)        : mean %.2f, p50 %.2f, p90 %.2f, p99 %.2f\n",
			r.Response.Mean, r.Response.P50, r.Response.P90, r.Response.P99)
	}
}

// MetricsOutput is the JSON document written by SaveResults.
type MetricsOutput struct {
	Policy  string        `json:"policy"`
	ClockMs uint32        `json:"clock_ms"`
	Metrics MetricsReport `json:"metrics"`
}

// SaveResults writes the report as indented JSON to outputPath.
func (m *Metrics) SaveResults(policy string, clockMs uint32, outputPath string) error {
	data, err := json.MarshalIndent(MetricsOutput{Policy: policy, ClockMs: clockMs, Metrics: m.Report()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metrics: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", outputPath, err)
	}
	return nil
}
