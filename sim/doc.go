// Package sim provides the tick-driven CPU scheduling engine for ossim.
//
// # Reading Guide
//
// Start with these three files to understand the scheduling kernel:
//   - pcb.go: the PCB, its lifecycle states and single-container ownership
//   - scheduler.go: the Policy interface, FIFO and SJF (rr.go and mlfq.go hold the rest)
//   - coordinator.go: the tick loop (admit, age blocked, schedule, reconcile)
//
// # Architecture
//
// The sim package owns all scheduler state and talks to clients only through
// the Channel and Listener interfaces. Implementations live in sub-packages:
//   - sim/wire/: the fixed 12-byte message record
//   - sim/transport/: Unix-domain socket Listener and Channel
//   - sim/status/: read-only HTTP view of coordinator snapshots
//   - sim/trace/: decision trace recording
//
// # Time
//
// Time is simulated. The clock starts at 0 and advances by Config.TickMs per
// tick; Config.TickInterval only paces ticks against the wall clock. Every
// ACK and DONE carries the clock of the tick that produced it.
package sim
