// Package sim provides the discrete-event engine for a self-organizing
// wireless sensor network: nodes wake, elect a root, join a cluster tree,
// promote cluster heads and routers, route data and spend energy.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - simulator.go: the event loop, timers with lazy cancellation, options
//   - event.go: event types that drive the simulation (timer, arrival, control, deferred send)
//   - node.go: per-node state, role transitions and the receive dispatch
//
// The protocol is split by concern:
//   - join.go: probing, root election, join request/reply/ack
//   - neighbors.go: heartbeats, neighbour aging, parent loss, neighbour sharing
//   - promotion.go: network requests, router nomination, BECOME_CH, network updates
//   - routing.go: next-hop selection in priority order and relaying
//   - maintenance.go: root-triggered cleanup over node snapshots
//   - data.go: application readings
//
// Shared infrastructure:
//   - transport.go: range lookup, loss, propagation delay and TX energy
//   - energy.go: lazily accrued per-node energy ledger and timeline samples
//   - observer.go, collector.go, metrics.go: logging, tracing and Prometheus export
//   - sim/trace/: role, link and routing trace records
//   - sim/report/: CSV reports and the end-of-run summary
//
// # Determinism
//
// The engine is single-threaded. Events fire in (virtual time, insertion)
// order and every random draw comes from a PartitionedRNG subsystem, so two
// runs with the same configuration and seed produce identical state.
package sim
