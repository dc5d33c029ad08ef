// sim/simulator.go
package sim

import (
	"container/heap"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wsn-sim/wsn-sim/sim/trace"
)

// eventEntry wraps an Event with its fire time and a sequence ID for
// deterministic FIFO tie-breaking when fire times are equal.
type eventEntry struct {
	at    float64
	seqID int64
	event Event
}

// EventQueue is a min-heap ordered by (fire time, seqID).
// Implements heap.Interface.
type EventQueue []eventEntry

func (q EventQueue) Len() int { return len(q) }

func (q EventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seqID < q[j].seqID
}

func (q EventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *EventQueue) Push(x any) {
	*q = append(*q, x.(eventEntry))
}

func (q *EventQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

type timerKey struct {
	node int
	name TimerName
}

// Simulator owns the virtual clock, the event queue and the node table.
// It is single-threaded: every handler runs to completion before the next
// event is popped.
type Simulator struct {
	Clock  float64
	Config SimConfig
	Nodes  []*Node
	RunID  uuid.UUID
	// Metrics holds run-wide counters; per-node routing counters live on each Node.
	Metrics        *Metrics
	EnergyTimeline []EnergySample
	Trace          *trace.SimulationTrace

	queue    EventQueue
	nextSeq  int64
	timers   map[timerKey]uint64
	timerGen uint64
	started  bool

	rng         *PartitionedRNG
	positions   []Position
	ranges      RangeProvider
	transport   *Transport
	observers   Observers
	collector   *Collector
	maintenance *MaintenanceController
}

// Option customizes a Simulator at construction time.
type Option func(*Simulator)

// WithTopology replaces generated placement with explicit positions and range facts.
func WithTopology(positions []Position, ranges RangeProvider) Option {
	return func(s *Simulator) {
		s.positions = positions
		s.ranges = ranges
	}
}

// WithObserver adds an observational sink.
func WithObserver(o Observer) Option {
	return func(s *Simulator) {
		s.observers = append(s.observers, o)
	}
}

// WithCollector exports counters through a Prometheus collector.
func WithCollector(c *Collector) Option {
	return func(s *Simulator) {
		s.collector = c
	}
}

// WithTrace records role and routing decisions into st.
func WithTrace(st *trace.SimulationTrace) Option {
	return func(s *Simulator) {
		s.Trace = st
	}
}

// New validates cfg and builds the node table. Configuration errors are
// returned before any event is scheduled.
func New(cfg SimConfig, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Simulator{
		Config:      cfg,
		Metrics:     NewMetrics(),
		queue:       make(EventQueue, 0),
		timers:      make(map[timerKey]uint64),
		rng:         NewPartitionedRNG(cfg.Seed),
		maintenance: NewMaintenanceController(cfg.Maintenance),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.positions == nil {
		positions, err := PlaceNodes(cfg.Topology, cfg.NodeCount, s.rng.ForSubsystem(SubsystemPlacement))
		if err != nil {
			return nil, err
		}
		s.positions = positions
	}
	if len(s.positions) != cfg.NodeCount {
		return nil, fmt.Errorf("%w: topology has %d positions for %d nodes", ErrInvalidConfig, len(s.positions), cfg.NodeCount)
	}
	if s.ranges == nil {
		s.ranges = NewDiscRange(s.positions, cfg.Topology.TxRange)
	}

	runID, err := uuid.NewRandomFromReader(s.rng.ForSubsystem(SubsystemRunID))
	if err != nil {
		return nil, fmt.Errorf("generating run id: %w", err)
	}
	s.RunID = runID

	s.observers = append(Observers{LogObserver{}}, s.observers...)
	if s.Trace != nil && s.Trace.Config.Level != trace.TraceLevelNone {
		s.observers = append(s.observers, &TraceObserver{Trace: s.Trace})
	}
	if s.collector != nil {
		s.observers = append(s.observers, s.collector)
	}

	s.transport = newTransport(s, s.ranges, cfg.PacketLoss, s.rng.ForSubsystem(SubsystemLoss), cfg.PropagationDelay)
	s.Nodes = make([]*Node, cfg.NodeCount)
	for id := range s.Nodes {
		s.Nodes[id] = newNode(id, s.positions[id], s)
	}
	return s, nil
}

// Start schedules every node's arrival timer. Root wakes exactly at the
// startup delay; the others are spread uniformly after it. Safe to call twice.
func (sim *Simulator) Start() {
	if sim.started {
		return
	}
	sim.started = true
	arrivals := sim.rng.ForSubsystem(SubsystemArrival)
	for _, n := range sim.Nodes {
		delay := sim.Config.StartupDelay
		if n.ID != sim.Config.RootID && sim.Config.ArrivalSpread > 0 {
			delay += arrivals.Float64() * sim.Config.ArrivalSpread
		}
		sim.SetTimer(n.ID, TimerArrival, delay)
	}
	logrus.Infof("[t=%9.3f] run %s started with %d nodes, root %d", sim.Clock, sim.RunID, len(sim.Nodes), sim.Config.RootID)
}

// Schedule inserts ev to fire delay seconds from now. A negative delay is a
// programming error and panics.
func (sim *Simulator) Schedule(delay float64, ev Event) {
	if delay < 0 || math.IsNaN(delay) {
		panic(fmt.Sprintf("sim: negative schedule delay %v for %T", delay, ev))
	}
	heap.Push(&sim.queue, eventEntry{at: sim.Clock + delay, seqID: sim.nextSeq, event: ev})
	sim.nextSeq++
}

// Pending returns the number of queued events, cancelled timers included.
func (sim *Simulator) Pending() int { return len(sim.queue) }

// Run dispatches events in (time, insertion) order until the next event lies
// beyond until or the queue empties. The clock then rests at until and every
// battery is settled, so idle drain that emptied one is recorded as a death.
func (sim *Simulator) Run(until float64) {
	sim.Start()
	for sim.Step(until) {
	}
	if until > sim.Clock && !math.IsInf(until, 1) {
		sim.Clock = until
	}
	for _, n := range sim.Nodes {
		n.settleEnergy()
	}
	sim.Metrics.SimEndedTime = sim.Clock
	sim.collector.SetRoleCounts(sim.RoleCounts())
	logrus.Infof("[t=%9.3f] simulation ended, %d events processed", sim.Clock, sim.Metrics.EventsProcessed)
}

// Step pops the next event if it is due at or before until and executes it
// unless its target is dead. It returns false once nothing is due.
func (sim *Simulator) Step(until float64) bool {
	if len(sim.queue) == 0 || sim.queue[0].at > until {
		return false
	}
	entry := heap.Pop(&sim.queue).(eventEntry)
	sim.Clock = entry.at
	if sim.targetDead(entry.event.Target()) {
		sim.Metrics.EventsDropped++
		return true
	}
	sim.Metrics.EventsProcessed++
	entry.event.Execute(sim)
	return true
}

func (sim *Simulator) targetDead(id int) bool {
	if id < 0 || id >= len(sim.Nodes) {
		return false
	}
	return sim.Nodes[id].Dead()
}

// SetTimer arms (or re-arms) the named timer of node. Re-arming cancels the
// previous instance even if it is already queued.
func (sim *Simulator) SetTimer(node int, name TimerName, delay float64) {
	sim.timerGen++
	gen := sim.timerGen
	sim.Schedule(delay, &TimerFiredEvent{Node: node, Name: name, generation: gen})
	sim.timers[timerKey{node: node, name: name}] = gen
}

// KillTimer cancels the named timer of node. The queued event is skipped on pop.
func (sim *Simulator) KillTimer(node int, name TimerName) {
	delete(sim.timers, timerKey{node: node, name: name})
}

// KillAllTimers cancels every timer node owns.
func (sim *Simulator) KillAllTimers(node int) {
	for key := range sim.timers {
		if key.node == node {
			delete(sim.timers, key)
		}
	}
}

// TimerArmed reports whether the named timer of node will fire.
func (sim *Simulator) TimerArmed(node int, name TimerName) bool {
	_, ok := sim.timers[timerKey{node: node, name: name}]
	return ok
}

// RoleCounts derives the role tally from the node table.
func (sim *Simulator) RoleCounts() map[Role]int {
	counts := make(map[Role]int, len(AllRoles))
	for _, r := range AllRoles {
		counts[r] = 0
	}
	for _, n := range sim.Nodes {
		counts[n.role]++
	}
	return counts
}

// Snapshots returns a read-only copy of every node's state, ordered by id.
func (sim *Simulator) Snapshots() []NodeSnapshot {
	snaps := make([]NodeSnapshot, len(sim.Nodes))
	for i, n := range sim.Nodes {
		snaps[i] = n.Snapshot()
	}
	return snaps
}

// Root returns the configured root node.
func (sim *Simulator) Root() *Node {
	return sim.Nodes[sim.Config.RootID]
}

// Positions returns the node placement used by this run.
func (sim *Simulator) Positions() []Position {
	return append([]Position(nil), sim.positions...)
}
