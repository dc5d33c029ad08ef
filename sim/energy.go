package sim

// EnergyLedger tracks one node's battery. Continuous drain is applied lazily
// from the time of the last update whenever the node sends, receives or is sampled.
type EnergyLedger struct {
	Initial   float64
	Remaining float64
	Tx        float64
	Rx        float64
	Idle      float64
	Sleep     float64

	lastUpdate float64
}

func newEnergyLedger(initial float64) EnergyLedger {
	return EnergyLedger{Initial: initial, Remaining: initial}
}

// Consumed returns the total energy drawn so far.
func (e EnergyLedger) Consumed() float64 { return e.Initial - e.Remaining }

// Depleted reports whether the battery is empty.
func (e EnergyLedger) Depleted() bool { return e.Remaining <= 0 }

// accrue charges idle or sleep drain for the time elapsed since the last update.
func (e *EnergyLedger) accrue(now float64, awake bool, cfg EnergyConfig) {
	dt := now - e.lastUpdate
	if dt <= 0 {
		return
	}
	e.lastUpdate = now
	if awake {
		e.draw(cfg.IdlePerSecond*dt, &e.Idle)
	} else {
		e.draw(cfg.SleepPerSecond*dt, &e.Sleep)
	}
}

// draw removes joules, never past zero, and books them to bucket.
func (e *EnergyLedger) draw(joules float64, bucket *float64) {
	if joules <= 0 {
		return
	}
	if joules > e.Remaining {
		joules = e.Remaining
	}
	e.Remaining -= joules
	*bucket += joules
}

type energyKind int

const (
	energyTx energyKind = iota
	energyRx
)

// spend charges a transmission or reception of the given size. It returns
// false when the node is dead afterwards; the death transition happens here.
func (n *Node) spend(kind energyKind, bytes int) bool {
	if n.dead {
		return false
	}
	cfg := n.cfg.Energy
	if !cfg.Enabled {
		return true
	}
	n.energy.accrue(n.sim.Clock, n.awake, cfg)
	switch kind {
	case energyTx:
		n.energy.draw(float64(bytes)*cfg.TxPerByte, &n.energy.Tx)
	case energyRx:
		n.energy.draw(float64(bytes)*cfg.RxPerByte, &n.energy.Rx)
	}
	if n.energy.Depleted() {
		n.die()
		return false
	}
	return true
}

// settleEnergy books the drain accrued up to now and runs the death
// transition when it emptied the battery.
func (n *Node) settleEnergy() {
	if n.dead || !n.cfg.Energy.Enabled {
		return
	}
	n.energy.accrue(n.sim.Clock, n.awake, n.cfg.Energy)
	if n.energy.Depleted() {
		n.die()
	}
}

// Energy returns the ledger projected to the current clock without touching
// the node's own ledger.
func (n *Node) Energy() EnergyLedger {
	e := n.energy
	if n.cfg.Energy.Enabled && !n.dead {
		e.accrue(n.sim.Clock, n.awake, n.cfg.Energy)
	}
	return e
}

// EnergySample is one point of the Root-driven energy timeline.
type EnergySample struct {
	Time           float64
	TotalRemaining float64
	MeanRemaining  float64
	MinRemaining   float64
	Alive          int
	Dead           int
}

// SampleEnergy settles every battery and appends the network-wide energy
// state at the current clock. A node drained by idle time alone dies here.
func (sim *Simulator) SampleEnergy() EnergySample {
	sample := EnergySample{Time: sim.Clock}
	first := true
	for _, n := range sim.Nodes {
		n.settleEnergy()
		if n.Dead() {
			sample.Dead++
			continue
		}
		e := n.Energy()
		sample.Alive++
		sample.TotalRemaining += e.Remaining
		if first || e.Remaining < sample.MinRemaining {
			sample.MinRemaining = e.Remaining
			first = false
		}
	}
	if sample.Alive > 0 {
		sample.MeanRemaining = sample.TotalRemaining / float64(sample.Alive)
	}
	sim.EnergyTimeline = append(sim.EnergyTimeline, sample)
	return sample
}
