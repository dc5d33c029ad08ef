package sim

import "fmt"

// MaintenanceController is the Root-triggered cleanup collaborator. It only
// reads snapshots; the resulting commands are delivered to the nodes as
// events and applied by the nodes themselves.
type MaintenanceController struct {
	StuckThreshold float64
}

// NewMaintenanceController returns a controller for cfg.
func NewMaintenanceController(cfg MaintenanceConfig) *MaintenanceController {
	return &MaintenanceController{StuckThreshold: cfg.StuckThreshold}
}

// Sweep inspects snapshots and returns the cleanup commands, ordered by node id.
func (m *MaintenanceController) Sweep(now float64, snaps []NodeSnapshot) []ControlCommand {
	byID := make(map[int]*NodeSnapshot, len(snaps))
	for i := range snaps {
		byID[snaps[i].ID] = &snaps[i]
	}

	var cmds []ControlCommand
	for i := range snaps {
		s := &snaps[i]
		if s.Dead {
			continue
		}
		switch s.Role {
		case RoleUnregistered:
			if stuck := now - s.UnregisteredSince; stuck > m.StuckThreshold {
				cmds = append(cmds, ControlCommand{Node: s.ID, Kind: ControlReset,
					Reason: fmt.Sprintf("unregistered for %.0fs", stuck)})
			}
		case RoleRegistered, RoleRouter:
			if reason, ok := orphaned(s, byID); ok {
				cmds = append(cmds, ControlCommand{Node: s.ID, Kind: ControlReset, Reason: reason})
				continue
			}
			if s.Role == RoleRouter && !bridgesLiveHead(s, byID) {
				cmds = append(cmds, ControlCommand{Node: s.ID, Kind: ControlDemoteRouter,
					Reason: "no live cluster head beneath router"})
			}
		}
		if s.Role.HeadsCluster() {
			for _, id := range s.Members {
				member, ok := byID[id]
				if !ok || member.Dead || member.ParentID != s.ID {
					cmds = append(cmds, ControlCommand{Node: s.ID, Kind: ControlPurgeMember, Subject: id,
						Reason: fmt.Sprintf("member %d no longer attached", id)})
				}
			}
		}
	}
	return cmds
}

// orphaned reports why a Registered or Router node has no usable parent.
func orphaned(s *NodeSnapshot, byID map[int]*NodeSnapshot) (string, bool) {
	if s.ParentID == NoParent {
		return "no parent", true
	}
	p, ok := byID[s.ParentID]
	switch {
	case !ok:
		return fmt.Sprintf("unknown parent %d", s.ParentID), true
	case p.Dead:
		return fmt.Sprintf("parent %d is dead", s.ParentID), true
	case !p.Role.HeadsCluster():
		return fmt.Sprintf("parent %d is %s", s.ParentID, p.Role), true
	}
	return "", false
}

func bridgesLiveHead(s *NodeSnapshot, byID map[int]*NodeSnapshot) bool {
	for child := range s.ChildNetworks {
		c, ok := byID[child]
		if ok && !c.Dead && c.Role == RoleClusterHead && c.ParentID == s.ID {
			return true
		}
	}
	return false
}

// runMaintenance is invoked by Root's maintenance timer.
func (sim *Simulator) runMaintenance() {
	cmds := sim.maintenance.Sweep(sim.Clock, sim.Snapshots())
	for _, c := range cmds {
		sim.Metrics.MaintenanceActions++
		sim.Schedule(0, &ControlEvent{Command: c})
	}
}

func (n *Node) onMaintenanceTimer() {
	if n.role != RoleRoot || !n.cfg.Maintenance.Enabled {
		return
	}
	n.sim.runMaintenance()
	n.setTimer(TimerMaintenance, n.cfg.Maintenance.Interval)
}

func (n *Node) onStatsTimer() {
	if n.role != RoleRoot || !n.cfg.Energy.Enabled {
		return
	}
	n.sim.SampleEnergy()
	n.setTimer(TimerStats, n.cfg.Energy.SampleInterval)
}
