package sim

import "fmt"

const (
	// ClusterHeadSlot is the node slot a cluster head occupies inside its own network.
	ClusterHeadSlot = 254
	// BroadcastSlot marks the broadcast sentinel in both address components.
	BroadcastSlot = 255
)

// Address is a hierarchical (network, node slot) pair. The network id of a
// cluster equals the node id of its head.
type Address struct {
	Network int
	Node    int
}

// Broadcast is the sentinel destination heard by every in-range receiver.
var Broadcast = Address{Network: BroadcastSlot, Node: BroadcastSlot}

// IsBroadcast reports whether a is the broadcast sentinel.
func (a Address) IsBroadcast() bool { return a == Broadcast }

// IsClusterHead reports whether a names the head slot of its network.
func (a Address) IsClusterHead() bool { return a.Node == ClusterHeadSlot }

func (a Address) String() string {
	if a.IsBroadcast() {
		return "[bcast]"
	}
	return fmt.Sprintf("[%d.%d]", a.Network, a.Node)
}

// ClusterHeadAddress returns the head address of the given network.
func ClusterHeadAddress(network int) Address {
	return Address{Network: network, Node: ClusterHeadSlot}
}

// MemberSlot maps a node id to its member slot. Ids at or above the reserved
// head slot are shifted past the reserved range so slots stay unique.
func MemberSlot(id int) int {
	if id < ClusterHeadSlot {
		return id
	}
	return id + 2
}

// MemberAddress returns the address node id receives when joining network.
func MemberAddress(network, id int) Address {
	return Address{Network: network, Node: MemberSlot(id)}
}

// addrString renders an optional address for logs and reports.
func addrString(a *Address) string {
	if a == nil {
		return "-"
	}
	return a.String()
}

func addrPtr(a Address) *Address { return &a }
