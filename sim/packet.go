package sim

// PacketType tags the variant carried in a Packet body.
type PacketType int

const (
	PacketProbe PacketType = iota
	PacketHeartbeat
	PacketJoinRequest
	PacketJoinReply
	PacketJoinAck
	PacketNetworkRequest
	PacketNetworkReply
	PacketNetworkRequestRejected
	PacketNetworkUpdate
	PacketBecomeClusterHead
	PacketNeighborShare
	PacketData
)

var packetTypeNames = map[PacketType]string{
	PacketProbe:                  "PROBE",
	PacketHeartbeat:              "HEARTBEAT",
	PacketJoinRequest:            "JOIN_REQUEST",
	PacketJoinReply:              "JOIN_REPLY",
	PacketJoinAck:                "JOIN_ACK",
	PacketNetworkRequest:         "NETWORK_REQUEST",
	PacketNetworkReply:           "NETWORK_REPLY",
	PacketNetworkRequestRejected: "NETWORK_REQUEST_REJECTED",
	PacketNetworkUpdate:          "NETWORK_UPDATE",
	PacketBecomeClusterHead:      "BECOME_CH",
	PacketNeighborShare:          "NEIGHBOR_SHARE",
	PacketData:                   "DATA",
}

func (t PacketType) String() string {
	if name, ok := packetTypeNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Payload sizes in bytes, charged on top of HeaderSize.
const (
	HeaderSize         = 50
	beaconPayloadSize  = 20
	joinPayloadSize    = 30
	networkPayloadSize = 40
	otherPayloadSize   = 25
)

// Body is the type-specific part of a packet. Each variant carries exactly
// the fields its type uses.
type Body interface {
	Type() PacketType
	payloadSize() int
	clone() Body
}

// Packet is a radio frame. Routing metadata (NextHop, PrevHop) is attached by
// forwarders; the originator only fills Dest, Source, SenderID and Body.
type Packet struct {
	Dest     Address
	Source   *Address // originator address, nil while unaddressed
	SenderID int      // originator node id
	TTL      int
	NextHop  *Address
	PrevHop  *Address
	Body     Body
}

// Type returns the body variant tag.
func (p *Packet) Type() PacketType { return p.Body.Type() }

// Size returns the on-air size in bytes used for energy accounting.
func (p *Packet) Size() int { return HeaderSize + p.Body.payloadSize() }

// Clone returns a deep copy so each receiver owns its packet.
func (p *Packet) Clone() *Packet {
	c := *p
	if p.Source != nil {
		c.Source = addrPtr(*p.Source)
	}
	if p.NextHop != nil {
		c.NextHop = addrPtr(*p.NextHop)
	}
	if p.PrevHop != nil {
		c.PrevHop = addrPtr(*p.PrevHop)
	}
	c.Body = p.Body.clone()
	return &c
}

// Probe asks in-range joined nodes to announce themselves.
type Probe struct{}

func (Probe) Type() PacketType { return PacketProbe }
func (Probe) payloadSize() int { return beaconPayloadSize }
func (b Probe) clone() Body    { return b }

// Heartbeat announces the sender's protocol state to its neighbourhood.
type Heartbeat struct {
	Role        Role
	Address     Address
	ClusterHead Address
	Root        Address
	Parent      int
	Hop         int
	Position    Position
	// Path lists the sender's ancestors, nearest first.
	Path []int
}

func (Heartbeat) Type() PacketType { return PacketHeartbeat }
func (Heartbeat) payloadSize() int { return beaconPayloadSize }
func (b Heartbeat) clone() Body {
	b.Path = append([]int(nil), b.Path...)
	return b
}

// JoinRequest asks the destination to admit the sender.
type JoinRequest struct{}

func (JoinRequest) Type() PacketType { return PacketJoinRequest }
func (JoinRequest) payloadSize() int { return joinPayloadSize }
func (b JoinRequest) clone() Body    { return b }

// JoinReply is broadcast by a cluster head; only the node named by DestID acts on it.
type JoinReply struct {
	DestID      int
	Assigned    Address
	ClusterHead Address
	Root        Address
	Hop         int
	// Path is the joiner's ancestor chain: the head first, then its ancestors.
	Path []int
}

func (JoinReply) Type() PacketType { return PacketJoinReply }
func (JoinReply) payloadSize() int { return joinPayloadSize }
func (b JoinReply) clone() Body {
	b.Path = append([]int(nil), b.Path...)
	return b
}

// JoinAck confirms a join; it is the only point where a head records a member.
type JoinAck struct {
	Role Role
}

func (JoinAck) Type() PacketType { return PacketJoinAck }
func (JoinAck) payloadSize() int { return joinPayloadSize }
func (b JoinAck) clone() Body    { return b }

// NetworkRequest asks for a new network. Without a nomination the requester
// asks Root to promote itself; with one, a router asks its parent head to
// promote Nominee.
type NetworkRequest struct {
	Requester int
	Nominee   int
	Nominated bool
}

func (NetworkRequest) Type() PacketType { return PacketNetworkRequest }
func (NetworkRequest) payloadSize() int { return networkPayloadSize }
func (b NetworkRequest) clone() Body    { return b }

// NetworkReply approves a NetworkRequest.
type NetworkReply struct {
	Requester int
	Nominee   int
	Nominated bool
	Assigned  Address
}

func (NetworkReply) Type() PacketType { return PacketNetworkReply }
func (NetworkReply) payloadSize() int { return networkPayloadSize }
func (b NetworkReply) clone() Body    { return b }

// NetworkRequestRejected is returned while a promotion lock is held.
type NetworkRequestRejected struct {
	Requester int
	Nominee   int
}

func (NetworkRequestRejected) Type() PacketType { return PacketNetworkRequestRejected }
func (NetworkRequestRejected) payloadSize() int { return networkPayloadSize }
func (b NetworkRequestRejected) clone() Body    { return b }

// NetworkUpdate carries every network reachable beneath the sender.
type NetworkUpdate struct {
	Networks []int
}

func (NetworkUpdate) Type() PacketType { return PacketNetworkUpdate }
func (NetworkUpdate) payloadSize() int { return networkPayloadSize }
func (b NetworkUpdate) clone() Body {
	return NetworkUpdate{Networks: append([]int(nil), b.Networks...)}
}

// BecomeClusterHead tells the nominee to take over the approved network.
type BecomeClusterHead struct {
	Nominee  int
	Assigned Address
	Root     Address
	Hop      int
	Path     []int
}

func (BecomeClusterHead) Type() PacketType { return PacketBecomeClusterHead }
func (BecomeClusterHead) payloadSize() int { return otherPayloadSize }
func (b BecomeClusterHead) clone() Body {
	b.Path = append([]int(nil), b.Path...)
	return b
}

// SharedNeighbor is one entry of a NeighborShare.
type SharedNeighbor struct {
	ID      int
	Address Address
	Role    Role
}

// NeighborShare publishes the sender's live one-hop table.
type NeighborShare struct {
	Neighbors []SharedNeighbor
}

func (NeighborShare) Type() PacketType { return PacketNeighborShare }
func (NeighborShare) payloadSize() int { return otherPayloadSize }
func (b NeighborShare) clone() Body {
	return NeighborShare{Neighbors: append([]SharedNeighbor(nil), b.Neighbors...)}
}

// Data is an application reading routed through the tree.
type Data struct {
	Value     float64
	CreatedAt float64
}

func (Data) Type() PacketType { return PacketData }
func (Data) payloadSize() int { return otherPayloadSize }
func (b Data) clone() Body    { return b }
