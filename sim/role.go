package sim

// Role is the protocol role of a node. A node holds exactly one role at a time.
type Role int

const (
	RoleUndiscovered Role = iota
	RoleUnregistered
	RoleRegistered
	RoleClusterHead
	RoleRouter
	RoleRoot
)

// AllRoles lists every role in declaration order.
var AllRoles = []Role{RoleUndiscovered, RoleUnregistered, RoleRegistered, RoleClusterHead, RoleRouter, RoleRoot}

var roleNames = map[Role]string{
	RoleUndiscovered: "undiscovered",
	RoleUnregistered: "unregistered",
	RoleRegistered:   "registered",
	RoleClusterHead:  "cluster_head",
	RoleRouter:       "router",
	RoleRoot:         "root",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Joined reports whether the role holds a network address.
func (r Role) Joined() bool {
	return r == RoleRegistered || r == RoleClusterHead || r == RoleRouter || r == RoleRoot
}

// HeadsCluster reports whether the role owns a network and accepts members.
func (r Role) HeadsCluster() bool {
	return r == RoleClusterHead || r == RoleRoot
}

// joinPreference ranks join candidates; lower is preferred. Registered nodes
// come first so the nomination path gets a chance before direct head joins.
func (r Role) joinPreference() int {
	switch r {
	case RoleRegistered:
		return 0
	case RoleRouter:
		return 1
	case RoleClusterHead, RoleRoot:
		return 2
	default:
		return -1
	}
}
