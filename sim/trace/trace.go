package trace

// TraceLevel controls the verbosity of protocol tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelRoles captures role transitions, parent links and deaths.
	TraceLevelRoles TraceLevel = "roles"
	// TraceLevelRouting additionally captures every routing decision.
	TraceLevelRouting TraceLevel = "routing"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelRoles:   true,
	TraceLevelRouting: true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// RecordsRoles reports whether role and link records are kept at this level.
func (l TraceLevel) RecordsRoles() bool {
	return l == TraceLevelRoles || l == TraceLevelRouting
}

// RecordsRouting reports whether routing decisions are kept at this level.
func (l TraceLevel) RecordsRouting() bool {
	return l == TraceLevelRouting
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
}

// SimulationTrace collects protocol records during a simulation run.
type SimulationTrace struct {
	Config   TraceConfig
	Roles    []RoleRecord
	Links    []LinkRecord
	Routings []RoutingRecord
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:   config,
		Roles:    make([]RoleRecord, 0),
		Links:    make([]LinkRecord, 0),
		Routings: make([]RoutingRecord, 0),
	}
}

// RecordRole appends a role transition record.
func (st *SimulationTrace) RecordRole(record RoleRecord) {
	st.Roles = append(st.Roles, record)
}

// RecordLink appends a parent link record.
func (st *SimulationTrace) RecordLink(record LinkRecord) {
	st.Links = append(st.Links, record)
}

// RecordRouting appends a routing decision record.
func (st *SimulationTrace) RecordRouting(record RoutingRecord) {
	st.Routings = append(st.Routings, record)
}
