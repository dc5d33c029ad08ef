package trace

import "testing"

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.RoleChanges != 0 || summary.TotalRoutings != 0 {
		t.Error("expected zero counts for nil trace")
	}
	if summary.BusiestForwarder != -1 {
		t.Errorf("expected no busiest forwarder, got %d", summary.BusiestForwarder)
	}
}

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelRouting})

	// WHEN summarized
	summary := Summarize(st)

	// THEN all counts are zero
	if summary.RoleChanges != 0 || summary.Deaths != 0 {
		t.Error("expected 0 role changes and deaths")
	}
	if summary.FailureRate != 0 {
		t.Errorf("expected 0 failure rate, got %f", summary.FailureRate)
	}
	if len(summary.DecisionBreakdown) != 0 || len(summary.RoleDistribution) != 0 {
		t.Error("expected empty distributions")
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with role, link and routing records
	st := NewSimulationTrace(TraceConfig{Level: TraceLevelRouting})
	st.RecordRole(RoleRecord{NodeID: 1, From: "undiscovered", To: "unregistered"})
	st.RecordRole(RoleRecord{NodeID: 1, From: "unregistered", To: "registered"})
	st.RecordRole(RoleRecord{NodeID: 2, From: "undiscovered", To: "unregistered"})
	st.RecordRole(RoleRecord{NodeID: 2, To: "dead"})
	st.RecordLink(LinkRecord{Child: 1, Parent: 0, Up: true})
	st.RecordLink(LinkRecord{Child: 1, Parent: 0, Up: false})
	st.RecordRouting(RoutingRecord{NodeID: 2, Decision: "upward_tree"})
	st.RecordRouting(RoutingRecord{NodeID: 1, Decision: "upward_tree"})
	st.RecordRouting(RoutingRecord{NodeID: 1, Decision: "failure"})
	st.RecordRouting(RoutingRecord{NodeID: 2, Decision: "intra_cluster"})

	// WHEN summarized
	summary := Summarize(st)

	// THEN counts match
	if summary.RoleChanges != 3 {
		t.Errorf("expected 3 role changes, got %d", summary.RoleChanges)
	}
	if summary.Deaths != 1 {
		t.Errorf("expected 1 death, got %d", summary.Deaths)
	}
	if summary.RoleDistribution["unregistered"] != 2 {
		t.Errorf("expected 2 transitions into unregistered, got %d", summary.RoleDistribution["unregistered"])
	}
	if summary.LinksDrawn != 1 || summary.LinksErased != 1 {
		t.Errorf("expected 1 drawn and 1 erased link, got %d/%d", summary.LinksDrawn, summary.LinksErased)
	}
	if summary.TotalRoutings != 4 || summary.RouteFailures != 1 {
		t.Errorf("expected 4 routings with 1 failure, got %d/%d", summary.TotalRoutings, summary.RouteFailures)
	}
	if summary.FailureRate != 0.25 {
		t.Errorf("expected failure rate 0.25, got %f", summary.FailureRate)
	}
	if summary.DecisionBreakdown["upward_tree"] != 2 {
		t.Errorf("expected 2 upward decisions, got %d", summary.DecisionBreakdown["upward_tree"])
	}
	// nodes 1 and 2 tie at 2 decisions; lowest id wins
	if summary.BusiestForwarder != 1 || summary.BusiestForwarderN != 2 {
		t.Errorf("expected busiest forwarder 1 with 2, got %d with %d", summary.BusiestForwarder, summary.BusiestForwarderN)
	}
}
