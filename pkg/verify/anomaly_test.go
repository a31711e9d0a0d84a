package verify

import (
	"testing"

	"github.com/veridag/veridag/pkg/engine"
)

// TestValueRangeDetector flags numeric outputs beyond the extreme band and
// ignores everything else.
func TestValueRangeDetector(t *testing.T) {
	result := &engine.ExecutionResult{
		Results: map[string]*engine.NodeResult{
			"ok": {
				NodeID: "ok",
				Status: engine.NodeStatusCompleted,
				Output: map[string]any{"total": 42, "label": "fine"},
			},
			"extreme": {
				NodeID: "extreme",
				Status: engine.NodeStatusCompleted,
				Output: map[string]any{"total": 5_000_000.0, "count": 3},
			},
		},
	}

	anomalies := valueRangeDetector{}.Detect(nil, result)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(anomalies))
	}

	a := anomalies[0]
	if a.Type != AnomalyUnexpectedValue || a.Severity != SeverityMedium {
		t.Errorf("anomaly = %+v", a)
	}
	if a.ID != "unexpected_value:extreme" {
		t.Errorf("id = %s", a.ID)
	}
	if len(a.Evidence) != 1 {
		t.Errorf("evidence = %v", a.Evidence)
	}
}

// TestMissingDataDetector flags completed nodes without output.
func TestMissingDataDetector(t *testing.T) {
	result := &engine.ExecutionResult{
		Results: map[string]*engine.NodeResult{
			"empty": {
				NodeID: "empty",
				Status: engine.NodeStatusCompleted,
			},
			"failed": {
				NodeID: "failed",
				Status: engine.NodeStatusFailed,
			},
			"full": {
				NodeID: "full",
				Status: engine.NodeStatusCompleted,
				Output: map[string]any{"v": 1},
			},
		},
	}

	anomalies := missingDataDetector{}.Detect(nil, result)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(anomalies))
	}
	if anomalies[0].Type != AnomalyMissingData || anomalies[0].Severity != SeverityLow {
		t.Errorf("anomaly = %+v", anomalies[0])
	}
	if anomalies[0].Nodes[0] != "empty" {
		t.Errorf("nodes = %v", anomalies[0].Nodes)
	}
}

// TestStateConsistencyDetector flags a completed node whose dependency
// never completed.
func TestStateConsistencyDetector(t *testing.T) {
	plan := makePlan(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
		"b": engine.NodeStatusFailed,
		"c": engine.NodeStatusCompleted,
	})

	anomalies := stateConsistencyDetector{}.Detect(plan, result)
	if len(anomalies) != 1 {
		t.Fatalf("anomalies = %d, want 1", len(anomalies))
	}
	if anomalies[0].Type != AnomalyInconsistentState || anomalies[0].Severity != SeverityHigh {
		t.Errorf("anomaly = %+v", anomalies[0])
	}
	if anomalies[0].Nodes[0] != "c" {
		t.Errorf("nodes = %v", anomalies[0].Nodes)
	}
}

// TestDetectorOutputStable checks that detector output order follows
// sorted node ids.
func TestDetectorOutputStable(t *testing.T) {
	result := &engine.ExecutionResult{
		Results: map[string]*engine.NodeResult{
			"z": {NodeID: "z", Status: engine.NodeStatusCompleted},
			"a": {NodeID: "a", Status: engine.NodeStatusCompleted},
			"m": {NodeID: "m", Status: engine.NodeStatusCompleted},
		},
	}

	anomalies := missingDataDetector{}.Detect(nil, result)
	if len(anomalies) != 3 {
		t.Fatalf("anomalies = %d, want 3", len(anomalies))
	}
	order := []string{"a", "m", "z"}
	for i, want := range order {
		if anomalies[i].Nodes[0] != want {
			t.Errorf("anomaly %d on node %s, want %s", i, anomalies[i].Nodes[0], want)
		}
	}
}
