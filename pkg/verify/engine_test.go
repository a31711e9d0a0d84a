package verify

import (
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/veridag/veridag/pkg/engine"
)

// makePlan builds a plan around a dependency map without running the
// compiler, so results can be shaped freely.
func makePlan(deps map[string][]string) *engine.ExecutionPlan {
	nodes := make(map[string]*engine.ExecutionNode, len(deps))
	for id, d := range deps {
		nodes[id] = &engine.ExecutionNode{
			ID:           id,
			Type:         engine.NodeTypeTransform,
			Name:         id,
			Dependencies: d,
		}
	}
	return &engine.ExecutionPlan{Graph: &engine.ExecutionGraph{Nodes: nodes}}
}

// makeResult builds a result with the given per-node statuses. Completed
// nodes get a non-empty output.
func makeResult(statuses map[string]engine.NodeStatus) *engine.ExecutionResult {
	result := &engine.ExecutionResult{
		Results: make(map[string]*engine.NodeResult, len(statuses)),
	}
	for id, status := range statuses {
		nr := &engine.NodeResult{
			NodeID:   id,
			Status:   status,
			Duration: 10 * time.Millisecond,
		}
		if status == engine.NodeStatusCompleted {
			nr.Output = map[string]any{"value": 1}
		}
		if status == engine.NodeStatusFailed {
			result.Errors = append(result.Errors,
				engine.NewHandlerError(id, fmt.Errorf("failed")))
		}
		result.Results[id] = nr
	}
	result.Success = len(result.Errors) == 0
	return result
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// criticalDetector always reports one critical anomaly.
type criticalDetector struct{}

func (criticalDetector) Name() string { return "critical_test" }

func (criticalDetector) Detect(*engine.ExecutionPlan, *engine.ExecutionResult) []Anomaly {
	return []Anomaly{{
		ID:       "pattern_deviation:x",
		Type:     AnomalyPatternDeviation,
		Severity: SeverityCritical,
		Nodes:    []string{"x"},
	}}
}

// TestVerifyAcceptCleanRun grades a fully successful run: perfect scores,
// minimal risk, accept with confidence equal to the lowest score.
func TestVerifyAcceptCleanRun(t *testing.T) {
	plan := makePlan(map[string][]string{"a": nil, "b": {"a"}})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
		"b": engine.NodeStatusCompleted,
	})
	intent := Intent{
		Description:      "run the chain",
		Type:             IntentTypeAutomate,
		ExpectedOutcomes: []ExpectedOutcome{{Target: "b", Importance: 0.8}},
	}

	vr := NewEngine().Verify(intent, plan, result)

	if !approx(vr.IntentMatch, 1.0) {
		t.Errorf("intent match = %v, want 1.0", vr.IntentMatch)
	}
	if !approx(vr.StateConsistency, 1.0) {
		t.Errorf("state consistency = %v, want 1.0", vr.StateConsistency)
	}
	if !approx(vr.CausalValidity, 1.0) {
		t.Errorf("causal validity = %v, want 1.0", vr.CausalValidity)
	}

	if len(vr.Outcomes) != 1 || !vr.Outcomes[0].Achieved || vr.Outcomes[0].Node != "b" {
		t.Errorf("outcomes = %+v", vr.Outcomes)
	}
	if len(vr.Anomalies) != 0 {
		t.Errorf("unexpected anomalies: %+v", vr.Anomalies)
	}

	if !approx(vr.RiskScore, 0) || vr.RiskLevel != RiskMinimal {
		t.Errorf("risk = %v (%s)", vr.RiskScore, vr.RiskLevel)
	}
	if len(vr.Recommendations) != 0 {
		t.Errorf("unexpected recommendations: %+v", vr.Recommendations)
	}

	if vr.Decision.Action != DecisionAccept {
		t.Fatalf("decision = %s", vr.Decision.Action)
	}
	if !approx(vr.Decision.Confidence, 1.0) {
		t.Errorf("confidence = %v, want 1.0", vr.Decision.Confidence)
	}
}

// TestVerifyEscalateOnCriticalAnomaly checks the non-mitigable rule: a
// critical anomaly escalates even when all scores are perfect.
func TestVerifyEscalateOnCriticalAnomaly(t *testing.T) {
	plan := makePlan(map[string][]string{"a": nil})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
	})

	eng := NewEngineWithDetectors(criticalDetector{})
	vr := eng.Verify(Intent{Type: IntentTypeAnalyze}, plan, result)

	if vr.Decision.Action != DecisionEscalate {
		t.Fatalf("decision = %s, want escalate", vr.Decision.Action)
	}
	if !approx(vr.Decision.Confidence, 0.9) {
		t.Errorf("confidence = %v, want 0.9", vr.Decision.Confidence)
	}
	if !approx(vr.RiskScore, 0.4) {
		t.Errorf("risk score = %v, want 0.4", vr.RiskScore)
	}
	if vr.RiskLevel != RiskMedium {
		t.Errorf("risk level = %s, want medium", vr.RiskLevel)
	}

	found := false
	for _, rec := range vr.Recommendations {
		if rec.Action == "manual_review" && approx(rec.Priority, 0.9) {
			found = true
		}
	}
	if !found {
		t.Errorf("missing manual_review recommendation: %+v", vr.Recommendations)
	}
}

// TestVerifyRetryOnLowIntentMatch checks the retry rule for a mostly
// failed run.
func TestVerifyRetryOnLowIntentMatch(t *testing.T) {
	plan := makePlan(map[string][]string{
		"a": nil, "b": nil, "c": nil, "d": nil, "e": nil,
	})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusFailed,
		"b": engine.NodeStatusFailed,
		"c": engine.NodeStatusFailed,
		"d": engine.NodeStatusFailed,
	})

	vr := NewEngine().Verify(Intent{Type: IntentTypeAutomate}, plan, result)

	// success=false (0), errors=4 capped at 0.3 penalty -> 0.3*0.6=0.18,
	// completion 0/5 -> 0. Total 0.18.
	if !approx(vr.IntentMatch, 0.18) {
		t.Errorf("intent match = %v, want 0.18", vr.IntentMatch)
	}
	if vr.Decision.Action != DecisionRetry {
		t.Fatalf("decision = %s, want retry", vr.Decision.Action)
	}
	if !approx(vr.Decision.Confidence, 0.7) {
		t.Errorf("confidence = %v, want 0.7", vr.Decision.Confidence)
	}
}

// TestVerifyAdjustOnMiddlingScores checks the adjust band between 0.5
// and 0.7.
func TestVerifyAdjustOnMiddlingScores(t *testing.T) {
	// success=false, one error, half completed:
	// 0 + 0.3*0.9 + 0.4*0.5 = 0.47 -> retry band. Use 3/4 completed:
	// 0 + 0.27 + 0.3 = 0.57 -> adjust band.
	plan := makePlan(map[string][]string{
		"a": nil, "b": nil, "c": nil, "d": nil,
	})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
		"b": engine.NodeStatusCompleted,
		"c": engine.NodeStatusCompleted,
		"d": engine.NodeStatusFailed,
	})

	vr := NewEngine().Verify(Intent{Type: IntentTypeAutomate}, plan, result)

	if !approx(vr.IntentMatch, 0.57) {
		t.Errorf("intent match = %v, want 0.57", vr.IntentMatch)
	}
	if vr.Decision.Action != DecisionAdjust {
		t.Fatalf("decision = %s, want adjust", vr.Decision.Action)
	}
	if !approx(vr.Decision.Confidence, 0.6) {
		t.Errorf("confidence = %v, want 0.6", vr.Decision.Confidence)
	}
}

// TestStateConsistencyFloor checks the zero floor under heavy failure.
func TestStateConsistencyFloor(t *testing.T) {
	statuses := make(map[string]engine.NodeStatus)
	for i := 0; i < 12; i++ {
		statuses[fmt.Sprintf("n%02d", i)] = engine.NodeStatusFailed
	}
	result := makeResult(statuses)

	// 12 failed * 0.1 + 12 errors * 0.05 = 1.8 past the floor.
	plan := makePlan(map[string][]string{})
	vr := NewEngine().Verify(Intent{Type: IntentTypeAutomate}, plan, result)
	if !approx(vr.StateConsistency, 0) {
		t.Errorf("state consistency = %v, want 0", vr.StateConsistency)
	}
}

// TestCausalValidityBrokenDependency checks the per-node penalty when a
// completed node's dependency did not complete.
func TestCausalValidityBrokenDependency(t *testing.T) {
	plan := makePlan(map[string][]string{
		"a": nil,
		"b": {"a"},
	})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusFailed,
		"b": engine.NodeStatusCompleted,
	})

	vr := NewEngine().Verify(Intent{Type: IntentTypeAutomate}, plan, result)
	if !approx(vr.CausalValidity, 0.9) {
		t.Errorf("causal validity = %v, want 0.9", vr.CausalValidity)
	}
}

// TestVerifyMustConstraintEscalates checks that a violated must constraint
// escalates and contributes risk.
func TestVerifyMustConstraintEscalates(t *testing.T) {
	plan := makePlan(map[string][]string{"a": nil})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
	})
	intent := Intent{
		Type: IntentTypeAutomate,
		Constraints: []Constraint{
			{Kind: ConstraintMust, Target: "audit"},
		},
	}

	vr := NewEngine().Verify(intent, plan, result)

	if vr.Decision.Action != DecisionEscalate {
		t.Fatalf("decision = %s, want escalate", vr.Decision.Action)
	}
	if !approx(vr.RiskScore, 0.1) {
		t.Errorf("risk score = %v, want 0.1", vr.RiskScore)
	}
	if len(vr.RiskFactors) != 1 {
		t.Errorf("risk factors = %v", vr.RiskFactors)
	}
}

// TestVerifyMustNotConstraint checks must_not violation on a completed match.
func TestVerifyMustNotConstraint(t *testing.T) {
	plan := makePlan(map[string][]string{"notification:x": nil})
	result := makeResult(map[string]engine.NodeStatus{
		"notification:x": engine.NodeStatusCompleted,
	})
	intent := Intent{
		Type: IntentTypeQuery,
		Constraints: []Constraint{
			{Kind: ConstraintMustNot, Target: "notification"},
		},
	}

	vr := NewEngine().Verify(intent, plan, result)
	if vr.Decision.Action != DecisionEscalate {
		t.Fatalf("decision = %s, want escalate", vr.Decision.Action)
	}
}

// TestVerifyShouldConstraintAdvisory checks that an unmet should constraint
// only yields a recommendation.
func TestVerifyShouldConstraintAdvisory(t *testing.T) {
	plan := makePlan(map[string][]string{"a": nil})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
	})
	intent := Intent{
		Type: IntentTypeAutomate,
		Constraints: []Constraint{
			{Kind: ConstraintShould, Target: "cache"},
		},
	}

	vr := NewEngine().Verify(intent, plan, result)

	if vr.Decision.Action != DecisionAccept {
		t.Fatalf("decision = %s, want accept", vr.Decision.Action)
	}
	if len(vr.Recommendations) != 1 || vr.Recommendations[0].Action != "review_constraint" {
		t.Errorf("recommendations = %+v", vr.Recommendations)
	}
	if !approx(vr.Recommendations[0].Priority, 0.3) {
		t.Errorf("priority = %v, want 0.3", vr.Recommendations[0].Priority)
	}
}

// TestRecommendationsCapped checks the five-item cap and descending order.
func TestRecommendationsCapped(t *testing.T) {
	plan := makePlan(map[string][]string{"a": nil})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
	})

	var outcomes []ExpectedOutcome
	for i := 0; i < 8; i++ {
		outcomes = append(outcomes, ExpectedOutcome{
			Target:     fmt.Sprintf("missing%d", i),
			Importance: float64(i) / 10,
		})
	}
	intent := Intent{Type: IntentTypeAutomate, ExpectedOutcomes: outcomes}

	vr := NewEngine().Verify(intent, plan, result)

	if len(vr.Recommendations) != 5 {
		t.Fatalf("recommendations = %d, want 5", len(vr.Recommendations))
	}
	for i := 1; i < len(vr.Recommendations); i++ {
		if vr.Recommendations[i].Priority > vr.Recommendations[i-1].Priority {
			t.Errorf("recommendations not sorted at %d: %+v", i, vr.Recommendations)
		}
	}
}

// TestVerifyDeterministic runs Verify repeatedly on identical inputs and
// requires identical results.
func TestVerifyDeterministic(t *testing.T) {
	plan := makePlan(map[string][]string{
		"a": nil, "b": {"a"}, "c": {"a"},
	})
	result := makeResult(map[string]engine.NodeStatus{
		"a": engine.NodeStatusCompleted,
		"b": engine.NodeStatusFailed,
		"c": engine.NodeStatusCompleted,
	})
	intent := Intent{
		Type:             IntentTypeAutomate,
		ExpectedOutcomes: []ExpectedOutcome{{Target: "b", Importance: 0.9}},
		Constraints:      []Constraint{{Kind: ConstraintShould, Target: "c"}},
	}

	first := NewEngine().Verify(intent, plan, result)
	for i := 0; i < 5; i++ {
		again := NewEngine().Verify(intent, plan, result)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("verification not deterministic:\nfirst: %+v\nagain: %+v", first, again)
		}
	}
}
