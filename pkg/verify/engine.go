package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veridag/veridag/pkg/engine"
)

// Engine grades a completed run against a declared intent.
//
// Verify is a pure function of (Intent, ExecutionPlan, ExecutionResult): no
// hidden state, no clocks, no randomness. Identical inputs always yield
// identical scores, anomalies, and decision, which makes verification
// replayable from journaled runs.
type Engine struct {
	detectors []Detector
}

// NewEngine creates a verification engine with the built-in detector set
// (value range, missing data, state consistency).
func NewEngine() *Engine {
	return &Engine{detectors: defaultDetectors()}
}

// NewEngineWithDetectors creates a verification engine with a custom
// detector set, e.g. to add timing or pattern detection.
func NewEngineWithDetectors(detectors ...Detector) *Engine {
	return &Engine{detectors: detectors}
}

// Verify grades the run and decides whether to accept, retry, adjust, or
// escalate it.
func (e *Engine) Verify(intent Intent, plan *engine.ExecutionPlan, result *engine.ExecutionResult) *VerificationResult {
	vr := &VerificationResult{}

	vr.IntentMatch = intentMatchScore(plan, result)
	vr.StateConsistency = stateConsistencyScore(result)
	vr.CausalValidity = causalValidityScore(plan, result)
	vr.Outcomes = checkOutcomes(intent, result)

	for _, d := range e.detectors {
		vr.Anomalies = append(vr.Anomalies, d.Detect(plan, result)...)
	}

	violatedMust, violatedShould := checkConstraints(intent, result)

	vr.RiskScore, vr.RiskFactors = aggregateRisk(vr, violatedMust)
	vr.RiskLevel = bucketRisk(vr.RiskScore)
	vr.Recommendations = buildRecommendations(vr, violatedShould)
	vr.Decision = decide(vr, violatedMust)

	return vr
}

// intentMatchScore blends the success flag, the error count, and the
// completion ratio: 0.3 + 0.3 + 0.4.
func intentMatchScore(plan *engine.ExecutionPlan, result *engine.ExecutionResult) float64 {
	score := 0.0
	if result.Success {
		score += 0.3
	}

	errPenalty := float64(len(result.Errors)) * 0.1
	if errPenalty > 0.3 {
		errPenalty = 0.3
	}
	score += 0.3 * (1 - errPenalty)

	total := len(plan.Graph.Nodes)
	ratio := 1.0
	if total > 0 {
		ratio = float64(countByStatus(result, engine.NodeStatusCompleted)) / float64(total)
	}
	score += 0.4 * ratio

	return score
}

// stateConsistencyScore penalizes failed nodes and accumulated errors,
// floored at zero.
func stateConsistencyScore(result *engine.ExecutionResult) float64 {
	score := 1.0 -
		0.1*float64(countByStatus(result, engine.NodeStatusFailed)) -
		0.05*float64(len(result.Errors))
	if score < 0 {
		return 0
	}
	return score
}

// causalValidityScore penalizes each completed node with a declared
// dependency that did not also complete, floored at zero.
func causalValidityScore(plan *engine.ExecutionPlan, result *engine.ExecutionResult) float64 {
	broken := 0
	for id, nr := range result.Results {
		if nr.Status != engine.NodeStatusCompleted {
			continue
		}
		node := plan.Graph.Nodes[id]
		if node == nil {
			continue
		}
		for _, dep := range node.Dependencies {
			depRes, ok := result.Results[dep]
			if !ok || depRes.Status != engine.NodeStatusCompleted {
				broken++
				break
			}
		}
	}
	score := 1.0 - 0.1*float64(broken)
	if score < 0 {
		return 0
	}
	return score
}

// checkOutcomes marks each expected outcome achieved iff some completed
// node result's id contains the outcome's target substring.
func checkOutcomes(intent Intent, result *engine.ExecutionResult) []OutcomeCheck {
	checks := make([]OutcomeCheck, 0, len(intent.ExpectedOutcomes))
	ids := sortedResultIDs(result)
	for _, outcome := range intent.ExpectedOutcomes {
		check := OutcomeCheck{Outcome: outcome}
		for _, id := range ids {
			if strings.Contains(id, outcome.Target) &&
				result.Results[id].Status == engine.NodeStatusCompleted {
				check.Achieved = true
				check.Node = id
				break
			}
		}
		checks = append(checks, check)
	}
	return checks
}

// checkConstraints evaluates intent constraints against node results.
// A must constraint is violated when no completed result matches its
// target; a must_not constraint is violated when one does.
func checkConstraints(intent Intent, result *engine.ExecutionResult) (violatedMust, violatedShould []Constraint) {
	ids := sortedResultIDs(result)
	matches := func(target string) bool {
		for _, id := range ids {
			if strings.Contains(id, target) &&
				result.Results[id].Status == engine.NodeStatusCompleted {
				return true
			}
		}
		return false
	}

	for _, c := range intent.Constraints {
		switch c.Kind {
		case ConstraintMust:
			if !matches(c.Target) {
				violatedMust = append(violatedMust, c)
			}
		case ConstraintMustNot:
			if matches(c.Target) {
				violatedMust = append(violatedMust, c)
			}
		case ConstraintShould:
			if !matches(c.Target) {
				violatedShould = append(violatedShould, c)
			}
		}
	}
	return violatedMust, violatedShould
}

// aggregateRisk sums the weighted risk contributions and names them.
func aggregateRisk(vr *VerificationResult, violatedMust []Constraint) (float64, []string) {
	score := 0.0
	var factors []string

	if vr.IntentMatch < 0.5 {
		score += 0.3
		factors = append(factors, "intent match below 0.5")
	}
	if vr.StateConsistency < 0.7 {
		score += 0.25
		factors = append(factors, "state consistency below 0.7")
	}
	if hasCriticalAnomaly(vr.Anomalies) {
		// Non-mitigable: a critical anomaly keeps its full weight no
		// matter how good the scores are.
		score += 0.4
		factors = append(factors, "critical anomaly present")
	}
	for _, c := range violatedMust {
		score += 0.1
		factors = append(factors, fmt.Sprintf("violated %s constraint on %q", c.Kind, c.Target))
	}

	return score, factors
}

// bucketRisk maps a risk score to its level.
func bucketRisk(score float64) RiskLevel {
	switch {
	case score < 0.1:
		return RiskMinimal
	case score < 0.3:
		return RiskLow
	case score < 0.5:
		return RiskMedium
	case score < 0.7:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// buildRecommendations derives prioritized follow-ups: a retry for every
// unachieved expected outcome (weighted by its importance), a manual review
// for every high or critical anomaly, and an advisory note per unmet
// should constraint. Sorted descending by priority, truncated to five.
func buildRecommendations(vr *VerificationResult, violatedShould []Constraint) []Recommendation {
	var recs []Recommendation

	for _, check := range vr.Outcomes {
		if check.Achieved {
			continue
		}
		recs = append(recs, Recommendation{
			Action:   "retry_execution",
			Reason:   fmt.Sprintf("expected outcome %q was not achieved", check.Outcome.Target),
			Priority: check.Outcome.Importance,
		})
	}

	for _, a := range vr.Anomalies {
		if a.Severity != SeverityHigh && a.Severity != SeverityCritical {
			continue
		}
		priority := 0.7
		if a.Severity == SeverityCritical {
			priority = 0.9
		}
		recs = append(recs, Recommendation{
			Action:   "manual_review",
			Reason:   fmt.Sprintf("%s anomaly %s requires review", a.Severity, a.ID),
			Priority: priority,
		})
	}

	for _, c := range violatedShould {
		recs = append(recs, Recommendation{
			Action:   "review_constraint",
			Reason:   fmt.Sprintf("should constraint on %q was not met", c.Target),
			Priority: 0.3,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority > recs[j].Priority
		}
		return recs[i].Reason < recs[j].Reason
	})

	if len(recs) > 5 {
		recs = recs[:5]
	}
	return recs
}

// decide applies the decision policy; first match wins.
func decide(vr *VerificationResult, violatedMust []Constraint) Decision {
	if hasCriticalAnomaly(vr.Anomalies) || len(violatedMust) > 0 {
		return Decision{
			Action:     DecisionEscalate,
			Confidence: 0.9,
			Reasoning:  "critical anomaly or violated must-constraint requires human review",
			Suggestions: []string{
				"review anomalies and constraint violations before re-running",
			},
		}
	}

	if vr.IntentMatch < 0.5 {
		return Decision{
			Action:     DecisionRetry,
			Confidence: 0.7,
			Reasoning:  fmt.Sprintf("intent match %.2f is below 0.5", vr.IntentMatch),
			Suggestions: []string{
				"adjust handler parameters and retry the execution",
			},
		}
	}

	if vr.IntentMatch < 0.7 || vr.StateConsistency < 0.7 {
		return Decision{
			Action:     DecisionAdjust,
			Confidence: 0.6,
			Reasoning: fmt.Sprintf("intent match %.2f or state consistency %.2f is below 0.7",
				vr.IntentMatch, vr.StateConsistency),
			Suggestions: []string{
				"relax outcome thresholds or reduce the expected scope",
			},
		}
	}

	confidence := vr.IntentMatch
	if vr.StateConsistency < confidence {
		confidence = vr.StateConsistency
	}
	if vr.CausalValidity < confidence {
		confidence = vr.CausalValidity
	}

	return Decision{
		Action:     DecisionAccept,
		Confidence: confidence,
		Reasoning:  "scores within acceptance thresholds",
	}
}

func hasCriticalAnomaly(anomalies []Anomaly) bool {
	for _, a := range anomalies {
		if a.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

func countByStatus(result *engine.ExecutionResult, status engine.NodeStatus) int {
	n := 0
	for _, nr := range result.Results {
		if nr.Status == status {
			n++
		}
	}
	return n
}
