package verify

import "fmt"

// IntentType classifies what the caller set out to do.
type IntentType string

const (
	IntentTypeQuery    IntentType = "query"
	IntentTypeCreate   IntentType = "create"
	IntentTypeUpdate   IntentType = "update"
	IntentTypeDelete   IntentType = "delete"
	IntentTypeAlert    IntentType = "alert"
	IntentTypeAnalyze  IntentType = "analyze"
	IntentTypeGenerate IntentType = "generate"
	IntentTypeAutomate IntentType = "automate"
)

// Validate checks if the intent type is valid.
func (t IntentType) Validate() error {
	switch t {
	case IntentTypeQuery, IntentTypeCreate, IntentTypeUpdate, IntentTypeDelete,
		IntentTypeAlert, IntentTypeAnalyze, IntentTypeGenerate, IntentTypeAutomate:
		return nil
	default:
		return fmt.Errorf("invalid intent type: %s", t)
	}
}

// ExpectedOutcome is one result the caller expects from the run.
type ExpectedOutcome struct {
	// Target is a substring matched against node result ids.
	Target string `json:"target" yaml:"target"`

	// Condition describes what should hold for the target.
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Importance weights the outcome, 0..1.
	Importance float64 `json:"importance" yaml:"importance"`
}

// ConstraintKind grades how binding a constraint is.
type ConstraintKind string

const (
	// ConstraintMust requires a matching node to complete; violation escalates.
	ConstraintMust ConstraintKind = "must"

	// ConstraintShould is advisory; violations surface as recommendations.
	ConstraintShould ConstraintKind = "should"

	// ConstraintMustNot requires that no matching node completes.
	ConstraintMustNot ConstraintKind = "must_not"
)

// Constraint is a binding or advisory condition on the run.
type Constraint struct {
	// Kind is the constraint strength.
	Kind ConstraintKind `json:"kind" yaml:"kind"`

	// Target is a substring matched against node result ids.
	Target string `json:"target" yaml:"target"`

	// Description explains the constraint for reporting.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Intent is the caller's declared expectation against which a run is graded.
type Intent struct {
	// Description is the free-text statement of intent.
	Description string `json:"description" yaml:"description"`

	// Type classifies the intent.
	Type IntentType `json:"type" yaml:"type"`

	// Targets are node or entity references the intent concerns.
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty"`

	// ExpectedOutcomes are the results the caller expects.
	ExpectedOutcomes []ExpectedOutcome `json:"expected_outcomes,omitempty" yaml:"expected_outcomes,omitempty"`

	// Constraints bound acceptable behavior.
	Constraints []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// Priority is the caller-assigned priority (low, normal, high).
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// AnomalyType classifies a detected deviation.
type AnomalyType string

const (
	AnomalyUnexpectedValue   AnomalyType = "unexpected_value"
	AnomalyMissingData       AnomalyType = "missing_data"
	AnomalyInconsistentState AnomalyType = "inconsistent_state"
	AnomalyCausalViolation   AnomalyType = "causal_violation"
	AnomalyTimingAnomaly     AnomalyType = "timing_anomaly"
	AnomalyPatternDeviation  AnomalyType = "pattern_deviation"
)

// Severity grades an anomaly.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Anomaly is a detected deviation between expected and observed execution state.
type Anomaly struct {
	// ID is a deterministic identifier derived from type and affected nodes,
	// so identical inputs produce identical anomalies.
	ID string `json:"id"`

	// Type classifies the anomaly.
	Type AnomalyType `json:"type"`

	// Severity grades the anomaly.
	Severity Severity `json:"severity"`

	// Nodes are the affected node ids.
	Nodes []string `json:"nodes,omitempty"`

	// Evidence holds supporting observations.
	Evidence []string `json:"evidence,omitempty"`
}

// RiskLevel buckets the aggregated risk score.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// DecisionAction is the verification verdict on the run.
type DecisionAction string

const (
	// DecisionAccept accepts the outcome as-is.
	DecisionAccept DecisionAction = "accept"

	// DecisionRetry suggests re-running with adjusted parameters.
	DecisionRetry DecisionAction = "retry"

	// DecisionAdjust suggests relaxing thresholds and re-evaluating.
	DecisionAdjust DecisionAction = "adjust"

	// DecisionEscalate hands the outcome to a human.
	DecisionEscalate DecisionAction = "escalate"

	// DecisionReject rejects the outcome outright. Reserved for callers
	// that override the built-in policy; the policy itself never emits it.
	DecisionReject DecisionAction = "reject"
)

// Decision is the graded verdict with its confidence and reasoning.
type Decision struct {
	// Action is the selected action.
	Action DecisionAction `json:"action"`

	// Confidence is the policy's confidence in the action, 0..1.
	Confidence float64 `json:"confidence"`

	// Reasoning is the free-text explanation.
	Reasoning string `json:"reasoning"`

	// Suggestions are concrete follow-ups for the selected action.
	Suggestions []string `json:"suggestions,omitempty"`
}

// Recommendation is a prioritized follow-up action derived from the run.
type Recommendation struct {
	// Action is the recommended action identifier.
	Action string `json:"action"`

	// Reason explains why the action is recommended.
	Reason string `json:"reason"`

	// Priority orders recommendations, 0..1 descending.
	Priority float64 `json:"priority"`
}

// OutcomeCheck records whether one expected outcome was achieved.
type OutcomeCheck struct {
	// Outcome is the checked expectation.
	Outcome ExpectedOutcome `json:"outcome"`

	// Achieved is true iff a completed node result matched the target.
	Achieved bool `json:"achieved"`

	// Node is the matching node id when achieved.
	Node string `json:"node,omitempty"`
}

// VerificationResult grades a run against an intent.
type VerificationResult struct {
	// IntentMatch scores how well the run matched the intent, 0..1.
	IntentMatch float64 `json:"intent_match"`

	// StateConsistency scores the run's internal consistency, 0..1.
	StateConsistency float64 `json:"state_consistency"`

	// CausalValidity scores dependency-order integrity, 0..1.
	CausalValidity float64 `json:"causal_validity"`

	// Outcomes are the per-expectation achievement checks.
	Outcomes []OutcomeCheck `json:"outcomes,omitempty"`

	// Anomalies are the detected deviations.
	Anomalies []Anomaly `json:"anomalies,omitempty"`

	// RiskScore is the aggregated (unbucketed) risk.
	RiskScore float64 `json:"risk_score"`

	// RiskLevel is the bucketed risk.
	RiskLevel RiskLevel `json:"risk_level"`

	// RiskFactors names the contributors to the risk score.
	RiskFactors []string `json:"risk_factors,omitempty"`

	// Recommendations are at most five prioritized follow-ups.
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	// Decision is the final verdict.
	Decision Decision `json:"decision"`
}
