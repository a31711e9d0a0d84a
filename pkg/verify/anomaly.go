package verify

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veridag/veridag/pkg/engine"
)

// Extreme band for the value-range detector. Numeric output fields beyond
// this magnitude are flagged as unexpected values.
const valueExtremeBand = 1_000_000

// Detector inspects a plan and its execution result for one class of
// deviation. Detectors are independent and composable; timing and pattern
// detection plug in here.
type Detector interface {
	// Name identifies the detector.
	Name() string

	// Detect returns the anomalies found, if any.
	Detect(plan *engine.ExecutionPlan, result *engine.ExecutionResult) []Anomaly
}

// defaultDetectors returns the built-in detector set.
func defaultDetectors() []Detector {
	return []Detector{
		valueRangeDetector{},
		missingDataDetector{},
		stateConsistencyDetector{},
	}
}

// valueRangeDetector flags numeric output fields beyond the fixed extreme band.
type valueRangeDetector struct{}

func (valueRangeDetector) Name() string { return "value_range" }

func (valueRangeDetector) Detect(_ *engine.ExecutionPlan, result *engine.ExecutionResult) []Anomaly {
	var anomalies []Anomaly
	for _, id := range sortedResultIDs(result) {
		nr := result.Results[id]
		if nr.Status != engine.NodeStatusCompleted || nr.Output == nil {
			continue
		}
		var evidence []string
		fields := make([]string, 0, len(nr.Output))
		for field := range nr.Output {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			v, ok := numericValue(nr.Output[field])
			if !ok {
				continue
			}
			if v > valueExtremeBand || v < -valueExtremeBand {
				evidence = append(evidence, fmt.Sprintf("%s = %v", field, nr.Output[field]))
			}
		}
		if len(evidence) > 0 {
			anomalies = append(anomalies, newAnomaly(
				AnomalyUnexpectedValue, SeverityMedium, []string{id}, evidence))
		}
	}
	return anomalies
}

// missingDataDetector flags completed nodes that produced no output.
type missingDataDetector struct{}

func (missingDataDetector) Name() string { return "missing_data" }

func (missingDataDetector) Detect(_ *engine.ExecutionPlan, result *engine.ExecutionResult) []Anomaly {
	var anomalies []Anomaly
	for _, id := range sortedResultIDs(result) {
		nr := result.Results[id]
		if nr.Status == engine.NodeStatusCompleted && len(nr.Output) == 0 {
			anomalies = append(anomalies, newAnomaly(
				AnomalyMissingData, SeverityLow, []string{id},
				[]string{"node completed without producing output"}))
		}
	}
	return anomalies
}

// stateConsistencyDetector flags completed nodes whose declared dependency
// never completed. Such a node ran against the scheduling guarantee, so the
// finding is high severity.
type stateConsistencyDetector struct{}

func (stateConsistencyDetector) Name() string { return "state_consistency" }

func (stateConsistencyDetector) Detect(plan *engine.ExecutionPlan, result *engine.ExecutionResult) []Anomaly {
	var anomalies []Anomaly
	for _, id := range sortedResultIDs(result) {
		nr := result.Results[id]
		if nr.Status != engine.NodeStatusCompleted {
			continue
		}
		node := plan.Graph.Nodes[id]
		if node == nil {
			continue
		}
		var evidence []string
		for _, dep := range node.Dependencies {
			depRes, ok := result.Results[dep]
			if !ok || depRes.Status != engine.NodeStatusCompleted {
				evidence = append(evidence,
					fmt.Sprintf("dependency %s did not complete", dep))
			}
		}
		if len(evidence) > 0 {
			anomalies = append(anomalies, newAnomaly(
				AnomalyInconsistentState, SeverityHigh, []string{id}, evidence))
		}
	}
	return anomalies
}

// newAnomaly constructs an anomaly with a deterministic id, so identical
// inputs always verify identically.
func newAnomaly(t AnomalyType, sev Severity, nodes, evidence []string) Anomaly {
	return Anomaly{
		ID:       fmt.Sprintf("%s:%s", t, strings.Join(nodes, ",")),
		Type:     t,
		Severity: sev,
		Nodes:    nodes,
		Evidence: evidence,
	}
}

func sortedResultIDs(result *engine.ExecutionResult) []string {
	ids := make([]string, 0, len(result.Results))
	for id := range result.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
