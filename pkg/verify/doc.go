// Package verify grades completed plan runs against a declared intent.
//
// The verification engine is a pure function of the triple
// (Intent, ExecutionPlan, ExecutionResult). It computes three 0..1 scores
// (intent match, state consistency, causal validity), runs a composable set
// of anomaly detectors, aggregates a bucketed risk level with named
// factors, derives up to five prioritized recommendations, and applies a
// first-match-wins decision policy:
//
//  1. critical anomaly or violated must-constraint -> escalate (0.9)
//  2. intent match < 0.5 -> retry (0.7)
//  3. intent match < 0.7 or state consistency < 0.7 -> adjust (0.6)
//  4. otherwise -> accept, confidence = min of the three scores
//
// Verification findings are data, not errors: a run that executed without a
// single handler failure can still be escalated on risk, and the decision
// is the caller-visible signal, decoupled from raw execution errors.
package verify
