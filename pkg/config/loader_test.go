package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/veridag/veridag/pkg/engine"
)

const statementYAML = `
name: retail
statements:
  - kind: entity
    name: Customer
    fields:
      - name: id
        type: string
      - name: total
        type: number
  - kind: source
    name: Orders
    source_type: http
    endpoint: https://example.com/orders
    format: json
  - kind: pipeline
    name: Enrich
    input: Orders.data
    schedule: "0 2 * * *"
    transforms:
      - name: filter
        operation: filter
        args:
          field: total
      - name: load
        operation: store
    outputs:
      - Customer
  - kind: alert
    name: HighValue
    entity: Customer
    condition:
      field: total
      operator: ">"
      value: 100
    targets:
      - email
  - kind: dashboard
    name: Overview
    entity: Customer
    widgets:
      - chart
  - kind: device
    name: Display
    subscriptions:
      - Customer
`

func TestParseDocument(t *testing.T) {
	loader := NewLoader()
	name, statements, err := loader.Parse([]byte(statementYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if name != "retail" {
		t.Errorf("name = %s", name)
	}
	if len(statements) != 6 {
		t.Fatalf("statements = %d, want 6", len(statements))
	}

	entity, ok := statements[0].(*engine.EntityStatement)
	if !ok {
		t.Fatalf("statement 0 is %T", statements[0])
	}
	if entity.Name != "Customer" || len(entity.Fields) != 2 {
		t.Errorf("entity = %+v", entity)
	}

	pipeline, ok := statements[2].(*engine.PipelineStatement)
	if !ok {
		t.Fatalf("statement 2 is %T", statements[2])
	}
	if pipeline.Input != "Orders.data" || pipeline.Schedule != "0 2 * * *" {
		t.Errorf("pipeline = %+v", pipeline)
	}
	if len(pipeline.Transforms) != 2 || pipeline.Transforms[0].Args["field"] != "total" {
		t.Errorf("transforms = %+v", pipeline.Transforms)
	}

	alert, ok := statements[3].(*engine.AlertStatement)
	if !ok {
		t.Fatalf("statement 3 is %T", statements[3])
	}
	if alert.Condition.String() != "total > 100" {
		t.Errorf("condition = %q", alert.Condition.String())
	}
}

func TestParseCompilesCleanly(t *testing.T) {
	loader := NewLoader()
	name, statements, err := loader.Parse([]byte(statementYAML))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	compiler := engine.NewCompiler(name)
	graph, err := compiler.Compile(statements)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(compiler.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %+v", compiler.Warnings())
	}
	if graph.Node(engine.AlertNodeID("HighValue")) == nil {
		t.Error("missing alert node")
	}
}

func TestParseRejectsMissingName(t *testing.T) {
	_, _, err := NewLoader().Parse([]byte(`
statements:
  - kind: entity
    name: X
    fields:
      - name: id
        type: string
`))
	if err == nil {
		t.Fatal("expected validation error for missing document name")
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, _, err := NewLoader().Parse([]byte(`
name: bad
statements:
  - kind: widget
    name: X
`))
	if err == nil {
		t.Fatal("expected validation error for unknown kind")
	}
}

func TestParseRejectsAlertWithoutCondition(t *testing.T) {
	_, _, err := NewLoader().Parse([]byte(`
name: bad
statements:
  - kind: alert
    name: A
    entity: Customer
    targets: [email]
`))
	if err == nil {
		t.Fatal("expected validation error for alert without condition")
	}
}

func TestParseRejectsBadSchedule(t *testing.T) {
	_, _, err := NewLoader().Parse([]byte(`
name: bad
statements:
  - kind: pipeline
    name: P
    schedule: "every tuesday"
    transforms:
      - name: t1
        operation: map
`))
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestLoadIntent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intent.yaml")
	err := os.WriteFile(path, []byte(`
description: nightly enrichment must land
type: automate
expected_outcomes:
  - target: projection:Customer
    importance: 0.9
constraints:
  - kind: must
    target: aggregate:Customer
`), 0644)
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}

	intent, err := NewLoader().LoadIntent(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if intent.Type != "automate" {
		t.Errorf("type = %s", intent.Type)
	}
	if len(intent.ExpectedOutcomes) != 1 || intent.ExpectedOutcomes[0].Importance != 0.9 {
		t.Errorf("outcomes = %+v", intent.ExpectedOutcomes)
	}
	if len(intent.Constraints) != 1 || intent.Constraints[0].Kind != "must" {
		t.Errorf("constraints = %+v", intent.Constraints)
	}
}

func TestLoadIntentRejectsBadType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intent.yaml")
	if err := os.WriteFile(path, []byte("description: x\ntype: wish\n"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := NewLoader().LoadIntent(path); err == nil {
		t.Fatal("expected error for invalid intent type")
	}
}
