package config

import (
	"github.com/veridag/veridag/pkg/engine"
)

// Document is a statement-list file as produced by the declarative front
// end: a named program plus one entry per declaration.
type Document struct {
	// Name is the program name, recorded in graph metadata.
	Name string `yaml:"name" validate:"required"`

	// Statements are the declarations, in source order.
	Statements []StatementDoc `yaml:"statements" validate:"required,min=1,dive"`
}

// StatementDoc is the YAML shape of one declaration. Kind selects which of
// the optional field groups applies; kind-specific requirements are
// enforced by validation.
type StatementDoc struct {
	// Kind tags the declaration.
	Kind string `yaml:"kind" validate:"required,oneof=entity pipeline alert dashboard source device"`

	// Name is the declared name, unique per kind.
	Name string `yaml:"name" validate:"required"`

	// Entity fields.
	Fields []engine.FieldDef `yaml:"fields,omitempty" validate:"required_if=Kind entity,dive"`

	// Pipeline fields.
	Input      string                 `yaml:"input,omitempty"`
	Transforms []engine.TransformStep `yaml:"transforms,omitempty" validate:"required_if=Kind pipeline,dive"`
	Outputs    []string               `yaml:"outputs,omitempty"`
	Schedule   string                 `yaml:"schedule,omitempty"`

	// Alert and dashboard fields.
	Entity    string                `yaml:"entity,omitempty" validate:"required_if=Kind alert,required_if=Kind dashboard"`
	Condition *engine.ConditionExpr `yaml:"condition,omitempty" validate:"required_if=Kind alert"`
	Targets   []string              `yaml:"targets,omitempty"`
	Widgets   []string              `yaml:"widgets,omitempty"`

	// Source fields.
	SourceType string `yaml:"source_type,omitempty" validate:"required_if=Kind source"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	Format     string `yaml:"format,omitempty"`

	// Device fields.
	Subscriptions []string `yaml:"subscriptions,omitempty"`
}
