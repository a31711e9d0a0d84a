package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/veridag/veridag/pkg/engine"
	"github.com/veridag/veridag/pkg/verify"
)

// Loader parses and validates statement-list documents.
type Loader struct {
	validate *validator.Validate
	cron     cron.Parser
}

// NewLoader creates a loader.
func NewLoader() *Loader {
	return &Loader{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cron:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Load reads, parses, and validates a statement file.
func (l *Loader) Load(path string) (string, []engine.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read statement file: %w", err)
	}
	return l.Parse(data)
}

// Parse parses and validates a statement-list document and converts it to
// the engine's statement types.
func (l *Loader) Parse(data []byte) (string, []engine.Statement, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("failed to parse statement document: %w", err)
	}

	if err := l.validate.Struct(doc); err != nil {
		return "", nil, fmt.Errorf("invalid statement document: %w", err)
	}

	statements := make([]engine.Statement, 0, len(doc.Statements))
	for i := range doc.Statements {
		stmt, err := l.convert(&doc.Statements[i])
		if err != nil {
			return "", nil, err
		}
		statements = append(statements, stmt)
	}

	return doc.Name, statements, nil
}

func (l *Loader) convert(d *StatementDoc) (engine.Statement, error) {
	switch d.Kind {
	case "entity":
		return &engine.EntityStatement{Name: d.Name, Fields: d.Fields}, nil

	case "pipeline":
		for _, step := range d.Transforms {
			if step.Name == "" {
				return nil, fmt.Errorf("pipeline %s: transform step has no name", d.Name)
			}
		}
		if d.Schedule != "" {
			if _, err := l.cron.Parse(d.Schedule); err != nil {
				return nil, fmt.Errorf("pipeline %s: invalid schedule %q: %w", d.Name, d.Schedule, err)
			}
		}
		return &engine.PipelineStatement{
			Name:       d.Name,
			Input:      d.Input,
			Transforms: d.Transforms,
			Outputs:    d.Outputs,
			Schedule:   d.Schedule,
		}, nil

	case "alert":
		if d.Condition == nil {
			return nil, fmt.Errorf("alert %s: missing condition", d.Name)
		}
		return &engine.AlertStatement{
			Name:      d.Name,
			Entity:    d.Entity,
			Condition: *d.Condition,
			Targets:   d.Targets,
		}, nil

	case "dashboard":
		return &engine.DashboardStatement{
			Name:    d.Name,
			Entity:  d.Entity,
			Widgets: d.Widgets,
		}, nil

	case "source":
		return &engine.SourceStatement{
			Name:       d.Name,
			SourceType: d.SourceType,
			Endpoint:   d.Endpoint,
			Format:     d.Format,
		}, nil

	case "device":
		return &engine.DeviceStatement{
			Name:          d.Name,
			Subscriptions: d.Subscriptions,
		}, nil

	default:
		return nil, fmt.Errorf("unknown statement kind %q", d.Kind)
	}
}

// LoadIntent reads a verification intent from a YAML file.
func (l *Loader) LoadIntent(path string) (*verify.Intent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read intent file: %w", err)
	}

	var intent verify.Intent
	if err := yaml.Unmarshal(data, &intent); err != nil {
		return nil, fmt.Errorf("failed to parse intent file: %w", err)
	}
	if err := intent.Type.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}
	return &intent, nil
}
