package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies where in the compile/plan/execute pipeline an error arose.
type ErrorKind string

const (
	// ErrorKindCompilation indicates the statement list could not be compiled
	// into a graph. Examples: duplicate declarations, invalid node configs.
	ErrorKindCompilation ErrorKind = "compilation"

	// ErrorKindPlanning indicates the graph could not be layered into stages.
	// The only planning failure in practice is a dependency cycle.
	ErrorKindPlanning ErrorKind = "planning"

	// ErrorKindHandler wraps a node handler's failure during execution.
	ErrorKindHandler ErrorKind = "handler"

	// ErrorKindAggregation indicates one or more handler errors accumulated
	// within a single stage.
	ErrorKindAggregation ErrorKind = "aggregation"

	// ErrorKindConflict indicates an optimistic-concurrency rejection,
	// e.g. an event-log append with a stale expected version.
	ErrorKindConflict ErrorKind = "conflict"

	// ErrorKindInternal indicates an invariant violation inside the engine.
	ErrorKindInternal ErrorKind = "internal"
)

// EngineError represents a classified engine error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// NodeID is the execution node that caused the error, if applicable.
	NodeID string `json:"node_id,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] %s (node=%s)%s", e.Kind, e.Message, e.NodeID, e.unwrapSuffix())
	}
	return fmt.Sprintf("[%s] %s%s", e.Kind, e.Message, e.unwrapSuffix())
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) unwrapSuffix() string {
	if e.Err != nil {
		return ": " + e.Err.Error()
	}
	return ""
}

// Is implements error equality checking for errors.Is.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

// WithNode adds node context to an error.
func (e *EngineError) WithNode(nodeID string) *EngineError {
	e.NodeID = nodeID
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// NewCompilationError creates a graph compilation error.
func NewCompilationError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindCompilation, Message: message, Err: err}
}

// NewPlanningError creates a stage planning error.
func NewPlanningError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindPlanning, Message: message, Err: err}
}

// NewHandlerError wraps a node handler failure.
func NewHandlerError(nodeID string, err error) *EngineError {
	return &EngineError{
		Kind:    ErrorKindHandler,
		Message: "handler execution failed",
		NodeID:  nodeID,
		Err:     err,
	}
}

// NewAggregationError creates an error summarizing stage-level handler failures.
func NewAggregationError(stage int, count int) *EngineError {
	return &EngineError{
		Kind:    ErrorKindAggregation,
		Message: fmt.Sprintf("%d handler error(s) in stage %d", count, stage),
	}
}

// NewConflictError creates an optimistic-concurrency conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindConflict, Message: message, Err: err}
}

// NewInternalError creates an internal invariant-violation error.
func NewInternalError(message string, err error) *EngineError {
	return &EngineError{Kind: ErrorKindInternal, Message: message, Err: err}
}

// IsCompilation returns true if the error is a compilation error.
func IsCompilation(err error) bool { return hasKind(err, ErrorKindCompilation) }

// IsPlanning returns true if the error is a planning error.
func IsPlanning(err error) bool { return hasKind(err, ErrorKindPlanning) }

// IsHandler returns true if the error wraps a node handler failure.
func IsHandler(err error) bool { return hasKind(err, ErrorKindHandler) }

// IsConflict returns true if the error is an optimistic-concurrency conflict.
func IsConflict(err error) bool { return hasKind(err, ErrorKindConflict) }

func hasKind(err error, kind ErrorKind) bool {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Common error codes.
const (
	ErrCodeDuplicateDeclaration = "DUPLICATE_DECLARATION"
	ErrCodeUnresolvedReference  = "UNRESOLVED_REFERENCE"
	ErrCodeInvalidConfig        = "INVALID_CONFIG"
	ErrCodeCycleDetected        = "CYCLE_DETECTED"
	ErrCodeHandlerMissing       = "HANDLER_MISSING"
	ErrCodeHandlerFailed        = "HANDLER_FAILED"
	ErrCodeVersionConflict      = "VERSION_CONFLICT"
	ErrCodeInternal             = "INTERNAL_ERROR"
)
