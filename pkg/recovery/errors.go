// Package recovery holds the typed error taxonomy of the stream pipeline and
// the retry and fallback policies applied to it.
package recovery

import (
	"errors"
	"fmt"

	"github.com/docker/mdstream/pkg/token"
)

// Error codes, one per error type.
const (
	CodeParse       = "PARSE_ERROR"
	CodeRender      = "RENDER_ERROR"
	CodeAdapter     = "ADAPTER_ERROR"
	CodeConfig      = "CONFIG_ERROR"
	CodeToolkit     = "TOOLKIT_ERROR"
	CodePerformance = "PERFORMANCE_ERROR"
)

// Coded is implemented by every error of the taxonomy.
type Coded interface {
	error
	Code() string
	Fields() map[string]any
}

// ParseError is raised when neither the lexer nor the partial parser could
// tokenize the buffer.
type ParseError struct {
	Chunk    string
	Position int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing chunk at %d: %v", e.Position, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
func (e *ParseError) Code() string  { return CodeParse }

func (e *ParseError) Fields() map[string]any {
	return map[string]any{"chunk_length": len(e.Chunk), "position": e.Position}
}

// RenderError carries the tokens whose render failed so a fallback can show
// them as plain text.
type RenderError struct {
	Tokens  token.Sequence
	Context string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("rendering %d tokens: %v", len(e.Tokens), e.Err)
	}
	return fmt.Sprintf("rendering %s: %v", e.Context, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
func (e *RenderError) Code() string  { return CodeRender }

func (e *RenderError) Fields() map[string]any {
	return map[string]any{"tokens": len(e.Tokens), "context": e.Context}
}

// AdapterError reports an event that failed validation or formatting.
type AdapterError struct {
	Event  any
	Reason string
	Err    error
}

func (e *AdapterError) Error() string {
	if e.Err == nil {
		return "invalid event: " + e.Reason
	}
	return fmt.Sprintf("invalid event: %s: %v", e.Reason, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
func (e *AdapterError) Code() string  { return CodeAdapter }

func (e *AdapterError) Fields() map[string]any {
	return map[string]any{"reason": e.Reason}
}

// ConfigError reports an option with an unusable value.
type ConfigError struct {
	Option string
	Value  any
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid option %s=%v: %s", e.Option, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }
func (e *ConfigError) Code() string  { return CodeConfig }

func (e *ConfigError) Fields() map[string]any {
	return map[string]any{"option": e.Option, "value": e.Value, "reason": e.Reason}
}

// ToolkitError wraps a failure of the terminal surface.
type ToolkitError struct {
	Op  string
	Err error
}

func (e *ToolkitError) Error() string {
	return fmt.Sprintf("surface %s: %v", e.Op, e.Err)
}

func (e *ToolkitError) Unwrap() error { return e.Err }
func (e *ToolkitError) Code() string  { return CodeToolkit }

func (e *ToolkitError) Fields() map[string]any {
	return map[string]any{"op": e.Op}
}

// PerformanceError describes a threshold breach. It is advisory and never
// fails an operation.
type PerformanceError struct {
	Operation string
	Observed  float64
	Threshold float64
	Err       error
}

func (e *PerformanceError) Error() string {
	return fmt.Sprintf("%s exceeded threshold: %.2f > %.2f", e.Operation, e.Observed, e.Threshold)
}

func (e *PerformanceError) Unwrap() error { return e.Err }
func (e *PerformanceError) Code() string  { return CodePerformance }

func (e *PerformanceError) Fields() map[string]any {
	return map[string]any{"operation": e.Operation, "observed": e.Observed, "threshold": e.Threshold}
}

// Severity drives how the handler reacts to an error.
type Severity int

const (
	SeverityCritical Severity = iota
	SeverityRetryable
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityRetryable:
		return "retryable"
	case SeverityWarning:
		return "warning"
	default:
		return "critical"
	}
}

// Classify maps an error to its severity. Errors outside the taxonomy are
// critical.
func Classify(err error) Severity {
	var (
		toolkitErr *ToolkitError
		configErr  *ConfigError
		perfErr    *PerformanceError
		parseErr   *ParseError
		renderErr  *RenderError
	)
	switch {
	case err == nil:
		return SeverityWarning
	case errors.As(err, &toolkitErr), errors.As(err, &configErr):
		return SeverityCritical
	case errors.As(err, &perfErr):
		return SeverityWarning
	case errors.As(err, &parseErr), errors.As(err, &renderErr):
		return SeverityRetryable
	default:
		return SeverityCritical
	}
}

// CodeOf returns the taxonomy code of err, or "UNKNOWN_ERROR".
func CodeOf(err error) string {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return "UNKNOWN_ERROR"
}
