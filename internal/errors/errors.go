// internal/errors/errors.go
package errors

import (
	"fmt"
	"strings"
)

// ErrorKind classifies an expression error.
type ErrorKind string

const (
	SyntaxError     ErrorKind = "SyntaxError"
	UnknownVariable ErrorKind = "UnknownVariable"
	SortMismatch    ErrorKind = "SortMismatch"
	EvalError       ErrorKind = "EvalError"
)

// ExprError is the single error type reported by the library. Parse-time
// errors carry a source location; evaluation misuse errors do not.
type ExprError struct {
	Kind    ErrorKind
	Message string
	Line    int
	Column  int
	Source  string // the source line where the error occurred, if known
}

// Error implements the error interface.
func (e *ExprError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))

	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("\n  at %d:%d", e.Line, e.Column))

		// Show the source line with a caret under the offending column.
		if e.Source != "" {
			prefix := fmt.Sprintf("%d | ", e.Line)
			sb.WriteString(fmt.Sprintf("\n\n  %s%s\n", prefix, e.Source))
			sb.WriteString("  ")
			sb.WriteString(strings.Repeat(" ", len(prefix)))
			if e.Column > 1 {
				sb.WriteString(strings.Repeat(" ", e.Column-1))
			}
			sb.WriteString("^")
		}
	}

	return sb.String()
}

// NewSyntaxError creates a new syntax error.
func NewSyntaxError(message string, line, column int) *ExprError {
	return &ExprError{
		Kind:    SyntaxError,
		Message: message,
		Line:    line,
		Column:  column,
	}
}

// NewUnknownVariable creates an error for an identifier the caller's
// bindings could not resolve.
func NewUnknownVariable(name string, line, column int) *ExprError {
	return &ExprError{
		Kind:    UnknownVariable,
		Message: fmt.Sprintf("unknown variable %q", name),
		Line:    line,
		Column:  column,
	}
}

// NewSortMismatch creates an error for a subexpression of the wrong sort.
func NewSortMismatch(message string, line, column int) *ExprError {
	return &ExprError{
		Kind:    SortMismatch,
		Message: message,
		Line:    line,
		Column:  column,
	}
}

// NewEvalError creates an error for misuse of the evaluator, such as
// binding columns of inconsistent lengths.
func NewEvalError(format string, args ...interface{}) *ExprError {
	return &ExprError{
		Kind:    EvalError,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithSource attaches the source text so Error can render a caret under
// the offending column.
func (e *ExprError) WithSource(source string) *ExprError {
	lines := strings.Split(source, "\n")
	if e.Line > 0 && e.Line <= len(lines) {
		e.Source = lines[e.Line-1]
	}
	return e
}
