// Package errors defines the error taxonomy shared by the interpreter,
// the versioned state engine, and the front-end adapters.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the evaluation and versioning taxonomy.
//
// Script-level failures (undefined command, arity, permission, runtime,
// timeout) are always recovered at the top of Submit and rendered as error
// output. ErrStorageFault is different: it signals that state durability,
// not script correctness, is at risk, and is never conflated with the rest.
var (
	// ErrUndefinedCommand indicates the first word of a command named
	// neither a builtin nor a defined procedure.
	ErrUndefinedCommand = errors.New("invalid command name")

	// ErrArityMismatch indicates a procedure was called with the wrong
	// number of arguments.
	ErrArityMismatch = errors.New("wrong number of arguments")

	// ErrPermissionDenied indicates an admin-gated operation was attempted
	// by a caller without the admin flag.
	ErrPermissionDenied = errors.New("requires privileges")

	// ErrTimeout indicates the evaluation exhausted its step budget or
	// wall-clock deadline.
	ErrTimeout = errors.New("evaluation timed out")

	// ErrCommitNotFound indicates a rollback target absent from history.
	ErrCommitNotFound = errors.New("commit not found")

	// ErrReadOnlyVariable indicates a write to a context binding such as
	// nick or channel.
	ErrReadOnlyVariable = errors.New("read-only variable")

	// ErrStorageFault indicates the durable storage provider failed.
	// Fatal to the engine instance.
	ErrStorageFault = errors.New("storage fault")
)

// ParseError reports an unterminated or unbalanced construct in source text.
// The parser is pure, so a ParseError always precedes any evaluation or
// mutation.
type ParseError struct {
	Construct string // "brace", "bracket", or "quote"
	Position  int    // byte offset of the offending construct
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("unterminated %s starting at position %d", e.Construct, e.Position)
}

// NewParseError creates a ParseError for the given construct and offset.
func NewParseError(construct string, position int) *ParseError {
	return &ParseError{Construct: construct, Position: position}
}

// EvalError wraps a script-level failure with the command that produced it.
type EvalError struct {
	Command string // resolved name of the failing command, if known
	Message string // human-readable detail
	Cause   error  // taxonomy sentinel or underlying error
}

// Error implements the error interface.
//
// Format: "command: message" when a command is known, otherwise the message
// alone. The sentinel cause is reachable via errors.Is.
func (e *EvalError) Error() string {
	if e.Command != "" {
		return fmt.Sprintf("%s: %s", e.Command, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *EvalError) Unwrap() error {
	return e.Cause
}

// NewEvalError creates an EvalError with the given command context.
//
// Returns nil if cause is nil (no error to wrap).
func NewEvalError(command, message string, cause error) *EvalError {
	if cause == nil && message == "" {
		return nil
	}
	return &EvalError{Command: command, Message: message, Cause: cause}
}

// Runtime creates a generic runtime evaluation error (type coercion failure,
// division by zero, bad list index, and similar).
func Runtime(command, format string, args ...interface{}) *EvalError {
	return &EvalError{Command: command, Message: fmt.Sprintf(format, args...)}
}

// IsScriptError reports whether err is a recoverable script-level failure,
// as opposed to a storage fault the engine must surface distinctly.
func IsScriptError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrStorageFault)
}
