// Package errors defines the error-kind taxonomy the streaming pipeline
// propagates: parse errors, resource-limit breaches, I/O failures, and
// everything else. Every kind supports errors.As so callers can branch on
// kind without string matching; ParseError, IOError and UnknownError also
// wrap an underlying cause and support errors.Unwrap, while
// ResourcesExceededError carries only the operation and the limit.
package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// ParseError indicates malformed EBML in the input stream.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ebml parse error: %s", e.Op)
	}
	return fmt.Sprintf("ebml parse error: %s: %v", e.Op, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err (adding a stack trace via pkg/errors) as a ParseError.
func NewParseError(op string, err error) *ParseError {
	return &ParseError{Op: op, Err: errors.WithStack(err)}
}

// ResourcesExceededError indicates a chunker or event-source buffer would
// grow past its configured soft limit.
type ResourcesExceededError struct {
	Op    string
	Limit int
}

func (e *ResourcesExceededError) Error() string {
	return fmt.Sprintf("resources exceeded: %s (limit %d bytes)", e.Op, e.Limit)
}

// NewResourcesExceeded builds a ResourcesExceededError for the given buffer
// and its configured soft limit.
func NewResourcesExceeded(op string, limit int) *ResourcesExceededError {
	return &ResourcesExceededError{Op: op, Limit: limit}
}

// IOError indicates an underlying transport failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("io error: %s", e.Op)
	}
	return fmt.Sprintf("io error: %s: %v", e.Op, e.Err)
}
func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps err as an IOError, attaching call-site context.
func NewIOError(op string, err error) *IOError {
	return &IOError{Op: op, Err: errors.Wrap(err, op)}
}

// UnknownError wraps a foreign error that doesn't fit another kind.
type UnknownError struct {
	Err error
}

func (e *UnknownError) Error() string { return fmt.Sprintf("unknown error: %v", e.Err) }
func (e *UnknownError) Unwrap() error { return e.Err }

// NewUnknown wraps err as an UnknownError.
func NewUnknown(err error) *UnknownError {
	return &UnknownError{Err: err}
}

// IsResourcesExceeded reports whether err (or something it wraps) is a
// ResourcesExceededError.
func IsResourcesExceeded(err error) bool {
	var target *ResourcesExceededError
	return stderrors.As(err, &target)
}

// IsParseError reports whether err (or something it wraps) is a ParseError.
func IsParseError(err error) bool {
	var target *ParseError
	return stderrors.As(err, &target)
}
