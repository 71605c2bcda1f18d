// Package errs defines the error taxonomy shared by the codec packages.
//
// Every failure returned by the codec wraps exactly one of the sentinel
// errors below, so callers can classify it with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a descriptor missing from the active table.
	ErrNotFound = errors.New("not found")
	// ErrParse reports malformed or truncated input.
	ErrParse = errors.New("parse error")
	// ErrConsistency reports values or structures the wire format cannot
	// represent.
	ErrConsistency = errors.New("consistency error")
	// ErrUnimplemented reports a recognized feature the codec does not
	// support.
	ErrUnimplemented = errors.New("unimplemented")
	// ErrLimit reports input that would exceed a configured resource limit.
	ErrLimit = errors.New("limit exceeded")
)

// ParseError locates a parse failure inside a named input.
type ParseError struct {
	Source string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	src := e.Source
	if src == "" {
		src = "(input)"
	}
	return fmt.Sprintf("%s:%d: %v", src, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes every ParseError match ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Parsef builds a ParseError for src at byte offset off.
func Parsef(src string, off int, format string, args ...any) error {
	return &ParseError{Source: src, Offset: off, Err: fmt.Errorf(format, args...)}
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Consistencyf wraps ErrConsistency with a formatted message.
func Consistencyf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// Unimplementedf wraps ErrUnimplemented with a formatted message.
func Unimplementedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnimplemented, fmt.Sprintf(format, args...))
}

// Limitf wraps ErrLimit with a formatted message.
func Limitf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrLimit, fmt.Sprintf(format, args...))
}
