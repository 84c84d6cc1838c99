package tle

import (
	"errors"
	"fmt"
)

// Parse failure causes. A *ParseError unwraps to one of these.
var (
	ErrFormat        = errors.New("malformed element set")
	ErrLineLength    = errors.New("line is not 69 characters")
	ErrChecksum      = errors.New("checksum mismatch")
	ErrNoradMismatch = errors.New("catalog number differs between lines")
	ErrFieldRange    = errors.New("field out of range")
	ErrEpoch         = errors.New("epoch out of range")
	ErrNoRecords     = errors.New("no element sets could be parsed")
)

// ErrNotFound is matched by *NotFoundError.
var ErrNotFound = errors.New("satellite not found")

// ParseError describes one rejected record.
type ParseError struct {
	Line int    // 1-based line of the record's first line, 0 for whole-input failures
	Name string // record name when known
	Err  error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line == 0:
		return fmt.Sprintf("tle: %v", e.Err)
	case e.Name == "":
		return fmt.Sprintf("tle: line %d: %v", e.Line, e.Err)
	default:
		return fmt.Sprintf("tle: line %d (%s): %v", e.Line, e.Name, e.Err)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a satellite absent from a group's catalog.
type NotFoundError struct {
	Group string
	Name  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("satellite %q not found in group %q", e.Name, e.Group)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// FetchError reports a failed download of a group's element text.
type FetchError struct {
	Group      string
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s from %s: status %d", e.Group, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s from %s: %v", e.Group, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
