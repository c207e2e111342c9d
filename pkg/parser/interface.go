package parser

import (
	"context"
	"errors"
)

// ErrTimeout is returned by a LineSource when no line arrived before its
// deadline. The parser treats it like end of input.
var ErrTimeout = errors.New("line source timed out")

// ErrFinalized is returned when a line is fed to a parser whose session
// has already been finalized.
var ErrFinalized = errors.New("parser already finalized")

// LineSource provides decoded text lines one at a time.
// Implementations must be safe for sequential access (not concurrent).
type LineSource interface {
	// Next returns the next line with trailing whitespace removed.
	// Returns io.EOF when the input is exhausted and ErrTimeout when the
	// source gave up waiting. Any other error is an I/O fault.
	Next(ctx context.Context) (RawLine, error)

	// Close releases any resources held by the source.
	Close() error
}
