package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"
)

// maxLineSize bounds a single transcript line. Longer lines are truncated
// and the rest of the line is discarded.
const maxLineSize = 1024 * 1024

// ReaderSource implements LineSource over any io.Reader, typically a
// captured transcript.
type ReaderSource struct {
	reader  *bufio.Reader
	closer  io.Closer
	source  string
	lineNum int
	now     func() time.Time
}

// NewReaderSource creates a LineSource reading newline-delimited text from r.
// name is recorded as the Source of each line.
func NewReaderSource(r io.Reader, name string) *ReaderSource {
	return &ReaderSource{
		reader:  bufio.NewReaderSize(r, 64*1024),
		source:  name,
		now:     time.Now,
	}
}

// NewFileSource opens a transcript file as a LineSource.
func NewFileSource(path string) (*ReaderSource, error) {
	f, err := os.Open(path) // #nosec G304 -- user-provided paths are expected
	if err != nil {
		return nil, fmt.Errorf("opening transcript %s: %w", path, err)
	}
	s := NewReaderSource(f, path)
	s.closer = f
	return s, nil
}

// Next returns the next line. Returns io.EOF when the reader is exhausted.
func (s *ReaderSource) Next(ctx context.Context) (RawLine, error) {
	select {
	case <-ctx.Done():
		return RawLine{}, ctx.Err()
	default:
	}

	text, err := s.readLine()
	if err == io.EOF {
		return RawLine{}, io.EOF
	}
	if err != nil {
		return RawLine{}, fmt.Errorf("reading %s: %w", s.source, err)
	}

	s.lineNum++
	return RawLine{
		Text:      CleanLine(text),
		Num:       s.lineNum,
		ArrivedAt: s.now(),
		Source:    s.source,
	}, nil
}

// readLine returns the next line without its terminator, keeping at most
// maxLineSize bytes of it.
func (s *ReaderSource) readLine() (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
		if room := maxLineSize - len(line); room > 0 {
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			line = append(line, chunk...)
		}
		if !isPrefix {
			return string(line), nil
		}
	}
}

// Close releases the underlying file, if any.
func (s *ReaderSource) Close() error {
	if s.closer != nil {
		err := s.closer.Close()
		s.closer = nil
		return err
	}
	return nil
}

// CleanLine replaces invalid UTF-8 and strips trailing whitespace,
// including a carriage return left by CRLF line endings.
func CleanLine(s string) string {
	s = strings.ToValidUTF8(s, "�")
	return strings.TrimRightFunc(s, unicode.IsSpace)
}
