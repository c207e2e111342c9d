package serial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ccollicutt/falllog/pkg/parser"
)

const readChunk = 256

// LineReader assembles newline-delimited lines from a port whose reads
// return (0, nil) when the per-read timeout expires.
type LineReader struct {
	r        io.Reader
	source   string
	deadline time.Time
	logger   *slog.Logger

	buf     []byte
	pending []byte
	lineNum int
	eof     bool

	now func() time.Time
}

// NewLineReader creates a LineSource over r that gives up at deadline.
func NewLineReader(r io.Reader, source string, deadline time.Time, logger *slog.Logger) *LineReader {
	return &LineReader{
		r:        r,
		source:   source,
		deadline: deadline,
		logger:   logger,
		buf:      make([]byte, readChunk),
		now:      time.Now,
	}
}

// Next returns the next complete line. A partial line still buffered when
// the deadline passes or the port reports EOF is returned as-is, then the
// reader reports parser.ErrTimeout or io.EOF.
func (l *LineReader) Next(ctx context.Context) (parser.RawLine, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			text := string(l.pending[:i])
			l.pending = l.pending[i+1:]
			return l.emit(text), nil
		}

		if err := ctx.Err(); err != nil {
			return parser.RawLine{}, err
		}

		if l.eof || !l.now().Before(l.deadline) {
			if len(l.pending) > 0 {
				text := string(l.pending)
				l.pending = nil
				return l.emit(text), nil
			}
			if l.eof {
				return parser.RawLine{}, io.EOF
			}
			l.logger.Debug("response deadline reached", "port", l.source)
			return parser.RawLine{}, parser.ErrTimeout
		}

		n, err := l.r.Read(l.buf)
		if n > 0 {
			l.pending = append(l.pending, l.buf[:n]...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				l.eof = true
				continue
			}
			return parser.RawLine{}, fmt.Errorf("reading %s: %w", l.source, err)
		}
	}
}

func (l *LineReader) emit(text string) parser.RawLine {
	l.lineNum++
	text = parser.CleanLine(text)
	l.logger.Debug("received", "line", text)
	return parser.RawLine{
		Text:      text,
		Num:       l.lineNum,
		ArrivedAt: l.now(),
		Source:    l.source,
	}
}

// Close is a no-op; the Device owns the port.
func (l *LineReader) Close() error {
	return nil
}
