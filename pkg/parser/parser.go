package parser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// Parser is the per-session stream state machine. It exclusively owns its
// State until Finalize hands out the Result.
type Parser struct {
	state State

	regressions []Regression
	counts      map[FrameKind]int
	linesRead   int
	startSeen   bool

	trace  func(Step)
	result *Result
}

// Option configures a Parser.
type Option func(*Parser)

// WithTrace registers a callback invoked after every processed line.
func WithTrace(fn func(Step)) Option {
	return func(p *Parser) {
		p.trace = fn
	}
}

// New creates a parser waiting for the start marker.
func New(opts ...Option) *Parser {
	p := &Parser{
		state:  State{Phase: PhaseAwaitingStart},
		counts: make(map[FrameKind]int),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Phase returns the current phase.
func (p *Parser) Phase() Phase {
	return p.state.Phase
}

// Feed classifies one line and applies the matching transition.
func (p *Parser) Feed(line RawLine) (Step, error) {
	if p.result != nil {
		return Step{}, ErrFinalized
	}

	kind := Classify(line.Text)
	p.linesRead++
	p.counts[kind]++

	step := Step{Line: line, Kind: kind, From: p.state.Phase, Action: ActionIgnored}

	switch p.state.Phase {
	case PhaseAwaitingStart:
		if kind == FrameStartMarker {
			p.state.Phase = PhaseCollecting
			p.startSeen = true
			step.Action = ActionStarted
		}
	case PhaseCollecting:
		p.collect(line, kind, &step)
	case PhaseDone:
		// finished; everything is ignored
	}

	step.To = p.state.Phase
	if p.trace != nil {
		p.trace(step)
	}
	return step, nil
}

func (p *Parser) collect(line RawLine, kind FrameKind, step *Step) {
	switch kind {
	case FrameTimeScale:
		v, lerr := ParseTimeScale(line.Text)
		if lerr != nil {
			p.recordError(line, lerr, step)
			return
		}
		p.state.TimeScaleMicros = &v
		step.Action = ActionTimeScaleSet

	case FrameDataRow:
		sample, lerr := ParseRow(line.Text)
		if lerr != nil {
			p.recordError(line, lerr, step)
			return
		}
		if n := len(p.state.Samples); n > 0 {
			if prev := p.state.Samples[n-1].Index; sample.Index < prev {
				p.regressions = append(p.regressions, Regression{
					Num:      line.Num,
					Previous: prev,
					Index:    sample.Index,
				})
				step.Regressed = true
			}
		}
		p.state.Samples = append(p.state.Samples, sample)
		step.Sample = &sample
		step.Action = ActionSampleAppended

	case FrameEndMarker:
		p.state.Phase = PhaseDone
		step.Action = ActionEnded
	}
}

func (p *Parser) recordError(line RawLine, lerr *LineError, step *Step) {
	lerr.Num = line.Num
	lerr.Raw = line.Text
	p.state.Errors = append(p.state.Errors, *lerr)
	step.Action = ActionLineError
	step.Err = lerr
}

// Finalize closes the session and returns its result. The termination
// argument is recorded unless the end marker was already seen. Calling
// Finalize again returns the same result.
func (p *Parser) Finalize(term Termination) *Result {
	if p.result != nil {
		return p.result
	}
	if p.state.Phase == PhaseDone {
		term = TerminationEndMarker
	}
	p.state.Phase = PhaseDone

	samples := p.state.Samples
	if samples == nil {
		samples = []telemetry.Sample{}
	}
	lineErrors := p.state.Errors
	if lineErrors == nil {
		lineErrors = []LineError{}
	}

	p.result = &Result{
		Samples:         samples,
		TimeScaleMicros: p.state.TimeScaleMicros,
		Errors:          lineErrors,
		Regressions:     p.regressions,
		Termination:     term,
		StartSeen:       p.startSeen,
		LinesRead:       p.linesRead,
		FrameCounts:     p.counts,
	}

	// The result owns the data now.
	p.state = State{Phase: PhaseDone}
	p.regressions = nil
	p.counts = nil
	return p.result
}

// Run pulls lines from src until the end marker, a timeout, end of input or
// cancellation and returns the finalized result. Timeouts and end of input
// are normal terminations. On cancellation the partial result is returned
// together with the context error. Any other source error is fatal.
func Run(ctx context.Context, src LineSource, opts ...Option) (*Result, error) {
	p := New(opts...)

	for {
		if err := ctx.Err(); err != nil {
			return p.Finalize(TerminationCancelled), err
		}

		line, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrTimeout):
			return p.Finalize(TerminationTimeout), nil
		case errors.Is(err, io.EOF):
			return p.Finalize(TerminationEndOfInput), nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return p.Finalize(TerminationCancelled), err
		default:
			return nil, fmt.Errorf("reading line source: %w", err)
		}

		if _, err := p.Feed(line); err != nil {
			return nil, err
		}

		if p.Phase() == PhaseDone {
			return p.Finalize(TerminationEndMarker), nil
		}
	}
}
