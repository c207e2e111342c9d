// Package parser turns the fall logger's serial transcript into samples.
//
// A transcript mixes device chatter, metadata lines and comma separated
// data rows. Classify assigns every line a FrameKind and Parser walks the
// AwaitingStart -> Collecting -> Done state machine over those frames,
// collecting samples and per-line errors into a Result.
package parser

import (
	"fmt"
	"time"

	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// RawLine is a single decoded line from a LineSource.
type RawLine struct {
	// Text is the line content without the trailing newline.
	Text string

	// Num is the 1-based line number within the source.
	Num int

	// ArrivedAt is when the line was read.
	ArrivedAt time.Time

	// Source names where the line came from (port or file path).
	Source string
}

// FrameKind is the logical frame type of a transcript line.
type FrameKind string

const (
	FrameStartMarker   FrameKind = "start_marker"
	FrameTimeScale     FrameKind = "time_scale"
	FrameEndMarker     FrameKind = "end_marker"
	FrameMetadataNoise FrameKind = "metadata_noise"
	FrameDataRow       FrameKind = "data_row"
	FrameUnrecognized  FrameKind = "unrecognized"
)

// FrameKinds lists every frame kind in classification order.
func FrameKinds() []FrameKind {
	return []FrameKind{
		FrameStartMarker,
		FrameTimeScale,
		FrameEndMarker,
		FrameMetadataNoise,
		FrameDataRow,
		FrameUnrecognized,
	}
}

// Phase is the parser's position in the session.
type Phase string

const (
	PhaseAwaitingStart Phase = "awaiting_start"
	PhaseCollecting    Phase = "collecting"
	PhaseDone          Phase = "done"
)

// Reason classifies a malformed line.
type Reason string

const (
	// ReasonWrongFieldCount means the row did not have index plus three axes.
	ReasonWrongFieldCount Reason = "wrong_field_count"

	// ReasonNonNumericField means a field failed base-10 integer parsing.
	ReasonNonNumericField Reason = "non_numeric_field"
)

// LineError records a malformed line seen while collecting. It never
// aborts the session.
type LineError struct {
	Raw    string `json:"raw"`
	Num    int    `json:"line"`
	Reason Reason `json:"reason"`
	Field  string `json:"field,omitempty"`
}

// Error implements error.
func (e *LineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("line %d: %s (field %q): %q", e.Num, e.Reason, e.Field, e.Raw)
	}
	return fmt.Sprintf("line %d: %s: %q", e.Num, e.Reason, e.Raw)
}

// Regression records a sample whose index is lower than the one before it.
// The sample itself is kept.
type Regression struct {
	Num      int   `json:"line"`
	Previous int64 `json:"previous_index"`
	Index    int64 `json:"index"`
}

// Termination says how a session ended.
type Termination string

const (
	TerminationEndMarker  Termination = "end_marker"
	TerminationTimeout    Termination = "timeout"
	TerminationEndOfInput Termination = "end_of_input"
	TerminationCancelled  Termination = "cancelled"
)

// State is the parser's mutable session context.
type State struct {
	Phase           Phase
	TimeScaleMicros *int64
	Samples         []telemetry.Sample
	Errors          []LineError
}

// Result is the finalized, read-only outcome of a session.
type Result struct {
	Samples         []telemetry.Sample `json:"samples"`
	TimeScaleMicros *int64             `json:"time_scale_us"`
	Errors          []LineError        `json:"errors"`

	Regressions []Regression      `json:"regressions,omitempty"`
	Termination Termination       `json:"termination"`
	StartSeen   bool              `json:"start_seen"`
	LinesRead   int               `json:"lines_read"`
	FrameCounts map[FrameKind]int `json:"frame_counts"`
}

// HasData returns true if at least one sample was collected.
func (r *Result) HasData() bool {
	return len(r.Samples) > 0
}

// Action describes what the parser did with a line.
type Action string

const (
	ActionIgnored        Action = "ignored"
	ActionStarted        Action = "started"
	ActionTimeScaleSet   Action = "time_scale_set"
	ActionSampleAppended Action = "sample_appended"
	ActionLineError      Action = "line_error"
	ActionEnded          Action = "ended"
)

// Step is the trace of one processed line.
type Step struct {
	Line   RawLine
	Kind   FrameKind
	From   Phase
	To     Phase
	Action Action

	// Sample is set when Action is ActionSampleAppended.
	Sample *telemetry.Sample

	// Err is set when Action is ActionLineError.
	Err *LineError

	// Regressed is true when the appended sample's index went backwards.
	Regressed bool
}
