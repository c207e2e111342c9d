// Package analyzer derives statistics and motion events from a parsed
// accelerometer session.
package analyzer

import "github.com/ccollicutt/falllog/pkg/telemetry"

// EventType categorizes detected motion events.
type EventType string

const (
	// EventTypeFreeFall is a run of samples whose magnitude stays below the
	// free-fall threshold.
	EventTypeFreeFall EventType = "free_fall"

	// EventTypeImpact is a run of samples whose magnitude exceeds the
	// impact threshold.
	EventTypeImpact EventType = "impact"

	// EventTypeFall is a free-fall window followed by an impact.
	EventTypeFall EventType = "fall"

	// EventTypeIndexGap marks missing sample indices between two rows.
	EventTypeIndexGap EventType = "index_gap"
)

// Point is one sample with its derived physical values.
type Point struct {
	telemetry.Sample
	G      telemetry.GSample `json:"g"`
	TimeMs float64           `json:"time_ms"`

	// Pos is the arrival position within the session.
	Pos int `json:"-"`
}

// Event is a single detected occurrence.
type Event struct {
	Type        EventType `json:"type"`
	Description string    `json:"description"`

	StartIndex int64   `json:"start_index"`
	EndIndex   int64   `json:"end_index"`
	StartMs    float64 `json:"start_ms"`
	EndMs      float64 `json:"end_ms"`

	// Samples is the number of samples the event spans.
	Samples int `json:"samples"`

	// ExtremeG is the lowest magnitude of a free-fall window, or the highest
	// magnitude of an impact or fall.
	ExtremeG float64 `json:"extreme_g,omitempty"`

	// DropHeightM estimates the drop height of a fall from its free-fall
	// duration.
	DropHeightM float64 `json:"drop_height_m,omitempty"`

	// Missing is the number of absent indices of an index gap.
	Missing int64 `json:"missing,omitempty"`

	pos int
}

// DurationMs is the span between the first and last sample of the event.
func (e Event) DurationMs() float64 {
	return e.EndMs - e.StartMs
}

// AxisRange holds the extremes of one axis in g.
type AxisRange struct {
	MinG float64 `json:"min_g"`
	MaxG float64 `json:"max_g"`
}

// Stats summarizes a session.
type Stats struct {
	Samples int `json:"samples"`
	RangeG  int `json:"range_g"`

	TimeScaleMicros    int64 `json:"time_scale_us"`
	TimeScaleDefaulted bool  `json:"time_scale_defaulted"`

	// DurationMs is the time between the lowest and highest sample index.
	DurationMs float64 `json:"duration_ms"`

	PeakMagnitudeG float64 `json:"peak_magnitude_g"`
	PeakIndex      int64   `json:"peak_index"`
	PeakTimeMs     float64 `json:"peak_time_ms"`
	MeanMagnitudeG float64 `json:"mean_magnitude_g"`

	X AxisRange `json:"x"`
	Y AxisRange `json:"y"`
	Z AxisRange `json:"z"`

	IndexGaps      int   `json:"index_gaps"`
	MissingSamples int64 `json:"missing_samples"`
	Regressions    int   `json:"regressions"`
	LineErrors     int   `json:"line_errors"`
}

// Analysis is the full output of Analyze.
type Analysis struct {
	Stats  Stats   `json:"stats"`
	Events []Event `json:"events"`
	Points []Point `json:"-"`
}

// Count returns the number of events of type t.
func (a *Analysis) Count(t EventType) int {
	n := 0
	for _, e := range a.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// FallDetected reports whether at least one fall was found.
func (a *Analysis) FallDetected() bool {
	return a.Count(EventTypeFall) > 0
}
