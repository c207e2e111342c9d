package webhook

import (
	"time"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/parser"
)

// Event names carried in the payload and the X-Falllog-Event header.
const (
	EventFallDetected = "session.fall_detected"
	EventCompleted    = "session.completed"
	EventNoData       = "session.no_data"
)

// Payload is the JSON body posted for one session. It carries the summary
// and the falls; raw samples stay in the CSV artifact.
type Payload struct {
	Event   string         `json:"event"`
	Session SessionInfo    `json:"session"`
	Summary output.Summary `json:"summary"`
	Sensor  SensorInfo     `json:"sensor"`
	Peak    PeakInfo       `json:"peak"`
	Falls   []Fall         `json:"falls"`
	CSV     string         `json:"csv,omitempty"`
}

// SessionInfo identifies the session a payload describes.
type SessionInfo struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Host        string             `json:"host,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	DurationMs  int64              `json:"duration_ms"`
	Termination parser.Termination `json:"termination"`
}

// SensorInfo records how raw counts and indices were interpreted.
type SensorInfo struct {
	RangeG             int   `json:"range_g"`
	TimeScaleMicros    int64 `json:"time_scale_us"`
	TimeScaleDefaulted bool  `json:"time_scale_defaulted"`
}

// PeakInfo is the largest acceleration magnitude of the session.
type PeakInfo struct {
	MagnitudeG float64 `json:"magnitude_g"`
	Index      int64   `json:"index"`
	TimeMs     float64 `json:"time_ms"`
}

// Fall is one detected fall.
type Fall struct {
	StartIndex  int64   `json:"start_index"`
	EndIndex    int64   `json:"end_index"`
	StartMs     float64 `json:"start_ms"`
	EndMs       float64 `json:"end_ms"`
	ImpactG     float64 `json:"impact_g"`
	DropHeightM float64 `json:"drop_height_m"`
}

// NewPayload builds the webhook body for report.
func NewPayload(report *output.Report) *Payload {
	p := &Payload{
		Event: eventName(report),
		Session: SessionInfo{
			ID:          report.Session.ID,
			Source:      report.Session.Source,
			Host:        report.Session.Host,
			StartedAt:   report.Session.StartedAt,
			DurationMs:  report.Session.Duration.Milliseconds(),
			Termination: report.Session.Termination,
		},
		Summary: report.Summary,
		Sensor: SensorInfo{
			RangeG:             report.Stats.RangeG,
			TimeScaleMicros:    report.Stats.TimeScaleMicros,
			TimeScaleDefaulted: report.Stats.TimeScaleDefaulted,
		},
		Peak: PeakInfo{
			MagnitudeG: report.Stats.PeakMagnitudeG,
			Index:      report.Stats.PeakIndex,
			TimeMs:     report.Stats.PeakTimeMs,
		},
		Falls: []Fall{},
		CSV:   report.Artifacts.CSV,
	}

	for _, e := range report.Events {
		if e.Type != analyzer.EventTypeFall {
			continue
		}
		p.Falls = append(p.Falls, Fall{
			StartIndex:  e.StartIndex,
			EndIndex:    e.EndIndex,
			StartMs:     e.StartMs,
			EndMs:       e.EndMs,
			ImpactG:     e.ExtremeG,
			DropHeightM: e.DropHeightM,
		})
	}
	return p
}

func eventName(report *output.Report) string {
	switch {
	case !report.HasData():
		return EventNoData
	case report.Summary.FallDetected:
		return EventFallDetected
	default:
		return EventCompleted
	}
}
