// Package output provides report building, formatting and CSV persistence
// for accelerometer sessions.
package output

import (
	"time"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/parser"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// Report is the complete output of one session.
type Report struct {
	// Session identifies the run.
	Session Session `json:"session"`

	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`

	// Stats holds the derived physical statistics.
	Stats analyzer.Stats `json:"stats"`

	// Events lists detected motion events in arrival order.
	Events []analyzer.Event `json:"events"`

	// Errors lists the malformed data rows.
	Errors []parser.LineError `json:"errors"`

	// Regressions lists rows whose index went backwards.
	Regressions []parser.Regression `json:"regressions"`

	// FrameCounts is the number of lines of each kind.
	FrameCounts map[parser.FrameKind]int `json:"frame_counts"`

	// Samples are the collected rows in arrival order.
	Samples []telemetry.Sample `json:"samples,omitempty"`

	// Artifacts are files written for this session.
	Artifacts Artifacts `json:"artifacts"`
}

// Session provides context about the run.
type Session struct {
	// ID is a unique identifier for the session.
	ID string `json:"id"`

	// Source is the serial port or transcript path.
	Source string `json:"source"`

	// Host identifies the machine the session was collected on.
	Host string `json:"host,omitempty"`

	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// StartedAt is when collection began.
	StartedAt time.Time `json:"started_at"`

	// Duration is how long collection and analysis took.
	Duration time.Duration `json:"duration"`

	// Termination is why the session ended.
	Termination parser.Termination `json:"termination"`
}

// Summary provides aggregate counts.
type Summary struct {
	HasData      bool `json:"has_data"`
	StartSeen    bool `json:"start_seen"`
	LinesRead    int  `json:"lines_read"`
	Samples      int  `json:"samples"`
	LineErrors   int  `json:"line_errors"`
	Regressions  int  `json:"regressions"`
	Events       int  `json:"events"`
	Falls        int  `json:"falls"`
	FallDetected bool `json:"fall_detected"`
}

// Artifacts lists files produced for a session.
type Artifacts struct {
	CSV string `json:"csv,omitempty"`
}

// NewReport creates a Report from a parse result and its analysis.
func NewReport(session Session, res *parser.Result, analysis *analyzer.Analysis) *Report {
	session.Termination = res.Termination

	return &Report{
		Session: session,
		Summary: Summary{
			HasData:      res.HasData(),
			StartSeen:    res.StartSeen,
			LinesRead:    res.LinesRead,
			Samples:      len(res.Samples),
			LineErrors:   len(res.Errors),
			Regressions:  len(res.Regressions),
			Events:       len(analysis.Events),
			Falls:        analysis.Count(analyzer.EventTypeFall),
			FallDetected: analysis.FallDetected(),
		},
		Stats:       analysis.Stats,
		Events:      analysis.Events,
		Errors:      res.Errors,
		Regressions: res.Regressions,
		FrameCounts: res.FrameCounts,
		Samples:     res.Samples,
	}
}

// HasData returns true if the session collected at least one sample.
func (r *Report) HasData() bool {
	return r.Summary.HasData
}
