package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/parser"
)

func testReport() *output.Report {
	return &output.Report{
		Session: output.Session{
			StartedAt:   time.Unix(1700000000, 0),
			Termination: parser.TerminationEndMarker,
		},
		Summary: output.Summary{
			HasData:      true,
			Samples:      120,
			Regressions:  1,
			FallDetected: true,
		},
		Stats: analyzer.Stats{PeakMagnitudeG: 4.25},
		Events: []analyzer.Event{
			{Type: analyzer.EventTypeFreeFall},
			{Type: analyzer.EventTypeFall},
			{Type: analyzer.EventTypeImpact},
		},
		Errors: []parser.LineError{
			{Reason: parser.ReasonWrongFieldCount},
			{Reason: parser.ReasonNonNumericField},
			{Reason: parser.ReasonNonNumericField},
		},
		FrameCounts: map[parser.FrameKind]int{
			parser.FrameStartMarker: 1,
			parser.FrameDataRow:     123,
			parser.FrameEndMarker:   1,
		},
	}
}

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.Record(testReport())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("end_marker")))
	assert.Equal(t, 123.0, testutil.ToFloat64(m.Lines.WithLabelValues("data_row")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LineErrors.WithLabelValues("non_numeric_field")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LineErrors.WithLabelValues("wrong_field_count")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("fall")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.Samples))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Regressions))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSessionTimestamp))
	assert.Equal(t, 4.25, testutil.ToFloat64(m.LastPeakMagnitude))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LastFallDetected))
}

func TestMetrics_RecordAccumulates(t *testing.T) {
	m := New()
	m.Record(testReport())

	quiet := &output.Report{Session: output.Session{Termination: parser.TerminationTimeout}}
	m.Record(quiet)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues("timeout")))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.Samples))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastFallDetected))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastPeakMagnitude))
	// Zero start time leaves the previous timestamp.
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastSessionTimestamp))
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.Record(testReport())

	path := filepath.Join(t.TempDir(), "falllog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, `falllog_sessions_total{termination="end_marker"} 1`)
	assert.Contains(t, text, "falllog_samples_total 120")
	assert.Contains(t, text, "# HELP falllog_last_session_fall_detected")
	assert.False(t, strings.Contains(text, "go_goroutines"), "runtime collectors must not be exported")
}

func TestMetrics_WriteTextfileBadPath(t *testing.T) {
	err := New().WriteTextfile(filepath.Join(t.TempDir(), "missing", "falllog.prom"))
	assert.Error(t, err)
}
