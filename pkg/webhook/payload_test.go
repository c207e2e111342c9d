package webhook

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/output"
	"github.com/ccollicutt/falllog/pkg/parser"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

func fallReport() *output.Report {
	return &output.Report{
		Session: output.Session{
			ID:          "0d7c6a52-5f3e-4d43-9a4b-2f1f4c1f9e10",
			Source:      "/dev/ttyUSB0",
			Host:        "bench-01",
			ConfigFile:  "/etc/falllog.yaml",
			StartedAt:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Duration:    1500 * time.Millisecond,
			Termination: parser.TerminationEndMarker,
		},
		Summary: output.Summary{
			HasData:      true,
			StartSeen:    true,
			LinesRead:    12,
			Samples:      3,
			Events:       3,
			Falls:        1,
			FallDetected: true,
		},
		Stats: analyzer.Stats{
			Samples:         3,
			RangeG:          2,
			TimeScaleMicros: 1000,
			PeakMagnitudeG:  4.1,
			PeakIndex:       2,
			PeakTimeMs:      2,
		},
		Events: []analyzer.Event{
			{Type: analyzer.EventTypeFreeFall, StartIndex: 0, EndIndex: 1, ExtremeG: 0.03},
			{Type: analyzer.EventTypeImpact, StartIndex: 2, EndIndex: 2, ExtremeG: 4.1},
			{
				Type:        analyzer.EventTypeFall,
				Description: "Fall: 300.0 ms free fall then 4.10 g impact (est. drop 0.44 m)",
				StartIndex:  0,
				EndIndex:    2,
				StartMs:     0,
				EndMs:       2,
				ExtremeG:    4.1,
				DropHeightM: 0.44,
			},
		},
		Samples: []telemetry.Sample{
			{Index: 0, Z: 16384},
			{Index: 1, Z: 500},
			{Index: 2, Z: 65000},
		},
		Artifacts: output.Artifacts{CSV: "/var/lib/falllog/20240301T120000Z.csv"},
	}
}

func TestNewPayload_Fall(t *testing.T) {
	p := NewPayload(fallReport())

	assert.Equal(t, EventFallDetected, p.Event)
	assert.Equal(t, "0d7c6a52-5f3e-4d43-9a4b-2f1f4c1f9e10", p.Session.ID)
	assert.Equal(t, "bench-01", p.Session.Host)
	assert.Equal(t, int64(1500), p.Session.DurationMs)
	assert.Equal(t, parser.TerminationEndMarker, p.Session.Termination)
	assert.Equal(t, 2, p.Sensor.RangeG)
	assert.Equal(t, int64(1000), p.Sensor.TimeScaleMicros)
	assert.InDelta(t, 4.1, p.Peak.MagnitudeG, 1e-9)
	assert.Equal(t, int64(2), p.Peak.Index)
	assert.Equal(t, "/var/lib/falllog/20240301T120000Z.csv", p.CSV)

	require.Len(t, p.Falls, 1, "only fall events are carried")
	assert.Equal(t, Fall{StartIndex: 0, EndIndex: 2, StartMs: 0, EndMs: 2, ImpactG: 4.1, DropHeightM: 0.44}, p.Falls[0])
}

func TestNewPayload_EventName(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *output.Report)
		want   string
	}{
		{"fall", func(r *output.Report) {}, EventFallDetected},
		{"data without fall", func(r *output.Report) {
			r.Summary.FallDetected = false
			r.Summary.Falls = 0
			r.Events = nil
		}, EventCompleted},
		{"no data", func(r *output.Report) {
			r.Summary = output.Summary{}
			r.Events = nil
			r.Samples = nil
		}, EventNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fallReport()
			tt.mutate(r)
			assert.Equal(t, tt.want, NewPayload(r).Event)
		})
	}
}

func TestPayload_JSONOmitsSamplesAndConfig(t *testing.T) {
	data, err := json.Marshal(NewPayload(fallReport()))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.NotContains(t, raw, "samples")
	assert.NotContains(t, raw, "errors")
	session, ok := raw["session"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, session, "config_file")
	assert.Equal(t, "2024-03-01T12:00:00Z", session["started_at"])
	assert.EqualValues(t, 1500, session["duration_ms"])
}

func TestPayload_NoFallsEncodesEmptyList(t *testing.T) {
	r := fallReport()
	r.Events = nil

	data, err := json.Marshal(NewPayload(r))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"falls":[]`)
}
