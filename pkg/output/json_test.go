package output

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ccollicutt/falllog/pkg/analyzer"
)

func TestNewJSONFormatter(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})
	if f == nil {
		t.Fatal("NewJSONFormatter() returned nil")
	}
	if f.Name() != "json" {
		t.Errorf("Name() = %q, want %q", f.Name(), "json")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{})
	report := createTestReport(t)

	var buf bytes.Buffer
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	// Verify it's valid JSON
	var parsed Report
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}

	if parsed.Session.ID != report.Session.ID {
		t.Errorf("Session.ID = %q, want %q", parsed.Session.ID, report.Session.ID)
	}
	if parsed.Summary.Samples != 10 {
		t.Errorf("Samples = %d, want 10", parsed.Summary.Samples)
	}
	if !parsed.Summary.FallDetected {
		t.Error("FallDetected = false, want true")
	}
	if len(parsed.Events) != len(report.Events) {
		t.Errorf("Events = %d, want %d", len(parsed.Events), len(report.Events))
	}
	if parsed.Events[1].Type != analyzer.EventTypeFall {
		t.Errorf("Events[1].Type = %q, want fall", parsed.Events[1].Type)
	}
	if len(parsed.Errors) != 1 || parsed.Errors[0].Num != 13 {
		t.Errorf("Errors = %+v, want one error on line 13", parsed.Errors)
	}
	if len(parsed.Samples) != 0 {
		t.Errorf("Samples included without verbose: %d", len(parsed.Samples))
	}
	// The caller's report must not be modified.
	if len(report.Samples) != 10 {
		t.Errorf("report.Samples = %d after Format, want 10", len(report.Samples))
	}
}

func TestJSONFormatter_Format_Verbose(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{Verbose: true})
	report := createTestReport(t)

	var buf bytes.Buffer
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var parsed Report
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(parsed.Samples) != 10 {
		t.Fatalf("Samples = %d, want 10", len(parsed.Samples))
	}
	if parsed.Samples[7].Z != 65000 {
		t.Errorf("Samples[7].Z = %d, want 65000", parsed.Samples[7].Z)
	}
}

func TestJSONFormatter_Format_Quiet(t *testing.T) {
	f := NewJSONFormatter(FormatOptions{Quiet: true})
	report := createTestReport(t)

	var buf bytes.Buffer
	if err := f.Format(context.Background(), report, &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	// Quiet mode should only have summary
	var parsed Summary
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if parsed.Falls != 1 || parsed.LineErrors != 1 {
		t.Errorf("Summary = %+v, want 1 fall and 1 line error", parsed)
	}

	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if _, ok := raw["session"]; ok {
		t.Error("Quiet output should not include session")
	}
}
