package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ccollicutt/falllog/pkg/analyzer"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(_ context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "FallLog: %d samples, %d line errors, %d falls (%s)\n",
		report.Summary.Samples,
		report.Summary.LineErrors,
		report.Summary.Falls,
		report.Session.Termination)
	return err
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	// Header
	fmt.Fprintln(w, "=== FallLog Session Report ===")
	fmt.Fprintf(w, "Source:      %s\n", report.Session.Source)
	if f.opts.Verbose {
		fmt.Fprintf(w, "Session:     %s\n", report.Session.ID)
		if report.Session.Host != "" {
			fmt.Fprintf(w, "Host:        %s\n", report.Session.Host)
		}
	}
	fmt.Fprintf(w, "Termination: %s\n", report.Session.Termination)
	fmt.Fprintf(w, "Time scale:  %d us (%s)\n", report.Stats.TimeScaleMicros, timeScaleOrigin(report))
	fmt.Fprintln(w)

	if !report.HasData() {
		if !report.Summary.StartSeen {
			fmt.Fprintln(w, "No valid data received: start marker never seen")
		} else {
			fmt.Fprintln(w, "No valid data received")
		}
		fmt.Fprintln(w)
	} else {
		f.formatStats(report, w)
		f.formatEvents(report, w)
	}

	f.formatErrors(report, w)

	if report.Artifacts.CSV != "" {
		fmt.Fprintf(w, "Saved %s\n\n", report.Artifacts.CSV)
	}

	// Summary
	fmt.Fprintln(w, "---")
	verdict := "no fall detected"
	if report.Summary.FallDetected {
		verdict = fmt.Sprintf("FALL DETECTED (%d)", report.Summary.Falls)
	}
	fmt.Fprintf(w, "Summary: %d samples, %d line errors, %d events, %s\n",
		report.Summary.Samples,
		report.Summary.LineErrors,
		report.Summary.Events,
		verdict)

	if f.opts.Verbose {
		fmt.Fprintf(w, "Lines read: %d\n", report.Summary.LinesRead)
		fmt.Fprintf(w, "Duration: %s\n", report.Session.Duration.Round(1e6))
	}

	return nil
}

func timeScaleOrigin(report *Report) string {
	if report.Stats.TimeScaleDefaulted {
		return "defaulted"
	}
	return "reported"
}

func (f *TextFormatter) formatStats(report *Report, w io.Writer) {
	s := report.Stats
	fmt.Fprintf(w, "[STATISTICS] ±%dg\n", s.RangeG)
	fmt.Fprintf(w, "  Samples:        %d over %.1f ms\n", s.Samples, s.DurationMs)
	fmt.Fprintf(w, "  Peak magnitude: %.3f g at index %d (%.1f ms)\n", s.PeakMagnitudeG, s.PeakIndex, s.PeakTimeMs)
	fmt.Fprintf(w, "  Mean magnitude: %.3f g\n", s.MeanMagnitudeG)
	fmt.Fprintf(w, "  X: %+.3f .. %+.3f g\n", s.X.MinG, s.X.MaxG)
	fmt.Fprintf(w, "  Y: %+.3f .. %+.3f g\n", s.Y.MinG, s.Y.MaxG)
	fmt.Fprintf(w, "  Z: %+.3f .. %+.3f g\n", s.Z.MinG, s.Z.MaxG)
	if s.IndexGaps > 0 {
		fmt.Fprintf(w, "  Index gaps:     %d (%d samples missing)\n", s.IndexGaps, s.MissingSamples)
	}
	if s.Regressions > 0 {
		fmt.Fprintf(w, "  Regressions:    %d\n", s.Regressions)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatEvents(report *Report, w io.Writer) {
	fmt.Fprintln(w, "[EVENTS]")
	if len(report.Events) == 0 {
		fmt.Fprintln(w, "  No events detected")
		fmt.Fprintln(w)
		return
	}

	for _, e := range report.Events {
		if e.Type == analyzer.EventTypeIndexGap && !f.opts.Verbose {
			continue
		}
		fmt.Fprintf(w, "  - %-9s index %d-%d (%.1f-%.1f ms): %s\n",
			strings.ToUpper(string(e.Type)),
			e.StartIndex, e.EndIndex,
			e.StartMs, e.EndMs,
			e.Description)
	}
	if gaps := report.Stats.IndexGaps; gaps > 0 && !f.opts.Verbose {
		fmt.Fprintf(w, "  (%d index gaps hidden, use -v to list)\n", gaps)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatErrors(report *Report, w io.Writer) {
	if len(report.Errors) == 0 {
		return
	}

	fmt.Fprintf(w, "[LINE ERRORS] %d\n", len(report.Errors))
	if !f.opts.Verbose {
		fmt.Fprintln(w, "  use -v to list")
		fmt.Fprintln(w)
		return
	}
	for _, e := range report.Errors {
		fmt.Fprintf(w, "  - %s\n", e.Error())
	}
	fmt.Fprintln(w)
}
