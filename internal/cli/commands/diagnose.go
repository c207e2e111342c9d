package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/detector"
	"github.com/ccollicutt/falllog/pkg/parser"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
	Trace   bool
}

// Diagnostic statuses.
const (
	statusOK      = "ok"
	statusWarning = "warning"
	statusError   = "error"
)

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// maxListed bounds the number of offending lines listed per check.
const maxListed = 5

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <transcript>",
		Short: "Diagnose a captured transcript line by line",
		Long: `Diagnose common problems with a captured transcript.

Every line is classified and fed through the parser. The checks cover:
- Transcript file existence and accessibility
- Start marker, time scale and end marker
- Malformed data rows and index regressions
- Unrecognized chatter (often a baud rate mismatch)
- Accelerometer range, estimated from the resting magnitude
- The configuration file given with --config, if any

Example:
  falllog diagnose capture.txt
  falllog diagnose --trace capture.txt   # print every line's transition
  falllog diagnose -v -c falllog.yaml capture.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(commandContext(cmd), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "Print the parser transition for every line")

	return cmd
}

// transcriptTrace is everything observed while replaying a transcript.
type transcriptTrace struct {
	steps    []parser.Step
	result   *parser.Result
	trailing int // lines after the end marker
}

func runDiagnose(ctx context.Context, w io.Writer, path string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	result := checkTranscriptExists(path)
	results = append(results, result)
	if result.Status == statusError {
		printDiagnostics(w, results, opts)
		return nil
	}

	trace, err := traceTranscript(ctx, path)
	if err != nil {
		return err
	}

	if opts.Trace {
		printTrace(w, trace)
	}

	cfg := config.DefaultConfig()
	if Global.ConfigFile != "" {
		loaded, result := checkConfigParseable(ctx, Global.ConfigFile)
		results = append(results, result)
		if loaded != nil {
			cfg = loaded
		}
	}

	results = append(results, checkMarkers(trace, cfg)...)
	results = append(results, checkDataRows(trace)...)
	results = append(results, checkUnrecognized(trace))
	results = append(results, checkRange(trace.result, cfg))

	if Global.ConfigFile != "" {
		results = append(results, checkWebhooks(cfg, opts)...)
	}

	printDiagnostics(w, results, opts)
	return nil
}

// traceTranscript feeds the whole file through a parser, including lines
// after the end marker, and records every step.
func traceTranscript(ctx context.Context, path string) (*transcriptTrace, error) {
	src, err := parser.NewFileSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	t := &transcriptTrace{}
	p := parser.New(parser.WithTrace(func(s parser.Step) {
		t.steps = append(t.steps, s)
	}))

	for {
		line, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if p.Phase() == parser.PhaseDone {
			t.trailing++
		}
		if _, err := p.Feed(line); err != nil {
			return nil, err
		}
	}

	t.result = p.Finalize(parser.TerminationEndOfInput)
	return t, nil
}

func printTrace(w io.Writer, t *transcriptTrace) {
	fmt.Fprintln(w, "=== Line Trace ===")
	for _, s := range t.steps {
		transition := string(s.From)
		if s.To != s.From {
			transition += " -> " + string(s.To)
		}
		fmt.Fprintf(w, "%5d  %-14s  %-28s  %s", s.Line.Num, s.Kind, transition, s.Action)
		switch {
		case s.Err != nil:
			fmt.Fprintf(w, " (%s)", s.Err.Reason)
		case s.Regressed:
			fmt.Fprint(w, " (index regressed)")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
}

func checkTranscriptExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Transcript File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = statusError
		result.Message = fmt.Sprintf("Transcript not found: %s", path)
		result.Suggests = []string{"Check the file path is correct"}
		return result
	}
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Cannot access transcript: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = statusError
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = statusError
		result.Message = "Transcript is empty"
		result.Suggests = []string{
			"Capture the logger output again; the board may not have answered the trigger",
		}
		return result
	}

	result.Status = statusOK
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = statusError
		result.Message = fmt.Sprintf("Failed to load config: %v", err)
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		}
		result.Suggests = append(result.Suggests, "Defaults are used for the remaining checks")
		return nil, result
	}

	result.Status = statusOK
	result.Message = "Config file loaded successfully"
	result.Details = []string{
		fmt.Sprintf("Range: ±%dg", cfg.Sensor.FullScaleRangeG),
		fmt.Sprintf("Default time scale: %d us", cfg.Sensor.DefaultTimeScaleMicros),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, result
}

func checkMarkers(t *transcriptTrace, cfg *config.Config) []DiagnosticResult {
	res := t.result
	results := []DiagnosticResult{}

	start := DiagnosticResult{Check: "Start Marker"}
	if res.StartSeen {
		start.Status = statusOK
		start.Message = fmt.Sprintf("Found at line %d", firstLine(t, parser.ActionStarted))
	} else {
		start.Status = statusError
		start.Message = "Start marker never seen; every line was ignored"
		start.Suggests = []string{
			"Check the trigger command reached the logger (serial.trigger_command)",
			"Increase serial.settle_delay if the board resets when the port opens",
		}
	}
	results = append(results, start)

	if !res.StartSeen {
		return results
	}

	ts := DiagnosticResult{Check: "Time Scale"}
	if res.TimeScaleMicros != nil {
		ts.Status = statusOK
		ts.Message = fmt.Sprintf("%d us between samples", *res.TimeScaleMicros)
	} else {
		ts.Status = statusWarning
		ts.Message = fmt.Sprintf("Not reported; the default of %d us will be used", cfg.Sensor.DefaultTimeScaleMicros)
		ts.Suggests = []string{"Set sensor.default_time_scale_us to the logger's sample interval"}
	}
	results = append(results, ts)

	end := DiagnosticResult{Check: "End Marker"}
	if line := firstLine(t, parser.ActionEnded); line > 0 {
		end.Status = statusOK
		end.Message = fmt.Sprintf("Found at line %d", line)
		if t.trailing > 0 {
			end.Details = []string{fmt.Sprintf("%d line(s) after the end marker are ignored", t.trailing)}
		}
	} else {
		end.Status = statusWarning
		end.Message = "End marker never seen; the transcript may be truncated"
		end.Suggests = []string{"Increase serial.timeout if the dump takes longer than the read window"}
	}
	results = append(results, end)

	return results
}

func checkDataRows(t *transcriptTrace) []DiagnosticResult {
	res := t.result
	if !res.StartSeen {
		return nil
	}
	results := []DiagnosticResult{}

	rows := DiagnosticResult{Check: "Data Rows"}
	if res.HasData() {
		rows.Status = statusOK
		rows.Message = fmt.Sprintf("%d sample(s) collected", len(res.Samples))
		rows.Details = []string{fmt.Sprintf("Index %d to %d",
			res.Samples[0].Index, res.Samples[len(res.Samples)-1].Index)}
	} else {
		rows.Status = statusError
		rows.Message = "No valid data rows"
		rows.Suggests = []string{"The logger may have no recorded fall data"}
	}
	results = append(results, rows)

	if len(res.Errors) > 0 {
		r := DiagnosticResult{
			Check:   "Line Errors",
			Status:  statusWarning,
			Message: fmt.Sprintf("%d malformed data row(s) skipped", len(res.Errors)),
		}
		for i, e := range res.Errors {
			if i == maxListed {
				r.Details = append(r.Details, fmt.Sprintf("... and %d more", len(res.Errors)-maxListed))
				break
			}
			r.Details = append(r.Details, truncate(e.Error(), 80))
		}
		r.Suggests = []string{"Rows must be Index,AccX,AccY,AccZ with base-10 integers"}
		results = append(results, r)
	}

	if len(res.Regressions) > 0 {
		r := DiagnosticResult{
			Check:   "Index Order",
			Status:  statusWarning,
			Message: fmt.Sprintf("Index went backwards %d time(s); samples were kept", len(res.Regressions)),
		}
		for i, reg := range res.Regressions {
			if i == maxListed {
				break
			}
			r.Details = append(r.Details, fmt.Sprintf("line %d: index %d after %d", reg.Num, reg.Index, reg.Previous))
		}
		r.Suggests = []string{"The EEPROM may have wrapped around; check the logger's record count"}
		results = append(results, r)
	}

	return results
}

func checkUnrecognized(t *transcriptTrace) DiagnosticResult {
	counts := t.result.FrameCounts
	unknown := counts[parser.FrameUnrecognized]
	total := t.result.LinesRead

	result := DiagnosticResult{Check: "Unrecognized Lines"}
	if unknown == 0 {
		result.Status = statusOK
		result.Message = fmt.Sprintf("All %d line(s) classified", total)
		result.Details = frameCountDetails(counts)
		return result
	}

	result.Status = statusWarning
	result.Message = fmt.Sprintf("%d of %d line(s) unrecognized", unknown, total)
	listed := 0
	for _, s := range t.steps {
		if s.Kind != parser.FrameUnrecognized {
			continue
		}
		if listed == maxListed {
			break
		}
		result.Details = append(result.Details, fmt.Sprintf("line %d: %s", s.Line.Num, truncate(s.Line.Text, 70)))
		listed++
	}
	if unknown*2 > total {
		result.Suggests = []string{"Most lines are unrecognized; check the baud rate matches the logger"}
	}
	return result
}

func frameCountDetails(counts map[parser.FrameKind]int) []string {
	details := []string{}
	for _, kind := range parser.FrameKinds() {
		if n := counts[kind]; n > 0 {
			details = append(details, fmt.Sprintf("%s: %d", kind, n))
		}
	}
	return details
}

func checkRange(res *parser.Result, cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{Check: "Accelerometer Range"}

	if !res.HasData() {
		result.Status = statusWarning
		result.Message = "No samples to estimate the range from"
		return result
	}

	det := detector.New().DetectFromSamples(res.Samples)
	best := det.BestMatch()
	if best == nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Could not estimate the range (median raw magnitude %.0f)", det.MedianRaw)
		if det.Note != "" {
			result.Details = []string{det.Note}
		}
		return result
	}

	if best.Range.RangeG != cfg.Sensor.FullScaleRangeG {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Data looks like %s but ±%dg is configured", best.Range.Name, cfg.Sensor.FullScaleRangeG)
		result.Suggests = []string{
			fmt.Sprintf("Set sensor.full_scale_range_g: %d or pass --range %d", best.Range.RangeG, best.Range.RangeG),
		}
	} else {
		result.Status = statusOK
		result.Message = fmt.Sprintf("%s matches the configuration", best.Range.Name)
	}
	result.Details = []string{
		fmt.Sprintf("Resting magnitude %.3f g at %s (%.0f%% of samples near 1 g)",
			best.RestingG, best.Range.Name, best.Confidence*100),
	}
	if det.Note != "" {
		result.Details = append(result.Details, det.Note)
	}
	return result
}

func firstLine(t *transcriptTrace, action parser.Action) int {
	for _, s := range t.steps {
		if s.Action == action {
			return s.Line.Num
		}
	}
	return 0
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== FallLog Transcript Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		var icon string
		switch r.Status {
		case statusOK:
			icon = "PASS"
			okCount++
		case statusWarning:
			icon = "WARN"
			warnCount++
		case statusError:
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != statusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nThe transcript has problems that prevent data collection.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nThe transcript is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nTranscript looks good!")
	}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  statusOK,
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check:  fmt.Sprintf("Webhook: %s", name),
			Status: statusOK,
		}

		trigger := wh.Trigger
		if trigger == "" {
			trigger = config.WebhookTriggerOnData
		}
		result.Message = fmt.Sprintf("Trigger: %s", trigger)

		if strings.HasPrefix(wh.Token, "${") || strings.HasPrefix(wh.Token, "$") {
			result.Status = statusWarning
			result.Message = "Token appears to be an unresolved env var"
			result.Details = []string{wh.Token}
		} else if opts.Verbose {
			result.Details = []string{
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			}
			if wh.Token != "" {
				result.Details = append(result.Details, "Token: configured")
			}
		}

		results = append(results, result)
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = statusOK
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = statusWarning
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
		}
	}

	return result
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
