package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/falllog/pkg/detector"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	Tolerance   float64
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <transcript>",
		Short: "Detect the accelerometer range from a transcript",
		Long: `Estimate the accelerometer's full-scale range from a captured transcript.

A logger at rest measures 1 g. The first samples are scored against every
supported range (±2g, ±4g, ±8g, ±16g) and the range that maps their
magnitude closest to 1 g wins. Works best when the capture starts with
the logger lying still.

Optionally generates a starter config file with --write-config.

Example:
  falllog detect capture.txt
  falllog detect --sample 500 --all capture.txt
  falllog detect -w falllog.yaml capture.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 200, "Number of samples to examine")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0.15, "Distance from 1 g (in g) that still counts as resting")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every range, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	transcript := args[0]
	ctx := commandContext(cmd)

	if _, err := os.Stat(transcript); os.IsNotExist(err) {
		return fmt.Errorf("transcript not found: %s", transcript)
	}

	d := detector.New(
		detector.WithSampleSize(opts.SampleSize),
		detector.WithTolerance(opts.Tolerance),
	)

	result, err := d.DetectFromFile(ctx, transcript)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	w := cmd.OutOrStdout()

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, result, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, result, transcript, opts)
	case "text", "":
		return outputDetectText(w, result, transcript, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, transcript string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Accelerometer Range Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", transcript)
	fmt.Fprintf(w, "Samples examined: %d\n", result.SampledSamples)
	fmt.Fprintf(w, "Median raw magnitude: %.0f\n", result.MedianRaw)
	if result.TimeScaleMicros != nil {
		fmt.Fprintf(w, "Time scale: %d us\n", *result.TimeScaleMicros)
	}
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No range detected.")
		fmt.Fprintln(w)
		if result.Note != "" {
			fmt.Fprintf(w, "Note: %s\n", result.Note)
		}
		fmt.Fprintln(w, "Tip: Capture a transcript that starts with the logger lying still.")
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Range: %s\n", best.Range.Name)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d samples near 1 g)\n",
		best.Confidence*100, best.MatchCount, result.SampledSamples)
	fmt.Fprintf(w, "Resting magnitude: %.3f g\n", best.RestingG)
	fmt.Fprintln(w)

	if result.Note != "" {
		fmt.Fprintf(w, "Note: %s\n", result.Note)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "--- Configuration snippet (copy to your config file) ---")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "sensor:")
	fmt.Fprintf(w, "  full_scale_range_g: %d\n", best.Range.RangeG)
	fmt.Fprintln(w)

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- All ranges ---")
		for i, m := range result.Matches {
			fmt.Fprintf(w, "%d. %s: resting %.3f g, %.1f%% confidence\n",
				i+1, m.Range.Name, m.RestingG, m.Confidence*100)
		}
		fmt.Fprintln(w)
	}

	return nil
}

// JSONMatch represents a range match in JSON output.
type JSONMatch struct {
	Name        string  `json:"name"`
	RangeG      int     `json:"range_g"`
	Sensitivity float64 `json:"sensitivity"`
	RestingG    float64 `json:"resting_g"`
	Deviation   float64 `json:"deviation"`
	Confidence  float64 `json:"confidence"`
	MatchCount  int     `json:"match_count"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File            string      `json:"file"`
	Matches         []JSONMatch `json:"matches"`
	SampledSamples  int         `json:"sampled_samples"`
	MedianRaw       float64     `json:"median_raw"`
	ClippedSamples  int         `json:"clipped_samples"`
	TimeScaleMicros *int64      `json:"time_scale_us,omitempty"`
	Note            string      `json:"note,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, transcript string, opts *DetectOptions) error {
	out := JSONOutput{
		File:            transcript,
		SampledSamples:  result.SampledSamples,
		MedianRaw:       result.MedianRaw,
		ClippedSamples:  result.ClippedSamples,
		TimeScaleMicros: result.TimeScaleMicros,
		Note:            result.Note,
		Matches:         make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll {
		matches = nil
		if best := result.BestMatch(); best != nil {
			matches = []detector.RangeMatch{*best}
		}
	}

	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Name:        m.Range.Name,
			RangeG:      m.Range.RangeG,
			Sensitivity: m.Range.Sensitivity,
			RestingG:    m.RestingG,
			Deviation:   m.Deviation,
			Confidence:  m.Confidence,
			MatchCount:  m.MatchCount,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file with the detected range.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no range detected")
	}

	content := generateStarterConfig(result.BestMatch(), result.TimeScaleMicros)

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(match *detector.RangeMatch, timeScale *int64) string {
	scale := telemetry.DefaultTimeScaleMicros
	if timeScale != nil {
		scale = *timeScale
	}

	return fmt.Sprintf(`# FallLog Configuration
# Generated by: falllog detect
# Detected range: %s (%.0f%% confidence)

serial:
  port: /dev/ttyUSB0
  baud_rate: 9600
  timeout: 10s
  settle_delay: 2s
  trigger_command: READ_DATA

sensor:
  full_scale_range_g: %d
  default_time_scale_us: %d

analysis:
  freefall_threshold_g: 0.35
  freefall_min_samples: 3
  impact_threshold_g: 2.5
  fall_window: 1s

output:
  directory: ./output
  format: text
  save_csv: true
  csv_extended: false

# webhooks:
#   - name: alerts
#     url: https://example.com/hooks/falllog
#     token: ${FALLLOG_WEBHOOK_TOKEN}
#     trigger: on_data

# mqtt:
#   broker: mqtt://localhost:1883/falllog
#   qos: 1

# influxdb:
#   url: http://localhost:8086
#   token: ${INFLUX_TOKEN}
#   org: lab
#   bucket: falls

# metrics_file: /var/lib/node_exporter/textfile/falllog.prom
`, match.Range.Name, match.Confidence*100, match.Range.RangeG, scale)
}
