package commands

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/falllog/pkg/config"
	"github.com/ccollicutt/falllog/pkg/detector"
)

func TestNewDetectCommand(t *testing.T) {
	cmd := NewDetectCommand()

	if cmd.Use != "detect <transcript>" {
		t.Errorf("Unexpected Use: %s", cmd.Use)
	}

	for _, flag := range []string{"output", "sample", "tolerance", "all", "write-config"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Errorf("Missing flag: %s", flag)
		}
	}
}

func TestRunDetect_Text(t *testing.T) {
	resetGlobals(t)

	out, _, err := execute(t, NewDetectCommand(), filepath.Join("testdata", "rest_8g.txt"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	for _, want := range []string{
		"=== Accelerometer Range Detection ===",
		"Samples examined: 6",
		"Detected Range: ±8g",
		"Confidence: 100.0% (6/6 samples near 1 g)",
		"full_scale_range_g: 8",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "--- All ranges ---") {
		t.Error("all ranges should only be listed with --all")
	}
}

func TestRunDetect_ShowAll(t *testing.T) {
	resetGlobals(t)

	out, _, err := execute(t, NewDetectCommand(), "--all", filepath.Join("testdata", "rest_8g.txt"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	if !strings.Contains(out, "--- All ranges ---") {
		t.Errorf("expected all ranges:\n%s", out)
	}
	if !strings.Contains(out, "1. ±8g") {
		t.Errorf("±8g should be ranked first:\n%s", out)
	}
}

func TestRunDetect_JSON(t *testing.T) {
	resetGlobals(t)

	tests := []struct {
		name        string
		args        []string
		wantMatches int
	}{
		{"best only", nil, 1},
		{"all", []string{"--all"}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-o", "json"}, tt.args...)
			args = append(args, filepath.Join("testdata", "rest_8g.txt"))

			out, _, err := execute(t, NewDetectCommand(), args...)
			if err != nil {
				t.Fatalf("detect failed: %v", err)
			}

			var result JSONOutput
			if err := json.Unmarshal([]byte(out), &result); err != nil {
				t.Fatalf("invalid JSON: %v\n%s", err, out)
			}
			if len(result.Matches) != tt.wantMatches {
				t.Fatalf("got %d matches, want %d", len(result.Matches), tt.wantMatches)
			}
			if result.Matches[0].RangeG != 8 {
				t.Errorf("best range = %d, want 8", result.Matches[0].RangeG)
			}
			if result.SampledSamples != 6 {
				t.Errorf("sampled = %d, want 6", result.SampledSamples)
			}
			if result.TimeScaleMicros != nil {
				t.Error("rest_8g.txt reports no time scale")
			}
		})
	}
}

func TestRunDetect_NoMatch(t *testing.T) {
	resetGlobals(t)

	out, _, err := execute(t, NewDetectCommand(), filepath.Join("testdata", "no_start.txt"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out, "No range detected.") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunDetect_Errors(t *testing.T) {
	resetGlobals(t)

	if _, _, err := execute(t, NewDetectCommand(), "/nonexistent/capture.txt"); err == nil {
		t.Error("expected error for missing transcript")
	}

	_, _, err := execute(t, NewDetectCommand(), "-o", "yaml", filepath.Join("testdata", "rest_8g.txt"))
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("expected output format error, got %v", err)
	}
}

func TestRunDetect_WriteConfig(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), "falllog.yaml")

	out, _, err := execute(t, NewDetectCommand(), "-w", path, filepath.Join("testdata", "rest_8g.txt"))
	if err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if !strings.Contains(out, "Wrote starter config to: "+path) {
		t.Errorf("unexpected output:\n%s", out)
	}

	cfg, err := config.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Sensor.FullScaleRangeG != 8 {
		t.Errorf("FullScaleRangeG = %d, want 8", cfg.Sensor.FullScaleRangeG)
	}

	_, _, err = execute(t, NewDetectCommand(), "-w", path, filepath.Join("testdata", "rest_8g.txt"))
	if err == nil || !strings.Contains(err.Error(), "will not overwrite") {
		t.Errorf("expected refusal to overwrite, got %v", err)
	}
}

func TestWriteStarterConfig_NoMatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "falllog.yaml")
	var out strings.Builder

	err := writeStarterConfig(&out, &detector.DetectionResult{}, path)
	if err == nil || !strings.Contains(err.Error(), "no range detected") {
		t.Errorf("expected no range error, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("config should not be written without a match")
	}
}

func TestGenerateStarterConfig(t *testing.T) {
	match := &detector.RangeMatch{
		Range:      detector.RangeCandidate{RangeG: 4, Sensitivity: 8192, Name: "±4g"},
		Confidence: 0.9,
	}
	scale := int64(2500)

	tests := []struct {
		name      string
		timeScale *int64
		wantScale int64
	}{
		{"reported time scale", &scale, 2500},
		{"default time scale", nil, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := generateStarterConfig(match, tt.timeScale)

			if !strings.Contains(content, "# Detected range: ±4g (90% confidence)") {
				t.Errorf("missing header:\n%s", content)
			}

			var cfg config.Config
			if err := yaml.Unmarshal([]byte(content), &cfg); err != nil {
				t.Fatalf("generated config is not valid YAML: %v", err)
			}
			if cfg.Sensor.FullScaleRangeG != 4 {
				t.Errorf("FullScaleRangeG = %d, want 4", cfg.Sensor.FullScaleRangeG)
			}
			if cfg.Sensor.DefaultTimeScaleMicros != tt.wantScale {
				t.Errorf("DefaultTimeScaleMicros = %d, want %d", cfg.Sensor.DefaultTimeScaleMicros, tt.wantScale)
			}
			if cfg.MQTT != nil || cfg.InfluxDB != nil || len(cfg.Webhooks) != 0 {
				t.Error("collaborators should be commented out")
			}
		})
	}
}
