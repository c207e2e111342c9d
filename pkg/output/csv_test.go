package output

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ccollicutt/falllog/pkg/analyzer"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

func testPoints() []analyzer.Point {
	samples := []telemetry.Sample{
		{Index: 0, X: 0, Y: 0, Z: 16384},
		{Index: 1, X: -8192, Y: 16384, Z: 0},
	}
	points := make([]analyzer.Point, len(samples))
	for i, s := range samples {
		points[i] = analyzer.Point{
			Sample: s,
			G:      s.G(2),
			TimeMs: telemetry.SampleTimeMillis(s.Index, 2500),
			Pos:    i,
		}
	}
	return points
}

func TestCSVFileName(t *testing.T) {
	got := CSVFileName(time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC))
	if got != "accel_data_20240309_140507.csv" {
		t.Errorf("CSVFileName() = %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testPoints(), false); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "Index,AccX,AccY,AccZ\n0,0,0,16384\n1,-8192,16384,0\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSV_Extended(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, testPoints(), true); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3", len(lines))
	}
	if lines[0] != "Index,AccX,AccY,AccZ,TimeMs,AccXg,AccYg,AccZg,MagnitudeG" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0,0,0,16384,0.000,0.000000,0.000000,1.000000,1.000000" {
		t.Errorf("row 0 = %q", lines[1])
	}
	if lines[2] != "1,-8192,16384,0,2.500,-0.500000,1.000000,0.000000,1.118034" {
		t.Errorf("row 1 = %q", lines[2])
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil, false); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != "Index,AccX,AccY,AccZ\n" {
		t.Errorf("WriteCSV() = %q, want header only", buf.String())
	}
}

func TestSaveCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	path, err := SaveCSV(dir, started, testPoints(), false)
	if err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	if path != filepath.Join(dir, "accel_data_20240309_140507.csv") {
		t.Errorf("path = %q", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if !strings.HasPrefix(string(data), "Index,AccX,AccY,AccZ\n0,0,0,16384\n") {
		t.Errorf("csv content = %q", data)
	}
}

func TestSaveCSV_NameTaken(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	first, err := SaveCSV(dir, started, testPoints(), false)
	if err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}
	second, err := SaveCSV(dir, started, testPoints(), true)
	if err != nil {
		t.Fatalf("SaveCSV() error = %v", err)
	}

	if first == second {
		t.Fatalf("second save overwrote %s", first)
	}
	if filepath.Base(second) != "accel_data_20240309_140507_1.csv" {
		t.Errorf("second path = %q", second)
	}
}

func TestSaveCSV_BadDirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := SaveCSV(filepath.Join(file, "sub"), time.Now(), testPoints(), false); err == nil {
		t.Error("SaveCSV() expected error when directory is a file")
	}
}
