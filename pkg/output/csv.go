package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ccollicutt/falllog/pkg/analyzer"
)

// CSV column layout.
var (
	csvHeader         = []string{"Index", "AccX", "AccY", "AccZ"}
	csvExtendedHeader = []string{"TimeMs", "AccXg", "AccYg", "AccZg", "MagnitudeG"}
)

// CSVFileName returns the file name used for a session started at t.
func CSVFileName(t time.Time) string {
	return "accel_data_" + t.Format("20060102_150405") + ".csv"
}

// WriteCSV writes one row per point in arrival order. Extended output
// appends time and g-force columns.
func WriteCSV(w io.Writer, points []analyzer.Point, extended bool) error {
	cw := csv.NewWriter(w)

	header := csvHeader
	if extended {
		header = append(append([]string(nil), csvHeader...), csvExtendedHeader...)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	row := make([]string, 0, len(header))
	for _, p := range points {
		row = append(row[:0],
			strconv.FormatInt(p.Index, 10),
			strconv.FormatInt(p.X, 10),
			strconv.FormatInt(p.Y, 10),
			strconv.FormatInt(p.Z, 10),
		)
		if extended {
			row = append(row,
				strconv.FormatFloat(p.TimeMs, 'f', 3, 64),
				strconv.FormatFloat(p.G.X, 'f', 6, 64),
				strconv.FormatFloat(p.G.Y, 'f', 6, 64),
				strconv.FormatFloat(p.G.Z, 'f', 6, 64),
				strconv.FormatFloat(p.G.Magnitude, 'f', 6, 64),
			)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for index %d: %w", p.Index, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// SaveCSV writes the points to dir, creating it if needed, and returns the
// path of the new file.
func SaveCSV(dir string, startedAt time.Time, points []analyzer.Point, extended bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	path, f, err := createUnique(dir, CSVFileName(startedAt))
	if err != nil {
		return "", fmt.Errorf("creating csv file: %w", err)
	}

	if err := WriteCSV(f, points, extended); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing csv file: %w", err)
	}
	return path, nil
}

// createUnique creates name in dir, adding a _N suffix when a file of that
// name already exists.
func createUnique(dir, name string) (string, *os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for n := 1; ; n++ {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G304 -- output directory is user-provided
		if err == nil {
			return path, f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", nil, err
		}
		name = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
}
