// Package detector guesses the accelerometer full-scale range from a
// captured transcript. A device at rest measures 1 g, so the range whose
// sensitivity maps the typical raw magnitude closest to 1 g wins.
package detector

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/ccollicutt/falllog/pkg/parser"
	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// Raw limits of a signed 16-bit axis.
const (
	rawMax = 32767
	rawMin = -32768
)

// DetectionResult holds the result of analyzing a session.
type DetectionResult struct {
	Matches         []RangeMatch // Candidates sorted by confidence descending
	SampledSamples  int          // Number of samples examined
	MedianRaw       float64      // Median raw magnitude in counts
	ClippedSamples  int          // Samples with an axis at the 16-bit limit
	TimeScaleMicros *int64       // Time scale reported by the device, if any
	Note            string       // Warning about reliability, if any
}

// RangeMatch scores one candidate range.
type RangeMatch struct {
	Range      RangeCandidate
	RestingG   float64 // Median magnitude converted at this range
	Deviation  float64 // |RestingG - 1|
	Confidence float64 // 0.0 to 1.0 (share of samples within tolerance of 1 g)
	MatchCount int     // Number of samples within tolerance
}

// Detector scores candidate ranges against resting samples.
type Detector struct {
	candidates []RangeCandidate
	sampleSize int
	toleranceG float64
}

// Option configures the Detector.
type Option func(*Detector)

// WithSampleSize sets the number of samples to examine (default 200).
func WithSampleSize(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.sampleSize = n
		}
	}
}

// WithTolerance sets how far from 1 g a sample may be and still count as
// resting (default 0.15 g).
func WithTolerance(g float64) Option {
	return func(d *Detector) {
		if g > 0 {
			d.toleranceG = g
		}
	}
}

// New creates a new Detector over every supported range.
func New(opts ...Option) *Detector {
	d := &Detector{
		candidates: DefaultCandidates(),
		sampleSize: 200,
		toleranceG: 0.15,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DetectFromFile parses a transcript and scores its samples.
func (d *Detector) DetectFromFile(ctx context.Context, path string) (*DetectionResult, error) {
	src, err := parser.NewFileSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	res, err := parser.Run(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	result := d.DetectFromSamples(res.Samples)
	result.TimeScaleMicros = res.TimeScaleMicros
	return result, nil
}

// DetectFromSamples scores every candidate against the first sampleSize
// samples.
func (d *Detector) DetectFromSamples(samples []telemetry.Sample) *DetectionResult {
	if len(samples) > d.sampleSize {
		samples = samples[:d.sampleSize]
	}

	result := &DetectionResult{
		SampledSamples: len(samples),
	}

	if len(samples) == 0 {
		return result
	}

	magnitudes := make([]float64, len(samples))
	for i, s := range samples {
		magnitudes[i] = s.RawMagnitude()
		if clipped(s) {
			result.ClippedSamples++
		}
	}
	result.MedianRaw = median(magnitudes)

	for _, c := range d.candidates {
		m := RangeMatch{
			Range:    c,
			RestingG: result.MedianRaw / c.Sensitivity,
		}
		m.Deviation = math.Abs(m.RestingG - 1)
		for _, raw := range magnitudes {
			if math.Abs(raw/c.Sensitivity-1) <= d.toleranceG {
				m.MatchCount++
			}
		}
		m.Confidence = float64(m.MatchCount) / float64(len(magnitudes))
		result.Matches = append(result.Matches, m)
	}

	// Sort by confidence descending, then by closeness to 1 g
	sort.SliceStable(result.Matches, func(i, j int) bool {
		if result.Matches[i].Confidence != result.Matches[j].Confidence {
			return result.Matches[i].Confidence > result.Matches[j].Confidence
		}
		return result.Matches[i].Deviation < result.Matches[j].Deviation
	})

	switch {
	case result.ClippedSamples > 0:
		result.Note = fmt.Sprintf("%d samples hit the 16-bit limit; the device range may be set too low "+
			"or the capture includes hard impacts. Re-run detection on a capture taken at rest.",
			result.ClippedSamples)
	case result.Matches[0].Confidence < 0.5:
		result.Note = "Fewer than half of the samples look like a device at rest. " +
			"Detection is most reliable on a capture taken while the device is still."
	}

	return result
}

func clipped(s telemetry.Sample) bool {
	for _, v := range []int64{s.X, s.Y, s.Z} {
		if v >= rawMax || v <= rawMin {
			return true
		}
	}
	return false
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// BestMatch returns the highest confidence match, or nil if none found.
func (r *DetectionResult) BestMatch() *RangeMatch {
	if len(r.Matches) == 0 || r.Matches[0].MatchCount == 0 {
		return nil
	}
	return &r.Matches[0]
}

// HasMatch returns true if at least one range explains some samples.
func (r *DetectionResult) HasMatch() bool {
	return r.BestMatch() != nil
}
