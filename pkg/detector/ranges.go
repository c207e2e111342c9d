package detector

import (
	"fmt"

	"github.com/ccollicutt/falllog/pkg/telemetry"
)

// RangeCandidate is a full-scale range the accelerometer may be set to.
type RangeCandidate struct {
	RangeG      int     // Full-scale range in g
	Sensitivity float64 // Counts per g at this range
	Name        string  // Human-readable name
}

// DefaultCandidates returns every supported range, narrowest first.
func DefaultCandidates() []RangeCandidate {
	ranges := telemetry.SupportedRanges()
	candidates := make([]RangeCandidate, 0, len(ranges))
	for _, r := range ranges {
		candidates = append(candidates, RangeCandidate{
			RangeG:      r,
			Sensitivity: telemetry.Sensitivity(r),
			Name:        fmt.Sprintf("±%dg", r),
		})
	}
	return candidates
}
