package telemetry

import "math"

// DefaultRangeG is the full-scale range used when a range is not recognized.
const DefaultRangeG = 8

// DefaultTimeScaleMicros is the sample interval assumed when a session never
// reported one and the caller did not configure a fallback: 1 kHz logging.
const DefaultTimeScaleMicros int64 = 1000

// sensitivity maps a full-scale range in g to counts per g.
var sensitivity = map[int]float64{
	2:  16384.0,
	4:  8192.0,
	8:  4096.0,
	16: 2048.0,
}

// SupportedRanges lists the full-scale ranges in ascending order.
func SupportedRanges() []int {
	return []int{2, 4, 8, 16}
}

// IsSupportedRange reports whether rangeG is one of the known ranges.
func IsSupportedRange(rangeG int) bool {
	_, ok := sensitivity[rangeG]
	return ok
}

// Sensitivity returns counts per g for the range. Unknown ranges use the
// 8 g constant.
func Sensitivity(rangeG int) float64 {
	if s, ok := sensitivity[rangeG]; ok {
		return s
	}
	return sensitivity[DefaultRangeG]
}

// ToGForce converts a raw count to g.
func ToGForce(raw int64, rangeG int) float64 {
	return float64(raw) / Sensitivity(rangeG)
}

// Magnitude returns sqrt(x²+y²+z²).
func Magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// SampleTimeMillis converts a sample index to elapsed milliseconds.
func SampleTimeMillis(index, timeScaleMicros int64) float64 {
	return float64(index) * float64(timeScaleMicros) / 1000.0
}

// EffectiveTimeScale picks the reported time scale when present, otherwise
// the caller's fallback. defaulted is true when the fallback was used.
// A non-positive fallback is replaced by DefaultTimeScaleMicros so that
// timestamps never collapse to zero.
func EffectiveTimeScale(reported *int64, fallback int64) (micros int64, defaulted bool) {
	if reported != nil {
		return *reported, false
	}
	if fallback <= 0 {
		fallback = DefaultTimeScaleMicros
	}
	return fallback, true
}
