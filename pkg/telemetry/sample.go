// Package telemetry defines the accelerometer sample model and unit conversions.
package telemetry

// Sample is a single accelerometer reading as reported by the logger.
// X, Y and Z are raw signed counts; Index is the device-supplied sequence
// number and is never reassigned.
type Sample struct {
	Index int64 `json:"index"`
	X     int64 `json:"x"`
	Y     int64 `json:"y"`
	Z     int64 `json:"z"`
}

// GSample is a sample converted to g.
type GSample struct {
	X         float64 `json:"x_g"`
	Y         float64 `json:"y_g"`
	Z         float64 `json:"z_g"`
	Magnitude float64 `json:"magnitude_g"`
}

// G converts the raw counts to g for the given full-scale range.
func (s Sample) G(rangeG int) GSample {
	g := GSample{
		X: ToGForce(s.X, rangeG),
		Y: ToGForce(s.Y, rangeG),
		Z: ToGForce(s.Z, rangeG),
	}
	g.Magnitude = Magnitude(g.X, g.Y, g.Z)
	return g
}

// RawMagnitude is the vector length of the raw counts.
func (s Sample) RawMagnitude() float64 {
	return Magnitude(float64(s.X), float64(s.Y), float64(s.Z))
}
