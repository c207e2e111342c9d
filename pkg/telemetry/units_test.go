package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToGForce_RoundTrips(t *testing.T) {
	tests := []struct {
		raw    int64
		rangeG int
		want   float64
	}{
		{16384, 2, 1.0},
		{8192, 4, 1.0},
		{4096, 8, 1.0},
		{2048, 16, 1.0},
		{-16384, 2, -1.0},
		{0, 16, 0},
	}

	for _, tt := range tests {
		if got := ToGForce(tt.raw, tt.rangeG); got != tt.want {
			t.Errorf("ToGForce(%d, %d) = %v, want %v", tt.raw, tt.rangeG, got, tt.want)
		}
	}
}

func TestToGForce_UnknownRangeFallsBack(t *testing.T) {
	assert.Equal(t, 1.0, ToGForce(4096, 3))
	assert.Equal(t, 1.0, ToGForce(4096, 0))
	assert.Equal(t, Sensitivity(8), Sensitivity(-1))
}

func TestMagnitude(t *testing.T) {
	assert.Equal(t, 5.0, Magnitude(3, 4, 0))
	assert.Equal(t, 0.0, Magnitude(0, 0, 0))
	assert.InDelta(t, math.Sqrt(3), Magnitude(1, 1, 1), 1e-12)
}

func TestSampleTimeMillis(t *testing.T) {
	assert.Equal(t, 0.0, SampleTimeMillis(0, 2000))
	assert.Equal(t, 2.0, SampleTimeMillis(1, 2000))
	assert.Equal(t, 1.5, SampleTimeMillis(3, 500))
}

func TestEffectiveTimeScale(t *testing.T) {
	reported := int64(2000)

	micros, defaulted := EffectiveTimeScale(&reported, 1000)
	assert.Equal(t, int64(2000), micros)
	assert.False(t, defaulted)

	micros, defaulted = EffectiveTimeScale(nil, 500)
	assert.Equal(t, int64(500), micros)
	assert.True(t, defaulted)

	micros, defaulted = EffectiveTimeScale(nil, 0)
	assert.Equal(t, DefaultTimeScaleMicros, micros)
	assert.True(t, defaulted)
}

func TestSample_G(t *testing.T) {
	s := Sample{Index: 1, X: 0, Y: 0, Z: 16384}
	g := s.G(2)
	assert.Equal(t, 0.0, g.X)
	assert.Equal(t, 1.0, g.Z)
	assert.Equal(t, 1.0, g.Magnitude)
	assert.Equal(t, 16384.0, s.RawMagnitude())
}

func TestIsSupportedRange(t *testing.T) {
	for _, r := range SupportedRanges() {
		assert.True(t, IsSupportedRange(r), "range %d", r)
	}
	assert.False(t, IsSupportedRange(3))
}
