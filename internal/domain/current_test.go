package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpeedKnots(t *testing.T) {
	assert.InDelta(t, 1.943844, SpeedKnots(1, 0), 1e-6)
	assert.InDelta(t, 0, SpeedKnots(0, 0), 1e-9)
	// 3-4-5 triangle: |(0.3, 0.4)| = 0.5 m/s.
	assert.InDelta(t, 0.5*MetersPerSecondToKnots, SpeedKnots(0.3, 0.4), 1e-9)
}

func TestDirectionDeg(t *testing.T) {
	tests := []struct {
		u, v, want float64
	}{
		{0, 1, 0},    // northward
		{1, 0, 90},   // eastward
		{0, -1, 180}, // southward
		{-1, 0, 270}, // westward
		{1, 1, 45},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, DirectionDeg(tt.u, tt.v), 1e-9, "u=%v v=%v", tt.u, tt.v)
	}
}

func TestGapHours(t *testing.T) {
	files := []HourFile{
		{Hour: 0, Path: "f000.nc"},
		{Hour: 1, Err: errors.New("404")},
		{Hour: 2, Path: "f002.nc"},
		{Hour: 3, Err: errors.New("timeout")},
	}
	assert.Equal(t, []int{1, 3}, GapHours(files))
	assert.Equal(t, 2, Available(files))
	assert.Nil(t, GapHours(files[:1]))
}
