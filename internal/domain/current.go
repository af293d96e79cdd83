package domain

import "math"

// MetersPerSecondToKnots converts velocity magnitudes for S-111 output.
const MetersPerSecondToKnots = 1.943844492

// SpeedKnots returns the current speed in knots for eastward/northward
// velocity components in m/s.
func SpeedKnots(u, v float64) float64 {
	return math.Hypot(u, v) * MetersPerSecondToKnots
}

// DirectionDeg returns the direction toward which the current flows, in
// degrees clockwise from true north, in [0, 360).
func DirectionDeg(u, v float64) float64 {
	deg := math.Atan2(u, v) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return deg
}
