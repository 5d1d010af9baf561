package sim

import (
	"math"

	"github.com/adambom/sfbaysim/field"
	"github.com/adambom/sfbaysim/latlon"
)

const (
	knotsToMs = 0.514444
	msToKnots = 1 / knotsToMs

	metersPerNm = 1852.0
)

// vectorFrom converts a nautical direction (degrees, 0 = north, clockwise)
// and magnitude into east/north components.
func vectorFrom(dirDeg, mag float64) (east, north float64) {
	r := dirDeg * math.Pi / 180
	return mag * math.Sin(r), mag * math.Cos(r)
}

// directionOf returns the nautical direction of an east/north vector.
func directionOf(east, north float64) float64 {
	return latlon.Wrap360(math.Atan2(east, north) * 180 / math.Pi)
}

// ApparentWind is the wind the boat feels: true wind minus boat velocity.
// The wind direction is the FROM convention; the returned angle is relative
// to the heading, positive to starboard.
func ApparentWind(headingDeg, boatSpeedKts, windDirDeg, windSpeedKts float64) (awaDeg, awsKts float64) {
	bx, by := vectorFrom(headingDeg, boatSpeedKts*knotsToMs)
	wx, wy := vectorFrom(windDirDeg, windSpeedKts*knotsToMs)

	// wx/wy point into the FROM direction, so the boat's own motion adds
	// an induced component from dead ahead.
	ax := wx + bx
	ay := wy + by

	awsKts = math.Hypot(ax, ay) * msToKnots
	awaDeg = latlon.Wrap180(directionOf(ax, ay) - headingDeg)
	return awaDeg, awsKts
}

// GroundVelocity combines the through-water velocity with the current,
// returning east/north components in m/s.
func GroundVelocity(headingDeg, boatSpeedKts float64, current field.Vector) (east, north float64) {
	bx, by := vectorFrom(headingDeg, boatSpeedKts*knotsToMs)
	return bx + current.U, by + current.V
}

// Vmg projects a ground velocity onto a target bearing, in knots.
func Vmg(sogKts, cogDeg, bearingDeg float64) float64 {
	return sogKts * math.Cos(latlon.Wrap180(bearingDeg-cogDeg)*math.Pi/180)
}
