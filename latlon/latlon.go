package latlon

import "math"

const π = math.Pi

// R is the mean earth radius in meters.
const R = 6371e3

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func toRadians(a float64) float64 {
	return a * π / 180.0
}

func toDegrees(a float64) float64 {
	return a * 180.0 / π
}

// Wrap360 normalizes a compass angle to [0, 360).
func Wrap360(d float64) float64 {
	if 0.0 <= d && d < 360.0 {
		return d
	}
	d1 := math.Mod(d, 360.0) + 360.0
	return math.Mod(d1, 360.0)
}

// Wrap180 normalizes a relative angle to (-180, 180].
func Wrap180(d float64) float64 {
	d = math.Mod(d, 360.0)
	if d <= -180 {
		d += 360
	}
	if d > 180 {
		d -= 360
	}
	return d
}

// Twa is the true wind angle for a boat heading and a wind FROM direction.
// Positive means wind over the starboard side.
func Twa(heading, wind float64) float64 {
	twa := wind - heading
	if twa <= -180 {
		twa += 360
	}
	if twa > 180 {
		twa -= 360
	}
	return twa
}

// Heading is the compass heading that puts the wind at the given true wind angle.
func Heading(twa, wind float64) float64 {
	heading := wind - twa
	if heading < 0 {
		heading += 360
	}
	if heading >= 360 {
		heading -= 360
	}
	return heading
}

// DistanceTo returns the haversine great-circle distance in meters.
func (from LatLon) DistanceTo(to LatLon) float64 {
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)
	Δφ := φ2 - φ1

	Δλ := toRadians(to.Lon - from.Lon)

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	δ := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * δ
}

// BearingTo returns the initial bearing from one point to another in [0, 360).
func (from LatLon) BearingTo(to LatLon) float64 {
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)

	Δλ := toRadians(to.Lon - from.Lon)
	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ)
	y := math.Sin(Δλ) * math.Cos(φ2)
	θ := math.Atan2(y, x)

	return Wrap360(toDegrees(θ))
}

func (from LatLon) DistanceAndBearingTo(to LatLon) (float64, float64) {
	φ1 := toRadians(from.Lat)
	φ2 := toRadians(to.Lat)
	Δφ := φ2 - φ1

	Δλ := toRadians(to.Lon - from.Lon)

	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	δ := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	x := math.Cos(φ1)*math.Sin(φ2) - math.Sin(φ1)*math.Cos(φ2)*math.Cos(Δλ)
	y := math.Sin(Δλ) * math.Cos(φ2)
	θ := math.Atan2(y, x)

	return R * δ, Wrap360(toDegrees(θ))
}

// Destination returns the point at the given bearing and distance (meters).
func (from LatLon) Destination(bearing float64, distance float64) LatLon {
	φ1 := toRadians(from.Lat)
	λ1 := toRadians(from.Lon)
	θ := toRadians(bearing)

	δ := distance / R

	φ2 := math.Asin(math.Sin(φ1)*math.Cos(δ) + math.Cos(φ1)*math.Sin(δ)*math.Cos(θ))
	λ2 := λ1 + math.Atan2(math.Sin(θ)*math.Sin(δ)*math.Cos(φ1), math.Cos(δ)-math.Sin(φ1)*math.Sin(φ2))

	lon := toDegrees(λ2)
	if lon > 180 {
		lon -= 360
	}
	if lon < -180 {
		lon += 360
	}

	return LatLon{Lat: toDegrees(φ2), Lon: lon}
}

// Displace moves a point by east/north meters using the equirectangular
// approximation. Good enough at simulation step scale.
func (from LatLon) Displace(eastM, northM float64) LatLon {
	lat := from.Lat + toDegrees(northM/R)
	lon := from.Lon + toDegrees(eastM/(R*math.Cos(toRadians(from.Lat))))
	return LatLon{Lat: lat, Lon: lon}
}
