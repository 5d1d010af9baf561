package field

import (
	"math"

	"github.com/adambom/sfbaysim/latlon"
)

// Field is one installed forecast-hour snapshot. Sample reports ok=false
// when the point is outside the field's domain; it never fails otherwise.
type Field interface {
	Sample(p latlon.LatLon, h *Hint) (Vector, bool)
}

// Vector is a sampled field value: east/north components in m/s.
// Results are returned by value so stores can drop snapshots while
// consumers still hold samples.
type Vector struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
}

// Speed returns the magnitude in m/s.
func (v Vector) Speed() float64 {
	return math.Sqrt(v.U*v.U + v.V*v.V)
}

// Knots returns the magnitude in knots.
func (v Vector) Knots() float64 {
	return v.Speed() * 1.9438444924406
}

// DirectionFrom returns the meteorological direction the flow comes FROM,
// in degrees [0, 360). Wind convention.
func (v Vector) DirectionFrom() float64 {
	d := math.Atan2(v.U, v.V)*180/math.Pi + 180
	if d >= 360 {
		d -= 360
	}
	return d
}

// DirectionTo returns the direction the flow sets TO, in degrees [0, 360).
// Current convention.
func (v Vector) DirectionTo() float64 {
	d := math.Atan2(v.U, v.V) * 180 / math.Pi
	if d < 0 {
		d += 360
	}
	return d
}

// Hint carries spatial locality between consecutive samples of one consumer
// (a boat, a display sampler). A zero Hint is valid and means "no locality".
type Hint struct {
	tri   int32
	valid bool
}

// Reset forgets the cached location, forcing the next mesh sample to search
// from scratch.
func (h *Hint) Reset() {
	h.valid = false
}
