package sim

import "github.com/adambom/sfbaysim/latlon"

// CourseMark is an ordered waypoint with a rounding radius. Boats advance
// their own mark index when they pass within the radius.
type CourseMark struct {
	Name     string        `json:"name"`
	Position latlon.LatLon `json:"position"`
	RadiusM  float64       `json:"radius_m"`
}

// Course is the ordered mark sequence shared by all boats.
type Course struct {
	Marks []CourseMark `json:"marks"`
}

// Mark returns the i-th mark, or false when the course is finished or empty.
func (c *Course) Mark(i int) (CourseMark, bool) {
	if i < 0 || i >= len(c.Marks) {
		return CourseMark{}, false
	}
	return c.Marks[i], true
}
