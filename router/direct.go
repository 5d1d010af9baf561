package router

// DirectBearing always steers the raw bearing to the mark, even through the
// no-go zone. Baseline variant for comparing router behaviour on a course.
type DirectBearing struct{}

func NewDirectBearing() *DirectBearing {
	return &DirectBearing{}
}

func (r *DirectBearing) Name() string {
	return "direct-bearing"
}

func (r *DirectBearing) Reset() {}

func (r *DirectBearing) Evaluate(ctx Context) float64 {
	if !ctx.HasMark {
		return ctx.HeadingDeg
	}
	return ctx.Position.BearingTo(ctx.Mark)
}
