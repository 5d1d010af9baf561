package router

import (
	"math"

	"github.com/adambom/sfbaysim/latlon"
)

// Mode is the layline router's navigation state.
type Mode string

const (
	DirectToMark   Mode = "direct-to-mark"
	BeatingLayline Mode = "beating-layline"
)

// Tack identifies which side the wind is taken on while beating or running.
type Tack int

const (
	NoTack Tack = iota
	PortTack
	StarboardTack
)

// State is the layline router's memory between evaluations.
type State struct {
	Mode        Mode
	ChosenTack  Tack
	LastTackSec float64
	committed   bool
}

// LaylineVmg steers the direct bearing when the mark is sailable, and beats
// (or runs) at the polar's best-VMG angle when the mark sits inside the
// no-go zone. Tack changes are suppressed within the commitment interval so
// transient wind shifts cannot make the boat oscillate.
type LaylineVmg struct {
	cfg   Config
	state State
}

func NewLaylineVmg(cfg Config) *LaylineVmg {
	return &LaylineVmg{cfg: cfg, state: State{Mode: DirectToMark}}
}

func (r *LaylineVmg) Name() string {
	return "layline-vmg"
}

func (r *LaylineVmg) State() State {
	return r.state
}

func (r *LaylineVmg) Reset() {
	r.state = State{Mode: DirectToMark}
}

func (r *LaylineVmg) Evaluate(ctx Context) float64 {
	if !ctx.HasMark || ctx.Polar == nil {
		return ctx.HeadingDeg
	}

	bearing := ctx.Position.BearingTo(ctx.Mark)
	windToMark := latlon.Wrap180(bearing - ctx.WindDirDeg)
	offWind := math.Abs(windToMark)

	// The polar can only widen the no-go zone beyond the configured
	// threshold, never narrow it into irons.
	upTwa := math.Max(r.cfg.CloseHauledDeg, ctx.Polar.BestVmgAngle(ctx.WindSpeedKts, false))
	downTwa := ctx.Polar.BestVmgAngle(ctx.WindSpeedKts, true)

	switch {
	case offWind < upTwa:
		// Mark is upwind inside the laylines.
		return r.beat(ctx, bearing, upTwa)
	case offWind > downTwa:
		// Mark sits between the gybe laylines, near dead downwind.
		return r.beat(ctx, bearing, downTwa)
	default:
		r.state.Mode = DirectToMark
		r.state.ChosenTack = NoTack
		r.state.committed = false
		return bearing
	}
}

// beat picks the tack heading at twa degrees off the wind that makes the
// most progress toward the mark, holding the current tack until the
// commitment timer expires.
func (r *LaylineVmg) beat(ctx Context, bearing, twa float64) float64 {
	r.state.Mode = BeatingLayline

	port := latlon.Wrap360(ctx.WindDirDeg - twa)
	starboard := latlon.Wrap360(ctx.WindDirDeg + twa)

	if r.state.committed && ctx.ElapsedSec-r.state.LastTackSec < r.cfg.TackCommitmentSec {
		return r.tackHeading(port, starboard)
	}

	// Boat speed is the same on either tack; the better tack is the one
	// whose heading projects more of it toward the mark.
	want := PortTack
	if math.Abs(latlon.Wrap180(starboard-bearing)) < math.Abs(latlon.Wrap180(port-bearing)) {
		want = StarboardTack
	}

	if r.state.ChosenTack == NoTack {
		// First commitment on entering the zone is free.
		r.state.ChosenTack = want
		r.state.LastTackSec = ctx.ElapsedSec
		r.state.committed = true
	} else if want != r.state.ChosenTack {
		r.state.ChosenTack = want
		r.state.LastTackSec = ctx.ElapsedSec
		r.state.committed = true
	}

	return r.tackHeading(port, starboard)
}

func (r *LaylineVmg) tackHeading(port, starboard float64) float64 {
	if r.state.ChosenTack == StarboardTack {
		return starboard
	}
	return port
}
