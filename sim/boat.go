package sim

import (
	"math"

	"github.com/adambom/sfbaysim/field"
	"github.com/adambom/sfbaysim/latlon"
	"github.com/adambom/sfbaysim/polar"
	"github.com/adambom/sfbaysim/router"
)

// Boat is one simulated boat. All exported fields are the per-step physics
// outputs; the simulator owns the struct and mutates it once per step.
type Boat struct {
	Id   string `json:"id"`
	Name string `json:"name"`

	Position   latlon.LatLon `json:"position"`
	HeadingDeg float64       `json:"heading_deg"`

	BoatSpeedKts float64 `json:"boat_speed_kts"`
	SogKts       float64 `json:"sog_kts"`
	CogDeg       float64 `json:"cog_deg"`

	TwaDeg float64 `json:"twa_deg"`
	TwsKts float64 `json:"tws_kts"`
	AwaDeg float64 `json:"awa_deg"`
	AwsKts float64 `json:"aws_kts"`

	CurrentU float64 `json:"current_u"`
	CurrentV float64 `json:"current_v"`

	InIrons    bool    `json:"in_irons"`
	PerfFactor float64 `json:"perf_factor"`

	Autonomous bool   `json:"autonomous"`
	RouterName string `json:"router"`

	DistanceNm   float64 `json:"distance_nm"`
	ElapsedSec   float64 `json:"elapsed_sec"`
	MarkIndex    int     `json:"mark_index"`
	MarksRounded int     `json:"marks_rounded"`
	Finished     bool    `json:"finished"`

	pol       *polar.Polar
	nav       router.NavigationRouter
	navIndex  int
	windHint  field.Hint
	currHint  field.Hint
	startPos  latlon.LatLon
	startHead float64
}

// step runs one fixed physics step with the environment already resolved at
// the boat's position. Heading is never changed here.
func (b *Boat) step(dt float64, windDirDeg, windSpeedKts float64, current field.Vector, closeHauledDeg, inIronsKts float64) {
	b.TwaDeg = latlon.Twa(b.HeadingDeg, windDirDeg)
	b.TwsKts = windSpeedKts

	b.InIrons = b.TwaDeg > -closeHauledDeg && b.TwaDeg < closeHauledDeg
	if b.InIrons {
		// Too close to the wind to generate drive; the boat crawls.
		b.BoatSpeedKts = inIronsKts
	} else {
		b.BoatSpeedKts = b.pol.SpeedAt(b.TwaDeg, b.TwsKts) * b.PerfFactor
	}

	b.AwaDeg, b.AwsKts = ApparentWind(b.HeadingDeg, b.BoatSpeedKts, windDirDeg, windSpeedKts)

	b.CurrentU = current.U
	b.CurrentV = current.V

	east, north := GroundVelocity(b.HeadingDeg, b.BoatSpeedKts, current)
	b.SogKts = math.Hypot(east, north) * msToKnots
	b.CogDeg = directionOf(east, north)

	b.Position = b.Position.Displace(east*dt, north*dt)

	b.DistanceNm += b.SogKts * dt / 3600
	b.ElapsedSec += dt
}

// windDirection recovers the wind FROM direction from the boat's last TWA.
func (b *Boat) windDirection() float64 {
	return latlon.Wrap360(b.HeadingDeg + b.TwaDeg)
}

// tack mirrors the true wind angle through the wind, putting the boat on the
// opposite tack at the same angle off the wind. Gybing is the same heading
// change with the bow swinging the other way, which the stepper does not
// model separately.
func (b *Boat) tack() {
	b.HeadingDeg = latlon.Heading(-b.TwaDeg, b.windDirection())
	b.TwaDeg = -b.TwaDeg
}

func (b *Boat) resetToStart() {
	b.Position = b.startPos
	b.HeadingDeg = b.startHead
	b.BoatSpeedKts = 0
	b.SogKts = 0
	b.CogDeg = 0
	b.TwaDeg = 0
	b.TwsKts = 0
	b.AwaDeg = 0
	b.AwsKts = 0
	b.CurrentU = 0
	b.CurrentV = 0
	b.InIrons = false
	b.DistanceNm = 0
	b.ElapsedSec = 0
	b.MarkIndex = 0
	b.MarksRounded = 0
	b.Finished = false
	b.windHint.Reset()
	b.currHint.Reset()
	if b.nav != nil {
		b.nav.Reset()
	}
}
