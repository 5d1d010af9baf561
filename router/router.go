package router

import (
	"github.com/adambom/sfbaysim/latlon"
	"github.com/adambom/sfbaysim/polar"
)

// Context is the per-step snapshot a router decides from. The simulation
// builds one each step; routers never reach back into live boat state.
type Context struct {
	Position   latlon.LatLon
	HeadingDeg float64
	TwaDeg     float64
	ElapsedSec float64

	HasMark bool
	Mark    latlon.LatLon

	// Wind at the boat, after fallback substitution.
	WindDirDeg   float64
	WindSpeedKts float64

	Polar *polar.Polar
}

// NavigationRouter computes a desired heading each step. Implementations may
// keep state between calls (tack commitment); Reset clears it when the
// course changes or the router is reassigned.
type NavigationRouter interface {
	Name() string
	Evaluate(ctx Context) float64
	Reset()
}

// Config carries the routing tunables shared by all variants.
type Config struct {
	CloseHauledDeg    float64
	TackCommitmentSec float64
}

// Factory builds a fresh router instance with its own state.
type Factory func(cfg Config) NavigationRouter

var factories = []Factory{
	func(cfg Config) NavigationRouter { return NewLaylineVmg(cfg) },
	func(cfg Config) NavigationRouter { return NewDirectBearing() },
}

// Count returns how many router variants are registered.
func Count() int {
	return len(factories)
}

// New builds registry entry i; the index wraps so callers can cycle.
func New(i int, cfg Config) NavigationRouter {
	return factories[((i%len(factories))+len(factories))%len(factories)](cfg)
}
