package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/adambom/sfbaysim/config"
	"github.com/adambom/sfbaysim/field"
	"github.com/adambom/sfbaysim/latlon"
	"github.com/adambom/sfbaysim/polar"
	"github.com/adambom/sfbaysim/router"
	"github.com/adambom/sfbaysim/store"
)

// timeStep is the fixed logical step. The accumulator in Advance decouples
// it from the caller's frame rate.
const timeStep = 1.0

// SpeedMultipliers is the selectable time-compression ladder; index 0
// pauses the simulation.
var SpeedMultipliers = []float64{0, 0.5, 1, 2, 5, 10, 15, 20, 25, 50, 100}

// maxTurnRateDeg bounds how far an autonomous boat may swing per step.
const maxTurnRateDeg = 10.0

// Notifier receives race events. Best-effort; may be nil.
type Notifier interface {
	Eventf(format string, args ...interface{})
}

// WindOverride replaces stored forecast wind with a scripted scenario,
// consulted before the store. Current is unaffected.
type WindOverride interface {
	Wind(simSec float64, p latlon.LatLon) (dirDeg, speedKts float64)
}

// ConstantWind blows from a single direction at constant speed.
type ConstantWind struct {
	DirDeg   float64
	SpeedKts float64
}

func (w ConstantWind) Wind(simSec float64, p latlon.LatLon) (float64, float64) {
	return w.DirDeg, w.SpeedKts
}

// OscillatingWind swings sinusoidally about a base direction, for exercising
// tacking strategies.
type OscillatingWind struct {
	BaseDirDeg float64
	SpeedKts   float64
	DeltaDeg   float64
	PeriodSec  float64
}

func (w OscillatingWind) Wind(simSec float64, p latlon.LatLon) (float64, float64) {
	phase := math.Mod(simSec, w.PeriodSec) / w.PeriodSec
	return latlon.Wrap360(w.BaseDirDeg + w.DeltaDeg*math.Sin(2*math.Pi*phase)), w.SpeedKts
}

// Simulator owns the boats, the course, and simulation time. Advance is
// called from the outer loop; commands arrive concurrently from the API.
type Simulator struct {
	mu sync.Mutex

	cfg      config.Config
	fields   *store.Store
	pol      *polar.Polar
	override WindOverride
	notifier Notifier

	boats  []*Boat
	course Course

	simTime     time.Time
	simSec      float64
	accumulator float64
	speedIndex  int
}

// New builds a simulator over the given field store; the store may be nil
// when a WindOverride supplies the whole environment.
func New(cfg config.Config, fields *store.Store, pol *polar.Polar, notifier Notifier) *Simulator {
	base := time.Now().UTC()
	if fields != nil {
		base = fields.Base()
	}
	return &Simulator{
		cfg:        cfg,
		fields:     fields,
		pol:        pol,
		notifier:   notifier,
		simTime:    base,
		speedIndex: 2, // 1x
	}
}

func (s *Simulator) SetOverride(w WindOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = w
}

// AddBoat registers a boat at the given start position and heading.
func (s *Simulator) AddBoat(id, name string, p latlon.LatLon, headingDeg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nav := router.New(0, s.routerConfig())
	s.boats = append(s.boats, &Boat{
		Id:         id,
		Name:       name,
		Position:   p,
		HeadingDeg: latlon.Wrap360(headingDeg),
		PerfFactor: 1,
		RouterName: nav.Name(),
		pol:        s.pol,
		nav:        nav,
		startPos:   p,
		startHead:  latlon.Wrap360(headingDeg),
	})
	log.Infof("Boat '%s' added at (%.4f, %.4f) heading %.0f", name, p.Lat, p.Lon, headingDeg)
}

func (s *Simulator) routerConfig() router.Config {
	return router.Config{
		CloseHauledDeg:    s.cfg.CloseHauledDeg,
		TackCommitmentSec: s.cfg.TackCommitmentSec,
	}
}

// Advance accumulates scaled real time and runs whole fixed steps. It never
// blocks on field loading; missing data falls back per boat.
func (s *Simulator) Advance(realDt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accumulator += realDt * SpeedMultipliers[s.speedIndex]
	for s.accumulator >= timeStep {
		s.step()
		s.accumulator -= timeStep
	}

	if s.fields != nil {
		s.fields.AdvanceWindow(s.simTime)
	}
}

func (s *Simulator) step() {
	for _, b := range s.boats {
		windDir, windSpeed := s.windAt(b)
		current := s.currentAt(b)

		if b.Autonomous && b.nav != nil && !b.Finished {
			s.steer(b, windDir, windSpeed)
		}

		b.step(timeStep, windDir, windSpeed, current, s.cfg.CloseHauledDeg, s.cfg.InIronsSpeedKts)
		s.checkRounding(b)
	}

	s.simTime = s.simTime.Add(time.Duration(timeStep * float64(time.Second)))
	s.simSec += timeStep
}

func (s *Simulator) windAt(b *Boat) (dirDeg, speedKts float64) {
	if s.override != nil {
		return s.override.Wind(s.simSec, b.Position)
	}
	if s.fields != nil {
		if v, ok := s.fields.Query(store.Wind, b.Position, s.simTime, &b.windHint); ok {
			return v.DirectionFrom(), v.Knots()
		}
	}
	return s.cfg.FallbackWindDirDeg, s.cfg.FallbackWindSpeedKts
}

func (s *Simulator) currentAt(b *Boat) field.Vector {
	if s.fields == nil {
		return field.Vector{}
	}
	v, ok := s.fields.Query(store.Current, b.Position, s.simTime, &b.currHint)
	if !ok {
		// Outside the mesh hull or no resident hour: still water.
		return field.Vector{}
	}
	return v
}

// steer applies the router's heading command with a bounded turn rate.
func (s *Simulator) steer(b *Boat, windDir, windSpeed float64) {
	mark, ok := s.course.Mark(b.MarkIndex)
	target := b.nav.Evaluate(router.Context{
		Position:     b.Position,
		HeadingDeg:   b.HeadingDeg,
		TwaDeg:       b.TwaDeg,
		ElapsedSec:   b.ElapsedSec,
		HasMark:      ok,
		Mark:         mark.Position,
		WindDirDeg:   windDir,
		WindSpeedKts: windSpeed,
		Polar:        b.pol,
	})

	delta := latlon.Wrap180(target - b.HeadingDeg)
	if math.Abs(delta) <= maxTurnRateDeg {
		// Close enough to settle exactly on the commanded heading.
		b.HeadingDeg = latlon.Wrap360(target)
		return
	}
	if delta > 0 {
		delta = maxTurnRateDeg
	} else {
		delta = -maxTurnRateDeg
	}
	b.HeadingDeg = latlon.Wrap360(b.HeadingDeg + delta)
}

func (s *Simulator) checkRounding(b *Boat) {
	mark, ok := s.course.Mark(b.MarkIndex)
	if !ok || b.Finished {
		return
	}

	radius := mark.RadiusM
	if radius <= 0 {
		radius = s.cfg.RoundingRadiusM
	}
	if b.Position.DistanceTo(mark.Position) > radius {
		return
	}

	b.MarksRounded++
	b.MarkIndex++
	s.eventf("%s rounded %s (%d/%d)", b.Name, mark.Name, b.MarksRounded, len(s.course.Marks))

	if b.MarkIndex >= len(s.course.Marks) {
		b.Finished = true
		s.eventf("%s finished in %.0fs over %.2fnm", b.Name, b.ElapsedSec, b.DistanceNm)
	}
}

func (s *Simulator) eventf(format string, args ...interface{}) {
	log.Infof(format, args...)
	if s.notifier != nil {
		s.notifier.Eventf(format, args...)
	}
}

func (s *Simulator) boat(id string) (*Boat, error) {
	for _, b := range s.boats {
		if b.Id == id {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no boat '%s'", id)
}

// AdjustHeading turns a boat by delta degrees, positive to starboard.
func (s *Simulator) AdjustHeading(id string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boat(id)
	if err != nil {
		return err
	}
	b.HeadingDeg = latlon.Wrap360(b.HeadingDeg + delta)
	return nil
}

// SetHeading points a boat at an absolute compass heading.
func (s *Simulator) SetHeading(id string, heading float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boat(id)
	if err != nil {
		return err
	}
	b.HeadingDeg = latlon.Wrap360(heading)
	return nil
}

// Tack flips a boat to the opposite tack at the same angle off the wind.
func (s *Simulator) Tack(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boat(id)
	if err != nil {
		return err
	}
	b.tack()
	log.Debugf("%s tacked to heading %.0f", b.Name, b.HeadingDeg)
	return nil
}

// Gybe flips tacks through the stern; same heading geometry as Tack.
func (s *Simulator) Gybe(id string) error {
	return s.Tack(id)
}

// SetAutonomous attaches or detaches the boat's router.
func (s *Simulator) SetAutonomous(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boat(id)
	if err != nil {
		return err
	}
	b.Autonomous = enabled
	if b.nav != nil {
		b.nav.Reset()
	}
	log.Infof("%s autonomy %v (%s)", b.Name, enabled, b.RouterName)
	return nil
}

// CycleRouter switches the boat to the next registered router variant.
func (s *Simulator) CycleRouter(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boat(id)
	if err != nil {
		return "", err
	}
	b.navIndex = (b.navIndex + 1) % router.Count()
	b.nav = router.New(b.navIndex, s.routerConfig())
	b.RouterName = b.nav.Name()
	log.Infof("%s router now %s", b.Name, b.RouterName)
	return b.RouterName, nil
}

// DropMark appends a mark to the shared course.
func (s *Simulator) DropMark(p latlon.LatLon, name string, radiusM float64) CourseMark {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = fmt.Sprintf("Mark %d", len(s.course.Marks)+1)
	}
	if radiusM <= 0 {
		radiusM = s.cfg.RoundingRadiusM
	}
	mark := CourseMark{Name: name, Position: p, RadiusM: radiusM}
	s.course.Marks = append(s.course.Marks, mark)
	log.Infof("Mark '%s' dropped at (%.4f, %.4f)", name, p.Lat, p.Lon)
	return mark
}

// ClearMarks removes the course and rewinds every boat's progress on it.
func (s *Simulator) ClearMarks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.course.Marks = nil
	for _, b := range s.boats {
		b.MarkIndex = 0
		b.MarksRounded = 0
		b.Finished = false
		if b.nav != nil {
			b.nav.Reset()
		}
	}
	log.Info("Course cleared")
}

// ResetToStart rewinds boats, statistics and simulation time to the
// scenario start. The course is kept.
func (s *Simulator) ResetToStart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.boats {
		b.resetToStart()
	}
	if s.fields != nil {
		s.simTime = s.fields.Base()
	}
	s.simSec = 0
	s.accumulator = 0
	log.Info("Simulation reset to start")
}

// SetSpeedIndex selects a time-compression step on the multiplier ladder.
func (s *Simulator) SetSpeedIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(SpeedMultipliers) {
		return fmt.Errorf("speed index %d out of range [0,%d]", i, len(SpeedMultipliers)-1)
	}
	s.speedIndex = i
	log.Infof("Simulation speed %gx", SpeedMultipliers[i])
	return nil
}

func (s *Simulator) SpeedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speedIndex
}

// Boats returns value snapshots safe to hand to encoders.
func (s *Simulator) Boats() []Boat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Boat, len(s.boats))
	for i, b := range s.boats {
		out[i] = *b
	}
	return out
}

// Boat returns one boat snapshot by id.
func (s *Simulator) Boat(id string) (Boat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boat(id)
	if err != nil {
		return Boat{}, err
	}
	return *b, nil
}

// Marks returns a copy of the current course.
func (s *Simulator) Marks() []CourseMark {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CourseMark(nil), s.course.Marks...)
}

// SimTime is the current simulation clock.
func (s *Simulator) SimTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime
}
