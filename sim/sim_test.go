package sim

import (
	"math"
	"testing"

	"github.com/adambom/sfbaysim/config"
	"github.com/adambom/sfbaysim/latlon"
	"github.com/adambom/sfbaysim/polar"
)

func testPolar() *polar.Polar {
	return &polar.Polar{
		Label: "test",
		Twa:   []float64{30, 45, 60, 90, 120, 150, 180},
		Tws:   []float64{5, 10, 15, 20},
		Speed: [][]float64{
			{1.5, 2.5, 3.0, 3.2},
			{3.0, 4.5, 5.2, 5.5},
			{4.0, 5.8, 6.5, 6.8},
			{4.5, 6.5, 7.4, 7.8},
			{4.2, 6.2, 7.2, 7.8},
			{3.5, 5.5, 6.8, 7.5},
			{3.0, 5.0, 6.4, 7.2},
		},
	}
}

var start = latlon.LatLon{Lat: 37.80, Lon: -122.45}

func newTestSim(t *testing.T, headingDeg float64) *Simulator {
	t.Helper()
	s := New(config.Default(), nil, testPolar(), nil)
	s.AddBoat("b1", "Test Boat", start, headingDeg)
	return s
}

func TestBeamReachStep(t *testing.T) {
	// Wind 10 kts from true north, heading due east, no current.
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})

	s.Advance(1)
	b, err := s.Boat("b1")
	if err != nil {
		t.Fatal(err)
	}

	if b.TwaDeg != -90 {
		t.Errorf("TwaDeg = %f; want -90", b.TwaDeg)
	}
	want := testPolar().SpeedAt(90, 10)
	if math.Abs(b.BoatSpeedKts-want) > 1e-9 {
		t.Errorf("BoatSpeedKts = %f; want %f", b.BoatSpeedKts, want)
	}

	// Apparent wind is skewed forward of the beam and stronger than true.
	if math.Abs(b.AwaDeg) >= 90 {
		t.Errorf("AwaDeg = %f; want forward of the beam", b.AwaDeg)
	}
	if b.AwsKts <= 10 {
		t.Errorf("AwsKts = %f; want > true wind 10", b.AwsKts)
	}

	// No current: ground track equals the through-water track.
	if math.Abs(b.SogKts-b.BoatSpeedKts) > 1e-9 {
		t.Errorf("SogKts = %f; want boat speed %f", b.SogKts, b.BoatSpeedKts)
	}
	if math.Abs(b.CogDeg-90) > 1e-6 {
		t.Errorf("CogDeg = %f; want 90", b.CogDeg)
	}
	if b.Position.Lon <= start.Lon {
		t.Errorf("Lon = %f; want east of %f", b.Position.Lon, start.Lon)
	}
	if math.Abs(b.Position.Lat-start.Lat) > 1e-6 {
		t.Errorf("Lat = %f; want ~%f", b.Position.Lat, start.Lat)
	}
	if b.ElapsedSec != 1 {
		t.Errorf("ElapsedSec = %f; want 1", b.ElapsedSec)
	}
}

func TestInIrons(t *testing.T) {
	s := newTestSim(t, 10) // 10 deg off a northerly: inside the no-go zone
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})

	s.Advance(1)
	b, _ := s.Boat("b1")

	if !b.InIrons {
		t.Fatal("InIrons = false; want true at 10 deg twa")
	}
	if b.BoatSpeedKts != config.Default().InIronsSpeedKts {
		t.Errorf("BoatSpeedKts = %f; want crawl %f", b.BoatSpeedKts, config.Default().InIronsSpeedKts)
	}
}

func TestFallbackWindWithoutFields(t *testing.T) {
	s := newTestSim(t, 135) // beam reach on the default northwesterly

	s.Advance(1)
	b, _ := s.Boat("b1")

	cfg := config.Default()
	if b.TwsKts != cfg.FallbackWindSpeedKts {
		t.Errorf("TwsKts = %f; want fallback %f", b.TwsKts, cfg.FallbackWindSpeedKts)
	}
	if want := latlon.Twa(135, cfg.FallbackWindDirDeg); b.TwaDeg != want {
		t.Errorf("TwaDeg = %f; want %f", b.TwaDeg, want)
	}
}

func TestSpeedMultiplierAccumulator(t *testing.T) {
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})

	if err := s.SetSpeedIndex(0); err != nil {
		t.Fatal(err)
	}
	s.Advance(100)
	if b, _ := s.Boat("b1"); b.ElapsedSec != 0 {
		t.Errorf("ElapsedSec = %f while paused; want 0", b.ElapsedSec)
	}

	if err := s.SetSpeedIndex(1); err != nil { // 0.5x
		t.Fatal(err)
	}
	s.Advance(1)
	if b, _ := s.Boat("b1"); b.ElapsedSec != 0 {
		t.Errorf("ElapsedSec = %f after half a step; want 0", b.ElapsedSec)
	}
	s.Advance(1)
	if b, _ := s.Boat("b1"); b.ElapsedSec != 1 {
		t.Errorf("ElapsedSec = %f; want 1", b.ElapsedSec)
	}

	if err := s.SetSpeedIndex(len(SpeedMultipliers)); err == nil {
		t.Error("SetSpeedIndex out of range should fail")
	}
}

func TestTackMirrorsTwa(t *testing.T) {
	s := newTestSim(t, 315) // twa +45 on a northerly
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})

	s.Advance(1)
	b, _ := s.Boat("b1")
	if b.TwaDeg != 45 {
		t.Fatalf("TwaDeg = %f; want 45", b.TwaDeg)
	}

	if err := s.Tack("b1"); err != nil {
		t.Fatal(err)
	}
	s.Advance(1)
	b, _ = s.Boat("b1")
	if b.TwaDeg != -45 {
		t.Errorf("TwaDeg after tack = %f; want -45", b.TwaDeg)
	}
	if math.Abs(latlon.Wrap180(b.HeadingDeg-45)) > 1e-9 {
		t.Errorf("HeadingDeg after tack = %f; want 45", b.HeadingDeg)
	}
}

func TestMarkRounding(t *testing.T) {
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})
	s.DropMark(start.Destination(90, 150), "A", 0)

	var events []string
	s.notifier = eventRecorder{&events}

	if err := s.SetSpeedIndex(6); err != nil { // 15x
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		s.Advance(1)
	}

	b, _ := s.Boat("b1")
	if b.MarksRounded != 1 {
		t.Fatalf("MarksRounded = %d; want 1 (events %v)", b.MarksRounded, events)
	}
	if !b.Finished {
		t.Error("Finished = false after last mark")
	}
	if len(events) != 2 {
		t.Errorf("got %d events; want rounding + finish", len(events))
	}
}

type eventRecorder struct {
	events *[]string
}

func (r eventRecorder) Eventf(format string, args ...interface{}) {
	*r.events = append(*r.events, format)
}

func TestClearMarksRewindsProgress(t *testing.T) {
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})
	s.DropMark(start.Destination(90, 50), "A", 0)
	s.DropMark(start.Destination(90, 5000), "B", 0)

	s.SetSpeedIndex(5) // 10x
	for i := 0; i < 5; i++ {
		s.Advance(1)
	}
	if b, _ := s.Boat("b1"); b.MarksRounded != 1 {
		t.Fatalf("MarksRounded = %d; want 1", b.MarksRounded)
	}

	s.ClearMarks()
	b, _ := s.Boat("b1")
	if b.MarkIndex != 0 || b.MarksRounded != 0 || b.Finished {
		t.Errorf("after ClearMarks: index %d rounded %d finished %v", b.MarkIndex, b.MarksRounded, b.Finished)
	}
	if len(s.Marks()) != 0 {
		t.Errorf("Marks() = %v; want empty", s.Marks())
	}
}

func TestResetToStart(t *testing.T) {
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})

	s.SetSpeedIndex(5)
	s.Advance(3)

	s.ResetToStart()
	b, _ := s.Boat("b1")
	if b.Position != start || b.HeadingDeg != 90 {
		t.Errorf("position %v heading %f; want start", b.Position, b.HeadingDeg)
	}
	if b.ElapsedSec != 0 || b.DistanceNm != 0 {
		t.Errorf("stats not cleared: elapsed %f distance %f", b.ElapsedSec, b.DistanceNm)
	}
}

func TestUpwindBeatMakesProgress(t *testing.T) {
	// Mark 500 m dead upwind; the autonomous boat must beat toward it
	// without tacking faster than the commitment interval.
	s := newTestSim(t, 0)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 15})
	mark := start.Destination(0, 500)
	s.DropMark(mark, "Windward", 0)
	if err := s.SetAutonomous("b1", true); err != nil {
		t.Fatal(err)
	}

	var tackTimes []float64
	lastSign := 0.0
	for sec := 0; sec < 600; sec++ {
		s.Advance(1)
		b, _ := s.Boat("b1")
		if b.Finished {
			break
		}
		if sign := math.Copysign(1, b.TwaDeg); b.TwaDeg != 0 && sign != lastSign {
			if lastSign != 0 {
				tackTimes = append(tackTimes, b.ElapsedSec)
			}
			lastSign = sign
		}
	}

	b, _ := s.Boat("b1")
	final := b.Position.DistanceTo(mark)
	if !b.Finished && final >= 400 {
		t.Errorf("distance to mark %f after 600s; want clear progress from 500", final)
	}

	// Sign flips mid-turn; committed tacks cannot be closer than ~30s
	// minus the time the bow spends swinging through the wind.
	for i := 1; i < len(tackTimes); i++ {
		if gap := tackTimes[i] - tackTimes[i-1]; gap < 25 {
			t.Errorf("tacks %f apart; want no faster than the commitment interval", gap)
		}
	}
}

func TestOscillatingWind(t *testing.T) {
	w := OscillatingWind{BaseDirDeg: 0, SpeedKts: 12, DeltaDeg: 20, PeriodSec: 60}

	d0, s0 := w.Wind(0, start)
	if d0 != 0 || s0 != 12 {
		t.Errorf("Wind(0) = %f, %f; want base 0, 12", d0, s0)
	}
	d15, _ := w.Wind(15, start) // quarter period: full positive swing
	if math.Abs(latlon.Wrap180(d15-20)) > 1e-6 {
		t.Errorf("Wind(15) = %f; want 20", d15)
	}
	d45, _ := w.Wind(45, start)
	if math.Abs(latlon.Wrap180(d45-(-20))) > 1e-6 {
		t.Errorf("Wind(45) = %f; want 340", d45)
	}
}

func TestSteerSettlesOnCommandedHeading(t *testing.T) {
	// The commanded heading is a fraction of a degree off the current one;
	// the boat must settle exactly on it rather than holding the offset.
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})
	if _, err := s.CycleRouter("b1"); err != nil { // direct-bearing variant
		t.Fatal(err)
	}

	mark := start.Destination(90.4, 5000)
	s.DropMark(mark, "East", 0)
	if err := s.SetAutonomous("b1", true); err != nil {
		t.Fatal(err)
	}

	want := start.BearingTo(mark)
	s.Advance(1)
	b, _ := s.Boat("b1")
	if math.Abs(b.HeadingDeg-want) > 1e-9 {
		t.Errorf("HeadingDeg = %f; want settled on %f", b.HeadingDeg, want)
	}
}

func TestSteerBoundsTurnRate(t *testing.T) {
	s := newTestSim(t, 90)
	s.SetOverride(ConstantWind{DirDeg: 0, SpeedKts: 10})
	if _, err := s.CycleRouter("b1"); err != nil {
		t.Fatal(err)
	}

	// Mark well south of east: the bow swings at most the rate limit per
	// step on the way round.
	s.DropMark(start.Destination(150, 5000), "SouthEast", 0)
	if err := s.SetAutonomous("b1", true); err != nil {
		t.Fatal(err)
	}

	s.Advance(1)
	b, _ := s.Boat("b1")
	if math.Abs(b.HeadingDeg-100) > 1e-9 {
		t.Errorf("HeadingDeg after one step = %f; want 100", b.HeadingDeg)
	}
}

func TestCycleRouter(t *testing.T) {
	s := newTestSim(t, 0)
	b, _ := s.Boat("b1")
	first := b.RouterName

	name, err := s.CycleRouter("b1")
	if err != nil {
		t.Fatal(err)
	}
	if name == first {
		t.Errorf("CycleRouter returned %s; want a different variant", name)
	}

	// Cycling all the way around returns to the first variant.
	name, _ = s.CycleRouter("b1")
	if name != first {
		t.Errorf("full cycle ended on %s; want %s", name, first)
	}
}

func TestUnknownBoat(t *testing.T) {
	s := newTestSim(t, 0)
	if err := s.Tack("nope"); err == nil {
		t.Error("Tack(unknown) should fail")
	}
	if _, err := s.Boat("nope"); err == nil {
		t.Error("Boat(unknown) should fail")
	}
}
