package latlon

import (
	"math"
	"testing"
)

func TestBearingTo(t *testing.T) {
	p1 := LatLon{Lat: 0, Lon: 0}
	p2 := LatLon{Lat: 1, Lon: 0}
	b := p1.BearingTo(p2)
	if math.Round(b) != 0.0 {
		t.Errorf("{%f,%f}.BearingTo({%f,%f}) = %f; want 0", p1.Lat, p1.Lon, p2.Lat, p2.Lon, b)
	}

	p2 = LatLon{Lat: 0, Lon: 1}
	b = p1.BearingTo(p2)
	if math.Round(b) != 90.0 {
		t.Errorf("{%f,%f}.BearingTo({%f,%f}) = %f; want 90", p1.Lat, p1.Lon, p2.Lat, p2.Lon, b)
	}

	p2 = LatLon{Lat: -1, Lon: 0}
	b = p1.BearingTo(p2)
	if math.Round(b) != 180.0 {
		t.Errorf("{%f,%f}.BearingTo({%f,%f}) = %f; want 180", p1.Lat, p1.Lon, p2.Lat, p2.Lon, b)
	}

	p2 = LatLon{Lat: 0, Lon: -1}
	b = p1.BearingTo(p2)
	if math.Round(b) != 270.0 {
		t.Errorf("{%f,%f}.BearingTo({%f,%f}) = %f; want 270", p1.Lat, p1.Lon, p2.Lat, p2.Lon, b)
	}
}

func TestDistanceTo(t *testing.T) {
	p1 := LatLon{Lat: 37.8199, Lon: -122.4783}
	p2 := LatLon{Lat: 37.8199, Lon: -122.4783}
	if d := p1.DistanceTo(p2); d != 0 {
		t.Errorf("DistanceTo(same point) = %f; want 0", d)
	}

	// One degree of latitude is ~111.2 km.
	p2 = LatLon{Lat: 38.8199, Lon: -122.4783}
	d := p1.DistanceTo(p2)
	if math.Abs(d-111195) > 100 {
		t.Errorf("DistanceTo(1 deg lat) = %f; want ~111195", d)
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	from := LatLon{Lat: 37.82, Lon: -122.41}
	for _, bearing := range []float64{0, 45, 90, 135, 180, 225, 270, 315} {
		to := from.Destination(bearing, 5000)
		d, b := from.DistanceAndBearingTo(to)
		if math.Abs(d-5000) > 1 {
			t.Errorf("Destination(%f, 5000) round trip distance = %f; want 5000", bearing, d)
		}
		if math.Abs(Wrap180(b-bearing)) > 0.1 {
			t.Errorf("Destination(%f, 5000) round trip bearing = %f; want %f", bearing, b, bearing)
		}
	}
}

func TestTwa(t *testing.T) {
	if twa := Twa(90, 0); twa != -90 {
		t.Errorf("Twa(90, 0) = %f; want -90", twa)
	}
	if twa := Twa(0, 90); twa != 90 {
		t.Errorf("Twa(0, 90) = %f; want 90", twa)
	}
	if twa := Twa(350, 10); twa != 20 {
		t.Errorf("Twa(350, 10) = %f; want 20", twa)
	}
	if twa := Twa(10, 350); twa != -20 {
		t.Errorf("Twa(10, 350) = %f; want -20", twa)
	}
}

func TestHeading(t *testing.T) {
	if h := Heading(-90, 0); h != 90 {
		t.Errorf("Heading(-90, 0) = %f; want 90", h)
	}
	if h := Heading(45, 315); h != 270 {
		t.Errorf("Heading(45, 315) = %f; want 270", h)
	}
}

func TestWrap(t *testing.T) {
	if w := Wrap360(-10); w != 350 {
		t.Errorf("Wrap360(-10) = %f; want 350", w)
	}
	if w := Wrap360(725); w != 5 {
		t.Errorf("Wrap360(725) = %f; want 5", w)
	}
	if w := Wrap180(270); w != -90 {
		t.Errorf("Wrap180(270) = %f; want -90", w)
	}
	if w := Wrap180(-270); w != 90 {
		t.Errorf("Wrap180(-270) = %f; want 90", w)
	}
}
