package field

import (
	"math"
	"testing"

	"github.com/adambom/sfbaysim/latlon"
)

// testMesh builds a unit square split into two triangles, with a third
// triangle attached to the east edge.
//
//	3---2---4
//	| \ |  /
//	0---1
func testMesh(t *testing.T) *MeshField {
	t.Helper()

	vertices := []Vertex{
		{Lat: 0, Lon: 0, U: 1, V: 10},
		{Lat: 0, Lon: 1, U: 2, V: 20},
		{Lat: 1, Lon: 1, U: 3, V: 30},
		{Lat: 1, Lon: 0, U: 4, V: 40},
		{Lat: 1, Lon: 2, U: 5, V: 50},
	}
	triangles := [][3]int32{
		{0, 1, 3},
		{1, 2, 3},
		{1, 4, 2},
	}

	m, err := NewMeshField(vertices, triangles)
	if err != nil {
		t.Fatalf("NewMeshField() = %v", err)
	}
	return m
}

func TestMeshSampleExactAtVertices(t *testing.T) {
	m := testMesh(t)

	for i, vtx := range m.Vertices {
		vec, ok := m.Sample(latlon.LatLon{Lat: vtx.Lat, Lon: vtx.Lon}, nil)
		if !ok {
			t.Fatalf("Sample(vertex %d) not ok", i)
		}
		if math.Abs(vec.U-vtx.U) > 1e-9 || math.Abs(vec.V-vtx.V) > 1e-9 {
			t.Errorf("Sample(vertex %d) = {%f, %f}; want {%f, %f}", i, vec.U, vec.V, vtx.U, vtx.V)
		}
	}
}

func TestMeshSampleConvexCombination(t *testing.T) {
	m := testMesh(t)

	points := []latlon.LatLon{
		{Lat: 0.25, Lon: 0.5},
		{Lat: 0.75, Lon: 0.8},
		{Lat: 0.9, Lon: 1.05},
	}
	for _, p := range points {
		tri := m.fullScan(p)
		if tri < 0 {
			t.Fatalf("fullScan(%v) found no triangle", p)
		}
		w0, w1, w2, inside := m.barycentric(tri, p)
		if !inside {
			t.Errorf("barycentric(%d, %v) not inside", tri, p)
		}
		if w0 < -barycentricEps || w1 < -barycentricEps || w2 < -barycentricEps {
			t.Errorf("weights for %v = (%f, %f, %f); want all non-negative", p, w0, w1, w2)
		}
		if math.Abs(w0+w1+w2-1) > 1e-9 {
			t.Errorf("weights for %v sum to %f; want 1", p, w0+w1+w2)
		}
	}
}

func TestMeshSampleOutsideHull(t *testing.T) {
	m := testMesh(t)

	outside := []latlon.LatLon{
		{Lat: -0.5, Lon: 0.5},
		{Lat: 5, Lon: 5},
		{Lat: 0.5, Lon: -1},
	}
	for _, p := range outside {
		if _, ok := m.Sample(p, nil); ok {
			t.Errorf("Sample(%v) = ok; want no data outside hull", p)
		}
		// Second query, same answer.
		if _, ok := m.Sample(p, nil); ok {
			t.Errorf("repeated Sample(%v) = ok; want no data", p)
		}
	}
}

func TestMeshSampleBoundaryCell(t *testing.T) {
	// A quantization cell straddling the hull boundary holds both inside
	// and outside points; an outside sample must not poison the cell for
	// the inside ones.
	m, err := NewMeshField([]Vertex{
		{Lat: 0, Lon: 0, U: 1, V: 2},
		{Lat: 0, Lon: 1, U: 1, V: 2},
		{Lat: 1, Lon: 0, U: 1, V: 2},
	}, [][3]int32{{0, 1, 2}})
	if err != nil {
		t.Fatal(err)
	}

	outside := latlon.LatLon{Lat: 0.504, Lon: 0.499}
	inside := latlon.LatLon{Lat: 0.5005, Lon: 0.4955}
	if cellKey(outside) != cellKey(inside) {
		t.Fatal("test points must share a quantization cell")
	}

	if _, ok := m.Sample(outside, nil); ok {
		t.Fatalf("Sample(%v) = ok; want no data outside hull", outside)
	}

	v, ok := m.Sample(inside, nil)
	if !ok {
		t.Fatalf("Sample(%v) = no data; want inside-hull value", inside)
	}
	if v.U != 1 || v.V != 2 {
		t.Errorf("Sample(%v) = {%f, %f}; want {1, 2}", inside, v.U, v.V)
	}

	// A boat with a fresh hint gets the same answer.
	var h Hint
	if _, ok := m.Sample(inside, &h); !ok {
		t.Errorf("Sample(%v, hint) = no data; want inside-hull value", inside)
	}
}

func TestMeshSampleHintLocality(t *testing.T) {
	m := testMesh(t)

	var h Hint
	p := latlon.LatLon{Lat: 0.2, Lon: 0.3}
	first, ok := m.Sample(p, &h)
	if !ok {
		t.Fatal("Sample(first) not ok")
	}
	if !h.valid {
		t.Fatal("hint not populated after successful sample")
	}

	// A nearby point must resolve via the walk from the hinted triangle and
	// agree with a hint-less sample.
	q := latlon.LatLon{Lat: 0.82, Lon: 0.95}
	hinted, ok := m.Sample(q, &h)
	if !ok {
		t.Fatal("Sample(hinted) not ok")
	}
	plain, _ := m.Sample(q, nil)
	if math.Abs(hinted.U-plain.U) > 1e-9 || math.Abs(hinted.V-plain.V) > 1e-9 {
		t.Errorf("hinted sample {%f, %f} != plain sample {%f, %f}", hinted.U, hinted.V, plain.U, plain.V)
	}
	_ = first

	// Teleporting outside resets the hint.
	if _, ok := m.Sample(latlon.LatLon{Lat: 50, Lon: 50}, &h); ok {
		t.Error("Sample(far outside) = ok; want no data")
	}
	if h.valid {
		t.Error("hint still valid after outside-hull sample")
	}
}

func TestMeshDegenerateTriangleSkipped(t *testing.T) {
	vertices := []Vertex{
		{Lat: 0, Lon: 0, U: 1, V: 1},
		{Lat: 0, Lon: 1, U: 2, V: 2},
		{Lat: 1, Lon: 0, U: 3, V: 3},
		{Lat: 0, Lon: 0.5, U: 4, V: 4},
	}
	// Second triangle is collinear: zero area.
	triangles := [][3]int32{
		{0, 1, 2},
		{0, 3, 1},
	}

	m, err := NewMeshField(vertices, triangles)
	if err != nil {
		t.Fatalf("NewMeshField() = %v", err)
	}
	if !m.degenerate[1] {
		t.Error("collinear triangle not marked degenerate")
	}

	// Queries still resolve through the healthy triangle.
	if _, ok := m.Sample(latlon.LatLon{Lat: 0.25, Lon: 0.25}, nil); !ok {
		t.Error("Sample inside healthy triangle failed")
	}
}

func TestNewMeshFieldRejectsBadTopology(t *testing.T) {
	vertices := []Vertex{
		{Lat: 0, Lon: 0},
		{Lat: 0, Lon: 1},
		{Lat: 1, Lon: 0},
	}

	if _, err := NewMeshField(vertices, [][3]int32{{0, 1, 5}}); err == nil {
		t.Error("out-of-range vertex index should fail")
	}
	if _, err := NewMeshField(vertices, [][3]int32{{0, 1, 1}}); err == nil {
		t.Error("repeated vertex should fail")
	}
	if _, err := NewMeshField(vertices, nil); err == nil {
		t.Error("empty triangle list should fail")
	}
	if _, err := NewMeshField(nil, [][3]int32{{0, 1, 2}}); err == nil {
		t.Error("empty vertex list should fail")
	}
}
