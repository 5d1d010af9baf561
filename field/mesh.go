package field

import (
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"

	"github.com/adambom/sfbaysim/latlon"
)

const (
	// Degenerate triangle threshold, deg^2. Roughly a sliver below cm scale.
	minTriangleArea = 1e-14

	maxWalkSteps = 1024

	// Quantization for the shared locality cache, ~500 m cells.
	cellSizeDeg = 0.005

	locationCacheSize = 1024

	barycentricEps = 1e-12
)

// Vertex is one mesh node: position plus the east/north components there.
type Vertex struct {
	Lat float64
	Lon float64
	U   float64
	V   float64
}

// MeshField is an unstructured triangular mesh with vector values at the
// vertices. Point queries locate the enclosing triangle and blend the three
// vertex vectors barycentrically; points outside the hull report no data.
//
// Naive point location is O(triangles) and the real meshes run to 1e5
// elements, so sampling leans on locality: a per-consumer Hint remembering
// the last triangle, a walk through edge neighbors from that seed, and a
// shared LRU of quantized cells for hint-less consumers. Full scan is the
// last resort.
type MeshField struct {
	Vertices  []Vertex
	Triangles [][3]int32

	// adjacency[t][k] is the triangle across the edge opposite vertex k,
	// or -1 on the hull boundary.
	adjacency [][3]int32

	degenerate []bool

	cells *lru.Cache[uint64, int32]
}

func NewMeshField(vertices []Vertex, triangles [][3]int32) (*MeshField, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("mesh needs at least 3 vertices, got %d", len(vertices))
	}
	if len(triangles) < 1 {
		return nil, fmt.Errorf("mesh has no triangles")
	}
	for i, vtx := range vertices {
		if math.IsNaN(vtx.Lat) || math.IsNaN(vtx.Lon) || math.IsInf(vtx.Lat, 0) || math.IsInf(vtx.Lon, 0) {
			return nil, fmt.Errorf("vertex %d has non-finite position", i)
		}
	}

	m := &MeshField{
		Vertices:   vertices,
		Triangles:  triangles,
		adjacency:  make([][3]int32, len(triangles)),
		degenerate: make([]bool, len(triangles)),
	}

	degenerateCount := 0
	for t, tri := range triangles {
		for _, idx := range tri {
			if idx < 0 || int(idx) >= len(vertices) {
				return nil, fmt.Errorf("triangle %d references vertex %d, mesh has %d vertices", t, idx, len(vertices))
			}
		}
		if tri[0] == tri[1] || tri[1] == tri[2] || tri[0] == tri[2] {
			return nil, fmt.Errorf("triangle %d repeats a vertex", t)
		}
		if math.Abs(m.signedArea(int32(t))) < minTriangleArea {
			m.degenerate[t] = true
			degenerateCount++
		}
	}
	if degenerateCount > 0 {
		log.Warnf("Mesh has %d degenerate triangles of %d; they are skipped during point location", degenerateCount, len(triangles))
	}

	m.buildAdjacency()

	cells, err := lru.New[uint64, int32](locationCacheSize)
	if err != nil {
		return nil, err
	}
	m.cells = cells

	return m, nil
}

func (m *MeshField) signedArea(t int32) float64 {
	tri := m.Triangles[t]
	a := m.Vertices[tri[0]]
	b := m.Vertices[tri[1]]
	c := m.Vertices[tri[2]]
	return (b.Lon-a.Lon)*(c.Lat-a.Lat) - (c.Lon-a.Lon)*(b.Lat-a.Lat)
}

func edgeKey(a, b int32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(uint32(a))<<32 | uint64(uint32(b))
}

func (m *MeshField) buildAdjacency() {
	edges := make(map[uint64][2]int32, len(m.Triangles)*3/2)

	for t := range m.Triangles {
		for k := 0; k < 3; k++ {
			m.adjacency[t][k] = -1
		}
	}

	for t, tri := range m.Triangles {
		for k := 0; k < 3; k++ {
			key := edgeKey(tri[(k+1)%3], tri[(k+2)%3])
			if pair, found := edges[key]; found {
				edges[key] = [2]int32{pair[0], int32(t)}
			} else {
				edges[key] = [2]int32{int32(t), -1}
			}
		}
	}

	for t, tri := range m.Triangles {
		for k := 0; k < 3; k++ {
			key := edgeKey(tri[(k+1)%3], tri[(k+2)%3])
			pair := edges[key]
			if pair[0] == int32(t) {
				m.adjacency[t][k] = pair[1]
			} else {
				m.adjacency[t][k] = pair[0]
			}
		}
	}
}

// barycentric returns the weights of p in triangle t. Inside iff all three
// weights are non-negative (within epsilon); the weights always sum to 1.
func (m *MeshField) barycentric(t int32, p latlon.LatLon) (w0, w1, w2 float64, inside bool) {
	tri := m.Triangles[t]
	a := m.Vertices[tri[0]]
	b := m.Vertices[tri[1]]
	c := m.Vertices[tri[2]]

	den := (b.Lon-a.Lon)*(c.Lat-a.Lat) - (c.Lon-a.Lon)*(b.Lat-a.Lat)
	if math.Abs(den) < minTriangleArea {
		return 0, 0, 0, false
	}

	dx := p.Lon - a.Lon
	dy := p.Lat - a.Lat

	w1 = (dx*(c.Lat-a.Lat) - (c.Lon-a.Lon)*dy) / den
	w2 = ((b.Lon-a.Lon)*dy - dx*(b.Lat-a.Lat)) / den
	w0 = 1 - w1 - w2

	inside = w0 >= -barycentricEps && w1 >= -barycentricEps && w2 >= -barycentricEps
	return
}

// walk steps from a seed triangle toward p, crossing at each step the edge
// whose barycentric weight is most negative. Returns the containing triangle
// or -1 when the walk leaves the hull or gives up.
func (m *MeshField) walk(seed int32, p latlon.LatLon) int32 {
	t := seed
	for step := 0; step < maxWalkSteps; step++ {
		if m.degenerate[t] {
			return -1
		}
		w0, w1, w2, inside := m.barycentric(t, p)
		if inside {
			return t
		}

		k := 0
		min := w0
		if w1 < min {
			k, min = 1, w1
		}
		if w2 < min {
			k = 2
		}

		next := m.adjacency[t][k]
		if next < 0 {
			return -1
		}
		t = next
	}
	return -1
}

func (m *MeshField) fullScan(p latlon.LatLon) int32 {
	for t := range m.Triangles {
		if m.degenerate[t] {
			continue
		}
		if _, _, _, inside := m.barycentric(int32(t), p); inside {
			return int32(t)
		}
	}
	return -1
}

func cellKey(p latlon.LatLon) uint64 {
	ci := int32(math.Floor(p.Lat / cellSizeDeg))
	cj := int32(math.Floor(p.Lon / cellSizeDeg))
	return uint64(uint32(ci))<<32 | uint64(uint32(cj))
}

// Sample locates the triangle containing p and blends the vertex vectors.
// Outside the hull it reports ok=false and the caller applies its fallback.
func (m *MeshField) Sample(p latlon.LatLon, h *Hint) (Vector, bool) {
	t := int32(-1)

	if h != nil && h.valid {
		// Hints can come from an older snapshot of the same source; only
		// the range needs to hold, the walk self-corrects from any seed.
		if int(h.tri) < len(m.Triangles) {
			t = m.walk(h.tri, p)
		} else {
			h.Reset()
		}
	}
	if t < 0 {
		// The cell cache only ever holds positive seeds: a cell straddling
		// the hull boundary contains both inside and outside points, so a
		// "known outside" entry would deny data to the inside ones.
		if seed, found := m.cells.Get(cellKey(p)); found {
			t = m.walk(seed, p)
		}
	}
	if t < 0 {
		t = m.fullScan(p)
	}

	if t < 0 {
		if h != nil {
			h.Reset()
		}
		return Vector{}, false
	}

	m.cells.Add(cellKey(p), t)
	if h != nil {
		h.tri = t
		h.valid = true
	}

	w0, w1, w2, _ := m.barycentric(t, p)
	tri := m.Triangles[t]
	a := m.Vertices[tri[0]]
	b := m.Vertices[tri[1]]
	c := m.Vertices[tri[2]]

	return Vector{
		U: a.U*w0 + b.U*w1 + c.U*w2,
		V: a.V*w0 + b.V*w1 + c.V*w2,
	}, true
}
