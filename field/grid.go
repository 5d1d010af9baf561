package field

import (
	"fmt"
	"math"

	"github.com/adambom/sfbaysim/latlon"
)

// GridField is a regular, axis-aligned lat/lon grid with one vector layer.
// U[i][j] and V[i][j] hold the components at Lat0+i*DLat, Lon0+j*DLon.
type GridField struct {
	Lat0 float64
	Lon0 float64
	DLat float64
	DLon float64
	NLat int
	NLon int
	U    [][]float64
	V    [][]float64
}

func NewGridField(lat0, lon0, dLat, dLon float64, u, v [][]float64) (*GridField, error) {
	if dLat <= 0 || dLon <= 0 {
		return nil, fmt.Errorf("grid spacing must be positive, got dLat=%f dLon=%f", dLat, dLon)
	}
	if len(u) < 2 || len(u) != len(v) {
		return nil, fmt.Errorf("grid needs matching u/v layers with at least 2 rows, got %d/%d", len(u), len(v))
	}
	nLon := len(u[0])
	if nLon < 2 {
		return nil, fmt.Errorf("grid needs at least 2 columns, got %d", nLon)
	}
	for i := range u {
		if len(u[i]) != nLon || len(v[i]) != nLon {
			return nil, fmt.Errorf("grid row %d is ragged", i)
		}
	}

	return &GridField{
		Lat0: lat0,
		Lon0: lon0,
		DLat: dLat,
		DLon: dLon,
		NLat: len(u),
		NLon: nLon,
		U:    u,
		V:    v,
	}, nil
}

func bilinearInterpolate(x, y float64, g00, g10, g01, g11 Vector) Vector {
	rx := 1 - x
	ry := 1 - y

	a := rx * ry
	b := x * ry
	c := rx * y
	d := x * y

	return Vector{
		U: g00.U*a + g10.U*b + g01.U*c + g11.U*d,
		V: g00.V*a + g10.V*b + g01.V*c + g11.V*d,
	}
}

// Sample locates the enclosing cell by integer division and blends the four
// corner vectors. Points outside the grid clamp to the nearest edge. O(1),
// always ok. The hint is unused: locality buys nothing on a regular grid.
func (g *GridField) Sample(p latlon.LatLon, _ *Hint) (Vector, bool) {
	i := (p.Lat - g.Lat0) / g.DLat
	j := (p.Lon - g.Lon0) / g.DLon

	fi := int(math.Floor(i))
	fj := int(math.Floor(j))

	if fi < 0 {
		fi = 0
	}
	if fi > g.NLat-2 {
		fi = g.NLat - 2
	}
	if fj < 0 {
		fj = 0
	}
	if fj > g.NLon-2 {
		fj = g.NLon - 2
	}

	x := j - float64(fj)
	y := i - float64(fi)
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	if y < 0 {
		y = 0
	}
	if y > 1 {
		y = 1
	}

	v := bilinearInterpolate(x, y,
		Vector{U: g.U[fi][fj], V: g.V[fi][fj]},
		Vector{U: g.U[fi][fj+1], V: g.V[fi][fj+1]},
		Vector{U: g.U[fi+1][fj], V: g.V[fi+1][fj]},
		Vector{U: g.U[fi+1][fj+1], V: g.V[fi+1][fj+1]})

	return v, true
}
