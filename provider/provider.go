// Package provider decodes pre-fetched forecast files into field snapshots.
// The network fetch itself lives outside this module; workers here only read
// and decode, which is why a missing file is an ordinary fetch failure the
// loader retries and eventually writes off.
package provider

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/nilsmagnus/grib/griblib"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/adambom/sfbaysim/field"
	"github.com/adambom/sfbaysim/store"
)

// Files serves forecast hours from a directory layout of
//
//	<dir>/wind/f006.grib2      10 m wind, regular grid
//	<dir>/current/f006.msgpack surface current, triangular mesh
//
// keyed by the hour offset from the scenario base time.
type Files struct {
	dir string
}

func NewFiles(dir string) *Files {
	return &Files{dir: dir}
}

func hourName(hour int) string {
	if hour < 0 {
		return fmt.Sprintf("m%03d", -hour)
	}
	return fmt.Sprintf("f%03d", hour)
}

func (f *Files) FetchHour(ctx context.Context, source store.Source, hour int) (field.Field, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch source {
	case store.Wind:
		return f.loadGrib(filepath.Join(f.dir, "wind", hourName(hour)+".grib2"))
	case store.Current:
		return f.loadMesh(filepath.Join(f.dir, "current", hourName(hour)+".msgpack"))
	default:
		return nil, fmt.Errorf("unknown source '%s'", source)
	}
}

// loadGrib decodes 10 m wind components from a GRIB2 message set.
func (f *Files) loadGrib(file string) (field.Field, error) {
	gribfile, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer gribfile.Close()

	messages, err := griblib.ReadMessages(gribfile)
	if err != nil {
		return nil, fmt.Errorf("read grib '%s': %w", file, err)
	}

	var lat0, lon0, dLat, dLon float64
	var nLat, nLon uint32
	var uData, vData []float64

	for _, message := range messages {
		if message.Section0.Discipline != 0 ||
			message.Section4.ProductDefinitionTemplate.ParameterCategory != 2 ||
			message.Section4.ProductDefinitionTemplate.FirstSurface.Type != 103 ||
			message.Section4.ProductDefinitionTemplate.FirstSurface.Value != 10 {
			continue
		}
		grid0, ok := message.Section3.Definition.(*griblib.Grid0)
		if !ok {
			continue
		}
		lat0 = float64(grid0.La1) / 1e6
		lon0 = float64(grid0.Lo1) / 1e6
		dLat = float64(grid0.Di) / 1e6
		dLon = float64(grid0.Dj) / 1e6
		nLat = grid0.Nj
		nLon = grid0.Ni
		if message.Section4.ProductDefinitionTemplate.ParameterNumber == 2 {
			uData = message.Section7.Data
		} else if message.Section4.ProductDefinitionTemplate.ParameterNumber == 3 {
			vData = message.Section7.Data
		}
	}

	if uData == nil || vData == nil {
		return nil, fmt.Errorf("grib '%s' is missing 10m wind components", file)
	}
	if int(nLat*nLon) > len(uData) || int(nLat*nLon) > len(vData) {
		return nil, fmt.Errorf("grib '%s' data shorter than %dx%d grid", file, nLat, nLon)
	}
	if lon0 > 180 {
		lon0 -= 360
	}

	u := buildGrid(uData, nLat, nLon)
	v := buildGrid(vData, nLat, nLon)

	log.Debugf("Decoded grib '%s' (%dx%d)", file, nLat, nLon)
	return field.NewGridField(lat0, lon0, dLat, dLon, u, v)
}

func buildGrid(data []float64, nLat, nLon uint32) [][]float64 {
	grid := make([][]float64, nLat)
	p := 0
	for j := uint32(0); j < nLat; j++ {
		grid[j] = make([]float64, nLon)
		for i := uint32(0); i < nLon; i++ {
			grid[j][i] = data[p]
			p++
		}
	}
	return grid
}

// meshSnapshot is the on-disk form of one mesh hour: vertex positions, the
// surface-layer components there, and the triangle index list.
type meshSnapshot struct {
	Lat       []float64  `msgpack:"lat"`
	Lon       []float64  `msgpack:"lon"`
	U         []float64  `msgpack:"u"`
	V         []float64  `msgpack:"v"`
	Triangles [][3]int32 `msgpack:"triangles"`
}

func (f *Files) loadMesh(file string) (field.Field, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var snap meshSnapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode mesh '%s': %w", file, err)
	}

	n := len(snap.Lat)
	if len(snap.Lon) != n || len(snap.U) != n || len(snap.V) != n {
		return nil, fmt.Errorf("mesh '%s' has mismatched vertex arrays", file)
	}

	vertices := make([]field.Vertex, n)
	for i := 0; i < n; i++ {
		lon := snap.Lon[i]
		// The source model uses the 0-360 longitude convention.
		if lon > 180 {
			lon -= 360
		}
		if math.IsNaN(snap.U[i]) || math.IsNaN(snap.V[i]) {
			// Dry cells carry NaN; treat them as still water.
			snap.U[i], snap.V[i] = 0, 0
		}
		vertices[i] = field.Vertex{Lat: snap.Lat[i], Lon: lon, U: snap.U[i], V: snap.V[i]}
	}

	log.Debugf("Decoded mesh '%s' (%d vertices, %d triangles)", file, n, len(snap.Triangles))
	return field.NewMeshField(vertices, snap.Triangles)
}
