package polar

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	log "github.com/sirupsen/logrus"
)

// Polar maps (true wind angle, true wind speed) to boat speed through water.
// Speed[i][j] is the boat speed in knots at Twa[i] degrees and Tws[j] knots.
// Loaded once at startup and read-only during simulation.
type Polar struct {
	Label string      `json:"label"`
	Twa   []float64   `json:"twa"`
	Tws   []float64   `json:"tws"`
	Speed [][]float64 `json:"speed"`
}

func Load(file string) (*Polar, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read polar '%s': %w", file, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("polar '%s': %w", file, err)
	}

	log.Infof("Loaded polar '%s' (%d twa x %d tws)", p.Label, len(p.Twa), len(p.Tws))
	return p, nil
}

// Parse decodes and validates a polar table. Structural problems are fatal
// here so they can never surface mid-simulation.
func Parse(data []byte) (*Polar, error) {
	var p Polar
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}

	if len(p.Twa) < 2 {
		return nil, fmt.Errorf("need at least 2 twa rows, got %d", len(p.Twa))
	}
	if len(p.Tws) < 2 {
		return nil, fmt.Errorf("need at least 2 tws columns, got %d", len(p.Tws))
	}
	for i, a := range p.Twa {
		if a < 0 || a > 180 {
			return nil, fmt.Errorf("twa[%d] = %f out of [0,180]", i, a)
		}
		if i > 0 && p.Twa[i-1] >= a {
			return nil, fmt.Errorf("twa not strictly increasing at index %d", i)
		}
	}
	for j, s := range p.Tws {
		if s < 0 {
			return nil, fmt.Errorf("tws[%d] = %f negative", j, s)
		}
		if j > 0 && p.Tws[j-1] >= s {
			return nil, fmt.Errorf("tws not strictly increasing at index %d", j)
		}
	}
	if len(p.Speed) != len(p.Twa) {
		return nil, fmt.Errorf("speed has %d rows, want %d", len(p.Speed), len(p.Twa))
	}
	for i, row := range p.Speed {
		if len(row) != len(p.Tws) {
			return nil, fmt.Errorf("speed row %d has %d columns, want %d", i, len(row), len(p.Tws))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return nil, fmt.Errorf("speed[%d][%d] = %f invalid", i, j, v)
			}
		}
	}

	return &p, nil
}

// interpolationIndex finds the bracketing sample indexes and the weight of
// the lower one; out-of-range values clamp to the nearest sample.
func interpolationIndex(values []float64, value float64) (int, int, float64) {
	i := 0
	for values[i] < value {
		i++
		if i == len(values) {
			return i - 1, i - 1, 1
		}
	}

	if i > 0 {
		return i - 1, i, (values[i] - value) / (values[i] - values[i-1])
	}

	return 0, 0, 1
}

// normalizeTwa folds a true wind angle onto [0, 180], symmetric about the
// centerline.
func normalizeTwa(twa float64) float64 {
	t := math.Abs(math.Mod(twa, 360))
	if t > 180 {
		t = 360 - t
	}
	return t
}

// SpeedAt returns the boat speed through water in knots at the given true
// wind angle (degrees) and true wind speed (knots), bilinearly interpolated.
func (p *Polar) SpeedAt(twa float64, tws float64) float64 {
	t := normalizeTwa(twa)

	a0, a1, af := interpolationIndex(p.Twa, t)
	w0, w1, wf := interpolationIndex(p.Tws, tws)

	r0 := p.Speed[a0]
	r1 := p.Speed[a1]
	bs := (r0[w0]*wf+r0[w1]*(1-wf))*af + (r1[w0]*wf+r1[w1]*(1-wf))*(1-af)

	return bs
}

// BestVmgAngle returns the true wind angle maximizing velocity made good at
// the given wind speed: speed*cos(twa) upwind, speed*cos(180-twa) downwind.
// The best table sample is refined by scanning between its neighbors.
func (p *Polar) BestVmgAngle(tws float64, downwind bool) float64 {
	vmg := func(twa float64) float64 {
		v := p.SpeedAt(twa, tws) * math.Cos(twa*math.Pi/180)
		if downwind {
			return -v
		}
		return v
	}

	best := 0
	bestVmg := math.Inf(-1)
	for i, a := range p.Twa {
		if v := vmg(a); v > bestVmg {
			bestVmg = v
			best = i
		}
	}

	lo := p.Twa[best]
	hi := p.Twa[best]
	if best > 0 {
		lo = p.Twa[best-1]
	}
	if best < len(p.Twa)-1 {
		hi = p.Twa[best+1]
	}

	bestAngle := p.Twa[best]
	for a := lo; a <= hi; a += 0.25 {
		if v := vmg(a); v > bestVmg {
			bestVmg = v
			bestAngle = a
		}
	}

	return bestAngle
}

// MaxSpeed returns the largest boat speed in the table.
func (p *Polar) MaxSpeed() float64 {
	max := 0.0
	for _, row := range p.Speed {
		for _, v := range row {
			if v > max {
				max = v
			}
		}
	}
	return max
}
