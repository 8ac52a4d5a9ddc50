package analyzer

import "math"

// Pixel thresholds on the 0..255 scale.
const (
	darkValue      = 25
	brightValue    = 230
	highlightValue = 245
	usableValue    = 90
	whiteValue     = 200
	whiteMaxSat    = 80.0 / 255.0
	edgeMagnitude  = 60.0

	// lapVarScale maps Laplacian variance onto [0,1) as v/(v+scale).
	lapVarScale = 300.0
	// vascularSaturation is the ring edge density treated as fully vascular.
	vascularSaturation = 0.30
	minRingPixels      = 50
)

// planes holds per-pixel channels of a region in row-major order.
type planes struct {
	width, height int
	r, g, b       []uint8
	gray          []uint8
	sat, val      []float64
}

func (p *planes) idx(x, y int) int {
	return y*p.width + x
}

type zone uint8

const (
	zoneOther zone = iota
	zoneLens
	zoneRing
)

// ocularGeometry places the lens disc and sclera ring inside a region.
type ocularGeometry struct {
	cx, cy   float64
	irisR    float64
	lensR2   float64
	ringIn2  float64
	ringOut2 float64
}

func newOcularGeometry(width, height int) ocularGeometry {
	short := math.Min(float64(width), float64(height))
	r := 0.35 * short
	lens := 0.6 * r
	ringIn := 1.10 * r
	ringOut := math.Min(1.60*r, 0.48*short)
	return ocularGeometry{
		cx:       float64(width) / 2,
		cy:       float64(height) / 2,
		irisR:    r,
		lensR2:   lens * lens,
		ringIn2:  ringIn * ringIn,
		ringOut2: ringOut * ringOut,
	}
}

func (g ocularGeometry) zone(x, y int) zone {
	dx := float64(x) + 0.5 - g.cx
	dy := float64(y) + 0.5 - g.cy
	d2 := dx*dx + dy*dy
	switch {
	case d2 <= g.lensR2:
		return zoneLens
	case d2 >= g.ringIn2 && d2 <= g.ringOut2:
		return zoneRing
	default:
		return zoneOther
	}
}

// regionStats accumulates pixel counts and sums for one region.
type regionStats struct {
	pixels    int
	sumValue  float64
	sumSat    float64
	dark      int
	bright    int
	highlight int

	regionRedSum float64
	regionRedN   int

	ringTotal  int
	ringEdges  int
	ringRedSum float64
	ringRedN   int

	lensN     int
	lensSumV  float64
	lensWhite int
	lensEdges int
	lensGray  []float64
}

func (s *regionStats) merge(o regionStats) {
	s.pixels += o.pixels
	s.sumValue += o.sumValue
	s.sumSat += o.sumSat
	s.dark += o.dark
	s.bright += o.bright
	s.highlight += o.highlight
	s.regionRedSum += o.regionRedSum
	s.regionRedN += o.regionRedN
	s.ringTotal += o.ringTotal
	s.ringEdges += o.ringEdges
	s.ringRedSum += o.ringRedSum
	s.ringRedN += o.ringRedN
	s.lensN += o.lensN
	s.lensSumV += o.lensSumV
	s.lensWhite += o.lensWhite
	s.lensEdges += o.lensEdges
	s.lensGray = append(s.lensGray, o.lensGray...)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
