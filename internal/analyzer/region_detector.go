package analyzer

import (
	"image"
	"math"

	"github.com/nfnt/resize"
)

const (
	// searchSide is the long side of the downscaled copy used for the search.
	searchSide = 256
	// minRegionSide is the smallest accepted region in full-resolution pixels.
	minRegionSide = 80
	// minStructure is the sharpness plus ring-edge evidence a candidate needs.
	minStructure = 0.02
)

// regionDetector implements RegionDetector with a scored crop search
type regionDetector struct {
	calc MetricsCalculator
}

// NewRegionDetector creates a detector that scores candidates with calc
func NewRegionDetector(calc MetricsCalculator) RegionDetector {
	return &regionDetector{calc: calc}
}

type regionCandidate struct {
	rect      image.Rectangle
	score     float64
	structure float64
}

// Locate returns the square region most likely to contain the eye.
// Without convincing structure it falls back to a central crop.
func (rd *regionDetector) Locate(buf *ImageBuffer) image.Rectangle {
	fallback := centralCrop(buf.Width, buf.Height, 0.80)

	short := min(buf.Width, buf.Height)
	if short < minRegionSide {
		return fallback
	}

	small, scale := rd.downscale(buf)
	p := rd.calc.Planes(small, image.Rect(0, 0, small.Width, small.Height))

	best, ok := rd.bestCandidate(p)
	if !ok || best.structure < minStructure {
		return fallback
	}

	full := image.Rect(
		int(math.Round(float64(best.rect.Min.X)/scale)),
		int(math.Round(float64(best.rect.Min.Y)/scale)),
		int(math.Round(float64(best.rect.Max.X)/scale)),
		int(math.Round(float64(best.rect.Max.Y)/scale)),
	).Intersect(image.Rect(0, 0, buf.Width, buf.Height))

	if min(full.Dx(), full.Dy()) < minRegionSide {
		return fallback
	}
	return full
}

func (rd *regionDetector) downscale(buf *ImageBuffer) (*ImageBuffer, float64) {
	long := max(buf.Width, buf.Height)
	if long <= searchSide {
		return buf, 1
	}
	scale := float64(searchSide) / float64(long)
	w := uint(math.Max(MinImageSide, math.Round(float64(buf.Width)*scale)))
	h := uint(math.Max(MinImageSide, math.Round(float64(buf.Height)*scale)))
	resized := resize.Resize(w, h, buf.Image(), resize.Bilinear)

	small, err := NewImageBuffer(resized)
	if err != nil {
		return buf, 1
	}
	return small, float64(small.Width) / float64(buf.Width)
}

// bestCandidate scores square crops at two sizes and nine centres.
// The image centre is tried first so ties keep the central crop.
func (rd *regionDetector) bestCandidate(p *planes) (regionCandidate, bool) {
	short := float64(min(p.width, p.height))
	offsets := []float64{0, -0.12, 0.12}

	var best regionCandidate
	found := false
	for _, size := range []float64{0.70, 0.55} {
		side := int(math.Round(size * short))
		if side < MinImageSide {
			continue
		}
		for _, oy := range offsets {
			for _, ox := range offsets {
				cx := float64(p.width)/2 + ox*short
				cy := float64(p.height)/2 + oy*short
				rect := squareAround(cx, cy, side, p.width, p.height)

				c := rd.scoreCandidate(p, rect)
				if !found || c.score > best.score {
					best, found = c, true
				}
			}
		}
	}
	return best, found
}

// scoreCandidate combines sharpness, ring edge density and the absence of glare.
func (rd *regionDetector) scoreCandidate(p *planes, rect image.Rectangle) regionCandidate {
	sub := subPlanes(p, rect)
	lapVar := rd.calc.LaplacianVariance(sub)
	sharp := lapVar / (lapVar + lapVarScale)

	st := rd.calc.Measure(sub, newOcularGeometry(sub.width, sub.height))
	ringEdges := ratio(st.ringEdges, st.ringTotal)
	highlight := ratio(st.highlight, st.pixels)

	structure := 0.45*sharp + 0.40*ringEdges
	return regionCandidate{
		rect:      rect,
		score:     structure + 0.15*(1-highlight),
		structure: structure,
	}
}

// squareAround places a side×side square centred near (cx, cy), shifted to stay inside.
func squareAround(cx, cy float64, side, width, height int) image.Rectangle {
	x0 := int(math.Round(cx - float64(side)/2))
	y0 := int(math.Round(cy - float64(side)/2))
	x0 = max(0, min(x0, width-side))
	y0 = max(0, min(y0, height-side))
	return image.Rect(x0, y0, x0+side, y0+side)
}

// centralCrop returns a centred square covering frac of the short side.
func centralCrop(width, height int, frac float64) image.Rectangle {
	side := int(math.Round(frac * float64(min(width, height))))
	if side < 1 {
		side = min(width, height)
	}
	return squareAround(float64(width)/2, float64(height)/2, side, width, height)
}

// subPlanes copies a rectangle out of p.
func subPlanes(p *planes, rect image.Rectangle) *planes {
	w, h := rect.Dx(), rect.Dy()
	n := w * h
	out := &planes{
		width:  w,
		height: h,
		r:      make([]uint8, n),
		g:      make([]uint8, n),
		b:      make([]uint8, n),
		gray:   make([]uint8, n),
		sat:    make([]float64, n),
		val:    make([]float64, n),
	}
	for y := 0; y < h; y++ {
		src := p.idx(rect.Min.X, rect.Min.Y+y)
		dst := y * w
		copy(out.r[dst:dst+w], p.r[src:src+w])
		copy(out.g[dst:dst+w], p.g[src:src+w])
		copy(out.b[dst:dst+w], p.b[src:src+w])
		copy(out.gray[dst:dst+w], p.gray[src:src+w])
		copy(out.sat[dst:dst+w], p.sat[src:src+w])
		copy(out.val[dst:dst+w], p.val[src:src+w])
	}
	return out
}
