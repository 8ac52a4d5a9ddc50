package analyzer

import (
	"image"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// metricsCalculator implements MetricsCalculator. Pixel scans are split into
// horizontal strips on the worker pool and reduced in strip order, so the
// results do not depend on scheduling.
type metricsCalculator struct {
	pool      *WorkerPool
	strips    int
	slicePool sync.Pool
}

// NewMetricsCalculator creates a calculator that scans on the given pool
func NewMetricsCalculator(pool *WorkerPool) MetricsCalculator {
	return &metricsCalculator{
		pool:   pool,
		strips: runtime.NumCPU(),
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

// Planes extracts RGB, luma and HSV planes for rect.
func (mc *metricsCalculator) Planes(buf *ImageBuffer, rect image.Rectangle) *planes {
	rect = rect.Intersect(image.Rect(0, 0, buf.Width, buf.Height))
	w, h := rect.Dx(), rect.Dy()
	n := w * h
	p := &planes{
		width:  w,
		height: h,
		r:      make([]uint8, n),
		g:      make([]uint8, n),
		b:      make([]uint8, n),
		gray:   make([]uint8, n),
		sat:    make([]float64, n),
		val:    make([]float64, n),
	}
	if n == 0 {
		return p
	}

	var jobs []func()
	for _, s := range stripBounds(h, mc.strips) {
		startY, endY := s[0], s[1]
		jobs = append(jobs, func() {
			for y := startY; y < endY; y++ {
				for x := 0; x < w; x++ {
					r, g, b := buf.RGB(rect.Min.X+x, rect.Min.Y+y)
					i := y*w + x
					p.r[i], p.g[i], p.b[i] = r, g, b
					// ITU-R 601 luma, as used by image/color
					p.gray[i] = uint8((19595*uint32(r) + 38470*uint32(g) + 7471*uint32(b) + 1<<15) >> 16)
					_, sat, val := mc.rgbToHSV(float64(r)/255, float64(g)/255, float64(b)/255)
					p.sat[i], p.val[i] = sat, val
				}
			}
		})
	}
	mc.pool.Run(jobs...)
	return p
}

// LaplacianVariance computes the variance of the 4-neighbour Laplacian of the luma plane
func (mc *metricsCalculator) LaplacianVariance(p *planes) float64 {
	width, height := p.width, p.height
	if width < 3 || height < 3 {
		return 0
	}

	data := mc.slicePool.Get().([]float64)
	defer func() { mc.slicePool.Put(data[:0]) }()

	if cap(data) < (width-2)*(height-2) {
		data = make([]float64, 0, (width-2)*(height-2))
	}

	// Laplacian kernel: [0, 1, 0; 1, -4, 1; 0, 1, 0]
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			center := float64(p.gray[p.idx(x, y)])
			top := float64(p.gray[p.idx(x, y-1)])
			bottom := float64(p.gray[p.idx(x, y+1)])
			left := float64(p.gray[p.idx(x-1, y)])
			right := float64(p.gray[p.idx(x+1, y)])

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil)
}

// Measure scans the region once and accumulates exposure, redness,
// lens and ring statistics for the given geometry.
func (mc *metricsCalculator) Measure(p *planes, geom ocularGeometry) regionStats {
	bounds := stripBounds(p.height, mc.strips)
	partial := make([]regionStats, len(bounds))

	var jobs []func()
	for i, s := range bounds {
		i, startY, endY := i, s[0], s[1]
		jobs = append(jobs, func() {
			partial[i] = mc.measureStrip(p, geom, startY, endY)
		})
	}
	mc.pool.Run(jobs...)

	var total regionStats
	for _, part := range partial {
		total.merge(part)
	}
	return total
}

func (mc *metricsCalculator) measureStrip(p *planes, geom ocularGeometry, startY, endY int) regionStats {
	var st regionStats
	for y := startY; y < endY; y++ {
		for x := 0; x < p.width; x++ {
			i := p.idx(x, y)
			v := p.val[i]
			v255 := v * 255
			gray := p.gray[i]

			st.pixels++
			st.sumValue += v
			st.sumSat += p.sat[i]
			if v255 <= darkValue {
				st.dark++
			}
			if v255 >= brightValue {
				st.bright++
			}
			highlight := v255 >= highlightValue || gray >= highlightValue
			if highlight {
				st.highlight++
			}

			usable := !highlight && v255 >= usableValue
			red := rednessOf(p.r[i], p.g[i], p.b[i])
			if usable {
				st.regionRedSum += red
				st.regionRedN++
			}

			switch geom.zone(x, y) {
			case zoneRing:
				if x > 0 && y > 0 && x < p.width-1 && y < p.height-1 {
					st.ringTotal++
					if mc.sobelMagnitude(p, x, y) > edgeMagnitude {
						st.ringEdges++
					}
				}
				if usable {
					st.ringRedSum += red
					st.ringRedN++
				}
			case zoneLens:
				if highlight {
					continue
				}
				st.lensN++
				st.lensSumV += v
				st.lensGray = append(st.lensGray, float64(gray)/255)
				if v255 >= whiteValue && p.sat[i] <= whiteMaxSat {
					st.lensWhite++
				}
				if x > 0 && y > 0 && x < p.width-1 && y < p.height-1 &&
					mc.sobelMagnitude(p, x, y) > edgeMagnitude {
					st.lensEdges++
				}
			}
		}
	}
	return st
}

// rednessOf is the red excess over the stronger of green and blue, relative to red.
func rednessOf(r, g, b uint8) float64 {
	other := g
	if b > other {
		other = b
	}
	if r == 0 || r <= other {
		return 0
	}
	return float64(r-other) / float64(r)
}

// sobelMagnitude computes the Sobel gradient magnitude of the luma plane at an interior pixel
func (mc *metricsCalculator) sobelMagnitude(p *planes, x, y int) float64 {
	at := func(xx, yy int) int { return int(p.gray[p.idx(xx, yy)]) }

	gx := at(x+1, y-1) - at(x-1, y-1) +
		2*at(x+1, y) - 2*at(x-1, y) +
		at(x+1, y+1) - at(x-1, y+1)

	gy := at(x-1, y+1) - at(x-1, y-1) +
		2*at(x, y+1) - 2*at(x, y-1) +
		at(x+1, y+1) - at(x+1, y-1)

	return math.Sqrt(float64(gx*gx + gy*gy))
}

// rgbToHSV provides RGB to HSV conversion
func (mc *metricsCalculator) rgbToHSV(r, g, b float64) (h, s, v float64) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min

	v = max

	if max == 0 {
		s = 0
	} else {
		s = delta / max
	}

	if delta == 0 {
		h = 0
	} else if max == r {
		h = 60 * (((g - b) / delta) + 0)
	} else if max == g {
		h = 60 * (((b - r) / delta) + 2)
	} else {
		h = 60 * (((r - g) / delta) + 4)
	}

	if h < 0 {
		h += 360
	}

	return h, s, v
}
