package ensemble

import (
	"hash/fnv"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

// autocontrastCutoff is the fraction of pixels clipped at each end.
const autocontrastCutoff = 0.01

// DeriveSeed mixes the configured seed with the image content so the same
// bytes always produce the same views.
func DeriveSeed(base uint64, data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return base ^ h.Sum64()
}

// Augmenter produces deterministic test-time views of an image.
type Augmenter struct{}

// Views returns n views in a fixed order: identity, horizontal flip,
// brightness jitter, autocontrast, then seeded brightness/contrast jitters.
func (Augmenter) Views(img image.Image, n int, seed uint64) []image.Image {
	if n < 1 {
		n = 1
	}
	base := toNRGBA(img)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	views := make([]image.Image, 0, n)
	for k := 0; k < n; k++ {
		switch k {
		case 0:
			views = append(views, base)
		case 1:
			views = append(views, imaging.FlipH(base))
		case 2:
			views = append(views, adjust(base, 0.97+0.06*rng.Float64(), 1))
		case 3:
			views = append(views, autocontrast(base, autocontrastCutoff))
		default:
			brightness := 0.95 + 0.10*rng.Float64()
			contrast := 0.95 + 0.10*rng.Float64()
			if k%2 == 1 {
				views = append(views, adjust(imaging.FlipH(base), brightness, contrast))
			} else {
				views = append(views, adjust(base, brightness, contrast))
			}
		}
	}
	return views
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// adjust scales brightness multiplicatively, then changes contrast around
// mid-gray. A contrast of 1 leaves the image as is.
func adjust(src image.Image, brightness, contrast float64) *image.NRGBA {
	dst := imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampByte(float64(c.R) * brightness),
			G: clampByte(float64(c.G) * brightness),
			B: clampByte(float64(c.B) * brightness),
			A: c.A,
		}
	})
	if contrast == 1 {
		return dst
	}
	return imaging.AdjustContrast(dst, (contrast-1)*100)
}

// autocontrast stretches each channel so the clipped range spans 0..255.
func autocontrast(src *image.NRGBA, cutoff float64) *image.NRGBA {
	var hist [3][256]int
	pixels := 0
	for i := 0; i < len(src.Pix); i += 4 {
		hist[0][src.Pix[i]]++
		hist[1][src.Pix[i+1]]++
		hist[2][src.Pix[i+2]]++
		pixels++
	}

	clip := int(float64(pixels) * cutoff)
	var luts [3][256]uint8
	for c := 0; c < 3; c++ {
		lo, hi := 0, 255
		for acc := 0; lo < 255; lo++ {
			acc += hist[c][lo]
			if acc > clip {
				break
			}
		}
		for acc := 0; hi > 0; hi-- {
			acc += hist[c][hi]
			if acc > clip {
				break
			}
		}
		for i := range luts[c] {
			if hi <= lo {
				luts[c][i] = uint8(i)
				continue
			}
			luts[c][i] = clampByte(float64(i-lo) * 255 / float64(hi-lo))
		}
	}
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: luts[0][c.R], G: luts[1][c.G], B: luts[2][c.B], A: c.A}
	})
}

func clampByte(v float64) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v + 0.5)
	}
}
