package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	apperrors "go-eye-inspector/internal/errors"
	engineconfig "go-eye-inspector/pkg/config"
)

// MinImageSide is the smallest usable width or height.
const MinImageSide = 8

// DefaultMaxImagePixels bounds width*height before pixels are decoded.
const DefaultMaxImagePixels = engineconfig.DefaultMaxPixels

// ImageBuffer is a decoded RGB photograph anchored at the origin.
// It is never modified after construction.
type ImageBuffer struct {
	Width  int
	Height int
	Format string
	img    *image.NRGBA
}

// DecodeImage decodes raw bytes into an ImageBuffer. Failures are invalid_image errors.
func DecodeImage(data []byte) (*ImageBuffer, error) {
	return DecodeImageWithLimit(data, DefaultMaxImagePixels)
}

// DecodeImageWithLimit is DecodeImage with a custom pixel budget; a
// non-positive maxPixels disables the check.
func DecodeImageWithLimit(data []byte, maxPixels int) (*ImageBuffer, error) {
	if len(data) == 0 {
		return nil, apperrors.NewInvalidImageError("empty image payload", nil)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("unrecognised image format", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, apperrors.NewInvalidImageError("image has zero dimensions", nil)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, apperrors.NewInvalidImageError("image dimensions exceed the pixel limit", nil).
			WithDetails(fmt.Sprintf("%dx%d > %d pixels", cfg.Width, cfg.Height, maxPixels))
	}
	if cfg.ColorModel == color.AlphaModel || cfg.ColorModel == color.Alpha16Model {
		return nil, apperrors.NewInvalidImageError("unsupported channel count: alpha-only image", nil)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("failed to decode image", err)
	}

	buf, err := NewImageBuffer(img)
	if err != nil {
		return nil, err
	}
	buf.Format = format
	return buf, nil
}

// NewImageBuffer copies any image into an RGB buffer. Alpha is discarded.
func NewImageBuffer(src image.Image) (*ImageBuffer, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, apperrors.NewInvalidImageError("image has zero dimensions", nil)
	}
	if width < MinImageSide || height < MinImageSide {
		return nil, apperrors.NewInvalidImageError("image too small to analyse", nil).
			WithDetails(image.Pt(width, height).String())
	}
	switch src.ColorModel() {
	case color.AlphaModel, color.Alpha16Model:
		return nil, apperrors.NewInvalidImageError("unsupported channel count: alpha-only image", nil)
	}

	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}

	return &ImageBuffer{Width: width, Height: height, img: dst}, nil
}

// Channels is always 3; alpha is dropped on decode.
func (b *ImageBuffer) Channels() int {
	return 3
}

// Image exposes the pixels for read-only use.
func (b *ImageBuffer) Image() image.Image {
	return b.img
}

// RGB returns the colour at (x, y).
func (b *ImageBuffer) RGB(x, y int) (r, g, bl uint8) {
	i := b.img.PixOffset(x, y)
	return b.img.Pix[i], b.img.Pix[i+1], b.img.Pix[i+2]
}

// Crop returns a copy of the given rectangle, clipped to the image.
func (b *ImageBuffer) Crop(rect image.Rectangle) *ImageBuffer {
	rect = rect.Intersect(b.img.Bounds())
	dst := image.NewNRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), b.img, rect.Min, draw.Src)
	return &ImageBuffer{Width: rect.Dx(), Height: rect.Dy(), Format: b.Format, img: dst}
}

// grayWorld balances channel means towards their common mean.
func grayWorld(b *ImageBuffer) *ImageBuffer {
	var sum [3]float64
	pix := b.img.Pix
	for i := 0; i < len(pix); i += 4 {
		sum[0] += float64(pix[i])
		sum[1] += float64(pix[i+1])
		sum[2] += float64(pix[i+2])
	}
	mean := (sum[0] + sum[1] + sum[2]) / 3
	var gain [3]float64
	for c := 0; c < 3; c++ {
		if sum[c] == 0 {
			gain[c] = 1
			continue
		}
		gain[c] = mean / sum[c]
	}

	dst := imaging.AdjustFunc(b.img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{
			R: clampByte(float64(c.R) * gain[0]),
			G: clampByte(float64(c.G) * gain[1]),
			B: clampByte(float64(c.B) * gain[2]),
			A: 0xff,
		}
	})
	return &ImageBuffer{Width: b.Width, Height: b.Height, Format: b.Format, img: dst}
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
