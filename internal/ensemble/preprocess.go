package ensemble

import (
	"image"

	"github.com/nfnt/resize"
)

// ImageNet channel statistics, the default for torchvision-style exports.
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// Preprocess resizes a view to size×size and lays it out as a normalised
// 1×3×size×size CHW tensor.
func Preprocess(view image.Image, size int, mean, std [3]float32) []float32 {
	resized := resize.Resize(uint(size), uint(size), view, resize.Bilinear)
	img := toNRGBA(resized)

	plane := size * size
	data := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := img.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				v := float32(img.Pix[i+c]) / 255
				data[c*plane+y*size+x] = (v - mean[c]) / std[c]
			}
		}
	}
	return data
}

func toFloat32x3(values []float64, fallback [3]float32) [3]float32 {
	if len(values) != 3 {
		return fallback
	}
	return [3]float32{float32(values[0]), float32(values[1]), float32(values[2])}
}
