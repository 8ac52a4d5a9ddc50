package analyzer

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"go-eye-inspector/pkg/models"
)

// featureExtractor implements FeatureExtractor
type featureExtractor struct {
	calc     MetricsCalculator
	detector RegionDetector
}

// NewFeatureExtractor wires the calculator and region detector
func NewFeatureExtractor(calc MetricsCalculator, detector RegionDetector) FeatureExtractor {
	return &featureExtractor{calc: calc, detector: detector}
}

// Extract measures the ocular region of buf. It never fails for a decoded
// buffer; degenerate regions produce zero scores.
func (fe *featureExtractor) Extract(buf *ImageBuffer, opts AnalysisOptions) models.FeatureSet {
	if opts.Enhance {
		buf = grayWorld(buf)
	}

	rect := fe.detector.Locate(buf)
	p := fe.calc.Planes(buf, rect)
	geom := newOcularGeometry(p.width, p.height)
	st := fe.calc.Measure(p, geom)

	lapVar := fe.calc.LaplacianVariance(p)
	sharpness := lapVar / (lapVar + lapVarScale)

	meanBrightness := 0.0
	if st.pixels > 0 {
		meanBrightness = st.sumValue / float64(st.pixels)
	}
	darkRatio := ratio(st.dark, st.pixels)
	brightRatio := ratio(st.bright, st.pixels)
	highlightRatio := ratio(st.highlight, st.pixels)

	quality := clamp01(0.65*sharpness +
		0.25*(1-2*math.Abs(meanBrightness-0.5)) +
		0.10*(1-(darkRatio+brightRatio)))

	flag := models.QualityAcceptable
	if quality < opts.LowQualityThreshold {
		flag = models.QualityLow
	}

	whiteness := ratio(st.lensWhite, st.lensN)

	return models.FeatureSet{
		RednessScore:         clamp01(rednessScore(st)),
		OpacityScore:         clamp01(opacityScore(st, highlightRatio)),
		VascularDensityScore: clamp01(ratio(st.ringEdges, st.ringTotal) / vascularSaturation),
		QualityScore:         quality,
		QualityFlag:          flag,
		MeanBrightness:       clamp01(meanBrightness),
		DarkRatio:            clamp01(darkRatio),
		BrightRatio:          clamp01(brightRatio),
		HighlightRatio:       clamp01(highlightRatio),
		CentralWhiteness:     clamp01(whiteness),
		SharpnessScore:       clamp01(sharpness),
	}
}

// rednessScore averages red dominance over the sclera ring, or over the
// whole region when the ring has too few usable pixels.
func rednessScore(st regionStats) float64 {
	if st.ringRedN >= minRingPixels {
		return st.ringRedSum / float64(st.ringRedN)
	}
	if st.regionRedN == 0 {
		return 0
	}
	return st.regionRedSum / float64(st.regionRedN)
}

// opacityScore rates how bright, white and featureless the lens disc is.
// Specular glare is discounted so a flash reflection is not read as opacity.
func opacityScore(st regionStats, highlightRatio float64) float64 {
	if st.lensN == 0 {
		return 0
	}
	meanV := st.lensSumV / float64(st.lensN)
	whiteness := ratio(st.lensWhite, st.lensN)
	edges := ratio(st.lensEdges, st.lensN)

	_, stdGray := stat.PopMeanStdDev(st.lensGray, nil)
	if math.IsNaN(stdGray) {
		stdGray = 0
	}

	glare := 0.15 * clamp01((highlightRatio-0.01)/0.10)

	return 0.50*meanV +
		0.20*whiteness +
		0.15*(1-stdGray)*meanV +
		0.15*(1-edges)*meanV -
		glare
}
