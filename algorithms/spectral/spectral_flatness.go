package spectral

import (
	"math"
)

// SpectralFlatness computes the Wiener entropy of a magnitude vector: the
// ratio of its geometric to its arithmetic mean. Tonal frames sit near 0,
// noise near 1.
type SpectralFlatness struct {
	minThreshold float64 // Minimum value to avoid log(0)
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// NewSpectralFlatnessWithThreshold creates calculator with custom threshold
func NewSpectralFlatnessWithThreshold(threshold float64) *SpectralFlatness {
	if threshold <= 0 {
		threshold = 1e-10
	}
	return &SpectralFlatness{
		minThreshold: threshold,
	}
}

// Compute returns the flatness of magnitudes in [0, 1]. Values below the
// threshold are raised to it for the geometric mean; a frame whose mean does
// not exceed the threshold gives 0.
func (sf *SpectralFlatness) Compute(magnitudes []float64) float64 {
	if len(magnitudes) == 0 {
		return 0.0
	}

	logSum := 0.0
	arithmeticMean := 0.0
	for _, m := range magnitudes {
		logSum += math.Log(max(m, sf.minThreshold))
		arithmeticMean += m
	}
	arithmeticMean /= float64(len(magnitudes))

	if arithmeticMean <= sf.minThreshold {
		return 0.0
	}

	geometricMean := math.Exp(logSum / float64(len(magnitudes)))
	return min(geometricMean/arithmeticMean, 1.0)
}

// ComputeInDB returns the flatness in decibels, -100 for a silent frame
func (sf *SpectralFlatness) ComputeInDB(magnitudes []float64) float64 {
	flatness := sf.Compute(magnitudes)
	if flatness <= sf.minThreshold {
		return -100.0
	}
	return 10.0 * math.Log10(flatness)
}
