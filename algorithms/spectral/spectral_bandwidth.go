package spectral

import (
	"math"
)

// SpectralBandwidth computes the amplitude-weighted spread of a band envelope
// around its centroid
type SpectralBandwidth struct {
	floor float64
}

// NewSpectralBandwidth creates a bandwidth calculator
func NewSpectralBandwidth() *SpectralBandwidth {
	return &SpectralBandwidth{floor: 1e-12}
}

// Compute returns the standard deviation in Hz of centersHz weighted by
// envelope around centroidHz
func (sb *SpectralBandwidth) Compute(envelope, centersHz []float64, centroidHz float64) float64 {
	n := min(len(envelope), len(centersHz))

	numerator := 0.0
	denominator := 0.0
	for i := range n {
		w := envelope[i]
		if w <= 0 {
			continue
		}
		diff := centersHz[i] - centroidHz
		numerator += diff * diff * w
		denominator += w
	}

	if denominator <= sb.floor {
		return 0
	}
	return math.Sqrt(numerator / denominator)
}
