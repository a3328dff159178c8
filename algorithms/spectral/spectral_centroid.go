package spectral

// SpectralCentroid computes the amplitude-weighted mean frequency of a band
// envelope. Band centres need not be evenly spaced.
type SpectralCentroid struct {
	floor float64
}

// NewSpectralCentroid creates a centroid calculator
func NewSpectralCentroid() *SpectralCentroid {
	return &SpectralCentroid{floor: 1e-12}
}

// Compute returns the centroid of envelope over centersHz. Only the common
// prefix of the two slices is used; an envelope without energy gives 0.
func (sc *SpectralCentroid) Compute(envelope, centersHz []float64) float64 {
	n := min(len(envelope), len(centersHz))

	numerator := 0.0
	denominator := 0.0
	for i := range n {
		w := envelope[i]
		if w <= 0 {
			continue
		}
		numerator += centersHz[i] * w
		denominator += w
	}

	if denominator <= sc.floor {
		return 0
	}
	return numerator / denominator
}
