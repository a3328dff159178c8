package filters

// PreEmphasis implements a first-order pre-emphasis filter.
//
// The filter implements the transfer function:
// H(z) = 1 - α*z^-1
//
// With the difference equation:
// y[n] = x[n] - α*x[n-1]
//
// References:
//   - L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech Signals",
//     Prentice-Hall, 1978, Chapter 4
type PreEmphasis struct {
	coefficient float64 // Pre-emphasis coefficient α
	lastSample  float64 // Previous input sample x[n-1]
}

// Content types with tuned coefficients
const (
	ContentSpeech   = "speech"   // α = 0.97
	ContentMusic    = "music"    // α = 0.95
	ContentEmbedded = "embedded" // α = 0.97
	ContentGeneral  = "general"  // α = 0.95
)

// NewPreEmphasis creates a pre-emphasis filter with specified coefficient.
func NewPreEmphasis(coefficient float64) *PreEmphasis {
	return &PreEmphasis{coefficient: coefficient}
}

// GetOptimalPreEmphasisCoefficient returns the coefficient for a content type
func GetOptimalPreEmphasisCoefficient(contentType string) float64 {
	switch contentType {
	case ContentSpeech, ContentEmbedded:
		return 0.97
	case ContentMusic:
		return 0.95
	default:
		return 0.95
	}
}

// Process applies pre-emphasis filtering to a single sample.
func (pe *PreEmphasis) Process(input float64) float64 {
	output := input - pe.coefficient*pe.lastSample
	pe.lastSample = input
	return output
}

// Reset clears the filter's internal state.
func (pe *PreEmphasis) Reset() {
	pe.lastSample = 0.0
}

// GetCoefficient returns the current coefficient.
func (pe *PreEmphasis) GetCoefficient() float64 {
	return pe.coefficient
}
