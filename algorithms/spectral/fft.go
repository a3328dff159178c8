package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// RealFFT is an owned real-input FFT plan. All scratch is allocated once at
// construction so Transform never allocates, and separate plans share no state.
type RealFFT struct {
	size   int
	plan   *fourier.FFT
	coeffs []complex128
}

// NewRealFFT creates a plan for real frames of the given length
func NewRealFFT(size int) (*RealFFT, error) {
	if size < 2 {
		return nil, fmt.Errorf("fft size must be at least 2, got %d", size)
	}
	return &RealFFT{
		size:   size,
		plan:   fourier.NewFFT(size),
		coeffs: make([]complex128, size/2+1),
	}, nil
}

// Transform computes the non-negative frequency half of the spectrum.
// The returned slice is owned by the plan and overwritten by the next call.
func (f *RealFFT) Transform(frame []float64) []complex128 {
	if len(frame) != f.size {
		return nil
	}
	return f.plan.Coefficients(f.coeffs, frame)
}

// MagnitudePhase computes magnitude and phase of the last transform into the
// given slices; epsilon is added to every magnitude.
func (f *RealFFT) MagnitudePhase(magnitude, phase []float64, epsilon float64) {
	n := min(len(f.coeffs), len(magnitude), len(phase))
	for i := 0; i < n; i++ {
		c := f.coeffs[i]
		magnitude[i] = math.Hypot(real(c), imag(c)) + epsilon
		phase[i] = math.Atan2(imag(c), real(c))
	}
}

// Size returns the frame length of the plan
func (f *RealFFT) Size() int {
	return f.size
}

// Bins returns the number of non-negative frequency bins
func (f *RealFFT) Bins() int {
	return f.size/2 + 1
}

// BinFrequency returns the centre frequency of bin k in Hz
func (f *RealFFT) BinFrequency(k int, sampleRate int) float64 {
	return float64(k) * float64(sampleRate) / float64(f.size)
}
