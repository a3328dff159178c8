package windowing

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Hann represents a Hann window function.
//
// The symmetric form is w[n] = 0.5 * (1 - cos(2πn/(N-1))); the periodic form
// drops the last point of an N+1 symmetric window. When RMS normalization is
// enabled the coefficients are divided by the window RMS so windowed frames
// keep the energy scale of the raw signal.
//
// References:
//   - F.J. Harris, "On the Use of Windows for Harmonic Analysis with the
//     Discrete Fourier Transform", Proc. IEEE, 1978
type Hann struct {
	size         int
	symmetric    bool
	rms          float64
	normalized   bool
	coefficients []float64
}

// NewHann creates a new Hann window
func NewHann(size int, symmetric bool) *Hann {
	h := &Hann{
		size:      size,
		symmetric: symmetric,
	}
	h.generate()
	return h
}

// NewRMSNormalizedHann creates a symmetric Hann window scaled to unit RMS
func NewRMSNormalizedHann(size int) *Hann {
	h := NewHann(size, true)
	h.NormalizeRMS()
	return h
}

func (h *Hann) generate() {
	if h.size <= 0 {
		h.coefficients = []float64{}
		h.rms = 0
		return
	}

	if h.size == 1 {
		h.coefficients = []float64{1.0}
	} else if h.symmetric {
		h.coefficients = window.Hann(h.size)
	} else {
		h.coefficients = window.Hann(h.size + 1)[:h.size]
	}

	h.rms = math.Sqrt(floats.Dot(h.coefficients, h.coefficients) / float64(h.size))
}

// NormalizeRMS rescales the coefficients to unit RMS. Calling it twice is a no-op.
func (h *Hann) NormalizeRMS() {
	if h.normalized || h.rms <= 0 {
		return
	}
	floats.Scale(1.0/h.rms, h.coefficients)
	h.normalized = true
}

// ApplyTo writes src*window into dst without allocating
func (h *Hann) ApplyTo(dst, src []float64) error {
	if len(src) != h.size || len(dst) < h.size {
		return fmt.Errorf("signal length (%d) doesn't match window size (%d)", len(src), h.size)
	}
	floats.MulTo(dst[:h.size], src, h.coefficients)
	return nil
}

// RMS returns the RMS of the unnormalized window
func (h *Hann) RMS() float64 {
	return h.rms
}

// GetType returns the window type
func (h *Hann) GetType() string {
	return "hann"
}
