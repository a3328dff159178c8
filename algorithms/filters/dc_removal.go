package filters

import (
	"math"
)

// DCTracker removes slowly varying offset from a sample stream by tracking
// the running mean with a one-pole low-pass and subtracting it.
//
// Difference equations:
//
//	s[n] = α*s[n-1] + (1-α)*x[n]
//	y[n] = x[n] - s[n]
//
// References:
//   - Julius O. Smith III, "Introduction to Digital Filters with Audio Applications"
//     https://ccrma.stanford.edu/~jos/filters/DC_Blocker.html
type DCTracker struct {
	alpha float64 // smoothing coefficient (0 < α < 1)
	state float64 // running mean estimate s[n-1]
}

// DefaultDCTrackerAlpha gives a time constant of ~2000 samples
const DefaultDCTrackerAlpha = 0.9995

// NewDCTracker creates a DC tracker with the default coefficient
func NewDCTracker() *DCTracker {
	return &DCTracker{alpha: DefaultDCTrackerAlpha}
}

// Process removes the tracked offset from a single sample
func (dc *DCTracker) Process(input float64) float64 {
	dc.state = dc.alpha*dc.state + (1.0-dc.alpha)*input
	if math.Abs(dc.state) < 1e-30 {
		dc.state = 0
	}
	return input - dc.state
}

// Reset clears the filter's internal state.
func (dc *DCTracker) Reset() {
	dc.state = 0.0
}

// GetCutoffFrequency approximates the -3dB corner of the equivalent high-pass:
// fc ≈ (1-α)*fs/(2*pi)
func (dc *DCTracker) GetCutoffFrequency(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return (1.0 - dc.alpha) * float64(sampleRate) / (2.0 * math.Pi)
}
