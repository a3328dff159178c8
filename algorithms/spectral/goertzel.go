package spectral

import (
	"math"
)

// Goertzel evaluates the power of a single frequency in a sampled series
// without computing a full transform. Used to probe a handful of candidate
// modulation rates on short envelope histories.
//
// References:
//   - G. Goertzel, "An Algorithm for the Evaluation of Finite Trigonometric
//     Series", American Mathematical Monthly 65, 1958
type Goertzel struct {
	sampleRate float64
}

// NewGoertzel creates a probe for series sampled at sampleRate Hz
func NewGoertzel(sampleRate float64) *Goertzel {
	return &Goertzel{sampleRate: sampleRate}
}

// SampleRate returns the rate the probe assumes for its input
func (g *Goertzel) SampleRate() float64 {
	return g.sampleRate
}

// SetSampleRate changes the assumed input rate
func (g *Goertzel) SetSampleRate(sampleRate float64) {
	g.sampleRate = sampleRate
}

// Power returns |X(f)|² of series at targetHz. Non-positive rates or an empty
// series give zero.
func (g *Goertzel) Power(series []float64, targetHz float64) float64 {
	if len(series) == 0 || g.sampleRate <= 0 {
		return 0.0
	}

	omega := 2.0 * math.Pi * targetHz / g.sampleRate
	coeff := 2.0 * math.Cos(omega)

	var s1, s2 float64
	for _, x := range series {
		s0 := x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}

	return s1*s1 + s2*s2 - coeff*s1*s2
}

// Strongest returns the candidate frequency with the highest power and that
// power. Candidates at or above Nyquist are skipped. With no usable candidate
// it returns (0, 0).
func (g *Goertzel) Strongest(series []float64, candidates []float64) (float64, float64) {
	bestHz := 0.0
	bestPower := 0.0
	for _, hz := range candidates {
		if hz <= 0 || hz >= 0.5*g.sampleRate {
			continue
		}
		p := g.Power(series, hz)
		if p > bestPower {
			bestPower = p
			bestHz = hz
		}
	}
	return bestHz, bestPower
}
