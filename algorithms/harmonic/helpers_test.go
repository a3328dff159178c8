package harmonic

import (
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/spectral"
)

type component struct {
	hz        float64
	amplitude float64
}

// stack returns n harmonics of f0 decaying by 0.8 per harmonic
func stack(f0 float64, n int) []component {
	out := make([]component, n)
	amp := 1.0
	for h := 1; h <= n; h++ {
		out[h-1] = component{hz: f0 * float64(h), amplitude: amp}
		amp *= 0.8
	}
	return out
}

// gaussianFrame builds a 128-band ERB frame over 50-3500 Hz with a Gaussian
// bump per component. A positive sigmaHz fixes the width; otherwise the
// width is sigmaFrac of the component frequency.
func gaussianFrame(comps []component, sigmaHz, sigmaFrac float64) *cochlear.Frame {
	centers := spectral.NewERBScale().CenterFrequencies(128, 50, 3500)
	frame := cochlear.NewFrame(len(centers))
	copy(frame.BandCenterHz, centers)

	for _, c := range comps {
		sigma := sigmaHz
		if sigma <= 0 {
			sigma = sigmaFrac * c.hz
		}
		for i, hz := range centers {
			d := (hz - c.hz) / sigma
			frame.Envelope[i] += c.amplitude * math.Exp(-0.5*d*d)
		}
	}
	return frame
}

func silentFrame() *cochlear.Frame {
	return gaussianFrame(nil, 1, 0)
}
