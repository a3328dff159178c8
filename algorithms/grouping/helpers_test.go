package grouping

import (
	"sort"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/spectral"
)

func linearCenters(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

func erbCenters() []float64 {
	return spectral.NewERBScale().CenterFrequencies(128, 50, 3500)
}

func newFrame(centers []float64, timestamp float64) *cochlear.Frame {
	frame := cochlear.NewFrame(len(centers))
	copy(frame.BandCenterHz, centers)
	frame.Timestamp = timestamp
	return frame
}

// setSpike splits amplitude between the two bands around hz so that their
// centroid is hz, raising each to at least its share
func setSpike(frame *cochlear.Frame, hz, amplitude float64) {
	centers := frame.BandCenterHz
	last := len(centers) - 1
	switch {
	case hz <= centers[0]:
		frame.Envelope[0] = max(frame.Envelope[0], amplitude)
		return
	case hz >= centers[last]:
		frame.Envelope[last] = max(frame.Envelope[last], amplitude)
		return
	}

	lo := sort.SearchFloat64s(centers, hz) - 1
	frac := (hz - centers[lo]) / (centers[lo+1] - centers[lo])
	frame.Envelope[lo] = max(frame.Envelope[lo], amplitude*(1-frac))
	frame.Envelope[lo+1] = max(frame.Envelope[lo+1], amplitude*frac)
}

// spikeStack places up to eight harmonics of f0 below 3400 Hz, each 0.85 of
// the one before
func spikeStack(frame *cochlear.Frame, f0, amplitude float64, harmonics int) {
	amp := amplitude
	for h := 1; h <= harmonics; h++ {
		if f0*float64(h) >= 3400 {
			break
		}
		setSpike(frame, f0*float64(h), amp)
		amp *= 0.85
	}
}

func scaled(src *cochlear.Frame, gain, timestamp float64) *cochlear.Frame {
	out := cochlear.NewFrame(src.NumBands())
	out.CopyFrom(src)
	for i := range out.Envelope {
		out.Envelope[i] *= gain
	}
	out.Timestamp = timestamp
	return out
}
