package spectral

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referenceMagnitudes computes the non-negative bin magnitudes with go-dsp
func referenceMagnitudes(frame []float64) []float64 {
	spectrum := fft.FFTReal(frame)
	magnitudes := make([]float64, len(frame)/2+1)
	for i := range magnitudes {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}
	return magnitudes
}

func TestRealFFTMatchesReference(t *testing.T) {
	const size = 512
	frame := make([]float64, size)
	for i := range frame {
		x := float64(i)
		frame[i] = math.Sin(2*math.Pi*12*x/size) + 0.25*math.Cos(2*math.Pi*40*x/size) + 0.1
	}

	plan, err := NewRealFFT(size)
	require.NoError(t, err)
	require.NotNil(t, plan.Transform(frame))

	magnitude := make([]float64, plan.Bins())
	phase := make([]float64, plan.Bins())
	plan.MagnitudePhase(magnitude, phase, 0)

	reference := referenceMagnitudes(frame)
	require.Len(t, reference, plan.Bins())
	for k := range reference {
		assert.InDelta(t, reference[k], magnitude[k], 1e-6, "bin %d", k)
	}

	assert.InDelta(t, size/2.0, magnitude[12], 1e-6)
	assert.InDelta(t, size/8.0, magnitude[40], 1e-6)
	assert.InDelta(t, 0.1*size, magnitude[0], 1e-6)
}

func TestRealFFTPlan(t *testing.T) {
	_, err := NewRealFFT(1)
	assert.Error(t, err)

	plan, err := NewRealFFT(1024)
	require.NoError(t, err)
	assert.Equal(t, 1024, plan.Size())
	assert.Equal(t, 513, plan.Bins())
	assert.InDelta(t, 15.625, plan.BinFrequency(1, 16000), 1e-12)

	assert.Nil(t, plan.Transform(make([]float64, 100)), "wrong frame length")
}

func TestRealFFTEpsilonFloor(t *testing.T) {
	plan, err := NewRealFFT(64)
	require.NoError(t, err)
	plan.Transform(make([]float64, 64))

	magnitude := make([]float64, plan.Bins())
	phase := make([]float64, plan.Bins())
	plan.MagnitudePhase(magnitude, phase, 1e-12)
	for _, m := range magnitude {
		assert.Equal(t, 1e-12, m)
	}
}
