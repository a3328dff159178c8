package harmonic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeakIslandsExtract(t *testing.T) {
	centers := []float64{100, 200, 300, 400, 500, 600, 700, 800, 900}

	tests := []struct {
		name     string
		envelope []float64
		want     []Peak
	}{
		{
			name:     "two islands",
			envelope: []float64{0, 0.2, 1, 0.2, 0, 0, 0.5, 0.1, 0},
			want: []Peak{
				{FreqHz: 300, Amplitude: 1, Band: 2},
				{FreqHz: (0.25*700 + 0.01*800) / 0.26, Amplitude: 0.5, Band: 6},
			},
		},
		{
			name:     "rising slope",
			envelope: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
		},
		{
			name:     "peak at the top edge",
			envelope: []float64{0, 0, 0, 0, 0, 0, 0.2, 0.5, 1},
		},
		{
			name:     "below threshold",
			envelope: []float64{0, 0.01, 0.04, 0.01, 0, 0, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pi := NewPeakIslands(0.05, 0.1)
			got := pi.Extract(tt.envelope, centers)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i].FreqHz, got[i].FreqHz, 1e-9)
				assert.Equal(t, tt.want[i].Amplitude, got[i].Amplitude)
				assert.Equal(t, tt.want[i].Band, got[i].Band)
			}
		})
	}
}

func TestPeakIslandsShortInput(t *testing.T) {
	pi := NewPeakIslands(0.05, 0.1)
	assert.Empty(t, pi.Extract([]float64{1, 0}, []float64{100, 200}))
	assert.Empty(t, pi.Extract(nil, nil))
}

func TestPeakIslandsGaussian(t *testing.T) {
	frame := gaussianFrame([]component{{1200, 1}}, 25, 0)
	peaks := NewPeakIslands(0.1, 0.1).Extract(frame.Envelope, frame.BandCenterHz)
	require.Len(t, peaks, 1)
	assert.InDelta(t, 1200, peaks[0].FreqHz, 1)
	assert.InDelta(t, 1.0, peaks[0].Amplitude, 0.01)
}
