package grouping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// amHistory fills a history with two bands following a 4 Hz modulation at an
// 80 Hz tick rate
func amHistory(entries int) *History {
	centers := make([]float64, 8)
	for j := range centers {
		centers[j] = 200 + 50*float64(j)
	}

	h := NewHistory(16, 8)
	for k := 0; k < entries; k++ {
		ts := float64(k) / 80
		y := 0.5 + 0.4*math.Sin(2*math.Pi*4*ts)
		frame := newFrame(centers, ts)
		frame.Envelope[3] = y
		frame.Envelope[4] = 0.8 * y
		h.Push(frame)
	}
	return h
}

func TestHistoryCoherenceAndModulation(t *testing.T) {
	h := amHistory(16)
	require.Equal(t, 16, h.Len())

	assert.InDelta(t, 0.1875, h.Span(), 1e-12)
	assert.InDelta(t, 80.0, h.TickRate(), 1e-9)
	assert.InDelta(t, 1.0, h.Coherence([]int{3, 4}, 0.08), 1e-9)
	assert.Equal(t, 4.0, h.ModulationRate([]int{3, 4}, 7))

	// too short a window
	assert.Zero(t, h.Coherence([]int{3, 4}, 0.5))
	// only the first three rates are probed
	assert.NotEqual(t, 4.0, h.ModulationRate([]int{3, 4}, 2))
}

func TestHistoryCoherenceIgnoresRippleOnSteadyLevel(t *testing.T) {
	centers := linearCenters(200, 550, 8)
	h := NewHistory(16, 8)
	for k := 0; k < 16; k++ {
		frame := newFrame(centers, float64(k)/16)
		ripple := 1e-4 * float64(k%2)
		frame.Envelope[3] = 80 + ripple
		frame.Envelope[4] = 60 - ripple
		h.Push(frame)
	}

	assert.Zero(t, h.Coherence([]int{3, 4}, 0.1), "ripple far below the level is flat")
	assert.Zero(t, h.Coherence([]int{3}, 0.1))
}

func TestHistoryNotEnoughEntries(t *testing.T) {
	tests := []struct {
		name        string
		entries     int
		coherent    bool
		modulations bool
	}{
		{"two entries", 2, false, false},
		{"five entries", 5, true, false},
		{"six entries", 6, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := amHistory(tt.entries)
			if tt.coherent {
				assert.Greater(t, h.Coherence([]int{3, 4}, 0), 0.9)
			} else {
				assert.Zero(t, h.Coherence([]int{3, 4}, 0))
			}
			if tt.modulations {
				assert.Greater(t, h.ModulationRate([]int{3, 4}, 7), 0.0)
			} else {
				assert.Zero(t, h.ModulationRate([]int{3, 4}, 7))
			}
		})
	}
}

func TestHistoryFlatGroup(t *testing.T) {
	h := NewHistory(8, 4)
	centers := []float64{100, 200, 300, 400}
	for k := 0; k < 8; k++ {
		frame := newFrame(centers, float64(k)*0.05)
		frame.Envelope[1] = 0.7
		h.Push(frame)
	}
	assert.Zero(t, h.Coherence([]int{1}, 0.1))
	assert.Zero(t, h.Coherence(nil, 0.1))
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(4, 2)
	assert.Equal(t, 4, h.Capacity())
	assert.Zero(t, h.Span())
	assert.Zero(t, h.TickRate())

	centers := []float64{100, 200}
	for k := 0; k < 6; k++ {
		h.Push(newFrame(centers, float64(k)))
	}
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, 2.0, h.Timestamp(0), "oldest entries evicted")
	assert.Equal(t, 5.0, h.Timestamp(3))
	assert.Equal(t, 3.0, h.Span())

	h.Reset()
	assert.Zero(t, h.Len())

	assert.Equal(t, MaxHistory, NewHistory(100, 2).Capacity())
	assert.Equal(t, 1, NewHistory(0, 2).Capacity())
}
