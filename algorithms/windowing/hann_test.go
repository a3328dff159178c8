package windowing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHannShape(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		symmetric bool
	}{
		{"symmetric_odd", 9, true},
		{"symmetric_even", 16, true},
		{"periodic", 16, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHann(tt.size, tt.symmetric)
			coeffs := h.coefficients
			require.Len(t, coeffs, tt.size)

			assert.InDelta(t, 0.0, coeffs[0], 1e-12)
			for _, c := range coeffs {
				assert.GreaterOrEqual(t, c, 0.0)
				assert.LessOrEqual(t, c, 1.0+1e-12)
			}
			if tt.symmetric {
				for i := range coeffs {
					assert.InDelta(t, coeffs[i], coeffs[tt.size-1-i], 1e-12)
				}
			} else {
				// periodic window peaks exactly at N/2
				assert.InDelta(t, 1.0, coeffs[tt.size/2], 1e-12)
			}
		})
	}

	assert.InDelta(t, 1.0, NewHann(9, true).coefficients[4], 1e-12)
}

func TestRMSNormalizedHann(t *testing.T) {
	h := NewRMSNormalizedHann(4096)
	require.True(t, h.normalized)
	assert.InDelta(t, math.Sqrt(3.0/8.0), h.RMS(), 1e-3)

	sum := 0.0
	for _, c := range h.coefficients {
		sum += c * c
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum/4096), 1e-9)

	before := append([]float64(nil), h.coefficients...)
	h.NormalizeRMS()
	assert.Equal(t, before, h.coefficients, "second normalization is a no-op")
}

func TestHannApply(t *testing.T) {
	h := NewHann(8, true)
	src := []float64{1, 1, 1, 1, 1, 1, 1, 1}
	dst := make([]float64, 8)

	require.NoError(t, h.ApplyTo(dst, src))
	assert.Equal(t, h.coefficients, dst)

	assert.Error(t, h.ApplyTo(dst, make([]float64, 4)))
	assert.Error(t, h.ApplyTo(make([]float64, 4), src), "short destination")
	assert.Equal(t, "hann", h.GetType())
}

func TestHannDegenerateSizes(t *testing.T) {
	assert.Empty(t, NewHann(0, true).coefficients)
	assert.Equal(t, []float64{1.0}, NewHann(1, true).coefficients)
}
