package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBufferOrder(t *testing.T) {
	cb := NewCircularBuffer(4)
	assert.False(t, cb.IsFull())

	cb.Write([]float64{1, 2, 3, 4, 5, 6})
	require.True(t, cb.IsFull())

	dst := make([]float64, 4)
	require.Equal(t, 4, cb.CopyOrdered(dst))
	assert.Equal(t, []float64{3, 4, 5, 6}, dst)

	assert.Equal(t, 0, cb.CopyOrdered(make([]float64, 3)), "short destination is rejected")
}

func TestCircularBufferConsumeHop(t *testing.T) {
	cb := NewCircularBuffer(8)

	cb.Write(make([]float64, 7))
	assert.False(t, cb.ConsumeHop(2), "ring not full yet")

	cb.WriteSample(0)
	require.True(t, cb.ConsumeHop(2))
	assert.Equal(t, 0, cb.PendingSinceHop(), "the fill counts as one hop")
	assert.False(t, cb.ConsumeHop(2))

	cb.WriteSample(0)
	assert.False(t, cb.ConsumeHop(2))
	cb.WriteSample(0)
	assert.True(t, cb.ConsumeHop(2))

	// a backlog is drained one hop at a time
	cb.Write(make([]float64, 5))
	require.True(t, cb.ConsumeHop(2))
	assert.Equal(t, 3, cb.PendingSinceHop())
	require.True(t, cb.ConsumeHop(2))
	assert.Equal(t, 1, cb.PendingSinceHop())
	assert.False(t, cb.ConsumeHop(2))
}

func TestCircularBufferConsumeHopBacklog(t *testing.T) {
	tests := []struct {
		name       string
		written    int
		wantHops   int
		wantRemain int
	}{
		{"exact fill", 8, 1, 0},
		{"fill plus partial hop", 9, 1, 1},
		{"fill plus three hops", 14, 4, 0},
		{"fill plus three hops and one", 15, 4, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCircularBuffer(8)
			cb.Write(make([]float64, tt.written))

			hops := 0
			for cb.ConsumeHop(2) {
				hops++
			}
			assert.Equal(t, tt.wantHops, hops)
			assert.Equal(t, tt.wantRemain, cb.PendingSinceHop())
		})
	}
}

func TestCircularBufferClear(t *testing.T) {
	cb := NewCircularBuffer(3)
	cb.Write([]float64{1, 2, 3})
	cb.Clear()

	assert.Zero(t, cb.Available())
	assert.False(t, cb.IsFull())
	assert.Equal(t, 0, cb.PendingSinceHop())
	assert.Equal(t, 3, cb.Size())

	assert.Equal(t, 1, NewCircularBuffer(0).Size())
}
