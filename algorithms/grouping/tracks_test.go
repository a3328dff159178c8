package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackTableAcquire(t *testing.T) {
	table := newTrackTable()

	first := table.acquire(200, 0)
	require.Equal(t, 1, first.id)
	first.update(&Evaluation{F0Hz: 200}, 0.5, 0)

	same := table.acquire(250, 0.1)
	assert.Same(t, first, same, "within 80 Hz reuses the track")

	other := table.acquire(300, 0.1)
	assert.Equal(t, 2, other.id)
	assert.Equal(t, 2, table.activeCount())
}

func TestTrackTableReplacesStalest(t *testing.T) {
	table := newTrackTable()
	for i := 0; i < MaxTracks; i++ {
		tr := table.acquire(100+200*float64(i), float64(i))
		tr.update(&Evaluation{F0Hz: 100 + 200*float64(i)}, 0.5, float64(i))
	}
	require.Equal(t, MaxTracks, table.activeCount())

	tr := table.acquire(5000, 10)
	assert.Equal(t, MaxTracks+1, tr.id)
	assert.Same(t, &table.slots[0], tr, "slot with the oldest update")
	assert.Equal(t, MaxTracks, table.activeCount())
}

func TestTrackUpdate(t *testing.T) {
	var tr track
	tr.fresh = true

	tr.update(&Evaluation{F0Hz: 200, Amplitude: 1, Harmonicity: 0.8, ModulationRateHz: 4}, 0.25, 1)
	assert.Equal(t, 200.0, tr.pitchHz, "first update copies")
	assert.False(t, tr.fresh)

	tr.update(&Evaluation{F0Hz: 240, Amplitude: 0, Harmonicity: 0.4, ModulationRateHz: 5}, 0.25, 2)
	assert.InDelta(t, 210.0, tr.pitchHz, 1e-12)
	assert.InDelta(t, 0.75, tr.amplitude, 1e-12)
	assert.InDelta(t, 0.7, tr.harmonicity, 1e-12)
	assert.InDelta(t, 4.25, tr.modulationRateHz, 1e-12)
	assert.Equal(t, 2.0, tr.lastTimestamp)

	tr.update(&Evaluation{F0Hz: 210, ModulationRateHz: 10}, 0.25, 3)
	assert.Equal(t, 10.0, tr.modulationRateHz, "large jumps snap")
}

func TestTrackCandidate(t *testing.T) {
	tr := track{id: 3, pitchHz: 220, harmonicity: 0.8, temporalCoherence: 0.5}
	c := tr.candidate()
	assert.Equal(t, 3, c.ID)
	assert.InDelta(t, 0.6, c.Harmonicity, 1e-12)
	assert.Equal(t, 0.5, c.TemporalCoherence)

	tr.temporalCoherence = 1.4
	assert.Equal(t, 1.0, tr.candidate().TemporalCoherence)
}

func TestTrackTableRetire(t *testing.T) {
	table := newTrackTable()
	table.acquire(200, 0)
	table.acquire(600, 0.2)

	table.retire(0.3)
	assert.Equal(t, 2, table.activeCount())
	table.retire(0.31)
	assert.Equal(t, 1, table.activeCount())

	table.reset()
	assert.Zero(t, table.activeCount())
	assert.Equal(t, 1, table.acquire(200, 0).id)
}
