package grouping

import (
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
)

// SourceCandidate is one persistent tracked source as reported to consumers
type SourceCandidate struct {
	ID                int     `json:"id"`
	PitchHz           float64 `json:"pitch_hz"`
	Harmonicity       float64 `json:"harmonicity"`
	Amplitude         float64 `json:"amplitude"`
	CentroidHz        float64 `json:"centroid_hz"`
	BandwidthHz       float64 `json:"bandwidth_hz"`
	TemporalCoherence float64 `json:"temporal_coherence"`
	ModulationRateHz  float64 `json:"modulation_rate_hz"`
}

// Track persistence constants
const (
	trackMatchHz        = 80.0
	trackRetireSeconds  = 0.3
	modulationSnapHz    = 1.5
	duplicatePitchCents = 10.0
)

type track struct {
	active bool
	fresh  bool
	id     int
	tick   uint64

	pitchHz           float64
	amplitude         float64
	centroidHz        float64
	bandwidthHz       float64
	harmonicity       float64
	temporalCoherence float64
	modulationRateHz  float64

	lastTimestamp float64
}

// trackTable is a fixed set of track slots with monotonically increasing ids
type trackTable struct {
	slots  [MaxTracks]track
	nextID int
}

func newTrackTable() trackTable {
	return trackTable{nextID: 1}
}

// acquire returns the active track nearest to pitchHz within trackMatchHz, or
// starts a new track in a free slot, or replaces the stalest one
func (t *trackTable) acquire(pitchHz, timestamp float64) *track {
	best := -1
	bestDelta := math.Inf(1)
	for i := range t.slots {
		if !t.slots[i].active {
			continue
		}
		delta := math.Abs(t.slots[i].pitchHz - pitchHz)
		if delta < bestDelta {
			bestDelta = delta
			best = i
		}
	}
	if best >= 0 && bestDelta < trackMatchHz {
		return &t.slots[best]
	}

	slot := -1
	for i := range t.slots {
		if !t.slots[i].active {
			slot = i
			break
		}
	}
	if slot < 0 {
		slot = 0
		for i := 1; i < len(t.slots); i++ {
			if t.slots[i].lastTimestamp < t.slots[slot].lastTimestamp {
				slot = i
			}
		}
	}

	t.slots[slot] = track{
		active:        true,
		fresh:         true,
		id:            t.nextID,
		lastTimestamp: timestamp,
	}
	t.nextID++
	return &t.slots[slot]
}

// update folds an accepted evaluation into the track. The first update copies
// the values; later ones use an EMA, except that the modulation rate snaps to
// the new value on large jumps.
func (tr *track) update(ev *Evaluation, alpha, timestamp float64) {
	a := common.Clamp(alpha, 0, 1)
	if tr.fresh {
		tr.pitchHz = ev.F0Hz
		tr.amplitude = ev.Amplitude
		tr.centroidHz = ev.CentroidHz
		tr.bandwidthHz = ev.BandwidthHz
		tr.harmonicity = ev.Harmonicity
		tr.temporalCoherence = ev.TemporalCoherence
		tr.modulationRateHz = ev.ModulationRateHz
		tr.fresh = false
	} else {
		tr.pitchHz = ema(tr.pitchHz, ev.F0Hz, a)
		tr.amplitude = ema(tr.amplitude, ev.Amplitude, a)
		tr.centroidHz = ema(tr.centroidHz, ev.CentroidHz, a)
		tr.bandwidthHz = ema(tr.bandwidthHz, ev.BandwidthHz, a)
		tr.harmonicity = ema(tr.harmonicity, ev.Harmonicity, a)
		tr.temporalCoherence = ema(tr.temporalCoherence, ev.TemporalCoherence, a)
		if math.Abs(tr.modulationRateHz-ev.ModulationRateHz) > modulationSnapHz {
			tr.modulationRateHz = ev.ModulationRateHz
		} else {
			tr.modulationRateHz = ema(tr.modulationRateHz, ev.ModulationRateHz, a)
		}
	}
	tr.lastTimestamp = timestamp
}

func (tr *track) candidate() SourceCandidate {
	coherence := common.Clamp(tr.temporalCoherence, 0, 1)
	return SourceCandidate{
		ID:                tr.id,
		PitchHz:           tr.pitchHz,
		Harmonicity:       common.Clamp(tr.harmonicity*(0.5+0.5*tr.temporalCoherence), 0, 1),
		Amplitude:         tr.amplitude,
		CentroidHz:        tr.centroidHz,
		BandwidthHz:       tr.bandwidthHz,
		TemporalCoherence: coherence,
		ModulationRateHz:  tr.modulationRateHz,
	}
}

// retire deactivates tracks not updated within trackRetireSeconds of now
func (t *trackTable) retire(now float64) {
	for i := range t.slots {
		if t.slots[i].active && now-t.slots[i].lastTimestamp > trackRetireSeconds {
			t.slots[i].active = false
		}
	}
}

// activeCount returns the number of live tracks
func (t *trackTable) activeCount() int {
	n := 0
	for i := range t.slots {
		if t.slots[i].active {
			n++
		}
	}
	return n
}

func (t *trackTable) reset() {
	*t = newTrackTable()
}

func ema(previous, current, alpha float64) float64 {
	return alpha*current + (1.0-alpha)*previous
}
