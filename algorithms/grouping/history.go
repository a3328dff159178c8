package grouping

import (
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/spectral"
)

// candidate amplitude-modulation rates in Hz
var modulationRatesHz = [maxModulationBins]float64{2, 3, 4, 5, 6, 8, 10}

const (
	minCoherenceFrames  = 3
	minModulationFrames = 6
	flatGroupFloor      = 1e-10

	// a group whose spread is below this share of its squared mean is flat
	flatGroupRelative = 1e-6
)

// History is a fixed-capacity ring of past envelope snapshots
type History struct {
	envelopes  [][]float64
	timestamps []float64
	capacity   int
	head       int
	count      int
	numBands   int

	// scratch, oldest first
	groupSeries []float64
	bandSeries  []float64
	probe       spectral.Goertzel
}

// NewHistory allocates a ring of capacity snapshots of up to maxBands bands
func NewHistory(capacity, maxBands int) *History {
	capacity = common.ClampInt(capacity, 1, MaxHistory)
	if maxBands < 1 {
		maxBands = 1
	}

	backing := make([]float64, capacity*maxBands)
	envelopes := make([][]float64, capacity)
	for i := range envelopes {
		envelopes[i] = backing[i*maxBands : (i+1)*maxBands : (i+1)*maxBands]
	}

	return &History{
		envelopes:   envelopes,
		timestamps:  make([]float64, capacity),
		capacity:    capacity,
		head:        capacity - 1,
		groupSeries: make([]float64, capacity),
		bandSeries:  make([]float64, capacity),
	}
}

// Push stores the envelope and timestamp of frame, evicting the oldest entry
// once full
func (h *History) Push(frame *cochlear.Frame) {
	h.head = (h.head + 1) % h.capacity
	slot := h.envelopes[h.head]
	n := copy(slot, frame.Envelope)
	h.numBands = n
	h.timestamps[h.head] = frame.Timestamp
	if h.count < h.capacity {
		h.count++
	}
}

// Len returns the number of stored snapshots
func (h *History) Len() int {
	return h.count
}

// Capacity returns the ring size
func (h *History) Capacity() int {
	return h.capacity
}

// index maps k (0 = oldest) to a ring slot
func (h *History) index(k int) int {
	return (h.head + h.capacity - (h.count - 1 - k)) % h.capacity
}

// Timestamp returns the timestamp of entry k, oldest first
func (h *History) Timestamp(k int) float64 {
	return h.timestamps[h.index(k)]
}

// Span returns the time between the oldest and newest entries
func (h *History) Span() float64 {
	if h.count < 2 {
		return 0
	}
	return h.Timestamp(h.count-1) - h.Timestamp(0)
}

// TickRate estimates the frame rate from the stored timestamps
func (h *History) TickRate() float64 {
	span := h.Span()
	if span <= 0 {
		return 0
	}
	return float64(h.count-1) / span
}

// Reset forgets every entry
func (h *History) Reset() {
	h.head = h.capacity - 1
	h.count = 0
	h.numBands = 0
}

// fillGroupSeries writes the per-entry mean envelope of bands into the group
// scratch and returns it
func (h *History) fillGroupSeries(bands []int) []float64 {
	series := h.groupSeries[:h.count]
	for k := range series {
		slot := h.envelopes[h.index(k)]
		sum := 0.0
		for _, b := range bands {
			if b >= 0 && b < h.numBands {
				sum += slot[b]
			}
		}
		series[k] = sum / float64(len(bands))
	}
	return series
}

// Coherence measures how well each band's envelope follows the group mean over
// the stored history: the mean over bands of (r+1)/2, r being the Pearson
// correlation with the group mean. It is zero with fewer than three entries,
// a window shorter than minWindowS, or a group that is flat in absolute
// terms or relative to its mean.
func (h *History) Coherence(bands []int, minWindowS float64) float64 {
	if h.count < minCoherenceFrames || len(bands) == 0 {
		return 0
	}
	if h.Span() < minWindowS {
		return 0
	}

	group := h.fillGroupSeries(bands)
	mean := common.Mean(group)
	deviation := 0.0
	for _, v := range group {
		deviation += (v - mean) * (v - mean)
	}
	if deviation < math.Max(flatGroupFloor, flatGroupRelative*mean*mean*float64(h.count)) {
		return 0
	}

	// sum of squares floor expressed as a sample variance
	minVariance := flatGroupFloor / float64(h.count-1)

	sum := 0.0
	used := 0
	series := h.bandSeries[:h.count]
	for _, b := range bands {
		for k := range series {
			if b >= 0 && b < h.numBands {
				series[k] = h.envelopes[h.index(k)][b]
			} else {
				series[k] = 0
			}
		}

		r, ok := common.Pearson(series, group, minVariance)
		if !ok {
			continue
		}
		sum += 0.5*r + 0.5
		used++
	}

	if used == 0 {
		return 0
	}
	return common.Clamp(sum/float64(used), 0, 1)
}

// ModulationRate returns the strongest of the first bins candidate AM rates
// in the detrended group-mean envelope, or zero with fewer than six entries
func (h *History) ModulationRate(bands []int, bins int) float64 {
	if h.count < minModulationFrames || len(bands) == 0 || bins <= 0 {
		return 0
	}
	rate := h.TickRate()
	if rate <= 0 {
		return 0
	}

	group := h.fillGroupSeries(bands)
	mean := common.Mean(group)
	for k := range group {
		group[k] -= mean
	}

	h.probe.SetSampleRate(rate)
	hz, _ := h.probe.Strongest(group, modulationRatesHz[:min(bins, maxModulationBins)])
	return hz
}
