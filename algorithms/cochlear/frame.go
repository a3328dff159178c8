package cochlear

// Frame is one analysis tick of the filterbank. All slices share the band
// count of the analyzer that created the frame and are overwritten in place.
type Frame struct {
	Envelope        []float64 `json:"envelope"`
	FinePhase       []float64 `json:"fine_phase"`
	ModulationPower []float64 `json:"modulation_power"`
	BandCenterHz    []float64 `json:"band_center_hz"`
	Timestamp       float64   `json:"timestamp"`
}

// NewFrame allocates a frame for numBands bands
func NewFrame(numBands int) *Frame {
	if numBands < 0 {
		numBands = 0
	}
	return &Frame{
		Envelope:        make([]float64, numBands),
		FinePhase:       make([]float64, numBands),
		ModulationPower: make([]float64, numBands),
		BandCenterHz:    make([]float64, numBands),
	}
}

// NumBands returns the band count
func (f *Frame) NumBands() int {
	return len(f.Envelope)
}

// MaxBand returns the index and value of the strongest envelope band, or -1
// for an empty frame
func (f *Frame) MaxBand() (int, float64) {
	best := -1
	bestValue := 0.0
	for i, v := range f.Envelope {
		if best < 0 || v > bestValue {
			best = i
			bestValue = v
		}
	}
	return best, bestValue
}

// CopyFrom overwrites f with src. Lengths must match.
func (f *Frame) CopyFrom(src *Frame) {
	copy(f.Envelope, src.Envelope)
	copy(f.FinePhase, src.FinePhase)
	copy(f.ModulationPower, src.ModulationPower)
	copy(f.BandCenterHz, src.BandCenterHz)
	f.Timestamp = src.Timestamp
}

// Clear zeroes every per-band value but keeps the band centres
func (f *Frame) Clear() {
	for i := range f.Envelope {
		f.Envelope[i] = 0
		f.FinePhase[i] = 0
		f.ModulationPower[i] = 0
	}
	f.Timestamp = 0
}
