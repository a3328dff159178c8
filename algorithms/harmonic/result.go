package harmonic

import (
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
)

// MaxHarmonics is the number of harmonic slots carried by a PitchResult
const MaxHarmonics = 16

// PitchResult is a single-source pitch estimate. F0Hz of zero means no
// detection. Harmonics[h-1] holds the amplitude of harmonic h for
// h <= NumHarmonics; zero marks an absent harmonic.
type PitchResult struct {
	F0Hz         float64               `json:"f0_hz"`
	Harmonics    [MaxHarmonics]float64 `json:"harmonics"`
	NumHarmonics int                   `json:"num_harmonics"`
}

// IsVoiced reports whether the result carries a fundamental
func (r PitchResult) IsVoiced() bool {
	return r.F0Hz > 0
}

// H1Amplitude returns the amplitude of the fundamental slot
func (r PitchResult) H1Amplitude() float64 {
	if r.NumHarmonics == 0 {
		return 0.0
	}
	return r.Harmonics[0]
}

// TotalAmplitude sums the populated harmonic slots
func (r PitchResult) TotalAmplitude() float64 {
	total := 0.0
	for i := 0; i < r.NumHarmonics && i < MaxHarmonics; i++ {
		total += r.Harmonics[i]
	}
	return total
}

// Peak is an envelope peak expressed in frequency terms
type Peak struct {
	FreqHz    float64 `json:"freq_hz"`
	Amplitude float64 `json:"amplitude"`
	Band      int     `json:"band"`
}

// nearestBand returns the band whose centre is closest to hz
func nearestBand(centers []float64, hz float64) int {
	return common.NearestIndex(centers, hz)
}

// setHarmonic stores amplitude in slot h (1-based) and widens NumHarmonics
func (r *PitchResult) setHarmonic(h int, amplitude float64) {
	if h < 1 || h > MaxHarmonics {
		return
	}
	r.Harmonics[h-1] = amplitude
	if h > r.NumHarmonics {
		r.NumHarmonics = h
	}
}
