package harmonic

import (
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
)

// HarmonicSieve tests every extracted peak as a fundamental and keeps the one
// whose integer multiples line up best with the other peaks.
//
// For candidate f0 and h = 1..MaxHarmonics the closest peak within the cents
// tolerance of h*f0 is matched. A candidate is accepted with at least three
// matches, or with exactly one when single-peak mode is on (pure tones).
// Among accepted candidates the highest matched amplitude wins, then the most
// matches.
type HarmonicSieve struct {
	toleranceCents   float64
	allowSinglePeak  bool
	fillMinAmplitude float64
}

// NewHarmonicSieve creates a sieve. fillMinAmplitude is the envelope floor
// used when back-filling unmatched harmonic slots.
func NewHarmonicSieve(toleranceCents float64, allowSinglePeak bool, fillMinAmplitude float64) *HarmonicSieve {
	return &HarmonicSieve{
		toleranceCents:   toleranceCents,
		allowSinglePeak:  allowSinglePeak,
		fillMinAmplitude: fillMinAmplitude,
	}
}

type sieveScore struct {
	score     float64
	matches   int
	highest   int
	harmonics [MaxHarmonics]float64
}

// Evaluate picks the best fundamental among peaks. envelope and centers are
// used to back-fill harmonic slots the sieve did not match.
func (hs *HarmonicSieve) Evaluate(peaks []Peak, envelope, centers []float64) (PitchResult, bool) {
	var best sieveScore
	bestF0 := 0.0
	found := false

	for _, candidate := range peaks {
		f0 := candidate.FreqHz
		if f0 <= 0 {
			continue
		}

		s := hs.score(f0, peaks)
		if !hs.accepts(s.matches) {
			continue
		}

		if !found || s.score > best.score || (s.score == best.score && s.matches > best.matches) {
			best = s
			bestF0 = f0
			found = true
		}
	}

	if !found {
		return PitchResult{}, false
	}

	result := PitchResult{F0Hz: bestF0, NumHarmonics: best.highest}
	copy(result.Harmonics[:], best.harmonics[:])
	hs.backFill(&result, envelope, centers)

	return result, true
}

func (hs *HarmonicSieve) score(f0 float64, peaks []Peak) sieveScore {
	var s sieveScore
	for h := 1; h <= MaxHarmonics; h++ {
		target := float64(h) * f0

		match := -1
		bestCents := 0.0
		for i, p := range peaks {
			cents := common.AbsCents(target, p.FreqHz)
			if cents <= hs.toleranceCents && (match < 0 || cents < bestCents) {
				bestCents = cents
				match = i
			}
		}

		if match < 0 {
			continue
		}
		amp := peaks[match].Amplitude
		s.harmonics[h-1] = amp
		s.score += amp
		s.matches++
		s.highest = h
	}
	return s
}

func (hs *HarmonicSieve) accepts(matches int) bool {
	return matches >= 3 || (matches == 1 && hs.allowSinglePeak)
}

// backFill copies the nearest band envelope into unmatched slots up to the
// highest matched harmonic when that band clears the amplitude floor
func (hs *HarmonicSieve) backFill(result *PitchResult, envelope, centers []float64) {
	if len(centers) == 0 {
		return
	}
	for h := 1; h <= result.NumHarmonics; h++ {
		if result.Harmonics[h-1] > 0 {
			continue
		}
		band := nearestBand(centers, float64(h)*result.F0Hz)
		if band >= 0 && band < len(envelope) && envelope[band] > hs.fillMinAmplitude {
			result.Harmonics[h-1] = envelope[band]
		}
	}
}
