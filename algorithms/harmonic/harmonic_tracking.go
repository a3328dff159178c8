package harmonic

import (
	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
	"github.com/RyanBlaney/sonido-cochlea/logging"
)

// Capacity limits for the ridge tracker
const (
	MaxSnakes     = 64
	maxRidgePeaks = 128
)

// RidgeConfig holds the snake tracker settings
type RidgeConfig struct {
	MinPeakAmplitude     float64 `json:"min_peak_amplitude"`
	PeakMergeCents       float64 `json:"peak_merge_cents"`
	SnakeMatchCents      float64 `json:"snake_match_cents"`
	SnakeKeepAliveFrames int     `json:"snake_keep_alive_frames"`
	HarmonicMatchCents   float64 `json:"harmonic_match_cents"`
	MaxSnakes            int     `json:"max_snakes"`
}

// DefaultRidgeConfig returns the default tracker settings
func DefaultRidgeConfig() RidgeConfig {
	return RidgeConfig{
		MinPeakAmplitude:     0.05,
		PeakMergeCents:       25.0,
		SnakeMatchCents:      100.0,
		SnakeKeepAliveFrames: 4,
		HarmonicMatchCents:   100.0,
		MaxSnakes:            32,
	}
}

// Snake is one live spectral ridge
type Snake struct {
	FreqHz    float64 `json:"freq_hz"`
	Amplitude float64 `json:"amplitude"`
	KeepAlive int     `json:"keep_alive"`
}

// RidgeTracker keeps short-lived snakes on local envelope maxima and explains
// the live set as one harmonic stack each frame.
//
// Snakes re-acquire the nearest unclaimed peak within SnakeMatchCents and then
// hill-climb to the local summit. A snake with no match survives for
// SnakeKeepAliveFrames frames, still hill-climbing in place, so ridges persist
// through brief masking.
type RidgeTracker struct {
	config RidgeConfig

	snakes    []Snake
	peaks     []Peak
	peakUsed  []bool
	snakeUsed []bool

	logger logging.Logger
}

// NewRidgeTracker creates a tracker. MaxSnakes is clamped to [1, 64].
func NewRidgeTracker(cfg RidgeConfig) *RidgeTracker {
	logger := logging.WithFields(logging.Fields{
		"component": "ridge_tracker",
	})

	if cfg.MaxSnakes <= 0 || cfg.MaxSnakes > MaxSnakes {
		logger.Warn("Clamping max_snakes", logging.Fields{
			"requested": cfg.MaxSnakes,
			"limit":     MaxSnakes,
		})
		cfg.MaxSnakes = common.ClampInt(cfg.MaxSnakes, 1, MaxSnakes)
	}
	if cfg.SnakeKeepAliveFrames < 0 {
		cfg.SnakeKeepAliveFrames = 0
	}

	return &RidgeTracker{
		config:    cfg,
		snakes:    make([]Snake, 0, MaxSnakes),
		peaks:     make([]Peak, 0, maxRidgePeaks),
		peakUsed:  make([]bool, maxRidgePeaks),
		snakeUsed: make([]bool, MaxSnakes),
		logger:    logger,
	}
}

// Update advances every snake with frame and returns the best harmonic
// explanation of the live snakes
func (rt *RidgeTracker) Update(frame *cochlear.Frame) (PitchResult, bool) {
	rt.detectPeaks(frame)
	rt.updateSnakes(frame)
	return rt.harmonicSet()
}

// Estimate implements the pipeline's single-pitch estimator contract
func (rt *RidgeTracker) Estimate(frame *cochlear.Frame) (PitchResult, bool) {
	return rt.Update(frame)
}

// Snakes returns the live snakes. The slice is reused by the next Update.
func (rt *RidgeTracker) Snakes() []Snake {
	return rt.snakes
}

// Reset removes every snake
func (rt *RidgeTracker) Reset() {
	rt.snakes = rt.snakes[:0]
}

// detectPeaks collects interior local maxima, merging peaks closer than
// PeakMergeCents and keeping the louder one
func (rt *RidgeTracker) detectPeaks(frame *cochlear.Frame) {
	rt.peaks = rt.peaks[:0]

	env := frame.Envelope
	centers := frame.BandCenterHz
	n := min(len(env), len(centers))
	if n < 3 {
		return
	}

	for i := 1; i+1 < n; i++ {
		prev, curr, next := env[i-1], env[i], env[i+1]
		if curr < rt.config.MinPeakAmplitude || !(curr > prev && curr >= next) {
			continue
		}

		peak := Peak{FreqHz: centers[i], Amplitude: curr, Band: i}

		merged := false
		for j := range rt.peaks {
			if common.AbsCents(rt.peaks[j].FreqHz, peak.FreqHz) <= rt.config.PeakMergeCents {
				if peak.Amplitude > rt.peaks[j].Amplitude {
					rt.peaks[j] = peak
				}
				merged = true
				break
			}
		}

		if !merged && len(rt.peaks) < maxRidgePeaks {
			rt.peaks = append(rt.peaks, peak)
		}
	}
}

func (rt *RidgeTracker) updateSnakes(frame *cochlear.Frame) {
	for i := range rt.peaks {
		rt.peakUsed[i] = false
	}

	for s := 0; s < len(rt.snakes); {
		snake := &rt.snakes[s]

		match := -1
		bestCents := 0.0
		for p := range rt.peaks {
			if rt.peakUsed[p] {
				continue
			}
			cents := common.AbsCents(snake.FreqHz, rt.peaks[p].FreqHz)
			if cents <= rt.config.SnakeMatchCents && (match < 0 || cents < bestCents) {
				bestCents = cents
				match = p
			}
		}

		if match >= 0 {
			snake.FreqHz = rt.peaks[match].FreqHz
			snake.Amplitude = rt.peaks[match].Amplitude
			snake.KeepAlive = rt.config.SnakeKeepAliveFrames
			rt.peakUsed[match] = true
			centerOnLocalPeak(frame, snake)
			s++
			continue
		}

		if snake.KeepAlive > 0 {
			snake.KeepAlive--
			centerOnLocalPeak(frame, snake)
			s++
			continue
		}

		// evict by swapping in the last snake
		last := len(rt.snakes) - 1
		rt.snakes[s] = rt.snakes[last]
		rt.snakes = rt.snakes[:last]
	}

	for p := range rt.peaks {
		if rt.peakUsed[p] {
			continue
		}
		if len(rt.snakes) >= rt.config.MaxSnakes {
			break
		}

		rt.snakes = append(rt.snakes, Snake{
			FreqHz:    rt.peaks[p].FreqHz,
			Amplitude: rt.peaks[p].Amplitude,
			KeepAlive: rt.config.SnakeKeepAliveFrames,
		})
		centerOnLocalPeak(frame, &rt.snakes[len(rt.snakes)-1])
	}
}

// centerOnLocalPeak hill-climbs from the snake's nearest band to the local
// envelope maximum
func centerOnLocalPeak(frame *cochlear.Frame, snake *Snake) {
	env := frame.Envelope
	centers := frame.BandCenterHz
	n := min(len(env), len(centers))
	if n == 0 {
		return
	}

	idx := nearestBand(centers[:n], snake.FreqHz)
	for {
		best := idx
		bestValue := env[idx]
		if idx > 0 && env[idx-1] > bestValue {
			best = idx - 1
			bestValue = env[idx-1]
		}
		if idx+1 < n && env[idx+1] > bestValue {
			best = idx + 1
		}
		if best == idx {
			break
		}
		idx = best
	}

	snake.FreqHz = centers[idx]
	snake.Amplitude = env[idx]
}

// harmonicSet tries every snake as the fundamental and scores the other
// snakes that sit on its multiples. The fundamental counts 1.5 times and
// every missing harmonic decays the score by 2%.
func (rt *RidgeTracker) harmonicSet() (PitchResult, bool) {
	if len(rt.snakes) == 0 {
		return PitchResult{}, false
	}

	var best PitchResult
	bestScore := 0.0

	for _, base := range rt.snakes {
		if base.FreqHz <= 0 {
			continue
		}

		used := rt.snakeUsed[:len(rt.snakes)]
		for i := range used {
			used[i] = false
		}

		candidate := PitchResult{F0Hz: base.FreqHz, NumHarmonics: MaxHarmonics}
		score := 0.0

		for h := 1; h <= MaxHarmonics; h++ {
			target := base.FreqHz * float64(h)

			match := -1
			bestCents := 0.0
			for i, other := range rt.snakes {
				if used[i] {
					continue
				}
				cents := common.AbsCents(target, other.FreqHz)
				if cents <= rt.config.HarmonicMatchCents && (match < 0 || cents < bestCents) {
					bestCents = cents
					match = i
				}
			}

			if match < 0 {
				score *= 0.98
				continue
			}

			amp := rt.snakes[match].Amplitude
			used[match] = true
			candidate.Harmonics[h-1] = amp
			if h == 1 {
				score += 1.5 * amp
			} else {
				score += amp
			}
		}

		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	if bestScore <= 0 || best.F0Hz <= 0 {
		return PitchResult{}, false
	}
	return best, true
}
