package harmonic

import (
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
	"github.com/RyanBlaney/sonido-cochlea/logging"
)

// DetectorConfig holds the thresholds of the single-source detector
type DetectorConfig struct {
	MinAmplitude           float64 `json:"min_amplitude"`
	MinPeakFalloffNorm     float64 `json:"min_peak_falloff_norm"`
	HarmonicToleranceCents float64 `json:"harmonic_tolerance_cents"`
	AllowSinglePeakMode    bool    `json:"allow_single_peak_mode"`

	// MinTotalContinuationAmplitude is the summed harmonic amplitude a
	// continuation must reach; zero means MinAmplitude
	MinTotalContinuationAmplitude float64 `json:"min_total_continuation_amplitude"`
	ContinuationSearchRadius      int     `json:"continuation_search_radius"`
}

// DefaultDetectorConfig returns the default detector thresholds
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		MinAmplitude:             0.05,
		MinPeakFalloffNorm:       0.1,
		HarmonicToleranceCents:   50.0,
		AllowSinglePeakMode:      true,
		ContinuationSearchRadius: 3,
	}
}

// Detector estimates one dominant pitch per frame. It runs a harmonic sieve
// over peak islands and, when the previous frame had a pitch, a cheaper
// continuation that follows the ridge near the previous fundamental. The two
// answers are merged when they agree and otherwise the stronger one is kept.
type Detector struct {
	config DetectorConfig
	peaks  *PeakIslands
	sieve  *HarmonicSieve

	prevF0 float64
	logger logging.Logger
}

// NewDetector creates a detector with the given thresholds
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.HarmonicToleranceCents <= 0 {
		cfg.HarmonicToleranceCents = DefaultDetectorConfig().HarmonicToleranceCents
	}
	if cfg.ContinuationSearchRadius < 0 {
		cfg.ContinuationSearchRadius = 0
	}

	d := &Detector{
		config: cfg,
		peaks:  NewPeakIslands(cfg.MinAmplitude, cfg.MinPeakFalloffNorm),
		sieve:  NewHarmonicSieve(cfg.HarmonicToleranceCents, cfg.AllowSinglePeakMode, cfg.MinAmplitude),
		logger: logging.WithFields(logging.Fields{
			"component": "harmonic_detector",
		}),
	}

	d.logger.Debug("Harmonic detector configured", logging.Fields{
		"min_amplitude":   cfg.MinAmplitude,
		"tolerance_cents": cfg.HarmonicToleranceCents,
		"single_peak":     cfg.AllowSinglePeakMode,
	})

	return d
}

// Config returns the detector thresholds
func (d *Detector) Config() DetectorConfig {
	return d.config
}

// ExtractPeaks returns the peak islands of frame. The slice is reused by the
// next call.
func (d *Detector) ExtractPeaks(frame *cochlear.Frame) []Peak {
	return d.peaks.Extract(frame.Envelope, frame.BandCenterHz)
}

// Sieve runs the harmonic sieve on frame
func (d *Detector) Sieve(frame *cochlear.Frame) (PitchResult, bool) {
	peaks := d.ExtractPeaks(frame)
	if len(peaks) == 0 {
		return PitchResult{}, false
	}
	return d.sieve.Evaluate(peaks, frame.Envelope, frame.BandCenterHz)
}

// Continue re-acquires the ridge near prevF0 and re-measures its harmonics
func (d *Detector) Continue(frame *cochlear.Frame, prevF0 float64) (PitchResult, bool) {
	env := frame.Envelope
	centers := frame.BandCenterHz
	n := min(len(env), len(centers))
	if prevF0 <= 0 || n == 0 {
		return PitchResult{}, false
	}
	minAmp := d.config.MinAmplitude

	start := nearestBand(centers[:n], prevF0)
	if env[start] < minAmp {
		start = d.probe(env[:n], start)
		if start < 0 {
			return PitchResult{}, false
		}
	}

	lo, hi := start, start
	for lo > 0 && env[lo-1] >= minAmp {
		lo--
	}
	for hi < n-1 && env[hi+1] >= minAmp {
		hi++
	}

	weighted, total := 0.0, 0.0
	for b := lo; b <= hi; b++ {
		e := env[b] * env[b]
		weighted += e * centers[b]
		total += e
	}
	if total <= 0 {
		return PitchResult{}, false
	}
	f0 := weighted / total

	if common.AbsCents(prevF0, f0) > 2.0*d.config.HarmonicToleranceCents {
		return PitchResult{}, false
	}

	result := PitchResult{F0Hz: f0}
	topHz := centers[n-1] * common.RatioFromCents(d.config.HarmonicToleranceCents)
	strong := 0
	sum := 0.0
	for h := 1; h <= MaxHarmonics; h++ {
		target := float64(h) * f0
		if target > topHz {
			break
		}
		amp := env[nearestBand(centers[:n], target)]
		if amp >= minAmp {
			result.setHarmonic(h, amp)
			strong++
			sum += amp
		}
	}

	minTotal := d.config.MinTotalContinuationAmplitude
	if minTotal <= 0 {
		minTotal = minAmp
	}
	if strong < 2 || sum < minTotal {
		return PitchResult{}, false
	}

	return result, true
}

// probe returns the strongest band within the search radius that clears the
// amplitude floor, or -1
func (d *Detector) probe(env []float64, center int) int {
	best := -1
	bestValue := 0.0
	for offset := 1; offset <= d.config.ContinuationSearchRadius; offset++ {
		for _, b := range [2]int{center - offset, center + offset} {
			if b < 0 || b >= len(env) {
				continue
			}
			if env[b] >= d.config.MinAmplitude && env[b] > bestValue {
				best = b
				bestValue = env[b]
			}
		}
	}
	return best
}

// Detect combines the sieve and continuation for this frame and remembers the
// chosen fundamental for the next call
func (d *Detector) Detect(frame *cochlear.Frame) (PitchResult, bool) {
	sieved, sieveOK := d.Sieve(frame)

	var continued PitchResult
	continueOK := false
	if d.prevF0 > 0 {
		continued, continueOK = d.Continue(frame, d.prevF0)
	}

	var result PitchResult
	switch {
	case sieveOK && continueOK:
		result = d.combine(sieved, continued)
	case sieveOK:
		result = sieved
	case continueOK:
		result = continued
	default:
		d.prevF0 = 0
		return PitchResult{}, false
	}

	d.prevF0 = result.F0Hz
	return result, true
}

func (d *Detector) combine(sieved, continued PitchResult) PitchResult {
	if common.AbsCents(sieved.F0Hz, continued.F0Hz) <= d.config.HarmonicToleranceCents {
		merged := sieved
		merged.NumHarmonics = max(sieved.NumHarmonics, continued.NumHarmonics)
		for i := 0; i < merged.NumHarmonics; i++ {
			merged.Harmonics[i] = math.Max(sieved.Harmonics[i], continued.Harmonics[i])
		}
		return merged
	}

	if continued.TotalAmplitude() > sieved.TotalAmplitude() {
		return continued
	}
	return sieved
}

// Estimate implements the pipeline's single-pitch estimator contract
func (d *Detector) Estimate(frame *cochlear.Frame) (PitchResult, bool) {
	return d.Detect(frame)
}

// PreviousF0 returns the fundamental carried into the next continuation
func (d *Detector) PreviousF0() float64 {
	return d.prevF0
}

// Reset forgets the previous fundamental
func (d *Detector) Reset() {
	d.prevF0 = 0
}
