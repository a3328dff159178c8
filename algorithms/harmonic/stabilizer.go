package harmonic

import (
	"github.com/RyanBlaney/sonido-cochlea/logging"
)

// MaxWarmupFrames is the capacity of the warm-up buffer
const MaxWarmupFrames = 8

// StabilizerState is the phase of the stabilizer
type StabilizerState int

const (
	// WarmingUp averages the first valid detections of a segment
	WarmingUp StabilizerState = iota
	// Stable passes detections straight through
	Stable
)

func (s StabilizerState) String() string {
	switch s {
	case WarmingUp:
		return "warming_up"
	case Stable:
		return "stable"
	default:
		return "unknown"
	}
}

// StabilizerConfig holds the warm-up length and miss tolerance
type StabilizerConfig struct {
	WarmupFrameCount int `json:"warmup_frame_count"`
	MaxHoldFrames    int `json:"max_hold_frames"`
}

// DefaultStabilizerConfig returns the default stabilizer settings
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		WarmupFrameCount: 4,
		MaxHoldFrames:    3,
	}
}

// Stabilizer smooths a stream of single-source detections.
//
// A segment starts warming up on the first valid detection: each frame emits
// the running mean of the detections so far. After WarmupFrameCount frames it
// becomes stable and passes detections through. Missing frames re-emit the
// last output up to MaxHoldFrames times; one more miss resets to warm-up with
// an unvoiced output.
type Stabilizer struct {
	config StabilizerConfig

	buffer   [MaxWarmupFrames]PitchResult
	buffered int

	warmupComplete bool
	missedFrames   int
	lastOutput     PitchResult
}

// NewStabilizer creates a stabilizer. WarmupFrameCount is clamped to [1, 8].
func NewStabilizer(cfg StabilizerConfig) *Stabilizer {
	if cfg.WarmupFrameCount < 1 {
		cfg.WarmupFrameCount = 1
	}
	if cfg.WarmupFrameCount > MaxWarmupFrames {
		logging.Warn("Clamping warmup_frame_count", logging.Fields{
			"component": "pitch_stabilizer",
			"requested": cfg.WarmupFrameCount,
			"limit":     MaxWarmupFrames,
		})
		cfg.WarmupFrameCount = MaxWarmupFrames
	}
	if cfg.MaxHoldFrames < 0 {
		cfg.MaxHoldFrames = 0
	}
	return &Stabilizer{config: cfg}
}

// Update feeds one frame. valid reports whether result is a detection.
// The boolean return is false when the output is unvoiced.
func (s *Stabilizer) Update(result PitchResult, valid bool) (PitchResult, bool) {
	if valid && result.IsVoiced() {
		return s.processValid(result), true
	}
	return s.processMissing()
}

func (s *Stabilizer) processValid(result PitchResult) PitchResult {
	s.missedFrames = 0

	if s.warmupComplete {
		s.lastOutput = result
		return result
	}

	if s.buffered < MaxWarmupFrames {
		s.buffer[s.buffered] = result
		s.buffered++
	}
	s.lastOutput = s.average()

	if s.buffered >= s.config.WarmupFrameCount {
		s.warmupComplete = true
		s.buffered = 0
	}
	return s.lastOutput
}

func (s *Stabilizer) processMissing() (PitchResult, bool) {
	holding := s.warmupComplete || s.buffered > 0
	if holding && s.missedFrames < s.config.MaxHoldFrames {
		s.missedFrames++
		return s.lastOutput, true
	}

	s.Reset()
	return PitchResult{}, false
}

// average is the mean of the buffered detections, zero-padding shorter
// harmonic lists to the longest one
func (s *Stabilizer) average() PitchResult {
	var avg PitchResult
	if s.buffered == 0 {
		return avg
	}

	for i := 0; i < s.buffered; i++ {
		avg.NumHarmonics = max(avg.NumHarmonics, s.buffer[i].NumHarmonics)
	}

	for i := 0; i < s.buffered; i++ {
		sample := &s.buffer[i]
		avg.F0Hz += sample.F0Hz
		for h := 0; h < sample.NumHarmonics; h++ {
			avg.Harmonics[h] += sample.Harmonics[h]
		}
	}

	inv := 1.0 / float64(s.buffered)
	avg.F0Hz *= inv
	for h := 0; h < avg.NumHarmonics; h++ {
		avg.Harmonics[h] *= inv
	}
	return avg
}

// State returns the current phase
func (s *Stabilizer) State() StabilizerState {
	if s.warmupComplete {
		return Stable
	}
	return WarmingUp
}

// IsSegmentActive reports whether warm-up has completed for the current segment
func (s *Stabilizer) IsSegmentActive() bool {
	return s.warmupComplete
}

// MissedFrames returns the current run of consecutive misses
func (s *Stabilizer) MissedFrames() int {
	return s.missedFrames
}

// LastOutput returns the most recent emitted value
func (s *Stabilizer) LastOutput() PitchResult {
	return s.lastOutput
}

// Reset returns to warm-up with empty buffers
func (s *Stabilizer) Reset() {
	s.buffered = 0
	s.warmupComplete = false
	s.missedFrames = 0
	s.lastOutput = PitchResult{}
}

// MarshalText encodes the state by name
func (s StabilizerState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
