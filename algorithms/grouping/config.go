package grouping

import (
	"errors"
	"fmt"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
)

// Capacity limits fixed at configuration time
const (
	MaxHarmonics = 31
	MaxHistory   = 32
	MaxSources   = 8
	MaxTracks    = 8

	maxModulationBins = 7
)

// ErrInvalidConfig wraps every range violation reported by Validate
var ErrInvalidConfig = errors.New("invalid grouping config")

// Config holds the multi-source grouper settings
type Config struct {
	FMinHz                  float64 `json:"fmin_hz"`
	FMaxHz                  float64 `json:"fmax_hz"`
	F0MinHz                 float64 `json:"f0_min_hz"`
	F0MaxHz                 float64 `json:"f0_max_hz"`
	MaxHarmonics            int     `json:"max_harmonics"`
	HarmonicToleranceCents  float64 `json:"harmonic_tolerance_cents"`
	MinHarmonicity          float64 `json:"min_harmonicity"`
	MinAmplitude            float64 `json:"min_amplitude"`
	ReusePenalty            float64 `json:"reuse_penalty"`
	HistoryFrames           int     `json:"history_frames"`
	CoherenceMinWindowS     float64 `json:"coherence_min_window_s"`
	ModulationBins          int     `json:"modulation_bins"`
	InferMissingFundamental bool    `json:"infer_missing_fundamental"`
	SmoothAlpha             float64 `json:"smooth_alpha"`
	MaxSources              int     `json:"max_sources"`
}

// DefaultConfig returns the default grouper settings
func DefaultConfig() Config {
	return Config{
		FMinHz:                  80.0,
		FMaxHz:                  4000.0,
		F0MinHz:                 80.0,
		F0MaxHz:                 1000.0,
		MaxHarmonics:            12,
		HarmonicToleranceCents:  35.0,
		MinHarmonicity:          0.3,
		MinAmplitude:            0.02,
		ReusePenalty:            0.45,
		HistoryFrames:           16,
		CoherenceMinWindowS:     0.1,
		ModulationBins:          7,
		InferMissingFundamental: true,
		SmoothAlpha:             0.35,
		MaxSources:              4,
	}
}

// Validate reports settings that would be clamped or are unusable
func (c Config) Validate() error {
	var errs []error

	if c.FMinHz <= 0 || c.FMaxHz <= c.FMinHz {
		errs = append(errs, fmt.Errorf("frequency range [%.1f, %.1f] Hz is empty", c.FMinHz, c.FMaxHz))
	}
	if c.F0MinHz <= 0 || c.F0MaxHz < c.F0MinHz {
		errs = append(errs, fmt.Errorf("f0 range [%.1f, %.1f] Hz is empty", c.F0MinHz, c.F0MaxHz))
	}
	if c.MaxHarmonics < 1 || c.MaxHarmonics > MaxHarmonics {
		errs = append(errs, fmt.Errorf("max_harmonics %d outside [1, %d]", c.MaxHarmonics, MaxHarmonics))
	}
	if c.HarmonicToleranceCents <= 0 {
		errs = append(errs, fmt.Errorf("harmonic_tolerance_cents must be positive, got %f", c.HarmonicToleranceCents))
	}
	if c.HistoryFrames < 1 || c.HistoryFrames > MaxHistory {
		errs = append(errs, fmt.Errorf("history_frames %d outside [1, %d]", c.HistoryFrames, MaxHistory))
	}
	if c.ModulationBins < 0 || c.ModulationBins > maxModulationBins {
		errs = append(errs, fmt.Errorf("modulation_bins %d outside [0, %d]", c.ModulationBins, maxModulationBins))
	}
	if c.MaxSources < 1 || c.MaxSources > MaxSources {
		errs = append(errs, fmt.Errorf("max_sources %d outside [1, %d]", c.MaxSources, MaxSources))
	}
	if c.ReusePenalty < 0 || c.ReusePenalty > 1 {
		errs = append(errs, fmt.Errorf("reuse_penalty must be in [0, 1], got %f", c.ReusePenalty))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func (c Config) normalized() Config {
	out := c
	def := DefaultConfig()

	if out.FMinHz <= 0 {
		out.FMinHz = def.FMinHz
	}
	if out.FMaxHz <= out.FMinHz {
		out.FMaxHz = out.FMinHz * 2
	}
	if out.F0MinHz <= 0 {
		out.F0MinHz = def.F0MinHz
	}
	if out.F0MaxHz < out.F0MinHz {
		out.F0MaxHz = out.F0MinHz
	}
	out.MaxHarmonics = common.ClampInt(out.MaxHarmonics, 1, MaxHarmonics)
	if out.HarmonicToleranceCents <= 0 {
		out.HarmonicToleranceCents = def.HarmonicToleranceCents
	}
	out.HistoryFrames = common.ClampInt(out.HistoryFrames, 1, MaxHistory)
	out.ModulationBins = common.ClampInt(out.ModulationBins, 0, maxModulationBins)
	out.MaxSources = common.ClampInt(out.MaxSources, 1, MaxSources)

	return out
}
