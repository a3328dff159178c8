package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/filters"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/grouping"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/harmonic"
)

// ContentType selects a tuned preset
type ContentType string

const (
	ContentSpeech   ContentType = "speech"
	ContentMusic    ContentType = "music"
	ContentEmbedded ContentType = "embedded"
	ContentGeneral  ContentType = "general"
)

// PitchSource selects which single-source estimator feeds the stabilizer
type PitchSource string

const (
	PitchSourceDetector PitchSource = "detector"
	PitchSourceRidge    PitchSource = "ridge"
)

// DefaultSampleRate is used when a config does not name one
const DefaultSampleRate = 16000

// ErrInvalidConfig wraps every violation reported by Config.Validate
var ErrInvalidConfig = errors.New("invalid pipeline config")

// Config aggregates the settings of every pipeline stage
type Config struct {
	SampleRate  int         `json:"sample_rate"`
	ContentType ContentType `json:"content_type"`
	PitchSource PitchSource `json:"pitch_source"`

	EnableDetector   bool `json:"enable_detector"`
	EnableRidge      bool `json:"enable_ridge"`
	EnableGrouper    bool `json:"enable_grouper"`
	EnableStabilizer bool `json:"enable_stabilizer"`

	Cochlear   cochlear.Config           `json:"cochlear"`
	Detector   harmonic.DetectorConfig   `json:"detector"`
	Ridge      harmonic.RidgeConfig      `json:"ridge"`
	Grouping   grouping.Config           `json:"grouping"`
	Stabilizer harmonic.StabilizerConfig `json:"stabilizer"`

	LogLevel string `json:"log_level,omitempty"`
}

// DefaultConfig returns the general-purpose configuration
func DefaultConfig() *Config {
	return &Config{
		SampleRate:       DefaultSampleRate,
		ContentType:      ContentGeneral,
		PitchSource:      PitchSourceDetector,
		EnableDetector:   true,
		EnableRidge:      true,
		EnableGrouper:    true,
		EnableStabilizer: true,
		Cochlear:         cochlear.DefaultConfig(),
		Detector:         harmonic.DefaultDetectorConfig(),
		Ridge:            harmonic.DefaultRidgeConfig(),
		Grouping:         grouping.DefaultConfig(),
		Stabilizer:       harmonic.DefaultStabilizerConfig(),
		LogLevel:         "info",
	}
}

// ContentOptimizedConfig returns the preset for contentType. Unknown types get
// the general configuration.
func ContentOptimizedConfig(contentType ContentType) *Config {
	cfg := DefaultConfig()
	cfg.ContentType = contentType

	switch contentType {
	case ContentSpeech:
		cfg.Cochlear.Preemphasis = filters.GetOptimalPreEmphasisCoefficient(filters.ContentSpeech)
		cfg.Grouping.F0MinHz = 70.0
		cfg.Grouping.F0MaxHz = 500.0
		cfg.Grouping.MaxSources = 2
		cfg.Stabilizer.WarmupFrameCount = 4

	case ContentMusic:
		cfg.Cochlear.FMaxHz = 5000.0
		cfg.Cochlear.Preemphasis = filters.GetOptimalPreEmphasisCoefficient(filters.ContentMusic)
		cfg.Cochlear.EnvelopeTemporalSmoothHz = 8.0
		cfg.Detector.HarmonicToleranceCents = 35.0
		cfg.Grouping.FMaxHz = 5000.0
		cfg.Grouping.F0MinHz = 50.0
		cfg.Grouping.F0MaxHz = 1200.0
		cfg.Grouping.MaxHarmonics = 16
		cfg.Grouping.MaxSources = 4
		cfg.Stabilizer.WarmupFrameCount = 3
		cfg.Stabilizer.MaxHoldFrames = 4

	case ContentEmbedded:
		cfg.Cochlear.NumBands = 64
		cfg.Cochlear.FrameSize = 2048
		cfg.Cochlear.Preemphasis = filters.GetOptimalPreEmphasisCoefficient(filters.ContentEmbedded)
		cfg.EnableRidge = false
		cfg.EnableGrouper = false
		cfg.Ridge.MaxSnakes = 16
		cfg.Grouping.HistoryFrames = 8
		cfg.Grouping.MaxSources = 1

	default:
		cfg.ContentType = ContentGeneral
	}

	return cfg
}

// Validate reports out-of-range values of every stage. Components still clamp
// what they are given; Validate exists to surface mistakes before that.
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	switch c.PitchSource {
	case PitchSourceDetector:
		if !c.EnableDetector {
			errs = append(errs, errors.New("pitch_source detector requires enable_detector"))
		}
	case PitchSourceRidge:
		if !c.EnableRidge {
			errs = append(errs, errors.New("pitch_source ridge requires enable_ridge"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown pitch_source %q", c.PitchSource))
	}

	if err := c.Cochlear.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.EnableGrouper {
		if err := c.Grouping.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.EnableStabilizer {
		w := c.Stabilizer.WarmupFrameCount
		if w < 1 || w > harmonic.MaxWarmupFrames {
			errs = append(errs, fmt.Errorf("warmup_frame_count %d outside [1, %d]", w, harmonic.MaxWarmupFrames))
		}
		if c.Stabilizer.MaxHoldFrames < 0 {
			errs = append(errs, fmt.Errorf("max_hold_frames must not be negative, got %d", c.Stabilizer.MaxHoldFrames))
		}
	}
	if c.EnableRidge && (c.Ridge.MaxSnakes < 1 || c.Ridge.MaxSnakes > harmonic.MaxSnakes) {
		errs = append(errs, fmt.Errorf("max_snakes %d outside [1, %d]", c.Ridge.MaxSnakes, harmonic.MaxSnakes))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// LoadConfig reads a JSON config file. Fields absent from the file keep the
// values of the preset named by its content_type, or the general defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	cfg, err := ReadConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// ReadConfig decodes a JSON config from r over the matching preset
func ReadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var head struct {
		ContentType ContentType `json:"content_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg := ContentOptimizedConfig(head.ContentType)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Save writes the config as indented JSON
func (c *Config) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
