package cochlear

import (
	"errors"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
)

// Capacity limits fixed at configuration time
const (
	MaxBands        = 128
	MinFrameSize    = 256
	MaxFrameSize    = 8192
	DefaultFrame    = 4096
	HopDivisor      = 4
	magnitudeFloor  = 1e-12
	compressionBias = 1e-9
)

var (
	// ErrInvalidSampleRate is returned when the analyzer is built for a non-positive rate
	ErrInvalidSampleRate = errors.New("sample rate must be positive")

	// ErrInvalidConfig wraps every range violation reported by Validate
	ErrInvalidConfig = errors.New("invalid cochlear config")
)

// Config holds the filterbank and envelope settings
type Config struct {
	NumBands                 int     `json:"num_bands"`
	FMinHz                   float64 `json:"fmin_hz"`
	FMaxHz                   float64 `json:"fmax_hz"`
	EnvelopeLPHz             float64 `json:"envelope_lp_hz"`
	CompressionGamma         float64 `json:"compression_gamma"`
	ModLowHz                 float64 `json:"mod_low_hz"`
	ModHighHz                float64 `json:"mod_high_hz"`
	ERBBandwidthScale        float64 `json:"erb_bandwidth_scale"`
	UsePreemphasis           bool    `json:"use_preemphasis"`
	Preemphasis              float64 `json:"preemphasis"`
	EnvelopeTemporalSmoothHz float64 `json:"envelope_temporal_smooth_hz"`
	FrameSize                int     `json:"frame_size"`
}

// DefaultConfig returns the default analyzer configuration
func DefaultConfig() Config {
	return Config{
		NumBands:                 128,
		FMinHz:                   50.0,
		FMaxHz:                   3500.0,
		EnvelopeLPHz:             100.0,
		CompressionGamma:         1.0,
		ModLowHz:                 1.0,
		ModHighHz:                12.0,
		ERBBandwidthScale:        0.5,
		UsePreemphasis:           true,
		Preemphasis:              0.97,
		EnvelopeTemporalSmoothHz: 5.0,
		FrameSize:                DefaultFrame,
	}
}

// Validate reports settings that would be clamped or are unusable
func (c Config) Validate() error {
	var errs []error

	if c.NumBands < 1 || c.NumBands > MaxBands {
		errs = append(errs, fmt.Errorf("num_bands %d outside [1, %d]", c.NumBands, MaxBands))
	}
	if c.FMinHz <= 0 || c.FMaxHz <= c.FMinHz {
		errs = append(errs, fmt.Errorf("frequency range [%.1f, %.1f] Hz is empty", c.FMinHz, c.FMaxHz))
	}
	if c.CompressionGamma <= 0 {
		errs = append(errs, fmt.Errorf("compression_gamma must be positive, got %f", c.CompressionGamma))
	}
	if c.ERBBandwidthScale <= 0 {
		errs = append(errs, fmt.Errorf("erb_bandwidth_scale must be positive, got %f", c.ERBBandwidthScale))
	}
	if c.ModHighHz <= c.ModLowHz {
		errs = append(errs, fmt.Errorf("modulation band [%.2f, %.2f] Hz is empty", c.ModLowHz, c.ModHighHz))
	}
	if c.UsePreemphasis && (c.Preemphasis < 0 || c.Preemphasis >= 1) {
		errs = append(errs, fmt.Errorf("preemphasis must be in [0, 1), got %f", c.Preemphasis))
	}
	if c.FrameSize != 0 && (!common.IsPowerOfTwo(c.FrameSize) || c.FrameSize < MinFrameSize || c.FrameSize > MaxFrameSize) {
		errs = append(errs, fmt.Errorf("frame_size %d must be a power of two in [%d, %d]", c.FrameSize, MinFrameSize, MaxFrameSize))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// normalized returns a copy with every field forced into its usable range
// for the given sample rate
func (c Config) normalized(sampleRate int) Config {
	out := c
	def := DefaultConfig()

	out.NumBands = common.ClampInt(out.NumBands, 1, MaxBands)

	nyquist := 0.5 * float64(sampleRate)
	if out.FMinHz <= 0 {
		out.FMinHz = def.FMinHz
	}
	if out.FMaxHz > nyquist {
		out.FMaxHz = nyquist
	}
	if out.FMaxHz <= out.FMinHz {
		out.FMaxHz = math.Min(nyquist, out.FMinHz*2)
	}

	if out.CompressionGamma <= 0 {
		out.CompressionGamma = def.CompressionGamma
	}
	if out.ERBBandwidthScale <= 0 {
		out.ERBBandwidthScale = def.ERBBandwidthScale
	}
	if out.UsePreemphasis {
		out.Preemphasis = common.Clamp(out.Preemphasis, 0, 0.999)
	}

	switch {
	case out.FrameSize == 0:
		out.FrameSize = DefaultFrame
	case out.FrameSize < MinFrameSize:
		out.FrameSize = MinFrameSize
	case out.FrameSize > MaxFrameSize:
		out.FrameSize = MaxFrameSize
	case !common.IsPowerOfTwo(out.FrameSize):
		out.FrameSize = common.NextPowerOfTwo(out.FrameSize)
	}

	return out
}
