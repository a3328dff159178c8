package cochlear

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero frame size means default", func(c *Config) { c.FrameSize = 0 }, false},
		{"too many bands", func(c *Config) { c.NumBands = MaxBands + 1 }, true},
		{"no bands", func(c *Config) { c.NumBands = 0 }, true},
		{"empty range", func(c *Config) { c.FMaxHz = c.FMinHz }, true},
		{"negative gamma", func(c *Config) { c.CompressionGamma = -1 }, true},
		{"empty modulation band", func(c *Config) { c.ModHighHz = c.ModLowHz }, true},
		{"preemphasis of one", func(c *Config) { c.Preemphasis = 1 }, true},
		{"preemphasis ignored when off", func(c *Config) { c.UsePreemphasis = false; c.Preemphasis = 1 }, false},
		{"frame not power of two", func(c *Config) { c.FrameSize = 3000 }, true},
		{"frame too large", func(c *Config) { c.FrameSize = 16384 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigNormalized(t *testing.T) {
	cfg := Config{
		NumBands:  0,
		FMinHz:    -10,
		FMaxHz:    30000,
		FrameSize: 100,
	}
	got := cfg.normalized(16000)

	assert.Equal(t, 1, got.NumBands)
	assert.Equal(t, 50.0, got.FMinHz)
	assert.Equal(t, 8000.0, got.FMaxHz)
	assert.Equal(t, 1.0, got.CompressionGamma)
	assert.Equal(t, 0.5, got.ERBBandwidthScale)
	assert.Equal(t, MinFrameSize, got.FrameSize)

	inverted := DefaultConfig()
	inverted.FMinHz = 3000
	inverted.FMaxHz = 1000
	got = inverted.normalized(16000)
	assert.Equal(t, 6000.0, got.FMaxHz)

	big := DefaultConfig()
	big.FrameSize = 1 << 20
	assert.Equal(t, MaxFrameSize, big.normalized(16000).FrameSize)

	require.NoError(t, DefaultConfig().normalized(16000).Validate())
}

func TestFrameHelpers(t *testing.T) {
	frame := NewFrame(4)
	assert.Equal(t, 4, frame.NumBands())

	band, value := frame.MaxBand()
	assert.Equal(t, 0, band, "ties go to the lowest band")
	assert.Equal(t, 0.0, value)

	copy(frame.Envelope, []float64{0.1, 0.7, 0.3, 0.7})
	copy(frame.BandCenterHz, []float64{100, 200, 300, 400})
	frame.ModulationPower[2] = 0.5
	frame.Timestamp = 1.25

	band, value = frame.MaxBand()
	assert.Equal(t, 1, band)
	assert.Equal(t, 0.7, value)

	other := NewFrame(4)
	other.CopyFrom(frame)
	assert.Equal(t, frame, other)

	frame.Clear()
	assert.Equal(t, []float64{0, 0, 0, 0}, frame.Envelope)
	assert.Equal(t, []float64{0, 0, 0, 0}, frame.ModulationPower)
	assert.Equal(t, []float64{100, 200, 300, 400}, frame.BandCenterHz)
	assert.Zero(t, frame.Timestamp)

	empty := NewFrame(-3)
	band, _ = empty.MaxBand()
	assert.Equal(t, -1, band)
}
