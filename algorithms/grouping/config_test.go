package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty band range", func(c *Config) { c.FMaxHz = 10 }, true},
		{"inverted f0 range", func(c *Config) { c.F0MaxHz = 50 }, true},
		{"too many harmonics", func(c *Config) { c.MaxHarmonics = MaxHarmonics + 1 }, true},
		{"zero tolerance", func(c *Config) { c.HarmonicToleranceCents = 0 }, true},
		{"long history", func(c *Config) { c.HistoryFrames = MaxHistory + 1 }, true},
		{"too many modulation bins", func(c *Config) { c.ModulationBins = 8 }, true},
		{"no sources", func(c *Config) { c.MaxSources = 0 }, true},
		{"reuse penalty above one", func(c *Config) { c.ReusePenalty = 1.5 }, true},
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

func TestNewGrouperClampsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSources = 20
	cfg.MaxHarmonics = 0
	cfg.HistoryFrames = 100
	cfg.F0MaxHz = 10
	cfg.HarmonicToleranceCents = -1

	got := NewGrouper(cfg).Config()
	assert.Equal(t, MaxSources, got.MaxSources)
	assert.Equal(t, 1, got.MaxHarmonics)
	assert.Equal(t, MaxHistory, got.HistoryFrames)
	assert.Equal(t, got.F0MinHz, got.F0MaxHz)
	assert.Equal(t, 35.0, got.HarmonicToleranceCents)
	assert.NoError(t, got.Validate())
}
