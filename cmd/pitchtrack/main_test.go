package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-cochlea/logging"
	"github.com/RyanBlaney/sonido-cochlea/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeToneWAV(t *testing.T) string {
	t.Helper()
	samples := make([]float64, 16000)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/16000)
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, transcode.EncodeWAV(f, samples, 16000))
	return path
}

func decodeRecords(t *testing.T, out []byte) []frameRecord {
	t.Helper()
	var records []frameRecord
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		var rec frameRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestRunPureTone(t *testing.T) {
	logging.SetGlobalLogger(nil)
	path := writeToneWAV(t)

	cfgPath := filepath.Join(t.TempDir(), "single.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{"grouping": {"max_sources": 1}}`), 0o644))

	var out bytes.Buffer
	require.NoError(t, run([]string{"-config", cfgPath, "-sources", "-harmonics", path}, &out))

	records := decodeRecords(t, out.Bytes())
	require.Len(t, records, 12)
	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Index)
		assert.True(t, rec.Voiced)
		assert.InDelta(t, 220, rec.PitchHz, 3)
		assert.InDelta(t, 220, rec.RawPitchHz, 3)
		assert.NotEmpty(t, rec.Harmonics)
		assert.Less(t, rec.Flatness, 0.5)
		require.Len(t, rec.Sources, 1, "record %d", i)
		assert.Equal(t, 1, rec.Sources[0].ID)
		assert.InDelta(t, 220, rec.Sources[0].PitchHz, 5)
	}
	assert.Equal(t, "warming_up", records[0].State)
	assert.Equal(t, "stable", records[len(records)-1].State)
}

func TestRunMaxDuration(t *testing.T) {
	logging.SetGlobalLogger(nil)
	path := writeToneWAV(t)

	var out bytes.Buffer
	require.NoError(t, run([]string{"-max-duration", "500ms", "-all", path}, &out))

	records := decodeRecords(t, out.Bytes())
	// frames end at 4096 samples and then every 1024 up to 8000
	assert.Len(t, records, 4)
	for _, rec := range records {
		assert.Empty(t, rec.Sources)
		assert.Empty(t, rec.Harmonics)
	}
}

func TestRunErrors(t *testing.T) {
	logging.SetGlobalLogger(nil)
	path := writeToneWAV(t)

	tests := []struct {
		name string
		args []string
	}{
		{"no input", nil},
		{"unknown flag", []string{"-bogus", path}},
		{"config and content", []string{"-config", "x.json", "-content", "music", path}},
		{"bad log level", []string{"-log-level", "loud", path}},
		{"unsupported input", []string{"song.flac"}},
		{"unknown pitch source", []string{"-pitch", "oracle", path}},
		{"missing config file", []string{"-config", filepath.Join(t.TempDir(), "none.json"), path}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, run(tt.args, &out))
			assert.Zero(t, out.Len())
		})
	}
}
