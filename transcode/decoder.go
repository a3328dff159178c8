package transcode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-cochlea/logging"
)

var (
	// ErrUnsupportedFormat is returned for inputs no decoder here can read
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrEmptyInput is returned when there is nothing to decode
	ErrEmptyInput = errors.New("empty audio input")
)

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64       `json:"-"` // mono samples in [-1, 1]
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"` // channels of the source before mixdown
	Duration   time.Duration   `json:"duration"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   *StreamMetadata `json:"metadata,omitempty"`
}

// StreamMetadata describes where decoded audio came from
type StreamMetadata struct {
	URL        string    `json:"url"`
	Format     string    `json:"format"`
	Codec      string    `json:"codec,omitempty"`
	SampleRate int       `json:"sample_rate,omitempty"`
	Channels   int       `json:"channels,omitempty"`
	BitDepth   int       `json:"bit_depth,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// MaxDuration truncates decoded audio; zero means no limit
	MaxDuration time.Duration `json:"max_duration"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		MaxDuration: 0,
	}
}

// Decoder reads WAV and Ogg Opus files into mono PCM
type Decoder struct {
	config *DecoderConfig
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes an audio file by extension
func (d *Decoder) DecodeFile(filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	logger.Debug("Starting audio file decode")

	var (
		data *AudioData
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".wav", ".wave":
		data, err = DecodeWAVFile(filename)
	case ".opus", ".ogg", ".oga":
		data, err = DecodeOggOpusFile(filename)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		logger.Error(err, "Failed to decode audio file")
		return nil, err
	}

	d.truncate(data)

	logger.Debug("Audio file decoded", logging.Fields{
		"sample_rate": data.SampleRate,
		"channels":    data.Channels,
		"duration":    data.Duration,
	})
	return data, nil
}

// truncate enforces MaxDuration
func (d *Decoder) truncate(data *AudioData) {
	if d.config.MaxDuration <= 0 || data.SampleRate <= 0 {
		return
	}
	limit := int(d.config.MaxDuration.Seconds() * float64(data.SampleRate))
	if limit < len(data.PCM) {
		data.PCM = data.PCM[:limit]
		data.Duration = samplesDuration(limit, data.SampleRate)
	}
}

// GetSupportedFormats returns the file extensions DecodeFile accepts
func (d *Decoder) GetSupportedFormats() []string {
	return []string{"wav", "wave", "opus", "ogg", "oga"}
}

// MixToMono averages interleaved frames of the given channel count into dst,
// which is grown as needed and returned
func MixToMono(dst, interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return append(dst[:0], interleaved...)
	}

	frames := len(interleaved) / channels
	if cap(dst) < frames {
		dst = make([]float64, frames)
	}
	dst = dst[:frames]

	scale := 1.0 / float64(channels)
	for i := range frames {
		sum := 0.0
		for _, v := range interleaved[i*channels : (i+1)*channels] {
			sum += v
		}
		dst[i] = sum * scale
	}
	return dst
}

func samplesDuration(samples, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

func fileTimestamp(path string) time.Time {
	if info, err := os.Stat(path); err == nil {
		return info.ModTime()
	}
	return time.Now()
}
