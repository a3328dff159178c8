package transcode

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// DecodeWAV reads an integer PCM WAV stream, scales samples to [-1, 1] by the
// source bit depth and mixes them to mono
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV stream", ErrUnsupportedFormat)
	}
	if decoder.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV audio format %d, only integer PCM is read", ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV samples: %w", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, ErrEmptyInput
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	bitDepth := int(decoder.BitDepth)

	interleaved := IntToFloat(buf, bitDepth)
	pcm := MixToMono(nil, interleaved, channels)

	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   samplesDuration(len(pcm), sampleRate),
		Timestamp:  time.Now(),
		Metadata: &StreamMetadata{
			Format:     "wav",
			Codec:      "pcm",
			SampleRate: sampleRate,
			Channels:   channels,
			BitDepth:   bitDepth,
			Timestamp:  time.Now(),
		},
	}, nil
}

// DecodeWAVFile opens and decodes a WAV file
func DecodeWAVFile(path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	data, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	data.Metadata.URL = path
	data.Timestamp = fileTimestamp(path)
	return data, nil
}

// IntToFloat scales integer samples of the given bit depth to [-1, 1]. 8-bit
// WAV data is unsigned and is re-centred first.
func IntToFloat(buf *audio.IntBuffer, bitDepth int) []float64 {
	out := make([]float64, len(buf.Data))
	if bitDepth == 8 {
		for i, v := range buf.Data {
			out[i] = float64(v-128) / 128.0
		}
		return out
	}

	if bitDepth <= 0 || bitDepth > 32 {
		bitDepth = 16
	}
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range buf.Data {
		out[i] = float64(v) * scale
	}
	return out
}

// EncodeWAV writes mono samples in [-1, 1] as 16-bit PCM
func EncodeWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	const bitDepth = 16
	const fullScale = 1<<(bitDepth-1) - 1

	data := make([]int, len(samples))
	for i, v := range samples {
		v = max(-1, min(1, v))
		data[i] = int(v * fullScale)
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}
