// Command pitchtrack runs the auditory pipeline over a WAV or Ogg Opus file
// and prints one JSON object per analysis frame.
//
// Usage:
//
//	pitchtrack input.wav
//	pitchtrack -content music -pitch ridge -sources input.wav
//	pitchtrack -config pipeline.json -all input.wav > frames.jsonl
//	pitchtrack -content speech voice.opus
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/grouping"
	"github.com/RyanBlaney/sonido-cochlea/auditory"
	"github.com/RyanBlaney/sonido-cochlea/auditory/config"
	"github.com/RyanBlaney/sonido-cochlea/logging"
	"github.com/RyanBlaney/sonido-cochlea/transcode"
)

const (
	minRequiredArgs = 1

	// samples handed to the pipeline per Push
	pushChunk = 4096
)

// frameRecord is one output line
type frameRecord struct {
	Index        int64                      `json:"index"`
	TimeS        float64                    `json:"time_s"`
	PitchHz      float64                    `json:"pitch_hz"`
	Voiced       bool                       `json:"voiced"`
	State        string                     `json:"state,omitempty"`
	Harmonics    []float64                  `json:"harmonics,omitempty"`
	RawPitchHz   float64                    `json:"raw_pitch_hz,omitempty"`
	RidgePitchHz float64                    `json:"ridge_pitch_hz,omitempty"`
	CentroidHz   float64                    `json:"centroid_hz"`
	Flatness     float64                    `json:"flatness"`
	Sources      []grouping.SourceCandidate `json:"sources,omitempty"`
}

func main() {
	// records go to stdout, so logs must not
	logging.SetGlobalLogger(logging.NewDefaultLoggerTo(os.Stderr))

	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pitchtrack: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("pitchtrack", flag.ContinueOnError)
	configPath := fs.String("config", "", "JSON pipeline config (fields override the content preset)")
	content := fs.String("content", "", "Content preset: speech, music, embedded, general")
	pitch := fs.String("pitch", "", "Pitch source feeding the stabilizer: detector or ridge")
	sources := fs.Bool("sources", false, "Include grouped sources in every record")
	all := fs.Bool("all", false, "Emit unvoiced frames too")
	harmonics := fs.Bool("harmonics", false, "Include harmonic amplitudes")
	maxDuration := fs.Duration("max-duration", 0, "Analyze at most this much audio (0 = all)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pitchtrack [options] input.{wav,opus}\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		return err
	}
	if fs.NArg() < minRequiredArgs {
		fs.Usage()
		return errors.New("missing input file")
	}

	cfg, err := loadConfig(*configPath, *content)
	if err != nil {
		return err
	}
	if *pitch != "" {
		cfg.PitchSource = config.PitchSource(*pitch)
	}
	if *sources {
		cfg.EnableGrouper = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
		logging.SetLevel(level)
	} else {
		return fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	input := fs.Arg(0)
	decoder := transcode.NewDecoder(&transcode.DecoderConfig{MaxDuration: *maxDuration})
	audio, err := decoder.DecodeFile(input)
	if err != nil {
		return err
	}
	cfg.SampleRate = audio.SampleRate

	if err := cfg.Validate(); err != nil {
		return err
	}

	pipeline, err := auditory.NewPipeline(cfg)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(stdout)
	defer out.Flush()
	enc := json.NewEncoder(out)

	emitted := 0
	pipeline.SetFrameHandler(func(s *auditory.Snapshot) error {
		if !s.PitchValid && !*all {
			return nil
		}
		emitted++
		return enc.Encode(newRecord(s, *sources, *harmonics))
	})

	start := time.Now()
	for offset := 0; offset < len(audio.PCM); offset += pushChunk {
		end := min(offset+pushChunk, len(audio.PCM))
		if _, err := pipeline.Push(audio.PCM[offset:end]); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}

	logging.Info("Analysis complete", logging.Fields{
		"input":    input,
		"duration": audio.Duration,
		"frames":   pipeline.Ticks(),
		"emitted":  emitted,
		"elapsed":  time.Since(start),
	})
	return nil
}

func loadConfig(path, content string) (*config.Config, error) {
	if path == "" {
		return config.ContentOptimizedConfig(config.ContentType(content)), nil
	}
	if content != "" {
		return nil, errors.New("-config and -content are mutually exclusive; set content_type in the file")
	}
	return config.LoadConfig(path)
}

func newRecord(s *auditory.Snapshot, withSources, withHarmonics bool) frameRecord {
	rec := frameRecord{
		Index:   s.Index,
		TimeS:   s.Timestamp,
		PitchHz: s.Pitch.F0Hz,
		Voiced:  s.PitchValid,
		State:   s.StabilizerState.String(),

		CentroidHz: s.Shape.CentroidHz,
		Flatness:   s.Shape.Flatness,
	}
	if s.DetectorValid {
		rec.RawPitchHz = s.Detector.F0Hz
	}
	if s.RidgeValid {
		rec.RidgePitchHz = s.Ridge.F0Hz
	}
	if withHarmonics && s.PitchValid {
		rec.Harmonics = append([]float64(nil), s.Pitch.Harmonics[:s.Pitch.NumHarmonics]...)
	}
	if withSources && len(s.Sources) > 0 {
		rec.Sources = append([]grouping.SourceCandidate(nil), s.Sources...)
	}
	return rec
}
