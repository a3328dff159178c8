package auditory

import (
	"fmt"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/grouping"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/harmonic"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cochlea/auditory/config"
	"github.com/RyanBlaney/sonido-cochlea/logging"
)

// PitchEstimator produces at most one pitch per frame
type PitchEstimator interface {
	Estimate(frame *cochlear.Frame) (harmonic.PitchResult, bool)
}

// SourceEstimator produces every pitched source found in a frame
type SourceEstimator interface {
	Estimate(frame *cochlear.Frame) []grouping.SourceCandidate
}

var (
	_ PitchEstimator  = (*harmonic.Detector)(nil)
	_ PitchEstimator  = (*harmonic.RidgeTracker)(nil)
	_ SourceEstimator = (*grouping.Grouper)(nil)
)

// BandShape summarises the envelope of one frame
type BandShape struct {
	CentroidHz  float64 `json:"centroid_hz"`
	BandwidthHz float64 `json:"bandwidth_hz"`
	Flatness    float64 `json:"flatness"`
}

// Snapshot is everything one tick produced. Frame and Sources point into
// pipeline-owned buffers that the next tick overwrites; use Clone to keep one.
type Snapshot struct {
	Index     int64   `json:"index"`
	Timestamp float64 `json:"timestamp"`

	Frame *cochlear.Frame `json:"-"`
	Shape BandShape       `json:"shape"`

	Detector      harmonic.PitchResult `json:"detector"`
	DetectorValid bool                 `json:"detector_valid"`
	Ridge         harmonic.PitchResult `json:"ridge"`
	RidgeValid    bool                 `json:"ridge_valid"`

	// Pitch is the stabilized output of the selected pitch source
	Pitch           harmonic.PitchResult     `json:"pitch"`
	PitchValid      bool                     `json:"pitch_valid"`
	StabilizerState harmonic.StabilizerState `json:"stabilizer_state"`

	Sources []grouping.SourceCandidate `json:"sources"`
}

// Clone returns a copy that does not share buffers with the pipeline
func (s *Snapshot) Clone() Snapshot {
	out := *s
	if s.Frame != nil {
		out.Frame = cochlear.NewFrame(s.Frame.NumBands())
		out.Frame.CopyFrom(s.Frame)
	}
	out.Sources = append([]grouping.SourceCandidate(nil), s.Sources...)
	return out
}

// FrameHandler receives each snapshot produced by Push. A non-nil error stops
// the current Push and is returned from it.
type FrameHandler func(snapshot *Snapshot) error

// Pipeline runs one analyzer and the enabled estimators tick by tick. It owns
// all of its state and is not safe for concurrent use; run one pipeline per
// stream.
type Pipeline struct {
	config *config.Config

	analyzer *cochlear.Analyzer
	frame    *cochlear.Frame

	detector   *harmonic.Detector
	ridge      *harmonic.RidgeTracker
	grouper    *grouping.Grouper
	stabilizer *harmonic.Stabilizer

	pitch PitchEstimator

	centroid  *spectral.SpectralCentroid
	bandwidth *spectral.SpectralBandwidth
	flatness  *spectral.SpectralFlatness

	snapshot Snapshot
	handler  FrameHandler
	ticks    int64

	logger logging.Logger
}

// NewPipeline builds every enabled stage. cfg may be nil for the defaults.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	logger := logging.WithFields(logging.Fields{
		"component":    "auditory_pipeline",
		"sample_rate":  cfg.SampleRate,
		"content_type": cfg.ContentType,
	})

	if err := cfg.Validate(); err != nil {
		logger.Warn("Pipeline config has out-of-range values", logging.Fields{"reason": err.Error()})
	}

	analyzer, err := cochlear.NewAnalyzer(cfg.Cochlear, cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create cochlear analyzer: %w", err)
	}

	p := &Pipeline{
		config:   cfg,
		analyzer: analyzer,
		frame:    analyzer.NewFrame(),
		logger:   logger,

		centroid:  spectral.NewSpectralCentroid(),
		bandwidth: spectral.NewSpectralBandwidth(),
		flatness:  spectral.NewSpectralFlatness(),
	}

	if cfg.EnableDetector {
		p.detector = harmonic.NewDetector(cfg.Detector)
	}
	if cfg.EnableRidge {
		p.ridge = harmonic.NewRidgeTracker(cfg.Ridge)
	}
	if cfg.EnableGrouper {
		p.grouper = grouping.NewGrouper(cfg.Grouping)
	}
	if cfg.EnableStabilizer {
		p.stabilizer = harmonic.NewStabilizer(cfg.Stabilizer)
	}

	switch {
	case cfg.PitchSource == config.PitchSourceRidge && p.ridge != nil:
		p.pitch = p.ridge
	case p.detector != nil:
		p.pitch = p.detector
	case p.ridge != nil:
		p.pitch = p.ridge
	}

	logger.Info("Auditory pipeline ready", logging.Fields{
		"pitch_source": cfg.PitchSource,
		"detector":     p.detector != nil,
		"ridge":        p.ridge != nil,
		"grouper":      p.grouper != nil,
		"stabilizer":   p.stabilizer != nil,
		"frame_rate":   analyzer.FrameRateHz(),
	})

	return p, nil
}

// SetFrameHandler installs the callback Push invokes per tick
func (p *Pipeline) SetFrameHandler(handler FrameHandler) {
	p.handler = handler
}

// SetPitchEstimator replaces the estimator feeding the stabilizer
func (p *Pipeline) SetPitchEstimator(estimator PitchEstimator) {
	p.pitch = estimator
}

// Push feeds samples and runs a tick for every frame that becomes ready. The
// input is split at hop boundaries so every frame sees only its own samples.
// It returns the number of ticks run.
func (p *Pipeline) Push(samples []float64) (int, error) {
	ticks := 0
	for {
		for {
			snapshot, ok := p.Tick()
			if !ok {
				break
			}
			ticks++
			if p.handler != nil {
				if err := p.handler(snapshot); err != nil {
					return ticks, fmt.Errorf("frame handler failed at tick %d: %w", snapshot.Index, err)
				}
			}
		}

		if len(samples) == 0 {
			return ticks, nil
		}
		chunk := samples[:min(max(p.analyzer.SamplesUntilFrame(), 1), len(samples))]
		samples = samples[len(chunk):]
		p.analyzer.Push(chunk)
	}
}

// Tick runs exactly one frame if the analyzer has one ready. A false return
// means more samples are needed.
func (p *Pipeline) Tick() (*Snapshot, bool) {
	if !p.analyzer.Process(p.frame) {
		return nil, false
	}

	s := &p.snapshot
	s.Index = p.ticks
	s.Timestamp = p.frame.Timestamp
	s.Frame = p.frame
	s.Shape = p.measureShape()
	s.Detector, s.DetectorValid = harmonic.PitchResult{}, false
	s.Ridge, s.RidgeValid = harmonic.PitchResult{}, false
	s.Sources = nil

	if p.detector != nil {
		s.Detector, s.DetectorValid = p.detector.Estimate(p.frame)
	}
	if p.ridge != nil {
		s.Ridge, s.RidgeValid = p.ridge.Estimate(p.frame)
	}
	if p.grouper != nil {
		s.Sources = p.grouper.Estimate(p.frame)
	}

	raw, valid := p.selectedPitch(s)
	if p.stabilizer != nil {
		s.Pitch, s.PitchValid = p.stabilizer.Update(raw, valid)
		s.StabilizerState = p.stabilizer.State()
	} else {
		s.Pitch, s.PitchValid = raw, valid && raw.IsVoiced()
	}

	p.ticks++
	return s, true
}

func (p *Pipeline) measureShape() BandShape {
	env, centers := p.frame.Envelope, p.frame.BandCenterHz
	centroid := p.centroid.Compute(env, centers)
	return BandShape{
		CentroidHz:  centroid,
		BandwidthHz: p.bandwidth.Compute(env, centers, centroid),
		Flatness:    p.flatness.Compute(env),
	}
}

// selectedPitch reuses this tick's result when the selected estimator is one
// of the built-in stages
func (p *Pipeline) selectedPitch(s *Snapshot) (harmonic.PitchResult, bool) {
	switch {
	case p.pitch == nil:
		return harmonic.PitchResult{}, false
	case p.detector != nil && p.pitch == PitchEstimator(p.detector):
		return s.Detector, s.DetectorValid
	case p.ridge != nil && p.pitch == PitchEstimator(p.ridge):
		return s.Ridge, s.RidgeValid
	default:
		return p.pitch.Estimate(p.frame)
	}
}

// Reset drops buffered samples and every stage's state
func (p *Pipeline) Reset() {
	p.analyzer.Reset()
	p.frame.Clear()
	if p.detector != nil {
		p.detector.Reset()
	}
	if p.ridge != nil {
		p.ridge.Reset()
	}
	if p.grouper != nil {
		p.grouper.Reset()
	}
	if p.stabilizer != nil {
		p.stabilizer.Reset()
	}
	p.snapshot = Snapshot{}
	p.ticks = 0
}

// Config returns the pipeline configuration
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Analyzer exposes the cochlear front end
func (p *Pipeline) Analyzer() *cochlear.Analyzer {
	return p.analyzer
}

// Grouper returns the multi-source grouper, or nil when disabled
func (p *Pipeline) Grouper() *grouping.Grouper {
	return p.grouper
}

// RidgeTracker returns the snake tracker, or nil when disabled
func (p *Pipeline) RidgeTracker() *harmonic.RidgeTracker {
	return p.ridge
}

// Detector returns the sieve detector, or nil when disabled
func (p *Pipeline) Detector() *harmonic.Detector {
	return p.detector
}

// Ticks returns the number of frames processed since the last reset
func (p *Pipeline) Ticks() int64 {
	return p.ticks
}
