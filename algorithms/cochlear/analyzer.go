package cochlear

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/filters"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/spectral"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/windowing"
	"github.com/RyanBlaney/sonido-cochlea/logging"
	"github.com/tphakala/simd/f64"
)

// Analyzer turns a mono sample stream into ERB-band envelope frames.
//
// Samples pass through a DC tracker and optional pre-emphasis into a ring of
// one frame. Every hop (a quarter frame) a frame is windowed with an
// RMS-normalized Hann window, transformed, lightly smoothed along frequency
// and integrated per band with Gaussian weights. Each band then runs a fast
// envelope follower, static compression, a modulation band-pass and a slow
// follower whose output is the reported envelope.
//
// All buffers are sized in NewAnalyzer; Push and Process do not allocate.
type Analyzer struct {
	config     Config
	sampleRate int
	frameSize  int
	hopSize    int
	frameRate  float64

	dc   *filters.DCTracker
	pre  *filters.PreEmphasis
	ring *common.CircularBuffer

	window *windowing.Hann
	fft    *spectral.RealFFT

	ordered   []float64
	windowed  []float64
	magnitude []float64
	phase     []float64
	power     []float64

	bands     []spectral.ERBBand
	weights   [][]float64
	weightSum []float64

	envelopeAlpha float64
	slowAlpha     float64
	fastEnvelope  []float64
	slowEnvelope  []float64
	modulation    *filters.ModulationBandPass

	totalSamples int64
	frames       int64

	logger logging.Logger
}

// NewAnalyzer sizes every buffer for cfg at sampleRate. Out-of-range settings
// are clamped; only a non-positive sample rate is an error.
func NewAnalyzer(cfg Config, sampleRate int) (*Analyzer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSampleRate, sampleRate)
	}

	logger := logging.WithFields(logging.Fields{
		"component":   "cochlear_analyzer",
		"sample_rate": sampleRate,
	})

	if err := cfg.Validate(); err != nil {
		logger.Warn("Clamping cochlear config", logging.Fields{"reason": err.Error()})
	}
	cfg = cfg.normalized(sampleRate)

	fft, err := spectral.NewRealFFT(cfg.FrameSize)
	if err != nil {
		return nil, fmt.Errorf("failed to plan fft: %w", err)
	}

	a := &Analyzer{
		config:     cfg,
		sampleRate: sampleRate,
		frameSize:  cfg.FrameSize,
		hopSize:    cfg.FrameSize / HopDivisor,
		dc:         filters.NewDCTracker(),
		pre:        filters.NewPreEmphasis(cfg.Preemphasis),
		ring:       common.NewCircularBuffer(cfg.FrameSize),
		window:     windowing.NewRMSNormalizedHann(cfg.FrameSize),
		fft:        fft,
		logger:     logger,
	}
	a.frameRate = float64(sampleRate) / float64(a.hopSize)

	bins := fft.Bins()
	a.ordered = make([]float64, a.frameSize)
	a.windowed = make([]float64, a.frameSize)
	a.magnitude = make([]float64, bins)
	a.phase = make([]float64, bins)
	a.power = make([]float64, bins)

	a.buildBands()
	a.buildEnvelopeFilters()

	fields := logging.Fields{
		"num_bands":    len(a.bands),
		"fmin_hz":      cfg.FMinHz,
		"fmax_hz":      cfg.FMaxHz,
		"frame_size":   a.frameSize,
		"hop_size":     a.hopSize,
		"frame_rate":   a.frameRate,
		"bin_hz":       fft.BinFrequency(1, sampleRate),
		"dc_cutoff_hz": a.dc.GetCutoffFrequency(sampleRate),
		"window":       a.window.GetType(),
		"window_rms":   a.window.RMS(),
		"mod_gain":     a.modulation.GetFrequencyResponse(math.Sqrt(cfg.ModLowHz * cfg.ModHighHz)),
	}
	if cfg.UsePreemphasis {
		fields["preemphasis"] = a.pre.GetCoefficient()
	}
	logger.Debug("Cochlear analyzer configured", fields)

	return a, nil
}

func (a *Analyzer) buildBands() {
	scale := spectral.NewERBScale()
	a.bands = scale.CreateERBBands(a.config.NumBands, a.frameSize, a.sampleRate,
		a.config.FMinHz, a.config.FMaxHz, a.config.ERBBandwidthScale)

	total := 0
	for _, band := range a.bands {
		total += band.RightBin - band.LeftBin
	}

	// one backing array for every band's weights
	backing := make([]float64, total)
	a.weights = make([][]float64, len(a.bands))
	a.weightSum = make([]float64, len(a.bands))

	offset := 0
	for i, band := range a.bands {
		span := band.RightBin - band.LeftBin
		a.weights[i] = backing[offset : offset+span : offset+span]
		a.weightSum[i] = scale.GaussianWeights(band, a.sampleRate, a.frameSize, a.weights[i])
		offset += span
	}
}

func (a *Analyzer) buildEnvelopeFilters() {
	n := len(a.bands)

	a.envelopeAlpha = filters.SmoothingAlpha(common.Clamp(a.config.EnvelopeLPHz, 0.5, 60.0), a.frameRate)
	a.slowAlpha = filters.SmoothingAlpha(common.Clamp(a.config.EnvelopeTemporalSmoothHz, 0.1, 30.0), a.frameRate)

	a.fastEnvelope = make([]float64, n)
	a.slowEnvelope = make([]float64, n)
	a.modulation = filters.NewModulationBandPass(n, a.config.ModLowHz, a.config.ModHighHz, a.frameRate)
}

// NewFrame allocates a frame matching this analyzer's band layout
func (a *Analyzer) NewFrame() *Frame {
	frame := NewFrame(len(a.bands))
	for i, band := range a.bands {
		frame.BandCenterHz[i] = band.CenterHz
	}
	return frame
}

// Push feeds samples into the analysis ring
func (a *Analyzer) Push(samples []float64) {
	for _, x := range samples {
		x = a.dc.Process(x)
		if a.config.UsePreemphasis {
			x = a.pre.Process(x)
		}
		a.ring.WriteSample(x)
	}
	a.totalSamples += int64(len(samples))
}

// MakeFrame prepares the next analysis window. It returns false when the ring
// is not yet full or fewer than one hop of new samples arrived.
func (a *Analyzer) MakeFrame() bool {
	if !a.ring.ConsumeHop(a.hopSize) {
		return false
	}
	a.ring.CopyOrdered(a.ordered)
	return true
}

// AnalyzeFrame runs the transform and band processing on the window prepared
// by MakeFrame and writes the result into out
func (a *Analyzer) AnalyzeFrame(out *Frame) {
	if err := a.window.ApplyTo(a.windowed, a.ordered); err != nil {
		return
	}
	if a.fft.Transform(a.windowed) == nil {
		return
	}
	a.fft.MagnitudePhase(a.magnitude, a.phase, magnitudeFloor)
	a.smoothSpectrum()

	for k, m := range a.magnitude {
		a.power[k] = m * m
	}

	n := min(len(a.bands), out.NumBands())
	gamma := a.config.CompressionGamma

	for b := 0; b < n; b++ {
		band := a.bands[b]

		energy := 0.0
		if a.weightSum[b] > 0 {
			energy = f64.DotProduct(a.weights[b], a.power[band.LeftBin:band.RightBin]) / a.weightSum[b]
		}
		amplitude := math.Sqrt(math.Max(energy, 0))

		fast := a.fastEnvelope[b] + a.envelopeAlpha*(amplitude-a.fastEnvelope[b])
		fast = common.FlushDenormal(fast)
		a.fastEnvelope[b] = fast

		compressed := math.Pow(math.Max(fast, 0)+compressionBias, gamma)

		modulated := a.modulation.Process(b, compressed)

		slow := a.slowEnvelope[b] + a.slowAlpha*(compressed-a.slowEnvelope[b])
		slow = common.FlushDenormal(slow)
		a.slowEnvelope[b] = slow

		out.Envelope[b] = slow
		out.ModulationPower[b] = modulated * modulated
		out.FinePhase[b] = a.phase[band.CenterBin]
		out.BandCenterHz[b] = band.CenterHz
	}

	out.Timestamp = float64(a.totalSamples) / float64(a.sampleRate)
	a.frames++
}

// smoothSpectrum applies a [0.25 0.5 0.25] blur over the interior bins in
// place, so each bin sees its already smoothed left neighbour
func (a *Analyzer) smoothSpectrum() {
	m := a.magnitude
	for k := 1; k < len(m)-1; k++ {
		m[k] = 0.25 * (m[k-1] + 2.0*m[k] + m[k+1])
	}
}

// Process builds and analyzes one frame if enough samples are buffered.
// A false return means not ready and is not an error.
func (a *Analyzer) Process(out *Frame) bool {
	if !a.MakeFrame() {
		return false
	}
	a.AnalyzeFrame(out)
	return true
}

// Reset clears the ring and all filter state while keeping the band layout
func (a *Analyzer) Reset() {
	a.dc.Reset()
	a.pre.Reset()
	a.ring.Clear()
	a.modulation.Reset()
	for i := range a.fastEnvelope {
		a.fastEnvelope[i] = 0
		a.slowEnvelope[i] = 0
	}
	a.totalSamples = 0
	a.frames = 0
}

// Bands returns the band layout. The slice must not be modified.
func (a *Analyzer) Bands() []spectral.ERBBand {
	return a.bands
}

// Config returns the effective (clamped) configuration
func (a *Analyzer) Config() Config {
	return a.config
}

// FrameRateHz returns the analysis frame rate (sample rate / hop)
func (a *Analyzer) FrameRateHz() float64 {
	return a.frameRate
}

// SampleRate returns the input sample rate
func (a *Analyzer) SampleRate() int {
	return a.sampleRate
}

// HopSize returns the number of new samples per frame
func (a *Analyzer) HopSize() int {
	return a.hopSize
}

// FrameSize returns the analysis window length
func (a *Analyzer) FrameSize() int {
	return a.frameSize
}

// NumBands returns the configured band count
func (a *Analyzer) NumBands() int {
	return len(a.bands)
}

// PendingSamples returns the samples buffered since the last frame
func (a *Analyzer) PendingSamples() int {
	return a.ring.PendingSinceHop()
}

// FramesAnalyzed returns how many frames were produced since the last reset
func (a *Analyzer) FramesAnalyzed() int64 {
	return a.frames
}

// SamplesUntilFrame returns how many more samples make the next frame ready,
// zero when one is ready now
func (a *Analyzer) SamplesUntilFrame() int {
	if missing := a.ring.Size() - a.ring.Available(); missing > 0 {
		return missing
	}
	return max(a.hopSize-a.ring.PendingSinceHop(), 0)
}
