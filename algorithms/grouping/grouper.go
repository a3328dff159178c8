package grouping

import (
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
	"github.com/RyanBlaney/sonido-cochlea/logging"
)

// Selection constants
const (
	sweepRatio          = 1.04
	relativeEnergyFloor = 0.12
	singleRidgeMinHarm  = 0.50
	firstClaimShare     = 0.6
	acceptedClaimShare  = 1.0

	// a lone-peak candidate must also hold this share of the strongest peak
	singleRidgePeakShare = 0.5

	// accepted grid points are re-evaluated at this many finer steps either
	// side, covering half a sweep step
	refineSteps     = 4
	refineStepCents = 8.5

	// candidates within this ratio of the best combined score are ranked by
	// amplitude instead
	nearTieLow  = 0.95
	nearTieHigh = 1.05

	// a candidate whose bands are a strict subset of another's only wins
	// when it scores at least twice as high
	subsetScoreShare = 0.5
)

// Grouper finds several simultaneous pitched sources per frame and keeps them
// as persistent tracks.
//
// Each tick the envelope is pushed into a history ring, then a geometric sweep
// of trial fundamentals is evaluated up to MaxSources times. Every pass picks
// the best candidate by harmonicity weighted with temporal coherence, then
// soft-claims its bands so that later passes see less of that energy. Accepted
// picks update the nearest track; tracks without updates for 300 ms retire.
type Grouper struct {
	config Config

	history  *History
	claimed  []float64
	peaks    []bandPeak
	peakUsed []bool

	pool      [MaxSources]Evaluation
	poolCount int

	tracks trackTable
	output []SourceCandidate
	tick   uint64

	logger logging.Logger
}

// NewGrouper creates a grouper for frames of up to cochlear.MaxBands bands
func NewGrouper(cfg Config) *Grouper {
	logger := logging.WithFields(logging.Fields{
		"component": "source_grouper",
	})

	if err := cfg.Validate(); err != nil {
		logger.Warn("Clamping grouping config", logging.Fields{"reason": err.Error()})
	}
	cfg = cfg.normalized()

	g := &Grouper{
		config:   cfg,
		history:  NewHistory(cfg.HistoryFrames, cochlear.MaxBands),
		claimed:  make([]float64, cochlear.MaxBands),
		peaks:    make([]bandPeak, 0, cochlear.MaxBands),
		peakUsed: make([]bool, cochlear.MaxBands),
		tracks:   newTrackTable(),
		output:   make([]SourceCandidate, 0, MaxSources),
		logger:   logger,
	}

	logger.Debug("Source grouper configured", logging.Fields{
		"f0_min_hz":   cfg.F0MinHz,
		"f0_max_hz":   cfg.F0MaxHz,
		"max_sources": cfg.MaxSources,
		"history":     cfg.HistoryFrames,
	})

	return g
}

// Config returns the effective (clamped) configuration
func (g *Grouper) Config() Config {
	return g.config
}

// History exposes the envelope history used for coherence and modulation
func (g *Grouper) History() *History {
	return g.history
}

// Update processes one frame and returns the sources accepted this tick, in
// selection order. The slice is reused by the next call.
func (g *Grouper) Update(frame *cochlear.Frame) []SourceCandidate {
	g.output = g.output[:0]
	g.poolCount = 0

	g.history.Push(frame)

	n := min(len(frame.Envelope), len(frame.BandCenterHz), len(g.claimed))
	claimed := g.claimed[:n]
	for i := range claimed {
		claimed[i] = 0
	}

	frameEnergy := 0.0
	for _, v := range frame.Envelope[:n] {
		frameEnergy += v
	}
	if frameEnergy < g.config.MinAmplitude {
		g.tracks.retire(frame.Timestamp)
		return g.output
	}

	g.selectSources(frame, claimed)

	g.tick++
	for i := 0; i < g.poolCount; i++ {
		ev := &g.pool[i]
		tr := g.tracks.acquire(ev.F0Hz, frame.Timestamp)
		if tr.tick == g.tick {
			// a second pick landed on a track this tick already reported
			continue
		}
		tr.tick = g.tick
		tr.update(ev, g.config.SmoothAlpha, frame.Timestamp)
		g.output = append(g.output, tr.candidate())
	}

	g.tracks.retire(frame.Timestamp)
	return g.output
}

// selectSources runs the sequential greedy picks. Each pick depends on the
// claims of the ones before it.
func (g *Grouper) selectSources(frame *cochlear.Frame, claimed []float64) {
	cfg := &g.config
	minF0 := common.Clamp(cfg.F0MinHz, cfg.FMinHz, cfg.FMaxHz)
	maxF0 := common.Clamp(cfg.F0MaxHz, cfg.FMinHz, cfg.FMaxHz)

	n := len(claimed)
	g.peaks = extractPeaks(g.peaks[:0], frame.Envelope[:n], frame.BandCenterHz[:n], nil, cfg.MinAmplitude)
	peakEnergy, strongestPeak := 0.0, 0.0
	for _, p := range g.peaks {
		peakEnergy += p.energy
		strongestPeak = math.Max(strongestPeak, p.energy)
	}

	for pick := 0; pick < cfg.MaxSources; pick++ {
		var best Evaluation
		bestCombined := 0.0
		have := false

		for f0 := minF0; f0 <= maxF0; f0 *= sweepRatio {
			ev := g.EvalF0WithMask(frame, f0, claimed)
			if !ev.Accepted() {
				continue
			}
			ev = g.refine(frame, ev, claimed, minF0, maxF0)

			singleRidge := ev.BandCount == 1 &&
				ev.Harmonicity >= singleRidgeMinHarm &&
				ev.Amplitude >= singleRidgePeakShare*strongestPeak
			if ev.Amplitude < cfg.MinAmplitude {
				continue
			}
			if !singleRidge && ev.Amplitude < relativeEnergyFloor*peakEnergy {
				continue
			}
			if ev.Harmonicity < cfg.MinHarmonicity {
				continue
			}

			ev.TemporalCoherence = common.Clamp(
				g.history.Coherence(ev.ContributingBands(), cfg.CoherenceMinWindowS), 0, 1)
			combined := ev.Harmonicity * (0.5 + 0.5*ev.TemporalCoherence)

			if !have || preferOver(&ev, combined, &best, bestCombined) {
				best = ev
				bestCombined = max(bestCombined, combined)
				have = true
			}
		}

		if !have {
			break
		}

		best.ModulationRateHz = g.history.ModulationRate(best.ContributingBands(), cfg.ModulationBins)

		g.claim(frame, claimed, best.ContributingBands(), firstClaimShare)
		if g.isDuplicate(best.F0Hz) {
			continue
		}
		g.claim(frame, claimed, best.ContributingBands(), acceptedClaimShare)

		if g.poolCount < len(g.pool) {
			g.pool[g.poolCount] = best
			g.poolCount++
		}
	}
}

// refine searches around an accepted grid point for the fundamental that best
// explains the matched harmonics. The coarse grid can sit far enough from a
// true f0 that its upper harmonics fall into the tolerance falloff.
func (g *Grouper) refine(frame *cochlear.Frame, ev Evaluation, claimed []float64, minF0, maxF0 float64) Evaluation {
	best := ev
	for k := -refineSteps; k <= refineSteps; k++ {
		if k == 0 {
			continue
		}
		f0 := ev.F0Hz * common.RatioFromCents(float64(k)*refineStepCents)
		if f0 < minF0 || f0 > maxF0 {
			continue
		}
		trial := g.EvalF0WithMask(frame, f0, claimed)
		if !trial.Accepted() {
			continue
		}
		if betterRefinement(&trial, &best) {
			best = trial
		}
	}
	return best
}

// betterRefinement orders trials by amplitude, then harmonicity, then how
// closely the harmonics sit on their peak centroids
func betterRefinement(trial, best *Evaluation) bool {
	const eps = harmonicityEnergyFloor
	switch {
	case trial.Amplitude > best.Amplitude+eps:
		return true
	case math.Abs(trial.Amplitude-best.Amplitude) > eps:
		return false
	case trial.Harmonicity > best.Harmonicity+eps:
		return true
	case math.Abs(trial.Harmonicity-best.Harmonicity) > eps:
		return false
	default:
		return trial.MatchErrorCents < best.MatchErrorCents
	}
}

// preferCandidate ranks by combined score; within a narrow band around the
// best score the louder candidate wins
func preferCandidate(combined, amplitude, bestCombined, bestAmplitude float64) bool {
	if combined > bestCombined*nearTieHigh {
		return true
	}
	return combined >= bestCombined*nearTieLow && amplitude > bestAmplitude
}

// preferOver decides whether ev replaces best. A candidate that explains a
// strict superset of the other's bands wins unless it scores under half as
// well; otherwise preferCandidate decides.
func preferOver(ev *Evaluation, combined float64, best *Evaluation, bestCombined float64) bool {
	if covers(best, ev) && bestCombined >= subsetScoreShare*combined {
		return false
	}
	if covers(ev, best) && combined >= subsetScoreShare*bestCombined {
		return true
	}
	return preferCandidate(combined, ev.Amplitude, bestCombined, best.Amplitude)
}

// covers reports whether a matched every band of b and more
func covers(a, b *Evaluation) bool {
	if a.BandCount <= b.BandCount {
		return false
	}
	for _, x := range b.ContributingBands() {
		found := false
		for _, y := range a.ContributingBands() {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// claim adds share times the envelope relative to the top band across the
// peak around each band
func (g *Grouper) claim(frame *cochlear.Frame, claimed []float64, bands []int, share float64) {
	env := frame.Envelope[:len(claimed)]
	for _, b := range bands {
		if b >= len(claimed) || env[b] <= 0 {
			continue
		}
		left, right := peakSpan(env, b)
		for j := left; j <= right; j++ {
			claimed[j] = common.Clamp(claimed[j]+share*env[j]/env[b], 0, 1)
		}
	}
}

func (g *Grouper) isDuplicate(f0 float64) bool {
	for i := 0; i < g.poolCount; i++ {
		if common.AbsCents(g.pool[i].F0Hz, f0) < duplicatePitchCents {
			return true
		}
	}
	return false
}

// FirstSource returns the first source of the latest Update
func (g *Grouper) FirstSource() (SourceCandidate, bool) {
	if len(g.output) == 0 {
		return SourceCandidate{}, false
	}
	return g.output[0], true
}

// Sources returns the sources of the latest Update
func (g *Grouper) Sources() []SourceCandidate {
	return g.output
}

// ActiveTracks returns the number of live tracks
func (g *Grouper) ActiveTracks() int {
	return g.tracks.activeCount()
}

// Estimate implements the pipeline's multi-source estimator contract
func (g *Grouper) Estimate(frame *cochlear.Frame) []SourceCandidate {
	return g.Update(frame)
}

// Coherence scores bands against the stored history
func (g *Grouper) Coherence(bands []int) float64 {
	return g.history.Coherence(bands, g.config.CoherenceMinWindowS)
}

// ModulationRate estimates the AM rate of bands over the stored history
func (g *Grouper) ModulationRate(bands []int) float64 {
	return g.history.ModulationRate(bands, g.config.ModulationBins)
}

// Reset clears history, claims and tracks
func (g *Grouper) Reset() {
	g.history.Reset()
	for i := range g.claimed {
		g.claimed[i] = 0
	}
	g.tracks.reset()
	g.output = g.output[:0]
	g.poolCount = 0
}
