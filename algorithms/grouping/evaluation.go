package grouping

import (
	"math"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
)

// Evaluation is the outcome of testing one trial fundamental against a frame.
// BandCount of zero means the candidate was rejected.
type Evaluation struct {
	F0Hz              float64 `json:"f0_hz"`
	Amplitude         float64 `json:"amplitude"`
	Harmonicity       float64 `json:"harmonicity"`
	CentroidHz        float64 `json:"centroid_hz"`
	BandwidthHz       float64 `json:"bandwidth_hz"`
	TemporalCoherence float64 `json:"temporal_coherence"`
	ModulationRateHz  float64 `json:"modulation_rate_hz"`

	// MatchErrorCents is the contribution-weighted distance between the
	// harmonic targets and their matched band centres
	MatchErrorCents float64 `json:"match_error_cents"`

	Bands     [MaxHarmonics]int `json:"-"`
	BandCount int               `json:"band_count"`

	// HarmonicEnergy[h] is the accepted contribution of harmonic h (1-based)
	HarmonicEnergy [MaxHarmonics + 1]float64 `json:"-"`
}

// Accepted reports whether the candidate passed every gate
func (e Evaluation) Accepted() bool {
	return e.BandCount > 0
}

// ContributingBands returns the bands that carried accepted harmonics
func (e Evaluation) ContributingBands() []int {
	return e.Bands[:e.BandCount]
}

// Evaluation gates
const (
	earlyFractionFloor     = 0.20
	inferredEarlyFraction  = 0.45
	lowPitchFundamentalHz  = 200.0
	spanTargetWidths       = 2.5
	contributionEpsilon    = 1e-12
	harmonicityEnergyFloor = 1e-9

	// peaks below this share of the frame maximum are ignored
	peakRelativeFloor = 0.02
	// a peak grows this many bands each side while the envelope keeps falling
	peakGrowBands = 2
)

// bandPeak is one local maximum of the envelope together with the falling
// bands around it
type bandPeak struct {
	left, right int
	top         int
	energy      float64
	centroidHz  float64

	// claimed is the energy-weighted claimed fraction over the span
	claimed float64
}

// EvalF0WithMask scores f0 against frame given the per-band claimed
// fractions from earlier picks in this tick. claimed may be nil.
//
// The envelope is first reduced to peaks. Harmonic h of f0 is matched to the
// peak whose centroid is closest in cents within the tolerance, weighted by
// the peak energy. Its contribution is the peak energy scaled by the
// tolerance weight and by the reuse penalty for claimed energy; each peak
// serves at most one harmonic. The candidate is then gated on its early
// (h1+h2) energy and on evidence for the fundamental, and harmonicity is the
// accepted energy over the raw energy of the matched peaks, scaled by how
// widely the matched bands spread relative to the local band spacing.
func (g *Grouper) EvalF0WithMask(frame *cochlear.Frame, f0 float64, claimed []float64) Evaluation {
	var out Evaluation

	env := frame.Envelope
	centers := frame.BandCenterHz
	n := min(len(env), len(centers), len(g.peakUsed))
	if n == 0 || f0 <= 0 {
		return out
	}
	env = env[:n]
	centers = centers[:n]

	cfg := &g.config
	g.peaks = extractPeaks(g.peaks[:0], env, centers, claimed, cfg.MinAmplitude)
	if len(g.peaks) == 0 {
		return out
	}
	used := g.peakUsed[:len(g.peaks)]
	for i := range used {
		used[i] = false
	}

	energySum := 0.0
	errorSum := 0.0
	uniqueEnergy := 0.0
	centroidSum := 0.0
	weightSum := 0.0
	fundamentalHit := false
	earlyHits := 0

	for h := 1; h <= cfg.MaxHarmonics; h++ {
		target := f0 * float64(h)
		if target >= cfg.FMaxHz {
			break
		}

		k, within := findBestPeak(target, g.peaks, cfg.HarmonicToleranceCents)
		if k < 0 || used[k] {
			continue
		}
		p := &g.peaks[k]

		contribution := bandContribution(p.energy, within, p.claimed, cfg.ReusePenalty)
		if contribution <= cfg.MinAmplitude {
			continue
		}

		used[k] = true
		out.Bands[out.BandCount] = p.top
		out.BandCount++

		energySum += contribution
		errorSum += contribution * common.AbsCents(target, p.centroidHz)
		centroidSum += contribution * p.centroidHz
		weightSum += contribution
		uniqueEnergy += p.energy
		out.HarmonicEnergy[h] += contribution

		if h == 1 {
			fundamentalHit = true
			earlyHits++
		}
		if h == 2 {
			earlyHits++
		}
	}

	out.Amplitude = energySum
	if out.BandCount == 0 || energySum <= 0 {
		return reject(out)
	}

	earlyFraction := (out.HarmonicEnergy[1] + out.HarmonicEnergy[2]) / (energySum + contributionEpsilon)

	if !g.passesFundamentalGate(&out, fundamentalHit, earlyFraction) {
		return reject(out)
	}
	if f0 < lowPitchFundamentalHz && !fundamentalHit {
		return reject(out)
	}
	if earlyFraction < earlyFractionFloor || earlyHits < 1 {
		return reject(out)
	}

	if uniqueEnergy > harmonicityEnergyFloor {
		out.Harmonicity = energySum / uniqueEnergy
	}
	out.MatchErrorCents = errorSum / energySum

	if weightSum > harmonicityEnergyFloor {
		out.CentroidHz = centroidSum / weightSum

		variance := 0.0
		for _, b := range out.Bands[:out.BandCount] {
			df := centers[b] - out.CentroidHz
			variance += env[b] * df * df
		}
		out.BandwidthHz = math.Sqrt(variance / (weightSum + harmonicityEnergyFloor))
	}

	if out.BandCount >= 2 {
		applySpanAdjustment(&out, centers)
	}

	out.F0Hz = f0
	return out
}

// passesFundamentalGate requires a direct fundamental hit unless missing
// fundamentals may be inferred, in which case h2 and h3 must both be present
// with enough early energy
func (g *Grouper) passesFundamentalGate(out *Evaluation, fundamentalHit bool, earlyFraction float64) bool {
	if fundamentalHit {
		return true
	}
	if !g.config.InferMissingFundamental {
		return false
	}
	return out.HarmonicEnergy[2] > 0 &&
		out.HarmonicEnergy[3] > 0 &&
		out.BandCount >= 2 &&
		earlyFraction >= inferredEarlyFraction
}

// reject keeps the diagnostics but marks the evaluation as failed
func reject(out Evaluation) Evaluation {
	out.BandCount = 0
	out.Harmonicity = 0
	return out
}

// bandContribution scales a peak energy by its tolerance weight and by the
// share of it already claimed this tick
func bandContribution(energy, within, claimed, reusePenalty float64) float64 {
	penalty := 1.0 - reusePenalty*common.Clamp(claimed, 0.0, 1.0)
	return energy * within * penalty
}

// isLocalPeak treats positions past either edge as minus infinity. Plateaus
// count once the value differs from at least one side.
func isLocalPeak(env []float64, i int) bool {
	c := env[i]
	left := math.Inf(-1)
	if i > 0 {
		left = env[i-1]
	}
	right := math.Inf(-1)
	if i+1 < len(env) {
		right = env[i+1]
	}
	return c >= left && c >= right && (c > left || c > right)
}

// peakSpan grows from i up to peakGrowBands each side while the neighbour
// does not rise
func peakSpan(env []float64, i int) (left, right int) {
	left, right = i, i
	for s := 0; s < peakGrowBands; s++ {
		if left <= 0 || env[left-1] > env[left] {
			break
		}
		left--
	}
	for s := 0; s < peakGrowBands; s++ {
		if right >= len(env)-1 || env[right+1] > env[right] {
			break
		}
		right++
	}
	return left, right
}

// extractPeaks appends the envelope peaks above max(minAmplitude, 2% of the
// frame maximum) to dst. Spans never overlap; scanning resumes after each.
func extractPeaks(dst []bandPeak, env, centers, claimed []float64, minAmplitude float64) []bandPeak {
	if len(env) == 0 {
		return dst
	}
	globalPeak := env[0]
	for _, v := range env[1:] {
		globalPeak = math.Max(globalPeak, v)
	}
	threshold := math.Max(minAmplitude, peakRelativeFloor*globalPeak)
	if threshold <= 0 {
		return dst
	}

	for i := 0; i < len(env); i++ {
		if env[i] < threshold || !isLocalPeak(env, i) {
			continue
		}
		left, right := peakSpan(env, i)

		var sum, freqSum, claimSum float64
		for j := left; j <= right; j++ {
			w := env[j]
			sum += w
			freqSum += w * centers[j]
			if j < len(claimed) {
				claimSum += w * claimed[j]
			}
		}
		if sum < threshold {
			continue
		}

		dst = append(dst, bandPeak{
			left:       left,
			right:      right,
			top:        i,
			energy:     sum,
			centroidHz: freqSum / sum,
			claimed:    claimSum / sum,
		})
		i = right
	}
	return dst
}

// findBestPeak picks the peak maximising closeness times energy, where
// closeness falls linearly from 1 at the target to 0 at the tolerance
func findBestPeak(target float64, peaks []bandPeak, toleranceCents float64) (best int, within float64) {
	best = -1
	bestScore := -1.0
	for k := range peaks {
		cents := common.AbsCents(target, peaks[k].centroidHz)
		if cents > toleranceCents {
			continue
		}
		closeness := 1.0 - cents/(toleranceCents+1e-9)
		score := closeness * peaks[k].energy
		if score > bestScore {
			bestScore = score
			best = k
			within = closeness
		}
	}
	return best, within
}

// bandLocalWidth is the average gap to the neighbouring centres, or half the
// single gap at either edge
func bandLocalWidth(centers []float64, i int) float64 {
	n := len(centers)
	switch {
	case n <= 1:
		return 1.0
	case i <= 0:
		return 0.5 * (centers[1] - centers[0])
	case i >= n-1:
		return 0.5 * (centers[n-1] - centers[n-2])
	default:
		return 0.5 * ((centers[i] - centers[i-1]) + (centers[i+1] - centers[i]))
	}
}

// applySpanAdjustment scales harmonicity by how far the matched bands spread
// compared to a few local band widths
func applySpanAdjustment(out *Evaluation, centers []float64) {
	bands := out.Bands[:out.BandCount]
	lo := centers[bands[0]]
	hi := lo
	widths := 0.0
	for _, b := range bands {
		f := centers[b]
		lo = math.Min(lo, f)
		hi = math.Max(hi, f)
		widths += bandLocalWidth(centers, b)
	}

	target := spanTargetWidths * widths / float64(len(bands))
	factor := common.Clamp((hi-lo)/(target+1e-9), 0.0, 1.0)
	out.Harmonicity *= 0.5 + 0.5*factor
}
