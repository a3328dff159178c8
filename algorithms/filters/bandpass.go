package filters

import (
	"math"
)

// OnePolePole returns the pole p = exp(-2π*fc/fs) for a one-pole section.
// Cutoffs are floored at 0.1 Hz.
func OnePolePole(cutoffHz, sampleRate float64) float64 {
	if sampleRate <= 0 {
		return 0.0
	}
	return math.Exp(-2.0 * math.Pi * math.Max(0.1, cutoffHz) / sampleRate)
}

// SmoothingAlpha returns the EMA coefficient α = 1 - exp(-T/τ) with
// τ = 1/(2π*fc) and T = 1/fs, for use as y += α*(x - y).
func SmoothingAlpha(cutoffHz, sampleRate float64) float64 {
	if sampleRate <= 0 || cutoffHz <= 0 {
		return 1.0
	}
	tau := 1.0 / (2.0 * math.Pi * cutoffHz)
	return 1.0 - math.Exp(-(1.0/sampleRate)/tau)
}

// ModulationBandPass is a bank of two-stage one-pole band-pass filters, one
// per channel, applied to envelope series sampled at the analysis frame rate.
// Each channel runs a high-pass then a low-pass:
//
//	hp[n] = (1+p_h)/2 * (x[n] - x[n-1]) + p_h*hp[n-1]
//	lp[n] = (1-p_l)*hp[n] + p_l*lp[n-1]
//
// All state is preallocated so Process never allocates.
type ModulationBandPass struct {
	lowHz     float64
	highHz    float64
	frameRate float64

	hpPole float64
	hpGain float64
	lpPole float64

	hpPrevIn  []float64
	hpPrevOut []float64
	lpPrevOut []float64
}

// NewModulationBandPass creates channels band-pass sections passing roughly
// [lowHz, highHz] of a series sampled at frameRate Hz
func NewModulationBandPass(channels int, lowHz, highHz, frameRate float64) *ModulationBandPass {
	if channels < 0 {
		channels = 0
	}
	bp := &ModulationBandPass{
		lowHz:     lowHz,
		highHz:    highHz,
		frameRate: frameRate,
		hpPrevIn:  make([]float64, channels),
		hpPrevOut: make([]float64, channels),
		lpPrevOut: make([]float64, channels),
	}
	bp.computeCoefficients()
	return bp
}

func (bp *ModulationBandPass) computeCoefficients() {
	bp.hpPole = OnePolePole(bp.lowHz, bp.frameRate)
	bp.hpGain = 0.5 * (1.0 + bp.hpPole)
	bp.lpPole = OnePolePole(bp.highHz, bp.frameRate)
}

// Process filters one sample of the given channel and returns the band-passed value
func (bp *ModulationBandPass) Process(channel int, input float64) float64 {
	hp := bp.hpGain*(input-bp.hpPrevIn[channel]) + bp.hpPole*bp.hpPrevOut[channel]
	hp = flush(hp)
	bp.hpPrevIn[channel] = input
	bp.hpPrevOut[channel] = hp

	lp := (1.0-bp.lpPole)*hp + bp.lpPole*bp.lpPrevOut[channel]
	lp = flush(lp)
	bp.lpPrevOut[channel] = lp

	return lp
}

// Channels returns the number of independent sections
func (bp *ModulationBandPass) Channels() int {
	return len(bp.hpPrevIn)
}

// Reset clears every channel's state
func (bp *ModulationBandPass) Reset() {
	for i := range bp.hpPrevIn {
		bp.hpPrevIn[i] = 0
		bp.hpPrevOut[i] = 0
		bp.lpPrevOut[i] = 0
	}
}

// GetFrequencyResponse returns the cascade's linear magnitude at frequency
func (bp *ModulationBandPass) GetFrequencyResponse(frequency float64) float64 {
	if bp.frameRate <= 0 {
		return 0.0
	}
	w := 2.0 * math.Pi * frequency / bp.frameRate
	cosW, sinW := math.Cos(w), math.Sin(w)

	// HP: g*(1 - z^-1) / (1 - p*z^-1)
	hpNum := bp.hpGain * math.Hypot(1.0-cosW, sinW)
	hpDen := math.Hypot(1.0-bp.hpPole*cosW, bp.hpPole*sinW)

	// LP: (1-p) / (1 - p*z^-1)
	lpNum := 1.0 - bp.lpPole
	lpDen := math.Hypot(1.0-bp.lpPole*cosW, bp.lpPole*sinW)

	if hpDen == 0 || lpDen == 0 {
		return 0.0
	}
	return (hpNum / hpDen) * (lpNum / lpDen)
}

func flush(v float64) float64 {
	if math.Abs(v) < 1e-30 {
		return 0.0
	}
	return v
}
