package spectral

import (
	"math"
)

// ERBScale provides Equivalent Rectangular Bandwidth conversions and the
// band layout used by the cochlear filterbank.
//
// References:
//   - B.R. Glasberg, B.C.J. Moore, "Derivation of auditory filter shapes from
//     notched-noise data", Hearing Research 47, 1990
type ERBScale struct {
	// No state needed - stateless conversion functions
}

// ERBBand describes one analysis band in FFT-bin terms. Bins cover
// [LeftBin, RightBin) and LeftBin <= CenterBin < RightBin always holds.
type ERBBand struct {
	CenterHz    float64 `json:"center_hz"`
	BandwidthHz float64 `json:"bandwidth_hz"`
	LeftBin     int     `json:"left_bin"`
	CenterBin   int     `json:"center_bin"`
	RightBin    int     `json:"right_bin"`
}

// NewERBScale creates a new ERB scale converter
func NewERBScale() *ERBScale {
	return &ERBScale{}
}

// HzToERBRate converts frequency in Hz to the ERB-rate (ERB number) scale
func (es *ERBScale) HzToERBRate(hz float64) float64 {
	return 21.4 * math.Log10(4.37e-3*hz+1.0)
}

// ERBRateToHz is the inverse of HzToERBRate
func (es *ERBScale) ERBRateToHz(erb float64) float64 {
	return (math.Pow(10.0, erb/21.4) - 1.0) / 4.37e-3
}

// Bandwidth returns the Glasberg-Moore ERB at centerHz multiplied by scale
func (es *ERBScale) Bandwidth(centerHz, scale float64) float64 {
	return scale * 24.7 * (4.37e-3*centerHz + 1.0)
}

// HzToBin maps a frequency to the nearest FFT bin, clamped to [0, fftSize/2]
func (es *ERBScale) HzToBin(hz float64, sampleRate, fftSize int) int {
	bins := fftSize/2 + 1
	bin := int(math.Round(hz / float64(sampleRate) * float64(fftSize)))
	if bin < 0 {
		return 0
	}
	if bin > bins-1 {
		return bins - 1
	}
	return bin
}

// CenterFrequencies returns numBands centres spaced evenly on the ERB-rate
// scale from lowFreq to highFreq inclusive
func (es *ERBScale) CenterFrequencies(numBands int, lowFreq, highFreq float64) []float64 {
	if numBands <= 0 {
		return []float64{}
	}

	centers := make([]float64, numBands)
	lowERB := es.HzToERBRate(lowFreq)
	highERB := es.HzToERBRate(highFreq)

	step := 0.0
	if numBands > 1 {
		step = (highERB - lowERB) / float64(numBands-1)
	}

	for i := range centers {
		centers[i] = es.ERBRateToHz(lowERB + step*float64(i))
	}
	return centers
}

// CreateERBBands lays out numBands ERB-spaced bands over [lowFreq, highFreq].
// Each band spans ±bandwidth around its centre, limited to the analysis range,
// and degenerate spans are widened to one bin.
func (es *ERBScale) CreateERBBands(numBands, fftSize, sampleRate int, lowFreq, highFreq, bandwidthScale float64) []ERBBand {
	if numBands <= 0 || fftSize <= 0 || sampleRate <= 0 {
		return nil
	}

	bins := fftSize/2 + 1
	centers := es.CenterFrequencies(numBands, lowFreq, highFreq)
	bands := make([]ERBBand, numBands)

	for i, centerHz := range centers {
		bandwidth := es.Bandwidth(centerHz, bandwidthScale)
		leftHz := math.Max(lowFreq, centerHz-bandwidth)
		rightHz := math.Min(highFreq, centerHz+bandwidth)

		band := ERBBand{
			CenterHz:    centerHz,
			BandwidthHz: bandwidth,
			LeftBin:     es.HzToBin(leftHz, sampleRate, fftSize),
			CenterBin:   es.HzToBin(centerHz, sampleRate, fftSize),
			RightBin:    es.HzToBin(rightHz, sampleRate, fftSize),
		}

		if band.RightBin <= band.LeftBin {
			band.RightBin = min(bins, band.LeftBin+1)
		}
		if band.LeftBin >= band.RightBin {
			// only reachable when LeftBin is the last bin
			band.LeftBin = band.RightBin - 1
		}

		if band.CenterBin < band.LeftBin || band.CenterBin >= band.RightBin {
			span := max(1, band.RightBin-band.LeftBin)
			band.CenterBin = clampBin(band.LeftBin+span/2, band.LeftBin, band.RightBin-1)
		}

		bands[i] = band
	}

	return bands
}

// GaussianWeights fills weights for bins [band.LeftBin, band.RightBin) with a
// Gaussian of standard deviation half the band's bandwidth, centred on the
// band centre. It returns the weight sum.
func (es *ERBScale) GaussianWeights(band ERBBand, sampleRate, fftSize int, weights []float64) float64 {
	binWidth := float64(sampleRate) / float64(fftSize)
	sigma := 0.5 * band.BandwidthHz
	if sigma <= 0 {
		sigma = binWidth
	}

	sum := 0.0
	for k := band.LeftBin; k < band.RightBin && k-band.LeftBin < len(weights); k++ {
		x := (binWidth*float64(k) - band.CenterHz) / sigma
		w := math.Exp(-0.5 * x * x)
		weights[k-band.LeftBin] = w
		sum += w
	}
	return sum
}

func clampBin(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
