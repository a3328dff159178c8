package harmonic

// MaxPeaks bounds the number of peak islands extracted per frame
const MaxPeaks = 64

// PeakIslands finds isolated envelope peaks across bands.
//
// Bands are scanned left to right while tracking a rising candidate above
// minAmplitude. Once the envelope falls by at least falloff*peak below the
// candidate, the bands between the island start and the candidate are
// searched backwards for a matching rise of the same size. Only peaks bounded
// on both sides are kept, so plateaus and monotonic slopes produce nothing.
// The reported frequency is the energy-weighted centroid of the island and the
// amplitude its maximum.
type PeakIslands struct {
	minAmplitude float64
	falloffNorm  float64
	peaks        []Peak
}

// NewPeakIslands creates an extractor with fixed capacity MaxPeaks
func NewPeakIslands(minAmplitude, falloffNorm float64) *PeakIslands {
	return &PeakIslands{
		minAmplitude: minAmplitude,
		falloffNorm:  falloffNorm,
		peaks:        make([]Peak, 0, MaxPeaks),
	}
}

// Extract returns the peaks of envelope. The returned slice is owned by the
// extractor and is overwritten by the next call.
func (pi *PeakIslands) Extract(envelope, centers []float64) []Peak {
	pi.peaks = pi.peaks[:0]

	n := min(len(envelope), len(centers))
	if n < 3 {
		return pi.peaks
	}

	islandStart := 0
	candidate := -1
	candidateValue := 0.0

	for i := 0; i < n; i++ {
		v := max(0.0, envelope[i]-pi.minAmplitude)

		if v > candidateValue {
			candidate = i
			candidateValue = v
			continue
		}
		if candidate < 0 {
			islandStart = i
			continue
		}

		drop := pi.falloffNorm * candidateValue
		if candidateValue-v < drop {
			continue
		}

		// look for the matching rise before the candidate
		risen := false
		for j := candidate - 1; j >= islandStart; j-- {
			back := max(0.0, envelope[j]-pi.minAmplitude)
			if candidateValue-back >= drop {
				risen = true
				break
			}
		}

		if risen && len(pi.peaks) < MaxPeaks {
			pi.peaks = append(pi.peaks, pi.island(envelope, centers, candidate, n))
		}

		islandStart = i
		candidate = -1
		candidateValue = 0.0
	}

	return pi.peaks
}

// island grows outward from peak while neighbours stay above the threshold
// and do not rise again, then returns the energy centroid
func (pi *PeakIslands) island(envelope, centers []float64, peak, n int) Peak {
	lo, hi := peak, peak
	for lo > 0 && envelope[lo-1] > pi.minAmplitude && envelope[lo-1] <= envelope[lo] {
		lo--
	}
	for hi < n-1 && envelope[hi+1] > pi.minAmplitude && envelope[hi+1] <= envelope[hi] {
		hi++
	}

	weighted, total := 0.0, 0.0
	for b := lo; b <= hi; b++ {
		e := envelope[b] * envelope[b]
		weighted += e * centers[b]
		total += e
	}

	freq := centers[peak]
	if total > 0 {
		freq = weighted / total
	}

	return Peak{
		FreqHz:    freq,
		Amplitude: envelope[peak],
		Band:      peak,
	}
}
