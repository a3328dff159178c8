package grouping

import (
	"testing"

	"github.com/RyanBlaney/sonido-cochlea/algorithms/cochlear"
	"github.com/RyanBlaney/sonido-cochlea/algorithms/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalF0SingleBandTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FMinHz = 100
	cfg.FMaxHz = 3500
	cfg.F0MinHz = 60
	cfg.F0MaxHz = 1400
	cfg.MaxHarmonics = 10
	cfg.MinHarmonicity = 0.1
	cfg.MinAmplitude = 0.001
	cfg.InferMissingFundamental = false
	g := NewGrouper(cfg)

	frame := newFrame(linearCenters(100, 3500, 64), 0)
	setSpike(frame, 1200, 1)

	// twice the tolerance offset at 1200 Hz
	margin := 2 * (1200*common.RatioFromCents(cfg.HarmonicToleranceCents) - 1200)

	accepted := 0
	for f0 := 60.0; f0 <= 1400; f0++ {
		ev := g.EvalF0WithMask(frame, f0, nil)
		if !ev.Accepted() {
			continue
		}
		accepted++
		assert.InDelta(t, 1200, f0, margin, "accepted %.0f Hz", f0)
	}
	assert.Equal(t, 48, accepted)

	ev := g.EvalF0WithMask(frame, 1200, nil)
	require.True(t, ev.Accepted())
	assert.Equal(t, []int{20}, ev.ContributingBands())
	assert.InDelta(t, 1.0, ev.Amplitude, 1e-9)
	assert.InDelta(t, 1.0, ev.Harmonicity, 1e-9)
	assert.InDelta(t, 1200, ev.CentroidHz, 1e-9)
	assert.InDelta(t, 0, ev.MatchErrorCents, 1e-6)
	assert.Equal(t, 1200.0, ev.F0Hz)

	// off-centre targets keep the peak but lose weight linearly in cents
	off := g.EvalF0WithMask(frame, 1190, nil)
	require.True(t, off.Accepted())
	assert.InDelta(t, 0.5861, off.Amplitude, 1e-3)
	assert.InDelta(t, 14.49, off.MatchErrorCents, 0.01)
}

func TestEvalF0MissingFundamental(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FMinHz = 100
	cfg.FMaxHz = 6000
	cfg.F0MinHz = 60
	cfg.F0MaxHz = 2000
	cfg.MaxHarmonics = 10
	cfg.MinHarmonicity = 0.1
	cfg.MinAmplitude = 0.001

	frame := newFrame(linearCenters(100, 6000, 96), 0)
	setSpike(frame, 2400, 1)
	setSpike(frame, 3600, 0.8)

	tests := []struct {
		name   string
		infer  bool
		wantOK bool
	}{
		{"inference off", false, false},
		{"inference on", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg
			c.InferMissingFundamental = tt.infer
			ev := NewGrouper(c).EvalF0WithMask(frame, 1200, nil)
			require.Equal(t, tt.wantOK, ev.Accepted())
			if !tt.wantOK {
				assert.Zero(t, ev.Harmonicity)
				return
			}
			assert.Len(t, ev.ContributingBands(), 2)
			assert.InDelta(t, 1.8, ev.Amplitude, 1e-9)
			assert.InDelta(t, 1.0, ev.Harmonicity, 1e-9)
			assert.Zero(t, ev.HarmonicEnergy[1])
		})
	}
}

func TestEvalF0ClaimedEnergy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FMinHz = 50
	cfg.FMaxHz = 3500
	cfg.F0MinHz = 60
	cfg.F0MaxHz = 1400
	cfg.ReusePenalty = 0.6
	g := NewGrouper(cfg)

	frame := newFrame(linearCenters(50, 3500, 64), 0)
	setSpike(frame, 1200, 1)
	band := common.NearestIndex(frame.BandCenterHz, 1200)

	free := g.EvalF0WithMask(frame, 1200, nil)
	require.True(t, free.Accepted())
	assert.InDelta(t, 1.0, free.Harmonicity, 1e-12)
	assert.InDelta(t, 1.0, free.Amplitude, 1e-12)

	claimed := make([]float64, 64)
	claimed[band] = 1
	penalized := g.EvalF0WithMask(frame, 1200, claimed)
	require.True(t, penalized.Accepted())
	assert.InDelta(t, 0.4, penalized.Harmonicity, 1e-12)
	assert.InDelta(t, 0.4, penalized.Amplitude, 1e-12)
}

func TestEvalF0Degenerate(t *testing.T) {
	g := NewGrouper(DefaultConfig())
	frame := newFrame(erbCenters(), 0)

	assert.False(t, g.EvalF0WithMask(frame, 200, nil).Accepted(), "silent frame")
	setSpike(frame, 200, 1)
	assert.False(t, g.EvalF0WithMask(frame, 0, nil).Accepted())
	assert.False(t, g.EvalF0WithMask(newFrame(nil, 0), 200, nil).Accepted())
}

func TestEvaluationValueReceivers(t *testing.T) {
	g := NewGrouper(DefaultConfig())
	frame := newFrame(erbCenters(), 0)
	spikeStack(frame, 220, 1, 6)

	// methods must be callable on a non-addressable return value
	assert.True(t, g.EvalF0WithMask(frame, 220, nil).Accepted())
	assert.NotEmpty(t, g.EvalF0WithMask(frame, 220, nil).ContributingBands())
	assert.Empty(t, Evaluation{}.ContributingBands())
}

func TestEvalF0WideFrame(t *testing.T) {
	g := NewGrouper(DefaultConfig())

	frame := cochlear.NewFrame(200)
	for i := range frame.BandCenterHz {
		frame.BandCenterHz[i] = 80 + 19*float64(i)
	}
	frame.Envelope[6] = 1

	assert.NotPanics(t, func() {
		ev := g.EvalF0WithMask(frame, 194, nil)
		assert.True(t, ev.Accepted())
		assert.Equal(t, []int{6}, ev.ContributingBands())
	})
	assert.NotPanics(t, func() {
		g.Update(frame)
	})

	// bands past the supported count are ignored
	frame.Envelope[6] = 0
	frame.Envelope[150] = 1
	assert.False(t, g.EvalF0WithMask(frame, frame.BandCenterHz[150], nil).Accepted())
}

func TestExtractPeaks(t *testing.T) {
	centers := linearCenters(100, 1000, 10)

	tests := []struct {
		name     string
		env      []float64
		claimed  []float64
		minAmp   float64
		wantTops []int
		wantSums []float64
	}{
		{
			name:     "two separated peaks",
			env:      []float64{0, 0.5, 1, 0.5, 0, 0, 0.2, 0.4, 0.2, 0},
			wantTops: []int{2, 7},
			wantSums: []float64{2, 0.8},
		},
		{
			name:     "growth stops at two bands",
			env:      []float64{0.1, 0.2, 0.3, 0.4, 1, 0.4, 0.3, 0.2, 0.1, 0},
			wantTops: []int{4},
			wantSums: []float64{2.4},
		},
		{
			name:     "plateau counts once",
			env:      []float64{0, 1, 1, 0, 0, 0, 0, 0, 0, 0},
			wantTops: []int{1},
			wantSums: []float64{2},
		},
		{
			name:     "relative floor drops tiny ripples",
			env:      []float64{0, 0.01, 0, 0, 1, 0, 0, 0, 0, 0},
			wantTops: []int{4},
			wantSums: []float64{1},
		},
		{
			name:     "absolute floor",
			env:      []float64{0, 0.05, 0, 0, 0, 0, 0, 0, 0, 0},
			minAmp:   0.1,
			wantTops: nil,
		},
		{
			name: "silence",
			env:  make([]float64, 10),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peaks := extractPeaks(nil, tt.env, centers, tt.claimed, tt.minAmp)
			require.Len(t, peaks, len(tt.wantTops))
			for i, p := range peaks {
				assert.Equal(t, tt.wantTops[i], p.top)
				assert.InDelta(t, tt.wantSums[i], p.energy, 1e-9)
			}
		})
	}

	env := []float64{0, 0.5, 1, 0.5, 0, 0, 0, 0, 0, 0}
	claimed := []float64{0, 1, 0, 0}
	peaks := extractPeaks(nil, env, centers, claimed, 0)
	require.Len(t, peaks, 1)
	assert.Equal(t, 0, peaks[0].left)
	assert.Equal(t, 4, peaks[0].right)
	assert.InDelta(t, 300, peaks[0].centroidHz, 1e-9)
	assert.InDelta(t, 0.25, peaks[0].claimed, 1e-9, "claims are weighted by energy")
}

func TestFindBestPeak(t *testing.T) {
	peaks := []bandPeak{
		{top: 3, energy: 1, centroidHz: 400},
		{top: 4, energy: 4, centroidHz: 408},
		{top: 9, energy: 1, centroidHz: 1000},
	}

	k, within := findBestPeak(402, peaks, 35)
	assert.Equal(t, 1, k, "a louder peak slightly farther away wins")
	assert.InDelta(t, 1-common.AbsCents(402, 408)/35, within, 1e-6)

	k, _ = findBestPeak(400, peaks, 35)
	assert.Equal(t, 0, k)

	k, within = findBestPeak(1000, peaks, 35)
	assert.Equal(t, 2, k)
	assert.InDelta(t, 1.0, within, 1e-6)

	k, _ = findBestPeak(700, peaks, 35)
	assert.Equal(t, -1, k, "no peak near the target")
}

func TestBandLocalWidth(t *testing.T) {
	centers := []float64{100, 200, 400}
	assert.Equal(t, 50.0, bandLocalWidth(centers, 0))
	assert.Equal(t, 150.0, bandLocalWidth(centers, 1))
	assert.Equal(t, 100.0, bandLocalWidth(centers, 2))
	assert.Equal(t, 1.0, bandLocalWidth([]float64{100}, 0))
}
