// Package synth implements the per-channel phase-vocoder synthesis
// step: magnitude/phase reconstruction from an analysis spectrum plus a
// scheduled output hop, producing a windowed time-domain frame ready
// for overlap-add. It sits outside the analysis/stretch-planning core,
// crossing the boundary at ChannelProcessor.AnalyzeOne; this is the
// minimal implementation that makes the library produce real audio end
// to end.
package synth

import (
	"math"
	"math/cmplx"

	"github.com/DavidCaelum/rubberband/internal/spectral"
)

// PhaseVocoder carries the rolling phase memory for one channel's
// synthesis across chunks.
type PhaseVocoder struct {
	windowSize int
	bins       int

	lastAnalysisPhase []float64
	synthesisPhase    []float64

	analyzer *spectral.Analyzer
	frame    []float64
}

// New returns a PhaseVocoder sized for windowSize.
func New(windowSize int) *PhaseVocoder {
	pv := &PhaseVocoder{}
	pv.SetWindowSize(windowSize)
	return pv
}

// SetWindowSize rebuilds phase memory and the inverse-FFT plan for a new
// window size, invalidating prior phase history.
func (pv *PhaseVocoder) SetWindowSize(windowSize int) {
	if windowSize < 1 {
		windowSize = 1
	}
	pv.windowSize = windowSize
	pv.bins = windowSize/2 + 1
	pv.lastAnalysisPhase = make([]float64, pv.bins)
	pv.synthesisPhase = make([]float64, pv.bins)
	pv.analyzer = spectral.New(windowSize)
	pv.frame = make([]float64, windowSize)
}

// Reset clears phase memory without discarding the FFT plan.
func (pv *PhaseVocoder) Reset() {
	for i := range pv.lastAnalysisPhase {
		pv.lastAnalysisPhase[i] = 0
		pv.synthesisPhase[i] = 0
	}
}

// Synthesize reconstructs a windowSize time-domain frame, Hann-windowed
// for overlap-add, from an analysis spectrum. inputIncrement is the hop
// that produced coeffs; outputIncrement is the scheduled synthesis hop
// (always positive: sign/hard-reset semantics are resolved by the
// caller, which passes phaseReset explicitly).
func (pv *PhaseVocoder) Synthesize(coeffs []complex128, inputIncrement, outputIncrement int, phaseReset bool) []float64 {
	n := len(coeffs)
	if n != pv.bins {
		pv.SetWindowSize((n - 1) * 2)
		n = pv.bins
	}

	out := make([]complex128, n)

	for k := 0; k < n; k++ {
		mag := cmplx.Abs(coeffs[k])
		phase := cmplx.Phase(coeffs[k])

		if phaseReset {
			pv.synthesisPhase[k] = phase
			pv.lastAnalysisPhase[k] = phase
			out[k] = cmplx.Rect(mag, phase)
			continue
		}

		omega := 2 * math.Pi * float64(k) * float64(inputIncrement) / float64(pv.windowSize)
		delta := phase - pv.lastAnalysisPhase[k] - omega
		delta = wrapPhase(delta)

		trueFreq := omega + delta
		phaseRatePerSample := trueFreq / float64(maxInt(inputIncrement, 1))

		pv.synthesisPhase[k] = wrapPhase(pv.synthesisPhase[k] + phaseRatePerSample*float64(outputIncrement))
		pv.lastAnalysisPhase[k] = phase

		out[k] = cmplx.Rect(mag, pv.synthesisPhase[k])
	}

	frame := pv.analyzer.Inverse(out)
	copy(pv.frame, frame)
	spectral.ApplyHann(pv.frame)
	return pv.frame
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
