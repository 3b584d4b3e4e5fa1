// Package spectral is the FFT/windowing boundary the analysis/stretch
// core sits behind: it owns the Hann window and the forward/inverse
// real FFT used to turn a time-domain analysis chunk into a magnitude
// spectrum, and back. The package is deliberately thin, delegating the
// actual transforms to gonum.org/v1/gonum/dsp/{window,fourier}.
package spectral

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyzer holds the FFT plan and scratch buffers for one window size.
// It is owned exclusively by a single ChannelProcessor (or the
// orchestrator's study pass) and is never shared across goroutines.
type Analyzer struct {
	windowSize int
	fft        *fourier.FFT
	windowed   []float64
	coeffs     []complex128
	timeDomain []float64
}

// New returns an Analyzer for the given window size.
func New(windowSize int) *Analyzer {
	a := &Analyzer{}
	a.Resize(windowSize)
	return a
}

// WindowSize returns the configured analysis/synthesis window size.
func (a *Analyzer) WindowSize() int { return a.windowSize }

// Resize rebuilds the FFT plan and scratch buffers for a new window
// size. Called from SetWindowSize() on the owning channel.
func (a *Analyzer) Resize(windowSize int) {
	if windowSize < 1 {
		windowSize = 1
	}
	a.windowSize = windowSize
	a.fft = fourier.NewFFT(windowSize)
	a.windowed = make([]float64, windowSize)
	a.coeffs = make([]complex128, windowSize/2+1)
	a.timeDomain = make([]float64, windowSize)
}

// Forward applies a periodic Hann window to timeDomain (windowSize
// samples) and returns its real FFT coefficients (windowSize/2+1 bins).
// The returned slice is owned by the Analyzer and is overwritten by the
// next call.
func (a *Analyzer) Forward(timeDomain []float64) []complex128 {
	copy(a.windowed, timeDomain)
	window.Hann(a.windowed)
	a.coeffs = a.fft.Coefficients(a.coeffs, a.windowed)
	return a.coeffs
}

// Magnitude returns |X[k]| for each bin of coeffs into dst, growing dst
// if necessary. dst may be nil.
func Magnitude(dst []float64, coeffs []complex128) []float64 {
	if cap(dst) < len(coeffs) {
		dst = make([]float64, len(coeffs))
	}
	dst = dst[:len(coeffs)]
	for i, c := range coeffs {
		dst[i] = cmplx.Abs(c)
	}
	return dst
}

// Inverse reconstructs windowSize time-domain samples from magnitude/phase
// spectrum bins via the inverse real FFT, undoing gonum's lack of 1/N
// normalization. The returned slice is owned by the Analyzer.
func (a *Analyzer) Inverse(coeffs []complex128) []float64 {
	a.timeDomain = a.fft.Sequence(a.timeDomain, coeffs)
	scale := 1.0 / float64(a.windowSize)
	for i := range a.timeDomain {
		a.timeDomain[i] *= scale
	}
	return a.timeDomain
}

// ApplyHann applies a periodic Hann window to buf in place. Exposed for
// the synthesis stage, which windows reconstructed frames before
// overlap-add.
func ApplyHann(buf []float64) {
	window.Hann(buf)
}
