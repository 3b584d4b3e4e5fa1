package resample

import (
	"math"

	"github.com/tphakala/simd/f64"
)

// filterBank holds phases+1 windowed-sinc filters, one per fractional
// sub-sample offset in [0, 1]. Row p is the filter for offset p/phases;
// the extra final row (offset 1) lets interpolate lerp without
// wrapping. Immutable after construction.
type filterBank struct {
	taps   int
	phases int
	rows   [][]float64
}

// newFilterBank designs the Kaiser-windowed sinc bank for the given
// cutoff (cycles per input sample, <= 0.5) and stopband attenuation.
// Every row is normalized to unity DC gain.
func newFilterBank(taps, phases int, cutoff, attenuation float64) *filterBank {
	beta := kaiserBeta(attenuation)
	center := float64(taps-1) / 2
	half := float64(taps) / 2

	rows := make([][]float64, phases+1)
	for p := range rows {
		offset := float64(p) / float64(phases)
		h := make([]float64, taps)
		for k := range h {
			t := float64(k) - center - offset
			h[k] = 2 * cutoff * sinc(2*cutoff*t) * kaiserWindow(t/half, beta)
		}
		if sum := f64.Sum(h); sum != 0 {
			f64.Scale(h, h, 1/sum)
		}
		rows[p] = h
	}

	return &filterBank{taps: taps, phases: phases, rows: rows}
}

// interpolate evaluates the signal window at fractional offset frac in
// [0, 1) by blending the two nearest phase filters. seg must be exactly
// taps long.
func (b *filterBank) interpolate(seg []float64, frac float64) float64 {
	scaled := frac * float64(b.phases)
	p := int(scaled)
	if p >= b.phases {
		p = b.phases - 1
	}
	blend := scaled - float64(p)

	v0 := f64.DotProductUnsafe(seg, b.rows[p])
	v1 := f64.DotProductUnsafe(seg, b.rows[p+1])
	return v0 + blend*(v1-v0)
}

// kaiserBeta derives the Kaiser shape parameter from the desired
// stopband attenuation in dB.
func kaiserBeta(attenuation float64) float64 {
	switch {
	case attenuation > 50:
		return 0.1102 * (attenuation - 8.7)
	case attenuation >= 21:
		return 0.5842*math.Pow(attenuation-21, 0.4) + 0.07886*(attenuation-21)
	default:
		return 0
	}
}

// kaiserWindow evaluates the Kaiser window at normalized position u in
// [-1, 1]; positions outside the window are zero.
func kaiserWindow(u, beta float64) float64 {
	x := 1 - u*u
	if x < 0 {
		return 0
	}
	return besselI0(beta*math.Sqrt(x)) / besselI0(beta)
}

// besselI0 is the zeroth-order modified Bessel function of the first
// kind, by power series.
func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	half := x / 2
	for k := 1; k < 64; k++ {
		term *= (half / float64(k)) * (half / float64(k))
		sum += term
		if term < sum*1e-14 {
			break
		}
	}
	return sum
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}
