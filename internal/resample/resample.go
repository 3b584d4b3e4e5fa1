// Package resample implements the pitch-scale resampler that
// ChannelProcessor drains its synthesized output through: a streaming
// fractional-ratio resampler that undoes the extra time factor the
// stretcher bakes into its effective ratio, realizing the pitch change.
//
// One stage only: a polyphase windowed-sinc filter bank with linear
// interpolation between adjacent phases. The stretcher feeds mono
// streams at fixed ratio, so there is no multi-stage pipeline, no
// channel fan-out, and no runtime ratio change here.
package resample

import (
	"errors"
	"fmt"
)

// ErrInvalidRatio is returned by New when the conversion ratio is out
// of the supported range.
var ErrInvalidRatio = errors.New("resample: invalid ratio")

// Supported ratio range. Pitch scales beyond five octaves in either
// direction are outside anything the stretcher produces.
const (
	minRatio = 1.0 / 64.0
	maxRatio = 64.0
)

// Quality selects the filter bank size.
type Quality int

const (
	// QualityFast uses a short filter, adequate for preview paths.
	QualityFast Quality = iota
	// QualityHigh is the default for audible output.
	QualityHigh
)

// qualityParams maps a Quality to filter bank dimensions and stopband
// attenuation in dB.
func qualityParams(q Quality) (taps, phases int, attenuation float64) {
	switch q {
	case QualityFast:
		return 16, 64, 70
	default:
		return 32, 128, 96
	}
}

// Config configures a Resampler.
type Config struct {
	// Ratio is output samples per input sample. The stretcher passes
	// 1/pitchScale: a pitch scale of 2 halves the duration of the
	// already-stretched stream.
	Ratio float64

	Quality Quality
}

// Resampler converts a mono stream by a fixed fractional ratio.
type Resampler struct {
	ratio float64
	step  float64 // input samples consumed per output sample
	taps  int
	bank  *filterBank

	buf []float64 // pending input, oldest first
	pos float64   // fractional read position into buf
}

// New builds a Resampler for the given ratio and quality.
func New(cfg Config) (*Resampler, error) {
	if cfg.Ratio < minRatio || cfg.Ratio > maxRatio {
		return nil, fmt.Errorf("%w: ratio %v outside [%v, %v]", ErrInvalidRatio, cfg.Ratio, minRatio, maxRatio)
	}

	taps, phases, attenuation := qualityParams(cfg.Quality)

	// When downsampling (ratio < 1) the cutoff must shrink with the
	// ratio to reject aliases; when upsampling the input Nyquist is the
	// limit either way.
	cutoff := 0.5 * rolloff
	if cfg.Ratio < 1 {
		cutoff *= cfg.Ratio
	}

	return &Resampler{
		ratio: cfg.Ratio,
		step:  1 / cfg.Ratio,
		taps:  taps,
		bank:  newFilterBank(taps, phases, cutoff, attenuation),
	}, nil
}

// rolloff keeps the passband edge below Nyquist so the finite filter
// has room to reach its stopband.
const rolloff = 0.945

// Process consumes input and returns whatever output samples can be
// formed from it plus previously buffered history. Output lags input by
// roughly half the filter length.
func (r *Resampler) Process(input []float64) ([]float64, error) {
	r.buf = append(r.buf, input...)
	return r.drain(), nil
}

// Flush pushes zero padding through the filter so the tail of the
// stream comes out, and returns those final samples. The Resampler must
// be Reset before further Process calls.
func (r *Resampler) Flush() ([]float64, error) {
	pad := make([]float64, r.taps)
	r.buf = append(r.buf, pad...)
	return r.drain(), nil
}

// Reset discards buffered input and the read position.
func (r *Resampler) Reset() {
	r.buf = r.buf[:0]
	r.pos = 0
}

// drain produces every output sample the buffered input supports, then
// compacts the buffer.
func (r *Resampler) drain() []float64 {
	var out []float64
	start := 0
	for {
		// Whole samples move into start so pos stays a fraction, and its
		// rounding does not depend on how input was split across calls.
		whole := int(r.pos)
		start += whole
		r.pos -= float64(whole)
		i := start
		if i+r.taps > len(r.buf) {
			break
		}
		frac := r.pos
		out = append(out, r.bank.interpolate(r.buf[i:i+r.taps], frac))
		r.pos += r.step
	}

	if n := start; n > 0 {
		if n > len(r.buf) {
			r.pos += float64(n - len(r.buf))
			n = len(r.buf)
		}
		r.buf = append(r.buf[:0], r.buf[n:]...)
	}
	return out
}
