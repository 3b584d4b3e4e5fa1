// Package channelproc implements ChannelProcessor: the per-channel state
// machine that turns scheduled output increments into synthesized PCM.
// It owns an input ring buffer, an overlap-add accumulator, an FFT
// workspace (via internal/spectral), phase memory (via internal/synth),
// an output ring buffer, and an optional pitch-scale resampler
// (internal/resample).
package channelproc

import (
	"errors"
	"fmt"

	"github.com/DavidCaelum/rubberband/internal/resample"
	"github.com/DavidCaelum/rubberband/internal/ringbuf"
	"github.com/DavidCaelum/rubberband/internal/spectral"
	"github.com/DavidCaelum/rubberband/internal/synth"
)

// ErrWouldBlock is returned by Write when inbuf has no free space; the
// caller must drain output via Read and retry.
var ErrWouldBlock = ringbuf.ErrWouldBlock

// Config configures a new Processor.
type Config struct {
	WindowSize     int
	InputIncrement int
	InbufCapacity  int
	OutbufCapacity int
	PitchScale     float64
	Realtime       bool // realtime channels skip the offline centering prefill
}

// Processor is one channel's analysis/synthesis state.
type Processor struct {
	cfg Config

	inbuf       *ringbuf.Buffer
	outbuf      *ringbuf.Buffer
	accumulator []float64

	analyzer *spectral.Analyzer
	synth    *synth.PhaseVocoder

	resampler *resample.Resampler

	inCount     int
	outCount    int
	inputSize   *int
	draining    bool
	finished    bool
}

// New constructs a Processor and, in offline mode, pre-zeros
// windowSize/2 samples of inbuf so the first analysis chunk is centered
// on input sample 0.
func New(cfg Config) (*Processor, error) {
	if cfg.WindowSize < 1 || cfg.InputIncrement < 1 {
		return nil, fmt.Errorf("channelproc: invalid window/increment (%d/%d)", cfg.WindowSize, cfg.InputIncrement)
	}
	if cfg.PitchScale <= 0 {
		cfg.PitchScale = 1
	}

	p := &Processor{
		cfg:         cfg,
		inbuf:       ringbuf.New(cfg.InbufCapacity),
		outbuf:      ringbuf.New(cfg.OutbufCapacity),
		accumulator: make([]float64, cfg.WindowSize),
		analyzer:    spectral.New(cfg.WindowSize),
		synth:       synth.New(cfg.WindowSize),
	}

	if cfg.PitchScale != 1 {
		// The stretcher has already stretched by timeRatio*pitchScale;
		// resampling by 1/pitchScale restores the requested duration
		// while keeping the transposition.
		r, err := resample.New(resample.Config{
			Ratio:   1 / cfg.PitchScale,
			Quality: resample.QualityHigh,
		})
		if err != nil {
			return nil, fmt.Errorf("channelproc: building pitch resampler: %w", err)
		}
		p.resampler = r
	}

	if !cfg.Realtime {
		p.inbuf.PrefillZeros(cfg.WindowSize / 2)
	}

	return p, nil
}

// Write pushes samples into inbuf. It writes as much as fits and returns
// ErrWouldBlock (the same value as ringbuf.ErrWouldBlock) only when no
// space at all remains.
func (p *Processor) Write(samples []float64) (int, error) {
	return p.inbuf.Write(samples)
}

// InputWriteSpace reports how many more samples Write would accept right
// now.
func (p *Processor) InputWriteSpace() int { return p.inbuf.WriteSpace() }

// InputReadSpace reports how many samples are buffered and unconsumed.
func (p *Processor) InputReadSpace() int { return p.inbuf.ReadSpace() }

// PeekInput copies up to n buffered input samples without consuming them,
// used by the realtime cross-channel pre-pass to build a combined
// magnitude spectrum before any channel's AnalyzeOne runs.
func (p *Processor) PeekInput(n int) []float64 { return p.inbuf.Peek(n) }

// SetFinalInputSize marks the input stream closed at samples total
// written. inputSize is an *int: nil means the stream is still open.
func (p *Processor) SetFinalInputSize(samples int) {
	v := samples
	p.inputSize = &v
}

// Draining reports whether the channel has seen its final input and is
// emitting its remaining overlap-added tail.
func (p *Processor) Draining() bool { return p.draining }

// Finished reports whether no more chunks can ever be formed.
func (p *Processor) Finished() bool { return p.finished }

// ReadyToAnalyze reports whether AnalyzeOne can make progress right now:
// a full window in the common case, or at least half a window once the
// final input size is known (the partial final chunk is zero-padded).
func (p *Processor) ReadyToAnalyze() bool {
	need := p.cfg.WindowSize
	if p.inputSize != nil {
		need = p.cfg.WindowSize / 2
	}
	return p.inbuf.ReadSpace() >= need
}

// AnalyzeOne peeks one analysis window, runs it through the FFT and
// phase-vocoder synthesis for the scheduled output hop, overlap-adds the
// result into outbuf, and advances inbuf by the input increment.
//
// outputIncrement follows the schedule encoding: negative marks a hard
// phase reset (the magnitude is the synthesis hop).
func (p *Processor) AnalyzeOne(outputIncrement int) error {
	w := p.cfg.WindowSize
	available := p.inbuf.ReadSpace()

	if available < w && p.inputSize == nil {
		return errors.New("channelproc: AnalyzeOne called without a full window buffered")
	}
	if available < w/2 {
		p.draining = true
		p.finished = true
		return nil
	}

	chunk := p.inbuf.Peek(w)
	if len(chunk) < w {
		padded := make([]float64, w)
		copy(padded, chunk)
		chunk = padded
	}

	phaseReset := outputIncrement < 0
	hop := outputIncrement
	if hop < 0 {
		hop = -hop
	}
	if hop < 1 {
		hop = 1
	}

	n := hop
	if n > w {
		n = w
	}
	if p.outbuf.WriteSpace() < n {
		// Checked before any synthesis: phase memory and the
		// accumulator are untouched, so the caller can grow the output
		// ring (or drain it) and repeat this call safely.
		return ErrWouldBlock
	}

	coeffs := p.analyzer.Forward(chunk)
	frame := p.synth.Synthesize(coeffs, p.cfg.InputIncrement, hop, phaseReset)

	for i := 0; i < w; i++ {
		p.accumulator[i] += frame[i]
	}

	out := make([]float64, n)
	copy(out, p.accumulator[:n])

	copy(p.accumulator, p.accumulator[n:])
	for i := w - n; i < w; i++ {
		p.accumulator[i] = 0
	}

	if _, err := p.outbuf.Write(out); err != nil {
		return err
	}

	p.inbuf.Advance(p.cfg.InputIncrement)
	p.inCount += p.cfg.InputIncrement
	p.outCount += n

	if p.inputSize != nil && p.inbuf.ReadSpace() < w/2 {
		p.draining = true
		p.finished = true
	}

	return nil
}

// Available reports how many samples Read would currently return,
// accounting for the resampler's own buffering when pitchScale != 1.
func (p *Processor) Available() int {
	if p.resampler == nil {
		return p.outbuf.ReadSpace()
	}
	// Conservative: the resampler holds back up to a filter window of
	// input, so what outbuf currently holds is an upper bound on what
	// resampling could yield; the exact count is learned by the Read
	// call itself.
	return p.outbuf.ReadSpace()
}

// Read drains up to n samples, resampling through the pitch-scale
// resampler first when configured.
func (p *Processor) Read(n int) ([]float64, error) {
	raw := p.outbuf.Read(n)
	if p.resampler == nil || len(raw) == 0 {
		return raw, nil
	}
	out, err := p.resampler.Process(raw)
	if err != nil {
		return nil, fmt.Errorf("channelproc: pitch resample: %w", err)
	}
	return out, nil
}

// Flush drains any samples still held inside the pitch-scale resampler,
// to be called once all AnalyzeOne calls are done.
func (p *Processor) Flush() ([]float64, error) {
	if p.resampler == nil {
		return nil, nil
	}
	out, err := p.resampler.Flush()
	if err != nil {
		return nil, fmt.Errorf("channelproc: pitch resampler flush: %w", err)
	}
	return out, nil
}

// Reset clears inbuf, outbuf, the overlap-add accumulator, and phase
// memory, re-applying the offline centering prefill if applicable.
func (p *Processor) Reset() {
	p.inbuf.Clear()
	p.outbuf.Clear()
	for i := range p.accumulator {
		p.accumulator[i] = 0
	}
	p.synth.Reset()
	if p.resampler != nil {
		p.resampler.Reset()
	}
	p.inCount = 0
	p.outCount = 0
	p.inputSize = nil
	p.draining = false
	p.finished = false

	if !p.cfg.Realtime {
		p.inbuf.PrefillZeros(p.cfg.WindowSize / 2)
	}
}

// SetWindowSize rebuilds the FFT workspace and phase memory for a new
// window size (a reconfigure triggered by a ratio change).
func (p *Processor) SetWindowSize(windowSize int) {
	p.cfg.WindowSize = windowSize
	p.analyzer.Resize(windowSize)
	p.synth.SetWindowSize(windowSize)
	p.accumulator = make([]float64, windowSize)
}

// SetInputIncrement updates the nominal input hop (a reconfigure).
func (p *Processor) SetInputIncrement(inputIncrement int) {
	p.cfg.InputIncrement = inputIncrement
}

// GrowOutbuf grows the output ring buffer, used when the sized outbuf
// capacity proves too small for a long stretch.
func (p *Processor) GrowOutbuf(capacity int) {
	p.outbuf.Grow(capacity)
}

// OutbufCapacity returns the output ring's current capacity.
func (p *Processor) OutbufCapacity() int { return p.outbuf.Capacity() }

// InCount returns the number of input samples consumed so far.
func (p *Processor) InCount() int { return p.inCount }

// OutCount returns the number of output samples produced so far.
func (p *Processor) OutCount() int { return p.outCount }
