package orchestrator

import (
	"github.com/DavidCaelum/rubberband/internal/ringbuf"
	"github.com/DavidCaelum/rubberband/internal/spectral"
)

// ensureStudyState lazily allocates the mono downmix ring and analyzer
// used only by the study pass; it is never touched outside Study.
func (o *Orchestrator) ensureStudyState() {
	if o.studyBuf == nil {
		o.studyBuf = ringbuf.New(maxInt(o.windowSize*4, 65536))
	}
	if o.studyAnalyzer == nil || o.studyAnalyzer.WindowSize() != o.windowSize {
		o.studyAnalyzer = spectral.New(o.windowSize)
	}
}

// Study runs the offline-only first pass: mix input down to mono,
// extract both onset curves per chunk, and accumulate inputDuration.
// final marks the last call; thereafter study() is rejected.
func (o *Orchestrator) Study(input [][]float64, final bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cfg.Realtime {
		o.logger.Warnf("orchestrator: study() rejected: not valid in realtime mode")
		return nil
	}
	if o.mode == Processing || o.mode == Finished {
		o.logger.Warnf("orchestrator: study() rejected in mode %s", o.mode)
		return nil
	}
	if o.studyFinal {
		o.logger.Warnf("orchestrator: study() rejected: already finalized")
		return nil
	}

	if o.mode == JustCreated {
		// Before the first study call inputDuration only holds the
		// SetExpectedInputDuration sizing hint; the study count starts at 0.
		o.inputDuration = 0
	}
	o.mode = Studying
	o.ensureStudyState()

	mono := mixdown(input)
	if len(mono) > 0 {
		if _, err := o.studyBuf.Write(mono); err != nil {
			o.logger.Warnf("orchestrator: study mixdown write hit backpressure: %v", err)
		}
	}

	threshold := o.windowSize
	if final {
		threshold = o.windowSize / 2
	}

	for o.studyBuf.ReadSpace() >= threshold {
		chunk := o.studyBuf.Peek(o.windowSize)
		if len(chunk) < o.windowSize {
			padded := make([]float64, o.windowSize)
			copy(padded, chunk)
			chunk = padded
		}
		coeffs := o.studyAnalyzer.Forward(chunk)
		mag := spectral.Magnitude(nil, coeffs)

		o.phaseResetDf = append(o.phaseResetDf, o.phaseResetCurve.Process(mag, o.inputInc))
		o.stretchDf = append(o.stretchDf, o.stretchCurve.Process(mag, o.inputInc))

		o.studyBuf.Advance(o.inputInc)
		o.inputDuration += o.inputInc

		if final && o.studyBuf.ReadSpace() < o.windowSize {
			break
		}
	}

	if final {
		o.inputDuration += o.studyBuf.ReadSpace()
		o.inputDuration -= o.windowSize / 2
		if o.inputDuration < 0 {
			o.inputDuration = 0
		}
		o.studyFinal = true
	}

	return nil
}

// mixdown sums channels then divides by channel count.
func mixdown(input [][]float64) []float64 {
	if len(input) == 0 {
		return nil
	}
	n := 0
	for _, ch := range input {
		if len(ch) > n {
			n = len(ch)
		}
	}
	if n == 0 {
		return nil
	}
	out := make([]float64, n)
	count := float64(len(input))
	for _, ch := range input {
		for i, v := range ch {
			out[i] += v
		}
	}
	for i := range out {
		out[i] /= count
	}
	return out
}
