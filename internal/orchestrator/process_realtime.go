package orchestrator

import (
	"github.com/DavidCaelum/rubberband/internal/channelproc"
	"github.com/DavidCaelum/rubberband/internal/spectral"
)

// rtRingCap bounds the inspection ring buffers for df/increment
// history; oldest entries are dropped once full.
const rtRingCap = 4096

func (o *Orchestrator) ensureRealtimeAnalyzers() {
	if len(o.rtAnalyzers) == len(o.channels) {
		allSized := true
		for _, a := range o.rtAnalyzers {
			if a.WindowSize() != o.windowSize {
				allSized = false
				break
			}
		}
		if allSized {
			return
		}
	}
	o.rtAnalyzers = make([]*spectral.Analyzer, len(o.channels))
	for i := range o.rtAnalyzers {
		o.rtAnalyzers[i] = spectral.New(o.windowSize)
	}
}

// ProcessRealtime runs the one-pass low-latency path: input is written
// into every channel's ring, then as many full cross-channel
// chunks as are available are processed one at a time via
// processOneChunk. A full outbuf is grown by analyzeChunk rather than
// reported; any other AnalyzeOne failure is returned as
// channelproc.ErrWouldBlock.
func (o *Orchestrator) ProcessRealtime(input [][]float64, final bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.mode == Finished {
		o.logger.Warnf("orchestrator: process() rejected: already finished")
		return nil
	}
	if o.mode == JustCreated {
		o.mode = Processing
		o.ensureChannelState()
	}
	o.ensureRealtimeAnalyzers()

	for c, proc := range o.channels {
		if c >= len(input) {
			continue
		}
		if _, err := proc.Write(input[c]); err != nil {
			o.logger.Warnf("orchestrator: realtime write hit backpressure on channel %d: %v", c, err)
		}
	}

	// Mark the input closed before forming chunks so the last partial
	// chunk (at least half a window) can be analyzed zero-padded.
	if final {
		for _, proc := range o.channels {
			proc.SetFinalInputSize(proc.InCount() + proc.InputReadSpace())
		}
	}

	for {
		threshold := o.windowSize
		if final {
			threshold = o.windowSize / 2
		}
		ready := true
		for _, proc := range o.channels {
			if proc.InputReadSpace() < threshold {
				ready = false
				break
			}
		}
		if !ready {
			break
		}
		if err := o.processOneChunk(); err != nil {
			return err
		}
	}

	if final {
		o.mode = Finished
	}

	return nil
}

// processOneChunk makes one shared df/increment decision from the
// summed magnitude spectrum across channels and applies it identically
// to every channel's synthesis, so chunks at the same index always use
// the same scheduler decision.
func (o *Orchestrator) processOneChunk() error {
	var sumMag []float64
	for c, proc := range o.channels {
		chunk := proc.PeekInput(o.windowSize)
		if len(chunk) < o.windowSize {
			padded := make([]float64, o.windowSize)
			copy(padded, chunk)
			chunk = padded
		}
		coeffs := o.rtAnalyzers[c].Forward(chunk)
		mag := spectral.Magnitude(nil, coeffs)
		if sumMag == nil {
			sumMag = mag
		} else {
			for i, v := range mag {
				sumMag[i] += v
			}
		}
	}

	df := o.phaseResetCurve.Process(sumMag, o.inputInc)
	inc := o.calc.CalculateOne(o.effectiveRatio(), df)

	o.pushRt(df, inc)

	for c, proc := range o.channels {
		if err := o.analyzeChunk(c, proc, inc); err != nil {
			return channelproc.ErrWouldBlock
		}
	}
	return nil
}

func (o *Orchestrator) pushRt(df float64, inc int) {
	o.rtDf = append(o.rtDf, df)
	if len(o.rtDf) > rtRingCap {
		o.rtDf = o.rtDf[len(o.rtDf)-rtRingCap:]
	}
	o.rtIncrements = append(o.rtIncrements, inc)
	if len(o.rtIncrements) > rtRingCap {
		o.rtIncrements = o.rtIncrements[len(o.rtIncrements)-rtRingCap:]
	}

	chunkIdx := len(o.outputIncrements)
	o.outputIncrements = append(o.outputIncrements, inc)
	reset := inc < 0
	o.phaseResetTaken = append(o.phaseResetTaken, reset)
	if reset {
		o.exactTimePoints = append(o.exactTimePoints, chunkIdx*o.inputInc)
	}
}

// GetRealtimeDfHistory returns a copy of the realtime df inspection ring.
func (o *Orchestrator) GetRealtimeDfHistory() []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]float64, len(o.rtDf))
	copy(out, o.rtDf)
	return out
}

// GetRealtimeIncrementHistory returns a copy of the realtime increment
// inspection ring.
func (o *Orchestrator) GetRealtimeIncrementHistory() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int, len(o.rtIncrements))
	copy(out, o.rtIncrements)
	return out
}
