package orchestrator

import "github.com/DavidCaelum/rubberband/internal/channelproc"

// ensureProcessing performs the JustCreated/Studying -> Processing
// transition, computing the output-increment schedule exactly once.
func (o *Orchestrator) ensureProcessing() {
	if o.mode == Processing || o.mode == Finished {
		return
	}
	if o.mode == JustCreated && !o.cfg.Realtime {
		// "process() (offline) -> Processing (after implicit empty
		// calculateStretch)": no study data exists, so the schedule
		// stays empty and scheduledIncrement gives every chunk the
		// nominal hop.
		o.outputIncrements = nil
	}
	if o.mode == Studying {
		o.outputIncrements = o.calc.Calculate(o.effectiveRatio(), o.inputDuration, o.phaseResetDf, o.stretchDf)
		o.populateScheduleMeta()
		o.phaseResetDf = nil
		o.stretchDf = nil
	}
	o.mode = Processing
	o.ensureChannelState()
	if o.cfg.Threaded && o.cfg.Channels > 1 {
		o.startWorkers()
	}
}

func (o *Orchestrator) ensureChannelState() {
	if o.channelTotalIn == nil {
		o.channelTotalIn = make([]int, len(o.channels))
	}
	if o.chunkIndex == nil {
		o.chunkIndex = make([]int, len(o.channels))
	}
}

// scheduledIncrement returns the output increment for chunk index idx on
// the offline schedule, falling back to the nominal hop (scaled by
// effectiveRatio) if the study pass under-provisioned the schedule.
// That happens when process() is called without a preceding study()
// (the "implicit empty calculateStretch" transition), and for the last
// chunks of every offline pass: the process pass starts from a
// half-window zero prefill that the study buffer does not have, so it
// forms more chunks than the study pass did.
func (o *Orchestrator) scheduledIncrement(idx int) int {
	if idx < len(o.outputIncrements) {
		return o.outputIncrements[idx]
	}
	nominal := int(float64(o.inputInc) * o.effectiveRatio())
	if nominal < 1 {
		nominal = 1
	}
	return nominal
}

// ProcessOffline runs the offline process pass. Can be called multiple
// times with successive chunks of input before the final=true call.
// Returns channelproc.ErrWouldBlock only when the call made no forward
// progress at all: the caller must Retrieve to drain output and call
// again.
func (o *Orchestrator) ProcessOffline(input [][]float64, final bool) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.mode == Finished {
		o.logger.Warnf("orchestrator: process() rejected: already finished")
		return nil
	}
	o.ensureProcessing()

	if o.cfg.Threaded && o.cfg.Channels > 1 {
		return o.processOfflineThreaded(input, final)
	}
	return o.processOfflineInline(input, final)
}

func (o *Orchestrator) processOfflineInline(input [][]float64, final bool) error {
	remaining := make([][]float64, len(o.channels))
	for c := range o.channels {
		if c < len(input) {
			remaining[c] = input[c]
		}
	}
	offsets := make([]int, len(o.channels))

	anyOverallProgress := false

	for {
		progress := false
		for c, proc := range o.channels {
			if offsets[c] < len(remaining[c]) {
				n, err := proc.Write(remaining[c][offsets[c]:])
				if err != nil {
					continue
				}
				if n > 0 {
					offsets[c] += n
					o.channelTotalIn[c] += n
					progress = true
				}
			}
		}

		for c, proc := range o.channels {
			for proc.ReadyToAnalyze() {
				inc := o.scheduledIncrement(o.chunkIndex[c])
				if err := o.analyzeChunk(c, proc, inc); err != nil {
					break
				}
				o.chunkIndex[c]++
				progress = true
			}
		}

		if progress {
			anyOverallProgress = true
		}

		done := true
		for c := range o.channels {
			if offsets[c] < len(remaining[c]) {
				done = false
			}
		}
		if done || !progress {
			break
		}
	}

	if final {
		for c, proc := range o.channels {
			proc.SetFinalInputSize(o.channelTotalIn[c])
			for proc.ReadyToAnalyze() {
				inc := o.scheduledIncrement(o.chunkIndex[c])
				if err := o.analyzeChunk(c, proc, inc); err != nil {
					break
				}
				o.chunkIndex[c]++
			}
		}
		o.mode = Finished
	}

	allOffsetsConsumed := true
	for c := range o.channels {
		if offsets[c] < len(remaining[c]) {
			allOffsetsConsumed = false
		}
	}
	if !anyOverallProgress && !allOffsetsConsumed {
		return channelproc.ErrWouldBlock
	}
	return nil
}
