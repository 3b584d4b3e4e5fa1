package orchestrator

// Process dispatches to the offline or realtime process pass depending
// on configuration.
func (o *Orchestrator) Process(input [][]float64, final bool) error {
	if o.cfg.MaxProcessSize > 0 {
		for c, ch := range input {
			if len(ch) > o.cfg.MaxProcessSize {
				o.logger.Warnf("orchestrator: process() channel %d given %d samples, more than the declared max of %d; set a larger max process size",
					c, len(ch), o.cfg.MaxProcessSize)
				break
			}
		}
	}
	if o.cfg.Realtime {
		return o.ProcessRealtime(input, final)
	}
	return o.ProcessOffline(input, final)
}

// Available returns the number of samples retrievable right now, the
// minimum across channels (a partial chunk on one channel still blocks
// a synchronized multi-channel retrieve).
func (o *Orchestrator) Available() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.channels) == 0 {
		return 0
	}
	min := o.channels[0].Available()
	for _, proc := range o.channels[1:] {
		if a := proc.Available(); a < min {
			min = a
		}
	}
	return min
}

// Retrieve drains up to maxSamples samples per channel into output (and
// no more than the shortest output[c] holds), returning the number of samples actually written per channel (the
// minimum across channels, since a pitch-scale resampler can make each
// channel's Read return a slightly different count for the same request).
func (o *Orchestrator) Retrieve(output [][]float64, maxSamples int) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := maxSamples
	for c := range o.channels {
		if c < len(output) && len(output[c]) < n {
			n = len(output[c])
		}
	}
	for _, proc := range o.channels {
		if a := proc.Available(); a < n {
			n = a
		}
	}
	if n <= 0 {
		return 0
	}

	reads := make([][]float64, len(o.channels))
	got := n
	for c, proc := range o.channels {
		samples, err := proc.Read(n)
		if err != nil {
			o.logger.Warnf("orchestrator: retrieve failed on channel %d: %v", c, err)
			samples = nil
		}
		reads[c] = samples
		if len(samples) < got {
			got = len(samples)
		}
	}

	for c, samples := range reads {
		if c >= len(output) {
			continue
		}
		copy(output[c], samples[:got])
	}
	return got
}

// GetSamplesRequired returns the minimum per-channel input that would
// unblock at least one channel's next analyzeOne call.
func (o *Orchestrator) GetSamplesRequired() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	need := o.windowSize
	min := -1
	for _, proc := range o.channels {
		have := proc.InputReadSpace()
		deficit := need - have
		if deficit < 0 {
			deficit = 0
		}
		if min < 0 || deficit < min {
			min = deficit
		}
	}
	if min < 0 {
		return 0
	}
	return min
}

// Reset first stops and joins workers, then rebuilds channels, then
// restarts workers (only if the orchestrator was already running
// threaded). Study/stretch state is cleared and the mode returns to
// JustCreated.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	wasThreaded := o.workersRun
	o.stopWorkers()

	o.rebuildChannels()
	o.channelTotalIn = nil
	o.chunkIndex = nil
	o.phaseResetDf = nil
	o.stretchDf = nil
	o.inputDuration = 0
	o.studyFinal = false
	o.studyBuf = nil
	o.studyAnalyzer = nil
	o.outputIncrements = nil
	o.phaseResetTaken = nil
	o.exactTimePoints = nil
	o.rtDf = nil
	o.rtIncrements = nil
	o.rtAnalyzers = nil
	o.phaseResetCurve.Reset()
	o.stretchCurve.Reset()

	o.mode = JustCreated

	if wasThreaded {
		o.startWorkers()
	}
}
