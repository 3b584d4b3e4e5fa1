package rubberband

// Default synthesis frequency cutoffs in Hz, accessed by index 0/1/2
// via [Stretcher.GetFrequencyCutoff]. They are stored per instance
// only; the synthesis stage does not read them.
const (
	defaultFreqCutoff0 = 600.0
	defaultFreqCutoff1 = 1200.0
	defaultFreqCutoff2 = 12000.0
)

const numFreqCutoffs = 3

// transientsMask covers the flags SetTransientsOption may replace.
const transientsMask = TransientsCrisp | TransientsMixed | TransientsSmooth

// phaseMask covers the flags SetPhaseOption may replace.
const phaseMask = PhaseAdaptive | PhasePeakLocked | PhaseIndependent

// SetDebugLevel stores a per-instance (not process-wide) debug level,
// with negative values stored as 0. The level does not filter or add
// diagnostics: every warning reaches the Logger whatever its value.
func (s *Stretcher) SetDebugLevel(level int) {
	if level < 0 {
		level = 0
	}
	s.debugLevel = level
}

// GetDebugLevel returns the current per-instance debug level.
func (s *Stretcher) GetDebugLevel() int { return s.debugLevel }

// SetTransientsOption replaces the transients subset of the option
// flags (Crisp, Mixed, Smooth). Realtime only: offline schedules are
// computed once up front, so the call is logged and ignored in offline
// mode.
func (s *Stretcher) SetTransientsOption(flags Option) {
	if !s.options.has(ProcessRealTime) {
		s.logger.Warnf("rubberband: setTransientsOption ignored in offline mode")
		return
	}
	s.options = (s.options &^ transientsMask) | (flags & transientsMask)
	s.orch.SetUseHardPeaks(!flags.has(TransientsSmooth))
}

// SetPhaseOption replaces the phase-policy subset of the option flags
// (Adaptive, PeakLocked, Independent). May be called at any time. The
// flags are only stored; the synthesis stage does not read them.
func (s *Stretcher) SetPhaseOption(flags Option) {
	s.options = (s.options &^ phaseMask) | (flags & phaseMask)
}

// SetFrequencyCutoff sets one of the three tunable synthesis cutoffs in
// Hz by index (0, 1, or 2). Out-of-range indices and non-positive
// frequencies are logged and ignored.
func (s *Stretcher) SetFrequencyCutoff(n int, freq float64) {
	if n < 0 || n >= numFreqCutoffs {
		s.logger.Warnf("rubberband: setFrequencyCutoff ignored: index %d out of range", n)
		return
	}
	if freq <= 0 {
		s.logger.Warnf("rubberband: setFrequencyCutoff ignored: frequency must be positive, got %v", freq)
		return
	}
	s.freqCutoffs[n] = freq
}

// GetFrequencyCutoff returns the cutoff at index n in Hz, or 0 for an
// out-of-range index.
func (s *Stretcher) GetFrequencyCutoff(n int) float64 {
	if n < 0 || n >= numFreqCutoffs {
		return 0
	}
	return s.freqCutoffs[n]
}
