package rubberband

import (
	"fmt"

	"github.com/DavidCaelum/rubberband/internal/orchestrator"
	"github.com/DavidCaelum/rubberband/internal/sizer"
)

const defaultWindowSize = 2048

// baseWindowSize scales the default analysis window with the sample
// rate (48 kHz reference, never below the default) and applies the
// short/long window flag multiplier, keeping the result a power of two.
func baseWindowSize(sampleRate, windowMult float64) int {
	base := sizer.RoundUpPow2(int(defaultWindowSize * sizer.RateMultiple(sampleRate)))
	switch windowMult {
	case 0.5:
		return base / 2
	case 2.0:
		return base * 2
	default:
		return base
	}
}

// loggerAdapter bridges the public Logger to orchestrator.Logger,
// forwarding through the owning Stretcher so a later SetLogger call
// takes effect without reconstructing the orchestrator.
type loggerAdapter struct{ s *Stretcher }

func (a loggerAdapter) Warnf(format string, args ...any) { a.s.logger.Warnf(format, args...) }

// Stretcher is the public phase-vocoder time-stretcher/pitch-shifter:
// a thin streaming facade over an [*orchestrator.Orchestrator].
type Stretcher struct {
	orch        *orchestrator.Orchestrator
	sampleRate  float64
	channels    int
	options     Option
	logger      Logger
	debugLevel  int
	freqCutoffs [numFreqCutoffs]float64
}

// New constructs a Stretcher for sampleRate Hz, channels audio channels,
// the given option bitset, and initial time/pitch ratios.
func New(sampleRate float64, channels int, options Option, initialTimeRatio, initialPitchScale float64) (*Stretcher, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sampleRate must be positive, got %v", ErrInvalidConfig, sampleRate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("%w: channels must be >= 1, got %d", ErrInvalidConfig, channels)
	}
	if initialTimeRatio <= 0 {
		return nil, fmt.Errorf("%w: initialTimeRatio must be positive, got %v", ErrInvalidConfig, initialTimeRatio)
	}
	if initialPitchScale <= 0 {
		return nil, fmt.Errorf("%w: initialPitchScale must be positive, got %v", ErrInvalidConfig, initialPitchScale)
	}

	s := &Stretcher{
		sampleRate:  sampleRate,
		channels:    channels,
		options:     options,
		logger:      NopLogger{},
		freqCutoffs: [numFreqCutoffs]float64{defaultFreqCutoff0, defaultFreqCutoff1, defaultFreqCutoff2},
	}

	resolvedOpts, conflict := resolveOptions(options)
	if conflict {
		s.logger.Warnf("rubberband: WindowShort and WindowLong both set, falling back to WindowStandard")
	}

	s.orch = orchestrator.New(orchestrator.Config{
		Channels:       channels,
		SampleRate:     sampleRate,
		TimeRatio:      initialTimeRatio,
		PitchScale:     initialPitchScale,
		BaseWindowSize: baseWindowSize(sampleRate, resolvedOpts.baseWindowMult),
		UseHardPeaks:   resolvedOpts.useHardPeaks,
		ElasticCurve:   resolvedOpts.elasticCurve,
		Realtime:       resolvedOpts.realtime,
		Threaded:       resolvedOpts.threaded,
		Logger:         loggerAdapter{s},
	})

	return s, nil
}

// SetLogger installs a diagnostic sink for misuse/reconfigure warnings
// raised from then on. Warnings raised inside New (conflicting window
// flags) went to the default NopLogger and are not replayed.
func (s *Stretcher) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	s.logger = l
}

// Reset clears all buffered state and returns the Stretcher to its
// just-created state. Workers are stopped and joined before channels
// are rebuilt.
func (s *Stretcher) Reset() { s.orch.Reset() }

// SetTimeRatio updates the time-stretch ratio.
func (s *Stretcher) SetTimeRatio(ratio float64) { s.orch.SetTimeRatio(ratio) }

// SetPitchScale updates the pitch-shift scale.
func (s *Stretcher) SetPitchScale(scale float64) { s.orch.SetPitchScale(scale) }

// GetTimeRatio returns the configured time ratio.
func (s *Stretcher) GetTimeRatio() float64 { return s.orch.GetTimeRatio() }

// GetPitchScale returns the configured pitch scale.
func (s *Stretcher) GetPitchScale() float64 { return s.orch.GetPitchScale() }

// SetExpectedInputDuration hints the total input length in samples.
func (s *Stretcher) SetExpectedInputDuration(samples int) { s.orch.SetExpectedInputDuration(samples) }

// SetMaxProcessSize hints the largest per-call Process input size.
func (s *Stretcher) SetMaxProcessSize(samples int) { s.orch.SetMaxProcessSize(samples) }

// GetLatency returns the stretcher's inherent latency in samples: 0
// offline, floor((windowSize/2)/pitchScale)+1 in realtime.
func (s *Stretcher) GetLatency() int { return s.orch.GetLatency() }

// GetSamplesRequired returns the minimum per-channel input that would
// unblock at least one channel's next analysis chunk.
func (s *Stretcher) GetSamplesRequired() int { return s.orch.GetSamplesRequired() }

// Study feeds a pass of input for offline analysis, building the
// phase-reset and stretch-weight curves used by the two-pass schedule.
// Offline only; misuse (realtime, or after Process has started) is
// logged and ignored.
func (s *Stretcher) Study(input [][]float64, final bool) error {
	return s.orch.Study(input, final)
}

// Process feeds a chunk of input for stretching/shifting. Output becomes
// available via Retrieve, possibly across several Process calls later
// than the input that produced it. Returns ErrBackpressure only when the
// call made no forward progress at all because output buffers are full;
// the caller should Retrieve and call Process again with the same
// input.
func (s *Stretcher) Process(input [][]float64, final bool) error {
	if err := s.orch.Process(input, final); err != nil {
		return fmt.Errorf("%w: %v", ErrBackpressure, err)
	}
	return nil
}

// Available returns the number of samples retrievable right now.
func (s *Stretcher) Available() int { return s.orch.Available() }

// Retrieve drains up to len(output[c]) (capped at maxSamples) samples
// per channel into output, returning the count actually written.
func (s *Stretcher) Retrieve(output [][]float64, maxSamples int) int {
	return s.orch.Retrieve(output, maxSamples)
}

// GetOutputIncrements returns the offline schedule's per-chunk output
// hops (negative entries mark hard phase resets), or the realtime
// inspection history of increments decided so far.
func (s *Stretcher) GetOutputIncrements() []int { return s.orch.GetOutputIncrements() }

// GetPhaseResetCurve returns which scheduled chunks were hard
// phase-resets, aligned with GetOutputIncrements.
func (s *Stretcher) GetPhaseResetCurve() []bool { return s.orch.GetPhaseResetCurve() }

// GetExactTimePoints returns the input-sample position of each hard
// phase-reset chunk, in chronological order.
func (s *Stretcher) GetExactTimePoints() []int { return s.orch.GetExactTimePoints() }
