// Package orchestrator implements the mode state machine, study pass, and
// offline/realtime process passes that drive the per-channel
// ChannelProcessors.
//
// The orchestrator exclusively owns its channels, onset curves, and
// stretch calculator. Workers (in threaded offline mode) only ever
// borrow a channel slot for the duration of a single analyzeOne call;
// they never own it.
package orchestrator

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/DavidCaelum/rubberband/internal/channelproc"
	"github.com/DavidCaelum/rubberband/internal/curves"
	"github.com/DavidCaelum/rubberband/internal/ringbuf"
	"github.com/DavidCaelum/rubberband/internal/sizer"
	"github.com/DavidCaelum/rubberband/internal/spectral"
	"github.com/DavidCaelum/rubberband/internal/stretch"
)

// Mode is the orchestrator's lifecycle state.
type Mode int

const (
	JustCreated Mode = iota
	Studying
	Processing
	Finished
)

// String renders the mode for logging.
func (m Mode) String() string {
	switch m {
	case JustCreated:
		return "JustCreated"
	case Studying:
		return "Studying"
	case Processing:
		return "Processing"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Logger is the minimal diagnostic sink: misuse rejections and
// reconfigure allocations are logged, never returned or propagated.
type Logger interface {
	Warnf(format string, args ...any)
}

// NopLogger discards all messages; the zero value is ready to use.
type NopLogger struct{}

// Warnf implements Logger.
func (NopLogger) Warnf(string, ...any) {}

// spaceAvailableWait bounds the orchestrator's wait for worker progress
// so a missed signal cannot stall a process call indefinitely.
const spaceAvailableWait = 500 * time.Millisecond

// Config configures a new Orchestrator.
type Config struct {
	Channels       int
	SampleRate     float64
	TimeRatio      float64
	PitchScale     float64
	BaseWindowSize int
	UseHardPeaks   bool
	ElasticCurve   bool // true: HighFrequency stretch weight; false: Constant
	Realtime       bool
	Threaded       bool // offline only: worker-per-channel
	MaxProcessSize int
	Logger         Logger
}

// Orchestrator drives the channels through study and process passes.
type Orchestrator struct {
	mu sync.Mutex

	cfg        Config
	mode       Mode
	windowSize int
	inputInc   int
	outbufSize int

	channels []*channelproc.Processor

	phaseResetCurve curves.Curve
	stretchCurve    curves.Curve
	calc            *stretch.Calculator

	phaseResetDf []float64
	stretchDf    []float64
	inputDuration int
	studyFinal    bool

	studyBuf      *ringbuf.Buffer
	studyAnalyzer *spectral.Analyzer

	outputIncrements []int
	phaseResetTaken  []bool
	exactTimePoints  []int

	channelTotalIn []int
	chunkIndex     []int

	// worker-per-channel lifecycle; threadSet is held only during
	// construction, shutdown and reset.
	threadSet      sync.Mutex
	workersRun     bool
	workerWG       sync.WaitGroup
	workerMu       sync.Mutex
	dataAvailable  *sync.Cond
	spaceAvailable *sync.Cond
	workerShutdown bool

	// realtime inspection history: per-chunk df values and the
	// increments chosen for them, bounded at rtRingCap.
	rtDf         []float64
	rtIncrements []int
	rtAnalyzers  []*spectral.Analyzer

	logger Logger
}


// New constructs an Orchestrator in JustCreated mode.
func New(cfg Config) *Orchestrator {
	if cfg.Channels < 1 {
		cfg.Channels = 1
	}
	if cfg.BaseWindowSize < 1 {
		cfg.BaseWindowSize = 2048
	}
	if cfg.TimeRatio <= 0 {
		cfg.TimeRatio = 1
	}
	if cfg.PitchScale <= 0 {
		cfg.PitchScale = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger{}
	}

	o := &Orchestrator{
		cfg:    cfg,
		mode:   JustCreated,
		logger: logger,
		calc:   stretch.New(0, cfg.UseHardPeaks),
	}

	o.phaseResetCurve = curves.NewPercussive()
	if cfg.ElasticCurve {
		o.stretchCurve = curves.NewHighFrequency()
	} else {
		o.stretchCurve = curves.NewConstant(1.0)
	}

	o.configure()
	return o
}

// effectiveRatio is timeRatio * pitchScale (glossary: "Effective ratio").
func (o *Orchestrator) effectiveRatio() float64 {
	return o.cfg.TimeRatio * o.cfg.PitchScale
}

// configure recomputes window/increment/outbuf sizing and rebuilds
// channels. Called at construction and whenever a ratio changes while
// Studying.
func (o *Orchestrator) configure() {
	mode := sizer.Offline
	if o.cfg.Realtime {
		mode = sizer.Realtime
	}

	sizes := sizer.Calculate(sizer.Params{
		EffectiveRatio:        o.effectiveRatio(),
		Mode:                  mode,
		BaseWindowSize:        o.cfg.BaseWindowSize,
		RateMultiple:          sizer.RateMultiple(o.cfg.SampleRate),
		ExpectedInputDuration: o.inputDuration,
		PitchScale:            o.cfg.PitchScale,
		TimeRatio:             o.cfg.TimeRatio,
		MaxProcessSize:        o.cfg.MaxProcessSize,
		Threaded:              o.cfg.Threaded,
	})

	o.windowSize = sizes.WindowSize
	o.inputInc = sizes.InputIncrement
	o.outbufSize = sizes.OutbufSize

	o.calc.SetInputIncrement(o.inputInc)
	o.phaseResetCurve.SetWindowSize(o.windowSize)
	o.stretchCurve.SetWindowSize(o.windowSize)

	o.rebuildChannels()
}

func (o *Orchestrator) rebuildChannels() {
	channels := make([]*channelproc.Processor, o.cfg.Channels)
	for i := range channels {
		p, err := channelproc.New(channelproc.Config{
			WindowSize:     o.windowSize,
			InputIncrement: o.inputInc,
			InbufCapacity:  maxInt(o.windowSize*4, o.inputInc*4),
			OutbufCapacity: o.outbufSize,
			PitchScale:     o.cfg.PitchScale,
			Realtime:       o.cfg.Realtime,
		})
		if err != nil {
			// FFT/resampler init failure is not recoverable.
			panic(err)
		}
		channels[i] = p
	}
	o.channels = channels
}

// analyzeChunk runs one AnalyzeOne call, growing the channel's output
// ring whenever it is full: the sized outbuf capacity is a lower bound,
// and growth is an explicit logged allocation, never a silent one.
func (o *Orchestrator) analyzeChunk(c int, proc *channelproc.Processor, inc int) error {
	for {
		err := proc.AnalyzeOne(inc)
		if !errors.Is(err, channelproc.ErrWouldBlock) {
			return err
		}
		newCap := proc.OutbufCapacity() * 2
		o.logger.Warnf("orchestrator: channel %d output buffer full, growing to %d samples", c, newCap)
		proc.GrowOutbuf(newCap)
	}
}

// Mode returns the current lifecycle state.
func (o *Orchestrator) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// GetTimeRatio returns the configured time ratio.
func (o *Orchestrator) GetTimeRatio() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.TimeRatio
}

// GetPitchScale returns the configured pitch scale.
func (o *Orchestrator) GetPitchScale() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg.PitchScale
}

// GetLatency returns 0 offline, floor((windowSize/2)/pitchScale)+1 in
// realtime.
func (o *Orchestrator) GetLatency() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.cfg.Realtime {
		return 0
	}
	return int(math.Floor(float64(o.windowSize/2)/o.cfg.PitchScale)) + 1
}

// SetTimeRatio updates the time ratio. Rejected (logged, no-op) during
// Processing in offline mode, or after Finished; accepted during
// Studying (recalculates over partial data) and at any time in realtime
// mode.
func (o *Orchestrator) SetTimeRatio(r float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if r <= 0 {
		o.logger.Warnf("orchestrator: setTimeRatio rejected: ratio must be positive, got %v", r)
		return
	}
	if !o.cfg.Realtime && (o.mode == Processing || o.mode == Finished) {
		o.logger.Warnf("orchestrator: setTimeRatio rejected in mode %s (offline)", o.mode)
		return
	}
	o.cfg.TimeRatio = r
	if o.mode == Studying {
		o.recalculateStudying()
	} else {
		o.configure()
	}
}

// SetPitchScale updates the pitch scale, subject to the same misuse
// rules as SetTimeRatio.
func (o *Orchestrator) SetPitchScale(s float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if s <= 0 {
		o.logger.Warnf("orchestrator: setPitchScale rejected: scale must be positive, got %v", s)
		return
	}
	if !o.cfg.Realtime && (o.mode == Processing || o.mode == Finished) {
		o.logger.Warnf("orchestrator: setPitchScale rejected in mode %s (offline)", o.mode)
		return
	}
	o.cfg.PitchScale = s
	if o.mode == Studying {
		o.recalculateStudying()
	} else {
		o.configure()
	}
}

// SetUseHardPeaks toggles hard-peak transient preservation on the
// stretch calculator. Realtime only: the offline schedule is computed
// once up front, so changing the transient policy mid-stream would
// have no effect there and is rejected.
func (o *Orchestrator) SetUseHardPeaks(v bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.cfg.Realtime {
		o.logger.Warnf("orchestrator: setTransientsOption rejected: offline mode")
		return
	}
	o.cfg.UseHardPeaks = v
	o.calc.SetUseHardPeaks(v)
}

// SetExpectedInputDuration hints the total input length in samples,
// enabling the sizer to shrink inputIncrement for short clips.
func (o *Orchestrator) SetExpectedInputDuration(samples int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if samples < 0 {
		samples = 0
	}
	o.inputDuration = samples
	if o.mode == Studying {
		o.recalculateStudying()
	} else {
		o.configure()
	}
}

// SetMaxProcessSize hints the largest per-call process() input size.
func (o *Orchestrator) SetMaxProcessSize(samples int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg.MaxProcessSize = samples
	o.configure()
}

// recalculateStudying re-runs calculateStretch over whatever partial
// curve data has been accumulated, clears the df vectors, and
// reconfigures.
func (o *Orchestrator) recalculateStudying() {
	o.outputIncrements = o.calc.Calculate(o.effectiveRatio(), o.inputDuration, o.phaseResetDf, o.stretchDf)
	o.populateScheduleMeta()
	o.phaseResetDf = nil
	o.stretchDf = nil
	o.configure()
}

// populateScheduleMeta derives getPhaseResetCurve/getExactTimePoints from
// the output-increment schedule: a negative entry is a hard reset at
// input-sample position i*inputIncrement (the fixed per-chunk input hop).
func (o *Orchestrator) populateScheduleMeta() {
	o.phaseResetTaken = make([]bool, len(o.outputIncrements))
	o.exactTimePoints = o.exactTimePoints[:0]
	for i, inc := range o.outputIncrements {
		if inc < 0 {
			o.phaseResetTaken[i] = true
			o.exactTimePoints = append(o.exactTimePoints, i*o.inputInc)
		}
	}
}

// GetOutputIncrements returns the schedule computed by the last
// calculateStretch call (empty before Studying finalizes or before
// realtime has processed any chunks).
func (o *Orchestrator) GetOutputIncrements() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int, len(o.outputIncrements))
	copy(out, o.outputIncrements)
	return out
}

// GetPhaseResetCurve returns which scheduled chunks were hard
// phase-resets.
func (o *Orchestrator) GetPhaseResetCurve() []bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]bool, len(o.phaseResetTaken))
	copy(out, o.phaseResetTaken)
	return out
}

// GetExactTimePoints returns the input-sample position corresponding to
// each scheduled output chunk's hard reset, in chronological order.
func (o *Orchestrator) GetExactTimePoints() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]int, len(o.exactTimePoints))
	copy(out, o.exactTimePoints)
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
