package rubberband

import "runtime"

// Option is a bitset of behavior flags passed to [New].
type Option uint32

const (
	// ProcessOffline selects the offline (study + two-pass) engine; the
	// default when neither process flag is given.
	ProcessOffline Option = 1 << iota
	// ProcessRealTime selects the realtime (one-pass, low-latency)
	// engine. Implies StretchPrecise.
	ProcessRealTime

	// StretchElastic uses the HighFrequency stretch-weight curve
	// (offline only).
	StretchElastic
	// StretchPrecise uses the Constant stretch-weight curve (offline
	// only; implied by ProcessRealTime).
	StretchPrecise

	// TransientsCrisp and TransientsMixed select hard-peak phase resets
	// on StretchCalculator (useHardPeaks = true).
	TransientsCrisp
	TransientsMixed
	// TransientsSmooth disables hard-peak detection (useHardPeaks =
	// false): pure proportional weighting, softest transients.
	TransientsSmooth

	// PhaseAdaptive, PhasePeakLocked, PhaseIndependent record a
	// per-channel phase policy in the option bitset. The synthesis stage
	// does not read them, so they do not change the output.
	PhaseAdaptive
	PhasePeakLocked
	PhaseIndependent

	// ThreadingAuto opts into worker-per-channel processing when
	// offline, channels > 1, and the platform is multiprocessor.
	ThreadingAuto
	// ThreadingNone forces single-threaded cooperative processing.
	ThreadingNone

	// WindowStandard, WindowShort, WindowLong scale baseWindowSize by
	// 1x, 1/2x, and 2x respectively. Specifying WindowShort and
	// WindowLong together is a conflicting-flag misuse: it falls back to
	// WindowStandard. New reports the conflict to the Stretcher's
	// logger, which inside New is always the NopLogger, so the warning
	// is discarded.
	WindowStandard
	WindowShort
	WindowLong
)

func (o Option) has(flag Option) bool { return o&flag != 0 }

// resolved holds the options bitset decoded into the plain fields the
// orchestrator and stretch calculator actually consume.
type resolved struct {
	realtime       bool
	elasticCurve   bool
	useHardPeaks   bool
	threaded       bool
	baseWindowMult float64
}

// resolveOptions decodes the bitset, applying the documented fallbacks.
// windowConflict reports whether WindowShort|WindowLong were both set,
// for the caller to log.
func resolveOptions(o Option) (r resolved, windowConflict bool) {
	r.realtime = o.has(ProcessRealTime)

	if r.realtime {
		r.elasticCurve = false // realtime implies StretchPrecise
	} else {
		r.elasticCurve = o.has(StretchElastic) && !o.has(StretchPrecise)
	}

	r.useHardPeaks = true
	if o.has(TransientsSmooth) {
		r.useHardPeaks = false
	}

	// Worker-per-channel only pays off with more than one core to run
	// the workers on.
	r.threaded = o.has(ThreadingAuto) && !o.has(ThreadingNone) && runtime.NumCPU() > 1

	shortSet := o.has(WindowShort)
	longSet := o.has(WindowLong)
	switch {
	case shortSet && longSet:
		windowConflict = true
		r.baseWindowMult = 1.0
	case shortSet:
		r.baseWindowMult = 0.5
	case longSet:
		r.baseWindowMult = 2.0
	default:
		r.baseWindowMult = 1.0
	}

	return r, windowConflict
}
