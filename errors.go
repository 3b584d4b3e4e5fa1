package rubberband

import (
	"errors"
	"log"
)

// Sentinel errors of this package. New returns ErrInvalidConfig for
// out-of-range arguments and Process returns ErrBackpressure on a stall;
// misuse rejections and reconfigure-allocation warnings are
// diagnostic-only and routed through a [Logger] instead.
var (
	// ErrInvalidConfig is returned by New when sampleRate, channels, or
	// the initial ratios are out of range.
	ErrInvalidConfig = errors.New("rubberband: invalid config")

	// ErrBackpressure is returned by Process when a channel made
	// no forward progress because its output buffer is full; the caller
	// must Retrieve and call again.
	ErrBackpressure = errors.New("rubberband: backpressure stall, retrieve output and retry")

	// ErrFatal names the unrecoverable failure kind (FFT/resampler
	// initialization). No method returns it: such a failure panics
	// while the channels are built.
	ErrFatal = errors.New("rubberband: fatal error")
)

// Logger is the pluggable diagnostic sink for misuse rejections and
// reconfigure-allocation warnings. The library never writes to stderr
// directly; callers that want visibility supply one.
type Logger interface {
	Warnf(format string, args ...any)
}

// NopLogger discards every message. It is the Logger a [Stretcher] uses
// until [Stretcher.SetLogger] installs another.
type NopLogger struct{}

// Warnf implements Logger.
func (NopLogger) Warnf(string, ...any) {}

// StdLogger adapts a *log.Logger to [Logger]. A nil inner logger falls
// back to log.Default.
type StdLogger struct {
	L *log.Logger
}

// Warnf implements Logger.
func (s StdLogger) Warnf(format string, args ...any) {
	l := s.L
	if l == nil {
		l = log.Default()
	}
	l.Printf("WARN "+format, args...)
}
