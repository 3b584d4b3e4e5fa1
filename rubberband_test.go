package rubberband

import (
	"fmt"
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureLogger records warning lines for assertions.
type captureLogger struct {
	lines []string
}

func (c *captureLogger) Warnf(format string, args ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, args...))
}

func sine(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func drain(t *testing.T, s *Stretcher, channels int) [][]float64 {
	t.Helper()
	out := make([][]float64, channels)
	block := make([][]float64, channels)
	for c := range block {
		block[c] = make([]float64, 4096)
	}
	for {
		got := s.Retrieve(block, 4096)
		if got == 0 {
			break
		}
		for c := range out {
			out[c] = append(out[c], block[c][:got]...)
		}
	}
	return out
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name       string
		rate       float64
		channels   int
		time, span float64
	}{
		{"zero rate", 0, 1, 1, 1},
		{"negative rate", -44100, 1, 1, 1},
		{"zero channels", 44100, 0, 1, 1},
		{"zero time ratio", 44100, 1, 0, 1},
		{"negative pitch scale", 44100, 1, 1, -2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := New(c.rate, c.channels, ProcessOffline, c.time, c.span)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestResolveOptions(t *testing.T) {
	cases := []struct {
		name     string
		opts     Option
		want     resolved
		conflict bool
	}{
		{
			name: "defaults are offline elastic-off hard peaks",
			opts: ProcessOffline,
			want: resolved{useHardPeaks: true, baseWindowMult: 1.0},
		},
		{
			name: "elastic selects the high-frequency stretch curve",
			opts: ProcessOffline | StretchElastic,
			want: resolved{elasticCurve: true, useHardPeaks: true, baseWindowMult: 1.0},
		},
		{
			name: "realtime implies precise even with elastic set",
			opts: ProcessRealTime | StretchElastic,
			want: resolved{realtime: true, useHardPeaks: true, baseWindowMult: 1.0},
		},
		{
			name: "transients smooth disables hard peaks",
			opts: ProcessOffline | TransientsSmooth,
			want: resolved{useHardPeaks: false, baseWindowMult: 1.0},
		},
		{
			name: "threading auto",
			opts: ProcessOffline | ThreadingAuto,
			want: resolved{useHardPeaks: true, threaded: runtime.NumCPU() > 1, baseWindowMult: 1.0},
		},
		{
			name: "threading none wins over auto",
			opts: ProcessOffline | ThreadingAuto | ThreadingNone,
			want: resolved{useHardPeaks: true, baseWindowMult: 1.0},
		},
		{
			name: "window short halves",
			opts: ProcessOffline | WindowShort,
			want: resolved{useHardPeaks: true, baseWindowMult: 0.5},
		},
		{
			name: "window long doubles",
			opts: ProcessOffline | WindowLong,
			want: resolved{useHardPeaks: true, baseWindowMult: 2.0},
		},
		{
			name:     "conflicting window flags fall back to standard",
			opts:     ProcessOffline | WindowShort | WindowLong,
			want:     resolved{useHardPeaks: true, baseWindowMult: 1.0},
			conflict: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, conflict := resolveOptions(c.opts)
			require.Equal(t, c.want, got)
			require.Equal(t, c.conflict, conflict)
		})
	}
}

func TestOfflineUnityRatioLengthPreserved(t *testing.T) {
	const rate = 44100
	n := rate // 1 s
	s, err := New(rate, 1, ProcessOffline|StretchPrecise, 1.0, 1.0)
	require.NoError(t, err)

	input := [][]float64{sine(1000, rate, n)}
	require.NoError(t, s.Study(input, true))
	require.NoError(t, s.Process(input, true))

	out := drain(t, s, 1)
	diff := len(out[0]) - n
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqual(t, diff, 8192, "output %d vs input %d", len(out[0]), n)
}

func TestOfflineDoubleStretchApproxDoublesLength(t *testing.T) {
	const rate = 44100
	n := rate / 2
	s, err := New(rate, 1, ProcessOffline|StretchElastic, 2.0, 1.0)
	require.NoError(t, err)

	input := [][]float64{sine(220, rate, n)}
	require.NoError(t, s.Study(input, true))
	require.NoError(t, s.Process(input, true))

	out := drain(t, s, 1)
	want := 2 * n
	diff := len(out[0]) - want
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqual(t, diff, 16384, "output %d vs target %d", len(out[0]), want)
}

func TestScheduleLengthsAgree(t *testing.T) {
	s, err := New(44100, 1, ProcessOffline, 1.5, 1.0)
	require.NoError(t, err)

	input := [][]float64{sine(440, 44100, 16384)}
	require.NoError(t, s.Study(input, true))
	require.NoError(t, s.Process(input, true))

	incs := s.GetOutputIncrements()
	resets := s.GetPhaseResetCurve()
	require.NotEmpty(t, incs)
	require.Len(t, resets, len(incs))

	points := s.GetExactTimePoints()
	hardCount := 0
	for _, r := range resets {
		if r {
			hardCount++
		}
	}
	require.Len(t, points, hardCount)
}

func TestBaseWindowScalesWithSampleRate(t *testing.T) {
	// 96 kHz doubles the 2048-sample base window relative to the
	// 48 kHz reference; 44.1 kHz clamps at the default. Observable as
	// the half-window offline prefill deficit and the realtime latency.
	std, err := New(44100, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)
	hi, err := New(96000, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)

	require.Equal(t, 1024, std.GetSamplesRequired()) // window 2048, prefill 1024
	require.Equal(t, 2048, hi.GetSamplesRequired())  // window 4096, prefill 2048

	rtHi, err := New(96000, 1, ProcessRealTime, 1.0, 1.0)
	require.NoError(t, err)
	require.Equal(t, 4096/2+1, rtHi.GetLatency())
}

func TestBaseWindowSizeFlags(t *testing.T) {
	require.Equal(t, 2048, baseWindowSize(44100, 1.0))
	require.Equal(t, 1024, baseWindowSize(44100, 0.5))
	require.Equal(t, 4096, baseWindowSize(44100, 2.0))
	require.Equal(t, 4096, baseWindowSize(96000, 1.0))
	require.Equal(t, 2048, baseWindowSize(96000, 0.5))
	require.Equal(t, 2048, baseWindowSize(8000, 1.0)) // never below the default
}

func TestGetLatency(t *testing.T) {
	off, err := New(44100, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)
	require.Equal(t, 0, off.GetLatency())

	rt, err := New(44100, 1, ProcessRealTime, 1.0, 2.0)
	require.NoError(t, err)
	require.Greater(t, rt.GetLatency(), 0)
}

func TestStudyRejectedInRealtime(t *testing.T) {
	s, err := New(44100, 1, ProcessRealTime, 1.0, 1.0)
	require.NoError(t, err)
	logger := &captureLogger{}
	s.SetLogger(logger)

	require.NoError(t, s.Study([][]float64{sine(440, 44100, 2048)}, true))
	require.NotEmpty(t, logger.lines)
}

func TestSetTransientsOptionOfflineIgnored(t *testing.T) {
	s, err := New(44100, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)
	logger := &captureLogger{}
	s.SetLogger(logger)

	before := s.options
	s.SetTransientsOption(TransientsSmooth)
	require.Equal(t, before, s.options)
	require.NotEmpty(t, logger.lines)
}

func TestSetTransientsOptionRealtimeReplacesSubset(t *testing.T) {
	s, err := New(44100, 1, ProcessRealTime|TransientsCrisp, 1.0, 1.0)
	require.NoError(t, err)

	s.SetTransientsOption(TransientsSmooth)
	require.True(t, s.options.has(TransientsSmooth))
	require.False(t, s.options.has(TransientsCrisp))
	require.True(t, s.options.has(ProcessRealTime), "non-transients flags untouched")
}

func TestSetPhaseOptionReplacesSubset(t *testing.T) {
	s, err := New(44100, 1, ProcessOffline|PhaseAdaptive, 1.0, 1.0)
	require.NoError(t, err)

	s.SetPhaseOption(PhaseIndependent)
	require.True(t, s.options.has(PhaseIndependent))
	require.False(t, s.options.has(PhaseAdaptive))
}

func TestFrequencyCutoffs(t *testing.T) {
	s, err := New(44100, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)

	require.Equal(t, 600.0, s.GetFrequencyCutoff(0))
	require.Equal(t, 1200.0, s.GetFrequencyCutoff(1))
	require.Equal(t, 12000.0, s.GetFrequencyCutoff(2))
	require.Equal(t, 0.0, s.GetFrequencyCutoff(3))

	s.SetFrequencyCutoff(1, 1500)
	require.Equal(t, 1500.0, s.GetFrequencyCutoff(1))

	s.SetFrequencyCutoff(1, -10)
	require.Equal(t, 1500.0, s.GetFrequencyCutoff(1))
	s.SetFrequencyCutoff(7, 100)
	require.Equal(t, 0.0, s.GetFrequencyCutoff(7))
}

func TestSetDebugLevel(t *testing.T) {
	s, err := New(44100, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)

	require.Equal(t, 0, s.GetDebugLevel())
	s.SetDebugLevel(2)
	require.Equal(t, 2, s.GetDebugLevel())
	s.SetDebugLevel(-1)
	require.Equal(t, 0, s.GetDebugLevel())
}

func TestResetAllowsReuse(t *testing.T) {
	s, err := New(44100, 1, ProcessOffline|StretchPrecise, 1.0, 1.0)
	require.NoError(t, err)

	input := [][]float64{sine(440, 44100, 8192)}
	require.NoError(t, s.Study(input, true))
	require.NoError(t, s.Process(input, true))
	first := drain(t, s, 1)

	s.Reset()
	require.NoError(t, s.Study(input, true))
	require.NoError(t, s.Process(input, true))
	second := drain(t, s, 1)

	require.Equal(t, len(first[0]), len(second[0]))
}

func TestStereoChannelsStayAligned(t *testing.T) {
	const rate = 44100
	n := 16384
	s, err := New(rate, 2, ProcessOffline|StretchPrecise, 1.25, 1.0)
	require.NoError(t, err)

	input := [][]float64{sine(220, rate, n), sine(330, rate, n)}
	require.NoError(t, s.Study(input, true))
	require.NoError(t, s.Process(input, true))

	out := drain(t, s, 2)
	require.Equal(t, len(out[0]), len(out[1]))
	require.Greater(t, len(out[0]), 0)
}

func TestWindowConflictFallsBackToStandard(t *testing.T) {
	// The conflict warning fires inside New, before SetLogger can run;
	// the resolved sizing must still match the Standard window.
	conflicted, err := New(44100, 1, ProcessOffline|WindowShort|WindowLong, 1.0, 1.0)
	require.NoError(t, err)
	standard, err := New(44100, 1, ProcessOffline, 1.0, 1.0)
	require.NoError(t, err)

	require.Equal(t, standard.GetLatency(), conflicted.GetLatency())
	require.Equal(t, standard.GetSamplesRequired(), conflicted.GetSamplesRequired())
}
