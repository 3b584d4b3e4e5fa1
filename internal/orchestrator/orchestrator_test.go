package orchestrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func sineWave(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func baseConfig() Config {
	return Config{
		Channels:       1,
		SampleRate:     44100,
		TimeRatio:      1.0,
		PitchScale:     1.0,
		BaseWindowSize: 1024,
		UseHardPeaks:   true,
	}
}

func TestJustCreatedStudyTransitionsToStudying(t *testing.T) {
	o := New(baseConfig())
	require.Equal(t, JustCreated, o.Mode())

	input := [][]float64{sineWave(440, 44100, 4096)}
	err := o.Study(input, false)
	require.NoError(t, err)
	require.Equal(t, Studying, o.Mode())
}

func TestStudyThenProcessFinalReachesFinished(t *testing.T) {
	o := New(baseConfig())
	input := [][]float64{sineWave(1000, 44100, 2048)}

	require.NoError(t, o.Study(input, false))
	require.NoError(t, o.Study(nil, true))
	require.Equal(t, Studying, o.Mode())

	require.NoError(t, o.Process(input, true))
	require.Equal(t, Finished, o.Mode())
}

func TestProcessAfterFinishedRejectedNotPanicking(t *testing.T) {
	o := New(baseConfig())
	input := [][]float64{sineWave(1000, 44100, 2048)}
	require.NoError(t, o.Study(input, true))
	require.NoError(t, o.Process(input, true))
	require.Equal(t, Finished, o.Mode())

	err := o.Process(input, true)
	require.NoError(t, err) // rejected: logged, no-op, not an error return
	require.Equal(t, Finished, o.Mode())
}

func TestJustCreatedProcessOfflineImplicitEmptyStretch(t *testing.T) {
	o := New(baseConfig())
	input := [][]float64{sineWave(440, 44100, 8192)}
	require.NoError(t, o.Process(input, true))
	require.Equal(t, Finished, o.Mode())
}

func TestOutputLengthApproximatesTimeRatio(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeRatio = 2.0
	o := New(cfg)

	n := 44100
	input := [][]float64{sineWave(220, 44100, n)}

	require.NoError(t, o.Study(input, true))
	require.NoError(t, o.Process(input, true))

	total := 0
	out := make([][]float64, 1)
	out[0] = make([]float64, 4096)
	for {
		got := o.Retrieve(out, 4096)
		total += got
		if got == 0 {
			break
		}
	}

	want := int(float64(n) * cfg.TimeRatio)
	diff := total - want
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqual(t, diff, o.windowSize*4, "total=%d want=%d", total, want)
}

func TestResetIdempotentReturnsToJustCreated(t *testing.T) {
	o := New(baseConfig())
	input := [][]float64{sineWave(440, 44100, 4096)}
	require.NoError(t, o.Study(input, true))
	require.NoError(t, o.Process(input, true))

	o.Reset()
	require.Equal(t, JustCreated, o.Mode())
	o.Reset()
	require.Equal(t, JustCreated, o.Mode())
}

func TestRatioMonotonicityOutputLength(t *testing.T) {
	n := 22050
	run := func(ratio float64) int {
		cfg := baseConfig()
		cfg.TimeRatio = ratio
		o := New(cfg)
		input := [][]float64{sineWave(220, 44100, n)}
		require.NoError(t, o.Study(input, true))
		require.NoError(t, o.Process(input, true))

		total := 0
		out := [][]float64{make([]float64, 4096)}
		for {
			got := o.Retrieve(out, 4096)
			total += got
			if got == 0 {
				break
			}
		}
		return total
	}

	lenHalf := run(0.5)
	lenOne := run(1.0)
	lenTwo := run(2.0)

	require.LessOrEqual(t, lenHalf, lenOne)
	require.LessOrEqual(t, lenOne, lenTwo)
}

func TestGetLatencyOfflineIsZero(t *testing.T) {
	o := New(baseConfig())
	require.Equal(t, 0, o.GetLatency())
}

func TestGetLatencyRealtimeFormula(t *testing.T) {
	cfg := baseConfig()
	cfg.Realtime = true
	cfg.PitchScale = 1.0
	o := New(cfg)
	want := o.windowSize/2 + 1
	require.Equal(t, want, o.GetLatency())
}

func TestRealtimeStreamingProducesOutputAfterWarmup(t *testing.T) {
	cfg := baseConfig()
	cfg.Realtime = true
	cfg.TimeRatio = 1.3
	o := New(cfg)

	blockSize := 512
	totalBlocks := 100
	wave := sineWave(440, 44100, blockSize*totalBlocks)

	var totalOut int
	out := [][]float64{make([]float64, 4096)}
	for b := 0; b < totalBlocks; b++ {
		block := [][]float64{wave[b*blockSize : (b+1)*blockSize]}
		final := b == totalBlocks-1
		require.NoError(t, o.Process(block, final))

		for {
			avail := o.Available()
			if avail == 0 {
				break
			}
			got := o.Retrieve(out, 4096)
			totalOut += got
			if got == 0 {
				break
			}
		}
	}
	require.Greater(t, totalOut, 0)
}

func TestOutputIncrementsMatchPhaseResetCurveLength(t *testing.T) {
	o := New(baseConfig())
	input := [][]float64{sineWave(440, 44100, 8192)}
	require.NoError(t, o.Study(input, true))
	require.NoError(t, o.Process(input, true))

	incs := o.GetOutputIncrements()
	resets := o.GetPhaseResetCurve()
	require.NotEmpty(t, incs)
	require.Len(t, resets, len(incs))
}

func TestSetTimeRatioDuringOfflineProcessingRejected(t *testing.T) {
	o := New(baseConfig())
	input := [][]float64{sineWave(440, 44100, 4096)}
	require.NoError(t, o.Study(input, true))
	require.NoError(t, o.Process(input, false))
	require.Equal(t, Processing, o.Mode())

	before := o.GetTimeRatio()
	o.SetTimeRatio(3.0)
	require.Equal(t, before, o.GetTimeRatio())
}

func TestThreadedOfflineProducesOutput(t *testing.T) {
	cfg := baseConfig()
	cfg.Channels = 2
	cfg.Threaded = true
	o := New(cfg)

	n := 44100
	input := [][]float64{
		sineWave(220, 44100, n),
		sineWave(330, 44100, n),
	}

	require.NoError(t, o.Study(input, true))
	require.NoError(t, o.Process(input, true))
	require.Equal(t, Finished, o.Mode())

	out := [][]float64{make([]float64, 4096), make([]float64, 4096)}
	total := 0
	for {
		got := o.Retrieve(out, 4096)
		total += got
		if got == 0 {
			break
		}
	}
	require.Greater(t, total, 0)
}

func TestOfflineChannelIndependence(t *testing.T) {
	n := 16384
	ch0 := sineWave(220, 44100, n)
	ch1 := sineWave(330, 44100, n)
	// Same sum-then-divide the study pass performs internally.
	mix := make([]float64, n)
	for i := range mix {
		mix[i] = (ch0[i] + ch1[i]) / 2
	}

	drainAll := func(o *Orchestrator, channels int) [][]float64 {
		out := make([][]float64, channels)
		block := make([][]float64, channels)
		for c := range block {
			block[c] = make([]float64, 4096)
		}
		for {
			got := o.Retrieve(block, 4096)
			if got == 0 {
				break
			}
			for c := range out {
				out[c] = append(out[c], block[c][:got]...)
			}
		}
		return out
	}

	stereoCfg := baseConfig()
	stereoCfg.Channels = 2
	stereoCfg.TimeRatio = 1.5
	stereo := New(stereoCfg)
	require.NoError(t, stereo.Study([][]float64{ch0, ch1}, true))
	require.NoError(t, stereo.Process([][]float64{ch0, ch1}, true))
	stereoOut := drainAll(stereo, 2)

	// Studying the mixdown directly reproduces the stereo run's curves
	// and therefore its schedule; processing channel 0 alone must then
	// yield exactly the samples the stereo run produced for channel 0.
	monoCfg := baseConfig()
	monoCfg.TimeRatio = 1.5
	mono := New(monoCfg)
	require.NoError(t, mono.Study([][]float64{mix}, true))
	require.NoError(t, mono.Process([][]float64{ch0}, true))
	monoOut := drainAll(mono, 1)

	require.Equal(t, stereoOut[0], monoOut[0])
}
