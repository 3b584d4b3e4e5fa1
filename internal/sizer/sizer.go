// Package sizer computes analysis window and hop sizes from the requested
// time/pitch ratios and the operating mode. It is a pure function of its
// inputs: no state, no allocation beyond the returned value.
package sizer

// Mode selects the sizing rules: a fixed-increment realtime path or a
// variable-increment offline path.
type Mode int

const (
	Offline Mode = iota
	Realtime
)

// Params bundles the inputs to Calculate.
type Params struct {
	EffectiveRatio        float64
	Mode                  Mode
	BaseWindowSize        int
	RateMultiple          float64
	ExpectedInputDuration int // 0 if unknown
	PitchScale            float64
	TimeRatio             float64
	MaxProcessSize        int
	Threaded              bool // offline only: worker-per-channel in use
}

// Sizes is the result of Calculate.
type Sizes struct {
	WindowSize     int
	InputIncrement int
	OutbufSize     int
}

const defaultIncrement = 256

// referenceRate is the sample rate window sizing is calibrated to;
// higher rates scale the base window up proportionally so the analysis
// window spans the same duration.
const referenceRate = 48000.0

// RateMultiple returns the window scaling factor for sampleRate
// relative to the 48 kHz reference, clamped to at least 1: lower rates
// keep the default window rather than shrinking below it.
func RateMultiple(sampleRate float64) float64 {
	m := sampleRate / referenceRate
	if m < 1 {
		return 1
	}
	return m
}

// RoundUpPow2 returns the smallest power of two >= v. It returns v
// unchanged when v is already a power of two (including 1).
func RoundUpPow2(v int) int {
	if v < 1 {
		return 1
	}
	if v&(v-1) == 0 {
		return v
	}
	p := 1
	for p < v {
		p <<= 1
	}
	return p
}

// Calculate picks the analysis window, input hop, and output buffer
// capacity for the requested ratio and mode.
func Calculate(p Params) Sizes {
	r := p.EffectiveRatio
	windowSize := p.BaseWindowSize
	var inputIncrement, outputIncrement int

	if p.Mode == Realtime {
		inputIncrement = RoundUpPow2(int(float64(defaultIncrement) * p.RateMultiple))

		if r < 1 {
			outputIncrement = int(float64(inputIncrement) * r)
			if outputIncrement < 1 {
				outputIncrement = 1
				inputIncrement = RoundUpPow2(ceilDiv(1, r))
				windowSize = inputIncrement * 4
			}
		} else {
			outputIncrement = ceilFloat(float64(inputIncrement) * r)
			for outputIncrement > 1024 && inputIncrement > 1 {
				inputIncrement /= 2
				outputIncrement = ceilFloat(float64(inputIncrement) * r)
			}
			windowSize = maxInt(windowSize, RoundUpPow2(6*outputIncrement))
			if r > 5 {
				for windowSize < 8192 {
					windowSize *= 2
				}
			}
		}
	} else {
		if r < 1 {
			inputIncrement = windowSize / 4
			for inputIncrement >= 512 {
				inputIncrement /= 2
			}
			outputIncrement = int(float64(inputIncrement) * r)
			if outputIncrement < 1 {
				outputIncrement = 1
				inputIncrement = RoundUpPow2(ceilDiv(1, r))
				windowSize = inputIncrement * 4
			}
		} else {
			outputIncrement = windowSize / 6
			inputIncrement = int(float64(outputIncrement) / r)
			for outputIncrement > 1024 && inputIncrement > 1 {
				outputIncrement /= 2
				inputIncrement = int(float64(outputIncrement) / r)
			}
			windowSize = maxInt(windowSize, RoundUpPow2(6*outputIncrement))
			if r > 5 {
				for windowSize < 8192 {
					windowSize *= 2
				}
			}
		}
	}

	if p.ExpectedInputDuration > 0 {
		for inputIncrement*4 > p.ExpectedInputDuration && inputIncrement > 1 {
			inputIncrement /= 2
		}
	}

	if inputIncrement < 1 {
		inputIncrement = 1
	}

	if r >= 1.0/1024.0 {
		windowSize = minInt(windowSize, 4*p.BaseWindowSize)
	}

	maxProcessSize := maxInt(p.MaxProcessSize, windowSize)

	outbufSize := ceilFloat(maxFloat(
		float64(maxProcessSize)/p.PitchScale,
		float64(windowSize)*2*maxFloat(1, p.TimeRatio),
	))

	if p.Mode == Realtime || (p.Mode == Offline && p.Threaded) {
		outbufSize *= 16
	}

	return Sizes{
		WindowSize:     windowSize,
		InputIncrement: inputIncrement,
		OutbufSize:     outbufSize,
	}
}

func ceilDiv(num int, denom float64) int {
	return ceilFloat(float64(num) / denom)
}

func ceilFloat(v float64) int {
	i := int(v)
	if float64(i) < v {
		i++
	}
	return i
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
