package stretch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sumAbs(xs []int) int {
	s := 0
	for _, x := range xs {
		if x < 0 {
			s -= x
		} else {
			s += x
		}
	}
	return s
}

func TestCalculateLengthMatchesInput(t *testing.T) {
	c := New(256, true)
	n := 40
	phaseReset := make([]float64, n)
	stretch := make([]float64, n)
	for i := range stretch {
		stretch[i] = 1.0
	}
	out := c.Calculate(1.5, n*256, phaseReset, stretch)
	require.Len(t, out, n)
}

func TestCalculateApproximatesTargetTotal(t *testing.T) {
	c := New(256, false) // soft peaks so the proportional pass covers every chunk
	n := 50
	inputDuration := n * 256
	phaseReset := make([]float64, n)
	stretch := make([]float64, n)
	for i := range stretch {
		stretch[i] = 1.0
	}
	ratio := 2.0
	out := c.Calculate(ratio, inputDuration, phaseReset, stretch)

	got := sumAbs(out)
	want := int(float64(inputDuration) * ratio)
	// clamping to [1, 2*nominal] can keep the realized sum off target; bound
	// the slack to a handful of chunks' worth of nominal hop.
	nominal := 256 * 2
	if diff := got - want; diff > 3*nominal || diff < -3*nominal {
		t.Errorf("sum(outputIncrements)=%d too far from target %d (nominal hop %d)", got, want, nominal)
	}
}

func TestCalculateHardPeaksForceNegativeIncrement(t *testing.T) {
	c := New(256, true)
	n := 20
	phaseReset := make([]float64, n)
	// one sharp isolated spike, well above the rest
	for i := range phaseReset {
		phaseReset[i] = 0.01
	}
	phaseReset[10] = 50.0
	stretch := make([]float64, n)
	for i := range stretch {
		stretch[i] = 1.0
	}

	out := c.Calculate(1.0, n*256, phaseReset, stretch)
	if out[10] >= 0 {
		t.Fatalf("expected hard peak at index 10 to produce a negative increment, got %d", out[10])
	}
	if -out[10] != 256 {
		t.Errorf("hard peak magnitude = %d, want natural inputIncrement 256", -out[10])
	}

	peaks := c.GetLastCalculatedPeaks()
	require.Contains(t, peaks, 10)
}

func TestCalculateSoftModeHasNoHardPeaks(t *testing.T) {
	c := New(256, false)
	n := 20
	phaseReset := make([]float64, n)
	phaseReset[10] = 50.0
	out := c.Calculate(1.0, n*256, phaseReset, nil)
	for i, v := range out {
		if v < 0 {
			t.Errorf("soft-peak mode produced a hard reset at %d", i)
		}
	}
	require.Empty(t, c.GetLastCalculatedPeaks())
}

func TestCalculateClampsToTwiceNominal(t *testing.T) {
	c := New(100, false)
	n := 5
	stretch := []float64{1, 1, 1, 1, 1000} // last chunk dominates the weight
	phaseReset := make([]float64, n)
	out := c.Calculate(1.0, n*100, phaseReset, stretch)
	nominal := 100
	for _, v := range out {
		if v > 2*nominal {
			t.Errorf("increment %d exceeds clamp of %d", v, 2*nominal)
		}
		if v < 1 {
			t.Errorf("increment %d below minimum of 1", v)
		}
	}
}

func TestCalculateDeterministic(t *testing.T) {
	c1 := New(256, true)
	c2 := New(256, true)
	n := 30
	phaseReset := make([]float64, n)
	stretch := make([]float64, n)
	for i := range phaseReset {
		phaseReset[i] = float64(i%7) * 0.3
		stretch[i] = float64(i%5) + 1
	}
	out1 := c1.Calculate(1.7, n*256, phaseReset, stretch)
	out2 := c2.Calculate(1.7, n*256, phaseReset, stretch)
	require.Equal(t, out1, out2)
}
