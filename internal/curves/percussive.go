package curves

// Percussive detects sudden broadband energy increases (spectral flux of
// rectified positive bin differences). It rises sharply at transients and
// stays low through steady or tonal passages, driving StretchCalculator's
// hard phase resets.
type Percussive struct {
	prev []float64
}

// NewPercussive returns a Percussive curve with no prior history.
func NewPercussive() *Percussive {
	return &Percussive{}
}

// Process implements Curve.
func (p *Percussive) Process(magnitude []float64, _ int) float64 {
	if len(p.prev) != len(magnitude) {
		p.prev = make([]float64, len(magnitude))
		copy(p.prev, magnitude)
		return 0
	}

	var flux float64
	for i, m := range magnitude {
		d := m - p.prev[i]
		if d > 0 {
			flux += d
		}
	}
	copy(p.prev, magnitude)

	if n := len(magnitude); n > 0 {
		flux /= float64(n)
	}
	return flux
}

// Reset implements Curve.
func (p *Percussive) Reset() {
	p.prev = nil
}

// SetWindowSize implements Curve. A new window size means a new bin count,
// so stored history from the previous window is no longer comparable.
func (p *Percussive) SetWindowSize(int) {
	p.prev = nil
}
