package curves

// Constant returns a fixed weight regardless of spectral content, so that
// StretchCalculator distributes stretch uniformly across chunks. Used as
// the stretch-weight curve in offline precise mode.
type Constant struct {
	value float64
}

// NewConstant returns a Constant curve emitting value for every chunk.
// Precise mode uses 1.0.
func NewConstant(value float64) *Constant {
	return &Constant{value: value}
}

// Process implements Curve.
func (c *Constant) Process([]float64, int) float64 { return c.value }

// Reset implements Curve. No-op.
func (c *Constant) Reset() {}

// SetWindowSize implements Curve. No-op.
func (c *Constant) SetWindowSize(int) {}
