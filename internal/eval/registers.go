package eval

// Registers owns the column buffers a program executes over: one pool
// of real columns and one of boolean columns. A Registers value is
// single-owner during an evaluation; callers wanting concurrent
// independent evaluations hold one per goroutine.
type Registers struct {
	reals  [][]float64
	bools  [][]bool
	colCap int // minimum column length for fresh buffers
}

// NewRegisters returns an empty register file. Buffers are allocated on
// first use, at least initialCap elements long, and grow with the batch
// size but never shrink, so repeated evaluations with similar N do not
// reallocate.
func NewRegisters(initialCap int) *Registers {
	if initialCap < 0 {
		initialCap = 0
	}
	return &Registers{colCap: initialCap}
}

// ensure makes both pools hold at least the requested number of
// buffers, each at least n elements long.
func (r *Registers) ensure(numReal, numBool, n int) {
	colLen := n
	if colLen < r.colCap {
		colLen = r.colCap
	}
	for len(r.reals) < numReal {
		r.reals = append(r.reals, make([]float64, colLen))
	}
	for i := 0; i < numReal; i++ {
		if len(r.reals[i]) < n {
			r.reals[i] = make([]float64, colLen)
		}
	}
	for len(r.bools) < numBool {
		r.bools = append(r.bools, make([]bool, colLen))
	}
	for i := 0; i < numBool; i++ {
		if len(r.bools[i]) < n {
			r.bools[i] = make([]bool, colLen)
		}
	}
}

// Real returns the first n rows of a real register. The slice aliases
// the register buffer and is valid until the next evaluation using
// this Registers value.
func (r *Registers) Real(reg, n int) []float64 { return r.reals[reg][:n] }

// Bool returns the first n rows of a boolean register.
func (r *Registers) Bool(reg, n int) []bool { return r.bools[reg][:n] }
