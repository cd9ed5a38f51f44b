// Package eval executes planned programs over columns of input data.
// Every instruction is a pure element-wise operation, so rows are
// independent: the batch may be cut into chunks and each chunk run on
// its own worker with identical results.
package eval

import (
	"math"
	"runtime"
	"sync"

	"vexpr/internal/ast"
	verrors "vexpr/internal/errors"
	"vexpr/internal/plan"
)

// Options control one evaluation.
type Options struct {
	// ChunkSize is the number of rows per chunk when evaluating in
	// parallel. Zero or negative evaluates the whole batch on the
	// calling goroutine. Results are bit-identical either way.
	ChunkSize int

	// Rows supplies the batch length for programs that reference no
	// input columns. Ignored when the program reads any column.
	Rows int
}

// Run executes prog over the binding tables, leaving the answer in the
// register named by prog.Result, and returns the batch length N.
// Binding misuse (a column index out of range, columns of differing
// lengths) is reported as an EvalError; arithmetic never fails.
func Run(prog *plan.Program, reals [][]float64, strs [][]string, regs *Registers, opts Options) (int, error) {
	n, err := batchWidth(prog, reals, strs, opts.Rows)
	if err != nil {
		return 0, err
	}
	regs.ensure(prog.NumRealRegs, prog.NumBoolRegs, n)

	if opts.ChunkSize > 0 && n > opts.ChunkSize {
		runChunked(prog, reals, strs, regs, n, opts.ChunkSize)
	} else {
		runRange(prog, reals, strs, regs, 0, n)
	}
	return n, nil
}

// batchWidth establishes N from the first column the program
// references and checks every other referenced column against it. A
// program with no column references takes N from opts.Rows.
func batchWidth(prog *plan.Program, reals [][]float64, strs [][]string, rows int) (int, error) {
	n := -1
	check := func(l int) error {
		if n < 0 {
			n = l
			return nil
		}
		if l != n {
			return verrors.NewEvalError("binding columns have inconsistent lengths: %d vs %d", n, l)
		}
		return nil
	}

	for _, in := range prog.Code {
		switch in.Op {
		case plan.OP_LOADV:
			id := int(in.B)
			if id >= len(reals) {
				return 0, verrors.NewEvalError("real binding %d out of range (%d columns supplied)", id, len(reals))
			}
			if err := check(len(reals[id])); err != nil {
				return 0, err
			}
		case plan.OP_SEQ, plan.OP_SNE:
			for _, idx := range [2]uint16{in.B, in.C} {
				op := prog.StrOps[idx]
				if op.Var < 0 {
					continue
				}
				if int(op.Var) >= len(strs) {
					return 0, verrors.NewEvalError("string binding %d out of range (%d columns supplied)", op.Var, len(strs))
				}
				if err := check(len(strs[op.Var])); err != nil {
					return 0, err
				}
			}
		}
	}

	if n < 0 {
		if rows < 0 {
			rows = 0
		}
		n = rows
	}
	return n, nil
}

// runRange replays the whole program over rows [lo, hi). Chunks write
// disjoint row ranges of the shared register buffers, so concurrent
// calls with non-overlapping ranges are safe.
func runRange(prog *plan.Program, reals [][]float64, strs [][]string, regs *Registers, lo, hi int) {
	for _, in := range prog.Code {
		switch in.Op {
		case plan.OP_LOADK:
			dst, k := regs.reals[in.A], prog.Consts[in.B]
			for i := lo; i < hi; i++ {
				dst[i] = k
			}
		case plan.OP_LOADV:
			copy(regs.reals[in.A][lo:hi], reals[in.B][lo:hi])
		case plan.OP_NEG:
			dst, a := regs.reals[in.A], regs.reals[in.B]
			for i := lo; i < hi; i++ {
				dst[i] = -a[i]
			}
		case plan.OP_ADD:
			dst, a, b := regs.reals[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] + b[i]
			}
		case plan.OP_SUB:
			dst, a, b := regs.reals[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] - b[i]
			}
		case plan.OP_MUL:
			dst, a, b := regs.reals[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] * b[i]
			}
		case plan.OP_DIV:
			dst, a, b := regs.reals[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] / b[i]
			}
		case plan.OP_POW:
			dst, a, b := regs.reals[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = math.Pow(a[i], b[i])
			}
		case plan.OP_EQ:
			dst, a, b := regs.bools[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] == b[i]
			}
		case plan.OP_NE:
			dst, a, b := regs.bools[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] != b[i]
			}
		case plan.OP_LT:
			dst, a, b := regs.bools[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] < b[i]
			}
		case plan.OP_LE:
			dst, a, b := regs.bools[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] <= b[i]
			}
		case plan.OP_GT:
			dst, a, b := regs.bools[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] > b[i]
			}
		case plan.OP_GE:
			dst, a, b := regs.bools[in.A], regs.reals[in.B], regs.reals[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] >= b[i]
			}
		case plan.OP_SEQ:
			dst := regs.bools[in.A]
			l, r := prog.StrOps[in.B], prog.StrOps[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = strAt(l, strs, i) == strAt(r, strs, i)
			}
		case plan.OP_SNE:
			dst := regs.bools[in.A]
			l, r := prog.StrOps[in.B], prog.StrOps[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = strAt(l, strs, i) != strAt(r, strs, i)
			}
		case plan.OP_NOT:
			dst, a := regs.bools[in.A], regs.bools[in.B]
			for i := lo; i < hi; i++ {
				dst[i] = !a[i]
			}
		case plan.OP_AND:
			dst, a, b := regs.bools[in.A], regs.bools[in.B], regs.bools[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] && b[i]
			}
		case plan.OP_OR:
			dst, a, b := regs.bools[in.A], regs.bools[in.B], regs.bools[in.C]
			for i := lo; i < hi; i++ {
				dst[i] = a[i] || b[i]
			}
		}
	}
}

// strAt reads one row of a string comparison operand: a column element
// for variables, the literal itself (broadcast) otherwise.
func strAt(op ast.StrOperand, strs [][]string, i int) string {
	if op.Var >= 0 {
		return strs[op.Var][i]
	}
	return op.Lit
}

// runChunked partitions [0, n) into contiguous chunks and drains them
// with a bounded set of workers. Each chunk replays the whole program
// over its own row range.
func runChunked(prog *plan.Program, reals [][]float64, strs [][]string, regs *Registers, n, chunkSize int) {
	numChunks := (n + chunkSize - 1) / chunkSize
	workers := runtime.NumCPU()
	if workers > numChunks {
		workers = numChunks
	}

	jobs := make(chan int, numChunks)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				lo := c * chunkSize
				hi := lo + chunkSize
				if hi > n {
					hi = n
				}
				runRange(prog, reals, strs, regs, lo, hi)
			}
		}()
	}
	for c := 0; c < numChunks; c++ {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
}
