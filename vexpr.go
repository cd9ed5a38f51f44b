// Package vexpr is a vectorized arithmetic and boolean expression
// engine. An expression is parsed once into a typed two-sort tree,
// lowered to a straight-line three-address program over a small pool of
// reusable column-sized registers, and then evaluated repeatedly
// against columns of input data, one column per variable. Parsing and
// planning cost is paid once per expression; evaluation is a tight
// element-wise loop per batch.
//
// Boolean operators are eager and element-wise: && and || always
// evaluate both operands over the whole column. There is no
// short-circuiting, because columnar execution cannot skip rows
// selectively. A condition like `b != 0 && a/b > 1` therefore does not
// guard the division; it simply produces IEEE-754 ±Inf or NaN on the
// unguarded rows.
//
// Expressions and their programs are immutable and safe to share
// across goroutines. A Registers value is the mutable evaluation
// state: hold one per concurrently evaluating goroutine.
package vexpr

import (
	"vexpr/internal/ast"
	verrors "vexpr/internal/errors"
	"vexpr/internal/eval"
	"vexpr/internal/grammar"
	"vexpr/internal/plan"
)

// Sort is the type discipline partitioning expressions: Real or Bool.
type Sort = ast.Sort

const (
	Real = ast.Real
	Bool = ast.Bool
)

// BindingID indexes a variable's column in the binding tables passed to
// Evaluate. Real and string variables use separate id spaces.
type BindingID = ast.BindingID

// Registers owns the reusable column buffers an evaluation writes to.
// Buffers grow with the batch size and never shrink.
type Registers = eval.Registers

// NewRegisters returns an empty register file whose buffers will be at
// least initialCap elements long once allocated.
func NewRegisters(initialCap int) *Registers { return eval.NewRegisters(initialCap) }

// Program is the planner's three-address output for one expression.
type Program = plan.Program

// Expression is a parsed, sort-checked expression of either sort.
type Expression struct {
	src      string
	realTree ast.RealExpr
	boolTree ast.BoolExpr
}

// Parse parses source text against the caller's variable namespaces.
// The boolean grammar is tried first, so a bare comparison parses as
// Bool; an input with no boolean operator parses as Real. All errors
// (syntax, unknown variables, sort mixing) are reported here; planning
// cannot fail on a parsed expression, and evaluation fails only when the
// binding tables are misused (see RealExpression.Evaluate).
func Parse(src string, binds Bindings) (*Expression, error) {
	realTree, boolTree, err := grammar.Parse(src, binds)
	if err != nil {
		return nil, err
	}
	return &Expression{src: src, realTree: realTree, boolTree: boolTree}, nil
}

// Sort reports whether the expression is real- or boolean-valued.
func (e *Expression) Sort() Sort {
	if e.realTree != nil {
		return Real
	}
	return Bool
}

// String returns a fully parenthesized rendering of the parsed tree.
// Parsing the result yields a structurally equal expression.
func (e *Expression) String() string {
	if e.realTree != nil {
		return e.realTree.String()
	}
	return e.boolTree.String()
}

// Real unwraps a real-sorted expression, compiling it to a program.
// Returns a SortMismatch error if the expression is boolean.
func (e *Expression) Real() (*RealExpression, error) {
	if e.realTree == nil {
		return nil, verrors.NewSortMismatch("expression is boolean, not real", 0, 0)
	}
	return &RealExpression{tree: e.realTree, prog: plan.PlanReal(e.realTree)}, nil
}

// Bool unwraps a boolean-sorted expression, compiling it to a program.
// Returns a SortMismatch error if the expression is real.
func (e *Expression) Bool() (*BoolExpression, error) {
	if e.boolTree == nil {
		return nil, verrors.NewSortMismatch("expression is real, not boolean", 0, 0)
	}
	return &BoolExpression{tree: e.boolTree, prog: plan.PlanBool(e.boolTree)}, nil
}

// RealExpression is a compiled real-sorted expression.
type RealExpression struct {
	tree ast.RealExpr
	prog *plan.Program
}

// Program exposes the compiled three-address program.
func (e *RealExpression) Program() *Program { return e.prog }

func (e *RealExpression) String() string { return e.tree.String() }

// Evaluate runs the program over the binding tables. Column i of reals
// is the column for real BindingID i; likewise strs for string ids.
// The returned slice aliases a register buffer owned by regs and is
// valid until the next evaluation with the same Registers.
//
// Columns of inconsistent lengths, or a referenced id with no column,
// return an EvalError. Arithmetic itself never fails: out-of-range
// operations produce IEEE-754 ±Inf and NaN.
func (e *RealExpression) Evaluate(reals [][]float64, strs [][]string, regs *Registers, opts ...EvalOption) ([]float64, error) {
	n, err := eval.Run(e.prog, reals, strs, regs, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return regs.Real(e.prog.Result.Reg, n), nil
}

// BoolExpression is a compiled boolean-sorted expression.
type BoolExpression struct {
	tree ast.BoolExpr
	prog *plan.Program
}

// Program exposes the compiled three-address program.
func (e *BoolExpression) Program() *Program { return e.prog }

func (e *BoolExpression) String() string { return e.tree.String() }

// Evaluate runs the program over the binding tables; see
// RealExpression.Evaluate for the column contract.
func (e *BoolExpression) Evaluate(reals [][]float64, strs [][]string, regs *Registers, opts ...EvalOption) ([]bool, error) {
	n, err := eval.Run(e.prog, reals, strs, regs, buildOptions(opts))
	if err != nil {
		return nil, err
	}
	return regs.Bool(e.prog.Result.Reg, n), nil
}
