package eval

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vexpr/internal/ast"
	verrors "vexpr/internal/errors"
	"vexpr/internal/plan"
)

func rv(id int) *ast.RealVar {
	return &ast.RealVar{ID: ast.BindingID(id), Name: fmt.Sprintf("v%d", id)}
}

func rbin(op ast.RealOp, l, r ast.RealExpr) *ast.RealBinary {
	return &ast.RealBinary{Op: op, Left: l, Right: r}
}

func evalReal(t *testing.T, tree ast.RealExpr, reals [][]float64, strs [][]string, opts Options) []float64 {
	t.Helper()
	prog := plan.PlanReal(tree)
	regs := NewRegisters(0)
	n, err := Run(prog, reals, strs, regs, opts)
	require.NoError(t, err)
	return regs.Real(prog.Result.Reg, n)
}

func evalBool(t *testing.T, tree ast.BoolExpr, reals [][]float64, strs [][]string, opts Options) []bool {
	t.Helper()
	prog := plan.PlanBool(tree)
	regs := NewRegisters(0)
	n, err := Run(prog, reals, strs, regs, opts)
	require.NoError(t, err)
	return regs.Bool(prog.Result.Reg, n)
}

func TestArithmetic(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	cols := [][]float64{a, b}

	tests := []struct {
		name string
		tree ast.RealExpr
		want []float64
	}{
		{"add", rbin(ast.OpAdd, rv(0), rv(1)), []float64{5, 7, 9}},
		{"sub", rbin(ast.OpSub, rv(0), rv(1)), []float64{-3, -3, -3}},
		{"mul", rbin(ast.OpMul, rv(0), rv(1)), []float64{4, 10, 18}},
		{"div", rbin(ast.OpDiv, rv(1), rv(0)), []float64{4, 2.5, 2}},
		{"pow", rbin(ast.OpPow, rv(0), rv(1)), []float64{1, 32, 729}},
		{"neg", &ast.RealUnary{Child: rv(0)}, []float64{-1, -2, -3}},
		{"const broadcast", rbin(ast.OpMul, rv(0), &ast.RealLit{Value: 10}), []float64{10, 20, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evalReal(t, tt.tree, cols, nil, Options{}))
		})
	}
}

func TestIEEESemantics(t *testing.T) {
	x := []float64{1, -1, 0}
	z := []float64{0, 0, 0}
	cols := [][]float64{x, z}

	out := evalReal(t, rbin(ast.OpDiv, rv(0), rv(1)), cols, nil, Options{})
	assert.True(t, math.IsInf(out[0], 1), "1/0 = +Inf")
	assert.True(t, math.IsInf(out[1], -1), "-1/0 = -Inf")
	assert.True(t, math.IsNaN(out[2]), "0/0 = NaN")

	// NaN compares unequal to everything, including itself.
	eq := evalBool(t, &ast.Compare{
		Op:    ast.CmpEq,
		Left:  rbin(ast.OpDiv, rv(0), rv(1)),
		Right: rbin(ast.OpDiv, rv(0), rv(1)),
	}, cols, nil, Options{})
	assert.Equal(t, []bool{true, true, false}, eq)

	ne := evalBool(t, &ast.Compare{
		Op:    ast.CmpNeq,
		Left:  rbin(ast.OpDiv, rv(0), rv(1)),
		Right: rbin(ast.OpDiv, rv(0), rv(1)),
	}, cols, nil, Options{})
	assert.Equal(t, []bool{false, false, true}, ne)
}

func TestComparisons(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{2, 2, 2}
	cols := [][]float64{a, b}

	tests := []struct {
		op   ast.CmpOp
		want []bool
	}{
		{ast.CmpEq, []bool{false, true, false}},
		{ast.CmpNeq, []bool{true, false, true}},
		{ast.CmpLt, []bool{true, false, false}},
		{ast.CmpLe, []bool{true, true, false}},
		{ast.CmpGt, []bool{false, false, true}},
		{ast.CmpGe, []bool{false, true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			got := evalBool(t, &ast.Compare{Op: tt.op, Left: rv(0), Right: rv(1)}, cols, nil, Options{})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoolOpsAreEager(t *testing.T) {
	a := []float64{1, 1, 0, 0}
	b := []float64{1, 0, 1, 0}
	one := &ast.RealLit{Value: 1}
	cols := [][]float64{a, b}

	aTrue := &ast.Compare{Op: ast.CmpEq, Left: rv(0), Right: one}
	bTrue := &ast.Compare{Op: ast.CmpEq, Left: rv(1), Right: one}

	and := evalBool(t, &ast.BoolBinary{Op: ast.OpAnd, Left: aTrue, Right: bTrue}, cols, nil, Options{})
	assert.Equal(t, []bool{true, false, false, false}, and)

	or := evalBool(t, &ast.BoolBinary{Op: ast.OpOr, Left: aTrue, Right: bTrue}, cols, nil, Options{})
	assert.Equal(t, []bool{true, true, true, false}, or)

	not := evalBool(t, &ast.BoolUnary{Child: aTrue}, cols, nil, Options{})
	assert.Equal(t, []bool{false, false, true, true}, not)
}

func TestStringCompare(t *testing.T) {
	s := []string{"hi", "bye", "hi"}
	u := []string{"hi", "bye", "no"}
	strs := [][]string{s, u}

	varLit := &ast.StrCompare{Op: ast.CmpEq, Left: ast.VarOperand(0, "s"), Right: ast.LitOperand("hi")}
	assert.Equal(t, []bool{true, false, true}, evalBool(t, varLit, nil, strs, Options{}))

	varVar := &ast.StrCompare{Op: ast.CmpNeq, Left: ast.VarOperand(0, "s"), Right: ast.VarOperand(1, "u")}
	assert.Equal(t, []bool{false, false, true}, evalBool(t, varVar, nil, strs, Options{}))

	// Two literals reference no columns; N comes from Options.Rows.
	litLit := &ast.StrCompare{Op: ast.CmpEq, Left: ast.LitOperand("a"), Right: ast.LitOperand("a")}
	assert.Equal(t, []bool{true, true}, evalBool(t, litLit, nil, nil, Options{Rows: 2}))
}

func TestInputFreePrograms(t *testing.T) {
	tree := rbin(ast.OpAdd, &ast.RealLit{Value: 3}, &ast.RealLit{Value: 4})

	assert.Equal(t, []float64{7, 7, 7}, evalReal(t, tree, nil, nil, Options{Rows: 3}))
	assert.Empty(t, evalReal(t, tree, nil, nil, Options{}))

	// Rows is ignored once any column is referenced.
	got := evalReal(t, rbin(ast.OpAdd, rv(0), &ast.RealLit{Value: 1}), [][]float64{{1, 2}}, nil, Options{Rows: 99})
	assert.Equal(t, []float64{2, 3}, got)
}

func TestEmptyBatch(t *testing.T) {
	out := evalReal(t, rbin(ast.OpAdd, rv(0), rv(1)), [][]float64{{}, {}}, nil, Options{})
	assert.Empty(t, out)
}

func TestBindingErrors(t *testing.T) {
	regs := NewRegisters(0)

	// Referenced id beyond the supplied table.
	prog := plan.PlanReal(rbin(ast.OpAdd, rv(0), rv(3)))
	_, err := Run(prog, [][]float64{{1}}, nil, regs, Options{})
	var ee *verrors.ExprError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, verrors.EvalError, ee.Kind)

	// Inconsistent column lengths.
	prog = plan.PlanReal(rbin(ast.OpAdd, rv(0), rv(1)))
	_, err = Run(prog, [][]float64{{1, 2}, {1, 2, 3}}, nil, regs, Options{})
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, verrors.EvalError, ee.Kind)

	// A string column must match the real columns' length.
	mixed := &ast.BoolBinary{
		Op:    ast.OpAnd,
		Left:  &ast.Compare{Op: ast.CmpLt, Left: rv(0), Right: rv(0)},
		Right: &ast.StrCompare{Op: ast.CmpEq, Left: ast.VarOperand(0, "s"), Right: ast.LitOperand("x")},
	}
	bprog := plan.PlanBool(mixed)
	_, err = Run(bprog, [][]float64{{1, 2}}, [][]string{{"x"}}, regs, Options{})
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, verrors.EvalError, ee.Kind)

	// Missing string column.
	sc := plan.PlanBool(&ast.StrCompare{Op: ast.CmpEq, Left: ast.VarOperand(2, "s"), Right: ast.LitOperand("x")})
	_, err = Run(sc, nil, [][]string{{"x"}}, regs, Options{})
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, verrors.EvalError, ee.Kind)
}

func TestRegisterReuseAcrossCalls(t *testing.T) {
	tree := rbin(ast.OpMul, rbin(ast.OpAdd, rv(0), rv(1)), rv(0))
	prog := plan.PlanReal(tree)
	regs := NewRegisters(4)

	for _, n := range []int{3, 1000, 2, 500} {
		a := make([]float64, n)
		b := make([]float64, n)
		for i := range a {
			a[i] = float64(i)
			b[i] = float64(2 * i)
		}
		nn, err := Run(prog, [][]float64{a, b}, nil, regs, Options{})
		require.NoError(t, err)
		out := regs.Real(prog.Result.Reg, nn)
		require.Len(t, out, n)
		for i := range out {
			assert.Equal(t, (a[i]+b[i])*a[i], out[i])
		}
	}
}

func TestChunkInvariance(t *testing.T) {
	const n = 1000
	rng := rand.New(rand.NewSource(7))
	a := make([]float64, n)
	b := make([]float64, n)
	c := make([]float64, n)
	s := make([]string, n)
	words := []string{"x", "y", "z"}
	for i := 0; i < n; i++ {
		a[i] = rng.NormFloat64() * 100
		b[i] = rng.NormFloat64() // occasionally near zero: NaN/Inf paths
		c[i] = rng.NormFloat64() * 10
		s[i] = words[rng.Intn(len(words))]
	}
	reals := [][]float64{a, b, c}
	strs := [][]string{s}

	realTree := rbin(ast.OpDiv,
		rbin(ast.OpMul, rbin(ast.OpAdd, rv(0), rv(1)), rbin(ast.OpSub, rv(0), rv(1))),
		rbin(ast.OpPow, rv(2), rv(1)))
	boolTree := &ast.BoolBinary{
		Op: ast.OpOr,
		Left: &ast.BoolBinary{
			Op:    ast.OpAnd,
			Left:  &ast.Compare{Op: ast.CmpLt, Left: rv(0), Right: rv(2)},
			Right: &ast.StrCompare{Op: ast.CmpEq, Left: ast.VarOperand(0, "s"), Right: ast.LitOperand("y")},
		},
		Right: &ast.BoolUnary{Child: &ast.Compare{Op: ast.CmpGe, Left: rbin(ast.OpMul, rv(0), rv(1)), Right: rv(2)}},
	}

	wantReal := evalReal(t, realTree, reals, strs, Options{})
	wantBool := evalBool(t, boolTree, reals, strs, Options{})

	for _, chunk := range []int{1, 7, 64, 333, 999, 1000, 5000} {
		gotReal := evalReal(t, realTree, reals, strs, Options{ChunkSize: chunk})
		require.Len(t, gotReal, n)
		for i := range gotReal {
			// Bit-for-bit, so NaN rows compare equal too.
			assert.Equal(t, math.Float64bits(wantReal[i]), math.Float64bits(gotReal[i]),
				"chunk %d row %d: %v vs %v", chunk, i, wantReal[i], gotReal[i])
		}
		assert.Equal(t, wantBool, evalBool(t, boolTree, reals, strs, Options{ChunkSize: chunk}),
			"chunk %d", chunk)
	}
}
