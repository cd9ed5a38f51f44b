// Package plan lowers typed expression trees to straight-line
// three-address programs, reusing registers so that each pool is sized
// to the expression's peak register pressure.
package plan

import (
	"fmt"

	"vexpr/internal/ast"
)

// allocator hands out register ids from a per-sort free list. Released
// ids are reused LIFO; max is the high-water mark of ids ever live.
type allocator struct {
	next int
	max  int
	free []int
}

func (a *allocator) alloc() int {
	if n := len(a.free); n > 0 {
		reg := a.free[n-1]
		a.free = a.free[:n-1]
		return reg
	}
	reg := a.next
	a.next++
	if a.next > a.max {
		a.max = a.next
	}
	return reg
}

func (a *allocator) release(reg int) {
	a.free = append(a.free, reg)
}

type planner struct {
	code   []Instruction
	consts []float64
	strOps []ast.StrOperand
	rregs  allocator
	bregs  allocator
}

// PlanReal lowers a real-sorted tree. Planning is infallible on a
// well-sorted tree.
func PlanReal(e ast.RealExpr) *Program {
	p := &planner{}
	reg := p.planReal(e)
	return p.finish(Result{Reg: reg, Sort: ast.Real})
}

// PlanBool lowers a boolean-sorted tree.
func PlanBool(e ast.BoolExpr) *Program {
	p := &planner{}
	reg := p.planBool(e)
	return p.finish(Result{Reg: reg, Sort: ast.Bool})
}

func (p *planner) finish(res Result) *Program {
	return &Program{
		Code:        p.code,
		Consts:      p.consts,
		StrOps:      p.strOps,
		NumRealRegs: p.rregs.max,
		NumBoolRegs: p.bregs.max,
		Result:      res,
	}
}

func (p *planner) emit(op OpCode, a, b, c int) {
	p.code = append(p.code, Instruction{Op: op, A: uint16(a), B: uint16(b), C: uint16(c)})
}

func (p *planner) addConst(v float64) int {
	for i, k := range p.consts {
		if k == v {
			return i
		}
	}
	p.consts = append(p.consts, v)
	return len(p.consts) - 1
}

func (p *planner) addStrOp(op ast.StrOperand) int {
	p.strOps = append(p.strOps, op)
	return len(p.strOps) - 1
}

// planReal emits code leaving the subexpression's value in the returned
// real register. Children are planned left to right and their registers
// released only after every child is planned, so the destination may
// recycle one of them.
func (p *planner) planReal(e ast.RealExpr) int {
	switch e := e.(type) {
	case *ast.RealLit:
		dst := p.rregs.alloc()
		p.emit(OP_LOADK, dst, p.addConst(e.Value), 0)
		return dst
	case *ast.RealVar:
		dst := p.rregs.alloc()
		p.emit(OP_LOADV, dst, int(e.ID), 0)
		return dst
	case *ast.RealUnary:
		a := p.planReal(e.Child)
		p.rregs.release(a)
		dst := p.rregs.alloc()
		p.emit(OP_NEG, dst, a, 0)
		return dst
	case *ast.RealBinary:
		a := p.planReal(e.Left)
		b := p.planReal(e.Right)
		p.rregs.release(a)
		p.rregs.release(b)
		dst := p.rregs.alloc()
		p.emit(realBinOps[e.Op], dst, a, b)
		return dst
	default:
		panic(fmt.Sprintf("plan: unexpected real node %T", e))
	}
}

func (p *planner) planBool(e ast.BoolExpr) int {
	switch e := e.(type) {
	case *ast.Compare:
		a := p.planReal(e.Left)
		b := p.planReal(e.Right)
		p.rregs.release(a)
		p.rregs.release(b)
		dst := p.bregs.alloc()
		p.emit(cmpOps[e.Op], dst, a, b)
		return dst
	case *ast.StrCompare:
		l := p.addStrOp(e.Left)
		r := p.addStrOp(e.Right)
		dst := p.bregs.alloc()
		op := OP_SEQ
		if e.Op == ast.CmpNeq {
			op = OP_SNE
		}
		p.emit(op, dst, l, r)
		return dst
	case *ast.BoolUnary:
		a := p.planBool(e.Child)
		p.bregs.release(a)
		dst := p.bregs.alloc()
		p.emit(OP_NOT, dst, a, 0)
		return dst
	case *ast.BoolBinary:
		a := p.planBool(e.Left)
		b := p.planBool(e.Right)
		p.bregs.release(a)
		p.bregs.release(b)
		dst := p.bregs.alloc()
		op := OP_AND
		if e.Op == ast.OpOr {
			op = OP_OR
		}
		p.emit(op, dst, a, b)
		return dst
	default:
		panic(fmt.Sprintf("plan: unexpected bool node %T", e))
	}
}

var realBinOps = [...]OpCode{
	ast.OpAdd: OP_ADD,
	ast.OpSub: OP_SUB,
	ast.OpMul: OP_MUL,
	ast.OpDiv: OP_DIV,
	ast.OpPow: OP_POW,
}

var cmpOps = [...]OpCode{
	ast.CmpEq:  OP_EQ,
	ast.CmpNeq: OP_NE,
	ast.CmpLt:  OP_LT,
	ast.CmpLe:  OP_LE,
	ast.CmpGt:  OP_GT,
	ast.CmpGe:  OP_GE,
}
