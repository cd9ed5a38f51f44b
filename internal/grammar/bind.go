// The binder walks the raw grammar tree, decides the sort of every
// node, resolves variables through the caller's Bindings, and builds
// the typed AST. Sort errors and unknown variables surface here, so
// callers only ever see well-sorted trees.

package grammar

import (
	"github.com/alecthomas/participle/v2/lexer"

	"vexpr/internal/ast"
	verrors "vexpr/internal/errors"
)

type binder struct {
	binds Bindings
	src   string
}

// isBooleanExpr reports whether the expression's top spine contains a
// boolean operator or comparison. The boolean reading is preferred, so
// a bare comparison parses as Bool; everything else is Real.
func isBooleanExpr(o *orExpr) bool {
	if len(o.Right) > 0 {
		return true
	}
	a := o.Left
	if len(a.Right) > 0 {
		return true
	}
	n := a.Left
	if len(n.Nots) > 0 {
		return true
	}
	if n.Cmp.Op != nil {
		return true
	}
	// A pure parenthesized chain may still hide a boolean inside.
	if at := bareAtom(n.Cmp.Left); at != nil && at.Sub != nil {
		return isBooleanExpr(at.Sub)
	}
	return false
}

// bareAtom returns the atom at the bottom of a sum chain that applies
// no operators at all, or nil if the chain has any structure.
func bareAtom(s *sumExpr) *atom {
	if len(s.Rest) > 0 {
		return nil
	}
	m := s.Left
	if len(m.Rest) > 0 {
		return nil
	}
	u := m.Left
	if len(u.Minus) > 0 {
		return nil
	}
	p := u.Pow
	if p.Exp != nil {
		return nil
	}
	return p.Base
}

func (b *binder) sortErr(msg string, pos lexer.Position) error {
	return verrors.NewSortMismatch(msg, pos.Line, pos.Column).WithSource(b.src)
}

func (b *binder) unknownVar(name string, pos lexer.Position) error {
	return verrors.NewUnknownVariable(name, pos.Line, pos.Column).WithSource(b.src)
}

// ---------------------------------------------------------------------------
// Boolean context
// ---------------------------------------------------------------------------

func (b *binder) bindOr(o *orExpr) (ast.BoolExpr, error) {
	left, err := b.bindAnd(o.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range o.Right {
		right, err := b.bindAnd(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BoolBinary{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (b *binder) bindAnd(a *andExpr) (ast.BoolExpr, error) {
	left, err := b.bindNot(a.Left)
	if err != nil {
		return nil, err
	}
	for _, r := range a.Right {
		right, err := b.bindNot(r)
		if err != nil {
			return nil, err
		}
		left = &ast.BoolBinary{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (b *binder) bindNot(n *notExpr) (ast.BoolExpr, error) {
	child, err := b.bindCmp(n.Cmp)
	if err != nil {
		return nil, err
	}
	for range n.Nots {
		child = &ast.BoolUnary{Child: child}
	}
	return child, nil
}

func (b *binder) bindCmp(c *cmpExpr) (ast.BoolExpr, error) {
	if c.Op == nil {
		// No comparison: the only boolean atoms are parenthesized
		// boolean subexpressions.
		at := bareAtom(c.Left)
		if at == nil {
			return nil, b.sortErr("expected a boolean expression, found an arithmetic one", c.Pos)
		}
		if at.Sub == nil {
			return nil, b.sortErr("expected a boolean expression", at.Pos)
		}
		return b.bindOr(at.Sub)
	}

	op := ast.CmpOp(*c.Op)

	// A string literal on either side forces a string comparison; two
	// bare identifiers are tried as reals first, then as strings.
	lAtom, rAtom := bareAtom(c.Left), bareAtom(c.Right)
	lStr := lAtom != nil && lAtom.Str != nil
	rStr := rAtom != nil && rAtom.Str != nil
	if lStr || rStr {
		return b.bindStrCompare(op, c, lAtom, rAtom)
	}
	if lAtom != nil && rAtom != nil && lAtom.Ident != nil && rAtom.Ident != nil {
		if _, ok := b.binds.RealVar(*lAtom.Ident); !ok {
			if _, ok := b.binds.RealVar(*rAtom.Ident); !ok {
				return b.bindStrCompare(op, c, lAtom, rAtom)
			}
		}
	}

	left, err := b.bindRealSum(c.Left)
	if err != nil {
		return nil, err
	}
	right, err := b.bindRealSum(c.Right)
	if err != nil {
		return nil, err
	}
	return &ast.Compare{Op: op, Left: left, Right: right}, nil
}

func (b *binder) bindStrCompare(op ast.CmpOp, c *cmpExpr, lAtom, rAtom *atom) (ast.BoolExpr, error) {
	if op != ast.CmpEq && op != ast.CmpNeq {
		return nil, b.sortErr("strings support only == and != comparisons", c.Pos)
	}
	left, err := b.bindStrOperand(lAtom, c.Pos)
	if err != nil {
		return nil, err
	}
	right, err := b.bindStrOperand(rAtom, c.Pos)
	if err != nil {
		return nil, err
	}
	return &ast.StrCompare{Op: op, Left: left, Right: right}, nil
}

// bindStrOperand binds one side of a string comparison: a string
// literal or a string variable, nothing else.
func (b *binder) bindStrOperand(at *atom, cmpPos lexer.Position) (ast.StrOperand, error) {
	if at == nil {
		return ast.StrOperand{}, b.sortErr("string comparisons take a string variable or literal on each side", cmpPos)
	}
	switch {
	case at.Str != nil:
		return ast.LitOperand(*at.Str), nil
	case at.Ident != nil:
		id, ok := b.binds.StrVar(*at.Ident)
		if !ok {
			return ast.StrOperand{}, b.unknownVar(*at.Ident, at.Pos)
		}
		return ast.VarOperand(id, *at.Ident), nil
	default:
		return ast.StrOperand{}, b.sortErr("string comparisons take a string variable or literal on each side", at.Pos)
	}
}

// ---------------------------------------------------------------------------
// Real context
// ---------------------------------------------------------------------------

func (b *binder) bindRealOr(o *orExpr) (ast.RealExpr, error) {
	if len(o.Right) > 0 {
		return nil, b.sortErr("boolean || where a real expression is required", o.Pos)
	}
	a := o.Left
	if len(a.Right) > 0 {
		return nil, b.sortErr("boolean && where a real expression is required", o.Pos)
	}
	n := a.Left
	if len(n.Nots) > 0 {
		return nil, b.sortErr("boolean ! where a real expression is required", n.Pos)
	}
	if n.Cmp.Op != nil {
		return nil, b.sortErr("comparison where a real expression is required", n.Cmp.Pos)
	}
	return b.bindRealSum(n.Cmp.Left)
}

func (b *binder) bindRealSum(s *sumExpr) (ast.RealExpr, error) {
	left, err := b.bindRealMul(s.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range s.Rest {
		right, err := b.bindRealMul(t.Term)
		if err != nil {
			return nil, err
		}
		op := ast.OpAdd
		if t.Op == "-" {
			op = ast.OpSub
		}
		left = &ast.RealBinary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (b *binder) bindRealMul(m *mulExpr) (ast.RealExpr, error) {
	left, err := b.bindRealUnary(m.Left)
	if err != nil {
		return nil, err
	}
	for _, t := range m.Rest {
		right, err := b.bindRealUnary(t.Term)
		if err != nil {
			return nil, err
		}
		op := ast.OpMul
		if t.Op == "/" {
			op = ast.OpDiv
		}
		left = &ast.RealBinary{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (b *binder) bindRealUnary(u *unaryExpr) (ast.RealExpr, error) {
	child, err := b.bindRealPow(u.Pow)
	if err != nil {
		return nil, err
	}
	for range u.Minus {
		child = &ast.RealUnary{Child: child}
	}
	return child, nil
}

func (b *binder) bindRealPow(p *powExpr) (ast.RealExpr, error) {
	base, err := b.bindRealAtom(p.Base)
	if err != nil {
		return nil, err
	}
	if p.Exp == nil {
		return base, nil
	}
	exp, err := b.bindRealUnary(p.Exp)
	if err != nil {
		return nil, err
	}
	return &ast.RealBinary{Op: ast.OpPow, Left: base, Right: exp}, nil
}

func (b *binder) bindRealAtom(at *atom) (ast.RealExpr, error) {
	switch {
	case at.Number != nil:
		return &ast.RealLit{Value: *at.Number}, nil
	case at.Str != nil:
		return nil, b.sortErr("string literal outside a string comparison", at.Pos)
	case at.Ident != nil:
		id, ok := b.binds.RealVar(*at.Ident)
		if !ok {
			if _, isStr := b.binds.StrVar(*at.Ident); isStr {
				return nil, b.sortErr("string variable "+*at.Ident+" used outside a string comparison", at.Pos)
			}
			return nil, b.unknownVar(*at.Ident, at.Pos)
		}
		return &ast.RealVar{ID: id, Name: *at.Ident}, nil
	default:
		return b.bindRealOr(at.Sub)
	}
}
