// Package grammar turns expression text into the typed two-sort tree.
// The token and parse layer is generated by participle from the
// annotated structs below; precedence is encoded in the rule hierarchy
// (or > and > not > comparison > sum > product > unary > power > atom).
// A second pass (bind.go) assigns a sort to every node and resolves
// variables, so an ill-sorted program is rejected at parse time.
package grammar

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"vexpr/internal/ast"
	verrors "vexpr/internal/errors"
)

// Bindings resolves variable names to dense column indices during
// parsing. Real and string variables are separate id namespaces; the
// same name may exist in both.
type Bindings interface {
	RealVar(name string) (ast.BindingID, bool)
	StrVar(name string) (ast.BindingID, bool)
}

// Note: literals carry no sign. A signed-number token would lex "1-2"
// as two numbers; unary minus covers every signed spelling instead.
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Float", Pattern: `\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "String", Pattern: `"[^"\\]*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "OpOr", Pattern: `\|\|`},
	{Name: "OpAnd", Pattern: `&&`},
	{Name: "OpCmp", Pattern: `==|!=|<=|>=|<|>`},
	{Name: "Punct", Pattern: `[-+*/^!()]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

// compareOp captures a comparison operator token.
type compareOp ast.CmpOp

var compareOpTable = map[string]ast.CmpOp{
	"==": ast.CmpEq,
	"!=": ast.CmpNeq,
	"<":  ast.CmpLt,
	"<=": ast.CmpLe,
	">":  ast.CmpGt,
	">=": ast.CmpGe,
}

// Capture converts the operator token to a compareOp.
func (c *compareOp) Capture(values []string) error {
	op, ok := compareOpTable[values[0]]
	if !ok {
		return fmt.Errorf("%q is not a valid comparison operator", values[0])
	}
	*c = compareOp(op)
	return nil
}

// root is the whole input: a single expression of either sort.
type root struct {
	Expr *orExpr `parser:"@@"`
}

// orExpr: andExpr ( "||" andExpr )*
type orExpr struct {
	Pos lexer.Position

	Left  *andExpr   `parser:"@@"`
	Right []*andExpr `parser:"( OpOr @@ )*"`
}

// andExpr: notExpr ( "&&" notExpr )*
type andExpr struct {
	Left  *notExpr   `parser:"@@"`
	Right []*notExpr `parser:"( OpAnd @@ )*"`
}

// notExpr: "!"* cmpExpr
type notExpr struct {
	Pos lexer.Position

	Nots []string `parser:"( @'!' )*"`
	Cmp  *cmpExpr `parser:"@@"`
}

// cmpExpr: sumExpr ( cmpOp sumExpr )?   (comparisons do not chain)
type cmpExpr struct {
	Pos lexer.Position

	Left  *sumExpr   `parser:"@@"`
	Op    *compareOp `parser:"( @OpCmp"`
	Right *sumExpr   `parser:"  @@ )?"`
}

// sumExpr: mulExpr ( ("+"|"-") mulExpr )*   (left-associative)
type sumExpr struct {
	Left *mulExpr   `parser:"@@"`
	Rest []*sumTail `parser:"@@*"`
}

type sumTail struct {
	Op   string   `parser:"@('+' | '-')"`
	Term *mulExpr `parser:"@@"`
}

// mulExpr: unaryExpr ( ("*"|"/") unaryExpr )*   (left-associative)
type mulExpr struct {
	Left *unaryExpr `parser:"@@"`
	Rest []*mulTail `parser:"@@*"`
}

type mulTail struct {
	Op   string     `parser:"@('*' | '/')"`
	Term *unaryExpr `parser:"@@"`
}

// unaryExpr: "-"* powExpr. Applies below ^, so -x ^ 2 negates the whole power.
type unaryExpr struct {
	Minus []string `parser:"( @'-' )*"`
	Pow   *powExpr `parser:"@@"`
}

// powExpr: atom ( "^" unaryExpr )?. Right-associative, binding
// tighter than unary minus on its left while still allowing a signed
// exponent on its right.
type powExpr struct {
	Base *atom      `parser:"@@"`
	Exp  *unaryExpr `parser:"( '^' @@ )?"`
}

type atom struct {
	Pos lexer.Position

	Number *float64 `parser:"  @Float"`
	Str    *string  `parser:"| @String"`
	Ident  *string  `parser:"| @Ident"`
	Sub    *orExpr  `parser:"| '(' @@ ')'"`
}

var exprParser = participle.MustBuild[root](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace"),
	participle.Unquote("String"),
)

// Parse parses source text and binds it against the caller's variable
// namespaces. Exactly one of the two returned trees is non-nil: which
// one encodes the expression's sort.
func Parse(src string, binds Bindings) (ast.RealExpr, ast.BoolExpr, error) {
	tree, err := exprParser.ParseString("", src)
	if err != nil {
		if perr, ok := err.(participle.Error); ok {
			pos := perr.Position()
			return nil, nil, verrors.NewSyntaxError(perr.Message(), pos.Line, pos.Column).WithSource(src)
		}
		return nil, nil, verrors.NewSyntaxError(err.Error(), 0, 0)
	}

	b := &binder{binds: binds, src: src}
	if isBooleanExpr(tree.Expr) {
		be, err := b.bindOr(tree.Expr)
		if err != nil {
			return nil, nil, err
		}
		return nil, be, nil
	}
	re, err := b.bindRealOr(tree.Expr)
	if err != nil {
		return nil, nil, err
	}
	return re, nil, nil
}
