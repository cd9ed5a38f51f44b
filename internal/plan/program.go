package plan

// Three-Address Program Format
// ============================
//
// The planner lowers a typed expression tree to a flat list of
// three-address instructions over two register pools, one per sort.
// Register indices are dense and small; the pools are sized to the
// peak live count, so a register is a reusable column-sized buffer.
//
// Instruction fields: Op, A (destination), B and C (operands). Real
// literals live in a per-program constant pool addressed by B; string
// comparison operands live in a string-operand pool addressed by B/C.

import (
	"fmt"
	"strings"

	"vexpr/internal/ast"
)

type OpCode uint8

const (
	// ========================================================================
	// Loads (real registers)
	// ========================================================================

	OP_LOADK OpCode = iota // LOADK R(A) K(B)      R(A)[i] = K(B)
	OP_LOADV               // LOADV R(A) V(B)      R(A)[i] = realCols[B][i]

	// ========================================================================
	// Real arithmetic (element-wise, IEEE-754)
	// ========================================================================

	OP_NEG // NEG R(A) R(B)        R(A)[i] = -R(B)[i]
	OP_ADD // ADD R(A) R(B) R(C)   R(A)[i] = R(B)[i] + R(C)[i]
	OP_SUB // SUB R(A) R(B) R(C)   R(A)[i] = R(B)[i] - R(C)[i]
	OP_MUL // MUL R(A) R(B) R(C)   R(A)[i] = R(B)[i] * R(C)[i]
	OP_DIV // DIV R(A) R(B) R(C)   R(A)[i] = R(B)[i] / R(C)[i]
	OP_POW // POW R(A) R(B) R(C)   R(A)[i] = R(B)[i] ** R(C)[i]

	// ========================================================================
	// Real comparisons (real operands, boolean destination)
	// ========================================================================

	OP_EQ // EQ B(A) R(B) R(C)     B(A)[i] = R(B)[i] == R(C)[i]
	OP_NE // NE B(A) R(B) R(C)     B(A)[i] = R(B)[i] != R(C)[i]
	OP_LT // LT B(A) R(B) R(C)     B(A)[i] = R(B)[i] <  R(C)[i]
	OP_LE // LE B(A) R(B) R(C)     B(A)[i] = R(B)[i] <= R(C)[i]
	OP_GT // GT B(A) R(B) R(C)     B(A)[i] = R(B)[i] >  R(C)[i]
	OP_GE // GE B(A) R(B) R(C)     B(A)[i] = R(B)[i] >= R(C)[i]

	// ========================================================================
	// String comparisons (string-operand pool, boolean destination)
	// ========================================================================

	OP_SEQ // SEQ B(A) S(B) S(C)   B(A)[i] = S(B)[i] == S(C)[i]
	OP_SNE // SNE B(A) S(B) S(C)   B(A)[i] = S(B)[i] != S(C)[i]

	// ========================================================================
	// Boolean operations (eager, element-wise)
	// ========================================================================

	OP_NOT // NOT B(A) B(B)        B(A)[i] = !B(B)[i]
	OP_AND // AND B(A) B(B) B(C)   B(A)[i] = B(B)[i] && B(C)[i]
	OP_OR  // OR  B(A) B(B) B(C)   B(A)[i] = B(B)[i] || B(C)[i]
)

var opNames = [...]string{
	OP_LOADK: "LOADK",
	OP_LOADV: "LOADV",
	OP_NEG:   "NEG",
	OP_ADD:   "ADD",
	OP_SUB:   "SUB",
	OP_MUL:   "MUL",
	OP_DIV:   "DIV",
	OP_POW:   "POW",
	OP_EQ:    "EQ",
	OP_NE:    "NE",
	OP_LT:    "LT",
	OP_LE:    "LE",
	OP_GT:    "GT",
	OP_GE:    "GE",
	OP_SEQ:   "SEQ",
	OP_SNE:   "SNE",
	OP_NOT:   "NOT",
	OP_AND:   "AND",
	OP_OR:    "OR",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "UNKNOWN"
}

// Instruction is one three-address operation. A is always the
// destination register; the meaning of B and C depends on the opcode.
type Instruction struct {
	Op OpCode
	A  uint16
	B  uint16
	C  uint16
}

// Result names the register holding the program's answer, and its sort.
type Result struct {
	Reg  int
	Sort ast.Sort
}

// Program is the planner's output: straight-line code plus the pools it
// addresses. Programs are immutable and freely shareable across
// goroutines; every instruction's sources are written by an earlier
// instruction.
type Program struct {
	Code   []Instruction
	Consts []float64        // real literal pool, addressed by LOADK
	StrOps []ast.StrOperand // string comparison operands, addressed by SEQ/SNE

	// Peak live register count per sort: the minimum number of column
	// buffers sufficient to run the program.
	NumRealRegs int
	NumBoolRegs int

	Result Result
}

// Disassemble renders the program as one instruction per line, for
// debugging and for the CLI's plan command.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	for _, in := range p.Code {
		switch in.Op {
		case OP_LOADK:
			fmt.Fprintf(&sb, "%-6s r%d <- %g\n", in.Op, in.A, p.Consts[in.B])
		case OP_LOADV:
			fmt.Fprintf(&sb, "%-6s r%d <- real[%d]\n", in.Op, in.A, in.B)
		case OP_NEG:
			fmt.Fprintf(&sb, "%-6s r%d <- r%d\n", in.Op, in.A, in.B)
		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_POW:
			fmt.Fprintf(&sb, "%-6s r%d <- r%d r%d\n", in.Op, in.A, in.B, in.C)
		case OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE:
			fmt.Fprintf(&sb, "%-6s b%d <- r%d r%d\n", in.Op, in.A, in.B, in.C)
		case OP_SEQ, OP_SNE:
			fmt.Fprintf(&sb, "%-6s b%d <- %s %s\n", in.Op, in.A, p.StrOps[in.B], p.StrOps[in.C])
		case OP_NOT:
			fmt.Fprintf(&sb, "%-6s b%d <- b%d\n", in.Op, in.A, in.B)
		case OP_AND, OP_OR:
			fmt.Fprintf(&sb, "%-6s b%d <- b%d b%d\n", in.Op, in.A, in.B, in.C)
		}
	}
	fmt.Fprintf(&sb, "result %c%d (%s), %d real + %d bool registers\n",
		sortPrefix(p.Result.Sort), p.Result.Reg, p.Result.Sort, p.NumRealRegs, p.NumBoolRegs)
	return sb.String()
}

func sortPrefix(s ast.Sort) byte {
	if s == ast.Real {
		return 'r'
	}
	return 'b'
}
