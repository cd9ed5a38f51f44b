// cmd/vexpr/main.go
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vexpr"
)

const VERSION = "1.0.0"

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("vexpr %s\n", VERSION)
	case "eval":
		runEval(args[1:])
	case "plan":
		runPlan(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`vexpr - vectorized expression evaluator

Usage:
  vexpr eval <expression> <data.csv> [chunk-size]
  vexpr plan <expression>
  vexpr version

Commands:
  eval     Evaluate an expression over the columns of a CSV file.
           The header row names the variables; numeric columns become
           real variables, other columns string variables. Prints one
           output value per row. An optional chunk size evaluates the
           batch in parallel chunks.
  plan     Print an expression's sort, register counts and compiled
           program.
  version  Print the version.`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func runEval(args []string) {
	if len(args) < 2 {
		fatal(fmt.Errorf("eval: expected <expression> <data.csv>"))
	}
	src, path := args[0], args[1]

	chunk := 0
	if len(args) > 2 {
		c, err := strconv.Atoi(args[2])
		if err != nil || c < 1 {
			fatal(fmt.Errorf("eval: bad chunk size %q", args[2]))
		}
		chunk = c
	}

	cols, err := loadColumns(path)
	if err != nil {
		fatal(err)
	}

	expr, err := vexpr.Parse(src, cols.bindings())
	if err != nil {
		fatal(err)
	}

	regs := vexpr.NewRegisters(cols.rows)
	opts := []vexpr.EvalOption{vexpr.WithRows(cols.rows)}
	if chunk > 0 {
		opts = append(opts, vexpr.WithChunkSize(chunk))
	}

	switch expr.Sort() {
	case vexpr.Real:
		re, err := expr.Real()
		if err != nil {
			fatal(err)
		}
		out, err := re.Evaluate(cols.reals, cols.strs, regs, opts...)
		if err != nil {
			fatal(err)
		}
		for _, v := range out {
			fmt.Println(strconv.FormatFloat(v, 'g', -1, 64))
		}
	case vexpr.Bool:
		be, err := expr.Bool()
		if err != nil {
			fatal(err)
		}
		out, err := be.Evaluate(cols.reals, cols.strs, regs, opts...)
		if err != nil {
			fatal(err)
		}
		for _, v := range out {
			fmt.Println(v)
		}
	}
}

func runPlan(args []string) {
	if len(args) < 1 {
		fatal(fmt.Errorf("plan: expected <expression>"))
	}

	expr, err := vexpr.Parse(args[0], &autoBindings{real: map[string]vexpr.BindingID{}, str: map[string]vexpr.BindingID{}})
	if err != nil {
		fatal(err)
	}

	var prog *vexpr.Program
	if expr.Sort() == vexpr.Real {
		re, err := expr.Real()
		if err != nil {
			fatal(err)
		}
		prog = re.Program()
	} else {
		be, err := expr.Bool()
		if err != nil {
			fatal(err)
		}
		prog = be.Program()
	}

	fmt.Printf("sort: %s\n", expr.Sort())
	fmt.Printf("tree: %s\n", expr)
	fmt.Print(prog.Disassemble())
}

// autoBindings resolves every name, assigning fresh ids on first use,
// so `vexpr plan` works without a data file.
type autoBindings struct {
	real map[string]vexpr.BindingID
	str  map[string]vexpr.BindingID
}

func (a *autoBindings) RealVar(name string) (vexpr.BindingID, bool) {
	if id, ok := a.real[name]; ok {
		return id, true
	}
	id := vexpr.BindingID(len(a.real))
	a.real[name] = id
	return id, true
}

func (a *autoBindings) StrVar(name string) (vexpr.BindingID, bool) {
	if id, ok := a.str[name]; ok {
		return id, true
	}
	id := vexpr.BindingID(len(a.str))
	a.str[name] = id
	return id, true
}

// columns is a CSV file split into typed columns: a column whose every
// cell parses as a float is a real variable, anything else a string
// variable.
type columns struct {
	rows     int
	realIdx  map[string]vexpr.BindingID
	strIdx   map[string]vexpr.BindingID
	reals    [][]float64
	strs     [][]string
}

func (c *columns) bindings() vexpr.Bindings {
	return vexpr.MapBindings{Reals: c.realIdx, Strings: c.strIdx}
}

func loadColumns(path string) (*columns, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	header := records[0]
	rows := records[1:]

	c := &columns{
		rows:    len(rows),
		realIdx: make(map[string]vexpr.BindingID),
		strIdx:  make(map[string]vexpr.BindingID),
	}

	for col, name := range header {
		name = strings.TrimSpace(name)

		vals := make([]float64, len(rows))
		numeric := true
		for i, rec := range rows {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
			if err != nil {
				numeric = false
				break
			}
			vals[i] = v
		}

		if numeric {
			c.realIdx[name] = vexpr.BindingID(len(c.reals))
			c.reals = append(c.reals, vals)
			continue
		}

		cells := make([]string, len(rows))
		for i, rec := range rows {
			cells[i] = rec[col]
		}
		c.strIdx[name] = vexpr.BindingID(len(c.strs))
		c.strs = append(c.strs, cells)
	}

	return c, nil
}
