package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"birch_go/pkg/gc"
	"birch_go/pkg/heap"
	"birch_go/pkg/parseerr"
	"birch_go/pkg/rtconfig"
)

func newTestHeap(t *testing.T) *gc.Heap {
	t.Helper()
	return gc.New(rtconfig.Get(), gc.DefaultBudget)
}

// parseOne parses src and returns the single top-level expression it
// produces, failing the test if that isn't exactly what happens.
func parseOne(t *testing.T, h *gc.Heap, src string) *heap.Cell {
	t.Helper()
	p, err := New(h, []byte(src), "<test>", Options{})
	if err != nil {
		t.Fatalf("New(%q): %v", src, err)
	}
	defer p.Finish()
	expr, status, err := p.Next()
	if err != nil {
		t.Fatalf("Next(%q): %v", src, err)
	}
	if status != StatusOk {
		t.Fatalf("Next(%q) status = %v, want OK", src, status)
	}
	return expr
}

func TestParseSymbol(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "x")
	if !heap.IsSymbol(expr) || !heap.SymEqStr(expr, "x") {
		t.Errorf("parsing %q = %v, want the symbol x", "x", expr)
	}
}

func TestParseIntegerLiteral(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "42L")
	if expr.Kind != heap.KindInteger || len(expr.Ints) != 1 || expr.Ints[0] != 42 {
		t.Errorf("parsing 42L = %+v, want an integer scalar 42", expr)
	}
}

func TestParseDoubleLiteral(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "3.5")
	if expr.Kind != heap.KindDouble || len(expr.Floats) != 1 || expr.Floats[0] != 3.5 {
		t.Errorf("parsing 3.5 = %+v, want a double scalar 3.5", expr)
	}
}

func TestParseStringLiteral(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, `"hi"`)
	if expr.Kind != heap.KindString || len(expr.Strs) != 1 || string(expr.Strs[0].CharBytes) != "hi" {
		t.Errorf(`parsing "hi" = %+v, want a one-element string vector "hi"`, expr)
	}
}

func TestParseTrueFalseConstants(t *testing.T) {
	h := newTestHeap(t)
	if got := parseOne(t, h, "TRUE"); got != heap.True {
		t.Errorf("TRUE parsed to %v, want the shared heap.True singleton", got)
	}
	if got := parseOne(t, h, "FALSE"); got != heap.False {
		t.Errorf("FALSE parsed to %v, want the shared heap.False singleton", got)
	}
}

// shape is a pointer-free rendering of an expression graph: recursive
// comparison with go-cmp isn't possible directly on *heap.Cell (Nil is
// its own self-referential car/cdr/tag, which sends cmp into infinite
// recursion), so tests that want to assert on a whole parsed tree at
// once convert it to this comparable form first.
type shape struct {
	Kind string
	Val  string
	Num  float64
	Args []shape
}

func sym(name string) shape  { return shape{Kind: "sym", Val: name} }
func integer(n int64) shape  { return shape{Kind: "int", Num: float64(n)} }
func double(n float64) shape { return shape{Kind: "double", Num: n} }

func exprShape(v *heap.Cell) shape {
	if heap.IsNil(v) {
		return shape{Kind: "nil"}
	}
	switch v.Kind {
	case heap.KindSymbol:
		return sym(string(v.PrintName.CharBytes))
	case heap.KindInteger:
		return integer(v.Ints[0])
	case heap.KindDouble:
		return double(v.Floats[0])
	case heap.KindLogical:
		return shape{Kind: "logical", Num: float64(v.Ints[0])}
	case heap.KindLanguage:
		args := []shape{exprShape(v.Car)}
		for cur := v.Cdr; !heap.IsNil(cur); cur = cur.Cdr {
			args = append(args, exprShape(cur.Car))
		}
		return shape{Kind: "lang", Args: args}
	default:
		return shape{Kind: v.Kind.String()}
	}
}

func assertShape(t *testing.T, expr *heap.Cell, want shape) {
	t.Helper()
	if diff := cmp.Diff(want, exprShape(expr)); diff != "" {
		t.Errorf("expression graph mismatch (-want +got):\n%s", diff)
	}
}

func TestParseBinaryExpression(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "1L + 2L")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("+"), integer(1), integer(2)}})
}

func TestOperatorPrecedence(t *testing.T) {
	h := newTestHeap(t)
	// 1 + 2 * 3 must parse as 1 + (2 * 3): the outer node is `+`.
	expr := parseOne(t, h, "1L + 2L * 3L")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{
		sym("+"),
		integer(1),
		{Kind: "lang", Args: []shape{sym("*"), integer(2), integer(3)}},
	}})
}

func TestCaretIsRightAssociative(t *testing.T) {
	h := newTestHeap(t)
	// 2 ^ 3 ^ 2 must parse as 2 ^ (3 ^ 2).
	expr := parseOne(t, h, "2 ^ 3 ^ 2")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{
		sym("^"),
		double(2),
		{Kind: "lang", Args: []shape{sym("^"), double(3), double(2)}},
	}})
}

func TestLeftArrowAssign(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "x <- 1L")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("<-"), sym("x"), integer(1)}})
}

func TestEqualsAssignDesugarsToLeftArrow(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "x = 1L")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("<-"), sym("x"), integer(1)}})
}

func TestRightArrowReversesOperandsAndNormalizes(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "1L -> x")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("<-"), sym("x"), integer(1)}})
}

func TestFunctionCallShape(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "f(1L, 2L)")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("f"), integer(1), integer(2)}})
}

func TestDollarSlotAccess(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "x$y")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("$"), sym("x"), sym("y")}})
}

func TestUnaryMinus(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "-x")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("-"), sym("x")}})
}

func TestMultipleTopLevelStatements(t *testing.T) {
	h := newTestHeap(t)
	p, err := New(h, []byte("x\ny\n"), "<test>", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Finish()

	var names []string
	for {
		expr, status, err := p.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if status == StatusEof {
			break
		}
		if status != StatusOk {
			t.Fatalf("status = %v, want OK", status)
		}
		names = append(names, string(expr.PrintName.CharBytes))
	}
	if len(names) != 2 || names[0] != "x" || names[1] != "y" {
		t.Errorf("names = %v, want [x y]", names)
	}
}

func TestIncompleteInputYieldsIncompleteStatus(t *testing.T) {
	h := newTestHeap(t)
	p, err := New(h, []byte("1 +"), "<test>", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Finish()
	_, status, err := p.Next()
	if status != StatusIncomplete {
		t.Errorf("status = %v (err=%v), want INCOMPLETE", status, err)
	}
}

func TestEmptyStatementIsNull(t *testing.T) {
	h := newTestHeap(t)
	p, err := New(h, []byte(";"), "<test>", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Finish()
	_, status, err := p.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if status != StatusNull {
		t.Errorf("status = %v, want NULL", status)
	}
}

func TestParseDataTableRecordsWhenRequested(t *testing.T) {
	h := newTestHeap(t)
	p, err := New(h, []byte("1 + 2"), "<test>", Options{KeepParseData: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := p.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	p.Finish()
	if len(p.State().Records()) == 0 {
		t.Error("expected a non-empty parse-data table with KeepParseData set")
	}
}

func TestParseDataTableEmptyByDefault(t *testing.T) {
	h := newTestHeap(t)
	p, err := New(h, []byte("1 + 2"), "<test>", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, _, err := p.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	p.Finish()
	if len(p.State().Records()) != 0 {
		t.Error("expected an empty parse-data table when KeepParseData is unset")
	}
}

func TestPipeSplicesAsFirstPositionalArgument(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "x |> f(1L)")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("f"), sym("x"), integer(1)}})
}

func TestPipeBareArgPlaceholderRejected(t *testing.T) {
	h := newTestHeap(t)
	p, err := New(h, []byte("a |> f(_)"), "<test>", Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Finish()
	_, _, err = p.Next()
	if err == nil {
		t.Fatal("parsing `a |> f(_)` succeeded, want a PlaceholderNotNamed error")
	}
	cond, ok := err.(*parseerr.Condition)
	if !ok {
		t.Fatalf("error = %v (%T), want a *parseerr.Condition", err, err)
	}
	if cond.Subclass != string(parseerr.PlaceholderNotNamed) {
		t.Errorf("Subclass = %q, want %q", cond.Subclass, parseerr.PlaceholderNotNamed)
	}
}

func TestPipeNamedArgPlaceholderAccepted(t *testing.T) {
	h := newTestHeap(t)
	expr := parseOne(t, h, "a |> f(x = _)")
	assertShape(t, expr, shape{Kind: "lang", Args: []shape{sym("f"), sym("a")}})

	// The substituted value must still carry the argument's original
	// name: expr.Cdr is the single argument cell `a` was spliced into.
	if !heap.SymEqStr(expr.Cdr.Tag, "x") {
		t.Errorf("substituted arg Tag = %v, want the symbol x", expr.Cdr.Tag)
	}
}
