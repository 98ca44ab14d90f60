package parser

import (
	"math"

	"birch_go/pkg/heap"
	"birch_go/pkg/lexer"
)

// track roots v in the parse state's precious multi-set so that a
// later allocation's GC trigger can't free it while it's only
// reachable from this function's Go locals (§3.2's precious-set
// reachability invariant — the collector never scans the Go stack).
func (p *Parser) track(v *heap.Cell, err error) (*heap.Cell, error) {
	if err != nil {
		return nil, p.runtimeErr(err)
	}
	p.st.Precious.Preserve(v)
	return v, nil
}

func (p *Parser) cons(car, cdr *heap.Cell) (*heap.Cell, error) {
	return p.track(p.h.AllocCons(car, cdr))
}

func (p *Parser) lang(car, cdr *heap.Cell) (*heap.Cell, error) {
	return p.track(p.h.AllocLanguage(car, cdr))
}

// consChain builds a right-to-left Cons list ending in tail, rooting
// every link as it's built (rather than heap.ListN, which allocates
// cells outside the pool the collector sweeps — fine for the fixed
// global singletons that function uses for, wrong for anything meant
// to actually be collectible).
func (p *Parser) consChain(items []*heap.Cell, tail *heap.Cell) (*heap.Cell, error) {
	result := tail
	for i := len(items) - 1; i >= 0; i-- {
		var err error
		result, err = p.cons(items[i], result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// langNode builds a call/operator node: (op arg0 arg1 ...).
func (p *Parser) langNode(op *heap.Cell, args ...*heap.Cell) (*heap.Cell, error) {
	argList, err := p.consChain(args, heap.Nil)
	if err != nil {
		return nil, err
	}
	return p.lang(op, argList)
}

func (p *Parser) sym(name string) *heap.Cell { return p.h.Intern(name) }

// char builds an un-pooled Char scalar the same way the symbol table
// builds a print-name: element-of-a-String-vector values share that
// lifetime pattern in this heap rather than being individually swept.
func char(s string) *heap.Cell {
	return &heap.Cell{Kind: heap.KindChar, CharBytes: []byte(s), CharEnc: heap.EncUTF8, Length: len(s)}
}

func (p *Parser) stringLit(s string) (*heap.Cell, error) {
	vec, err := p.track(p.h.AllocVector(heap.KindString, 1))
	if err != nil {
		return nil, err
	}
	vec.Strs = []*heap.Cell{char(s)}
	return vec, nil
}

func (p *Parser) doubleLit(v float64) (*heap.Cell, error) {
	vec, err := p.track(p.h.AllocVector(heap.KindDouble, 1))
	if err != nil {
		return nil, err
	}
	vec.Floats = []float64{v}
	return vec, nil
}

func (p *Parser) intLit(v int64) (*heap.Cell, error) {
	vec, err := p.track(p.h.AllocVector(heap.KindInteger, 1))
	if err != nil {
		return nil, err
	}
	vec.Ints = []int64{v}
	return vec, nil
}

func (p *Parser) complexLit(re, im float64) (*heap.Cell, error) {
	vec, err := p.track(p.h.AllocVector(heap.KindComplex, 1))
	if err != nil {
		return nil, err
	}
	vec.Complex = []complex128{complex(re, im)}
	return vec, nil
}

// numberLit builds the literal value a NumConst token denotes.
func (p *Parser) numberLit(tok lexer.Token) (*heap.Cell, error) {
	if tok.IsImaginary {
		return p.complexLit(0, tok.Num)
	}
	if tok.IsInt {
		return p.intLit(int64(tok.Num))
	}
	return p.doubleLit(tok.Num)
}

// symbolOrConstant resolves a bare identifier: the handful of
// reserved constant names (TRUE/FALSE/T/F/NA/Inf/NaN) become the
// matching literal value; anything else is a reference to the
// interned Symbol of that name.
func (p *Parser) symbolOrConstant(name string) (*heap.Cell, error) {
	switch name {
	case "TRUE", "T":
		return heap.True, nil
	case "FALSE", "F":
		return heap.False, nil
	case "NA":
		return heap.NA, nil
	case "Inf":
		return p.doubleLit(math.Inf(1))
	case "NaN":
		return p.doubleLit(math.NaN())
	default:
		return p.sym(name), nil
	}
}
