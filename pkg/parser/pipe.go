package parser

import (
	"birch_go/pkg/heap"
	"birch_go/pkg/lexer"
	"birch_go/pkg/parseerr"
)

// specialForms names heads that can never be a pipe's target: they
// aren't ordinary function calls, they're syntax the parser itself
// interprets.
var specialForms = []string{
	"if", "for", "while", "repeat", "function", "{", "(", "<-", "<<-",
}

func isSpecialForm(v *heap.Cell) bool {
	for _, name := range specialForms {
		if heap.SymEqStr(v, name) {
			return true
		}
	}
	return false
}

func isOp(v *heap.Cell, name string) bool { return heap.SymEqStr(v, name) }

func hasPlaceholder(v *heap.Cell) bool { return v == heap.PlaceholderSym }

// placeholderCount counts `_` occurrences among a call's immediate
// argument values (not recursing into nested calls — a pipe only ever
// rewrites the call it directly targets).
func placeholderCount(args *heap.Cell) int {
	n := 0
	for heap.IsCell(args) {
		if args.Car == heap.PlaceholderSym {
			n++
		}
		args = args.Cdr
	}
	return n
}

// desugarPipe implements the pipe/pipe-bind rewrite: the right-hand
// side must already be a call; the left-hand value is
// spliced in at an explicit placeholder if one appears (at the root of
// the callee's own extractor chain, or as a named argument's value; a
// bare placeholder argument is an error), or else becomes the call's
// new first positional argument.
func (p *Parser) desugarPipe(lhs, rhs *heap.Cell, opTok lexer.Token) (*heap.Cell, error) {
	if opTok.Kind == lexer.PipeBind && !p.cfg.UsePipeBind {
		return nil, parseerr.NewParseError(parseerr.PipebindDisabled, p.st.File, opTok.Start.Line, opTok.Start.Col,
			"pipe-bind `=>` is disabled (set _R_USE_PIPEBIND_ to enable it)")
	}
	if !heap.IsCell(rhs) || rhs.Kind != heap.KindLanguage {
		return nil, parseerr.NewParseError(parseerr.RHSNotFnCall, p.st.File, opTok.Start.Line, opTok.Start.Col,
			"the right-hand side of a pipe must be a function call")
	}
	if isSpecialForm(rhs.Car) {
		return nil, parseerr.NewParseError(parseerr.UnsupportedInPipe, p.st.File, opTok.Start.Line, opTok.Start.Col,
			"this form can't be the target of a pipe")
	}
	if hasPlaceholder(rhs.Car) {
		return nil, parseerr.NewParseError(parseerr.PlaceholderInRHSFn, p.st.File, opTok.Start.Line, opTok.Start.Col,
			"a pipe placeholder can't stand in for the called function itself")
	}

	newCallee, replaced, err := p.substitutePlaceholderInChain(rhs.Car, lhs)
	if err != nil {
		return nil, err
	}
	if replaced {
		return p.lang(newCallee, rhs.Cdr)
	}

	count := placeholderCount(rhs.Cdr)
	if count > 1 {
		return nil, parseerr.NewParseError(parseerr.TooManyPlaceholders, p.st.File, opTok.Start.Line, opTok.Start.Col,
			"a pipe's right-hand side can use at most one placeholder")
	}
	if count == 1 {
		newArgs, err := p.substituteArgPlaceholder(rhs.Cdr, lhs, opTok)
		if err != nil {
			return nil, err
		}
		return p.lang(rhs.Car, newArgs)
	}

	newArgs, err := p.cons(lhs, rhs.Cdr)
	if err != nil {
		return nil, err
	}
	return p.lang(rhs.Car, newArgs)
}

// substitutePlaceholderInChain walks a `$`/`@`/`[[`/`[` extractor
// chain looking for a placeholder at its root (`_$a$b`, `_[["f"]]`);
// if found, the root is replaced with lhs and the chain rebuilt.
func (p *Parser) substitutePlaceholderInChain(v, lhs *heap.Cell) (*heap.Cell, bool, error) {
	if hasPlaceholder(v) {
		return lhs, true, nil
	}
	if !heap.IsCell(v) || v.Kind != heap.KindLanguage {
		return v, false, nil
	}
	if !isOp(v.Car, "$") && !isOp(v.Car, "@") && !isOp(v.Car, "[[") && !isOp(v.Car, "[") {
		return v, false, nil
	}
	args := heap.ListToSlice(v.Cdr)
	if len(args) == 0 {
		return v, false, nil
	}
	newRoot, replaced, err := p.substitutePlaceholderInChain(args[0], lhs)
	if err != nil || !replaced {
		return v, false, err
	}
	rest, err := p.consChain(args[1:], heap.Nil)
	if err != nil {
		return nil, false, err
	}
	newCdr, err := p.cons(newRoot, rest)
	if err != nil {
		return nil, false, err
	}
	rebuilt, err := p.lang(v.Car, newCdr)
	if err != nil {
		return nil, false, err
	}
	return rebuilt, true, nil
}

// substituteArgPlaceholder replaces the single placeholder among args
// with lhs — but only when it stands as a named argument's value:
// `f(_)`'s bare placeholder has nowhere to carry the left-hand value's
// name to, so it's rejected rather than silently falling back to
// positional substitution.
func (p *Parser) substituteArgPlaceholder(args, lhs *heap.Cell, opTok lexer.Token) (*heap.Cell, error) {
	if !heap.IsCell(args) {
		return args, nil
	}
	if args.Car == heap.PlaceholderSym {
		if heap.IsNil(args.Tag) {
			return nil, parseerr.NewParseError(parseerr.PlaceholderNotNamed, p.st.File, opTok.Start.Line, opTok.Start.Col,
				"a pipe placeholder used as an argument must be named")
		}
		return p.consTagged(lhs, args.Tag, args.Cdr)
	}
	rest, err := p.substituteArgPlaceholder(args.Cdr, lhs, opTok)
	if err != nil {
		return nil, err
	}
	return p.consTagged(args.Car, args.Tag, rest)
}

func (p *Parser) consTagged(car, tag, cdr *heap.Cell) (*heap.Cell, error) {
	cell, err := p.cons(car, cdr)
	if err != nil {
		return nil, err
	}
	if tag != nil && !heap.IsNil(tag) {
		p.h.SetTag(cell, tag)
	}
	return cell, nil
}
