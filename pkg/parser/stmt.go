package parser

import (
	"birch_go/pkg/heap"
	"birch_go/pkg/lexer"
	"birch_go/pkg/parseerr"
)

// parseBlock parses `{ stmt ; stmt ... }`. Newlines remain significant
// statement separators inside braces — only `(`, `[`, `[[` switch that
// off (§4.H.4).
func (p *Parser) parseBlock() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	if _, err := p.expect(lexer.LBrace, "{"); err != nil {
		return nil, err
	}
	save := p.pushEatNL(false)
	var stmts []*heap.Cell
	for p.tok.Kind != lexer.RBrace {
		for p.tok.Kind == lexer.Newline || p.tok.Kind == lexer.Semicolon {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if p.tok.Kind == lexer.RBrace {
			break
		}
		stmt, err := p.parseExprOrAssignOrHelp()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.tok.Kind != lexer.Newline && p.tok.Kind != lexer.Semicolon && p.tok.Kind != lexer.RBrace {
			return nil, p.unexpected("newline, ';' or '}'")
		}
	}
	p.popEatNL(save)
	last := p.tok
	if _, err := p.expect(lexer.RBrace, "}"); err != nil {
		return nil, err
	}
	p.st.EndNonTerminal(mark, first, last, lexer.LBrace)
	return p.langNode(p.sym("{"), stmts...)
}

func (p *Parser) parseIf() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	if _, err := p.consume(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen, "("); err != nil {
		return nil, err
	}
	save := p.pushEatNL(true)
	cond, err := p.parseExprOrHelp()
	p.popEatNL(save)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen, ")"); err != nil {
		return nil, err
	}
	if err := p.skipOptionalNewline(); err != nil {
		return nil, err
	}
	thenBody, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return nil, err
	}

	args := []*heap.Cell{cond, thenBody}
	hasElse, err := p.elseFollows()
	if err != nil {
		return nil, err
	}
	if hasElse {
		for p.tok.Kind == lexer.Newline {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(lexer.ElseKw, "else"); err != nil {
			return nil, err
		}
		if err := p.skipOptionalNewline(); err != nil {
			return nil, err
		}
		elseBody, err := p.parseExprOrAssignOrHelp()
		if err != nil {
			return nil, err
		}
		args = append(args, elseBody)
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.IfKw)
	return p.langNode(p.sym("if"), args...)
}

func (p *Parser) parseFor() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	if _, err := p.consume(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen, "("); err != nil {
		return nil, err
	}
	save := p.pushEatNL(true)
	if p.tok.Kind != lexer.Symbol {
		p.popEatNL(save)
		return nil, p.unexpected("a loop variable")
	}
	varName := p.tok.Str
	if _, err := p.consume(); err != nil {
		p.popEatNL(save)
		return nil, err
	}
	if _, err := p.expect(lexer.InKw, "in"); err != nil {
		p.popEatNL(save)
		return nil, err
	}
	seq, err := p.parseExprOrHelp()
	p.popEatNL(save)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen, ")"); err != nil {
		return nil, err
	}
	if err := p.skipOptionalNewline(); err != nil {
		return nil, err
	}
	body, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return nil, err
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.ForKw)
	return p.langNode(p.sym("for"), p.sym(varName), seq, body)
}

func (p *Parser) parseWhile() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	if _, err := p.consume(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen, "("); err != nil {
		return nil, err
	}
	save := p.pushEatNL(true)
	cond, err := p.parseExprOrHelp()
	p.popEatNL(save)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen, ")"); err != nil {
		return nil, err
	}
	if err := p.skipOptionalNewline(); err != nil {
		return nil, err
	}
	body, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return nil, err
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.WhileKw)
	return p.langNode(p.sym("while"), cond, body)
}

func (p *Parser) parseRepeat() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	if _, err := p.consume(); err != nil {
		return nil, err
	}
	body, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return nil, err
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.RepeatKw)
	return p.langNode(p.sym("repeat"), body)
}

// parseFunction parses both `function(...) body` and the `\(...) body`
// shorthand — they build an identical node, the shorthand is purely
// lexical sugar.
func (p *Parser) parseFunction() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	if _, err := p.consume(); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen, "("); err != nil {
		return nil, err
	}
	formals, err := p.parseFormlist()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen, ")"); err != nil {
		return nil, err
	}
	if err := p.skipOptionalNewline(); err != nil {
		return nil, err
	}
	body, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return nil, err
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.FunctionKw)
	return p.langNode(p.sym("function"), formals, body)
}

// parseFormlist parses a function's `(` already-consumed parameter
// list up to (but not past) the closing `)`: `name`, `name = default`,
// or `...`, comma-separated. Builds the pairlist representation
// (Tag=name, Car=default-or-MissingArg) formals are evaluated as.
func (p *Parser) parseFormlist() (*heap.Cell, error) {
	mark := p.st.Begin()
	first := p.tok
	save := p.pushEatNL(true)
	defer p.popEatNL(save)

	var names []string
	var defaults []*heap.Cell
	seen := map[string]bool{}
	for p.tok.Kind != lexer.RParen {
		if p.tok.Kind != lexer.Symbol {
			return nil, p.unexpected("a parameter name")
		}
		name := p.tok.Str
		if name != "..." && seen[name] {
			return nil, parseerr.NewParseError(parseerr.RepeatedFormal, p.st.File, p.tok.Start.Line, p.tok.Start.Col, "repeated formal argument "+name)
		}
		seen[name] = true
		if _, err := p.consumeRetag(lexer.SymbolFormals); err != nil {
			return nil, err
		}
		def := heap.MissingArg
		if p.tok.Kind == lexer.Assign {
			if _, err := p.consumeRetag(lexer.EqFormals); err != nil {
				return nil, err
			}
			val, err := p.parseExprOrAssignOrHelp()
			if err != nil {
				return nil, err
			}
			def = val
		}
		names = append(names, name)
		defaults = append(defaults, def)
		if p.tok.Kind == lexer.Comma {
			if _, err := p.consume(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.NTFormlist)

	result := heap.Nil
	for i := len(names) - 1; i >= 0; i-- {
		cell, err := p.cons(defaults[i], result)
		if err != nil {
			return nil, err
		}
		p.h.SetTag(cell, p.sym(names[i]))
		result = cell
	}
	return result, nil
}

// argItem is one element of a call's or subscript's argument list:
// `name = value`, a bare `value`, `...` forwarded wholesale, or (only
// valid inside `[`/`[[`) an empty comma-separated slot.
type argItem struct {
	name  *heap.Cell
	value *heap.Cell
	dots  bool
}

// parseSublist parses a comma-separated argument list up to (but not
// past) stop, honoring named arguments and — only when allowEmpty,
// i.e. inside `[`/`[[` rather than a call's `(` — bare empty slots.
func (p *Parser) parseSublist(stop lexer.Kind, allowEmpty bool) ([]argItem, error) {
	mark := p.st.Begin()
	first := p.tok
	save := p.pushEatNL(true)
	defer p.popEatNL(save)

	var items []argItem
	for p.tok.Kind != stop {
		if p.tok.Kind == lexer.Comma {
			if !allowEmpty {
				return nil, p.unexpected("an argument")
			}
			items = append(items, argItem{})
			if _, err := p.consume(); err != nil {
				return nil, err
			}
			continue
		}
		item, err := p.parseSub()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if p.tok.Kind == lexer.Comma {
			if _, err := p.consume(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	last := p.tok
	p.st.EndNonTerminal(mark, first, last, lexer.NTSublist)
	return items, nil
}

// parseSub parses one `sub`: `name = value`, `name =` (value elided,
// meaning "missing"), `...`, or a bare value. A name/string-literal
// name is only treated as `name =` when it's immediately followed by
// `=` — otherwise it's parsed as an ordinary value expression (which
// may itself go on to use that symbol in a larger expression).
func (p *Parser) parseSub() (argItem, error) {
	if p.tok.Kind == lexer.Symbol && p.tok.Str != "..." || p.tok.Kind == lexer.StrConst {
		name := p.tok.Str
		nxt, err := p.peekSignificant()
		if err != nil {
			return argItem{}, err
		}
		if nxt.Kind == lexer.Assign {
			if _, err := p.consumeRetag(lexer.SymbolSub); err != nil {
				return argItem{}, err
			}
			if _, err := p.consumeRetag(lexer.EqSub); err != nil {
				return argItem{}, err
			}
			if p.tok.Kind == lexer.Comma || p.tok.Kind == lexer.RParen || p.tok.Kind == lexer.RBracket {
				return argItem{name: p.sym(name)}, nil
			}
			val, err := p.parseExprOrAssignOrHelp()
			if err != nil {
				return argItem{}, err
			}
			return argItem{name: p.sym(name), value: val}, nil
		}
	}
	if p.tok.Kind == lexer.Symbol && p.tok.Str == "..." {
		if _, err := p.consume(); err != nil {
			return argItem{}, err
		}
		return argItem{dots: true, value: p.sym("...")}, nil
	}
	val, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return argItem{}, err
	}
	return argItem{value: val}, nil
}

// buildCallNode builds (fn arg1 arg2 ...) as a Language node whose
// argument pairlist carries each item's name on its Cons Tag, the way
// a call's actual argument list is represented (not as a plain
// positional list with names recovered separately).
func (p *Parser) buildCallNode(fn *heap.Cell, items []argItem) (*heap.Cell, error) {
	result := heap.Nil
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		val := it.value
		if val == nil {
			val = heap.MissingArg
		}
		cell, err := p.cons(val, result)
		if err != nil {
			return nil, err
		}
		if it.name != nil {
			p.h.SetTag(cell, it.name)
		}
		result = cell
	}
	return p.lang(fn, result)
}

func (p *Parser) parseCall(callee *heap.Cell) (*heap.Cell, error) {
	if _, err := p.consume(); err != nil { // '('
		return nil, err
	}
	items, err := p.parseSublist(lexer.RParen, false)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RParen, ")"); err != nil {
		return nil, err
	}
	return p.buildCallNode(callee, items)
}

func (p *Parser) parseIndex(lhs *heap.Cell, double bool) (*heap.Cell, error) {
	if _, err := p.consume(); err != nil { // '[' or '[['
		return nil, err
	}
	items, err := p.parseSublist(lexer.RBracket, true)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.RBracket, "]"); err != nil {
		return nil, err
	}
	opSym := "["
	if double {
		if _, err := p.expect(lexer.RBracket, "]"); err != nil {
			return nil, err
		}
		opSym = "[["
	}
	result := heap.Nil
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		val := it.value
		if val == nil {
			val = heap.MissingArg
		}
		cell, err := p.cons(val, result)
		if err != nil {
			return nil, err
		}
		if it.name != nil {
			p.h.SetTag(cell, it.name)
		}
		result = cell
	}
	fullArgs, err := p.cons(lhs, result)
	if err != nil {
		return nil, err
	}
	return p.lang(p.sym(opSym), fullArgs)
}
