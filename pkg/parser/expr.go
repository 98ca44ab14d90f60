package parser

import (
	"birch_go/pkg/heap"
	"birch_go/pkg/lexer"
)

// opInfo is one binary operator's precedence level (higher binds
// tighter) and associativity, per §4.H.1's table. `$`/`@`, `[`/`[[`/
// `(` and `::`/`:::` are handled as a single left-associative postfix
// chain in parsePostfix instead of through this table, since nothing
// of lower precedence can ever separate them from their operand.
var binOps = map[lexer.Kind]struct {
	level int
	right bool
}{
	lexer.Tilde:    {4, true},
	lexer.Pipe:     {5, false},
	lexer.PipePipe: {5, false},
	lexer.Amp:      {6, false},
	lexer.AmpAmp:   {6, false},
	lexer.Lt:       {8, false},
	lexer.Le:       {8, false},
	lexer.Gt:       {8, false},
	lexer.Ge:       {8, false},
	lexer.EqEq:     {8, false},
	lexer.Ne:       {8, false},
	lexer.Plus:     {9, false},
	lexer.Minus:    {9, false},
	lexer.Star:     {10, false},
	lexer.Slash:    {10, false},
	lexer.SpecialOp: {11, false},
	lexer.PipeOp:    {11, false},
	lexer.PipeBind:  {11, false},
	lexer.Colon:     {12, false},
	lexer.Caret:     {14, true},
}

// unaryLevel is where prefix -, +, !, ~, ? bind: tighter than `:` (12)
// and `*`/`/` and everything below, looser than `^` (14) and the
// postfix chain above it.
const unaryLevel = 13

// parseExprOrAssignOrHelp is expr_or_assign_or_help: expr with the
// top-level `?`, arrow-assignment, and `=` productions layered on.
func (p *Parser) parseExprOrAssignOrHelp() (*heap.Cell, error) {
	return p.parseTopChain(true)
}

// parseExprOrHelp is expr_or_help: expr with only the `?` production,
// used inside cond/ifcond/forcond parens where `=` and arrows aren't
// part of the grammar.
func (p *Parser) parseExprOrHelp() (*heap.Cell, error) {
	return p.parseTopChain(false)
}

func (p *Parser) parseTopChain(allowAssign bool) (*heap.Cell, error) {
	left, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	for {
		switch p.tok.Kind {
		case lexer.Question:
			opTok, err := p.consume()
			if err != nil {
				return nil, err
			}
			if err := p.skipOptionalNewline(); err != nil {
				return nil, err
			}
			right, err := p.parseTopChain(allowAssign)
			if err != nil {
				return nil, err
			}
			left, err = p.langNode(p.sym(opTok.Text), left, right)
			if err != nil {
				return nil, err
			}
		case lexer.LArrow, lexer.LArrow2, lexer.RArrow, lexer.RArrow2, lexer.ColonEq, lexer.Assign:
			if !allowAssign {
				return left, nil
			}
			opTok, err := p.consume()
			if err != nil {
				return nil, err
			}
			if err := p.skipOptionalNewline(); err != nil {
				return nil, err
			}
			right, err := p.parseTopChain(allowAssign)
			if err != nil {
				return nil, err
			}
			left, err = p.buildAssign(opTok, left, right)
			if err != nil {
				return nil, err
			}
		default:
			return left, nil
		}
	}
}

// buildAssign applies the arrow-reversal rule: `->`/`->>` are
// rewritten to `<-`/`<<-` with their operands swapped (the original
// source text is kept on the node only via the token the parse-data
// table recorded, so error messages can still say "->").
func (p *Parser) buildAssign(opTok lexer.Token, left, right *heap.Cell) (*heap.Cell, error) {
	switch opTok.Kind {
	case lexer.RArrow:
		return p.langNode(p.sym("<-"), right, left)
	case lexer.RArrow2:
		return p.langNode(p.sym("<<-"), right, left)
	case lexer.ColonEq, lexer.Assign:
		return p.langNode(p.sym("<-"), left, right)
	default: // LArrow, LArrow2
		return p.langNode(p.sym(opTok.Text), left, right)
	}
}

// parseExpr is the binary-operator precedence-climbing entry point.
func (p *Parser) parseExpr() (*heap.Cell, error) {
	return p.parseBinExpr(0)
}

func (p *Parser) parseBinExpr(minLevel int) (*heap.Cell, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		info, ok := binOps[p.tok.Kind]
		if !ok || info.level < minLevel {
			return left, nil
		}
		opTok, err := p.consume()
		if err != nil {
			return nil, err
		}
		if err := p.skipOptionalNewline(); err != nil {
			return nil, err
		}
		nextMin := info.level + 1
		if info.right {
			nextMin = info.level
		}
		right, err := p.parseBinExpr(nextMin)
		if err != nil {
			return nil, err
		}
		left, err = p.buildBinary(opTok, left, right)
		if err != nil {
			return nil, err
		}
	}
}

func (p *Parser) buildBinary(opTok lexer.Token, left, right *heap.Cell) (*heap.Cell, error) {
	if opTok.Kind == lexer.PipeOp || opTok.Kind == lexer.PipeBind {
		return p.desugarPipe(left, right, opTok)
	}
	return p.langNode(p.sym(opTok.Text), left, right)
}

func (p *Parser) parseUnary() (*heap.Cell, error) {
	switch p.tok.Kind {
	case lexer.Minus, lexer.Plus, lexer.Bang, lexer.Tilde, lexer.Question:
		opTok, err := p.consume()
		if err != nil {
			return nil, err
		}
		if err := p.skipOptionalNewline(); err != nil {
			return nil, err
		}
		operand, err := p.parseBinExpr(unaryLevel)
		if err != nil {
			return nil, err
		}
		return p.langNode(p.sym(opTok.Text), operand)
	default:
		return p.parsePostfix()
	}
}

// parsePostfix parses a primary, then chains any of `$`, `@`, `[`,
// `[[`, `(`, `::`, `:::` immediately following it, left to right.
func (p *Parser) parsePostfix() (*heap.Cell, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		var next *heap.Cell
		var err error
		switch p.tok.Kind {
		case lexer.Dollar:
			next, err = p.parseSlot(expr, "$")
		case lexer.At:
			next, err = p.parseSlot(expr, "@")
		case lexer.LBracket:
			next, err = p.parseIndex(expr, false)
		case lexer.LBracket2:
			next, err = p.parseIndex(expr, true)
		case lexer.LParen:
			next, err = p.parseCall(expr)
		case lexer.DColon, lexer.TColon:
			next, err = p.parseNamespace(expr)
		default:
			return expr, nil
		}
		if err != nil {
			return nil, err
		}
		expr = next
	}
}

// parseSlot parses the `$name`/`@name` suffix; the slot name is
// retagged Slot rather than Symbol in the parse-data table (§4.H.2).
func (p *Parser) parseSlot(lhs *heap.Cell, opText string) (*heap.Cell, error) {
	if _, err := p.consume(); err != nil { // '$' or '@'
		return nil, err
	}
	name, err := p.parseSlotName()
	if err != nil {
		return nil, err
	}
	return p.langNode(p.sym(opText), lhs, name)
}

func (p *Parser) parseSlotName() (*heap.Cell, error) {
	switch p.tok.Kind {
	case lexer.Symbol:
		name := p.tok.Str
		if _, err := p.consumeRetag(lexer.Slot); err != nil {
			return nil, err
		}
		return p.sym(name), nil
	case lexer.StrConst:
		name := p.tok.Str
		if _, err := p.consumeRetag(lexer.Slot); err != nil {
			return nil, err
		}
		return p.sym(name), nil
	case lexer.LParen:
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		save := p.pushEatNL(true)
		expr, err := p.parseExprOrAssignOrHelp()
		p.popEatNL(save)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen, ")"); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, p.unexpected("a name after $/@")
	}
}

// parseNamespace parses `pkg::name` / `pkg:::name`; the RHS is
// retagged SymbolPackage.
func (p *Parser) parseNamespace(lhs *heap.Cell) (*heap.Cell, error) {
	opTok, err := p.consume()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind != lexer.Symbol && p.tok.Kind != lexer.StrConst {
		return nil, p.unexpected("a name after " + opTok.Text)
	}
	name := p.tok.Str
	if _, err := p.consumeRetag(lexer.SymbolPackage); err != nil {
		return nil, err
	}
	return p.langNode(p.sym(opTok.Text), lhs, p.sym(name))
}

// parsePrimary parses a literal, identifier, parenthesized/blocked
// expression, or one of the control-structure/function-definition
// forms (stmt.go).
func (p *Parser) parsePrimary() (*heap.Cell, error) {
	switch p.tok.Kind {
	case lexer.NumConst:
		tok, err := p.consume()
		if err != nil {
			return nil, err
		}
		return p.numberLit(tok)
	case lexer.StrConst:
		tok, err := p.consume()
		if err != nil {
			return nil, err
		}
		return p.stringLit(tok.Str)
	case lexer.NullConst:
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		return heap.Nil, nil
	case lexer.Placeholder:
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		return heap.PlaceholderSym, nil
	case lexer.Symbol:
		nxt, err := p.peekSignificant()
		if err != nil {
			return nil, err
		}
		var tok lexer.Token
		if nxt.Kind == lexer.LParen {
			tok, err = p.consumeRetag(lexer.SymbolFunctionCall)
		} else {
			tok, err = p.consume()
		}
		if err != nil {
			return nil, err
		}
		return p.symbolOrConstant(tok.Str)
	case lexer.LParen:
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		save := p.pushEatNL(true)
		expr, err := p.parseExprOrAssignOrHelp()
		p.popEatNL(save)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen, ")"); err != nil {
			return nil, err
		}
		return p.langNode(p.sym("("), expr)
	case lexer.LBrace:
		return p.parseBlock()
	case lexer.IfKw:
		return p.parseIf()
	case lexer.ForKw:
		return p.parseFor()
	case lexer.WhileKw:
		return p.parseWhile()
	case lexer.RepeatKw:
		return p.parseRepeat()
	case lexer.FunctionKw, lexer.Backslash:
		return p.parseFunction()
	case lexer.NextKw:
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		return p.langNode(p.sym("next"))
	case lexer.BreakKw:
		if _, err := p.consume(); err != nil {
			return nil, err
		}
		return p.langNode(p.sym("break"))
	default:
		return nil, p.unexpected("an expression")
	}
}
