// Package parser implements the significant grammar over the lexer's
// token stream: a recursive-descent, precedence-climbing parser
// (rather than a literal generated LALR(1) table — the grammar is
// small and right-recursive enough that a hand-written descent reads
// far closer to how the rest of this module is built, and accepts the
// same language) that builds heap.Cell expression graphs directly,
// rooting every value it allocates in the parse state's precious
// multi-set until the caller takes ownership of the finished result.
package parser

import (
	"birch_go/pkg/gc"
	"birch_go/pkg/heap"
	"birch_go/pkg/lexer"
	"birch_go/pkg/parseerr"
	"birch_go/pkg/parsestate"
	"birch_go/pkg/rtconfig"
)

// Status mirrors the five-way result of a single parse_one/parse_many
// step (§6).
type Status int

const (
	StatusOk Status = iota
	StatusNull
	StatusIncomplete
	StatusEof
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "OK"
	case StatusNull:
		return "NULL"
	case StatusIncomplete:
		return "INCOMPLETE"
	case StatusEof:
		return "EOF"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Options configures a single parse.
type Options struct {
	Encoding      string
	KeepSrcRefs   bool
	KeepParseData bool
}

// Parser holds one parse's live state: the lexer it reads from, the
// parse-data/precious-set bookkeeping it writes to, and the small
// amount of lookahead (the current token, a queue of peeked tokens,
// and a newline-significance flag) the grammar needs.
type Parser struct {
	h  *gc.Heap
	lx *lexer.Lexer
	st *parsestate.ParseState

	cfg rtconfig.Config

	tok   lexer.Token
	queue []lexer.Token
	eatNL bool

	warnings *parseerr.WarningBuffer
}

// New creates a parser over src, already positioned at the first
// token.
func New(h *gc.Heap, src []byte, filename string, opts Options) (*Parser, error) {
	lx, err := lexer.New(src, filename, opts.Encoding)
	if err != nil {
		return nil, err
	}
	p := &Parser{
		h:        h,
		lx:       lx,
		st:       parsestate.New(filename, opts.KeepSrcRefs, opts.KeepParseData),
		cfg:      rtconfig.Get(),
		warnings: parseerr.NewWarningBuffer(),
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

// State exposes the parse-data/precious-set bookkeeping, mostly for
// tests and for a REPL that wants the srcref matrix.
func (p *Parser) State() *parsestate.ParseState { return p.st }

// Warnings exposes the deferred-warning buffer accumulated so far.
func (p *Parser) Warnings() *parseerr.WarningBuffer { return p.warnings }

// Finish runs the comment-parenting pass (§4.H.6) over whatever
// comments the lexer captured; call this once after the last Next
// call a caller intends to make.
func (p *Parser) Finish() {
	p.st.AttachComments(p.lx.Comments())
	p.st.ReattachOrphans()
}

// nextRaw drains the lookahead queue before pulling a fresh token from
// the lexer, stamping each one's parse_no as it first leaves the
// lexer (peekAhead can pull a token into the queue well before
// advance eventually delivers it, but parse_no must still reflect
// source order, not consumption order, so it's stamped here).
func (p *Parser) nextRaw() (lexer.Token, error) {
	if len(p.queue) > 0 {
		t := p.queue[0]
		p.queue = p.queue[1:]
		return t, nil
	}
	return p.scanStamped()
}

func (p *Parser) scanStamped() (lexer.Token, error) {
	t, err := p.lx.Scan()
	if err != nil {
		return lexer.Token{}, err
	}
	t.Start.ParseNo = p.lx.BumpParseNo()
	t.End.ParseNo = t.Start.ParseNo
	return t, nil
}

// peekAhead returns the token n positions after the current one
// (n=0 is the token advance would produce next), filling the
// lookahead queue as needed without consuming anything.
func (p *Parser) peekAhead(n int) (lexer.Token, error) {
	for len(p.queue) <= n {
		t, err := p.scanStamped()
		if err != nil {
			return lexer.Token{}, err
		}
		p.queue = append(p.queue, t)
	}
	return p.queue[n], nil
}

// peekSignificant is peekAhead(0), skipping over newlines the same
// way advance does while eatNL is set.
func (p *Parser) peekSignificant() (lexer.Token, error) {
	i := 0
	for {
		t, err := p.peekAhead(i)
		if err != nil {
			return lexer.Token{}, err
		}
		if t.Kind == lexer.Newline && p.eatNL {
			i++
			continue
		}
		return t, nil
	}
}

// elseFollows peeks past any run of newlines to see whether `else`
// comes next, without consuming anything — §4.H.4's if/else special
// case, resolved here by lookahead instead of a context-stack entry.
func (p *Parser) elseFollows() (bool, error) {
	i := 0
	for {
		t, err := p.peekAhead(i)
		if err != nil {
			return false, err
		}
		if t.Kind == lexer.Newline {
			i++
			continue
		}
		return t.Kind == lexer.ElseKw, nil
	}
}

// advance fetches the next significant token into p.tok, discarding
// newlines while eatNL is set — the token-wrapping layer §4.H.4
// describes as a context stack, simplified here to a single flag
// threaded through the recursive descent by pushEatNL/popEatNL at
// every bracketed or operator-following context.
func (p *Parser) advance() error {
	for {
		tok, err := p.nextRaw()
		if err != nil {
			return err
		}
		if tok.Kind == lexer.Newline && p.eatNL {
			continue
		}
		p.tok = tok
		return nil
	}
}

func (p *Parser) pushEatNL(v bool) bool {
	save := p.eatNL
	p.eatNL = v
	return save
}

func (p *Parser) popEatNL(save bool) { p.eatNL = save }

// skipOptionalNewline absorbs any newlines right after a binary
// operator or opening delimiter has just been consumed — those never
// terminate an expression that's visibly incomplete.
func (p *Parser) skipOptionalNewline() error {
	for p.tok.Kind == lexer.Newline {
		if err := p.advance(); err != nil {
			return err
		}
	}
	return nil
}

// consume records the current token as a terminal in the parse-data
// table, advances past it, and returns it.
func (p *Parser) consume() (lexer.Token, error) {
	t := p.tok
	p.st.RecordTerminal(t)
	if err := p.advance(); err != nil {
		return lexer.Token{}, err
	}
	return t, nil
}

// consumeRetag is consume, but records the terminal under retagKind
// instead of its real lexical kind — the §4.H.5 retagging a plain
// Symbol/Assign token undergoes once the parser knows the syntactic
// role it plays (a formal's name, a slot after `$`, and so on).
func (p *Parser) consumeRetag(retagKind lexer.Kind) (lexer.Token, error) {
	t := p.tok
	retag := t
	retag.Kind = retagKind
	p.st.RecordTerminal(retag)
	if err := p.advance(); err != nil {
		return lexer.Token{}, err
	}
	return t, nil
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, error) {
	if p.tok.Kind != k {
		return lexer.Token{}, p.unexpected(what)
	}
	return p.consume()
}

// unexpected builds a parseError Condition describing the current
// token, picking the closest-fitting subclass from §4.J's taxonomy.
func (p *Parser) unexpected(what string) error {
	t := p.tok
	sub := parseerr.UnexpectedInput
	switch t.Kind {
	case lexer.EOF:
		sub = parseerr.UnexpectedEndOfInput
	case lexer.StrConst:
		sub = parseerr.UnexpectedString
	case lexer.NumConst:
		sub = parseerr.UnexpectedNumber
	case lexer.Symbol:
		sub = parseerr.UnexpectedSymbol
	case lexer.Assign:
		sub = parseerr.UnexpectedAssignment
	case lexer.Newline:
		sub = parseerr.UnexpectedEndOfLine
	}
	msg := "unexpected " + t.Kind.String()
	if t.Text != "" {
		msg += " \"" + t.Text + "\""
	}
	if what != "" {
		msg += ", expected " + what
	}
	return parseerr.NewParseError(sub, p.st.File, t.Start.Line, t.Start.Col, msg)
}

// runtimeErr wraps an allocation failure from the heap (out of
// memory, a size limit) as the Runtime propagation regime of §7: a
// plain `error` condition, not a parseError/lexError.
func (p *Parser) runtimeErr(err error) error {
	return parseerr.NewRuntimeError(p.st.File, p.tok.Start.Line, p.tok.Start.Col, err.Error())
}

// errStatus classifies a parse failure as INCOMPLETE (the input ended
// mid-expression, so a REPL should prompt for more) or plain ERROR.
func errStatus(err error) Status {
	if c, ok := err.(*parseerr.Condition); ok && c.Subclass == string(parseerr.UnexpectedEndOfInput) {
		return StatusIncomplete
	}
	return StatusError
}

// Next reads one top-level statement (§6's `parse_one` granularity):
// an expr_or_assign_or_help terminated by a newline, `;`, or EOF.
func (p *Parser) Next() (*heap.Cell, Status, error) {
	for p.tok.Kind == lexer.Newline {
		if err := p.advance(); err != nil {
			return nil, StatusError, err
		}
	}
	if p.tok.Kind == lexer.EOF {
		return heap.Nil, StatusEof, nil
	}
	if p.tok.Kind == lexer.Semicolon {
		if err := p.advance(); err != nil {
			return nil, StatusError, err
		}
		return heap.Nil, StatusNull, nil
	}

	mark := p.st.Begin()
	first := p.tok
	expr, err := p.parseExprOrAssignOrHelp()
	if err != nil {
		return nil, errStatus(err), err
	}
	last := p.tok
	switch p.tok.Kind {
	case lexer.Newline, lexer.Semicolon:
		if err := p.advance(); err != nil {
			return nil, StatusError, err
		}
	case lexer.EOF:
	default:
		return nil, StatusError, p.unexpected("end of expression")
	}
	p.st.EndNonTerminal(mark, first, last, lexer.NTProg)
	return expr, StatusOk, nil
}

// ParseOne parses exactly one top-level statement from src, the §6
// `parse_one` entry point.
func ParseOne(h *gc.Heap, src []byte, filename string, opts Options) (*heap.Cell, Status, error) {
	p, err := New(h, src, filename, opts)
	if err != nil {
		return nil, StatusError, err
	}
	expr, status, err := p.Next()
	p.Finish()
	return expr, status, err
}

// ParseMany parses up to n statements (n<=0 meaning "as many as the
// input has") from src, returning an Expression vector — the §6
// `parse_many` entry point.
func ParseMany(h *gc.Heap, src []byte, n int, filename string) (*heap.Cell, error) {
	p, err := New(h, src, filename, Options{KeepSrcRefs: true})
	if err != nil {
		return nil, err
	}
	defer p.Finish()

	var exprs []*heap.Cell
collect:
	for n <= 0 || len(exprs) < n {
		expr, status, err := p.Next()
		if err != nil {
			return nil, err
		}
		switch status {
		case StatusEof:
			break collect
		case StatusNull:
			continue
		default:
			exprs = append(exprs, expr)
			p.st.Precious.Preserve(expr)
		}
	}

	vec, err := h.AllocVector(heap.KindExpression, len(exprs))
	if err != nil {
		return nil, p.runtimeErr(err)
	}
	p.st.Precious.Preserve(vec)
	vec.Strs = exprs
	return vec, nil
}
