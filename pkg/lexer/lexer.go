// Package lexer turns a decoded source buffer into the token stream
// the parser's grammar (§4.H) consumes: a getc/ungetc character
// stream with a pushback ring wide enough to restore line/column/byte/
// parse-token position, plus the full token table (literals,
// keywords, operators, structural punctuation) and the two
// diagnostic-only token kinds (Comment, LineDirective) that never
// reach the parser's grammar but are recorded in the parse-data table.
package lexer

import (
	"strings"
	"unicode/utf8"

	"birch_go/pkg/parseerr"
)

// PushbackBufSize bounds how many characters ungetc can back out of in
// a row, since the live position history backing ungetc is a
// fixed-size ring, not an unbounded log. Once the ring is exhausted
// ungetc returns false; no lex error is raised for it.
const PushbackBufSize = 16

type charPos struct {
	ch  rune
	pos Position
}

// Lexer is the character stream plus scanner state for one source
// file (or REPL line). It holds no reference to the parser's newline-
// sensitivity context stack — §4.H.4 keeps that in the token-wrapping
// layer, so the lexer itself only ever emits a raw Newline token.
type Lexer struct {
	src      []rune
	idx      int
	filename string

	history []charPos

	line, col, byteOff, parseNo int

	// atLineStart tracks whether the lexer is still at column 0 of the
	// current line, the only place a `#line` directive is recognized.
	atLineStart bool

	comments       []Token
	lineDirectives []Token
}

// New decodes raw as encName (empty/"UTF-8" is a no-op) and returns a
// Lexer ready to scan it under filename (used only for diagnostics and
// #line bookkeeping).
func New(raw []byte, filename, encName string) (*Lexer, error) {
	text, err := decodeSource(raw, encName, filename)
	if err != nil {
		return nil, err
	}
	if strings.IndexByte(text, 0) >= 0 {
		return nil, parseerr.NewLexError(parseerr.NulNotAllowed, filename, 1, 0, "embedded NUL byte in source")
	}
	return &Lexer{
		src:         []rune(text),
		filename:    filename,
		line:        1,
		atLineStart: true,
	}, nil
}

// Filename reports (and SetFilename updates) the file name attributed
// to subsequently-scanned tokens; a `#line "name"` directive calls
// SetFilename.
func (l *Lexer) Filename() string        { return l.filename }
func (l *Lexer) SetFilename(name string) { l.filename = name }

// Pos returns the current live position (post the last getc/ungetc).
func (l *Lexer) Pos() Position {
	return Position{Line: l.line, Col: l.col, Byte: l.byteOff, ParseNo: l.parseNo}
}

// BumpParseNo advances the monotonic parse-token counter; the parser
// calls this once per terminal it accepts, so ids in the parse-data
// table stay assigned in source order.
func (l *Lexer) BumpParseNo() int {
	l.parseNo++
	return l.parseNo
}

// Comments returns every Comment token captured since the lexer was
// created, for the comment-parenting pass (§4.H.6).
func (l *Lexer) Comments() []Token { return l.comments }

// LineDirectives returns every recognized `#line` directive.
func (l *Lexer) LineDirectives() []Token { return l.lineDirectives }

func (l *Lexer) getc() (rune, bool) {
	if l.idx >= len(l.src) {
		return 0, false
	}
	ch := l.src[l.idx]
	l.history = append(l.history, charPos{ch: ch, pos: l.Pos()})
	if len(l.history) > PushbackBufSize {
		l.history = l.history[1:]
	}
	l.idx++
	l.byteOff += utf8.RuneLen(ch)
	if ch == '\n' {
		l.line++
		l.col = 0
		l.atLineStart = true
	} else {
		l.col++
		if ch != ' ' && ch != '\t' {
			l.atLineStart = false
		}
	}
	return ch, true
}

// ungetc restores the stream to just before the last getc, including
// its position; it fails if the pushback ring has nothing left to
// restore (either nothing was read, or more than PushbackBufSize
// consecutive ungetc calls were attempted).
func (l *Lexer) ungetc() bool {
	if len(l.history) == 0 {
		return false
	}
	cp := l.history[len(l.history)-1]
	l.history = l.history[:len(l.history)-1]
	l.idx--
	l.line, l.col, l.byteOff, l.parseNo = cp.pos.Line, cp.pos.Col, cp.pos.Byte, cp.pos.ParseNo
	return true
}

func (l *Lexer) peekc() (rune, bool) {
	ch, ok := l.getc()
	if ok {
		l.ungetc()
	}
	return ch, ok
}

func (l *Lexer) errAt(sub parseerr.LexSubclass, start Position, msg string) error {
	return parseerr.NewLexError(sub, l.filename, start.Line, start.Col, msg)
}

// Scan returns the next significant token (never Comment or
// LineDirective — those are captured into Comments()/LineDirectives()
// and skipped transparently, matching §4.G's "diagnostic-only
// internal tokens").
func (l *Lexer) Scan() (Token, error) {
	for {
		tok, err := l.scanOne()
		if err != nil {
			return Token{}, err
		}
		if tok.Kind == Comment {
			l.comments = append(l.comments, tok)
			continue
		}
		if tok.Kind == LineDirective {
			l.lineDirectives = append(l.lineDirectives, tok)
			continue
		}
		return tok, nil
	}
}

func (l *Lexer) scanOne() (Token, error) {
	l.skipBlanks()
	start := l.Pos()
	ch, ok := l.getc()
	if !ok {
		return Token{Kind: EOF, Start: start, End: start}, nil
	}

	switch {
	case ch == '\n':
		return l.finish(Newline, start, "\n"), nil
	case ch == '#':
		return l.scanComment(start)
	case ch == '"' || ch == '\'':
		return l.scanString(start, ch)
	case ch == '`':
		return l.scanBacktick(start)
	case ch == 'r' || ch == 'R':
		if nxt, ok := l.peekc(); ok && (nxt == '"' || nxt == '\'') {
			l.getc()
			return l.scanRawString(start, nxt)
		}
		return l.scanIdentOrNumber(start, ch)
	case ch == '_':
		if nxt, ok := l.peekc(); !ok || !isIdentCont(nxt) {
			return l.finish(Placeholder, start, "_"), nil
		}
		return l.scanIdentOrNumber(start, ch)
	case isDigit(ch):
		l.ungetc()
		return l.scanNumber(start)
	case ch == '.':
		nxt, ok := l.peekc()
		if ok && isDigit(nxt) {
			l.ungetc()
			return l.scanNumber(start)
		}
		l.ungetc()
		return l.scanIdentOrNumber(start, 0)
	case isIdentStart(ch):
		return l.scanIdentOrNumber(start, ch)
	default:
		l.ungetc()
		return l.scanOperator(start)
	}
}

// skipBlanks consumes spaces/tabs/CR (but not newlines, which are
// significant tokens).
func (l *Lexer) skipBlanks() {
	for {
		ch, ok := l.getc()
		if !ok {
			return
		}
		if ch == ' ' || ch == '\t' || ch == '\r' {
			continue
		}
		l.ungetc()
		return
	}
}

func (l *Lexer) finish(kind Kind, start Position, text string) Token {
	return Token{Kind: kind, Text: text, Start: start, End: l.Pos()}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch rune) bool {
	return ch == '.' || ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch > 127
}

func isIdentCont(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}

// scanComment consumes to end of line; at the start of a line (column
// 0) a `#line` prefix is a line directive instead of a plain comment.
func (l *Lexer) scanComment(start Position) (Token, error) {
	if start.Col == 0 && l.tryLineDirective() {
		return l.scanLineDirective(start)
	}
	var sb strings.Builder
	sb.WriteByte('#')
	for {
		ch, ok := l.getc()
		if !ok || ch == '\n' {
			if ok {
				l.ungetc()
			}
			break
		}
		sb.WriteRune(ch)
	}
	return l.finish(Comment, start, sb.String()), nil
}

// tryLineDirective peeks ahead (without consuming) to see whether the
// comment we just opened is `#line`.
func (l *Lexer) tryLineDirective() bool {
	const want = "line"
	save := l.snapshot()
	for _, r := range want {
		ch, ok := l.getc()
		if !ok || ch != r {
			l.restore(save)
			return false
		}
	}
	l.restore(save)
	return true
}

type snapshot struct {
	idx                         int
	line, col, byteOff, parseNo int
	historyLen                  int
}

func (l *Lexer) snapshot() snapshot {
	return snapshot{idx: l.idx, line: l.line, col: l.col, byteOff: l.byteOff, parseNo: l.parseNo, historyLen: len(l.history)}
}

func (l *Lexer) restore(s snapshot) {
	l.idx, l.line, l.col, l.byteOff, l.parseNo = s.idx, s.line, s.col, s.byteOff, s.parseNo
	if s.historyLen <= len(l.history) {
		l.history = l.history[:s.historyLen]
	}
}

// scanLineDirective parses `line N ["file"]` after the leading `#`,
// updating line_number (but never parse_no) and, if a filename is
// given, src_file.
func (l *Lexer) scanLineDirective(start Position) (Token, error) {
	var sb strings.Builder
	sb.WriteString("#")
	for _, r := range "line" {
		l.getc()
		sb.WriteRune(r)
	}
	l.skipBlanks()
	var num strings.Builder
	for {
		ch, ok := l.peekc()
		if !ok || !isDigit(ch) {
			break
		}
		l.getc()
		num.WriteRune(ch)
	}
	var newLine int
	for _, r := range num.String() {
		newLine = newLine*10 + int(r-'0')
	}
	l.skipBlanks()
	var file string
	if ch, ok := l.peekc(); ok && ch == '"' {
		l.getc()
		var fb strings.Builder
		for {
			ch, ok := l.getc()
			if !ok || ch == '"' {
				break
			}
			fb.WriteRune(ch)
		}
		file = fb.String()
	}
	for {
		ch, ok := l.getc()
		if !ok || ch == '\n' {
			if ok {
				l.ungetc()
			}
			break
		}
	}
	if newLine > 0 {
		l.line = newLine
	}
	if file != "" {
		l.filename = file
	}
	tok := l.finish(LineDirective, start, sb.String())
	tok.Num = float64(newLine)
	tok.Str = file
	return tok, nil
}

// scanIdentOrNumber scans a plain identifier (keyword or Symbol). If
// first is 0 it hasn't been consumed yet (the `.`-lookahead case);
// otherwise first is the already-consumed first rune.
func (l *Lexer) scanIdentOrNumber(start Position, first rune) (Token, error) {
	var sb strings.Builder
	if first != 0 {
		sb.WriteRune(first)
	} else {
		ch, _ := l.getc()
		sb.WriteRune(ch)
	}
	for {
		ch, ok := l.peekc()
		if !ok || !isIdentCont(ch) {
			break
		}
		l.getc()
		sb.WriteRune(ch)
	}
	name := sb.String()
	if kw, ok := keywords[name]; ok {
		tok := l.finish(kw, start, name)
		if kw == NullConst {
			tok.Str = name
		}
		return tok, nil
	}
	tok := l.finish(Symbol, start, name)
	tok.Str = name
	return tok, nil
}
