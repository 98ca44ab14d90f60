package lexer

import "fmt"

// Kind is a lexical token's terminal identity. The first block matches
// the parser's terminal alphabet one-for-one; the last block
// (SymbolFormals..EqSub) is never produced directly by Scan — the
// parser retags a plain Symbol/Assign token into one of these when it
// records the token in the parse-data table (§4.H.5), so they exist
// here only so both packages share one enum.
type Kind int

const (
	EOF Kind = iota
	Newline
	Semicolon
	Comma
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	LBracket2
	RBracket
	RBracket2

	StrConst
	NumConst
	NullConst
	Placeholder
	Symbol

	FunctionKw
	ForKw
	InKw
	IfKw
	ElseKw
	WhileKw
	NextKw
	BreakKw
	RepeatKw

	Plus
	Minus
	Star
	Slash
	Caret
	Lt
	Le
	Gt
	Ge
	EqEq
	Ne
	Amp
	AmpAmp
	Pipe
	PipePipe
	Bang
	LArrow
	LArrow2
	Assign
	RArrow
	RArrow2
	ColonEq
	Dollar
	At
	Colon
	Tilde
	Question
	PipeOp   // |>
	PipeBind // =>
	DColon
	TColon
	SpecialOp // %...%
	Backslash

	Comment
	LineDirective

	// retag-only terminals (see doc comment above)
	SymbolFormals
	SymbolSub
	SymbolFunctionCall
	SymbolPackage
	Slot
	EqFormals
	EqSub

	// non-terminal markers: the parser's EndNonTerminal stamps the
	// parse-data table's "token" column with one of these for a
	// reduction that isn't already identified by a distinguishing
	// terminal (an if-node can just reuse IfKw, but a generic binary
	// expr or top-level statement has nothing else to name it).
	NTProg
	NTExpr
	NTExprOrAssignOrHelp
	NTFormlist
	NTSublist
	NTExprList

	ErrorTok
)

var kindNames = map[Kind]string{
	EOF: "EOF", Newline: "NEWLINE", Semicolon: ";", Comma: ",",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}",
	LBracket: "[", LBracket2: "[[", RBracket: "]", RBracket2: "]]",
	StrConst: "STR_CONST", NumConst: "NUM_CONST", NullConst: "NULL_CONST",
	Placeholder: "PLACEHOLDER", Symbol: "SYMBOL",
	FunctionKw: "FUNCTION", ForKw: "FOR", InKw: "IN", IfKw: "IF", ElseKw: "ELSE",
	WhileKw: "WHILE", NextKw: "NEXT", BreakKw: "BREAK", RepeatKw: "REPEAT",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Caret: "^",
	Lt: "<", Le: "<=", Gt: ">", Ge: ">=", EqEq: "==", Ne: "!=",
	Amp: "&", AmpAmp: "&&", Pipe: "|", PipePipe: "||", Bang: "!",
	LArrow: "<-", LArrow2: "<<-", Assign: "=", RArrow: "->", RArrow2: "->>",
	ColonEq: ":=", Dollar: "$", At: "@", Colon: ":", Tilde: "~", Question: "?",
	PipeOp: "|>", PipeBind: "=>", DColon: "::", TColon: ":::",
	SpecialOp: "SPECIAL", Backslash: "\\",
	Comment: "COMMENT", LineDirective: "LINE_DIRECTIVE",
	SymbolFormals: "SYMBOL_FORMALS", SymbolSub: "SYMBOL_SUB",
	SymbolFunctionCall: "SYMBOL_FUNCTION_CALL", SymbolPackage: "SYMBOL_PACKAGE",
	Slot: "SLOT", EqFormals: "EQ_FORMALS", EqSub: "EQ_SUB",
	NTProg: "prog", NTExpr: "expr", NTExprOrAssignOrHelp: "expr_or_assign_or_help",
	NTFormlist: "formlist", NTSublist: "sublist", NTExprList: "exprlist",
	ErrorTok: "ERROR",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// keywords maps reserved identifiers to their keyword token kind; any
// other identifier scans as a plain Symbol.
var keywords = map[string]Kind{
	"function": FunctionKw,
	"for":      ForKw,
	"in":       InKw,
	"if":       IfKw,
	"else":     ElseKw,
	"while":    WhileKw,
	"next":     NextKw,
	"break":    BreakKw,
	"repeat":   RepeatKw,
	"NULL":     NullConst,
}

// Position is a single point in the source: the line/column/byte
// offset and the monotonic parse-token counter in effect at that
// point, mirroring ParseState's (line_no, col_no, byte_no, parse_no).
type Position struct {
	Line    int
	Col     int
	Byte    int
	ParseNo int
}

// Token is one lexical unit, carrying both its raw source text and
// (for literals) its decoded semantic value.
type Token struct {
	Kind Kind
	Text string // verbatim source text, for round-trip/srcref purposes

	Str         string // decoded value: StrConst, Symbol print-name, backtick identifier
	Num         float64
	IsInt       bool
	IsImaginary bool

	Start Position
	End   Position
}

// SrcRef renders the 8-integer srcref vector described in §4.H.5:
// first_line, first_byte, last_line, last_byte, first_column,
// last_column, first_parsed, last_parsed.
func (t Token) SrcRef() [8]int {
	return [8]int{
		t.Start.Line, t.Start.Byte, t.End.Line, t.End.Byte,
		t.Start.Col, t.End.Col, t.Start.ParseNo, t.End.ParseNo,
	}
}
