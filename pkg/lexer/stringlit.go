package lexer

import (
	"strconv"
	"strings"

	"birch_go/pkg/parseerr"
)

// scanString scans a classic quoted string (quote is `"` or `'`) with
// escape processing. Raw literals (`r"..."`/`R"..."`) never reach it:
// scanOne hands those to scanRawString.
func (l *Lexer) scanString(start Position, quote rune) (Token, error) {
	var sb strings.Builder
	hasOctalOrHex := false
	hasUnicode := false

	for {
		ch, ok := l.getc()
		if !ok {
			return Token{}, l.errAt("unterminatedString", start, "unterminated string literal")
		}
		if ch == quote {
			break
		}
		if ch == '\n' {
			// Implicit line continuation: the newline is kept verbatim.
			sb.WriteRune(ch)
			continue
		}
		if ch != '\\' {
			if isBidiControl(ch) {
				return Token{}, l.errAt(parseerr.BidiNotAllowed, start, "bidirectional control character in string literal")
			}
			sb.WriteRune(ch)
			continue
		}

		esc, ok := l.getc()
		if !ok {
			return Token{}, l.errAt("unterminatedString", start, "unterminated escape sequence")
		}
		switch esc {
		case 'a':
			sb.WriteByte('\a')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'v':
			sb.WriteByte('\v')
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		case '\'':
			sb.WriteByte('\'')
		case '`':
			sb.WriteByte('`')
		case ' ':
			sb.WriteByte(' ')
		case 'x':
			if hasUnicode {
				return Token{}, l.errAt(parseerr.MixedEscapes, start, "hex escape mixed with a Unicode escape in the same literal")
			}
			hasOctalOrHex = true
			r, err := l.scanHexEscape(start, 2)
			if err != nil {
				return Token{}, err
			}
			sb.WriteRune(r)
		case 'u':
			if hasOctalOrHex {
				return Token{}, l.errAt(parseerr.MixedEscapes, start, "Unicode escape mixed with an octal/hex escape in the same literal")
			}
			hasUnicode = true
			r, err := l.scanUnicodeEscape(start, 4, parseerr.BadUnicodeHex)
			if err != nil {
				return Token{}, err
			}
			sb.WriteRune(r)
		case 'U':
			if hasOctalOrHex {
				return Token{}, l.errAt(parseerr.MixedEscapes, start, "Unicode escape mixed with an octal/hex escape in the same literal")
			}
			hasUnicode = true
			r, err := l.scanUnicodeEscape(start, 8, parseerr.BadUnicodeHex)
			if err != nil {
				return Token{}, err
			}
			sb.WriteRune(r)
		default:
			if esc >= '0' && esc <= '7' {
				if hasUnicode {
					return Token{}, l.errAt(parseerr.MixedEscapes, start, "octal escape mixed with a Unicode escape in the same literal")
				}
				hasOctalOrHex = true
				l.ungetc()
				r, err := l.scanOctalEscape(start)
				if err != nil {
					return Token{}, err
				}
				sb.WriteRune(r)
				continue
			}
			return Token{}, l.errAt(parseerr.UnrecognizedEscape, start, "unrecognized escape sequence \\"+string(esc))
		}
	}

	tok := l.finish(StrConst, start, sb.String())
	tok.Str = sb.String()
	return tok, nil
}

// isBidiControl reports whether ch is one of the Unicode bidi format
// controls (U+202A-U+202E, U+2066-U+2069) that can make source text
// render misleadingly; §4.G rejects them inside string literals.
func isBidiControl(ch rune) bool {
	return (ch >= 0x202A && ch <= 0x202E) || (ch >= 0x2066 && ch <= 0x2069)
}

// scanOctalEscape reads 1-3 octal digits already known to start at the
// current position (the leading digit has been pushed back), rejecting
// a nonzero result over 0xff.
func (l *Lexer) scanOctalEscape(start Position) (rune, error) {
	var digits string
	for i := 0; i < 3; i++ {
		ch, ok := l.peekc()
		if !ok || ch < '0' || ch > '7' {
			break
		}
		l.getc()
		digits += string(ch)
	}
	n, err := strconv.ParseInt(digits, 8, 32)
	if err != nil || n == 0 || n > 0xff {
		return 0, l.errAt(parseerr.InvalidOctal, start, "invalid octal escape \\"+digits)
	}
	return rune(n), nil
}

// scanHexEscape reads 1-maxDigits hex digits, rejecting a zero result
// (a NUL byte is never a valid escape).
func (l *Lexer) scanHexEscape(start Position, maxDigits int) (rune, error) {
	var digits string
	for i := 0; i < maxDigits; i++ {
		ch, ok := l.peekc()
		if !ok || !isHexDigit(ch) {
			break
		}
		l.getc()
		digits += string(ch)
	}
	n, err := strconv.ParseInt(digits, 16, 32)
	if err != nil || n == 0 {
		return 0, l.errAt(parseerr.BadHex, start, "invalid hex escape \\x"+digits)
	}
	return rune(n), nil
}

// scanUnicodeEscape reads either exactly-up-to-maxDigits bare hex
// digits or a `{...}` braced form (1-maxDigits digits), rejecting a
// code point beyond 0x10FFFF or one that exceeds maxDigits' worth of
// hex characters inside braces.
func (l *Lexer) scanUnicodeEscape(start Position, maxDigits int, badSub parseerr.LexSubclass) (rune, error) {
	braced := false
	if ch, ok := l.peekc(); ok && ch == '{' {
		l.getc()
		braced = true
	}

	var digits string
	limit := maxDigits
	if braced {
		limit = maxDigits + 1 // a braced literal may still only use maxDigits, checked below
	}
	for i := 0; i < limit; i++ {
		ch, ok := l.peekc()
		if !ok || !isHexDigit(ch) {
			break
		}
		l.getc()
		digits += string(ch)
	}
	if braced {
		ch, ok := l.getc()
		if !ok || ch != '}' {
			return 0, l.errAt(badSub, start, "unterminated braced Unicode escape")
		}
	}
	if len(digits) == 0 || len(digits) > maxDigits {
		return 0, l.errAt(parseerr.UnicodeTooLong, start, "Unicode escape has too many hex digits")
	}

	n, err := strconv.ParseInt(digits, 16, 64)
	if err != nil || n == 0 || n > 0x10FFFF {
		return 0, l.errAt(parseerr.InvalidUnicode, start, "invalid Unicode code point in escape")
	}
	return rune(n), nil
}

// rawDelims pairs each opening delimiter a raw literal may use with
// its required closing character.
var rawDelims = map[rune]rune{
	'(': ')', '{': '}', '[': ']', '|': '|',
}

// scanRawString scans `r"(...)"`/`R"[...]"`-style raw literals, called
// once the lexer has already recognized the leading `r`/`R` and the
// quote character that follows it. No escape processing occurs inside
// a raw literal; the terminator must reproduce the exact dash count
// and delimiter/quote pair from the opener.
func (l *Lexer) scanRawString(start Position, quote rune) (Token, error) {
	dashes := 0
	for {
		ch, ok := l.peekc()
		if !ok || ch != '-' {
			break
		}
		l.getc()
		dashes++
	}
	open, ok := l.getc()
	if !ok {
		return Token{}, l.errAt(parseerr.InvalidRawLiteral, start, "unterminated raw literal")
	}
	closeCh, known := rawDelims[open]
	if !known {
		return Token{}, l.errAt(parseerr.InvalidRawLiteral, start, "unrecognized raw literal delimiter "+string(open))
	}

	terminator := string(closeCh) + strings.Repeat("-", dashes) + string(quote)
	var sb strings.Builder
	for {
		ch, ok := l.getc()
		if !ok {
			return Token{}, l.errAt(parseerr.InvalidRawLiteral, start, "unterminated raw literal")
		}
		sb.WriteRune(ch)
		if strings.HasSuffix(sb.String(), terminator) {
			result := sb.String()
			result = result[:len(result)-len(terminator)]
			tok := l.finish(StrConst, start, sb.String())
			tok.Str = result
			return tok, nil
		}
	}
}

// scanBacktick scans a `` `...` `` backtick identifier; Unicode escapes
// are forbidden inside one (only the classic single-character escapes
// and a literal backtick/backslash are allowed).
func (l *Lexer) scanBacktick(start Position) (Token, error) {
	var sb strings.Builder
	for {
		ch, ok := l.getc()
		if !ok {
			return Token{}, l.errAt("unterminatedBacktick", start, "unterminated backtick identifier")
		}
		if ch == '`' {
			break
		}
		if ch == '\\' {
			esc, ok := l.getc()
			if !ok {
				return Token{}, l.errAt("unterminatedBacktick", start, "unterminated escape in backtick identifier")
			}
			switch esc {
			case '`', '\\':
				sb.WriteRune(esc)
			case 'u', 'U':
				return Token{}, l.errAt(parseerr.UnicodeInBackticks, start, "Unicode escapes are not allowed inside backtick identifiers")
			default:
				sb.WriteByte('\\')
				sb.WriteRune(esc)
			}
			continue
		}
		sb.WriteRune(ch)
	}
	tok := l.finish(Symbol, start, "`"+sb.String()+"`")
	tok.Str = sb.String()
	return tok, nil
}
