package lexer

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"birch_go/pkg/parseerr"
)

// namedEncodings maps the small set of single-byte encodings a source
// file's declared encoding might name to their golang.org/x/text
// decoder. An empty/"UTF-8" name (the overwhelming common case) skips
// this table entirely and the raw bytes are treated as UTF-8 directly.
var namedEncodings = map[string]encoding.Encoding{
	"latin1":     charmap.ISO8859_1,
	"iso-8859-1": charmap.ISO8859_1,
	"iso8859-1":  charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
}

// decodeSource converts raw into a UTF-8 string according to encName.
// Invalid bytes under the declared encoding are reported as
// InvalidMBCS rather than silently replaced, since a lexer that
// swallows an encoding error would mis-locate every token after it.
func decodeSource(raw []byte, encName, filename string) (string, error) {
	if encName == "" {
		return string(raw), nil
	}
	enc, ok := namedEncodings[encName]
	if !ok {
		return string(raw), nil
	}
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", parseerr.NewLexError(parseerr.InvalidMBCS, filename, 1, 0,
			"invalid multibyte sequence while decoding source as "+encName)
	}
	return string(out), nil
}
