// Package heap defines the tagged-variant value model shared by every
// cell on the managed heap: a single Cell struct carrying the common
// header fields plus payload fields selected by Kind.
//
// This package is data-only. Allocation policy (size classes, pages,
// generations, the write barrier) lives in pkg/page, pkg/gc and
// pkg/barrier; heap.Cell is what those packages build, move between
// lists, and sweep.
package heap

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the 5-bit type tag every Cell carries.
type Kind uint8

const (
	KindNil Kind = iota
	KindSymbol
	KindCons
	KindLanguage // a Cons subtype: call nodes
	KindDots     // a Cons subtype: `...`
	KindBytecode
	KindClosure
	KindPromise
	KindEnvironment
	KindExternalPointer
	KindWeakRef
	KindLogical
	KindInteger
	KindDouble
	KindComplex
	KindRaw
	KindString // vector of Char
	KindList   // vector of Value
	KindExpression
	KindChar // immutable string scalar, carries an encoding tag
	KindBuiltin
	KindSpecial
	KindFree // collector debug-mode state
	KindNew  // collector debug-mode state
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "NIL"
	case KindSymbol:
		return "SYMBOL"
	case KindCons:
		return "CONS"
	case KindLanguage:
		return "LANGUAGE"
	case KindDots:
		return "DOTS"
	case KindBytecode:
		return "BYTECODE"
	case KindClosure:
		return "CLOSURE"
	case KindPromise:
		return "PROMISE"
	case KindEnvironment:
		return "ENVIRONMENT"
	case KindExternalPointer:
		return "EXTPTR"
	case KindWeakRef:
		return "WEAKREF"
	case KindLogical:
		return "LOGICAL"
	case KindInteger:
		return "INTEGER"
	case KindDouble:
		return "DOUBLE"
	case KindComplex:
		return "COMPLEX"
	case KindRaw:
		return "RAW"
	case KindString:
		return "STRING"
	case KindList:
		return "LIST"
	case KindExpression:
		return "EXPRESSION"
	case KindChar:
		return "CHAR"
	case KindBuiltin:
		return "BUILTIN"
	case KindSpecial:
		return "SPECIAL"
	case KindFree:
		return "FREE"
	case KindNew:
		return "NEW"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", k)
	}
}

// IsVector reports whether a Kind carries a length/payload-slice body.
func (k Kind) IsVector() bool {
	switch k {
	case KindLogical, KindInteger, KindDouble, KindComplex, KindRaw,
		KindString, KindList, KindExpression:
		return true
	default:
		return false
	}
}

// gp bit flags, packed into the 16-bit Gp header field.
const (
	GPEncodingMask  uint16 = 0x0003 // 2 bits: 0=native 1=UTF8 2=Latin1 3=bytes
	GPMissing       uint16 = 0x0004
	GPWeakReady     uint16 = 0x0008 // weak-ref "ready to finalize"
	GPFinalizeExit  uint16 = 0x0010 // finalize-on-exit
	GPAssignPending uint16 = 0x0020
)

// Encoding identifies a Char/String cell's byte encoding.
type Encoding uint8

const (
	EncNative Encoding = iota
	EncUTF8
	EncLatin1
	EncBytes
)

// DisableRefcnt marks a cell as permanently outside refcount tracking
// (the NR / "no-ref" sentinel).
const DisableRefcnt uint16 = 0xFFFF

// RefcntMax is the saturating ceiling for ref_count.
const RefcntMax uint16 = 0xFFFE

// Generation count
const NumOldGenerations = 2

// Class identifies which size-classed list a cell lives on.
type Class uint8

const (
	ClassNonVector Class = iota
	ClassVec1
	ClassVec2
	ClassVec3
	ClassVec4
	ClassVec5
	ClassCustom
	ClassLarge
)

// ListKind distinguishes which generational list a cell is linked into.
type ListKind uint8

const (
	ListNew ListKind = iota
	ListOld
	ListOldToNew
)

// HandlerWrapper is unused by the data model but kept as an extension
// point for embedder-supplied native callbacks bound to a Closure/
// Bytecode cell (e.g. a JIT trampoline); see pkg/gc for how Closures are
// constructed.
type HandlerWrapper struct {
	Native func(args, env *Cell) *Cell
}

// Cell is the single tagged-variant heap value. Every live allocation on
// the heap, regardless of Kind, is one of these.
type Cell struct {
	// --- shared header ---
	Kind       Kind
	Mark       bool
	Gen        uint8 // 0..NumOldGenerations-1, or "young" encoded by List==ListNew
	Class      Class
	Gp         uint16
	ObjectFlag bool // has a class attribute
	S4Flag     bool
	AltrepFlag bool
	RefCount   uint16
	Attrib     *Cell // pairlist of named attributes, or Nil

	// list-membership bookkeeping: exactly one of New[class],
	// Old[class][gen], OldToNew[class][gen] holds this cell via Prev/Next.
	List       ListKind
	Prev, Next *Cell

	// --- vector header ---
	Length     int
	TrueLength int

	// --- payload, selected by Kind ---

	// KindSymbol
	PrintName    *Cell // KindChar
	GlobalValue  *Cell
	Internal     *Cell
	DDVal        bool
	SpecialFlags uint16

	// KindCons / KindLanguage / KindDots
	Car, Cdr, Tag *Cell

	// KindClosure
	Formals, Body, Env *Cell

	// KindPromise
	PCode, PEnv, PValue *Cell
	PSeen                bool

	// KindEnvironment
	Frame, Enclosing, Hashtab *Cell
	EnvFlags                  uint16

	// KindExternalPointer
	RawPointer interface{}
	Protected  *Cell
	ExtTag     *Cell

	// KindWeakRef: {key, value, finalizer, next} is modelled as a 4-slot
	// payload rather than a literal Cons chain.
	WRKey, WRValue, WRFinalizer, WRNext *Cell
	WROnExit                            bool

	// KindBuiltin / KindSpecial
	PrimOffset int

	// KindBytecode
	BCCode *Cell
	BCEnv  *Cell

	// scalar/vector payloads
	Ints    []int64 // KindInteger, KindLogical (0/1/NA sentinel), KindComplex-pair-free
	Floats  []float64
	Strs    []*Cell // KindString (each a KindChar), KindList, KindExpression element slice
	Raws    []byte
	Complex []complex128

	// KindChar
	CharBytes []byte
	CharEnc   Encoding
}

// Nil is the unique empty value: its own car/cdr/tag point to itself and
// it is never collected.
var Nil = makeNil()

func makeNil() *Cell {
	n := &Cell{Kind: KindNil}
	n.Car, n.Cdr, n.Tag = n, n, n
	return n
}

// Global singletons allocated at init and never reclaimed.
var (
	True           = &Cell{Kind: KindLogical, Length: 1, Ints: []int64{1}}
	False          = &Cell{Kind: KindLogical, Length: 1, Ints: []int64{0}}
	NA             = &Cell{Kind: KindLogical, Length: 1, Ints: []int64{naLogical}}
	MissingArg     = &Cell{Kind: KindSymbol, PrintName: newChar("")}
	PlaceholderSym = &Cell{Kind: KindSymbol, PrintName: newChar("_")}
	PipeBindSym    = &Cell{Kind: KindSymbol, PrintName: newChar("=>")}
)

const naLogical = -2147483648

func newChar(s string) *Cell {
	return &Cell{Kind: KindChar, CharBytes: []byte(s), CharEnc: EncUTF8, Length: len(s)}
}

// IsNil reports whether v is the unique Nil value (by identity or Kind).
func IsNil(v *Cell) bool {
	return v == nil || v.Kind == KindNil
}

// IsCell reports whether v is a Cons/Language/Dots node.
func IsCell(v *Cell) bool {
	return v != nil && (v.Kind == KindCons || v.Kind == KindLanguage || v.Kind == KindDots)
}

func IsSymbol(v *Cell) bool { return v != nil && v.Kind == KindSymbol }

// SymEqStr compares a symbol cell against a plain string print-name.
func SymEqStr(s *Cell, str string) bool {
	if !IsSymbol(s) || s.PrintName == nil {
		return false
	}
	return string(s.PrintName.CharBytes) == str
}

// SymEq compares two symbol cells by print-name.
func SymEq(a, b *Cell) bool {
	if !IsSymbol(a) || !IsSymbol(b) {
		return false
	}
	return string(a.PrintName.CharBytes) == string(b.PrintName.CharBytes)
}

// List1/List2/List3 build short Cons chains.
func List1(a *Cell) *Cell       { return &Cell{Kind: KindCons, Car: a, Cdr: Nil} }
func List2(a, b *Cell) *Cell    { return &Cell{Kind: KindCons, Car: a, Cdr: List1(b)} }
func List3(a, b, c *Cell) *Cell { return &Cell{Kind: KindCons, Car: a, Cdr: List2(b, c)} }
func ListN(items ...*Cell) *Cell {
	result := Nil
	for i := len(items) - 1; i >= 0; i-- {
		result = &Cell{Kind: KindCons, Car: items[i], Cdr: result}
	}
	return result
}

// ListLen returns the length of a Cons/Language chain.
func ListLen(v *Cell) int {
	n := 0
	for IsCell(v) {
		n++
		v = v.Cdr
	}
	return n
}

// ListToSlice flattens a Cons/Language chain into a slice of its Car values.
func ListToSlice(v *Cell) []*Cell {
	var out []*Cell
	for IsCell(v) {
		out = append(out, v.Car)
		v = v.Cdr
	}
	return out
}

// String renders a debug s-expression form of v, used by cmd/birch and
// tests as a diagnostic aid, not a parseable wire format.
func (v *Cell) String() string {
	if v == nil {
		return "#<go-nil>"
	}
	switch v.Kind {
	case KindNil:
		return "NULL"
	case KindSymbol:
		if v.PrintName != nil {
			return string(v.PrintName.CharBytes)
		}
		return "<unnamed-symbol>"
	case KindCons, KindLanguage, KindDots:
		return listString(v)
	case KindInteger:
		return joinInts(v.Ints)
	case KindDouble:
		return joinFloats(v.Floats)
	case KindLogical:
		return joinLogicals(v.Ints)
	case KindChar:
		return strconv.Quote(string(v.CharBytes))
	case KindString:
		var sb strings.Builder
		sb.WriteString("c(")
		for i, e := range v.Strs {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteString(")")
		return sb.String()
	case KindClosure:
		return "function(...)"
	case KindEnvironment:
		return "<environment>"
	case KindPromise:
		return "<promise>"
	case KindBuiltin:
		return fmt.Sprintf("<builtin:%d>", v.PrimOffset)
	case KindSpecial:
		return fmt.Sprintf("<special:%d>", v.PrimOffset)
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

func listString(v *Cell) string {
	var sb strings.Builder
	sb.WriteByte('(')
	first := true
	for IsCell(v) {
		if !first {
			sb.WriteByte(' ')
		}
		first = false
		sb.WriteString(v.Car.String())
		v = v.Cdr
	}
	if !IsNil(v) {
		sb.WriteString(". ")
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

func joinInts(xs []int64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		if x == naLogical {
			parts[i] = "NA"
		} else {
			parts[i] = strconv.FormatInt(x, 10)
		}
	}
	return strings.Join(parts, " ")
}

func joinLogicals(xs []int64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		switch x {
		case 1:
			parts[i] = "TRUE"
		case 0:
			parts[i] = "FALSE"
		default:
			parts[i] = "NA"
		}
	}
	return strings.Join(parts, " ")
}

func joinFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}
