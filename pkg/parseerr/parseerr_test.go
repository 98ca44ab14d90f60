package parseerr

import (
	"strings"
	"testing"
)

func TestConditionError(t *testing.T) {
	c := NewParseError(UnexpectedSymbol, "foo.R", 3, 7, "unexpected symbol \"y\"")
	got := c.Error()
	for _, want := range []string{"foo.R:3:7", "unexpected symbol", "parseError", "unexpectedSymbol"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestConditionErrorNoFilename(t *testing.T) {
	c := NewRuntimeError("", 1, 1, "out of memory")
	got := c.Error()
	if !strings.HasPrefix(got, "1:1:") {
		t.Errorf("Error() = %q, want it to start with the bare line:col when filename is empty", got)
	}
}

func TestIs(t *testing.T) {
	c := NewLexError(BadHex, "x.R", 1, 1, "bad hex digit")
	if !Is(c, string(BadHex)) {
		t.Error("Is(c, BadHex) = false, want true")
	}
	if Is(c, string(BadUnicodeHex)) {
		t.Error("Is(c, BadUnicodeHex) = true, want false")
	}
	if Is(nil, string(BadHex)) {
		t.Error("Is(nil, ...) = true, want false")
	}
}

func TestNewErrorsEmpty(t *testing.T) {
	if err := NewErrors(nil); err != nil {
		t.Errorf("NewErrors(nil) = %v, want nil", err)
	}
}

func TestErrorsAggregatesMessages(t *testing.T) {
	conds := []*Condition{
		NewParseError(UnexpectedInput, "a.R", 1, 1, "first"),
		NewParseError(UnexpectedEndOfInput, "a.R", 2, 1, "second"),
	}
	err := NewErrors(conds)
	if err == nil {
		t.Fatal("NewErrors(non-empty) = nil, want an error")
	}
	got := err.Error()
	if !strings.Contains(got, "2 errors found") {
		t.Errorf("Error() = %q, want a count header", got)
	}
	if !strings.Contains(got, "first") || !strings.Contains(got, "second") {
		t.Errorf("Error() = %q, want both messages", got)
	}
}

func TestWarningBufferFlushEmpties(t *testing.T) {
	b := NewWarningBuffer()
	if b.Len() != 0 {
		t.Fatalf("new buffer Len() = %d, want 0", b.Len())
	}
	b.Add(NewWarning("x.R", 1, 1, "repeated formal"))
	b.Add(NewWarning("x.R", 2, 1, "unrecognized escape"))
	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	flushed := b.Flush()
	if len(flushed) != 2 {
		t.Fatalf("Flush() returned %d items, want 2", len(flushed))
	}
	if b.Len() != 0 {
		t.Errorf("Len() after Flush() = %d, want 0", b.Len())
	}
	if second := b.Flush(); len(second) != 0 {
		t.Errorf("second Flush() = %d items, want 0", len(second))
	}
}
