package parsestate

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"birch_go/pkg/lexer"
)

// tok builds a token occupying parse-token slot n (n+1 exclusive), the
// granularity AttachComments orders and nests by.
func tok(kind lexer.Kind, n int, text string) lexer.Token {
	return lexer.Token{
		Kind:  kind,
		Text:  text,
		Str:   text,
		Start: lexer.Position{ParseNo: n, Col: n},
		End:   lexer.Position{ParseNo: n + 1, Col: n + 1},
	}
}

func TestNewInitialState(t *testing.T) {
	s := New("a.R", true, true)
	if s.File != "a.R" {
		t.Errorf("File = %q, want a.R", s.File)
	}
	if !s.KeepSrcRefs || !s.KeepParseData {
		t.Error("flags not carried through from New")
	}
	if s.Precious == nil || s.Precious.Count() != 0 {
		t.Error("expected a fresh empty Precious multiset")
	}
	if len(s.Records()) != 0 {
		t.Error("expected an empty parse-data table")
	}
}

func TestRecordTerminalNoOpWithoutKeepParseData(t *testing.T) {
	s := New("a.R", false, false)
	id1 := s.RecordTerminal(tok(lexer.Symbol, 1, "x"))
	id2 := s.RecordTerminal(tok(lexer.Symbol, 2, "y"))
	if id1 == id2 {
		t.Fatal("ids should still be distinct even when not recording rows")
	}
	if len(s.Records()) != 0 {
		t.Errorf("Records() = %d rows, want 0 when KeepParseData is false", len(s.Records()))
	}
}

func TestRecordTerminalAppendsRow(t *testing.T) {
	s := New("a.R", false, true)
	id := s.RecordTerminal(tok(lexer.Symbol, 1, "x"))
	want := []Record{
		{FirstParsed: 1, FirstColumn: 1, LastParsed: 2, LastColumn: 2,
			Terminal: true, Token: lexer.Symbol, ID: id, Text: "x"},
	}
	if diff := cmp.Diff(want, s.Records()); diff != "" {
		t.Errorf("Records() mismatch (-want +got):\n%s", diff)
	}
}

func TestEndNonTerminalAdoptsOpenChildren(t *testing.T) {
	s := New("a.R", false, true)
	mark := s.Begin()
	first := tok(lexer.Symbol, 1, "x")
	s.RecordTerminal(first)
	s.RecordTerminal(tok(lexer.Plus, 2, "+"))
	last := tok(lexer.Symbol, 3, "y")
	s.RecordTerminal(last)
	nodeID := s.EndNonTerminal(mark, first, last, lexer.Plus)

	want := []Record{
		{FirstParsed: 1, FirstColumn: 1, LastParsed: 2, LastColumn: 2,
			Terminal: true, Token: lexer.Symbol, ID: 1, ParentID: nodeID, Text: "x"},
		{FirstParsed: 2, FirstColumn: 2, LastParsed: 3, LastColumn: 3,
			Terminal: true, Token: lexer.Plus, ID: 2, ParentID: nodeID, Text: "+"},
		{FirstParsed: 3, FirstColumn: 3, LastParsed: 4, LastColumn: 4,
			Terminal: true, Token: lexer.Symbol, ID: 3, ParentID: nodeID, Text: "y"},
		{FirstParsed: 1, FirstColumn: 1, LastParsed: 4, LastColumn: 4,
			Terminal: false, Token: lexer.Plus, ID: nodeID},
	}
	if diff := cmp.Diff(want, s.Records()); diff != "" {
		t.Errorf("Records() mismatch (-want +got):\n%s", diff)
	}
}

func TestEndNonTerminalDoesNotStealAlreadyParentedChildren(t *testing.T) {
	s := New("a.R", false, true)
	outerMark := s.Begin()
	innerMark := s.Begin()
	leaf := tok(lexer.Symbol, 1, "x")
	s.RecordTerminal(leaf)
	innerID := s.EndNonTerminal(innerMark, leaf, leaf, lexer.Symbol)
	outerID := s.EndNonTerminal(outerMark, leaf, leaf, lexer.Symbol)

	recs := s.Records()
	var inner, outer Record
	for _, r := range recs {
		if r.ID == innerID {
			inner = r
		}
		if r.ID == outerID {
			outer = r
		}
	}
	want := [2]Record{
		{ID: innerID, ParentID: outerID},
		{ID: outerID, ParentID: 0},
	}
	got := [2]Record{
		{ID: inner.ID, ParentID: inner.ParentID},
		{ID: outer.ID, ParentID: outer.ParentID},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parent linkage mismatch (-want +got):\n%s", diff)
	}
}

func TestMatrixColumnLayout(t *testing.T) {
	s := New("a.R", false, true)
	id := s.RecordTerminal(tok(lexer.Symbol, 5, "x"))
	gotCols, gotText := s.Matrix()

	wantCols := [8][]int{
		{5}, {5}, {6}, {6}, {1}, {int(lexer.Symbol)}, {id}, {0},
	}
	if diff := cmp.Diff(wantCols, gotCols); diff != "" {
		t.Errorf("Matrix() columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x"}, gotText); diff != "" {
		t.Errorf("Matrix() text mismatch (-want +got):\n%s", diff)
	}
}

func TestFinishReleasesPreciousAndTruncatesRecords(t *testing.T) {
	s := New("a.R", false, true)
	s.RecordTerminal(tok(lexer.Symbol, 1, "x"))
	if len(s.Records()) == 0 {
		t.Fatal("setup: expected at least one record before Finish")
	}
	s.Finish()
	if len(s.Records()) != 0 {
		t.Errorf("Records() after Finish = %d, want 0", len(s.Records()))
	}
	if s.Precious.Count() != 0 {
		t.Errorf("Precious.Count() after Finish = %d, want 0", s.Precious.Count())
	}
}

func TestFinishDropsOversizedTable(t *testing.T) {
	s := New("a.R", false, true)
	s.records = make([]Record, MaxDataCount+1)
	s.Finish()
	if s.records != nil {
		t.Errorf("oversized table should be dropped to nil, got len %d", len(s.records))
	}
}

func TestPushPopNests(t *testing.T) {
	outer := New("a.R", true, true)
	outer.RecordTerminal(tok(lexer.Symbol, 1, "x"))

	inner := Push(outer, "b.R")
	if inner.File != "b.R" {
		t.Errorf("inner.File = %q, want b.R", inner.File)
	}
	if !inner.KeepSrcRefs || !inner.KeepParseData {
		t.Error("Push should inherit the parent's tracking flags")
	}
	inner.RecordTerminal(tok(lexer.Symbol, 1, "y"))

	back := inner.Pop()
	if back != outer {
		t.Fatal("Pop() did not return the state it was pushed from")
	}
	if len(inner.Records()) != 0 {
		t.Error("Pop() should have finished (truncated) the popped state")
	}
	if len(outer.Records()) != 1 {
		t.Errorf("outer.Records() = %d, want 1 (untouched by the nested parse)", len(outer.Records()))
	}
}

func TestPopAtOutermostReturnsNil(t *testing.T) {
	s := New("a.R", false, false)
	if got := s.Pop(); got != nil {
		t.Errorf("Pop() at outermost level = %v, want nil", got)
	}
}

func TestAttachCommentsNoOpWithoutKeepParseData(t *testing.T) {
	s := New("a.R", false, false)
	s.AttachComments([]lexer.Token{tok(lexer.Comment, 1, "# hi")})
	if len(s.Records()) != 0 {
		t.Errorf("Records() = %d, want 0 when KeepParseData is false", len(s.Records()))
	}
}

func TestAttachCommentsFindsEnclosingNonTerminal(t *testing.T) {
	s := New("a.R", false, true)
	mark := s.Begin()
	first := tok(lexer.Symbol, 1, "x")
	s.RecordTerminal(first)
	s.RecordTerminal(tok(lexer.Plus, 2, "+"))
	last := tok(lexer.Symbol, 3, "y")
	s.RecordTerminal(last)
	nodeID := s.EndNonTerminal(mark, first, last, lexer.Plus)

	// A comment lexed between the '+' and 'y' tokens (parse slot 2.5,
	// modeled here as slot 2) still falls inside the enclosing node's
	// [1,4) parse-token span.
	s.AttachComments([]lexer.Token{tok(lexer.Comment, 2, "# mid")})

	var comment *Record
	for i := range s.records {
		if s.records[i].Token == lexer.Comment {
			comment = &s.records[i]
		}
	}
	if comment == nil {
		t.Fatal("expected a comment row after AttachComments")
	}
	if comment.ParentID != nodeID {
		t.Errorf("comment ParentID = %d, want %d (the enclosing node)", comment.ParentID, nodeID)
	}
}

func TestAttachCommentsOrphanThenReattach(t *testing.T) {
	s := New("a.R", false, true)
	mark := s.Begin()
	leaf := tok(lexer.Symbol, 1, "x")
	s.RecordTerminal(leaf)
	nodeID := s.EndNonTerminal(mark, leaf, leaf, lexer.Symbol)

	// A trailing comment after the last statement has nothing following
	// it, so it starts out orphaned.
	s.AttachComments([]lexer.Token{tok(lexer.Comment, 10, "# trailing")})

	var comment *Record
	for i := range s.records {
		if s.records[i].Token == lexer.Comment {
			comment = &s.records[i]
		}
	}
	if comment == nil {
		t.Fatal("expected a comment row")
	}
	if comment.ParentID != -1 {
		t.Fatalf("comment.ParentID = %d, want -1 (orphan) before ReattachOrphans", comment.ParentID)
	}

	s.ReattachOrphans()
	if comment.ParentID != -nodeID {
		t.Errorf("comment.ParentID after ReattachOrphans = %d, want %d", comment.ParentID, -nodeID)
	}
}
