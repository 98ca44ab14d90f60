// Package parsestate implements the per-parse mutable state described
// in §4.I: position counters, the precious multi-set rooting values
// the lexer/parser produce before they're reachable from a normal
// heap root, and the parse-data table (plus the comment-parenting
// pass of §4.H.6) that backs the source-ref/parse-data interfaces of
// §4.H.5/§6.
package parsestate

import (
	"sort"

	"birch_go/pkg/lexer"
	"birch_go/pkg/protect"
)

// MaxDataCount bounds the parse-data table; a parse whose table grows
// past this is considered a one-shot diagnostic aid not worth
// preserving, so Finish drops it entirely rather than just truncating
// it back to empty.
const MaxDataCount = 1 << 20

// Record is one row of the parse-data table: (first_parsed,
// first_column, last_parsed, last_column, terminal, token, id,
// parent_id) plus the parallel literal-text column. ParentID 0 means
// "not yet assigned a parent" (root), -N means "orphaned comment,
// best-effort re-attached to non-terminal N" (§4.H.6).
type Record struct {
	FirstParsed int
	FirstColumn int
	LastParsed  int
	LastColumn  int
	Terminal    bool
	Token       lexer.Kind
	ID          int
	ParentID    int
	Text        string
}

// ParseState is one parse's mutable state; Push/Pop nest it for a
// parse triggered from within evaluation (e.g. `eval(parse(text))`).
type ParseState struct {
	KeepSrcRefs   bool
	KeepParseData bool

	File string

	Precious *protect.Multiset

	LineNo, ColNo, ByteNo, ParseNo int

	records []Record
	nextID  int

	prev *ParseState
}

// New creates a fresh top-level parse state for file.
func New(file string, keepSrcRefs, keepParseData bool) *ParseState {
	return &ParseState{
		File:          file,
		KeepSrcRefs:   keepSrcRefs,
		KeepParseData: keepParseData,
		Precious:      protect.NewMultiset(),
		nextID:        1,
	}
}

// Push saves cur and returns a fresh nested state inheriting cur's
// tracking flags, for a parse triggered while cur is still open.
func Push(cur *ParseState, file string) *ParseState {
	next := New(file, cur.KeepSrcRefs, cur.KeepParseData)
	next.prev = cur
	return next
}

// Pop finalizes the current state and returns the state it was pushed
// from (nil at the outermost level).
func (s *ParseState) Pop() *ParseState {
	s.Finish()
	return s.prev
}

// Finish releases every precious-multiset root and drops (rather than
// merely truncates) an oversized parse-data table.
func (s *ParseState) Finish() {
	s.Precious.ReleaseAll()
	if len(s.records) > MaxDataCount {
		s.records = nil
	} else {
		s.records = s.records[:0]
	}
}

// Begin marks the start of a non-terminal's children: record this
// value and pass it to EndNonTerminal once the production reduces.
func (s *ParseState) Begin() int { return len(s.records) }

// RecordTerminal appends a terminal's parse-data row (a no-op, besides
// assigning an id, when KeepParseData is false) and returns its id.
func (s *ParseState) RecordTerminal(tok lexer.Token) int {
	id := s.nextID
	s.nextID++
	if !s.KeepParseData {
		return id
	}
	s.records = append(s.records, Record{
		FirstParsed: tok.Start.ParseNo, FirstColumn: tok.Start.Col,
		LastParsed: tok.End.ParseNo, LastColumn: tok.End.Col,
		Terminal: true, Token: tok.Kind, ID: id, Text: tok.Text,
	})
	return id
}

// EndNonTerminal closes a non-terminal whose children's rows were
// appended since mark: every child row still missing a parent (one
// that wasn't itself closed by a nested EndNonTerminal) is pointed at
// the new node, then the node's own row is appended.
func (s *ParseState) EndNonTerminal(mark int, first, last lexer.Token, token lexer.Kind) int {
	id := s.nextID
	s.nextID++
	if !s.KeepParseData {
		return id
	}
	for i := mark; i < len(s.records); i++ {
		if s.records[i].ParentID == 0 {
			s.records[i].ParentID = id
		}
	}
	s.records = append(s.records, Record{
		FirstParsed: first.Start.ParseNo, FirstColumn: first.Start.Col,
		LastParsed: last.End.ParseNo, LastColumn: last.End.Col,
		Terminal: false, Token: token, ID: id,
	})
	return id
}

// Records exposes a read-only view of the parse-data table, mostly
// for tests.
func (s *ParseState) Records() []Record { return s.records }

// Matrix renders the §6 column layout: (first_parsed, first_column,
// last_parsed, last_column, terminal, token_code, id, parent_id),
// plus the parallel literal-text vector.
func (s *ParseState) Matrix() (cols [8][]int, text []string) {
	n := len(s.records)
	for i := range cols {
		cols[i] = make([]int, n)
	}
	text = make([]string, n)
	for i, r := range s.records {
		cols[0][i] = r.FirstParsed
		cols[1][i] = r.FirstColumn
		cols[2][i] = r.LastParsed
		cols[3][i] = r.LastColumn
		if r.Terminal {
			cols[4][i] = 1
		}
		cols[5][i] = int(r.Token)
		cols[6][i] = r.ID
		cols[7][i] = r.ParentID
		text[i] = r.Text
	}
	return
}

// AttachComments runs the comment-parenting pass (§4.H.6): each
// comment is spliced into the table in source-position order, then a
// single right-to-left walk finds, for each comment, the smallest
// enclosing non-terminal by ascending the parent chain of the nearest
// following node until one starts at or before the comment. A comment
// with no enclosing node becomes an orphan (ParentID -1), resolved by
// ReattachOrphans.
func (s *ParseState) AttachComments(comments []lexer.Token) {
	if !s.KeepParseData || len(comments) == 0 {
		return
	}
	for _, c := range comments {
		id := s.nextID
		s.nextID++
		s.records = append(s.records, Record{
			FirstParsed: c.Start.ParseNo, FirstColumn: c.Start.Col,
			LastParsed: c.End.ParseNo, LastColumn: c.End.Col,
			Terminal: true, Token: lexer.Comment, ID: id, Text: c.Text,
		})
	}
	sort.SliceStable(s.records, func(i, j int) bool {
		if s.records[i].FirstParsed != s.records[j].FirstParsed {
			return s.records[i].FirstParsed < s.records[j].FirstParsed
		}
		// Non-terminals sort after the terminals they share a start
		// position with, matching §4.H.6's ordering requirement.
		return s.records[i].Terminal && !s.records[j].Terminal
	})

	byID := make(map[int]*Record, len(s.records))
	for i := range s.records {
		byID[s.records[i].ID] = &s.records[i]
	}

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Token != lexer.Comment {
			continue
		}
		comment := &s.records[i]
		var parent *Record
		for j := i + 1; j < len(s.records); j++ {
			if s.records[j].LastParsed <= comment.FirstParsed {
				continue
			}
			cand := &s.records[j]
			for cand != nil && cand.FirstParsed > comment.FirstParsed {
				if cand.ParentID == 0 {
					cand = nil
					break
				}
				cand = byID[cand.ParentID]
			}
			parent = cand
			break
		}
		if parent != nil {
			comment.ParentID = parent.ID
		} else {
			comment.ParentID = -1
		}
	}
}

// ReattachOrphans resolves every comment AttachComments left orphaned
// (ParentID -1) to the nearest preceding top-level non-terminal,
// recording the attachment as best-effort via a negated parent id.
func (s *ParseState) ReattachOrphans() {
	lastTopLevel := 0
	for i := range s.records {
		r := &s.records[i]
		if !r.Terminal && r.ParentID == 0 {
			lastTopLevel = r.ID
		}
		if r.ParentID == -1 && lastTopLevel != 0 {
			r.ParentID = -lastTopLevel
		}
	}
}
