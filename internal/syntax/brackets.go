package syntax

import "fmt"

// IssueKind names the first structural problem found by a scan.
type IssueKind string

const (
	IssueUnexpectedCloser     IssueKind = "unexpected-closer"
	IssueMismatch             IssueKind = "mismatched-bracket"
	IssueUnclosed             IssueKind = "unclosed-bracket"
	IssueUnterminatedComment  IssueKind = "unterminated-comment"
	IssueUnterminatedTemplate IssueKind = "unterminated-template"
	IssueUnterminatedString   IssueKind = "unterminated-string"

	IssueUnexpectedClosingTag IssueKind = "unexpected-closing-tag"
	IssueMismatchedTag        IssueKind = "mismatched-tag"
	IssueUnclosedTag          IssueKind = "unclosed-tag"
	IssueUnterminatedTag      IssueKind = "unterminated-tag"
)

// Issue describes where and why a scan failed.
type Issue struct {
	Kind    IssueKind
	Char    byte   // offending bracket, zero for tag issues
	Tag     string // offending tag name for markup issues
	Offset  int
	Line    int
	Column  int
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at line %d, column %d", i.Message, i.Line, i.Column)
}

// Result is the outcome of a bracket or markup scan.
type Result struct {
	Valid bool
	Issue *Issue
}

// BracketReport is the full bracket analysis of a source file.
type BracketReport struct {
	Result
	// Missing holds the closers that would balance the file, innermost first.
	// It is empty when the file cannot be repaired by appending.
	Missing string
}

// CheckBrackets scans src and reports the first bracket, string, comment or
// template problem. The file is invalid iff a closer is stray or mismatched,
// an opener is left on the stack, a quoted string outside JSX text reaches
// end of line or input, or a block comment or template literal is still open
// at end of input.
func CheckBrackets(src string) BracketReport {
	st := scan(src)
	report := BracketReport{}

	if st.first != nil {
		report.Issue = st.first
		return report
	}

	switch st.endMode {
	case modeBlock:
		line, col := Position(src, st.modeOffset)
		report.Issue = &Issue{Kind: IssueUnterminatedComment, Offset: st.modeOffset, Line: line, Column: col,
			Message: "unterminated block comment"}
		return report
	case modeTemplate:
		line, col := Position(src, st.modeOffset)
		report.Issue = &Issue{Kind: IssueUnterminatedTemplate, Offset: st.modeOffset, Line: line, Column: col,
			Message: "unterminated template literal"}
		return report
	}

	if len(st.stack) > 0 {
		bottom := st.stack[0]
		line, col := Position(src, bottom.offset)
		report.Issue = &Issue{Kind: IssueUnclosed, Char: bottom.ch, Offset: bottom.offset, Line: line, Column: col,
			Message: fmt.Sprintf("unclosed '%c' (%d unclosed in total)", bottom.ch, len(st.stack))}

		missing := make([]byte, 0, len(st.stack))
		for i := len(st.stack) - 1; i >= 0; i-- {
			if st.stack[i].ch == '$' {
				missing = missing[:0]
				break
			}
			missing = append(missing, closerFor(st.stack[i].ch))
		}
		report.Missing = string(missing)
		return report
	}

	report.Valid = true
	return report
}
