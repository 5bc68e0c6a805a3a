// Package syntax provides string- and comment-aware scanning of JavaScript,
// TypeScript and JSX source.
//
// The scanner is deliberately lexical: it tracks line comments, block
// comments, quoted strings and template literals (including nested ${}
// expressions) and reports every remaining byte as code. Both the validator
// and the local fixers build on it so that a bracket inside a string is never
// counted and never rewritten.
package syntax

// Region classifies one byte of source.
type Region uint8

const (
	RegionCode Region = iota
	RegionLineComment
	RegionBlockComment
	RegionString
	RegionTemplate
)

// frame is one entry of the bracket stack. A '$' frame marks an open
// ${ expression inside a template literal.
type frame struct {
	ch     byte
	offset int
}

type scanMode int

const (
	modeCode scanMode = iota
	modeLine
	modeBlock
	modeSingle
	modeDouble
	modeTemplate
)

// scanState is the complete output of one pass over the source.
type scanState struct {
	mask       []Region
	stack      []frame
	first      *Issue
	endMode    scanMode
	modeOffset int // where the unterminated comment/template started
}

// closerFor maps an opener to its closer.
func closerFor(ch byte) byte {
	switch ch {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{', '$':
		return '}'
	}
	return 0
}

func openerFor(ch byte) byte {
	switch ch {
	case ')':
		return '('
	case ']':
		return '['
	case '}':
		return '{'
	}
	return 0
}

// scan walks src once. Single and double quoted strings cannot span lines in
// JS. A quote left open at end of line or input is an unterminated string,
// unless it sits in JSX text ("<p>Don't</p>"), where it is re-read as plain
// text.
func scan(src string) *scanState {
	n := len(src)
	st := &scanState{mask: make([]Region, n)}
	mode := modeCode
	quoteStart := -1
	literalQuote := -1
	modeStart := 0

	record := func(issue Issue) {
		if st.first == nil {
			issue.Line, issue.Column = Position(src, issue.Offset)
			st.first = &issue
		}
	}

	i := 0
	for {
		if i >= n {
			if mode != modeSingle && mode != modeDouble {
				break
			}
			if inJSXText(src, st.mask, quoteStart) {
				literalQuote = quoteStart
				i = quoteStart
				mode = modeCode
				continue
			}
			record(unterminatedString(src[quoteStart], quoteStart))
			mode = modeCode
			break
		}
		c := src[i]
		switch mode {
		case modeCode:
			if i == literalQuote {
				st.mask[i] = RegionCode
				i++
				continue
			}
			if c == '/' && i+1 < n && src[i+1] == '/' {
				mode = modeLine
				st.mask[i], st.mask[i+1] = RegionLineComment, RegionLineComment
				i += 2
				continue
			}
			if c == '/' && i+1 < n && src[i+1] == '*' {
				mode = modeBlock
				modeStart = i
				st.mask[i], st.mask[i+1] = RegionBlockComment, RegionBlockComment
				i += 2
				continue
			}
			if c == '\'' || c == '"' {
				if c == '\'' {
					mode = modeSingle
				} else {
					mode = modeDouble
				}
				quoteStart = i
				st.mask[i] = RegionString
				i++
				continue
			}
			if c == '`' {
				mode = modeTemplate
				modeStart = i
				st.mask[i] = RegionTemplate
				i++
				continue
			}

			st.mask[i] = RegionCode
			switch c {
			case '(', '[', '{':
				st.stack = append(st.stack, frame{ch: c, offset: i})
			case ')', ']', '}':
				if len(st.stack) == 0 {
					record(Issue{Kind: IssueUnexpectedCloser, Char: c, Offset: i,
						Message: "unexpected '" + string(c) + "'"})
					break
				}
				top := st.stack[len(st.stack)-1]
				if top.ch == '$' && c == '}' {
					// end of a template ${} expression: resume the literal
					st.stack = st.stack[:len(st.stack)-1]
					st.mask[i] = RegionTemplate
					mode = modeTemplate
					break
				}
				if top.ch != openerFor(c) {
					record(Issue{Kind: IssueMismatch, Char: c, Offset: i,
						Message: "expected '" + string(closerFor(top.ch)) + "' but found '" + string(c) + "'"})
					break
				}
				st.stack = st.stack[:len(st.stack)-1]
			}
			i++

		case modeLine:
			if c == '\n' {
				mode = modeCode
				st.mask[i] = RegionCode
			} else {
				st.mask[i] = RegionLineComment
			}
			i++

		case modeBlock:
			st.mask[i] = RegionBlockComment
			if c == '*' && i+1 < n && src[i+1] == '/' {
				st.mask[i+1] = RegionBlockComment
				mode = modeCode
				i += 2
				continue
			}
			i++

		case modeSingle, modeDouble:
			quote := byte('\'')
			if mode == modeDouble {
				quote = '"'
			}
			if c == '\\' && i+1 < n && src[i+1] != '\n' {
				st.mask[i], st.mask[i+1] = RegionString, RegionString
				i += 2
				continue
			}
			if c == quote {
				st.mask[i] = RegionString
				mode = modeCode
				i++
				continue
			}
			if c == '\n' {
				if inJSXText(src, st.mask, quoteStart) {
					// not a string after all: rescan from the quote as code
					literalQuote = quoteStart
					i = quoteStart
					mode = modeCode
					continue
				}
				record(unterminatedString(quote, quoteStart))
				st.mask[i] = RegionCode
				mode = modeCode
				i++
				continue
			}
			st.mask[i] = RegionString
			i++

		case modeTemplate:
			st.mask[i] = RegionTemplate
			if c == '\\' && i+1 < n {
				st.mask[i+1] = RegionTemplate
				i += 2
				continue
			}
			if c == '`' {
				mode = modeCode
				i++
				continue
			}
			if c == '$' && i+1 < n && src[i+1] == '{' {
				st.mask[i+1] = RegionTemplate
				st.stack = append(st.stack, frame{ch: '$', offset: i})
				mode = modeCode
				i += 2
				continue
			}
			i++
		}
	}

	st.endMode = mode
	st.modeOffset = modeStart
	return st
}

func unterminatedString(quote byte, offset int) Issue {
	return Issue{Kind: IssueUnterminatedString, Char: quote, Offset: offset,
		Message: "unterminated string literal"}
}

// inJSXText reports whether the quote at q sits in JSX text: walking back
// over code, the first structural byte is the '>' ending a tag, or a '}'
// closing an expression container that itself sits in JSX text. Prose
// punctuation such as ',' '(' and ')' is skipped.
func inJSXText(src string, mask []Region, q int) bool {
	for i := q - 1; i >= 0; i-- {
		if mask[i] != RegionCode {
			continue
		}
		switch src[i] {
		case '>':
			return i == 0 || src[i-1] != '='
		case '}':
			open := openingBrace(src, mask, i)
			if open < 0 {
				return false
			}
			i = open
		case '<', '{', ';', '=':
			return false
		}
	}
	return false
}

// openingBrace returns the offset of the code '{' matching the '}' at close,
// or -1.
func openingBrace(src string, mask []Region, close int) int {
	depth := 0
	for i := close; i >= 0; i-- {
		if mask[i] != RegionCode {
			continue
		}
		switch src[i] {
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Mask returns the region of every byte of src.
func Mask(src string) []Region {
	return scan(src).mask
}

// IsCode reports whether offset i of a mask is outside strings and comments.
func IsCode(mask []Region, i int) bool {
	return i >= 0 && i < len(mask) && mask[i] == RegionCode
}

// FindMatching returns the offset of the bracket closing the opener at open,
// or -1. Brackets inside strings and comments are ignored.
func FindMatching(src string, open int) int {
	if open < 0 || open >= len(src) {
		return -1
	}
	want := closerFor(src[open])
	if want == 0 {
		return -1
	}
	mask := Mask(src)
	depth := 0
	for i := open; i < len(src); i++ {
		if mask[i] != RegionCode {
			continue
		}
		switch src[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				if src[i] == want {
					return i
				}
				return -1
			}
		}
	}
	return -1
}

// Position converts a byte offset to a 1-based line and column.
func Position(src string, offset int) (line, column int) {
	if offset > len(src) {
		offset = len(src)
	}
	line, column = 1, 1
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
