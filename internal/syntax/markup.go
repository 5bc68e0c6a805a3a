package syntax

import (
	"fmt"
	"strings"
)

// VoidElements never take children and never need a closing tag.
var VoidElements = []string{
	"area", "base", "br", "col", "embed", "hr", "img", "input",
	"link", "meta", "param", "source", "track", "wbr",
}

// IsVoidElement reports whether name is an HTML void element.
func IsVoidElement(name string) bool {
	for _, v := range VoidElements {
		if v == name {
			return true
		}
	}
	return false
}

// Tag is one markup tag found by the scanner.
type Tag struct {
	Name        string // empty for fragments
	Start       int    // offset of '<'
	End         int    // offset just past '>'
	Closing     bool
	SelfClosing bool
	Depth       int // nesting depth of the element the tag belongs to
}

type openTag struct {
	tag        Tag
	braceDepth int
}

// tagContext reports whether '<' at offset i starts a JSX tag when outside
// element content. A preceding identifier or ')' means comparison or generics.
func tagContext(src string, mask []Region, i int) bool {
	j := i - 1
	for j >= 0 && (mask[j] != RegionCode || src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
		j--
	}
	if j < 0 {
		return true
	}
	c := src[j]
	if isIdentByte(c) {
		k := j
		for k >= 0 && isIdentByte(src[k]) {
			k--
		}
		switch src[k+1 : j+1] {
		case "return", "yield", "case", "default", "else", "await":
			return true
		}
		return false
	}
	return c != ')' && c != ']'
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isTagNameByte(c byte) bool {
	return isIdentByte(c) || c == '.' || c == ':' || c == '-'
}

// Tags returns every tag in src in order, along with the first structural
// markup problem (nil when balanced).
func Tags(src string) ([]Tag, *Issue) {
	mask := Mask(src)
	var (
		tags   []Tag
		stack  []openTag
		braces int
		first  *Issue
	)
	fail := func(issue Issue) {
		if first == nil {
			issue.Line, issue.Column = Position(src, issue.Offset)
			first = &issue
		}
	}

	n := len(src)
	for i := 0; i < n; i++ {
		if mask[i] != RegionCode {
			continue
		}
		c := src[i]
		switch c {
		case '{':
			braces++
			continue
		case '}':
			braces--
			continue
		case '<':
		default:
			continue
		}
		if i+1 >= n {
			continue
		}
		next := src[i+1]
		if next != '/' && next != '>' && !(next >= 'a' && next <= 'z' || next >= 'A' && next <= 'Z') {
			continue
		}
		inContent := len(stack) > 0 && stack[len(stack)-1].braceDepth == braces
		if !inContent && !tagContext(src, mask, i) {
			continue
		}

		tag, ok := parseTag(src, mask, i)
		if !ok {
			fail(Issue{Kind: IssueUnterminatedTag, Offset: i, Tag: tag.Name,
				Message: fmt.Sprintf("unterminated tag <%s", tag.Name)})
			break
		}
		void := IsVoidElement(tag.Name)

		switch {
		case tag.Closing:
			if void {
				tag.Depth = len(stack)
				tags = append(tags, tag)
				break
			}
			if len(stack) == 0 {
				fail(Issue{Kind: IssueUnexpectedClosingTag, Offset: i, Tag: tag.Name,
					Message: fmt.Sprintf("unexpected closing tag </%s>", tag.Name)})
				tag.Depth = 0
				tags = append(tags, tag)
				break
			}
			top := stack[len(stack)-1]
			if top.tag.Name != tag.Name {
				fail(Issue{Kind: IssueMismatchedTag, Offset: i, Tag: top.tag.Name,
					Message: fmt.Sprintf("expected closing tag for <%s> but found </%s>", top.tag.Name, tag.Name)})
			}
			stack = stack[:len(stack)-1]
			tag.Depth = len(stack)
			tags = append(tags, tag)
		case tag.SelfClosing || void:
			tag.Depth = len(stack)
			tags = append(tags, tag)
		default:
			tag.Depth = len(stack)
			tags = append(tags, tag)
			stack = append(stack, openTag{tag: tag, braceDepth: braces})
		}
		i = tag.End - 1
	}

	if first == nil && len(stack) > 0 {
		top := stack[len(stack)-1]
		fail(Issue{Kind: IssueUnclosedTag, Offset: top.tag.Start, Tag: top.tag.Name,
			Message: fmt.Sprintf("unclosed tag <%s>", top.tag.Name)})
	}
	return tags, first
}

// parseTag reads the tag starting at '<' offset i. Attribute expressions in
// braces and quoted attribute values may contain '>'.
func parseTag(src string, mask []Region, i int) (Tag, bool) {
	tag := Tag{Start: i}
	j := i + 1
	if j < len(src) && src[j] == '/' {
		tag.Closing = true
		j++
	}
	start := j
	for j < len(src) && isTagNameByte(src[j]) {
		j++
	}
	tag.Name = src[start:j]

	depth := 0
	for ; j < len(src); j++ {
		if mask[j] != RegionCode {
			continue
		}
		switch src[j] {
		case '{':
			depth++
		case '}':
			depth--
		case '>':
			if depth > 0 {
				continue
			}
			tag.End = j + 1
			k := j - 1
			for k > start && (src[k] == ' ' || src[k] == '\n' || src[k] == '\t' || src[k] == '\r') {
				k--
			}
			tag.SelfClosing = !tag.Closing && src[k] == '/'
			return tag, true
		}
	}
	return tag, false
}

// CheckMarkup reports the first unmatched open or close tag in src.
// Void elements and self-closing tags do not take part in balancing.
func CheckMarkup(src string) Result {
	_, issue := Tags(src)
	return Result{Valid: issue == nil, Issue: issue}
}

// CountRootElements counts elements that open at depth zero in a markup
// fragment, e.g. the body of a return ( … ) block.
func CountRootElements(fragment string) int {
	tags, _ := Tags(fragment)
	count := 0
	for _, t := range tags {
		if !t.Closing && t.Depth == 0 {
			count++
		}
	}
	return count
}

// StartsWithFragment reports whether the markup opens with <>.
func StartsWithFragment(fragment string) bool {
	return strings.HasPrefix(strings.TrimSpace(fragment), "<>")
}
