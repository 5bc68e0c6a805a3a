package fixer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/syntax"
)

// AttributeCasing maps lower-case DOM attribute spellings to the JSX prop name.
var AttributeCasing = map[string]string{
	"class":             "className",
	"for":               "htmlFor",
	"onclick":           "onClick",
	"ondblclick":        "onDoubleClick",
	"onchange":          "onChange",
	"oninput":           "onInput",
	"onsubmit":          "onSubmit",
	"onkeydown":         "onKeyDown",
	"onkeyup":           "onKeyUp",
	"onkeypress":        "onKeyPress",
	"onfocus":           "onFocus",
	"onblur":            "onBlur",
	"onmouseenter":      "onMouseEnter",
	"onmouseleave":      "onMouseLeave",
	"onmouseover":       "onMouseOver",
	"onmousedown":       "onMouseDown",
	"onmouseup":         "onMouseUp",
	"onscroll":          "onScroll",
	"tabindex":          "tabIndex",
	"readonly":          "readOnly",
	"maxlength":         "maxLength",
	"minlength":         "minLength",
	"autofocus":         "autoFocus",
	"autocomplete":      "autoComplete",
	"colspan":           "colSpan",
	"rowspan":           "rowSpan",
	"contenteditable":   "contentEditable",
	"crossorigin":       "crossOrigin",
	"srcset":            "srcSet",
	"enctype":           "encType",
	"viewbox":           "viewBox",
	"stroke-width":      "strokeWidth",
	"stroke-linecap":    "strokeLinecap",
	"stroke-linejoin":   "strokeLinejoin",
	"fill-rule":         "fillRule",
	"clip-rule":         "clipRule",
	"stroke-dasharray":  "strokeDasharray",
	"stroke-dashoffset": "strokeDashoffset",
}

var attributeRe = func() *regexp.Regexp {
	names := make([]string, 0, len(AttributeCasing))
	for k := range AttributeCasing {
		names = append(names, regexp.QuoteMeta(k))
	}
	// longest first so stroke-linecap wins over a shorter prefix
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return regexp.MustCompile(`(\s)(` + strings.Join(names, "|") + `)(\s*=\s*[{"'])`)
}()

type edit struct {
	start, end int
	text       string
}

// applyEdits applies non-overlapping edits to src.
func applyEdits(src string, edits []edit) string {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	var sb strings.Builder
	last := 0
	for _, e := range edits {
		if e.start < last {
			continue
		}
		sb.WriteString(src[last:e.start])
		sb.WriteString(e.text)
		last = e.end
	}
	sb.WriteString(src[last:])
	return sb.String()
}

// openTagSpans returns the byte ranges of opening tag headers in code.
func openTagSpans(code string) [][2]int {
	tags, _ := syntax.Tags(code)
	var spans [][2]int
	for _, t := range tags {
		if !t.Closing {
			spans = append(spans, [2]int{t.Start, t.End})
		}
	}
	return spans
}

func inSpans(spans [][2]int, i int) bool {
	for _, s := range spans {
		if i >= s[0] && i < s[1] {
			return true
		}
	}
	return false
}

// FixAttributeCasing rewrites lower-case DOM attributes inside markup tags to
// their JSX prop names.
func FixAttributeCasing(file, code string) *models.LocalFixResult {
	spans := openTagSpans(code)
	if len(spans) == 0 {
		return models.NoLocalFix()
	}
	mask := syntax.Mask(code)

	var edits []edit
	renamed := make(map[string]bool)
	for _, m := range attributeRe.FindAllStringSubmatchIndex(code, -1) {
		nameStart, nameEnd := m[4], m[5]
		if !syntax.IsCode(mask, nameStart) || !inSpans(spans, nameStart) {
			continue
		}
		name := code[nameStart:nameEnd]
		edits = append(edits, edit{start: nameStart, end: nameEnd, text: AttributeCasing[name]})
		renamed[name] = true
	}
	if len(edits) == 0 {
		return models.NoLocalFix()
	}

	names := make([]string, 0, len(renamed))
	for n := range renamed {
		names = append(names, n+"→"+AttributeCasing[n])
	}
	sort.Strings(names)
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: applyEdits(code, edits)},
		Description: "Corrected attribute casing: " + strings.Join(names, ", "),
		FixType:     FixAttributeCaseType,
	}
}

// FixVoidElements rewrites void elements to self-closing form and drops
// their closing tags: <img src="a"></img> and <br> both become <x … />.
func FixVoidElements(file, code string) *models.LocalFixResult {
	tags, _ := syntax.Tags(code)
	var edits []edit
	for _, t := range tags {
		if !syntax.IsVoidElement(t.Name) {
			continue
		}
		switch {
		case t.Closing:
			start := t.Start
			// swallow whitespace between <img …> and </img>
			for start > 0 && (code[start-1] == ' ' || code[start-1] == '\t') {
				start--
			}
			if start > 0 && code[start-1] == '>' {
				edits = append(edits, edit{start: start, end: t.End})
			} else {
				edits = append(edits, edit{start: t.Start, end: t.End})
			}
		case !t.SelfClosing:
			head := strings.TrimRight(code[t.Start:t.End-1], " \t\n")
			edits = append(edits, edit{start: t.Start, end: t.End, text: head + " />"})
		}
	}
	if len(edits) == 0 {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: applyEdits(code, edits)},
		Description: fmt.Sprintf("Made %d void element tag(s) self-closing", len(edits)),
		FixType:     FixVoidElementType,
	}
}

var returnParenRe = regexp.MustCompile(`(?:\breturn|=>)\s*\(`)

// FixFragmentWrap wraps sibling root elements of a parenthesized markup
// return in a fragment.
func FixFragmentWrap(file, code string) *models.LocalFixResult {
	mask := syntax.Mask(code)
	var edits []edit
	for _, m := range returnParenRe.FindAllStringIndex(code, -1) {
		open := m[1] - 1
		if !syntax.IsCode(mask, m[0]) {
			continue
		}
		close := syntax.FindMatching(code, open)
		if close < 0 {
			continue
		}
		body := code[open+1 : close]
		if syntax.StartsWithFragment(body) || syntax.CountRootElements(body) < 2 {
			continue
		}
		trimmed := strings.TrimSpace(body)
		lead := body[:strings.Index(body, trimmed)]
		trail := body[len(lead)+len(trimmed):]
		indent := lead[strings.LastIndexByte(lead, '\n')+1:]
		wrapped := lead + "<>" + strings.ReplaceAll("\n"+indent+trimmed, "\n", "\n  ") + "\n" + indent + "</>" + trail
		if !strings.Contains(lead, "\n") {
			wrapped = lead + "<>" + trimmed + "</>" + trail
		}
		edits = append(edits, edit{start: open + 1, end: close, text: wrapped})
	}
	if len(edits) == 0 {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: applyEdits(code, edits)},
		Description: fmt.Sprintf("Wrapped %d multi-root return(s) in a fragment", len(edits)),
		FixType:     FixFragmentWrapType,
	}
}
