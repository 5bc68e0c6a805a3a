package fixer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/similarity"
	"github.com/harrison/mender/internal/syntax"
)

// FixBrackets appends the closers that balance code. Existing code is never
// removed or reordered, so running it on its own output is a no-op. Files
// with a mismatched bracket or an open comment or template are left alone.
func FixBrackets(file, code string) *models.LocalFixResult {
	report := syntax.CheckBrackets(code)
	if report.Valid || report.Issue.Kind != syntax.IssueUnclosed || report.Missing == "" {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: code + report.Missing},
		Description: fmt.Sprintf("Appended missing %q at end of file", report.Missing),
		FixType:     FixBracketBalanceType,
	}
}

func isIdentChar(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// wordBefore returns the identifier ending just before offset i.
func wordBefore(code string, i int) string {
	j := i
	for j > 0 && isIdentChar(code[j-1]) {
		j--
	}
	return code[j:i]
}

// isAssignmentAt reports whether the text at i starts an assignment or
// update operator (=, +=, ++ …) rather than a comparison or arrow.
func isAssignmentAt(code string, i int) bool {
	for i < len(code) && (code[i] == ' ' || code[i] == '\t') {
		i++
	}
	rest := code[i:]
	switch {
	case strings.HasPrefix(rest, "==") || strings.HasPrefix(rest, "=>"):
		return false
	case strings.HasPrefix(rest, "="):
		return true
	case strings.HasPrefix(rest, "++") || strings.HasPrefix(rest, "--"):
		return true
	}
	for _, op := range []string{"+=", "-=", "*=", "/=", "%=", "&&=", "||=", "??=", "|=", "&=", "^=", "**="} {
		if strings.HasPrefix(rest, op) {
			return true
		}
	}
	return false
}

// FixOptionalChaining rewrites every member access .prop in code to ?.prop,
// skipping accesses that are already optional, assignment targets, this.prop
// and occurrences inside strings or comments.
func FixOptionalChaining(file, code, prop string) *models.LocalFixResult {
	if prop == "" {
		return models.NoLocalFix()
	}
	mask := syntax.Mask(code)
	re := regexp.MustCompile(`\.` + regexp.QuoteMeta(prop) + `\b`)

	var edits []edit
	for _, m := range re.FindAllStringIndex(code, -1) {
		dot := m[0]
		if !syntax.IsCode(mask, dot) || dot == 0 {
			continue
		}
		prev := code[dot-1]
		if prev == '?' || prev == '.' {
			continue
		}
		if !isIdentChar(prev) && prev != ')' && prev != ']' {
			continue
		}
		if wordBefore(code, dot) == "this" {
			continue
		}
		if isAssignmentAt(code, m[1]) {
			continue
		}
		edits = append(edits, edit{start: dot, end: dot + 1, text: "?."})
	}
	if len(edits) == 0 {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: applyEdits(code, edits)},
		Description: fmt.Sprintf("Added optional chaining to %d access(es) of .%s", len(edits), prop),
		FixType:     FixOptionalChainingType,
	}
}

// builtins are globals that are never typos of a local name.
var builtins = map[string]bool{
	"window": true, "document": true, "console": true, "Math": true, "JSON": true,
	"Object": true, "Array": true, "String": true, "Number": true, "Boolean": true,
	"Promise": true, "Date": true, "Map": true, "Set": true, "Error": true,
	"fetch": true, "setTimeout": true, "clearTimeout": true, "setInterval": true,
	"clearInterval": true, "localStorage": true, "sessionStorage": true,
	"process": true, "require": true, "module": true, "exports": true,
	"undefined": true, "NaN": true, "Infinity": true, "globalThis": true,
}

// IsKnownBuiltin reports whether id is a language global or a symbol of
// the known-import table.
func IsKnownBuiltin(id string) bool {
	if builtins[id] {
		return true
	}
	_, ok := KnownSymbols[id]
	return ok
}

// FixIdentifierTypo replaces whole-word occurrences of an undefined
// identifier with the most similar declared name, when one scores above
// similarity.DefaultThreshold.
func FixIdentifierTypo(file, code, id string) *models.LocalFixResult {
	if id == "" || IsKnownBuiltin(id) {
		return models.NoLocalFix()
	}
	match, ok := similarity.BestMatch(id, declaredNames(code), similarity.DefaultThreshold)
	if !ok {
		return models.NoLocalFix()
	}

	mask := syntax.Mask(code)
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(id) + `\b`)
	var edits []edit
	for _, m := range re.FindAllStringIndex(code, -1) {
		start := m[0]
		if !syntax.IsCode(mask, start) {
			continue
		}
		// obj.id is a property, not the unbound name; ...id is a spread
		if start > 0 && code[start-1] == '.' && !strings.HasSuffix(code[:start], "...") {
			continue
		}
		// \b treats $ as a boundary
		if start > 0 && code[start-1] == '$' || m[1] < len(code) && code[m[1]] == '$' {
			continue
		}
		edits = append(edits, edit{start: start, end: m[1], text: match.Candidate})
	}
	if len(edits) == 0 {
		return models.NoLocalFix()
	}
	return &models.LocalFixResult{
		Success:     true,
		Files:       models.FileSet{file: applyEdits(code, edits)},
		Description: fmt.Sprintf("Renamed %s to %s (similarity %.2f)", id, match.Candidate, match.Score),
		FixType:     FixIdentifierTypoType,
	}
}
