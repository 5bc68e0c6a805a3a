// Package analyzer turns raw runtime and build error strings into structured
// models.ParsedError records.
package analyzer

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/harrison/mender/internal/models"
)

// MaxRelatedFiles caps ParsedError.RelatedFiles.
const MaxRelatedFiles = 5

const (
	unknownConfidence = 0.3
	unknownPriority   = 5
)

var (
	sourceExt = `(?:tsx|ts|jsx|js|mjs|cjs)`
	// path/to/File.tsx:12:5, optionally with a ?query from a dev server URL
	fileLineRe = regexp.MustCompile(`((?:[\w@.\-]+/)*[\w@.\-]+\.` + sourceExt + `)(?:\?[^\s:)]*)?:(\d+)(?::(\d+))?`)
	// /src/App.tsx: Unexpected token (12:5)
	fileColonRe = regexp.MustCompile(`((?:[\w@.\-]+/)*[\w@.\-]+\.` + sourceExt + `):\s`)
	parenPosRe  = regexp.MustCompile(`\((\d+):(\d+)\)`)
	lineWordRe  = regexp.MustCompile(`(?i)\bline (\d+)(?:,? col(?:umn)? (\d+))?`)
)

// IsIgnorable reports whether message matches one of IgnorablePatterns.
func IsIgnorable(message string) bool {
	for _, re := range IgnorablePatterns {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// Match returns the first KnownPatterns entry matching message, or nil.
func Match(message string) (*ErrorPattern, []string) {
	for i := range KnownPatterns {
		if m := KnownPatterns[i].Regexp.FindStringSubmatch(message); m != nil {
			return &KnownPatterns[i], m
		}
	}
	return nil, nil
}

// Analyze classifies message. stack and files are optional; when files is
// non-empty the extracted location is normalized against its keys and
// related files are discovered.
func Analyze(message, stack string, files models.FileSet) *models.ParsedError {
	p := &models.ParsedError{
		Message: message,
		Stack:   stack,
	}

	if IsIgnorable(message) {
		p.Type = models.ErrorTypeNetwork
		p.Category = models.CategoryTransient
		p.IsIgnorable = true
		p.Confidence = 1
		p.Priority = unknownPriority
		p.SuggestedFix = "No action needed; the error is transient."
		return p
	}

	if pattern, m := Match(message); pattern != nil {
		p.Type = pattern.Type
		p.Category = pattern.Category
		p.Priority = pattern.Priority
		p.Confidence = pattern.Confidence
		p.IsAutoFixable = pattern.AutoFixable
		if pattern.Extract != nil {
			pattern.Extract(m, p)
		}
		if p.Type == models.ErrorTypeBareSpecifier && !IsProjectPath(p.ImportPath) {
			p.IsAutoFixable = false
		}
	} else {
		p.Type = models.ErrorTypeUnknown
		p.Category = models.CategoryUnknown
		p.Confidence = unknownConfidence
		p.Priority = unknownPriority
	}

	extractLocation(p, files)
	p.SuggestedFix = suggestions[p.Type]
	if len(files) > 0 {
		p.RelatedFiles = relatedFiles(p, files)
	}
	return p
}

// extractLocation fills File/Line/Column from the message, then the stack.
func extractLocation(p *models.ParsedError, files models.FileSet) {
	for _, text := range []string{p.Message, p.Stack} {
		if m := fileLineRe.FindStringSubmatch(text); m != nil {
			p.File = NormalizePath(m[1], files)
			p.Line, _ = strconv.Atoi(m[2])
			if m[3] != "" {
				p.Column, _ = strconv.Atoi(m[3])
			}
			return
		}
	}

	for _, text := range []string{p.Message, p.Stack} {
		if m := fileColonRe.FindStringSubmatch(text); m != nil {
			p.File = NormalizePath(m[1], files)
			break
		}
	}
	if m := parenPosRe.FindStringSubmatch(p.Message); m != nil {
		p.Line, _ = strconv.Atoi(m[1])
		p.Column, _ = strconv.Atoi(m[2])
		return
	}
	if m := lineWordRe.FindStringSubmatch(p.Message); m != nil {
		p.Line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			p.Column, _ = strconv.Atoi(m[2])
		}
	}
}

// NormalizePath maps a path seen in an error (often prefixed by a dev server
// origin or a leading slash) onto a key of files. Without a match the path is
// returned with leading "./" and "/" removed.
func NormalizePath(path string, files models.FileSet) string {
	cleaned := strings.TrimPrefix(path, "./")
	cleaned = strings.TrimLeft(cleaned, "/")
	if _, ok := files[path]; ok {
		return path
	}
	if _, ok := files[cleaned]; ok {
		return cleaned
	}
	// Longest key that is a path suffix of the reported path, or vice versa.
	best := ""
	for _, key := range files.Paths() {
		k := strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
		if strings.HasSuffix(cleaned, "/"+k) || strings.HasSuffix(k, "/"+cleaned) {
			if len(key) > len(best) {
				best = key
			}
		}
	}
	if best != "" {
		return best
	}
	return cleaned
}

// declarationPatterns match a file that exports or defines name.
func declarationPatterns(name string) []*regexp.Regexp {
	q := regexp.QuoteMeta(name)
	return []*regexp.Regexp{
		regexp.MustCompile(`\bexport\s+(?:default\s+)?(?:async\s+)?(?:function\*?|const|let|var|class|interface|type|enum)\s+` + q + `\b`),
		regexp.MustCompile(`\bexport\s*\{[^}]*\b` + q + `\b[^}]*\}`),
		regexp.MustCompile(`(?m)^\s*(?:async\s+)?(?:function\*?|const|let|var|class)\s+` + q + `\b`),
	}
}

// relatedFiles finds files that mention the import path or declare the
// identifier. The origin file is excluded and the result is sorted and capped.
func relatedFiles(p *models.ParsedError, files models.FileSet) []string {
	seen := make(map[string]bool)
	add := func(path string) {
		if path != p.File {
			seen[path] = true
		}
	}

	if p.ImportPath != "" {
		for path, content := range files {
			if strings.Contains(content, p.ImportPath) {
				add(path)
			}
		}
	}
	if p.Identifier != "" && isIdentifier(p.Identifier) {
		patterns := declarationPatterns(p.Identifier)
		for path, content := range files {
			for _, re := range patterns {
				if re.MatchString(content) {
					add(path)
					break
				}
			}
		}
	}

	related := make([]string, 0, len(seen))
	for path := range seen {
		related = append(related, path)
	}
	sort.Strings(related)
	if len(related) > MaxRelatedFiles {
		related = related[:MaxRelatedFiles]
	}
	if len(related) == 0 {
		return nil
	}
	return related
}

var identRe = regexp.MustCompile(`^` + identifier + `$`)

func isIdentifier(s string) bool {
	return identRe.MatchString(s)
}

// classifyOrder is evaluated top to bottom; the first category with a
// matching keyword wins.
var classifyOrder = []struct {
	category models.Category
	keywords []string
}{
	{models.CategoryTransient, []string{
		"chunkloaderror", "loading chunk", "resizeobserver", "aborterror", "aborted",
		"timeout", "timed out", "network", "failed to fetch", "econnrefused",
		"econnreset", "rate limit", "service unavailable",
	}},
	{models.CategorySyntax, []string{
		"syntaxerror", "unexpected token", "unexpected end", "unterminated",
		"missing ) after", "expected",
	}},
	{models.CategoryImport, []string{
		"is not defined", "cannot find module", "cannot find name", "module not found",
		"bare specifier", "failed to resolve", "can't resolve", "does not provide an export",
	}},
	{models.CategoryReactiveUI, []string{
		"hook", "re-render", "rendered more", "rendered fewer", "usestate", "useeffect",
	}},
	{models.CategoryType, []string{
		"is not assignable", "does not exist on type", "argument of type", "is not a function",
	}},
	{models.CategoryMarkup, []string{
		"jsx", "closing tag", "adjacent", "void element",
	}},
	{models.CategoryAsync, []string{
		"promise", "await", "async", "unhandled rejection",
	}},
	{models.CategoryRuntime, []string{
		"cannot read propert", "undefined", "null", "typeerror", "rangeerror", "referenceerror",
	}},
}

// Classify maps message to a category with cheap substring checks. It is
// coarser than Analyze and intended for quick strategy selection.
func Classify(message string) models.Category {
	lower := strings.ToLower(message)
	for _, entry := range classifyOrder {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.category
			}
		}
	}
	return models.CategoryUnknown
}
