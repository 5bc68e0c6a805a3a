package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/harrison/mender/internal/fixer"
	"github.com/harrison/mender/internal/models"
)

// Deductions applied to the running score per issue severity.
const (
	errorWeight   = 0.4
	warningWeight = 0.15
	infoWeight    = 0.05

	highConfidence   = 0.9
	mediumConfidence = 0.6

	// minFileLength is the size below which a replacement of a longer
	// original is suspicious.
	minFileLength = 20
)

// VerifyOptions describes one candidate fix.
type VerifyOptions struct {
	Original models.FileSet // content before the fix
	Fixed    models.FileSet // full replacement content, only the touched files
	Error    string
	Parsed   *models.ParsedError // optional, enables the per-type checks
	Strict   bool                // adds regression checks against Original
}

type verifier struct {
	result *models.VerificationResult
}

func (v *verifier) add(sev models.Severity, file string, line int, msg string) {
	v.result.Issues = append(v.result.Issues, models.VerificationIssue{
		Severity: sev, Message: msg, File: file, Line: line,
	})
}

func (v *verifier) suggest(s string) {
	for _, existing := range v.result.Suggestions {
		if existing == s {
			return
		}
	}
	v.result.Suggestions = append(v.result.Suggestions, s)
}

// VerifyFix checks a candidate fix and scores it. The result is valid when
// no error-severity issue was found.
func VerifyFix(opts VerifyOptions) *models.VerificationResult {
	v := &verifier{result: &models.VerificationResult{}}

	if len(opts.Fixed) == 0 {
		v.add(models.SeverityError, "", 0, "fix produced no files")
	}

	for _, p := range opts.Fixed.Paths() {
		content := opts.Fixed[p]
		original, existed := opts.Original[p]

		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			v.add(models.SeverityError, p, 0, "file is empty")
			v.suggest("Return the complete file content, not a fragment.")
			continue
		}
		if len(trimmed) < minFileLength && len(strings.TrimSpace(original)) >= minFileLength {
			v.add(models.SeverityWarning, p, 0, "file is suspiciously short")
		}
		if existed && content == original {
			v.add(models.SeverityInfo, p, 0, "file unchanged")
		}

		checkStructure(v, p, content, opts.Parsed)
		if opts.Strict && existed {
			checkRegressions(v, p, original, content)
		}
	}

	if opts.Parsed != nil {
		checkAddressed(v, opts.Parsed, opts.Fixed)
	}

	score(v.result)
	return v.result
}

func checkStructure(v *verifier, p, content string, parsed *models.ParsedError) {
	kind := kindOf(p)
	if kind == kindJSON || kind == kindOther {
		for _, fe := range ValidateFile(p, content) {
			v.add(models.SeverityError, p, fe.Line, fe.Message)
		}
		return
	}

	if r := ValidateSyntax(content); !r.Valid {
		v.add(models.SeverityError, p, r.Issue.Line, "syntax: "+r.Issue.Message)
		v.suggest("Balance brackets and close every string, comment and template literal.")
		return
	}
	if kind != kindMarkup {
		return
	}
	if r := ValidateMarkup(content); !r.Valid {
		sev := models.SeverityWarning
		if parsed != nil && parsed.Type == models.ErrorTypeMarkup {
			sev = models.SeverityError
		}
		v.add(sev, p, r.Issue.Line, "markup: "+r.Issue.Message)
		v.suggest("Close every non-void tag and wrap sibling roots in a fragment.")
	}
}

var exportRe = regexp.MustCompile(`(?m)^\s*export\b`)

func checkRegressions(v *verifier, p, original, content string) {
	if before, after := len(exportRe.FindAllString(original, -1)), len(exportRe.FindAllString(content, -1)); after < before {
		v.add(models.SeverityError, p, 0, fmt.Sprintf("export count dropped from %d to %d", before, after))
		v.suggest("Keep every export of the original file.")
	}
	if len(content)*2 < len(original) {
		v.add(models.SeverityWarning, p, 0, fmt.Sprintf("output is %d bytes, less than half of the original %d", len(content), len(original)))
	}
	if strings.Contains(original, "return (") && !strings.Contains(content, "return (") {
		v.add(models.SeverityWarning, p, 0, "the markup return block of the original is gone")
	}
}

// checkAddressed applies the per-type "does the fix address the error" rule.
func checkAddressed(v *verifier, parsed *models.ParsedError, fixed models.FileSet) {
	switch parsed.Type {
	case models.ErrorTypeUndefinedIdentifier:
		id := parsed.Identifier
		if id == "" {
			return
		}
		word := regexp.MustCompile(`\b` + regexp.QuoteMeta(id) + `\b`)
		for _, p := range fixed.Paths() {
			code := fixed[p]
			if word.MatchString(code) && !fixer.IsImported(code, id) && !fixer.IsDeclared(code, id) {
				v.add(models.SeverityError, p, 0, fmt.Sprintf("%s is still used without an import or declaration", id))
				v.suggest(fmt.Sprintf("Import %s or declare it before use.", id))
			}
		}

	case models.ErrorTypeBareSpecifier:
		if stillImports(fixed, parsed.ImportPath) {
			v.add(models.SeverityError, "", 0, fmt.Sprintf("bare specifier %q is still imported", parsed.ImportPath))
			v.suggest("Use a relative import path starting with ./ or ../.")
		}

	case models.ErrorTypeModuleNotFound:
		if stillImports(fixed, parsed.ImportPath) {
			v.add(models.SeverityWarning, "", 0, fmt.Sprintf("%q is still imported", parsed.ImportPath))
		}

	case models.ErrorTypeProperty:
		prop := parsed.MissingProperty
		if prop == "" {
			return
		}
		guarded := regexp.MustCompile(`\?\.\s*` + regexp.QuoteMeta(prop) + `\b`)
		for _, code := range fixed {
			if guarded.MatchString(code) {
				return
			}
		}
		v.add(models.SeverityWarning, "", 0, fmt.Sprintf("no optional access of .%s found", prop))
		v.suggest(fmt.Sprintf("Guard reads of .%s with optional chaining or a default value.", prop))
	}
}

func stillImports(files models.FileSet, spec string) bool {
	if spec == "" {
		return false
	}
	spec = strings.TrimPrefix(spec, "/")
	re := regexp.MustCompile(`["']/?` + regexp.QuoteMeta(spec) + `(?:\.(?:tsx|ts|jsx|js|mjs|cjs))?["']`)
	for _, code := range files {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}

// score computes the numeric confidence and its bucket.
func score(r *models.VerificationResult) {
	s := 1.0
	errs := 0
	for _, issue := range r.Issues {
		switch issue.Severity {
		case models.SeverityError:
			s -= errorWeight
			errs++
		case models.SeverityWarning:
			s -= warningWeight
		case models.SeverityInfo:
			s -= infoWeight
		}
	}
	s = math.Max(0, math.Min(1, s))
	r.Score = s
	r.IsValid = errs == 0
	switch {
	case s >= highConfidence:
		r.Confidence = models.ConfidenceHigh
	case s >= mediumConfidence:
		r.Confidence = models.ConfidenceMedium
	default:
		r.Confidence = models.ConfidenceLow
	}
}
