// Package validation checks candidate source files for structural problems
// and verifies that a proposed fix plausibly addresses the error it targets.
package validation

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/syntax"
)

// SyntaxResult is the outcome of a single structural check.
type SyntaxResult struct {
	Valid bool
	Issue *syntax.Issue
}

// ValidateSyntax scans code once with a bracket stack, ignoring brackets in
// comments, strings and template literals.
func ValidateSyntax(code string) SyntaxResult {
	report := syntax.CheckBrackets(code)
	return SyntaxResult{Valid: report.Valid, Issue: report.Issue}
}

// ValidateMarkup pairs opening and closing tags. Void elements and
// self-closing tags do not take part in balancing.
func ValidateMarkup(code string) SyntaxResult {
	r := syntax.CheckMarkup(code)
	return SyntaxResult{Valid: r.Valid, Issue: r.Issue}
}

// FileError is a single validation failure with its location.
type FileError struct {
	Path    string
	Line    int
	Column  int
	Message string
}

func (e FileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Result collects every failure found across a file set.
type Result struct {
	Errors []FileError
}

// Error returns the aggregated message.
func (r *Result) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(r.Errors)))
	for _, err := range r.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if validation found errors
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

type fileKind int

const (
	kindOther fileKind = iota
	kindScript
	kindMarkup
	kindStyle
	kindJSON
)

func kindOf(p string) fileKind {
	switch path.Ext(p) {
	case ".jsx", ".tsx", ".js":
		return kindMarkup
	case ".ts", ".mjs", ".cjs":
		return kindScript
	case ".css", ".scss":
		return kindStyle
	case ".json":
		return kindJSON
	}
	return kindOther
}

// ValidateFile checks one file according to its extension. Markup is only
// checked for files that may contain JSX.
func ValidateFile(p, content string) []FileError {
	var errs []FileError
	add := func(issue *syntax.Issue) {
		fe := FileError{Path: p, Message: "invalid"}
		if issue != nil {
			fe.Line, fe.Column, fe.Message = issue.Line, issue.Column, issue.Message
		}
		errs = append(errs, fe)
	}

	switch kindOf(p) {
	case kindJSON:
		if !json.Valid([]byte(content)) {
			errs = append(errs, FileError{Path: p, Message: "invalid JSON"})
		}
	case kindStyle, kindScript:
		if r := ValidateSyntax(content); !r.Valid {
			add(r.Issue)
		}
	case kindMarkup:
		if r := ValidateSyntax(content); !r.Valid {
			add(r.Issue)
		} else if r := ValidateMarkup(content); !r.Valid {
			add(r.Issue)
		}
	}
	return errs
}

// ValidateFiles validates every file of the set in path order. It returns nil
// when all files pass, or a *Result listing every failure.
func ValidateFiles(files models.FileSet) error {
	result := &Result{}
	for _, p := range files.Paths() {
		result.Errors = append(result.Errors, ValidateFile(p, files[p])...)
	}
	if result.HasErrors() {
		return result
	}
	return nil
}
