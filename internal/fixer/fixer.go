// Package fixer holds the deterministic repair rules tried before any
// language model is involved.
//
// Every rule is a pure function of its inputs. A rule either declines with
// models.NoLocalFix or returns the full new content of every file it touched.
package fixer

import (
	"path"
	"regexp"
	"strings"

	"github.com/harrison/mender/internal/models"
)

// Fix types reported in LocalFixResult.FixType.
const (
	FixBareSpecifierType    = "bare-specifier"
	FixMissingModuleType    = "missing-module"
	FixMissingImportType    = "missing-import"
	FixAttributeCaseType    = "attribute-case"
	FixFrameworkImportType  = "framework-import"
	FixFragmentWrapType     = "fragment-wrap"
	FixVoidElementType      = "void-element"
	FixBracketBalanceType   = "bracket-balance"
	FixOptionalChainingType = "optional-chaining"
	FixIdentifierTypoType   = "identifier-typo"
	FixProactiveType        = "proactive"
)

var (
	bareMsgRe      = regexp.MustCompile(`["'](/?[^"'\s]+)["'] was a bare specifier|Failed to resolve module specifier ["'](/?(?:src|app|components|lib|utils|hooks|pages)/[^"'\s]*)["']`)
	undefinedMsgRe = regexp.MustCompile(`(?:^|[\s:'"])([A-Za-z_$][\w$]*) is not defined|Cannot find name '([A-Za-z_$][\w$]*)'`)
	attributeMsgRe = regexp.MustCompile(`(?i)Invalid DOM property|Unknown event handler property|is not a valid (?:attribute|prop)|Did you mean ` + "`" + `?(?:className|htmlFor|on[A-Z])`)
	frameworkMsgRe = regexp.MustCompile(`'React' (?:must be in scope|refers to a UMD global)|React is not defined`)
	adjacentMsgRe  = regexp.MustCompile(`(?i)Adjacent JSX elements|must have (?:one|a single) parent element|multiple root`)
	voidMsgRe      = regexp.MustCompile(`(?i)void element|closing tag for <(?:area|base|br|col|embed|hr|img|input|link|meta|param|source|track|wbr)>`)
	syntaxMsgRe    = regexp.MustCompile(`(?i)Unexpected end of (?:input|file)|Unexpected token|'[)}\]]' expected|Expected "[)}\]]"|missing \) after|Unterminated|SyntaxError`)
	propertyMsgRe  = regexp.MustCompile(`Cannot read propert(?:y|ies) of (?:undefined|null) \(reading '([^']+)'\)|Cannot read property '([^']+)' of (?:undefined|null)|(?:undefined|null) is not an object \(evaluating '(?:[^']*\.)?([^'.]+)'\)`)
)

func submatch(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	for _, g := range m[1:] {
		if g != "" {
			return g, true
		}
	}
	return "", true
}

// TryLocalFix runs the rule families against one file in fixed order and
// returns the first successful result. files is optional context.
func TryLocalFix(errorMessage, file, code string, files models.FileSet) *models.LocalFixResult {
	if code == "" {
		return models.NoLocalFix()
	}

	// 1. bare specifier
	if bare, ok := submatch(bareMsgRe, errorMessage); ok && bare != "" {
		if r := FixBareSpecifier(file, code, bare); r.Success {
			return r
		}
	}

	undefinedID, _ := submatch(undefinedMsgRe, errorMessage)

	// 2. missing import
	if undefinedID != "" {
		if r := FixMissingImport(file, code, undefinedID); r.Success {
			return r
		}
	}

	// 3. attribute casing
	if attributeMsgRe.MatchString(errorMessage) {
		if r := FixAttributeCasing(file, code); r.Success {
			return r
		}
	}

	// 4. framework import
	if frameworkMsgRe.MatchString(errorMessage) {
		if r := FixFrameworkImport(file, code); r.Success {
			return r
		}
	}

	// 5. markup
	if adjacentMsgRe.MatchString(errorMessage) {
		if r := FixFragmentWrap(file, code); r.Success {
			return r
		}
	}
	if voidMsgRe.MatchString(errorMessage) {
		if r := FixVoidElements(file, code); r.Success {
			return r
		}
	}

	// 6. brackets
	if syntaxMsgRe.MatchString(errorMessage) {
		if r := FixBrackets(file, code); r.Success {
			return r
		}
	}

	// 7. defensive access
	if prop, ok := submatch(propertyMsgRe, errorMessage); ok && prop != "" {
		if r := FixOptionalChaining(file, code, prop); r.Success {
			return r
		}
	}

	// 8. identifier typo
	if undefinedID != "" {
		if r := FixIdentifierTypo(file, code, undefinedID); r.Success {
			return r
		}
	}

	return models.NoLocalFix()
}

// MultiFile runs the rules that span the file set: bare specifiers and
// unresolved relative modules are rewritten in every importing file, and a
// known symbol is imported wherever it is used. Results are merged.
func MultiFile(errorMessage string, parsed *models.ParsedError, files models.FileSet) *models.LocalFixResult {
	var results []*models.LocalFixResult
	if parsed != nil {
		switch parsed.Type {
		case models.ErrorTypeBareSpecifier:
			results = FixBareSpecifiers(files, parsed.ImportPath)
		case models.ErrorTypeModuleNotFound:
			results = FixMissingModule(files, parsed.ImportPath)
		case models.ErrorTypeUndefinedIdentifier:
			results = FixMissingImports(files, parsed.Identifier)
		}
	}
	if len(results) == 0 {
		if bare, ok := submatch(bareMsgRe, errorMessage); ok && bare != "" {
			results = FixBareSpecifiers(files, bare)
		}
	}
	return Merge(results, FixTypeOf(results))
}

// FixTypeOf returns the shared fix type of results, or "" when empty.
func FixTypeOf(results []*models.LocalFixResult) string {
	if len(results) == 0 {
		return ""
	}
	return results[0].FixType
}

// Merge folds several results into one covering every touched file.
func Merge(results []*models.LocalFixResult, fixType string) *models.LocalFixResult {
	merged := &models.LocalFixResult{Files: models.FileSet{}, FixType: fixType}
	var descriptions []string
	for _, r := range results {
		if r == nil || !r.Success {
			continue
		}
		merged.Files.Merge(r.Files)
		for _, p := range r.Files.Paths() {
			descriptions = append(descriptions, p+": "+r.Description)
		}
	}
	if len(merged.Files) == 0 {
		return models.NoLocalFix()
	}
	merged.Success = true
	merged.Description = strings.Join(descriptions, "; ")
	return merged
}

// IsCodeFile reports whether p is a script or component source file.
func IsCodeFile(p string) bool {
	switch path.Ext(p) {
	case ".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", "":
		return true
	}
	return false
}

func isMarkupFile(p string) bool {
	switch path.Ext(p) {
	case ".jsx", ".tsx", ".js", "":
		return true
	}
	return false
}

// Proactive applies the hygiene rules that need no error message
// (attribute casing, void elements, bracket balance) to every source file.
// One result is returned per file changed, ordered by path.
func Proactive(files models.FileSet) []*models.LocalFixResult {
	var results []*models.LocalFixResult
	for _, p := range files.Paths() {
		if !IsCodeFile(p) {
			continue
		}
		code := files[p]
		var applied []string
		if isMarkupFile(p) {
			if r := FixAttributeCasing(p, code); r.Success {
				code = r.Files[p]
				applied = append(applied, r.Description)
			}
			if r := FixVoidElements(p, code); r.Success {
				code = r.Files[p]
				applied = append(applied, r.Description)
			}
		}
		if r := FixBrackets(p, code); r.Success {
			code = r.Files[p]
			applied = append(applied, r.Description)
		}
		if len(applied) > 0 {
			results = append(results, &models.LocalFixResult{
				Success:     true,
				Files:       models.FileSet{p: code},
				Description: strings.Join(applied, "; "),
				FixType:     FixProactiveType,
			})
		}
	}
	return results
}
