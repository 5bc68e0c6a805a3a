package analyzer

import (
	"regexp"
	"strings"

	"github.com/harrison/mender/internal/models"
)

// ErrorPattern is one row of the classification table. Patterns are tried in
// table order and the first match wins, so the order encodes precedence.
type ErrorPattern struct {
	Name        string
	Regexp      *regexp.Regexp
	Type        models.ErrorType
	Category    models.Category
	Priority    int     // 1 (most urgent) to 5
	Confidence  float64 // confidence of the classification when it matches
	AutoFixable bool
	// Extract copies submatches into the record. May be nil.
	Extract func(m []string, p *models.ParsedError)
}

// identifier is a JS identifier as it appears in error messages.
const identifier = `[A-Za-z_$][\w$]*`

// bareRoots are the source-root prefixes that make an import specifier look
// like an absolute project path instead of a package name.
var bareRoots = []string{"src/", "app/", "components/", "lib/", "utils/", "hooks/", "pages/", "/src/", "/app/", "/components/"}

// IsProjectPath reports whether spec looks like a path inside the project
// rather than a package installed from a registry.
func IsProjectPath(spec string) bool {
	for _, root := range bareRoots {
		if strings.HasPrefix(spec, root) {
			return true
		}
	}
	return false
}

func extractImportPath(m []string, p *models.ParsedError) {
	p.ImportPath = firstNonEmpty(m[1:]...)
}

func extractIdentifier(m []string, p *models.ParsedError) {
	p.Identifier = firstNonEmpty(m[1:]...)
}

func extractProperty(m []string, p *models.ParsedError) {
	prop := firstNonEmpty(m[1:]...)
	// Safari reports the whole expression: 'user.profile.name'
	if i := strings.LastIndexByte(prop, '.'); i >= 0 {
		prop = prop[i+1:]
	}
	p.MissingProperty = prop
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// IgnorablePatterns are checked before KnownPatterns. A match means the error
// is not caused by the source files and must never trigger a fix attempt.
var IgnorablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ChunkLoadError|Loading (?:CSS )?chunk \S+ failed|Failed to fetch dynamically imported module|error loading dynamically imported module`),
	regexp.MustCompile(`(?i)ResizeObserver loop`),
	regexp.MustCompile(`(?i)AbortError|The (?:user|operation) (?:was )?aborted|signal is aborted`),
	regexp.MustCompile(`(?i)^\s*(?:\w*Error:\s*)?(?:timeout|timeout exceeded|request timed out|operation timed out)\.?\s*$`),
}

// KnownPatterns is the ordered classification table.
var KnownPatterns = []ErrorPattern{
	// Import resolution comes first: these are the most precise messages and
	// the cheapest to repair.
	{
		Name:        "bare-specifier",
		Regexp:      regexp.MustCompile(`["']([^"'\s]+)["'] was a bare specifier`),
		Type:        models.ErrorTypeBareSpecifier,
		Category:    models.CategoryImport,
		Priority:    1,
		Confidence:  0.95,
		AutoFixable: true,
		Extract:     extractImportPath,
	},
	{
		Name:        "unresolved-specifier",
		Regexp:      regexp.MustCompile(`Failed to resolve module specifier ["']((?:/?(?:src|app|components|lib|utils|hooks|pages)/)[^"'\s]*)["']`),
		Type:        models.ErrorTypeBareSpecifier,
		Category:    models.CategoryImport,
		Priority:    1,
		Confidence:  0.9,
		AutoFixable: true,
		Extract:     extractImportPath,
	},
	{
		Name:        "module-not-found",
		Regexp:      regexp.MustCompile(`(?i)(?:Cannot find module|Can't resolve|Could not resolve|Failed to resolve import|Failed to resolve module specifier|Failed to load module script:?)\s*["']([^"']+)["']`),
		Type:        models.ErrorTypeModuleNotFound,
		Category:    models.CategoryImport,
		Priority:    1,
		Confidence:  0.85,
		AutoFixable: true,
		Extract:     extractImportPath,
	},
	{
		Name:        "missing-export",
		Regexp:      regexp.MustCompile(`does not provide an export named ["'](` + identifier + `)["']`),
		Type:        models.ErrorTypeModuleNotFound,
		Category:    models.CategoryImport,
		Priority:    2,
		Confidence:  0.8,
		AutoFixable: false,
		Extract:     extractIdentifier,
	},
	{
		Name:        "undefined-identifier",
		Regexp:      regexp.MustCompile(`(?:^|[\s:'"])(` + identifier + `) is not defined`),
		Type:        models.ErrorTypeUndefinedIdentifier,
		Category:    models.CategoryImport,
		Priority:    1,
		Confidence:  0.9,
		AutoFixable: true,
		Extract:     extractIdentifier,
	},
	{
		Name:        "cannot-find-name",
		Regexp:      regexp.MustCompile(`Cannot find name '(` + identifier + `)'`),
		Type:        models.ErrorTypeUndefinedIdentifier,
		Category:    models.CategoryImport,
		Priority:    1,
		Confidence:  0.9,
		AutoFixable: true,
		Extract:     extractIdentifier,
	},

	// Framework rules
	{
		Name:       "hook-rules",
		Regexp:     regexp.MustCompile(`(?i)Invalid hook call|Rendered (?:more|fewer) hooks than|React Hook "?(` + identifier + `)"? is called|Too many re-renders|Hooks can only be called`),
		Type:       models.ErrorTypeHook,
		Category:   models.CategoryReactiveUI,
		Priority:   2,
		Confidence: 0.7,
		Extract:    extractIdentifier,
	},

	// Property access on missing values
	{
		Name:        "read-property",
		Regexp:      regexp.MustCompile(`Cannot read propert(?:y|ies) of (?:undefined|null) \(reading '([^']+)'\)|Cannot read property '([^']+)' of (?:undefined|null)|(?:undefined|null) is not an object \(evaluating '([^']+)'\)`),
		Type:        models.ErrorTypeProperty,
		Category:    models.CategoryRuntime,
		Priority:    2,
		Confidence:  0.85,
		AutoFixable: true,
		Extract:     extractProperty,
	},

	// Type checker
	{
		Name:       "not-assignable",
		Regexp:     regexp.MustCompile(`Type '([^']+)' is not assignable to type '([^']+)'`),
		Type:       models.ErrorTypeTypeError,
		Category:   models.CategoryType,
		Priority:   3,
		Confidence: 0.75,
		Extract: func(m []string, p *models.ParsedError) {
			p.ActualType, p.ExpectedType = m[1], m[2]
		},
	},
	{
		Name:       "missing-property-on-type",
		Regexp:     regexp.MustCompile(`Property '([^']+)' does not exist on type '([^']+)'`),
		Type:       models.ErrorTypeTypeError,
		Category:   models.CategoryType,
		Priority:   3,
		Confidence: 0.75,
		Extract: func(m []string, p *models.ParsedError) {
			p.MissingProperty, p.ActualType = m[1], m[2]
		},
	},
	{
		Name:       "not-callable",
		Regexp:     regexp.MustCompile(`([\w$.\[\]()]+) is not a function|([\w$.]+) is not iterable`),
		Type:       models.ErrorTypeTypeError,
		Category:   models.CategoryType,
		Priority:   3,
		Confidence: 0.65,
		Extract:    extractIdentifier,
	},

	// Markup
	{
		Name:        "adjacent-elements",
		Regexp:      regexp.MustCompile(`(?i)Adjacent JSX elements must be wrapped`),
		Type:        models.ErrorTypeMarkup,
		Category:    models.CategoryMarkup,
		Priority:    2,
		Confidence:  0.9,
		AutoFixable: true,
	},
	{
		Name:        "closing-tag",
		Regexp:      regexp.MustCompile(`(?i)Expected corresponding (?:JSX )?closing tag for <([\w.:-]*)>|Unterminated JSX contents|Unexpected closing "?([\w.:-]+)"? tag`),
		Type:        models.ErrorTypeMarkup,
		Category:    models.CategoryMarkup,
		Priority:    2,
		Confidence:  0.8,
		AutoFixable: true,
		Extract:     extractIdentifier,
	},
	{
		Name:        "void-element",
		Regexp:      regexp.MustCompile(`(?i)(\w+) is a void element tag`),
		Type:        models.ErrorTypeMarkup,
		Category:    models.CategoryMarkup,
		Priority:    2,
		Confidence:  0.85,
		AutoFixable: true,
		Extract:     extractIdentifier,
	},

	// Parser
	{
		Name:        "syntax",
		Regexp:      regexp.MustCompile(`(?i)SyntaxError|Unexpected token|Unexpected end of (?:input|file)|Unterminated (?:string|template|regular expression|comment)|missing \) after argument list|'[)}\]]' expected|Expected "[)}\]]"`),
		Type:        models.ErrorTypeSyntax,
		Category:    models.CategorySyntax,
		Priority:    1,
		Confidence:  0.8,
		AutoFixable: true,
	},

	// Async
	{
		Name:       "async",
		Regexp:     regexp.MustCompile(`(?i)Unhandled (?:promise )?rejection|Uncaught \(in promise\)|await is only valid in async|Promise rejected`),
		Type:       models.ErrorTypeRuntime,
		Category:   models.CategoryAsync,
		Priority:   3,
		Confidence: 0.6,
	},

	// Environment
	{
		Name:       "network",
		Regexp:     regexp.MustCompile(`(?i)Failed to fetch|NetworkError|net::ERR_\w+|ECONNREFUSED|ENOTFOUND|ERR_NETWORK|CORS policy`),
		Type:       models.ErrorTypeNetwork,
		Category:   models.CategoryNetwork,
		Priority:   4,
		Confidence: 0.75,
	},
	{
		Name:       "transient",
		Regexp:     regexp.MustCompile(`(?i)rate limit|too many requests|service unavailable|temporarily unavailable|ETIMEDOUT|ECONNRESET|socket hang up|\b(?:429|502|503|504)\b`),
		Type:       models.ErrorTypeNetwork,
		Category:   models.CategoryTransient,
		Priority:   5,
		Confidence: 0.7,
	},

	// Anything else that looks like a thrown JS error.
	{
		Name:       "runtime",
		Regexp:     regexp.MustCompile(`(?:TypeError|RangeError|ReferenceError|EvalError|URIError|Error):\s*(.+)`),
		Type:       models.ErrorTypeRuntime,
		Category:   models.CategoryRuntime,
		Priority:   3,
		Confidence: 0.5,
	},
}

// suggestions holds the canned repair hint for each error type.
var suggestions = map[models.ErrorType]string{
	models.ErrorTypeBareSpecifier:       "Rewrite the import to a relative path (./ or ../) from the importing file.",
	models.ErrorTypeModuleNotFound:      "Check the import path and file extension, or create the missing module.",
	models.ErrorTypeUndefinedIdentifier: "Import or declare the identifier, or fix its spelling.",
	models.ErrorTypeTypeError:           "Align the value with its declared type or update the type annotation.",
	models.ErrorTypeSyntax:              "Balance brackets, quotes and tags near the reported location.",
	models.ErrorTypeProperty:            "Guard the access with optional chaining or initialise the value before use.",
	models.ErrorTypeMarkup:              "Wrap sibling elements in a fragment and close every non-void tag.",
	models.ErrorTypeHook:                "Call hooks unconditionally at the top level of a component.",
	models.ErrorTypeRuntime:             "Inspect the stack trace and add the missing guard or initialisation.",
	models.ErrorTypeNetwork:             "Retry later; the failure is outside the component source.",
	models.ErrorTypeUnknown:             "Review the error message and the reported file manually.",
}
