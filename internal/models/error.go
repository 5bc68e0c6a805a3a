package models

// ErrorType is the closed set of error shapes the analyzer recognizes.
type ErrorType string

const (
	ErrorTypeBareSpecifier       ErrorType = "bare-path-specifier"
	ErrorTypeModuleNotFound      ErrorType = "module-not-found"
	ErrorTypeUndefinedIdentifier ErrorType = "undefined-identifier"
	ErrorTypeTypeError           ErrorType = "type-error"
	ErrorTypeSyntax              ErrorType = "syntax-error"
	ErrorTypeProperty            ErrorType = "property-error"
	ErrorTypeMarkup              ErrorType = "markup-error"
	ErrorTypeHook                ErrorType = "hook-error"
	ErrorTypeRuntime             ErrorType = "runtime-error"
	ErrorTypeNetwork             ErrorType = "network-error"
	ErrorTypeUnknown             ErrorType = "unknown"
)

// Category groups error types by the repair approach they need.
type Category string

const (
	CategorySyntax     Category = "syntax"
	CategoryImport     Category = "import"
	CategoryRuntime    Category = "runtime"
	CategoryReactiveUI Category = "reactive-ui"
	CategoryType       Category = "type"
	CategoryMarkup     Category = "markup"
	CategoryAsync      Category = "async"
	CategoryTransient  Category = "transient"
	CategoryNetwork    Category = "network"
	CategoryUnknown    Category = "unknown"
)

// AllCategories lists every category in declaration order.
var AllCategories = []Category{
	CategorySyntax,
	CategoryImport,
	CategoryRuntime,
	CategoryReactiveUI,
	CategoryType,
	CategoryMarkup,
	CategoryAsync,
	CategoryTransient,
	CategoryNetwork,
	CategoryUnknown,
}

// AllowsAI reports whether language-model strategies are worth trying for the category.
// Transient and network failures are not caused by the source, so rewriting it is wasted cost.
func (c Category) AllowsAI() bool {
	return c != CategoryTransient && c != CategoryNetwork
}

// ParsedError is the structured form of a raw error string.
// A fresh value is produced per analysis and is not mutated afterwards.
type ParsedError struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`

	Type     ErrorType `json:"type"`
	Category Category  `json:"category"`

	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	Identifier      string `json:"identifier,omitempty"`       // e.g. X in "X is not defined"
	ImportPath      string `json:"import_path,omitempty"`      // module specifier named by the error
	ExpectedType    string `json:"expected_type,omitempty"`    // target type of an assignability error
	ActualType      string `json:"actual_type,omitempty"`      // source type of an assignability error
	MissingProperty string `json:"missing_property,omitempty"` // property read from undefined/null

	RelatedFiles []string `json:"related_files,omitempty"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`

	IsAutoFixable bool    `json:"is_auto_fixable"`
	IsIgnorable   bool    `json:"is_ignorable"`
	Confidence    float64 `json:"confidence"` // 0.0-1.0
	Priority      int     `json:"priority"`   // 1 (most urgent) to 5
}

// HasLocation reports whether a source file was extracted from the error.
func (p *ParsedError) HasLocation() bool {
	return p != nil && p.File != ""
}
