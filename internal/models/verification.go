package models

// Severity ranks a verification issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ConfidenceLevel buckets a numeric verification score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// VerificationIssue is one problem found while checking a candidate fix.
type VerificationIssue struct {
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
}

// VerificationResult is computed per verification call and never persisted.
type VerificationResult struct {
	IsValid     bool                `json:"is_valid"` // no error-severity issues
	Score       float64             `json:"score"`
	Confidence  ConfidenceLevel     `json:"confidence"`
	Issues      []VerificationIssue `json:"issues,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

// ErrorCount returns the number of error-severity issues.
func (v *VerificationResult) ErrorCount() int {
	if v == nil {
		return 0
	}
	n := 0
	for _, issue := range v.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}
