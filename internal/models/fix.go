package models

import (
	"sort"
	"strings"
	"time"
)

// FileSet maps a project-relative path to the full content of that file.
type FileSet map[string]string

// Clone returns a shallow copy safe to modify without touching the original map.
func (fs FileSet) Clone() FileSet {
	out := make(FileSet, len(fs))
	for k, v := range fs {
		out[k] = v
	}
	return out
}

// Paths returns the keys in sorted order.
func (fs FileSet) Paths() []string {
	paths := make([]string, 0, len(fs))
	for p := range fs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Merge copies every entry of other into fs, overwriting existing paths.
func (fs FileSet) Merge(other FileSet) {
	for k, v := range other {
		fs[k] = v
	}
}

// FixStrategy names one repair technique in the escalation ladder.
type FixStrategy string

const (
	StrategyLocalSimple    FixStrategy = "local-simple"
	StrategyLocalMultiFile FixStrategy = "local-multifile"
	StrategyLocalProactive FixStrategy = "local-proactive"
	StrategyAIQuick        FixStrategy = "ai-quick"
	StrategyAIFull         FixStrategy = "ai-full"
	StrategyAIIterative    FixStrategy = "ai-iterative"
	StrategyAIRegenerate   FixStrategy = "ai-regenerate"
)

// AllStrategies is the canonical escalation order, cheapest first.
var AllStrategies = []FixStrategy{
	StrategyLocalSimple,
	StrategyLocalMultiFile,
	StrategyLocalProactive,
	StrategyAIQuick,
	StrategyAIFull,
	StrategyAIIterative,
	StrategyAIRegenerate,
}

// IsLocal reports whether the strategy is deterministic pattern matching.
func (s FixStrategy) IsLocal() bool {
	return strings.HasPrefix(string(s), "local")
}

// IsAI reports whether the strategy calls a language model.
func (s FixStrategy) IsAI() bool {
	return strings.HasPrefix(string(s), "ai")
}

// Index returns the position of s in AllStrategies, or -1.
func (s FixStrategy) Index() int {
	for i, candidate := range AllStrategies {
		if candidate == s {
			return i
		}
	}
	return -1
}

// ParseStrategy resolves a strategy name, returning false for unknown names.
func ParseStrategy(name string) (FixStrategy, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range AllStrategies {
		if string(s) == name {
			return s, true
		}
	}
	return "", false
}

// LocalFixResult is the outcome of a single deterministic fixer.
type LocalFixResult struct {
	Success     bool    // Whether the fixer produced a change
	Files       FileSet // Full replacement content for every touched file
	Description string  // Human-readable summary of the change
	FixType     string  // Name of the rule that fired
}

// NoLocalFix is the sentinel returned by fixers that did not apply.
func NoLocalFix() *LocalFixResult {
	return &LocalFixResult{Success: false}
}

// FixResult is the outcome of one Fix Engine run.
type FixResult struct {
	Success      bool                `json:"success"`
	Files        FileSet             `json:"files,omitempty"`
	Description  string              `json:"description"`
	Strategy     FixStrategy         `json:"strategy,omitempty"`
	Attempts     int                 `json:"attempts"`
	Duration     time.Duration       `json:"duration"`
	Error        string              `json:"error,omitempty"`
	SkipReason   string              `json:"skip_reason,omitempty"` // set when the engine declined to try
	Parsed       *ParsedError        `json:"parsed,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`
}

// Skipped reports whether the engine declined to attempt a fix.
func (r *FixResult) Skipped() bool {
	return r != nil && r.SkipReason != ""
}

// ChangedPaths returns the sorted paths carried by the result.
func (r *FixResult) ChangedPaths() []string {
	if r == nil {
		return nil
	}
	return r.Files.Paths()
}
