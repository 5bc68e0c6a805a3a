package models

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestFileSet(t *testing.T) {
	fs := FileSet{"src/b.ts": "b", "src/a.ts": "a"}

	if got, want := fs.Paths(), []string{"src/a.ts", "src/b.ts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Paths() = %v, want %v", got, want)
	}

	clone := fs.Clone()
	clone["src/a.ts"] = "changed"
	if fs["src/a.ts"] != "a" {
		t.Error("Clone() shares storage with the original")
	}

	fs.Merge(FileSet{"src/a.ts": "merged", "src/c.ts": "c"})
	want := FileSet{"src/a.ts": "merged", "src/b.ts": "b", "src/c.ts": "c"}
	if !reflect.DeepEqual(fs, want) {
		t.Errorf("Merge() = %v, want %v", fs, want)
	}

	if got := FileSet(nil).Paths(); len(got) != 0 {
		t.Errorf("nil Paths() = %v, want empty", got)
	}
}

func TestFixStrategy(t *testing.T) {
	tests := []struct {
		strategy FixStrategy
		local    bool
		ai       bool
		index    int
	}{
		{StrategyLocalSimple, true, false, 0},
		{StrategyLocalMultiFile, true, false, 1},
		{StrategyLocalProactive, true, false, 2},
		{StrategyAIQuick, false, true, 3},
		{StrategyAIFull, false, true, 4},
		{StrategyAIIterative, false, true, 5},
		{StrategyAIRegenerate, false, true, 6},
		{FixStrategy("manual"), false, false, -1},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			if got := tt.strategy.IsLocal(); got != tt.local {
				t.Errorf("IsLocal() = %v, want %v", got, tt.local)
			}
			if got := tt.strategy.IsAI(); got != tt.ai {
				t.Errorf("IsAI() = %v, want %v", got, tt.ai)
			}
			if got := tt.strategy.Index(); got != tt.index {
				t.Errorf("Index() = %d, want %d", got, tt.index)
			}
		})
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		input  string
		want   FixStrategy
		wantOK bool
	}{
		{"local-simple", StrategyLocalSimple, true},
		{"  AI-Quick ", StrategyAIQuick, true},
		{"ai-regenerate", StrategyAIRegenerate, true},
		{"ai", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseStrategy(tt.input)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseStrategy(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCategory_AllowsAI(t *testing.T) {
	for _, c := range AllCategories {
		want := c != CategoryTransient && c != CategoryNetwork
		if got := c.AllowsAI(); got != want {
			t.Errorf("%s.AllowsAI() = %v, want %v", c, got, want)
		}
	}
}

func TestAgentState(t *testing.T) {
	terminal := map[AgentState]bool{
		AgentSuccess:            true,
		AgentFailed:             true,
		AgentMaxAttemptsReached: true,
		AgentIdle:               false,
		AgentAnalyzing:          false,
		AgentVerifying:          false,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}

	mapping := map[string]AgentState{
		"local-simple": AgentLocalFix,
		"ai-iterative": AgentAIFix,
		"regenerate":   AgentFixing,
		"":             AgentFixing,
	}
	for strategy, want := range mapping {
		if got := StateForStrategy(strategy); got != want {
			t.Errorf("StateForStrategy(%q) = %s, want %s", strategy, got, want)
		}
	}
}

func TestFixResult(t *testing.T) {
	var nilResult *FixResult
	if nilResult.Skipped() {
		t.Error("nil result reports skipped")
	}
	if nilResult.ChangedPaths() != nil {
		t.Error("nil result has changed paths")
	}

	r := &FixResult{SkipReason: "recently fixed", Files: FileSet{"b.ts": "", "a.ts": ""}}
	if !r.Skipped() {
		t.Error("Skipped() = false with a skip reason")
	}
	if got, want := r.ChangedPaths(), []string{"a.ts", "b.ts"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ChangedPaths() = %v, want %v", got, want)
	}
}

func TestVerificationResult_ErrorCount(t *testing.T) {
	var nilResult *VerificationResult
	if nilResult.ErrorCount() != 0 {
		t.Error("nil result has errors")
	}

	v := &VerificationResult{Issues: []VerificationIssue{
		{Severity: SeverityError, Message: "unbalanced braces"},
		{Severity: SeverityWarning, Message: "file shrank"},
		{Severity: SeverityError, Message: "error still present"},
		{Severity: SeverityInfo, Message: "formatting changed"},
	}}
	if got := v.ErrorCount(); got != 2 {
		t.Errorf("ErrorCount() = %d, want 2", got)
	}
}

func TestParsedError_JSON(t *testing.T) {
	p := &ParsedError{
		Message:    "ReferenceError: Search is not defined",
		Type:       ErrorTypeUndefinedIdentifier,
		Category:   CategoryImport,
		Identifier: "Search",
		Confidence: 0.9,
		Priority:   2,
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fields["type"] != "undefined-identifier" || fields["identifier"] != "Search" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if _, ok := fields["file"]; ok {
		t.Error("empty file should be omitted")
	}
	if p.HasLocation() {
		t.Error("HasLocation() = true without a file")
	}
	p.File = "src/Header.tsx"
	if !p.HasLocation() {
		t.Error("HasLocation() = false with a file")
	}
}
