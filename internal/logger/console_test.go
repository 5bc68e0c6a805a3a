package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/harrison/mender/internal/agent"
	"github.com/harrison/mender/internal/models"
)

var tsPrefix = regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] `)

func TestConsoleLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		wantOut []string
		wantNot []string
	}{
		{"trace", []string{"[TRACE] t", "[DEBUG] d", "[INFO] i", "[WARN] w", "[ERROR] e"}, nil},
		{"info", []string{"[INFO] i", "[WARN] w", "[ERROR] e"}, []string{"TRACE", "DEBUG"}},
		{"error", []string{"[ERROR] e"}, []string{"INFO", "WARN"}},
		{"bogus", []string{"[INFO] i"}, []string{"DEBUG"}},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			cl := NewConsoleLogger(&buf, tt.level)
			cl.LogTrace("t")
			cl.LogDebug("d")
			cl.LogInfo("i")
			cl.LogWarn("w")
			cl.LogError("e")

			out := buf.String()
			for _, want := range tt.wantOut {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, not := range tt.wantNot {
				if strings.Contains(out, not) {
					t.Errorf("output should not contain %q:\n%s", not, out)
				}
			}
		})
	}
}

func TestConsoleLogger_NilWriter(t *testing.T) {
	cl := NewConsoleLogger(nil, "trace")
	cl.LogInfo("ignored")
	cl.LogEntry(agent.LogEntry{Message: "ignored"})
	cl.LogProgress("x", 50)
	cl.LogFixResult(&models.FixResult{Success: true})
}

func TestConsoleLogger_NoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	cl := NewConsoleLogger(&buf, "info")
	cl.LogWarn("plain")
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("buffer output should not be colored: %q", buf.String())
	}
	if !tsPrefix.MatchString(buf.String()) {
		t.Errorf("missing timestamp prefix: %q", buf.String())
	}
}

func TestConsoleLogger_LogEntry(t *testing.T) {
	ts := time.Date(2026, 1, 2, 13, 4, 5, 0, time.UTC)
	tests := []struct {
		name  string
		level string
		entry agent.LogEntry
		want  string
	}{
		{"info with attempt", "info", agent.LogEntry{Timestamp: ts, Level: agent.LevelInfo, Message: "Fix attempt 1/3", State: models.AgentAnalyzing, Attempt: 1},
			"[13:04:05] [INFO] (analyzing #1) Fix attempt 1/3\n"},
		{"success prints ok", "info", agent.LogEntry{Timestamp: ts, Level: agent.LevelSuccess, Message: "Fixed a.ts"},
			"[13:04:05] [OK] Fixed a.ts\n"},
		{"debug filtered", "info", agent.LogEntry{Timestamp: ts, Level: agent.LevelDebug, Message: "Trying local-simple"}, ""},
		{"debug shown", "debug", agent.LogEntry{Timestamp: ts, Level: agent.LevelDebug, Message: "Trying local-simple"},
			"[13:04:05] [DEBUG] Trying local-simple\n"},
		{"warn", "error", agent.LogEntry{Timestamp: ts, Level: agent.LevelWarn, Message: "x"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewConsoleLogger(&buf, tt.level).LogEntry(tt.entry)
			if buf.String() != tt.want {
				t.Errorf("got %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestConsoleLogger_LogProgress(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, "info").LogProgress("Trying ai-quick", 42)
	line := tsPrefix.ReplaceAllString(buf.String(), "")
	if line != "Trying ai-quick [====      ]  42%\n" {
		t.Errorf("progress line = %q", line)
	}
}

func TestConsoleLogger_LogFixResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var buf bytes.Buffer
		NewConsoleLogger(&buf, "info").LogFixResult(&models.FixResult{
			Success:  true,
			Files:    models.FileSet{"src/b.ts": "", "src/a.ts": ""},
			Strategy: models.StrategyLocalSimple,
			Attempts: 1,
			Duration: 1500 * time.Millisecond,
			Verification: &models.VerificationResult{
				IsValid: true, Score: 0.85, Confidence: models.ConfidenceMedium,
				Issues: []models.VerificationIssue{{Severity: models.SeverityWarning, File: "src/a.ts", Line: 3, Message: "file is suspiciously short"}},
			},
		})
		out := buf.String()
		for _, want := range []string{
			"FIXED src/a.ts, src/b.ts via local-simple in 1.5s (1 strategies tried)",
			"verification: score 0.85, confidence medium, 0 error(s), 1 issue(s)",
			"- warning src/a.ts:3: file is suspiciously short",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})
	t.Run("exhausted", func(t *testing.T) {
		var buf bytes.Buffer
		NewConsoleLogger(&buf, "info").LogFixResult(&models.FixResult{
			Description: "All strategies exhausted",
			Attempts:    2,
			Error:       "local-simple: no fix; local-proactive: no fix",
		})
		out := buf.String()
		if !strings.Contains(out, "NOT FIXED All strategies exhausted after 2 strategies") {
			t.Errorf("missing summary:\n%s", out)
		}
		if !strings.Contains(out, "    - local-proactive: no fix\n") {
			t.Errorf("failures should be listed one per line:\n%s", out)
		}
	})
	t.Run("skipped", func(t *testing.T) {
		var buf bytes.Buffer
		NewConsoleLogger(&buf, "info").LogFixResult(&models.FixResult{SkipReason: "max attempts reached (3/3)"})
		if !strings.Contains(buf.String(), "SKIPPED max attempts reached (3/3)") {
			t.Errorf("got %q", buf.String())
		}
	})
}

func TestConsoleLogger_LogAnalysis(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(&buf, "debug").LogAnalysis(&models.ParsedError{
		Type: models.ErrorTypeUndefinedIdentifier, Category: models.CategoryImport,
		Confidence: 0.9, Priority: 1, File: "src/App.tsx", Line: 12,
		SuggestedFix: "Import it", RelatedFiles: []string{"src/Search.tsx"},
	})
	out := buf.String()
	for _, want := range []string{
		"Error type undefined-identifier, category import, confidence 90%, priority 1, at src/App.tsx:12",
		"[DEBUG] Suggestion: Import it",
		"[DEBUG] Related files: src/Search.tsx",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatRate(t *testing.T) {
	if got := FormatRate(0.5, false); got != " 50.0%" {
		t.Errorf("FormatRate = %q", got)
	}
	if got := FormatRate(1, true); !strings.Contains(got, "100.0%") || !strings.Contains(got, "\x1b[32m") {
		t.Errorf("high rate should be green: %q", got)
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		stage   string
		percent int
		want    string
	}{
		{"empty", "", 0, "[          ]   0%"},
		{"half", "Trying", 50, "Trying [=====     ]  50%"},
		{"clamped high", "", 150, "[==========] 100%"},
		{"clamped low", "", -5, "[          ]   0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pb := NewProgressBar(10, false)
			pb.Update(tt.stage, tt.percent)
			if got := pb.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}

	pb := NewProgressBar(0, true)
	pb.Update("Fixed", 100)
	if pb.Percentage() != 100 || pb.Stage() != "Fixed" {
		t.Errorf("state = %d %q", pb.Percentage(), pb.Stage())
	}
	if !strings.Contains(pb.Render(), "\x1b[32m") {
		t.Errorf("complete bar should be green: %q", pb.Render())
	}
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	fl, err := NewFileLogger(dir, "info")
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	fl.LogDebug("hidden")
	fl.LogInfo("visible")
	fl.LogEntry(agent.LogEntry{Session: "0123456789abcdef", Level: agent.LevelSuccess, Message: "Fixed a.ts", State: models.AgentSuccess, Attempt: 2})
	fl.LogFixResult(&models.FixResult{Success: true, Strategy: models.StrategyAIQuick, Files: models.FileSet{"a.ts": "x"}, Attempts: 4})
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	fl.LogInfo("after close is dropped")

	data, err := os.ReadFile(filepath.Join(dir, "latest.log"))
	if err != nil {
		t.Fatalf("latest.log: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"=== mender run log ===",
		"[INFO] visible",
		"[OK] session=01234567 state=success attempt=2 Fixed a.ts",
		"[RESULT] FIXED strategy=ai-quick attempts=4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("run log missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hidden") || strings.Contains(out, "after close") {
		t.Errorf("run log has filtered lines:\n%s", out)
	}

	fixes, err := filepath.Glob(filepath.Join(dir, "fixes", "fix-*.json"))
	if err != nil || len(fixes) != 1 {
		t.Fatalf("fixes = %v, %v", fixes, err)
	}
	raw, _ := os.ReadFile(fixes[0])
	var got models.FixResult
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("fix json: %v", err)
	}
	if !got.Success || got.Files["a.ts"] != "x" {
		t.Errorf("decoded result = %+v", got)
	}
}

func TestMulti(t *testing.T) {
	var a, b bytes.Buffer
	m := Multi{NewConsoleLogger(&a, "info"), NewConsoleLogger(&b, "info"), NewNoOpLogger()}
	m.LogInfo("both")
	m.LogEntry(agent.LogEntry{Level: agent.LevelError, Message: "boom"})
	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, "[INFO] both") || !strings.Contains(out, "[ERROR] boom") {
			t.Errorf("sink missed messages:\n%s", out)
		}
	}
}
