package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestDisplayWarning_TitleOnly(t *testing.T) {
	var buf bytes.Buffer
	Warning{Title: "Configuration Missing"}.Display(&buf, false)

	if got := buf.String(); got != "Warning: Configuration Missing\n" {
		t.Errorf("Display() = %q", got)
	}
}

func TestDisplayWarning_Color(t *testing.T) {
	var buf bytes.Buffer
	Warning{Title: "Configuration Missing"}.Display(&buf, true)

	output := buf.String()
	if !strings.Contains(output, "\x1b[33m") {
		t.Error("Expected yellow ANSI color code in output")
	}
	if !strings.Contains(output, "\x1b[0m") {
		t.Error("Expected ANSI reset code in output")
	}
}

func TestDisplayWarning_AllFields(t *testing.T) {
	tests := []struct {
		name    string
		warning Warning
		want    []string
	}{
		{
			name:    "single file",
			warning: Warning{Title: "T", Message: "msg", Files: []string{"src/a.ts"}, Suggestion: "do it"},
			want:    []string{"    msg\n", "    Affected file:\n", "      1. src/a.ts\n", "    Suggestion:\n    do it\n"},
		},
		{
			name:    "several files",
			warning: Warning{Title: "T", Files: []string{"a.ts", "b.ts"}},
			want:    []string{"    Affected files:\n", "      1. a.ts\n", "      2. b.ts\n"},
		},
		{
			name:    "oversized helper",
			warning: OversizedFiles([]string{"public/data.json"}),
			want:    []string{"Warning: Skipped large files\n", "      1. public/data.json\n", "--file"},
		},
		{
			name:    "local only helper",
			warning: LocalOnly(),
			want:    []string{"Warning: No language model configured\n", "Only local strategies"},
		},
		{
			name:    "exhausted helper",
			warning: Exhausted("Could not fix error after 3 attempts"),
			want:    []string{"    Could not fix error after 3 attempts\n", "mender state --reset"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.warning.Display(&buf, false)
			output := buf.String()
			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("output missing %q:\n%s", want, output)
				}
			}
		})
	}
}

func TestDisplayWarning_OmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	Warning{Title: "T"}.Display(&buf, false)

	output := buf.String()
	for _, unwanted := range []string{"Affected", "Suggestion"} {
		if strings.Contains(output, unwanted) {
			t.Errorf("output should not contain %q:\n%s", unwanted, output)
		}
	}
}
