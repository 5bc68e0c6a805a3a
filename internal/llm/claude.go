package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultSystemPrompt keeps code generation answers machine readable.
const DefaultSystemPrompt = "You are a senior frontend engineer repairing broken source files. Answer only with the complete corrected files, each in its own fenced code block whose info string is the language followed by the file path. No explanations outside the code blocks."

// ClaudeCLI generates text by shelling out to the claude CLI.
// Create once, use many times; safe for concurrent use.
type ClaudeCLI struct {
	// ClaudePath is the claude binary, found in PATH by default.
	ClaudePath string

	// Model is passed through --model when set.
	Model string

	// Timeout bounds one invocation on top of the caller's context.
	Timeout time.Duration

	// SystemPrompt is used when a Request carries none.
	SystemPrompt string

	// run executes the command; replaced in tests.
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewClaudeCLI returns a ClaudeCLI with default settings.
func NewClaudeCLI() *ClaudeCLI {
	return &ClaudeCLI{
		ClaudePath:   "claude",
		SystemPrompt: DefaultSystemPrompt,
	}
}

// Name implements Generator.
func (c *ClaudeCLI) Name() string {
	if c.Model != "" {
		return "claude:" + c.Model
	}
	return "claude"
}

// Generate implements Generator.
func (c *ClaudeCLI) Generate(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	out, err := c.runner()(ctx, c.binary(), c.args(req)...)
	if err != nil {
		text := string(out)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			text += "\n" + string(exitErr.Stderr)
		}
		if limit := DetectUsageLimit(text, time.Now()); limit != nil {
			return nil, limit
		}
		return nil, fmt.Errorf("claude invocation failed: %w (output: %s)", err, truncate(string(out), 500))
	}

	resp, err := parseCLIOutput(out)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return nil, ErrEmptyResponse
	}
	return resp, nil
}

func (c *ClaudeCLI) binary() string {
	if c.ClaudePath == "" {
		return "claude"
	}
	return c.ClaudePath
}

// args always includes --system-prompt, -p, --output-format json and
// --settings; --model is added when set.
func (c *ClaudeCLI) args(req Request) []string {
	system := req.System
	if system == "" {
		system = c.SystemPrompt
	}
	if system == "" {
		system = DefaultSystemPrompt
	}

	args := []string{"--system-prompt", system, "-p", req.Prompt}
	if c.Model != "" {
		args = append(args, "--model", c.Model)
	}
	args = append(args, "--output-format", "json")
	// Disable hooks for automation
	args = append(args, "--settings", `{"disableAllHooks": true}`)
	return args
}

func (c *ClaudeCLI) runner() func(ctx context.Context, name string, args ...string) ([]byte, error) {
	if c.run != nil {
		return c.run
	}
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		SetCleanEnv(cmd)
		return cmd.Output()
	}
}

type cliOutput struct {
	Result  string `json:"result"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
	Usage   *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// parseCLIOutput reads the --output-format json envelope. Output that is not
// an envelope is taken as the answer text itself.
func parseCLIOutput(raw []byte) (*Response, error) {
	trimmed := strings.TrimSpace(string(raw))
	start := strings.Index(trimmed, "{")
	if start < 0 {
		return &Response{Text: trimmed}, nil
	}

	var env cliOutput
	if err := json.Unmarshal([]byte(trimmed[start:]), &env); err != nil {
		return &Response{Text: trimmed}, nil
	}
	text := env.Result
	if text == "" {
		text = env.Content
	}
	if env.IsError {
		if limit := DetectUsageLimit(text, time.Now()); limit != nil {
			return nil, limit
		}
		return nil, fmt.Errorf("claude reported an error: %s", truncate(text, 500))
	}

	resp := &Response{Text: text}
	if env.Usage != nil {
		resp.Usage = &Usage{InputTokens: env.Usage.InputTokens, OutputTokens: env.Usage.OutputTokens}
	}
	return resp, nil
}

// truncate returns s truncated to maxLen bytes with "..." suffix if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
