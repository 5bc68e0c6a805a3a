package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/harrison/mender/internal/models"
)

func TestExtractFiles(t *testing.T) {
	tests := []struct {
		name     string
		response string
		fallback string
		want     models.FileSet
	}{
		{
			name:     "info string path",
			response: "Fixed:\n\n```tsx src/App.tsx\nexport default function App() {}\n```\n",
			fallback: "other.tsx",
			want:     models.FileSet{"src/App.tsx": "export default function App() {}\n"},
		},
		{
			name:     "title attribute",
			response: "```ts title=\"src/lib/math.ts\"\nexport const add = (a: number, b: number) => a + b;\n```\n",
			want:     models.FileSet{"src/lib/math.ts": "export const add = (a: number, b: number) => a + b;\n"},
		},
		{
			name:     "path in preceding paragraph",
			response: "Here is `src/components/Header.tsx`:\n\n```tsx\nexport function Header() {}\n```\n",
			want:     models.FileSet{"src/components/Header.tsx": "export function Header() {}\n"},
		},
		{
			name:     "path comment on first line",
			response: "```jsx\n// src/Button.jsx\nexport const Button = () => null;\n```\n",
			want:     models.FileSet{"src/Button.jsx": "// src/Button.jsx\nexport const Button = () => null;\n"},
		},
		{
			name:     "single unnamed block uses fallback",
			response: "```tsx\nconst a = 1;\n```",
			fallback: "src/App.tsx",
			want:     models.FileSet{"src/App.tsx": "const a = 1;\n"},
		},
		{
			name:     "no fences uses fallback",
			response: "  const a = 1;  \n",
			fallback: "src/App.tsx",
			want:     models.FileSet{"src/App.tsx": "const a = 1;\n"},
		},
		{
			name:     "several files, unnamed extra block dropped",
			response: "```tsx src/A.tsx\nA\n```\n\n```tsx src/B.tsx\nB\n```\n\n```bash\nnpm install\n```\n",
			fallback: "src/A.tsx",
			want:     models.FileSet{"src/A.tsx": "A\n", "src/B.tsx": "B\n"},
		},
		{
			name:     "leading slash stripped",
			response: "```tsx /src/App.tsx\nx\n```",
			want:     models.FileSet{"src/App.tsx": "x\n"},
		},
		{
			name:     "empty response",
			response: "   ",
			fallback: "src/App.tsx",
			want:     models.FileSet{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFiles(tt.response, tt.fallback)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ExtractFiles() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodeBlocks_Language(t *testing.T) {
	blocks := CodeBlocks("```tsx src/App.tsx\nx\n```\n\n```\ny\n```\n")
	require.Len(t, blocks, 2)
	assert.Equal(t, "tsx", blocks[0].Language)
	assert.Equal(t, "src/App.tsx", blocks[0].Path)
	assert.Equal(t, "", blocks[1].Language)
	assert.Equal(t, "", blocks[1].Path)
}

func TestExtractCode(t *testing.T) {
	assert.Equal(t, "const a = 1;\n", ExtractCode("Sure!\n```js\nconst a = 1;\n```\nDone."))
	assert.Equal(t, "const a = 1;", ExtractCode("\nconst a = 1;\n"))
}

func TestParseCLIOutput(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantText  string
		wantUsage *Usage
		wantErr   bool
	}{
		{
			name:      "result envelope",
			raw:       `{"type":"result","result":"hello","usage":{"input_tokens":12,"output_tokens":3}}`,
			wantText:  "hello",
			wantUsage: &Usage{InputTokens: 12, OutputTokens: 3},
		},
		{
			name:     "content field",
			raw:      `{"content":"from content"}`,
			wantText: "from content",
		},
		{
			name:     "prefix before envelope",
			raw:      "warning: slow\n" + `{"result":"ok"}`,
			wantText: "ok",
		},
		{
			name:     "plain text",
			raw:      "just text\n",
			wantText: "just text",
		},
		{
			name:     "malformed envelope is text",
			raw:      `{"result":`,
			wantText: `{"result":`,
		},
		{
			name:    "error envelope",
			raw:     `{"is_error":true,"result":"overloaded"}`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parseCLIOutput([]byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.wantUsage, resp.Usage)
		})
	}
}

func TestClaudeCLI_Generate(t *testing.T) {
	var gotName string
	var gotArgs []string
	c := NewClaudeCLI()
	c.Model = "sonnet"
	c.run = func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotName, gotArgs = name, args
		return []byte(`{"result":"` + "```tsx src/App.tsx\\nx\\n```" + `"}`), nil
	}

	resp, err := c.Generate(context.Background(), Request{Prompt: "fix it", System: "be brief"})
	require.NoError(t, err)
	assert.Equal(t, "claude", gotName)
	assert.Equal(t, []string{
		"--system-prompt", "be brief",
		"-p", "fix it",
		"--model", "sonnet",
		"--output-format", "json",
		"--settings", `{"disableAllHooks": true}`,
	}, gotArgs)
	assert.Equal(t, models.FileSet{"src/App.tsx": "x\n"}, ExtractFiles(resp.Text, ""))
	assert.Equal(t, "claude:sonnet", c.Name())
}

func TestClaudeCLI_Errors(t *testing.T) {
	c := NewClaudeCLI()

	_, err := c.Generate(context.Background(), Request{})
	assert.Error(t, err)

	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"result":"   "}`), nil
	}
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("exit status 1")
	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("auth required"), boom
	}
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "auth required")

	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte("Claude AI usage limit reached|1700000000"), boom
	}
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrUsageLimit)

	c.run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"is_error":true,"result":"You're out of extra usage · resets 3pm (UTC)"}`), nil
	}
	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	var limit *UsageLimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, 15, limit.ResetAt.UTC().Hour())
}

func TestClaudeCLI_DefaultSystemPrompt(t *testing.T) {
	c := &ClaudeCLI{}
	args := c.args(Request{Prompt: "p"})
	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, DefaultSystemPrompt, args[1])
	assert.Equal(t, "claude", c.binary())
}

type fakeModels struct {
	resp   *genai.GenerateContentResponse
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.config = model, config
	return f.resp, f.err
}

func textResponse(s string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: s}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     40,
			CandidatesTokenCount: 8,
		},
	}
}

func TestGemini_Generate(t *testing.T) {
	fake := &fakeModels{resp: textResponse("const a = 1;")}
	g := &Gemini{models: fake, model: "gemini-test"}

	resp, err := g.Generate(context.Background(), Request{Prompt: "p", MaxTokens: 256, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, "const a = 1;", resp.Text)
	assert.Equal(t, &Usage{InputTokens: 40, OutputTokens: 8}, resp.Usage)
	assert.Equal(t, "gemini-test", fake.model)
	assert.Equal(t, int32(256), fake.config.MaxOutputTokens)
	require.NotNil(t, fake.config.Temperature)
	assert.InDelta(t, 0.2, *fake.config.Temperature, 1e-6)
	require.NotNil(t, fake.config.SystemInstruction)
	assert.Equal(t, "gemini:gemini-test", g.Name())
}

func TestGemini_Errors(t *testing.T) {
	g := &Gemini{models: &fakeModels{resp: textResponse("")}, model: "m"}
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	boom := errors.New("quota")
	g = &Gemini{models: &fakeModels{err: boom}, model: "m"}
	_, err = g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, boom)

	g = &Gemini{models: &fakeModels{err: errors.New("Error 429, Message: Resource has been exhausted, Status: RESOURCE_EXHAUSTED")}, model: "m"}
	_, err = g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrUsageLimit)

	_, err = NewGemini(context.Background(), "", "")
	assert.Error(t, err)
}

type countingGenerator struct{ calls int }

func (c *countingGenerator) Name() string { return "counting" }
func (c *countingGenerator) Generate(context.Context, Request) (*Response, error) {
	c.calls++
	return &Response{Text: "ok"}, nil
}

func TestRateLimited(t *testing.T) {
	inner := &countingGenerator{}
	g := NewRateLimited(inner, 1, 1)
	assert.Equal(t, "counting", g.Name())

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = g.Generate(ctx, Request{Prompt: "p"})
	assert.Error(t, err, "second call must wait a minute and the deadline is shorter")
	assert.Equal(t, 1, inner.calls)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	g, err := New(ctx, Config{Provider: "none"})
	require.NoError(t, err)
	assert.Nil(t, g)

	g, err = New(ctx, Config{})
	require.NoError(t, err)
	assert.Nil(t, g)

	_, err = New(ctx, Config{Provider: "openai"})
	assert.Error(t, err)

	g, err = New(ctx, Config{Provider: "claude", ClaudePath: "/opt/claude", Timeout: time.Minute})
	require.NoError(t, err)
	c, ok := g.(*ClaudeCLI)
	require.True(t, ok)
	assert.Equal(t, "/opt/claude", c.ClaudePath)
	assert.Equal(t, time.Minute, c.Timeout)

	g, err = New(ctx, Config{Provider: "Claude", RequestsPerMinute: 10})
	require.NoError(t, err)
	assert.IsType(t, &RateLimited{}, g)

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	_, err = New(ctx, Config{Provider: "gemini"})
	assert.Error(t, err)
}
