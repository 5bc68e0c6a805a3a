// Package llm is the narrow language-model surface the fix engine consumes:
// a Generator that turns a prompt into text, the providers behind it, and
// helpers that pull source files back out of a response.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a provider answered with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Request is one text generation call.
type Request struct {
	Prompt      string
	System      string  // optional system instruction
	MaxTokens   int     // 0 lets the provider decide
	Temperature float64 // negative lets the provider decide
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the full text of one generation.
type Response struct {
	Text  string
	Usage *Usage
}

// Generator produces text from a prompt. Implementations must honour ctx
// cancellation.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Name() string
}

// Provider names accepted by New.
const (
	ProviderNone   = "none"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Config selects and tunes a provider.
type Config struct {
	Provider          string
	Model             string
	ClaudePath        string
	APIKey            string // Gemini key; falls back to GEMINI_API_KEY then GOOGLE_API_KEY
	Timeout           time.Duration
	RequestsPerMinute int // 0 disables rate limiting
	Burst             int
}

// New builds the configured Generator. ProviderNone (or an empty provider)
// yields a nil Generator and no error, which disables AI strategies.
func New(ctx context.Context, cfg Config) (Generator, error) {
	var (
		g   Generator
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone:
		return nil, nil
	case ProviderClaude:
		c := NewClaudeCLI()
		if cfg.ClaudePath != "" {
			c.ClaudePath = cfg.ClaudePath
		}
		c.Model = cfg.Model
		c.Timeout = cfg.Timeout
		g = c
	case ProviderGemini:
		key := cfg.APIKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			key = os.Getenv("GOOGLE_API_KEY")
		}
		g, err = NewGemini(ctx, key, cfg.Model)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}

	if cfg.RequestsPerMinute > 0 {
		g = NewRateLimited(g, cfg.RequestsPerMinute, cfg.Burst)
	}
	return g, nil
}
