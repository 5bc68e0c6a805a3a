package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/harrison/mender/internal/fixer"
	"github.com/harrison/mender/internal/llm"
	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/validation"
)

// SelectStrategies returns the ordered strategy list for a category:
// local-simple, local-multifile for import errors, local-proactive, then the
// AI strategies when ai is true and the category can benefit from them.
func SelectStrategies(category models.Category, ai bool) []models.FixStrategy {
	out := []models.FixStrategy{models.StrategyLocalSimple}
	if category == models.CategoryImport {
		out = append(out, models.StrategyLocalMultiFile)
	}
	out = append(out, models.StrategyLocalProactive)
	if ai && category.AllowsAI() {
		out = append(out,
			models.StrategyAIQuick,
			models.StrategyAIFull,
			models.StrategyAIIterative,
			models.StrategyAIRegenerate,
		)
	}
	return out
}

// run carries one engine invocation's inputs to the strategies.
type run struct {
	message string
	parsed  *models.ParsedError
	files   models.FileSet
	target  string // explicit target file from the caller

	// limit is set once the provider reports a usage limit; the remaining
	// AI strategies are skipped. Strategies may outlive their timeout, so
	// it is written from other goroutines.
	limit atomic.Pointer[llm.UsageLimitError]
}

// noteLimit records err when it is a provider usage limit.
func (r *run) noteLimit(err error) bool {
	var ul *llm.UsageLimitError
	if !errors.As(err, &ul) {
		return false
	}
	r.limit.CompareAndSwap(nil, ul)
	return true
}

// targets lists the files the single-file strategies work on: the caller's
// target, else the analyzed location, else files mentioning the extracted
// identifier or path, else every source file.
func (r *run) targets() []string {
	if _, ok := r.files[r.target]; ok && r.target != "" {
		return []string{r.target}
	}
	if _, ok := r.files[r.parsed.File]; ok && r.parsed.File != "" {
		return []string{r.parsed.File}
	}

	needle := r.parsed.Identifier
	if needle == "" {
		needle = strings.TrimPrefix(r.parsed.ImportPath, "/")
	}
	if needle == "" {
		needle = r.parsed.MissingProperty
	}

	var mentioned, all []string
	for _, p := range r.files.Paths() {
		if !fixer.IsCodeFile(p) {
			continue
		}
		all = append(all, p)
		if needle != "" && strings.Contains(r.files[p], needle) {
			mentioned = append(mentioned, p)
		}
	}
	if len(mentioned) > 0 {
		return mentioned
	}
	return all
}

// primary is the file AI strategies rewrite.
func (r *run) primary() (string, bool) {
	t := r.targets()
	if len(t) == 0 {
		return "", false
	}
	return t[0], true
}

func (e *Engine) strategyFunc(s models.FixStrategy, r *run) strategyFunc {
	switch s {
	case models.StrategyLocalSimple:
		return func(context.Context) (*models.LocalFixResult, error) {
			for _, p := range r.targets() {
				if res := fixer.TryLocalFix(r.message, p, r.files[p], r.files); res.Success {
					return res, nil
				}
			}
			return models.NoLocalFix(), nil
		}
	case models.StrategyLocalMultiFile:
		return func(context.Context) (*models.LocalFixResult, error) {
			return fixer.MultiFile(r.message, r.parsed, r.files), nil
		}
	case models.StrategyLocalProactive:
		return func(context.Context) (*models.LocalFixResult, error) {
			return fixer.Merge(fixer.Proactive(r.files), fixer.FixProactiveType), nil
		}
	case models.StrategyAIQuick:
		return e.aiSingle(s, r, func(target string) llm.Request {
			return llm.Request{Prompt: quickPrompt(r.parsed, target, r.files[target]), MaxTokens: 4096, Temperature: 0}
		})
	case models.StrategyAIFull:
		return e.aiSingle(s, r, func(target string) llm.Request {
			return llm.Request{Prompt: fullPrompt(r.parsed, target, r.files), MaxTokens: 8192, Temperature: 0.2}
		})
	case models.StrategyAIIterative:
		return func(ctx context.Context) (*models.LocalFixResult, error) {
			return e.aiIterative(ctx, r)
		}
	case models.StrategyAIRegenerate:
		return e.aiSingle(s, r, func(target string) llm.Request {
			return llm.Request{Prompt: regeneratePrompt(r.parsed, target, r.files[target]), MaxTokens: 8192, Temperature: 0.4}
		})
	}
	return func(context.Context) (*models.LocalFixResult, error) {
		return nil, &StrategyError{Strategy: s, Message: "unknown strategy"}
	}
}

// aiSingle is the one-shot AI strategy shape: one prompt, one response,
// files extracted from it.
func (e *Engine) aiSingle(s models.FixStrategy, r *run, build func(target string) llm.Request) strategyFunc {
	return func(ctx context.Context) (*models.LocalFixResult, error) {
		if e.generator == nil {
			return nil, &StrategyError{Strategy: s, Message: "no language model configured"}
		}
		target, ok := r.primary()
		if !ok {
			return nil, &StrategyError{Strategy: s, Message: "no source file to fix"}
		}

		resp, err := e.generator.Generate(ctx, build(target))
		if err != nil {
			r.noteLimit(err)
			return nil, &StrategyError{Strategy: s, Message: "generate", Err: err}
		}
		files := llm.ExtractFiles(resp.Text, target)
		if len(files) == 0 {
			return models.NoLocalFix(), nil
		}
		return &models.LocalFixResult{
			Success:     true,
			Files:       files,
			Description: fmt.Sprintf("%s rewrote %s", e.generator.Name(), strings.Join(files.Paths(), ", ")),
			FixType:     string(s),
		}, nil
	}
}

// aiIterative asks up to IterativeRounds times, telling the model why each
// previous round was rejected. It returns as soon as a round yields changed
// code that verifies.
func (e *Engine) aiIterative(ctx context.Context, r *run) (*models.LocalFixResult, error) {
	const s = models.StrategyAIIterative
	if e.generator == nil {
		return nil, &StrategyError{Strategy: s, Message: "no language model configured"}
	}
	target, ok := r.primary()
	if !ok {
		return nil, &StrategyError{Strategy: s, Message: "no source file to fix"}
	}

	var feedback []string
	for round := 1; round <= e.cfg.IterativeRounds; round++ {
		if ctx.Err() != nil {
			break
		}

		roundCtx, cancel := context.WithTimeout(ctx, e.cfg.RoundTimeout)
		resp, err := e.generator.Generate(roundCtx, llm.Request{
			Prompt:      iterativePrompt(r.parsed, target, r.files[target], feedback),
			MaxTokens:   8192,
			Temperature: 0.2,
		})
		timedOut := errors.Is(roundCtx.Err(), context.DeadlineExceeded)
		cancel()

		switch {
		case r.noteLimit(err):
			return nil, &StrategyError{Strategy: s, Message: fmt.Sprintf("round %d", round), Err: err}
		case err != nil && timedOut:
			feedback = append(feedback, fmt.Sprintf("Attempt %d timed out after %s. Return a smaller, focused fix.", round, e.cfg.RoundTimeout))
			continue
		case errors.Is(err, llm.ErrEmptyResponse):
			feedback = append(feedback, fmt.Sprintf("Attempt %d returned an empty response. Return the complete file.", round))
			continue
		case err != nil:
			feedback = append(feedback, fmt.Sprintf("Attempt %d failed: %v", round, err))
			continue
		}

		extracted := llm.ExtractFiles(resp.Text, target)
		if len(extracted) == 0 {
			feedback = append(feedback, fmt.Sprintf("Attempt %d returned an empty response. Return the complete file.", round))
			continue
		}
		changed := changedFiles(extracted, r.files)
		if len(changed) == 0 {
			feedback = append(feedback, fmt.Sprintf("Attempt %d returned the file unchanged. The error is still there; change the code that causes it.", round))
			continue
		}
		v := validation.VerifyFix(validation.VerifyOptions{
			Original: r.files,
			Fixed:    changed,
			Error:    r.message,
			Parsed:   r.parsed,
			Strict:   true,
		})
		if !v.IsValid {
			feedback = append(feedback, fmt.Sprintf("Attempt %d produced invalid code: %s", round, firstError(v)))
			continue
		}

		e.logf(levelDebug, "ai-iterative succeeded in round %d", round)
		return &models.LocalFixResult{
			Success:     true,
			Files:       changed,
			Description: fmt.Sprintf("%s rewrote %s (round %d)", e.generator.Name(), strings.Join(changed.Paths(), ", "), round),
			FixType:     string(s),
		}, nil
	}

	return nil, &StrategyError{
		Strategy: s,
		Message:  fmt.Sprintf("no valid fix in %d rounds: %s", e.cfg.IterativeRounds, strings.Join(feedback, " | ")),
	}
}

// changedFiles drops entries identical to the original content.
func changedFiles(candidate, original models.FileSet) models.FileSet {
	out := models.FileSet{}
	for p, content := range candidate {
		if prev, ok := original[p]; ok && prev == content {
			continue
		}
		out[p] = content
	}
	return out
}

func firstError(v *models.VerificationResult) string {
	for _, issue := range v.Issues {
		if issue.Severity == models.SeverityError {
			if issue.File != "" {
				return issue.File + ": " + issue.Message
			}
			return issue.Message
		}
	}
	return "verification failed"
}
