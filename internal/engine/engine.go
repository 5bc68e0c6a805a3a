// Package engine runs one fix attempt: it consults the fix state, analyzes
// the error and walks an escalating strategy list until a strategy yields a
// verified change or the deadline passes.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/mender/internal/analytics"
	"github.com/harrison/mender/internal/analyzer"
	"github.com/harrison/mender/internal/fixstate"
	"github.com/harrison/mender/internal/llm"
	"github.com/harrison/mender/internal/models"
	"github.com/harrison/mender/internal/validation"
)

// ExhaustedDescription is the description of a run where no strategy won.
const ExhaustedDescription = "All strategies exhausted"

// Config bounds one run.
type Config struct {
	Deadline         time.Duration                        // whole run
	StrategyTimeouts map[models.FixStrategy]time.Duration // per strategy call
	IterativeRounds  int                                  // ai-iterative rounds
	RoundTimeout     time.Duration                        // one ai-iterative round
}

const fallbackStrategyTimeout = 30 * time.Second

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		Deadline: 60 * time.Second,
		StrategyTimeouts: map[models.FixStrategy]time.Duration{
			models.StrategyLocalSimple:    5 * time.Second,
			models.StrategyLocalMultiFile: 5 * time.Second,
			models.StrategyLocalProactive: 5 * time.Second,
			models.StrategyAIQuick:        20 * time.Second,
			models.StrategyAIFull:         45 * time.Second,
			models.StrategyAIIterative:    90 * time.Second,
			models.StrategyAIRegenerate:   60 * time.Second,
		},
		IterativeRounds: 3,
		RoundTimeout:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Deadline <= 0 {
		c.Deadline = d.Deadline
	}
	if c.IterativeRounds <= 0 {
		c.IterativeRounds = d.IterativeRounds
	}
	if c.RoundTimeout <= 0 {
		c.RoundTimeout = d.RoundTimeout
	}
	timeouts := make(map[models.FixStrategy]time.Duration, len(d.StrategyTimeouts))
	for s, t := range d.StrategyTimeouts {
		timeouts[s] = t
	}
	for s, t := range c.StrategyTimeouts {
		if t > 0 {
			timeouts[s] = t
		}
	}
	c.StrategyTimeouts = timeouts
	return c
}

func (c Config) timeoutFor(s models.FixStrategy) time.Duration {
	if t, ok := c.StrategyTimeouts[s]; ok && t > 0 {
		return t
	}
	return fallbackStrategyTimeout
}

// Logger receives engine diagnostics.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
}

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
)

// Request is one error to fix.
type Request struct {
	Error      string
	Stack      string
	Files      models.FileSet // read only; results carry full replacements
	TargetFile string         // optional file to focus on
	Skip       []models.FixStrategy

	OnProgress func(label string, percent int)
	OnStrategy func(s models.FixStrategy)
	OnAnalyzed func(parsed *models.ParsedError)
}

func (r *Request) skipped(s models.FixStrategy) bool {
	for _, x := range r.Skip {
		if x == s {
			return true
		}
	}
	return false
}

func (r *Request) progress(label string, percent int) {
	if r.OnProgress != nil {
		r.OnProgress(label, percent)
	}
}

// Engine is safe for sequential reuse. Concurrent Fix calls share the state
// and analytics stores, which are themselves safe for concurrent use.
type Engine struct {
	cfg       Config
	state     *fixstate.State
	analytics *analytics.Analytics
	generator llm.Generator
	logger    Logger
	metrics   *Metrics
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithState sets the fix state consulted before and recorded after each run.
func WithState(s *fixstate.State) Option { return func(e *Engine) { e.state = s } }

// WithAnalytics sets the analytics store that receives one record per
// strategy attempt.
func WithAnalytics(a *analytics.Analytics) Option { return func(e *Engine) { e.analytics = a } }

// WithGenerator enables the AI strategies.
func WithGenerator(g llm.Generator) Option { return func(e *Engine) { e.generator = g } }

// WithLogger sets the diagnostics sink.
func WithLogger(l Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New returns an engine. Without WithState it keeps an in-memory fix state.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg.withDefaults(), now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	if e.state == nil {
		e.state = fixstate.New(fixstate.DefaultConfig())
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}
	return e
}

// State returns the fix state the engine records to.
func (e *Engine) State() *fixstate.State { return e.state }

// AIEnabled reports whether a language model is configured.
func (e *Engine) AIEnabled() bool { return e.generator != nil }

func (e *Engine) logf(l level, format string, args ...any) {
	if e.logger == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch l {
	case levelDebug:
		e.logger.LogDebug(msg)
	case levelInfo:
		e.logger.LogInfo(msg)
	default:
		e.logger.LogWarn(msg)
	}
}

// Fix runs one orchestrated attempt. It never returns an error; failure and
// declined runs are reported through the result.
func (e *Engine) Fix(ctx context.Context, req Request) *models.FixResult {
	start := e.now()
	result := &models.FixResult{}

	if d := e.state.ShouldSkip(req.Error); d.Skip {
		e.logf(levelInfo, "skipping fix: %s", d.Reason)
		result.Description = "Skipped: " + d.Reason
		result.SkipReason = d.Reason
		e.metrics.observeRun("skipped", analyzer.Classify(req.Error))
		return result
	}

	req.progress("Analyzing error", 0)
	parsed := analyzer.Analyze(req.Error, req.Stack, req.Files)
	result.Parsed = parsed
	if req.OnAnalyzed != nil {
		req.OnAnalyzed(parsed)
	}
	if parsed.IsIgnorable {
		result.Description = "Ignorable error"
		result.SkipReason = "ignorable error"
		e.metrics.observeRun("ignored", parsed.Category)
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Deadline)
	defer cancel()

	r := &run{message: req.Error, parsed: parsed, files: req.Files, target: req.TargetFile}
	strategies := SelectStrategies(parsed.Category, e.generator != nil)
	e.logf(levelDebug, "strategies for %s: %s", parsed.Category, joinStrategies(strategies))

	var failures []string
	for _, s := range strategies {
		if req.skipped(s) {
			continue
		}
		if ctx.Err() != nil {
			failures = append(failures, "deadline reached")
			e.logf(levelWarn, "fix deadline of %s reached before %s", e.cfg.Deadline, s)
			break
		}

		if limit := r.limit.Load(); limit != nil && s.IsAI() {
			failures = append(failures, fmt.Sprintf("%s: skipped, %v", s, limit))
			e.logf(levelDebug, "%s skipped: %v", s, limit)
			continue
		}

		req.progress("Trying "+string(s), s.Index()*100/len(models.AllStrategies))
		if req.OnStrategy != nil {
			req.OnStrategy(s)
		}
		result.Attempts++

		stratStart := e.now()
		fixed, verification, reason := e.attempt(ctx, s, r)
		elapsed := e.now().Sub(stratStart)

		if reason != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", s, reason))
			e.logf(levelDebug, "%s failed: %s", s, reason)
			e.recordStrategy(ctx, req.Error, parsed, s, "", false, elapsed, outcomeLabel(reason))
			continue
		}

		e.recordStrategy(ctx, req.Error, parsed, s, fixed.FixType, true, elapsed, "fixed")
		result.Success = true
		result.Files = fixed.Files
		result.Description = fixed.Description
		result.Strategy = s
		result.Verification = verification
		result.Duration = e.now().Sub(start)

		e.recordRun(req.Error, parsed, s, true, result.Duration, "")
		e.metrics.observeRun("fixed", parsed.Category)
		e.logf(levelInfo, "fixed with %s: %s", s, fixed.Description)
		req.progress("Fixed", 100)
		return result
	}

	result.Description = ExhaustedDescription
	result.Error = strings.Join(failures, "; ")
	result.Duration = e.now().Sub(start)
	if result.Attempts > 0 {
		e.recordRun(req.Error, parsed, "", false, result.Duration, result.Error)
	}
	e.metrics.observeRun("exhausted", parsed.Category)
	return result
}

// attempt runs one strategy and verifies its output. A non-empty reason
// means the strategy did not produce an acceptable fix.
func (e *Engine) attempt(ctx context.Context, s models.FixStrategy, r *run) (*models.LocalFixResult, *models.VerificationResult, string) {
	o := race(ctx, s, e.cfg.timeoutFor(s), e.strategyFunc(s, r))
	switch {
	case o.Timeout != nil:
		return nil, nil, o.Timeout.String()
	case o.Err != nil:
		return nil, nil, o.Err.Error()
	case o.Result == nil || !o.Result.Success || len(o.Result.Files) == 0:
		return nil, nil, "no fix"
	}

	changed := changedFiles(o.Result.Files, r.files)
	if len(changed) == 0 {
		return nil, nil, "no change"
	}
	v := validation.VerifyFix(validation.VerifyOptions{
		Original: r.files,
		Fixed:    changed,
		Error:    r.message,
		Parsed:   r.parsed,
		Strict:   s.IsAI(),
	})
	if !v.IsValid {
		return nil, v, "verification failed: " + firstError(v)
	}

	fixed := *o.Result
	fixed.Files = changed
	return &fixed, v, ""
}

func outcomeLabel(reason string) string {
	if strings.HasPrefix(reason, "timed out") {
		return "timeout"
	}
	return "failed"
}

// recordStrategy feeds analytics and metrics for one strategy attempt.
// Recording outlives the run's deadline.
func (e *Engine) recordStrategy(ctx context.Context, message string, parsed *models.ParsedError, s models.FixStrategy, fixType string, success bool, elapsed time.Duration, outcome string) {
	e.metrics.observeStrategy(s, outcome, elapsed.Seconds())
	if e.analytics == nil {
		return
	}
	err := e.analytics.Record(context.WithoutCancel(ctx), analytics.Record{
		Signature: fixstate.Signature(message),
		Category:  parsed.Category,
		Strategy:  s,
		FixType:   fixType,
		Success:   success,
		Duration:  elapsed,
	})
	if err != nil {
		e.logf(levelWarn, "record analytics: %v", err)
	}
}

// recordRun counts the run against the error's signature.
func (e *Engine) recordRun(message string, parsed *models.ParsedError, s models.FixStrategy, success bool, elapsed time.Duration, failure string) {
	e.state.RecordAttempt(message, fixstate.AttemptRecord{
		Category: parsed.Category,
		Strategy: s,
		Success:  success,
		Duration: elapsed,
		Error:    failure,
	})
	if err := e.state.Save(); err != nil {
		e.logf(levelWarn, "save fix state: %v", err)
	}
}

func joinStrategies(ss []models.FixStrategy) string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// IsExhausted reports whether a result is the all-strategies-failed outcome.
func IsExhausted(r *models.FixResult) bool {
	return r != nil && !r.Success && !r.Skipped() && r.Description == ExhaustedDescription
}
