// Package agent drives repeated Fix Engine runs for one error as an explicit
// state machine. The host feeds it external events (a new error, an
// externally observed success, an abort) and receives state changes, log
// entries and file updates through callbacks.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/mender/internal/engine"
	"github.com/harrison/mender/internal/models"
)

// Fixer runs one orchestrated fix attempt. *engine.Engine implements it.
type Fixer interface {
	Fix(ctx context.Context, req engine.Request) *models.FixResult
}

// Config bounds a session.
type Config struct {
	MaxAttempts int                  // engine runs per session
	SettleDelay time.Duration        // wait after applying files before reporting success
	Skip        []models.FixStrategy // passed to every engine run
	TargetFile  string               // optional file to focus on
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, SettleDelay: 500 * time.Millisecond}
}

// Callbacks are invoked synchronously from Run. Every field is optional.
type Callbacks struct {
	OnStateChange func(state models.AgentState)
	OnLog         func(entry LogEntry)
	OnFileUpdate  func(path, content string)
	OnComplete    func(success bool, message string)
	OnProgress    func(stage string, percent int)
	OnStrategy    func(strategy models.FixStrategy)
}

// Result summarizes a finished session.
type Result struct {
	Success  bool
	State    models.AgentState
	Attempts int
	Message  string
	Files    models.FileSet // files applied on success
	Last     *models.FixResult
}

// Agent is one fix session. Run may be called once at a time; the event
// methods are safe to call from other goroutines while it runs.
type Agent struct {
	id    string
	cfg   Config
	fixer Fixer
	cb    Callbacks

	mu           sync.Mutex
	state        models.AgentState
	currentError string
	attempt      int
	cancel       context.CancelFunc
	aborted      bool
	resolved     bool
	logs         []LogEntry
}

// New returns an idle agent.
func New(fixer Fixer, cfg Config, cb Callbacks) *Agent {
	d := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = d.MaxAttempts
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Agent{
		id:    uuid.NewString(),
		cfg:   cfg,
		fixer: fixer,
		cb:    cb,
		state: models.AgentIdle,
	}
}

// ID identifies the session in log entries.
func (a *Agent) ID() string { return a.id }

// State returns the current state.
func (a *Agent) State() models.AgentState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// CurrentError returns the error the next attempt will work on.
func (a *Agent) CurrentError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentError
}

// Attempt returns the 1-based number of the attempt in progress, or of the
// last attempt once Run has returned.
func (a *Agent) Attempt() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempt
}

// Logs returns a copy of every entry logged so far.
func (a *Agent) Logs() []LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]LogEntry(nil), a.logs...)
}

// Abort cancels the session. An in-flight engine run sees its context
// cancelled; the loop stops at its next check.
func (a *Agent) Abort() {
	a.mu.Lock()
	a.aborted = true
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.log(LevelWarn, "Fix aborted")
}

// ReportError replaces the tracked error. An attempt already running keeps
// working on the previous message; the next attempt uses the new one.
func (a *Agent) ReportError(message string) {
	a.mu.Lock()
	changed := a.currentError != message
	a.currentError = message
	a.mu.Unlock()
	if changed {
		a.log(LevelInfo, "New error reported: "+firstLine(message))
	}
}

// ReportSuccess tells the agent the error is gone. The loop ends in the
// success state at its next check.
func (a *Agent) ReportSuccess() {
	a.mu.Lock()
	a.resolved = true
	a.mu.Unlock()
	a.log(LevelSuccess, "Error resolved externally")
}

// Run works on message until a fix is applied, attempts run out, the error
// is resolved externally or the session is aborted.
func (a *Agent) Run(ctx context.Context, message, stack string, files models.FileSet) *Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.cancel = cancel
	if a.aborted {
		cancel()
	}
	a.currentError = message
	a.attempt = 0
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.cancel = nil
		a.mu.Unlock()
	}()

	var last *models.FixResult
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		if r := a.checkStop(ctx, attempt-1, last); r != nil {
			return r
		}

		a.mu.Lock()
		a.attempt = attempt
		current := a.currentError
		a.mu.Unlock()

		a.log(LevelInfo, fmt.Sprintf("Fix attempt %d/%d", attempt, a.cfg.MaxAttempts))
		a.setState(models.AgentAnalyzing)

		last = a.fixer.Fix(ctx, engine.Request{
			Error:      current,
			Stack:      stack,
			Files:      files,
			TargetFile: a.cfg.TargetFile,
			Skip:       a.cfg.Skip,
			OnAnalyzed: func(p *models.ParsedError) {
				a.log(LevelInfo, fmt.Sprintf("Analyzed: type=%s category=%s confidence=%.0f%%", p.Type, p.Category, p.Confidence*100))
			},
			OnStrategy: func(s models.FixStrategy) {
				a.setState(models.StateForStrategy(string(s)))
				a.log(LevelDebug, "Trying "+string(s))
				if a.cb.OnStrategy != nil {
					a.cb.OnStrategy(s)
				}
			},
			OnProgress: a.cb.OnProgress,
		})

		if last.Success {
			return a.apply(ctx, attempt, last)
		}
		if last.Skipped() {
			a.log(LevelWarn, "Skipped: "+last.SkipReason)
			return a.finish(models.AgentFailed, attempt, last, "Fix skipped: "+last.SkipReason)
		}
		if last.Error != "" {
			a.log(LevelWarn, fmt.Sprintf("Attempt %d failed: %s", attempt, last.Error))
		} else {
			a.log(LevelWarn, fmt.Sprintf("Attempt %d failed: %s", attempt, last.Description))
		}
	}

	if r := a.checkStop(ctx, a.cfg.MaxAttempts, last); r != nil {
		return r
	}
	return a.finish(models.AgentMaxAttemptsReached, a.cfg.MaxAttempts, last,
		fmt.Sprintf("Could not fix error after %d attempts", a.cfg.MaxAttempts))
}

// checkStop handles the loop-top events: an external success wins over an
// abort.
func (a *Agent) checkStop(ctx context.Context, attempts int, last *models.FixResult) *Result {
	a.mu.Lock()
	resolved, aborted := a.resolved, a.aborted
	a.mu.Unlock()

	switch {
	case resolved:
		return a.finish(models.AgentSuccess, attempts, last, "Error resolved")
	case aborted || ctx.Err() != nil:
		return a.finish(models.AgentFailed, attempts, last, "Fix aborted")
	}
	return nil
}

func (a *Agent) apply(ctx context.Context, attempt int, res *models.FixResult) *Result {
	a.setState(models.AgentApplying)
	paths := res.Files.Paths()
	for _, p := range paths {
		if a.cb.OnFileUpdate != nil {
			a.cb.OnFileUpdate(p, res.Files[p])
		}
		a.log(LevelDebug, "Updated "+p)
	}

	a.setState(models.AgentVerifying)
	if a.cfg.SettleDelay > 0 {
		timer := time.NewTimer(a.cfg.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	msg := fmt.Sprintf("Fixed %s with %s (attempt %d)", strings.Join(paths, ", "), res.Strategy, attempt)
	r := a.finish(models.AgentSuccess, attempt, res, msg)
	r.Files = res.Files
	return r
}

func (a *Agent) finish(state models.AgentState, attempts int, last *models.FixResult, msg string) *Result {
	a.setState(state)
	success := state == models.AgentSuccess
	if success {
		a.log(LevelSuccess, msg)
	} else {
		a.log(LevelError, msg)
	}
	if a.cb.OnComplete != nil {
		a.cb.OnComplete(success, msg)
	}
	return &Result{Success: success, State: state, Attempts: attempts, Message: msg, Last: last}
}

func (a *Agent) setState(s models.AgentState) {
	a.mu.Lock()
	if a.state == s {
		a.mu.Unlock()
		return
	}
	a.state = s
	a.mu.Unlock()
	if a.cb.OnStateChange != nil {
		a.cb.OnStateChange(s)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
