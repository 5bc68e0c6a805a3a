// Package logger provides logging implementations for mender fix sessions.
//
// The logger package renders leveled messages, structured agent log entries,
// strategy progress and fix results. Implementations are thread-safe and
// support various output destinations (console, file).
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/mender/internal/agent"
	"github.com/harrison/mender/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs fix progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// It supports log level filtering to control message verbosity.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal reports whether w is a TTY that should get colors.
// NO_COLOR (via fatih/color) always wins.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil || color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// shouldLog checks if a message at the given level should be logged.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// LogTrace logs a trace-level message (most verbose).
// Format: "[HH:MM:SS] [TRACE] <message>"
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
// Format: "[HH:MM:SS] [DEBUG] <message>"
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
// Format: "[HH:MM:SS] [WARN] <message>"
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
// Format: "[HH:MM:SS] [ERROR] <message>"
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprint(cl.writer, cl.formatWithColor(ts, level, message))
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

// formatWithColor formats a log message with ANSI color codes.
func (cl *ConsoleLogger) formatWithColor(ts, level, message string) string {
	var coloredLevel string
	switch strings.ToUpper(level) {
	case "TRACE":
		coloredLevel = color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		coloredLevel = color.New(color.FgCyan).Sprint(level)
	case "INFO":
		coloredLevel = color.New(color.FgBlue).Sprint(level)
	case "OK":
		coloredLevel = color.New(color.FgGreen).Sprint(level)
	case "WARN":
		coloredLevel = color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		coloredLevel = color.New(color.FgRed).Sprint(level)
	default:
		coloredLevel = level
	}
	return fmt.Sprintf("[%s] [%s] %s\n", ts, coloredLevel, message)
}

// LogEntry renders one structured agent log entry. Success entries print
// as OK at info level.
// Format: "[HH:MM:SS] [LEVEL] (state #attempt) <message>"
func (cl *ConsoleLogger) LogEntry(e agent.LogEntry) {
	level := "INFO"
	switch e.Level {
	case agent.LevelDebug:
		level = "DEBUG"
	case agent.LevelWarn:
		level = "WARN"
	case agent.LevelError:
		level = "ERROR"
	case agent.LevelSuccess:
		level = "OK"
	}

	filter := strings.ToLower(level)
	if level == "OK" {
		filter = "info"
	}
	if cl.writer == nil || !cl.shouldLog(filter) {
		return
	}

	msg := e.Message
	if e.Attempt > 0 {
		msg = fmt.Sprintf("(%s #%d) %s", e.State, e.Attempt, msg)
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	ts := e.Timestamp.Format("15:04:05")
	if e.Timestamp.IsZero() {
		ts = timestamp()
	}
	if cl.colorOutput {
		fmt.Fprint(cl.writer, cl.formatWithColor(ts, level, msg))
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, msg)
}

// LogAnalysis prints the analyzer's reading of the error at INFO level.
func (cl *ConsoleLogger) LogAnalysis(p *models.ParsedError) {
	if p == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error type %s, category %s, confidence %.0f%%, priority %d", p.Type, p.Category, p.Confidence*100, p.Priority)
	if p.File != "" {
		fmt.Fprintf(&sb, ", at %s", p.File)
		if p.Line > 0 {
			fmt.Fprintf(&sb, ":%d", p.Line)
		}
	}
	if p.IsIgnorable {
		sb.WriteString(" (ignorable)")
	}
	cl.LogInfo(sb.String())
	if p.SuggestedFix != "" {
		cl.LogDebug("Suggestion: " + p.SuggestedFix)
	}
	if len(p.RelatedFiles) > 0 {
		cl.LogDebug("Related files: " + strings.Join(p.RelatedFiles, ", "))
	}
}

// LogProgress renders a strategy progress estimate.
// Format: "[HH:MM:SS] <stage> [=====     ] 50%"
func (cl *ConsoleLogger) LogProgress(stage string, percent int) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	pb := NewProgressBar(10, cl.colorOutput)
	pb.Update(stage, percent)

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), pb.Render())
}

// LogFixResult prints the outcome of a fix run with its verification.
func (cl *ConsoleLogger) LogFixResult(r *models.FixResult) {
	if r == nil || cl.writer == nil {
		return
	}
	scheme := newColorScheme(cl.colorOutput)

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	switch {
	case r.Success:
		fmt.Fprintf(cl.writer, "[%s] %s %s via %s in %s (%d strategies tried)\n",
			ts, scheme.success.Sprint("FIXED"), strings.Join(r.ChangedPaths(), ", "),
			r.Strategy, formatDuration(r.Duration), r.Attempts)
	case r.Skipped():
		fmt.Fprintf(cl.writer, "[%s] %s %s\n", ts, scheme.warn.Sprint("SKIPPED"), r.SkipReason)
		return
	default:
		fmt.Fprintf(cl.writer, "[%s] %s %s after %d strategies in %s\n",
			ts, scheme.fail.Sprint("NOT FIXED"), r.Description, r.Attempts, formatDuration(r.Duration))
		if r.Error != "" {
			for _, part := range strings.Split(r.Error, "; ") {
				fmt.Fprintf(cl.writer, "    - %s\n", part)
			}
		}
		return
	}

	if v := r.Verification; v != nil {
		fmt.Fprintf(cl.writer, "    %s\n", formatVerification(v, scheme))
		for _, issue := range v.Issues {
			fmt.Fprintf(cl.writer, "    - %s %s\n", scheme.severity(issue.Severity), issueText(issue))
		}
	}
}

func issueText(i models.VerificationIssue) string {
	switch {
	case i.File != "" && i.Line > 0:
		return fmt.Sprintf("%s:%d: %s", i.File, i.Line, i.Message)
	case i.File != "":
		return i.File + ": " + i.Message
	default:
		return i.Message
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a human-readable string.
// Examples: "250ms", "5s", "1m30s"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder < time.Second {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}

// NoOpLogger discards all log messages.
// Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (n *NoOpLogger) LogDebug(string) {}
func (n *NoOpLogger) LogInfo(string) {}
func (n *NoOpLogger) LogWarn(string) {}
func (n *NoOpLogger) LogError(string) {}
func (n *NoOpLogger) LogEntry(agent.LogEntry) {}
func (n *NoOpLogger) LogProgress(string, int) {}
func (n *NoOpLogger) LogFixResult(*models.FixResult) {}
