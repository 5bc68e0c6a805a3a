package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/mender/internal/agent"
	"github.com/harrison/mender/internal/models"
)

// FileLogger logs fix sessions to files in a log directory (.mender/logs by
// default). It creates a timestamped per-run log file, writes one JSON
// document per fix result under fixes/, and keeps a latest.log symlink
// pointing to the most recent run.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	fixesDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger with a custom log directory and log level.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	fixesDir := filepath.Join(logDir, "fixes")
	if err := os.MkdirAll(fixesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create fixes directory: %w", err)
	}

	// run-YYYYMMDD-HHMMSS.log
	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		fixesDir: fixesDir,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== mender run log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

// RunFile returns the path of the current run log.
func (fl *FileLogger) RunFile() string { return fl.runFile }

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogEntry writes an agent entry with its session and state.
func (fl *FileLogger) LogEntry(e agent.LogEntry) {
	level := strings.ToUpper(string(e.Level))
	filter := string(e.Level)
	if e.Level == agent.LevelSuccess {
		level, filter = "OK", "info"
	}
	if !fl.shouldLog(filter) {
		return
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] session=%s state=%s attempt=%d %s\n",
		ts.Format("15:04:05"), level, shortID(e.Session), e.State, e.Attempt, e.Message))
}

// LogProgress is a no-op: progress is displayed on console only.
func (fl *FileLogger) LogProgress(string, int) {}

// LogFixResult summarizes the result in the run log and writes the full
// result as JSON to fixes/fix-<timestamp>.json.
func (fl *FileLogger) LogFixResult(r *models.FixResult) {
	if r == nil {
		return
	}
	status := "NOT FIXED"
	switch {
	case r.Success:
		status = "FIXED"
	case r.Skipped():
		status = "SKIPPED"
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [RESULT] %s strategy=%s attempts=%d duration=%s %s\n",
		time.Now().Format("15:04:05"), status, r.Strategy, r.Attempts, formatDuration(r.Duration), r.Description))

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		fl.LogWarn(fmt.Sprintf("encode fix result: %v", err))
		return
	}
	name := fmt.Sprintf("fix-%s.json", time.Now().Format("20060102-150405.000"))
	if err := os.WriteFile(filepath.Join(fl.fixesDir, name), data, 0644); err != nil {
		fl.LogWarn(fmt.Sprintf("write fix result: %v", err))
	}
}

func (fl *FileLogger) writeRunLog(s string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog != nil {
		fl.runLog.WriteString(s)
	}
}

// Close closes the run log.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
