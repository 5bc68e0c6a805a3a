package agent

import (
	"time"

	"github.com/google/uuid"

	"github.com/harrison/mender/internal/models"
)

// Level is the severity of a LogEntry.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarn    Level = "warn"
	LevelError   Level = "error"
	LevelSuccess Level = "success"
)

// LogEntry is one structured message from a session.
type LogEntry struct {
	ID        string            `json:"id"`
	Session   string            `json:"session"`
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Message   string            `json:"message"`
	State     models.AgentState `json:"state"`
	Attempt   int               `json:"attempt,omitempty"`
}

func (a *Agent) log(level Level, msg string) {
	a.mu.Lock()
	e := LogEntry{
		ID:        uuid.NewString(),
		Session:   a.id,
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		State:     a.state,
		Attempt:   a.attempt,
	}
	a.logs = append(a.logs, e)
	a.mu.Unlock()
	if a.cb.OnLog != nil {
		a.cb.OnLog(e)
	}
}
