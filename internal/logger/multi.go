package logger

import (
	"github.com/harrison/mender/internal/agent"
	"github.com/harrison/mender/internal/models"
)

// Sink is what a fix session reports to.
type Sink interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogEntry(e agent.LogEntry)
	LogProgress(stage string, percent int)
	LogFixResult(r *models.FixResult)
}

var (
	_ Sink = (*ConsoleLogger)(nil)
	_ Sink = (*FileLogger)(nil)
	_ Sink = (*NoOpLogger)(nil)
	_ Sink = Multi(nil)
)

// Multi fans every call out to each sink in order.
type Multi []Sink

func (m Multi) LogDebug(message string) {
	for _, s := range m {
		s.LogDebug(message)
	}
}

func (m Multi) LogInfo(message string) {
	for _, s := range m {
		s.LogInfo(message)
	}
}

func (m Multi) LogWarn(message string) {
	for _, s := range m {
		s.LogWarn(message)
	}
}

func (m Multi) LogError(message string) {
	for _, s := range m {
		s.LogError(message)
	}
}

func (m Multi) LogEntry(e agent.LogEntry) {
	for _, s := range m {
		s.LogEntry(e)
	}
}

func (m Multi) LogProgress(stage string, percent int) {
	for _, s := range m {
		s.LogProgress(stage, percent)
	}
}

func (m Multi) LogFixResult(r *models.FixResult) {
	for _, s := range m {
		s.LogFixResult(r)
	}
}
