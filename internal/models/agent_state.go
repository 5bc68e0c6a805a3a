package models

import "strings"

// AgentState is the single active state of a fix agent session.
type AgentState string

const (
	AgentIdle               AgentState = "idle"
	AgentAnalyzing          AgentState = "analyzing"
	AgentLocalFix           AgentState = "local-fix"
	AgentAIFix              AgentState = "ai-fix"
	AgentFixing             AgentState = "fixing"
	AgentApplying           AgentState = "applying"
	AgentVerifying          AgentState = "verifying"
	AgentSuccess            AgentState = "success"
	AgentFailed             AgentState = "failed"
	AgentMaxAttemptsReached AgentState = "max_attempts_reached"
)

// IsTerminal reports whether no further transitions happen from s.
func (s AgentState) IsTerminal() bool {
	switch s {
	case AgentSuccess, AgentFailed, AgentMaxAttemptsReached:
		return true
	default:
		return false
	}
}

// StateForStrategy maps a strategy name prefix to the coarse UI state.
func StateForStrategy(strategy string) AgentState {
	switch {
	case strings.HasPrefix(strategy, "local"):
		return AgentLocalFix
	case strings.HasPrefix(strategy, "ai"):
		return AgentAIFix
	default:
		return AgentFixing
	}
}
