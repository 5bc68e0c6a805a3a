package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrison/mender/internal/models"
)

// StrategyError is a failure inside one strategy. It never leaves the engine;
// the strategy counts as failed and the loop moves on.
type StrategyError struct {
	Strategy models.FixStrategy
	Message  string
	Err      error // underlying error (optional)
}

// Error implements the error interface.
func (e *StrategyError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("strategy %s: %s", e.Strategy, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *StrategyError) Unwrap() error {
	return e.Err
}

// IsStrategyError checks if the error is or wraps a StrategyError.
func IsStrategyError(err error) bool {
	if err == nil {
		return false
	}
	var se *StrategyError
	return errors.As(err, &se)
}

// Timeout is the value a strategy call resolves to when its timer fires
// first. It is deliberately not an error.
type Timeout struct {
	Strategy models.FixStrategy
	After    time.Duration
}

func (t Timeout) String() string {
	return fmt.Sprintf("timed out after %s", t.After)
}
