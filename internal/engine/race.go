package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/harrison/mender/internal/models"
)

// outcome is what one strategy call resolved to: a result, an error, or the
// Timeout sentinel. Exactly one of the three is meaningful.
type outcome struct {
	Result  *models.LocalFixResult
	Err     error
	Timeout *Timeout
}

type strategyFunc func(ctx context.Context) (*models.LocalFixResult, error)

// race runs fn against a timer. When the timer fires first the outcome is a
// Timeout and fn's context is cancelled; fn may still finish in the
// background but its result is dropped. Panics inside fn become a
// StrategyError.
func race(ctx context.Context, s models.FixStrategy, d time.Duration, fn strategyFunc) outcome {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{Err: &StrategyError{
					Strategy: s,
					Message:  "panic",
					Err:      fmt.Errorf("%v\n%s", r, debug.Stack()),
				}}
			}
		}()
		res, err := fn(callCtx)
		done <- outcome{Result: res, Err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case o := <-done:
		return o
	case <-timer.C:
		return outcome{Timeout: &Timeout{Strategy: s, After: d}}
	case <-ctx.Done():
		return outcome{Err: &StrategyError{Strategy: s, Message: "cancelled", Err: ctx.Err()}}
	}
}
