package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUsageLimit matches every *UsageLimitError via errors.Is.
var ErrUsageLimit = errors.New("llm: usage limit reached")

// LimitKind distinguishes a rolling session window from a weekly cap.
type LimitKind string

const (
	LimitSession LimitKind = "session"
	LimitWeekly  LimitKind = "weekly"
	LimitUnknown LimitKind = "unknown"
)

// UsageLimitError reports that the provider refused work until ResetAt.
type UsageLimitError struct {
	ResetAt time.Time
	Wait    time.Duration
	Kind    LimitKind
	Raw     string
}

func (e *UsageLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "usage limit reached"
	}
	return fmt.Sprintf("usage limit reached, resets in %s", e.Wait.Round(time.Second))
}

// Is makes errors.Is(err, ErrUsageLimit) true.
func (e *UsageLimitError) Is(target error) bool { return target == ErrUsageLimit }

var (
	// Claude AI usage limit reached|<unix_timestamp>
	unixTimestampPattern = regexp.MustCompile(`Claude AI usage limit reached\|(\d+)`)

	// limit will reset at 2pm (America/New_York), resets 1am (Europe/Dublin)
	resetClockPattern = regexp.MustCompile(`(?:limit will reset at|resets)\s+(\d+)(am|pm)\s*\(([^)]+)\)`)

	// retry in 300 seconds / retry after 300s
	retrySecondsPattern = regexp.MustCompile(`retry (?:in|after)\s+(\d+)\s*(?:seconds?|s)\b`)

	limitIndicator = regexp.MustCompile(`(?i)(out of.*usage|rate.?limit|usage.?limit|\b429\b|too.?many.?requests|resource.?exhausted)`)

	// Quoted or log-prefixed mentions are text about limits, not limits.
	falsePositivePattern = regexp.MustCompile(`(?i)(\[RATE.?LIMIT\]|` +
		"`rate.?limit|" +
		`"rate.?limit|` +
		`'rate.?limit)`)
)

// DetectUsageLimit inspects provider output or an error message. It returns
// nil when the text does not describe a usage limit.
func DetectUsageLimit(output string, now time.Time) *UsageLimitError {
	if output == "" || !limitIndicator.MatchString(output) || falsePositivePattern.MatchString(output) {
		return nil
	}

	e := &UsageLimitError{Raw: truncate(output, 500), Kind: LimitUnknown}
	setReset := func(at time.Time) *UsageLimitError {
		e.ResetAt = at
		e.Wait = at.Sub(now)
		e.Kind = kindFor(e.Wait)
		return e
	}

	if m := unixTimestampPattern.FindStringSubmatch(output); m != nil {
		if ts, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return setReset(time.Unix(ts, 0))
		}
	}

	if m := resetClockPattern.FindStringSubmatch(output); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if m[2] == "pm" && hour != 12 {
			hour += 12
		} else if m[2] == "am" && hour == 12 {
			hour = 0
		}
		loc, err := time.LoadLocation(m[3])
		if err != nil {
			loc = time.UTC
		}
		local := now.In(loc)
		at := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
		if at.Before(local) {
			at = at.Add(24 * time.Hour)
		}
		return setReset(at)
	}

	if m := retrySecondsPattern.FindStringSubmatch(output); m != nil {
		if seconds, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			return setReset(now.Add(time.Duration(seconds) * time.Second))
		}
	}

	if wait, ok := retryAfterJSON(output); ok {
		return setReset(now.Add(wait))
	}

	return e
}

// retryAfterJSON reads {"error": "...rate limit...", "retry_after": N} from a
// JSON object or any line of JSONL output.
func retryAfterJSON(data string) (time.Duration, bool) {
	lines := append([]string{data}, strings.Split(data, "\n")...)
	for _, line := range lines {
		var obj struct {
			Error      string          `json:"error"`
			RetryAfter json.RawMessage `json:"retry_after"`
		}
		if json.Unmarshal([]byte(strings.TrimSpace(line)), &obj) != nil || !limitIndicator.MatchString(obj.Error) {
			continue
		}
		raw := strings.Trim(string(obj.RetryAfter), `"`)
		if seconds, err := strconv.ParseFloat(raw, 64); err == nil && seconds > 0 {
			return time.Duration(seconds * float64(time.Second)), true
		}
	}
	return 0, false
}

// kindFor classifies waits over six hours as weekly limits.
func kindFor(wait time.Duration) LimitKind {
	switch {
	case wait <= 0:
		return LimitUnknown
	case wait > 6*time.Hour:
		return LimitWeekly
	default:
		return LimitSession
	}
}
