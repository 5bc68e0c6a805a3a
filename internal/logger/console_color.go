package logger

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/harrison/mender/internal/models"
)

// colorScheme defines consistent colors for result rendering.
// Green: success, Red: failure, Yellow: warnings, Cyan: labels
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme. With enabled false every
// color prints plain text.
func newColorScheme(enabled bool) *colorScheme {
	s := &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
	for _, c := range []*color.Color{s.success, s.fail, s.warn, s.label, s.value} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return s
}

func (s *colorScheme) severity(sev models.Severity) string {
	switch sev {
	case models.SeverityError:
		return s.fail.Sprint("error")
	case models.SeverityWarning:
		return s.warn.Sprint("warning")
	default:
		return s.label.Sprint("info")
	}
}

// confidence colors a confidence bucket: high green, medium yellow, low red.
func (s *colorScheme) confidence(level models.ConfidenceLevel) string {
	switch level {
	case models.ConfidenceHigh:
		return s.success.Sprint(level)
	case models.ConfidenceMedium:
		return s.warn.Sprint(level)
	default:
		return s.fail.Sprint(level)
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
// Format: "label: value"
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), scheme.value.Sprintf("%v", value))
}

// formatVerification summarizes a verification result on one line.
// Format: "verification: score 0.85 (medium), 1 error(s), 2 issue(s)"
func formatVerification(v *models.VerificationResult, scheme *colorScheme) string {
	return fmt.Sprintf("%s, %s",
		formatColorizedMetric("verification", fmt.Sprintf("score %.2f", v.Score), scheme),
		fmt.Sprintf("confidence %s, %d error(s), %d issue(s)", scheme.confidence(v.Confidence), v.ErrorCount(), len(v.Issues)))
}

// FormatRate renders a success rate as a percentage colored by threshold:
// at least 70% green, at least 40% yellow, otherwise red.
func FormatRate(rate float64, enableColor bool) string {
	scheme := newColorScheme(enableColor)
	text := fmt.Sprintf("%5.1f%%", rate*100)
	switch {
	case rate >= 0.7:
		return scheme.success.Sprint(text)
	case rate >= 0.4:
		return scheme.warn.Sprint(text)
	default:
		return scheme.fail.Sprint(text)
	}
}
