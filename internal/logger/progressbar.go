package logger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ProgressBar renders a percent estimate as an ASCII bar with a stage label
type ProgressBar struct {
	percent     int
	stage       string
	width       int
	enableColor bool
	mu          sync.RWMutex
}

// NewProgressBar creates a new progress bar
func NewProgressBar(width int, enableColor bool) *ProgressBar {
	if width < 1 {
		width = 10
	}
	return &ProgressBar{width: width, enableColor: enableColor}
}

// Update sets the stage label and percent, clamped to 0-100
func (pb *ProgressBar) Update(stage string, percent int) {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	if percent > 100 {
		percent = 100
	}
	if percent < 0 {
		percent = 0
	}
	pb.stage = stage
	pb.percent = percent
}

// Percentage returns the progress percentage (0-100)
func (pb *ProgressBar) Percentage() int {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.percent
}

// Stage returns the current stage label
func (pb *ProgressBar) Stage() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.stage
}

// Render generates the progress line.
// Format: "<stage> [=====     ] 50%"
func (pb *ProgressBar) Render() string {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	filled := (pb.percent * pb.width) / 100
	bar := "[" + strings.Repeat("=", filled) + strings.Repeat(" ", pb.width-filled) + "]"

	result := fmt.Sprintf("%s %3d%%", bar, pb.percent)
	if pb.stage != "" {
		result = pb.stage + " " + result
	}

	if pb.enableColor {
		c := color.New(color.FgCyan) // in progress
		if pb.percent == 100 {
			c = color.New(color.FgGreen)
		}
		c.EnableColor()
		result = c.Sprint(result)
	}
	return result
}
