// Package narrative renders the human-readable strings embedded in
// conversation messages and activity entries. Everything here is pure.
package narrative

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders an elapsed duration as "{h}h {m}m", "{m}m {s}s"
// or "{s}s". Units are integer divisions, no rounding.
func FormatDuration(d time.Duration) string {
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	}
	return fmt.Sprintf("%ds", seconds)
}

// SummarizeTitle derives a task title from a prompt: the first line,
// verbatim when it fits in 80 characters, otherwise truncated to 77 with
// a preference for breaking at a space past position 50.
func SummarizeTitle(prompt string) string {
	cleaned := strings.TrimSpace(prompt)
	firstLine, _, _ := strings.Cut(cleaned, "\n")
	firstLine = strings.TrimSpace(firstLine)
	if len(firstLine) <= 80 {
		return firstLine
	}
	truncated := firstLine[:77]
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 50 {
		return truncated[:lastSpace] + "..."
	}
	return truncated + "..."
}
