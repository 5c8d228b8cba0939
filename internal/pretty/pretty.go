// Package pretty formats values for terminal output.
package pretty

import (
	"fmt"
	"strconv"
	"time"
)

// Abbrev shortens s to maxLen characters, marking the cut with an ellipsis.
func Abbrev(s string, maxLen int) string {
	r := []rune(s)
	if maxLen < 1 || len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

// Ping formats an optional latency in milliseconds.
func Ping(d *time.Duration) string {
	if d == nil {
		return "-"
	}
	ms := float64(*d) / float64(time.Millisecond)
	if ms < 10 {
		return fmt.Sprintf("%.1fms", ms)
	}
	return fmt.Sprintf("%.0fms", ms)
}

// Uint formats an optional number.
func Uint(n *uint64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatUint(*n, 10)
}

// String formats an optional value with a String method.
func String(s fmt.Stringer, ok bool) string {
	if !ok {
		return "-"
	}
	return s.String()
}
