// Package report renders panel payloads as chat messages.
//
// All functions are pure: they take decoded payloads and return the text to
// send. Labels are bilingual (中文/English).
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	kilobyte = 1024
	megabyte = kilobyte * 1024
	gigabyte = megabyte * 1024
)

// Display caps for long lists
const (
	MaxContainers    = 15
	MaxFirewallRules = 20
	maxImageLength   = 20
	maxDebugLength   = 1500
)

const (
	unknown      = "未知/unknown"
	justStarted  = "刚刚启动/just started"
	bootTimeForm = "2006-01-02 15:04:05"
)

// FormatBytes converts a byte count to a 1024-based human readable string
// with two decimals, e.g. 1536 -> "1.50 KB".
func FormatBytes(b float64) string {
	switch {
	case b < kilobyte:
		return fmt.Sprintf("%.2f B", b)
	case b < megabyte:
		return fmt.Sprintf("%.2f KB", b/kilobyte)
	case b < gigabyte:
		return fmt.Sprintf("%.2f MB", b/megabyte)
	default:
		return fmt.Sprintf("%.2f GB", b/gigabyte)
	}
}

// FormatUptime converts seconds to "Nd Nh Nm", leaving out zero components.
func FormatUptime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return justStarted
	}
	return strings.Join(parts, " ")
}

// LoadLabel qualifies a one-minute load average.
func LoadLabel(load float64) string {
	switch {
	case load < 1:
		return "运行流畅/smooth"
	case load < 2:
		return "负载较高/elevated"
	default:
		return "负载过高/high"
	}
}

// orDefault returns s, or def when s is empty.
func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// hiddenCount returns how many entries of a list were not displayed.
func hiddenCount(total, fetched, shown int) int {
	return max(total, fetched) - shown
}
