package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorBorder = lipgloss.Color("240")
	colorError  = lipgloss.Color("#FF3333")
	colorTitle  = lipgloss.Color("#04B575")
)

var boxStyle = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder).
	Padding(0, 1)

var errorBoxStyle = boxStyle.
	BorderForeground(colorError)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorTitle)

// render draws a reply in a box with a bold first line. Failure replies get a
// red border. With raw the message is returned unchanged.
func render(msg string, raw bool) string {
	msg = strings.TrimRight(msg, "\n")
	if raw {
		return msg
	}
	title, body, _ := strings.Cut(msg, "\n")
	content := titleStyle.Render(title)
	if body != "" {
		content += "\n" + body
	}
	if strings.HasPrefix(msg, "❌") {
		return errorBoxStyle.Render(content)
	}
	return boxStyle.Render(content)
}
