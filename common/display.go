package common

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	PrimaryColor    = lipgloss.Color("#7D56F4") // Purple
	SuccessColor    = lipgloss.Color("#00FF00") // Bright Green
	ErrorColor      = lipgloss.Color("#FF0000") // Bright Red
	NormalTextColor = lipgloss.Color("#FFFFFF") // White
)

// DisplayBox creates a box with a title around content
func DisplayBox(title string, content string) string {
	boxStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Padding(0).
		Width(100)

	titleStyle := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)

	output := titleStyle.Render(title) + "\n\n" + content

	return boxStyle.Render(output)
}

// SectionTitle formats a section title
func SectionTitle(title string) string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Bold(true).
		PaddingLeft(2)

	return sectionStyle.Render(title)
}

// StatusListItem formats a status line: label, a colored verdict, the limit and the current value.
func StatusListItem(label string, statusPrefix string, limits string, current string, isSuccess bool) string {
	statusStyle := lipgloss.NewStyle().Foreground(SuccessColor)
	statusText := "less than"

	if !isSuccess {
		statusStyle = lipgloss.NewStyle().Foreground(ErrorColor)
		statusText = "more than"
	}

	if statusPrefix != "" {
		statusText = statusPrefix
	}

	contentStyle := lipgloss.NewStyle().
		Align(lipgloss.Left).
		PaddingLeft(4)

	itemStyle := lipgloss.NewStyle().
		Foreground(NormalTextColor)

	line := fmt.Sprintf("•  %-24s  %s %s (%s)",
		label,
		statusStyle.Render(statusText),
		limits,
		current)

	return contentStyle.Render(itemStyle.Render(line))
}
