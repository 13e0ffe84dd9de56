package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles degrade to plain text when the writer is not a terminal.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
)

func Title(s string) string {
	return titleStyle.Render(s)
}

func Success(s string) string {
	return successStyle.Render(s)
}

func Hint(s string) string {
	return hintStyle.Render(s)
}

// ErrorPrefix renders "error:" for w, coloured only when w is a terminal.
func ErrorPrefix(w io.Writer) string {
	r := lipgloss.NewRenderer(w)
	return r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")).Render("error:")
}
