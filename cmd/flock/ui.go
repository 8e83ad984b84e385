package main

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	styleAccent  = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleErr     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleDim     = lipgloss.NewStyle().Faint(true)
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
)

// plainOutput reports whether styling should be suppressed: piped output
// or a terminal without color support.
func plainOutput() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return true
	}
	return termenv.ColorProfile() == termenv.Ascii
}

func renderAccent(s string) string { return render(styleAccent, s) }
func renderOK(s string) string     { return render(styleOK, s) }
func renderWarn(s string) string   { return render(styleWarn, s) }
func renderErr(s string) string    { return render(styleErr, s) }
func renderDim(s string) string    { return render(styleDim, s) }
func renderHead(s string) string   { return render(styleHeading, s) }

func render(style lipgloss.Style, s string) string {
	if plainOutput() {
		return s
	}
	return style.Render(s)
}

// termWidth returns the terminal width, falling back to 80.
func termWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
