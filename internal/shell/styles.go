package shell

import "github.com/charmbracelet/lipgloss"

// ANSI 16-color palette so the output respects the user's terminal theme.
var (
	colorYellow = lipgloss.Color("11")
	colorGreen  = lipgloss.Color("10")
	colorRed    = lipgloss.Color("9")
	colorGray   = lipgloss.Color("8")
)

var (
	// spinnerStyle colors the busy indicator glyph.
	spinnerStyle = lipgloss.NewStyle().Foreground(colorYellow)

	// successStyle renders the per-action success glyph.
	successStyle = lipgloss.NewStyle().Foreground(colorGreen)

	// failureStyle renders the per-action failure glyph and error output.
	failureStyle = lipgloss.NewStyle().Foreground(colorRed)

	// dimStyle renders step headers and hints.
	dimStyle = lipgloss.NewStyle().Foreground(colorGray)
)
