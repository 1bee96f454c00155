package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Calm slate base with a cyan accent, same family as the rest of
// our terminal tooling.
const (
	colorFg      = "#F8FAFC" // Slate 50
	colorMuted   = "#94A3B8" // Slate 400
	colorFaint   = "#64748B" // Slate 500
	colorAccent  = "#06B6D4" // Cyan 500
	colorAccent2 = "#22D3EE" // Cyan 400
	colorOK      = "#34D399" // Emerald 400
	colorWarn    = "#FBBF24" // Amber 400
	colorErr     = "#F87171" // Red 400
	colorBorder  = "#334155" // Slate 700
)

type Theme struct {
	Text  lipgloss.Style
	Muted lipgloss.Style
	Faint lipgloss.Style

	Title   lipgloss.Style
	Accent  lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Error   lipgloss.Style

	Pane     lipgloss.Style
	InputBox lipgloss.Style
	Footer   lipgloss.Style
	Spinner  lipgloss.Style

	RoleYou lipgloss.Style
	RoleAI  lipgloss.Style

	StepDone    lipgloss.Style
	StepActive  lipgloss.Style
	StepPending lipgloss.Style

	PickerTitle lipgloss.Style
	PickerRow   lipgloss.Style
	PickerSel   lipgloss.Style
}

func NewTheme() Theme {
	if os.Getenv("NAI_NO_COLOR") == "1" {
		return newNoColorTheme()
	}
	return Theme{
		Text:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorFg)),
		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)),
		Faint: lipgloss.NewStyle().Foreground(lipgloss.Color(colorFaint)),

		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		Accent:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent2)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(colorOK)),
		Warn:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorErr)),

		Pane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1),
		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorAccent)).
			Padding(0, 1),
		Footer:  lipgloss.NewStyle().Foreground(lipgloss.Color(colorFaint)),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color(colorAccent2)),

		RoleYou: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent2)),
		RoleAI:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorOK)),

		StepDone:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorOK)),
		StepActive:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent2)),
		StepPending: lipgloss.NewStyle().Foreground(lipgloss.Color(colorFaint)),

		PickerTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent)),
		PickerRow:   lipgloss.NewStyle().Foreground(lipgloss.Color(colorFg)),
		PickerSel:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAccent2)),
	}
}

func newNoColorTheme() Theme {
	plain := lipgloss.NewStyle()
	return Theme{
		Text: plain, Muted: plain, Faint: plain,
		Title: plain.Bold(true), Accent: plain, Success: plain, Warn: plain, Error: plain,
		Pane:     plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
		InputBox: plain.Border(lipgloss.NormalBorder()).Padding(0, 1),
		Footer:   plain, Spinner: plain,
		RoleYou: plain.Bold(true), RoleAI: plain.Bold(true),
		StepDone: plain, StepActive: plain.Bold(true), StepPending: plain,
		PickerTitle: plain.Bold(true), PickerRow: plain, PickerSel: plain.Bold(true),
	}
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
