package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"ainotes-cli/internal/app"
)

// CandidatePicker lists disambiguation candidates exactly as the server sent
// them. No reordering, filtering or deduplication happens here; the server
// owns relevance ranking.
type CandidatePicker struct {
	theme      Theme
	prompt     string
	candidates []app.Candidate
	index      int
}

func NewCandidatePicker(theme Theme, prompt string, candidates []app.Candidate) *CandidatePicker {
	return &CandidatePicker{theme: theme, prompt: prompt, candidates: candidates}
}

func (p *CandidatePicker) Move(delta int) {
	next := p.index + delta
	if next < 0 {
		next = 0
	}
	if next > len(p.candidates)-1 {
		next = len(p.candidates) - 1
	}
	p.index = next
}

func (p *CandidatePicker) Selected() app.Candidate {
	return p.candidates[p.index]
}

func (p *CandidatePicker) View(width int) string {
	if width < 30 {
		width = 30
	}
	var b strings.Builder
	b.WriteString(p.theme.PickerTitle.Render("Which note did you mean?"))
	b.WriteString("\n")
	b.WriteString(p.theme.Muted.Render("↑/↓ select • enter confirm • esc cancel"))
	b.WriteString("\n\n")
	if p.prompt != "" {
		b.WriteString(p.theme.Faint.Render(truncate.StringWithTail("“"+p.prompt+"”", uint(width-4), "…")))
		b.WriteString("\n\n")
	}
	for i, c := range p.candidates {
		label := fmt.Sprintf("%s  %s", c.Label, p.theme.Faint.Render(fmt.Sprintf("#%d", c.TargetID)))
		if i == p.index {
			b.WriteString(p.theme.PickerSel.Render("› " + label))
		} else {
			b.WriteString(p.theme.PickerRow.Render("  " + label))
		}
		if i < len(p.candidates)-1 {
			b.WriteString("\n")
		}
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colorBorder)).
		Padding(0, 1).
		Width(width).
		Render(b.String())
}
