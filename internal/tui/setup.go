package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbletea"

	"ainotes-cli/internal/app"
)

// SetupWizard collects the backend URL and API token on first run and writes
// the config file. Kept deliberately small: two inputs and a confirm screen.
type SetupWizard struct {
	theme     Theme
	cfg       *app.Config
	step      int
	input     textinput.Model
	baseURL   string
	token     string
	statusMsg string
	done      bool
	saved     bool
	width     int
}

func NewSetupWizard(cfg *app.Config) *SetupWizard {
	s := &SetupWizard{theme: NewTheme(), cfg: cfg, input: textinput.New(), width: 72}
	s.input.Placeholder = cfg.BaseURL
	s.input.CharLimit = 256
	s.input.Focus()
	return s
}

func (s *SetupWizard) Init() tea.Cmd {
	return textinput.Blink
}

// Saved reports whether the wizard wrote a config before exiting.
func (s *SetupWizard) Saved() bool { return s.saved }

func (s *SetupWizard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			s.done = true
			return s, tea.Quit

		case "enter":
			return s.advance()

		default:
			if s.step < 2 {
				s.input, cmd = s.input.Update(msg)
			}
			return s, cmd
		}
	}
	return s, nil
}

func (s *SetupWizard) advance() (tea.Model, tea.Cmd) {
	switch s.step {
	case 0:
		val := strings.TrimSpace(s.input.Value())
		if val == "" {
			val = s.cfg.BaseURL
		}
		if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
			s.statusMsg = "URL must start with http:// or https://"
			return s, nil
		}
		s.baseURL = strings.TrimRight(val, "/")
		s.statusMsg = ""
		s.step = 1
		s.input.Reset()
		s.input.Placeholder = "leave empty if the backend is open"
		s.input.EchoMode = textinput.EchoPassword

	case 1:
		s.token = strings.TrimSpace(s.input.Value())
		s.statusMsg = ""
		s.step = 2

	case 2:
		s.cfg.BaseURL = s.baseURL
		s.cfg.Token = s.token
		s.cfg.Installed = true
		if err := app.SaveConfig(*s.cfg, ""); err != nil {
			s.statusMsg = "could not save config: " + err.Error()
			return s, nil
		}
		s.saved = true
		s.done = true
		return s, tea.Quit
	}
	return s, nil
}

func (s *SetupWizard) View() string {
	if s.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(s.theme.Title.Render("nai setup"))
	b.WriteString("\n\n")

	switch s.step {
	case 0:
		b.WriteString(s.theme.Text.Render("Step 1 of 3: backend URL"))
		b.WriteString("\n\n")
		b.WriteString(s.input.View())
	case 1:
		b.WriteString(s.theme.Text.Render("Step 2 of 3: API token"))
		b.WriteString("\n\n")
		b.WriteString(s.input.View())
	case 2:
		b.WriteString(s.theme.Text.Render("Step 3 of 3: confirm"))
		b.WriteString("\n\n")
		b.WriteString(s.theme.Muted.Render("  backend  " + s.baseURL))
		b.WriteString("\n")
		token := "(none)"
		if s.token != "" {
			token = "••••" + tail(s.token, 4)
		}
		b.WriteString(s.theme.Muted.Render("  token    " + token))
		b.WriteString("\n")
		b.WriteString(s.theme.Muted.Render("  saved to " + app.DefaultConfigPath()))
	}

	if s.statusMsg != "" {
		b.WriteString("\n\n")
		b.WriteString(s.theme.Warn.Render(s.statusMsg))
	}
	b.WriteString("\n\n")
	b.WriteString(s.theme.Footer.Render("enter continue • esc cancel"))

	return s.theme.Pane.Width(minWidth(s.width-4, 64)).Render(b.String())
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func minWidth(w, limit int) int {
	if w < 30 {
		return 30
	}
	if w > limit {
		return limit
	}
	return w
}
