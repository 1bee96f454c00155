package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ainotes-cli/internal/app"
	"ainotes-cli/internal/tui"
)

const version = "0.3.0"

var (
	flagMock   bool
	flagNoTUI  bool
	flagConfig string
	flagNoteID int
)

func main() {
	root := &cobra.Command{
		Use:   "nai",
		Short: "Terminal client for the notes agent",
		Long: "nai talks to the notes-agent backend: capture thoughts with " +
			"'nai add', hold a conversation with 'nai chat'.\n\n" +
			"Run without arguments to open the chat.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
	root.PersistentFlags().BoolVar(&flagMock, "mock", false, "Use a scripted in-process backend")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default ~/.nai/config.yaml)")

	addCmd := &cobra.Command{
		Use:   "add [instruction]",
		Short: "Send a one-shot instruction to the agent",
		Long: "Send a natural-language instruction and watch the agent work " +
			"through it.\n\nExamples:\n  nai add \"buy milk tomorrow\"\n" +
			"  nai add --note 7 \"also eggs\"\n  echo \"call mum\" | nai add",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInstruction(args)
			if err != nil {
				return err
			}
			application, err := bootstrap(true)
			if err != nil {
				return err
			}
			defer application.Close()
			if flagNoTUI {
				return runAddPlain(application, input, flagNoteID)
			}
			model := tui.NewProgressModel(application, input, flagNoteID)
			p := tea.NewProgram(model)
			if _, err := p.Run(); err != nil {
				return err
			}
			if model.Failed() {
				os.Exit(1)
			}
			return nil
		},
	}
	addCmd.Flags().BoolVarP(&flagNoTUI, "no-tui", "n", false, "Plain line output instead of the TUI")
	addCmd.Flags().IntVar(&flagNoteID, "note", 0, "Pin the instruction to a note id")
	root.AddCommand(addCmd)

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the interactive chat",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
	root.AddCommand(chatCmd)

	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chat sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer application.Close()
			ctx := cmd.Context()
			sessions, err := application.Client.ListSessions(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions yet")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%4d  %s\n", s.ID, s.Title)
			}
			return nil
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "new [title]",
		Short: "Create a chat session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := "New chat"
			if len(args) > 0 {
				title = args[0]
			}
			application, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer application.Close()
			session, err := application.Client.CreateSession(cmd.Context(), title)
			if err != nil {
				return err
			}
			fmt.Printf("created session %d (%s)\n", session.ID, session.Title)
			return nil
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "rename [id] [title]",
		Short: "Rename a chat session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad session id %q", args[0])
			}
			application, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer application.Close()
			return application.Client.RenameSession(cmd.Context(), id, args[1])
		},
	})
	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("bad session id %q", args[0])
			}
			application, err := bootstrap(false)
			if err != nil {
				return err
			}
			defer application.Close()
			if err := application.Client.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			return application.Cache.Delete(id)
		},
	})
	root.AddCommand(sessionsCmd)

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("nai", version)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "setup",
		Short: "Re-run the setup wizard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(configPath())
			if err != nil {
				return err
			}
			return runSetup(&cfg)
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return app.DefaultConfigPath()
}

// bootstrap loads config (running the wizard on first use) and builds the
// Application. interactive gates the wizard; plain commands fail instead.
func bootstrap(interactive bool) (*app.Application, error) {
	cfg, err := app.LoadConfig(configPath())
	if err != nil {
		return nil, err
	}
	if !cfg.Installed && !flagMock {
		if !interactive {
			return nil, errors.New("not configured yet, run 'nai setup' first")
		}
		if err := runSetup(&cfg); err != nil {
			return nil, err
		}
		if !cfg.Installed {
			return nil, errors.New("setup cancelled")
		}
	}
	return app.NewApplication(cfg, flagMock), nil
}

func runSetup(cfg *app.Config) error {
	wizard := tui.NewSetupWizard(cfg)
	if _, err := tea.NewProgram(wizard).Run(); err != nil {
		return err
	}
	if wizard.Saved() {
		fmt.Println("configuration saved to", app.DefaultConfigPath())
	}
	return nil
}

func runChat() error {
	application, err := bootstrap(true)
	if err != nil {
		return err
	}
	defer application.Close()

	model := tui.NewChatModel(application)
	p := tea.NewProgram(model, tea.WithAltScreen())
	// Dependent-data signals reach the Update loop through Program.Send.
	application.Signals.Subscribe(func(sig app.Signal) {
		p.Send(tui.SignalMsg{Signal: sig})
	})
	_, err = p.Run()
	return err
}

func readInstruction(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	stat, _ := os.Stdin.Stat()
	if stat != nil && stat.Mode()&os.ModeCharDevice == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			return s, nil
		}
	}
	return "", errors.New("nothing to add: pass an instruction or pipe one in")
}

// runAddPlain drives the add flow without bubbletea: one line per phase
// transition, numeric stdin prompt on ambiguity. For scripts and CI.
func runAddPlain(application *app.Application, input string, noteID int) error {
	orch := app.NewOrchestrator(application.Logger, application.Signals)
	op, gen, err := orch.Begin(input, noteID)
	if err != nil {
		return err
	}

	for {
		outcome, err := pumpPlain(application, orch, op, gen)
		if err != nil {
			return err
		}
		switch outcome.Class {
		case app.ClassSuccess:
			if outcome.SelectedNoteID != 0 {
				fmt.Printf("saved, note #%d\n", outcome.SelectedNoteID)
			} else {
				fmt.Println("saved")
			}
			return nil

		case app.ClassAwaitingChoice:
			choice, err := promptCandidate(outcome.Candidates)
			if err != nil {
				orch.CancelChoice()
				return err
			}
			op, gen, err = orch.Resolve(choice)
			if err != nil {
				return err
			}

		default:
			return errors.New(outcome.Message)
		}
	}
}

// pumpPlain consumes one stream to its terminal outcome, echoing phase
// transitions as they land.
func pumpPlain(application *app.Application, orch *app.Orchestrator, op *app.Operation, gen uint64) (app.Outcome, error) {
	parser, err := application.Client.ProcessStream(context.Background(), op.Input, op.BoundTargetID)
	if err != nil {
		outcome := orch.Fail(gen, err)
		return outcome, nil
	}
	defer parser.Close()

	lastPhase := app.PhaseReceived
	for {
		ev, err := parser.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return app.Outcome{}, errors.New("stream ended before a terminal event")
			}
			return orch.Fail(gen, err), nil
		}
		outcome := orch.Apply(gen, ev)
		if !outcome.Applied {
			continue
		}
		if phase := op.Phases.Current(); phase != lastPhase && !phase.Terminal() {
			fmt.Println("·", op.Phases.Label(phase))
			lastPhase = phase
		}
		if outcome.Class != app.ClassNone {
			return outcome, nil
		}
	}
}

func promptCandidate(candidates []app.Candidate) (app.Candidate, error) {
	fmt.Println("which note did you mean?")
	for i, c := range candidates {
		fmt.Printf("  %d) %s (#%d)\n", i+1, c.Label, c.TargetID)
	}
	fmt.Print("> ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return app.Candidate{}, errors.New("no selection made")
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(candidates) {
		return app.Candidate{}, errors.New("invalid selection")
	}
	return candidates[n-1], nil
}
