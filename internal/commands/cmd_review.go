package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/pkg/fsutil"
)

// Review decisions.
const (
	decisionApprove = "approve"
	decisionReject  = "reject"
	decisionSkip    = "skip"
	decisionQuit    = "quit"
)

var (
	reviewTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	reviewDoneStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

type ReviewCmd struct {
	flags *Flags
}

// NewReviewCmd creates a new review command.
func NewReviewCmd(flags *Flags) *ReviewCmd {
	return &ReviewCmd{flags: flags}
}

// Register adds the review command to the application.
func (cmd *ReviewCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "review",
		Usage:     "Review pending approval requests interactively",
		UsageText: "warden review",
		Description: `Walks through the records in Pending_Approval one at a time,
rendering each request and asking for a decision. Approving rewrites
the record status and relocates it to Approved/; rejecting relocates
it to Rejected/. Skipped records stay where they are.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *ReviewCmd) run(_ context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if err := cfg.ValidateDeep(); err != nil {
		return err
	}

	v, err := vault.Open(cfg.Vault)
	if err != nil {
		return err
	}
	if err := v.Init(); err != nil {
		return err
	}

	names, err := v.List(vault.DirPending)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("no pending approval requests")
		return nil
	}

	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}

	for i, name := range names {
		fmt.Println(reviewTitleStyle.Render(fmt.Sprintf("[%d/%d] %s", i+1, len(names), name)))

		raw, err := os.ReadFile(v.Path(vault.DirPending, name))
		if err != nil {
			return err
		}
		rendered, err := renderer.Render(string(raw))
		if err != nil {
			rendered = string(raw)
		}
		fmt.Print(rendered)

		decision, err := askDecision(name)
		if err != nil {
			return err
		}

		switch decision {
		case decisionApprove:
			if err := cmd.resolve(v, name, vault.DirApproved, vault.StatusApproved); err != nil {
				return err
			}
			fmt.Println(reviewDoneStyle.Render("approved → " + vault.DirApproved + "/" + name))

		case decisionReject:
			if err := cmd.resolve(v, name, vault.DirRejected, vault.StatusRejected); err != nil {
				return err
			}
			fmt.Println(reviewDoneStyle.Render("rejected → " + vault.DirRejected + "/" + name))

		case decisionSkip:
			continue

		case decisionQuit:
			return nil
		}
	}
	return nil
}

// resolve rewrites the record status to match its destination and
// relocates it in one rename.
func (cmd *ReviewCmd) resolve(v *vault.Vault, name, destDir string, status vault.Status) error {
	rec, err := v.ReadApproval(vault.DirPending, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	rec.Status = status

	if err := fsutil.WriteAtomic(v.Path(vault.DirPending, name), rec.Encode(), 0o644); err != nil {
		return err
	}
	return v.MoveRecord(vault.DirPending, destDir, name)
}

func askDecision(name string) (string, error) {
	var decision string
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Decision for " + name).
			Options(
				huh.NewOption("Approve", decisionApprove),
				huh.NewOption("Reject", decisionReject),
				huh.NewOption("Skip", decisionSkip),
				huh.NewOption("Quit", decisionQuit),
			).
			Value(&decision),
	))

	if err := form.Run(); err != nil {
		return "", err
	}
	return decision, nil
}
