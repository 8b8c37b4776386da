package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/vault"
)

type InitCmd struct {
	flags *Flags
}

// NewInitCmd creates a new init command.
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application.
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Create the vault directory layout",
		UsageText: "warden init [--vault <dir>]",
		Description: `Creates the vault root (if missing) and its lifecycle directories:
Needs_Action, Done, Pending_Approval, Approved, and Rejected. Existing
content is never touched; init is safe to re-run.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(_ context.Context, _ *cli.Command) error {
	root := cmd.flags.Config.Vault
	if root == "" {
		return fmt.Errorf("no vault configured: set --vault or the vault key in config")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create vault root: %w", err)
	}

	v, err := vault.Open(root)
	if err != nil {
		return err
	}
	if err := v.Init(); err != nil {
		return err
	}

	log.Info().Str("vault", root).Msg("vault initialized")
	fmt.Printf("vault ready at %s\n", root)
	return nil
}
