package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/approval"
	"github.com/colonyops/warden/internal/vault"
)

type ApprovalsCmd struct {
	flags *Flags

	action  string
	subject string
	details string
}

// NewApprovalsCmd creates a new approvals command.
func NewApprovalsCmd(flags *Flags) *ApprovalsCmd {
	return &ApprovalsCmd{flags: flags}
}

// Register adds the approvals command to the application.
func (cmd *ApprovalsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "approvals",
		Usage: "List, request, and check approval records",
		Description: `Approval records gate outbound actions. A grant exists only while a
matching record sits in Approved/ with a body status of approved; the
files are created here (or by a blocked action) and resolved by a
human moving them between Pending_Approval, Approved, and Rejected.`,
		Commands: []*cli.Command{
			cmd.lsCmd(),
			cmd.requestCmd(),
			cmd.checkCmd(),
		},
	})
	return app
}

func (cmd *ApprovalsCmd) lsCmd() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "List approval records by lifecycle directory",
		UsageText: "warden approvals ls",
		Action:    cmd.runLs,
	}
}

func (cmd *ApprovalsCmd) requestCmd() *cli.Command {
	return &cli.Command{
		Name:      "request",
		Usage:     "File a pending approval request",
		UsageText: "warden approvals request --action dm --subject alice [--details <text>]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "action",
				Aliases:     []string{"a"},
				Usage:       "action type (e.g. dm, post)",
				Required:    true,
				Destination: &cmd.action,
			},
			&cli.StringFlag{
				Name:        "subject",
				Usage:       "scoping subject (e.g. recipient); empty = blanket",
				Destination: &cmd.subject,
			},
			&cli.StringFlag{
				Name:        "details",
				Aliases:     []string{"d"},
				Usage:       "free-form details shown to the reviewer",
				Destination: &cmd.details,
			},
		},
		Action: cmd.runRequest,
	}
}

func (cmd *ApprovalsCmd) checkCmd() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Check whether an action is currently approved",
		UsageText: "warden approvals check --action dm --subject alice",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "action",
				Aliases:     []string{"a"},
				Usage:       "action type (e.g. dm, post)",
				Required:    true,
				Destination: &cmd.action,
			},
			&cli.StringFlag{
				Name:        "subject",
				Usage:       "scoping subject; empty = blanket",
				Destination: &cmd.subject,
			},
		},
		Action: cmd.runCheck,
	}
}

func (cmd *ApprovalsCmd) openVault() (*vault.Vault, error) {
	if err := cmd.flags.Config.ValidateDeep(); err != nil {
		return nil, err
	}
	v, err := vault.Open(cmd.flags.Config.Vault)
	if err != nil {
		return nil, err
	}
	return v, v.Init()
}

func (cmd *ApprovalsCmd) runLs(_ context.Context, _ *cli.Command) error {
	v, err := cmd.openVault()
	if err != nil {
		return err
	}

	for _, dir := range []string{vault.DirPending, vault.DirApproved, vault.DirRejected} {
		names, err := v.List(dir)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%d)\n", dir, len(names))
		for _, name := range names {
			fmt.Printf("  %s\n", name)
		}
	}
	return nil
}

func (cmd *ApprovalsCmd) runRequest(_ context.Context, _ *cli.Command) error {
	v, err := cmd.openVault()
	if err != nil {
		return err
	}

	gate := approval.NewGate(v, log.Logger)
	name, err := gate.Request(cmd.action, cmd.subject, cmd.details)
	if err != nil {
		return err
	}

	fmt.Printf("approval request filed: %s/%s\n", vault.DirPending, name)
	return nil
}

func (cmd *ApprovalsCmd) runCheck(_ context.Context, _ *cli.Command) error {
	v, err := cmd.openVault()
	if err != nil {
		return err
	}

	gate := approval.NewGate(v, log.Logger)
	ok, name, err := gate.Check(cmd.action, cmd.subject)
	if err != nil {
		return err
	}

	if ok {
		fmt.Printf("approved via %s/%s\n", vault.DirApproved, name)
		return nil
	}
	fmt.Printf("not approved; expected grant file: %s/%s\n", vault.DirApproved, name)
	return nil
}
