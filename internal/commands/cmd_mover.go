package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/mover"
	"github.com/colonyops/warden/internal/vault"
)

type MoverCmd struct {
	flags *Flags

	interval time.Duration
	once     bool
}

// NewMoverCmd creates a new mover command.
func NewMoverCmd(flags *Flags) *MoverCmd {
	return &MoverCmd{flags: flags}
}

// Register adds the mover command to the application.
func (cmd *MoverCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "mover",
		Usage:     "Promote pending tasks from Needs_Action to Done",
		UsageText: "warden mover [--interval <dur>] [--once]",
		Description: `Scans Needs_Action for records with a pending status, stamps them
processed, appends an audit note, and relocates them to Done. Records
that are malformed or not pending are flagged in the log and left in
place; nothing is ever deleted.`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:        "interval",
				Aliases:     []string{"i"},
				Usage:       "scan interval (overrides config)",
				Destination: &cmd.interval,
			},
			&cli.BoolFlag{
				Name:        "once",
				Usage:       "run a single scan and exit",
				Destination: &cmd.once,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *MoverCmd) run(ctx context.Context, _ *cli.Command) error {
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

	m := mover.New(v, cfg.Agent, log.Logger)

	if cmd.once {
		moved, err := m.Scan(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("moved %d task(s)\n", len(moved))
		return nil
	}

	interval := cmd.interval
	if interval <= 0 {
		interval = cfg.Mover.Interval
	}

	if err := m.Run(ctx, interval); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
