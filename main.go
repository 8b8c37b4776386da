package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/commands"
	"github.com/colonyops/warden/internal/core/config"
	"github.com/colonyops/warden/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, build() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logCloser func()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "warden",
		Usage:     "File-coordinated task capture with human approval gating",
		UsageText: "warden [global options] command [command options]",
		Description: `Warden turns external events (mail, chat messages, dropped files)
into task records in a shared vault directory, promotes handled tasks,
and gates every outbound action behind a human-approved file.

Processes coordinate only through the vault tree: watchers write into
Needs_Action, the mover relocates to Done, and approvals resolve by a
human moving records between Pending_Approval, Approved, and Rejected.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("WARDEN_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (empty = stderr only)",
				Sources:     cli.EnvVars("WARDEN_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("WARDEN_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "vault",
				Usage:       "vault root directory (overrides config)",
				Sources:     cli.EnvVars("WARDEN_VAULT"),
				Destination: &flags.Vault,
			},
			&cli.StringFlag{
				Name:        "credentials",
				Usage:       "path to channel credentials file (overrides config)",
				Sources:     cli.EnvVars("WARDEN_CREDENTIALS"),
				Destination: &flags.Credentials,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "describe outbound actions instead of executing them",
				Sources:     cli.EnvVars("WARDEN_DRY_RUN"),
				Destination: &flags.DryRun,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.Vault)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if flags.Credentials != "" {
				cfg.Credentials = flags.Credentials
			}
			flags.Config = cfg

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewInitCmd(flags).Register(app)
	app = commands.NewWatchCmd(flags).Register(app)
	app = commands.NewMoverCmd(flags).Register(app)
	app = commands.NewServeCmd(flags).Register(app)
	app = commands.NewApprovalsCmd(flags).Register(app)
	app = commands.NewReviewCmd(flags).Register(app)

	exitCode := 0
	if err := app.Run(ctx, os.Args); err != nil {
		fmt.Println()
		fmt.Println(err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
