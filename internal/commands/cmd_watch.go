package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/session"
	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/internal/watcher"
	"github.com/colonyops/warden/internal/watcher/source"
	"github.com/colonyops/warden/internal/watcher/source/chat"
	"github.com/colonyops/warden/internal/watcher/source/drop"
	"github.com/colonyops/warden/internal/watcher/source/mail"
)

type WatchCmd struct {
	flags *Flags

	source       string
	interval     time.Duration
	once         bool
	resetSession bool
}

// NewWatchCmd creates a new watch command.
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application.
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Run one ingestion watcher against the vault",
		UsageText: "warden watch --source <mail|chat|drop> [--interval <dur>] [--once]",
		Description: `Polls one external channel and writes a task record into
Needs_Action for each new item. One watch process runs per channel;
processes coordinate only through the vault directory tree.

Examples:
  warden watch --source mail
  warden watch --source chat --reset-session
  warden watch --source drop --interval 10s --once`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "source",
				Aliases:     []string{"s"},
				Usage:       "channel to watch (mail, chat, drop)",
				Required:    true,
				Destination: &cmd.source,
			},
			&cli.DurationFlag{
				Name:        "interval",
				Aliases:     []string{"i"},
				Usage:       "poll interval (overrides config)",
				Destination: &cmd.interval,
			},
			&cli.BoolFlag{
				Name:        "once",
				Usage:       "run a single cycle and exit",
				Destination: &cmd.once,
			},
			&cli.BoolFlag{
				Name:        "reset-session",
				Usage:       "discard the saved channel session and re-authorize",
				Destination: &cmd.resetSession,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *WatchCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config
	if err := cfg.ValidateDeep(); err != nil {
		return err
	}

	v, err := vault.Open(cfg.Vault)
	if err != nil {
		return err
	}

	interval := cmd.interval
	if interval <= 0 {
		interval = cfg.Watch.Interval
	}

	src, handle, err := cmd.buildSource(ctx, v)
	if err != nil {
		return err
	}

	w, err := watcher.New(v, src, interval, log.Logger)
	if err != nil {
		src.Close()
		return err
	}
	if handle != nil {
		defer handle.Close()
		w.OnSessionExpired(func() {
			if err := handle.Invalidate(); err != nil {
				log.Error().Err(err).Msg("could not invalidate session")
			}
		})
	}

	if cmd.once {
		defer src.Close()
		created, err := w.Cycle(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("created %d task(s)\n", len(created))
		return nil
	}

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// buildSource wires the adapter named by --source. Chat additionally
// opens the channel session, going through the headed authorization
// flow when no saved state exists.
func (cmd *WatchCmd) buildSource(ctx context.Context, v *vault.Vault) (source.Source, *session.Handle, error) {
	cfg := cmd.flags.Config

	switch cmd.source {
	case "mail":
		if cfg.Watch.Mail.Maildir == "" {
			return nil, nil, fmt.Errorf("watch.mail.maildir is not configured")
		}
		client, err := mail.NewMaildirClient(cfg.Watch.Mail.Maildir)
		if err != nil {
			return nil, nil, err
		}
		return mail.NewAdapter(client, cfg.Watch.Mail.MaxPerCycle), nil, nil

	case "chat":
		if cfg.Watch.Chat.Feed == "" {
			return nil, nil, fmt.Errorf("watch.chat.feed is not configured")
		}

		handle, err := session.Open(ctx, cfg.Watch.Chat.SessionDir, session.Options{
			Reset:     cmd.resetSession,
			Authorize: confirmLinked,
			Logger:    log.Logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open chat session: %w", err)
		}

		triage := chat.Triage{
			Keywords:       cfg.Watch.Chat.Keywords,
			UrgentKeywords: cfg.Watch.Chat.UrgentKeywords,
		}
		return chat.NewAdapter(chat.NewFileClient(cfg.Watch.Chat.Feed), triage), handle, nil

	case "drop":
		adapter, err := drop.NewAdapter(v, cfg.Watch.Drop.Inbox, cfg.Watch.Drop.Ignores)
		if err != nil {
			return nil, nil, err
		}
		return adapter, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q (want mail, chat, or drop)", cmd.source)
	}
}

// confirmLinked is the headed authorization step for the chat channel:
// the human links the device in the bridge and confirms here.
func confirmLinked(ctx context.Context) error {
	var linked bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Link the chat bridge").
			Description("Open the chat app, link this device in the bridge, then confirm.").
			Affirmative("Linked").
			Negative("Abort").
			Value(&linked),
	))

	if err := form.RunWithContext(ctx); err != nil {
		return err
	}
	if !linked {
		return fmt.Errorf("authorization aborted")
	}
	return nil
}
