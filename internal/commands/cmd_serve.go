package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/warden/internal/approval"
	"github.com/colonyops/warden/internal/core/config"
	"github.com/colonyops/warden/internal/executor"
	"github.com/colonyops/warden/internal/executor/httpapi"
	"github.com/colonyops/warden/internal/executor/outbound"
	"github.com/colonyops/warden/internal/vault"
)

type ServeCmd struct {
	flags *Flags

	port      int
	transport string
}

// NewServeCmd creates a new serve command.
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application.
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Serve the gated action interface",
		UsageText: "warden serve [--port <port>] [--transport http|stdio]",
		Description: `Exposes the approval-gated outbound actions over HTTP or a JSONL
stdio loop. Every action checks the vault's Approved directory first;
without a grant the action is blocked and an approval request is filed
in Pending_Approval.

With --dry-run (or WARDEN_DRY_RUN), approved actions are journaled but
never executed.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "HTTP listen port (overrides config)",
				Sources:     cli.EnvVars("WARDEN_PORT"),
				Destination: &cmd.port,
			},
			&cli.StringFlag{
				Name:        "transport",
				Aliases:     []string{"t"},
				Usage:       "transport: http or stdio (overrides config)",
				Sources:     cli.EnvVars("WARDEN_TRANSPORT"),
				Destination: &cmd.transport,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
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

	dryRun := cfg.Server.DryRun || cmd.flags.DryRun

	gate := approval.NewGate(v, log.Logger)
	out := outbound.NewOutbox(cfg.Server.Outbox)
	exec := executor.New(gate, out, v.Dashboard(cfg.Agent), dryRun, log.Logger)
	server := httpapi.NewServer(exec, log.Logger)

	transport := cmd.transport
	if transport == "" {
		transport = cfg.Server.Transport
	}

	switch transport {
	case config.TransportStdio:
		return server.RunStdio(ctx, os.Stdin, os.Stdout)

	case config.TransportHTTP:
		port := cmd.port
		if port == 0 {
			port = cfg.Server.Port
		}
		return cmd.serveHTTP(ctx, server, port)

	default:
		return fmt.Errorf("unknown transport %q", transport)
	}
}

func (cmd *ServeCmd) serveHTTP(ctx context.Context, server *httpapi.Server, port int) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(port)),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", port).Msg("http transport started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		log.Info().Msg("http transport stopped")
		return nil
	}
}
