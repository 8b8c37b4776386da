// Package executor runs gated outbound actions. Every action is
// two-phase: probe the approval gate first, and only touch the channel
// when a grant exists. A blocked action files an approval request and
// tells the caller exactly how to unblock it; it is a normal outcome,
// not an error.
package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/colonyops/warden/internal/approval"
	"github.com/colonyops/warden/internal/vault"
)

// Gated action types. DM approvals are scoped to a recipient; post
// approvals are global.
const (
	ActionDM   = "dm"
	ActionPost = "post"
)

// Outbound is the channel effector behind the executor. Snapshot
// returns a state description used when an action fails mid-flight.
type Outbound interface {
	SendDM(ctx context.Context, recipient, message string) error
	PublishPost(ctx context.Context, caption string) error
	Snapshot(ctx context.Context) (string, error)
}

// Result is the outcome of an action attempt.
type Result struct {
	// Blocked reports that the gate had no grant; Message then carries
	// the remediation steps and no external effect happened.
	Blocked bool
	Message string
}

// Executor wires the approval gate to an outbound channel.
type Executor struct {
	gate   *approval.Gate
	out    Outbound
	dash   *vault.Dashboard
	dryRun bool
	log    zerolog.Logger
}

// New returns an executor. With dryRun set, approved actions are
// described and journaled but never reach the channel.
func New(gate *approval.Gate, out Outbound, dash *vault.Dashboard, dryRun bool, log zerolog.Logger) *Executor {
	return &Executor{
		gate:   gate,
		out:    out,
		dash:   dash,
		dryRun: dryRun,
		log:    log.With().Str("component", "executor").Bool("dry_run", dryRun).Logger(),
	}
}

// SendDirectMessage sends a DM to recipient once a recipient-scoped
// (or blanket) grant exists.
func (e *Executor) SendDirectMessage(ctx context.Context, recipient, message string) (Result, error) {
	if strings.TrimSpace(recipient) == "" {
		return Result{}, fmt.Errorf("recipient is required")
	}

	details := fmt.Sprintf("Send DM to %s:\n\n> %s", recipient, message)
	if res, blocked, err := e.probe(ActionDM, recipient, details); blocked || err != nil {
		return res, err
	}

	desc := fmt.Sprintf("DM to %s (%d chars)", recipient, len(message))
	return e.perform(ctx, desc, func(ctx context.Context) error {
		return e.out.SendDM(ctx, recipient, message)
	})
}

// PublishPost publishes a post once a global post grant exists.
func (e *Executor) PublishPost(ctx context.Context, caption string) (Result, error) {
	details := fmt.Sprintf("Publish post:\n\n> %s", caption)
	if res, blocked, err := e.probe(ActionPost, "", details); blocked || err != nil {
		return res, err
	}

	desc := fmt.Sprintf("post published (%d chars)", len(caption))
	return e.perform(ctx, desc, func(ctx context.Context) error {
		return e.out.PublishPost(ctx, caption)
	})
}

// probe consults the gate and, when no grant exists, files the
// approval request and builds the blocked result.
func (e *Executor) probe(actionType, subject, details string) (Result, bool, error) {
	ok, name, err := e.gate.Check(actionType, subject)
	if err != nil {
		return Result{}, false, fmt.Errorf("approval check: %w", err)
	}
	if ok {
		e.log.Info().Str("action", actionType).Str("grant", name).Msg("approval found")
		return Result{}, false, nil
	}

	reqName, err := e.gate.Request(actionType, subject, details)
	if err != nil {
		return Result{}, false, err
	}

	e.log.Warn().Str("action", actionType).Str("subject", subject).Msg("action blocked: no approval")
	return Result{Blocked: true, Message: blockedMessage(actionType, subject, reqName)}, true, nil
}

// perform runs the approved effect, or describes it under dry run.
// Exactly one dashboard entry is written either way.
func (e *Executor) perform(ctx context.Context, desc string, effect func(context.Context) error) (Result, error) {
	if e.dryRun {
		e.log.Info().Str("action", desc).Msg("dry run: effect suppressed")
		if err := e.dash.LogLine("[DRY RUN] " + desc); err != nil {
			e.log.Warn().Err(err).Msg("could not update dashboard")
		}
		return Result{Message: "[DRY RUN] would execute: " + desc}, nil
	}

	if err := effect(ctx); err != nil {
		// Grab channel state for the log; the action itself already
		// failed and that error is the one to surface.
		if snap, serr := e.out.Snapshot(ctx); serr == nil {
			e.log.Error().Err(err).Str("channel_state", snap).Msg("action failed")
		} else {
			e.log.Error().Err(err).Msg("action failed; channel state unavailable")
		}
		return Result{}, fmt.Errorf("execute action: %w", err)
	}

	e.log.Info().Str("action", desc).Msg("action executed")
	if err := e.dash.LogLine(desc); err != nil {
		e.log.Warn().Err(err).Msg("could not update dashboard")
	}
	return Result{Message: "executed: " + desc}, nil
}

// RequestApproval files a pending approval record without attempting
// the action.
func (e *Executor) RequestApproval(actionType, subject, details string) (string, error) {
	return e.gate.Request(actionType, subject, details)
}

// CheckApproval probes the gate without side effects.
func (e *Executor) CheckApproval(actionType, subject string) (bool, string, error) {
	return e.gate.Check(actionType, subject)
}

func blockedMessage(actionType, subject, reqName string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "BLOCKED: %s requires human approval.\n\n", actionDesc(actionType, subject))
	fmt.Fprintf(&b, "An approval request was filed at %s/%s.\n\n", vault.DirPending, reqName)
	fmt.Fprintf(&b, "To approve:\n")
	fmt.Fprintf(&b, "  1. Review %s/%s.\n", vault.DirPending, reqName)
	fmt.Fprintf(&b, "  2. Move it to %s/ with a body line 'status: approved'.\n", vault.DirApproved)
	fmt.Fprintf(&b, "  3. Retry this action.\n")
	return b.String()
}

func actionDesc(actionType, subject string) string {
	if subject != "" {
		return fmt.Sprintf("%s to %q", strings.ToUpper(actionType), subject)
	}
	return strings.ToUpper(actionType)
}
