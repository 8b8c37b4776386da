// Package mover promotes pending task records from Needs_Action to
// Done. It is the only writer permitted to change a record's status;
// watchers create records and nothing else mutates them.
package mover

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/warden/internal/vault"
)

// auditNote is appended to a record body when it is promoted.
const auditNote = "\n---\n**Processed by %s**\nTimestamp: %s\nAction: status updated to processed, file moved to %s/\n"

// Mover scans Needs_Action and relocates eligible records to Done.
type Mover struct {
	vault *vault.Vault
	dash  *vault.Dashboard
	agent string
	log   zerolog.Logger
}

// New returns a mover over the given vault. The agent name appears in
// audit notes and dashboard entries.
func New(v *vault.Vault, agent string, log zerolog.Logger) *Mover {
	return &Mover{
		vault: v,
		dash:  v.Dashboard(agent),
		agent: agent,
		log:   log.With().Str("component", "mover").Logger(),
	}
}

// Scan performs one pass over Needs_Action in lexicographic filename
// order and returns the names of the records it moved. Records whose
// status is not exactly "pending" (case-insensitive) are left at their
// original location unmodified: that covers malformed records, records
// another process already promoted, and records whose body disagrees
// with their location - all flagged in the log, none deleted.
func (m *Mover) Scan(ctx context.Context) ([]string, error) {
	names, err := m.vault.List(vault.DirNeedsAction)
	if err != nil {
		return nil, err
	}

	var moved []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		if m.processOne(name) {
			moved = append(moved, name)
		}
	}

	if len(moved) > 0 {
		if err := m.dash.LogMoved(moved); err != nil {
			m.log.Warn().Err(err).Msg("could not update dashboard")
		}
	}
	return moved, nil
}

// processOne reads, validates, promotes, and relocates a single record.
// Returns true if the record was moved.
func (m *Mover) processOne(name string) bool {
	rec, err := m.vault.ReadTask(vault.DirNeedsAction, name)
	if err != nil {
		if errors.Is(err, vault.ErrNoHeader) || errors.Is(err, vault.ErrMissingField) {
			m.log.Warn().Str("file", name).Err(err).Msg("skip: malformed record")
		} else {
			m.log.Error().Str("file", name).Err(err).Msg("skip: unreadable record")
		}
		return false
	}

	if !strings.EqualFold(string(rec.Status), string(vault.StatusPending)) {
		// Location says pending, body disagrees. Flag it; location is
		// authoritative for lifecycle, but this record is not ours to
		// resolve.
		m.log.Warn().Str("file", name).Str("status", string(rec.Status)).
			Msg("skip: status is not pending")
		return false
	}

	now := time.Now()
	rec.Status = vault.StatusProcessed
	rec.ProcessedAt = now
	rec.Body += fmt.Sprintf(auditNote, m.agent, now.Format(vault.TimeLayout), vault.DirDone)

	if err := m.vault.RewriteTask(vault.DirNeedsAction, rec); err != nil {
		m.log.Error().Str("file", name).Err(err).Msg("write back failed")
		return false
	}

	if err := m.vault.MoveRecord(vault.DirNeedsAction, vault.DirDone, name); err != nil {
		m.log.Error().Str("file", name).Err(err).Msg("move to Done failed")
		return false
	}

	m.log.Info().Str("file", name).Msg("processed and moved to Done")
	return true
}

// Run executes Scan on a fixed-delay loop until the context is
// cancelled. Scan errors are logged and retried next cycle; only
// cancellation ends the loop.
func (m *Mover) Run(ctx context.Context, interval time.Duration) error {
	m.log.Info().Str("vault", m.vault.Root()).Dur("interval", interval).Msg("mover started")

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("mover stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := m.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.log.Error().Err(err).Msg("scan failed; retrying next cycle")
		}

		timer.Reset(interval)
	}
}
