// Package watcher implements the generic ingestion driver: one poll
// loop wrapping one source adapter, an in-process dedup set, task
// record emission, and dashboard digests. One watcher instance runs
// per external channel, as its own process; the vault directory tree
// is the only thing instances share.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/internal/watcher/source"
)

// Watcher drives one source adapter against one vault.
type Watcher struct {
	vault    *vault.Vault
	src      source.Source
	interval time.Duration
	dash     *vault.Dashboard
	log      zerolog.Logger

	// onSessionExpired runs when a cycle fails with ErrSessionExpired,
	// letting the caller invalidate a persisted session marker.
	onSessionExpired func()

	// seen holds dedup keys handled during this process lifetime,
	// warmed at startup from records already in the vault. A key is
	// added only after its record is durably written; a failed write
	// leaves the key eligible for retry next cycle.
	seen map[string]struct{}
}

// New validates the vault, creates missing lifecycle directories, and
// warms the dedup set from existing records. Failure here is a startup
// precondition failure: callers exit rather than retry.
func New(v *vault.Vault, src source.Source, interval time.Duration, log zerolog.Logger) (*Watcher, error) {
	if err := v.Init(); err != nil {
		return nil, fmt.Errorf("validate vault: %w", err)
	}

	w := &Watcher{
		vault:    v,
		src:      src,
		interval: interval,
		dash:     v.Dashboard(src.Name()),
		log:      log.With().Str("component", "watcher").Str("source", src.Name()).Logger(),
		seen:     map[string]struct{}{},
	}

	if err := w.warmSeen(); err != nil {
		return nil, fmt.Errorf("warm dedup index: %w", err)
	}
	return w, nil
}

// OnSessionExpired registers a hook invoked when a cycle fails with
// an expired channel session. Must be set before Run.
func (w *Watcher) OnSessionExpired(fn func()) {
	w.onSessionExpired = fn
}

// Has reports whether a dedup key was already handled. Implements
// source.Seen for adapters to consult during Fetch.
func (w *Watcher) Has(key string) bool {
	_, ok := w.seen[key]
	return ok
}

// warmSeen derives the dedup index from a durable scan of the task
// directories, so a restarted watcher does not re-emit tasks the vault
// already holds for its source. Malformed records are skipped; they
// cannot contribute a key.
func (w *Watcher) warmSeen() error {
	for _, dir := range []string{vault.DirNeedsAction, vault.DirDone} {
		names, err := w.vault.List(dir)
		if err != nil {
			return err
		}
		for _, name := range names {
			rec, err := w.vault.ReadTask(dir, name)
			if err != nil || rec.Source != w.src.Name() || rec.DedupKey == "" {
				continue
			}
			w.seen[rec.DedupKey] = struct{}{}
		}
	}

	if len(w.seen) > 0 {
		w.log.Info().Int("keys", len(w.seen)).Msg("dedup index warmed from vault")
	}
	return nil
}

// Cycle runs one fetch → process → digest pass and returns the names
// of the task records it created. Errors from the source keep the
// process alive; the caller decides whether to retry (the loop does)
// or surface them (single-shot invocations do).
func (w *Watcher) Cycle(ctx context.Context) ([]string, error) {
	items, err := w.src.Fetch(ctx, w)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if len(items) == 0 {
		w.log.Debug().Msg("no new items this cycle")
		return nil, nil
	}

	w.log.Info().Int("items", len(items)).Msg("processing new items")

	var created []string
	for _, item := range items {
		name, err := w.processItem(item)
		if err != nil {
			w.log.Error().Err(err).Str("key", item.Key).Msg("item not persisted; will retry if re-surfaced")
			continue
		}
		if name != "" {
			created = append(created, name)
		}
	}

	if len(created) > 0 {
		if err := w.dash.LogCreated(w.src.Name(), created); err != nil {
			w.log.Warn().Err(err).Msg("could not update dashboard")
		}
	}
	return created, nil
}

// processItem renders and durably writes one item, then marks its key
// seen. Returns the written filename, or empty when skipped.
func (w *Watcher) processItem(item source.Item) (string, error) {
	if item.Key == "" {
		return "", fmt.Errorf("item has no dedup key")
	}
	if w.Has(item.Key) {
		// Safety net on top of Fetch filtering.
		return "", nil
	}

	rec, err := w.src.Render(item)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	rec.Source = w.src.Name()
	rec.DedupKey = item.Key
	if rec.Status == "" {
		rec.Status = vault.StatusPending
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now()
	}

	if err := w.vault.WriteTask(rec); err != nil {
		return "", fmt.Errorf("write task: %w", err)
	}

	// Only now is the key burned: the record is durable.
	w.seen[item.Key] = struct{}{}
	w.log.Info().Str("file", rec.Name).Str("from", item.From).Msg("task created")
	return rec.Name, nil
}

// Run executes Cycle on a fixed-delay loop until the context is
// cancelled. Any failure inside a cycle is logged and the loop sleeps
// and retries; the only exits are cancellation (shutdown signal) and
// the startup preconditions already checked in New.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().
		Str("vault", w.vault.Root()).
		Dur("interval", w.interval).
		Msg("watcher started")

	defer func() {
		if err := w.src.Close(); err != nil {
			w.log.Debug().Err(err).Msg("source close error (ignored)")
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watcher stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := w.Cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
			if errors.Is(err, source.ErrSessionExpired) {
				w.log.Error().Err(err).Msg("session expired; re-authorization required")
				if w.onSessionExpired != nil {
					w.onSessionExpired()
				}
			} else {
				w.log.Error().Err(err).Dur("retry_in", w.interval).Msg("cycle failed; retrying")
			}
		}

		timer.Reset(w.interval)
	}
}
