// Package source defines the capability set a channel adapter must
// provide to run under the watcher core: fetch new raw items and
// render one item as a task record. Adapters are pure producers; they
// know nothing about the persistence format beyond the record type
// they hand back, and they never track their own dedup state - the
// core owns that and adapters consult it through the Seen view.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/colonyops/warden/internal/vault"
)

// Errors adapters surface to the core. SourceUnavailable conditions
// keep the loop alive; ErrSessionExpired additionally invalidates any
// cached authorization marker.
var (
	ErrUnavailable    = errors.New("source: channel unavailable")
	ErrSessionExpired = errors.New("source: session expired")
)

// Item is one raw event from an external channel, reduced to the
// fields the pipeline needs. Items are ephemeral and never persisted
// directly.
type Item struct {
	// Key is the stable dedup key: a natural id when the channel has
	// one, otherwise derived from normalized content.
	Key string

	Title    string
	From     string
	Snippet  string
	Priority vault.Priority
	Received time.Time

	// Meta carries adapter-specific structured fields into the task
	// record header.
	Meta map[string]string
}

// Seen is the core-owned dedup view adapters consult while fetching,
// so already-handled items are filtered before they cross the
// interface.
type Seen interface {
	Has(key string) bool
}

// Source is the adapter capability set. The watcher core is generic
// over this interface and special-cases no channel.
type Source interface {
	// Name identifies the channel in logs, dashboard entries, and
	// task record source tags.
	Name() string

	// Fetch returns new raw items, already filtered through seen.
	// An empty slice means nothing new this cycle.
	Fetch(ctx context.Context, seen Seen) ([]Item, error)

	// Render converts one item into a task record ready to persist.
	// The record's filename must be unique per dedup key.
	Render(item Item) (vault.TaskRecord, error)

	// Close releases any held external resource (session handle,
	// watcher, connection). Called once on shutdown.
	Close() error
}
