// Package drop turns files placed in an inbox directory into tasks.
// The adapter keeps an fsnotify watch on the inbox and folds event
// names into a pending set, with periodic full rescans as the safety
// net for events lost while the process was busy or down. Each new
// file is copied next to its task record so the original can be
// deleted from the inbox without losing anything.
package drop

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/internal/watcher/source"
	"github.com/colonyops/warden/pkg/fsutil"
)

// fullScanEvery forces a directory rescan every Nth fetch even when
// fsnotify reported nothing.
const fullScanEvery = 10

// Adapter watches one inbox directory and emits a task per dropped
// file.
type Adapter struct {
	inbox   string
	vault   *vault.Vault
	ignores []string

	fw      *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]struct{}
	fetches int
}

// NewAdapter creates the inbox directory if missing and starts the
// filesystem watch. Ignore patterns are doublestar globs matched
// against the bare filename.
func NewAdapter(v *vault.Vault, inbox string, ignores []string) (*Adapter, error) {
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox: %w", err)
	}
	for _, pat := range ignores {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid ignore pattern %q", pat)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("filesystem watcher: %w", err)
	}
	if err := fw.Add(inbox); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch inbox: %w", err)
	}

	a := &Adapter{
		inbox:   inbox,
		vault:   v,
		ignores: ignores,
		fw:      fw,
		pending: map[string]struct{}{},
	}
	go a.collect()
	return a, nil
}

func (a *Adapter) Name() string { return "drop" }

// collect folds fsnotify events into the pending set until the
// watcher closes.
func (a *Adapter) collect() {
	for {
		select {
		case ev, ok := <-a.fw.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Rename) {
				a.mu.Lock()
				a.pending[filepath.Base(ev.Name)] = struct{}{}
				a.mu.Unlock()
			}
		case _, ok := <-a.fw.Errors:
			if !ok {
				return
			}
		}
	}
}

// drain returns and clears the pending set.
func (a *Adapter) drain() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.pending))
	for name := range a.pending {
		names = append(names, name)
	}
	a.pending = map[string]struct{}{}
	return names
}

// Fetch surveys candidate filenames (event-driven plus periodic full
// rescan), filters ignorable and already-handled files, and copies
// each survivor into Needs_Action before emitting its item. A file
// whose copy fails is skipped and will re-surface on a later rescan.
func (a *Adapter) Fetch(ctx context.Context, seen source.Seen) ([]source.Item, error) {
	a.fetches++

	candidates := a.drain()
	if a.fetches == 1 || a.fetches%fullScanEvery == 0 || len(candidates) == 0 {
		all, err := a.scan()
		if err != nil {
			return nil, err
		}
		candidates = all
	}

	var items []source.Item
	for _, name := range candidates {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		if a.ignored(name) {
			continue
		}

		info, err := os.Stat(filepath.Join(a.inbox, name))
		if err != nil || info.IsDir() {
			continue
		}

		key := fmt.Sprintf("%s::%d::%d", name, info.Size(), info.ModTime().Unix())
		if seen.Has(key) {
			continue
		}

		if err := a.copyIn(name); err != nil {
			continue
		}

		items = append(items, source.Item{
			Key:      key,
			Title:    name,
			From:     a.inbox,
			Received: info.ModTime(),
			Meta: map[string]string{
				"original_name": name,
				"size_bytes":    fmt.Sprintf("%d", info.Size()),
				"stored_copy":   name,
			},
		})
	}
	return items, nil
}

// scan lists every file currently in the inbox.
func (a *Adapter) scan() ([]string, error) {
	entries, err := os.ReadDir(a.inbox)
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ignored filters hidden files, in-flight transfer suffixes, and the
// configured glob patterns.
func (a *Adapter) ignored(name string) bool {
	if strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part") {
		return true
	}
	for _, pat := range a.ignores {
		if ok, _ := doublestar.Match(pat, name); ok {
			return true
		}
	}
	return false
}

// copyIn places a copy of the dropped file in Needs_Action, atomically.
func (a *Adapter) copyIn(name string) error {
	data, err := os.ReadFile(filepath.Join(a.inbox, name))
	if err != nil {
		return err
	}
	return fsutil.WriteAtomic(a.vault.Path(vault.DirNeedsAction, name), data, 0o644)
}

// Render produces the FILE_DROP_<name>.md metadata record pointing at
// the stored copy.
func (a *Adapter) Render(item source.Item) (vault.TaskRecord, error) {
	body := fmt.Sprintf("# File dropped: %s\n\n**Size:** %s bytes\n**Received:** %s\n**Stored copy:** %s/%s\n\n## Suggested Action\nReview the file and file it where it belongs.\n",
		item.Title, item.Meta["size_bytes"], item.Received.Format(vault.TimeLayout),
		vault.DirNeedsAction, item.Meta["stored_copy"])

	return vault.TaskRecord{
		Name:     fmt.Sprintf("FILE_DROP_%s.md", recordSlug(item.Title)),
		Priority: vault.PriorityMedium,
		Created:  time.Now(),
		Meta:     item.Meta,
		Body:     body,
	}, nil
}

func (a *Adapter) Close() error { return a.fw.Close() }

func recordSlug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimSuffix(b.String(), ".")
}
