// Package vault implements the shared directory tree that acts as the
// system's only persistent store and coordination medium. Lifecycle
// state is encoded by location: a task in Needs_Action is pending, a
// task in Done is processed; approvals resolve by moving between
// Pending_Approval, Approved, and Rejected. No database, no locks -
// just atomic create and rename.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Lifecycle directories, relative to the vault root.
const (
	DirNeedsAction = "Needs_Action"
	DirDone        = "Done"
	DirPending     = "Pending_Approval"
	DirApproved    = "Approved"
	DirRejected    = "Rejected"

	// DashboardFile is the append-only activity journal.
	DashboardFile = "Dashboard.md"
)

// Vault is a handle on one vault root. It carries no state beyond the
// path; every operation goes straight to the filesystem so independent
// processes can share the same tree.
type Vault struct {
	root string
}

// Open returns a Vault for an existing root directory. A missing or
// inaccessible root is a startup failure; callers are expected to exit.
func Open(root string) (*Vault, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}
	return &Vault{root: root}, nil
}

// Init creates the vault's lifecycle directories, leaving existing
// content untouched. Safe to call from every process at startup.
func (v *Vault) Init() error {
	for _, dir := range []string{DirNeedsAction, DirDone, DirPending, DirApproved, DirRejected} {
		if err := os.MkdirAll(filepath.Join(v.root, dir), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Root returns the vault root path.
func (v *Vault) Root() string { return v.root }

// Path joins the vault root with the given elements.
func (v *Vault) Path(elem ...string) string {
	return filepath.Join(append([]string{v.root}, elem...)...)
}

// List returns the record filenames (*.md, non-hidden) in the given
// lifecycle directory, sorted lexicographically. Directory iteration
// order is otherwise unspecified by the OS, and every consumer in the
// system depends on a deterministic order.
func (v *Vault) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(v.Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Dashboard returns the append-only activity journal for this vault.
func (v *Vault) Dashboard(agent string) *Dashboard {
	return &Dashboard{path: v.Path(DashboardFile), agent: agent}
}
