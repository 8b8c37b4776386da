// Package fsutil provides the small set of filesystem primitives the
// vault relies on: atomic file creation and atomic relocation. Both
// depend on rename(2) being atomic within one filesystem, which is the
// only coordination guarantee the system assumes.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/colonyops/warden/pkg/randid"
)

// WriteAtomic writes data to path so that no reader can observe a
// partially written file under the final name. The data is written to
// a hidden temp file in the same directory and renamed into place.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+randid.Generate(8))

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// Move relocates a file with a single rename. Source and destination
// must live on the same filesystem; the vault's lifecycle directories
// always share one root, so that holds by construction.
func Move(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	return nil
}

// AppendLine appends a line of text to path, creating the file if
// needed. Used for append-only journals that are never rewritten.
func AppendLine(path string, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return nil
}
