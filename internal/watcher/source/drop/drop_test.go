package drop

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/internal/watcher/source"
)

type seenSet map[string]struct{}

func (s seenSet) Has(key string) bool { _, ok := s[key]; return ok }

func newTestAdapter(t *testing.T, ignores []string) (*Adapter, *vault.Vault, string) {
	t.Helper()

	v, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, v.Init())

	inbox := filepath.Join(t.TempDir(), "Inbox")
	a, err := NewAdapter(v, inbox, ignores)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return a, v, inbox
}

func dropFile(t *testing.T, inbox, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, name), []byte(content), 0o644))
}

func TestNewAdapter(t *testing.T) {
	t.Run("creates missing inbox", func(t *testing.T) {
		v, err := vault.Open(t.TempDir())
		require.NoError(t, err)

		inbox := filepath.Join(t.TempDir(), "nested", "Inbox")
		a, err := NewAdapter(v, inbox, nil)
		require.NoError(t, err)
		defer a.Close()

		assert.DirExists(t, inbox)
	})

	t.Run("rejects invalid ignore pattern", func(t *testing.T) {
		v, err := vault.Open(t.TempDir())
		require.NoError(t, err)

		_, err = NewAdapter(v, filepath.Join(t.TempDir(), "Inbox"), []string{"[unclosed"})
		assert.Error(t, err)
	})
}

func TestAdapter_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("dropped file becomes item with stored copy", func(t *testing.T) {
		a, v, inbox := newTestAdapter(t, nil)
		dropFile(t, inbox, "report.pdf", "pdf bytes")

		items, err := a.Fetch(ctx, seenSet{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "report.pdf", items[0].Title)
		assert.Equal(t, "9", items[0].Meta["size_bytes"])

		copied, err := os.ReadFile(v.Path(vault.DirNeedsAction, "report.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "pdf bytes", string(copied))
	})

	t.Run("hidden and transfer files ignored", func(t *testing.T) {
		a, _, inbox := newTestAdapter(t, nil)
		dropFile(t, inbox, ".hidden", "x")
		dropFile(t, inbox, "upload.tmp", "x")
		dropFile(t, inbox, "upload.part", "x")

		items, err := a.Fetch(ctx, seenSet{})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("glob ignore patterns", func(t *testing.T) {
		a, _, inbox := newTestAdapter(t, []string{"*.log", "~$*"})
		dropFile(t, inbox, "debug.log", "x")
		dropFile(t, inbox, "~$draft.docx", "x")
		dropFile(t, inbox, "keep.txt", "x")

		items, err := a.Fetch(ctx, seenSet{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "keep.txt", items[0].Title)
	})

	t.Run("seen key filtered", func(t *testing.T) {
		a, _, inbox := newTestAdapter(t, nil)
		dropFile(t, inbox, "once.txt", "x")

		items, err := a.Fetch(ctx, seenSet{})
		require.NoError(t, err)
		require.Len(t, items, 1)

		again, err := a.Fetch(ctx, seenSet{items[0].Key: {}})
		require.NoError(t, err)
		assert.Empty(t, again)
	})

	t.Run("event-driven pickup between rescans", func(t *testing.T) {
		a, _, inbox := newTestAdapter(t, nil)

		// First fetch does the full rescan.
		_, err := a.Fetch(ctx, seenSet{})
		require.NoError(t, err)

		dropFile(t, inbox, "late.txt", "arrived after startup")

		// Give fsnotify a moment to surface the event.
		require.Eventually(t, func() bool {
			items, err := a.Fetch(ctx, seenSet{})
			return err == nil && len(items) == 1 && items[0].Title == "late.txt"
		}, 2*time.Second, 20*time.Millisecond)
	})
}

func TestAdapter_Render(t *testing.T) {
	a, _, _ := newTestAdapter(t, nil)

	rec, err := a.Render(source.Item{
		Key:      "scan 1.pdf::10::0",
		Title:    "scan 1.pdf",
		Received: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Meta: map[string]string{
			"original_name": "scan 1.pdf",
			"size_bytes":    "10",
			"stored_copy":   "scan 1.pdf",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "FILE_DROP_scan_1.pdf.md", rec.Name)
	assert.Equal(t, vault.PriorityMedium, rec.Priority)
	assert.Contains(t, rec.Body, "scan 1.pdf")
	assert.Contains(t, rec.Body, "10 bytes")
}
