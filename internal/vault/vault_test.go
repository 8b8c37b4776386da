package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()

	v, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, v.Init())
	return v
}

func TestOpen(t *testing.T) {
	t.Run("missing root is fatal", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})

	t.Run("root must be a directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		_, err := Open(path)
		assert.Error(t, err)
	})
}

func TestVault_Init(t *testing.T) {
	v := newTestVault(t)

	for _, dir := range []string{DirNeedsAction, DirDone, DirPending, DirApproved, DirRejected} {
		assert.DirExists(t, v.Path(dir))
	}

	// Idempotent.
	assert.NoError(t, v.Init())
}

func TestVault_List(t *testing.T) {
	v := newTestVault(t)

	t.Run("empty directory", func(t *testing.T) {
		names, err := v.List(DirNeedsAction)
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("missing directory returns nothing", func(t *testing.T) {
		names, err := v.List("Not_A_Dir")
		require.NoError(t, err)
		assert.Empty(t, names)
	})

	t.Run("sorted, md-only, hidden excluded", func(t *testing.T) {
		for _, name := range []string{"b.md", "a.md", ".hidden.md", "notes.txt"} {
			require.NoError(t, os.WriteFile(v.Path(DirNeedsAction, name), []byte("x"), 0o644))
		}

		names, err := v.List(DirNeedsAction)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.md", "b.md"}, names)
	})
}

func TestVault_TaskIO(t *testing.T) {
	v := newTestVault(t)

	rec := TaskRecord{
		Name:     "EMAIL_42.md",
		Status:   StatusPending,
		Priority: PriorityMedium,
		Source:   "mail",
		Created:  time.Now(),
		DedupKey: "mail:42",
		Body:     "body\n",
	}

	require.NoError(t, v.WriteTask(rec))

	got, err := v.ReadTask(DirNeedsAction, rec.Name)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	require.NoError(t, v.MoveRecord(DirNeedsAction, DirDone, rec.Name))
	assert.NoFileExists(t, v.Path(DirNeedsAction, rec.Name))
	assert.FileExists(t, v.Path(DirDone, rec.Name))
}

func TestDashboard(t *testing.T) {
	t.Run("empty batch writes nothing", func(t *testing.T) {
		v := newTestVault(t)
		d := v.Dashboard("test-agent")

		require.NoError(t, d.LogCreated("MailWatcher", nil))
		require.NoError(t, d.LogMoved(nil))

		assert.NoFileExists(t, v.Path(DashboardFile))
	})

	t.Run("batch block lists created files", func(t *testing.T) {
		v := newTestVault(t)
		d := v.Dashboard("test-agent")

		require.NoError(t, d.LogCreated("MailWatcher", []string{"EMAIL_1.md", "EMAIL_2.md"}))

		data, err := os.ReadFile(v.Path(DashboardFile))
		require.NoError(t, err)
		assert.Contains(t, string(data), "MailWatcher Log")
		assert.Contains(t, string(data), "`EMAIL_1.md`")
		assert.Contains(t, string(data), "`EMAIL_2.md`")
		assert.Contains(t, string(data), "test-agent")
	})

	t.Run("entries append, never truncate", func(t *testing.T) {
		v := newTestVault(t)
		d := v.Dashboard("test-agent")

		require.NoError(t, d.LogLine("Sent DM to @alice"))
		require.NoError(t, d.LogLine("Posted to feed"))

		data, err := os.ReadFile(v.Path(DashboardFile))
		require.NoError(t, err)
		assert.Contains(t, string(data), "Sent DM to @alice")
		assert.Contains(t, string(data), "Posted to feed")
	})
}
