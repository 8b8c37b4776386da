package mover

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/warden/internal/vault"
)

func newTestMover(t *testing.T) (*Mover, *vault.Vault) {
	t.Helper()

	v, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, v.Init())

	return New(v, "test-mover", zerolog.Nop()), v
}

func writePending(t *testing.T, v *vault.Vault, name string) {
	t.Helper()
	rec := vault.TaskRecord{
		Name:     name,
		Status:   vault.StatusPending,
		Priority: vault.PriorityMedium,
		Source:   "test",
		Created:  time.Now(),
		Body:     "do the thing\n",
	}
	require.NoError(t, v.WriteTask(rec))
}

func TestMover_Scan(t *testing.T) {
	ctx := context.Background()

	t.Run("moves pending record to Done", func(t *testing.T) {
		m, v := newTestMover(t)
		writePending(t, v, "TASK_1.md")

		moved, err := m.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"TASK_1.md"}, moved)

		assert.NoFileExists(t, v.Path(vault.DirNeedsAction, "TASK_1.md"))

		rec, err := v.ReadTask(vault.DirDone, "TASK_1.md")
		require.NoError(t, err)
		assert.Equal(t, vault.StatusProcessed, rec.Status)
		assert.False(t, rec.ProcessedAt.IsZero())
		assert.Contains(t, rec.Body, "Processed by test-mover")
	})

	t.Run("case-insensitive pending match", func(t *testing.T) {
		m, v := newTestMover(t)
		raw := "---\nstatus: Pending\ncreated: 2026-03-14 09:30:00\n---\nbody\n"
		require.NoError(t, os.WriteFile(v.Path(vault.DirNeedsAction, "TASK_2.md"), []byte(raw), 0o644))

		moved, err := m.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"TASK_2.md"}, moved)
	})

	t.Run("non-pending record left untouched", func(t *testing.T) {
		m, v := newTestMover(t)
		raw := "---\nstatus: processed\ncreated: 2026-03-14 09:30:00\n---\nbody\n"
		path := v.Path(vault.DirNeedsAction, "TASK_3.md")
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

		moved, err := m.Scan(ctx)
		require.NoError(t, err)
		assert.Empty(t, moved)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, raw, string(after), "record must not be modified in place")
	})

	t.Run("malformed record skipped in place, never deleted", func(t *testing.T) {
		m, v := newTestMover(t)
		path := v.Path(vault.DirNeedsAction, "BROKEN.md")
		require.NoError(t, os.WriteFile(path, []byte("no header here\n"), 0o644))

		moved, err := m.Scan(ctx)
		require.NoError(t, err)
		assert.Empty(t, moved)
		assert.FileExists(t, path)
	})

	t.Run("lexicographic processing order", func(t *testing.T) {
		m, v := newTestMover(t)
		writePending(t, v, "B.md")
		writePending(t, v, "A.md")
		writePending(t, v, "C.md")

		moved, err := m.Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"A.md", "B.md", "C.md"}, moved)
	})

	t.Run("one dashboard block per scan with moves", func(t *testing.T) {
		m, v := newTestMover(t)
		writePending(t, v, "A.md")
		writePending(t, v, "B.md")

		_, err := m.Scan(ctx)
		require.NoError(t, err)

		data, err := os.ReadFile(v.Path(vault.DashboardFile))
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(data), "Task Mover Log"))
		assert.Contains(t, string(data), "`A.md`")
		assert.Contains(t, string(data), "`B.md`")
	})

	t.Run("scan with zero eligible records writes no dashboard entry", func(t *testing.T) {
		m, v := newTestMover(t)

		_, err := m.Scan(ctx)
		require.NoError(t, err)
		assert.NoFileExists(t, v.Path(vault.DashboardFile))
	})
}

func TestMover_Scenario_PendingToDone(t *testing.T) {
	// A record with status pending placed in Needs_Action: after one
	// scan it exists only in Done with status processed, a set
	// processed_at, and exactly one dashboard block naming it.
	m, v := newTestMover(t)
	writePending(t, v, "EMAIL_42.md")

	moved, err := m.Scan(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"EMAIL_42.md"}, moved)

	assert.NoFileExists(t, v.Path(vault.DirNeedsAction, "EMAIL_42.md"))
	rec, err := v.ReadTask(vault.DirDone, "EMAIL_42.md")
	require.NoError(t, err)
	assert.Equal(t, vault.StatusProcessed, rec.Status)
	assert.False(t, rec.ProcessedAt.IsZero())

	data, err := os.ReadFile(v.Path(vault.DashboardFile))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "EMAIL_42.md"))
}

func TestMover_Run_StopsOnCancel(t *testing.T) {
	m, _ := newTestMover(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("mover did not stop on cancellation")
	}
}
