package approval

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/warden/internal/vault"
)

func newTestGate(t *testing.T) (*Gate, *vault.Vault) {
	t.Helper()

	v, err := vault.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, v.Init())

	return NewGate(v, zerolog.Nop()), v
}

func writeApproved(t *testing.T, v *vault.Vault, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(v.Path(vault.DirApproved, name), []byte(content), 0o644))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "alice", Slug("alice"))
	assert.Equal(t, "alice_smith", Slug("alice smith"))
	assert.Equal(t, "a_b_c", Slug("a/b:c"))
	assert.Equal(t, "x", Slug("__x__"))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "APPROVAL_DM_alice.md", Filename("dm", "alice"))
	assert.Equal(t, "APPROVAL_POST.md", Filename("post", ""))
}

func TestGate_Find(t *testing.T) {
	t.Run("no approved directory", func(t *testing.T) {
		g, v := newTestGate(t)
		require.NoError(t, os.Remove(v.Path(vault.DirApproved)))

		rec, err := g.Find("dm", "alice")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("empty approved directory", func(t *testing.T) {
		g, _ := newTestGate(t)

		rec, err := g.Find("dm", "alice")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("filename matches but body not approved", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_DM_alice.md",
			"---\nstatus: pending\nsubject: alice\ncreated: 2026-03-14 09:30:00\n---\n")

		rec, err := g.Find("dm", "alice")
		require.NoError(t, err)
		assert.Nil(t, rec, "body marker must also hold")
	})

	t.Run("body approved but filename for other subject", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_DM_bob.md",
			"---\nstatus: approved\nsubject: bob\ncreated: 2026-03-14 09:30:00\n---\n")

		rec, err := g.Find("dm", "alice")
		require.NoError(t, err)
		assert.Nil(t, rec, "filename condition must also hold")
	})

	t.Run("both conditions hold", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_DM_alice.md",
			"---\nstatus: approved\nsubject: alice\ncreated: 2026-03-14 09:30:00\n---\nok\n")

		rec, err := g.Find("dm", "alice")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "APPROVAL_DM_alice.md", rec.Name)
	})

	t.Run("blanket approval covers any subject", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_DM.md",
			"---\nstatus: approved\nsubject: \ncreated: 2026-03-14 09:30:00\n---\n")

		rec, err := g.Find("dm", "anyone")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "APPROVAL_DM.md", rec.Name)
	})

	t.Run("case-insensitive body marker", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_POST.md",
			"---\nStatus: APPROVED\nsubject: feed\ncreated: 2026-03-14 09:30:00\n---\n")

		rec, err := g.Find("post", "")
		require.NoError(t, err)
		assert.NotNil(t, rec)
	})

	t.Run("candidates checked in lexicographic order", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_DM_alice.md",
			"---\nstatus: approved\nsubject: alice\ncreated: 2026-03-14 09:30:00\n---\n")
		writeApproved(t, v, "APPROVAL_DM_alice_old.md",
			"---\nstatus: approved\nsubject: alice\ncreated: 2026-01-01 00:00:00\n---\n")

		rec, err := g.Find("dm", "alice")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, "APPROVAL_DM_alice.md", rec.Name)
	})

	t.Run("wrong action type prefix", func(t *testing.T) {
		g, v := newTestGate(t)
		writeApproved(t, v, "APPROVAL_POST.md",
			"---\nstatus: approved\nsubject: \ncreated: 2026-03-14 09:30:00\n---\n")

		rec, err := g.Find("dm", "")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})
}

func TestGate_Check(t *testing.T) {
	g, v := newTestGate(t)

	ok, name, err := g.Check("dm", "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "APPROVAL_DM_alice.md", name, "probe names the expected file")

	writeApproved(t, v, "APPROVAL_DM_alice.md",
		"---\nstatus: approved\nsubject: alice\ncreated: 2026-03-14 09:30:00\n---\n")

	ok, name, err = g.Check("dm", "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "APPROVAL_DM_alice.md", name)
}

func TestGate_Request(t *testing.T) {
	t.Run("creates exactly one pending file", func(t *testing.T) {
		g, v := newTestGate(t)

		name, err := g.Request("scoped", "alice", "Send DM: hello")
		require.NoError(t, err)
		assert.Equal(t, "APPROVAL_SCOPED_alice.md", name)

		names, err := v.List(vault.DirPending)
		require.NoError(t, err)
		require.Equal(t, []string{name}, names)

		rec, err := v.ReadApproval(vault.DirPending, name)
		require.NoError(t, err)
		assert.Equal(t, vault.StatusPending, rec.Status)
		assert.Equal(t, "alice", rec.Subject)
		assert.False(t, rec.Created.IsZero())
	})

	t.Run("re-request is idempotent", func(t *testing.T) {
		g, v := newTestGate(t)

		_, err := g.Request("dm", "alice", "first")
		require.NoError(t, err)
		_, err = g.Request("dm", "alice", "second")
		require.NoError(t, err)

		names, err := v.List(vault.DirPending)
		require.NoError(t, err)
		assert.Len(t, names, 1)
	})

	t.Run("scenario: request then human approves", func(t *testing.T) {
		g, v := newTestGate(t)

		name, err := g.Request("scoped", "alice", "details")
		require.NoError(t, err)
		assert.Contains(t, name, "SCOPED")
		assert.Contains(t, name, "alice")

		// Human moves the file and marks it approved.
		rec, err := v.ReadApproval(vault.DirPending, name)
		require.NoError(t, err)
		rec.Status = vault.StatusApproved
		require.NoError(t, os.WriteFile(
			v.Path(vault.DirApproved, name), rec.Encode(), 0o644))
		require.NoError(t, os.Remove(v.Path(vault.DirPending, name)))

		ok, _, err := g.Check("scoped", "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
