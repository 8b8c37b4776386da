package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh open runs headed flow and persists marker", func(t *testing.T) {
		dir := t.TempDir()
		authorized := false

		h, err := Open(ctx, dir, Options{
			Authorize: func(context.Context) error {
				authorized = true
				return nil
			},
			Logger: zerolog.Nop(),
		})
		require.NoError(t, err)
		defer h.Close()

		assert.True(t, authorized)
		assert.False(t, h.Resumed())
		assert.FileExists(t, filepath.Join(dir, "session_ok"))
	})

	t.Run("second open resumes without authorization", func(t *testing.T) {
		dir := t.TempDir()

		_, err := Open(ctx, dir, Options{
			Authorize: func(context.Context) error { return nil },
			Logger:    zerolog.Nop(),
		})
		require.NoError(t, err)

		h, err := Open(ctx, dir, Options{
			Authorize: func(context.Context) error {
				t.Fatal("headed flow must not run on resume")
				return nil
			},
			Logger: zerolog.Nop(),
		})
		require.NoError(t, err)
		assert.True(t, h.Resumed())
	})

	t.Run("reset forces headed flow", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "session_ok"), []byte("old\n"), 0o644))

		ran := false
		h, err := Open(ctx, dir, Options{
			Reset: true,
			Authorize: func(context.Context) error {
				ran = true
				return nil
			},
			Logger: zerolog.Nop(),
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.False(t, h.Resumed())
	})

	t.Run("authorization timeout", func(t *testing.T) {
		h, err := Open(ctx, t.TempDir(), Options{
			WaitCeiling: 20 * time.Millisecond,
			Authorize: func(authCtx context.Context) error {
				<-authCtx.Done()
				return authCtx.Err()
			},
			Logger: zerolog.Nop(),
		})
		assert.Nil(t, h)
		assert.ErrorIs(t, err, ErrAuthTimeout)
	})

	t.Run("authorization failure leaves no marker", func(t *testing.T) {
		dir := t.TempDir()
		_, err := Open(ctx, dir, Options{
			Authorize: func(context.Context) error { return errors.New("human declined") },
			Logger:    zerolog.Nop(),
		})
		require.Error(t, err)
		assert.NoFileExists(t, filepath.Join(dir, "session_ok"))
	})

	t.Run("no marker and no flow is an error", func(t *testing.T) {
		_, err := Open(ctx, t.TempDir(), Options{Logger: zerolog.Nop()})
		assert.Error(t, err)
	})
}

func TestHandle_Invalidate(t *testing.T) {
	dir := t.TempDir()

	h, err := Open(context.Background(), dir, Options{
		Authorize: func(context.Context) error { return nil },
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)

	require.NoError(t, h.Invalidate())
	assert.NoFileExists(t, filepath.Join(dir, "session_ok"))

	// Idempotent.
	assert.NoError(t, h.Invalidate())
}
