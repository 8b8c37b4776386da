// Package session manages channel authorization state as an explicit
// resource. Channels that need a human step to authorize (a QR scan, a
// browser login) persist a marker once the step succeeds, so later
// runs resume without human presence; an expired session invalidates
// the marker and the next run goes through the headed flow again.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/warden/pkg/fsutil"
)

// markerFile names the persisted authorization marker inside the
// session directory.
const markerFile = "session_ok"

// ErrAuthTimeout reports that the human did not complete the
// authorization step inside the ceiling.
var ErrAuthTimeout = errors.New("session: authorization not completed in time")

// Options configures Open.
type Options struct {
	// Reset discards any persisted marker and forces the headed flow.
	Reset bool

	// WaitCeiling bounds how long the headed flow may block waiting on
	// the human. Zero means 120 seconds.
	WaitCeiling time.Duration

	// Authorize performs the headed authorization step. It must return
	// once the human has completed it, or when ctx ends. Required when
	// no marker exists.
	Authorize func(ctx context.Context) error

	Logger zerolog.Logger
}

// Handle is an open session over one session directory.
type Handle struct {
	dir     string
	resumed bool
	log     zerolog.Logger
}

// Open returns a handle, resuming from the persisted marker when one
// exists and running the bounded headed flow otherwise.
func Open(ctx context.Context, dir string, opts Options) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}

	h := &Handle{dir: dir, log: opts.Logger.With().Str("component", "session").Logger()}
	marker := filepath.Join(dir, markerFile)

	if opts.Reset {
		if err := os.Remove(marker); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reset session: %w", err)
		}
		h.log.Info().Msg("session reset requested")
	}

	if _, err := os.Stat(marker); err == nil {
		h.resumed = true
		h.log.Info().Msg("session resumed from saved state")
		return h, nil
	}

	if opts.Authorize == nil {
		return nil, errors.New("session: no saved state and no authorization flow")
	}

	ceiling := opts.WaitCeiling
	if ceiling <= 0 {
		ceiling = 120 * time.Second
	}

	h.log.Info().Dur("ceiling", ceiling).Msg("waiting for human authorization")
	authCtx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	if err := opts.Authorize(authCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(authCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrAuthTimeout
		}
		return nil, fmt.Errorf("authorize: %w", err)
	}

	stamp := time.Now().Format(time.RFC3339) + "\n"
	if err := fsutil.WriteAtomic(marker, []byte(stamp), 0o644); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	h.log.Info().Msg("session authorized and saved")
	return h, nil
}

// Resumed reports whether this handle came from a persisted marker
// rather than a fresh headed flow.
func (h *Handle) Resumed() bool { return h.resumed }

// Invalidate discards the persisted marker. Called when the channel
// reports the session expired; the next Open goes headed.
func (h *Handle) Invalidate() error {
	err := os.Remove(filepath.Join(h.dir, markerFile))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("invalidate session: %w", err)
	}
	h.log.Warn().Msg("session invalidated")
	return nil
}

// Close releases the handle. The marker stays on disk so the next run
// resumes.
func (h *Handle) Close() error { return nil }
