package chat

import (
	"context"
	"fmt"
	"os"

	"github.com/colonyops/warden/internal/watcher/source"
	"github.com/colonyops/warden/pkg/iojson"
)

// FileClient reads threads from a JSON feed file, the shape bridge
// processes export. A missing feed means the bridge is not running
// yet; that is an unavailable channel, not an empty one.
type FileClient struct {
	path string
}

func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

func (c *FileClient) ListThreads(ctx context.Context) ([]Thread, error) {
	if _, err := os.Stat(c.path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("feed %s: %w", c.path, source.ErrUnavailable)
		}
		return nil, err
	}

	threads, err := iojson.ReadFile[[]Thread](c.path)
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return threads, nil
}

func (c *FileClient) Close() error { return nil }
