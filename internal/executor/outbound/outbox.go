// Package outbound holds channel effectors for the executor. The
// Outbox implementation journals actions to a JSONL file, which is the
// stock effector: real channel clients satisfy the same interface and
// replace it at wiring time.
package outbound

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/colonyops/warden/pkg/iojson"
)

// Entry is one journaled outbound action.
type Entry struct {
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	Recipient string    `json:"recipient,omitempty"`
	Content   string    `json:"content"`
}

// Outbox appends outbound actions to a JSONL journal.
type Outbox struct {
	path string
}

// NewOutbox returns an outbox writing to path. The file is created on
// first use.
func NewOutbox(path string) *Outbox {
	return &Outbox{path: path}
}

func (o *Outbox) SendDM(_ context.Context, recipient, message string) error {
	return iojson.AppendLine(o.path, Entry{
		Time:      time.Now(),
		Kind:      "dm",
		Recipient: recipient,
		Content:   message,
	})
}

func (o *Outbox) PublishPost(_ context.Context, caption string) error {
	return iojson.AppendLine(o.path, Entry{
		Time:    time.Now(),
		Kind:    "post",
		Content: caption,
	})
}

// Snapshot describes the journal state for failure diagnostics.
func (o *Outbox) Snapshot(context.Context) (string, error) {
	info, err := os.Stat(o.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "outbox empty", nil
		}
		return "", err
	}
	return fmt.Sprintf("outbox %s: %d bytes", o.path, info.Size()), nil
}
