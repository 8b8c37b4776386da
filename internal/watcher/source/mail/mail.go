// Package mail adapts an unread-mail listing into the watcher pipeline.
// The transport behind the listing is abstracted as a Client so real
// IMAP or API clients can be swapped in; the in-tree implementation
// reads a maildir-style directory of RFC 5322 messages.
package mail

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/internal/watcher/source"
)

// Message is one unread mail reduced to the fields the pipeline needs.
type Message struct {
	// ID is the channel-native message id, stable across fetches.
	ID      string
	From    string
	Subject string
	Date    time.Time
	Snippet string
}

// Client lists unread messages from a mailbox. ListUnread returns up
// to max messages; implementations must not mutate mailbox state.
type Client interface {
	ListUnread(ctx context.Context, max int) ([]Message, error)
	Close() error
}

// Adapter exposes a mail Client as a watcher source.
type Adapter struct {
	client Client
	max    int
}

// NewAdapter wraps a client. max bounds the messages pulled per cycle.
func NewAdapter(client Client, max int) *Adapter {
	if max <= 0 {
		max = 10
	}
	return &Adapter{client: client, max: max}
}

func (a *Adapter) Name() string { return "mail" }

// Fetch lists unread messages and drops the ones already handled. The
// message id is the dedup key; mail has a natural one.
func (a *Adapter) Fetch(ctx context.Context, seen source.Seen) ([]source.Item, error) {
	msgs, err := a.client.ListUnread(ctx, a.max)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}

	var items []source.Item
	for _, msg := range msgs {
		if msg.ID == "" || seen.Has(msg.ID) {
			continue
		}
		items = append(items, source.Item{
			Key:      msg.ID,
			Title:    msg.Subject,
			From:     msg.From,
			Snippet:  msg.Snippet,
			Priority: vault.PriorityHigh,
			Received: msg.Date,
			Meta: map[string]string{
				"message_id": msg.ID,
				"subject":    msg.Subject,
			},
		})
	}
	return items, nil
}

// Render produces an EMAIL_<id>.md record. Unread mail is treated as
// high priority; triage happens downstream.
func (a *Adapter) Render(item source.Item) (vault.TaskRecord, error) {
	body := fmt.Sprintf("# Email: %s\n\n**From:** %s\n**Received:** %s\n\n## Snippet\n%s\n\n## Suggested Action\nReview this email and reply or archive it.\n",
		item.Title, item.From, item.Received.Format(vault.TimeLayout), item.Snippet)

	return vault.TaskRecord{
		Name:     fmt.Sprintf("EMAIL_%s.md", SanitizeID(item.Key)),
		Priority: item.Priority,
		Created:  item.Received,
		Meta:     item.Meta,
		Body:     body,
	}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

var unsafeID = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// SanitizeID makes a message id safe to embed in a filename. Message
// ids routinely carry <>, @ and slashes.
func SanitizeID(id string) string {
	id = strings.Trim(id, "<>")
	id = unsafeID.ReplaceAllString(id, "_")
	if len(id) > 80 {
		id = id[:80]
	}
	return id
}
