// Package chat adapts a direct-message channel into the watcher
// pipeline. Chat threads carry no stable message id, so the dedup key
// is derived from the sender plus normalized message content; triage
// decides priority from keywords and unread state.
package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/colonyops/warden/internal/vault"
	"github.com/colonyops/warden/internal/watcher/source"
)

// Thread is one conversation snapshot from the channel.
type Thread struct {
	Sender  string `json:"sender"`
	Preview string `json:"preview"`
	Unread  bool   `json:"unread"`
}

// Client lists current threads. Implementations return
// source.ErrSessionExpired when the channel's authorization lapsed.
type Client interface {
	ListThreads(ctx context.Context) ([]Thread, error)
	Close() error
}

// Triage holds the keyword sets that decide whether a thread is worth
// a task and how urgent it is.
type Triage struct {
	// Keywords mark a thread actionable even when already read.
	Keywords []string
	// UrgentKeywords force high priority.
	UrgentKeywords []string
}

// DefaultTriage matches the stock keyword sets.
func DefaultTriage() Triage {
	return Triage{
		Keywords:       []string{"urgent", "asap", "invoice", "payment", "help", "important", "reminder", "deadline"},
		UrgentKeywords: []string{"urgent", "asap", "emergency", "immediately"},
	}
}

// Adapter exposes a chat Client as a watcher source.
type Adapter struct {
	client Client
	triage Triage
}

func NewAdapter(client Client, triage Triage) *Adapter {
	return &Adapter{client: client, triage: triage}
}

func (a *Adapter) Name() string { return "chat" }

// Fetch lists threads and keeps the ones that are unread or mention a
// triage keyword, filtered through the dedup view.
func (a *Adapter) Fetch(ctx context.Context, seen source.Seen) ([]source.Item, error) {
	threads, err := a.client.ListThreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	var items []source.Item
	for _, th := range threads {
		if th.Sender == "" || strings.TrimSpace(th.Preview) == "" {
			continue
		}

		prio, actionable := a.classify(th)
		if !actionable {
			continue
		}

		key := DedupKey(th.Sender, th.Preview)
		if seen.Has(key) {
			continue
		}

		items = append(items, source.Item{
			Key:      key,
			Title:    th.Sender,
			From:     th.Sender,
			Snippet:  strings.TrimSpace(th.Preview),
			Priority: prio,
			Received: time.Now(),
			Meta: map[string]string{
				"sender":  th.Sender,
				"trigger": a.trigger(th),
			},
		})
	}
	return items, nil
}

// classify returns the thread's priority and whether it warrants a
// task at all. Urgent keywords outrank unread state, which outranks
// plain keywords.
func (a *Adapter) classify(th Thread) (vault.Priority, bool) {
	text := strings.ToLower(th.Preview)

	for _, kw := range a.triage.UrgentKeywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return vault.PriorityHigh, true
		}
	}
	if th.Unread {
		return vault.PriorityHigh, true
	}
	for _, kw := range a.triage.Keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return vault.PriorityMedium, true
		}
	}
	return vault.PriorityLow, false
}

func (a *Adapter) trigger(th Thread) string {
	text := strings.ToLower(th.Preview)
	for _, kw := range append(a.triage.UrgentKeywords, a.triage.Keywords...) {
		if strings.Contains(text, strings.ToLower(kw)) {
			return "keyword: " + kw
		}
	}
	return "unread message"
}

// Render produces a CHAT_<sender>_<hash>.md record. The hash comes
// from the dedup key so identical content from the same sender always
// renders to the same filename.
func (a *Adapter) Render(item source.Item) (vault.TaskRecord, error) {
	body := fmt.Sprintf("# Message from %s\n\n**Trigger:** %s\n\n## Preview\n%s\n\n## Suggested Action\nReply to %s or mark the thread handled.\n",
		item.From, item.Meta["trigger"], item.Snippet, item.From)

	return vault.TaskRecord{
		Name:     fmt.Sprintf("CHAT_%s_%s.md", senderSlug(item.From), keyHash(item.Key)),
		Priority: item.Priority,
		Created:  item.Received,
		Meta:     item.Meta,
		Body:     body,
	}, nil
}

func (a *Adapter) Close() error { return a.client.Close() }

// DedupKey derives the stable key for a thread snapshot: lowercased
// sender joined with the first 80 characters of whitespace-normalized,
// lowercased content. Channels that re-surface the same message under
// a fresh envelope id collapse onto one key.
func DedupKey(sender, content string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(content), " "))
	if len(norm) > 80 {
		norm = norm[:80]
	}
	return strings.ToLower(sender) + "::" + norm
}

var unsafeSender = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func senderSlug(sender string) string {
	s := unsafeSender.ReplaceAllString(sender, "_")
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:8]
}
