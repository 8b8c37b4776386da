package mail

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// snippetLen caps how much body text is carried into a task record.
const snippetLen = 200

// MaildirClient reads unread messages from the new/ subdirectory of a
// maildir. Files there are messages no reader has touched yet, which
// maps directly onto "unread". The client never moves or flags files;
// dedup in the pipeline handles re-listing.
type MaildirClient struct {
	dir string
}

// NewMaildirClient validates the maildir layout and returns a client.
func NewMaildirClient(dir string) (*MaildirClient, error) {
	info, err := os.Stat(filepath.Join(dir, "new"))
	if err != nil {
		return nil, fmt.Errorf("maildir %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("maildir %s: new/ is not a directory", dir)
	}
	return &MaildirClient{dir: dir}, nil
}

// ListUnread parses up to max messages from new/, oldest filename
// first. Unparseable files are skipped, not fatal.
func (c *MaildirClient) ListUnread(ctx context.Context, max int) ([]Message, error) {
	entries, err := os.ReadDir(filepath.Join(c.dir, "new"))
	if err != nil {
		return nil, fmt.Errorf("read maildir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var msgs []Message
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return msgs, err
		}
		if len(msgs) >= max {
			break
		}
		msg, err := c.parseFile(name)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (c *MaildirClient) parseFile(name string) (Message, error) {
	f, err := os.Open(filepath.Join(c.dir, "new", name))
	if err != nil {
		return Message{}, err
	}
	defer f.Close()

	m, err := mail.ReadMessage(f)
	if err != nil {
		return Message{}, fmt.Errorf("parse %s: %w", name, err)
	}

	msg := Message{
		ID:      m.Header.Get("Message-Id"),
		From:    m.Header.Get("From"),
		Subject: m.Header.Get("Subject"),
	}
	if msg.ID == "" {
		// Fall back to the maildir filename, which is unique by
		// construction.
		msg.ID = name
	}
	if date, err := m.Header.Date(); err == nil {
		msg.Date = date
	}

	body, err := io.ReadAll(io.LimitReader(m.Body, snippetLen*4))
	if err == nil {
		msg.Snippet = snippet(string(body))
	}
	return msg, nil
}

// snippet collapses whitespace and truncates to snippetLen runes.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) > snippetLen {
		return string(runes[:snippetLen]) + "..."
	}
	return s
}

func (c *MaildirClient) Close() error { return nil }
