// Package approval implements the human approval gate. Permission for
// a gated outbound action exists only while a matching record sits in
// the vault's Approved directory with a body status of approved. The
// system writes requests into Pending_Approval and reads Approved; it
// never moves or mutates a record itself - that is the human's job.
package approval

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/warden/internal/vault"
)

// approvedMarker is the body condition for a grant, matched
// case-insensitively anywhere in the record content.
const approvedMarker = "status: approved"

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// Slug converts arbitrary text to a filename-safe form used in
// approval record names.
func Slug(text string) string {
	s := slugPattern.ReplaceAllString(text, "_")
	s = strings.Trim(s, "_")
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}

// Filename returns the deterministic approval record name for an
// (action type, subject) pair. An empty subject yields the blanket
// form with no subject suffix.
func Filename(actionType, subject string) string {
	name := "APPROVAL_" + strings.ToUpper(strings.TrimSpace(actionType))
	if subject != "" {
		name += "_" + Slug(subject)
	}
	return name + ".md"
}

// Gate checks for and requests approval records in one vault.
type Gate struct {
	vault *vault.Vault
	log   zerolog.Logger
}

// NewGate returns a gate over the given vault.
func NewGate(v *vault.Vault, log zerolog.Logger) *Gate {
	return &Gate{
		vault: v,
		log:   log.With().Str("component", "approval-gate").Logger(),
	}
}

// Find looks for a record granting (actionType, subject) in Approved.
//
// A candidate must pass both conditions:
//  1. filename: prefix APPROVAL_<ACTION>, and - when a subject is
//     given - either the subject slug appears in the name or the name
//     is the blanket form with no subject suffix;
//  2. body: contains "status: approved", case-insensitively.
//
// Candidates are considered in lexicographic filename order and the
// first grant wins. Returns nil when Approved is absent, empty, or
// nothing passes both conditions.
func (g *Gate) Find(actionType, subject string) (*vault.ApprovalRecord, error) {
	names, err := g.vault.List(vault.DirApproved)
	if err != nil {
		return nil, err
	}

	prefix := "APPROVAL_" + strings.ToUpper(strings.TrimSpace(actionType))
	blanket := prefix + ".MD"

	for _, name := range names {
		upper := strings.ToUpper(name)
		if !strings.HasPrefix(upper, prefix) {
			continue
		}

		if subject != "" && !strings.Contains(upper, strings.ToUpper(Slug(subject))) {
			if upper != blanket {
				continue
			}
		}

		data, err := os.ReadFile(g.vault.Path(vault.DirApproved, name))
		if err != nil {
			g.log.Warn().Err(err).Str("file", name).Msg("unreadable approval candidate")
			continue
		}
		if !strings.Contains(strings.ToLower(string(data)), approvedMarker) {
			continue
		}

		rec, err := vault.ParseApproval(name, data)
		if err != nil {
			// The grant conditions held; surface what we know rather
			// than reject a hand-edited file over a header defect.
			g.log.Warn().Err(err).Str("file", name).Msg("approval grants but header is malformed")
			rec = vault.ApprovalRecord{Name: name, Action: actionType, Subject: subject, Status: vault.StatusApproved}
		}
		return &rec, nil
	}
	return nil, nil
}

// Check is the read-only probe form of Find: it reports whether the
// (actionType, subject) pair is currently approved and through which
// record.
func (g *Gate) Check(actionType, subject string) (bool, string, error) {
	rec, err := g.Find(actionType, subject)
	if err != nil {
		return false, "", err
	}
	if rec == nil {
		return false, Filename(actionType, subject), nil
	}
	return true, rec.Name, nil
}

// Request writes a pending approval record into Pending_Approval using
// the deterministic filename for (actionType, subject). Re-requesting
// overwrites the previous pending file, which is acceptable: the
// content is regenerated from the same inputs.
func (g *Gate) Request(actionType, subject, details string) (string, error) {
	name := Filename(actionType, subject)

	rec := vault.ApprovalRecord{
		Name:    name,
		Action:  strings.ToLower(strings.TrimSpace(actionType)),
		Subject: subject,
		Status:  vault.StatusPending,
		Created: time.Now(),
		Details: requestBody(actionType, subject, details, name),
	}

	if err := g.vault.WriteApproval(rec); err != nil {
		return "", fmt.Errorf("write approval request: %w", err)
	}

	g.log.Info().Str("file", name).Str("action", rec.Action).Str("subject", subject).
		Msg("approval request created")
	return name, nil
}

func requestBody(actionType, subject, details, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n# Approval Request - %s\n\n", strings.ToUpper(actionType))
	if subject != "" {
		fmt.Fprintf(&b, "**Subject:** %s\n\n", subject)
	}
	fmt.Fprintf(&b, "**Details:**\n%s\n\n---\n\n", details)
	fmt.Fprintf(&b, "## How to approve\n\n")
	fmt.Fprintf(&b, "1. Review the details above.\n")
	fmt.Fprintf(&b, "2. Change the status line to approved.\n")
	fmt.Fprintf(&b, "3. Move this file to `%s/%s`.\n", vault.DirApproved, name)
	fmt.Fprintf(&b, "4. Re-run the action that was blocked.\n\n")
	fmt.Fprintf(&b, "## How to reject\n\nMove this file to `%s/%s`.\n", vault.DirRejected, name)
	return b.String()
}
