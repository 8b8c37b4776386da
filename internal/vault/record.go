package vault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status is a record lifecycle status as written in the header block.
// Directory location is authoritative for lifecycle state; the body
// status is descriptive metadata and readers flag, never silently fix,
// records whose two signals disagree.
type Status string

// Task and approval statuses.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Priority of a task record.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TimeLayout is the timestamp format used in record headers.
const TimeLayout = "2006-01-02 15:04:05"

// headerMarker delimits the header block at the top of a record file.
const headerMarker = "---"

// Parse/validation errors.
var (
	ErrNoHeader     = errors.New("vault: missing header block")
	ErrMissingField = errors.New("vault: missing required header field")
)

// TaskRecord is the canonical persisted unit of human-actionable work.
type TaskRecord struct {
	Name        string // filename, unique per dedup key
	Status      Status
	Priority    Priority
	Source      string
	Created     time.Time
	ProcessedAt time.Time // zero until the mover promotes the record
	DedupKey    string
	Meta        map[string]string // additional structured fields
	Body        string
}

// Encode renders the record in the vault's on-disk format: a delimited
// header block of key: value pairs followed by the free-form body.
func (r TaskRecord) Encode() []byte {
	pairs := [][2]string{
		{"status", string(r.Status)},
		{"priority", string(r.Priority)},
		{"source", r.Source},
		{"created", r.Created.Format(TimeLayout)},
	}
	if !r.ProcessedAt.IsZero() {
		pairs = append(pairs, [2]string{"processed_at", r.ProcessedAt.Format(TimeLayout)})
	}
	if r.DedupKey != "" {
		pairs = append(pairs, [2]string{"dedup_key", r.DedupKey})
	}
	pairs = append(pairs, sortedPairs(r.Meta)...)

	return encode(pairs, r.Body)
}

// ParseTask decodes a task record. A missing header block or a missing
// required field (status, created) is a MalformedRecord condition: the
// caller logs and skips, never deletes.
func ParseTask(name string, data []byte) (TaskRecord, error) {
	fields, body, err := splitHeader(data)
	if err != nil {
		return TaskRecord{}, err
	}

	rec := TaskRecord{Name: name, Body: body, Meta: map[string]string{}}
	for key, val := range fields {
		switch key {
		case "status":
			rec.Status = Status(val)
		case "priority":
			rec.Priority = Priority(val)
		case "source":
			rec.Source = val
		case "created":
			rec.Created, _ = time.ParseInLocation(TimeLayout, val, time.Local)
		case "processed_at":
			rec.ProcessedAt, _ = time.ParseInLocation(TimeLayout, val, time.Local)
		case "dedup_key":
			rec.DedupKey = val
		default:
			rec.Meta[key] = val
		}
	}

	if _, ok := fields["status"]; !ok {
		return TaskRecord{}, fmt.Errorf("%w: status", ErrMissingField)
	}
	if _, ok := fields["created"]; !ok {
		return TaskRecord{}, fmt.Errorf("%w: created", ErrMissingField)
	}
	return rec, nil
}

// ApprovalRecord is the persisted authorization unit for one gated
// outbound action. The system creates it pending and only a human
// relocates or edits it afterwards.
type ApprovalRecord struct {
	Name    string // APPROVAL_<ACTION>[_<subject-slug>].md
	Action  string // action type, e.g. "dm" or "post"
	Subject string // scoping key, e.g. recipient identity; empty = blanket
	Status  Status
	Created time.Time
	Details string // free-form body
}

// Encode renders the approval record in the on-disk format.
func (r ApprovalRecord) Encode() []byte {
	pairs := [][2]string{
		{"status", string(r.Status)},
		{"action", r.Action},
		{"subject", r.Subject},
		{"created", r.Created.Format(TimeLayout)},
	}
	return encode(pairs, r.Details)
}

// ParseApproval decodes an approval record. Required fields: status,
// created, subject.
func ParseApproval(name string, data []byte) (ApprovalRecord, error) {
	fields, body, err := splitHeader(data)
	if err != nil {
		return ApprovalRecord{}, err
	}

	rec := ApprovalRecord{Name: name, Details: body}
	rec.Status = Status(fields["status"])
	rec.Action = fields["action"]
	rec.Subject = fields["subject"]
	if v, ok := fields["created"]; ok {
		rec.Created, _ = time.ParseInLocation(TimeLayout, v, time.Local)
	}

	for _, req := range []string{"status", "created", "subject"} {
		if _, ok := fields[req]; !ok {
			return ApprovalRecord{}, fmt.Errorf("%w: %s", ErrMissingField, req)
		}
	}
	return rec, nil
}

func encode(pairs [][2]string, body string) []byte {
	var b strings.Builder
	b.WriteString(headerMarker)
	b.WriteByte('\n')
	for _, kv := range pairs {
		b.WriteString(kv[0])
		b.WriteString(": ")
		b.WriteString(kv[1])
		b.WriteByte('\n')
	}
	b.WriteString(headerMarker)
	b.WriteByte('\n')
	b.WriteString(body)
	return []byte(b.String())
}

// splitHeader splits raw content into header fields and body. The
// header is a block of key: value lines between two marker lines at
// the very top of the file.
func splitHeader(data []byte) (map[string]string, string, error) {
	content := string(data)
	if !strings.HasPrefix(content, headerMarker+"\n") {
		return nil, "", ErrNoHeader
	}

	rest := content[len(headerMarker)+1:]
	end := strings.Index(rest, "\n"+headerMarker)
	if end < 0 {
		return nil, "", ErrNoHeader
	}

	fields := map[string]string{}
	for _, line := range strings.Split(rest[:end], "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}

	body := rest[end+1+len(headerMarker):]
	body = strings.TrimPrefix(body, "\n")
	return fields, body, nil
}

func sortedPairs(m map[string]string) [][2]string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, m[k]})
	}
	return pairs
}
