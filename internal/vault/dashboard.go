package vault

import (
	"fmt"
	"strings"
	"time"

	"github.com/colonyops/warden/pkg/fsutil"
)

// Dashboard is the cross-cutting append-only activity journal. Entries
// are write-once blocks or lines; nothing is ever mutated or deleted.
type Dashboard struct {
	path  string
	agent string
}

// LogCreated appends one activity block summarizing a watcher batch.
// Calling with an empty list is a no-op: a batch that created nothing
// writes nothing.
func (d *Dashboard) LogCreated(source string, created []string) error {
	if len(created) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n### %s Log - %s\n", source, time.Now().Format(TimeLayout))
	for _, name := range created {
		fmt.Fprintf(&b, "- Task created: `%s`\n", name)
	}
	fmt.Fprintf(&b, "- Agent: %s\n", d.agent)

	return fsutil.AppendLine(d.path, b.String())
}

// LogMoved appends one activity block summarizing a mover scan.
// No-op for an empty list.
func (d *Dashboard) LogMoved(moved []string) error {
	if len(moved) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n### Task Mover Log - %s\n", time.Now().Format(TimeLayout))
	for _, name := range moved {
		fmt.Fprintf(&b, "- Processed & moved to %s/: `%s`\n", DirDone, name)
	}
	fmt.Fprintf(&b, "- Agent: %s\n", d.agent)

	return fsutil.AppendLine(d.path, b.String())
}

// LogLine appends one timestamped single-line entry, used by the
// action executor for outbound activity.
func (d *Dashboard) LogLine(entry string) error {
	line := fmt.Sprintf("\n- [%s] %s - Agent: %s", time.Now().Format(TimeLayout), entry, d.agent)
	return fsutil.AppendLine(d.path, line)
}
