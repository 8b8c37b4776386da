package vault

import (
	"fmt"
	"os"

	"github.com/colonyops/warden/pkg/fsutil"
)

// WriteTask persists a new task record into Needs_Action. The write is
// atomic: readers either see the complete record under its final name
// or nothing at all.
func (v *Vault) WriteTask(rec TaskRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("task record has no filename")
	}
	return fsutil.WriteAtomic(v.Path(DirNeedsAction, rec.Name), rec.Encode(), 0o644)
}

// ReadTask loads and parses one task record from a lifecycle directory.
func (v *Vault) ReadTask(dir, name string) (TaskRecord, error) {
	data, err := os.ReadFile(v.Path(dir, name))
	if err != nil {
		return TaskRecord{}, err
	}
	return ParseTask(name, data)
}

// RewriteTask replaces a record in place, atomically. Only the task
// mover is permitted to rewrite records; watchers create and never
// mutate.
func (v *Vault) RewriteTask(dir string, rec TaskRecord) error {
	return fsutil.WriteAtomic(v.Path(dir, rec.Name), rec.Encode(), 0o644)
}

// MoveRecord relocates a record between lifecycle directories with a
// single atomic rename.
func (v *Vault) MoveRecord(fromDir, toDir, name string) error {
	return fsutil.Move(v.Path(fromDir, name), v.Path(toDir, name))
}

// WriteApproval persists an approval request into Pending_Approval.
// Overwriting an existing pending file with the same deterministic
// name is an idempotent re-request.
func (v *Vault) WriteApproval(rec ApprovalRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("approval record has no filename")
	}
	return fsutil.WriteAtomic(v.Path(DirPending, rec.Name), rec.Encode(), 0o644)
}

// ReadApproval loads and parses one approval record.
func (v *Vault) ReadApproval(dir, name string) (ApprovalRecord, error) {
	data, err := os.ReadFile(v.Path(dir, name))
	if err != nil {
		return ApprovalRecord{}, err
	}
	return ParseApproval(name, data)
}
