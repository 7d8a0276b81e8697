// Package results models the per-task verification outcome, the
// run-level aggregate, and their on-disk forms.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Record is the structured outcome of one task verification attempt.
// It is created when task processing starts, mutated only by that
// task's orchestration steps, and finalized once teardown completes.
type Record struct {
	TaskID       string            `json:"task_id"`
	ImageTag     string            `json:"image_tag"`
	RepoDir      string            `json:"repo_dir,omitempty"`
	BuildOK      bool              `json:"build_ok"`
	AgentPatchOK bool              `json:"agent_patch_ok"`
	TestPatchOK  bool              `json:"test_patch_ok"`
	TestOK       bool              `json:"test_ok"`
	TestExitCode *int              `json:"test_exit_code"`
	Skipped      bool              `json:"skipped"`
	SkipReason   string            `json:"skip_reason,omitempty"`
	Notes        []string          `json:"notes"`
	Logs         map[string]string `json:"paths"`
}

// NewRecord creates an empty record for a task.
func NewRecord(taskID, imageTag string) *Record {
	return &Record{
		TaskID:   taskID,
		ImageTag: imageTag,
		Notes:    []string{},
		Logs:     map[string]string{},
	}
}

// AddNote appends a free-text note.
func (r *Record) AddNote(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// Skip marks the record as skipped with a reason. A skipped record has
// no test exit code: tests never ran, which is different from tests
// running and failing.
func (r *Record) Skip(reason string) {
	r.Skipped = true
	r.SkipReason = reason
	r.TestExitCode = nil
	r.TestOK = false
}

// Status returns the single status word used in summaries.
func (r *Record) Status() string {
	switch {
	case r.Skipped:
		return "skipped"
	case !r.BuildOK:
		return "build-failed"
	case r.TestOK:
		return "passed"
	default:
		return "failed"
	}
}

// WriteFile persists the record as JSON via write-then-rename, so a
// reader never observes a partial result.
func (r *Record) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
