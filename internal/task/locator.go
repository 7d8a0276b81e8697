// Package task discovers verification task working sets on disk.
//
// A task lives in <taskRoot>/task_id_<ID>/ and carries the build file,
// the test command, and an optional held-out test patch archive. The
// agent-produced fix for the same ID lives in a separate results tree.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var dirPattern = regexp.MustCompile(`^task_id_(.+)$`)

// Task is one unit of verification work.
type Task struct {
	ID         string
	Dir        string // task_id_<ID> directory with Dockerfile etc.
	BuildFile  string
	TestCmd    string // path to test_command.txt
	TestPatch  string // path to test_patch.tar (may not exist)
	AgentPatch string // path to agent patch in results tree (may not exist)
	LogsDir    string // per-task log output directory
}

// BuildLog returns the path of the build transcript for this task.
func (t Task) BuildLog() string { return filepath.Join(t.LogsDir, "build.log") }

// SetupLog returns the path of the setup transcript for this task.
func (t Task) SetupLog() string { return filepath.Join(t.LogsDir, "setup.log") }

// TestLog returns the path of the test transcript for this task.
func (t Task) TestLog() string { return filepath.Join(t.LogsDir, "test.log") }

// ResultPath returns where the finalized result record is written.
func (t Task) ResultPath() string { return filepath.Join(t.LogsDir, "result.json") }

// ImageTag returns the unique image tag for this task's build.
func (t Task) ImageTag() string { return fmt.Sprintf("task%s:test-run", t.ID) }

// TestCommand reads and trims the task's test command line.
// An empty command is a precondition failure for the caller.
func (t Task) TestCommand() (string, error) {
	data, err := os.ReadFile(t.TestCmd)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Locator discovers tasks under a task root.
type Locator struct {
	TaskRoot    string
	ResultsRoot string
	LogsRoot    string
}

// Discover returns all tasks under the task root, sorted by directory
// name. Only directories matching task_id_* are considered; onlyIDs,
// when non-empty, restricts discovery to those task IDs.
func (l Locator) Discover(onlyIDs map[string]bool) ([]Task, error) {
	entries, err := os.ReadDir(l.TaskRoot)
	if err != nil {
		return nil, fmt.Errorf("reading task root: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var tasks []Task
	for _, name := range names {
		m := dirPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		id := m[1]
		if len(onlyIDs) > 0 && !onlyIDs[id] {
			continue
		}

		dir := filepath.Join(l.TaskRoot, name)
		tasks = append(tasks, Task{
			ID:         id,
			Dir:        dir,
			BuildFile:  filepath.Join(dir, "Dockerfile"),
			TestCmd:    filepath.Join(dir, "test_command.txt"),
			TestPatch:  filepath.Join(dir, "test_patch.tar"),
			AgentPatch: filepath.Join(l.ResultsRoot, name, name+".patch"),
			LogsDir:    filepath.Join(l.LogsRoot, name),
		})
	}

	return tasks, nil
}

// ParseOnlyIDs turns a comma-separated allowlist into a set.
// Empty input yields nil (no restriction).
func ParseOnlyIDs(s string) map[string]bool {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	ids := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids[p] = true
		}
	}
	return ids
}
