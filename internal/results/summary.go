package results

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Summary aggregates all records of one run. Computed once after every
// task has finished; write-once.
type Summary struct {
	Total        int       `json:"total" yaml:"total"`
	BuildOK      int       `json:"build_ok" yaml:"build_ok"`
	AgentPatchOK int       `json:"agent_patch_ok" yaml:"agent_patch_ok"`
	TestPatchOK  int       `json:"test_patch_ok" yaml:"test_patch_ok"`
	TestOK       int       `json:"test_ok" yaml:"test_ok"`
	Skipped      int       `json:"skipped" yaml:"skipped"`
	GeneratedAt  int64     `json:"generated_at" yaml:"generated_at"`
	Tasks        []*Record `json:"by_task" yaml:"by_task"`
}

// Summarize computes the aggregate over a run's records.
func Summarize(records []*Record) *Summary {
	s := &Summary{
		Total:       len(records),
		GeneratedAt: time.Now().Unix(),
		Tasks:       records,
	}
	for _, r := range records {
		if r.BuildOK {
			s.BuildOK++
		}
		if r.AgentPatchOK {
			s.AgentPatchOK++
		}
		if r.TestPatchOK {
			s.TestPatchOK++
		}
		if r.TestOK {
			s.TestOK++
		}
		if r.Skipped {
			s.Skipped++
		}
	}
	return s
}

// WriteJSON persists the summary as JSON, atomically.
func (s *Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, append(data, '\n'))
}

// WriteYAML persists the summary as YAML, atomically. The YAML mirror
// diffs more readably when summaries are kept under version control.
func (s *Summary) WriteYAML(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// WriteMarkdown persists the human-readable summary table, atomically.
// One row per task: id, status glyphs, exit code, status word, log link.
func (s *Summary) WriteMarkdown(path string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Verification Summary\n\n")
	fmt.Fprintf(&b, "- Total tasks: %d\n", s.Total)
	fmt.Fprintf(&b, "- Builds OK: %d\n", s.BuildOK)
	fmt.Fprintf(&b, "- Agent patches OK: %d\n", s.AgentPatchOK)
	fmt.Fprintf(&b, "- Test patches OK: %d\n", s.TestPatchOK)
	fmt.Fprintf(&b, "- Tests OK: %d\n", s.TestOK)
	fmt.Fprintf(&b, "- Skipped: %d\n\n", s.Skipped)

	b.WriteString("| Task ID | Build | Agent Patch | Test Patch | Test | Exit | Status | Logs |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---|---|\n")
	for _, r := range s.Tasks {
		exit := "-"
		if r.TestExitCode != nil {
			exit = fmt.Sprintf("%d", *r.TestExitCode)
		}
		link := r.Logs["test_log"]
		if link == "" {
			link = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			r.TaskID,
			glyph(r.BuildOK), glyph(r.AgentPatchOK), glyph(r.TestPatchOK), glyph(r.TestOK),
			exit, r.Status(), link)
	}

	return writeAtomic(path, []byte(b.String()))
}

func glyph(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
