package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/swe-verify/internal/results"
	"github.com/hochfrequenz/swe-verify/internal/verify"
)

func terminalEvent(taskID string, status string) verify.Event {
	rec := results.NewRecord(taskID, "task"+taskID+":test-run")
	state := verify.StateDone
	switch status {
	case "passed":
		rec.BuildOK = true
		rec.AgentPatchOK = true
		rec.TestPatchOK = true
		rec.TestOK = true
	case "failed":
		rec.BuildOK = true
		rec.AgentPatchOK = true
		rec.TestPatchOK = true
	case "skipped":
		rec.BuildOK = true
		rec.Skip("agent patch could not be applied")
		state = verify.StateSkipped
	case "build-failed":
		state = verify.StateBuildFailed
	}
	return verify.Event{TaskID: taskID, State: state, Record: rec}
}

func TestModel_AppliesEvents(t *testing.T) {
	events := make(chan verify.Event)
	m := NewModel([]string{"1", "2", "3"}, events)

	m.apply(verify.Event{TaskID: "1", State: verify.StateBuilt})
	if m.rows[0].State != verify.StateBuilt {
		t.Errorf("state = %s", m.rows[0].State)
	}
	if m.rows[0].StartedAt.IsZero() {
		t.Error("start time not recorded")
	}

	m.apply(terminalEvent("1", "passed"))
	m.apply(terminalEvent("2", "skipped"))
	m.apply(terminalEvent("3", "failed"))

	if m.passed != 1 || m.skipped != 1 || m.failed != 1 {
		t.Errorf("counts = %d/%d/%d", m.passed, m.failed, m.skipped)
	}
	if m.rows[0].EndedAt.IsZero() {
		t.Error("end time not recorded for terminal state")
	}
}

func TestModel_UnknownTaskGetsRow(t *testing.T) {
	m := NewModel(nil, nil)
	m.apply(terminalEvent("surprise", "passed"))
	if len(m.rows) != 1 || m.rows[0].TaskID != "surprise" {
		t.Fatalf("rows = %+v", m.rows)
	}
}

func TestModel_Navigation(t *testing.T) {
	m := NewModel([]string{"1", "2", "3"}, nil)
	m.height = 30
	m.width = 80

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	m = next.(Model)
	if m.selectedRow != 1 {
		t.Errorf("after j: selectedRow = %d", m.selectedRow)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	m = next.(Model)
	if m.selectedRow != 2 {
		t.Errorf("after G: selectedRow = %d", m.selectedRow)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'g'}})
	m = next.(Model)
	if m.selectedRow != 0 {
		t.Errorf("after g: selectedRow = %d", m.selectedRow)
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m := NewModel([]string{"1"}, nil)
	for _, key := range []string{"q", "ctrl+c"} {
		var msg tea.KeyMsg
		if key == "ctrl+c" {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		}
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Errorf("key %q did not produce a command", key)
		}
	}
}

func TestView_ShowsCountsAndStates(t *testing.T) {
	m := NewModel([]string{"1", "2"}, nil)
	m.width = 100
	m.height = 30
	m.apply(terminalEvent("1", "passed"))
	m.apply(terminalEvent("2", "build-failed"))

	out := m.View()
	if !strings.Contains(out, "Passed: 1") {
		t.Errorf("view missing pass count:\n%s", out)
	}
	if !strings.Contains(out, "✅") || !strings.Contains(out, "❌") {
		t.Errorf("view missing status glyphs:\n%s", out)
	}
	if !strings.Contains(out, string(verify.StateBuildFailed)) {
		t.Errorf("view missing terminal state")
	}
}

func TestView_ZeroWidth(t *testing.T) {
	m := NewModel(nil, nil)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View() = %q", got)
	}
}

func TestRunDone(t *testing.T) {
	events := make(chan verify.Event)
	close(events)
	m := NewModel(nil, events)

	msg := waitForEvent(events)()
	if _, ok := msg.(RunDoneMsg); !ok {
		t.Fatalf("msg = %T", msg)
	}
	next, _ := m.Update(msg)
	if !next.(Model).finished {
		t.Error("model not marked finished")
	}
}
