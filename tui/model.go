// Package tui renders a live dashboard of an in-flight verification run.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/swe-verify/internal/results"
	"github.com/hochfrequenz/swe-verify/internal/verify"
)

// TaskView is one row in the dashboard.
type TaskView struct {
	TaskID    string
	State     verify.State
	Record    *results.Record
	StartedAt time.Time
	EndedAt   time.Time
}

// Elapsed returns how long the task has been (or was) in flight.
func (t *TaskView) Elapsed() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	if t.EndedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.EndedAt.Sub(t.StartedAt)
}

// Model is the TUI application model.
type Model struct {
	rows  []*TaskView
	index map[string]int // task ID to rows position

	events <-chan verify.Event

	// Stats
	passed  int
	failed  int
	skipped int

	// UI state
	width       int
	height      int
	selectedRow int
	scroll      int
	startedAt   time.Time
	finished    bool
}

// NewModel creates a model for the given task IDs, updated from events.
func NewModel(taskIDs []string, events <-chan verify.Event) Model {
	rows := make([]*TaskView, len(taskIDs))
	index := make(map[string]int, len(taskIDs))
	for i, id := range taskIDs {
		rows[i] = &TaskView{TaskID: id, State: verify.StatePending}
		index[id] = i
	}
	return Model{
		rows:      rows,
		index:     index,
		events:    events,
		startedAt: time.Now(),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForEvent(m.events),
	)
}

// TickMsg refreshes elapsed durations.
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// EventMsg carries a verification progress event into the UI loop.
type EventMsg verify.Event

// RunDoneMsg is sent when the event channel closes.
type RunDoneMsg struct{}

func waitForEvent(events <-chan verify.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return RunDoneMsg{}
		}
		return EventMsg(ev)
	}
}
