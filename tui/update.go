package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/swe-verify/internal/verify"
)

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "j", "down":
			if m.selectedRow < len(m.rows)-1 {
				m.selectedRow++
			}
			if m.selectedRow >= m.scroll+m.visibleRows() {
				m.scroll = m.selectedRow - m.visibleRows() + 1
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
			}
			if m.selectedRow < m.scroll {
				m.scroll = m.selectedRow
			}
		case "g":
			m.selectedRow = 0
			m.scroll = 0
		case "G":
			m.selectedRow = len(m.rows) - 1
			if m.selectedRow >= m.visibleRows() {
				m.scroll = m.selectedRow - m.visibleRows() + 1
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tickCmd()

	case EventMsg:
		m.apply(verify.Event(msg))
		return m, waitForEvent(m.events)

	case RunDoneMsg:
		m.finished = true
		return m, nil
	}

	return m, nil
}

// apply folds a progress event into the row and stats state.
func (m *Model) apply(ev verify.Event) {
	i, ok := m.index[ev.TaskID]
	if !ok {
		row := &TaskView{TaskID: ev.TaskID}
		m.rows = append(m.rows, row)
		i = len(m.rows) - 1
		m.index[ev.TaskID] = i
	}
	row := m.rows[i]

	if row.StartedAt.IsZero() {
		row.StartedAt = time.Now()
	}
	row.State = ev.State
	if ev.Record != nil {
		row.Record = ev.Record
	}

	if ev.State.Terminal() {
		row.EndedAt = time.Now()
		m.recount()
	}
}

func (m *Model) recount() {
	m.passed, m.failed, m.skipped = 0, 0, 0
	for _, row := range m.rows {
		if !row.State.Terminal() || row.Record == nil {
			continue
		}
		switch row.Record.Status() {
		case "passed":
			m.passed++
		case "skipped":
			m.skipped++
		default:
			m.failed++
		}
	}
}

// visibleRows returns how many task rows fit under the header and footer.
func (m Model) visibleRows() int {
	n := m.height - 7
	if n < 1 {
		return 1
	}
	return n
}
