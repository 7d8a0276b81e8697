// Package notify delivers verification run results to the operator,
// either on the desktop or through a Slack webhook.
package notify

import (
	"fmt"
	"strings"

	"github.com/hochfrequenz/swe-verify/internal/results"
)

// NotificationType classifies the severity of a notification.
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification is a single message to deliver.
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunName string // Optional batch run reference
}

// Notifier sends notifications somewhere.
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send delivers the notification to every notifier, returning the last error.
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications).
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// skipReasonLimit caps how many per-task skip reasons a notification
// body lists before truncating.
const skipReasonLimit = 5

// RunCompleted builds a notification summarizing a finished verification run.
// Skipped tasks get their reasons spelled out: a skip means the pipeline
// could not reach the tests, which is the first thing worth investigating.
func RunCompleted(runName string, s results.Summary) Notification {
	failed := s.Total - s.TestOK - s.Skipped
	typ := NotifySuccess
	if s.Skipped > 0 {
		typ = NotifyWarning
	}
	if failed > 0 {
		typ = NotifyError
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d passed, %d failed, %d skipped (builds ok: %d)", s.TestOK, failed, s.Skipped, s.BuildOK)
	listed := 0
	for _, rec := range s.Tasks {
		if !rec.Skipped {
			continue
		}
		if listed == skipReasonLimit {
			fmt.Fprintf(&b, "\n… and %d more skipped tasks", s.Skipped-listed)
			break
		}
		fmt.Fprintf(&b, "\ntask %s skipped: %s", rec.TaskID, rec.SkipReason)
		listed++
	}

	return Notification{
		Title:   fmt.Sprintf("Verification run complete: %d/%d passed", s.TestOK, s.Total),
		Message: b.String(),
		Type:    typ,
		RunName: runName,
	}
}
