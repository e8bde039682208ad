// Package notify delivers run outcome notifications to external channels.
package notify

import (
	"fmt"

	"github.com/crossgate-ci/crossgate/internal/domain"
)

// NotificationType represents the type of notification
type NotificationType int

const (
	NotifyInfo NotificationType = iota
	NotifySuccess
	NotifyWarning
	NotifyError
)

// Notification represents a notification to be sent
type Notification struct {
	Title   string
	Message string
	Type    NotificationType
	RunID   string // Optional run reference
	Branch  string // Optional branch reference
}

// Notifier is the interface for sending notifications
type Notifier interface {
	Send(n Notification) error
}

// MultiNotifier sends to multiple notifiers
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send sends the notification to all notifiers
func (m *MultiNotifier) Send(n Notification) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications)
type NoopNotifier struct{}

func (NoopNotifier) Send(n Notification) error { return nil }

// ForRun builds a notification describing a finalized pipeline run
func ForRun(run *domain.PipelineRun) Notification {
	n := Notification{
		RunID:  run.ID,
		Branch: run.Trigger.Branch,
	}

	if run.Status == domain.RunSucceeded {
		n.Type = NotifySuccess
		n.Title = fmt.Sprintf("Pipeline succeeded on %s", run.Trigger.Branch)
		n.Message = fmt.Sprintf("All %d environments passed.", len(run.Results))
		return n
	}

	n.Type = NotifyError
	n.Title = fmt.Sprintf("Pipeline failed on %s", run.Trigger.Branch)
	for _, r := range run.Results {
		if r.Status == domain.RunFailed {
			n.Message += fmt.Sprintf("%s: failed at %s/%s\n", r.EnvironmentID, r.FailedStage, r.FailedStep)
		}
	}
	return n
}
