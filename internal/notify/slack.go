package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier posts run verdicts to a Slack incoming webhook. An empty
// webhook URL disables it without the caller needing a special case.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// SlackMessage is the webhook payload: a headline plus one colored
// attachment carrying the per-environment detail
type SlackMessage struct {
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
}

// SlackAttachment is one colored block in a Slack message
type SlackAttachment struct {
	Color  string `json:"color"`
	Title  string `json:"title"`
	Text   string `json:"text"`
	Footer string `json:"footer,omitempty"`
}

// NewSlackNotifier creates a notifier posting to the given webhook URL
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SlackColor maps a notification type onto Slack's attachment palette
func SlackColor(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "good"
	case NotifyWarning:
		return "warning"
	case NotifyError:
		return "danger"
	default:
		return "#439FE0"
	}
}

// Send posts the notification. A disabled notifier reports success so a
// pipeline verdict is never lost to missing configuration.
func (s *SlackNotifier) Send(n Notification) error {
	if s.webhookURL == "" {
		return nil
	}

	attachment := SlackAttachment{
		Color:  SlackColor(n.Type),
		Text:   n.Message,
		Footer: "Crossgate CI",
	}
	if n.RunID != "" {
		attachment.Title = "run " + n.RunID
	}

	payload, err := json.Marshal(SlackMessage{
		Text:        n.Title,
		Attachments: []SlackAttachment{attachment},
	})
	if err != nil {
		return err
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}
