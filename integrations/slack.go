package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SlackNotifier posts messages to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Username   string
	IconEmoji  string

	HTTP *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: strings.TrimSpace(webhookURL),
		Username:   "Workflow Bot",
		IconEmoji:  ":robot_face:",
		HTTP:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SlackNotifier) Post(ctx context.Context, message, channel string) error {
	if n == nil || n.WebhookURL == "" {
		return &NotConfiguredError{Integration: "notification"}
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return fmt.Errorf("empty message")
	}

	payload := map[string]string{
		"text":       message,
		"username":   n.Username,
		"icon_emoji": n.IconEmoji,
	}
	if channel = strings.TrimSpace(channel); channel != "" {
		payload["channel"] = channel
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	client := n.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return fmt.Errorf("slack status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
