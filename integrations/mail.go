package integrations

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const gmailSendURL = "https://gmail.googleapis.com/gmail/v1/users/me/messages/send"

// GmailMailer sends mail through the Gmail REST API using a pre-obtained
// OAuth bearer token. Token acquisition and refresh live outside this
// process; an expired token surfaces as a plain send error.
type GmailMailer struct {
	Token    string
	From     string
	Endpoint string // overridable for tests

	HTTP *http.Client
}

func NewGmailMailer(token, from string) *GmailMailer {
	return &GmailMailer{
		Token:    strings.TrimSpace(token),
		From:     strings.TrimSpace(from),
		Endpoint: gmailSendURL,
		HTTP:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *GmailMailer) Send(ctx context.Context, to, subject, body string) (SendReceipt, error) {
	if m == nil || m.Token == "" {
		return SendReceipt{}, &NotConfiguredError{Integration: "mail"}
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return SendReceipt{}, fmt.Errorf("missing recipient")
	}

	raw := buildRFC822(m.From, to, subject, body)
	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString([]byte(raw)),
	})
	if err != nil {
		return SendReceipt{}, err
	}

	endpoint := m.Endpoint
	if endpoint == "" {
		endpoint = gmailSendURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return SendReceipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.Token)

	client := m.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return SendReceipt{}, fmt.Errorf("gmail send: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendReceipt{}, fmt.Errorf("gmail send status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(data, &out)
	return SendReceipt{ID: out.ID, Status: "sent"}, nil
}

func buildRFC822(from, to, subject, body string) string {
	var b strings.Builder
	if from != "" {
		b.WriteString("From: " + from + "\r\n")
	}
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(subject) + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// Header values must not carry CR/LF from user-provided subjects.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
