// Package workflow owns the per-session outreach agent: its contact list,
// its append-only history, and the side-effecting operations (email
// batches, scheduling links, full outreach) that run only after the
// confirmation ledger has approved them.
package workflow

import (
	"errors"
	"time"
)

// ErrNoContacts is returned by batch operations invoked against an empty
// contact list.
var ErrNoContacts = errors.New("no contacts in outreach list")

// Contact is one outreach target. Context is free text describing why the
// contact is being reached; it drives email personalization.
type Contact struct {
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Role    string    `json:"role"`
	Context string    `json:"context,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// HistoryEntry records one completed side effect, append-only.
type HistoryEntry struct {
	Action    string    `json:"action"`
	Recipient string    `json:"recipient,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	URL       string    `json:"url,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	historyEmailSent      = "email_sent"
	historyLinkCreated    = "scheduling_link_created"
	historyNotified       = "notification_posted"
	historyContactAdded   = "contact_added"
	historyHistoryCleared = "history_cleared"
)

// EmailResult is one successful send inside a batch.
type EmailResult struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	MessageID string `json:"message_id,omitempty"`
}

// BatchError is one failed recipient inside a batch; it never aborts the
// rest of the batch.
type BatchError struct {
	Recipient string `json:"recipient"`
	Error     string `json:"error"`
}

// SendResult reports a send_emails batch: successes and failures side by
// side, never raised as an error.
type SendResult struct {
	SentCount int           `json:"sent_count"`
	Results   []EmailResult `json:"results"`
	Errors    []BatchError  `json:"errors"`
}

// LinkResult is one created scheduling link.
type LinkResult struct {
	Recipient string `json:"recipient"`
	Email     string `json:"email"`
	URL       string `json:"url"`
}

// ScheduleResult reports a schedule_meetings batch.
type ScheduleResult struct {
	LinksCreated int          `json:"links_created"`
	EventType    string       `json:"event_type"`
	Results      []LinkResult `json:"results"`
	Errors       []BatchError `json:"errors"`
}

// OutreachResult reports a full outreach run: links first, then emails
// embedding them, then one summary notification.
type OutreachResult struct {
	MeetingsScheduled  int            `json:"meetings_scheduled"`
	EmailsSent         int            `json:"emails_sent"`
	Links              []LinkResult   `json:"links"`
	Emails             []EmailResult  `json:"emails"`
	Errors             []BatchError   `json:"errors"`
	NotificationPosted bool           `json:"notification_posted"`
}
