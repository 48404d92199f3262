package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quailyquaily/landreach/integrations"
	"github.com/quailyquaily/landreach/llm"
)

// Deps are the collaborators shared by every agent. A nil adapter means
// that integration is not configured.
type Deps struct {
	Mailer    integrations.Mailer
	Scheduler integrations.Scheduler
	Notifier  integrations.Notifier
	LLM       llm.Client
	LLMModel  string
	Composer  *Composer
	Logger    *slog.Logger
}

// Agent owns one session's contacts and history and performs the approved
// side effects. It is not safe for concurrent use; the owning session
// serializes access (one logical writer per session).
type Agent struct {
	deps     Deps
	location string

	contacts []Contact
	history  []HistoryEntry
}

func NewAgent(deps Deps, location string) *Agent {
	if deps.Composer == nil {
		deps.Composer = NewComposer()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Agent{deps: deps, location: location}
}

func (a *Agent) Location() string { return a.location }

// AddContact appends without dedup; replacing a contact is an explicit
// re-add.
func (a *Agent) AddContact(name, email, role, contactContext string) Contact {
	c := Contact{
		Name:    name,
		Email:   email,
		Role:    role,
		Context: contactContext,
		AddedAt: time.Now().UTC(),
	}
	a.contacts = append(a.contacts, c)
	a.appendHistory(HistoryEntry{Action: historyContactAdded, Recipient: email})
	a.deps.Logger.Info("contact added", "email", email, "role", role)
	return c
}

// Contacts returns a copy; callers never see the owned slice.
func (a *Agent) Contacts() []Contact {
	out := make([]Contact, len(a.contacts))
	copy(out, a.contacts)
	return out
}

// History returns a copy, newest-last.
func (a *Agent) History() []HistoryEntry {
	out := make([]HistoryEntry, len(a.history))
	copy(out, a.history)
	return out
}

// ClearHistory drops entries older than the cutoff. Maintenance only.
func (a *Agent) ClearHistory(olderThan time.Time) {
	kept := a.history[:0]
	for _, e := range a.history {
		if !e.Timestamp.Before(olderThan) {
			kept = append(kept, e)
		}
	}
	a.history = kept
	a.appendHistory(HistoryEntry{Action: historyHistoryCleared})
}

func (a *Agent) appendHistory(e HistoryEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	a.history = append(a.history, e)
}

// SendEmails sends one personalized email per contact. One recipient's
// failure does not stop the rest; failures are collected in the result.
// A missing mail integration aborts the whole batch with a typed error.
func (a *Agent) SendEmails(ctx context.Context, subject string) (SendResult, error) {
	return a.sendEmails(ctx, subject, nil)
}

func (a *Agent) sendEmails(ctx context.Context, subject string, links map[string]string) (SendResult, error) {
	if a.deps.Mailer == nil {
		return SendResult{}, &integrations.NotConfiguredError{Integration: "mail"}
	}
	if len(a.contacts) == 0 {
		return SendResult{}, ErrNoContacts
	}

	res := SendResult{Results: []EmailResult{}, Errors: []BatchError{}}
	for _, c := range a.contacts {
		subj, body := a.composeEmail(ctx, c, subject)
		if link, ok := links[c.Email]; ok && link != "" {
			body = body + "\n\nSchedule a time that works for you: " + link
		}

		receipt, err := a.deps.Mailer.Send(ctx, c.Email, subj, body)
		if err != nil {
			if _, notConfigured := integrations.IsNotConfigured(err); notConfigured {
				return res, err
			}
			a.deps.Logger.Warn("email send failed", "recipient", c.Email, "err", err)
			res.Errors = append(res.Errors, BatchError{Recipient: c.Email, Error: err.Error()})
			continue
		}
		res.SentCount++
		res.Results = append(res.Results, EmailResult{Recipient: c.Email, Subject: subj, MessageID: receipt.ID})
		a.appendHistory(HistoryEntry{Action: historyEmailSent, Recipient: c.Email, Subject: subj})
	}
	a.deps.Logger.Info("email batch done", "sent", res.SentCount, "failed", len(res.Errors))
	return res, nil
}

// ScheduleMeetings creates one scheduling link per contact with the same
// fan-out and partial-failure policy as SendEmails.
func (a *Agent) ScheduleMeetings(ctx context.Context, eventType string) (ScheduleResult, error) {
	if a.deps.Scheduler == nil {
		return ScheduleResult{}, &integrations.NotConfiguredError{Integration: "scheduling"}
	}
	if len(a.contacts) == 0 {
		return ScheduleResult{}, ErrNoContacts
	}
	if eventType == "" {
		eventType = "Consultation Meeting"
	}

	res := ScheduleResult{EventType: eventType, Results: []LinkResult{}, Errors: []BatchError{}}
	for _, c := range a.contacts {
		link, err := a.deps.Scheduler.CreateLink(ctx, c.Name, c.Email)
		if err != nil {
			if _, notConfigured := integrations.IsNotConfigured(err); notConfigured {
				return res, err
			}
			a.deps.Logger.Warn("scheduling link failed", "recipient", c.Email, "err", err)
			res.Errors = append(res.Errors, BatchError{Recipient: c.Email, Error: err.Error()})
			continue
		}
		res.LinksCreated++
		res.Results = append(res.Results, LinkResult{Recipient: c.Name, Email: c.Email, URL: link.URL})
		a.appendHistory(HistoryEntry{Action: historyLinkCreated, Recipient: c.Email, URL: link.URL})
	}
	a.deps.Logger.Info("scheduling batch done", "created", res.LinksCreated, "failed", len(res.Errors))
	return res, nil
}

// PostNotification posts one message to the team channel.
func (a *Agent) PostNotification(ctx context.Context, message, channel string) error {
	if a.deps.Notifier == nil {
		return &integrations.NotConfiguredError{Integration: "notification"}
	}
	if err := a.deps.Notifier.Post(ctx, message, channel); err != nil {
		return err
	}
	a.appendHistory(HistoryEntry{Action: historyNotified, Channel: channel})
	return nil
}

// FullOutreach runs the composite: links first so email bodies can embed
// them, then the email batch, then one summary notification. All three
// integrations must be configured up front; a missing one fails the whole
// operation before any side effect, naming the missing integration.
func (a *Agent) FullOutreach(ctx context.Context, subject, eventType string) (OutreachResult, error) {
	if a.deps.Scheduler == nil {
		return OutreachResult{}, &integrations.NotConfiguredError{Integration: "scheduling"}
	}
	if a.deps.Mailer == nil {
		return OutreachResult{}, &integrations.NotConfiguredError{Integration: "mail"}
	}
	if a.deps.Notifier == nil {
		return OutreachResult{}, &integrations.NotConfiguredError{Integration: "notification"}
	}
	if len(a.contacts) == 0 {
		return OutreachResult{}, ErrNoContacts
	}

	scheduled, err := a.ScheduleMeetings(ctx, eventType)
	if err != nil {
		return OutreachResult{}, err
	}
	links := make(map[string]string, len(scheduled.Results))
	for _, l := range scheduled.Results {
		links[l.Email] = l.URL
	}

	sent, err := a.sendEmails(ctx, subject, links)
	if err != nil {
		return OutreachResult{}, err
	}

	out := OutreachResult{
		MeetingsScheduled: scheduled.LinksCreated,
		EmailsSent:        sent.SentCount,
		Links:             scheduled.Results,
		Emails:            sent.Results,
		Errors:            append(append([]BatchError{}, scheduled.Errors...), sent.Errors...),
	}

	summary := fmt.Sprintf("Outreach workflow complete for %s: %d emails sent, %d scheduling links created, %d errors.",
		a.location, out.EmailsSent, out.MeetingsScheduled, len(out.Errors))
	if err := a.deps.Notifier.Post(ctx, summary, ""); err != nil {
		// The outreach itself succeeded; report the notification failure
		// without undoing anything.
		a.deps.Logger.Warn("summary notification failed", "err", err)
		out.Errors = append(out.Errors, BatchError{Recipient: "notification", Error: err.Error()})
		return out, nil
	}
	a.appendHistory(HistoryEntry{Action: historyNotified})
	out.NotificationPosted = true
	return out, nil
}
