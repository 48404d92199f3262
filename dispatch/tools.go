package dispatch

import (
	"fmt"
	"strings"

	"github.com/quailyquaily/landreach/internal/strutil"
	"github.com/quailyquaily/landreach/ledger"
)

const defaultEventType = "Consultation Meeting"

// Tool is one entry of the fixed dispatch table. Build turns the validated
// parameter object plus the session's current recipient list into the
// ledger detail shape and a human-readable description.
type Tool struct {
	Name        string
	Description string
	ParamHint   string
	Kind        ledger.Kind

	Build func(params map[string]any, recipients []string) (ledger.Details, string, error)
}

// Tools returns the dispatch table in prompt order. The set is fixed; the
// model can only pick, never define, a tool.
func Tools() []Tool {
	return []Tool{
		{
			Name:        "SendEmails",
			Description: "Send a personalized consultation email to every contact in this session",
			ParamHint:   `{"subject": "<email subject>"}`,
			Kind:        ledger.KindSendEmail,
			Build: func(params map[string]any, recipients []string) (ledger.Details, string, error) {
				subject, err := requireString(params, "SendEmails", "subject")
				if err != nil {
					return nil, "", err
				}
				d := ledger.SendEmailDetails{Recipients: recipients, Subject: subject, Count: len(recipients)}
				desc := fmt.Sprintf("Send %d personalized emails with subject %q", len(recipients), subject)
				return d, desc, nil
			},
		},
		{
			Name:        "ScheduleMeetings",
			Description: "Create one scheduling link per contact in this session",
			ParamHint:   `{"event_type": "<meeting name, optional>"}`,
			Kind:        ledger.KindScheduleMeeting,
			Build: func(params map[string]any, recipients []string) (ledger.Details, string, error) {
				eventType := optionalString(params, "event_type", defaultEventType)
				d := ledger.ScheduleMeetingDetails{EventType: eventType, Recipients: recipients, Count: len(recipients)}
				desc := fmt.Sprintf("Create %d scheduling links for %q", len(recipients), eventType)
				return d, desc, nil
			},
		},
		{
			Name:        "FullOutreach",
			Description: "Create scheduling links, email every contact with their link embedded, then post a summary notification",
			ParamHint:   `{"subject": "<email subject>", "event_type": "<meeting name, optional>"}`,
			Kind:        ledger.KindFullOutreach,
			Build: func(params map[string]any, recipients []string) (ledger.Details, string, error) {
				subject, err := requireString(params, "FullOutreach", "subject")
				if err != nil {
					return nil, "", err
				}
				eventType := optionalString(params, "event_type", defaultEventType)
				d := ledger.FullOutreachDetails{
					Subject:    subject,
					EventType:  eventType,
					Recipients: recipients,
					Count:      len(recipients),
				}
				desc := fmt.Sprintf("Full outreach to %d contacts: schedule %q, email %q, notify team", len(recipients), eventType, subject)
				return d, desc, nil
			},
		},
		{
			Name:        "PostNotification",
			Description: "Post a message to the team notification channel",
			ParamHint:   `{"message": "<text>", "channel": "<channel, optional>"}`,
			Kind:        ledger.KindPostNotification,
			Build: func(params map[string]any, _ []string) (ledger.Details, string, error) {
				message, err := requireString(params, "PostNotification", "message")
				if err != nil {
					return nil, "", err
				}
				channel := optionalString(params, "channel", "")
				d := ledger.PostNotificationDetails{Message: message, Channel: channel}
				return d, "Post a team notification: " + truncateForDescription(message), nil
			},
		},
		{
			Name:        "AddContact",
			Description: "Add a stakeholder contact to this session",
			ParamHint:   `{"name": "<name>", "email": "<email>", "role": "<role>", "context": "<why, optional>"}`,
			Kind:        ledger.KindAddContact,
			Build: func(params map[string]any, _ []string) (ledger.Details, string, error) {
				name, err := requireString(params, "AddContact", "name")
				if err != nil {
					return nil, "", err
				}
				email, err := requireString(params, "AddContact", "email")
				if err != nil {
					return nil, "", err
				}
				role, err := requireString(params, "AddContact", "role")
				if err != nil {
					return nil, "", err
				}
				d := ledger.AddContactDetails{
					Name:    name,
					Email:   email,
					Role:    role,
					Context: optionalString(params, "context", ""),
				}
				return d, fmt.Sprintf("Add contact %s <%s> (%s)", name, email, role), nil
			},
		},
	}
}

func lookupTool(name string) (Tool, bool) {
	for _, t := range Tools() {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

func requireString(params map[string]any, tool, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", &MissingParameterError{Tool: tool, Parameter: key}
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &MissingParameterError{Tool: tool, Parameter: key}
	}
	return s, nil
}

func optionalString(params map[string]any, key, fallback string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return fallback
}

func truncateForDescription(s string) string {
	const max = 80
	if len(s) <= max {
		return s
	}
	return strutil.TruncateUTF8(s, max) + "..."
}
