// Package integrations holds the thin vendor adapters the workflow agent
// calls once an action is approved: mail send, scheduling-link creation,
// and chat notification. Each adapter is a small request/response wrapper
// with a per-call timeout and a typed not-configured error so callers can
// tell which integration is missing.
package integrations

import (
	"context"
	"errors"
	"fmt"
)

// NotConfiguredError reports that a required integration has no
// credentials or configuration. It names the integration so the failure is
// distinguishable from a generic one.
type NotConfiguredError struct {
	Integration string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("integration %q is not configured", e.Integration)
}

// IsNotConfigured reports whether err is a NotConfiguredError, returning
// the integration name when it is.
func IsNotConfigured(err error) (string, bool) {
	var nc *NotConfiguredError
	if errors.As(err, &nc) {
		return nc.Integration, true
	}
	return "", false
}

// SendReceipt is what a mail provider returns for a sent message.
type SendReceipt struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Link is a created scheduling link.
type Link struct {
	URL string `json:"url"`
}

// Mailer sends one email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) (SendReceipt, error)
}

// Scheduler creates a single-use scheduling link for one invitee.
type Scheduler interface {
	CreateLink(ctx context.Context, name, email string) (Link, error)
}

// Notifier posts one message to a team channel.
type Notifier interface {
	Post(ctx context.Context, message, channel string) error
}
