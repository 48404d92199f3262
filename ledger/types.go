// Package ledger implements the confirmation ledger: every side-effecting
// workflow action is recorded here as a pending request and must be
// explicitly approved before a caller may execute it. Requests move
// PENDING -> APPROVED -> EXECUTED|FAILED, or PENDING -> REJECTED; nothing
// else is a legal transition.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSendEmail        Kind = "send_email"
	KindScheduleMeeting  Kind = "schedule_meeting"
	KindPostNotification Kind = "post_notification"
	KindFullOutreach     Kind = "full_outreach"
	KindAddContact       Kind = "add_contact"
	KindOther            Kind = "other"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusExecuted, StatusRejected, StatusFailed:
		return true
	}
	return false
}

// ActionRequest is a proposed side-effecting operation awaiting approval.
// Details never contains live callables; it is a closed, serializable
// union keyed on Kind.
type ActionRequest struct {
	ID          string    `json:"action_id"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	Details     Details   `json:"details"`
	Status      Status    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ResolvedAt  time.Time `json:"resolved_at,omitzero"`
}

// Summary is the pending-review view returned to callers.
type Summary struct {
	PendingCount  int             `json:"pending_count"`
	ExecutedCount int             `json:"executed_count"`
	RejectedCount int             `json:"rejected_count"`
	Pending       []ActionRequest `json:"pending"`
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("action request %q not found", e.ID)
}

// InvalidStateError reports an approve/reject/execute attempted against a
// request that is not in the required state.
type InvalidStateError struct {
	ID     string
	Status Status
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s action request %q: status is %q, not pending", e.Op, e.ID, e.Status)
}

// IsNotFound reports whether err is a ledger NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsInvalidState reports whether err is a ledger InvalidStateError.
func IsInvalidState(err error) bool {
	var is *InvalidStateError
	return errors.As(err, &is)
}

// Store is the confirmation ledger contract. Approve authorizes execution
// but performs none; MarkExecuted records the outcome afterwards.
// Implementations must make each id-keyed mutation an atomic
// check-then-set so that two racing Approve calls on one id yield exactly
// one success.
type Store interface {
	Create(ctx context.Context, kind Kind, description, sessionID string, details Details) (ActionRequest, error)
	Get(ctx context.Context, id string) (ActionRequest, error)
	IsApproved(ctx context.Context, id string) (bool, error)
	Approve(ctx context.Context, id string) (ActionRequest, error)
	Reject(ctx context.Context, id, reason string) (ActionRequest, error)
	MarkExecuted(ctx context.Context, id string, success bool) (ActionRequest, error)
	ListPending(ctx context.Context) ([]ActionRequest, error)
	ClearResolved(ctx context.Context, olderThan time.Time) error
	Summary(ctx context.Context) (Summary, error)
}

func newActionID(kind Kind) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return string(kind) + "_" + raw[:8]
}
