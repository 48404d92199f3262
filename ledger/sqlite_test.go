package ledger

import (
	"context"
	"path/filepath"
	"testing"
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLite_RoundTrip(t *testing.T) {
	s := newSQLiteTestStore(t)

	created, err := s.Create(context.Background(), KindSendEmail, "Send 2 consultation emails", "sess-9", SendEmailDetails{
		Recipients: []string{"chief@tribe.ca", "james@env.ca"},
		Subject:    "Consultation Request",
		Count:      2,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Kind != KindSendEmail || got.Status != StatusPending || got.SessionID != "sess-9" {
		t.Fatalf("request mismatch: %+v", got)
	}
	details, ok := got.Details.(SendEmailDetails)
	if !ok {
		t.Fatalf("details type = %T", got.Details)
	}
	if details.Subject != "Consultation Request" || len(details.Recipients) != 2 {
		t.Fatalf("details mismatch: %+v", details)
	}
}

func TestSQLite_GuardedTransitions(t *testing.T) {
	s := newSQLiteTestStore(t)
	req, err := s.Create(context.Background(), KindFullOutreach, "outreach", "", FullOutreachDetails{Subject: "s", EventType: "e"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := s.Approve(context.Background(), req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := s.Approve(context.Background(), req.ID); !IsInvalidState(err) {
		t.Fatalf("expected InvalidStateError on re-approve, got %v", err)
	}
	if _, err := s.Reject(context.Background(), req.ID, "no"); !IsInvalidState(err) {
		t.Fatalf("expected InvalidStateError rejecting approved, got %v", err)
	}
	executed, err := s.MarkExecuted(context.Background(), req.ID, true)
	if err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	if executed.Status != StatusExecuted {
		t.Fatalf("status = %q", executed.Status)
	}
}

func TestSQLite_GetUnknown(t *testing.T) {
	s := newSQLiteTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
