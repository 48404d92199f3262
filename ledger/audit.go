package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// AuditEvent is one line in the ledger audit trail: an action request was
// created or changed state.
type AuditEvent struct {
	Timestamp time.Time `json:"ts"`
	Event     string    `json:"event"`
	ActionID  string    `json:"action_id"`
	Kind      Kind      `json:"kind"`
	Status    Status    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// AuditSink receives ledger audit events.
type AuditSink interface {
	Emit(ctx context.Context, e AuditEvent) error
}

// JSONLAuditSink appends audit events to a JSONL file, rotating when the
// file exceeds RotateMaxBytes.
type JSONLAuditSink struct {
	Path           string
	RotateMaxBytes int64

	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	size int64
}

func NewJSONLAuditSink(path string, rotateMaxBytes int64) (*JSONLAuditSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing jsonl path")
	}
	if rotateMaxBytes <= 0 {
		rotateMaxBytes = 100 * 1024 * 1024
	}
	s := &JSONLAuditSink{Path: path, RotateMaxBytes: rotateMaxBytes}
	if err := s.openLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONLAuditSink) Emit(ctx context.Context, e AuditEvent) error {
	_ = ctx
	if s == nil {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeededLocked(int64(len(b)) + 1); err != nil {
		return err
	}
	if s.w == nil {
		return fmt.Errorf("audit sink is not initialized")
	}
	n, err := s.w.Write(append(b, '\n'))
	if err != nil {
		return err
	}
	s.size += int64(n)
	return s.w.Flush()
}

func (s *JSONLAuditSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.f != nil {
		err := s.f.Close()
		s.f = nil
		s.w = nil
		s.size = 0
		return err
	}
	return nil
}

func (s *JSONLAuditSink) openLocked() error {
	dir := filepath.Dir(s.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if st, err := f.Stat(); err == nil {
		s.size = st.Size()
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, 64*1024)
	return nil
}

func (s *JSONLAuditSink) rotateIfNeededLocked(addBytes int64) error {
	if s.RotateMaxBytes <= 0 {
		return nil
	}
	if s.size+addBytes <= s.RotateMaxBytes {
		return nil
	}

	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.f != nil {
		_ = s.f.Close()
	}

	ts := time.Now().UTC().Format("20060102T150405Z")
	if err := os.Rename(s.Path, fmt.Sprintf("%s.%s", s.Path, ts)); err != nil {
		// If rename fails, reopen without rotation.
		return s.openLocked()
	}
	s.f = nil
	s.w = nil
	s.size = 0
	return s.openLocked()
}

// WithAudit decorates a Store so every mutation emits an audit event.
// Sink failures are not allowed to fail the mutation itself.
func WithAudit(store Store, sink AuditSink) Store {
	if sink == nil {
		return store
	}
	return &auditedStore{Store: store, sink: sink}
}

type auditedStore struct {
	Store
	sink AuditSink
}

func (a *auditedStore) emit(ctx context.Context, event string, req ActionRequest) {
	_ = a.sink.Emit(ctx, AuditEvent{
		Timestamp: time.Now().UTC(),
		Event:     event,
		ActionID:  req.ID,
		Kind:      req.Kind,
		Status:    req.Status,
		SessionID: req.SessionID,
		Reason:    req.Reason,
	})
}

func (a *auditedStore) Create(ctx context.Context, kind Kind, description, sessionID string, details Details) (ActionRequest, error) {
	req, err := a.Store.Create(ctx, kind, description, sessionID, details)
	if err == nil {
		a.emit(ctx, "created", req)
	}
	return req, err
}

func (a *auditedStore) Approve(ctx context.Context, id string) (ActionRequest, error) {
	req, err := a.Store.Approve(ctx, id)
	if err == nil {
		a.emit(ctx, "approved", req)
	}
	return req, err
}

func (a *auditedStore) Reject(ctx context.Context, id, reason string) (ActionRequest, error) {
	req, err := a.Store.Reject(ctx, id, reason)
	if err == nil {
		a.emit(ctx, "rejected", req)
	}
	return req, err
}

func (a *auditedStore) MarkExecuted(ctx context.Context, id string, success bool) (ActionRequest, error) {
	req, err := a.Store.MarkExecuted(ctx, id, success)
	if err == nil {
		a.emit(ctx, "executed", req)
	}
	return req, err
}
