package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the default ledger: everything lives in one map and is
// lost on process restart. A single mutex serializes check-then-set
// mutations so racing Approve calls on one id cannot both succeed.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[string]*ActionRequest
	seq      map[string]int
	nextSeq  int
	executed int
	rejected int
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*ActionRequest),
		seq:      make(map[string]int),
		now:      time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, kind Kind, description, sessionID string, details Details) (ActionRequest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	req := &ActionRequest{
		ID:          newActionID(kind),
		Kind:        kind,
		Description: description,
		Details:     details,
		Status:      StatusPending,
		SessionID:   sessionID,
		CreatedAt:   s.now().UTC(),
	}
	s.requests[req.ID] = req
	s.seq[req.ID] = s.nextSeq
	s.nextSeq++
	return *req, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (ActionRequest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return ActionRequest{}, &NotFoundError{ID: id}
	}
	return *req, nil
}

func (s *MemoryStore) IsApproved(ctx context.Context, id string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return false, &NotFoundError{ID: id}
	}
	return req.Status == StatusApproved || req.Status == StatusExecuted, nil
}

func (s *MemoryStore) Approve(ctx context.Context, id string) (ActionRequest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return ActionRequest{}, &NotFoundError{ID: id}
	}
	if req.Status != StatusPending {
		return ActionRequest{}, &InvalidStateError{ID: id, Status: req.Status, Op: "approve"}
	}
	req.Status = StatusApproved
	req.ResolvedAt = s.now().UTC()
	return *req, nil
}

func (s *MemoryStore) Reject(ctx context.Context, id, reason string) (ActionRequest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return ActionRequest{}, &NotFoundError{ID: id}
	}
	if req.Status != StatusPending {
		return ActionRequest{}, &InvalidStateError{ID: id, Status: req.Status, Op: "reject"}
	}
	req.Status = StatusRejected
	req.Reason = reason
	req.ResolvedAt = s.now().UTC()
	s.rejected++
	return *req, nil
}

func (s *MemoryStore) MarkExecuted(ctx context.Context, id string, success bool) (ActionRequest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return ActionRequest{}, &NotFoundError{ID: id}
	}
	if req.Status != StatusApproved {
		return ActionRequest{}, &InvalidStateError{ID: id, Status: req.Status, Op: "mark executed"}
	}
	if success {
		req.Status = StatusExecuted
		s.executed++
	} else {
		req.Status = StatusFailed
	}
	req.ResolvedAt = s.now().UTC()
	return *req, nil
}

func (s *MemoryStore) ListPending(ctx context.Context) ([]ActionRequest, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listPendingLocked(), nil
}

func (s *MemoryStore) listPendingLocked() []ActionRequest {
	out := make([]ActionRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if req.Status == StatusPending {
			out = append(out, *req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	return out
}

func (s *MemoryStore) ClearResolved(ctx context.Context, olderThan time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.requests {
		if req.Status.Terminal() && req.ResolvedAt.Before(olderThan) {
			delete(s.requests, id)
			delete(s.seq, id)
		}
	}
	return nil
}

func (s *MemoryStore) Summary(ctx context.Context) (Summary, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.listPendingLocked()
	return Summary{
		PendingCount:  len(pending),
		ExecutedCount: s.executed,
		RejectedCount: s.rejected,
		Pending:       pending,
	}, nil
}
