package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore is the opt-in durable ledger. State transitions are guarded
// in the UPDATE's WHERE clause so two racing Approve calls on one id
// resolve to exactly one success even across processes.
type SQLiteStore struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	s := &SQLiteStore{dsn: dsn}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	s.db = db
	return s.migrate()
}

func (s *SQLiteStore) migrate() error {
	if s.db == nil {
		return fmt.Errorf("sqlite db is not open")
	}
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS action_requests (
  id TEXT PRIMARY KEY,
  kind TEXT NOT NULL,
  description TEXT,
  details_json TEXT,
  status TEXT NOT NULL,
  reason TEXT,
  session_id TEXT,
  created_at_unix INTEGER NOT NULL,
  resolved_at_unix INTEGER,
  seq INTEGER
);
CREATE INDEX IF NOT EXISTS idx_action_requests_status ON action_requests(status);
`)
	return err
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, kind Kind, description, sessionID string, details Details) (ActionRequest, error) {
	req := ActionRequest{
		ID:          newActionID(kind),
		Kind:        kind,
		Description: description,
		Details:     details,
		Status:      StatusPending,
		SessionID:   sessionID,
		CreatedAt:   time.Now().UTC(),
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return ActionRequest{}, fmt.Errorf("encode details: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO action_requests (id, kind, description, details_json, status, reason, session_id, created_at_unix, seq)
VALUES (?, ?, ?, ?, ?, '', ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM action_requests))
`, req.ID, string(req.Kind), req.Description, string(detailsJSON), string(req.Status), req.SessionID, req.CreatedAt.Unix())
	if err != nil {
		return ActionRequest{}, err
	}
	return req, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (ActionRequest, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, kind, description, details_json, status, reason, session_id, created_at_unix, resolved_at_unix
FROM action_requests WHERE id = ?
`, id)
	return scanRequest(row, id)
}

func (s *SQLiteStore) IsApproved(ctx context.Context, id string) (bool, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return req.Status == StatusApproved || req.Status == StatusExecuted, nil
}

func (s *SQLiteStore) Approve(ctx context.Context, id string) (ActionRequest, error) {
	return s.transition(ctx, id, "approve", StatusPending, StatusApproved, "")
}

func (s *SQLiteStore) Reject(ctx context.Context, id, reason string) (ActionRequest, error) {
	return s.transition(ctx, id, "reject", StatusPending, StatusRejected, reason)
}

func (s *SQLiteStore) MarkExecuted(ctx context.Context, id string, success bool) (ActionRequest, error) {
	to := StatusExecuted
	if !success {
		to = StatusFailed
	}
	return s.transition(ctx, id, "mark executed", StatusApproved, to, "")
}

// transition flips status from -> to only when the row is still in the
// required from state; the WHERE guard is what makes the check-then-set
// atomic.
func (s *SQLiteStore) transition(ctx context.Context, id, op string, from, to Status, reason string) (ActionRequest, error) {
	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
UPDATE action_requests SET status = ?, reason = ?, resolved_at_unix = ?
WHERE id = ? AND status = ?
`, string(to), reason, now, id, string(from))
	if err != nil {
		return ActionRequest{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ActionRequest{}, err
	}
	if n == 0 {
		req, err := s.Get(ctx, id)
		if err != nil {
			return ActionRequest{}, err
		}
		return ActionRequest{}, &InvalidStateError{ID: id, Status: req.Status, Op: op}
	}
	return s.Get(ctx, id)
}

func (s *SQLiteStore) ListPending(ctx context.Context) ([]ActionRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, kind, description, details_json, status, reason, session_id, created_at_unix, resolved_at_unix
FROM action_requests WHERE status = ? ORDER BY created_at_unix ASC, seq ASC
`, string(StatusPending))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ActionRequest, 0, 8)
	for rows.Next() {
		req, err := scanRequest(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearResolved(ctx context.Context, olderThan time.Time) error {
	_, err := s.db.ExecContext(ctx, `
DELETE FROM action_requests
WHERE status IN (?, ?, ?) AND resolved_at_unix < ?
`, string(StatusExecuted), string(StatusRejected), string(StatusFailed), olderThan.UTC().Unix())
	return err
}

func (s *SQLiteStore) Summary(ctx context.Context) (Summary, error) {
	pending, err := s.ListPending(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{PendingCount: len(pending), Pending: pending}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM action_requests GROUP BY status`)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		switch Status(status) {
		case StatusExecuted:
			sum.ExecutedCount = count
		case StatusRejected:
			sum.RejectedCount = count
		}
	}
	return sum, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner, id string) (ActionRequest, error) {
	var (
		req            ActionRequest
		kind           string
		detailsJSON    string
		status         string
		createdAtUnix  int64
		resolvedAtUnix sql.NullInt64
	)
	err := row.Scan(&req.ID, &kind, &req.Description, &detailsJSON, &status, &req.Reason, &req.SessionID, &createdAtUnix, &resolvedAtUnix)
	if err == sql.ErrNoRows {
		return ActionRequest{}, &NotFoundError{ID: id}
	}
	if err != nil {
		return ActionRequest{}, err
	}
	req.Kind = Kind(kind)
	req.Status = Status(status)
	req.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	if resolvedAtUnix.Valid {
		req.ResolvedAt = time.Unix(resolvedAtUnix.Int64, 0).UTC()
	}
	req.Details, err = DecodeDetails(req.Kind, []byte(detailsJSON))
	if err != nil {
		return ActionRequest{}, err
	}
	return req, nil
}
