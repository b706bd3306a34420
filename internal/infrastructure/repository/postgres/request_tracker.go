package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/frmf-pipeline/internal/core/domain"
)

const schemaLockID int64 = 2026101901

// RequestTracker records the processing status of each submission.
type RequestTracker struct {
	db  *sql.DB
	now func() time.Time
}

func NewRequestTracker(db *sql.DB) *RequestTracker {
	return &RequestTracker{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *RequestTracker) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockID); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS feature_requests (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	raw_key TEXT NOT NULL,
	enriched_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	ai_category TEXT NOT NULL DEFAULT '',
	ai_effort TEXT NOT NULL DEFAULT '',
	is_duplicate BOOLEAN NOT NULL DEFAULT FALSE,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feature_requests_status ON feature_requests(status);
CREATE INDEX IF NOT EXISTS idx_feature_requests_created_at ON feature_requests(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Create inserts a submitted request. Re-creating an existing id is a no-op.
func (r *RequestTracker) Create(ctx context.Context, req *domain.TrackedRequest) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feature_requests (id, title, raw_key, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, req.ID, req.Title, req.RawKey, string(req.Status), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert feature request: %w", err)
	}
	return nil
}

func (r *RequestTracker) MarkProcessing(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE feature_requests
SET status = $2, error_message = '', updated_at = $3
WHERE id = $1
`, id, string(domain.RequestProcessing), r.now())
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return ensureRowsAffected(result, "mark processing", id)
}

func (r *RequestTracker) MarkEnriched(ctx context.Context, id, enrichedKey string, rec domain.EnrichedRecord) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE feature_requests
SET status = $2, enriched_key = $3, ai_category = $4, ai_effort = $5, is_duplicate = $6, error_message = '', updated_at = $7
WHERE id = $1
`, id, string(domain.RequestEnriched), enrichedKey, rec.AICategory, rec.AIEffort, rec.IsDuplicate, r.now())
	if err != nil {
		return fmt.Errorf("mark enriched: %w", err)
	}
	return ensureRowsAffected(result, "mark enriched", id)
}

func (r *RequestTracker) MarkFailed(ctx context.Context, id string, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE feature_requests
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(domain.RequestFailed), errMessage, r.now())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return ensureRowsAffected(result, "mark failed", id)
}

func (r *RequestTracker) GetByID(ctx context.Context, id string) (*domain.TrackedRequest, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, raw_key, enriched_key, status, ai_category, ai_effort, is_duplicate, error_message, created_at, updated_at
FROM feature_requests
WHERE id = $1
`, id)

	var req domain.TrackedRequest
	var status string
	err := row.Scan(
		&req.ID, &req.Title, &req.RawKey, &req.EnrichedKey, &status, &req.AICategory, &req.AIEffort,
		&req.IsDuplicate, &req.Error, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get feature request", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan feature request: %w", err)
	}
	req.Status = domain.RequestStatus(status)
	return &req, nil
}

func ensureRowsAffected(result sql.Result, operation, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}
