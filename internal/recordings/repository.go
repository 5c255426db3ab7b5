package recordings

import (
	"context"
	"database/sql"
	"errors"

	"wbor-twilio/internal/database"
)

var ErrNotFound = errors.New("recording not found")

// Repository is the call log. Insert is idempotent per call ID: a second
// insert for the same call reports inserted=false and changes nothing.
type Repository interface {
	Insert(ctx context.Context, r CallRecording) (inserted bool, err error)
	Get(ctx context.Context, callID string) (CallRecording, error)
	Exists(ctx context.Context, callID string) (bool, error)
	List(ctx context.Context, limit int) ([]CallRecording, error)
	Count(ctx context.Context) (int64, error)
}

// SQLRepo stores call_recordings rows in Postgres or SQLite.
type SQLRepo struct {
	db *database.DB
}

func NewSQLRepo(db *database.DB) *SQLRepo { return &SQLRepo{db: db} }

const recordingColumns = `call_id, recording_sid, recorded_at, source_url, storage_path, duration_seconds, size_bytes, created_at`

func (r *SQLRepo) Insert(ctx context.Context, rec CallRecording) (bool, error) {
	if rec.StoragePath == "" {
		return false, errors.New("storage path is required")
	}
	const q = `
INSERT INTO call_recordings (` + recordingColumns + `)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT (call_id) DO NOTHING
`
	var dur sql.NullInt64
	if rec.DurationSeconds != nil {
		dur = sql.NullInt64{Int64: int64(*rec.DurationSeconds), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(q),
		rec.CallID,
		rec.RecordingSID,
		rec.RecordedAt.UTC(),
		rec.SourceURL,
		rec.StoragePath,
		dur,
		rec.SizeBytes,
		rec.CreatedAt.UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLRepo) Get(ctx context.Context, callID string) (CallRecording, error) {
	const q = `
SELECT ` + recordingColumns + `
FROM call_recordings
WHERE call_id = ?
`
	rec, err := scanRecording(r.db.QueryRowContext(ctx, r.db.Rebind(q), callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecording{}, ErrNotFound
		}
		return CallRecording{}, err
	}
	return rec, nil
}

func (r *SQLRepo) Exists(ctx context.Context, callID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM call_recordings WHERE call_id = ?`), callID).Scan(&n)
	return n > 0, err
}

// List returns the most recent recordings first. limit <= 0 returns all rows.
func (r *SQLRepo) List(ctx context.Context, limit int) ([]CallRecording, error) {
	q := `
SELECT ` + recordingColumns + `
FROM call_recordings
ORDER BY recorded_at DESC, call_id
`
	var args []any
	if limit > 0 {
		q += "LIMIT ?\n"
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CallRecording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM call_recordings`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(s rowScanner) (CallRecording, error) {
	var (
		rec CallRecording
		sid sql.NullString
		dur sql.NullInt64
	)
	if err := s.Scan(
		&rec.CallID,
		&sid,
		&rec.RecordedAt,
		&rec.SourceURL,
		&rec.StoragePath,
		&dur,
		&rec.SizeBytes,
		&rec.CreatedAt,
	); err != nil {
		return CallRecording{}, err
	}
	rec.RecordingSID = sid.String
	if dur.Valid {
		d := int(dur.Int64)
		rec.DurationSeconds = &d
	}
	rec.RecordedAt = rec.RecordedAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

var _ Repository = (*SQLRepo)(nil)
