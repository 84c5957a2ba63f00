package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

// executor is satisfied by *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryGet returns the value for key unless it is missing or expired at now.
// Expired rows are left in place and overwritten by the next put.
func queryGet(ctx context.Context, db executor, key string, now time.Time) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		key, now,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func queryPut(ctx context.Context, db executor, key string, value []byte, now time.Time, expiresAt *time.Time) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at`,
		key, value, now, nullTimePtr(expiresAt),
	)
	return err
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
