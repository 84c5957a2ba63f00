package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

func TestQueryGet(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT value FROM kv WHERE key = \\$1").
		WithArgs("beat:btc", now).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"slug":"btc"}`)))

	got, err := queryGet(context.Background(), db, "beat:btc", now)
	if err != nil {
		t.Fatalf("queryGet: %v", err)
	}
	if string(got) != `{"slug":"btc"}` {
		t.Errorf("value = %s", got)
	}
}

func TestQueryGet_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT value FROM kv").WithArgs("missing", now).WillReturnError(sql.ErrNoRows)

	if _, err := queryGet(context.Background(), db, "missing", now); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected kv.ErrNotFound, got %v", err)
	}
}

func TestQueryGet_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT value FROM kv").WithArgs("k", now).WillReturnError(fmt.Errorf("connection reset"))

	_, err := queryGet(context.Background(), db, "k", now)
	if err == nil || errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected raw db error, got %v", err)
	}
}

func TestQueryPut(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)
	exp := now.Add(time.Hour)

	mock.ExpectExec("INSERT INTO kv .+ ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs("ratelimit:file:1.2.3.4", []byte(`{"count":1}`), now, sql.NullTime{Time: exp, Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryPut(context.Background(), db, "ratelimit:file:1.2.3.4", []byte(`{"count":1}`), now, &exp); err != nil {
		t.Fatalf("queryPut: %v", err)
	}
}

func TestQueryPut_NoExpiry(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO kv").
		WithArgs("signal:s_1_abcd", []byte(`{}`), now, sql.NullTime{}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryPut(context.Background(), db, "signal:s_1_abcd", []byte(`{}`), now, nil); err != nil {
		t.Fatalf("queryPut: %v", err)
	}
}

func TestStore_PutTTL(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)
	s := newStore(db, func() time.Time { return now })

	mock.ExpectExec("INSERT INTO kv").
		WithArgs("ratelimit:claim:1.2.3.4", []byte(`{"count":2}`), now, sql.NullTime{Time: now.Add(time.Hour), Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT value FROM kv").
		WithArgs("ratelimit:claim:1.2.3.4", now).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"count":2}`)))

	ctx := context.Background()
	if err := s.Put(ctx, "ratelimit:claim:1.2.3.4", []byte(`{"count":2}`), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "ratelimit:claim:1.2.3.4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"count":2}` {
		t.Errorf("value = %s", got)
	}
}

func TestStore_PutError(t *testing.T) {
	db, mock := newMockDB(t)
	s := newStore(db, time.Now)

	mock.ExpectExec("INSERT INTO kv").WillReturnError(fmt.Errorf("disk full"))

	err := s.Put(context.Background(), "beat:btc", []byte(`{}`), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if want := "postgres: put beat:btc: disk full"; err.Error() != want {
		t.Errorf("err = %q, want %q", err, want)
	}
}
