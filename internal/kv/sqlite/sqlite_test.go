package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "newsdesk.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.Get(ctx, "beat:btc"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get missing: got %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, "beat:btc", []byte("v1"), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "beat:btc", []byte("v2"), 0); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err := s.Get(ctx, "beat:btc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Get = %q, want v2", got)
	}
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 2, 26, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	if err := s.Put(ctx, "ratelimit:claim:1.2.3.4", []byte("1"), time.Hour); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Get(ctx, "ratelimit:claim:1.2.3.4"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}
	now = now.Add(time.Hour)
	if _, err := s.Get(ctx, "ratelimit:claim:1.2.3.4"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("Get after expiry: got %v, want ErrNotFound", err)
	}
}

func TestStore_JSONRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	ids := []string{"s_b", "s_a"}
	if err := kv.PutJSON(ctx, s, kv.KeyFeedIndex, ids, 0); err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	var got []string
	if ok, err := kv.GetJSON(ctx, s, kv.KeyFeedIndex, &got); err != nil || !ok {
		t.Fatalf("GetJSON: ok=%v err=%v", ok, err)
	}
	if len(got) != 2 || got[0] != "s_b" {
		t.Errorf("GetJSON = %v", got)
	}
}
