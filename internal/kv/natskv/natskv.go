// Package natskv implements kv.Store on a NATS JetStream key-value bucket.
//
// JetStream keys may not contain ':', which every newsdesk key does, so keys
// are stored base64url-encoded. Bucket-level TTLs apply to every key alike,
// so per-key expiry is carried in a small envelope around the value.
package natskv

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

// Store implements kv.Store on a JetStream bucket.
type Store struct {
	conn   *nats.Conn
	bucket jetstream.KeyValue
	now    func() time.Time
}

var _ kv.Store = (*Store)(nil)

type envelope struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"` // unix ms, 0 = never
}

// New connects to the NATS server at url and opens (creating if needed) the
// named bucket.
func New(ctx context.Context, url, bucket string) (*Store, error) {
	nc, err := nats.Connect(url, nats.MaxReconnects(-1), nats.ReconnectWait(time.Second))
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	b, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "newsdesk state",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}
	return &Store{conn: nc, bucket: b, now: time.Now}, nil
}

// SetClock replaces the clock used for expiry.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.bucket.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("natskv: get %s: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, fmt.Errorf("natskv: decode %s: %w", key, err)
	}
	if env.ExpiresAt != 0 && s.now().UnixMilli() >= env.ExpiresAt {
		return nil, kv.ErrNotFound
	}
	return env.Value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	env := envelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = s.now().Add(ttl).UnixMilli()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("natskv: encode %s: %w", key, err)
	}
	if _, err := s.bucket.Put(ctx, encodeKey(key), data); err != nil {
		return fmt.Errorf("natskv: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.conn.Close()
	return nil
}
