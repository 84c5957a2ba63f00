// Package kv defines the key-value store every component persists through.
//
// The contract is deliberately small: single-key get and put with an optional
// expiry. There is no delete, no transaction and no compare-and-swap, so all
// indexing is done by callers through manual key construction.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or has expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is the persistence interface for newsdesk.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put stores value under key. A zero ttl means the key never expires.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Close releases the store's resources.
	Close() error
}

// GetJSON decodes the value under key into v. It reports false, with a nil
// error, when the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	data, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// PutJSON encodes v and stores it under key.
func PutJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.Put(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}
