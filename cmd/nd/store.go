package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
	"github.com/alfredjeanlab/newsdesk/internal/kv/natskv"
	"github.com/alfredjeanlab/newsdesk/internal/kv/postgres"
	"github.com/alfredjeanlab/newsdesk/internal/kv/sqlite"
)

const defaultNATSBucket = "newsdesk"

// openStore opens the key-value backend named by a store URL:
//
//	memory://                       in-process, lost on exit
//	postgres://user:pw@host/db      PostgreSQL (migrated on open)
//	sqlite:///var/lib/newsdesk.db   single-file SQLite
//	nats://host:4222/bucket         NATS JetStream key-value bucket
func openStore(ctx context.Context, storeURL string) (kv.Store, error) {
	if storeURL == "" {
		return kv.NewMemory(), nil
	}
	scheme, rest, ok := strings.Cut(storeURL, "://")
	if !ok {
		return nil, fmt.Errorf("invalid store URL %q: missing scheme", storeURL)
	}

	switch scheme {
	case "memory":
		return kv.NewMemory(), nil
	case "postgres", "postgresql":
		return postgres.New(ctx, storeURL)
	case "sqlite":
		if rest == "" {
			return nil, fmt.Errorf("invalid store URL %q: missing path", storeURL)
		}
		return sqlite.New(rest)
	case "nats":
		natsURL, bucket, err := splitNATSStoreURL(storeURL)
		if err != nil {
			return nil, err
		}
		return natskv.New(ctx, natsURL, bucket)
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", scheme)
	}
}

// splitNATSStoreURL separates the bucket path from a nats:// store URL.
func splitNATSStoreURL(storeURL string) (string, string, error) {
	u, err := url.Parse(storeURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid store URL %q: %w", storeURL, err)
	}
	bucket := strings.Trim(u.Path, "/")
	if bucket == "" {
		bucket = defaultNATSBucket
	}
	if strings.Contains(bucket, "/") {
		return "", "", fmt.Errorf("invalid NATS bucket %q", bucket)
	}
	u.Path = ""
	u.RawPath = ""
	return u.String(), bucket, nil
}
