// Package index maintains bounded, most-recent-first lists of IDs in the kv
// store. Every mutation is a plain read-modify-write of one key: concurrent
// writers to the same key are last-writer-wins and one update can be lost.
package index

import (
	"context"
	"slices"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

// Index caps used by the ledger, brief archive and bounty board.
const (
	FeedCap   = 200
	AgentCap  = 100
	BeatCap   = 100
	TagCap    = 200
	BriefsCap = 365

	BountyCap        = 1000
	CreatorBountyCap = 100
	BeatBountyCap    = 200
)

// Index reads and writes ID lists through a kv.Store.
type Index struct {
	store kv.Store
}

// New returns an Index over store.
func New(store kv.Store) *Index {
	return &Index{store: store}
}

// List returns the IDs under key, newest first. A missing key is an empty list.
func (x *Index) List(ctx context.Context, key string) ([]string, error) {
	var ids []string
	if _, err := kv.GetJSON(ctx, x.store, key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// Head returns the most recent ID under key, or "" if the list is empty.
func (x *Index) Head(ctx context.Context, key string) (string, error) {
	ids, err := x.List(ctx, key)
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

// Prepend puts id at the front of the list and drops the oldest entries
// beyond limit.
func (x *Index) Prepend(ctx context.Context, key, id string, limit int) ([]string, error) {
	ids, err := x.List(ctx, key)
	if err != nil {
		return nil, err
	}
	ids = bound(append([]string{id}, ids...), limit)
	return ids, x.write(ctx, key, ids)
}

// PrependUnique moves id to the front of the list, removing any earlier
// occurrence, then applies limit.
func (x *Index) PrependUnique(ctx context.Context, key, id string, limit int) ([]string, error) {
	ids, err := x.List(ctx, key)
	if err != nil {
		return nil, err
	}
	ids = slices.DeleteFunc(ids, func(s string) bool { return s == id })
	ids = bound(append([]string{id}, ids...), limit)
	return ids, x.write(ctx, key, ids)
}

// AppendUnique adds id to the end of the list if it is not already present.
// The list is unbounded.
func (x *Index) AppendUnique(ctx context.Context, key, id string) ([]string, error) {
	ids, err := x.List(ctx, key)
	if err != nil {
		return nil, err
	}
	if slices.Contains(ids, id) {
		return ids, nil
	}
	ids = append(ids, id)
	return ids, x.write(ctx, key, ids)
}

func (x *Index) write(ctx context.Context, key string, ids []string) error {
	return kv.PutJSON(ctx, x.store, key, ids, 0)
}

func bound(ids []string, limit int) []string {
	if limit > 0 && len(ids) > limit {
		return ids[:limit]
	}
	return ids
}
