package searchdb

import (
	"context"
	"errors"
)

// ErrUnavailable marks failures of the ranked engine itself (closed, missing
// or broken index). Callers may fall back to another retrieval path.
var ErrUnavailable = errors.New("search index unavailable")

var ErrMergeUnsupported = errors.New("index backend does not support segment merging")

type DB interface {
	Upsert(entry Entry) error
	Delete(entityType EntityType, entityID int64) error
	Get(ctx context.Context, entityType EntityType, entityID int64) (*Entry, error)
	Begin() Batch
	Search(ctx context.Context, q Query) (*Response, error)
	Available() bool
	Stats(ctx context.Context) (*Stats, error)
	Optimize(ctx context.Context) error
	Close() error
}

// Batch is an all-or-nothing set of index changes.
type Batch interface {
	DeleteAll() error
	DeleteUser(userID int64) error
	Upsert(entry Entry) error
	Count() int
	Commit() error
	Rollback()
}
