// Package db holds the document stores the backend runs on: a pooled
// oxidb-server connection or an embedded SQLite database. Both keep JSON
// documents in named collections plus a flat blob namespace.
package db

import (
	"context"
	"errors"
)

// Doc is a stored document. The "_id" member carries the store-assigned ID
// as a string.
type Doc = map[string]any

var (
	// ErrNotFound is returned when no document has the requested ID.
	ErrNotFound = errors.New("db: not found")
	// ErrDuplicate is returned when a unique index rejects a write.
	ErrDuplicate = errors.New("db: duplicate key")
)

// FindOptions orders and pages a Find. Sort names a top-level member.
type FindOptions struct {
	Sort  string
	Desc  bool
	Skip  int
	Limit int
}

// Store is the persistence contract the repositories use. Filters match
// top-level members by equality; "_id" matches the document ID.
type Store interface {
	Insert(ctx context.Context, collection string, doc Doc) (string, error)
	FindOne(ctx context.Context, collection string, filter Doc) (Doc, error)
	Find(ctx context.Context, collection string, filter Doc, opts *FindOptions) ([]Doc, error)
	// Update replaces the members present in doc, leaving others untouched.
	Update(ctx context.Context, collection, id string, doc Doc) error
	Delete(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string, filter Doc) (int, error)
	EnsureIndex(ctx context.Context, collection, field string, unique bool) error

	PutBlob(ctx context.Context, key string, data []byte, contentType string) error
	GetBlob(ctx context.Context, key string) ([]byte, error)
	DeleteBlob(ctx context.Context, key string) error

	Ping(ctx context.Context) error
	Close() error
}
