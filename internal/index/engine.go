// Package index defines the full-text index engine contract and its Bleve
// implementation. Index records are disposable projections of documents:
// they carry no identity of their own and can be deleted and rebuilt at any
// time, which is what makes retried indexing idempotent.
package index

import (
	"context"
	"time"
)

// Record is the indexable projection of a document.
type Record struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
}

// Query is a tenant-scoped search request. Text may be empty, in which case
// every record of the tenant matches. Offset is 0-based.
type Query struct {
	TenantID string
	Text     string
	Offset   int
	Size     int
}

// Hit is a single ranked match. Score is engine-provided and opaque: higher
// means more relevant, with no comparability across queries.
type Hit struct {
	ID     string
	Score  float64
	Record Record
}

// Result is the outcome of a query.
type Result struct {
	Total int64
	Hits  []Hit
}

// Engine is the contract the lifecycle and search paths need from the
// full-text index. Upsert overwrites any existing record with the same id;
// DeleteByID of an absent record is not an error.
type Engine interface {
	Upsert(ctx context.Context, rec Record) error
	DeleteByID(ctx context.Context, id string) error
	Query(ctx context.Context, q Query) (*Result, error)
	Ping(ctx context.Context) error
}

// RecordTime renders a document timestamp the way records store it.
func RecordTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
