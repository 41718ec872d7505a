// Package document owns the document lifecycle: creation, retrieval,
// deletion, and the status transitions driven by the asynchronous indexing
// pipeline.
package document

import "time"

// Status is the indexing state of a document.
//
// INDEXING is assigned at creation. The background consumer moves the
// document to INDEXED or FAILED. DELETED is terminal: the row is hard
// deleted, so the state is only ever observed transiently.
type Status string

const (
	StatusIndexing Status = "INDEXING"
	StatusIndexed  Status = "INDEXED"
	StatusFailed   Status = "FAILED"
	StatusDeleted  Status = "DELETED"
)

// Document is the system of record for a stored text document. A document
// is addressable only by its (ID, TenantID) pair; the tenant id is the sole
// isolation boundary.
type Document struct {
	ID        string         `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CreateRequest is the caller-supplied payload for creating a document.
type CreateRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// TaskKind distinguishes the two operations carried on the task channel.
type TaskKind string

const (
	TaskIndex  TaskKind = "INDEX"
	TaskDelete TaskKind = "DELETE"
)

// Task is the message published to the indexing channel. It carries
// identifiers only: the consumer always re-fetches current state rather
// than trusting message content, which makes duplicate and stale deliveries
// harmless.
type Task struct {
	DocumentID string   `json:"document_id"`
	TenantID   string   `json:"tenant_id"`
	Kind       TaskKind `json:"kind"`
}
