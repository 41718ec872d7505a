package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	apperrors "github.com/docsearch-io/docsearch/pkg/errors"
	"github.com/docsearch-io/docsearch/pkg/postgres"
)

// Store is the record-store contract the lifecycle needs. The composite
// (id, tenant) operations must be atomic: there is no separate existence
// check that could race with a concurrent delete.
type Store interface {
	Insert(ctx context.Context, doc *Document) error
	FindByIDAndTenant(ctx context.Context, id, tenantID string) (*Document, error)
	FindByID(ctx context.Context, id string) (*Document, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	DeleteByIDAndTenant(ctx context.Context, id, tenantID string) error
	FindStuckIndexing(ctx context.Context, olderThan time.Time, limit int) ([]Document, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id         UUID PRIMARY KEY,
    tenant_id  TEXT NOT NULL,
    title      TEXT NOT NULL,
    content    TEXT NOT NULL,
    metadata   JSONB,
    status     TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents (tenant_id);
CREATE INDEX IF NOT EXISTS idx_documents_status_updated ON documents (status, updated_at);
`

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *postgres.Client
}

// NewPostgresStore wraps the given client.
func NewPostgresStore(db *postgres.Client) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table and indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("creating documents schema: %w", err)
	}
	return nil
}

// Insert persists a new document. Timestamps are assigned by the database,
// not the application, and are read back into doc.
func (s *PostgresStore) Insert(ctx context.Context, doc *Document) error {
	metadata, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	err = s.db.DB.QueryRowContext(ctx,
		`INSERT INTO documents (id, tenant_id, title, content, metadata, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		doc.ID, doc.TenantID, doc.Title, doc.Content, metadata, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting document: %w", err)
	}
	return nil
}

// FindByIDAndTenant returns the document matching both id and tenant.
// A document belonging to another tenant is indistinguishable from a
// nonexistent one: both return ErrDocumentNotFound.
func (s *PostgresStore) FindByIDAndTenant(ctx context.Context, id, tenantID string) (*Document, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, tenant_id, title, content, metadata, status, created_at, updated_at
		 FROM documents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	return scanDocument(row)
}

// FindByID returns the document by id alone. Used only by the task
// consumer, where the tenant is embedded in the stored row.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Document, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT id, tenant_id, title, content, metadata, status, created_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

// UpdateStatus sets the document status and refreshes updated_at.
func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrDocumentNotFound
	}
	return nil
}

// DeleteByIDAndTenant hard-deletes the row matching both id and tenant.
func (s *PostgresStore) DeleteByIDAndTenant(ctx context.Context, id, tenantID string) error {
	res, err := s.db.DB.ExecContext(ctx,
		`DELETE FROM documents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.ErrDocumentNotFound
	}
	return nil
}

// FindStuckIndexing returns documents still in INDEXING whose last update
// is older than the given cutoff. The reconciliation sweep re-enqueues them.
func (s *PostgresStore) FindStuckIndexing(ctx context.Context, olderThan time.Time, limit int) ([]Document, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, tenant_id, title, content, metadata, status, created_at, updated_at
		 FROM documents
		 WHERE status = $1 AND updated_at < $2
		 ORDER BY updated_at ASC
		 LIMIT $3`,
		StatusIndexing, olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying stuck documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocumentRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stuck documents: %w", err)
	}
	return docs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*Document, error) {
	doc, err := scanDocumentRow(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrDocumentNotFound
	}
	return doc, err
}

func scanDocumentRow(row rowScanner) (*Document, error) {
	var doc Document
	var metadata []byte
	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.Title, &doc.Content,
		&metadata, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document row: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decoding document metadata: %w", err)
		}
	}
	return &doc, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding document metadata: %w", err)
	}
	return data, nil
}
