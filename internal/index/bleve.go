package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// bleveDoc is the shape actually fed to Bleve. Metadata is carried as an
// opaque JSON string: it is stored for retrieval but never indexed, so
// arbitrary caller-supplied keys cannot pollute the field space.
type bleveDoc struct {
	TenantID  string `json:"tenant_id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Metadata  string `json:"metadata"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// BleveEngine implements Engine on an embedded Bleve v2 index.
type BleveEngine struct {
	mu     sync.RWMutex
	index  bleve.Index
	logger *slog.Logger
}

// NewBleveEngine opens (or creates) the index at path. An empty path
// creates an in-memory index, which the tests use.
func NewBleveEngine(path string) (*BleveEngine, error) {
	idxMapping := buildIndexMapping()

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(idxMapping)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating index directory: %w", mkErr)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, idxMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening bleve index: %w", err)
	}

	return &BleveEngine{
		index:  idx,
		logger: slog.Default().With("component", "index-engine"),
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	docMapping := bleve.NewDocumentMapping()

	tenantField := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("tenant_id", tenantField)

	textField := bleve.NewTextFieldMapping()
	docMapping.AddFieldMappingsAt("title", textField)
	docMapping.AddFieldMappingsAt("content", textField)

	storedOnly := bleve.NewTextFieldMapping()
	storedOnly.Index = false
	storedOnly.IncludeInAll = false
	docMapping.AddFieldMappingsAt("metadata", storedOnly)
	docMapping.AddFieldMappingsAt("created_at", storedOnly)
	docMapping.AddFieldMappingsAt("updated_at", storedOnly)

	idxMapping := bleve.NewIndexMapping()
	idxMapping.DefaultMapping = docMapping
	return idxMapping
}

// Upsert writes the record, replacing any existing record with the same id.
func (e *BleveEngine) Upsert(ctx context.Context, rec Record) error {
	metadata := ""
	if rec.Metadata != nil {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("encoding record metadata: %w", err)
		}
		metadata = string(data)
	}

	doc := bleveDoc{
		TenantID:  rec.TenantID,
		Title:     rec.Title,
		Content:   rec.Content,
		Metadata:  metadata,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.index.Index(rec.ID, doc); err != nil {
		return fmt.Errorf("indexing record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteByID removes the record. Deleting an absent record is a no-op.
func (e *BleveEngine) DeleteByID(ctx context.Context, id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.index.Delete(id); err != nil {
		return fmt.Errorf("deleting record %s: %w", id, err)
	}
	return nil
}

// Query runs a tenant-filtered search. Non-empty text must match title or
// content; empty text matches every record of the tenant.
func (e *BleveEngine) Query(ctx context.Context, q Query) (*Result, error) {
	tenantQuery := bleve.NewTermQuery(q.TenantID)
	tenantQuery.SetField("tenant_id")

	boolQuery := bleve.NewBooleanQuery()
	boolQuery.AddMust(tenantQuery)

	if q.Text != "" {
		titleQuery := bleve.NewMatchQuery(q.Text)
		titleQuery.SetField("title")
		contentQuery := bleve.NewMatchQuery(q.Text)
		contentQuery.SetField("content")
		boolQuery.AddMust(bleve.NewDisjunctionQuery(titleQuery, contentQuery))
	}

	req := bleve.NewSearchRequestOptions(boolQuery, q.Size, q.Offset, false)
	req.Fields = []string{"tenant_id", "title", "content", "metadata", "created_at", "updated_at"}

	e.mu.RLock()
	defer e.mu.RUnlock()
	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("executing search: %w", err)
	}

	result := &Result{
		Total: int64(res.Total),
		Hits:  make([]Hit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		rec := Record{
			ID:        hit.ID,
			TenantID:  fieldString(hit.Fields, "tenant_id"),
			Title:     fieldString(hit.Fields, "title"),
			Content:   fieldString(hit.Fields, "content"),
			CreatedAt: fieldString(hit.Fields, "created_at"),
			UpdatedAt: fieldString(hit.Fields, "updated_at"),
		}
		if raw := fieldString(hit.Fields, "metadata"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &rec.Metadata); err != nil {
				e.logger.Warn("undecodable record metadata", "doc_id", hit.ID, "error", err)
			}
		}
		result.Hits = append(result.Hits, Hit{
			ID:     hit.ID,
			Score:  hit.Score,
			Record: rec,
		})
	}
	return result, nil
}

// Ping verifies the index is readable.
func (e *BleveEngine) Ping(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, err := e.index.DocCount(); err != nil {
		return fmt.Errorf("index doc count: %w", err)
	}
	return nil
}

// Close releases the underlying index.
func (e *BleveEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.index.Close()
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}
