package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *BleveEngine {
	t.Helper()
	engine, err := NewBleveEngine("")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestUpsertAndQueryByContent(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID:       "doc-1",
		TenantID: "acme",
		Title:    "Quarterly report",
		Content:  "Revenue grew in the third quarter",
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "revenue", Size: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "doc-1", res.Hits[0].ID)
	assert.Equal(t, "Quarterly report", res.Hits[0].Record.Title)
	assert.Equal(t, "Revenue grew in the third quarter", res.Hits[0].Record.Content)
	assert.Greater(t, res.Hits[0].Score, 0.0)
}

func TestQueryMatchesTitleToo(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID:       "doc-1",
		TenantID: "acme",
		Title:    "Onboarding checklist",
		Content:  "Steps for new hires",
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "onboarding", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Total)
}

func TestTenantIsolation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID: "doc-1", TenantID: "acme", Title: "shared term", Content: "payroll data",
	}))
	require.NoError(t, engine.Upsert(ctx, Record{
		ID: "doc-2", TenantID: "globex", Title: "shared term", Content: "payroll data",
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "payroll", Size: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "doc-1", res.Hits[0].ID)
	assert.Equal(t, "acme", res.Hits[0].Record.TenantID)
}

func TestEmptyTextMatchesAllTenantRecords(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Upsert(ctx, Record{
			ID:       fmt.Sprintf("doc-%d", i),
			TenantID: "acme",
			Title:    fmt.Sprintf("title %d", i),
			Content:  fmt.Sprintf("content %d", i),
		}))
	}
	require.NoError(t, engine.Upsert(ctx, Record{
		ID: "other", TenantID: "globex", Title: "x", Content: "y",
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Total)
}

func TestUpsertReplacesExistingRecord(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID: "doc-1", TenantID: "acme", Title: "old", Content: "original text",
	}))
	require.NoError(t, engine.Upsert(ctx, Record{
		ID: "doc-1", TenantID: "acme", Title: "new", Content: "replacement text",
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "replacement", Size: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "new", res.Hits[0].Record.Title)

	res, err = engine.Query(ctx, Query{TenantID: "acme", Text: "original", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
}

func TestDeleteRemovesAndAbsentDeleteIsNoop(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID: "doc-1", TenantID: "acme", Title: "t", Content: "findable body",
	}))
	require.NoError(t, engine.DeleteByID(ctx, "doc-1"))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "findable", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)

	assert.NoError(t, engine.DeleteByID(ctx, "doc-1"))
	assert.NoError(t, engine.DeleteByID(ctx, "never-existed"))
}

func TestPagination(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, engine.Upsert(ctx, Record{
			ID:       fmt.Sprintf("doc-%d", i),
			TenantID: "acme",
			Title:    "report",
			Content:  "annual report contents",
		}))
	}

	first, err := engine.Query(ctx, Query{TenantID: "acme", Text: "report", Offset: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.Total)
	assert.Len(t, first.Hits, 2)

	last, err := engine.Query(ctx, Query{TenantID: "acme", Text: "report", Offset: 4, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), last.Total)
	assert.Len(t, last.Hits, 1)

	beyond, err := engine.Query(ctx, Query{TenantID: "acme", Text: "report", Offset: 10, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond.Hits)
}

func TestMetadataRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID:       "doc-1",
		TenantID: "acme",
		Title:    "tagged",
		Content:  "document with metadata",
		Metadata: map[string]any{"author": "pat", "version": "2"},
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "metadata", Size: 10})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Total)
	assert.Equal(t, "pat", res.Hits[0].Record.Metadata["author"])
	assert.Equal(t, "2", res.Hits[0].Record.Metadata["version"])
}

func TestMetadataValuesAreNotSearchable(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Upsert(ctx, Record{
		ID:       "doc-1",
		TenantID: "acme",
		Title:    "plain",
		Content:  "ordinary body",
		Metadata: map[string]any{"secret": "zanzibar"},
	}))

	res, err := engine.Query(ctx, Query{TenantID: "acme", Text: "zanzibar", Size: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Total)
}
