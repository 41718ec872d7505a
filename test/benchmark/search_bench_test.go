// Package benchmark contains Go benchmarks for the index engine and the
// search pipeline hot paths, measuring throughput and allocation behaviour.
package benchmark

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/docsearch-io/docsearch/internal/cache"
	"github.com/docsearch-io/docsearch/internal/index"
	"github.com/docsearch-io/docsearch/internal/search"
)

func benchContent(words int, marker string) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		if i == words/2 {
			b.WriteString(marker)
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "word%d ", i%50)
	}
	return b.String()
}

// BenchmarkEngineUpsert measures per-record insert throughput into the
// embedded index.
func BenchmarkEngineUpsert(b *testing.B) {
	engine, err := index.NewBleveEngine("")
	if err != nil {
		b.Fatalf("opening index: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	content := benchContent(200, "benchmark")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rec := index.Record{
			ID:       fmt.Sprintf("doc-%d", i),
			TenantID: "bench",
			Title:    "benchmark title",
			Content:  content,
		}
		if err := engine.Upsert(ctx, rec); err != nil {
			b.Fatalf("upsert: %v", err)
		}
	}
}

// BenchmarkEngineQuery measures tenant-scoped query latency over 5 000
// indexed records.
func BenchmarkEngineQuery(b *testing.B) {
	engine, err := index.NewBleveEngine("")
	if err != nil {
		b.Fatalf("opening index: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()
	for i := 0; i < 5000; i++ {
		rec := index.Record{
			ID:       fmt.Sprintf("doc-%d", i),
			TenantID: fmt.Sprintf("tenant-%d", i%10),
			Title:    "distributed search",
			Content:  benchContent(100, "findme"),
		}
		if err := engine.Upsert(ctx, rec); err != nil {
			b.Fatalf("upsert: %v", err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.Query(ctx, index.Query{
			TenantID: "tenant-3",
			Text:     "findme",
			Size:     10,
		}); err != nil {
			b.Fatalf("query: %v", err)
		}
	}
}

// BenchmarkSnippet measures excerpt extraction over a 10 000 character body.
func BenchmarkSnippet(b *testing.B) {
	content := benchContent(1500, "needle")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = search.Snippet(content, "needle")
	}
}

// BenchmarkSearchKey measures cache key derivation.
func BenchmarkSearchKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = cache.SearchKey("tenant-1", "Distributed  Search platform", 2, 25)
	}
}
