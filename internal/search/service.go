// Package search serves tenant-scoped full-text queries over the index
// engine, with result caching and per-hit snippet extraction.
package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/docsearch-io/docsearch/internal/cache"
	"github.com/docsearch-io/docsearch/internal/index"
	"github.com/docsearch-io/docsearch/internal/tenant"
	apperrors "github.com/docsearch-io/docsearch/pkg/errors"
	"github.com/docsearch-io/docsearch/pkg/logger"
	"github.com/docsearch-io/docsearch/pkg/metrics"
	"github.com/docsearch-io/docsearch/pkg/resilience"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// DefaultSort is the only sort mode actually applied; other values are
	// accepted and echoed back unchanged.
	DefaultSort = "relevance"
)

// Result is a single ranked match with a content excerpt instead of the
// full body.
type Result struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Snippet  string         `json:"snippet"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Response is a page of search results. Page is 1-based.
type Response struct {
	Query   string   `json:"query"`
	Sort    string   `json:"sort,omitempty"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
	Results []Result `json:"results"`
}

// Service executes queries against the index engine, caching whole result
// pages keyed by tenant, normalized query, and pagination.
type Service struct {
	engine   index.Engine
	cache    *cache.Cache
	cacheTTL time.Duration
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService wires a search Service. cache may be nil, in which case every
// query goes straight to the engine.
func NewService(engine index.Engine, c *cache.Cache, cacheTTL time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		engine:   engine,
		cache:    c,
		cacheTTL: cacheTTL,
		breaker:  resilience.NewCircuitBreaker("index-engine", resilience.CircuitBreakerConfig{}),
		metrics:  m,
		logger:   logger.WithComponent("search"),
	}
}

// Search runs a query for the tenant bound to ctx. Page is 1-based; values
// below 1 are clamped to 1, and size falls back to the default page size.
// A whitespace-only query is an empty query and matches every tenant
// document. sort is echoed in the response; ranking is always by relevance.
func (s *Service) Search(ctx context.Context, query, sort string, page, size int) (*Response, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "tenant is required")
	}
	query = strings.TrimSpace(query)
	if sort == "" {
		sort = DefaultSort
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	start := time.Now()
	cacheStatus := "bypass"
	defer func() {
		if s.metrics != nil {
			s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		}
	}()

	if s.cache == nil {
		resp, err := s.query(ctx, tenantID, query, page, size)
		if err != nil {
			return nil, err
		}
		resp.Sort = sort
		return resp, nil
	}

	key := cache.SearchKey(tenantID, query, page, size)
	payload, fromCache, err := s.cache.GetOrCompute(ctx, cache.NamespaceSearch, key, s.cacheTTL, func() (string, error) {
		resp, err := s.query(ctx, tenantID, query, page, size)
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return "", apperrors.New(err, "failed to encode search results")
		}
		return string(raw), nil
	})
	if err != nil {
		return nil, err
	}
	if fromCache {
		cacheStatus = "hit"
	} else {
		cacheStatus = "miss"
	}

	var resp Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		// A corrupt cache entry should not fail the request. Drop it and
		// query the engine directly.
		s.logger.Warn("discarding undecodable cached results", "key", key, "error", err)
		s.cache.Invalidate(ctx, cache.NamespaceSearch, key)
		fresh, qerr := s.query(ctx, tenantID, query, page, size)
		if qerr != nil {
			return nil, qerr
		}
		fresh.Sort = sort
		return fresh, nil
	}
	// Sort is echoed, never applied, so it lives outside the cached payload.
	resp.Sort = sort
	return &resp, nil
}

func (s *Service) query(ctx context.Context, tenantID, query string, page, size int) (*Response, error) {
	var result *index.Result
	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, "index-query", resilience.RetryConfig{}, func() error {
			var qerr error
			result, qerr = s.engine.Query(ctx, index.Query{
				TenantID: tenantID,
				Text:     query,
				Offset:   (page - 1) * size,
				Size:     size,
			})
			return qerr
		})
	})
	if err != nil {
		s.logger.Error("index query failed", "tenant_id", tenantID, "error", err)
		return nil, apperrors.New(apperrors.ErrDependencyUnavailable, "search is temporarily unavailable")
	}

	results := make([]Result, 0, len(result.Hits))
	for _, hit := range result.Hits {
		results = append(results, Result{
			ID:       hit.ID,
			Title:    hit.Record.Title,
			Snippet:  Snippet(hit.Record.Content, query),
			Score:    hit.Score,
			Metadata: hit.Record.Metadata,
		})
	}
	return &Response{
		Query:   query,
		Total:   result.Total,
		Page:    page,
		Size:    size,
		Results: results,
	}, nil
}
