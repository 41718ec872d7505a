package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docsearch-io/docsearch/internal/cache"
	"github.com/docsearch-io/docsearch/internal/index"
	"github.com/docsearch-io/docsearch/internal/tenant"
	apperrors "github.com/docsearch-io/docsearch/pkg/errors"
	"github.com/docsearch-io/docsearch/pkg/kafka"
	"github.com/docsearch-io/docsearch/pkg/logger"
	"github.com/docsearch-io/docsearch/pkg/metrics"
	"github.com/docsearch-io/docsearch/pkg/resilience"
	"github.com/docsearch-io/docsearch/pkg/tracing"
)

// TaskPublisher is the slice of the Kafka producer the lifecycle needs.
type TaskPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Service owns the document lifecycle: synchronous store writes paired with
// asynchronous index maintenance through the task channel.
//
// Publish failures on create and index-delete failures during delete are
// logged and swallowed: the row is the source of truth and the reconciler
// (or the queued delete task) repairs the index later. Consumer-side
// failures are the opposite: they propagate so the broker redelivers.
type Service struct {
	store     Store
	indexPub  TaskPublisher
	deletePub TaskPublisher
	engine    index.Engine
	cache     *cache.Cache
	docTTL    time.Duration
	breaker   *resilience.CircuitBreaker
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService wires a document Service. cache may be nil.
func NewService(
	store Store,
	indexPub, deletePub TaskPublisher,
	engine index.Engine,
	c *cache.Cache,
	docTTL time.Duration,
	m *metrics.Metrics,
) *Service {
	return &Service{
		store:     store,
		indexPub:  indexPub,
		deletePub: deletePub,
		engine:    engine,
		cache:     c,
		docTTL:    docTTL,
		breaker:   resilience.NewCircuitBreaker("postgresql", resilience.CircuitBreakerConfig{}),
		metrics:   m,
		logger:    logger.WithComponent("documents"),
	}
}

// Create validates the request, persists the document in INDEXING state, and
// enqueues an index task. The caller gets the document back immediately;
// indexing completes asynchronously.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Document, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "tenant is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "title must not be blank")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "content must not be blank")
	}

	doc := &Document{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
		Status:   StatusIndexing,
	}

	err := s.breaker.Execute(func() error {
		return resilience.Retry(ctx, "document-insert", resilience.RetryConfig{}, func() error {
			return s.store.Insert(ctx, doc)
		})
	})
	if err != nil {
		s.logger.Error("document insert failed", "tenant_id", tenantID, "error", err)
		return nil, apperrors.New(apperrors.ErrDependencyUnavailable, "document store is unavailable")
	}

	s.publishTask(ctx, s.indexPub, Task{DocumentID: doc.ID, TenantID: tenantID, Kind: TaskIndex})

	if s.metrics != nil {
		s.metrics.DocumentsCreated.Inc()
	}
	s.logger.Info("document created", "document_id", doc.ID, "tenant_id", tenantID)
	return doc, nil
}

// Get returns the tenant's document by id, read through the cache.
func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "tenant is required")
	}
	if id == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, "document id is required")
	}

	if s.cache == nil {
		return s.store.FindByIDAndTenant(ctx, id, tenantID)
	}

	key := cache.DocumentKey(id, tenantID)
	payload, _, err := s.cache.GetOrCompute(ctx, cache.NamespaceDocuments, key, s.docTTL, func() (string, error) {
		doc, err := s.store.FindByIDAndTenant(ctx, id, tenantID)
		if err != nil {
			return "", err
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	})
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		s.logger.Warn("discarding undecodable cached document", "key", key, "error", err)
		s.cache.Invalidate(ctx, cache.NamespaceDocuments, key)
		return s.store.FindByIDAndTenant(ctx, id, tenantID)
	}
	return &doc, nil
}

// Delete removes the tenant's document. The row is marked DELETED and
// removed synchronously; index cleanup is attempted inline and also queued,
// so a failed inline delete is repaired when the task is consumed.
func (s *Service) Delete(ctx context.Context, id string) error {
	tenantID := tenant.FromContext(ctx)
	if tenantID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, "tenant is required")
	}

	doc, err := s.store.FindByIDAndTenant(ctx, id, tenantID)
	if err != nil {
		return err
	}

	if err := s.store.UpdateStatus(ctx, doc.ID, StatusDeleted); err != nil {
		return err
	}
	if err := s.store.DeleteByIDAndTenant(ctx, doc.ID, tenantID); err != nil {
		return err
	}

	// Best-effort inline cleanup. The queued task below is the safety net.
	if err := s.engine.DeleteByID(ctx, doc.ID); err != nil {
		s.logger.Error("inline index delete failed", "document_id", doc.ID, "error", err)
	}

	s.publishTask(ctx, s.deletePub, Task{DocumentID: doc.ID, TenantID: tenantID, Kind: TaskDelete})

	if s.cache != nil {
		s.cache.Invalidate(ctx, cache.NamespaceDocuments, cache.DocumentKey(doc.ID, tenantID))
	}

	if s.metrics != nil {
		s.metrics.DocumentsDeleted.Inc()
	}
	s.logger.Info("document deleted", "document_id", doc.ID, "tenant_id", tenantID)
	return nil
}

// ProcessIndexTask handles a consumed index task. The document is re-fetched
// so the freshest content wins regardless of delivery order; a missing row
// means the document was deleted after the task was queued and the task is
// dropped. An index write failure marks the row FAILED and propagates so the
// broker can redeliver.
func (s *Service) ProcessIndexTask(ctx context.Context, task Task) error {
	doc, err := s.store.FindByID(ctx, task.DocumentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrDocumentNotFound) {
			s.logger.Info("skipping index task for missing document", "document_id", task.DocumentID)
			return nil
		}
		return err
	}
	if doc.Status == StatusDeleted {
		return nil
	}

	rec := index.Record{
		ID:        doc.ID,
		TenantID:  doc.TenantID,
		Title:     doc.Title,
		Content:   doc.Content,
		Metadata:  doc.Metadata,
		CreatedAt: index.RecordTime(doc.CreatedAt),
		UpdatedAt: index.RecordTime(doc.UpdatedAt),
	}
	upsertCtx, span := tracing.StartChildSpan(ctx, "index.upsert")
	err = s.engine.Upsert(upsertCtx, rec)
	span.End()
	if err != nil {
		if uerr := s.store.UpdateStatus(ctx, doc.ID, StatusFailed); uerr != nil {
			s.logger.Error("failed to mark document FAILED", "document_id", doc.ID, "error", uerr)
		}
		s.invalidateDoc(ctx, doc)
		return apperrors.Newf(apperrors.ErrIndexingFailure, "indexing document %s: %v", doc.ID, err)
	}

	if err := s.store.UpdateStatus(ctx, doc.ID, StatusIndexed); err != nil {
		return err
	}
	s.invalidateDoc(ctx, doc)
	s.logger.Info("document indexed", "document_id", doc.ID, "tenant_id", doc.TenantID)
	return nil
}

// ProcessDeleteTask handles a consumed delete task. Deleting an absent
// record is a no-op, which makes redelivery harmless.
func (s *Service) ProcessDeleteTask(ctx context.Context, task Task) error {
	if err := s.engine.DeleteByID(ctx, task.DocumentID); err != nil {
		return apperrors.Newf(apperrors.ErrIndexingFailure, "deleting document %s from index: %v", task.DocumentID, err)
	}
	s.logger.Info("document removed from index", "document_id", task.DocumentID)
	return nil
}

func (s *Service) publishTask(ctx context.Context, pub TaskPublisher, task Task) {
	if pub == nil {
		return
	}
	outcome := "success"
	if err := pub.Publish(ctx, kafka.Event{Key: task.TenantID, Value: task}); err != nil {
		outcome = "error"
		s.logger.Error("failed to enqueue task",
			"document_id", task.DocumentID,
			"tenant_id", task.TenantID,
			"kind", string(task.Kind),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.TasksPublishedTotal.WithLabelValues(string(task.Kind), outcome).Inc()
	}
}

func (s *Service) invalidateDoc(ctx context.Context, doc *Document) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, cache.NamespaceDocuments, cache.DocumentKey(doc.ID, doc.TenantID))
}
