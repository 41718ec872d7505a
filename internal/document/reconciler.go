package document

import (
	"context"
	"log/slog"
	"time"

	"github.com/docsearch-io/docsearch/pkg/config"
	"github.com/docsearch-io/docsearch/pkg/kafka"
	"github.com/docsearch-io/docsearch/pkg/logger"
	"github.com/docsearch-io/docsearch/pkg/metrics"
)

const reconcileBatchSize = 100

// BatchTaskPublisher is the slice of the Kafka producer the reconciler
// needs: a whole sweep goes out as one write.
type BatchTaskPublisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Reconciler periodically re-enqueues index tasks for documents stuck in
// INDEXING. A document gets stuck when its task was lost, most commonly
// because the publish after insert failed and was swallowed.
type Reconciler struct {
	store    Store
	indexPub BatchTaskPublisher
	cfg      config.ReconcilerConfig
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewReconciler(store Store, indexPub BatchTaskPublisher, cfg config.ReconcilerConfig, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		store:    store,
		indexPub: indexPub,
		cfg:      cfg,
		metrics:  m,
		logger:   logger.WithComponent("reconciler"),
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.cfg.Interval, "stuck_after", r.cfg.StuckAfter)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep requeues index tasks for every document that has sat in INDEXING
// longer than the configured threshold. Reprocessing an already-indexed
// document is harmless, so requeueing too eagerly costs only work.
func (r *Reconciler) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.cfg.StuckAfter)
	docs, err := r.store.FindStuckIndexing(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		r.logger.Error("stuck document scan failed", "error", err)
		return
	}
	if len(docs) == 0 {
		return
	}

	events := make([]kafka.Event, 0, len(docs))
	for _, doc := range docs {
		task := Task{DocumentID: doc.ID, TenantID: doc.TenantID, Kind: TaskIndex}
		events = append(events, kafka.Event{Key: task.TenantID, Value: task})
	}
	if err := r.indexPub.PublishBatch(ctx, events); err != nil {
		r.logger.Error("requeue batch failed", "stuck", len(docs), "error", err)
		return
	}
	if r.metrics != nil {
		r.metrics.ReconcilerRequeued.Add(float64(len(docs)))
	}
	r.logger.Info("reconciler sweep complete", "stuck", len(docs), "requeued", len(docs))
}
