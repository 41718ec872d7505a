// Package consumer runs the indexing workers: one Kafka consumer per task
// topic, each dispatching decoded tasks to the document lifecycle service.
package consumer

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/docsearch-io/docsearch/internal/document"
	"github.com/docsearch-io/docsearch/pkg/config"
	"github.com/docsearch-io/docsearch/pkg/kafka"
	"github.com/docsearch-io/docsearch/pkg/logger"
	"github.com/docsearch-io/docsearch/pkg/metrics"
	"github.com/docsearch-io/docsearch/pkg/tracing"
)

// TaskProcessor is the slice of the document service the workers need.
type TaskProcessor interface {
	ProcessIndexTask(ctx context.Context, task document.Task) error
	ProcessDeleteTask(ctx context.Context, task document.Task) error
}

// Workers owns the index and delete task consumers.
type Workers struct {
	indexConsumer  *kafka.Consumer
	deleteConsumer *kafka.Consumer
	logger         *slog.Logger
}

// New builds the consumers for both task topics.
func New(cfg config.KafkaConfig, processor TaskProcessor, m *metrics.Metrics) *Workers {
	log := logger.WithComponent("consumer")

	indexHandler := taskHandler("index", processor.ProcessIndexTask, m, log)
	deleteHandler := taskHandler("delete", processor.ProcessDeleteTask, m, log)

	return &Workers{
		indexConsumer:  kafka.NewConsumer(cfg, cfg.Topics.DocumentIndex, indexHandler),
		deleteConsumer: kafka.NewConsumer(cfg, cfg.Topics.DocumentDelete, deleteHandler),
		logger:         log,
	}
}

// Run starts both consume loops and blocks until ctx is cancelled or one of
// them fails.
func (w *Workers) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.indexConsumer.Start(ctx) })
	g.Go(func() error { return w.deleteConsumer.Start(ctx) })
	return g.Wait()
}

// taskHandler decodes a Task and hands it to process. An undecodable message
// is poison: redelivering it can never succeed, so it is logged and
// committed.
func taskHandler(
	kind string,
	process func(ctx context.Context, task document.Task) error,
	m *metrics.Metrics,
	log *slog.Logger,
) kafka.MessageHandler {
	return func(ctx context.Context, key, value []byte) error {
		task, err := kafka.DecodeJSON[document.Task](value)
		if err != nil {
			log.Error("dropping undecodable task", "kind", kind, "key", string(key), "error", err)
			if m != nil {
				m.IndexTasksTotal.WithLabelValues(kind, "invalid").Inc()
			}
			return nil
		}

		ctx, span := tracing.StartSpan(ctx, "task."+kind, uuid.NewString())
		span.SetAttr("document_id", task.DocumentID)
		span.SetAttr("tenant_id", task.TenantID)
		defer func() {
			span.End()
			span.Log()
		}()

		if err := process(ctx, task); err != nil {
			if m != nil {
				m.IndexTasksTotal.WithLabelValues(kind, "error").Inc()
			}
			return err
		}
		if m != nil {
			m.IndexTasksTotal.WithLabelValues(kind, "success").Inc()
		}
		return nil
	}
}
