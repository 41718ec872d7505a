package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsearch-io/docsearch/internal/document"
)

func encodeTask(t *testing.T, task document.Task) []byte {
	t.Helper()
	data, err := json.Marshal(task)
	require.NoError(t, err)
	return data
}

func TestTaskHandlerDispatchesDecodedTask(t *testing.T) {
	var got document.Task
	handler := taskHandler("index", func(_ context.Context, task document.Task) error {
		got = task
		return nil
	}, nil, slog.Default())

	task := document.Task{DocumentID: "doc-1", TenantID: "acme", Kind: document.TaskIndex}
	err := handler(context.Background(), []byte("acme"), encodeTask(t, task))

	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestTaskHandlerCommitsPoisonMessages(t *testing.T) {
	calls := 0
	handler := taskHandler("index", func(context.Context, document.Task) error {
		calls++
		return nil
	}, nil, slog.Default())

	err := handler(context.Background(), []byte("acme"), []byte("{not json"))

	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestTaskHandlerPropagatesProcessingErrors(t *testing.T) {
	boom := errors.New("index write failed")
	handler := taskHandler("delete", func(context.Context, document.Task) error {
		return boom
	}, nil, slog.Default())

	task := document.Task{DocumentID: "doc-2", TenantID: "acme", Kind: document.TaskDelete}
	err := handler(context.Background(), []byte("acme"), encodeTask(t, task))

	assert.ErrorIs(t, err, boom)
}
