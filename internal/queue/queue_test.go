package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docintel/internal/llm"
	"docintel/internal/logger"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, ownerID, documentID string) error {
	return m.Called(ctx, ownerID, documentID).Error(0)
}

func TestClient_EnqueueExtraction(t *testing.T) {
	fe := &fakeEnqueuer{}
	c := newClient(fe, 3)

	err := c.EnqueueExtraction(context.Background(), "doc-1", "user-1")

	require.NoError(t, err)
	require.Len(t, fe.tasks, 1)
	assert.Equal(t, TypeExtractionRun, fe.tasks[0].Type())

	var p ExtractionPayload
	require.NoError(t, json.Unmarshal(fe.tasks[0].Payload(), &p))
	assert.Equal(t, ExtractionPayload{DocumentID: "doc-1", OwnerID: "user-1"}, p)

	var retry, id bool
	for _, o := range fe.opts[0] {
		switch o.Type() {
		case asynq.MaxRetryOpt:
			retry = o.Value() == 2
		case asynq.TaskIDOpt:
			id = o.Value() == "extract-doc-1"
		}
	}
	assert.True(t, retry, "attempts minus one retries")
	assert.True(t, id, "task id derived from the document")
}

func TestClient_EnqueueExtraction_Errors(t *testing.T) {
	c := newClient(&fakeEnqueuer{err: asynq.ErrTaskIDConflict}, 1)
	assert.NoError(t, c.EnqueueExtraction(context.Background(), "doc-1", "user-1"), "already pending is fine")

	c = newClient(&fakeEnqueuer{err: errors.New("redis down")}, 1)
	assert.ErrorContains(t, c.EnqueueExtraction(context.Background(), "doc-1", "user-1"), "redis down")
}

func TestExtractionHandler_ProcessTask(t *testing.T) {
	task, err := NewExtractionTask(ExtractionPayload{DocumentID: "doc-1", OwnerID: "user-1"})
	require.NoError(t, err)

	t.Run("success", func(t *testing.T) {
		e := new(mockEnricher)
		e.On("Enrich", mock.Anything, "user-1", "doc-1").Return(nil).Once()

		err := NewExtractionHandler(e, logger.Discard()).ProcessTask(context.Background(), task)

		assert.NoError(t, err)
		e.AssertExpectations(t)
	})

	t.Run("model call failure is retried", func(t *testing.T) {
		e := new(mockEnricher)
		e.On("Enrich", mock.Anything, "user-1", "doc-1").Return(llm.ErrCall)

		err := NewExtractionHandler(e, logger.Discard()).ProcessTask(context.Background(), task)

		assert.ErrorIs(t, err, llm.ErrCall)
		assert.False(t, errors.Is(err, asynq.SkipRetry))
	})

	t.Run("refusal is terminal", func(t *testing.T) {
		e := new(mockEnricher)
		e.On("Enrich", mock.Anything, "user-1", "doc-1").Return(llm.ErrBlocked)

		err := NewExtractionHandler(e, logger.Discard()).ProcessTask(context.Background(), task)

		assert.ErrorIs(t, err, asynq.SkipRetry)
	})

	t.Run("bad payload", func(t *testing.T) {
		e := new(mockEnricher)
		h := NewExtractionHandler(e, logger.Discard())

		err := h.ProcessTask(context.Background(), asynq.NewTask(TypeExtractionRun, []byte("{")))
		assert.ErrorIs(t, err, asynq.SkipRetry)

		err = h.ProcessTask(context.Background(), asynq.NewTask(TypeExtractionRun, []byte(`{"document_id":"x"}`)))
		assert.ErrorIs(t, err, asynq.SkipRetry)
		e.AssertNotCalled(t, "Enrich", mock.Anything, mock.Anything, mock.Anything)
	})
}
