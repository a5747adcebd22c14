package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docintel/internal/config"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type Client struct {
	client   enqueuer
	maxRetry int
}

// NewClient connects to the broker. attempts is the total number of extraction tries per document.
func NewClient(cfg config.RedisConfig, attempts int) *Client {
	return newClient(asynq.NewClient(RedisOpt(cfg)), attempts)
}

func newClient(e enqueuer, attempts int) *Client {
	retry := attempts - 1
	if retry < 0 {
		retry = 0
	}
	return &Client{client: e, maxRetry: retry}
}

// RedisOpt maps the broker settings onto asynq's connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueExtraction schedules extraction for one document. A job already pending for the
// same document is not scheduled twice.
func (c *Client) EnqueueExtraction(ctx context.Context, documentID, ownerID string) error {
	task, err := NewExtractionTask(ExtractionPayload{DocumentID: documentID, OwnerID: ownerID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task,
		asynq.TaskID("extract-"+documentID),
		asynq.MaxRetry(c.maxRetry),
		asynq.Timeout(5*time.Minute),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue %s: %w", TypeExtractionRun, err)
	}
	return nil
}
