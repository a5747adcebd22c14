package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"docintel/internal/llm"
)

// Enricher runs extraction for a stored document and writes the result.
type Enricher interface {
	Enrich(ctx context.Context, ownerID, documentID string) error
}

// ExtractionHandler processes extraction:run tasks. Only model call failures are retried;
// everything else is terminal for the task.
type ExtractionHandler struct {
	enricher Enricher
	logger   *slog.Logger
}

func NewExtractionHandler(e Enricher, logger *slog.Logger) *ExtractionHandler {
	return &ExtractionHandler{enricher: e, logger: logger.With(slog.String("component", "extraction_worker"))}
}

func (h *ExtractionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ExtractionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.DocumentID == "" || p.OwnerID == "" {
		return fmt.Errorf("incomplete payload: %w", asynq.SkipRetry)
	}

	log := h.logger.With(slog.String("document_id", p.DocumentID), slog.String("owner_id", p.OwnerID))
	log.Info("extraction task started")

	err := h.enricher.Enrich(ctx, p.OwnerID, p.DocumentID)
	switch {
	case err == nil:
		log.Info("extraction task finished")
		return nil
	case errors.Is(err, llm.ErrCall):
		log.Warn("extraction task will retry", slog.String("error", err.Error()))
		return err
	default:
		log.Error("extraction task failed", slog.String("error", err.Error()))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
}

// Mux routes task types to their handlers.
func (h *ExtractionHandler) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeExtractionRun, h.ProcessTask)
	return mux
}
