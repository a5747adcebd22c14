package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docintel/internal/cache"
	"docintel/internal/extraction"
	"docintel/internal/fingerprint"
	"docintel/internal/llm"
	"docintel/internal/logger"
	"docintel/internal/metrics"
	"docintel/internal/model"
	"docintel/internal/repository"
	"docintel/internal/storage"
)

var (
	ErrIDRequired    = errors.New("id is required")
	ErrOwnerRequired = errors.New("owner is required")
	ErrNotFound      = errors.New("document not found")
	ErrEmptyContent  = errors.New("content is empty")
	ErrTooLarge      = errors.New("content exceeds upload limit")
	// ErrDuplicate describes a re-upload of content the owner already has. Ingest reports it through
	// IngestResult.Duplicate rather than as a failure.
	ErrDuplicate = errors.New("document already uploaded")
)

const (
	defaultListLimit    = 10
	defaultMaxBytes     = 20 << 20
	defaultQueryCap     = 50
	compensateTimeout   = 10 * time.Second
	defaultRetryBackoff = 500 * time.Millisecond
)

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items []model.Document `json:"data"`
	Total int              `json:"total"`
}

// IngestResult describes one ingestion. Duplicate and ExtractionErr are outcomes, not failures:
// the upload succeeded (or was already present) whenever Ingest returns a nil error.
type IngestResult struct {
	Document      *model.Document
	URL           string
	Duplicate     bool
	ExtractionErr error
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Ingest hashes the content, rejects duplicates, uploads the bytes, registers the record and
	// enriches it with extracted fields. The object is deleted again on every failure between upload
	// and registration.
	Ingest(ctx context.Context, ownerID string, data []byte, originalName, contentType string) (*IngestResult, error)

	// Enrich runs extraction for an already registered document. Used by the queue worker.
	Enrich(ctx context.Context, ownerID, documentID string) error

	// List returns the owner's documents using limit/offset and a total count.
	List(ctx context.Context, ownerID string, limit, offset int) (*DocumentListResult, error)

	// Get returns one of the owner's documents by its ID.
	Get(ctx context.Context, ownerID, id string) (*model.Document, error)

	// Search runs a structured filter over the owner's documents, capped at the configured result limit.
	Search(ctx context.Context, ownerID string, spec model.QuerySpec) ([]model.Document, error)
}

// Extractor returns the raw model reply for prepared content.
type Extractor interface {
	Invoke(ctx context.Context, c extraction.Content) (string, error)
}

// Enqueuer hands extraction to the background worker.
type Enqueuer interface {
	EnqueueExtraction(ctx context.Context, documentID, ownerID string) error
}

// Config bounds the pipeline.
type Config struct {
	MaxBytes int64
	// ExtractionAttempts caps inline model calls; only llm.ErrCall is retried.
	ExtractionAttempts int
	QueryResultCap     int
}

// Option customizes a documentService.
type Option func(*documentService)

// WithQueue switches extraction to queued mode.
func WithQueue(q Enqueuer) Option { return func(s *documentService) { s.queue = q } }

func WithCache(c *cache.Documents) Option { return func(s *documentService) { s.cache = c } }

func WithMetrics(m *metrics.Pipeline) Option { return func(s *documentService) { s.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(s *documentService) { s.logger = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *documentService) { s.now = now } }

// WithRetryBackoff sets the base delay between inline extraction attempts.
func WithRetryBackoff(d time.Duration) Option { return func(s *documentService) { s.backoff = d } }

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store     storage.Storage
	repo      repository.DocumentRepository
	extractor Extractor
	queue     Enqueuer
	cache     *cache.Documents
	metrics   *metrics.Pipeline
	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	backoff   time.Duration

	maxBytes int64
	attempts int
	queryCap int
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, extractor Extractor, cfg Config, opts ...Option) DocumentService {
	s := &documentService{
		store:     store,
		repo:      repo,
		extractor: extractor,
		logger:    logger.Discard(),
		tracer:    otel.Tracer("docintel/service"),
		now:       time.Now,
		backoff:   defaultRetryBackoff,
		maxBytes:  cfg.MaxBytes,
		attempts:  cfg.ExtractionAttempts,
		queryCap:  cfg.QueryResultCap,
	}
	if s.maxBytes <= 0 {
		s.maxBytes = defaultMaxBytes
	}
	if s.attempts <= 0 {
		s.attempts = 1
	}
	if s.queryCap <= 0 {
		s.queryCap = defaultQueryCap
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ingest")
	return s
}

func (s *documentService) Ingest(ctx context.Context, ownerID string, data []byte, originalName, contentType string) (res *IngestResult, err error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(data) == 0 {
		return nil, ErrEmptyContent
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}

	ctx, span := s.tracer.Start(ctx, "service.Ingest", trace.WithAttributes(
		attribute.String("owner_id", ownerID),
		attribute.Int("size", len(data)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.Ingest(metrics.OutcomeFailed)
		}
		span.End()
	}()

	log := s.logger.With("owner_id", ownerID)
	hash := fingerprint.Compute(data)

	existing, err := s.repo.FindByFingerprint(ctx, ownerID, hash)
	if err != nil {
		log.Error("duplicate check failed", "stage", "dedup", "error", err)
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		log.Info("duplicate upload", "stage", "dedup", "document_id", existing.ID)
		s.metrics.Ingest(metrics.OutcomeDuplicate)
		return &IngestResult{Document: existing, URL: s.store.PublicURL(existing.StoragePath), Duplicate: true}, nil
	}

	now := s.now().UTC()
	key := storage.BuildPath(ownerID, now, originalName)
	contentType = extraction.DetectType(data, contentType, originalName)

	obj, err := s.store.Put(ctx, key, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: contentType,
		Metadata: map[string]string{
			storage.MetaOriginalName: originalName,
			storage.MetaContentHash:  hash,
		},
	})
	if err != nil {
		log.Error("upload failed", "stage", "upload", "error", err)
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	// Rollback: from here on every exit without a registered record deletes the object.
	registered := false
	defer func() {
		if !registered {
			s.compensate(ctx, log, key)
		}
	}()

	doc := &model.Document{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		ContentHash:  hash,
		StoragePath:  key,
		OriginalName: originalName,
		ContentType:  contentType,
		Size:         int64(len(data)),
		CreatedAt:    now,
	}
	stored, err := s.repo.Create(ctx, doc)
	if errors.Is(err, repository.ErrDuplicate) {
		// Lost the race against a concurrent upload of the same bytes.
		log.Info("duplicate upload", "stage", "register")
		s.metrics.Ingest(metrics.OutcomeDuplicate)
		res = &IngestResult{Duplicate: true}
		if winner, ferr := s.repo.FindByFingerprint(ctx, ownerID, hash); ferr == nil && winner != nil {
			res.Document = winner
			res.URL = s.store.PublicURL(winner.StoragePath)
		}
		return res, nil
	}
	if err != nil {
		log.Error("registration failed", "stage", "register", "error", err)
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	registered = true
	s.metrics.Ingest(metrics.OutcomeSuccess)

	url := obj.URL
	if url == "" {
		url = s.store.PublicURL(key)
	}
	res = &IngestResult{Document: stored, URL: url}
	log = log.With("document_id", stored.ID)

	if s.queue != nil {
		if qerr := s.queue.EnqueueExtraction(ctx, stored.ID, ownerID); qerr != nil {
			log.Warn("enqueue extraction failed", "stage", "extract", "error", qerr)
			res.ExtractionErr = qerr
		} else {
			s.metrics.Extraction(metrics.ExtractionQueued)
		}
		return res, nil
	}

	res.ExtractionErr = s.extract(ctx, log, stored, data, s.attempts)
	return res, nil
}

// compensate deletes an uploaded object. It survives caller cancellation; failures are only logged.
func (s *documentService) compensate(ctx context.Context, log *slog.Logger, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensateTimeout)
	defer cancel()
	if err := s.store.Delete(ctx, key); err != nil {
		log.Error("rollback delete failed", "stage", "compensate", "storage_path", key, "error", err)
		return
	}
	log.Info("uploaded object removed", "stage", "compensate", "storage_path", key)
}

func (s *documentService) Enrich(ctx context.Context, ownerID, documentID string) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	if documentID == "" {
		return ErrIDRequired
	}
	log := s.logger.With("owner_id", ownerID, "document_id", documentID)

	doc, err := s.repo.FindByID(ctx, ownerID, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}

	rc, _, err := s.store.Get(ctx, doc.StoragePath)
	if err != nil {
		log.Error("download failed", "stage", "extract", "error", err)
		return fmt.Errorf("download object: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxBytes+1))
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return ErrTooLarge
	}

	// The queue owns retries for background runs.
	return s.extract(ctx, log, doc, data, 1)
}

// extract runs prepare → invoke → parse → update and applies the written fields to doc.
func (s *documentService) extract(ctx context.Context, log *slog.Logger, doc *model.Document, data []byte, attempts int) (err error) {
	ctx, span := s.tracer.Start(ctx, "service.extract", trace.WithAttributes(attribute.String("document_id", doc.ID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	content, err := extraction.Prepare(data, doc.ContentType, doc.OriginalName)
	if err != nil {
		log.Warn("extraction skipped", "stage", "extract", "error", err)
		s.metrics.Extraction(metrics.ExtractionUnsupported)
		return err
	}

	reply, err := s.invoke(ctx, log, content, attempts)
	if err != nil {
		log.Error("extraction call failed", "stage", "extract", "kind", content.Kind, "error", err)
		if errors.Is(err, llm.ErrBlocked) {
			s.metrics.Extraction(metrics.ExtractionBlocked)
		} else {
			s.metrics.Extraction(metrics.ExtractionCallFailed)
		}
		return err
	}

	payload, err := extraction.Parse(reply)
	if err != nil {
		log.Warn("extraction reply rejected", "stage", "extract", "error", err)
		s.metrics.Extraction(metrics.ExtractionParseFailed)
		return err
	}
	if payload.IsEmpty() {
		log.Info("nothing extracted", "stage", "update")
		s.metrics.Extraction(metrics.ExtractionEmpty)
		return nil
	}

	at := s.now().UTC()
	if err := s.repo.UpdateExtraction(ctx, doc.OwnerID, doc.ID, payload, at); err != nil {
		log.Error("extraction update failed", "stage", "update", "error", err)
		s.metrics.Extraction(metrics.ExtractionWriteFailed)
		return fmt.Errorf("update extraction: %w", err)
	}
	payload.ApplyTo(doc)
	doc.ExtractedAt = &at
	if s.cache != nil {
		s.cache.Invalidate(doc.OwnerID, doc.ID)
	}
	log.Info("extraction stored", "stage", "update", "fields", payload.Fields())
	s.metrics.Extraction(metrics.ExtractionUpdated)
	return nil
}

func (s *documentService) invoke(ctx context.Context, log *slog.Logger, content extraction.Content, attempts int) (string, error) {
	for attempt := 1; ; attempt++ {
		reply, err := s.extractor.Invoke(ctx, content)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, llm.ErrCall) || attempt >= attempts {
			return "", err
		}
		log.Warn("extraction call failed, retrying", "stage", "extract", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, ownerID string, limit, offset int) (*DocumentListResult, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, ownerID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a document by ID, served from the cache when possible.
func (s *documentService) Get(ctx context.Context, ownerID, id string) (*model.Document, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	if s.cache != nil {
		if doc, ok := s.cache.Get(ownerID, id); ok {
			return doc, nil
		}
	}
	doc, err := s.repo.FindByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	// Records still awaiting extraction are not cached: a queued worker in another process
	// cannot invalidate this cache when it writes the extracted fields.
	if s.cache != nil && doc.ExtractedAt != nil {
		s.cache.Set(doc)
	}
	return doc, nil
}

func (s *documentService) Search(ctx context.Context, ownerID string, spec model.QuerySpec) ([]model.Document, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	docs, err := s.repo.Search(ctx, ownerID, spec, s.queryCap)
	if err != nil {
		s.logger.Error("search failed", "stage", "query", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return docs, nil
}
