// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.
package repository

import (
	"context"
	"errors"
	"time"

	"docintel/internal/model"
)

var (
	// ErrNotFound is returned when no document matches the id within the owner's scope.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned by Create when (owner, content hash) is already registered.
	ErrDuplicate = errors.New("document already registered")
	// ErrRegistration is returned (wrapped) when the store rejects an insert for any other reason.
	ErrRegistration = errors.New("document registration failed")
)

// DocumentRepository defines data access for documents using SQL queries only.
// Every method is scoped by owner id; no business logic lives here.
type DocumentRepository interface {
	// FindByFingerprint returns the owner's document with the given content hash, or nil when absent.
	FindByFingerprint(ctx context.Context, ownerID, contentHash string) (*model.Document, error)

	// Create inserts a new document record with all extracted fields null.
	// A (owner, content hash) conflict yields ErrDuplicate; any other rejection wraps ErrRegistration.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns the owner's document by its ID or ErrNotFound.
	FindByID(ctx context.Context, ownerID, id string) (*model.Document, error)

	// List returns a paginated list of the owner's documents and the total row count.
	List(ctx context.Context, ownerID string, pq PageQuery) (*PageResult[model.Document], error)

	// UpdateExtraction writes only the payload's fields and stamps extracted_at.
	UpdateExtraction(ctx context.Context, ownerID, id string, p *model.ExtractionPayload, at time.Time) error

	// Search runs a structured filter for the owner. Backend failures wrap query.ErrQuery.
	Search(ctx context.Context, ownerID string, spec model.QuerySpec, limit int) ([]model.Document, error)
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
