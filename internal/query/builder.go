// Package query turns a structured QuerySpec into an owner-scoped SELECT over documents.
package query

import (
	"errors"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"docintel/internal/model"
)

// DefaultCap bounds result size when the caller passes no usable cap.
const DefaultCap = 50

var (
	// ErrQuery is returned (wrapped) when the metadata store fails to run a search.
	ErrQuery = errors.New("document query failed")
	// ErrOwnerRequired is returned when Build is called without an owner id.
	ErrOwnerRequired = errors.New("owner id is required")
)

// Table is the metadata table searched by Build.
const Table = "documents"

// Columns is the projection shared by every document read.
var Columns = []string{
	"id",
	"owner_id",
	"content_hash",
	"storage_path",
	"original_name",
	"content_type",
	"size",
	"created_at",
	"vendor",
	"document_type",
	"document_date",
	"due_date",
	"total_amount",
	"currency",
	"description",
	"line_items",
	"discount",
	"extracted_at",
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Build returns the SELECT for spec, always restricted to ownerID and capped at limit rows.
// Nil fields in spec add no predicate.
func Build(ownerID string, spec model.QuerySpec, limit int) (sq.SelectBuilder, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return sq.SelectBuilder{}, ErrOwnerRequired
	}
	if limit <= 0 {
		limit = DefaultCap
	}

	where := sq.And{sq.Eq{"owner_id": ownerID}}

	if v := trimmed(spec.Vendor); v != "" {
		where = append(where, sq.ILike{"vendor": contains(v)})
	}
	if v := trimmed(spec.DocumentType); v != "" {
		where = append(where, sq.Eq{"document_type": strings.ToLower(v)})
	}
	if v := trimmed(spec.Currency); v != "" {
		where = append(where, sq.Eq{"currency": strings.ToUpper(v)})
	}
	if spec.StartDate != nil {
		where = append(where, sq.GtOrEq{"document_date": *spec.StartDate})
	}
	if spec.EndDate != nil {
		where = append(where, sq.LtOrEq{"document_date": *spec.EndDate})
	}
	if spec.MinAmount != nil {
		where = append(where, sq.GtOrEq{"total_amount": *spec.MinAmount})
	}
	if spec.MaxAmount != nil {
		where = append(where, sq.LtOrEq{"total_amount": *spec.MaxAmount})
	}
	if terms := searchTerms(spec.SearchTerms); len(terms) > 0 {
		or := make(sq.Or, 0, len(terms))
		for _, t := range terms {
			or = append(or, sq.ILike{"search_text": contains(t)})
		}
		where = append(where, or)
	}

	return psql.
		Select(Columns...).
		From(Table).
		Where(where).
		OrderBy("document_date DESC NULLS LAST", "created_at DESC").
		Limit(uint64(limit)), nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func searchTerms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains wraps s as a LIKE substring pattern with its wildcards escaped.
func contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
