package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"docintel/internal/model"
	"docintel/internal/query"
	"docintel/internal/repository"
)

const (
	uniqueViolation       = "23505"
	fingerprintConstraint = "documents_owner_content_hash_key"
)

var (
	columns = strings.Join(query.Columns, ", ")
	psql    = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

// FindByFingerprint returns nil, nil when the owner has no document with that hash.
func (r *DocumentPostgres) FindByFingerprint(ctx context.Context, ownerID, contentHash string) (*model.Document, error) {
	q := `SELECT ` + columns + ` FROM documents WHERE owner_id = $1 AND content_hash = $2`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, ownerID, contentHash))
	if err != nil {
		if IsNoRowsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return d, nil
}

// Create inserts the base record. The unique (owner_id, content_hash) constraint is the
// backstop for concurrent uploads of the same bytes.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	q := `
		INSERT INTO documents (id, owner_id, content_hash, storage_path, original_name, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_id, content_hash) DO NOTHING
		RETURNING ` + columns
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.ContentHash,
		doc.StoragePath,
		doc.OriginalName,
		doc.ContentType,
		doc.Size,
		doc.CreatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		if IsNoRowsError(err) || isFingerprintConflict(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("%w: %w", repository.ErrRegistration, err)
	}
	return out, nil
}

// FindByID fetches a single document of the owner by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, ownerID, id string) (*model.Document, error) {
	q := `SELECT ` + columns + ` FROM documents WHERE id = $1 AND owner_id = $2`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id, ownerID))
	if err != nil {
		if IsNoRowsError(err) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns the owner's documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents WHERE owner_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, ownerID).Scan(&total); err != nil {
		return nil, err
	}

	qList := `SELECT ` + columns + ` FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, qList, ownerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// UpdateExtraction issues a partial UPDATE touching only the payload's columns.
// An empty payload performs no query.
func (r *DocumentPostgres) UpdateExtraction(ctx context.Context, ownerID, id string, p *model.ExtractionPayload, at time.Time) error {
	set, err := payloadColumns(p)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return nil
	}
	set["extracted_at"] = at

	q, args, err := psql.Update("documents").
		SetMap(set).
		Where(sq.Eq{"id": id, "owner_id": ownerID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update extraction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update extraction: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Search runs the filter built by query.Build.
func (r *DocumentPostgres) Search(ctx context.Context, ownerID string, spec model.QuerySpec, limit int) ([]model.Document, error) {
	b, err := query.Build(ownerID, spec, limit)
	if err != nil {
		return nil, err
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", query.ErrQuery, err)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", query.ErrQuery, err)
	}
	defer rows.Close()

	items, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", query.ErrQuery, err)
	}
	return items, nil
}

// IsNoRowsError reports whether err means the query matched nothing.
func IsNoRowsError(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isFingerprintConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == fingerprintConstraint
}

func payloadColumns(p *model.ExtractionPayload) (map[string]interface{}, error) {
	set := map[string]interface{}{}
	if p == nil {
		return set, nil
	}
	if p.Vendor != nil {
		set[model.FieldVendor] = *p.Vendor
	}
	if p.DocumentType != nil {
		set[model.FieldDocumentType] = *p.DocumentType
	}
	if p.DocumentDate != nil {
		set[model.FieldDocumentDate] = *p.DocumentDate
	}
	if p.DueDate != nil {
		set[model.FieldDueDate] = *p.DueDate
	}
	if p.TotalAmount != nil {
		set[model.FieldTotalAmount] = *p.TotalAmount
	}
	if p.Currency != nil {
		set[model.FieldCurrency] = *p.Currency
	}
	if p.Description != nil {
		set[model.FieldDescription] = *p.Description
	}
	if p.LineItems != nil {
		raw, err := json.Marshal(p.LineItems)
		if err != nil {
			return nil, fmt.Errorf("encode line items: %w", err)
		}
		set[model.FieldLineItems] = string(raw)
	}
	if p.Discount != nil {
		set[model.FieldDiscount] = *p.Discount
	}
	return set, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.Document, error) {
	var (
		d           model.Document
		vendor      sql.NullString
		docType     sql.NullString
		docDate     sql.NullTime
		dueDate     sql.NullTime
		total       decimal.NullDecimal
		currency    sql.NullString
		description sql.NullString
		lineItems   []byte
		discount    decimal.NullDecimal
		extractedAt sql.NullTime
	)
	if err := s.Scan(
		&d.ID,
		&d.OwnerID,
		&d.ContentHash,
		&d.StoragePath,
		&d.OriginalName,
		&d.ContentType,
		&d.Size,
		&d.CreatedAt,
		&vendor,
		&docType,
		&docDate,
		&dueDate,
		&total,
		&currency,
		&description,
		&lineItems,
		&discount,
		&extractedAt,
	); err != nil {
		return nil, err
	}

	d.Vendor = nullString(vendor)
	d.DocumentType = nullString(docType)
	d.DocumentDate = nullTime(docDate)
	d.DueDate = nullTime(dueDate)
	d.TotalAmount = nullDecimal(total)
	d.Currency = nullString(currency)
	d.Description = nullString(description)
	d.Discount = nullDecimal(discount)
	d.ExtractedAt = nullTime(extractedAt)
	if len(lineItems) > 0 {
		if err := json.Unmarshal(lineItems, &d.LineItems); err != nil {
			return nil, fmt.Errorf("decode line items: %w", err)
		}
	}
	return &d, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := strings.TrimRight(v.String, " ")
	return &s
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}
