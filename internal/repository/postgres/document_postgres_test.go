package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docintel/internal/model"
	"docintel/internal/query"
	"docintel/internal/repository"
)

func strPtr(s string) *string { return &s }

func baseRow(id, owner, hash, vendor string, created time.Time) []driver.Value {
	var v driver.Value
	if vendor != "" {
		v = vendor
	}
	return []driver.Value{
		id, owner, hash, "documents/" + owner + "/2024/03/1-abc.pdf", "scan.pdf", "application/pdf", 100, created,
		v, nil, nil, nil, nil, nil, nil, nil, nil, nil,
	}
}

func TestDocumentPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	doc := &model.Document{
		ID:           "test-uuid",
		OwnerID:      "user-1",
		ContentHash:  "abc123",
		StoragePath:  "documents/user-1/2024/03/1-abc.pdf",
		OriginalName: "scan.pdf",
		ContentType:  "application/pdf",
		Size:         100,
		CreatedAt:    now,
	}
	args := []driver.Value{doc.ID, doc.OwnerID, doc.ContentHash, doc.StoragePath, doc.OriginalName, doc.ContentType, doc.Size, doc.CreatedAt}

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(args...).
			WillReturnRows(sqlmock.NewRows(query.Columns).AddRow(baseRow(doc.ID, doc.OwnerID, doc.ContentHash, "", now)...))

		result, err := repo.Create(ctx, doc)

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, doc.ID, result.ID)
		assert.Nil(t, result.Vendor)
		assert.Nil(t, result.TotalAmount)
		assert.Nil(t, result.LineItems)
		assert.Nil(t, result.ExtractedAt)
	})

	t.Run("conflict returns no row", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents (.+) ON CONFLICT \\(owner_id, content_hash\\) DO NOTHING").
			WithArgs(args...).
			WillReturnRows(sqlmock.NewRows(query.Columns))

		result, err := repo.Create(ctx, doc)

		assert.ErrorIs(t, err, repository.ErrDuplicate)
		assert.Nil(t, result)
	})

	t.Run("unique violation on fingerprint", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_owner_content_hash_key"})

		_, err := repo.Create(ctx, doc)

		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("other failures are registration errors", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO documents").
			WithArgs(args...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_storage_path_key"})

		_, err := repo.Create(ctx, doc)

		assert.ErrorIs(t, err, repository.ErrRegistration)
		assert.False(t, errors.Is(err, repository.ErrDuplicate))
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_FindByFingerprint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("hit", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id = \\$1 AND content_hash = \\$2").
			WithArgs("user-1", "abc123").
			WillReturnRows(sqlmock.NewRows(query.Columns).AddRow(baseRow("d1", "user-1", "abc123", "", time.Now())...))

		doc, err := repo.FindByFingerprint(ctx, "user-1", "abc123")

		assert.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "d1", doc.ID)
	})

	t.Run("miss", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id").
			WithArgs("user-2", "abc123").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByFingerprint(ctx, "user-2", "abc123")

		assert.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("db error", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE owner_id").
			WithArgs("user-1", "x").
			WillReturnError(errors.New("conn reset"))

		_, err := repo.FindByFingerprint(ctx, "user-1", "x")

		assert.ErrorContains(t, err, "conn reset")
	})
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found with extracted fields", func(t *testing.T) {
		row := baseRow("test-id", "user-1", "abc", "Acme", time.Now())
		row[9] = "invoice"
		row[10] = time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
		row[12] = "1250000.00"
		row[13] = "IDR"
		row[15] = []byte(`[{"description":"Hosting","quantity":"2","unit_price":"10","line_total":"20"}]`)

		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1 AND owner_id = \\$2").
			WithArgs("test-id", "user-1").
			WillReturnRows(sqlmock.NewRows(query.Columns).AddRow(row...))

		doc, err := repo.FindByID(ctx, "user-1", "test-id")

		assert.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "Acme", *doc.Vendor)
		assert.Equal(t, "invoice", *doc.DocumentType)
		assert.Equal(t, "IDR", *doc.Currency)
		assert.True(t, decimal.NewFromInt(1250000).Equal(*doc.TotalAmount))
		require.Len(t, doc.LineItems, 1)
		assert.Equal(t, "Hosting", doc.LineItems[0].Description)
		assert.True(t, decimal.NewFromInt(20).Equal(doc.LineItems[0].LineTotal))
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents WHERE id = \\$1 AND owner_id = \\$2").
			WithArgs("missing", "user-1").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, "user-1", "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})
}

func TestDocumentPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE owner_id = \\$1").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		mock.ExpectQuery("SELECT (.+) FROM documents (.+) ORDER BY").
			WithArgs("user-1", 10, 0).
			WillReturnRows(sqlmock.NewRows(query.Columns).AddRow(baseRow("test-id", "user-1", "abc", "", time.Now())...))

		res, err := repo.List(ctx, "user-1", repository.PageQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("count error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
			WillReturnError(sql.ErrConnDone)

		res, err := repo.List(ctx, "user-1", repository.PageQuery{Limit: 10, Offset: 0})

		assert.Error(t, err)
		assert.Nil(t, res)
	})
}

func TestDocumentPostgres_UpdateExtraction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	at := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	amount := decimal.NewFromInt(1000)

	t.Run("touches only payload columns", func(t *testing.T) {
		p := &model.ExtractionPayload{Vendor: strPtr("Acme"), TotalAmount: &amount}

		mock.ExpectExec(regexp.QuoteMeta(
			"UPDATE documents SET extracted_at = $1, total_amount = $2, vendor = $3 WHERE id = $4 AND owner_id = $5",
		)).
			WithArgs(at, amount, "Acme", "d1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.UpdateExtraction(ctx, "user-1", "d1", p, at)
		assert.NoError(t, err)
	})

	t.Run("line items encoded as json", func(t *testing.T) {
		p := &model.ExtractionPayload{LineItems: []model.LineItem{{
			Description: "Hosting",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.NewFromInt(5),
			LineTotal:   decimal.NewFromInt(5),
		}}}

		mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET extracted_at = $1, line_items = $2 WHERE")).
			WithArgs(at, `[{"description":"Hosting","quantity":"1","unit_price":"5","line_total":"5"}]`, "d1", "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateExtraction(ctx, "user-1", "d1", p, at))
	})

	t.Run("empty payload is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.UpdateExtraction(ctx, "user-1", "d1", &model.ExtractionPayload{}, at))
		assert.NoError(t, repo.UpdateExtraction(ctx, "user-1", "d1", nil, at))
	})

	t.Run("other owner's document is not touched", func(t *testing.T) {
		p := &model.ExtractionPayload{Vendor: strPtr("Acme")}

		mock.ExpectExec("UPDATE documents SET").
			WithArgs(at, "Acme", "d1", "user-2").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateExtraction(ctx, "user-2", "d1", p, at)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_Search(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewDocumentPostgres(db)
	ctx := context.Background()
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	spec := model.QuerySpec{Vendor: strPtr("acme"), StartDate: &start}

	t.Run("returns matching rows", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("WHERE (owner_id = $1 AND vendor ILIKE $2 AND document_date >= $3)")).
			WithArgs("user-1", "%acme%", start).
			WillReturnRows(sqlmock.NewRows(query.Columns).AddRow(baseRow("d1", "user-1", "h1", "Acme Corp", time.Now())...))

		docs, err := repo.Search(ctx, "user-1", spec, 50)

		assert.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "Acme Corp", *docs[0].Vendor)
	})

	t.Run("backend failure wraps ErrQuery", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents").
			WillReturnError(errors.New("statement timeout"))

		docs, err := repo.Search(ctx, "user-1", spec, 50)

		assert.ErrorIs(t, err, query.ErrQuery)
		assert.Nil(t, docs)
	})

	t.Run("owner is mandatory", func(t *testing.T) {
		_, err := repo.Search(ctx, "", spec, 50)
		assert.ErrorIs(t, err, query.ErrOwnerRequired)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
