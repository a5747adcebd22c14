package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id            UUID          PRIMARY KEY DEFAULT uuid_generate_v4(),
  owner_id      TEXT          NOT NULL,
  content_hash  CHAR(64)      NOT NULL,
  storage_path  TEXT          NOT NULL UNIQUE,
  original_name TEXT          NOT NULL DEFAULT '',
  content_type  TEXT          NOT NULL,
  size          BIGINT        NOT NULL CHECK (size >= 0),
  created_at    TIMESTAMPTZ   NOT NULL DEFAULT now(),
  vendor        TEXT,
  document_type TEXT,
  document_date DATE,
  due_date      DATE,
  total_amount  NUMERIC(18,2),
  currency      CHAR(3),
  description   TEXT,
  line_items    JSONB,
  discount      NUMERIC(18,2),
  extracted_at  TIMESTAMPTZ,
  search_text   TEXT GENERATED ALWAYS AS (
    lower(original_name || ' ' || coalesce(vendor, '') || ' ' || coalesce(description, ''))
  ) STORED,
  CONSTRAINT documents_owner_content_hash_key UNIQUE (owner_id, content_hash)
);`,
	},
	{
		Name: "create_index_documents_owner_date",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_date ON documents (owner_id, document_date DESC NULLS LAST);`,
	},
	{
		Name: "create_index_documents_owner_type",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_type ON documents (owner_id, document_type);`,
	},
	{
		Name: "create_index_documents_owner_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_created_at ON documents (owner_id, created_at DESC);`,
	},
}

// EnsureMigrated checks if the 'documents' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *slog.Logger, dbHost string) error {
	start := time.Now()
	log := logger.With(slog.String("component", "database"), slog.String("db_host", dbHost))

	log.Info("db_migration_check", slog.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			slog.String("status", "error"),
			slog.String("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			slog.String("status", "success"),
			slog.String("detail", "schema already exists, skipping migration"),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", slog.String("status", "in_progress"))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				slog.String("status", "error"),
				slog.String("migration_step", step.Name),
				slog.String("error_message", err.Error()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
				slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			slog.String("status", "success"),
			slog.String("migration_step", step.Name),
			slog.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		slog.String("status", "success"),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
