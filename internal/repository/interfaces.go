package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"maudeflow/internal/domain"
)

// Store is the narrow persistence interface the loader and auditor
// depend on. Implementations own connection and transaction mechanics;
// BulkUpsert must be atomic: either the whole batch commits or none of
// it does.
type Store interface {
	// Upsert writes one record, insert-or-replace keyed by its RowKey.
	Upsert(ctx context.Context, table string, rec domain.TransformedRecord) error

	// BulkUpsert writes a batch in a single transaction.
	BulkUpsert(ctx context.Context, table string, batch []domain.TransformedRecord) error

	// Count returns the table's row count.
	Count(ctx context.Context, table string) (int64, error)

	// CountMissingParent counts rows whose MDR report key has no match
	// in the parent table.
	CountMissingParent(ctx context.Context, table, parentTable string) (int64, error)

	// CountNonEmpty counts rows with a non-empty value for the column.
	CountNonEmpty(ctx context.Context, table, column string) (int64, error)

	// CountDuplicateKeys counts MDR report keys that appear on more
	// than one row of the table.
	CountDuplicateKeys(ctx context.Context, table string) (int64, error)

	// DateBounds returns the minimum and maximum received dates, with
	// ok=false when the table holds no dated rows.
	DateBounds(ctx context.Context, table string) (min, max time.Time, ok bool, err error)

	// DescribeSchema lists the column names present in the live store
	// for the table, for schema-drift detection.
	DescribeSchema(ctx context.Context, table string) ([]string, error)

	// FillMissingFromSibling copies the named derived column from the
	// sibling table (matched on MDR report key) into rows where it is
	// missing, returning the number of rows updated.
	FillMissingFromSibling(ctx context.Context, table, column, siblingTable string) (int64, error)
}

// IngestionLogRepository appends the immutable per-file audit trail.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, runID uuid.UUID, limit int) ([]domain.IngestionLogEntry, error)
}
