package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"maudeflow/internal/db"
	"maudeflow/internal/domain"
)

// Derived columns that exist as typed table columns alongside the
// jsonb payload. Only these may be targeted by cross-population.
var derivedColumns = map[string]struct{}{
	"received_date": {},
	"event_type":    {},
	"manufacturer":  {},
}

const upsertSQL = `INSERT INTO %s (row_key, mdr_report_key, received_date, event_type, manufacturer, fields, source_file, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, now())
ON CONFLICT (row_key) DO UPDATE SET
	mdr_report_key = EXCLUDED.mdr_report_key,
	received_date  = EXCLUDED.received_date,
	event_type     = EXCLUDED.event_type,
	manufacturer   = EXCLUDED.manufacturer,
	fields         = EXCLUDED.fields,
	source_file    = EXCLUDED.source_file,
	updated_at     = now()`

type postgresStore struct {
	conn *db.Connection
}

// NewPostgresStore wires the Store interface to a database connection.
func NewPostgresStore(conn *db.Connection) Store {
	return &postgresStore{conn: conn}
}

func upsertArgs(rec domain.TransformedRecord) ([]any, error) {
	fieldsJSON, err := json.Marshal(rec.Columns)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record fields: %w", err)
	}

	received := pgtype.Date{}
	if !rec.ReceivedDate.IsZero() {
		received = pgtype.Date{Time: rec.ReceivedDate, Valid: true}
	}
	eventType := pgtype.Text{}
	if rec.EventType != "" {
		eventType = pgtype.Text{String: rec.EventType, Valid: true}
	}
	manufacturer := pgtype.Text{}
	if rec.Manufacturer != "" {
		manufacturer = pgtype.Text{String: rec.Manufacturer, Valid: true}
	}

	return []any{rec.RowKey, rec.Key, received, eventType, manufacturer, fieldsJSON, rec.SourceFile}, nil
}

func (s *postgresStore) Upsert(ctx context.Context, table string, rec domain.TransformedRecord) error {
	args, err := upsertArgs(rec)
	if err != nil {
		return err
	}
	if _, err := s.conn.Pool.Exec(ctx, fmt.Sprintf(upsertSQL, pgx.Identifier{table}.Sanitize()), args...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", table, err)
	}
	return nil
}

func (s *postgresStore) BulkUpsert(ctx context.Context, table string, batch []domain.TransformedRecord) error {
	if len(batch) == 0 {
		return nil
	}

	sql := fmt.Sprintf(upsertSQL, pgx.Identifier{table}.Sanitize())
	queued := &pgx.Batch{}
	for _, rec := range batch {
		args, err := upsertArgs(rec)
		if err != nil {
			return err
		}
		queued.Queue(sql, args...)
	}

	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, queued)
		for range batch {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("batch upsert into %s failed: %w", table, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
		return nil
	})
}

func (s *postgresStore) Count(ctx context.Context, table string) (int64, error) {
	var count int64
	sql := fmt.Sprintf("SELECT count(*) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := s.conn.Pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func (s *postgresStore) CountMissingParent(ctx context.Context, table, parentTable string) (int64, error) {
	var count int64
	sql := fmt.Sprintf(
		`SELECT count(*) FROM %s c WHERE NOT EXISTS (
			SELECT 1 FROM %s p WHERE p.mdr_report_key = c.mdr_report_key)`,
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{parentTable}.Sanitize(),
	)
	if err := s.conn.Pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count orphans in %s: %w", table, err)
	}
	return count, nil
}

func (s *postgresStore) CountNonEmpty(ctx context.Context, table, column string) (int64, error) {
	var count int64
	sql := fmt.Sprintf(
		"SELECT count(*) FROM %s WHERE COALESCE(fields->>$1, '') <> ''",
		pgx.Identifier{table}.Sanitize(),
	)
	if err := s.conn.Pool.QueryRow(ctx, sql, column).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count non-empty %s.%s: %w", table, column, err)
	}
	return count, nil
}

func (s *postgresStore) CountDuplicateKeys(ctx context.Context, table string) (int64, error) {
	var count int64
	sql := fmt.Sprintf(
		`SELECT count(*) FROM (
			SELECT mdr_report_key FROM %s GROUP BY mdr_report_key HAVING count(*) > 1) d`,
		pgx.Identifier{table}.Sanitize(),
	)
	if err := s.conn.Pool.QueryRow(ctx, sql).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count duplicate keys in %s: %w", table, err)
	}
	return count, nil
}

func (s *postgresStore) DateBounds(ctx context.Context, table string) (time.Time, time.Time, bool, error) {
	var minDate, maxDate pgtype.Date
	sql := fmt.Sprintf("SELECT min(received_date), max(received_date) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := s.conn.Pool.QueryRow(ctx, sql).Scan(&minDate, &maxDate); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("failed to read date bounds of %s: %w", table, err)
	}
	if !minDate.Valid || !maxDate.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	return minDate.Time, maxDate.Time, true, nil
}

func (s *postgresStore) DescribeSchema(ctx context.Context, table string) ([]string, error) {
	// The FDA columns live inside the jsonb payload; sample recent rows
	// for their key set rather than walking the whole table.
	sql := fmt.Sprintf(
		`SELECT DISTINCT jsonb_object_keys(fields)
		 FROM (SELECT fields FROM %s ORDER BY updated_at DESC LIMIT 1000) sample
		 ORDER BY 1`,
		pgx.Identifier{table}.Sanitize(),
	)
	rows, err := s.conn.Pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

func (s *postgresStore) FillMissingFromSibling(ctx context.Context, table, column, siblingTable string) (int64, error) {
	if _, ok := derivedColumns[column]; !ok {
		return 0, fmt.Errorf("column %q is not a derived column", column)
	}
	col := pgx.Identifier{column}.Sanitize()
	sql := fmt.Sprintf(
		`UPDATE %s t SET %s = s.%s, updated_at = now()
		 FROM %s s
		 WHERE t.%s IS NULL
		   AND s.%s IS NOT NULL
		   AND s.mdr_report_key = t.mdr_report_key`,
		pgx.Identifier{table}.Sanitize(), col, col,
		pgx.Identifier{siblingTable}.Sanitize(), col, col,
	)
	tag, err := s.conn.Pool.Exec(ctx, sql)
	if err != nil {
		return 0, fmt.Errorf("failed to cross-populate %s.%s: %w", table, column, err)
	}
	return tag.RowsAffected(), nil
}
