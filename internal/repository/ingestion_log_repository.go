package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"maudeflow/internal/domain"
)

type postgresIngestionLog struct {
	pool *pgxpool.Pool
}

// NewPostgresIngestionLog wires the ingestion audit trail to Postgres.
func NewPostgresIngestionLog(pool *pgxpool.Pool) IngestionLogRepository {
	return &postgresIngestionLog{pool: pool}
}

func (r *postgresIngestionLog) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO ingestion_runs (
			id, run_id, file_name, category,
			records_processed, records_loaded, records_skipped, record_errors,
			started_at, finished_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entry.ID, entry.RunID, entry.FileName, entry.Category,
		entry.Processed, entry.Loaded, entry.Skipped, entry.Errors,
		entry.StartedAt, entry.FinishedAt, entry.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion log for %s: %w", entry.FileName, err)
	}
	return nil
}

func (r *postgresIngestionLog) List(ctx context.Context, runID uuid.UUID, limit int) ([]domain.IngestionLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, file_name, category,
		       records_processed, records_loaded, records_skipped, record_errors,
		       started_at, finished_at, status
		FROM ingestion_runs
		WHERE run_id = $1
		ORDER BY started_at ASC
		LIMIT $2`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion log: %w", err)
	}
	defer rows.Close()

	var entries []domain.IngestionLogEntry
	for rows.Next() {
		var (
			entry      domain.IngestionLogEntry
			startedAt  pgtype.Timestamptz
			finishedAt pgtype.Timestamptz
		)
		if err := rows.Scan(
			&entry.ID, &entry.RunID, &entry.FileName, &entry.Category,
			&entry.Processed, &entry.Loaded, &entry.Skipped, &entry.Errors,
			&startedAt, &finishedAt, &entry.Status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion log entry: %w", err)
		}
		if startedAt.Valid {
			entry.StartedAt = startedAt.Time
		}
		if finishedAt.Valid {
			entry.FinishedAt = finishedAt.Time
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion log: %w", err)
	}
	return entries, nil
}
