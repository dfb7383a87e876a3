package domain

import (
	"time"

	"github.com/google/uuid"
)

// Load statuses recorded per file.
const (
	LoadStatusCompleted = "completed"
	LoadStatusFailed    = "failed"
	LoadStatusSkipped   = "skipped"
)

// IngestionLogEntry is the append-only audit record written once per
// file load. Entries are never mutated after being recorded.
type IngestionLogEntry struct {
	ID         uuid.UUID `json:"id"`
	RunID      uuid.UUID `json:"run_id"`
	FileName   string    `json:"file_name"`
	Category   string    `json:"category"`
	Processed  int       `json:"processed"`
	Loaded     int       `json:"loaded"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
}
