package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"maudeflow/internal/domain"
)

// MemoryStore is an in-memory Store used by tests and dry runs. It
// mirrors the upsert semantics of the Postgres store: insert-or-replace
// keyed by RowKey, atomic batches.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]map[string]domain.TransformedRecord

	// FailRowKeys simulates per-record commit failures; any batch
	// containing one of these keys fails wholesale, and individual
	// upserts of the key fail, exercising the loader's fallback path.
	FailRowKeys map[string]struct{}
}

var errSimulatedFailure = errors.New("simulated store failure")

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables:      make(map[string]map[string]domain.TransformedRecord),
		FailRowKeys: make(map[string]struct{}),
	}
}

func (m *MemoryStore) table(name string) map[string]domain.TransformedRecord {
	t, ok := m.tables[name]
	if !ok {
		t = make(map[string]domain.TransformedRecord)
		m.tables[name] = t
	}
	return t
}

// Rows returns a copy of the table's rows, for assertions.
func (m *MemoryStore) Rows(table string) []domain.TransformedRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]domain.TransformedRecord, 0, len(m.tables[table]))
	for _, rec := range m.tables[table] {
		rows = append(rows, rec)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RowKey < rows[j].RowKey })
	return rows
}

func (m *MemoryStore) Upsert(_ context.Context, table string, rec domain.TransformedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, fail := m.FailRowKeys[rec.RowKey]; fail {
		return errSimulatedFailure
	}
	m.table(table)[rec.RowKey] = rec
	return nil
}

func (m *MemoryStore) BulkUpsert(_ context.Context, table string, batch []domain.TransformedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range batch {
		if _, fail := m.FailRowKeys[rec.RowKey]; fail {
			return errSimulatedFailure
		}
	}
	t := m.table(table)
	for _, rec := range batch {
		t[rec.RowKey] = rec
	}
	return nil
}

func (m *MemoryStore) Count(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.tables[table])), nil
}

func (m *MemoryStore) CountMissingParent(_ context.Context, table, parentTable string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parent := m.tables[parentTable]
	var orphans int64
	for _, rec := range m.tables[table] {
		if _, ok := parent[rec.Key]; !ok {
			orphans++
		}
	}
	return orphans, nil
}

func (m *MemoryStore) CountNonEmpty(_ context.Context, table, column string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, rec := range m.tables[table] {
		if rec.Columns[column] != "" {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) CountDuplicateKeys(_ context.Context, table string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	perKey := make(map[string]int)
	for _, rec := range m.tables[table] {
		perKey[rec.Key]++
	}
	var dups int64
	for _, n := range perKey {
		if n > 1 {
			dups++
		}
	}
	return dups, nil
}

func (m *MemoryStore) DateBounds(_ context.Context, table string) (time.Time, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var minDate, maxDate time.Time
	found := false
	for _, rec := range m.tables[table] {
		if rec.ReceivedDate.IsZero() {
			continue
		}
		if !found || rec.ReceivedDate.Before(minDate) {
			minDate = rec.ReceivedDate
		}
		if !found || rec.ReceivedDate.After(maxDate) {
			maxDate = rec.ReceivedDate
		}
		found = true
	}
	return minDate, maxDate, found, nil
}

func (m *MemoryStore) DescribeSchema(_ context.Context, table string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]struct{})
	for _, rec := range m.tables[table] {
		for col := range rec.Columns {
			seen[col] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns, nil
}

func (m *MemoryStore) FillMissingFromSibling(_ context.Context, table, column, siblingTable string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bySibKey := make(map[string]domain.TransformedRecord)
	for _, rec := range m.tables[siblingTable] {
		bySibKey[rec.Key] = rec
	}

	var updated int64
	t := m.tables[table]
	for rowKey, rec := range t {
		sib, ok := bySibKey[rec.Key]
		if !ok {
			continue
		}
		changed := false
		switch column {
		case "received_date":
			if rec.ReceivedDate.IsZero() && !sib.ReceivedDate.IsZero() {
				rec.ReceivedDate = sib.ReceivedDate
				rec.ReceivedYear = sib.ReceivedDate.Year()
				rec.ReceivedMonth = int(sib.ReceivedDate.Month())
				changed = true
			}
		case "event_type":
			if rec.EventType == "" && sib.EventType != "" {
				rec.EventType = sib.EventType
				changed = true
			}
		case "manufacturer":
			if rec.Manufacturer == "" && sib.Manufacturer != "" {
				rec.Manufacturer = sib.Manufacturer
				changed = true
			}
		}
		if changed {
			t[rowKey] = rec
			updated++
		}
	}
	return updated, nil
}

// MemoryIngestionLog is an in-memory IngestionLogRepository.
type MemoryIngestionLog struct {
	mu      sync.Mutex
	Entries []domain.IngestionLogEntry
}

// NewMemoryIngestionLog creates an empty in-memory log.
func NewMemoryIngestionLog() *MemoryIngestionLog {
	return &MemoryIngestionLog{}
}

func (m *MemoryIngestionLog) Record(_ context.Context, entry domain.IngestionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Entries = append(m.Entries, entry)
	return nil
}

func (m *MemoryIngestionLog) List(_ context.Context, runID uuid.UUID, limit int) ([]domain.IngestionLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.IngestionLogEntry
	for _, e := range m.Entries {
		if e.RunID == runID {
			out = append(out, e)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
var _ IngestionLogRepository = (*MemoryIngestionLog)(nil)
