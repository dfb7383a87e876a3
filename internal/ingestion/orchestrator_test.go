package ingestion

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"maudeflow/internal/domain"
	"maudeflow/internal/repository"
)

// mapSource serves files from an in-memory map.
type mapSource struct {
	files map[string]string
}

func (s *mapSource) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(s.files))
	for name := range s.files {
		names = append(names, name)
	}
	return names, nil
}

func (s *mapSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	content, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("no such file %q", name)
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

// mdrFile builds a well-formed 84-column mdr file with n records. The
// badDate record, if positive, gets an unparseable DATE_RECEIVED.
func mdrFile(n, badDate int) string {
	var b strings.Builder
	b.WriteString("MDR_REPORT_KEY|" + strings.Repeat("COL|", 82) + "COL\n")
	for i := 1; i <= n; i++ {
		fields := make([]string, 84)
		fields[0] = fmt.Sprintf("%d", i)
		date := "01/15/2019"
		if i == badDate {
			date = "99/99/9999"
		}
		// DATE_RECEIVED sits at index 7 in the 84-column layout.
		fields[7] = date
		b.WriteString(strings.Join(fields, "|"))
		b.WriteByte('\n')
	}
	return b.String()
}

func newTestOrchestrator(src Source, store repository.Store, logRepo repository.IngestionLogRepository) *Orchestrator {
	return NewOrchestrator(src, store, logRepo, nil, OrchestratorConfig{
		Loader: LoaderConfig{BatchSize: 100},
	}, nil)
}

func TestRunLoadsBestEffortAroundOneBadRecord(t *testing.T) {
	src := &mapSource{files: map[string]string{"mdrfoithru2023.txt": mdrFile(1000, 500)}}
	store := repository.NewMemoryStore()

	summary, err := newTestOrchestrator(src, store, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.State != domain.RunCompleted {
		t.Fatalf("state = %s", summary.State)
	}
	if len(summary.Files) != 1 {
		t.Fatalf("files = %d", len(summary.Files))
	}

	result := summary.Files[0].Result
	if result.Loaded != 999 {
		t.Fatalf("loaded = %d, want 999", result.Loaded)
	}
	if result.Errors != 1 {
		t.Fatalf("errors = %d, want 1", result.Errors)
	}
	if len(result.ErrorSamples) != 1 || !strings.Contains(result.ErrorSamples[0], "DATE_RECEIVED") {
		t.Fatalf("samples = %v", result.ErrorSamples)
	}
	if got := len(store.Rows("mdr_events")); got != 999 {
		t.Fatalf("stored rows = %d", got)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	src := &mapSource{files: map[string]string{"mdrfoithru2023.txt": mdrFile(200, 0)}}
	store := repository.NewMemoryStore()

	for pass := 1; pass <= 2; pass++ {
		summary, err := newTestOrchestrator(src, store, nil).Run(context.Background())
		if err != nil {
			t.Fatalf("run %d: %v", pass, err)
		}
		if summary.State != domain.RunCompleted {
			t.Fatalf("run %d state = %s", pass, summary.State)
		}
	}
	if got := len(store.Rows("mdr_events")); got != 200 {
		t.Fatalf("rows after two runs = %d, want 200", got)
	}
}

func TestRunOrdersCategoriesParentFirst(t *testing.T) {
	deviceLine := make([]string, 28)
	deviceLine[0] = "1"
	deviceLine[4] = "2" // DEVICE_SEQUENCE_NO
	src := &mapSource{files: map[string]string{
		"foidevthru2023.txt": "DEVICE_HEADER" + strings.Repeat("|COL", 27) + "\n" + strings.Join(deviceLine, "|") + "\n",
		"mdrfoithru2023.txt": mdrFile(3, 0),
	}}
	store := repository.NewMemoryStore()
	logRepo := repository.NewMemoryIngestionLog()

	orch := NewOrchestrator(src, store, logRepo, nil, OrchestratorConfig{
		Loader: LoaderConfig{BatchSize: 100, ReferentialFilter: true},
	}, nil)
	summary, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(summary.Files) != 2 {
		t.Fatalf("files = %d", len(summary.Files))
	}
	if summary.Files[0].Category != domain.CategoryMDR || summary.Files[1].Category != domain.CategoryDevice {
		t.Fatalf("order = %s, %s", summary.Files[0].Category, summary.Files[1].Category)
	}
	// Device key 1 was loaded by the mdr file, so the filter admits it.
	if got := len(store.Rows("devices")); got != 1 {
		t.Fatalf("device rows = %d", got)
	}
	if len(logRepo.Entries) != 2 {
		t.Fatalf("log entries = %d", len(logRepo.Entries))
	}
	for _, entry := range logRepo.Entries {
		if entry.Status != domain.LoadStatusCompleted {
			t.Fatalf("entry %s status = %s", entry.FileName, entry.Status)
		}
		if entry.RunID.String() != summary.RunID {
			t.Fatalf("entry run id = %s, want %s", entry.RunID, summary.RunID)
		}
	}
}

func TestRunMarksFullyFilteredFileSkipped(t *testing.T) {
	// A device file with no loaded parents: the referential filter
	// removes every record, so the file is skipped, not completed.
	deviceLine := make([]string, 28)
	deviceLine[0] = "42"
	src := &mapSource{files: map[string]string{
		"foidevthru2023.txt": "DEVICE_HEADER" + strings.Repeat("|COL", 27) + "\n" + strings.Join(deviceLine, "|") + "\n",
	}}
	store := repository.NewMemoryStore()
	logRepo := repository.NewMemoryIngestionLog()

	orch := NewOrchestrator(src, store, logRepo, nil, OrchestratorConfig{
		Loader: LoaderConfig{BatchSize: 100, ReferentialFilter: true},
	}, nil)
	summary, err := orch.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(summary.Files) != 1 {
		t.Fatalf("files = %d", len(summary.Files))
	}
	file := summary.Files[0]
	if file.Status != domain.LoadStatusSkipped {
		t.Fatalf("status = %s, want %s", file.Status, domain.LoadStatusSkipped)
	}
	if file.Result.Skipped != 1 || file.Result.Loaded != 0 {
		t.Fatalf("result = %+v", file.Result)
	}
	if len(logRepo.Entries) != 1 || logRepo.Entries[0].Status != domain.LoadStatusSkipped {
		t.Fatalf("log entries = %+v", logRepo.Entries)
	}
}

func TestRunContinuesPastUnopenableFile(t *testing.T) {
	src := &failingOpenSource{
		mapSource: mapSource{files: map[string]string{
			"mdrfoithru2023.txt": mdrFile(5, 0),
			"foitext.txt":        "", // Open fails for this one
		}},
		failFor: "foitext.txt",
	}
	store := repository.NewMemoryStore()

	summary, err := newTestOrchestrator(src, store, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.State != domain.RunCompleted {
		t.Fatalf("state = %s", summary.State)
	}

	var failed, completed int
	for _, f := range summary.Files {
		switch f.Status {
		case domain.LoadStatusFailed:
			failed++
		case domain.LoadStatusCompleted:
			completed++
		}
	}
	if failed != 1 || completed != 1 {
		t.Fatalf("failed = %d, completed = %d", failed, completed)
	}
}

func TestRunRejectsUnrecognizedFiles(t *testing.T) {
	src := &mapSource{files: map[string]string{
		"mdrfoithru2023.txt": mdrFile(2, 0),
		"README.pdf":         "not a dump",
	}}
	summary, err := newTestOrchestrator(src, repository.NewMemoryStore(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Rejected) != 1 || summary.Rejected[0] != "README.pdf" {
		t.Fatalf("rejected = %v", summary.Rejected)
	}
}

func TestRunCrossPopulatesMissingDates(t *testing.T) {
	// Patient 4-column era has no DATE_RECEIVED; the matching mdr row
	// supplies it during cross-population.
	src := &mapSource{files: map[string]string{
		"mdrfoithru2023.txt": mdrFile(1, 0),
		"patientthru2023.txt": "MDR_REPORT_KEY|SEQ|TREATMENT|OUTCOME\n" +
			"1|1|X|Y\n",
	}}
	store := repository.NewMemoryStore()

	summary, err := newTestOrchestrator(src, store, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.CrossPopulated == 0 {
		t.Fatal("expected cross-populated rows")
	}
	rows := store.Rows("patients")
	if len(rows) != 1 {
		t.Fatalf("patient rows = %d", len(rows))
	}
	if rows[0].ReceivedDate.IsZero() {
		t.Fatal("patient received date not filled from mdr row")
	}
}

type failingOpenSource struct {
	mapSource
	failFor string
}

func (s *failingOpenSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if name == s.failFor {
		return nil, fmt.Errorf("transport failure for %s", name)
	}
	return s.mapSource.Open(ctx, name)
}
