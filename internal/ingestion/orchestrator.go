package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maudeflow/internal/domain"
	"maudeflow/internal/repository"
	"maudeflow/internal/schema"
)

// Source lists and opens candidate release files. Implementations may
// be a local directory of downloaded dumps or a remote fetcher.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Auditor inspects the populated store after a load. The orchestrator
// treats its findings as diagnostics only.
type Auditor interface {
	Audit(ctx context.Context) ([]domain.ValidationIssue, error)
}

// OrchestratorConfig bundles the run-level knobs.
type OrchestratorConfig struct {
	Loader              LoaderConfig
	RejectUnknownSchema bool

	// WatchdogInterval is how often progress counters are logged while
	// a file is being processed. Zero disables the watchdog.
	WatchdogInterval time.Duration

	// ChannelDepth bounds the parse-to-load record channel.
	ChannelDepth int
}

// FileReport is the per-file slice of a run summary.
type FileReport struct {
	Filename   string
	Category   domain.FileCategory
	Counters   Counters
	Result     FileResult
	Status     string
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunSummary is what a completed (or failed) run hands back to callers.
type RunSummary struct {
	RunID          string
	State          domain.RunState
	StartedAt      time.Time
	FinishedAt     time.Time
	Files          []FileReport
	Rejected       []string
	CrossPopulated int64
	Issues         []domain.ValidationIssue
}

// Totals aggregates the per-file counts.
func (s *RunSummary) Totals() (processed, loaded, skipped, errs int) {
	for _, f := range s.Files {
		processed += f.Result.Processed
		loaded += f.Result.Loaded
		skipped += f.Result.Skipped
		errs += f.Result.Errors
	}
	return
}

// Cross-population targets: derived columns filled from a sibling table
// when a record era never carried the source field (early patient and
// text files have no DATE_RECEIVED of their own).
var crossFills = []struct {
	table, column, sibling string
}{
	{"mdr_events", "received_date", "devices"},
	{"mdr_events", "manufacturer", "devices"},
	{"patients", "received_date", "mdr_events"},
	{"event_texts", "received_date", "mdr_events"},
}

// Orchestrator sequences one ingestion run end to end: discovery, file
// selection, the parse-transform-load pipeline per file in deterministic
// order, cross-population, and the final audit.
type Orchestrator struct {
	source  Source
	store   repository.Store
	logRepo repository.IngestionLogRepository
	auditor Auditor
	cfg     OrchestratorConfig
	log     *zap.Logger

	state domain.RunState
}

// NewOrchestrator wires a run pipeline. auditor may be nil to skip the
// audit phase; logRepo may be nil to skip the persistent audit trail.
func NewOrchestrator(source Source, store repository.Store, logRepo repository.IngestionLogRepository, auditor Auditor, cfg OrchestratorConfig, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.ChannelDepth <= 0 {
		cfg.ChannelDepth = 1024
	}
	return &Orchestrator{
		source:  source,
		store:   store,
		logRepo: logRepo,
		auditor: auditor,
		cfg:     cfg,
		log:     log,
		state:   domain.RunIdle,
	}
}

// State returns the orchestrator's current phase.
func (o *Orchestrator) State() domain.RunState {
	return o.state
}

// Run executes one full ingestion run. A mid-file failure marks that
// file failed and continues; only an unusable source or a cancelled
// context fails the run. Re-running after a failure is safe because all
// writes are idempotent upserts.
func (o *Orchestrator) Run(ctx context.Context) (*RunSummary, error) {
	rc := domain.NewRunContext()
	summary := &RunSummary{
		RunID:     rc.ID.String(),
		StartedAt: rc.StartedAt,
	}
	fail := func(err error) (*RunSummary, error) {
		o.state = domain.RunFailed
		summary.State = domain.RunFailed
		summary.FinishedAt = time.Now().UTC()
		return summary, err
	}

	o.state = domain.RunDiscovering
	names, err := o.source.List(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to discover files: %w", err))
	}
	o.log.Info("run started", zap.String("run_id", summary.RunID), zap.Int("candidates", len(names)))

	o.state = domain.RunLoading
	matched := make(map[string]struct{})
	for _, category := range domain.Categories() {
		files, _ := Select(category, names)
		for _, desc := range files {
			matched[desc.Filename] = struct{}{}
			report := o.loadFile(ctx, desc, rc)
			summary.Files = append(summary.Files, report)
			o.recordEntry(ctx, rc, report)
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
		}
	}
	for _, name := range names {
		if _, ok := matched[name]; !ok {
			summary.Rejected = append(summary.Rejected, name)
		}
	}

	o.state = domain.RunCrossPopulating
	for _, fill := range crossFills {
		updated, err := o.store.FillMissingFromSibling(ctx, fill.table, fill.column, fill.sibling)
		if err != nil {
			return fail(fmt.Errorf("cross-population of %s.%s failed: %w", fill.table, fill.column, err))
		}
		summary.CrossPopulated += updated
		if updated > 0 {
			o.log.Info("cross-populated missing values",
				zap.String("table", fill.table),
				zap.String("column", fill.column),
				zap.Int64("rows", updated))
		}
	}

	if o.auditor != nil {
		o.state = domain.RunAuditing
		issues, err := o.auditor.Audit(ctx)
		if err != nil {
			return fail(fmt.Errorf("audit failed: %w", err))
		}
		summary.Issues = issues
	}

	o.state = domain.RunCompleted
	summary.State = domain.RunCompleted
	summary.FinishedAt = time.Now().UTC()

	processed, loaded, skipped, errs := summary.Totals()
	o.log.Info("run completed",
		zap.String("run_id", summary.RunID),
		zap.Int("files", len(summary.Files)),
		zap.Int("processed", processed),
		zap.Int("loaded", loaded),
		zap.Int("skipped", skipped),
		zap.Int("errors", errs),
		zap.Int64("cross_populated", summary.CrossPopulated))
	return summary, nil
}

// loadFile runs the parse-transform-load pipeline for one file. Reading
// and transforming happen on a producer goroutine feeding a bounded
// channel; the single loader consumes it so commit order stays
// file-sequential.
func (o *Orchestrator) loadFile(ctx context.Context, desc domain.FileDescriptor, rc *domain.RunContext) (report FileReport) {
	report = FileReport{
		Filename:  desc.Filename,
		Category:  desc.Category,
		Status:    domain.LoadStatusCompleted,
		StartedAt: time.Now().UTC(),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()
	log := o.log.With(zap.String("file", desc.Filename), zap.String("category", string(desc.Category)))

	reader, err := o.source.Open(ctx, desc.Filename)
	if err != nil {
		log.Error("failed to open file", zap.Error(err))
		report.Status = domain.LoadStatusFailed
		report.Err = err.Error()
		return report
	}
	defer reader.Close()

	opts := []ParserOption{WithParserLogger(log)}
	if o.cfg.RejectUnknownSchema {
		opts = append(opts, RejectUnknownSchema())
	}
	parser := NewParser(desc.Category, opts...)
	loader := NewLoader(o.store, o.cfg.Loader, log)

	records := make(chan domain.TransformedRecord, o.cfg.ChannelDepth)
	sampleLimit := o.cfg.Loader.withDefaults().ErrorSampleLimit
	var (
		processed       atomic.Int64
		transformErrors int
		transformSample []string
	)

	watchdogDone := o.startWatchdog(log, &processed)
	defer close(watchdogDone)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer close(records)
		counters, _, err := parser.Parse(reader, func(rec domain.LogicalRecord, version schema.Version) error {
			processed.Add(1)
			out, terr := Transform(rec, version, desc.Filename)
			if terr != nil {
				var malformed *MalformedRecordError
				if errors.As(terr, &malformed) {
					transformErrors++
					if len(transformSample) < sampleLimit {
						transformSample = append(transformSample, terr.Error())
					}
					return nil
				}
				return terr
			}
			select {
			case records <- out:
				return nil
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
		})
		report.Counters = counters
		return err
	})

	var result FileResult
	group.Go(func() error {
		var err error
		result, err = loader.Load(groupCtx, desc.Category, records, rc)
		return err
	})

	err = group.Wait()
	result.Processed += transformErrors
	result.Errors += transformErrors
	result.ErrorSamples = append(transformSample, result.ErrorSamples...)
	report.Result = result

	if err != nil {
		log.Error("file load failed", zap.Error(err))
		report.Status = domain.LoadStatusFailed
		report.Err = err.Error()
		return report
	}

	// A file whose every record was removed by the referential or
	// product-code filter was processed but contributed nothing.
	if result.Processed > 0 && result.Loaded == 0 && result.Errors == 0 {
		report.Status = domain.LoadStatusSkipped
	}

	log.Info("file loaded",
		zap.Int("physical_lines", report.Counters.PhysicalLines),
		zap.Int("logical_records", report.Counters.LogicalRecords),
		zap.Int("orphan_fragments", report.Counters.OrphanFragments),
		zap.Int("loaded", result.Loaded),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors))
	return report
}

// startWatchdog logs the processed-record counter periodically so
// operators can tell a long-running file apart from a stalled one.
func (o *Orchestrator) startWatchdog(log *zap.Logger, processed *atomic.Int64) chan struct{} {
	done := make(chan struct{})
	if o.cfg.WatchdogInterval <= 0 {
		return done
	}
	go func() {
		ticker := time.NewTicker(o.cfg.WatchdogInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				log.Info("ingestion progress", zap.Int64("records_processed", processed.Load()))
			}
		}
	}()
	return done
}

func (o *Orchestrator) recordEntry(ctx context.Context, rc *domain.RunContext, report FileReport) {
	if o.logRepo == nil {
		return
	}
	entry := domain.IngestionLogEntry{
		RunID:      rc.ID,
		FileName:   report.Filename,
		Category:   string(report.Category),
		Processed:  report.Result.Processed,
		Loaded:     report.Result.Loaded,
		Skipped:    report.Result.Skipped,
		Errors:     report.Result.Errors,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Status:     report.Status,
	}
	if err := o.logRepo.Record(ctx, entry); err != nil {
		o.log.Warn("failed to record ingestion log entry",
			zap.String("file", report.Filename), zap.Error(err))
	}
}
