package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"maudeflow/internal/domain"
	"maudeflow/internal/repository"
	"maudeflow/internal/schema"
)

const (
	defaultBatchSize        = 10000
	defaultErrorSampleLimit = 20
)

// LoaderConfig controls batching and filtering behavior.
type LoaderConfig struct {
	// BatchSize is the number of records committed per transaction.
	BatchSize int

	// Strict fails the file on a batch-commit failure instead of
	// falling back to per-record upserts.
	Strict bool

	// ReferentialFilter restricts dependent-category loads to records
	// whose MDR report key was loaded earlier in the run.
	ReferentialFilter bool

	// ProductCodes, when non-empty, restricts device records to the
	// listed DEVICE_REPORT_PRODUCT_CODE values.
	ProductCodes map[string]struct{}

	// ErrorSampleLimit bounds the retained per-record error messages.
	ErrorSampleLimit int
}

func (c LoaderConfig) withDefaults() LoaderConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.ErrorSampleLimit <= 0 {
		c.ErrorSampleLimit = defaultErrorSampleLimit
	}
	return c
}

// FileResult aggregates the outcome of loading one file's records.
// Processed counts every record offered; Loaded the records committed;
// Skipped the records removed by filters; Errors the records that could
// not be committed even individually.
type FileResult struct {
	Processed    int
	Loaded       int
	Skipped      int
	Errors       int
	ErrorSamples []string
}

func (r *FileResult) sampleError(limit int, err error) {
	r.Errors++
	if len(r.ErrorSamples) < limit {
		r.ErrorSamples = append(r.ErrorSamples, err.Error())
	}
}

// Loader commits transformed records in fixed-size transactional
// batches. Exactly one Loader holds write access to the store during a
// run; commit order is file-sequential so re-runs replay identically.
type Loader struct {
	store repository.Store
	cfg   LoaderConfig
	log   *zap.Logger
}

// NewLoader builds a loader over the store. A nil logger is replaced
// with a no-op one.
func NewLoader(store repository.Store, cfg LoaderConfig, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{store: store, cfg: cfg.withDefaults(), log: log}
}

// Load drains the record channel for one file, committing batches until
// the channel closes or the context is cancelled. Cancellation is
// honored only at batch boundaries: an in-flight batch always commits
// or rolls back atomically first.
func (l *Loader) Load(ctx context.Context, category domain.FileCategory, records <-chan domain.TransformedRecord, rc *domain.RunContext) (FileResult, error) {
	table := schema.TableFor(category)
	if table == "" {
		return FileResult{}, fmt.Errorf("no table registered for category %s", category)
	}

	var result FileResult
	batch := make([]domain.TransformedRecord, 0, l.cfg.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := l.commitBatch(ctx, table, category, batch, rc, &result); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for rec := range records {
		result.Processed++
		if l.skip(category, rec, rc) {
			result.Skipped++
			continue
		}
		batch = append(batch, rec)
		if len(batch) < l.cfg.BatchSize {
			continue
		}
		if err := flush(); err != nil {
			return result, err
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
	if err := flush(); err != nil {
		return result, err
	}
	return result, ctx.Err()
}

// skip applies the referential and product-code filters.
func (l *Loader) skip(category domain.FileCategory, rec domain.TransformedRecord, rc *domain.RunContext) bool {
	if l.cfg.ReferentialFilter && category != domain.CategoryMDR && rc != nil && !rc.HasKey(rec.Key) {
		return true
	}
	if len(l.cfg.ProductCodes) > 0 {
		if code, ok := rec.Columns["DEVICE_REPORT_PRODUCT_CODE"]; ok {
			if _, allowed := l.cfg.ProductCodes[code]; !allowed {
				return true
			}
		}
	}
	return false
}

// commitBatch tries the batch as one transaction and, unless strict
// mode is on, isolates failures by retrying each record individually.
func (l *Loader) commitBatch(ctx context.Context, table string, category domain.FileCategory, batch []domain.TransformedRecord, rc *domain.RunContext, result *FileResult) error {
	err := l.store.BulkUpsert(ctx, table, batch)
	if err == nil {
		result.Loaded += len(batch)
		l.markLoaded(category, batch, rc)
		return nil
	}
	if l.cfg.Strict {
		return fmt.Errorf("batch of %d records failed in strict mode: %w", len(batch), err)
	}

	l.log.Warn("batch commit failed, retrying records individually",
		zap.String("table", table),
		zap.Int("batch_size", len(batch)),
		zap.Error(err))

	for _, rec := range batch {
		if err := l.store.Upsert(ctx, table, rec); err != nil {
			result.sampleError(l.cfg.ErrorSampleLimit, fmt.Errorf("record %s: %w", rec.RowKey, err))
			continue
		}
		result.Loaded++
		l.markLoaded(category, []domain.TransformedRecord{rec}, rc)
	}
	return nil
}

func (l *Loader) markLoaded(category domain.FileCategory, recs []domain.TransformedRecord, rc *domain.RunContext) {
	if rc == nil || category != domain.CategoryMDR {
		return
	}
	for _, rec := range recs {
		rc.MarkLoaded(rec.Key)
	}
}
