package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"maudeflow/internal/domain"
	"maudeflow/internal/repository"
	"maudeflow/internal/schema"
)

// Thresholds configures the auditor's pass/fail boundaries. Zero values
// disable the corresponding check.
type Thresholds struct {
	// MinRows maps table names to the minimum expected row count.
	MinRows map[string]int64

	// MaxOrphanPercent is the tolerated share of dependent-table rows
	// whose MDR report key has no parent, in percent.
	MaxOrphanPercent float64

	// ImportantColumns maps table names to columns whose completeness
	// percentage is reported.
	ImportantColumns map[string][]string

	// MinCompletenessPercent is the warning boundary for important
	// columns. Defaults to 50 when unset.
	MinCompletenessPercent float64

	// MinDate and MaxDate bound the plausible received-date range.
	MinDate time.Time
	MaxDate time.Time
}

func (t Thresholds) withDefaults() Thresholds {
	if t.MinCompletenessPercent <= 0 {
		t.MinCompletenessPercent = 50
	}
	return t
}

// Auditor runs read-only consistency checks against the populated
// store. It never blocks or rolls back a load; every finding is a
// ValidationIssue left for operators.
type Auditor struct {
	store      repository.Store
	thresholds Thresholds
	log        *zap.Logger
}

// NewAuditor builds an auditor over the store.
func NewAuditor(store repository.Store, thresholds Thresholds, log *zap.Logger) *Auditor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auditor{store: store, thresholds: thresholds.withDefaults(), log: log}
}

// Audit runs every check against every category table and returns the
// findings in a stable order: per category, row count, orphan rate,
// completeness, duplicates, date range, then schema drift.
func (a *Auditor) Audit(ctx context.Context) ([]domain.ValidationIssue, error) {
	var issues []domain.ValidationIssue
	parentTable := schema.TableFor(domain.CategoryMDR)

	for _, category := range domain.Categories() {
		table := schema.TableFor(category)

		issue, err := a.checkRowCount(ctx, table)
		if err != nil {
			return issues, err
		}
		issues = append(issues, issue)

		if table != parentTable {
			issue, err := a.checkOrphanRate(ctx, table, parentTable)
			if err != nil {
				return issues, err
			}
			issues = append(issues, issue)
		}

		completeness, err := a.checkCompleteness(ctx, table)
		if err != nil {
			return issues, err
		}
		issues = append(issues, completeness...)

		issue, err = a.checkDuplicateKeys(ctx, category, table)
		if err != nil {
			return issues, err
		}
		issues = append(issues, issue)

		issue, err = a.checkDateBounds(ctx, table)
		if err != nil {
			return issues, err
		}
		issues = append(issues, issue)

		issue, err = a.checkSchemaDrift(ctx, category, table)
		if err != nil {
			return issues, err
		}
		issues = append(issues, issue)
	}

	for _, issue := range issues {
		if issue.Severity != domain.SeverityOk {
			a.log.Warn("validation issue",
				zap.String("check", issue.Check),
				zap.String("severity", string(issue.Severity)),
				zap.String("message", issue.Message))
		}
	}
	return issues, nil
}

func (a *Auditor) checkRowCount(ctx context.Context, table string) (domain.ValidationIssue, error) {
	count, err := a.store.Count(ctx, table)
	if err != nil {
		return domain.ValidationIssue{}, fmt.Errorf("row count check for %s: %w", table, err)
	}
	issue := domain.ValidationIssue{
		Check:    "row_count:" + table,
		Severity: domain.SeverityOk,
		Message:  fmt.Sprintf("%s holds %d rows", table, count),
		Metrics:  map[string]float64{"rows": float64(count)},
	}
	if min, ok := a.thresholds.MinRows[table]; ok && count < min {
		issue.Severity = domain.SeverityCritical
		issue.Message = fmt.Sprintf("%s holds %d rows, below the expected minimum %d", table, count, min)
		issue.Metrics["min_rows"] = float64(min)
	}
	return issue, nil
}

func (a *Auditor) checkOrphanRate(ctx context.Context, table, parentTable string) (domain.ValidationIssue, error) {
	total, err := a.store.Count(ctx, table)
	if err != nil {
		return domain.ValidationIssue{}, fmt.Errorf("orphan check for %s: %w", table, err)
	}
	orphans, err := a.store.CountMissingParent(ctx, table, parentTable)
	if err != nil {
		return domain.ValidationIssue{}, fmt.Errorf("orphan check for %s: %w", table, err)
	}

	var rate float64
	if total > 0 {
		rate = 100 * float64(orphans) / float64(total)
	}
	issue := domain.ValidationIssue{
		Check:    "orphan_rate:" + table,
		Severity: domain.SeverityOk,
		Message:  fmt.Sprintf("%s orphan rate %.2f%% (%d of %d rows)", table, rate, orphans, total),
		Metrics:  map[string]float64{"orphans": float64(orphans), "rows": float64(total), "percent": rate},
	}
	if a.thresholds.MaxOrphanPercent > 0 && rate > a.thresholds.MaxOrphanPercent {
		issue.Severity = domain.SeverityCritical
		issue.Message = fmt.Sprintf("%s orphan rate %.2f%% exceeds threshold %.2f%%", table, rate, a.thresholds.MaxOrphanPercent)
	}
	return issue, nil
}

func (a *Auditor) checkCompleteness(ctx context.Context, table string) ([]domain.ValidationIssue, error) {
	columns := a.thresholds.ImportantColumns[table]
	if len(columns) == 0 {
		return nil, nil
	}
	total, err := a.store.Count(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("completeness check for %s: %w", table, err)
	}

	var issues []domain.ValidationIssue
	for _, column := range columns {
		nonEmpty, err := a.store.CountNonEmpty(ctx, table, column)
		if err != nil {
			return issues, fmt.Errorf("completeness check for %s.%s: %w", table, column, err)
		}
		percent := 100.0
		if total > 0 {
			percent = 100 * float64(nonEmpty) / float64(total)
		}
		issue := domain.ValidationIssue{
			Check:    fmt.Sprintf("completeness:%s.%s", table, column),
			Severity: domain.SeverityOk,
			Message:  fmt.Sprintf("%s.%s is %.1f%% populated", table, column, percent),
			Metrics:  map[string]float64{"percent": percent, "non_empty": float64(nonEmpty), "rows": float64(total)},
		}
		if percent < a.thresholds.MinCompletenessPercent {
			issue.Severity = domain.SeverityWarning
			issue.Message = fmt.Sprintf("%s.%s is only %.1f%% populated (boundary %.1f%%)", table, column, percent, a.thresholds.MinCompletenessPercent)
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func (a *Auditor) checkDuplicateKeys(ctx context.Context, category domain.FileCategory, table string) (domain.ValidationIssue, error) {
	dups, err := a.store.CountDuplicateKeys(ctx, table)
	if err != nil {
		return domain.ValidationIssue{}, fmt.Errorf("duplicate key check for %s: %w", table, err)
	}
	issue := domain.ValidationIssue{
		Check:    "duplicate_keys:" + table,
		Severity: domain.SeverityOk,
		Message:  fmt.Sprintf("%s has no duplicated report keys", table),
		Metrics:  map[string]float64{"duplicates": float64(dups)},
	}
	if dups == 0 {
		return issue, nil
	}
	// Child tables legitimately repeat the report key (one row per
	// device, text fragment, or patient); only the master table treats
	// repetition as a defect.
	if category == domain.CategoryMDR {
		issue.Severity = domain.SeverityCritical
		issue.Message = fmt.Sprintf("%s has %d duplicated report keys", table, dups)
	} else {
		issue.Message = fmt.Sprintf("%s repeats %d report keys across child rows", table, dups)
	}
	return issue, nil
}

func (a *Auditor) checkDateBounds(ctx context.Context, table string) (domain.ValidationIssue, error) {
	min, max, ok, err := a.store.DateBounds(ctx, table)
	if err != nil {
		return domain.ValidationIssue{}, fmt.Errorf("date bounds check for %s: %w", table, err)
	}
	issue := domain.ValidationIssue{
		Check:    "date_range:" + table,
		Severity: domain.SeverityOk,
		Metrics:  map[string]float64{},
	}
	if !ok {
		issue.Message = fmt.Sprintf("%s holds no dated rows", table)
		return issue, nil
	}
	issue.Message = fmt.Sprintf("%s dates span %s to %s", table, min.Format("2006-01-02"), max.Format("2006-01-02"))
	if !a.thresholds.MinDate.IsZero() && min.Before(a.thresholds.MinDate) {
		issue.Severity = domain.SeverityWarning
		issue.Message = fmt.Sprintf("%s has dates before %s (earliest %s)", table, a.thresholds.MinDate.Format("2006-01-02"), min.Format("2006-01-02"))
	}
	if !a.thresholds.MaxDate.IsZero() && max.After(a.thresholds.MaxDate) {
		issue.Severity = domain.SeverityWarning
		issue.Message = fmt.Sprintf("%s has dates after %s (latest %s)", table, a.thresholds.MaxDate.Format("2006-01-02"), max.Format("2006-01-02"))
	}
	return issue, nil
}

func (a *Auditor) checkSchemaDrift(ctx context.Context, category domain.FileCategory, table string) (domain.ValidationIssue, error) {
	live, err := a.store.DescribeSchema(ctx, table)
	if err != nil {
		return domain.ValidationIssue{}, fmt.Errorf("schema drift check for %s: %w", table, err)
	}
	declared := make(map[string]struct{})
	for _, version := range schema.Versions(category) {
		for _, column := range version.Columns {
			declared[column] = struct{}{}
		}
	}

	var unknown []string
	for _, column := range live {
		if _, ok := declared[column]; !ok {
			unknown = append(unknown, column)
		}
	}

	issue := domain.ValidationIssue{
		Check:    "schema_drift:" + table,
		Severity: domain.SeverityOk,
		Message:  fmt.Sprintf("%s columns match the declared layouts", table),
		Metrics:  map[string]float64{"unknown_columns": float64(len(unknown))},
	}
	if len(unknown) > 0 {
		issue.Severity = domain.SeverityWarning
		issue.Message = fmt.Sprintf("%s carries %d columns unknown to any declared layout: %v", table, len(unknown), unknown)
	}
	return issue, nil
}
