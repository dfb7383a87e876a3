package ingestion

import (
	"fmt"
	"strings"
	"time"

	"maudeflow/internal/domain"
	"maudeflow/internal/schema"
)

// twoDigitYearPivot interprets 2-digit years: values at or above the
// pivot belong to the 1900s. MAUDE data begins in the early 1990s, so a
// fixed pivot keeps re-ingestion deterministic regardless of when a
// historical file is reloaded.
const twoDigitYearPivot = 50

var (
	fourDigitDateLayouts = []string{
		"01/02/2006",
		"2006/01/02",
		"01-02-2006",
		"2006-01-02",
		"20060102",
	}
	twoDigitDateLayouts = []string{
		"01/02/06",
		"1/2/06",
		"01-02-06",
	}
)

// MalformedRecordError marks a record that cannot be transformed and is
// skipped, counted, and sampled rather than aborting the file.
type MalformedRecordError struct {
	Line   int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %s", e.Line, e.Reason)
}

// Manufacturer name columns, in lookup order per category era.
var manufacturerColumns = []string{"MANUFACTURER_D_NAME", "MANUFACTURER_NAME", "MANUFACTURER_G1_NAME"}

// Transform maps one logical record onto its canonical typed form. It
// is a pure function of its inputs: no I/O, no shared state.
func Transform(rec domain.LogicalRecord, version schema.Version, sourceFile string) (domain.TransformedRecord, error) {
	key := strings.TrimSpace(rec.Key())
	if key == "" || !allDigits(key) {
		return domain.TransformedRecord{}, &MalformedRecordError{Line: rec.Line, Reason: fmt.Sprintf("non-numeric primary key %q", rec.Key())}
	}
	if len(rec.Fields) != version.ColumnCount {
		return domain.TransformedRecord{}, &MalformedRecordError{Line: rec.Line, Reason: fmt.Sprintf("field count %d does not match %d-column schema", len(rec.Fields), version.ColumnCount)}
	}

	columns := make(map[string]string, len(rec.Fields))
	for i, value := range rec.Fields {
		name := version.Column(i)
		if name == "" {
			continue
		}
		columns[name] = strings.TrimSpace(value)
	}

	out := domain.TransformedRecord{
		Key:        key,
		Category:   version.Category,
		SourceFile: sourceFile,
		Columns:    columns,
	}
	out.RowKey = buildRowKey(version.Category, columns, key)

	if raw := columns["DATE_RECEIVED"]; raw != "" {
		received, err := ParseLegacyDate(raw)
		if err != nil {
			return domain.TransformedRecord{}, &MalformedRecordError{Line: rec.Line, Reason: fmt.Sprintf("invalid DATE_RECEIVED %q", raw)}
		}
		out.ReceivedDate = received
		out.ReceivedYear = received.Year()
		out.ReceivedMonth = int(received.Month())
	}

	if raw, ok := columns["EVENT_TYPE"]; ok {
		out.EventType = schema.CanonicalEventCode(raw)
		columns["EVENT_TYPE"] = out.EventType
	}

	for _, col := range manufacturerColumns {
		if raw := columns[col]; raw != "" {
			out.Manufacturer = schema.CleanManufacturer(raw)
			break
		}
	}

	return out, nil
}

// buildRowKey joins the category's declared key columns into the row
// identity used for idempotent upserts. Missing trailing components
// fall back to the parent key alone so re-runs stay stable.
func buildRowKey(category domain.FileCategory, columns map[string]string, key string) string {
	parts := make([]string, 0, 3)
	for _, col := range schema.KeyColumns(category) {
		v := columns[col]
		if v == "" && col == "MDR_REPORT_KEY" {
			v = key
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, ":")
}

// ParseLegacyDate parses the date spellings that appear across 30 years
// of dump files, including 2-digit years resolved with a fixed pivot.
func ParseLegacyDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range fourDigitDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	for _, layout := range twoDigitDateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		// time.Parse maps 2-digit years 00-68 to 20xx and 69-99 to
		// 19xx; re-pin to the fixed pivot instead.
		year := t.Year() % 100
		if year >= twoDigitYearPivot {
			t = t.AddDate(1900+year-t.Year(), 0, 0)
		} else {
			t = t.AddDate(2000+year-t.Year(), 0, 0)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
