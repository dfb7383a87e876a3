package ingestion

import (
	"fmt"
	"strings"
	"testing"

	"maudeflow/internal/domain"
	"maudeflow/internal/schema"
)

func collectRecords(t *testing.T, category domain.FileCategory, input string, opts ...ParserOption) ([]domain.LogicalRecord, Counters, schema.Version) {
	t.Helper()
	var records []domain.LogicalRecord
	p := NewParser(category, opts...)
	counters, version, err := p.Parse(strings.NewReader(input), func(rec domain.LogicalRecord, _ schema.Version) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return records, counters, version
}

func textHeader() string {
	return strings.Join(schema.Latest(domain.CategoryText).Columns, "|")
}

func TestParseLineAccountingIdentity(t *testing.T) {
	input := textHeader() + "\n" +
		"1000|1|D|1|01/02/1998|first narrative\n" +
		"continuation without key\n" +
		"1001|1|D|1|01/03/1998|second narrative\n"

	records, c, _ := collectRecords(t, domain.CategoryText, input)

	if got := c.LogicalRecords + c.OrphanFragments + c.HeaderLines + c.Malformed; got != c.PhysicalLines {
		t.Fatalf("line accounting broken: %d+%d+%d+%d != %d",
			c.LogicalRecords, c.OrphanFragments, c.HeaderLines, c.Malformed, c.PhysicalLines)
	}
	if c.PhysicalLines != 4 || c.HeaderLines != 1 || c.OrphanFragments != 1 || c.LogicalRecords != 2 {
		t.Fatalf("unexpected counters: %+v", c)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}

// Regression for the historical quote-swallowing defect: an unmatched
// quote character must never cause following lines to be consumed as a
// quoted field.
func TestParseStrayQuoteDoesNotSwallowRecords(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(textHeader() + "\n")
	sb.WriteString("1|1|D|1|01/02/1998|narrative with an unterminated \" quote\n")
	for i := 0; i < 100; i++ {
		fmt.Fprintf(&sb, "%d|1|D|1|01/02/1998|well formed narrative %d\n", 100+i, i)
	}

	records, c, _ := collectRecords(t, domain.CategoryText, sb.String())

	if len(records) != 101 {
		t.Fatalf("quote swallowed records: got %d logical records, want 101", len(records))
	}
	if c.OrphanFragments != 0 {
		t.Fatalf("expected no orphans, got %d", c.OrphanFragments)
	}
	if !strings.Contains(records[0].Fields[5], `"`) {
		t.Fatalf("quote byte should survive as data, fields: %v", records[0].Fields)
	}
}

func TestParseEmbeddedNewlineReconstruction(t *testing.T) {
	input := textHeader() + "\n" +
		"2000|1|D|1|01/02/1998|the pump began\n" +
		"alarming continuously\n" +
		"2001|1|D|1|01/03/1998|next record\n"

	records, c, _ := collectRecords(t, domain.CategoryText, input)

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	want := "the pump began\nalarming continuously"
	if got := records[0].Fields[5]; got != want {
		t.Fatalf("reconstructed field = %q, want %q", got, want)
	}
	if c.OrphanFragments != 1 {
		t.Fatalf("expected 1 orphan fragment, got %d", c.OrphanFragments)
	}
}

func TestParseFragmentWithDelimitersRestoresTrailingFields(t *testing.T) {
	// The break happens mid-field; the rest of the record's fields
	// follow the fragment on the continuation line.
	input := "3000|1|D|1|broken date\nrest|narrative text\n"

	records, _, _ := collectRecords(t, domain.CategoryText, input)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if len(rec.Fields) != 6 {
		t.Fatalf("expected 6 fields after padding, got %d", len(rec.Fields))
	}
	if rec.Fields[4] != "broken date\nrest" {
		t.Fatalf("field 4 = %q", rec.Fields[4])
	}
	if rec.Fields[5] != "narrative text" {
		t.Fatalf("field 5 = %q", rec.Fields[5])
	}
}

func TestParsePadsShortAndFoldsLongRecords(t *testing.T) {
	input := "10|1|D\n" + // short: padded to width
		"11|1|D|1|01/02/1998|text with | embedded pipe | chars\n" // long: folded

	records, _, _ := collectRecords(t, domain.CategoryText, input)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if len(records[0].Fields) != 6 || records[0].Fields[5] != "" {
		t.Fatalf("short record not padded: %v", records[0].Fields)
	}
	if records[1].Fields[5] != "text with | embedded pipe | chars" {
		t.Fatalf("surplus tokens not folded into final column: %q", records[1].Fields[5])
	}
}

func TestParseReplacesNonASCIIBytes(t *testing.T) {
	input := "20|1|D|1|01/02/1998|caf\xe9 narrative\n"

	records, _, _ := collectRecords(t, domain.CategoryText, input)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].Fields[5]; got != "café narrative" {
		t.Fatalf("latin-1 byte not decoded, got %q", got)
	}
}

func TestParseUnknownColumnCountFallsBack(t *testing.T) {
	// 30 tokens resolves against the nearest lower device era (28).
	fields := make([]string, 30)
	for i := range fields {
		fields[i] = fmt.Sprintf("v%d", i)
	}
	fields[0] = "500"
	input := strings.Join(fields, "|") + "\n"

	records, _, version := collectRecords(t, domain.CategoryDevice, input)
	if version.ColumnCount != 28 {
		t.Fatalf("expected fallback to 28 columns, got %d", version.ColumnCount)
	}
	if len(records) != 1 || len(records[0].Fields) != 28 {
		t.Fatalf("record not normalized to fallback width: %d fields", len(records[0].Fields))
	}

	p := NewParser(domain.CategoryDevice, RejectUnknownSchema())
	_, _, err := p.Parse(strings.NewReader(input), func(domain.LogicalRecord, schema.Version) error { return nil })
	if err == nil {
		t.Fatalf("expected rejection of unknown schema version")
	}
}

func TestParseRestartable(t *testing.T) {
	input := textHeader() + "\n" + "42|1|D|1|01/02/1998|hello\n"
	p := NewParser(domain.CategoryText)

	for i := 0; i < 2; i++ {
		var n int
		c, _, err := p.Parse(strings.NewReader(input), func(domain.LogicalRecord, schema.Version) error {
			n++
			return nil
		})
		if err != nil || n != 1 || c.LogicalRecords != 1 {
			t.Fatalf("pass %d: err=%v records=%d counters=%+v", i, err, n, c)
		}
	}
}
