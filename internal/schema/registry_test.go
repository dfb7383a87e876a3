package schema

import (
	"errors"
	"testing"

	"maudeflow/internal/domain"
)

func TestResolveDistinguishesDeviceEras(t *testing.T) {
	v28, err := Resolve(domain.CategoryDevice, 28)
	if err != nil {
		t.Fatalf("resolve 28 returned error: %v", err)
	}
	v34, err := Resolve(domain.CategoryDevice, 34)
	if err != nil {
		t.Fatalf("resolve 34 returned error: %v", err)
	}

	if v28.ColumnCount == v34.ColumnCount {
		t.Fatalf("expected distinct versions, both have %d columns", v28.ColumnCount)
	}
	if len(v28.Optional) != 0 {
		t.Fatalf("expected no optional columns in 28-column era, got %d", len(v28.Optional))
	}
	if len(v34.Optional) == 0 {
		t.Fatalf("expected optional columns in 34-column era")
	}
	if !v34.IsOptional("UDI_DI") {
		t.Fatalf("expected UDI_DI to be optional in the 34-column era")
	}
	if v28.IsOptional("MODEL_NUMBER") {
		t.Fatalf("MODEL_NUMBER must not be optional")
	}
}

func TestResolveUnknownCountFallsBackToNearestLower(t *testing.T) {
	v, err := Resolve(domain.CategoryDevice, 31)
	if !errors.Is(err, ErrUnknownSchemaVersion) {
		t.Fatalf("expected ErrUnknownSchemaVersion, got %v", err)
	}
	if v.ColumnCount != 28 {
		t.Fatalf("expected fallback to 28-column era, got %d", v.ColumnCount)
	}

	// Counts below every known era still resolve to the oldest layout.
	v, err = Resolve(domain.CategoryDevice, 10)
	if !errors.Is(err, ErrUnknownSchemaVersion) {
		t.Fatalf("expected ErrUnknownSchemaVersion, got %v", err)
	}
	if v.ColumnCount != 28 {
		t.Fatalf("expected oldest era for tiny count, got %d", v.ColumnCount)
	}
}

func TestResolveExactMatchHasNoError(t *testing.T) {
	for _, count := range []int{84, 86} {
		v, err := Resolve(domain.CategoryMDR, count)
		if err != nil {
			t.Fatalf("resolve %d: %v", count, err)
		}
		if len(v.Columns) != count {
			t.Fatalf("version %d lists %d columns", count, len(v.Columns))
		}
	}
}

func TestNormalizeColumn(t *testing.T) {
	cases := map[string]string{
		"DEVICE_EVALUATED_BY_MANUFACTURER": "DEVICE_EVALUATED_BY_MANUFACTUR",
		"  mdr_report_key ":                "MDR_REPORT_KEY",
		"MDR EVENT KEY":                    "EVENT_KEY",
		"BRAND_NAME":                       "BRAND_NAME",
	}
	for raw, want := range cases {
		if got := NormalizeColumn(domain.CategoryDevice, raw); got != want {
			t.Fatalf("NormalizeColumn(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestCanonicalEventCode(t *testing.T) {
	cases := map[string]string{
		"DE": "D",
		"MA": "M",
		"I":  "IN",
		"IN": "IN",
		"d":  "D",
		"O":  "O",
		"":   "",
		"ZZ": "ZZ",
	}
	for raw, want := range cases {
		if got := CanonicalEventCode(raw); got != want {
			t.Fatalf("CanonicalEventCode(%q) = %q, want %q", raw, got, want)
		}
	}
	if FilterEventCode("D") != "DE" {
		t.Fatalf("FilterEventCode(D) = %q, want DE", FilterEventCode("D"))
	}
}

func TestCleanManufacturerLongestMatch(t *testing.T) {
	cases := map[string]string{
		"MEDTRONIC MINIMED INC":       "MEDTRONIC MINIMED",
		"MEDTRONIC PUERTO RICO CORP":  "MEDTRONIC",
		"medtronic, inc.":             "MEDTRONIC",
		"Johnson and Johnson":         "JOHNSON & JOHNSON",
		"ACME SURGICAL DEVICES LLC":   "ACME SURGICAL DEVICES",
		"":                            "",
	}
	for raw, want := range cases {
		if got := CleanManufacturer(raw); got != want {
			t.Fatalf("CleanManufacturer(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestKeyColumnsStartWithReportKey(t *testing.T) {
	for _, cat := range domain.Categories() {
		keys := KeyColumns(cat)
		if len(keys) == 0 || keys[0] != "MDR_REPORT_KEY" {
			t.Fatalf("category %s key columns %v must lead with MDR_REPORT_KEY", cat, keys)
		}
		if TableFor(cat) == "" {
			t.Fatalf("category %s has no table", cat)
		}
		if CategoryForTable(TableFor(cat)) != cat {
			t.Fatalf("table mapping for %s does not round-trip", cat)
		}
	}
}
