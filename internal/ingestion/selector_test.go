package ingestion

import (
	"testing"

	"maudeflow/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		cat  domain.FileCategory
		kind domain.Classification
		year int
	}{
		{"mdrfoithru2023.zip", domain.CategoryMDR, domain.ClassCumulative, 2023},
		{"MDRFOI.TXT", domain.CategoryMDR, domain.ClassCurrent, 0},
		{"mdrfoiadd.zip", domain.CategoryMDR, domain.ClassAdd, 0},
		{"mdrfoichange.zip", domain.CategoryMDR, domain.ClassChange, 0},
		{"foidevthru1997.zip", domain.CategoryDevice, domain.ClassCumulative, 1997},
		{"foidev1998.zip", domain.CategoryDevice, domain.ClassAnnual, 1998},
		{"DEVICE2023.txt", domain.CategoryDevice, domain.ClassAnnual, 2023},
		{"foitext.zip", domain.CategoryText, domain.ClassCurrent, 0},
		{"patientchange.txt", domain.CategoryPatient, domain.ClassChange, 0},
	}
	for _, tc := range cases {
		desc, err := Classify(tc.name)
		if err != nil {
			t.Fatalf("Classify(%q) returned error: %v", tc.name, err)
		}
		if desc.Category != tc.cat || desc.Classification != tc.kind || desc.Year != tc.year {
			t.Fatalf("Classify(%q) = %+v, want cat=%s kind=%s year=%d", tc.name, desc, tc.cat, tc.kind, tc.year)
		}
	}

	if _, err := Classify("readme.md"); err == nil {
		t.Fatalf("expected error for unrecognized filename")
	}
	if _, err := Classify("mdrfoibogus.zip"); err == nil {
		t.Fatalf("expected error for unparseable suffix")
	}
}

func TestSelectCumulativeKeepsOnlyNewestSnapshot(t *testing.T) {
	ordered, rejected := Select(domain.CategoryMDR, []string{
		"mdrfoithru2020.zip", "mdrfoithru2023.zip", "mdrfoithru2025.zip",
	})
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejects: %v", rejected)
	}
	if len(ordered) != 1 {
		t.Fatalf("expected exactly 1 file, got %d: %v", len(ordered), ordered)
	}
	if ordered[0].Filename != "mdrfoithru2025.zip" {
		t.Fatalf("expected newest snapshot, got %s", ordered[0].Filename)
	}
}

func TestSelectIncrementalKeepsAllInOrder(t *testing.T) {
	ordered, rejected := Select(domain.CategoryDevice, []string{
		"foidevchange.zip",
		"foidev1999.zip",
		"foidev.zip",
		"foidevthru1997.zip",
		"foidevadd.zip",
		"foidev1998.zip",
	})
	if len(rejected) != 0 {
		t.Fatalf("unexpected rejects: %v", rejected)
	}

	want := []string{
		"foidevthru1997.zip",
		"foidev1998.zip",
		"foidev1999.zip",
		"foidev.zip",
		"foidevadd.zip",
		"foidevchange.zip",
	}
	if len(ordered) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(ordered))
	}
	for i, name := range want {
		if ordered[i].Filename != name {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, ordered[i].Filename, name, ordered)
		}
	}
}

func TestSelectDeduplicatesAndFiltersForeignCategories(t *testing.T) {
	ordered, rejected := Select(domain.CategoryText, []string{
		"foitext.zip", "foitext.zip", "mdrfoi.zip", "notes.txt",
	})
	if len(ordered) != 1 {
		t.Fatalf("expected 1 kept file, got %d", len(ordered))
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejects, got %v", rejected)
	}
}
