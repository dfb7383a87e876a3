package ingestion

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"maudeflow/internal/domain"
	"maudeflow/internal/schema"
)

// Classify derives a FileDescriptor from a release filename alone. It
// performs no I/O so selection logic stays unit-testable.
//
// Recognized shapes, case-insensitive, with .txt/.zip suffixes ignored:
//
//	mdrfoithru2023   cumulative through 2023
//	foidev1998       annual export for 1998
//	foitext          unmarked current file
//	patientadd       incremental additions
//	patientchange    incremental changes
func Classify(filename string) (domain.FileDescriptor, error) {
	base := strings.ToLower(path.Base(filename))
	for {
		ext := path.Ext(base)
		if ext != ".zip" && ext != ".txt" {
			break
		}
		base = strings.TrimSuffix(base, ext)
	}

	var category domain.FileCategory
	prefix := ""
	for _, cat := range domain.Categories() {
		for _, p := range schema.Prefixes(cat) {
			if strings.HasPrefix(base, p) && len(p) > len(prefix) {
				category = cat
				prefix = p
			}
		}
	}
	if prefix == "" {
		return domain.FileDescriptor{}, fmt.Errorf("unrecognized file %q", filename)
	}

	desc := domain.FileDescriptor{Filename: filename, Category: category}
	rest := base[len(prefix):]
	switch {
	case rest == "":
		desc.Classification = domain.ClassCurrent
	case rest == "add":
		desc.Classification = domain.ClassAdd
	case rest == "change":
		desc.Classification = domain.ClassChange
	case strings.HasPrefix(rest, "thru"):
		year, err := strconv.Atoi(strings.TrimPrefix(rest, "thru"))
		if err != nil {
			return domain.FileDescriptor{}, fmt.Errorf("bad cumulative year in %q", filename)
		}
		desc.Classification = domain.ClassCumulative
		desc.Year = year
	default:
		year, err := strconv.Atoi(rest)
		if err != nil || year < 1900 || year > 2999 {
			return domain.FileDescriptor{}, fmt.Errorf("unrecognized file %q", filename)
		}
		desc.Classification = domain.ClassAnnual
		desc.Year = year
	}
	return desc, nil
}

// Select classifies and orders the candidate filenames for one category.
//
// For cumulative categories every historical "thru" snapshot is a strict
// logical subset of the newest one, so only the maximum-year cumulative
// file is kept. For incremental categories the "thru" file covers the
// years before annual exports began and never overlaps them, so all
// cumulative and annual files are kept, ascending by year.
//
// The final order is always: cumulative/annual ascending, then Current,
// then Add, then Change. Add precedes Change because Change files modify
// records Add may have just introduced.
func Select(category domain.FileCategory, filenames []string) ([]domain.FileDescriptor, []string) {
	var (
		dated    []domain.FileDescriptor // cumulative + annual
		current  []domain.FileDescriptor
		add      []domain.FileDescriptor
		change   []domain.FileDescriptor
		rejected []string
	)

	seen := make(map[string]struct{})
	for _, name := range filenames {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		desc, err := Classify(name)
		if err != nil || desc.Category != category {
			rejected = append(rejected, name)
			continue
		}
		switch desc.Classification {
		case domain.ClassCumulative, domain.ClassAnnual:
			dated = append(dated, desc)
		case domain.ClassCurrent:
			current = append(current, desc)
		case domain.ClassAdd:
			add = append(add, desc)
		case domain.ClassChange:
			change = append(change, desc)
		}
	}

	if schema.IsCumulativeCategory(category) {
		best := -1
		for i, d := range dated {
			if d.Classification != domain.ClassCumulative {
				continue
			}
			if best < 0 || d.Year > dated[best].Year {
				best = i
			}
		}
		kept := dated[:0:0]
		for i, d := range dated {
			if d.Classification != domain.ClassCumulative || i == best {
				kept = append(kept, d)
			}
		}
		dated = kept
	}

	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Year < dated[j].Year })

	ordered := make([]domain.FileDescriptor, 0, len(dated)+len(current)+len(add)+len(change))
	ordered = append(ordered, dated...)
	ordered = append(ordered, current...)
	ordered = append(ordered, add...)
	ordered = append(ordered, change...)
	return ordered, rejected
}
