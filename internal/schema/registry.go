// Package schema is the static catalog of MAUDE release-file schemas.
//
// The catalog is compiled into the binary and validated once at startup:
// for a given category every declared version must have a distinct
// column count, because the column count of an incoming file is the only
// signal used to pick its schema era.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"maudeflow/internal/domain"
)

// ErrUnknownSchemaVersion reports a column count with no declared
// version. Resolution still succeeds with the nearest lower version so
// ingestion can continue best-effort; callers decide whether to reject.
var ErrUnknownSchemaVersion = errors.New("unknown schema version")

// Version is one declared schema era for a file category.
type Version struct {
	Category    domain.FileCategory
	ColumnCount int
	Columns     []string
	Optional    map[string]struct{}
}

// Column returns the canonical name at position idx, or "" when the
// position is beyond the declared layout.
func (v Version) Column(idx int) string {
	if idx < 0 || idx >= len(v.Columns) {
		return ""
	}
	return v.Columns[idx]
}

// IsOptional reports whether the column may be absent without blocking
// a load (columns introduced in later eras).
func (v Version) IsOptional(name string) bool {
	_, ok := v.Optional[name]
	return ok
}

var registry = map[domain.FileCategory][]Version{}

func register(v Version) {
	if len(v.Columns) != v.ColumnCount {
		panic(fmt.Sprintf("schema: %s version declares %d columns but lists %d",
			v.Category, v.ColumnCount, len(v.Columns)))
	}
	for _, existing := range registry[v.Category] {
		if existing.ColumnCount == v.ColumnCount {
			panic(fmt.Sprintf("schema: duplicate %d-column version for category %s",
				v.ColumnCount, v.Category))
		}
	}
	registry[v.Category] = append(registry[v.Category], v)
	sort.Slice(registry[v.Category], func(i, j int) bool {
		return registry[v.Category][i].ColumnCount < registry[v.Category][j].ColumnCount
	})
}

// Resolve picks the schema version for a category by column count.
//
// An exact match returns the version directly. An unseen count returns
// the nearest version with a lower column count (or the oldest version
// when none is lower) together with ErrUnknownSchemaVersion, so the
// caller can log drift or reject the file per run configuration.
func Resolve(category domain.FileCategory, columnCount int) (Version, error) {
	versions, ok := registry[category]
	if !ok || len(versions) == 0 {
		return Version{}, fmt.Errorf("schema: no versions registered for category %q", category)
	}

	best := versions[0]
	for _, v := range versions {
		if v.ColumnCount == columnCount {
			return v, nil
		}
		if v.ColumnCount < columnCount {
			best = v
		}
	}
	return best, fmt.Errorf("%w: category %s has no %d-column layout, falling back to %d columns",
		ErrUnknownSchemaVersion, category, columnCount, best.ColumnCount)
}

// Versions returns the declared versions for a category, oldest first.
func Versions(category domain.FileCategory) []Version {
	out := make([]Version, len(registry[category]))
	copy(out, registry[category])
	return out
}

// Latest returns the newest declared version for a category.
func Latest(category domain.FileCategory) Version {
	versions := registry[category]
	return versions[len(versions)-1]
}

// NormalizeColumn maps an FDA header spelling to its canonical column
// name. Unrecognized headers are returned upper-cased with whitespace
// collapsed to underscores, matching the canonical convention.
func NormalizeColumn(category domain.FileCategory, raw string) string {
	name := strings.ToUpper(strings.TrimSpace(raw))
	name = strings.ReplaceAll(name, " ", "_")
	if canonical, ok := columnAliases[name]; ok {
		return canonical
	}
	return name
}

// OptionalColumns returns the columns that are absent in older eras of
// the category and must not be treated as load-blocking when missing.
func OptionalColumns(category domain.FileCategory) map[string]struct{} {
	out := make(map[string]struct{})
	for _, v := range registry[category] {
		for name := range v.Optional {
			out[name] = struct{}{}
		}
	}
	return out
}

// KeyColumns returns the columns that together identify one row of the
// category. The first entry is always MDR_REPORT_KEY, the parent key
// used for referential filtering.
func KeyColumns(category domain.FileCategory) []string {
	return keyColumns[category]
}

// TableFor returns the store table name for a category.
func TableFor(category domain.FileCategory) string {
	return tables[category]
}

// CategoryForTable is the inverse of TableFor; it returns "" for
// tables that do not back a file category.
func CategoryForTable(table string) domain.FileCategory {
	for cat, t := range tables {
		if t == table {
			return cat
		}
	}
	return ""
}

// IsCumulativeCategory reports whether the category publishes full
// historical re-exports (only the newest "thru" file is authoritative)
// rather than non-overlapping per-year deltas.
func IsCumulativeCategory(category domain.FileCategory) bool {
	return cumulativeCategories[category]
}

// Prefixes returns the filename prefixes that identify the category.
func Prefixes(category domain.FileCategory) []string {
	return filePrefixes[category]
}
