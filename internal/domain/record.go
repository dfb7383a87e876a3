package domain

import (
	"time"
)

// FileCategory identifies one family of MAUDE release files.
type FileCategory string

const (
	CategoryMDR     FileCategory = "mdr"
	CategoryDevice  FileCategory = "device"
	CategoryText    FileCategory = "text"
	CategoryPatient FileCategory = "patient"
)

// Categories lists all known categories in load order. The MDR master
// file must load first because every other category references its key.
func Categories() []FileCategory {
	return []FileCategory{CategoryMDR, CategoryDevice, CategoryText, CategoryPatient}
}

// Classification describes the temporal scope a filename encodes.
type Classification string

const (
	ClassCumulative Classification = "cumulative"
	ClassAnnual     Classification = "annual"
	ClassCurrent    Classification = "current"
	ClassAdd        Classification = "add"
	ClassChange     Classification = "change"
)

// FileDescriptor is the pure classification of one candidate filename.
// Year is set for cumulative ("thru") and annual files only.
type FileDescriptor struct {
	Filename       string
	Category       FileCategory
	Classification Classification
	Year           int
}

// LogicalRecord is one primary-key-bearing record assembled from one or
// more physical lines. Fields has exactly the resolved schema's column
// count after padding or truncation; Fields[0] is the numeric key.
type LogicalRecord struct {
	Fields []string
	Line   int
}

// Key returns the record's primary key token.
func (r LogicalRecord) Key() string {
	if len(r.Fields) == 0 {
		return ""
	}
	return r.Fields[0]
}

// TransformedRecord is the canonical, typed form of one logical record.
// Columns maps canonical column names to raw values; the derived fields
// are extracted once during transformation and immutable afterward.
type TransformedRecord struct {
	Key           string
	RowKey        string
	Category      FileCategory
	ReceivedDate  time.Time
	ReceivedYear  int
	ReceivedMonth int
	EventType     string
	Manufacturer  string
	SourceFile    string
	Columns       map[string]string
}
