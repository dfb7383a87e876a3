package ingestion

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"maudeflow/internal/domain"
	"maudeflow/internal/schema"
)

const fieldDelimiter = '|'

// Counters account for every physical line of a parsed file. The
// identity LogicalRecords + OrphanFragments + HeaderLines + Malformed ==
// PhysicalLines always holds and is asserted by the auditor and tests.
type Counters struct {
	PhysicalLines   int
	LogicalRecords  int
	OrphanFragments int
	HeaderLines     int
	Malformed       int
}

// Parser streams logical records out of one MAUDE release file.
//
// Tokenization is delimiter-only: a quote byte is ordinary data, never a
// field-quoting signal. A quote-aware tokenizer mistakes an unmatched
// literal quote for the start of a multi-line quoted field and silently
// swallows every following line until the next quote anywhere in the
// file, which on these dumps means losing millions of records.
type Parser struct {
	category domain.FileCategory
	reject   bool
	log      *zap.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// RejectUnknownSchema makes Parse fail a file whose column count matches
// no registered schema version, instead of the default best-effort
// fallback to the nearest lower version.
func RejectUnknownSchema() ParserOption {
	return func(p *Parser) { p.reject = true }
}

// WithParserLogger attaches a logger for schema-drift warnings.
func WithParserLogger(log *zap.Logger) ParserOption {
	return func(p *Parser) { p.log = log }
}

// NewParser builds a parser for one file category. A Parser is
// stateless across calls: Parse may be invoked again with a fresh
// reader to restart a file, but a stream is never resumable mid-file.
func NewParser(category domain.FileCategory, opts ...ParserOption) *Parser {
	p := &Parser{category: category, log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads the file once, assembling logical records and pushing each
// to emit in file order. The schema version is resolved from the first
// physical line's field count. Emit errors abort the parse.
func (p *Parser) Parse(r io.Reader, emit func(domain.LogicalRecord, schema.Version) error) (Counters, schema.Version, error) {
	var (
		counters Counters
		version  schema.Version
		resolved bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	// Raw text of the record currently being assembled; fragments from
	// embedded newlines are re-joined here before tokenizing.
	var (
		pendingRaw  string
		pendingLine int
		havePending bool
	)

	flush := func() error {
		if !havePending {
			return nil
		}
		havePending = false
		fields := assembleFields(pendingRaw, version.ColumnCount)
		return emit(domain.LogicalRecord{Fields: fields, Line: pendingLine}, version)
	}

	for scanner.Scan() {
		counters.PhysicalLines++
		line := decodeLatin1(strings.TrimSuffix(scanner.Text(), "\r"))

		if !resolved {
			count := strings.Count(line, string(fieldDelimiter)) + 1
			v, err := schema.Resolve(p.category, count)
			if err != nil {
				if p.reject {
					return counters, schema.Version{}, err
				}
				p.log.Warn("schema drift, using fallback version",
					zap.String("category", string(p.category)),
					zap.Int("column_count", count),
					zap.Int("fallback_columns", v.ColumnCount),
					zap.Error(err))
			}
			version = v
			resolved = true
		}

		if leadingKeyIsNumeric(line) {
			if err := flush(); err != nil {
				return counters, version, err
			}
			pendingRaw = line
			pendingLine = counters.PhysicalLines
			havePending = true
			counters.LogicalRecords++
			continue
		}

		switch {
		case havePending:
			// Embedded newline inside a free-text field: restore the
			// terminator and re-join with the previous record.
			pendingRaw += "\n" + line
			counters.OrphanFragments++
		case counters.PhysicalLines == 1:
			counters.HeaderLines++
		default:
			// Orphan with no record to attach to, and not the header.
			counters.Malformed++
		}
	}
	if err := scanner.Err(); err != nil {
		return counters, version, fmt.Errorf("read failure at line %d: %w", counters.PhysicalLines, err)
	}
	if err := flush(); err != nil {
		return counters, version, err
	}
	return counters, version, nil
}

// assembleFields tokenizes the raw record text on the delimiter alone
// and normalizes the field count to the schema width. Missing trailing
// fields pad with ""; surplus tokens are folded back into the final
// column so stray delimiters inside trailing free text lose nothing.
func assembleFields(raw string, width int) []string {
	tokens := strings.Split(raw, string(fieldDelimiter))
	if width <= 0 {
		return tokens
	}
	if len(tokens) > width {
		folded := strings.Join(tokens[width-1:], string(fieldDelimiter))
		tokens = append(tokens[:width-1], folded)
	}
	for len(tokens) < width {
		tokens = append(tokens, "")
	}
	return tokens
}

// leadingKeyIsNumeric reports whether the line opens a new logical
// record, i.e. its first token is a non-empty run of ASCII digits.
func leadingKeyIsNumeric(line string) bool {
	end := strings.IndexByte(line, fieldDelimiter)
	if end < 0 {
		end = len(line)
	}
	token := strings.TrimSpace(line[:end])
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return false
		}
	}
	return true
}

// decodeLatin1 interprets the line as single-byte Latin-1 when it is
// not already valid ASCII. Every byte maps to a rune, so malformed
// input is replaced with a printable interpretation, never rejected.
func decodeLatin1(line string) string {
	ascii := true
	for i := 0; i < len(line); i++ {
		if line[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return line
	}
	var b strings.Builder
	b.Grow(len(line) + 8)
	for i := 0; i < len(line); i++ {
		b.WriteRune(rune(line[i]))
	}
	return b.String()
}
