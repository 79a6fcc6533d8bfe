package table

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ErrSourceUnavailable is the parent of every load failure. Callers treat
// anything that matches it as fatal for the current request.
var ErrSourceUnavailable = errors.New("source unavailable")

var (
	// ErrConnection is returned when the remote source cannot be reached or
	// rejects the configured credentials.
	ErrConnection = fmt.Errorf("%w: connection failed", ErrSourceUnavailable)

	// ErrFormat is returned when the fetched data does not have the expected shape.
	ErrFormat = fmt.Errorf("%w: unexpected table format", ErrSourceUnavailable)
)

// Table is an immutable snapshot of the remote sheet.
type Table struct {
	columns []string
	index   map[string]int
	rows    []Record
}

// NormalizeColumn replaces each run of whitespace inside a column label with
// a single underscore. Leading and trailing whitespace is dropped. The
// function is idempotent.
func NormalizeColumn(label string) string {
	return strings.Join(strings.Fields(label), "_")
}

// New builds a table from a raw header and rows. Header labels are
// normalized. Rows shorter than the header are padded with nil cells and
// extra cells are dropped. Returns ErrFormat if the header is empty or has
// duplicate names after normalization.
func New(header []string, rows [][]any) (*Table, error) {
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: missing header row", ErrFormat)
	}

	columns := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := NormalizeColumn(h)
		if name == "" {
			return nil, fmt.Errorf("%w: column %d has an empty label", ErrFormat, i+1)
		}
		if _, dup := index[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrFormat, name)
		}
		columns[i] = name
		index[name] = i
	}

	t := &Table{
		columns: columns,
		index:   index,
		rows:    make([]Record, 0, len(rows)),
	}
	for _, row := range rows {
		values := make(map[string]any, len(columns))
		for i, c := range columns {
			if i < len(row) {
				values[c] = row[i]
			} else {
				values[c] = nil
			}
		}
		t.rows = append(t.rows, Record{columns: columns, values: values})
	}
	return t, nil
}

// Columns returns the normalized column names in order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the (already normalized) column exists.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns the i-th row.
func (t *Table) Row(i int) Record {
	return t.rows[i]
}

// Find returns the first row, in table order, for which match returns true.
func (t *Table) Find(match func(Record) bool) (Record, bool) {
	if t == nil {
		return Record{}, false
	}
	for _, r := range t.rows {
		if match(r) {
			return r, true
		}
	}
	return Record{}, false
}

// RequireColumns returns ErrFormat naming every column in names that the
// table lacks. Names are normalized before the check.
func (t *Table) RequireColumns(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.HasColumn(NormalizeColumn(n)) {
			missing = append(missing, NormalizeColumn(n))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing columns %s", ErrFormat, strings.Join(missing, ", "))
	}
	return nil
}

// Fingerprint hashes the header and every cell. Two snapshots of an
// unchanged sheet have the same fingerprint.
func (t *Table) Fingerprint() uint64 {
	h := xxhash.New()
	if t == nil {
		return h.Sum64()
	}
	for _, c := range t.columns {
		_, _ = h.WriteString(c)
		_, _ = h.Write([]byte{0})
	}
	_, _ = h.Write([]byte{1})
	for _, r := range t.rows {
		for _, c := range t.columns {
			v := r.values[c]
			// Type tag keeps "90" and 90 apart.
			_, _ = h.WriteString(fmt.Sprintf("%T", v))
			_, _ = h.Write([]byte{0})
			_, _ = h.WriteString(CellText(v))
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte{1})
	}
	return h.Sum64()
}

// DuplicateKeys counts rows whose (key columns) tuple already appeared
// earlier in the table. Names are normalized before lookup.
func (t *Table) DuplicateKeys(columns ...string) int {
	if t == nil {
		return 0
	}
	keys := make([]string, len(columns))
	for i, c := range columns {
		keys[i] = NormalizeColumn(c)
	}
	seen := make(map[string]struct{}, len(t.rows))
	dups := 0
	var b strings.Builder
	for _, r := range t.rows {
		b.Reset()
		for _, c := range keys {
			b.WriteString(r.Text(c))
			b.WriteByte(0)
		}
		k := b.String()
		if _, ok := seen[k]; ok {
			dups++
			continue
		}
		seen[k] = struct{}{}
	}
	return dups
}

// SanitizeCell maps NaN and infinite floats to nil. Other values pass
// through unchanged.
func SanitizeCell(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
