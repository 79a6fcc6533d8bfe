// Package table holds the in-memory record table loaded from the remote sheet.
package table

import (
	"fmt"
	"math"
	"strconv"
)

// Record is a single row of a Table, keyed by normalized column name.
// Records handed out by a Table share its header but own their values.
type Record struct {
	columns []string
	values  map[string]any
}

// Columns returns the column names in table order.
func (r Record) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// Get returns the raw cell value for a column.
func (r Record) Get(column string) (any, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Text returns the cell formatted as a string. Missing columns and nil
// cells are the empty string.
func (r Record) Text(column string) string {
	return CellText(r.values[column])
}

// Values returns the cells in column order.
func (r Record) Values() []any {
	out := make([]any, len(r.columns))
	for i, c := range r.columns {
		out[i] = r.values[c]
	}
	return out
}

// Clone returns a deep copy that no longer shares state with the table.
func (r Record) Clone() Record {
	values := make(map[string]any, len(r.values))
	for k, v := range r.values {
		values[k] = v
	}
	return Record{columns: r.Columns(), values: values}
}

// IsZero reports whether the record carries no columns.
func (r Record) IsZero() bool {
	return len(r.columns) == 0
}

// CellText formats a cell value the way a spreadsheet displays it.
// Integral floats print without a fractional part so numeric ID columns
// compare equal to the typed ID.
func CellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return CellText(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
