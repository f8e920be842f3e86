// Package frame provides the in-memory row-set the cache and analytics
// layers operate on: filter, sort, project, group, aggregate, pivot, and
// time-series bucketing over records fetched from the remote server.
//
// Values keep their JSON-decoded types (string, float64, bool, nil) except
// for date-typed columns, which are coerced to time.Time on ingest so date
// comparisons and resampling work uniformly.
package frame

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row is one record, field name to value.
type Row map[string]any

// Frame is an ordered row-set with a stable column order and a set of
// columns known to carry dates.
type Frame struct {
	Columns  []string
	Rows     []Row
	DateCols map[string]bool
}

// FromRecords builds a frame from decoded OData records. Column order is
// first-seen order across all rows; fields whose name starts with "@"
// (server metadata) are dropped.
func FromRecords(records []map[string]any) *Frame {
	f := &Frame{DateCols: map[string]bool{}}

	seen := map[string]bool{}

	for _, rec := range records {
		row := Row{}

		for _, key := range sortedKeys(rec) {
			if strings.HasPrefix(key, "@") {
				continue
			}

			if !seen[key] {
				seen[key] = true

				f.Columns = append(f.Columns, key)
			}

			row[key] = rec[key]
		}

		f.Rows = append(f.Rows, row)
	}

	return f
}

func sortedKeys(rec map[string]any) []string {
	keys := make([]string, 0, len(rec))
	for key := range rec {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// Copy returns a deep-enough copy: rows are cloned so value replacement on
// the copy never touches the original.
func (f *Frame) Copy() *Frame {
	out := &Frame{
		Columns:  append([]string(nil), f.Columns...),
		Rows:     make([]Row, len(f.Rows)),
		DateCols: make(map[string]bool, len(f.DateCols)),
	}

	for col := range f.DateCols {
		out.DateCols[col] = true
	}

	for i, row := range f.Rows {
		clone := make(Row, len(row))
		for k, v := range row {
			clone[k] = v
		}

		out.Rows[i] = clone
	}

	return out
}

// Len returns the row count.
func (f *Frame) Len() int {
	return len(f.Rows)
}

// HasColumn reports whether the frame carries the named column.
func (f *Frame) HasColumn(name string) bool {
	for _, col := range f.Columns {
		if col == name {
			return true
		}
	}

	return false
}

// Input layouts accepted when coercing date columns. The server and its
// layouts emit a mix of bare dates, ISO datetimes, and US dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"01/02/2006",
}

// CoerceDates converts the named columns to time.Time in place and records
// them as date columns. Unparseable or empty values become nil.
func (f *Frame) CoerceDates(fields []string) {
	for _, field := range fields {
		if !f.HasColumn(field) {
			continue
		}

		f.DateCols[field] = true

		for _, row := range f.Rows {
			row[field] = ParseDate(row[field])
		}
	}
}

// ParseDate coerces a single value to time.Time, or nil when it cannot be
// parsed. time.Time values pass through.
func ParseDate(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}

		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed
			}
		}

		return nil
	default:
		return nil
	}
}

// Slice returns rows [skip, skip+top). A non-positive top means no upper
// limit.
func (f *Frame) Slice(skip, top int) *Frame {
	rows := f.Rows

	if skip > 0 {
		if skip >= len(rows) {
			rows = nil
		} else {
			rows = rows[skip:]
		}
	}

	if top > 0 && top < len(rows) {
		rows = rows[:top]
	}

	return &Frame{Columns: f.Columns, Rows: rows, DateCols: f.DateCols}
}

// Select keeps the named columns in the order given; names not present in
// the frame are dropped.
func (f *Frame) Select(columns []string) *Frame {
	var kept []string

	for _, col := range columns {
		col = strings.TrimSpace(strings.Trim(strings.TrimSpace(col), `"`))
		if col != "" && f.HasColumn(col) {
			kept = append(kept, col)
		}
	}

	out := &Frame{Columns: kept, DateCols: map[string]bool{}}

	for _, col := range kept {
		if f.DateCols[col] {
			out.DateCols[col] = true
		}
	}

	for _, row := range f.Rows {
		projected := make(Row, len(kept))
		for _, col := range kept {
			projected[col] = row[col]
		}

		out.Rows = append(out.Rows, projected)
	}

	return out
}

// asFloat coerces a value to float64 for numeric comparison and
// aggregation.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}

// asString renders a value for string comparison and grouping. Floats that
// are whole numbers render without a decimal point so JSON-decoded
// integers group naturally.
func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}

		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}
