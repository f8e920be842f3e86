package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Values longer than this are truncated in record output.
const maxValueLength = 500

// formatValue renders one field value for display. Empty and nil render
// empty, long strings truncate, dates render as bare ISO days.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		if len(t) > maxValueLength {
			return t[:maxValueLength] + "... [truncated]"
		}

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

// formatRecords renders a record list as readable text: a summary line
// with the total when known, then one block per record with non-empty
// fields. Server metadata fields (@-prefixed) are dropped. Columns gives
// the field order; nil falls back to sorted names per record.
func formatRecords(records []map[string]any, total int, hasTotal bool, table string, columns []string) string {
	if len(records) == 0 {
		if hasTotal && total > 0 {
			return fmt.Sprintf("Found %d total records in %s (none returned — check top/skip).", total, table)
		}

		return fmt.Sprintf("No records found in %s matching your query.", table)
	}

	var lines []string

	if hasTotal {
		lines = append(lines, fmt.Sprintf("Found %d total records in %s (showing %d):", total, table, len(records)))
	} else {
		lines = append(lines, fmt.Sprintf("Showing %d records from %s:", len(records), table))
	}

	lines = append(lines, "")

	for i, rec := range records {
		lines = append(lines, fmt.Sprintf("--- Record %d ---", i+1))

		for _, key := range recordFields(rec, columns) {
			if formatted := formatValue(rec[key]); formatted != "" {
				lines = append(lines, fmt.Sprintf("  %s: %s", key, formatted))
			}
		}

		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

// recordFields returns the non-metadata field names of a record in
// display order.
func recordFields(rec map[string]any, columns []string) []string {
	if columns != nil {
		var fields []string

		for _, col := range columns {
			if _, ok := rec[col]; ok && !strings.HasPrefix(col, "@") {
				fields = append(fields, col)
			}
		}

		return fields
	}

	var fields []string

	for key := range rec {
		if !strings.HasPrefix(key, "@") {
			fields = append(fields, key)
		}
	}

	sort.Strings(fields)

	return fields
}

// resultFields collects the display fields of the first record, used for
// context enrichment.
func resultFields(records []map[string]any, columns []string) []string {
	if len(records) == 0 {
		return nil
	}

	return recordFields(records[0], columns)
}

// enrichResults appends context hints for the result's fields and an
// optional cache section to formatted record output. Both sections are
// omitted when empty.
func (e *Engine) enrichResults(formatted, table string, fields []string, cacheInfo string) string {
	var hints []string

	for _, field := range fields {
		if ctx := e.store.FieldContext(table, field); ctx != "" {
			hints = append(hints, fmt.Sprintf("  %s: %s", field, ctx))
		}
	}

	var sections []string

	if len(hints) > 0 {
		sections = append(sections, "--- Context ---\n"+strings.Join(hints, "\n"))
	}

	if cacheInfo != "" {
		sections = append(sections, "--- Cache ---\n  "+cacheInfo)
	}

	if len(sections) == 0 {
		return formatted
	}

	return strings.TrimRight(formatted, "\n ") + "\n\n" + strings.Join(sections, "\n\n") + "\n"
}
