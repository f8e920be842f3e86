// Package cache holds per-table row-sets fetched from the remote server,
// tracked by the inclusive date range they cover so later queries can be
// served locally and extended by fetching only the missing ranges.
package cache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.jacobcolvin.com/fmgate/frame"
)

// MaxRows caps every cached table. On overflow the most recent rows by
// date field are kept (by insertion order when the table has none).
const MaxRows = 50_000

// Entry is one cached table.
type Entry struct {
	Frame       *frame.Frame
	Table       string
	DateField   string // empty for cache_all tables
	DateMin     string // inclusive ISO bounds, empty when unbounded
	DateMax     string
	PKField     string
	RefreshedAt time.Time
}

// Cache is the process-wide table cache. A single mutex guards the map;
// per-entry locks are unnecessary because gap fetches within one query are
// sequential.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	logger  *slog.Logger
}

// New returns an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{entries: map[string]*Entry{}, logger: logger}
}

// Get returns the entry for a table, or nil.
func (c *Cache) Get(table string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.entries[table]
}

// Tables returns the cached table names.
func (c *Cache) Tables() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}

	return names
}

// Merge folds new rows into a table's entry, creating it when absent. Rows
// deduplicate by PK field with the newest occurrence winning, the row cap
// is enforced, and the date bounds become the union of old and new.
func (c *Cache) Merge(table string, rows *frame.Frame, dateField, pkField, dateMin, dateMax string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[table]
	if !ok {
		c.entries[table] = &Entry{
			Frame:       c.capRows(table, rows, dateField),
			Table:       table,
			DateField:   dateField,
			DateMin:     dateMin,
			DateMax:     dateMax,
			PKField:     pkField,
			RefreshedAt: time.Now(),
		}

		return
	}

	combined := &frame.Frame{
		Columns:  unionColumns(entry.Frame.Columns, rows.Columns),
		DateCols: unionDateCols(entry.Frame.DateCols, rows.DateCols),
		Rows:     append(append([]frame.Row(nil), entry.Frame.Rows...), rows.Rows...),
	}

	combined = dedupByPK(combined, pkField)
	combined = c.capRows(table, combined, dateField)

	entry.Frame = combined
	entry.DateMin = unionMin(entry.DateMin, dateMin)
	entry.DateMax = unionMax(entry.DateMax, dateMax)
	entry.RefreshedAt = time.Now()
}

// Flush drops one table's entry, reporting the dropped row count and
// whether anything was cached.
func (c *Cache) Flush(table string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[table]
	if !ok {
		return 0, false
	}

	delete(c.entries, table)

	return entry.Frame.Len(), true
}

// FlushAll drops every entry and returns how many tables were cached.
func (c *Cache) FlushAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = map[string]*Entry{}

	return n
}

// dedupByPK keeps the last occurrence of each primary key, preserving
// insertion order of the survivors. Frames without the PK column pass
// through untouched.
func dedupByPK(f *frame.Frame, pkField string) *frame.Frame {
	if pkField == "" || !f.HasColumn(pkField) {
		return f
	}

	last := map[string]int{}
	for i, row := range f.Rows {
		last[pkString(row[pkField])] = i
	}

	if len(last) == len(f.Rows) {
		return f
	}

	kept := make([]frame.Row, 0, len(last))

	for i, row := range f.Rows {
		if last[pkString(row[pkField])] == i {
			kept = append(kept, row)
		}
	}

	return &frame.Frame{Columns: f.Columns, DateCols: f.DateCols, Rows: kept}
}

func pkString(v any) string {
	return fmt.Sprintf("%v", v)
}

// capRows enforces [MaxRows]: sorted descending by date field keeping the
// first N, or the last N by insertion order without one.
func (c *Cache) capRows(table string, f *frame.Frame, dateField string) *frame.Frame {
	if f.Len() <= MaxRows {
		return f
	}

	before := f.Len()

	if dateField != "" && f.HasColumn(dateField) {
		f = f.SortBy(dateField + " desc").Slice(0, MaxRows)
	} else {
		f = f.Slice(before-MaxRows, 0)
	}

	c.logger.Warn("table cache truncated to most recent rows",
		slog.String("table", table),
		slog.Int("before", before),
		slog.Int("after", f.Len()),
	)

	return f
}

func unionColumns(a, b []string) []string {
	seen := map[string]bool{}

	var out []string

	for _, col := range append(append([]string(nil), a...), b...) {
		if !seen[col] {
			seen[col] = true

			out = append(out, col)
		}
	}

	return out
}

func unionDateCols(a, b map[string]bool) map[string]bool {
	out := map[string]bool{}

	for col := range a {
		out[col] = true
	}

	for col := range b {
		out[col] = true
	}

	return out
}

// unionMin widens the lower bound. An absent bound defers to the other
// side so a partially bounded fetch never erases known coverage.
func unionMin(a, b string) string {
	if a == "" {
		return b
	}

	if b == "" || a < b {
		return a
	}

	return b
}

// unionMax widens the upper bound.
func unionMax(a, b string) string {
	if a == "" {
		return b
	}

	if b == "" || a > b {
		return a
	}

	return b
}
