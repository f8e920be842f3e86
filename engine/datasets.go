package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.jacobcolvin.com/fmgate/frame"
	"go.jacobcolvin.com/fmgate/odata"
)

// LoadDataset fetches records into a named dataset for analytics. The
// fetch auto-paginates; loading an existing name replaces it.
func (e *Engine) LoadDataset(ctx context.Context, in LoadDatasetInput) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.IsExposed(in.Table) {
		return e.unknownTable(in.Table)
	}

	params := map[string]string{"$top": strconv.Itoa(pageSize)}

	if in.Filter != "" {
		params["$filter"] = odata.QuoteFieldsInFilter(odata.NormalizeDatesInFilter(in.Filter))
	}

	if in.Select != "" {
		params["$select"] = odata.QuoteFieldsInSelect(in.Select)
	}

	records, err := e.fetchPaginated(ctx, in.Table, params)
	if err != nil {
		return e.queryError(in.Table, err)
	}

	if len(records) == 0 {
		return fmt.Sprintf("0 records matched filter for '%s'. Dataset '%s' not created.", in.Table, in.Name)
	}

	f := frame.FromRecords(records)
	f.CoerceDates(e.store.DateFields(in.Table))

	e.datasets[in.Name] = &Dataset{
		Frame:    f,
		Table:    in.Table,
		Filter:   in.Filter,
		Select:   in.Select,
		LoadedAt: e.now(),
	}

	summary := fmt.Sprintf("Dataset '%s': %d rows x %d columns\nSource: %s",
		in.Name, f.Len(), len(f.Columns), in.Table)
	if in.Filter != "" {
		summary += " | Filter: " + in.Filter
	}

	return summary + "\nColumns: " + strings.Join(f.Columns, ", ")
}

// ListDatasets lists the datasets loaded in session memory.
func (e *Engine) ListDatasets() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.datasets) == 0 {
		return "No datasets loaded. Use load_dataset to load data from a table."
	}

	lines := []string{"Loaded datasets:", ""}

	for _, name := range sortedNames(e.datasets) {
		entry := e.datasets[name]

		filter := entry.Filter
		if filter == "" {
			filter = "(none)"
		}

		lines = append(lines,
			fmt.Sprintf("  %s: %d rows from %s", name, entry.Frame.Len(), entry.Table),
			fmt.Sprintf("    Filter: %s", filter),
			fmt.Sprintf("    Columns: %s", strings.Join(entry.Frame.Columns, ", ")),
			fmt.Sprintf("    Loaded: %s", entry.LoadedAt.Format("2006-01-02T15:04:05")),
			"",
		)
	}

	return strings.Join(lines, "\n")
}

// FlushDatasets drops cached table data, forcing the next query to fetch
// fresh rows. An empty table name flushes every cached table. Named
// datasets are unaffected.
func (e *Engine) FlushDatasets(table string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if table != "" {
		rows, ok := e.cache.Flush(table)
		if !ok {
			return fmt.Sprintf("No cached data found for '%s'.", table)
		}

		return fmt.Sprintf("Flushed '%s' (%d rows).", table, rows)
	}

	return fmt.Sprintf("Flushed %d table cache(s).", e.cache.FlushAll())
}
