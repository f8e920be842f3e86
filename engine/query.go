package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"go.jacobcolvin.com/fmgate/cache"
	"go.jacobcolvin.com/fmgate/frame"
	"go.jacobcolvin.com/fmgate/odata"
	"go.jacobcolvin.com/fmgate/schema"
)

// Server-side page size; FileMaker OData returns at most this many rows
// per request.
const pageSize = 10_000

// maxTop caps the top parameter at one server page.
const maxTop = 10_000

// QueryRecords runs a filtered, sorted, paginated query against a table.
// Tables with a date-range cache policy are served from the local cache
// when possible, fetching only missing date ranges; cache_all tables are
// loaded whole on first access. Everything else queries the server
// directly.
func (e *Engine) QueryRecords(ctx context.Context, in QueryRecordsInput) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.IsExposed(in.Table) {
		return e.unknownTable(in.Table)
	}

	top := in.Top
	if top <= 0 {
		top = 20
	}

	if top > maxTop {
		top = maxTop
	}

	policy := e.store.CachePolicy(in.Table)

	switch policy.Mode {
	case schema.CacheDateRange:
		if out, ok := e.queryDateRangeCached(ctx, in, top, policy.DateField); ok {
			return out
		}
	case schema.CacheAll:
		if out, ok := e.queryAllCached(ctx, in, top); ok {
			return out
		}
	case schema.CacheNone:
	}

	return e.queryDirect(ctx, in, top)
}

// queryDateRangeCached serves a query for a date-range cached table,
// fetching missing date gaps first. Returns ok=false when the cache
// cannot serve: the filter has no date bounds and nothing is cached yet,
// or a gap fetch failed.
func (e *Engine) queryDateRangeCached(ctx context.Context, in QueryRecordsInput, top int, dateField string) (string, bool) {
	pkField := e.store.PrimaryKey(in.Table)
	normalized := odata.NormalizeDatesInFilter(in.Filter)
	reqMin, reqMax := odata.ExtractDateRange(normalized, dateField)
	existing := e.cache.Get(in.Table)

	// Without date bounds or cached data, filling the cache would mean an
	// unbounded full-table fetch. Go direct instead.
	if reqMin == "" && reqMax == "" && existing == nil {
		e.logger.DebugContext(ctx, "skipping date-range cache, filter has no date bounds",
			slog.String("table", in.Table),
			slog.String("date_field", dateField),
		)

		return "", false
	}

	var gaps []cache.Gap
	if existing != nil {
		gaps = cache.ComputeDateGaps(existing.DateMin, existing.DateMax, reqMin, reqMax)
		// Same-day rows change during the day; always refetch today when
		// the request touches it.
		gaps = cache.WithTodayRefresh(gaps, reqMax, e.now())
	} else {
		gaps = []cache.Gap{{Min: reqMin, Max: reqMax}}
	}

	for _, gap := range gaps {
		if err := e.fetchGap(ctx, in.Table, dateField, pkField, gap); err != nil {
			e.logger.WarnContext(ctx, "gap fetch failed, falling back to direct query",
				slog.String("table", in.Table),
				slog.Any("error", err),
			)

			return "", false
		}
	}

	entry := e.cache.Get(in.Table)
	if entry == nil {
		return "", false
	}

	result := entry.Frame.Filter(normalized).SortBy(in.OrderBy)
	total := result.Len()
	result = result.Slice(in.Skip, top)

	if in.Select != "" {
		result = result.Select(strings.Split(in.Select, ","))
	}

	records := frameRecords(result)
	formatted := formatRecords(records, total, true, in.Table, result.Columns)

	info := fmt.Sprintf("%d rows cached for %s", entry.Frame.Len(), in.Table)
	if entry.DateMin != "" && entry.DateMax != "" {
		info += fmt.Sprintf(" (%s to %s)", entry.DateMin, entry.DateMax)
	}

	info += ". Use analyze for aggregation, no server call needed."

	return e.enrichResults(formatted, in.Table, resultFields(records, result.Columns), info), true
}

// queryAllCached serves a query for a cache_all table, cold-loading the
// whole table on first access. A failed cold load falls back to a direct
// query.
func (e *Engine) queryAllCached(ctx context.Context, in QueryRecordsInput, top int) (string, bool) {
	if e.cache.Get(in.Table) == nil {
		records, err := e.fetchPaginated(ctx, in.Table, map[string]string{"$top": strconv.Itoa(pageSize)})
		if err != nil {
			e.logger.WarnContext(ctx, "cache_all cold load failed, falling back to direct query",
				slog.String("table", in.Table),
				slog.Any("error", err),
			)

			return "", false
		}

		if len(records) > 0 {
			f := frame.FromRecords(records)
			f.CoerceDates(e.store.DateFields(in.Table))
			e.cache.Merge(in.Table, f, "", e.store.PrimaryKey(in.Table), "", "")
		}
	}

	entry := e.cache.Get(in.Table)
	if entry == nil {
		return "", false
	}

	result := entry.Frame.Filter(odata.NormalizeDatesInFilter(in.Filter)).SortBy(in.OrderBy)
	total := result.Len()
	result = result.Slice(in.Skip, top)

	if in.Select != "" {
		result = result.Select(strings.Split(in.Select, ","))
	}

	records := frameRecords(result)
	formatted := formatRecords(records, total, true, in.Table, result.Columns)
	info := fmt.Sprintf("%d rows cached for %s. Use analyze for aggregation, no server call needed.",
		entry.Frame.Len(), in.Table)

	return e.enrichResults(formatted, in.Table, resultFields(records, result.Columns), info), true
}

// queryDirect executes the query against the server as-is.
func (e *Engine) queryDirect(ctx context.Context, in QueryRecordsInput, top int) string {
	params := map[string]string{"$top": strconv.Itoa(top)}

	if in.Filter != "" {
		params["$filter"] = odata.QuoteFieldsInFilter(odata.NormalizeDatesInFilter(in.Filter))
	}

	if in.Select != "" {
		params["$select"] = odata.QuoteFieldsInSelect(in.Select)
	}

	if in.Skip > 0 {
		params["$skip"] = strconv.Itoa(in.Skip)
	}

	if in.OrderBy != "" {
		params["$orderby"] = odata.QuoteFieldsInOrderBy(in.OrderBy)
	}

	if in.Count {
		params["$count"] = "true"
	}

	data, err := e.client.Get(ctx, in.Table, params)
	if err != nil {
		return e.queryError(in.Table, err)
	}

	records := recordsOf(data)
	total, hasTotal := totalCount(data)
	formatted := formatRecords(records, total, hasTotal, in.Table, nil)

	return e.enrichResults(formatted, in.Table, resultFields(records, nil), "")
}

// fetchGap fetches one missing date range into the table cache, paging
// through the server until a short page.
func (e *Engine) fetchGap(ctx context.Context, table, dateField, pkField string, gap cache.Gap) error {
	var parts []string

	if gap.Min != "" {
		parts = append(parts, fmt.Sprintf("%q ge %s", dateField, gap.Min))
	}

	if gap.Max != "" {
		parts = append(parts, fmt.Sprintf("%q le %s", dateField, gap.Max))
	}

	params := map[string]string{"$top": strconv.Itoa(pageSize)}
	if len(parts) > 0 {
		params["$filter"] = strings.Join(parts, " and ")
	}

	records, err := e.fetchPaginated(ctx, table, params)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	f := frame.FromRecords(records)
	f.CoerceDates(e.store.DateFields(table))
	e.cache.Merge(table, f, dateField, pkField, gap.Min, gap.Max)

	return nil
}

// fetchPaginated pages through a table query until the server returns a
// short page.
func (e *Engine) fetchPaginated(ctx context.Context, table string, params map[string]string) ([]map[string]any, error) {
	var all []map[string]any

	skip := 0

	for {
		page := make(map[string]string, len(params)+1)
		for k, v := range params {
			page[k] = v
		}

		if skip > 0 {
			page["$skip"] = strconv.Itoa(skip)
		}

		data, err := e.client.Get(ctx, table, page)
		if err != nil {
			return nil, err
		}

		records := recordsOf(data)
		all = append(all, records...)

		if len(records) < pageSize {
			return all, nil
		}

		skip += pageSize
	}
}

// GetRecord fetches a single record by primary key.
func (e *Engine) GetRecord(ctx context.Context, table, recordID, idField string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.IsExposed(table) {
		return e.unknownTable(table)
	}

	pkField := idField
	if pkField == "" {
		pkField = "PrimaryKey"
	}

	// Numeric IDs compare unquoted, everything else as a string literal.
	filter := ""
	if _, err := strconv.Atoi(recordID); err == nil {
		filter = fmt.Sprintf("%q eq %s", pkField, recordID)
	} else {
		filter = fmt.Sprintf("%q eq '%s'", pkField, recordID)
	}

	data, err := e.client.Get(ctx, table, map[string]string{"$filter": filter, "$top": "1"})
	if err != nil {
		return e.queryError(table, err)
	}

	records := recordsOf(data)
	if len(records) == 0 {
		return fmt.Sprintf("No record found in %s where %s = %s", table, pkField, recordID)
	}

	lines := []string{fmt.Sprintf("Record from %s (%s = %s):", table, pkField, recordID), ""}

	for _, key := range recordFields(records[0], nil) {
		lines = append(lines, fmt.Sprintf("  %s: %s", key, formatValue(records[0][key])))
	}

	return strings.Join(lines, "\n")
}

// CountRecords returns the total record count for a table, optionally
// filtered. The server reports zero with $top=0, so the count request
// fetches one row projected to the primary key.
func (e *Engine) CountRecords(ctx context.Context, table, filter string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.store.IsExposed(table) {
		return e.unknownTable(table)
	}

	params := map[string]string{
		"$count":  "true",
		"$top":    "1",
		"$select": fmt.Sprintf("%q", e.store.PrimaryKey(table)),
	}
	if filter != "" {
		params["$filter"] = odata.QuoteFieldsInFilter(odata.NormalizeDatesInFilter(filter))
	}

	data, err := e.client.Get(ctx, table, params)
	if err != nil {
		return e.queryError(table, err)
	}

	count := "unknown"
	if total, ok := totalCount(data); ok {
		count = strconv.Itoa(total)
	}

	if filter != "" {
		return fmt.Sprintf("%s: %s records matching filter '%s'", table, count, filter)
	}

	return fmt.Sprintf("%s: %s total records", table, count)
}

// totalCount reads the response's total count annotation. The server
// emits @count rather than the spec's @odata.count; both are accepted
// with the spec form preferred.
func totalCount(data map[string]any) (int, bool) {
	for _, key := range []string{"@odata.count", "@count"} {
		if n, ok := data[key].(float64); ok {
			return int(n), true
		}
	}

	return 0, false
}

// unknownTable formats the error for a table outside the exposed set,
// enumerating what is available.
func (e *Engine) unknownTable(table string) string {
	return fmt.Sprintf("Error: Unknown table '%s'. Available tables: %s",
		table, strings.Join(e.store.ExposedNames(), ", "))
}

// queryError renders a request failure for the client. Bad field names
// are the dominant cause of request errors, so those get a schema tip.
func (e *Engine) queryError(table string, err error) string {
	switch odata.KindOf(err) {
	case odata.KindConnection:
		return fmt.Sprintf("Connection error: %v", err)
	case odata.KindAuth:
		return fmt.Sprintf("Authentication error: %v", err)
	case odata.KindNotFound, odata.KindRequest:
		msg := err.Error()

		lower := strings.ToLower(msg)
		for _, kw := range []string{"property", "field", "column", "not found"} {
			if strings.Contains(lower, kw) {
				return fmt.Sprintf("Query error: %s\n\n"+
					"TIP: This may be caused by incorrect field names. "+
					"Call get_schema(table='%s') to discover exact field names — "+
					"they vary by table (some use spaces, some use underscores). "+
					"The schema is the only source of truth.", msg, table)
			}
		}

		return fmt.Sprintf("Query error: %s", msg)
	default:
		return fmt.Sprintf("Error querying %s: %v", table, err)
	}
}

// frameRecords converts frame rows to plain record maps for formatting.
func frameRecords(f *frame.Frame) []map[string]any {
	records := make([]map[string]any, len(f.Rows))
	for i, row := range f.Rows {
		records[i] = map[string]any(row)
	}

	return records
}

// sortedNames returns map keys in sorted order.
func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
