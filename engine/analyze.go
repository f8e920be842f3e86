package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"go.jacobcolvin.com/fmgate/frame"
	"go.jacobcolvin.com/fmgate/schema"
)

// Periods accepted for time-series resampling.
var analyzePeriods = map[string]bool{"week": true, "month": true, "quarter": true}

// Analyze runs an aggregation over a loaded dataset or a cached table,
// entirely in memory. The parameter combination selects the mode:
// summary statistics with neither groupby nor aggregate, group counts
// with groupby alone, scalar aggregates with aggregate alone, grouped
// aggregation with both, time-series bucketing with period, and a pivot
// table with pivot_column.
func (e *Engine) Analyze(in AnalyzeInput) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	source, table, ok := e.resolveDataset(in.Dataset)
	if !ok {
		available := strings.Join(append(sortedNames(e.datasets), e.cache.Tables()...), ", ")
		if available == "" {
			available = "(none)"
		}

		return fmt.Sprintf("Dataset '%s' not found. Available: %s. "+
			"Use load_dataset to load data, or query a cached table first.", in.Dataset, available)
	}

	totalRows := source.Len()

	df := source
	if in.Filter != "" {
		df = df.Filter(in.Filter)
	}

	groupby := splitFields(in.GroupBy)

	// Value-map normalization applies to grouping columns only, on a copy.
	normNote := ""

	if len(groupby) > 0 {
		normFields := append([]string(nil), groupby...)
		if in.PivotColumn != "" {
			normFields = append(normFields, in.PivotColumn)
		}

		if mappings := e.collectValueMaps(table, normFields); len(mappings) > 0 {
			var notes []string

			df, notes = df.Replace(mappings)
			if len(notes) > 0 {
				normNote = "\nNormalized: " + strings.Join(notes, ", ")
			}
		}
	}

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}

	if len(groupby) == 0 && in.Aggregate == "" {
		return fmt.Sprintf("Summary statistics for '%s' (%d records):\n\n%s",
			in.Dataset, df.Len(), df.Describe().Render())
	}

	for _, field := range groupby {
		if !df.HasColumn(field) {
			return fmt.Sprintf("Field '%s' not in dataset. Available: %s",
				field, strings.Join(df.Columns, ", "))
		}
	}

	if in.Period != "" {
		return e.analyzeTimeSeries(in, df, groupby, limit, normNote)
	}

	if in.PivotColumn != "" {
		return e.analyzePivot(in, df, groupby, limit, normNote)
	}

	if in.Aggregate == "" {
		counts := df.ValueCounts(groupby)
		totalGroups := counts.Len()

		return fmt.Sprintf("Group counts for '%s' (%d records):\n\n%s\n\n(%d groups)%s",
			in.Dataset, df.Len(), counts.SortBy(in.Sort).Slice(0, limit).Render(), totalGroups, normNote)
	}

	pairs, err := frame.ParseAggregates(in.Aggregate, df.Columns)
	if err != nil {
		return err.Error()
	}

	result := df.Aggregate(groupby, pairs).SortBy(in.Sort)
	shown := result.Slice(0, limit)

	return fmt.Sprintf("Analysis of '%s' (%d records aggregated):\n\n%s\n\n(%d groups shown, %d total records in dataset)%s",
		in.Dataset, df.Len(), shown.Render(), shown.Len(), totalRows, normNote)
}

func (e *Engine) analyzeTimeSeries(in AnalyzeInput, df *frame.Frame, groupby []string, limit int, normNote string) string {
	if !analyzePeriods[in.Period] {
		return fmt.Sprintf("Invalid period '%s'. Supported: week, month, quarter", in.Period)
	}

	if len(groupby) == 0 {
		return "Period requires a groupby field (the date column)."
	}

	dateCol := groupby[0]
	if !df.DateCols[dateCol] {
		return fmt.Sprintf("Field '%s' must be a datetime column for period grouping.", dateCol)
	}

	pairs, err := frame.ParseAggregates(in.Aggregate, df.Columns)
	if err != nil {
		return err.Error()
	}

	result := df.Resample(dateCol, in.Period, groupby[1:], pairs).SortBy(in.Sort)
	totalGroups := result.Len()

	return fmt.Sprintf("Time-series analysis of '%s' (%d records, %sly):\n\n%s\n\n(%d periods)%s",
		in.Dataset, df.Len(), in.Period, result.Slice(0, limit).Render(), totalGroups, normNote)
}

func (e *Engine) analyzePivot(in AnalyzeInput, df *frame.Frame, groupby []string, limit int, normNote string) string {
	if !df.HasColumn(in.PivotColumn) {
		return fmt.Sprintf("Pivot column '%s' not in dataset. Available: %s",
			in.PivotColumn, strings.Join(df.Columns, ", "))
	}

	if len(groupby) == 0 {
		return "Pivot requires a groupby field for row index."
	}

	pairs, err := frame.ParseAggregates(in.Aggregate, df.Columns)
	if err != nil {
		return err.Error()
	}

	if len(pairs) == 0 {
		return "Pivot requires an aggregate (e.g., 'count:Amount')."
	}

	agg := pairs[0]
	result := df.Pivot(groupby, in.PivotColumn, agg)
	totalGroups := result.Len()

	return fmt.Sprintf("Pivot analysis of '%s' (%d records):\nRows: %s | Columns: %s | Values: %s(%s)\n\n%s\n\n(%d rows)%s",
		in.Dataset, df.Len(), strings.Join(groupby, ", "), in.PivotColumn, agg.Func, agg.Field,
		result.Slice(0, limit).Render(), totalGroups, normNote)
}

// resolveDataset finds the frame behind a dataset name: named datasets
// take precedence over the table cache.
func (e *Engine) resolveDataset(name string) (*frame.Frame, string, bool) {
	if ds, ok := e.datasets[name]; ok {
		return ds.Frame, ds.Table, true
	}

	if entry := e.cache.Get(name); entry != nil {
		return entry.Frame, entry.Table, true
	}

	return nil, "", false
}

// collectValueMaps gathers value_map context entries for the given
// fields. Entries that do not parse as a JSON object are skipped.
func (e *Engine) collectValueMaps(table string, fields []string) map[string]map[string]string {
	mappings := map[string]map[string]string{}

	for _, field := range fields {
		raw := e.store.ContextValue(table, schema.ContextValueMap, field)
		if raw == "" {
			continue
		}

		var parsed map[string]string
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed) == 0 {
			continue
		}

		mappings[field] = parsed
	}

	return mappings
}

func splitFields(spec string) []string {
	var fields []string

	for field := range strings.SplitSeq(spec, ",") {
		if field = strings.TrimSpace(field); field != "" {
			fields = append(fields, field)
		}
	}

	return fields
}
