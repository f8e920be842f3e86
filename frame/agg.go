package frame

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Aggregation functions accepted in aggregate specs.
var supportedAggs = map[string]bool{
	"sum":     true,
	"count":   true,
	"mean":    true,
	"min":     true,
	"max":     true,
	"median":  true,
	"nunique": true,
	"std":     true,
}

// AggPair is one function:field pair from an aggregate spec.
type AggPair struct {
	Func  string
	Field string
}

// Column returns the output column name for the pair.
func (p AggPair) Column() string {
	return p.Field + "_" + p.Func
}

// ParseAggregates parses a comma-separated "func:field" spec against the
// available columns. Unknown functions and missing fields return an error
// naming what is supported.
func ParseAggregates(spec string, available []string) ([]AggPair, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	var pairs []AggPair

	for raw := range strings.SplitSeq(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		fn, field, ok := strings.Cut(raw, ":")
		if !ok {
			return nil, fmt.Errorf("invalid aggregate %q, expected 'function:field' (e.g. 'sum:Amount')", raw)
		}

		fn = strings.ToLower(strings.TrimSpace(fn))
		field = strings.TrimSpace(field)

		if !supportedAggs[fn] {
			return nil, fmt.Errorf("unknown function %q, supported: %s", fn, supportedAggList())
		}

		if !contains(available, field) {
			return nil, fmt.Errorf("field %q not in dataset, available: %s", field, strings.Join(available, ", "))
		}

		pairs = append(pairs, AggPair{Func: fn, Field: field})
	}

	return pairs, nil
}

func supportedAggList() string {
	fns := make([]string, 0, len(supportedAggs))
	for fn := range supportedAggs {
		fns = append(fns, fn)
	}

	sort.Strings(fns)

	return strings.Join(fns, ", ")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}

	return false
}

// applyAgg computes one aggregate over the column values of a row group.
func applyAgg(fn string, values []any) any {
	switch fn {
	case "count":
		n := 0

		for _, v := range values {
			if v != nil && asString(v) != "" {
				n++
			}
		}

		return float64(n)
	case "nunique":
		seen := map[string]bool{}

		for _, v := range values {
			if v != nil {
				seen[asString(v)] = true
			}
		}

		return float64(len(seen))
	case "min", "max":
		return minMax(fn, values)
	}

	nums := numericValues(values)
	if len(nums) == 0 {
		return nil
	}

	switch fn {
	case "sum":
		return sum(nums)
	case "mean":
		return sum(nums) / float64(len(nums))
	case "median":
		sorted := append([]float64(nil), nums...)
		sort.Float64s(sorted)

		mid := len(sorted) / 2
		if len(sorted)%2 == 0 {
			return (sorted[mid-1] + sorted[mid]) / 2
		}

		return sorted[mid]
	case "std":
		// Sample standard deviation.
		if len(nums) < 2 {
			return nil
		}

		mean := sum(nums) / float64(len(nums))

		var ss float64
		for _, n := range nums {
			ss += (n - mean) * (n - mean)
		}

		return math.Sqrt(ss / float64(len(nums)-1))
	}

	return nil
}

func minMax(fn string, values []any) any {
	nums := numericValues(values)

	if len(nums) > 0 {
		best := nums[0]

		for _, n := range nums[1:] {
			if (fn == "min" && n < best) || (fn == "max" && n > best) {
				best = n
			}
		}

		return best
	}

	// Fall back to string ordering for non-numeric columns.
	var best string

	found := false

	for _, v := range values {
		if v == nil {
			continue
		}

		s := asString(v)
		if !found || (fn == "min" && s < best) || (fn == "max" && s > best) {
			best, found = s, true
		}
	}

	if !found {
		return nil
	}

	return best
}

func numericValues(values []any) []float64 {
	var nums []float64

	for _, v := range values {
		if n, ok := asFloat(v); ok {
			nums = append(nums, n)
		}
	}

	return nums
}

func sum(nums []float64) float64 {
	var total float64
	for _, n := range nums {
		total += n
	}

	return total
}

// groupKey builds the composite key for a row over the groupby columns.
func groupKey(row Row, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = asString(row[f])
	}

	return strings.Join(parts, "\x1f")
}

// Aggregate runs a grouped aggregation. With no groupby fields it returns
// a single-row frame of scalar aggregates across all rows. Group rows are
// ordered by ascending group key.
func (f *Frame) Aggregate(groupby []string, pairs []AggPair) *Frame {
	columns := append([]string(nil), groupby...)
	for _, pair := range pairs {
		columns = append(columns, pair.Column())
	}

	out := &Frame{Columns: columns, DateCols: map[string]bool{}}

	if len(groupby) == 0 {
		row := Row{}
		for _, pair := range pairs {
			row[pair.Column()] = applyAgg(pair.Func, f.columnValues(f.Rows, pair.Field))
		}

		out.Rows = []Row{row}

		return out
	}

	groups := map[string][]Row{}

	var order []string

	for _, row := range f.Rows {
		key := groupKey(row, groupby)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}

		groups[key] = append(groups[key], row)
	}

	sort.Strings(order)

	for _, key := range order {
		rows := groups[key]
		row := Row{}

		for _, field := range groupby {
			row[field] = rows[0][field]
		}

		for _, pair := range pairs {
			row[pair.Column()] = applyAgg(pair.Func, f.columnValues(rows, pair.Field))
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}

func (f *Frame) columnValues(rows []Row, field string) []any {
	values := make([]any, len(rows))
	for i, row := range rows {
		values[i] = row[field]
	}

	return values
}

// ValueCounts counts rows per distinct combination of the groupby fields,
// sorted by descending count with ties broken by group key.
func (f *Frame) ValueCounts(groupby []string) *Frame {
	counted := f.Aggregate(groupby, nil)

	groups := map[string]float64{}

	for _, row := range f.Rows {
		groups[groupKey(row, groupby)]++
	}

	out := &Frame{Columns: append(append([]string(nil), groupby...), "count"), DateCols: map[string]bool{}}

	for _, row := range counted.Rows {
		row["count"] = groups[groupKey(row, groupby)]

		out.Rows = append(out.Rows, row)
	}

	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, _ := asFloat(out.Rows[i]["count"])
		b, _ := asFloat(out.Rows[j]["count"])

		return a > b
	})

	return out
}
