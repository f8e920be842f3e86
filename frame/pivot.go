package frame

import (
	"sort"
	"time"
)

// Pivot cross-tabulates the frame: one output row per distinct groupby
// combination, one output column per distinct value of pivotCol, each cell
// the aggregate of agg over the matching rows. Missing cells fill as zero.
func (f *Frame) Pivot(groupby []string, pivotCol string, agg AggPair) *Frame {
	type cellKey struct {
		row string
		col string
	}

	cells := map[cellKey][]any{}
	rowFirst := map[string]Row{}

	var rowOrder, colOrder []string

	colSeen := map[string]bool{}

	for _, row := range f.Rows {
		rk := groupKey(row, groupby)
		if _, ok := rowFirst[rk]; !ok {
			rowFirst[rk] = row

			rowOrder = append(rowOrder, rk)
		}

		ck := asString(row[pivotCol])
		if !colSeen[ck] {
			colSeen[ck] = true

			colOrder = append(colOrder, ck)
		}

		key := cellKey{row: rk, col: ck}
		cells[key] = append(cells[key], row[agg.Field])
	}

	sort.Strings(rowOrder)
	sort.Strings(colOrder)

	out := &Frame{Columns: append(append([]string(nil), groupby...), colOrder...), DateCols: map[string]bool{}}

	for _, rk := range rowOrder {
		row := Row{}

		for _, field := range groupby {
			row[field] = rowFirst[rk][field]
		}

		for _, ck := range colOrder {
			value := applyAgg(agg.Func, cells[cellKey{row: rk, col: ck}])
			if value == nil {
				value = float64(0)
			}

			row[ck] = value
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}

// Resample buckets the frame by a period of its date column and aggregates
// per bucket (plus any secondary groupby fields). Buckets are labeled by
// their period-ending date formatted YYYY-MM.
func (f *Frame) Resample(dateCol, period string, secondary []string, pairs []AggPair) *Frame {
	bucketed := f.Copy()

	for _, row := range bucketed.Rows {
		t, ok := row[dateCol].(time.Time)
		if !ok {
			row[dateCol] = nil

			continue
		}

		row[dateCol] = periodEnd(t, period).Format("2006-01")
	}

	groupby := append([]string{dateCol}, secondary...)

	return bucketed.Aggregate(groupby, pairs)
}

// periodEnd returns the last day of the period containing t: Sunday for
// week, last day of the month, last day of the quarter.
func periodEnd(t time.Time, period string) time.Time {
	year, month, day := t.Date()
	t = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

	switch period {
	case "week":
		offset := (7 - int(t.Weekday())) % 7

		return t.AddDate(0, 0, offset)
	case "quarter":
		quarterEndMonth := ((int(month)-1)/3)*3 + 3

		return time.Date(year, time.Month(quarterEndMonth)+1, 0, 0, 0, 0, 0, time.UTC)
	default: // month
		return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	}
}
