package frame

// Describe summarizes every column: non-empty count, distinct count, and
// for numeric columns mean, min, and max. One output row per column.
func (f *Frame) Describe() *Frame {
	out := &Frame{
		Columns:  []string{"column", "count", "unique", "mean", "min", "max"},
		DateCols: map[string]bool{},
	}

	for _, col := range f.Columns {
		values := f.columnValues(f.Rows, col)

		row := Row{
			"column": col,
			"count":  applyAgg("count", values),
			"unique": applyAgg("nunique", values),
		}

		if nums := numericValues(values); len(nums) > 0 {
			row["mean"] = applyAgg("mean", values)
			row["min"] = applyAgg("min", values)
			row["max"] = applyAgg("max", values)
		} else {
			row["min"] = applyAgg("min", values)
			row["max"] = applyAgg("max", values)
		}

		out.Rows = append(out.Rows, row)
	}

	return out
}
