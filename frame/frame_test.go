package frame_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/fmgate/frame"
)

func ordersFrame() *frame.Frame {
	f := frame.FromRecords([]map[string]any{
		{"OrderID": "1", "Technician": "Jake", "Amount": float64(100), "ServiceDate": "2026-02-10", "@odata.id": "x"},
		{"OrderID": "2", "Technician": "Jake", "Amount": float64(200), "ServiceDate": "2026-02-11"},
		{"OrderID": "3", "Technician": "Jacob Owens", "Amount": float64(150), "ServiceDate": "2026-02-12"},
		{"OrderID": "4", "Technician": "Mike", "Amount": float64(300), "ServiceDate": "2026-03-01"},
	})
	f.CoerceDates([]string{"ServiceDate"})

	return f
}

func TestFromRecords(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	assert.Equal(t, 4, f.Len())
	assert.NotContains(t, f.Columns, "@odata.id")
	assert.Contains(t, f.Columns, "Technician")
}

func TestCoerceDates(t *testing.T) {
	t.Parallel()

	f := frame.FromRecords([]map[string]any{
		{"D": "2026-02-10"},
		{"D": "2026-02-10T14:30:00"},
		{"D": "2/10/2026"},
		{"D": "not a date"},
		{"D": ""},
	})
	f.CoerceDates([]string{"D"})

	for i := 0; i < 3; i++ {
		tm, ok := f.Rows[i]["D"].(time.Time)
		require.True(t, ok, "row %d", i)
		assert.Equal(t, "2026-02-10", tm.Format("2006-01-02"))
	}

	assert.Nil(t, f.Rows[3]["D"])
	assert.Nil(t, f.Rows[4]["D"])
}

func TestFilter(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	tcs := map[string]struct {
		filter string
		want   int
	}{
		"string eq":            {filter: "Technician eq 'Jake'", want: 2},
		"quoted field":         {filter: `"Technician" eq 'Mike'`, want: 1},
		"string ne":            {filter: "Technician ne 'Jake'", want: 2},
		"numeric gt":           {filter: "Amount gt 150", want: 2},
		"numeric le":           {filter: "Amount le 150", want: 2},
		"date lower bound":     {filter: "ServiceDate ge 2026-02-11", want: 3},
		"date both bounds":     {filter: "ServiceDate ge 2026-02-10 and ServiceDate le 2026-02-12", want: 3},
		"date eq":              {filter: "ServiceDate eq 2026-02-11", want: 1},
		"and combination":      {filter: "Technician eq 'Jake' and Amount gt 150", want: 1},
		"or combination":       {filter: "Technician eq 'Mike' or Amount eq 150", want: 2},
		"empty filter matches": {filter: "", want: 4},
		"unknown field":        {filter: "NoSuch gt 5", want: 0},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, f.Filter(tc.filter).Len())
		})
	}
}

func TestFilterOffsetDatetime(t *testing.T) {
	t.Parallel()

	f := frame.FromRecords([]map[string]any{
		{"OrderID": "1", "ServiceDate": "2026-02-14T22:00:00-05:00"},
	})
	f.CoerceDates([]string{"ServiceDate"})

	// 22:00-05:00 is 03:00 UTC the next day; the value's own calendar day
	// governs the comparison.
	assert.Equal(t, 1, f.Filter("ServiceDate eq 2026-02-14").Len())
	assert.Equal(t, 0, f.Filter("ServiceDate eq 2026-02-15").Len())
	assert.Equal(t, 1, f.Filter("ServiceDate le 2026-02-14").Len())
}

func TestSortBy(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	sorted := f.SortBy("Amount desc")
	amounts := make([]float64, 0, sorted.Len())

	for _, row := range sorted.Rows {
		amounts = append(amounts, row["Amount"].(float64))
	}

	assert.Equal(t, []float64{300, 200, 150, 100}, amounts)

	// Multi-key: first clause dominates.
	multi := f.SortBy(`"Technician" asc,Amount desc`)
	assert.Equal(t, "Jacob Owens", multi.Rows[0]["Technician"])
	assert.Equal(t, float64(200), multi.Rows[1]["Amount"])
	assert.Equal(t, float64(100), multi.Rows[2]["Amount"])

	// Missing columns are ignored.
	assert.Equal(t, f.Rows, f.SortBy("NoSuch desc").Rows)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	projected := f.Select([]string{"Technician", "Amount", "NoSuch"})
	assert.Equal(t, []string{"Technician", "Amount"}, projected.Columns)
	require.Equal(t, 4, projected.Len())
	assert.NotContains(t, projected.Rows[0], "OrderID")
}

func TestSlice(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	assert.Equal(t, 2, f.Slice(0, 2).Len())
	assert.Equal(t, 3, f.Slice(1, 0).Len())
	assert.Equal(t, 1, f.Slice(3, 5).Len())
	assert.Equal(t, 0, f.Slice(10, 5).Len())
}

func TestAggregateGrouped(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	pairs, err := frame.ParseAggregates("sum:Amount,count:Amount", f.Columns)
	require.NoError(t, err)

	result := f.Aggregate([]string{"Technician"}, pairs)
	require.Equal(t, 3, result.Len())
	assert.Equal(t, []string{"Technician", "Amount_sum", "Amount_count"}, result.Columns)

	byTech := map[string]float64{}
	for _, row := range result.Rows {
		byTech[row["Technician"].(string)] = row["Amount_sum"].(float64)
	}

	assert.Equal(t, float64(300), byTech["Jake"])
	assert.Equal(t, float64(150), byTech["Jacob Owens"])
	assert.Equal(t, float64(300), byTech["Mike"])
}

func TestAggregateScalar(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	pairs, err := frame.ParseAggregates("mean:Amount,median:Amount,min:Amount,max:Amount,std:Amount,nunique:Technician", f.Columns)
	require.NoError(t, err)

	result := f.Aggregate(nil, pairs)
	require.Equal(t, 1, result.Len())

	row := result.Rows[0]
	assert.InDelta(t, 187.5, row["Amount_mean"].(float64), 0.001)
	assert.InDelta(t, 175, row["Amount_median"].(float64), 0.001)
	assert.Equal(t, float64(100), row["Amount_min"])
	assert.Equal(t, float64(300), row["Amount_max"])
	assert.InDelta(t, 85.391, row["Amount_std"].(float64), 0.001)
	assert.Equal(t, float64(3), row["Technician_nunique"])
}

func TestParseAggregatesErrors(t *testing.T) {
	t.Parallel()

	cols := []string{"Amount"}

	_, err := frame.ParseAggregates("sum", cols)
	require.ErrorContains(t, err, "function:field")

	_, err = frame.ParseAggregates("variance:Amount", cols)
	require.ErrorContains(t, err, "unknown function")

	_, err = frame.ParseAggregates("sum:Missing", cols)
	require.ErrorContains(t, err, "not in dataset")

	pairs, err := frame.ParseAggregates("", cols)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestValueCounts(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	counts := f.ValueCounts([]string{"Technician"})
	require.Equal(t, 3, counts.Len())

	// Sorted by descending count.
	assert.Equal(t, "Jake", counts.Rows[0]["Technician"])
	assert.Equal(t, float64(2), counts.Rows[0]["count"])
	assert.Equal(t, float64(1), counts.Rows[1]["count"])
}

func TestPivot(t *testing.T) {
	t.Parallel()

	f := frame.FromRecords([]map[string]any{
		{"Zone": "North", "Status": "Open", "Amount": float64(10)},
		{"Zone": "North", "Status": "Closed", "Amount": float64(20)},
		{"Zone": "South", "Status": "Open", "Amount": float64(30)},
	})

	result := f.Pivot([]string{"Zone"}, "Status", frame.AggPair{Func: "sum", Field: "Amount"})
	require.Equal(t, 2, result.Len())
	assert.Equal(t, []string{"Zone", "Closed", "Open"}, result.Columns)

	north := result.Rows[0]
	assert.Equal(t, "North", north["Zone"])
	assert.Equal(t, float64(20), north["Closed"])
	assert.Equal(t, float64(10), north["Open"])

	// Missing cell zero-filled.
	south := result.Rows[1]
	assert.Equal(t, float64(0), south["Closed"])
	assert.Equal(t, float64(30), south["Open"])
}

func TestResample(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	pairs, err := frame.ParseAggregates("sum:Amount", f.Columns)
	require.NoError(t, err)

	result := f.Resample("ServiceDate", "month", nil, pairs)
	require.Equal(t, 2, result.Len())

	assert.Equal(t, "2026-02", result.Rows[0]["ServiceDate"])
	assert.Equal(t, float64(450), result.Rows[0]["Amount_sum"])
	assert.Equal(t, "2026-03", result.Rows[1]["ServiceDate"])
	assert.Equal(t, float64(300), result.Rows[1]["Amount_sum"])
}

func TestResampleQuarterAndWeek(t *testing.T) {
	t.Parallel()

	f := frame.FromRecords([]map[string]any{
		{"D": "2026-01-15", "N": float64(1)},
		{"D": "2026-02-15", "N": float64(2)},
		{"D": "2026-04-01", "N": float64(4)},
	})
	f.CoerceDates([]string{"D"})

	pairs, err := frame.ParseAggregates("sum:N", f.Columns)
	require.NoError(t, err)

	quarters := f.Resample("D", "quarter", nil, pairs)
	require.Equal(t, 2, quarters.Len())
	assert.Equal(t, "2026-03", quarters.Rows[0]["D"])
	assert.Equal(t, float64(3), quarters.Rows[0]["N_sum"])
	assert.Equal(t, "2026-06", quarters.Rows[1]["D"])

	weeks := f.Resample("D", "week", nil, pairs)
	assert.Equal(t, 3, weeks.Len())
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	result := f.Describe()
	require.Equal(t, len(f.Columns), result.Len())

	byCol := map[string]frame.Row{}
	for _, row := range result.Rows {
		byCol[row["column"].(string)] = row
	}

	amount := byCol["Amount"]
	assert.Equal(t, float64(4), amount["count"])
	assert.Equal(t, float64(4), amount["unique"])
	assert.InDelta(t, 187.5, amount["mean"].(float64), 0.001)

	tech := byCol["Technician"]
	assert.Equal(t, float64(3), tech["unique"])
}

func TestReplace(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	normalized, notes := f.Replace(map[string]map[string]string{
		"Technician": {"Jake": "Jacob Owens"},
	})

	require.Len(t, notes, 1)
	assert.Equal(t, "Technician (Jake→Jacob Owens: 2)", notes[0])

	// The copy is normalized, the source untouched.
	assert.Equal(t, "Jacob Owens", normalized.Rows[0]["Technician"])
	assert.Equal(t, "Jake", f.Rows[0]["Technician"])

	counts := normalized.ValueCounts([]string{"Technician"})
	require.Equal(t, 2, counts.Len())
}

func TestReplaceNoChanges(t *testing.T) {
	t.Parallel()

	f := ordersFrame()

	same, notes := f.Replace(map[string]map[string]string{
		"Technician": {"Nobody": "Someone"},
		"Missing":    {"a": "b"},
	})

	assert.Empty(t, notes)
	assert.Equal(t, f.Len(), same.Len())
}

func TestRender(t *testing.T) {
	t.Parallel()

	f := frame.FromRecords([]map[string]any{
		{"Name": "Jake", "N": float64(2)},
		{"Name": "Mike", "N": float64(10)},
	})

	got := f.Render()
	assert.Contains(t, got, "Name")
	assert.Contains(t, got, "Jake")
	assert.Contains(t, got, "10")
}
