package dates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"go.jacobcolvin.com/fmgate/dates"
	"go.jacobcolvin.com/fmgate/odata"
)

// 2026-02-20 is a Friday.
var feb20 = time.Date(2026, 2, 20, 15, 30, 0, 0, time.UTC)

func TestSinglePeriods(t *testing.T) {
	t.Parallel()

	r := dates.NewReport(feb20)

	assert.Equal(t, dates.Period{Start: "2026-02-20", End: "2026-02-20"}, r.Daily())
	assert.Equal(t, dates.Period{Start: "2026-02-19", End: "2026-02-19"}, r.Yesterday())
	assert.Equal(t, dates.Period{Start: "2026-02-16", End: "2026-02-20"}, r.WTD())
	assert.Equal(t, dates.Period{Start: "2026-02-01", End: "2026-02-20"}, r.MTD())
	assert.Equal(t, dates.Period{Start: "2026-02-01", End: "2026-02-28"}, r.FullMonth())
	assert.Equal(t, dates.Period{Start: "2026-01-01", End: "2026-02-20"}, r.QTD())
	assert.Equal(t, dates.Period{Start: "2026-01-01", End: "2026-02-20"}, r.YTD())
}

func TestComparativePeriods(t *testing.T) {
	t.Parallel()

	r := dates.NewReport(feb20)

	wow := r.WoW()
	assert.Equal(t, dates.Period{Start: "2026-02-09", End: "2026-02-13"}, wow.Previous)

	mom := r.MoM()
	assert.Equal(t, dates.Period{Start: "2026-01-01", End: "2026-01-31"}, mom.Previous)

	cmtd := r.CMTDvsPMTD()
	assert.Equal(t, dates.Period{Start: "2026-01-01", End: "2026-01-20"}, cmtd.Previous)

	mtdPY := r.MTDCYvsPY()
	assert.Equal(t, dates.Period{Start: "2025-02-01", End: "2025-02-20"}, mtdPY.Previous)

	ytdPY := r.YTDCYvsPY()
	assert.Equal(t, dates.Period{Start: "2025-01-01", End: "2025-02-20"}, ytdPY.Previous)

	qtd := r.QTDvsPQ()
	// 50 days into Q1 maps to 50 days into the prior Q4.
	assert.Equal(t, dates.Period{Start: "2025-10-01", End: "2025-11-20"}, qtd.Previous)

	qtdPY := r.QTDvsPQPY()
	assert.Equal(t, dates.Period{Start: "2025-01-01", End: "2025-02-20"}, qtdPY.Previous)
}

func TestClampToShortMonth(t *testing.T) {
	t.Parallel()

	// March 31st: previous month has no day 31.
	r := dates.NewReport(time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))

	cmtd := r.CMTDvsPMTD()
	assert.Equal(t, dates.Period{Start: "2026-02-01", End: "2026-02-28"}, cmtd.Previous)
}

func TestBuildPeriodFilter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ServiceDate eq 2026-02-20",
		dates.BuildPeriodFilter("ServiceDate", "2026-02-20", "2026-02-20"))
	assert.Equal(t, "ServiceDate ge 2026-02-16 and ServiceDate le 2026-02-20",
		dates.BuildPeriodFilter("ServiceDate", "2026-02-16", "2026-02-20"))
}

func TestPeriodFilterRoundTrip(t *testing.T) {
	t.Parallel()

	tcs := map[string]dates.Period{
		"weekly":     {Start: "2026-02-16", End: "2026-02-20"},
		"single day": {Start: "2026-02-20", End: "2026-02-20"},
		"full month": {Start: "2026-02-01", End: "2026-02-28"},
	}

	for name, period := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			filter := dates.BuildPeriodFilter("ServiceDate", period.Start, period.End)
			gotMin, gotMax := odata.ExtractDateRange(filter, "ServiceDate")

			assert.Equal(t, period.Start, gotMin)
			assert.Equal(t, period.End, gotMax)
		})
	}
}
