// Package dates computes the date ranges behind recurring report patterns
// (daily, week to date, month over month, and so on) from a single current
// date, and turns a range into an OData filter expression. It knows nothing
// about tables or fields; callers pass field names in.
package dates

import (
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Period is an inclusive ISO date range.
type Period struct {
	Start string
	End   string
}

// Comparison pairs a current period with the prior period it is measured
// against.
type Comparison struct {
	Current  Period
	Previous Period
}

// Report computes report periods relative to a fixed current date.
type Report struct {
	today time.Time
}

// NewReport returns a Report anchored at the given date. Only the calendar
// day matters.
func NewReport(today time.Time) *Report {
	y, m, d := today.Date()

	return &Report{today: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

func iso(t time.Time) string {
	return t.Format(dayLayout)
}

// monthEnd returns the last day of the month containing t.
func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// quarterStart returns the first day of the quarter containing t.
func quarterStart(t time.Time) time.Time {
	month := time.Month(((int(t.Month())-1)/3)*3 + 1)

	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, time.UTC)
}

// monday returns the Monday of the week containing t.
func monday(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7

	return t.AddDate(0, 0, -offset)
}

// clampDay returns the date in year/month at day, clamped to the month's
// last day.
func clampDay(year int, month time.Month, day int) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	if day > last.Day() {
		return last
	}

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Daily is today alone.
func (r *Report) Daily() Period {
	return Period{Start: iso(r.today), End: iso(r.today)}
}

// Yesterday is the prior day alone.
func (r *Report) Yesterday() Period {
	y := iso(r.today.AddDate(0, 0, -1))

	return Period{Start: y, End: y}
}

// WTD is Monday of the current week through today.
func (r *Report) WTD() Period {
	return Period{Start: iso(monday(r.today)), End: iso(r.today)}
}

// MTD is the first of the current month through today.
func (r *Report) MTD() Period {
	start := time.Date(r.today.Year(), r.today.Month(), 1, 0, 0, 0, 0, time.UTC)

	return Period{Start: iso(start), End: iso(r.today)}
}

// FullMonth is the entire current month.
func (r *Report) FullMonth() Period {
	start := time.Date(r.today.Year(), r.today.Month(), 1, 0, 0, 0, 0, time.UTC)

	return Period{Start: iso(start), End: iso(monthEnd(r.today))}
}

// QTD is the start of the current quarter through today.
func (r *Report) QTD() Period {
	return Period{Start: iso(quarterStart(r.today)), End: iso(r.today)}
}

// YTD is January 1st through today.
func (r *Report) YTD() Period {
	start := time.Date(r.today.Year(), 1, 1, 0, 0, 0, 0, time.UTC)

	return Period{Start: iso(start), End: iso(r.today)}
}

// DoD compares today with yesterday.
func (r *Report) DoD() Comparison {
	return Comparison{Current: r.Daily(), Previous: r.Yesterday()}
}

// WoW compares the current WTD with the same days of the previous week.
func (r *Report) WoW() Comparison {
	mon := monday(r.today)
	prevMonday := mon.AddDate(0, 0, -7)
	prevEnd := prevMonday.AddDate(0, 0, int(r.today.Sub(mon).Hours()/24))

	return Comparison{
		Current:  r.WTD(),
		Previous: Period{Start: iso(prevMonday), End: iso(prevEnd)},
	}
}

// MoM compares the full current month with the full previous month.
func (r *Report) MoM() Comparison {
	prevStart := time.Date(r.today.Year(), r.today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)

	return Comparison{
		Current:  r.FullMonth(),
		Previous: Period{Start: iso(prevStart), End: iso(monthEnd(prevStart))},
	}
}

// CMTDvsPMTD compares the current MTD with the previous month through the
// same day of month (clamped to the shorter month).
func (r *Report) CMTDvsPMTD() Comparison {
	prevStart := time.Date(r.today.Year(), r.today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	prevEnd := clampDay(prevStart.Year(), prevStart.Month(), r.today.Day())

	return Comparison{
		Current:  r.MTD(),
		Previous: Period{Start: iso(prevStart), End: iso(prevEnd)},
	}
}

// MTDCYvsPY compares the current MTD with the same month of the prior
// year through the same day.
func (r *Report) MTDCYvsPY() Comparison {
	prevStart := time.Date(r.today.Year()-1, r.today.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevEnd := clampDay(prevStart.Year(), prevStart.Month(), r.today.Day())

	return Comparison{
		Current:  r.MTD(),
		Previous: Period{Start: iso(prevStart), End: iso(prevEnd)},
	}
}

// YTDCYvsPY compares the current YTD with the prior year through the same
// month and day.
func (r *Report) YTDCYvsPY() Comparison {
	prevStart := time.Date(r.today.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC)
	prevEnd := clampDay(r.today.Year()-1, r.today.Month(), r.today.Day())

	return Comparison{
		Current:  r.YTD(),
		Previous: Period{Start: iso(prevStart), End: iso(prevEnd)},
	}
}

// QTDvsPQ compares the current QTD with the previous quarter at the same
// offset into the quarter.
func (r *Report) QTDvsPQ() Comparison {
	qStart := quarterStart(r.today)
	offsetDays := int(r.today.Sub(qStart).Hours() / 24)

	var prevQStart time.Time
	if qStart.Month() == time.January {
		prevQStart = time.Date(r.today.Year()-1, time.October, 1, 0, 0, 0, 0, time.UTC)
	} else {
		prevQStart = time.Date(r.today.Year(), qStart.Month()-3, 1, 0, 0, 0, 0, time.UTC)
	}

	return Comparison{
		Current:  r.QTD(),
		Previous: Period{Start: iso(prevQStart), End: iso(prevQStart.AddDate(0, 0, offsetDays))},
	}
}

// QTDvsPQPY compares the current QTD with the same quarter of the prior
// year through the same month and day.
func (r *Report) QTDvsPQPY() Comparison {
	qStart := quarterStart(r.today)
	prevQStart := time.Date(r.today.Year()-1, qStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	prevEnd := clampDay(r.today.Year()-1, r.today.Month(), r.today.Day())

	return Comparison{
		Current:  r.QTD(),
		Previous: Period{Start: iso(prevQStart), End: iso(prevEnd)},
	}
}

// BuildPeriodFilter renders a period as an OData filter on the given date
// field: an eq comparison when the period is a single day, else a ge/le
// pair.
func BuildPeriodFilter(dateField, start, end string) string {
	if start == end {
		return fmt.Sprintf("%s eq %s", dateField, start)
	}

	return fmt.Sprintf("%s ge %s and %s le %s", dateField, start, dateField, end)
}
