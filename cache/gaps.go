package cache

import (
	"time"
)

// Gap is a date sub-range not yet covered by a table's cache. Either bound
// may be empty, meaning open-ended.
type Gap struct {
	Min string
	Max string
}

const dayLayout = "2006-01-02"

// ComputeDateGaps compares the cached inclusive range with the requested
// one and returns the ranges still to fetch. No cache yields the request
// unchanged; a fully covered request yields nothing. Open-ended request
// bounds produce open-ended gaps beyond the cached range.
func ComputeDateGaps(existingMin, existingMax, requestedMin, requestedMax string) []Gap {
	if existingMin == "" || existingMax == "" {
		return []Gap{{Min: requestedMin, Max: requestedMax}}
	}

	eMin, err := time.Parse(dayLayout, existingMin)
	if err != nil {
		return []Gap{{Min: requestedMin, Max: requestedMax}}
	}

	eMax, err := time.Parse(dayLayout, existingMax)
	if err != nil {
		return []Gap{{Min: requestedMin, Max: requestedMax}}
	}

	var gaps []Gap

	// Left of the cached range.
	leftEnd := eMin.AddDate(0, 0, -1).Format(dayLayout)

	if requestedMin == "" {
		gaps = append(gaps, Gap{Max: leftEnd})
	} else if rMin, err := time.Parse(dayLayout, requestedMin); err == nil && rMin.Before(eMin) {
		gaps = append(gaps, Gap{Min: requestedMin, Max: leftEnd})
	}

	// Right of the cached range.
	rightStart := eMax.AddDate(0, 0, 1).Format(dayLayout)

	if requestedMax == "" {
		gaps = append(gaps, Gap{Min: rightStart})
	} else if rMax, err := time.Parse(dayLayout, requestedMax); err == nil && rMax.After(eMax) {
		gaps = append(gaps, Gap{Min: rightStart, Max: requestedMax})
	}

	return gaps
}

// WithTodayRefresh appends a (today, today) gap when the requested range
// touches the current date, so same-day rows already cached are refetched.
// Applies only when a cache exists for the table. Duplicate gaps are
// removed.
func WithTodayRefresh(gaps []Gap, requestedMax string, today time.Time) []Gap {
	day := today.Format(dayLayout)

	if requestedMax != "" && requestedMax < day {
		return gaps
	}

	gaps = append(gaps, Gap{Min: day, Max: day})

	seen := map[Gap]bool{}
	out := gaps[:0]

	for _, gap := range gaps {
		if !seen[gap] {
			seen[gap] = true

			out = append(out, gap)
		}
	}

	return out
}
