package frame

import (
	"fmt"
	"sort"
	"strings"
)

// Replace applies per-field value mappings to a copy of the frame,
// returning the copy plus a note per field describing how many values each
// mapping changed. Fields absent from the frame and mappings that change
// nothing produce no note. The receiver is never mutated.
func (f *Frame) Replace(mappings map[string]map[string]string) (*Frame, []string) {
	if len(mappings) == 0 {
		return f, nil
	}

	out := f.Copy()

	var notes []string

	fields := make([]string, 0, len(mappings))
	for field := range mappings {
		fields = append(fields, field)
	}

	sort.Strings(fields)

	for _, field := range fields {
		if !out.HasColumn(field) {
			continue
		}

		counts := map[string]int{}

		for _, row := range out.Rows {
			old := asString(row[field])
			if replacement, ok := mappings[field][old]; ok {
				row[field] = replacement
				counts[old]++
			}
		}

		if len(counts) == 0 {
			continue
		}

		olds := make([]string, 0, len(counts))
		for old := range counts {
			olds = append(olds, old)
		}

		sort.Strings(olds)

		changes := make([]string, 0, len(olds))
		for _, old := range olds {
			changes = append(changes, fmt.Sprintf("%s→%s: %d", old, mappings[field][old], counts[old]))
		}

		notes = append(notes, fmt.Sprintf("%s (%s)", field, strings.Join(changes, ", ")))
	}

	return out, notes
}
