package frame

import (
	"strings"
)

// Render formats the frame as an aligned text table: a header row, then
// one line per row, columns padded to their widest cell and separated by
// two spaces.
func (f *Frame) Render() string {
	if len(f.Columns) == 0 {
		return "(empty)"
	}

	widths := make([]int, len(f.Columns))
	for i, col := range f.Columns {
		widths[i] = len(col)
	}

	cells := make([][]string, len(f.Rows))

	for r, row := range f.Rows {
		cells[r] = make([]string, len(f.Columns))

		for i, col := range f.Columns {
			s := asString(row[col])
			cells[r][i] = s

			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}

	var sb strings.Builder

	writeLine := func(fields []string) {
		for i, s := range fields {
			if i > 0 {
				sb.WriteString("  ")
			}

			sb.WriteString(s)

			if i < len(fields)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-len(s)))
			}
		}

		sb.WriteByte('\n')
	}

	writeLine(f.Columns)

	for _, row := range cells {
		writeLine(row)
	}

	return strings.TrimRight(sb.String(), "\n")
}
