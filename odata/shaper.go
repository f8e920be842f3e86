package odata

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Date literal patterns the shaper recognizes in $filter expressions.
var (
	// Quoted ISO date with an optional time component inside the quotes:
	// '2026-02-14' or "2026-02-14T00:00:00Z".
	quotedISORE = regexp.MustCompile(`['"](\d{4}-\d{2}-\d{2})(?:T[^'"]*)?['"]`)

	// ISO timestamp suffix: 2026-02-14T00:00:00, ...T14:30:00Z, ...T14:30:00-05:00.
	isoTimestampRE = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})T\d{2}:\d{2}:\d{2}[Z\d:.+\-]*`)

	// US date with optional clock time: M/D/YYYY or MM/DD/YYYY HH:MM:SS AM.
	usDateRE = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+\d{1,2}:\d{2}:\d{2}\s*(?:AM|PM)?)?`)

	// Bare ISO date still wrapped in quotes after conversion.
	quotedBareISORE = regexp.MustCompile(`['"](\d{4}-\d{2}-\d{2})['"]`)
)

// NormalizeDatesInFilter rewrites date literals in an OData $filter
// expression into the bare ISO form (YYYY-MM-DD) the server requires.
//
// Four transformations are applied in order: surrounding quotes are stripped
// from ISO-shaped literals, time-and-zone suffixes are stripped from ISO
// datetimes, US-format dates (M/D/YYYY, optional trailing clock time) are
// converted to ISO form, and quotes that now surround converted literals are
// stripped again. The function is idempotent and passes empty input through.
func NormalizeDatesInFilter(filter string) string {
	if filter == "" {
		return filter
	}

	filter = quotedISORE.ReplaceAllString(filter, "$1")
	filter = isoTimestampRE.ReplaceAllString(filter, "$1")

	filter = usDateRE.ReplaceAllStringFunc(filter, func(m string) string {
		sub := usDateRE.FindStringSubmatch(m)
		month, _ := strconv.Atoi(sub[1])
		day, _ := strconv.Atoi(sub[2])

		return fmt.Sprintf("%s-%02d-%02d", sub[3], month, day)
	})

	return quotedBareISORE.ReplaceAllString(filter, "$1")
}

// QuoteFieldsInSelect wraps each field name in a $select list with double
// quotes. Quoting is required for names containing spaces and harmless for
// the rest, so every name is quoted unconditionally.
//
//	Input:  Customer Name,City,Zone
//	Output: "Customer Name","City","Zone"
func QuoteFieldsInSelect(selectList string) string {
	if selectList == "" {
		return selectList
	}

	var fields []string

	for field := range strings.SplitSeq(selectList, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		if !strings.HasPrefix(field, `"`) {
			field = `"` + field + `"`
		}

		fields = append(fields, field)
	}

	return strings.Join(fields, ",")
}

// QuoteFieldsInOrderBy wraps the identifier portion of each $orderby clause
// with double quotes, preserving any trailing asc/desc direction verbatim.
//
//	Input:  Customer Name asc,City desc
//	Output: "Customer Name" asc,"City" desc
func QuoteFieldsInOrderBy(orderby string) string {
	if orderby == "" {
		return orderby
	}

	var parts []string

	for clause := range strings.SplitSeq(orderby, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		direction := ""
		lower := strings.ToLower(clause)

		for _, suffix := range []string{" asc", " desc"} {
			if strings.HasSuffix(lower, suffix) {
				direction = " " + strings.TrimSpace(clause[len(clause)-len(suffix)+1:])
				clause = strings.TrimSpace(clause[:len(clause)-len(suffix)+1])

				break
			}
		}

		if !strings.HasPrefix(clause, `"`) {
			clause = `"` + clause + `"`
		}

		parts = append(parts, clause+direction)
	}

	return strings.Join(parts, ",")
}

var (
	// First argument of the OData string functions the server supports.
	filterFuncRE = regexp.MustCompile(`(contains|startswith|endswith)\(([^,]+),(.*?)\)`)

	// Boolean connectives at the top level of a filter, with surrounding
	// whitespace.
	connectiveRE = regexp.MustCompile(`\s+(?:and|or)\s+`)

	// A single comparison clause: identifier, comparator, value.
	comparisonRE = regexp.MustCompile(`^(.*?)\s+(eq|ne|gt|ge|lt|le)\s+(.*)$`)
)

// QuoteFieldsInFilter wraps field names in an OData $filter expression with
// double quotes, leaving string literals, numbers, bare ISO dates,
// comparators, and boolean connectives untouched. Field names are recognized
// in two positions: the left side of a comparison clause, and the first
// argument of contains, startswith, and endswith. Already-quoted names pass
// through unchanged.
//
//	Input:  Customer Name eq 'Smith' and ServiceDate ge 2026-02-14
//	Output: "Customer Name" eq 'Smith' and "ServiceDate" ge 2026-02-14
func QuoteFieldsInFilter(filter string) string {
	if filter == "" {
		return filter
	}

	filter = filterFuncRE.ReplaceAllStringFunc(filter, func(m string) string {
		sub := filterFuncRE.FindStringSubmatch(m)
		field := strings.TrimSpace(sub[2])

		if !strings.HasPrefix(field, `"`) {
			field = `"` + field + `"`
		}

		return sub[1] + "(" + field + "," + sub[3] + ")"
	})

	var sb strings.Builder

	for _, part := range splitKeepSeparators(filter, connectiveRE) {
		if part.separator {
			sb.WriteString(part.text)

			continue
		}

		sub := comparisonRE.FindStringSubmatch(strings.TrimSpace(part.text))
		if sub == nil {
			sb.WriteString(part.text)

			continue
		}

		field := strings.TrimSpace(sub[1])
		if !strings.HasPrefix(field, `"`) {
			field = `"` + field + `"`
		}

		leading := part.text[:len(part.text)-len(strings.TrimLeft(part.text, " \t"))]
		sb.WriteString(leading + field + " " + sub[2] + " " + strings.TrimSpace(sub[3]))
	}

	return sb.String()
}

// filterPart is one segment of a filter split on boolean connectives.
type filterPart struct {
	text      string
	separator bool
}

// splitKeepSeparators splits s on re, keeping the separator segments in
// place so the expression can be reassembled verbatim.
func splitKeepSeparators(s string, re *regexp.Regexp) []filterPart {
	var parts []filterPart

	last := 0

	for _, loc := range re.FindAllStringIndex(s, -1) {
		parts = append(parts,
			filterPart{text: s[last:loc[0]]},
			filterPart{text: s[loc[0]:loc[1]], separator: true},
		)
		last = loc[1]
	}

	return append(parts, filterPart{text: s[last:]})
}

// Date comparison clauses scanned by [ExtractDateRange]. Field names may or
// may not already be quoted.
var dateRangeRE = regexp.MustCompile(`"?([\w][\w ]*?)"?\s+(ge|gt|le|lt|eq)\s+(\d{4}-\d{2}-\d{2})`)

// ExtractDateRange scans an OData $filter for comparisons against the named
// date field and returns the inclusive (min, max) ISO date bounds found.
// ge/gt set the lower bound, le/lt set the upper bound, and eq sets both.
// An empty string means the bound is absent (open-ended).
func ExtractDateRange(filter, dateField string) (minDate, maxDate string) {
	if filter == "" || dateField == "" {
		return "", ""
	}

	for _, sub := range dateRangeRE.FindAllStringSubmatch(filter, -1) {
		if strings.TrimSpace(sub[1]) != dateField {
			continue
		}

		switch sub[2] {
		case "eq":
			minDate, maxDate = sub[3], sub[3]
		case "ge", "gt":
			minDate = sub[3]
		case "le", "lt":
			maxDate = sub[3]
		}
	}

	return minDate, maxDate
}

// EncodeQuery encodes OData query parameters into a query string the server
// accepts: spaces become %20 (never +), and the characters $ , / ' pass
// through unencoded. Keys are emitted in sorted order for determinism.
func EncodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var sb strings.Builder

	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}

		sb.WriteString(escapeParam(k))
		sb.WriteByte('=')
		sb.WriteString(escapeParam(params[k]))
	}

	return sb.String()
}

// escapeParam percent-encodes a query component, keeping unreserved
// characters plus the server-required literals $ , / ' intact.
func escapeParam(s string) string {
	const hex = "0123456789ABCDEF"

	var sb strings.Builder

	for i := 0; i < len(s); i++ {
		c := s[i]

		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c == '-' || c == '_' || c == '.' || c == '~':
			sb.WriteByte(c)
		case c == '$' || c == ',' || c == '/' || c == '\'':
			sb.WriteByte(c)
		default:
			sb.WriteByte('%')
			sb.WriteByte(hex[c>>4])
			sb.WriteByte(hex[c&0xf])
		}
	}

	return sb.String()
}
