package frame

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Comparison operators the in-memory evaluator supports.
const (
	OpEq = "eq"
	OpNe = "ne"
	OpGt = "gt"
	OpGe = "ge"
	OpLt = "lt"
	OpLe = "le"
)

// Clause is one comparison in a filter expression. Connective is the
// boolean operator joining this clause to the previous one ("" for the
// first, "and" or "or" after).
type Clause struct {
	Field      string
	Op         string
	Value      string
	Connective string
}

var (
	clauseConnectiveRE = regexp.MustCompile(`\s+(and|or)\s+`)
	clauseCompareRE    = regexp.MustCompile(`^(.*?)\s+(eq|ne|gt|ge|lt|le)\s+(.*)$`)
	isoDateRE          = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ParseFilter splits an OData filter into flat comparison clauses joined
// by and/or. Grouping parentheses are not supported; clauses that do not
// parse as comparisons are dropped.
func ParseFilter(filter string) []Clause {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil
	}

	var clauses []Clause

	connective := ""
	last := 0

	emit := func(text string) {
		if sub := clauseCompareRE.FindStringSubmatch(strings.TrimSpace(text)); sub != nil {
			clauses = append(clauses, Clause{
				Field:      strings.Trim(strings.TrimSpace(sub[1]), `"`),
				Op:         sub[2],
				Value:      strings.TrimSpace(sub[3]),
				Connective: connective,
			})
		}
	}

	for _, loc := range clauseConnectiveRE.FindAllStringSubmatchIndex(filter, -1) {
		emit(filter[last:loc[0]])
		connective = filter[loc[2]:loc[3]]
		last = loc[1]
	}

	emit(filter[last:])

	return clauses
}

// Filter returns the rows matching the filter expression. Clauses combine
// left to right with and/or, no precedence. Comparisons that cannot be
// represented for a row (non-numeric value under an ordering comparator,
// unparseable date) evaluate false rather than failing.
func (f *Frame) Filter(filter string) *Frame {
	clauses := ParseFilter(filter)
	if len(clauses) == 0 {
		return f
	}

	out := &Frame{Columns: f.Columns, DateCols: f.DateCols}

	for _, row := range f.Rows {
		matched := false

		for i, clause := range clauses {
			hit := f.matches(row, clause)

			if i == 0 {
				matched = hit
			} else if clause.Connective == "or" {
				matched = matched || hit
			} else {
				matched = matched && hit
			}
		}

		if matched {
			out.Rows = append(out.Rows, row)
		}
	}

	return out
}

func (f *Frame) matches(row Row, clause Clause) bool {
	value := row[clause.Field]

	// Date columns compare by calendar day against ISO literals.
	if f.DateCols[clause.Field] && isoDateRE.MatchString(clause.Value) {
		t, ok := value.(time.Time)
		if !ok {
			return false
		}

		lit, err := time.Parse("2006-01-02", clause.Value)
		if err != nil {
			return false
		}

		// Date() respects the value's own offset; truncating the instant
		// would shift offset-bearing datetimes onto the wrong day.
		y, m, d := t.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

		return compareOrdered(day.Compare(lit), clause.Op)
	}

	// Quoted literals compare as strings.
	if lit, ok := stringLiteral(clause.Value); ok {
		s := asString(value)

		switch clause.Op {
		case OpEq:
			return s == lit
		case OpNe:
			return s != lit
		default:
			return compareOrdered(strings.Compare(s, lit), clause.Op)
		}
	}

	// Numeric literals compare as float64.
	if lit, err := strconv.ParseFloat(clause.Value, 64); err == nil {
		num, ok := asFloat(value)
		if !ok {
			return false
		}

		switch {
		case num < lit:
			return compareOrdered(-1, clause.Op)
		case num > lit:
			return compareOrdered(1, clause.Op)
		default:
			return compareOrdered(0, clause.Op)
		}
	}

	// Bare literal, string equivalence.
	switch clause.Op {
	case OpEq:
		return asString(value) == clause.Value
	case OpNe:
		return asString(value) != clause.Value
	default:
		return false
	}
}

func compareOrdered(cmp int, op string) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	default:
		return false
	}
}

func stringLiteral(s string) (string, bool) {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1], true
		}
	}

	return "", false
}

// SortBy applies comma-separated orderby clauses, each optionally suffixed
// with asc or desc. Sorting is stable, applied per key in reverse clause
// order so the first clause dominates. Missing columns are ignored.
func (f *Frame) SortBy(orderby string) *Frame {
	type sortKey struct {
		column string
		desc   bool
	}

	var keys []sortKey

	for clause := range strings.SplitSeq(orderby, ",") {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			continue
		}

		desc := false
		lower := strings.ToLower(clause)

		switch {
		case strings.HasSuffix(lower, " desc"):
			desc = true
			clause = strings.TrimSpace(clause[:len(clause)-5])
		case strings.HasSuffix(lower, " asc"):
			clause = strings.TrimSpace(clause[:len(clause)-4])
		}

		clause = strings.Trim(clause, `"`)
		if f.HasColumn(clause) {
			keys = append(keys, sortKey{column: clause, desc: desc})
		}
	}

	if len(keys) == 0 {
		return f
	}

	out := &Frame{Columns: f.Columns, DateCols: f.DateCols, Rows: append([]Row(nil), f.Rows...)}

	for i := len(keys) - 1; i >= 0; i-- {
		key := keys[i]

		sort.SliceStable(out.Rows, func(a, b int) bool {
			if key.desc {
				return lessValues(out.Rows[b][key.column], out.Rows[a][key.column])
			}

			return lessValues(out.Rows[a][key.column], out.Rows[b][key.column])
		})
	}

	return out
}

// lessValues orders two cell values: times by instant, numbers by value,
// everything else by string form. Nil sorts first.
func lessValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}

	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Before(bt)
		}
	}

	af, aok := asFloat(a)
	bf, bok := asFloat(b)

	if aok && bok {
		return af < bf
	}

	return asString(a) < asString(b)
}
