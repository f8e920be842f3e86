package schema

import (
	"regexp"
	"strings"
)

// DDL shapes produced by the server-side GetTableDDL script.
var (
	createTableRE = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+"([^"]+)"\s*\((.*?)\);`)
	fieldRE       = regexp.MustCompile(`(?i)"([^"]+)"\s+(varchar\(\d+\)|int|datetime|varbinary\(\d+\))`)
	primaryKeyRE  = regexp.MustCompile(`(?i)PRIMARY\s+KEY\s*\(([^)]+)\)`)
	foreignKeyRE  = regexp.MustCompile(`(?i)FOREIGN\s+KEY\s*\(([^)]+)\)`)
)

// ParseDDL parses CREATE TABLE statements into table definitions, attaching
// $metadata annotations when given. Column types map varchar to text, int to
// number, datetime to datetime, and varbinary to binary. PK/FK flags come
// from the PRIMARY KEY and FOREIGN KEY clauses; fields named _kp_* or _kf_*
// carry the flag even when the DDL omits the constraint.
func ParseDDL(ddl string, annotations map[string]map[string]Annotations) map[string]Table {
	if strings.TrimSpace(ddl) == "" {
		return map[string]Table{}
	}

	tables := map[string]Table{}

	for _, match := range createTableRE.FindAllStringSubmatch(ddl, -1) {
		name, body := match[1], match[2]

		pkFields := constraintFields(primaryKeyRE, body)
		fkFields := constraintFields(foreignKeyRE, body)

		fields := Table{}

		for _, fm := range fieldRE.FindAllStringSubmatch(body, -1) {
			fieldName, sqlType := fm[1], fm[2]
			ann, hasAnn := annotations[name][fieldName]

			field := Field{
				Type: mapSQLType(sqlType),
				Tier: assignTier(fieldName, ann, hasAnn),
				PK:   pkFields[fieldName] || strings.HasPrefix(fieldName, "_kp_"),
				FK:   fkFields[fieldName] || strings.HasPrefix(fieldName, "_kf_"),
			}

			if hasAnn {
				field.Description = ann.Comment
			}

			fields[fieldName] = field
		}

		tables[name] = fields
	}

	return tables
}

// TableNames returns the CREATE TABLE names in a DDL blob, in order. These
// are the true base tables, excluding table occurrences the entity-set list
// may contain.
func TableNames(ddl string) []string {
	var names []string

	for _, match := range createTableRE.FindAllStringSubmatch(ddl, -1) {
		names = append(names, match[1])
	}

	return names
}

// constraintFields extracts the quoted field list of a constraint clause.
func constraintFields(re *regexp.Regexp, body string) map[string]bool {
	fields := map[string]bool{}

	for _, match := range re.FindAllStringSubmatch(body, -1) {
		for name := range strings.SplitSeq(match[1], ",") {
			name = strings.Trim(strings.TrimSpace(name), `"`)
			if name != "" {
				fields[name] = true
			}
		}
	}

	return fields
}

// mapSQLType maps a FileMaker SQL column type to a [SemanticType].
func mapSQLType(sqlType string) SemanticType {
	base, _, _ := strings.Cut(strings.ToLower(sqlType), "(")

	switch base {
	case "varchar":
		return TypeText
	case "int":
		return TypeNumber
	case "datetime":
		return TypeDatetime
	case "varbinary":
		return TypeBinary
	default:
		return TypeText
	}
}

// assignTier classifies a field, first match wins: key-prefixed names are
// always key; annotated calculation/summary/global fields are internal;
// _sp_ and global-style names (g+Upper, G_) are internal; the rest are
// standard.
func assignTier(name string, ann Annotations, hasAnn bool) Tier {
	if strings.HasPrefix(name, "_kp_") || strings.HasPrefix(name, "_kf_") {
		return TierKey
	}

	if hasAnn && ann.internal() {
		return TierInternal
	}

	if strings.HasPrefix(name, "_sp_") {
		return TierInternal
	}

	if len(name) > 1 && name[0] == 'g' && name[1] >= 'A' && name[1] <= 'Z' {
		return TierInternal
	}

	if strings.HasPrefix(name, "G_") {
		return TierInternal
	}

	return TierStandard
}
