// Package schema holds per-tenant knowledge about the remote database:
// table and field descriptors parsed from DDL, field annotations from the
// $metadata document, and operational context hints loaded from the context
// table. The [Store] is the process-wide home for all of it, replaced
// wholesale on tenant switch.
package schema

// SemanticType is the simplified type vocabulary fields are mapped into,
// from DDL column types or Edm types.
type SemanticType string

const (
	TypeText     SemanticType = "text"
	TypeNumber   SemanticType = "number"
	TypeDecimal  SemanticType = "decimal"
	TypeBoolean  SemanticType = "boolean"
	TypeDate     SemanticType = "date"
	TypeDatetime SemanticType = "datetime"
	TypeBinary   SemanticType = "binary"
	TypeUnknown  SemanticType = "unknown"
)

// IsDate reports whether values of the type carry a calendar date.
func (t SemanticType) IsDate() bool {
	return t == TypeDate || t == TypeDatetime
}

// Tier classifies how useful a field is to a consumer browsing the schema.
type Tier string

const (
	// TierKey marks primary and foreign key fields. Always shown.
	TierKey Tier = "key"
	// TierStandard marks ordinary business fields. Shown by default.
	TierStandard Tier = "standard"
	// TierInternal marks calculation, summary, global, and UI-cache
	// fields. Hidden unless explicitly requested.
	TierInternal Tier = "internal"
)

// Field describes one column of a table.
type Field struct {
	Type        SemanticType
	Tier        Tier
	PK          bool
	FK          bool
	Description string
}

// Table maps field name to descriptor.
type Table map[string]Field

// Annotations carries the recognized $metadata annotations for one field.
type Annotations struct {
	Calculation bool
	Summary     bool
	Global      bool
	Comment     string
}

// internal reports whether the annotations force the internal tier.
func (a Annotations) internal() bool {
	return a.Calculation || a.Summary || a.Global
}

// CacheMode selects how a table is cached.
type CacheMode int

const (
	// CacheNone disables caching; every query goes to the server.
	CacheNone CacheMode = iota
	// CacheDateRange caches progressively by ranges of a date field.
	CacheDateRange
	// CacheAll caches the whole table on first access.
	CacheAll
)

// CachePolicy is the resolved caching instruction for a table. DateField is
// set only for [CacheDateRange].
type CachePolicy struct {
	Mode      CacheMode
	DateField string
}

// ContextKey identifies one operational context entry. Field is empty for
// table-level entries.
type ContextKey struct {
	Table string
	Field string
	Type  string
}

// ContextEntry is a context hint with its key, as returned by table-scoped
// listings.
type ContextEntry struct {
	Field string
	Type  string
	Value string
}

// ScriptState records whether the server-side DDL script is available on
// the active tenant.
type ScriptState int

const (
	ScriptUnknown ScriptState = iota
	ScriptAvailable
	ScriptUnavailable
)
