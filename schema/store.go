package schema

import (
	"sort"
	"strings"
	"sync"
)

// Context types the engine acts on. The vocabulary is open; unrecognized
// types are stored and surfaced as plain hints.
const (
	ContextFieldValues          = "field_values"
	ContextSyntaxRule           = "syntax_rule"
	ContextQueryPattern         = "query_pattern"
	ContextRelationship         = "relationship"
	ContextValueMap             = "value_map"
	ContextCacheConfig          = "cache_config"
	ContextReportSelect         = "report_select"
	ContextClassificationSource = "classification_source"
	ContextRuleOverride         = "rule_override"
	ContextFieldClass           = "field_class"
)

// Cache-config context values.
const (
	cacheConfigDateKey  = "date_key"
	cacheConfigCacheAll = "cache_all"
)

// Store is the process-wide schema state for the active tenant. All
// methods are safe for concurrent use; one lock suffices because every
// operation is a short map walk.
type Store struct {
	mu          sync.RWMutex
	tables      map[string]Table
	annotations map[string]map[string]Annotations
	context     map[ContextKey]string
	exposed     map[string]string
	script      ScriptState
}

// AutoDiscoveredDescription marks tables added from OData discovery rather
// than a curated catalog.
const AutoDiscoveredDescription = "Auto-discovered from FileMaker OData."

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.reset()

	return s
}

func (s *Store) reset() {
	s.tables = map[string]Table{}
	s.annotations = map[string]map[string]Annotations{}
	s.context = map[ContextKey]string{}
	s.exposed = map[string]string{}
	s.script = ScriptUnknown
}

// Clear drops all schema state. Called on tenant switch.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
}

// ReplaceTables merges parsed table definitions into the store,
// overwriting existing entries by name.
func (s *Store) ReplaceTables(tables map[string]Table) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, table := range tables {
		s.tables[name] = table
	}
}

// Table returns the field definitions for one table, or nil.
func (s *Store) Table(name string) Table {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.tables[name]
}

// Tables returns the known table names, sorted.
func (s *Store) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// MergeExposed adds discovered table names to the exposed set. Names
// already present keep their description; new ones get the
// auto-discovered marker.
func (s *Store) MergeExposed(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range names {
		if _, ok := s.exposed[name]; !ok {
			s.exposed[name] = AutoDiscoveredDescription
		}
	}
}

// SetExposedDescription sets a curated description for an exposed table,
// adding it if absent.
func (s *Store) SetExposedDescription(name, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exposed[name] = description
}

// Exposed returns the exposed tables and their descriptions.
func (s *Store) Exposed() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.exposed))
	for name, desc := range s.exposed {
		out[name] = desc
	}

	return out
}

// ExposedNames returns the exposed table names, sorted.
func (s *Store) ExposedNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.exposed))
	for name := range s.exposed {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// IsExposed reports whether the table is in the exposed set.
func (s *Store) IsExposed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.exposed[name]

	return ok
}

// ReplaceAnnotations merges field annotations into the store.
func (s *Store) ReplaceAnnotations(annotations map[string]map[string]Annotations) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for table, fields := range annotations {
		s.annotations[table] = fields
	}
}

// Annotations returns the field annotations for one table, or nil.
func (s *Store) Annotations(table string) map[string]Annotations {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.annotations[table]
}

// ReplaceContext folds context entries into the context map.
func (s *Store) ReplaceContext(entries map[ContextKey]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, value := range entries {
		s.context[key] = value
	}
}

// UpsertContext sets one context entry.
func (s *Store) UpsertContext(key ContextKey, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.context[key] = value
}

// RemoveContext deletes context entries and reports whether any were
// removed. An empty contextType removes every entry for the table+field
// pair.
func (s *Store) RemoveContext(table, field, contextType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contextType != "" {
		key := ContextKey{Table: table, Field: field, Type: contextType}
		if _, ok := s.context[key]; !ok {
			return false
		}

		delete(s.context, key)

		return true
	}

	removed := false

	for key := range s.context {
		if key.Table == table && key.Field == field {
			delete(s.context, key)

			removed = true
		}
	}

	return removed
}

// FieldContext returns the hints for one field joined across context types
// with "; ", or empty when none exist.
func (s *Store) FieldContext(table, field string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hints []string

	for _, key := range s.sortedContextKeys() {
		if key.Table == table && key.Field == field {
			hints = append(hints, s.context[key])
		}
	}

	return strings.Join(hints, "; ")
}

// TableContext returns every context entry for a table, field-level and
// table-level, sorted by field then type.
func (s *Store) TableContext(table string) []ContextEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []ContextEntry

	for _, key := range s.sortedContextKeys() {
		if key.Table == table {
			entries = append(entries, ContextEntry{Field: key.Field, Type: key.Type, Value: s.context[key]})
		}
	}

	return entries
}

// ContextValue looks up a single context value by table, type, and field
// (empty for table-level). Missing entries return empty.
func (s *Store) ContextValue(table, contextType, field string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.context[ContextKey{Table: table, Field: field, Type: contextType}]
}

// sortedContextKeys returns the context keys in deterministic order. Caller
// holds the lock.
func (s *Store) sortedContextKeys() []ContextKey {
	keys := make([]ContextKey, 0, len(s.context))
	for key := range s.context {
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Table != keys[j].Table {
			return keys[i].Table < keys[j].Table
		}

		if keys[i].Field != keys[j].Field {
			return keys[i].Field < keys[j].Field
		}

		return keys[i].Type < keys[j].Type
	})

	return keys
}

// PrimaryKey returns the table's first PK-flagged field, or the literal
// "PrimaryKey" when no field carries the flag.
func (s *Store) PrimaryKey(table string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := s.tables[table]

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		if fields[name].PK {
			return name
		}
	}

	return "PrimaryKey"
}

// DateFields returns the table's date and datetime field names, sorted.
func (s *Store) DateFields(table string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string

	for name, field := range s.tables[table] {
		if field.Type.IsDate() {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// CachePolicy resolves the table's caching instruction from cache_config
// context entries. An entry at (table, dateField, cache_config) with value
// "date_key" yields the date-range policy bound to that field; a
// table-level entry with value "cache_all" yields the all-rows policy.
func (s *Store) CachePolicy(table string) CachePolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.sortedContextKeys() {
		if key.Table != table || key.Type != ContextCacheConfig {
			continue
		}

		switch s.context[key] {
		case cacheConfigDateKey:
			return CachePolicy{Mode: CacheDateRange, DateField: key.Field}
		case cacheConfigCacheAll:
			return CachePolicy{Mode: CacheAll}
		}
	}

	return CachePolicy{Mode: CacheNone}
}

// ScriptAvailability returns the cached DDL-script availability state.
func (s *Store) ScriptAvailability() ScriptState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.script
}

// SetScriptAvailability records whether the DDL script answered.
func (s *Store) SetScriptAvailability(state ScriptState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.script = state
}
