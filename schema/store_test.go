package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/fmgate/schema"
)

func newPopulatedStore() *schema.Store {
	s := schema.NewStore()

	s.ReplaceTables(map[string]schema.Table{
		"Orders": {
			"_kp_OrderID": {Type: schema.TypeText, Tier: schema.TierKey, PK: true},
			"ServiceDate": {Type: schema.TypeDatetime, Tier: schema.TierStandard},
			"CreatedAt":   {Type: schema.TypeDatetime, Tier: schema.TierStandard},
			"Amount":      {Type: schema.TypeNumber, Tier: schema.TierStandard},
		},
		"Zones": {
			"Name": {Type: schema.TypeText, Tier: schema.TierStandard},
		},
	})
	s.MergeExposed([]string{"Orders", "Zones"})

	return s
}

func TestStorePrimaryKey(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()

	assert.Equal(t, "_kp_OrderID", s.PrimaryKey("Orders"))

	// No PK flag anywhere falls back to the conventional name.
	assert.Equal(t, "PrimaryKey", s.PrimaryKey("Zones"))
	assert.Equal(t, "PrimaryKey", s.PrimaryKey("NoSuchTable"))
}

func TestStoreDateFields(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()

	assert.Equal(t, []string{"CreatedAt", "ServiceDate"}, s.DateFields("Orders"))
	assert.Empty(t, s.DateFields("Zones"))
}

func TestStoreFieldContext(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "Status", Type: schema.ContextFieldValues}, "Open, Closed")
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "Status", Type: schema.ContextSyntaxRule}, "quote values")

	assert.Equal(t, "Open, Closed; quote values", s.FieldContext("Orders", "Status"))
	assert.Empty(t, s.FieldContext("Orders", "Amount"))
}

func TestStoreTableContext(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "", Type: schema.ContextQueryPattern}, "filter by ServiceDate")
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "Status", Type: schema.ContextFieldValues}, "Open, Closed")
	s.UpsertContext(schema.ContextKey{Table: "Zones", Field: "", Type: schema.ContextQueryPattern}, "other table")

	entries := s.TableContext("Orders")
	require.Len(t, entries, 2)
	assert.Equal(t, schema.ContextEntry{Type: schema.ContextQueryPattern, Value: "filter by ServiceDate"}, entries[0])
	assert.Equal(t, schema.ContextEntry{Field: "Status", Type: schema.ContextFieldValues, Value: "Open, Closed"}, entries[1])
}

func TestStoreRemoveContext(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "Status", Type: schema.ContextFieldValues}, "Open")
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "Status", Type: schema.ContextSyntaxRule}, "quote")

	assert.False(t, s.RemoveContext("Orders", "Status", "no_such_type"))
	assert.True(t, s.RemoveContext("Orders", "Status", schema.ContextFieldValues))
	assert.Empty(t, s.ContextValue("Orders", schema.ContextFieldValues, "Status"))

	// Empty type removes everything for the pair.
	assert.True(t, s.RemoveContext("Orders", "Status", ""))
	assert.Empty(t, s.FieldContext("Orders", "Status"))
	assert.False(t, s.RemoveContext("Orders", "Status", ""))
}

func TestStoreCachePolicy(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "ServiceDate", Type: schema.ContextCacheConfig}, "date_key")
	s.UpsertContext(schema.ContextKey{Table: "Zones", Field: "", Type: schema.ContextCacheConfig}, "cache_all")

	assert.Equal(t, schema.CachePolicy{Mode: schema.CacheDateRange, DateField: "ServiceDate"}, s.CachePolicy("Orders"))
	assert.Equal(t, schema.CachePolicy{Mode: schema.CacheAll}, s.CachePolicy("Zones"))
	assert.Equal(t, schema.CachePolicy{Mode: schema.CacheNone}, s.CachePolicy("NoSuchTable"))
}

func TestStoreClear(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()
	s.UpsertContext(schema.ContextKey{Table: "Orders", Field: "ServiceDate", Type: schema.ContextCacheConfig}, "date_key")
	s.SetScriptAvailability(schema.ScriptAvailable)

	s.Clear()

	assert.Empty(t, s.Tables())
	assert.Empty(t, s.Exposed())
	assert.Equal(t, schema.CachePolicy{Mode: schema.CacheNone}, s.CachePolicy("Orders"))
	assert.Equal(t, schema.ScriptUnknown, s.ScriptAvailability())
}

func TestStoreExposed(t *testing.T) {
	t.Parallel()

	s := newPopulatedStore()

	assert.Equal(t, []string{"Orders", "Zones"}, s.ExposedNames())
	assert.True(t, s.IsExposed("Orders"))
	assert.False(t, s.IsExposed("Hidden"))

	// Curated descriptions survive later discovery merges.
	s.SetExposedDescription("Orders", "Service orders and invoices.")
	s.MergeExposed([]string{"Orders", "Routes"})

	exposed := s.Exposed()
	assert.Equal(t, "Service orders and invoices.", exposed["Orders"])
	assert.Equal(t, schema.AutoDiscoveredDescription, exposed["Routes"])
	assert.Equal(t, schema.AutoDiscoveredDescription, exposed["Zones"])
}
