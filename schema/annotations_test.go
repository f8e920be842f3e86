package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/fmgate/schema"
)

const sampleMetadata = `<?xml version="1.0" encoding="UTF-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="Sales">
      <EntityType Name="Orders_">
        <Key><PropertyRef Name="OrderID"/></Key>
        <Property Name="OrderID" Type="Edm.String"/>
        <Property Name="Total" Type="Edm.Decimal">
          <Annotation Term="com.filemaker.odata.Summary" Bool="true"/>
        </Property>
        <Property Name="Margin" Type="Edm.Double">
          <Annotation Term="com.filemaker.odata.Calculation" Bool="true"/>
        </Property>
        <Property Name="gToday" Type="Edm.Date">
          <Annotation Term="com.filemaker.odata.Global" Bool="true"/>
        </Property>
        <Property Name="Notes" Type="Edm.String">
          <Annotation Term="com.filemaker.odata.FMComment" String="internal notes"/>
        </Property>
        <Property Name="Plain" Type="Edm.String">
          <Annotation Term="com.filemaker.odata.Calculation" Bool="false"/>
        </Property>
      </EntityType>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

func TestParseAnnotations(t *testing.T) {
	t.Parallel()

	got, err := schema.ParseAnnotations(sampleMetadata)
	require.NoError(t, err)

	// Trailing underscore stripped to match DDL names.
	orders, ok := got["Orders"]
	require.True(t, ok)

	assert.True(t, orders["Total"].Summary)
	assert.True(t, orders["Margin"].Calculation)
	assert.True(t, orders["gToday"].Global)
	assert.Equal(t, "internal notes", orders["Notes"].Comment)

	// Bool="false" annotations and unannotated fields are omitted.
	assert.NotContains(t, orders, "Plain")
	assert.NotContains(t, orders, "OrderID")
}

func TestParseAnnotationsMalformed(t *testing.T) {
	t.Parallel()

	_, err := schema.ParseAnnotations("<not-xml")
	require.Error(t, err)

	got, err := schema.ParseAnnotations("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMetadataTables(t *testing.T) {
	t.Parallel()

	tables, err := schema.MetadataTables(sampleMetadata)
	require.NoError(t, err)

	orders, ok := tables["Orders"]
	require.True(t, ok)

	assert.Equal(t, schema.TypeText, orders["OrderID"].Type)
	assert.True(t, orders["OrderID"].PK)
	assert.Equal(t, schema.TypeDecimal, orders["Total"].Type)
	assert.Equal(t, schema.TierInternal, orders["Total"].Tier)
	assert.Equal(t, schema.TierInternal, orders["Margin"].Tier)
	assert.Equal(t, schema.TypeDate, orders["gToday"].Type)
	assert.Equal(t, "internal notes", orders["Notes"].Description)
	assert.Equal(t, schema.TierStandard, orders["Plain"].Tier)
}
