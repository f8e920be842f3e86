package engine

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// QueryRecordsInput is the parameter set for [Engine.QueryRecords].
type QueryRecordsInput struct {
	Table   string `json:"table"`
	Filter  string `json:"filter,omitempty"`
	Select  string `json:"select,omitempty"`
	Top     int    `json:"top,omitempty"`
	Skip    int    `json:"skip,omitempty"`
	OrderBy string `json:"orderby,omitempty"`
	Count   bool   `json:"count,omitempty"`
}

// GetRecordInput is the parameter set for [Engine.GetRecord].
type GetRecordInput struct {
	Table    string `json:"table"`
	RecordID string `json:"record_id"`
	IDField  string `json:"id_field,omitempty"`
}

// CountRecordsInput is the parameter set for [Engine.CountRecords].
type CountRecordsInput struct {
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// GetSchemaInput is the parameter set for [Engine.GetSchema].
type GetSchemaInput struct {
	Table   string `json:"table,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
	ShowAll bool   `json:"show_all,omitempty"`
}

// LoadDatasetInput is the parameter set for [Engine.LoadDataset].
type LoadDatasetInput struct {
	Name   string `json:"name"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
	Select string `json:"select,omitempty"`
}

// AnalyzeInput is the parameter set for [Engine.Analyze].
type AnalyzeInput struct {
	Dataset     string `json:"dataset"`
	GroupBy     string `json:"groupby,omitempty"`
	Aggregate   string `json:"aggregate,omitempty"`
	Filter      string `json:"filter,omitempty"`
	Sort        string `json:"sort,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Period      string `json:"period,omitempty"`
	PivotColumn string `json:"pivot_column,omitempty"`
}

// SaveContextInput is the parameter set for [Engine.SaveContext].
type SaveContextInput struct {
	TableName   string `json:"table_name"`
	Context     string `json:"context"`
	FieldName   string `json:"field_name,omitempty"`
	ContextType string `json:"context_type,omitempty"`
	Source      string `json:"source,omitempty"`
}

// DeleteContextInput is the parameter set for [Engine.DeleteContext].
type DeleteContextInput struct {
	TableName   string `json:"table_name"`
	FieldName   string `json:"field_name,omitempty"`
	ContextType string `json:"context_type,omitempty"`
}

// UseTenantInput is the parameter set for [Engine.UseTenant].
type UseTenantInput struct {
	Tenant string `json:"tenant"`
}

func str(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func integer(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: desc}
}

func boolean(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: desc}
}

func obj(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// OperationSchemas returns the JSON Schema for each operation's input,
// keyed by operation name. Consumers expose these as tool definitions.
func OperationSchemas() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"list_tables": obj(nil, map[string]*jsonschema.Schema{}),

		"get_schema": obj(nil, map[string]*jsonschema.Schema{
			"table":    str("Table name. Omit to list all available tables."),
			"refresh":  boolean("Re-fetch the definition from the server instead of the cache."),
			"show_all": boolean("Include internal fields (calculations, summaries, globals)."),
		}),

		"query_records": obj([]string{"table"}, map[string]*jsonschema.Schema{
			"table":   str("Table to query."),
			"filter":  str("OData $filter expression. Dates as YYYY-MM-DD without quotes."),
			"select":  str("Comma-separated field names to return."),
			"top":     integer("Maximum records to return (default 20, max 10000)."),
			"skip":    integer("Records to skip, for pagination."),
			"orderby": str("Sort specification, e.g. 'ServiceDate desc'."),
			"count":   boolean("Include the total match count."),
		}),

		"get_record": obj([]string{"table", "record_id"}, map[string]*jsonschema.Schema{
			"table":     str("Table to read."),
			"record_id": str("Value identifying the record."),
			"id_field":  str("Field to match on (default: the table's primary key)."),
		}),

		"count_records": obj([]string{"table"}, map[string]*jsonschema.Schema{
			"table":  str("Table to count."),
			"filter": str("OData $filter expression restricting the count."),
		}),

		"load_dataset": obj([]string{"name", "table"}, map[string]*jsonschema.Schema{
			"name":   str("Name for the dataset."),
			"table":  str("Source table."),
			"filter": str("OData $filter expression restricting the load."),
			"select": str("Comma-separated field names to load."),
		}),

		"analyze": obj([]string{"dataset"}, map[string]*jsonschema.Schema{
			"dataset":      str("Dataset name or cached table name."),
			"groupby":      str("Comma-separated fields to group by."),
			"aggregate":    str("Aggregations as 'func:Field' pairs, e.g. 'sum:Amount,avg:Hours'."),
			"filter":       str("In-memory filter applied before aggregation."),
			"sort":         str("Result sort, e.g. 'Amount_sum desc'."),
			"limit":        integer("Maximum result rows (default 50)."),
			"period":       str("Time-series bucket: week, month, or quarter."),
			"pivot_column": str("Field whose values become result columns."),
		}),

		"list_datasets": obj(nil, map[string]*jsonschema.Schema{}),

		"flush_datasets": obj(nil, map[string]*jsonschema.Schema{
			"table": str("Cached table to flush. Omit to flush all."),
		}),

		"save_context": obj([]string{"table_name", "context"}, map[string]*jsonschema.Schema{
			"table_name":   str("Table the learning applies to."),
			"context":      str("The learning to record."),
			"field_name":   str("Field the learning applies to. Omit for table-level."),
			"context_type": str("One of field_values, syntax_rule, query_pattern, relationship, value_map (default field_values)."),
			"source":       str("Origin of the learning (default auto)."),
		}),

		"delete_context": obj([]string{"table_name"}, map[string]*jsonschema.Schema{
			"table_name":   str("Table the entry applies to."),
			"field_name":   str("Field the entry applies to. Omit for table-level."),
			"context_type": str("Context type of the entry (default field_values)."),
		}),

		"report_today": obj(nil, map[string]*jsonschema.Schema{}),

		"list_tenants": obj(nil, map[string]*jsonschema.Schema{}),

		"use_tenant": obj([]string{"tenant"}, map[string]*jsonschema.Schema{
			"tenant": str("Tenant name to switch to."),
		}),
	}
}
