package engine

import (
	"context"
	"fmt"
	"strings"

	"go.jacobcolvin.com/fmgate/odata"
	"go.jacobcolvin.com/fmgate/schema"
)

// odataEscape doubles single quotes for OData string literals.
func odataEscape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// contextFilter builds the dedup lookup filter for a context record. The
// server rejects eq '' for empty strings; length(F) eq 0 matches them.
func contextFilter(tableName, fieldName, contextType string) string {
	var parts []string

	if tableName != "" {
		parts = append(parts, fmt.Sprintf("TableName eq '%s'", odataEscape(tableName)))
	} else {
		parts = append(parts, "length(TableName) eq 0")
	}

	if fieldName != "" {
		parts = append(parts, fmt.Sprintf("FieldName eq '%s'", odataEscape(fieldName)))
	} else {
		parts = append(parts, "length(FieldName) eq 0")
	}

	parts = append(parts, fmt.Sprintf("ContextType eq '%s'", odataEscape(contextType)))

	return strings.Join(parts, " and ")
}

// contextLabel names a context target for messages: field name or
// "(table)" for table-level entries.
func contextLabel(fieldName string) string {
	if fieldName == "" {
		return "(table)"
	}

	return fieldName
}

// SaveContext persists an operational learning to the context table,
// updating the matching record when one exists. The local store is
// updated immediately so the hint takes effect in the current session.
func (e *Engine) SaveContext(ctx context.Context, in SaveContextInput) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	contextType := in.ContextType
	if contextType == "" {
		contextType = schema.ContextFieldValues
	}

	source := in.Source
	if source == "" {
		source = "auto"
	}

	existing, err := e.client.Get(ctx, ContextTable, map[string]string{
		"$filter": contextFilter(in.TableName, in.FieldName, contextType),
		"$top":    "1",
	})
	if err != nil {
		return e.contextError("write", err)
	}

	records := recordsOf(existing)

	if len(records) > 0 {
		id := fmt.Sprintf("%v", records[0]["PrimaryKey"])

		_, err = e.client.Patch(ctx, fmt.Sprintf("%s('%s')", ContextTable, odataEscape(id)), map[string]string{
			"Context": in.Context,
			"Source":  source,
		})
		if err != nil {
			return e.contextError("write", err)
		}

		e.store.UpsertContext(schema.ContextKey{Table: in.TableName, Field: in.FieldName, Type: contextType}, in.Context)

		return fmt.Sprintf("Updated context for %s.%s: %s", in.TableName, contextLabel(in.FieldName), in.Context)
	}

	_, err = e.client.Post(ctx, ContextTable, map[string]string{
		"TableName":   in.TableName,
		"FieldName":   in.FieldName,
		"ContextType": contextType,
		"Context":     in.Context,
		"Source":      source,
		"CreatedBy":   "mcp_agent",
	})
	if err != nil {
		return e.contextError("write", err)
	}

	e.store.UpsertContext(schema.ContextKey{Table: in.TableName, Field: in.FieldName, Type: contextType}, in.Context)

	return fmt.Sprintf("Created context for %s.%s: %s", in.TableName, contextLabel(in.FieldName), in.Context)
}

// DeleteContext removes an operational learning from the context table
// and from the local store.
func (e *Engine) DeleteContext(ctx context.Context, tableName, fieldName, contextType string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if contextType == "" {
		contextType = schema.ContextFieldValues
	}

	existing, err := e.client.Get(ctx, ContextTable, map[string]string{
		"$filter": contextFilter(tableName, fieldName, contextType),
		"$top":    "1",
	})
	if err != nil {
		return e.contextError("delete", err)
	}

	records := recordsOf(existing)
	if len(records) == 0 {
		return fmt.Sprintf("No context found for %s.%s (%s) — nothing to delete.",
			tableName, contextLabel(fieldName), contextType)
	}

	id := fmt.Sprintf("%v", records[0]["PrimaryKey"])

	if err := e.client.Delete(ctx, fmt.Sprintf("%s('%s')", ContextTable, odataEscape(id))); err != nil {
		return e.contextError("delete", err)
	}

	e.store.RemoveContext(tableName, fieldName, contextType)

	return fmt.Sprintf("Deleted context for %s.%s (%s)", tableName, contextLabel(fieldName), contextType)
}

// contextError renders a context persistence failure.
func (e *Engine) contextError(verb string, err error) string {
	switch odata.KindOf(err) {
	case odata.KindAuth:
		return fmt.Sprintf("Error: No %s access to %s. Grant OData %s permission to mcp_agent. (%v)",
			verb, ContextTable, verb, err)
	case odata.KindNotFound:
		return fmt.Sprintf("Error: %s table not found on the server. Create it first.", ContextTable)
	case odata.KindConnection:
		return fmt.Sprintf("Error: Cannot reach server: %v", err)
	default:
		return fmt.Sprintf("Error saving context: %v", err)
	}
}
