package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"go.jacobcolvin.com/fmgate/odata"
	"go.jacobcolvin.com/fmgate/schema"
)

// ContextTable is the table operational context is persisted to.
const ContextTable = "TBL_DDL_Context"

// ddlScriptName is the server-side script that returns base-table DDL. It
// filters out table occurrences via BaseTableNames(), which the OData
// entity-set list cannot do.
const ddlScriptName = "SCR_DDL_GetTableDDL"

// Connect resolves the default tenant, builds its client, and bootstraps.
// An engine without tenants returns an error; the caller decides whether
// to start anyway.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	name := e.provider.Default()
	if name == "" {
		e.bootErr = "no tenants configured"

		return errors.New("no tenants configured")
	}

	cfg, err := e.provider.Credentials(name)
	if err != nil {
		return fmt.Errorf("resolving default tenant: %w", err)
	}

	e.client = e.newClient(cfg)
	e.active = name
	e.bootstrap(ctx)

	e.logger.InfoContext(ctx, "connected to tenant",
		slog.String("tenant", name),
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)

	return nil
}

// bootstrap runs the six-step discovery sequence against the active
// tenant. Failures degrade: a dead endpoint records a bootstrap error for
// ListTables to surface, a missing DDL script falls back to the raw
// entity-set list, missing annotations and context are skipped. Caller
// holds e.mu.
func (e *Engine) bootstrap(ctx context.Context) {
	// Step 1: entity-set discovery from the service document. This is the
	// permission gate; only tables the credentials can read appear.
	data, err := e.client.Get(ctx, "", map[string]string{"$format": "JSON"})
	if err != nil {
		e.bootErr = err.Error()
		e.logger.ErrorContext(ctx, "bootstrap discovery failed", slog.Any("error", err))

		return
	}

	permitted := entitySetNames(data)
	if len(permitted) == 0 {
		e.bootErr = "OData discovery returned no tables"
		e.logger.ErrorContext(ctx, "bootstrap discovery returned no tables")

		return
	}

	e.bootErr = ""
	e.logger.InfoContext(ctx, "bootstrap discovered entity sets", slog.Int("count", len(permitted)))

	// Step 2: base-table DDL via the server-side script.
	ddlText := ""
	if e.store.ScriptAvailability() != schema.ScriptUnavailable {
		ddlText = e.fetchBaseTableDDL(ctx)
	}

	if ddlText == "" {
		// No script: expose the raw entity-set list, table occurrences and all.
		e.store.MergeExposed(permitted)
		e.logger.WarnContext(ctx, "DDL script unavailable, exposing raw entity-set list")

		return
	}

	// Step 3: expose only base tables the credentials can also reach.
	permittedSet := map[string]bool{}
	for _, name := range permitted {
		permittedSet[name] = true
	}

	var exposed []string

	for _, name := range schema.TableNames(ddlText) {
		if permittedSet[name] {
			exposed = append(exposed, name)
		}
	}

	sort.Strings(exposed)
	e.store.MergeExposed(exposed)
	e.logger.InfoContext(ctx, "bootstrap exposed base tables",
		slog.Int("exposed", len(exposed)),
		slog.Int("permitted", len(permitted)),
	)

	// Step 4: field annotations from $metadata, best effort.
	annotations := map[string]map[string]schema.Annotations{}

	if xmlText, err := e.client.Metadata(ctx); err != nil {
		e.logger.WarnContext(ctx, "bootstrap metadata fetch failed, continuing without annotations",
			slog.Any("error", err))
	} else if parsed, err := schema.ParseAnnotations(xmlText); err != nil {
		e.logger.WarnContext(ctx, "bootstrap annotation parse failed", slog.Any("error", err))
	} else if len(parsed) > 0 {
		annotations = parsed
		e.store.ReplaceAnnotations(parsed)
	}

	// Step 5: parse DDL, keeping exposed tables only.
	parsed := schema.ParseDDL(ddlText, annotations)

	kept := map[string]schema.Table{}

	for name, table := range parsed {
		if permittedSet[name] {
			kept[name] = table
		}
	}

	if len(kept) > 0 {
		e.store.ReplaceTables(kept)
		e.logger.InfoContext(ctx, "bootstrap cached table definitions", slog.Int("tables", len(kept)))
	} else {
		e.logger.WarnContext(ctx, "bootstrap DDL parsing yielded no tables")
	}

	// Step 6: operational context. Absence of the table is normal.
	e.loadContext(ctx)
}

// fetchBaseTableDDL calls the DDL script and returns its raw DDL text, or
// empty on any failure. Not-found marks the script unavailable for the
// tenant so later refreshes skip it.
func (e *Engine) fetchBaseTableDDL(ctx context.Context) string {
	result, err := e.client.Post(ctx, "Script."+ddlScriptName, map[string]string{
		"scriptParameterValue": `{"command": "list_base_tables"}`,
	})
	if err != nil {
		if odata.KindOf(err) == odata.KindNotFound {
			e.logger.InfoContext(ctx, "DDL script not found on this tenant")
			e.store.SetScriptAvailability(schema.ScriptUnavailable)
		} else {
			e.logger.WarnContext(ctx, "DDL script call failed", slog.Any("error", err))
		}

		return ""
	}

	ddlText := extractDDLText(result)
	if ddlText == "" {
		e.logger.WarnContext(ctx, "DDL script returned no usable result")

		return ""
	}

	e.store.SetScriptAvailability(schema.ScriptAvailable)

	return ddlText
}

// extractDDLText pulls DDL out of a script call response. The script
// answers with scriptResult.resultParameter; a JSON-looking payload means
// the script reported an error.
func extractDDLText(result map[string]any) string {
	ddlText := ""

	switch sr := result["scriptResult"].(type) {
	case map[string]any:
		ddlText, _ = sr["resultParameter"].(string)
	case string:
		ddlText = sr
	}

	if ddlText == "" {
		ddlText, _ = result["value"].(string)
	}

	if ddlText == "" || ddlText[0] == '{' {
		return ""
	}

	return ddlText
}

// refreshDDLViaScript re-fetches DDL for specific tables through the
// script and folds the parsed result into the store. Reports whether the
// store was updated; false means the caller should fall back to $metadata.
func (e *Engine) refreshDDLViaScript(ctx context.Context, tables []string) bool {
	if e.store.ScriptAvailability() == schema.ScriptUnavailable {
		return false
	}

	param, err := json.Marshal(tables)
	if err != nil {
		return false
	}

	result, err := e.client.Post(ctx, "Script."+ddlScriptName, map[string]string{
		"scriptParameterValue": string(param),
	})
	if err != nil {
		if odata.KindOf(err) == odata.KindNotFound {
			e.logger.InfoContext(ctx, "DDL script not available, will use $metadata fallback")
			e.store.SetScriptAvailability(schema.ScriptUnavailable)
		} else {
			e.logger.WarnContext(ctx, "DDL script refresh failed", slog.Any("error", err))
		}

		return false
	}

	ddlText := extractDDLText(result)
	if ddlText == "" {
		return false
	}

	annotations := map[string]map[string]schema.Annotations{}
	for _, table := range schema.TableNames(ddlText) {
		if fields := e.store.Annotations(table); fields != nil {
			annotations[table] = fields
		}
	}

	parsed := schema.ParseDDL(ddlText, annotations)
	if len(parsed) == 0 {
		e.logger.WarnContext(ctx, "DDL script returned unparseable result")

		return false
	}

	e.store.ReplaceTables(parsed)
	e.store.SetScriptAvailability(schema.ScriptAvailable)

	return true
}

// loadContext loads operational context rows from the context table.
// Context is a nice-to-have; a missing or unreachable table is skipped.
func (e *Engine) loadContext(ctx context.Context) {
	data, err := e.client.Get(ctx, ContextTable, map[string]string{
		"$orderby": "TableName,FieldName",
	})
	if err != nil {
		if odata.KindOf(err) == odata.KindNotFound {
			e.logger.DebugContext(ctx, "context table not found, skipping", slog.String("table", ContextTable))
		} else {
			e.logger.WarnContext(ctx, "cannot load operational context", slog.Any("error", err))
		}

		return
	}

	records := recordsOf(data)
	if len(records) == 0 {
		return
	}

	entries := map[schema.ContextKey]string{}

	for _, rec := range records {
		key := schema.ContextKey{
			Table: stringField(rec, "TableName"),
			Field: stringField(rec, "FieldName"),
			Type:  stringField(rec, "ContextType"),
		}
		if key.Table == "" && key.Field == "" {
			continue
		}

		entries[key] = stringField(rec, "Context")
	}

	e.store.ReplaceContext(entries)
	e.logger.InfoContext(ctx, "loaded operational context", slog.Int("entries", len(entries)))
}

// entitySetNames extracts the table names from a service document.
func entitySetNames(data map[string]any) []string {
	var names []string

	for _, rec := range recordsOf(data) {
		if name := stringField(rec, "name"); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// recordsOf extracts the "value" array of a decoded OData response.
func recordsOf(data map[string]any) []map[string]any {
	raw, _ := data["value"].([]any)

	records := make([]map[string]any, 0, len(raw))

	for _, item := range raw {
		if rec, ok := item.(map[string]any); ok {
			records = append(records, rec)
		}
	}

	return records
}

func stringField(rec map[string]any, key string) string {
	s, _ := rec[key].(string)

	return s
}
