package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.jacobcolvin.com/fmgate/dates"
	"go.jacobcolvin.com/fmgate/schema"
)

// ListTables lists the exposed tables with their descriptions. Curated
// descriptions come first; auto-discovered tables collapse into one
// summary line. A failed bootstrap is surfaced here with connection
// guidance.
func (e *Engine) ListTables() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	exposed := e.store.Exposed()

	if len(exposed) == 0 && e.bootErr != "" {
		return fmt.Sprintf(
			"No tables available. Connection failed during startup:\n\n"+
				"  %s\n\n"+
				"Check the tenant configuration: host, database, username, password.\n"+
				"If using a self-signed certificate, disable TLS verification for the tenant.",
			e.bootErr)
	}

	var curated, discovered []string

	for _, name := range sortedNames(exposed) {
		if exposed[name] == schema.AutoDiscoveredDescription {
			discovered = append(discovered, name)
		} else {
			curated = append(curated, name)
		}
	}

	lines := []string{fmt.Sprintf("Available tables (%d total):", len(exposed)), ""}

	if len(curated) > 0 {
		for _, name := range curated {
			lines = append(lines, fmt.Sprintf("  %s: %s", name, exposed[name]))
		}

		lines = append(lines, "")
	}

	if len(discovered) > 0 {
		lines = append(lines, fmt.Sprintf("  + %d discovered tables: %s",
			len(discovered), strings.Join(discovered, ", ")))
	}

	return strings.Join(lines, "\n")
}

// GetSchema returns the field listing for one table, or the table list
// when no table is named. Cached definitions answer instantly; a cache
// miss or refresh re-runs the DDL script, falling back to the $metadata
// document when the script is unavailable.
func (e *Engine) GetSchema(ctx context.Context, table string, refresh, showAll bool) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if table == "" {
		lines := []string{"Available tables (use get_schema with a table name for field details):", ""}

		exposed := e.store.Exposed()
		for _, name := range sortedNames(exposed) {
			lines = append(lines, fmt.Sprintf("  %s: %s", name, exposed[name]))
		}

		lines = append(lines, "", "Tip: Request a specific table to see all of its fields.")

		return strings.Join(lines, "\n")
	}

	if !refresh {
		if fields := e.store.Table(table); len(fields) > 0 {
			return e.formatSchema(table, fields, showAll)
		}
	}

	if e.refreshDDLViaScript(ctx, []string{table}) {
		if fields := e.store.Table(table); len(fields) > 0 {
			return e.formatSchema(table, fields, showAll)
		}
	}

	return e.schemaFromMetadata(ctx, table, showAll)
}

// schemaFromMetadata derives a table's fields from the $metadata document
// and caches them. Coarser than DDL but always available.
func (e *Engine) schemaFromMetadata(ctx context.Context, table string, showAll bool) string {
	xmlText, err := e.client.Metadata(ctx)
	if err != nil {
		return e.queryError(table, err)
	}

	tables, err := schema.MetadataTables(xmlText)
	if err != nil {
		return fmt.Sprintf("Error parsing metadata: %v", err)
	}

	fields, ok := tables[table]
	if !ok || len(fields) == 0 {
		return fmt.Sprintf("No table named '%s' found in metadata.", table)
	}

	e.store.ReplaceTables(map[string]schema.Table{table: fields})

	return e.formatSchema(table, fields, showAll)
}

// formatSchema renders one table's fields with tier markers, date-filter
// hints, and context annotations. Internal-tier fields are hidden unless
// showAll is set.
func (e *Engine) formatSchema(table string, fields schema.Table, showAll bool) string {
	total := len(fields)

	hidden := 0

	if !showAll {
		for _, field := range fields {
			if field.Tier == schema.TierInternal {
				hidden++
			}
		}
	}

	header := fmt.Sprintf("Table: %s (%d fields", table, total)
	if hidden > 0 {
		header += fmt.Sprintf(", %d internal hidden", hidden)
	}

	header += ")"

	lines := []string{header, strings.Repeat("-", len(header))}

	// Table-level hints first: syntax rules and query patterns apply to
	// every query against the table.
	tableNotes := false

	for _, entry := range e.store.TableContext(table) {
		if entry.Field == "" {
			lines = append(lines, fmt.Sprintf("  Note: %s", entry.Value))
			tableNotes = true
		}
	}

	if tableNotes {
		lines = append(lines, "")
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		field := fields[name]

		if !showAll && field.Tier == schema.TierInternal {
			continue
		}

		var markers []string

		if field.PK {
			markers = append(markers, "PK")
		}

		if field.FK {
			markers = append(markers, "FK")
		}

		switch field.Tier {
		case schema.TierKey:
			markers = append(markers, "key")
		case schema.TierInternal:
			markers = append(markers, "internal")
		case schema.TierStandard:
		}

		line := fmt.Sprintf("  %s: %s", name, field.Type)

		if len(markers) > 0 {
			line += fmt.Sprintf(" [%s]", strings.Join(markers, ", "))
		}

		if field.Type.IsDate() {
			line += "  (filter as: YYYY-MM-DD, no quotes)"
		}

		if hint := e.store.FieldContext(table, name); hint != "" {
			line += "  -- " + hint
		} else if field.Description != "" {
			line += "  -- " + field.Description
		}

		lines = append(lines, line)
	}

	lines = append(lines, "", fmt.Sprintf("%d fields total", total))

	if hidden > 0 {
		lines = append(lines, fmt.Sprintf(
			"Tip: Use get_schema(table='%s', show_all=true) to see all %d fields.", table, total))
	}

	return strings.Join(lines, "\n")
}

// ReportToday renders the standard report periods relative to the
// engine's current date, with ready-to-use filters on the first
// date-cached field it finds.
func (e *Engine) ReportToday() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := dates.NewReport(e.now().UTC())

	dateField := "ServiceDate"

	for _, table := range e.store.Tables() {
		if fields := e.store.DateFields(table); len(fields) > 0 {
			dateField = fields[0]

			break
		}
	}

	periods := []struct {
		name string
		p    dates.Period
	}{
		{"Today", report.Daily()},
		{"Yesterday", report.Yesterday()},
		{"Week to date", report.WTD()},
		{"Month to date", report.MTD()},
		{"Full month", report.FullMonth()},
		{"Quarter to date", report.QTD()},
		{"Year to date", report.YTD()},
	}

	lines := []string{
		fmt.Sprintf("Current date: %s", report.Daily().Start),
		"",
		"Report periods (filters use field '" + dateField + "'):",
	}

	for _, entry := range periods {
		lines = append(lines, fmt.Sprintf("  %-16s %s to %s | %s",
			entry.name+":", entry.p.Start, entry.p.End,
			dates.BuildPeriodFilter(dateField, entry.p.Start, entry.p.End)))
	}

	comparisons := []struct {
		name string
		c    dates.Comparison
	}{
		{"Day over day", report.DoD()},
		{"Week over week", report.WoW()},
		{"Month over month", report.MoM()},
		{"MTD vs prior MTD", report.CMTDvsPMTD()},
		{"MTD vs prior year", report.MTDCYvsPY()},
		{"QTD vs prior quarter", report.QTDvsPQ()},
		{"QTD vs prior year", report.QTDvsPQPY()},
		{"YTD vs prior year", report.YTDCYvsPY()},
	}

	lines = append(lines, "", "Comparative periods:")

	for _, entry := range comparisons {
		lines = append(lines, fmt.Sprintf("  %-22s %s to %s vs %s to %s",
			entry.name+":",
			entry.c.Current.Start, entry.c.Current.End,
			entry.c.Previous.Start, entry.c.Previous.End))
	}

	return strings.Join(lines, "\n")
}
