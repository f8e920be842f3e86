// Package main provides the CLI entry point for fmgate, a read-query
// mediator for FileMaker databases exposed over OData.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.jacobcolvin.com/fmgate/engine"
	"go.jacobcolvin.com/fmgate/log"
	"go.jacobcolvin.com/fmgate/profile"
	"go.jacobcolvin.com/fmgate/tenant"
	"go.jacobcolvin.com/fmgate/version"
)

type app struct {
	engine *engine.Engine

	logCfg     *log.Config
	profileCfg *profile.Config
	profiler   *profile.Profiler

	tenantsFile string
}

func main() {
	a := &app{
		logCfg:     log.NewConfig(),
		profileCfg: profile.NewConfig(),
	}
	a.profiler = a.profileCfg.NewProfiler()

	rootCmd := &cobra.Command{
		Use:   "fmgate",
		Short: "Query FileMaker databases over OData",
		Long: `fmgate mediates read queries against FileMaker databases exposed over
OData. It discovers tables, caches schemas and records, and formats results
as text suitable for an AI client. Tenants come from environment variables
(FM_HOST or <PREFIX>_FM_HOST) or a tenants.yaml file.`,
		Version:       fmt.Sprintf("%s (revision %s, %s)", version.Version, version.Revision, version.GoVersion),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.profiler.Stop()
		},
	}

	a.logCfg.RegisterFlags(rootCmd.PersistentFlags())
	a.profileCfg.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().StringVar(&a.tenantsFile, "tenants", "",
		"path to a tenants.yaml file (default: read environment variables)")

	completionErr := a.logCfg.RegisterCompletions(rootCmd)
	if completionErr != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", completionErr)
	}

	completionErr = a.profileCfg.RegisterCompletions(rootCmd)
	if completionErr != nil {
		fmt.Fprintf(os.Stderr, "register completions: %v\n", completionErr)
	}

	rootCmd.AddCommand(
		a.tablesCmd(),
		a.schemaCmd(),
		a.queryCmd(),
		a.recordCmd(),
		a.countCmd(),
		a.loadCmd(),
		a.datasetsCmd(),
		a.analyzeCmd(),
		a.flushCmd(),
		a.reportCmd(),
		opsCmd(),
		a.contextCmd(),
		a.tenantsCmd(),
		a.useCmd(),
	)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// setup wires logging, profiling, and the engine, then connects to the
// default tenant. Connection failures are logged, not fatal: every
// operation reports the stored bootstrap error with guidance.
func (a *app) setup(cmd *cobra.Command) error {
	handler, err := a.logCfg.NewHandler(os.Stderr)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(handler))

	err = a.profiler.Start()
	if err != nil {
		return err
	}

	var provider tenant.Provider
	if a.tenantsFile != "" {
		provider, err = tenant.NewFileProvider(a.tenantsFile)
		if err != nil {
			return err
		}
	} else {
		provider = tenant.NewEnvProvider()
	}

	a.engine = engine.New(provider, engine.WithLogger(slog.Default()))

	err = a.engine.Connect(cmd.Context())
	if err != nil {
		slog.Warn("connect failed", "err", err)
	}

	return nil
}

func (a *app) tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List queryable tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(a.engine.ListTables())

			return nil
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	var refresh, all bool

	cmd := &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the field schema for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(a.engine.GetSchema(cmd.Context(), args[0], refresh, all))

			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "re-fetch the schema from the server")
	cmd.Flags().BoolVar(&all, "all", false, "include internal and key fields")

	return cmd
}

func (a *app) queryCmd() *cobra.Command {
	var in engine.QueryRecordsInput

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Query records from a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Table = args[0]
			cmd.Println(a.engine.QueryRecords(cmd.Context(), in))

			return nil
		},
	}

	cmd.Flags().StringVar(&in.Filter, "filter", "", "OData $filter expression")
	cmd.Flags().StringVar(&in.Select, "select", "", "comma-separated fields to return")
	cmd.Flags().IntVar(&in.Top, "top", 0, "maximum records to return (default 20)")
	cmd.Flags().IntVar(&in.Skip, "skip", 0, "records to skip")
	cmd.Flags().StringVar(&in.OrderBy, "orderby", "", "OData $orderby expression")
	cmd.Flags().BoolVar(&in.Count, "count", false, "include the total match count")

	return cmd
}

func (a *app) recordCmd() *cobra.Command {
	var idField string

	cmd := &cobra.Command{
		Use:   "record <table> <id>",
		Short: "Fetch a single record by ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(a.engine.GetRecord(cmd.Context(), args[0], args[1], idField))

			return nil
		},
	}

	cmd.Flags().StringVar(&idField, "id-field", "", "field to match the ID against (default: primary key)")

	return cmd
}

func (a *app) countCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "count <table>",
		Short: "Count records in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(a.engine.CountRecords(cmd.Context(), args[0], filter))

			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "OData $filter expression")

	return cmd
}

func (a *app) loadCmd() *cobra.Command {
	var in engine.LoadDatasetInput

	cmd := &cobra.Command{
		Use:   "load <name> <table>",
		Short: "Load a named dataset for analysis",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name, in.Table = args[0], args[1]
			cmd.Println(a.engine.LoadDataset(cmd.Context(), in))

			return nil
		},
	}

	cmd.Flags().StringVar(&in.Filter, "filter", "", "OData $filter expression")
	cmd.Flags().StringVar(&in.Select, "select", "", "comma-separated fields to load")

	return cmd
}

func (a *app) datasetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List loaded datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(a.engine.ListDatasets())

			return nil
		},
	}
}

func (a *app) analyzeCmd() *cobra.Command {
	var in engine.AnalyzeInput

	cmd := &cobra.Command{
		Use:   "analyze <dataset>",
		Short: "Aggregate and summarize a loaded dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Dataset = args[0]
			cmd.Println(a.engine.Analyze(in))

			return nil
		},
	}

	cmd.Flags().StringVar(&in.GroupBy, "groupby", "", "comma-separated fields to group by")
	cmd.Flags().StringVar(&in.Aggregate, "aggregate", "", "aggregations, e.g. 'sum:Amount,mean:Hours'")
	cmd.Flags().StringVar(&in.Filter, "filter", "", "row filter, e.g. \"Status eq 'Open'\"")
	cmd.Flags().StringVar(&in.Sort, "sort", "", "sort expression, e.g. 'Amount_sum desc'")
	cmd.Flags().IntVar(&in.Limit, "limit", 0, "maximum groups to show")
	cmd.Flags().StringVar(&in.Period, "period", "", "time-series bucket: day, week, or month")
	cmd.Flags().StringVar(&in.PivotColumn, "pivot-column", "", "field to pivot into columns")

	return cmd
}

func (a *app) flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush [table]",
		Short: "Flush cached table data and datasets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := ""
			if len(args) > 0 {
				table = args[0]
			}

			cmd.Println(a.engine.FlushDatasets(table))

			return nil
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize today's activity across date-cached tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(a.engine.ReportToday())

			return nil
		},
	}
}

// opsCmd prints the operation manifest for hosts that register the
// engine's operations as tools.
func opsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "Print operation input schemas as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := json.MarshalIndent(engine.OperationSchemas(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling operation schemas: %w", err)
			}

			cmd.Println(string(out))

			return nil
		},
	}
}

func (a *app) contextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "context",
		Short: "Manage saved operational context",
	}

	var save engine.SaveContextInput

	saveCmd := &cobra.Command{
		Use:   "save <table> <context>",
		Short: "Save a context note for a table or field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			save.TableName, save.Context = args[0], args[1]
			cmd.Println(a.engine.SaveContext(cmd.Context(), save))

			return nil
		},
	}

	saveCmd.Flags().StringVar(&save.FieldName, "field", "", "field the context describes (empty for table-level)")
	saveCmd.Flags().StringVar(&save.ContextType, "type", "", "context type (default field_values)")
	saveCmd.Flags().StringVar(&save.Source, "source", "", "who recorded the context (default auto)")

	var delField, delType string

	deleteCmd := &cobra.Command{
		Use:   "delete <table>",
		Short: "Delete a saved context note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(a.engine.DeleteContext(cmd.Context(), args[0], delField, delType))

			return nil
		},
	}

	deleteCmd.Flags().StringVar(&delField, "field", "", "field the context describes (empty for table-level)")
	deleteCmd.Flags().StringVar(&delType, "type", "", "context type (default field_values)")

	cmd.AddCommand(saveCmd, deleteCmd)

	return cmd
}

func (a *app) tenantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tenants",
		Short: "List configured tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.Println(a.engine.ListTenants())

			return nil
		},
	}
}

func (a *app) useCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <tenant>",
		Short: "Switch the active tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(a.engine.UseTenant(cmd.Context(), args[0]))

			return nil
		},
	}
}
