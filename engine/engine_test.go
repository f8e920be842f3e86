package engine_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.jacobcolvin.com/fmgate/engine"
	"go.jacobcolvin.com/fmgate/odata"
	"go.jacobcolvin.com/fmgate/schema"
	"go.jacobcolvin.com/fmgate/stringtest"
	"go.jacobcolvin.com/fmgate/tenant"
)

// tenantList is a fixed in-memory credential provider.
type tenantList struct {
	tenants map[string]tenant.Config
	def     string
}

func (p tenantList) Names() []string {
	names := make([]string, 0, len(p.tenants))
	for name := range p.tenants {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (p tenantList) Credentials(name string) (tenant.Config, error) {
	cfg, ok := p.tenants[name]
	if !ok {
		return tenant.Config{}, fmt.Errorf("%w %q", tenant.ErrUnknownTenant, name)
	}

	return cfg, nil
}

func (p tenantList) Default() string { return p.def }

func singleTenant() tenantList {
	return tenantList{
		tenants: map[string]tenant.Config{
			"default": {
				Name: "default", Host: "fm.test", Database: "FieldOps",
				Username: "mcp_agent", Password: "secret",
				VerifyTLS: true, Timeout: time.Second,
			},
		},
		def: "default",
	}
}

// routes dispatches on "METHOD /path"; anything unrouted answers 404 like
// the real server does for unknown resources.
type routes map[string]http.HandlerFunc

func (r routes) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if fn, ok := r[req.Method+" "+req.URL.Path]; ok {
		fn(w, req)

		return
	}

	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"error":{"message":"resource not found"}}`))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const ordersDDL = `CREATE TABLE "Orders" (
"_kp_OrderID" varchar(255),
"Customer Name" varchar(255),
"Status" varchar(255),
"Technician" varchar(255),
"ServiceDate" datetime,
"Amount" int,
"gLastSync" varchar(255),
PRIMARY KEY ("_kp_OrderID")
);`

// baseRoutes models a healthy tenant: three entity sets in the service
// document, a DDL script exposing Orders as the only base table, and one
// operational context row.
func baseRoutes() routes {
	return routes{
		"GET /": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"value": []any{
				map[string]any{"name": "Orders"},
				map[string]any{"name": "WorkOrders_TO"},
				map[string]any{"name": "TBL_DDL_Context"},
			}})
		},
		"POST /Script.SCR_DDL_GetTableDDL": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"scriptResult": map[string]any{"resultParameter": ordersDDL}})
		},
		"GET /TBL_DDL_Context": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"value": []any{
				map[string]any{
					"PrimaryKey": "ctx-1", "TableName": "Orders", "FieldName": "Status",
					"ContextType": "field_values", "Context": "Open, Closed, Invoiced",
				},
			}})
		},
	}
}

func newTestEngine(t *testing.T, provider tenant.Provider, handler http.Handler) *engine.Engine {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return engine.New(provider,
		engine.WithLogger(logger),
		engine.WithNow(func() time.Time {
			return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		}),
		engine.WithClientFactory(func(cfg tenant.Config) *odata.Client {
			return odata.NewClient(cfg.Host, cfg.Database, cfg.Username, cfg.Password,
				odata.WithBaseURL(srv.URL),
				odata.WithRetry(time.Millisecond, 0),
				odata.WithLogger(logger),
			)
		}),
	)
}

func connectedEngine(t *testing.T, handler http.Handler) *engine.Engine {
	t.Helper()

	e := newTestEngine(t, singleTenant(), handler)
	require.NoError(t, e.Connect(t.Context()))

	return e
}

func TestConnectBootstrap(t *testing.T) {
	t.Parallel()

	e := connectedEngine(t, baseRoutes())

	assert.Equal(t, "default", e.ActiveTenant())

	store := e.Store()

	// Only base tables from the DDL survive; table occurrences and the
	// context table stay hidden.
	assert.True(t, store.IsExposed("Orders"))
	assert.False(t, store.IsExposed("WorkOrders_TO"))
	assert.False(t, store.IsExposed("TBL_DDL_Context"))

	assert.Equal(t, "_kp_OrderID", store.PrimaryKey("Orders"))
	assert.Equal(t, []string{"ServiceDate"}, store.DateFields("Orders"))
	assert.Equal(t, schema.ScriptAvailable, store.ScriptAvailability())

	assert.Equal(t, "Open, Closed, Invoiced",
		store.ContextValue("Orders", schema.ContextFieldValues, "Status"))
}

func TestConnectNoTenants(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, tenantList{}, baseRoutes())

	require.EqualError(t, e.Connect(t.Context()), "no tenants configured")
}

func TestBootstrapScriptMissing(t *testing.T) {
	t.Parallel()

	r := baseRoutes()
	delete(r, "POST /Script.SCR_DDL_GetTableDDL")

	e := connectedEngine(t, r)
	store := e.Store()

	// Without the DDL script the raw entity-set list is exposed as-is.
	assert.True(t, store.IsExposed("Orders"))
	assert.True(t, store.IsExposed("WorkOrders_TO"))
	assert.True(t, store.IsExposed("TBL_DDL_Context"))
	assert.Equal(t, schema.ScriptUnavailable, store.ScriptAvailability())
	assert.Nil(t, store.Table("Orders"))
}

func TestBootstrapDiscoveryFailure(t *testing.T) {
	t.Parallel()

	e := connectedEngine(t, routes{
		"GET /": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"database unavailable"}}`))
		},
	})

	out := e.ListTables()
	assert.Contains(t, out, "No tables available. Connection failed during startup:")
	assert.Contains(t, out, "database unavailable")
	assert.Contains(t, out, "Check the tenant configuration")
}

func TestListTables(t *testing.T) {
	t.Parallel()

	r := baseRoutes()
	delete(r, "POST /Script.SCR_DDL_GetTableDDL")

	e := connectedEngine(t, r)
	e.Store().SetExposedDescription("Orders", "Service orders and invoices.")

	out := e.ListTables()
	assert.Contains(t, out, "Available tables (3 total):")
	assert.Contains(t, out, "  Orders: Service orders and invoices.")
	assert.Contains(t, out, "  + 2 discovered tables: TBL_DDL_Context, WorkOrders_TO")
}

func TestGetSchema(t *testing.T) {
	t.Parallel()

	e := connectedEngine(t, baseRoutes())

	out := e.GetSchema(t.Context(), "Orders", false, false)
	assert.Contains(t, out, "Table: Orders (7 fields, 1 internal hidden)")
	assert.Contains(t, out, "  _kp_OrderID: text [PK, key]")
	assert.Contains(t, out, "  ServiceDate: datetime  (filter as: YYYY-MM-DD, no quotes)")
	assert.Contains(t, out, "  Status: text  -- Open, Closed, Invoiced")
	assert.Contains(t, out, "7 fields total")
	assert.Contains(t, out, "show_all=true")
	assert.NotContains(t, out, "gLastSync")

	all := e.GetSchema(t.Context(), "Orders", false, true)
	assert.Contains(t, all, "  gLastSync: text [internal]")

	listing := e.GetSchema(t.Context(), "", false, false)
	assert.Contains(t, listing, "Available tables")
	assert.Contains(t, listing, "Orders")
}

func TestReportToday(t *testing.T) {
	t.Parallel()

	e := connectedEngine(t, baseRoutes())

	out := e.ReportToday()
	assert.Contains(t, out, "Current date: 2026-03-01")
	assert.Contains(t, out, "(filters use field 'ServiceDate')")
	assert.Contains(t, out, "ServiceDate eq 2026-03-01")

	// 2026-03-01 is a Sunday, so the week runs from Monday 02-23.
	assert.Contains(t, out, "2026-02-23 to 2026-03-01")
	assert.Contains(t, out, "ServiceDate ge 2026-02-23 and ServiceDate le 2026-03-01")
	assert.Contains(t, out, "2026-01-01 to 2026-03-01 vs 2025-01-01 to 2025-03-01")
}

func multiTenant() tenantList {
	p := singleTenant()
	p.tenants["acme"] = tenant.Config{
		Name: "acme", Host: "acme.test", Database: "AcmeOps",
		Username: "mcp_agent", Password: "secret",
		VerifyTLS: true, Timeout: time.Second,
	}

	return p
}

func TestUseTenant(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, multiTenant(), baseRoutes())
	require.NoError(t, e.Connect(t.Context()))

	out := e.UseTenant(t.Context(), "ACME")
	assert.Contains(t, out, "Switched to 'acme'.")
	assert.Contains(t, out, "Host: acme.test")
	assert.Contains(t, out, "Database: AcmeOps")
	assert.Contains(t, out, "Tables discovered: 1")
	assert.Equal(t, "acme", e.ActiveTenant())

	assert.Equal(t, "Already connected to 'acme' (acme.test/AcmeOps).",
		e.UseTenant(t.Context(), "acme"))

	assert.Equal(t, "Unknown tenant 'nope'. Available: acme, default",
		e.UseTenant(t.Context(), "nope"))
}

func TestListTenants(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, multiTenant(), baseRoutes())
	require.NoError(t, e.Connect(t.Context()))

	want := stringtest.JoinLF(
		"Configured tenants:",
		"",
		"  acme — acme.test/AcmeOps",
		"  default (active) — fm.test/FieldOps",
	)
	assert.Equal(t, want, e.ListTenants())

	empty := newTestEngine(t, tenantList{}, baseRoutes())
	assert.Equal(t, "No tenants configured. Set *_FM_HOST env vars or FM_HOST for single tenant.",
		empty.ListTenants())
}
