// Package engine implements the mediator's operations: schema discovery
// and bootstrap against a FileMaker OData endpoint, cached record queries,
// in-memory analytics over loaded datasets, operational-context
// persistence, and tenant switching. Every operation returns formatted
// text for an AI client; errors become readable messages, never panics.
package engine

import (
	"log/slog"
	"sync"
	"time"

	"go.jacobcolvin.com/fmgate/cache"
	"go.jacobcolvin.com/fmgate/frame"
	"go.jacobcolvin.com/fmgate/odata"
	"go.jacobcolvin.com/fmgate/schema"
	"go.jacobcolvin.com/fmgate/tenant"
)

// Dataset is a named row-set loaded for analytics.
type Dataset struct {
	Frame    *frame.Frame
	Table    string
	Filter   string
	Select   string
	LoadedAt time.Time
}

// Engine owns the connection to the active tenant and all per-tenant
// state. Operations serialize on one mutex; the engine mediates a single
// conversational client, not a request fan-in.
type Engine struct {
	provider  tenant.Provider
	store     *schema.Store
	cache     *cache.Cache
	logger    *slog.Logger
	now       func() time.Time
	newClient func(tenant.Config) *odata.Client

	mu       sync.Mutex
	client   *odata.Client
	active   string
	datasets map[string]*Dataset
	bootErr  string
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithNow overrides the clock used for today-refresh and report periods.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithClientFactory overrides how tenant configs become OData clients.
// Tests point this at httptest servers.
func WithClientFactory(factory func(tenant.Config) *odata.Client) Option {
	return func(e *Engine) {
		if factory != nil {
			e.newClient = factory
		}
	}
}

// New creates an engine backed by the given credential provider. No
// connection is made until [Engine.Connect].
func New(provider tenant.Provider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		store:    schema.NewStore(),
		logger:   slog.Default(),
		now:      time.Now,
		datasets: map[string]*Dataset{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.cache = cache.New(e.logger)

	if e.newClient == nil {
		e.newClient = func(cfg tenant.Config) *odata.Client {
			clientOpts := []odata.ClientOption{
				odata.WithTimeout(cfg.Timeout),
				odata.WithLogger(e.logger),
			}
			if !cfg.VerifyTLS {
				clientOpts = append(clientOpts, odata.WithInsecureTLS())
			}

			return odata.NewClient(cfg.Host, cfg.Database, cfg.Username, cfg.Password, clientOpts...)
		}
	}

	return e
}

// Store exposes the schema store, mainly for tests and the CLI.
func (e *Engine) Store() *schema.Store {
	return e.store
}

// ActiveTenant returns the name of the connected tenant, or empty.
func (e *Engine) ActiveTenant() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.active
}
