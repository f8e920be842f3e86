package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.jacobcolvin.com/fmgate/tenant"
)

// UseTenant switches the engine to another configured tenant: all cached
// schema, table data, and datasets belong to the previous tenant and are
// dropped before the new connection bootstraps.
func (e *Engine) UseTenant(ctx context.Context, name string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	name = strings.ToLower(strings.TrimSpace(name))

	cfg, err := e.provider.Credentials(name)
	if err != nil {
		if errors.Is(err, tenant.ErrUnknownTenant) {
			return fmt.Sprintf("Unknown tenant '%s'. Available: %s",
				name, strings.Join(e.provider.Names(), ", "))
		}

		return fmt.Sprintf("Error resolving tenant '%s': %v", name, err)
	}

	if name == e.active {
		return fmt.Sprintf("Already connected to '%s' (%s/%s).", name, cfg.Host, cfg.Database)
	}

	e.store.Clear()
	e.cache.FlushAll()
	e.datasets = map[string]*Dataset{}
	e.bootErr = ""

	e.client = e.newClient(cfg)
	e.active = name

	e.bootstrap(ctx)

	if e.bootErr != "" {
		return fmt.Sprintf("Switched to '%s', but connection failed:\n\n  %s", name, e.bootErr)
	}

	return fmt.Sprintf("Switched to '%s'.\n  Host: %s\n  Database: %s\n  Tables discovered: %d\n  DDL cached: %d table(s)",
		name, cfg.Host, cfg.Database, len(e.store.Exposed()), len(e.store.Tables()))
}

// ListTenants lists the configured tenants and marks the active one.
func (e *Engine) ListTenants() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := e.provider.Names()
	if len(names) == 0 {
		return "No tenants configured. Set *_FM_HOST env vars or FM_HOST for single tenant."
	}

	lines := []string{"Configured tenants:", ""}

	for _, name := range names {
		marker := ""
		if name == e.active {
			marker = " (active)"
		}

		cfg, err := e.provider.Credentials(name)
		if err != nil {
			lines = append(lines, fmt.Sprintf("  %s%s — unavailable: %v", name, marker, err))

			continue
		}

		lines = append(lines, fmt.Sprintf("  %s%s — %s/%s", name, marker, cfg.Host, cfg.Database))
	}

	return strings.Join(lines, "\n")
}
