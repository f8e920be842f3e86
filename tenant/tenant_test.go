package tenant

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) ([]string, func(string) string) {
	environ := make([]string, 0, len(m))
	for k, v := range m {
		environ = append(environ, k+"="+v)
	}

	return environ, func(key string) string { return m[key] }
}

func TestEnvProviderMultiTenant(t *testing.T) {
	t.Parallel()

	environ, getenv := envMap(map[string]string{
		"ACME_FM_HOST":      "fm.acme.example",
		"ACME_FM_DATABASE":  "Sales",
		"ACME_FM_USERNAME":  "agent",
		"ACME_FM_PASSWORD":  "hunter2",
		"ACME_FM_TIMEOUT":   "30",
		"BETA_FM_HOST":      "fm.beta.example",
		"BETA_FM_VERIFY_SSL": "false",
		"FM_DEFAULT_TENANT": "beta",
	})

	p := newEnvProvider(environ, getenv)

	assert.Equal(t, []string{"acme", "beta"}, p.Names())
	assert.Equal(t, "beta", p.Default())

	acme, err := p.Credentials("acme")
	require.NoError(t, err)
	assert.Equal(t, "fm.acme.example", acme.Host)
	assert.Equal(t, "Sales", acme.Database)
	assert.Equal(t, "agent", acme.Username)
	assert.Equal(t, 30*time.Second, acme.Timeout)
	assert.True(t, acme.VerifyTLS)

	beta, err := p.Credentials("beta")
	require.NoError(t, err)
	assert.False(t, beta.VerifyTLS)
	assert.Equal(t, "mcp_agent", beta.Username)
	assert.Equal(t, 60*time.Second, beta.Timeout)

	_, err = p.Credentials("nope")
	require.ErrorIs(t, err, ErrUnknownTenant)
	assert.ErrorContains(t, err, "acme, beta")
}

func TestEnvProviderSingleTenantFallback(t *testing.T) {
	t.Parallel()

	environ, getenv := envMap(map[string]string{
		"FM_HOST":     "fm.solo.example",
		"FM_DATABASE": "Ops",
	})

	p := newEnvProvider(environ, getenv)

	assert.Equal(t, []string{"default"}, p.Names())
	assert.Equal(t, "default", p.Default())

	cfg, err := p.Credentials("default")
	require.NoError(t, err)
	assert.Equal(t, "fm.solo.example", cfg.Host)
	assert.Equal(t, "Ops", cfg.Database)
}

func TestEnvProviderEmpty(t *testing.T) {
	t.Parallel()

	p := newEnvProvider(nil, func(string) string { return "" })

	assert.Empty(t, p.Names())
	assert.Empty(t, p.Default())
}

func TestFileProvider(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default: acme
tenants:
  acme:
    host: fm.acme.example
    database: Sales
    username: agent
    password: hunter2
    verify_tls: true
    timeout: 30s
  beta:
    host: fm.beta.example
    database: Ops
    password: s3cret
`), 0o600))

	p, err := NewFileProvider(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"acme", "beta"}, p.Names())
	assert.Equal(t, "acme", p.Default())

	acme, err := p.Credentials("acme")
	require.NoError(t, err)
	assert.Equal(t, "acme", acme.Name)
	assert.Equal(t, 30*time.Second, acme.Timeout)

	beta, err := p.Credentials("beta")
	require.NoError(t, err)
	assert.Equal(t, "mcp_agent", beta.Username)
	assert.Equal(t, 60*time.Second, beta.Timeout)
}

func TestFileProviderErrors(t *testing.T) {
	t.Parallel()

	_, err := NewFileProvider(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenants: [not a map"), 0o600))

	_, err = NewFileProvider(path)
	require.Error(t, err)
}
