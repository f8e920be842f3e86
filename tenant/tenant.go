// Package tenant supplies connection credentials for the FileMaker
// databases the engine can talk to. A [Provider] decouples credential
// sourcing from the engine: the built-in providers read the environment or
// a tenants.yaml file; consumers can plug in their own.
package tenant

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// ErrUnknownTenant is returned when a name has no configuration. The
// wrapping error enumerates the available tenants.
var ErrUnknownTenant = errors.New("unknown tenant")

// Config carries everything needed to connect to one database.
type Config struct {
	Name      string        `yaml:"-"`
	Host      string        `yaml:"host"`
	Database  string        `yaml:"database"`
	Username  string        `yaml:"username"`
	Password  string        `yaml:"password"`
	VerifyTLS bool          `yaml:"verify_tls"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Provider enumerates tenants and resolves their credentials.
type Provider interface {
	// Names returns the available tenant names, sorted.
	Names() []string
	// Credentials returns the config for a tenant, or an error wrapping
	// [ErrUnknownTenant].
	Credentials(name string) (Config, error)
	// Default returns the preferred tenant name, or empty when none is
	// configured.
	Default() string
}

const (
	defaultUsername = "mcp_agent"
	defaultTimeout  = 60 * time.Second
)

// EnvProvider discovers tenants from environment variables. Multi-tenant
// setups define <PREFIX>_FM_HOST (plus _FM_DATABASE, _FM_USERNAME,
// _FM_PASSWORD, _FM_VERIFY_SSL, _FM_TIMEOUT); the prefix, lowercased, is
// the tenant name. With no prefixed variables, plain FM_HOST defines a
// single tenant named "default". FM_DEFAULT_TENANT selects the default.
type EnvProvider struct {
	tenants map[string]Config
	defName string
}

// NewEnvProvider scans the current environment.
func NewEnvProvider() *EnvProvider {
	return newEnvProvider(os.Environ(), os.Getenv)
}

func newEnvProvider(environ []string, getenv func(string) string) *EnvProvider {
	tenants := map[string]Config{}

	for _, kv := range environ {
		key, host, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasSuffix(key, "_FM_HOST") || key == "FM_HOST" {
			continue
		}

		prefix := strings.TrimSuffix(key, "_FM_HOST")
		name := strings.ToLower(prefix)

		tenants[name] = configFromEnv(name, host, prefix+"_FM_", getenv)
	}

	if len(tenants) == 0 {
		if host := getenv("FM_HOST"); host != "" {
			tenants["default"] = configFromEnv("default", host, "FM_", getenv)
		}
	}

	return &EnvProvider{
		tenants: tenants,
		defName: strings.ToLower(getenv("FM_DEFAULT_TENANT")),
	}
}

func configFromEnv(name, host, prefix string, getenv func(string) string) Config {
	cfg := Config{
		Name:      name,
		Host:      host,
		Database:  getenv(prefix + "DATABASE"),
		Username:  getenv(prefix + "USERNAME"),
		Password:  getenv(prefix + "PASSWORD"),
		VerifyTLS: !strings.EqualFold(getenv(prefix+"VERIFY_SSL"), "false"),
		Timeout:   defaultTimeout,
	}

	if cfg.Username == "" {
		cfg.Username = defaultUsername
	}

	if raw := getenv(prefix + "TIMEOUT"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}

	return cfg
}

// Names implements [Provider].
func (p *EnvProvider) Names() []string {
	return sortedNames(p.tenants)
}

// Credentials implements [Provider].
func (p *EnvProvider) Credentials(name string) (Config, error) {
	return lookup(p.tenants, name)
}

// Default implements [Provider].
func (p *EnvProvider) Default() string {
	return pickDefault(p.tenants, p.defName)
}

// FileProvider reads tenants from a YAML file shaped as:
//
//	default: acme
//	tenants:
//	  acme:
//	    host: fm.example.com
//	    database: Sales
//	    username: mcp_agent
//	    password: secret
//	    verify_tls: true
//	    timeout: 60s
type FileProvider struct {
	tenants map[string]Config
	defName string
}

type tenantsFile struct {
	Default string            `yaml:"default"`
	Tenants map[string]Config `yaml:"tenants"`
}

// NewFileProvider parses a tenants.yaml file.
func NewFileProvider(path string) (*FileProvider, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tenants file: %w", err)
	}

	var parsed tenantsFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing tenants file %q: %w", path, err)
	}

	tenants := make(map[string]Config, len(parsed.Tenants))

	for name, cfg := range parsed.Tenants {
		cfg.Name = name

		if cfg.Username == "" {
			cfg.Username = defaultUsername
		}

		if cfg.Timeout <= 0 {
			cfg.Timeout = defaultTimeout
		}

		tenants[name] = cfg
	}

	return &FileProvider{tenants: tenants, defName: parsed.Default}, nil
}

// Names implements [Provider].
func (p *FileProvider) Names() []string {
	return sortedNames(p.tenants)
}

// Credentials implements [Provider].
func (p *FileProvider) Credentials(name string) (Config, error) {
	return lookup(p.tenants, name)
}

// Default implements [Provider].
func (p *FileProvider) Default() string {
	return pickDefault(p.tenants, p.defName)
}

func sortedNames(tenants map[string]Config) []string {
	names := make([]string, 0, len(tenants))
	for name := range tenants {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func lookup(tenants map[string]Config, name string) (Config, error) {
	cfg, ok := tenants[name]
	if !ok {
		return Config{}, fmt.Errorf("%w %q, available: %s",
			ErrUnknownTenant, name, strings.Join(sortedNames(tenants), ", "))
	}

	return cfg, nil
}

func pickDefault(tenants map[string]Config, preferred string) string {
	if preferred != "" {
		if _, ok := tenants[preferred]; ok {
			return preferred
		}
	}

	if _, ok := tenants["default"]; ok {
		return "default"
	}

	if names := sortedNames(tenants); len(names) > 0 {
		return names[0]
	}

	return ""
}
