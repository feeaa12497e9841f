// Package config loads adcarbon settings from ~/.adcarbon/config.yaml, a
// project-local overlay and ADCARBON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/rshade/adcarbon/internal/engine/cache"
)

// Defaults.
const (
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultComputeTimeout = "10s"
	DefaultConcurrency    = 4
	DefaultStoreDriver    = StoreSQLite
	DefaultOutputFormat   = "table"
	DefaultPrecision      = 2
	DefaultDebounceMS     = 300
	DefaultServerAddr     = "127.0.0.1:8080"

	maxPrecision  = 6
	maxDebounceMS = 10_000

	configFileName = "config.yaml"
)

// Store drivers.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ErrUnknownKey is returned by Get and Set for unsupported keys.
var ErrUnknownKey = errors.New("unknown configuration key")

// Config is the complete adcarbon configuration.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Compute ComputeConfig `yaml:"compute"`
	Tables  TablesConfig  `yaml:"tables"`
	Store   StoreConfig   `yaml:"store"`
	Cache   CacheConfig   `yaml:"cache"`
	Output  OutputConfig  `yaml:"output"`
	Preview PreviewConfig `yaml:"preview"`
	Server  ServerConfig  `yaml:"server"`

	path string
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// ComputeConfig points at the remote emission compute service. An empty
// endpoint disables remote calls and every result uses the local estimate.
type ComputeConfig struct {
	Endpoint       string `yaml:"endpoint,omitempty"`
	Timeout        string `yaml:"timeout"`
	MaxConcurrency int    `yaml:"max_concurrency"`
}

// TimeoutDuration parses Timeout, falling back to the default.
func (c ComputeConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultComputeTimeout)
	}
	return d
}

// Enabled reports whether a compute endpoint is configured.
func (c ComputeConfig) Enabled() bool { return c.Endpoint != "" }

// TablesConfig names optional YAML table files. Empty paths use the built-in
// tables.
type TablesConfig struct {
	Conversion      string `yaml:"conversion,omitempty"`
	EmissionFactors string `yaml:"emission_factors,omitempty"`
}

// StoreConfig selects the activity store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn,omitempty"`
}

// CacheConfig controls the persisted result cache.
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory,omitempty"`
	TTL       string `yaml:"ttl"`
}

// TTLSeconds parses TTL; zero means results never expire.
func (c CacheConfig) TTLSeconds() int {
	ttl, err := cache.ParseTTL(c.TTL)
	if err != nil {
		return cache.DefaultTTLSeconds
	}
	return ttl
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	DefaultFormat  string `yaml:"default_format"`
	TotalPrecision int    `yaml:"total_precision"`
}

// PreviewConfig controls the interactive preview.
type PreviewConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// Debounce returns the preview quiet period.
func (p PreviewConfig) Debounce() time.Duration {
	return time.Duration(p.DebounceMS) * time.Millisecond
}

// ServerConfig controls `adcarbon serve`.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
		Compute: ComputeConfig{Timeout: DefaultComputeTimeout, MaxConcurrency: DefaultConcurrency},
		Store:   StoreConfig{Driver: DefaultStoreDriver},
		Cache:   CacheConfig{Enabled: true, TTL: strconv.Itoa(cache.DefaultTTLSeconds)},
		Output:  OutputConfig{DefaultFormat: DefaultOutputFormat, TotalPrecision: DefaultPrecision},
		Preview: PreviewConfig{DebounceMS: DefaultDebounceMS},
		Server:  ServerConfig{Addr: DefaultServerAddr},
	}
}

// New returns the defaults overlaid with the user config file, when present,
// and environment overrides. A malformed file is ignored.
func New() *Config {
	cfg := Default()
	if path, err := DefaultPath(); err == nil {
		cfg.path = path
		if data, readErr := os.ReadFile(path); readErr == nil { //nolint:gosec // path under the config dir
			loaded := Default()
			if yaml.Unmarshal(data, loaded) == nil {
				loaded.path = path
				cfg = loaded
			}
		}
	}
	cfg.ApplyEnv()
	return cfg
}

// Load reads the config file at path on top of the defaults and applies
// environment overrides. Unlike New, a missing or malformed file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the --config flag
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.path = path
	cfg.ApplyEnv()
	return cfg, nil
}

// ReadFile reads the config file at path on top of the defaults without
// environment overrides, so the result can be edited and saved back. A
// missing file yields the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	data, err := os.ReadFile(path) //nolint:gosec // path comes from user configuration
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the file the config was read from or will be saved to.
func (c *Config) Path() string { return c.path }

// SetPath changes where Save writes.
func (c *Config) SetPath(path string) { c.path = path }

// envOverrides maps environment variables to config keys.
//
//nolint:gochecknoglobals // read-only lookup table
var envOverrides = []struct {
	env string
	key string
}{
	{"ADCARBON_LOG_LEVEL", "logging.level"},
	{"ADCARBON_LOG_FORMAT", "logging.format"},
	{"ADCARBON_LOG_FILE", "logging.file"},
	{"ADCARBON_COMPUTE_ENDPOINT", "compute.endpoint"},
	{"ADCARBON_COMPUTE_TIMEOUT", "compute.timeout"},
	{"ADCARBON_STORE_DRIVER", "store.driver"},
	{"ADCARBON_STORE_DSN", "store.dsn"},
	{"ADCARBON_CACHE_ENABLED", "cache.enabled"},
	{"ADCARBON_CACHE_TTL", "cache.ttl"},
	{"ADCARBON_OUTPUT_FORMAT", "output.default_format"},
}

// ApplyEnv applies ADCARBON_* overrides. Values that fail to parse are
// skipped.
func (c *Config) ApplyEnv() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			_ = c.Set(o.key, v)
		}
	}
}

// Validate checks every field's range.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	_, lvlErr := zerolog.ParseLevel(c.Logging.Level)
	check(lvlErr == nil, "logging.level %q is not a log level", c.Logging.Level)
	check(slices.Contains([]string{"console", "text", "json"}, c.Logging.Format),
		"logging.format must be console, text or json, got %q", c.Logging.Format)

	d, durErr := time.ParseDuration(c.Compute.Timeout)
	check(durErr == nil && d > 0, "compute.timeout %q must be a positive duration", c.Compute.Timeout)
	check(c.Compute.MaxConcurrency >= 1, "compute.max_concurrency must be at least 1")
	if c.Compute.Endpoint != "" {
		check(strings.HasPrefix(c.Compute.Endpoint, "http://") || strings.HasPrefix(c.Compute.Endpoint, "https://"),
			"compute.endpoint %q must be an http(s) URL", c.Compute.Endpoint)
	}

	check(c.Store.Driver == StoreMemory || c.Store.Driver == StoreSQLite,
		"store.driver must be memory or sqlite, got %q", c.Store.Driver)

	_, ttlErr := cache.ParseTTL(c.Cache.TTL)
	check(ttlErr == nil, "cache.ttl %q: %v", c.Cache.TTL, ttlErr)

	check(c.Output.DefaultFormat == "table" || c.Output.DefaultFormat == "json",
		"output.default_format must be table or json, got %q", c.Output.DefaultFormat)
	check(c.Output.TotalPrecision >= 0 && c.Output.TotalPrecision <= maxPrecision,
		"output.total_precision must be between 0 and %d", maxPrecision)
	check(c.Preview.DebounceMS >= 0 && c.Preview.DebounceMS <= maxDebounceMS,
		"preview.debounce_ms must be between 0 and %d", maxDebounceMS)

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Save writes the config as YAML to Path, creating the directory if needed.
func (c *Config) Save() error {
	if c.path == "" {
		path, err := DefaultPath()
		if err != nil {
			return err
		}
		c.path = path
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err = os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err = os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("writing config %s: %w", c.path, err)
	}
	return nil
}

// StoreDSN returns the sqlite path, defaulting to activities.db in the config
// directory.
func (c *Config) StoreDSN() (string, error) {
	if c.Store.DSN != "" {
		return c.Store.DSN, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "activities.db"), nil
}

// CacheDir returns the result cache directory, defaulting to cache/ in the
// config directory.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Directory != "" {
		return c.Cache.Directory, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringField(ptr func(c *Config) *string) field {
	return field{
		get: func(c *Config) string { return *ptr(c) },
		set: func(c *Config, v string) error { *ptr(c) = v; return nil },
	}
}

func intField(ptr func(c *Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer: %w", err)
			}
			*ptr(c) = n
			return nil
		},
	}
}

// fields lists the keys reachable through Get and Set.
//
//nolint:gochecknoglobals // read-only lookup table
var fields = map[string]field{
	"logging.level":           stringField(func(c *Config) *string { return &c.Logging.Level }),
	"logging.format":          stringField(func(c *Config) *string { return &c.Logging.Format }),
	"logging.file":            stringField(func(c *Config) *string { return &c.Logging.File }),
	"compute.endpoint":        stringField(func(c *Config) *string { return &c.Compute.Endpoint }),
	"compute.timeout":         stringField(func(c *Config) *string { return &c.Compute.Timeout }),
	"compute.max_concurrency": intField(func(c *Config) *int { return &c.Compute.MaxConcurrency }),
	"tables.conversion":       stringField(func(c *Config) *string { return &c.Tables.Conversion }),
	"tables.emission_factors": stringField(func(c *Config) *string { return &c.Tables.EmissionFactors }),
	"store.driver":            stringField(func(c *Config) *string { return &c.Store.Driver }),
	"store.dsn":               stringField(func(c *Config) *string { return &c.Store.DSN }),
	"cache.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Cache.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("expected a boolean: %w", err)
			}
			c.Cache.Enabled = b
			return nil
		},
	},
	"cache.directory":        stringField(func(c *Config) *string { return &c.Cache.Directory }),
	"cache.ttl":              stringField(func(c *Config) *string { return &c.Cache.TTL }),
	"output.default_format":  stringField(func(c *Config) *string { return &c.Output.DefaultFormat }),
	"output.total_precision": intField(func(c *Config) *int { return &c.Output.TotalPrecision }),
	"preview.debounce_ms":    intField(func(c *Config) *int { return &c.Preview.DebounceMS }),
	"server.addr":            stringField(func(c *Config) *string { return &c.Server.Addr }),
	"server.allowed_origins": {
		get: func(c *Config) string { return strings.Join(c.Server.AllowedOrigins, ",") },
		set: func(c *Config, v string) error {
			c.Server.AllowedOrigins = nil
			for _, o := range strings.Split(v, ",") {
				if o = strings.TrimSpace(o); o != "" {
					c.Server.AllowedOrigins = append(c.Server.AllowedOrigins, o)
				}
			}
			return nil
		},
	},
}

// Keys returns every key accepted by Get and Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Get returns the value at a dotted key such as "compute.endpoint".
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return f.get(c), nil
}

// Set assigns the value at a dotted key. It does not validate ranges; call
// Validate before saving.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if err := f.set(c, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
