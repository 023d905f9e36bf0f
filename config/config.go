package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Defaults
const (
	DefaultSince       = "2025-01-01T00:00:00Z"
	DefaultBatchSize   = 10
	DefaultMaxWorkers  = 5
	DefaultTimeout     = 30 * time.Second
	DefaultBackend     = BackendCLI
	DefaultLogLevel    = "info"
	DefaultTopCommits  = 5
	DefaultEnvPrefix   = "ORGCOMMITS"
	DefaultConfigName  = ".orgcommits"
	defaultTokenEnvVar = "GITHUB_TOKEN"
)

// Export formats
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// Remote backends
const (
	BackendCLI = "cli"
	BackendAPI = "api"
)

// isoLayouts are the accepted ISO-8601 forms for since/until.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// CollectionConfig holds the validated settings for one collection run.
type CollectionConfig struct {
	Organization        string
	Since               string
	Until               string
	IncludeStats        bool
	IncludeAllBranches  bool
	AuthorFilter        string
	ExcludeMergeCommits bool
	MaxWorkers          int
	BatchSize           int
	Timeout             time.Duration
}

// Option mutates a CollectionConfig before validation.
type Option func(*CollectionConfig)

func WithSince(since string) Option {
	return func(c *CollectionConfig) { c.Since = since }
}
func WithUntil(until string) Option {
	return func(c *CollectionConfig) { c.Until = until }
}
func WithStats(on bool) Option {
	return func(c *CollectionConfig) { c.IncludeStats = on }
}
func WithAllBranches(on bool) Option {
	return func(c *CollectionConfig) { c.IncludeAllBranches = on }
}
func WithAuthor(author string) Option {
	return func(c *CollectionConfig) { c.AuthorFilter = author }
}
func WithoutMerges(on bool) Option {
	return func(c *CollectionConfig) { c.ExcludeMergeCommits = on }
}
func WithMaxWorkers(n int) Option {
	return func(c *CollectionConfig) { c.MaxWorkers = n }
}
func WithBatchSize(n int) Option {
	return func(c *CollectionConfig) { c.BatchSize = n }
}
func WithTimeout(d time.Duration) Option {
	return func(c *CollectionConfig) { c.Timeout = d }
}

// NewCollectionConfig creates a validated CollectionConfig for org.
func NewCollectionConfig(org string, opts ...Option) (*CollectionConfig, error) {
	c := &CollectionConfig{
		Organization: org,
		Since:        DefaultSince,
		MaxWorkers:   DefaultMaxWorkers,
		BatchSize:    DefaultBatchSize,
		Timeout:      DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration. The until date is not compared with since.
func (c *CollectionConfig) Validate() error {
	if strings.TrimSpace(c.Organization) == "" {
		return newConfigError("organization", c.Organization, "organization name is required")
	}
	if !ValidDate(c.Since) {
		return newConfigError("since", c.Since, "use ISO format like '2025-01-01T00:00:00Z'")
	}
	if c.Until != "" && !ValidDate(c.Until) {
		return newConfigError("until", c.Until, "use ISO format like '2025-12-31T23:59:59Z'")
	}
	if c.MaxWorkers < 1 {
		return newConfigError("max-workers", fmt.Sprint(c.MaxWorkers), "must be at least 1")
	}
	if c.BatchSize < 1 {
		return newConfigError("batch-size", fmt.Sprint(c.BatchSize), "must be at least 1")
	}
	if c.Timeout <= 0 {
		return newConfigError("timeout", c.Timeout.String(), "must be positive")
	}
	return nil
}

// ParseDate parses s using the accepted ISO-8601 forms.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// ValidDate reports whether s is an accepted ISO-8601 timestamp.
func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// AppConfig holds everything the command needs beyond the collection itself.
type AppConfig struct {
	Collection  *CollectionConfig
	Repos       []string
	Output      string
	Format      string
	Backend     string
	Token       string
	APIURL      string
	LogLevel    string
	DatabaseURL string
	TopCommits  int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("since", DefaultSince)
	v.SetDefault("batch-size", DefaultBatchSize)
	v.SetDefault("max-workers", DefaultMaxWorkers)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("backend", DefaultBackend)
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("top", DefaultTopCommits)
}

// Load reads configuration for org from v (flags, env and config file).
func Load(v *viper.Viper, org string) (*AppConfig, error) {
	SetDefaults(v)
	v.SetEnvPrefix(DefaultEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	timeout, err := durationValue(v.Get("timeout"))
	if err != nil {
		return nil, newConfigError("timeout", v.GetString("timeout"), "use seconds or a duration like '30s'")
	}

	collection, err := NewCollectionConfig(org,
		WithSince(v.GetString("since")),
		WithUntil(v.GetString("until")),
		WithStats(v.GetBool("stats")),
		WithAllBranches(v.GetBool("all-branches")),
		WithAuthor(v.GetString("author")),
		WithoutMerges(v.GetBool("no-merge")),
		WithMaxWorkers(v.GetInt("max-workers")),
		WithBatchSize(v.GetInt("batch-size")),
		WithTimeout(timeout),
	)
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{
		Collection:  collection,
		Repos:       v.GetStringSlice("repos"),
		Output:      v.GetString("output"),
		Format:      strings.ToLower(v.GetString("format")),
		Backend:     strings.ToLower(v.GetString("backend")),
		Token:       v.GetString("token"),
		APIURL:      v.GetString("api-url"),
		LogLevel:    v.GetString("log-level"),
		DatabaseURL: v.GetString("database-url"),
		TopCommits:  v.GetInt("top"),
	}

	// Fall back to the conventional token variable
	// An unset list means discover every repository
	if len(cfg.Repos) == 0 {
		cfg.Repos = nil
	}

	if cfg.Token == "" {
		_ = v.BindEnv("github-token", defaultTokenEnvVar)
		cfg.Token = v.GetString("github-token")
	}

	switch cfg.Backend {
	case BackendCLI:
	case BackendAPI:
		if cfg.Token == "" {
			return nil, newConfigError("token", "", "GITHUB_TOKEN is required for the api backend")
		}
	default:
		return nil, newConfigError("backend", cfg.Backend, "must be 'cli' or 'api'")
	}

	if cfg.Format == "" {
		cfg.Format = FormatCSV
		if strings.HasSuffix(strings.ToLower(cfg.Output), "."+FormatParquet) {
			cfg.Format = FormatParquet
		}
	}

	switch cfg.Format {
	case FormatCSV, FormatParquet:
	default:
		return nil, newConfigError("format", cfg.Format, "must be 'csv' or 'parquet'")
	}

	if cfg.TopCommits < 0 {
		cfg.TopCommits = DefaultTopCommits
	}

	return cfg, nil
}

// durationValue reads a duration setting. Values without a unit are seconds.
func durationValue(raw any) (time.Duration, error) {
	switch val := raw.(type) {
	case time.Duration:
		return val, nil
	case string:
		val = strings.TrimSpace(val)
		if val == "" {
			return 0, nil
		}
		if strings.ContainsAny(val, "nsuµmh") {
			return time.ParseDuration(val)
		}
	}
	seconds, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
