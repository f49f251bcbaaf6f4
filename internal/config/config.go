// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Chart source selectors accepted by chart.source.
const (
	ChartSourceFeed = "feed"
	ChartSourcePage = "page"
)

// Output provider selectors accepted by output.provider.
const (
	OutputProviderLocal = "local"
	OutputProviderGCS   = "gcs"
)

// Config captures all collector configuration knobs loaded via Viper.
type Config struct {
	Run        RunConfig        `mapstructure:"run"`
	Chart      ChartConfig      `mapstructure:"chart"`
	Lookup     LookupConfig     `mapstructure:"lookup"`
	Retry      RetryConfig      `mapstructure:"retry"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Output     OutputConfig     `mapstructure:"output"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Genres     GenresConfig     `mapstructure:"genres"`
}

// RunConfig selects the storefront and the category input file.
type RunConfig struct {
	Country  string `mapstructure:"country"`
	Limit    int    `mapstructure:"limit"`
	InputCSV string `mapstructure:"input_csv"`
}

// ChartConfig governs how ranked app IDs are extracted.
type ChartConfig struct {
	Source            string `mapstructure:"source"`
	FeedBaseURL       string `mapstructure:"feed_base_url"`
	PageBaseURL       string `mapstructure:"page_base_url"`
	FallbackTopFree   bool   `mapstructure:"fallback_top_free"`
	LegacyFeedBaseURL string `mapstructure:"legacy_feed_base_url"`
}

// LookupConfig controls the metadata lookup API client.
type LookupConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Delay   time.Duration `mapstructure:"delay"`
}

// RetryConfig tunes backoff behavior for transient lookup failures.
type RetryConfig struct {
	MaxRetries    int           `mapstructure:"max_retries"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// HTTPConfig configures the shared HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// EnrichmentConfig gates the best-effort product page enricher.
type EnrichmentConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	Headless      bool `mapstructure:"headless"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// OutputConfig sets table destination, naming, and provider.
type OutputConfig struct {
	Dir              string `mapstructure:"dir"`
	FilenameTemplate string `mapstructure:"filename_template"`
	Provider         string `mapstructure:"provider"`
	GCSBucket        string `mapstructure:"gcs_bucket"`
}

// DBConfig enables the optional Postgres row sink when DSN is set.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig enables per-category completion notifications when both
// fields are set.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig exposes the optional ops listener (/metrics, /healthz).
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// GenresConfig carries per-deployment category name overrides.
type GenresConfig struct {
	Overrides map[string]int `mapstructure:"overrides"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TOPCHARTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Run.Country = strings.ToLower(strings.TrimSpace(cfg.Run.Country))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.country", "us")
	v.SetDefault("run.limit", 50)
	v.SetDefault("run.input_csv", "categories.csv")
	v.SetDefault("chart.source", ChartSourceFeed)
	v.SetDefault("chart.feed_base_url", "https://rss.applemarketingtools.com/api/v2")
	v.SetDefault("chart.page_base_url", "https://apps.apple.com")
	v.SetDefault("chart.fallback_top_free", false)
	v.SetDefault("chart.legacy_feed_base_url", "https://itunes.apple.com")
	v.SetDefault("lookup.base_url", "https://itunes.apple.com")
	v.SetDefault("lookup.delay", 500*time.Millisecond)
	v.SetDefault("retry.max_retries", 4)
	v.SetDefault("retry.backoff_base", time.Second)
	v.SetDefault("retry.backoff_factor", 1.8)
	v.SetDefault("http.timeout_seconds", 12)
	v.SetDefault("http.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("enrichment.enabled", false)
	v.SetDefault("enrichment.headless", false)
	v.SetDefault("enrichment.nav_timeout_seconds", 25)
	v.SetDefault("output.dir", "data/charts")
	v.SetDefault("output.filename_template", "topchart_{country}_{category}.csv")
	v.SetDefault("output.provider", OutputProviderLocal)
	v.SetDefault("db.table", "chart_rows")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Run.Country) != 2 {
		return fmt.Errorf("run.country must be a two-letter storefront code, got %q", c.Run.Country)
	}
	if c.Run.Limit <= 0 || c.Run.Limit > 200 {
		return fmt.Errorf("run.limit must be in 1..200, got %d", c.Run.Limit)
	}
	if strings.TrimSpace(c.Run.InputCSV) == "" {
		return fmt.Errorf("run.input_csv must be set")
	}
	if c.Chart.Source != ChartSourceFeed && c.Chart.Source != ChartSourcePage {
		return fmt.Errorf("chart.source must be %q or %q, got %q", ChartSourceFeed, ChartSourcePage, c.Chart.Source)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0")
	}
	if c.Retry.BackoffBase <= 0 {
		return fmt.Errorf("retry.backoff_base must be > 0")
	}
	if c.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be >= 1")
	}
	if c.Lookup.Delay < 0 {
		return fmt.Errorf("lookup.delay must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(c.Output.Dir) == "" && c.Output.Provider == OutputProviderLocal {
		return fmt.Errorf("output.dir must be set for the local provider")
	}
	if !strings.Contains(c.Output.FilenameTemplate, "{category}") {
		return fmt.Errorf("output.filename_template must contain {category}")
	}
	switch c.Output.Provider {
	case OutputProviderLocal:
	case OutputProviderGCS:
		if c.Output.GCSBucket == "" {
			return fmt.Errorf("output.gcs_bucket must be set when output.provider is gcs")
		}
	default:
		return fmt.Errorf("output.provider must be %q or %q, got %q", OutputProviderLocal, OutputProviderGCS, c.Output.Provider)
	}
	if c.Enrichment.Headless && c.Enrichment.NavTimeoutSec <= 0 {
		return fmt.Errorf("enrichment.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.Topic == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic must be set together")
	}
	return nil
}

// Timeout converts the HTTP timeout into a duration.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
