// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. HARVEST_OUTPUT_ROOT.
const EnvPrefix = "HARVEST"

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Output    OutputConfig    `mapstructure:"output"`
	API       APIConfig       `mapstructure:"api"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Publisher PublisherConfig `mapstructure:"publisher"`
}

// OutputConfig locates the output tree.
type OutputConfig struct {
	Root string `mapstructure:"root"`
}

// APIConfig locates the upstream service.
type APIConfig struct {
	GraphQLURL string `mapstructure:"graphql_url"`
	BaseURL    string `mapstructure:"base_url"`
}

// HTTPConfig shapes every outgoing request.
type HTTPConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Cookie            string        `mapstructure:"cookie"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxBodyBytes      int           `mapstructure:"max_body_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
}

// CrawlConfig selects tags and the admission threshold.
type CrawlConfig struct {
	Tags          []string      `mapstructure:"tags"`
	AllTags       bool          `mapstructure:"all_tags"`
	MinEngagement int           `mapstructure:"min_engagement"`
	TagCooldown   time.Duration `mapstructure:"tag_cooldown"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig controls the status/metrics listener. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LedgerConfig enables the Postgres harvest ledger when DSN is set.
type LedgerConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PublisherConfig enables Pub/Sub notifications when both fields are set.
type PublisherConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load reads .env from the working directory (if present), then builds a
// Config from defaults, the optional file at path and the environment.
func Load(path string) (Config, error) {
	return LoadWithEnvFile(path, ".env")
}

// LoadWithEnvFile is Load with an explicit dotenv file. Variables already
// present in the environment win over the file.
func LoadWithEnvFile(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The bare COOKIE variable is what a hand-written .env usually carries.
	if err := v.BindEnv("http.cookie", EnvPrefix+"_HTTP_COOKIE", "COOKIE"); err != nil {
		return Config{}, fmt.Errorf("bind cookie env: %w", err)
	}

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
	cfg.Crawl.Tags = CleanTags(cfg.Crawl.Tags)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.root", "medium-articles")
	v.SetDefault("api.graphql_url", "https://medium.com/_/graphql")
	v.SetDefault("api.base_url", "https://medium.com")
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.max_body_bytes", 20<<20)
	v.SetDefault("http.requests_per_second", 0.5)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("crawl.tags", []string{})
	v.SetDefault("crawl.all_tags", false)
	v.SetDefault("crawl.min_engagement", 0)
	v.SetDefault("crawl.tag_cooldown", time.Duration(0))
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
	v.SetDefault("metrics.addr", "")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ledger.table", "")
	v.SetDefault("publisher.project_id", "")
	v.SetDefault("publisher.topic", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Output.Root) == "" {
		return fmt.Errorf("output.root is required")
	}
	if c.API.GraphQLURL == "" || c.API.BaseURL == "" {
		return fmt.Errorf("api.graphql_url and api.base_url are required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 || c.HTTP.Burst < 0 {
		return fmt.Errorf("http.requests_per_second and http.burst must be >= 0")
	}
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("http.max_attempts must be >= 1")
	}
	if c.Crawl.MinEngagement < 0 {
		return fmt.Errorf("crawl.min_engagement must be >= 0")
	}
	if c.Crawl.TagCooldown < 0 {
		return fmt.Errorf("crawl.tag_cooldown must be >= 0")
	}
	if (c.Publisher.ProjectID == "") != (c.Publisher.Topic == "") {
		return fmt.Errorf("publisher.project_id and publisher.topic must be set together")
	}
	return nil
}

// PublisherEnabled reports whether notifications should be sent.
func (c Config) PublisherEnabled() bool {
	return c.Publisher.ProjectID != "" && c.Publisher.Topic != ""
}

// LedgerEnabled reports whether a ledger DSN was supplied.
func (c Config) LedgerEnabled() bool {
	return c.Ledger.DSN != ""
}

// CleanTags splits comma-separated entries, trims them and drops blanks and
// duplicates.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		for _, tag := range strings.Split(raw, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
