package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"
)

// Holds every setting recognized by the audit runner and the aggregator.
type Config struct {
	// Inputs and outputs
	TargetsFile      string `mapstructure:"TARGETS_FILE"`
	ReportsDir       string `mapstructure:"REPORTS_DIR"`
	SummaryFile      string `mapstructure:"SUMMARY_FILE"`
	ReportsRoot      string `mapstructure:"REPORTS_ROOT"`
	GatlingStatsPath string `mapstructure:"GATLING_STATS_PATH"`

	// Audit runner
	MaxAttempts    int           `mapstructure:"MAX_ATTEMPTS"`
	RetryBackoff   time.Duration `mapstructure:"RETRY_BACKOFF"`
	ChromePath     string        `mapstructure:"CHROME_PATH"`
	ChromePort     int           `mapstructure:"CHROME_PORT"`
	ChromeFlags    string        `mapstructure:"CHROME_FLAGS"`
	LaunchTimeout  time.Duration `mapstructure:"LAUNCH_TIMEOUT"`
	LighthousePath string        `mapstructure:"LIGHTHOUSE_PATH"`
	AuditTimeout   time.Duration `mapstructure:"AUDIT_TIMEOUT"`
	MaxWaitForFCP  time.Duration `mapstructure:"MAX_WAIT_FOR_FCP"`
	MaxWaitForLoad time.Duration `mapstructure:"MAX_WAIT_FOR_LOAD"`

	// Field data (PageSpeed Insights). Enrichment is off without a key.
	PSIAPIKey    string        `mapstructure:"PSI_API_KEY"`
	PSIEndpoint  string        `mapstructure:"PSI_ENDPOINT"`
	PSIStrategy  string        `mapstructure:"PSI_STRATEGY"`
	PSITimeout   time.Duration `mapstructure:"PSI_TIMEOUT"`
	PSIRateLimit float64       `mapstructure:"PSI_RATE_LIMIT"`

	// Redis cache for field data, disabled when the host is empty
	RedisHost         string        `mapstructure:"REDIS_HOST"`
	RedisPort         string        `mapstructure:"REDIS_PORT"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	FieldDataCacheTTL time.Duration `mapstructure:"FIELD_DATA_CACHE_TTL"`

	RunLedgerPath   string `mapstructure:"RUN_LEDGER_PATH"`
	MetricsTextfile string `mapstructure:"METRICS_TEXTFILE"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("TARGETS_FILE", "urls.json")
	viper.SetDefault("REPORTS_DIR", "lighthouse-reports")
	viper.SetDefault("SUMMARY_FILE", "index.html")
	viper.SetDefault("REPORTS_ROOT", "reports")
	viper.SetDefault("GATLING_STATS_PATH", "")

	viper.SetDefault("MAX_ATTEMPTS", 2)
	viper.SetDefault("RETRY_BACKOFF", 1500*time.Millisecond)
	viper.SetDefault("CHROME_PATH", "google-chrome")
	viper.SetDefault("CHROME_PORT", 9222)
	viper.SetDefault("CHROME_FLAGS", "--headless=new")
	viper.SetDefault("LAUNCH_TIMEOUT", 30*time.Second)
	viper.SetDefault("LIGHTHOUSE_PATH", "lighthouse")
	viper.SetDefault("AUDIT_TIMEOUT", 3*time.Minute)
	viper.SetDefault("MAX_WAIT_FOR_FCP", 60*time.Second)
	viper.SetDefault("MAX_WAIT_FOR_LOAD", 90*time.Second)

	viper.SetDefault("PSI_API_KEY", "")
	viper.SetDefault("PSI_ENDPOINT", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed")
	viper.SetDefault("PSI_STRATEGY", "mobile")
	viper.SetDefault("PSI_TIMEOUT", 30*time.Second)
	viper.SetDefault("PSI_RATE_LIMIT", 1.0)

	viper.SetDefault("REDIS_HOST", "")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("FIELD_DATA_CACHE_TTL", 24*time.Hour)

	viper.SetDefault("RUN_LEDGER_PATH", "")
	viper.SetDefault("METRICS_TEXTFILE", "")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &config, nil
}

// Returns the well-known Gatling snapshot path, derived from the reports
// root when it was not set explicitly.
func (c *Config) StatsPath() string {
	if c.GatlingStatsPath != "" {
		return c.GatlingStatsPath
	}
	return filepath.Join(c.ReportsRoot, "gatling-json", "stats.json")
}

// Full path of the rendered summary.
func (c *Config) SummaryPath() string {
	return filepath.Join(c.ReportsDir, c.SummaryFile)
}

// Summary file name without its extension. No page may use it as a name.
func (c *Config) SummaryName() string {
	return strings.TrimSuffix(c.SummaryFile, filepath.Ext(c.SummaryFile))
}

// Field-data enrichment only runs when a credential is present.
func (c *Config) EnrichmentEnabled() bool {
	return c.PSIAPIKey != ""
}
