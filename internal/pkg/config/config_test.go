package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Validates the defaults used when no environment variable is set.
func TestLoadConfigDefaults(t *testing.T) {
	// Clear environment variables that might interfere.
	os.Clearenv()

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if config.ReportsDir != "lighthouse-reports" {
		t.Errorf("expected ReportsDir to be 'lighthouse-reports', got %s", config.ReportsDir)
	}
	if config.MaxAttempts != 2 {
		t.Errorf("expected MaxAttempts to be 2, got %d", config.MaxAttempts)
	}
	if config.RetryBackoff != 1500*time.Millisecond {
		t.Errorf("expected RetryBackoff to be 1.5s, got %s", config.RetryBackoff)
	}
	if config.LogLevel != "info" {
		t.Errorf("expected LogLevel to be 'info', got %s", config.LogLevel)
	}
	if config.EnrichmentEnabled() {
		t.Errorf("expected enrichment to be disabled without PSI_API_KEY")
	}
	if got, want := config.StatsPath(), filepath.Join("reports", "gatling-json", "stats.json"); got != want {
		t.Errorf("expected StatsPath to be %q, got %q", want, got)
	}
	if got, want := config.SummaryPath(), filepath.Join("lighthouse-reports", "index.html"); got != want {
		t.Errorf("expected SummaryPath to be %q, got %q", want, got)
	}
	if config.SummaryName() != "index" {
		t.Errorf("expected SummaryName to be 'index', got %s", config.SummaryName())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MAX_ATTEMPTS", "4")
	t.Setenv("RETRY_BACKOFF", "250ms")
	t.Setenv("PSI_API_KEY", "secret")
	t.Setenv("GATLING_STATS_PATH", "/tmp/stats.json")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SUMMARY_FILE", "summary.html")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if config.MaxAttempts != 4 {
		t.Errorf("expected MaxAttempts to be 4, got %d", config.MaxAttempts)
	}
	if config.RetryBackoff != 250*time.Millisecond {
		t.Errorf("expected RetryBackoff to be 250ms, got %s", config.RetryBackoff)
	}
	if !config.EnrichmentEnabled() {
		t.Errorf("expected enrichment to be enabled with PSI_API_KEY")
	}
	if config.StatsPath() != "/tmp/stats.json" {
		t.Errorf("expected StatsPath to be '/tmp/stats.json', got %s", config.StatsPath())
	}
	if config.LogLevel != "debug" {
		t.Errorf("expected LogLevel to be 'debug', got %s", config.LogLevel)
	}
	if config.SummaryName() != "summary" {
		t.Errorf("expected SummaryName to be 'summary', got %s", config.SummaryName())
	}
}
