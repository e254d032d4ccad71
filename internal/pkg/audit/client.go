package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"perfsummary/internal/pkg/models"
)

// Audits a single URL against a running browser and returns both reports.
type Client interface {
	Audit(ctx context.Context, browser Browser, target models.Target) (models.Artifacts, error)
}

// Navigation budgets passed to the audit engine.
type Settings struct {
	MaxWaitForFCP  time.Duration
	MaxWaitForLoad time.Duration
}

type LighthouseOptions struct {
	Path     string
	Timeout  time.Duration
	Settings Settings
}

// Runs the lighthouse CLI once per audit, attached to the shared browser.
type LighthouseClient struct {
	opts LighthouseOptions
}

func NewLighthouseClient(opts LighthouseOptions) *LighthouseClient {
	if opts.Path == "" {
		opts.Path = "lighthouse"
	}
	return &LighthouseClient{opts: opts}
}

// Lighthouse config file: the default config restricted to the summary's
// categories, with desktop emulation and the configured navigation budgets.
type lighthouseConfig struct {
	Extends  string             `json:"extends"`
	Settings lighthouseSettings `json:"settings"`
}

type lighthouseSettings struct {
	OnlyCategories  []string        `json:"onlyCategories"`
	FormFactor      string          `json:"formFactor"`
	ScreenEmulation screenEmulation `json:"screenEmulation"`
	MaxWaitForFcp   int64           `json:"maxWaitForFcp,omitempty"`
	MaxWaitForLoad  int64           `json:"maxWaitForLoad,omitempty"`
}

type screenEmulation struct {
	Mobile            bool    `json:"mobile"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor"`
	Disabled          bool    `json:"disabled"`
}

// Encodes the lighthouse config for the given settings.
func BuildConfig(settings Settings) ([]byte, error) {
	config := lighthouseConfig{
		Extends: "lighthouse:default",
		Settings: lighthouseSettings{
			OnlyCategories: models.AuditCategories,
			FormFactor:     "desktop",
			ScreenEmulation: screenEmulation{
				Mobile:            false,
				Width:             1350,
				Height:            940,
				DeviceScaleFactor: 1,
			},
			MaxWaitForFcp:  settings.MaxWaitForFCP.Milliseconds(),
			MaxWaitForLoad: settings.MaxWaitForLoad.Milliseconds(),
		},
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal lighthouse config")
	}
	return data, nil
}

// Command line for one audit. With several outputs lighthouse writes
// <outputBase>.report.html and <outputBase>.report.json.
func buildArgs(url string, port int, configPath, outputBase string) []string {
	return []string{
		url,
		fmt.Sprintf("--port=%d", port),
		"--config-path=" + configPath,
		"--output=html",
		"--output=json",
		"--output-path=" + outputBase,
		"--quiet",
	}
}

func (c *LighthouseClient) Audit(ctx context.Context, browser Browser, target models.Target) (models.Artifacts, error) {
	workDir, err := os.MkdirTemp("", "perfsummary-audit-")
	if err != nil {
		return models.Artifacts{}, errors.Wrap(err, "create audit work directory")
	}
	defer os.RemoveAll(workDir)

	config, err := BuildConfig(c.opts.Settings)
	if err != nil {
		return models.Artifacts{}, err
	}
	configPath := filepath.Join(workDir, "config.json")
	if err := os.WriteFile(configPath, config, 0o644); err != nil {
		return models.Artifacts{}, errors.Wrap(err, "write lighthouse config")
	}

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	outputBase := filepath.Join(workDir, "lighthouse")
	cmd := exec.CommandContext(ctx, c.opts.Path, buildArgs(target.URL, browser.Port(), configPath, outputBase)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return models.Artifacts{}, errors.Wrap(ctx.Err(), "lighthouse timed out")
		}
		return models.Artifacts{}, errors.Errorf("lighthouse: %v: %s", err, lastLines(stderr.String(), 5))
	}

	html, err := os.ReadFile(outputBase + ".report.html")
	if err != nil {
		return models.Artifacts{}, errors.Wrap(err, "read html report")
	}
	report, err := os.ReadFile(outputBase + ".report.json")
	if err != nil {
		return models.Artifacts{}, errors.Wrap(err, "read json report")
	}

	return models.Artifacts{
		Name: target.Name,
		HTML: html,
		JSON: json.RawMessage(report),
	}, nil
}

// Keeps the tail of the CLI's stderr, where lighthouse prints the failure.
func lastLines(text string, n int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
