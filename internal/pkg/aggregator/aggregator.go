// Package aggregator merges persisted audit reports, load-test means and
// optional field data into the summary page.
package aggregator

import (
	"context"
	"encoding/json"
	"os"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/discovery"
	"perfsummary/internal/pkg/extractor"
	"perfsummary/internal/pkg/fielddata"
	"perfsummary/internal/pkg/loadtest"
	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/metrics"
	"perfsummary/internal/pkg/models"
	"perfsummary/internal/pkg/report"
	"perfsummary/internal/pkg/storage"
)

type Options struct {
	// Where the reports are read from and the summary is written to.
	Store *storage.ArtifactStore
	// Locates the load-test statistics; nil skips the join.
	Discovery *discovery.Discovery
	// Nil or disabled skips enrichment.
	Enricher *fielddata.Enricher
	// Defaults to index.html inside the store's directory.
	SummaryPath string
	Title       string
}

type Aggregator struct {
	store       *storage.ArtifactStore
	discovery   *discovery.Discovery
	enricher    *fielddata.Enricher
	summaryPath string
	title       string
}

// Outcome of one aggregation.
type Result struct {
	Records     []models.PageRecord
	ReportCount int
	// Empty when no load-test statistics were found.
	StatsPath   string
	SummaryPath string
	Enriched    int
}

func New(opts Options) *Aggregator {
	summaryPath := opts.SummaryPath
	if summaryPath == "" {
		summaryPath, _ = opts.Store.PairPaths("index")
	}
	return &Aggregator{
		store:       opts.Store,
		discovery:   opts.Discovery,
		enricher:    opts.Enricher,
		summaryPath: summaryPath,
		title:       opts.Title,
	}
}

// Builds one record per persisted report and replaces the summary file.
// Missing inputs degrade to unknown values; only listing the reports
// directory or writing the summary can fail.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	results, err := a.store.ListResults()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		logger.Log.Warn("Reports directory does not exist, summary will be empty",
			zap.String("dir", a.store.Dir()))
		results = nil
	}

	statsPath, means := a.loadMeans()

	records := make([]models.PageRecord, 0, len(results))
	for _, file := range results {
		record, ok := a.buildRecord(file)
		if !ok {
			continue
		}
		if mean, found := means[record.Name]; found {
			record.LoadTestMean = loadtest.FormatMean(mean)
		}
		records = append(records, record)
	}

	enriched := 0
	if a.enricher.Enabled() {
		enriched = a.enricher.Enrich(ctx, records)
		logger.Log.Info("Field data enrichment finished", zap.Int("filled", enriched))
	}

	content, err := report.Render(ctx, report.Summary{
		Title:       a.title,
		ReportCount: len(results),
		Records:     records,
	})
	if err != nil {
		return nil, err
	}
	if err := a.store.WriteFile(a.summaryPath, content); err != nil {
		return nil, errors.Wrap(err, "write summary")
	}
	metrics.PagesAggregated.Add(float64(len(records)))

	logger.Log.Info("Wrote summary",
		zap.String("path", a.summaryPath),
		zap.Int("pages", len(records)),
		zap.String("stats", statsPath))

	return &Result{
		Records:     records,
		ReportCount: len(results),
		StatsPath:   statsPath,
		SummaryPath: a.summaryPath,
		Enriched:    enriched,
	}, nil
}

func (a *Aggregator) buildRecord(file storage.ResultFile) (models.PageRecord, bool) {
	data, err := a.store.ReadFile(file.Path)
	if err != nil {
		logger.Log.Warn("Skipping unreadable report", zap.String("path", file.Path), zap.Error(err))
		return models.PageRecord{}, false
	}
	var result models.AuditResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Log.Warn("Skipping malformed report", zap.String("path", file.Path), zap.Error(err))
		return models.PageRecord{}, false
	}
	return extractor.Extract(file.Name, &result), true
}

// Returns the stats path used and the label -> mean map. Absence or a bad
// stats file yields an empty map.
func (a *Aggregator) loadMeans() (string, map[string]float64) {
	if a.discovery == nil {
		return "", nil
	}
	path, found := a.discovery.Latest()
	if !found {
		logger.Log.Info("No load-test statistics found")
		return "", nil
	}
	data, err := a.store.ReadFile(path)
	if err != nil {
		logger.Log.Warn("Cannot read load-test statistics", zap.String("path", path), zap.Error(err))
		return "", nil
	}
	stats, err := loadtest.Parse(data)
	if err != nil {
		logger.Log.Warn("Cannot decode load-test statistics", zap.String("path", path), zap.Error(err))
		return "", nil
	}
	return path, stats.MeansByLabel()
}
