package main

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/aggregator"
	"perfsummary/internal/pkg/audit"
	"perfsummary/internal/pkg/cache"
	"perfsummary/internal/pkg/config"
	"perfsummary/internal/pkg/discovery"
	"perfsummary/internal/pkg/fielddata"
	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/metrics"
	"perfsummary/internal/pkg/runlog"
	"perfsummary/internal/pkg/storage"
	"perfsummary/internal/pkg/targets"
)

// Resources shared by the commands of one process.
type app struct {
	cfg     *config.Config
	fs      afero.Fs
	store   *storage.ArtifactStore
	closers []func() error
}

func setup(opts *globalOptions) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.TargetsFile != "" {
		cfg.TargetsFile = opts.TargetsFile
	}
	if opts.ReportsDir != "" {
		cfg.ReportsDir = opts.ReportsDir
	}
	if opts.ReportsRoot != "" {
		cfg.ReportsRoot = opts.ReportsRoot
	}
	if opts.MaxAttempts > 0 {
		cfg.MaxAttempts = opts.MaxAttempts
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		return nil, errors.Wrap(err, "init logger")
	}

	fs := afero.NewOsFs()
	return &app{
		cfg:   cfg,
		fs:    fs,
		store: storage.NewArtifactStore(fs, cfg.ReportsDir),
	}, nil
}

// Writes the metrics textfile when configured and releases everything opened
// along the way.
func (a *app) close() {
	if a.cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			logger.Log.Warn("Failed to write metrics textfile",
				zap.String("path", a.cfg.MetricsTextfile), zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Log.Warn("Failed to release resource", zap.Error(err))
		}
	}
	logger.Sync()
}

func (a *app) runBatch(ctx context.Context) (*audit.BatchResult, error) {
	list, err := targets.Load(a.cfg.TargetsFile, a.cfg.SummaryName())
	if err != nil {
		return nil, err
	}

	launcher := audit.NewChromeLauncher(audit.ChromeOptions{
		Path:          a.cfg.ChromePath,
		Port:          a.cfg.ChromePort,
		Flags:         strings.Fields(a.cfg.ChromeFlags),
		LaunchTimeout: a.cfg.LaunchTimeout,
	})
	client := audit.NewLighthouseClient(audit.LighthouseOptions{
		Path:    a.cfg.LighthousePath,
		Timeout: a.cfg.AuditTimeout,
		Settings: audit.Settings{
			MaxWaitForFCP:  a.cfg.MaxWaitForFCP,
			MaxWaitForLoad: a.cfg.MaxWaitForLoad,
		},
	})

	runnerOpts := audit.RunnerOptions{
		MaxAttempts: a.cfg.MaxAttempts,
		Backoff:     a.cfg.RetryBackoff,
	}
	if a.cfg.RunLedgerPath != "" {
		ledger, err := runlog.Open(a.cfg.RunLedgerPath)
		if err != nil {
			logger.Log.Warn("Run ledger disabled", zap.String("path", a.cfg.RunLedgerPath), zap.Error(err))
		} else {
			a.closers = append(a.closers, ledger.Close)
			runnerOpts.Recorder = ledger
		}
	}

	runner := audit.NewRunner(launcher, client, a.store, runnerOpts)
	return runner.Run(ctx, list)
}

// Reads one batch from the run ledger, or the latest outcome per page when
// runID is empty.
func (a *app) runEntries(ctx context.Context, runID string) ([]runlog.Entry, error) {
	if a.cfg.RunLedgerPath == "" {
		return nil, errors.New("no run ledger configured, set RUN_LEDGER_PATH")
	}
	ledger, err := runlog.Open(a.cfg.RunLedgerPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, ledger.Close)

	if runID != "" {
		entries, err := ledger.Run(ctx, runID)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.Errorf("no outcomes recorded for run %s", runID)
		}
		return entries, nil
	}
	return ledger.Latest(ctx)
}

func (a *app) aggregate(ctx context.Context) error {
	var enricher *fielddata.Enricher
	if a.cfg.EnrichmentEnabled() {
		enricher = fielddata.New(fielddata.Options{
			APIKey:    a.cfg.PSIAPIKey,
			Endpoint:  a.cfg.PSIEndpoint,
			Strategy:  a.cfg.PSIStrategy,
			Timeout:   a.cfg.PSITimeout,
			RateLimit: a.cfg.PSIRateLimit,
			Cache:     a.fieldDataCache(),
		})
	}

	_, err := aggregator.New(aggregator.Options{
		Store:       a.store,
		Discovery:   discovery.New(a.fs, a.cfg.StatsPath(), a.cfg.ReportsRoot),
		Enricher:    enricher,
		SummaryPath: a.cfg.SummaryPath(),
	}).Run(ctx)
	return err
}

// Redis when configured and reachable, otherwise an in-process cache.
func (a *app) fieldDataCache() cache.Cache {
	if a.cfg.RedisHost != "" {
		redisCache, err := cache.NewRedisCache(a.cfg)
		if err == nil {
			a.closers = append(a.closers, redisCache.Close)
			return redisCache
		}
		logger.Log.Warn("Redis unavailable, caching field data in memory", zap.Error(err))
	}
	return cache.NewMemoryCache(a.cfg.FieldDataCacheTTL)
}
