// Package audit drives Lighthouse audits for an ordered batch of targets
// against one shared headless browser.
package audit

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"perfsummary/internal/pkg/logger"
	"perfsummary/internal/pkg/metrics"
	"perfsummary/internal/pkg/models"
	"perfsummary/internal/pkg/storage"
)

const (
	DefaultMaxAttempts = 2
	DefaultBackoff     = 1500 * time.Millisecond
)

// Per-target lifecycle:
// Pending -> Attempting -> (Success | RetryScheduled -> Attempting | Skipped).
type State int

const (
	StatePending State = iota
	StateAttempting
	StateRetryScheduled
	StateSuccess
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAttempting:
		return "attempting"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateSuccess:
		return "success"
	case StateSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Success and Skipped end a target's lifecycle. Only those are recorded.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateSkipped
}

// What happened to one target in a batch.
type Outcome struct {
	Target     models.Target
	State      State
	Attempts   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

func (o *Outcome) transition(next State) {
	logger.Log.Debug("Audit state change",
		zap.String("name", o.Target.Name),
		zap.Stringer("from", o.State),
		zap.Stringer("to", next),
		zap.Int("attempts", o.Attempts))
	o.State = next
}

// Persists outcomes somewhere durable, e.g. the run ledger.
type Recorder interface {
	Record(ctx context.Context, runID string, outcome Outcome) error
}

type BatchResult struct {
	RunID    string
	Outcomes []Outcome
}

func (b *BatchResult) Count(state State) int {
	count := 0
	for _, outcome := range b.Outcomes {
		if outcome.State == state {
			count++
		}
	}
	return count
}

type RunnerOptions struct {
	MaxAttempts int
	Backoff     time.Duration
	Classifier  *Classifier
	Recorder    Recorder // optional
}

// Audits targets one at a time against one browser session, retrying
// transient failures and skipping pages that keep failing.
type Runner struct {
	launcher   Launcher
	client     Client
	store      *storage.ArtifactStore
	classifier *Classifier
	recorder   Recorder

	maxAttempts int
	backoff     time.Duration
}

func NewRunner(launcher Launcher, client Client, store *storage.ArtifactStore, opts RunnerOptions) *Runner {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Classifier == nil {
		opts.Classifier = NewClassifier()
	}
	return &Runner{
		launcher:    launcher,
		client:      client,
		store:       store,
		classifier:  opts.Classifier,
		recorder:    opts.Recorder,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
}

// Runs the batch. The only error returned is a *LaunchError; per-target
// failures end up in the outcomes. Targets are never audited concurrently:
// parallel navigations on one session are what closes targets mid-audit.
func (r *Runner) Run(ctx context.Context, targets []models.Target) (*BatchResult, error) {
	browser, err := r.launcher.Launch(ctx)
	if err != nil {
		logger.Log.Error("Failed to launch browser", zap.Error(err))
		return nil, &LaunchError{Err: err}
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Log.Warn("Failed to close browser", zap.Error(err))
		}
	}()

	batch := &BatchResult{
		RunID:    uuid.NewString(),
		Outcomes: make([]Outcome, 0, len(targets)),
	}
	logger.Log.Info("Starting audit batch",
		zap.String("run_id", batch.RunID),
		zap.Int("targets", len(targets)),
		zap.Int("max_attempts", r.maxAttempts))

	for _, target := range targets {
		outcome := r.runTarget(ctx, browser, target)
		metrics.AuditOutcomes.WithLabelValues(outcome.State.String()).Inc()

		if r.recorder != nil {
			// Skipped outcomes of an interrupted batch are still recorded.
			if err := r.recorder.Record(context.WithoutCancel(ctx), batch.RunID, outcome); err != nil {
				logger.Log.Warn("Failed to record audit outcome",
					zap.String("name", target.Name),
					zap.Error(err))
			}
		}
		batch.Outcomes = append(batch.Outcomes, outcome)
	}

	logger.Log.Info("Audit batch finished",
		zap.String("run_id", batch.RunID),
		zap.Int("succeeded", batch.Count(StateSuccess)),
		zap.Int("skipped", batch.Count(StateSkipped)))
	if err := ctx.Err(); err != nil {
		return batch, errors.Wrap(err, "audit batch interrupted")
	}
	return batch, nil
}

func (r *Runner) runTarget(ctx context.Context, browser Browser, target models.Target) Outcome {
	outcome := Outcome{Target: target, State: StatePending, StartedAt: time.Now()}
	if err := ctx.Err(); err != nil {
		return r.skip(outcome, err)
	}

	var artifacts models.Artifacts
	backoff := retry.WithMaxRetries(uint64(r.maxAttempts-1), retry.NewConstant(r.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		outcome.transition(StateAttempting)
		outcome.Attempts++
		metrics.AuditAttempts.Inc()

		start := time.Now()
		result, err := r.client.Audit(ctx, browser, target)
		metrics.AuditDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			artifacts = result
			return nil
		}

		auditErr := &AuditError{Target: target.Name, Transient: r.classifier.IsTransient(err), Err: err}
		if !auditErr.Transient || outcome.Attempts >= r.maxAttempts {
			return auditErr
		}

		outcome.transition(StateRetryScheduled)
		metrics.AuditRetries.Inc()
		logger.Log.Warn("Transient audit failure, retrying",
			zap.String("name", target.Name),
			zap.String("url", target.URL),
			zap.Int("attempt", outcome.Attempts),
			zap.String("marker", r.classifier.Marker(err)),
			zap.Duration("backoff", r.backoff),
			zap.Error(err))
		return retry.RetryableError(auditErr)
	})

	if err != nil {
		return r.skip(outcome, err)
	}

	artifacts.Name = target.Name
	if err := r.store.WritePair(artifacts); err != nil {
		metrics.ArtifactWriteFailures.Inc()
		return r.skip(outcome, &WriteError{Target: target.Name, Err: err})
	}

	htmlPath, jsonPath := r.store.PairPaths(artifacts.Name)
	outcome.transition(StateSuccess)
	outcome.FinishedAt = time.Now()
	logger.Log.Info("Saved audit reports",
		zap.String("name", target.Name),
		zap.String("html", htmlPath),
		zap.String("json", jsonPath),
		zap.Int("attempts", outcome.Attempts))
	return outcome
}

func (r *Runner) skip(outcome Outcome, err error) Outcome {
	outcome.Err = err
	outcome.transition(StateSkipped)
	outcome.FinishedAt = time.Now()

	fields := []zap.Field{
		zap.String("name", outcome.Target.Name),
		zap.String("url", outcome.Target.URL),
		zap.Int("attempts", outcome.Attempts),
		zap.Error(err),
	}
	var auditErr *AuditError
	if errors.As(err, &auditErr) {
		fields = append(fields, zap.Bool("transient", auditErr.Transient))
	}
	logger.Log.Error("Skipping target", fields...)
	return outcome
}
