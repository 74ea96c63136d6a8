// Package monitor runs one backup freshness check and decides whether a
// human needs to hear about it.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/mitchross/backup-monitor/internal/config"
	"github.com/mitchross/backup-monitor/internal/freshness"
	"github.com/mitchross/backup-monitor/internal/notify"
)

// Checker interface for dependency injection and testing
type Checker interface {
	Check(ctx context.Context, prefix string, threshold time.Duration, now time.Time) (freshness.Result, error)
}

// Notifier interface for dependency injection and testing
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message) error
}

type Runner struct {
	cfg      *config.Config
	checker  Checker
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewRunner(cfg *config.Config, checker Checker, notifier Notifier, logger *slog.Logger) *Runner {
	return &Runner{
		cfg:      cfg,
		checker:  checker,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Run performs one check. It returns an error only when the check could not
// be carried out; a stale or empty result is a successful run.
func (r *Runner) Run(ctx context.Context, inv Invocation) error {
	logger := r.logger.With("request_id", inv.RequestID)
	location := r.location()

	label := r.cfg.Label
	if label == "" {
		var err error
		label, err = DeriveLabel(inv.Identifier())
		if err != nil {
			return ReportFailure(ctx, r.notifier, logger, inv, FailureMessage("", location, inv, err), err)
		}
	}
	logger = logger.With("label", label)

	logger.Info("starting backup check",
		"backend", r.cfg.BackendType,
		"bucket", r.cfg.Bucket,
		"prefix", r.cfg.Prefix,
		"threshold_min", r.cfg.ThresholdMinutes())

	result, err := r.checker.Check(ctx, r.cfg.Prefix, r.cfg.Threshold, r.now().UTC())
	if err != nil {
		return ReportFailure(ctx, r.notifier, logger, inv, FailureMessage(label, location, inv, err), err)
	}

	switch result.Status {
	case freshness.StatusFresh:
		logger.Info("backup uploaded within threshold, nothing to do",
			"key", result.Latest.Key,
			"age", result.Age.Round(time.Second).String())
	case freshness.StatusStale:
		logger.Warn("no backups uploaded within threshold",
			"key", result.Latest.Key,
			"last_modified", result.Latest.LastModified,
			"threshold_min", r.cfg.ThresholdMinutes())
		r.send(ctx, logger, StaleMessage(label, location, r.cfg.ThresholdMinutes(), result))
	case freshness.StatusEmpty:
		logger.Warn("no backups found", "prefix", r.cfg.Prefix, "cutoff", result.Cutoff)
		r.send(ctx, logger, EmptyMessage(label, location, r.cfg.Prefix, r.cfg.ThresholdMinutes(), result))
	}

	logger.Info("backup check complete", "status", result.Status.String())
	return nil
}

func (r *Runner) location() string {
	if r.cfg.Bucket != "" {
		return r.cfg.Bucket
	}
	return r.cfg.KopiaRepositoryPath
}

func (r *Runner) send(ctx context.Context, logger *slog.Logger, msg notify.Message) {
	if err := r.notifier.Notify(ctx, msg); err != nil {
		logger.Error("notification failed", "error", err)
	}
}

// ReportFailure is the top-level error boundary. It logs err, makes one
// attempt to tell a human, and hands err back so the caller can exit with
// failure.
func ReportFailure(ctx context.Context, notifier Notifier, logger *slog.Logger, inv Invocation, msg notify.Message, err error) error {
	logger.Error("backup check failed", "error", err, "logs", inv.ConsoleURL())

	if notifier != nil {
		if nerr := notifier.Notify(ctx, msg); nerr != nil {
			logger.Error("failure notification failed", "error", nerr)
		}
	}
	return err
}
