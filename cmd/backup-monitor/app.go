package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	awsinternal "github.com/mitchross/backup-monitor/internal/aws"
	awss3 "github.com/mitchross/backup-monitor/internal/aws/s3"
	"github.com/mitchross/backup-monitor/internal/aws/secrets"
	"github.com/mitchross/backup-monitor/internal/backend"
	"github.com/mitchross/backup-monitor/internal/config"
	"github.com/mitchross/backup-monitor/internal/freshness"
	"github.com/mitchross/backup-monitor/internal/kopia"
	"github.com/mitchross/backup-monitor/internal/monitor"
	"github.com/mitchross/backup-monitor/internal/notify"
	"github.com/mitchross/backup-monitor/internal/s3"
)

// invoke runs one check end to end. Every failure goes through
// monitor.ReportFailure and is returned so the process exits non-zero.
func invoke(ctx context.Context, logger *slog.Logger, inv monitor.Invocation) error {
	failLogger := logger.With("request_id", inv.RequestID)

	cfg, cfgErr := config.Load()
	notifyCfg := cfg
	if cfgErr != nil {
		notifyCfg = config.NotifierFromEnv()
	}

	awsCfg, err := awsinternal.LoadConfig(ctx, notifyCfg.Region, notifyCfg.StorageMaxAttempts)
	if err != nil {
		return monitor.ReportFailure(ctx, nil, failLogger, inv, notify.Message{}, err)
	}
	if inv.Region == "" {
		inv.Region = awsCfg.Region
	}

	notifier := newNotifier(notifyCfg, awsCfg, logger)

	if cfgErr != nil {
		return monitor.ReportFailure(ctx, notifier, failLogger, inv, monitor.FailureMessage("", "", inv, cfgErr), cfgErr)
	}

	lister, err := newLister(cfg, awsCfg, logger)
	if err != nil {
		return monitor.ReportFailure(ctx, notifier, failLogger, inv, monitor.FailureMessage(cfg.Label, cfg.Bucket, inv, err), err)
	}

	runner := monitor.NewRunner(cfg, freshness.NewChecker(lister, logger), notifier, logger)
	return runner.Run(ctx, inv)
}

func newLister(cfg *config.Config, awsCfg awssdk.Config, logger *slog.Logger) (backend.Lister, error) {
	switch cfg.BackendType {
	case config.BackendAWS:
		return awss3.NewFromConfig(awsCfg, cfg.Bucket), nil
	case config.BackendS3:
		client, err := s3.NewClient(cfg.S3Endpoint, cfg.Bucket, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Secure, cfg.StorageMaxAttempts)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.BackendKopia:
		return kopia.NewClient(cfg.KopiaRepositoryPath, cfg.KopiaPassword, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend type %q", cfg.BackendType)
	}
}

func newSecretResolver(cfg *config.Config, awsCfg awssdk.Config) notify.SecretResolver {
	if cfg.WebhookSecretSource == config.SecretSourceSecretsManager {
		return secrets.NewSecretsManagerResolver(secretsmanager.NewFromConfig(awsCfg))
	}
	return secrets.NewSSMResolver(ssm.NewFromConfig(awsCfg))
}

func newNotifier(cfg *config.Config, awsCfg awssdk.Config, logger *slog.Logger) *notify.Notifier {
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	return notify.New(newSecretResolver(cfg, awsCfg), cfg.WebhookParameter, cfg.Footer, httpClient, logger)
}
