package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	BackendAWS   = "aws"
	BackendS3    = "s3"
	BackendKopia = "kopia-fs"

	SecretSourceSSM            = "ssm"
	SecretSourceSecretsManager = "secretsmanager"

	DefaultThresholdMinutes   = 900
	DefaultStorageMaxAttempts = 20
	DefaultHTTPTimeout        = 10 * time.Second
	DefaultWebhookParameter   = "slack_notification_webhook"
	DefaultFooter             = "AWS TABLEAU BACKUPS"
)

// ConfigurationError reports a missing or invalid setting. It is fatal to
// the invocation.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type Config struct {
	// Check settings
	Bucket    string
	Prefix    string
	Threshold time.Duration
	Label     string

	// Common settings
	BackendType        string
	HTTPTimeout        time.Duration
	LogLevel           string
	Region             string
	StorageMaxAttempts int

	// Notifier settings
	WebhookParameter    string
	WebhookSecretSource string
	Footer              string

	// S3-compatible backend settings
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Secure    bool

	// Kopia backend settings
	KopiaRepositoryPath string
	KopiaPassword       string
}

// ThresholdMinutes returns the threshold as whole minutes, the unit it is
// configured and reported in.
func (c *Config) ThresholdMinutes() int {
	return int(c.Threshold / time.Minute)
}

func Load() (*Config, error) {
	backendType := os.Getenv("BACKEND_TYPE")
	if backendType == "" {
		backendType = BackendAWS
	}
	if backendType != BackendAWS && backendType != BackendS3 && backendType != BackendKopia {
		return nil, &ConfigurationError{
			Field:  "BACKEND_TYPE",
			Reason: fmt.Sprintf("is invalid: %s (must be 'aws', 's3' or 'kopia-fs')", backendType),
		}
	}

	prefix, err := loadPrefix()
	if err != nil {
		return nil, err
	}

	thresholdMin := DefaultThresholdMinutes
	if s := os.Getenv("threshold_min"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return nil, &ConfigurationError{Field: "threshold_min", Reason: fmt.Sprintf("must be a positive integer, got %q", s)}
		}
		thresholdMin = n
	}

	httpTimeout, err := loadHTTPTimeout()
	if err != nil {
		return nil, err
	}

	maxAttempts, err := loadMaxAttempts()
	if err != nil {
		return nil, err
	}

	secretSource, err := loadSecretSource()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Prefix:              prefix,
		Threshold:           time.Duration(thresholdMin) * time.Minute,
		Label:               os.Getenv("CHECK_LABEL"),
		BackendType:         backendType,
		HTTPTimeout:         httpTimeout,
		LogLevel:            LogLevelFromEnv(),
		Region:              os.Getenv("AWS_REGION"),
		StorageMaxAttempts:  maxAttempts,
		WebhookParameter:    envOr("WEBHOOK_PARAMETER", DefaultWebhookParameter),
		WebhookSecretSource: secretSource,
		Footer:              envOr("NOTIFY_FOOTER", DefaultFooter),
	}

	// Backend-specific validation
	switch backendType {
	case BackendAWS:
		if err := loadBucket(cfg); err != nil {
			return nil, err
		}
	case BackendS3:
		if err := loadBucket(cfg); err != nil {
			return nil, err
		}
		if err := loadS3Config(cfg); err != nil {
			return nil, err
		}
	case BackendKopia:
		if err := loadKopiaConfig(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NotifierFromEnv returns just the settings needed to send an alert, taking
// each from the environment when it is valid and from the defaults
// otherwise. It is used to report a failed Load.
func NotifierFromEnv() *Config {
	cfg := &Config{
		HTTPTimeout:         DefaultHTTPTimeout,
		LogLevel:            LogLevelFromEnv(),
		Region:              os.Getenv("AWS_REGION"),
		StorageMaxAttempts:  DefaultStorageMaxAttempts,
		WebhookParameter:    envOr("WEBHOOK_PARAMETER", DefaultWebhookParameter),
		WebhookSecretSource: SecretSourceSSM,
		Footer:              envOr("NOTIFY_FOOTER", DefaultFooter),
	}

	if d, err := loadHTTPTimeout(); err == nil {
		cfg.HTTPTimeout = d
	}
	if n, err := loadMaxAttempts(); err == nil {
		cfg.StorageMaxAttempts = n
	}
	if src, err := loadSecretSource(); err == nil {
		cfg.WebhookSecretSource = src
	}
	return cfg
}

// LogLevelFromEnv returns LOG_LEVEL, defaulting to "info". It is read on its
// own so a logger exists even when the rest of the config fails to load.
func LogLevelFromEnv() string {
	return envOr("LOG_LEVEL", "info")
}

// ParseLogLevel maps a LOG_LEVEL string to a slog level.
func ParseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadPrefix reads path_prefix, falling back to the per-stream variables
// path_int_tab and path_ext_tab used by older deployments.
func loadPrefix() (string, error) {
	if prefix := os.Getenv("path_prefix"); prefix != "" {
		return prefix, nil
	}

	intPrefix := os.Getenv("path_int_tab")
	extPrefix := os.Getenv("path_ext_tab")
	switch {
	case intPrefix != "" && extPrefix != "":
		return "", &ConfigurationError{Field: "path_prefix", Reason: "is required when both path_int_tab and path_ext_tab are set"}
	case intPrefix != "":
		return intPrefix, nil
	case extPrefix != "":
		return extPrefix, nil
	default:
		return "", &ConfigurationError{Field: "path_prefix", Reason: "is required"}
	}
}

func loadHTTPTimeout() (time.Duration, error) {
	timeoutStr := os.Getenv("HTTP_TIMEOUT")
	if timeoutStr == "" {
		return DefaultHTTPTimeout, nil
	}
	duration, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return 0, &ConfigurationError{Field: "HTTP_TIMEOUT", Reason: fmt.Sprintf("is invalid: %v", err)}
	}
	return duration, nil
}

func loadMaxAttempts() (int, error) {
	s := os.Getenv("STORAGE_MAX_ATTEMPTS")
	if s == "" {
		return DefaultStorageMaxAttempts, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, &ConfigurationError{Field: "STORAGE_MAX_ATTEMPTS", Reason: fmt.Sprintf("must be a positive integer, got %q", s)}
	}
	return n, nil
}

func loadSecretSource() (string, error) {
	secretSource := envOr("WEBHOOK_SECRET_SOURCE", SecretSourceSSM)
	if secretSource != SecretSourceSSM && secretSource != SecretSourceSecretsManager {
		return "", &ConfigurationError{
			Field:  "WEBHOOK_SECRET_SOURCE",
			Reason: fmt.Sprintf("is invalid: %s (must be 'ssm' or 'secretsmanager')", secretSource),
		}
	}
	return secretSource, nil
}

func loadBucket(cfg *Config) error {
	cfg.Bucket = os.Getenv("bucket_name")
	if cfg.Bucket == "" {
		return &ConfigurationError{Field: "bucket_name", Reason: "is required"}
	}
	return nil
}

func loadS3Config(cfg *Config) error {
	cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
	if cfg.S3Endpoint == "" {
		return &ConfigurationError{Field: "S3_ENDPOINT", Reason: "is required"}
	}

	cfg.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
	if cfg.S3AccessKey == "" {
		return &ConfigurationError{Field: "S3_ACCESS_KEY", Reason: "is required"}
	}

	cfg.S3SecretKey = os.Getenv("S3_SECRET_KEY")
	if cfg.S3SecretKey == "" {
		return &ConfigurationError{Field: "S3_SECRET_KEY", Reason: "is required"}
	}

	cfg.S3Secure = true
	if secureStr := os.Getenv("S3_SECURE"); secureStr != "" {
		var err error
		cfg.S3Secure, err = strconv.ParseBool(secureStr)
		if err != nil {
			return &ConfigurationError{Field: "S3_SECURE", Reason: fmt.Sprintf("is invalid: %v", err)}
		}
	}

	return nil
}

func loadKopiaConfig(cfg *Config) error {
	cfg.KopiaRepositoryPath = os.Getenv("KOPIA_REPOSITORY_PATH")
	if cfg.KopiaRepositoryPath == "" {
		cfg.KopiaRepositoryPath = "/repository"
	}

	// Verify path exists
	if _, err := os.Stat(cfg.KopiaRepositoryPath); os.IsNotExist(err) {
		return &ConfigurationError{
			Field:  "KOPIA_REPOSITORY_PATH",
			Reason: fmt.Sprintf("%s does not exist", cfg.KopiaRepositoryPath),
		}
	}

	cfg.KopiaPassword = os.Getenv("KOPIA_PASSWORD")
	if cfg.KopiaPassword == "" {
		return &ConfigurationError{Field: "KOPIA_PASSWORD", Reason: "is required for kopia-fs backend"}
	}

	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
