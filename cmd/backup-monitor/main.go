package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/spf13/cobra"

	"github.com/mitchross/backup-monitor/internal/config"
	"github.com/mitchross/backup-monitor/internal/monitor"
)

// startLambda hands a handler to the Lambda runtime. It does not return.
var startLambda = lambda.Start

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var inv monitor.Invocation

	root := &cobra.Command{
		Use:   "backup-monitor",
		Short: "Alert when backups stop arriving in object storage",
		Long: `Checks the newest object under a bucket prefix and posts to a chat
webhook when it is older than threshold_min minutes, or when there is none.

Run without a subcommand to check once (cron, Kubernetes CronJob). Inside the
AWS Lambda runtime (AWS_LAMBDA_RUNTIME_API set) it serves the Lambda handler
instead; "lambda" forces that mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			if runningInLambda() {
				startLambda(lambdaHandler(logger))
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if inv.Region == "" {
				inv.Region = os.Getenv("AWS_REGION")
			}
			return invoke(ctx, logger, inv)
		},
	}

	flags := root.Flags()
	flags.StringVar(&inv.LogGroup, "log-group", os.Getenv("AWS_LAMBDA_LOG_GROUP_NAME"), "log group identifier used to derive the label and link to logs")
	flags.StringVar(&inv.LogStream, "log-stream", os.Getenv("AWS_LAMBDA_LOG_STREAM_NAME"), "log stream linked from failure alerts")
	flags.StringVar(&inv.FunctionName, "function-name", os.Getenv("AWS_LAMBDA_FUNCTION_NAME"), "deployment name used to derive the label when no log group is set")
	flags.StringVar(&inv.RequestID, "request-id", "local", "identifier attached to every log line of this run")
	flags.StringVar(&inv.Region, "region", "", "AWS region (defaults to AWS_REGION)")

	root.AddCommand(newLambdaCmd())
	return root
}

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve the check as an AWS Lambda handler",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			logger := newLogger()
			startLambda(lambdaHandler(logger))
		},
	}
}

// runningInLambda reports whether the process was launched by the Lambda
// runtime, which starts the bootstrap binary without arguments.
func runningInLambda() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}

// lambdaHandler adapts a scheduled Lambda invocation to a single check. The
// event payload is only logged.
func lambdaHandler(logger *slog.Logger) func(ctx context.Context, event json.RawMessage) error {
	return func(ctx context.Context, event json.RawMessage) error {
		inv := monitor.Invocation{
			FunctionName: lambdacontext.FunctionName,
			LogGroup:     lambdacontext.LogGroupName,
			LogStream:    lambdacontext.LogStreamName,
			Region:       os.Getenv("AWS_REGION"),
		}
		if lc, ok := lambdacontext.FromContext(ctx); ok {
			inv.RequestID = lc.AwsRequestID
		}

		logger.Info("the following event was received", "request_id", inv.RequestID, "event", string(event))
		return invoke(ctx, logger, inv)
	}
}

func newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(config.LogLevelFromEnv()),
	}))
	slog.SetDefault(logger)
	return logger
}

