package monitor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchross/backup-monitor/internal/backend"
	"github.com/mitchross/backup-monitor/internal/config"
	"github.com/mitchross/backup-monitor/internal/freshness"
	"github.com/mitchross/backup-monitor/internal/notify"
)

var now = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

// mockLister implements backend.Lister so runs go through the real checker.
type mockLister struct {
	objects []backend.Object
	err     error
	calls   int
}

func (m *mockLister) ListObjects(ctx context.Context, prefix string) ([]backend.Object, error) {
	m.calls++
	return m.objects, m.err
}

type mockNotifier struct {
	messages []notify.Message
	err      error
}

func (m *mockNotifier) Notify(ctx context.Context, msg notify.Message) error {
	m.messages = append(m.messages, msg)
	return m.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(threshold time.Duration) *config.Config {
	return &config.Config{
		Bucket:      "s3-dq-tableau-backups",
		Prefix:      "tableau-int/",
		Threshold:   threshold,
		BackendType: config.BackendAWS,
	}
}

var lambdaInvocation = Invocation{
	RequestID: "req-1",
	LogGroup:  "/aws/lambda/int-tab-monitor-apps-prod-dq",
	LogStream: "2026/10/19/[$LATEST]abc",
	Region:    "eu-west-2",
}

func newTestRunner(cfg *config.Config, lister *mockLister, notifier *mockNotifier) *Runner {
	logger := testLogger()
	r := NewRunner(cfg, freshness.NewChecker(lister, logger), notifier, logger)
	r.now = func() time.Time { return now }
	return r
}

func TestRun_StaleNotifies(t *testing.T) {
	day := 24 * time.Hour
	lister := &mockLister{objects: []backend.Object{
		{Key: "tableau-int/ts-2026-10-09.tsbak", LastModified: now.Add(-10 * day)},
		{Key: "tableau-int/ts-2026-10-17.tsbak", LastModified: now.Add(-2 * day)},
	}}
	notifier := &mockNotifier{}

	err := newTestRunner(testConfig(day), lister, notifier).Run(context.Background(), lambdaInvocation)
	require.NoError(t, err)

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	assert.Contains(t, msg.Headline, "INTERNAL BACKUP PROCESS DID NOT COMPLETE")
	assert.Contains(t, msg.Headline, "s3-dq-tableau-backups")
	assert.Contains(t, msg.Text, "1440 minutes")
	assert.Contains(t, msg.Text, "tableau-int/ts-2026-10-17.tsbak")
	assert.Contains(t, msg.Text, "2026-10-17 09:00:00 UTC")
	assert.NotContains(t, msg.Text, "ts-2026-10-09")
}

func TestRun_FreshDoesNotNotify(t *testing.T) {
	lister := &mockLister{objects: []backend.Object{
		{Key: "tableau-int/latest.tsbak", LastModified: now.Add(-30 * time.Minute)},
	}}
	notifier := &mockNotifier{}

	err := newTestRunner(testConfig(900*time.Minute), lister, notifier).Run(context.Background(), lambdaInvocation)
	require.NoError(t, err)

	assert.Equal(t, 1, lister.calls)
	assert.Empty(t, notifier.messages)
}

func TestRun_EmptyNotifies(t *testing.T) {
	notifier := &mockNotifier{}

	err := newTestRunner(testConfig(900*time.Minute), &mockLister{}, notifier).Run(context.Background(), lambdaInvocation)
	require.NoError(t, err)

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	assert.Contains(t, msg.Text, "Internal")
	assert.Contains(t, msg.Text, "900 minutes")
	assert.Contains(t, msg.Text, "tableau-int/")
	assert.Contains(t, msg.Text, "2026-10-18")
	assert.NotContains(t, msg.Text, "Last backup")
}

func TestRun_NotificationErrorDoesNotFailRun(t *testing.T) {
	notifier := &mockNotifier{err: &notify.Error{Stage: notify.StageDeliver, Err: errors.New("HTTP 500")}}

	err := newTestRunner(testConfig(time.Hour), &mockLister{}, notifier).Run(context.Background(), lambdaInvocation)
	assert.NoError(t, err)
	assert.Len(t, notifier.messages, 1)
}

func TestRun_UnderivableLabelFailsBeforeListing(t *testing.T) {
	lister := &mockLister{}
	notifier := &mockNotifier{}
	inv := Invocation{LogGroup: "/aws/lambda/tab-monitor", LogStream: "s", Region: "eu-west-2"}

	err := newTestRunner(testConfig(time.Hour), lister, notifier).Run(context.Background(), inv)
	require.Error(t, err)

	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, 0, lister.calls)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0].Text, "Pipeline error: https://eu-west-2.console.aws.amazon.com/cloudwatch/home")
}

func TestRun_ExplicitLabelSkipsDerivation(t *testing.T) {
	cfg := testConfig(time.Hour)
	cfg.Label = LabelExternal
	notifier := &mockNotifier{}

	err := newTestRunner(cfg, &mockLister{}, notifier).Run(context.Background(), Invocation{LogGroup: "no-hint"})
	require.NoError(t, err)

	require.Len(t, notifier.messages, 1)
	assert.Contains(t, notifier.messages[0].Headline, "EXTERNAL")
}

func TestRun_ListErrorReportsFailure(t *testing.T) {
	listErr := &backend.ListError{Backend: "aws", Prefix: "tableau-int/", Err: errors.New("RequestTimeout")}
	notifier := &mockNotifier{}

	err := newTestRunner(testConfig(time.Hour), &mockLister{err: listErr}, notifier).Run(context.Background(), lambdaInvocation)
	require.Error(t, err)
	assert.ErrorIs(t, err, listErr)

	require.Len(t, notifier.messages, 1)
	msg := notifier.messages[0]
	assert.Contains(t, msg.Headline, "INTERNAL")
	assert.Contains(t, msg.Text, lambdaInvocation.ConsoleURL())
	assert.Contains(t, msg.Text, "RequestTimeout")
}

func TestReportFailure_NilNotifier(t *testing.T) {
	cause := errors.New("boom")
	err := ReportFailure(context.Background(), nil, testLogger(), Invocation{}, FailureMessage("", "", Invocation{}, cause), cause)
	assert.Equal(t, cause, err)
}

func TestFailureMessage_WithoutConsoleLink(t *testing.T) {
	msg := FailureMessage("", "", Invocation{LogGroup: "local", LogStream: "cli"}, errors.New("bucket_name is required"))

	assert.Contains(t, msg.Headline, "*BACKUP MONITOR CHECK FAILED*")
	assert.NotContains(t, msg.Headline, "BACKUP PROCESS")
	assert.Contains(t, msg.Headline, "DATA ARCHIVE")
	assert.Contains(t, msg.Text, `log group "local", stream "cli"`)
	assert.Contains(t, msg.Text, "bucket_name is required")
}

func TestFailureMessage_WithLabel(t *testing.T) {
	msg := FailureMessage(LabelExternal, "backups", lambdaInvocation, errors.New("timeout"))

	assert.Contains(t, msg.Headline, "*EXTERNAL BACKUP PROCESS DID NOT COMPLETE*")
	assert.Contains(t, msg.Headline, "*backups*")
}
