// Package notify posts alerts to a Slack-style incoming webhook whose URL is
// kept in a secret store.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/smithy-go"
)

const (
	alertColor     = "#B22222"
	footerIcon     = "https://platform.slack-edge.com/img/default_application_icon.png"
	maxLoggedBytes = 512
)

// Stages at which a notification can fail.
const (
	StageResolve = "resolve"
	StageEncode  = "encode"
	StageDeliver = "deliver"
)

// SecretResolver looks up the webhook URL. found is false when the secret
// does not exist.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (value string, found bool, err error)
}

// Error is returned for any notification failure. It never fails the
// invocation; callers log and drop it.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("notification %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is one alert.
type Message struct {
	Headline string
	Text     string
	Priority string
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short string `json:"short"`
}

type attachment struct {
	Text           string  `json:"text"`
	Color          string  `json:"color"`
	AttachmentType string  `json:"attachment_type"`
	Fields         []field `json:"fields"`
	Footer         string  `json:"footer"`
	FooterIcon     string  `json:"footer_icon"`
}

type payload struct {
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments"`
}

// Notifier delivers messages to the webhook named by parameter.
type Notifier struct {
	secrets   SecretResolver
	parameter string
	footer    string
	client    *http.Client
	logger    *slog.Logger
}

func New(secrets SecretResolver, parameter, footer string, client *http.Client, logger *slog.Logger) *Notifier {
	return &Notifier{
		secrets:   secrets,
		parameter: parameter,
		footer:    footer,
		client:    client,
		logger:    logger,
	}
}

// Notify resolves the webhook and posts msg. A missing webhook is not an
// error: the message is logged and dropped.
func (n *Notifier) Notify(ctx context.Context, msg Message) error {
	url, found, err := n.secrets.Resolve(ctx, n.parameter)
	if err != nil {
		attrs := []any{"parameter", n.parameter, "error", err}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			attrs = append(attrs, "code", apiErr.ErrorCode())
		}
		n.logger.Error("unexpected error getting webhook URL", attrs...)
		return &Error{Stage: StageResolve, Err: err}
	}
	if !found || url == "" {
		n.logger.Info("webhook parameter not found, no notification sent", "parameter", n.parameter)
		return nil
	}

	body, err := json.Marshal(n.payload(msg))
	if err != nil {
		return &Error{Stage: StageEncode, Err: err}
	}

	n.logger.Info("sending notification", "headline", msg.Headline)
	if err := n.post(ctx, url, body); err != nil {
		return &Error{Stage: StageDeliver, Err: err}
	}
	return nil
}

func (n *Notifier) payload(msg Message) payload {
	priority := msg.Priority
	if priority == "" {
		priority = "High"
	}

	return payload{
		Text: msg.Headline,
		Attachments: []attachment{
			{
				Text:           msg.Text,
				Color:          alertColor,
				AttachmentType: "default",
				Fields: []field{
					{Title: "Priority", Value: priority, Short: "false"},
				},
				Footer:     n.footer,
				FooterIcon: footerIcon,
			},
		},
	}
}

func (n *Notifier) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBytes))
	n.logger.Info("response from webhook", "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}
