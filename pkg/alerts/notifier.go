package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// NotifyError reports a failed webhook delivery. The alert decision was
// already made when it occurs; only delivery failed.
type NotifyError struct {
	Target Target
	Status int
	Body   string
	Err    error
}

func (e *NotifyError) Error() string {
	var cause string
	switch {
	case e.Status != 0 && e.Body != "":
		cause = fmt.Sprintf("%s returned status %d: %s", e.Target, e.Status, e.Body)
	case e.Status != 0:
		cause = fmt.Sprintf("%s returned status %d", e.Target, e.Status)
	case e.Err != nil:
		cause = e.Err.Error()
	default:
		cause = string(e.Target) + " delivery failed"
	}
	return "alert was evaluated but delivery failed: " + cause
}

func (e *NotifyError) Unwrap() error { return e.Err }

// NewNotifier builds the notifier for a resolved target.
func NewNotifier(target Target, webhookURL, secret string) (Notifier, error) {
	switch target {
	case TargetSlack:
		return NewSlackNotifier(webhookURL), nil
	case TargetDiscord:
		return NewDiscordNotifier(webhookURL), nil
	case TargetWebhook:
		return NewWebhookNotifier(webhookURL, secret), nil
	default:
		return nil, fmt.Errorf("unsupported webhook target %q", target)
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

func marshal(target Target, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &NotifyError{Target: target, Err: fmt.Errorf("marshal %s payload: %w", target, err)}
	}
	return body, nil
}

// postJSON sends one POST and maps every failure to a NotifyError. Webhook
// URLs embed their credentials, so they never appear in errors.
func postJSON(ctx context.Context, client *http.Client, target Target, webhookURL string, body []byte, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return &NotifyError{Target: target, Err: fmt.Errorf("create %s request: %w", target, stripURL(err))}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return &NotifyError{Target: target, Err: fmt.Errorf("send %s alert: %w", target, stripURL(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &NotifyError{Target: target, Status: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}
	return nil
}

func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
