package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// WebhookNotifier sends messages to a generic HTTP webhook.
type WebhookNotifier struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookNotifier creates a generic webhook notifier.
// If secret is non-empty, requests are signed with HMAC-SHA256.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		secret: secret,
		client: newHTTPClient(),
	}
}

func (w *WebhookNotifier) Name() string { return string(TargetWebhook) }

func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	event := "neon_usage_report"
	if msg.Tone == ToneAlert {
		event = "neon_billing_alert"
	}
	payload := webhookPayload{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Text:      msg.Text(),
		Message:   msg,
	}

	body, err := marshal(TargetWebhook, payload)
	if err != nil {
		return err
	}

	header := http.Header{}
	if w.secret != "" {
		header.Set("X-Signature-256", "sha256="+computeHMAC(body, []byte(w.secret)))
	}

	return postJSON(ctx, w.client, TargetWebhook, w.url, body, header)
}

type webhookPayload struct {
	Event     string  `json:"event"`
	Timestamp string  `json:"timestamp"`
	Text      string  `json:"text"`
	Message   Message `json:"message"`
}

func computeHMAC(message, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
