package alerts

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Target is the kind of webhook a message is delivered to.
type Target string

const (
	TargetSlack   Target = "slack"   // Slack incoming webhook
	TargetDiscord Target = "discord" // Discord channel webhook
	TargetWebhook Target = "webhook" // Generic JSON endpoint
)

// userAgent is sent with every webhook request.
const userAgent = "neon-billing-alerts/1.0"

// Tone distinguishes breach alerts from unconditional reports.
type Tone string

const (
	ToneAlert  Tone = "alert"  // At least one threshold breached
	ToneReport Tone = "report" // Always mode, nothing breached
)

// Row is one line of the usage table.
type Row struct {
	Label    string `json:"label"`
	Unit     string `json:"unit"`
	Amount   string `json:"amount"`
	Cost     string `json:"cost"`
	Breached bool   `json:"breached"`
}

// Message is a provider-agnostic alert. Notifiers serialize it into the
// shape their webhook expects.
type Message struct {
	RunID     string    `json:"run_id,omitempty"`
	Title     string    `json:"title"`
	Tone      Tone      `json:"tone"`
	ProjectID string    `json:"project_id"`
	Plan      string    `json:"plan"`
	Period    string    `json:"period,omitempty"`
	Summary   string    `json:"summary"`
	Rows      []Row     `json:"rows"`
	Total     string    `json:"total_cost"`
	Breaches  []string  `json:"breaches,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers messages to an external system.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Send delivers a message with a single attempt.
	Send(ctx context.Context, msg Message) error
}

// ParseTarget validates an explicitly configured provider. Empty and "auto"
// return the empty Target, meaning "detect from the URL".
func ParseTarget(s string) (Target, error) {
	switch t := Target(strings.ToLower(strings.TrimSpace(s))); t {
	case "", "auto":
		return "", nil
	case TargetSlack, TargetDiscord, TargetWebhook:
		return t, nil
	default:
		return "", fmt.Errorf("unknown webhook provider %q (want slack, discord or webhook)", s)
	}
}

// DetectTarget infers the webhook kind from the URL host.
func DetectTarget(webhookURL string) (Target, error) {
	u, err := url.Parse(strings.TrimSpace(webhookURL))
	if err != nil {
		return "", fmt.Errorf("parse webhook url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("webhook url must be http(s), got scheme %q", u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	switch {
	case hostIs(host, "slack.com"):
		return TargetSlack, nil
	case hostIs(host, "discord.com"), hostIs(host, "discordapp.com"):
		return TargetDiscord, nil
	default:
		return "", fmt.Errorf("cannot detect webhook provider from host %q; set the provider explicitly", host)
	}
}

// ResolveTarget returns the explicit provider when set, otherwise detects it.
func ResolveTarget(provider, webhookURL string) (Target, error) {
	t, err := ParseTarget(provider)
	if err != nil {
		return "", err
	}
	if t != "" {
		return t, nil
	}
	return DetectTarget(webhookURL)
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
