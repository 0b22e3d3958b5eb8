package alerts

import (
	"context"
	"net/http"
	"time"
)

// DiscordNotifier sends messages to a Discord webhook as a single embed.
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordNotifier creates a Discord webhook notifier.
func NewDiscordNotifier(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
	}
}

func (d *DiscordNotifier) Name() string { return string(TargetDiscord) }

func (d *DiscordNotifier) Send(ctx context.Context, msg Message) error {
	body, err := marshal(TargetDiscord, discordMessage(msg))
	if err != nil {
		return err
	}
	return postJSON(ctx, d.client, TargetDiscord, d.webhookURL, body, nil)
}

func discordMessage(msg Message) discordPayload {
	color := 0x36a64f
	if msg.Tone == ToneAlert {
		color = 0xcc0000
	}

	fields := []discordField{
		{Name: "Project", Value: msg.ProjectID, Inline: true},
		{Name: "Plan", Value: msg.Plan, Inline: true},
		{Name: "Estimated spend", Value: msg.Total, Inline: true},
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return discordPayload{
		Username: "Neon Billing Alerts",
		Content:  "**" + msg.Title + "**",
		Embeds: []discordEmbed{
			{
				Title:       msg.Title,
				Description: msg.Body(),
				Color:       color,
				Fields:      fields,
				Footer:      &discordFooter{Text: "neon-billing-alerts · costs are estimates"},
				Timestamp:   ts.Format(time.RFC3339),
			},
		},
	}
}

type discordPayload struct {
	Username string         `json:"username,omitempty"`
	Content  string         `json:"content"`
	Embeds   []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}
