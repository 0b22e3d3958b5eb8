package alerts

import (
	"context"
	"net/http"
	"strings"
)

// SlackNotifier sends messages to a Slack incoming webhook using Block Kit.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		client:     newHTTPClient(),
	}
}

func (s *SlackNotifier) Name() string { return string(TargetSlack) }

func (s *SlackNotifier) Send(ctx context.Context, msg Message) error {
	body, err := marshal(TargetSlack, slackMessage(msg))
	if err != nil {
		return err
	}
	return postJSON(ctx, s.client, TargetSlack, s.webhookURL, body, nil)
}

func slackMessage(msg Message) slackPayload {
	color := "#36a64f" // green
	if msg.Tone == ToneAlert {
		color = "#cc0000" // dark red
	}

	summary := []string{msg.Summary}
	for _, line := range msg.Breaches {
		summary = append(summary, "• "+line)
	}

	fields := []slackText{
		mrkdwn("*Project*\n" + msg.ProjectID),
		mrkdwn("*Plan*\n" + msg.Plan),
		mrkdwn("*Estimated spend*\n" + msg.Total),
	}
	if msg.Period != "" {
		fields = append(fields, mrkdwn("*Period*\n"+msg.Period))
	}

	return slackPayload{
		Text: msg.Title,
		Attachments: []slackAttachment{
			{
				Color: color,
				Blocks: []slackBlock{
					{Type: "header", Text: &slackText{Type: "plain_text", Text: msg.Title}},
					{Type: "section", Text: ptr(mrkdwn(strings.Join(summary, "\n")))},
					{Type: "section", Fields: fields},
					{Type: "section", Text: ptr(mrkdwn(msg.Table()))},
					{Type: "context", Elements: []slackText{mrkdwn("neon-billing-alerts · costs are estimates")}},
				},
			},
		},
	}
}

func mrkdwn(s string) slackText {
	return slackText{Type: "mrkdwn", Text: s}
}

func ptr[T any](v T) *T { return &v }

type slackPayload struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
