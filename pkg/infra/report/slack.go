package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
)

// Slack posts a summary of available updates to an incoming webhook.
// Reports without updates are not posted.
type Slack struct {
	webhookURL string
	channel    string
}

var _ interfaces.ReportSink = &Slack{}

func NewSlack(webhookURL, channel string) *Slack {
	return &Slack{webhookURL: webhookURL, channel: channel}
}

// SlackMessage renders the webhook payload for a report
func SlackMessage(report *model.UpstreamReport) *slack.WebhookMessage {
	title := fmt.Sprintf("%d container update(s) available", len(report.Updates))

	var lines []string
	for _, r := range report.Updates {
		lines = append(lines, fmt.Sprintf("• `%s` %s → %s", r.Package, r.Current, r.Latest))
	}

	var failed []string
	for _, r := range report.Results {
		if r.Status == model.UpstreamError || r.Status == model.UpstreamBlocked {
			failed = append(failed, fmt.Sprintf("• `%s` %s: %s", r.Package, r.Status, r.Error))
		}
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, title, false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false), nil, nil),
	}
	if len(failed) > 0 {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*Not updated*\n"+strings.Join(failed, "\n"), false, false), nil, nil),
		)
	}

	return &slack.WebhookMessage{
		Text:   title,
		Blocks: &slack.Blocks{BlockSet: blocks},
	}
}

func (x *Slack) Publish(ctx context.Context, report *model.UpstreamReport) error {
	if x.webhookURL == "" || len(report.Updates) == 0 {
		return nil
	}

	msg := SlackMessage(report)
	msg.Channel = x.channel
	if err := slack.PostWebhookContext(ctx, x.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post slack notification")
	}
	return nil
}
