package notify

import (
	"github.com/slack-go/slack"

	"github.com/nexus-run/nexus/internal/core"
)

// SlackSender posts a pipeline summary to a Slack channel via a bot token.
type SlackSender struct {
	client  *slack.Client
	Channel string
}

func NewSlackSender(token, channel string) *SlackSender {
	return &SlackSender{client: slack.New(token), Channel: channel}
}

func (s *SlackSender) Notify(result core.PipelineResult) error {
	color := "good"
	if result.Status != core.StatusOK {
		color = "danger"
	}
	attachment := slack.Attachment{
		Color: color,
		Text:  summaryLine(result),
	}
	_, _, err := s.client.PostMessage(s.Channel, slack.MsgOptionAttachments(attachment))
	return err
}
