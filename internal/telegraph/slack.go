package telegraph

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts events to a Slack channel.
type SlackNotifier struct {
	client    slackClient
	channelID string
}

// NewSlackNotifier creates a Slack notifier for the given bot token and channel.
func NewSlackNotifier(token, channelID string) (*SlackNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegraph: slack token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("telegraph: slack channel is required")
	}
	return &SlackNotifier{
		client:    slackapi.New(token),
		channelID: channelID,
	}, nil
}

// Notify posts the event as an attachment with a severity color.
func (s *SlackNotifier) Notify(ctx context.Context, ev Event) error {
	attachment := slackapi.Attachment{
		Color: severityColor(ev.Severity),
		Title: ev.Title,
		Text:  ev.Detail,
		Fields: []slackapi.AttachmentField{
			{Title: "Event", Value: ev.Kind, Short: true},
		},
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("telegraph: slack post: %w", err)
	}
	return nil
}

// Close is a no-op; the Slack client holds no connection.
func (s *SlackNotifier) Close() error { return nil }
