package telegraph

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// discordClient abstracts the Discord API methods we use, enabling test mocks.
type discordClient interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// DiscordNotifier posts events to a Discord channel via the REST API.
type DiscordNotifier struct {
	client    discordClient
	channelID string
}

// NewDiscordNotifier creates a Discord notifier for the given bot token and
// channel. No websocket session is opened; embeds go out over REST.
func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegraph: discord token is required")
	}
	if channelID == "" {
		return nil, fmt.Errorf("telegraph: discord channel is required")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("telegraph: discord session: %w", err)
	}
	return &DiscordNotifier{client: session, channelID: channelID}, nil
}

// Notify posts the event as an embed with a severity color.
func (d *DiscordNotifier) Notify(ctx context.Context, ev Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Detail,
		Color:       embedColor(ev.Severity),
		Footer:      &discordgo.MessageEmbedFooter{Text: ev.Kind},
	}

	if _, err := d.client.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("telegraph: discord post: %w", err)
	}
	return nil
}

// Close shuts down the underlying session.
func (d *DiscordNotifier) Close() error { return d.client.Close() }

// embedColor converts the severity color hint to Discord's integer form.
func embedColor(severity string) int {
	hex := strings.TrimPrefix(severityColor(severity), "#")
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
