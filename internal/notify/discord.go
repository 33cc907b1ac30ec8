package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nexus-run/nexus/internal/core"
)

// DiscordSender posts a pipeline summary as an embed to a Discord channel.
type DiscordSender struct {
	session   *discordgo.Session
	ChannelID string
}

func NewDiscordSender(botToken, channelID string) (*DiscordSender, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordSender{session: session, ChannelID: channelID}, nil
}

func (d *DiscordSender) Notify(result core.PipelineResult) error {
	color := 0x2ecc71 // green
	if result.Status != core.StatusOK {
		color = 0xe74c3c // red
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Pipeline run",
		Description: summaryLine(result),
		Color:       color,
	}
	_, err := d.session.ChannelMessageSendEmbed(d.ChannelID, embed)
	return err
}
