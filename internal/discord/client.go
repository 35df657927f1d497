package discord

import (
	"context"
	"fmt"
	"slices"

	"github.com/alex65536/daybot/internal/bot"
	"github.com/alex65536/daybot/internal/contest"
	"github.com/alex65536/daybot/internal/util/sliceutil"
	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"
)

// Client sends messages and looks up guild members through the REST API. Outbound messages
// are throttled, so a burst of notifications cannot trip the platform rate limits.
type Client struct {
	s     *discordgo.Session
	role  string
	limit *rate.Limiter
}

var (
	_ bot.Messenger         = (*Client)(nil)
	_ bot.PermissionChecker = (*Client)(nil)
)

func NewClient(s *discordgo.Session, o Options) *Client {
	o.FillDefaults()
	burst := max(1, int(o.SendsPerSecond))
	return &Client{
		s:     s,
		role:  o.PermissionRole,
		limit: rate.NewLimiter(rate.Limit(o.SendsPerSecond), burst),
	}
}

func (c *Client) SendText(ctx context.Context, channelID string, text string) error {
	if err := c.limit.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}
	if _, err := c.s.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Client) SendAnnouncement(ctx context.Context, channelID string, a contest.Announcement) error {
	if err := c.limit.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limit: %w", err)
	}
	if _, err := c.s.ChannelMessageSendEmbed(channelID, embedFrom(a), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send embed: %w", err)
	}
	return nil
}

func (c *Client) HasPermission(ctx context.Context, guildID, userID string) (bool, error) {
	if guildID == "" {
		return false, nil
	}
	member, err := c.s.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("get guild member: %w", err)
	}
	return hasRole(member, c.role), nil
}

func hasRole(member *discordgo.Member, role string) bool {
	return member != nil && slices.Contains(member.Roles, role)
}

func embedFrom(a contest.Announcement) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: a.Title,
		Color: a.Color,
		Fields: sliceutil.Map(a.Fields, func(f contest.Field) *discordgo.MessageEmbedField {
			return &discordgo.MessageEmbedField{
				Name:   f.Name,
				Value:  f.Value,
				Inline: f.Inline,
			}
		}),
	}
}
