// Package discord implements platform.Client over the Discord REST API.
package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nordshop/nsbot/internal/platform"
)

// Client adapts a discordgo session to the platform.Client interface.
type Client struct {
	s *discordgo.Session
}

// New wraps an already-opened discordgo session.
func New(s *discordgo.Session) *Client {
	return &Client{s: s}
}

func (c *Client) GuildChannels(guildID string) ([]platform.Channel, error) {
	// REST call, not the state cache: the cache can lag behind channel
	// creation and deletion.
	chans, err := c.s.GuildChannels(guildID)
	if err != nil {
		return nil, fmt.Errorf("discord: guild channels: %w", err)
	}
	out := make([]platform.Channel, 0, len(chans))
	for _, ch := range chans {
		if ch.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		out = append(out, fromChannel(ch))
	}
	return out, nil
}

func (c *Client) Channel(channelID string) (platform.Channel, error) {
	ch, err := c.s.Channel(channelID)
	if err != nil {
		return platform.Channel{}, fmt.Errorf("discord: channel: %w", err)
	}
	return fromChannel(ch), nil
}

func (c *Client) CreateChannel(guildID string, req platform.ChannelCreate) (platform.Channel, error) {
	overwrites := make([]*discordgo.PermissionOverwrite, 0, len(req.Overwrites))
	for _, o := range req.Overwrites {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    o.TargetID,
			Type:  toOverwriteType(o.Kind),
			Allow: o.Allow,
			Deny:  o.Deny,
		})
	}
	ch, err := c.s.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 req.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		Topic:                req.Topic,
		ParentID:             req.ParentID,
		PermissionOverwrites: overwrites,
	})
	if err != nil {
		return platform.Channel{}, fmt.Errorf("discord: create channel: %w", err)
	}
	return fromChannel(ch), nil
}

func (c *Client) SetTopic(channelID, topic string) error {
	if _, err := c.s.ChannelEdit(channelID, &discordgo.ChannelEdit{Topic: topic}); err != nil {
		return fmt.Errorf("discord: set topic: %w", err)
	}
	return nil
}

func (c *Client) DeleteChannel(channelID string) error {
	if _, err := c.s.ChannelDelete(channelID); err != nil {
		return fmt.Errorf("discord: delete channel: %w", err)
	}
	return nil
}

func (c *Client) SendMessage(channelID string, msg platform.Outbound) (string, error) {
	send := &discordgo.MessageSend{Content: msg.Content}
	for _, f := range msg.Files {
		send.Files = append(send.Files, &discordgo.File{
			Name:        f.Name,
			ContentType: f.ContentType,
			Reader:      f.Reader,
		})
	}
	if len(msg.Buttons) > 0 {
		send.Components = buttonRows(msg.Buttons)
	}
	m, err := c.s.ChannelMessageSendComplex(channelID, send)
	if err != nil {
		return "", fmt.Errorf("discord: send message: %w", err)
	}
	return m.ID, nil
}

func (c *Client) Messages(channelID string, limit int, beforeID string) ([]platform.Message, error) {
	msgs, err := c.s.ChannelMessages(channelID, limit, beforeID, "", "")
	if err != nil {
		return nil, fmt.Errorf("discord: messages: %w", err)
	}
	out := make([]platform.Message, 0, len(msgs))
	for _, m := range msgs {
		pm := platform.Message{
			ID:         m.ID,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
			EmbedCount: len(m.Embeds),
		}
		if m.Author != nil {
			pm.AuthorID = m.Author.ID
			pm.AuthorName = m.Author.Username
			if m.Author.GlobalName != "" {
				pm.AuthorName = m.Author.GlobalName
			}
		}
		for _, a := range m.Attachments {
			pm.Attachments = append(pm.Attachments, platform.Attachment{Name: a.Filename, URL: a.URL})
		}
		out = append(out, pm)
	}
	return out, nil
}

func (c *Client) SetPermission(channelID, targetID string, kind platform.OverwriteKind, allow, deny int64) error {
	if err := c.s.ChannelPermissionSet(channelID, targetID, toOverwriteType(kind), allow, deny); err != nil {
		return fmt.Errorf("discord: set permission: %w", err)
	}
	return nil
}

func (c *Client) ClearPermission(channelID, targetID string) error {
	if err := c.s.ChannelPermissionDelete(channelID, targetID); err != nil {
		return fmt.Errorf("discord: clear permission: %w", err)
	}
	return nil
}

func (c *Client) OpenDM(userID string) (string, error) {
	ch, err := c.s.UserChannelCreate(userID)
	if err != nil {
		return "", fmt.Errorf("discord: open dm: %w", err)
	}
	return ch.ID, nil
}

func (c *Client) MemberRoles(guildID, userID string) ([]string, error) {
	m, err := c.s.GuildMember(guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("discord: guild member: %w", err)
	}
	return m.Roles, nil
}

func (c *Client) MemberName(guildID, userID string) (string, error) {
	m, err := c.s.GuildMember(guildID, userID)
	if err != nil {
		return "", fmt.Errorf("discord: guild member: %w", err)
	}
	if m.Nick != "" {
		return m.Nick, nil
	}
	if m.User != nil {
		if m.User.GlobalName != "" {
			return m.User.GlobalName, nil
		}
		return m.User.Username, nil
	}
	return userID, nil
}

// --- helpers ---

func fromChannel(ch *discordgo.Channel) platform.Channel {
	out := platform.Channel{
		ID:       ch.ID,
		GuildID:  ch.GuildID,
		Name:     ch.Name,
		Topic:    ch.Topic,
		ParentID: ch.ParentID,
	}
	for _, o := range ch.PermissionOverwrites {
		kind := platform.OverwriteRole
		if o.Type == discordgo.PermissionOverwriteTypeMember {
			kind = platform.OverwriteMember
		}
		out.Overwrites = append(out.Overwrites, platform.Overwrite{
			TargetID: o.ID,
			Kind:     kind,
			Allow:    o.Allow,
			Deny:     o.Deny,
		})
	}
	return out
}

func toOverwriteType(kind platform.OverwriteKind) discordgo.PermissionOverwriteType {
	if kind == platform.OverwriteMember {
		return discordgo.PermissionOverwriteTypeMember
	}
	return discordgo.PermissionOverwriteTypeRole
}

// buttonRows lays buttons out in action rows of at most five.
func buttonRows(buttons []platform.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += 5 {
		end := min(start+5, len(buttons))
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: b.CustomID,
				Disabled: b.Disabled,
			})
		}
		rows = append(rows, row)
	}
	return rows
}
