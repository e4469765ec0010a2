// Package platform defines the narrow chat-platform surface the ticket
// lifecycle consumes. The Discord implementation lives in the discord
// subpackage; tests substitute an in-memory fake.
package platform

import (
	"io"
	"time"
)

// Permission bits used by channel overwrites. Values mirror the platform's
// wire constants.
const (
	PermView int64 = 1 << 10
	PermSend int64 = 1 << 11
)

// OverwriteKind says whether a permission overwrite targets a role or a member.
type OverwriteKind int

const (
	OverwriteRole OverwriteKind = iota
	OverwriteMember
)

// Overwrite is a channel permission overwrite.
type Overwrite struct {
	TargetID string
	Kind     OverwriteKind
	Allow    int64
	Deny     int64
}

// Channel is a platform channel as seen by the lifecycle core.
type Channel struct {
	ID         string
	GuildID    string
	Name       string
	Topic      string
	ParentID   string
	Overwrites []Overwrite
}

// ChannelCreate describes a channel to be created.
type ChannelCreate struct {
	Name       string
	Topic      string
	ParentID   string
	Overwrites []Overwrite
}

// Attachment is a file attached to a message.
type Attachment struct {
	Name string
	URL  string
}

// Message is one message of a channel's history.
type Message struct {
	ID          string
	AuthorID    string
	AuthorName  string
	Content     string
	Timestamp   time.Time
	Attachments []Attachment
	EmbedCount  int
}

// File is an attachment to send with an outbound message.
type File struct {
	Name        string
	ContentType string
	Reader      io.Reader
}

// Button is a clickable control attached to an outbound message.
type Button struct {
	Label    string
	CustomID string
	Disabled bool
}

// Outbound is a message to send.
type Outbound struct {
	Content string
	Files   []File
	Buttons []Button
}

// Client is the platform surface consumed by the lifecycle core. All calls
// are single attempts; retries, if any, belong to the caller.
type Client interface {
	// GuildChannels lists a guild's channels fresh from the platform,
	// bypassing any local cache.
	GuildChannels(guildID string) ([]Channel, error)
	// Channel fetches a single channel, including permission overwrites.
	Channel(channelID string) (Channel, error)
	// CreateChannel creates a text channel.
	CreateChannel(guildID string, req ChannelCreate) (Channel, error)
	// SetTopic replaces a channel's topic.
	SetTopic(channelID, topic string) error
	// DeleteChannel removes a channel.
	DeleteChannel(channelID string) error
	// SendMessage posts to a channel and returns the new message id.
	SendMessage(channelID string, msg Outbound) (string, error)
	// Messages returns up to limit messages older than beforeID, newest
	// first. An empty beforeID starts from the most recent message.
	Messages(channelID string, limit int, beforeID string) ([]Message, error)
	// SetPermission creates or replaces a permission overwrite.
	SetPermission(channelID, targetID string, kind OverwriteKind, allow, deny int64) error
	// ClearPermission removes a target's overwrite.
	ClearPermission(channelID, targetID string) error
	// OpenDM returns the id of a direct-message channel with the user.
	OpenDM(userID string) (string, error)
	// MemberRoles returns the role ids a guild member holds.
	MemberRoles(guildID, userID string) ([]string, error)
	// MemberName returns a member's display name, falling back to username.
	MemberName(guildID, userID string) (string, error)
}
