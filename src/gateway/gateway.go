package gateway

import (
	"errors"

	"github.com/bwmarrin/discordgo"
)

// ErrDMClosed marks a direct message the recipient refuses. Callers treat
// it as a soft failure and keep going.
var ErrDMClosed = errors.New("gateway: recipient has direct messages disabled")

// Forum is the platform surface the lifecycle and router talk to. Every
// call maps to one Discord REST operation; failures are expected (deleted
// thread, missing permission, rate limit) and callers decide whether they
// are fatal.
type Forum interface {
	// Thread fetches a forum thread channel by ID.
	Thread(threadID string) (*discordgo.Channel, error)
	// LeadMessage fetches the thread's starter message, which carries the
	// status embed and control buttons.
	LeadMessage(threadID string) (*discordgo.Message, error)
	// EditMessage rewrites embeds and, when components is non-nil, the
	// component rows of a message.
	EditMessage(channelID, messageID string, embeds []*discordgo.MessageEmbed, components []discordgo.MessageComponent) error
	// StartThread opens a forum post with an initial message and tags and
	// returns the new thread ID.
	StartThread(channelID, title string, message *discordgo.MessageSend, tagIDs []string) (string, error)
	// AvailableTags lists the tag catalog of a forum channel.
	AvailableTags(channelID string) ([]discordgo.ForumTag, error)
	// SetAppliedTags replaces the tags applied to a thread.
	SetAppliedTags(threadID string, tagIDs []string) error
	// LockThread locks a thread against new replies.
	LockThread(threadID string) error
	// ArchiveThread archives a thread.
	ArchiveThread(threadID string) error
	// PostMessage posts a plain message into a thread.
	PostMessage(threadID, content string) error
}

// Notifier delivers direct messages. Delivery failure is an expected
// outcome, not an error path to abort on.
type Notifier interface {
	NotifyUser(userID string, embed *discordgo.MessageEmbed) error
}
